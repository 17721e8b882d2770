package broadcast

import (
	"github.com/Shopify/sarama"
)

type fakeConsumer struct {
	messages chan *sarama.ConsumerMessage
	errors   chan *sarama.ConsumerError
}

func newFakeConsumer(payloads ...string) *fakeConsumer {
	f := &fakeConsumer{
		messages: make(chan *sarama.ConsumerMessage, len(payloads)),
		errors:   make(chan *sarama.ConsumerError),
	}
	for _, payload := range payloads {
		f.messages <- &sarama.ConsumerMessage{Value: []byte(payload)}
	}
	return f
}

func (f *fakeConsumer) Messages() <-chan *sarama.ConsumerMessage {
	return f.messages
}

func (f *fakeConsumer) Errors() <-chan *sarama.ConsumerError {
	return f.errors
}
