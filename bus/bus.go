package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/marcosotomac/LAST-KFC/kafka"
	"github.com/marcosotomac/LAST-KFC/order_event"
)

// IBus publishes fire-and-forget domain events. Callers treat a publish
// failure as non-fatal to the triggering business operation.
type IBus interface {
	Publish(ctx context.Context, source string, detailType string, detail map[string]interface{}) error
}

func NewKafkaBus(producer kafka.IProducer, log *logrus.Entry) IBus {
	return &kafkaBus{
		producer: producer,
		log:      log,
	}
}

type kafkaBus struct {
	producer kafka.IProducer
	log      *logrus.Entry
}

func (b *kafkaBus) Publish(ctx context.Context, source string, detailType string, detail map[string]interface{}) error {
	env := order_event.NewEnvelope(source, detailType, detail)
	content, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", detailType, err)
	}

	if err := b.producer.PushOne(content); err != nil {
		return fmt.Errorf("publish event %s: %w", detailType, err)
	}

	b.log.WithFields(logrus.Fields{
		"source":      source,
		"detail_type": detailType,
	}).Info("event published")
	return nil
}
