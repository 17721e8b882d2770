package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/marcosotomac/LAST-KFC/bus"
	"github.com/marcosotomac/LAST-KFC/kafka"
	"github.com/marcosotomac/LAST-KFC/model"
	"github.com/marcosotomac/LAST-KFC/order_event"
	"github.com/marcosotomac/LAST-KFC/service/order"
)

// IOrderStore is the slice of the order repository a stage worker needs.
type IOrderStore interface {
	GetOrder(ctx context.Context, tenantID, orderID string) (model.Order, error)
	UpdateOrder(ctx context.Context, tenantID, orderID string, update order.OrderUpdate) error
}

// IService is a stage worker. It moves an order into its stage and parks the
// continuation token; it never redeems the token itself. Redemption happens
// later through the completion coordinator, which keeps "work started"
// decoupled from "work finished" for as long as the human side needs.
type IService interface {
	Consume(ctx context.Context, stopAfter time.Duration)
	HandleTask(ctx context.Context, task order_event.StageTask) error
}

func NewService(
	stage model.Stage,
	repo IOrderStore,
	consumer kafka.IConsumer,
	producer kafka.IProducer,
	eventBus bus.IBus,
	log *logrus.Entry,
) IService {
	return &service{
		stage:    stage,
		repo:     repo,
		consumer: consumer,
		producer: producer,
		bus:      eventBus,
		log:      log.WithField("stage", string(stage)),
	}
}

type service struct {
	stage    model.Stage
	repo     IOrderStore
	consumer kafka.IConsumer
	producer kafka.IProducer
	bus      bus.IBus
	log      *logrus.Entry
}

// Consume runs the stage queue loop. Each message is handled independently: a
// transient failure re-enqueues that one message, it never blocks the rest.
func (s *service) Consume(ctx context.Context, stopAfter time.Duration) {
	startTime := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.consumer.Messages():
			var task order_event.StageTask
			if err := json.Unmarshal(msg.Value, &task); err != nil {
				s.log.WithError(err).Error("malformed stage task, dropping")
				continue
			}
			if task.Stage == "" {
				task.Stage = s.stage
			}

			if err := s.HandleTask(ctx, task); err != nil {
				s.log.WithError(err).WithField("order_id", task.OrderID).
					Error("stage task failed, re-enqueueing")
				if pushErr := s.producer.PushOne(msg.Value); pushErr != nil {
					s.log.WithError(pushErr).WithField("order_id", task.OrderID).
						Error("failed to re-enqueue stage task")
				}
			}
		case err := <-s.consumer.Errors():
			s.log.WithError(err).Error("failed to consume stage task")
		default:
			if stopAfter != 0 && time.Now().After(startTime.Add(stopAfter)) {
				return
			}
		}
	}
}

// HandleTask advances the order into this worker's stage and parks the
// continuation token. A nil return means the message is done (including the
// drop cases); a non-nil return means the message should be redelivered.
func (s *service) HandleTask(ctx context.Context, task order_event.StageTask) error {
	log := s.log.WithFields(logrus.Fields{
		"tenant_id": task.TenantID,
		"order_id":  task.OrderID,
	})

	o, err := s.repo.GetOrder(ctx, task.TenantID, task.OrderID)
	if errors.Is(err, order.ErrNotFound) {
		// Nothing to recover; retrying cannot make the order appear.
		log.Error("order not found, dropping stage task")
		return nil
	}
	if err != nil {
		return err
	}

	if o.Status.IsTerminal() {
		log.WithField("status", string(o.Status)).Warn("order already terminal, dropping stage task")
		return nil
	}
	if o.HasTraceEvent(s.stage.CompletedEvent()) {
		// Redelivered after completion: parking the token again would leave a
		// live token for a finished stage.
		log.Warn("stage already completed, dropping stage task")
		return nil
	}
	if stageRank, ok := s.stage.Status().Rank(); ok {
		// The trace check can lose to a concurrent last-write-wins update;
		// a status already past this stage still proves completion.
		if cur, ok := o.Status.Rank(); ok && cur > stageRank {
			log.WithField("status", string(o.Status)).Warn("order already past stage, dropping stage task")
			return nil
		}
	}

	o.Status = s.stage.Status()
	o.AddTraceEvent(s.stage.StartedEvent(), "")
	if o.PendingTokens == nil {
		o.PendingTokens = model.TokenMap{}
	}
	o.PendingTokens[s.stage] = task.ContinuationToken

	err = s.repo.UpdateOrder(ctx, o.TenantID, o.OrderID, order.OrderUpdate{
		Status:        &o.Status,
		Trace:         &o.Trace,
		PendingTokens: &o.PendingTokens,
		UpdatedAt:     &o.UpdatedAt,
	})
	if err != nil {
		return err
	}

	log.Info("order moved into stage")

	if err := bus.PublishStageStarted(ctx, s.bus, o.TenantID, o.OrderID, s.stage); err != nil {
		log.WithError(err).Error("failed to publish stage.started")
	}

	return nil
}
