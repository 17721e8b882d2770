package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/marcosotomac/LAST-KFC/kafka"
	"github.com/marcosotomac/LAST-KFC/order_event"
	"github.com/marcosotomac/LAST-KFC/service/registry"
	"github.com/marcosotomac/LAST-KFC/ws"
)

// Stats summarizes one broadcast fan-out.
type Stats struct {
	Total  int `json:"total"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// PushMessage is the payload observers receive.
type PushMessage struct {
	Type      string      `json:"type"`
	EventType string      `json:"eventType"`
	Data      interface{} `json:"data"`
}

type IService interface {
	Consume(ctx context.Context, stopAfter time.Duration)
	Route(ctx context.Context, env order_event.Envelope) error
	BroadcastToTenant(ctx context.Context, tenantID string, message PushMessage, role string) (Stats, error)
}

func NewService(
	consumer kafka.IConsumer,
	reg registry.IService,
	pusher ws.IPusher,
	log *logrus.Entry,
) IService {
	return &service{
		consumer: consumer,
		registry: reg,
		pusher:   pusher,
		log:      log,
	}
}

type service struct {
	consumer kafka.IConsumer
	registry registry.IService
	pusher   ws.IPusher
	log      *logrus.Entry
}

// Consume runs the event topic loop, routing each domain event to the
// tenant's live connections.
func (s *service) Consume(ctx context.Context, stopAfter time.Duration) {
	startTime := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.consumer.Messages():
			var env order_event.Envelope
			if err := json.Unmarshal(msg.Value, &env); err != nil {
				s.log.WithError(err).Error("malformed domain event, dropping")
				continue
			}
			if err := s.Route(ctx, env); err != nil {
				s.log.WithError(err).WithField("detail_type", env.DetailType).
					Error("failed to route event")
			}
		case err := <-s.consumer.Errors():
			s.log.WithError(err).Error("failed to consume domain event")
		default:
			if stopAfter != 0 && time.Now().After(startTime.Add(stopAfter)) {
				return
			}
		}
	}
}

// Route fans one event out to the owning tenant's connections. An event
// without a tenant id is not broadcast; other subscribers may still consume
// it elsewhere.
func (s *service) Route(ctx context.Context, env order_event.Envelope) error {
	tenantID := env.TenantID()
	if tenantID == "" {
		s.log.WithField("detail_type", env.DetailType).
			Warn("event missing tenantId, skipping broadcast")
		return nil
	}

	message := PushMessage{
		Type:      "order_update",
		EventType: env.DetailType,
		Data:      env.Detail,
	}

	stats, err := s.BroadcastToTenant(ctx, tenantID, message, "")
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id":   tenantID,
		"detail_type": env.DetailType,
		"total":       stats.Total,
		"sent":        stats.Sent,
		"failed":      stats.Failed,
	}).Info("broadcast completed")
	return nil
}

// BroadcastToTenant attempts delivery to every live connection independently.
// A gone connection is lazily removed and counted as failed; one dead
// connection never aborts delivery to the rest.
func (s *service) BroadcastToTenant(ctx context.Context, tenantID string, message PushMessage, role string) (Stats, error) {
	connections, err := s.registry.ListByTenant(ctx, tenantID, role)
	if err != nil {
		return Stats{}, err
	}

	data, err := json.Marshal(message)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Total: len(connections)}
	for _, conn := range connections {
		err := s.pusher.PostToConnection(ctx, conn.ConnectionID, data)
		switch {
		case err == nil:
			stats.Sent++
		case errors.Is(err, ws.ErrConnectionGone):
			stats.Failed++
			if removeErr := s.registry.Remove(ctx, conn.ConnectionID); removeErr != nil {
				s.log.WithError(removeErr).WithField("connection_id", conn.ConnectionID).
					Warn("failed to clean up gone connection")
			}
		default:
			stats.Failed++
			s.log.WithError(err).WithField("connection_id", conn.ConnectionID).
				Error("failed to deliver to connection")
		}
	}

	return stats, nil
}
