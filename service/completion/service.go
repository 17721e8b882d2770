package completion

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/marcosotomac/LAST-KFC/bus"
	"github.com/marcosotomac/LAST-KFC/model"
	"github.com/marcosotomac/LAST-KFC/orchestrator"
	"github.com/marcosotomac/LAST-KFC/service/order"
)

// ErrInvalidStage rejects completion calls for anything but the three
// workflow stages.
var ErrInvalidStage = errors.New("invalid stage")

type Request struct {
	TenantID          string
	OrderID           string
	Stage             model.Stage
	ContinuationToken string
	Notes             string
}

// IOrderStore is the slice of the order repository the coordinator needs.
type IOrderStore interface {
	GetOrder(ctx context.Context, tenantID, orderID string) (model.Order, error)
	UpdateOrder(ctx context.Context, tenantID, orderID string, update order.OrderUpdate) error
}

type IService interface {
	CompleteStage(ctx context.Context, req Request) (model.Order, error)
	FailOrder(ctx context.Context, tenantID, orderID, reason string) (model.Order, error)
}

func NewService(
	repo IOrderStore,
	eventBus bus.IBus,
	orch orchestrator.IClient,
	log *logrus.Entry,
) IService {
	return &service{
		repo:     repo,
		bus:      eventBus,
		orch:     orch,
		log:      log,
		redeemed: map[string]struct{}{},
	}
}

type service struct {
	repo IOrderStore
	bus  bus.IBus
	orch orchestrator.IClient
	log  *logrus.Entry

	mu       sync.Mutex
	redeemed map[string]struct{}
}

// CompleteStage finalizes a stage on an explicit external signal. The order
// update is authoritative: event publishing and token redemption are
// best-effort and never roll it back.
func (s *service) CompleteStage(ctx context.Context, req Request) (model.Order, error) {
	if !req.Stage.Valid() {
		return model.Order{}, ErrInvalidStage
	}

	log := s.log.WithFields(logrus.Fields{
		"tenant_id": req.TenantID,
		"order_id":  req.OrderID,
		"stage":     string(req.Stage),
	})

	o, err := s.repo.GetOrder(ctx, req.TenantID, req.OrderID)
	if err != nil {
		return model.Order{}, err
	}

	token := req.ContinuationToken
	if token == "" {
		token = o.PendingTokens[req.Stage]
	}

	// Status denotes the last completed phase; the orchestrator drives the
	// move into the next stage.
	o.Status = req.Stage.Status()
	o.AddTraceEvent(req.Stage.CompletedEvent(), req.Notes)
	if o.PendingTokens != nil {
		delete(o.PendingTokens, req.Stage)
	}

	err = s.repo.UpdateOrder(ctx, o.TenantID, o.OrderID, order.OrderUpdate{
		Status:        &o.Status,
		Trace:         &o.Trace,
		PendingTokens: &o.PendingTokens,
		UpdatedAt:     &o.UpdatedAt,
	})
	if err != nil {
		return model.Order{}, err
	}

	log.Info("stage completed")

	if err := bus.PublishStageCompleted(ctx, s.bus, o.TenantID, o.OrderID, req.Stage); err != nil {
		log.WithError(err).Error("failed to publish stage.completed")
	}
	if req.Stage == model.StageDelivery {
		if err := bus.PublishOrderDelivered(ctx, s.bus, o.TenantID, o.OrderID); err != nil {
			log.WithError(err).Error("failed to publish order.delivered")
		}
	}

	if token != "" {
		s.redeemToken(ctx, log, token, o, req.Stage)
	}

	return o, nil
}

// FailOrder moves the order to the failed terminal state, fails every parked
// continuation token so the durable execution stops waiting, and publishes
// order.failed. An already-terminal order is returned unchanged.
func (s *service) FailOrder(ctx context.Context, tenantID, orderID, reason string) (model.Order, error) {
	log := s.log.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"order_id":  orderID,
	})

	o, err := s.repo.GetOrder(ctx, tenantID, orderID)
	if err != nil {
		return model.Order{}, err
	}
	if o.Status.IsTerminal() {
		log.WithField("status", string(o.Status)).Warn("order already terminal, not failing")
		return o, nil
	}

	tokens := o.PendingTokens
	o.Status = model.OrderFailed
	o.AddTraceEvent("order_failed", reason)
	o.PendingTokens = model.TokenMap{}

	err = s.repo.UpdateOrder(ctx, o.TenantID, o.OrderID, order.OrderUpdate{
		Status:        &o.Status,
		Trace:         &o.Trace,
		PendingTokens: &o.PendingTokens,
		UpdatedAt:     &o.UpdatedAt,
	})
	if err != nil {
		return model.Order{}, err
	}

	log.Info("order failed")

	if err := bus.PublishOrderFailed(ctx, s.bus, o.TenantID, o.OrderID, reason); err != nil {
		log.WithError(err).Error("failed to publish order.failed")
	}

	for stage, token := range tokens {
		if !s.markRedeemed(token) {
			continue
		}
		if err := s.orch.SendTaskFailure(ctx, token, "OrderFailed", reason); err != nil {
			log.WithError(err).WithField("stage", string(stage)).
				Error("failed to fail continuation token")
		}
	}

	return o, nil
}

// redeemToken hands control back to the orchestrator at most once per token.
// The engine rejects duplicate redemptions on its side too, but locally we
// must not even attempt a second one.
func (s *service) redeemToken(ctx context.Context, log *logrus.Entry, token string, o model.Order, stage model.Stage) {
	if !s.markRedeemed(token) {
		log.Warn("continuation token already redeemed, skipping")
		return
	}

	err := s.orch.SendTaskSuccess(ctx, token, map[string]interface{}{
		"orderId":     o.OrderID,
		"tenantId":    o.TenantID,
		"stage":       string(stage),
		"completedAt": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		// The order record is already authoritative; surface for operators
		// and move on.
		log.WithError(err).Error("failed to redeem continuation token")
	}
}

func (s *service) markRedeemed(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.redeemed[token]; ok {
		return false
	}
	s.redeemed[token] = struct{}{}
	return true
}
