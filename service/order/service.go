package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/marcosotomac/LAST-KFC/kafka"
	"github.com/marcosotomac/LAST-KFC/model"
	"github.com/marcosotomac/LAST-KFC/orchestrator"
	"github.com/marcosotomac/LAST-KFC/order_event"
)

// ErrValidation marks a rejected request. No side effects have happened when
// it is returned.
var ErrValidation = errors.New("validation error")

type CreateOrderRequest struct {
	Items           []model.OrderItem `json:"items"`
	CustomerName    string            `json:"customerName"`
	CustomerPhone   string            `json:"customerPhone"`
	DeliveryAddress string            `json:"deliveryAddress"`
	Notes           string            `json:"notes"`
}

func (r CreateOrderRequest) Validate() error {
	if len(r.Items) == 0 {
		return fmt.Errorf("%w: order must have at least one item", ErrValidation)
	}
	for i, item := range r.Items {
		if item.ProductID == "" {
			return fmt.Errorf("%w: item %d missing productId", ErrValidation, i)
		}
		if item.Name == "" {
			return fmt.Errorf("%w: item %d missing name", ErrValidation, i)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d quantity must be positive", ErrValidation, i)
		}
		if item.UnitPrice <= 0 {
			return fmt.Errorf("%w: item %d price must be positive", ErrValidation, i)
		}
	}
	if r.CustomerName == "" {
		return fmt.Errorf("%w: customerName is required", ErrValidation)
	}
	return nil
}

type IService interface {
	CreateOrder(ctx context.Context, tenantID string, req CreateOrderRequest) (model.Order, error)
	GetOrder(ctx context.Context, tenantID, orderID string) (model.Order, error)
	ListOrders(ctx context.Context, tenantID string, status model.OrderStatus, limit int) ([]model.Order, error)
	RelayOutbox(ctx context.Context, limit int) error
}

func NewService(
	repo IRepo,
	producer kafka.IProducer,
	orch orchestrator.IClient,
	log *logrus.Entry,
) IService {
	return &service{
		repo:     repo,
		producer: producer,
		orch:     orch,
		log:      log,
	}
}

type service struct {
	repo     IRepo
	producer kafka.IProducer
	orch     orchestrator.IClient
	log      *logrus.Entry
}

// CreateOrder persists the order and its order.created event in one
// transaction, then starts the durable execution. A failed execution start is
// logged and never rolls the order back.
func (s *service) CreateOrder(ctx context.Context, tenantID string, req CreateOrderRequest) (model.Order, error) {
	if err := req.Validate(); err != nil {
		return model.Order{}, err
	}

	now := time.Now().UTC()
	o := model.Order{
		TenantID:        tenantID,
		OrderID:         newOrderID(),
		Status:          model.OrderPending,
		Items:           req.Items,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		DeliveryAddress: req.DeliveryAddress,
		Notes:           req.Notes,
		PendingTokens:   model.TokenMap{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	o.CalculateTotal()
	o.AddTraceEvent("order_created", fmt.Sprintf("Order created by %s", req.CustomerName))

	err := s.repo.Transact(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateOrder(ctx, o); err != nil {
			return err
		}

		env := order_event.NewEnvelope(order_event.SourceOrders, order_event.TypeOrderCreated, map[string]interface{}{
			"tenantId":     o.TenantID,
			"orderId":      o.OrderID,
			"customerName": o.CustomerName,
			"totalAmount":  o.TotalAmount,
			"itemCount":    len(o.Items),
		})
		content, err := json.Marshal(env)
		if err != nil {
			return err
		}

		return s.repo.CreateOutbox(ctx, model.Outbox{Content: content})
	})
	if err != nil {
		return model.Order{}, err
	}

	if _, err := s.orch.StartExecution(ctx, o.OrderID, map[string]interface{}{
		"tenantId": o.TenantID,
		"orderId":  o.OrderID,
	}); err != nil {
		s.log.WithError(err).WithField("order_id", o.OrderID).Error("failed to start workflow execution")
	}

	return o, nil
}

func (s *service) GetOrder(ctx context.Context, tenantID, orderID string) (model.Order, error) {
	return s.repo.GetOrder(ctx, tenantID, orderID)
}

func (s *service) ListOrders(ctx context.Context, tenantID string, status model.OrderStatus, limit int) ([]model.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.ListOrders(ctx, tenantID, status, limit)
}

// RelayOutbox pushes pending outbox rows to the event topic and marks them done.
func (s *service) RelayOutbox(ctx context.Context, limit int) error {
	outboxes, err := s.repo.GetPendingOutbox(ctx, limit)
	if err != nil {
		return err
	}
	if len(outboxes) == 0 {
		return nil
	}

	err = s.producer.Push(extractContents(outboxes))
	if err != nil {
		return err
	}

	return s.repo.MarkDoneOutboxes(ctx, extractIDs(outboxes))
}

func extractIDs(outboxes []model.Outbox) []int64 {
	var res []int64
	for _, outbox := range outboxes {
		res = append(res, outbox.ID)
	}
	return res
}

func extractContents(outboxes []model.Outbox) [][]byte {
	var res [][]byte
	for _, outbox := range outboxes {
		res = append(res, outbox.Content)
	}
	return res
}

func newOrderID() string {
	return "order_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
}
