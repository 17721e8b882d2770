package order_event

import (
	"fmt"
	"time"

	"github.com/marcosotomac/LAST-KFC/model"
)

const SourceOrders = "kfc.orders"

const (
	TypeOrderCreated   = "order.created"
	TypeOrderDelivered = "order.delivered"
	TypeOrderFailed    = "order.failed"
)

func StageStartedType(stage model.Stage) string {
	return fmt.Sprintf("order.%s.started", stage)
}

func StageCompletedType(stage model.Stage) string {
	return fmt.Sprintf("order.%s.completed", stage)
}

// StageTask is the message the durable orchestrator enqueues onto a stage
// topic. The continuation token resumes the parked execution once the stage
// is completed by an external actor.
type StageTask struct {
	ContinuationToken string      `json:"continuationToken"`
	OrderID           string      `json:"orderId"`
	TenantID          string      `json:"tenantId"`
	Stage             model.Stage `json:"stage"`
}

// Envelope is the domain event wire format on the events topic.
type Envelope struct {
	Source     string                 `json:"source"`
	DetailType string                 `json:"detail-type"`
	Detail     map[string]interface{} `json:"detail"`
}

// NewEnvelope stamps a timestamp into the detail if the caller did not set one.
func NewEnvelope(source, detailType string, detail map[string]interface{}) Envelope {
	if detail == nil {
		detail = map[string]interface{}{}
	}
	if _, ok := detail["timestamp"]; !ok {
		detail["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	}
	return Envelope{
		Source:     source,
		DetailType: detailType,
		Detail:     detail,
	}
}

// TenantID extracts the tenant a routed event belongs to, if any.
func (e Envelope) TenantID() string {
	id, _ := e.Detail["tenantId"].(string)
	return id
}
