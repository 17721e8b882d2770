package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderKitchen   OrderStatus = "kitchen"
	OrderPackaging OrderStatus = "packaging"
	OrderDelivery  OrderStatus = "delivery"
	OrderDelivered OrderStatus = "delivered"
	OrderFailed    OrderStatus = "failed"
	OrderCancelled OrderStatus = "cancelled"
)

// statusRank orders the happy-path statuses. Terminal failure states carry no rank.
var statusRank = map[OrderStatus]int{
	OrderPending:   0,
	OrderKitchen:   1,
	OrderPackaging: 2,
	OrderDelivery:  3,
	OrderDelivered: 4,
}

func (s OrderStatus) Rank() (int, bool) {
	r, ok := statusRank[s]
	return r, ok
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderDelivered || s == OrderFailed || s == OrderCancelled
}

type Stage string

const (
	StageKitchen   Stage = "kitchen"
	StagePackaging Stage = "packaging"
	StageDelivery  Stage = "delivery"
)

func (s Stage) Valid() bool {
	return s == StageKitchen || s == StagePackaging || s == StageDelivery
}

func (s Stage) Status() OrderStatus {
	return OrderStatus(s)
}

func (s Stage) StartedEvent() string {
	return fmt.Sprintf("%s_started", s)
}

func (s Stage) CompletedEvent() string {
	return fmt.Sprintf("%s_completed", s)
}

type OrderItem struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"price"`
	Name      string  `json:"name"`
}

type TraceEvent struct {
	Timestamp time.Time   `json:"timestamp"`
	Event     string      `json:"event"`
	Status    OrderStatus `json:"status"`
	Details   string      `json:"details,omitempty"`
}

type Items []OrderItem

type Trace []TraceEvent

// TokenMap holds at most one unredeemed continuation token per stage.
type TokenMap map[Stage]string

type Order struct {
	TenantID        string      `db:"tenant_id"`
	OrderID         string      `db:"order_id"`
	Status          OrderStatus `db:"status"`
	Items           Items       `db:"items"`
	CustomerName    string      `db:"customer_name"`
	CustomerPhone   string      `db:"customer_phone"`
	DeliveryAddress string      `db:"delivery_address"`
	Notes           string      `db:"notes"`
	TotalAmount     float64     `db:"total_amount"`
	Trace           Trace       `db:"trace"`
	PendingTokens   TokenMap    `db:"pending_tokens"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
}

// AddTraceEvent appends to the audit log. The trace is append-only: existing
// entries are never rewritten or reordered.
func (o *Order) AddTraceEvent(event string, details string) {
	now := time.Now().UTC()
	o.Trace = append(o.Trace, TraceEvent{
		Timestamp: now,
		Event:     event,
		Status:    o.Status,
		Details:   details,
	})
	o.UpdatedAt = now
}

// HasTraceEvent reports whether the audit log already contains an entry with
// the given event label.
func (o *Order) HasTraceEvent(event string) bool {
	for _, e := range o.Trace {
		if e.Event == event {
			return true
		}
	}
	return false
}

// CalculateTotal derives the order total from its items. Called once at
// creation; the total is never recomputed afterwards.
func (o *Order) CalculateTotal() float64 {
	var total float64
	for _, item := range o.Items {
		total += item.UnitPrice * float64(item.Quantity)
	}
	o.TotalAmount = math.Round(total*100) / 100
	return o.TotalAmount
}

func (i Items) Value() (driver.Value, error) {
	return json.Marshal(i)
}

func (i *Items) Scan(src interface{}) error {
	return scanJSON(src, i)
}

func (t Trace) Value() (driver.Value, error) {
	return json.Marshal(t)
}

func (t *Trace) Scan(src interface{}) error {
	return scanJSON(src, t)
}

func (m TokenMap) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal(TokenMap{})
	}
	return json.Marshal(m)
}

func (m *TokenMap) Scan(src interface{}) error {
	return scanJSON(src, m)
}

func scanJSON(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	case nil:
		return nil
	default:
		return fmt.Errorf("cannot scan %T into JSON column", src)
	}
}
