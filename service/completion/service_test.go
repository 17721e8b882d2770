package completion

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/marcosotomac/LAST-KFC/model"
	"github.com/marcosotomac/LAST-KFC/service/order"
)

type fakeStore struct {
	orders    map[string]model.Order
	updates   []order.OrderUpdate
	updateErr error
}

func storeKey(tenantID, orderID string) string {
	return tenantID + "/" + orderID
}

func (f *fakeStore) GetOrder(_ context.Context, tenantID, orderID string) (model.Order, error) {
	o, ok := f.orders[storeKey(tenantID, orderID)]
	if !ok {
		return model.Order{}, order.ErrNotFound
	}
	return o, nil
}

func (f *fakeStore) UpdateOrder(_ context.Context, tenantID, orderID string, update order.OrderUpdate) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, update)

	o := f.orders[storeKey(tenantID, orderID)]
	if update.Status != nil {
		o.Status = *update.Status
	}
	if update.Trace != nil {
		o.Trace = *update.Trace
	}
	if update.PendingTokens != nil {
		o.PendingTokens = *update.PendingTokens
	}
	f.orders[storeKey(tenantID, orderID)] = o
	return nil
}

type fakeBus struct {
	published []string
	err       error
}

func (f *fakeBus) Publish(_ context.Context, _ string, detailType string, _ map[string]interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, detailType)
	return nil
}

type fakeOrchestrator struct {
	redeemed   []string
	failed     []string
	successErr error
}

func (f *fakeOrchestrator) StartExecution(_ context.Context, _ string, _ interface{}) (string, error) {
	return "arn:execution", nil
}

func (f *fakeOrchestrator) SendTaskSuccess(_ context.Context, token string, _ interface{}) error {
	f.redeemed = append(f.redeemed, token)
	return f.successErr
}

func (f *fakeOrchestrator) SendTaskFailure(_ context.Context, token string, _ string, _ string) error {
	f.failed = append(f.failed, token)
	return nil
}

func (f *fakeOrchestrator) SendTaskHeartbeat(_ context.Context, _ string) error {
	return nil
}

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log.WithField("component", "test")
}

func kitchenOrder() model.Order {
	o := model.Order{
		TenantID:      "tenant_1",
		OrderID:       "order_1",
		Status:        model.OrderPending,
		PendingTokens: model.TokenMap{},
	}
	o.AddTraceEvent("order_created", "")
	o.Status = model.OrderKitchen
	o.AddTraceEvent("kitchen_started", "")
	o.PendingTokens[model.StageKitchen] = "tok-1"
	return o
}

func Test_CompleteStage(t *testing.T) {
	store := &fakeStore{orders: map[string]model.Order{
		storeKey("tenant_1", "order_1"): kitchenOrder(),
	}}
	eventBus := &fakeBus{}
	orch := &fakeOrchestrator{}
	svc := NewService(store, eventBus, orch, testLogger())

	o, err := svc.CompleteStage(context.Background(), Request{
		TenantID:          "tenant_1",
		OrderID:           "order_1",
		Stage:             model.StageKitchen,
		ContinuationToken: "tok-1",
		Notes:             "Completed successfully",
	})

	assert.NoError(t, err)
	assert.Equal(t, model.OrderKitchen, o.Status)
	assert.Equal(t, "kitchen_completed", o.Trace[len(o.Trace)-1].Event)
	assert.Equal(t, "Completed successfully", o.Trace[len(o.Trace)-1].Details)
	assert.Empty(t, o.PendingTokens[model.StageKitchen])
	assert.Equal(t, []string{"tok-1"}, orch.redeemed)
	assert.Equal(t, []string{"order.kitchen.completed"}, eventBus.published)
}

func Test_CompleteStage_InvalidStage(t *testing.T) {
	store := &fakeStore{orders: map[string]model.Order{}}
	svc := NewService(store, &fakeBus{}, &fakeOrchestrator{}, testLogger())

	_, err := svc.CompleteStage(context.Background(), Request{
		TenantID: "tenant_1",
		OrderID:  "order_1",
		Stage:    model.Stage("drive-thru"),
	})

	assert.ErrorIs(t, err, ErrInvalidStage)
	assert.Empty(t, store.updates)
}

func Test_CompleteStage_OrderNotFound(t *testing.T) {
	svc := NewService(&fakeStore{orders: map[string]model.Order{}}, &fakeBus{}, &fakeOrchestrator{}, testLogger())

	_, err := svc.CompleteStage(context.Background(), Request{
		TenantID: "tenant_1",
		OrderID:  "order_missing",
		Stage:    model.StageKitchen,
	})

	assert.ErrorIs(t, err, order.ErrNotFound)
}

func Test_CompleteStage_TokenRedeemedAtMostOnce(t *testing.T) {
	store := &fakeStore{orders: map[string]model.Order{
		storeKey("tenant_1", "order_1"): kitchenOrder(),
	}}
	orch := &fakeOrchestrator{}
	svc := NewService(store, &fakeBus{}, orch, testLogger())

	req := Request{
		TenantID:          "tenant_1",
		OrderID:           "order_1",
		Stage:             model.StageKitchen,
		ContinuationToken: "tok-1",
	}

	_, err := svc.CompleteStage(context.Background(), req)
	assert.NoError(t, err)
	_, err = svc.CompleteStage(context.Background(), req)
	assert.NoError(t, err)

	assert.Equal(t, []string{"tok-1"}, orch.redeemed)
}

func Test_CompleteStage_FallsBackToParkedToken(t *testing.T) {
	store := &fakeStore{orders: map[string]model.Order{
		storeKey("tenant_1", "order_1"): kitchenOrder(),
	}}
	orch := &fakeOrchestrator{}
	svc := NewService(store, &fakeBus{}, orch, testLogger())

	_, err := svc.CompleteStage(context.Background(), Request{
		TenantID: "tenant_1",
		OrderID:  "order_1",
		Stage:    model.StageKitchen,
	})

	assert.NoError(t, err)
	assert.Equal(t, []string{"tok-1"}, orch.redeemed)
}

func Test_CompleteStage_RedemptionFailureDoesNotRollBack(t *testing.T) {
	store := &fakeStore{orders: map[string]model.Order{
		storeKey("tenant_1", "order_1"): kitchenOrder(),
	}}
	orch := &fakeOrchestrator{successErr: errors.New("task timed out")}
	svc := NewService(store, &fakeBus{}, orch, testLogger())

	o, err := svc.CompleteStage(context.Background(), Request{
		TenantID:          "tenant_1",
		OrderID:           "order_1",
		Stage:             model.StageKitchen,
		ContinuationToken: "tok-1",
	})

	assert.NoError(t, err)
	assert.True(t, o.HasTraceEvent("kitchen_completed"))
	assert.Len(t, store.updates, 1)
}

func Test_CompleteStage_DeliveryPublishesOrderDelivered(t *testing.T) {
	o := kitchenOrder()
	o.Status = model.OrderDelivery
	o.AddTraceEvent("delivery_started", "")
	o.PendingTokens[model.StageDelivery] = "tok-3"

	store := &fakeStore{orders: map[string]model.Order{
		storeKey("tenant_1", "order_1"): o,
	}}
	eventBus := &fakeBus{}
	svc := NewService(store, eventBus, &fakeOrchestrator{}, testLogger())

	_, err := svc.CompleteStage(context.Background(), Request{
		TenantID: "tenant_1",
		OrderID:  "order_1",
		Stage:    model.StageDelivery,
	})

	assert.NoError(t, err)
	assert.Equal(t, []string{"order.delivery.completed", "order.delivered"}, eventBus.published)
}

func Test_FailOrder(t *testing.T) {
	store := &fakeStore{orders: map[string]model.Order{
		storeKey("tenant_1", "order_1"): kitchenOrder(),
	}}
	eventBus := &fakeBus{}
	orch := &fakeOrchestrator{}
	svc := NewService(store, eventBus, orch, testLogger())

	o, err := svc.FailOrder(context.Background(), "tenant_1", "order_1", "kitchen closed")
	assert.NoError(t, err)

	assert.Equal(t, model.OrderFailed, o.Status)
	assert.Equal(t, "order_failed", o.Trace[len(o.Trace)-1].Event)
	assert.Equal(t, "kitchen closed", o.Trace[len(o.Trace)-1].Details)
	assert.Empty(t, o.PendingTokens)
	assert.Equal(t, []string{"tok-1"}, orch.failed)
	assert.Empty(t, orch.redeemed)
	assert.Equal(t, []string{"order.failed"}, eventBus.published)
}

func Test_FailOrder_TerminalOrderUnchanged(t *testing.T) {
	o := kitchenOrder()
	o.Status = model.OrderDelivered

	store := &fakeStore{orders: map[string]model.Order{
		storeKey("tenant_1", "order_1"): o,
	}}
	orch := &fakeOrchestrator{}
	svc := NewService(store, &fakeBus{}, orch, testLogger())

	got, err := svc.FailOrder(context.Background(), "tenant_1", "order_1", "too late")
	assert.NoError(t, err)

	assert.Equal(t, model.OrderDelivered, got.Status)
	assert.Empty(t, store.updates)
	assert.Empty(t, orch.failed)
}

func Test_CompleteStage_StoreFailurePropagates(t *testing.T) {
	store := &fakeStore{
		orders: map[string]model.Order{
			storeKey("tenant_1", "order_1"): kitchenOrder(),
		},
		updateErr: errors.New("store unavailable"),
	}
	orch := &fakeOrchestrator{}
	svc := NewService(store, &fakeBus{}, orch, testLogger())

	_, err := svc.CompleteStage(context.Background(), Request{
		TenantID:          "tenant_1",
		OrderID:           "order_1",
		Stage:             model.StageKitchen,
		ContinuationToken: "tok-1",
	})

	assert.Error(t, err)
	assert.Empty(t, orch.redeemed)
}
