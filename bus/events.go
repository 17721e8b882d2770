package bus

import (
	"context"

	"github.com/marcosotomac/LAST-KFC/model"
	"github.com/marcosotomac/LAST-KFC/order_event"
)

func PublishStageStarted(ctx context.Context, b IBus, tenantID, orderID string, stage model.Stage) error {
	return b.Publish(ctx, order_event.SourceOrders, order_event.StageStartedType(stage), map[string]interface{}{
		"tenantId": tenantID,
		"orderId":  orderID,
		"stage":    string(stage),
	})
}

func PublishStageCompleted(ctx context.Context, b IBus, tenantID, orderID string, stage model.Stage) error {
	return b.Publish(ctx, order_event.SourceOrders, order_event.StageCompletedType(stage), map[string]interface{}{
		"tenantId": tenantID,
		"orderId":  orderID,
		"stage":    string(stage),
	})
}

func PublishOrderDelivered(ctx context.Context, b IBus, tenantID, orderID string) error {
	return b.Publish(ctx, order_event.SourceOrders, order_event.TypeOrderDelivered, map[string]interface{}{
		"tenantId": tenantID,
		"orderId":  orderID,
	})
}

func PublishOrderFailed(ctx context.Context, b IBus, tenantID, orderID string, reason string) error {
	return b.Publish(ctx, order_event.SourceOrders, order_event.TypeOrderFailed, map[string]interface{}{
		"tenantId": tenantID,
		"orderId":  orderID,
		"error":    reason,
	})
}
