package order_event

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marcosotomac/LAST-KFC/model"
)

func Test_NewEnvelope_StampsTimestamp(t *testing.T) {
	env := NewEnvelope(SourceOrders, TypeOrderCreated, map[string]interface{}{
		"tenantId": "tenant_1",
	})

	assert.Equal(t, SourceOrders, env.Source)
	assert.NotEmpty(t, env.Detail["timestamp"])
	assert.Equal(t, "tenant_1", env.TenantID())
}

func Test_NewEnvelope_KeepsCallerTimestamp(t *testing.T) {
	env := NewEnvelope(SourceOrders, TypeOrderCreated, map[string]interface{}{
		"timestamp": "2024-01-01T00:00:00Z",
	})

	assert.Equal(t, "2024-01-01T00:00:00Z", env.Detail["timestamp"])
}

func Test_Envelope_TenantID_Missing(t *testing.T) {
	env := NewEnvelope(SourceOrders, TypeOrderCreated, nil)
	assert.Empty(t, env.TenantID())
}

func Test_StageEventTypes(t *testing.T) {
	assert.Equal(t, "order.kitchen.started", StageStartedType(model.StageKitchen))
	assert.Equal(t, "order.delivery.completed", StageCompletedType(model.StageDelivery))
}
