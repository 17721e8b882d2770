package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/marcosotomac/LAST-KFC/model"
	"github.com/marcosotomac/LAST-KFC/service/completion"
	"github.com/marcosotomac/LAST-KFC/service/order"
)

type fakeOrderService struct {
	orders map[string]model.Order
}

func (f *fakeOrderService) CreateOrder(_ context.Context, tenantID string, req order.CreateOrderRequest) (model.Order, error) {
	if err := req.Validate(); err != nil {
		return model.Order{}, err
	}
	o := model.Order{
		TenantID:     tenantID,
		OrderID:      "order_test1234567890",
		Status:       model.OrderPending,
		Items:        req.Items,
		CustomerName: req.CustomerName,
	}
	o.CalculateTotal()
	return o, nil
}

func (f *fakeOrderService) GetOrder(_ context.Context, tenantID, orderID string) (model.Order, error) {
	o, ok := f.orders[tenantID+"/"+orderID]
	if !ok {
		return model.Order{}, order.ErrNotFound
	}
	return o, nil
}

func (f *fakeOrderService) ListOrders(_ context.Context, tenantID string, _ model.OrderStatus, _ int) ([]model.Order, error) {
	var res []model.Order
	for _, o := range f.orders {
		if o.TenantID == tenantID {
			res = append(res, o)
		}
	}
	return res, nil
}

func (f *fakeOrderService) RelayOutbox(_ context.Context, _ int) error {
	return nil
}

type fakeCompletionService struct {
	requests []completion.Request
	failed   []string
}

func (f *fakeCompletionService) CompleteStage(_ context.Context, req completion.Request) (model.Order, error) {
	if !req.Stage.Valid() {
		return model.Order{}, completion.ErrInvalidStage
	}
	f.requests = append(f.requests, req)
	return model.Order{
		TenantID: req.TenantID,
		OrderID:  req.OrderID,
		Status:   req.Stage.Status(),
	}, nil
}

func (f *fakeCompletionService) FailOrder(_ context.Context, tenantID, orderID, reason string) (model.Order, error) {
	f.failed = append(f.failed, reason)
	return model.Order{
		TenantID: tenantID,
		OrderID:  orderID,
		Status:   model.OrderFailed,
	}, nil
}

type fakeRegistryService struct{}

func (f *fakeRegistryService) Register(_ context.Context, tenantID, connectionID, userID, role string) (model.Connection, error) {
	return model.Connection{TenantID: tenantID, ConnectionID: connectionID}, nil
}

func (f *fakeRegistryService) Renew(_ context.Context, connectionID string) (model.Connection, error) {
	return model.Connection{ConnectionID: connectionID}, nil
}

func (f *fakeRegistryService) Remove(_ context.Context, _ string) error {
	return nil
}

func (f *fakeRegistryService) ListByTenant(_ context.Context, _ string, _ string) ([]model.Connection, error) {
	return nil, nil
}

type fakeTenants struct {
	known map[string]bool
}

func (f *fakeTenants) TenantExists(_ context.Context, tenantID string) (bool, error) {
	return f.known[tenantID], nil
}

func testServer(completions *fakeCompletionService) *Server {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	return New(
		&fakeOrderService{orders: map[string]model.Order{}},
		completions,
		&fakeRegistryService{},
		&fakeTenants{known: map[string]bool{"tenant_1": true}},
		log.WithField("component", "test"),
	)
}

func doRequest(t *testing.T, srv *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	var decoded map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &decoded)
	return rec, decoded
}

func Test_CreateOrderEndpoint(t *testing.T) {
	srv := testServer(&fakeCompletionService{})

	rec, body := doRequest(t, srv, http.MethodPost, "/tenants/tenant_1/orders",
		`{"items":[{"productId":"prod_1","quantity":2,"price":15.99,"name":"Bucket Original"}],"customerName":"Juan"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, body["success"])
}

func Test_CreateOrderEndpoint_MalformedBody(t *testing.T) {
	srv := testServer(&fakeCompletionService{})

	rec, body := doRequest(t, srv, http.MethodPost, "/tenants/tenant_1/orders", "{not json")

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
}

func Test_CreateOrderEndpoint_UnknownTenant(t *testing.T) {
	srv := testServer(&fakeCompletionService{})

	rec, body := doRequest(t, srv, http.MethodPost, "/tenants/tenant_ghost/orders",
		`{"items":[{"productId":"p","quantity":1,"price":1,"name":"x"}],"customerName":"Juan"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "TENANT_NOT_FOUND", body["code"])
}

func Test_GetOrderEndpoint_NotFound(t *testing.T) {
	srv := testServer(&fakeCompletionService{})

	rec, body := doRequest(t, srv, http.MethodGet, "/tenants/tenant_1/orders/order_missing", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func Test_CompleteStageEndpoint(t *testing.T) {
	completions := &fakeCompletionService{}
	srv := testServer(completions)

	rec, body := doRequest(t, srv, http.MethodPost,
		"/tenants/tenant_1/orders/order_1/stages/kitchen/complete",
		`{"continuationToken":"tok-1","notes":"done"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Len(t, completions.requests, 1)
	assert.Equal(t, "tok-1", completions.requests[0].ContinuationToken)
	assert.Equal(t, model.StageKitchen, completions.requests[0].Stage)
}

func Test_CompleteStageEndpoint_InvalidStage(t *testing.T) {
	srv := testServer(&fakeCompletionService{})

	rec, body := doRequest(t, srv, http.MethodPost,
		"/tenants/tenant_1/orders/order_1/stages/drive-thru/complete", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_STAGE", body["code"])
}

func Test_FailOrderEndpoint(t *testing.T) {
	completions := &fakeCompletionService{}
	srv := testServer(completions)

	rec, body := doRequest(t, srv, http.MethodPost,
		"/tenants/tenant_1/orders/order_1/fail", `{"reason":"kitchen closed"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, []string{"kitchen closed"}, completions.failed)
}

func Test_HealthEndpoint(t *testing.T) {
	srv := testServer(&fakeCompletionService{})

	rec, _ := doRequest(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
