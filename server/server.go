package server

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/marcosotomac/LAST-KFC/service/completion"
	"github.com/marcosotomac/LAST-KFC/service/order"
	"github.com/marcosotomac/LAST-KFC/service/registry"
)

// TenantChecker is the slice of the record store the tenant-validation
// middleware needs.
type TenantChecker interface {
	TenantExists(ctx context.Context, tenantID string) (bool, error)
}

type Server struct {
	orders      order.IService
	completions completion.IService
	connections registry.IService
	tenants     TenantChecker
	log         *logrus.Entry
}

func New(
	orders order.IService,
	completions completion.IService,
	connections registry.IService,
	tenants TenantChecker,
	log *logrus.Entry,
) *Server {
	registerMetrics()
	return &Server{
		orders:      orders,
		completions: completions,
		connections: connections,
		tenants:     tenants,
		log:         log,
	}
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("POST /tenants/{tenantId}/orders", s.handle("create_order", true, s.handleCreateOrder))
	mux.Handle("GET /tenants/{tenantId}/orders", s.handle("list_orders", true, s.handleListOrders))
	mux.Handle("GET /tenants/{tenantId}/orders/{orderId}", s.handle("get_order", true, s.handleGetOrder))
	mux.Handle("POST /tenants/{tenantId}/orders/{orderId}/stages/{stage}/complete",
		s.handle("complete_stage", true, s.handleCompleteStage))
	mux.Handle("POST /tenants/{tenantId}/orders/{orderId}/fail", s.handle("fail_order", true, s.handleFailOrder))

	mux.Handle("POST /tenants/{tenantId}/connections", s.handle("register_connection", true, s.handleRegisterConnection))
	mux.Handle("POST /connections/{connectionId}/ping", s.handle("ping_connection", false, s.handlePing))
	mux.Handle("DELETE /connections/{connectionId}", s.handle("disconnect", false, s.handleDisconnect))

	mux.Handle("GET /health", s.handle("health", false, s.handleHealth))
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.log.WithField("addr", addr).Info("http server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
