package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/marcosotomac/LAST-KFC/service/completion"
	"github.com/marcosotomac/LAST-KFC/service/order"
	"github.com/marcosotomac/LAST-KFC/service/registry"
)

// apiHandler lets handlers return errors; translation to a response envelope
// happens in exactly one place.
type apiHandler func(w http.ResponseWriter, r *http.Request) error

// statusError carries an already-translated status and code.
type statusError struct {
	status  int
	code    string
	message string
}

func (e statusError) Error() string {
	return e.message
}

func httpError(status int, code, message string) error {
	return statusError{status: status, code: code, message: message}
}

// handle builds the request pipeline: metrics and logging on the outside,
// tenant validation next, the handler last, with error translation applied to
// whatever comes back.
func (s *Server) handle(name string, tenantScoped bool, h apiHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		err := s.validateTenant(r, tenantScoped)
		if err == nil {
			err = h(rec, r)
		}
		if err != nil {
			s.translateError(rec, err)
		}

		duration := time.Since(start)
		httpRequestsTotal.WithLabelValues(name, r.Method, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(name).Observe(duration.Seconds())

		entry := s.log.WithFields(logrus.Fields{
			"handler":  name,
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": duration.String(),
		})
		if err != nil {
			entry.WithError(err).Error("request failed")
		} else {
			entry.Info("request completed")
		}
	})
}

func (s *Server) validateTenant(r *http.Request, tenantScoped bool) error {
	if !tenantScoped {
		return nil
	}

	tenantID := r.PathValue("tenantId")
	if tenantID == "" {
		return httpError(http.StatusBadRequest, "MISSING_TENANT_ID", "Tenant ID is required")
	}

	exists, err := s.tenants.TenantExists(r.Context(), tenantID)
	if err != nil {
		return fmt.Errorf("tenant lookup: %w", err)
	}
	if !exists {
		return httpError(http.StatusNotFound, "TENANT_NOT_FOUND", fmt.Sprintf("Tenant %s not found", tenantID))
	}
	return nil
}

func (s *Server) translateError(w http.ResponseWriter, err error) {
	var se statusError
	switch {
	case errors.As(err, &se):
		writeError(w, se.status, se.code, se.message)
	case errors.Is(err, order.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, completion.ErrInvalidStage):
		writeError(w, http.StatusBadRequest, "INVALID_STAGE", "Invalid stage. Must be one of: kitchen, packaging, delivery")
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Order not found")
	case errors.Is(err, registry.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Connection not found")
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
