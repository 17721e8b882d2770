package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/marcosotomac/LAST-KFC/model"
	"github.com/marcosotomac/LAST-KFC/service/completion"
	"github.com/marcosotomac/LAST-KFC/service/order"
)

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) error {
	var req order.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return fmt.Errorf("%w: invalid JSON body", order.ErrValidation)
	}

	o, err := s.orders.CreateOrder(r.Context(), r.PathValue("tenantId"), req)
	if err != nil {
		return err
	}

	writeSuccess(w, http.StatusCreated, o)
	return nil
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) error {
	o, err := s.orders.GetOrder(r.Context(), r.PathValue("tenantId"), r.PathValue("orderId"))
	if err != nil {
		return err
	}

	writeSuccess(w, http.StatusOK, o)
	return nil
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) error {
	status := model.OrderStatus(r.URL.Query().Get("status"))

	orders, err := s.orders.ListOrders(r.Context(), r.PathValue("tenantId"), status, 100)
	if err != nil {
		return err
	}
	if orders == nil {
		orders = []model.Order{}
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"orders": orders,
		"count":  len(orders),
	})
	return nil
}

type completeStageBody struct {
	ContinuationToken string `json:"continuationToken"`
	Notes             string `json:"notes"`
}

func (s *Server) handleCompleteStage(w http.ResponseWriter, r *http.Request) error {
	var body completeStageBody
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return fmt.Errorf("%w: invalid JSON body", order.ErrValidation)
		}
	}

	o, err := s.completions.CompleteStage(r.Context(), completion.Request{
		TenantID:          r.PathValue("tenantId"),
		OrderID:           r.PathValue("orderId"),
		Stage:             model.Stage(r.PathValue("stage")),
		ContinuationToken: body.ContinuationToken,
		Notes:             body.Notes,
	})
	if err != nil {
		return err
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"message": fmt.Sprintf("Stage %s completed successfully", r.PathValue("stage")),
		"order":   o,
	})
	return nil
}

type failOrderBody struct {
	Reason string `json:"reason"`
}

func (s *Server) handleFailOrder(w http.ResponseWriter, r *http.Request) error {
	var body failOrderBody
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return fmt.Errorf("%w: invalid JSON body", order.ErrValidation)
		}
	}
	if body.Reason == "" {
		body.Reason = "failed by operator"
	}

	o, err := s.completions.FailOrder(r.Context(), r.PathValue("tenantId"), r.PathValue("orderId"), body.Reason)
	if err != nil {
		return err
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"message": "Order failed",
		"order":   o,
	})
	return nil
}

type registerConnectionBody struct {
	ConnectionID string `json:"connectionId"`
	UserID       string `json:"userId"`
	Role         string `json:"role"`
}

func (s *Server) handleRegisterConnection(w http.ResponseWriter, r *http.Request) error {
	var body registerConnectionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: invalid JSON body", order.ErrValidation)
	}
	if body.ConnectionID == "" {
		body.ConnectionID = uuid.New().String()
	}

	conn, err := s.connections.Register(r.Context(), r.PathValue("tenantId"), body.ConnectionID, body.UserID, body.Role)
	if err != nil {
		return err
	}

	writeSuccess(w, http.StatusCreated, conn)
	return nil
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) error {
	conn, err := s.connections.Renew(r.Context(), r.PathValue("connectionId"))
	if err != nil {
		return err
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"message":   "pong",
		"expiresAt": conn.ExpiresAt,
	})
	return nil
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) error {
	if err := s.connections.Remove(r.Context(), r.PathValue("connectionId")); err != nil {
		return err
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"message": "disconnected",
	})
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) error {
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
	})
	return nil
}
