package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"storefront/internal/model"
	"storefront/internal/service"
)

const adminOrdersLimit = 100

type Orders interface {
	FindByID(ctx context.Context, id string) (*model.Order, error)
	ListByUser(ctx context.Context, userID string) ([]model.Order, error)
	ListRecent(ctx context.Context, limit int) ([]model.Order, error)
	UpdateStatus(ctx context.Context, id string, status model.OrderStatus) (*model.Order, error)
}

func ListOrdersHandler(orders Orders) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsOrUnauthorized(w, r)
		if !ok {
			return
		}
		list, err := orders.ListByUser(r.Context(), claims.UserID)
		if err != nil {
			internalError(w, "list orders failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "orders": list})
	}
}

func GetOrderHandler(orders Orders) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsOrUnauthorized(w, r)
		if !ok {
			return
		}
		order, err := orders.FindByID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, service.ErrOrderNotFound) {
				writeError(w, http.StatusNotFound, "Order not found")
				return
			}
			internalError(w, "get order failed", err)
			return
		}
		if order.UserID != claims.UserID {
			writeError(w, http.StatusNotFound, "Order not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "order": order})
	}
}

func UpdateOrderStatusHandler(orders Orders) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Status model.OrderStatus `json:"status"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}

		order, err := orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidStatus):
				writeError(w, http.StatusBadRequest, "Invalid status")
			case errors.Is(err, service.ErrOrderNotFound):
				writeError(w, http.StatusNotFound, "Order not found")
			default:
				internalError(w, "update order status failed", err)
			}
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "order": order})
	}
}

func AdminOrdersHandler(orders Orders) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := orders.ListRecent(r.Context(), adminOrdersLimit)
		if err != nil {
			internalError(w, "list admin orders failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "orders": list})
	}
}
