package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"storefront/internal/model"
	"storefront/internal/service"
)

type Checkouts interface {
	Start(ctx context.Context, userID, email string, items []model.CartItem) (*service.CheckoutSession, error)
}

type OrderFinder interface {
	FindByID(ctx context.Context, id string) (*model.Order, error)
}

type checkoutRequest struct {
	Items []cartItemRequest `json:"items"`
	Email string            `json:"email"`
}

func CreateCheckoutSessionHandler(checkouts Checkouts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsOrUnauthorized(w, r)
		if !ok {
			return
		}
		var req checkoutRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		items := make([]model.CartItem, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, model.CartItem{ProductID: it.ProductID, Quantity: it.Quantity})
		}
		email := req.Email
		if email == "" {
			email = claims.Email
		}

		sess, err := checkouts.Start(r.Context(), claims.UserID, email, items)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrEmptyCheckout):
				writeError(w, http.StatusBadRequest, "Cart is empty")
			case errors.Is(err, service.ErrInvalidQuantity):
				writeError(w, http.StatusBadRequest, "Quantity must be at least 1")
			case errors.Is(err, service.ErrUnknownProduct):
				writeError(w, http.StatusBadRequest, err.Error())
			default:
				internalError(w, "create checkout session failed", err)
			}
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"url": sess.URL})
	}
}

// CheckoutSessionHandler lets the success page poll for the order the
// webhook recorded. It never creates one.
func CheckoutSessionHandler(orders OrderFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsOrUnauthorized(w, r)
		if !ok {
			return
		}
		order, err := orders.FindByID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, service.ErrOrderNotFound) {
				writeError(w, http.StatusNotFound, "Order not recorded yet")
				return
			}
			internalError(w, "get checkout session failed", err)
			return
		}
		if order.UserID != claims.UserID && !claims.IsAdmin() {
			writeError(w, http.StatusNotFound, "Order not recorded yet")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "order": order})
	}
}
