package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"storefront/internal/model"
	"storefront/internal/service"
)

type Carts interface {
	Get(ctx context.Context, userID string) (model.Cart, error)
	Add(ctx context.Context, userID, productID string, qty int) (model.Cart, error)
	Update(ctx context.Context, userID, productID string, qty int) (model.Cart, error)
	Remove(ctx context.Context, userID, productID string) (model.Cart, error)
	Clear(ctx context.Context, userID string) (model.Cart, error)
}

type cartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func GetCartHandler(carts Carts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsOrUnauthorized(w, r)
		if !ok {
			return
		}
		cart, err := carts.Get(r.Context(), claims.UserID)
		respondCart(w, cart, err)
	}
}

func AddCartItemHandler(carts Carts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsOrUnauthorized(w, r)
		if !ok {
			return
		}
		var req cartItemRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Quantity == 0 {
			req.Quantity = 1
		}
		cart, err := carts.Add(r.Context(), claims.UserID, req.ProductID, req.Quantity)
		respondCart(w, cart, err)
	}
}

func UpdateCartItemHandler(carts Carts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsOrUnauthorized(w, r)
		if !ok {
			return
		}
		var req cartItemRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		cart, err := carts.Update(r.Context(), claims.UserID, chi.URLParam(r, "productID"), req.Quantity)
		respondCart(w, cart, err)
	}
}

func RemoveCartItemHandler(carts Carts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsOrUnauthorized(w, r)
		if !ok {
			return
		}
		cart, err := carts.Remove(r.Context(), claims.UserID, chi.URLParam(r, "productID"))
		respondCart(w, cart, err)
	}
}

func ClearCartHandler(carts Carts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsOrUnauthorized(w, r)
		if !ok {
			return
		}
		cart, err := carts.Clear(r.Context(), claims.UserID)
		respondCart(w, cart, err)
	}
}

func respondCart(w http.ResponseWriter, cart model.Cart, err error) {
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidQuantity):
			writeError(w, http.StatusBadRequest, "Quantity must be at least 1")
		case errors.Is(err, service.ErrProductNotFound):
			writeError(w, http.StatusNotFound, "Product not found")
		case errors.Is(err, service.ErrItemNotInCart):
			writeError(w, http.StatusNotFound, "Item not in cart")
		default:
			internalError(w, "cart operation failed", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "cart": cart.Items})
}
