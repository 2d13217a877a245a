package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"storefront/internal/model"
	"storefront/internal/service"
)

type Catalog interface {
	List(ctx context.Context) ([]model.Product, error)
	Get(ctx context.Context, id string) (*model.Product, error)
	Create(ctx context.Context, in service.ProductInput) (*model.Product, error)
	Update(ctx context.Context, id string, in service.ProductInput) (*model.Product, error)
	Delete(ctx context.Context, id string) error
	Rearrange(ctx context.Context, ids []string) error
}

func ListProductsHandler(catalog Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		products, err := catalog.List(r.Context())
		if err != nil {
			internalError(w, "list products failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"products": products})
	}
}

func GetProductHandler(catalog Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := catalog.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			productError(w, "get product failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": p})
	}
}

func CreateProductHandler(catalog Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.ProductInput
		if !decodeJSON(w, r, &in) {
			return
		}
		p, err := catalog.Create(r.Context(), in)
		if err != nil {
			productError(w, "create product failed", err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"product": p})
	}
}

func UpdateProductHandler(catalog Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.ProductInput
		if !decodeJSON(w, r, &in) {
			return
		}
		p, err := catalog.Update(r.Context(), chi.URLParam(r, "id"), in)
		if err != nil {
			productError(w, "update product failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": p})
	}
}

func DeleteProductHandler(catalog Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := catalog.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			productError(w, "delete product failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "Product deleted"})
	}
}

func RearrangeProductsHandler(catalog Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ProductIDs []string `json:"productIds"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.ProductIDs == nil {
			writeError(w, http.StatusBadRequest, "Invalid productIds array")
			return
		}
		if err := catalog.Rearrange(r.Context(), req.ProductIDs); err != nil {
			productError(w, "rearrange products failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "Products reordered"})
	}
}

func productError(w http.ResponseWriter, logMsg string, err error) {
	if msg, ok := validationMessage(err); ok {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if errors.Is(err, service.ErrProductNotFound) {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}
	internalError(w, logMsg, err)
}
