package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/model"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrItemNotInCart   = errors.New("product not in cart")
)

// CartStore persists per-user quantities keyed by product id.
type CartStore interface {
	Load(ctx context.Context, userID string) ([]model.CartItem, error)
	Increment(ctx context.Context, userID, productID string, delta int) error
	Set(ctx context.Context, userID, productID string, qty int) error
	Remove(ctx context.Context, userID, productID string) (bool, error)
	Clear(ctx context.Context, userID string) error
}

type ProductLookup interface {
	Get(ctx context.Context, id string) (*model.Product, error)
}

// CartService exposes the cart as immutable snapshots, independent of where
// the items are kept.
type CartService struct {
	store    CartStore
	products ProductLookup
}

func NewCartService(store CartStore, products ProductLookup) *CartService {
	return &CartService{store: store, products: products}
}

func (s *CartService) Get(ctx context.Context, userID string) (model.Cart, error) {
	items, err := s.store.Load(ctx, userID)
	if err != nil {
		return model.Cart{}, fmt.Errorf("load cart: %w", err)
	}
	return model.NewCart(userID, items), nil
}

func (s *CartService) Add(ctx context.Context, userID, productID string, qty int) (model.Cart, error) {
	if qty < 1 {
		return model.Cart{}, ErrInvalidQuantity
	}
	if _, err := s.products.Get(ctx, productID); err != nil {
		return model.Cart{}, err
	}
	if err := s.store.Increment(ctx, userID, productID, qty); err != nil {
		return model.Cart{}, fmt.Errorf("add to cart: %w", err)
	}
	return s.Get(ctx, userID)
}

func (s *CartService) Update(ctx context.Context, userID, productID string, qty int) (model.Cart, error) {
	if qty < 1 {
		return model.Cart{}, ErrInvalidQuantity
	}
	cart, err := s.Get(ctx, userID)
	if err != nil {
		return model.Cart{}, err
	}
	if cart.Quantity(productID) == 0 {
		return model.Cart{}, ErrItemNotInCart
	}
	if err := s.store.Set(ctx, userID, productID, qty); err != nil {
		return model.Cart{}, fmt.Errorf("update cart: %w", err)
	}
	return s.Get(ctx, userID)
}

func (s *CartService) Remove(ctx context.Context, userID, productID string) (model.Cart, error) {
	if _, err := s.store.Remove(ctx, userID, productID); err != nil {
		return model.Cart{}, fmt.Errorf("remove from cart: %w", err)
	}
	return s.Get(ctx, userID)
}

func (s *CartService) Clear(ctx context.Context, userID string) (model.Cart, error) {
	if err := s.store.Clear(ctx, userID); err != nil {
		return model.Cart{}, fmt.Errorf("clear cart: %w", err)
	}
	return model.NewCart(userID, nil), nil
}
