package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/model"
)

var (
	ErrEmptyCheckout  = errors.New("no items to check out")
	ErrUnknownProduct = errors.New("unknown product in checkout")
)

type CheckoutCreator interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

type CartReader interface {
	Get(ctx context.Context, userID string) (model.Cart, error)
}

// CheckoutService opens hosted checkout sessions. Names and prices are taken
// from the catalog; the client only chooses products and quantities.
type CheckoutService struct {
	products  ProductLookup
	carts     CartReader
	provider  CheckoutCreator
	clientURL string
	currency  string
}

func NewCheckoutService(products ProductLookup, carts CartReader, provider CheckoutCreator, clientURL string) *CheckoutService {
	return &CheckoutService{
		products:  products,
		carts:     carts,
		provider:  provider,
		clientURL: clientURL,
		currency:  "usd",
	}
}

// Start creates a session for items, or for the user's stored cart when
// items is empty.
func (s *CheckoutService) Start(ctx context.Context, userID, email string, items []model.CartItem) (*CheckoutSession, error) {
	if len(items) == 0 {
		cart, err := s.carts.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		items = cart.Items
	}
	if len(items) == 0 {
		return nil, ErrEmptyCheckout
	}

	req := CheckoutRequest{
		UserID:        userID,
		CustomerEmail: email,
		Currency:      s.currency,
		SuccessURL:    s.clientURL + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     s.clientURL + "/cart?canceled=true",
	}
	for _, it := range items {
		if it.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
		p, err := s.products.Get(ctx, it.ProductID)
		if err != nil {
			if errors.Is(err, ErrProductNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, it.ProductID)
			}
			return nil, err
		}
		req.Items = append(req.Items, CheckoutItem{
			ProductID:      p.ID,
			Name:           p.Name,
			Image:          p.Image,
			UnitPriceCents: p.PriceCents,
			Quantity:       int64(it.Quantity),
		})
	}

	return s.provider.CreateCheckoutSession(ctx, req)
}
