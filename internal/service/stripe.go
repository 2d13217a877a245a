package service

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// productIDKey is the Stripe product metadata key carrying our catalog id.
const productIDKey = "product_id"

const (
	unknownProductID   = "unknown"
	unknownProductName = "Unknown Product"
)

// LineItem is one purchased line as recorded by the payment provider.
type LineItem struct {
	ProductID   string
	Name        string
	Quantity    int64
	AmountTotal int64
}

type CheckoutItem struct {
	ProductID      string
	Name           string
	Image          string
	UnitPriceCents int64
	Quantity       int64
}

type CheckoutRequest struct {
	UserID        string
	CustomerEmail string
	Currency      string
	Items         []CheckoutItem
	SuccessURL    string
	CancelURL     string
}

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type StripeClient struct {
	api     *client.API
	timeout time.Duration
}

func NewStripeClient(secretKey string, timeout time.Duration) *StripeClient {
	return &StripeClient{
		api:     client.New(secretKey, nil),
		timeout: timeout,
	}
}

func (c *StripeClient) ListLineItems(ctx context.Context, sessionID string) ([]LineItem, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionListLineItemsParams{Session: stripe.String(sessionID)}
	params.Context = ctx
	params.Limit = stripe.Int64(100)
	params.AddExpand("data.price.product")

	var out []LineItem
	it := c.api.CheckoutSessions.ListLineItems(params)
	for it.Next() {
		out = append(out, toLineItem(it.LineItem()))
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("list line items for %s: %w", sessionID, err)
	}
	return out, nil
}

func (c *StripeClient) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		ShippingAddressCollection: &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice([]string{"US"}),
		},
	}
	params.Context = ctx
	params.AddMetadata("userId", req.UserID)
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}

	for _, it := range req.Items {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name:     stripe.String(it.Name),
			Metadata: map[string]string{productIDKey: it.ProductID},
		}
		if it.Image != "" {
			product.Images = stripe.StringSlice([]string{it.Image})
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(req.Currency),
				ProductData: product,
				UnitAmount:  stripe.Int64(it.UnitPriceCents),
			},
			Quantity: stripe.Int64(it.Quantity),
		})
	}

	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

func toLineItem(li *stripe.LineItem) LineItem {
	out := LineItem{
		ProductID:   unknownProductID,
		Name:        li.Description,
		Quantity:    li.Quantity,
		AmountTotal: li.AmountTotal,
	}
	if out.Name == "" {
		out.Name = unknownProductName
	}
	if li.Price != nil && li.Price.Product != nil {
		if id := li.Price.Product.Metadata[productIDKey]; id != "" {
			out.ProductID = id
		} else if li.Price.Product.ID != "" {
			out.ProductID = li.Price.Product.ID
		}
	}
	return out
}
