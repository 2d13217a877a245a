package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79/webhook"

	"storefront/internal/metrics"
	"storefront/internal/model"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

const eventCheckoutCompleted = "checkout.session.completed"

type Outcome string

const (
	OutcomeIgnored   Outcome = "ignored"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeRecorded  Outcome = "recorded"
)

type OrderStore interface {
	FindByID(ctx context.Context, id string) (*model.Order, error)
	Create(ctx context.Context, o *model.Order) error
}

type LineItemLister interface {
	ListLineItems(ctx context.Context, sessionID string) ([]LineItem, error)
}

type OrderNotifier interface {
	NotifyOrder(ctx context.Context, o *model.Order)
}

// Reconciler turns verified checkout-completed events into stored orders.
// Order contents always come from the provider's own line items.
type Reconciler struct {
	secret   string
	orders   OrderStore
	provider LineItemLister
	notifier OrderNotifier
	metrics  *metrics.Metrics
}

func NewReconciler(secret string, orders OrderStore, provider LineItemLister, notifier OrderNotifier, m *metrics.Metrics) *Reconciler {
	return &Reconciler{
		secret:   secret,
		orders:   orders,
		provider: provider,
		notifier: notifier,
		metrics:  m,
	}
}

type checkoutSession struct {
	ID              string            `json:"id"`
	AmountTotal     int64             `json:"amount_total"`
	Currency        string            `json:"currency"`
	Metadata        map[string]string `json:"metadata"`
	CustomerDetails *struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"customer_details"`
	ShippingDetails      *shippingDetails `json:"shipping_details"`
	CollectedInformation *struct {
		ShippingDetails *shippingDetails `json:"shipping_details"`
	} `json:"collected_information"`
}

type shippingDetails struct {
	Name    string         `json:"name"`
	Address *model.Address `json:"address"`
}

// HandleEvent verifies payload against the signature header and records the
// order for a completed checkout. A replayed session yields OutcomeDuplicate.
func (r *Reconciler) HandleEvent(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, r.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		r.metrics.WebhookOutcome("invalid_signature")
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if string(event.Type) != eventCheckoutCompleted {
		slog.Info("unhandled webhook event", "type", event.Type, "event_id", event.ID)
		r.metrics.WebhookOutcome(string(OutcomeIgnored))
		return OutcomeIgnored, nil
	}

	var raw json.RawMessage
	if event.Data != nil {
		raw = event.Data.Raw
	}
	outcome, err := r.reconcile(ctx, raw)
	if err != nil {
		r.metrics.WebhookOutcome("error")
		return "", err
	}
	r.metrics.WebhookOutcome(string(outcome))
	return outcome, nil
}

func (r *Reconciler) reconcile(ctx context.Context, raw json.RawMessage) (Outcome, error) {
	var cs checkoutSession
	if err := json.Unmarshal(raw, &cs); err != nil {
		return "", fmt.Errorf("decode checkout session: %w", err)
	}
	if cs.ID == "" {
		return "", errors.New("checkout session without id")
	}

	// Fast path for redeliveries: skips the provider round trip. The
	// conditional insert below is what actually guarantees a single order.
	if _, err := r.orders.FindByID(ctx, cs.ID); err == nil {
		slog.Info("order already exists, skipping", "session_id", cs.ID)
		return OutcomeDuplicate, nil
	} else if !errors.Is(err, ErrOrderNotFound) {
		return "", fmt.Errorf("check order %s: %w", cs.ID, err)
	}

	lines, err := r.provider.ListLineItems(ctx, cs.ID)
	if err != nil {
		return "", fmt.Errorf("fetch line items: %w", err)
	}

	order := buildOrder(cs, lines)
	if sum := order.ItemsTotalCents(); sum != order.TotalCents {
		// shipping, tax and discounts are charged outside the line items
		slog.Warn("line items do not add up to session total",
			"session_id", cs.ID, "items_cents", sum, "total_cents", order.TotalCents)
	}
	if err := r.orders.Create(ctx, order); err != nil {
		if errors.Is(err, ErrOrderExists) {
			slog.Info("order recorded concurrently, skipping", "session_id", cs.ID)
			return OutcomeDuplicate, nil
		}
		return "", fmt.Errorf("save order %s: %w", cs.ID, err)
	}
	slog.Info("order saved", "order_id", order.ID, "user_id", order.UserID, "total_cents", order.TotalCents)

	// The order is durable at this point; the caller must not see mail failures.
	r.notifier.NotifyOrder(context.WithoutCancel(ctx), order)
	return OutcomeRecorded, nil
}

func buildOrder(cs checkoutSession, lines []LineItem) *model.Order {
	userID := cs.Metadata["userId"]
	if userID == "" {
		userID = model.GuestUserID
	}

	items := make([]model.OrderItem, 0, len(lines))
	for _, li := range lines {
		qty := li.Quantity
		if qty < 1 {
			qty = 1
		}
		items = append(items, model.OrderItem{
			ProductID:      li.ProductID,
			Name:           li.Name,
			Quantity:       qty,
			UnitPriceCents: UnitPrice(li.AmountTotal, qty),
			LineTotalCents: max(li.AmountTotal, 0),
		})
	}

	total := cs.AmountTotal
	if total < 0 {
		total = 0
	}
	currency := cs.Currency
	if currency == "" {
		currency = "usd"
	}

	o := &model.Order{
		ID:         cs.ID,
		UserID:     userID,
		Items:      items,
		TotalCents: total,
		Currency:   currency,
		Status:     model.StatusPaid,
	}
	if cs.CustomerDetails != nil {
		o.CustomerEmail = cs.CustomerDetails.Email
		o.CustomerName = cs.CustomerDetails.Name
	}

	shipping := cs.ShippingDetails
	if shipping == nil && cs.CollectedInformation != nil {
		shipping = cs.CollectedInformation.ShippingDetails
	}
	if shipping != nil && shipping.Address != nil {
		o.ShippingAddress = shipping.Address
		if o.CustomerName == "" {
			o.CustomerName = shipping.Name
		}
	}
	return o
}

// UnitPrice recovers the per-unit price from a line's charged total,
// rounding half away from zero to the nearest minor unit.
func UnitPrice(lineTotal, quantity int64) int64 {
	if quantity < 1 {
		quantity = 1
	}
	if lineTotal <= 0 {
		return 0
	}
	return decimal.NewFromInt(lineTotal).
		Div(decimal.NewFromInt(quantity)).
		Round(0).
		IntPart()
}
