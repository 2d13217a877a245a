package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79/webhook"

	"storefront/internal/model"
	"storefront/internal/service"
)

const webhookSecret = "whsec_handler_test"

type memOrders struct {
	mu        sync.Mutex
	orders    map[string]*model.Order
	findErr   error
	createErr error
}

func (m *memOrders) FindByID(_ context.Context, id string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	if o, ok := m.orders[id]; ok {
		return o, nil
	}
	return nil, service.ErrOrderNotFound
}

func (m *memOrders) Create(_ context.Context, o *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.orders[o.ID]; ok {
		return service.ErrOrderExists
	}
	m.orders[o.ID] = o
	return nil
}

type staticLines struct {
	lines []service.LineItem
	err   error
}

func (s staticLines) ListLineItems(context.Context, string) ([]service.LineItem, error) {
	return s.lines, s.err
}

type countingNotifier struct {
	mu    sync.Mutex
	count int
}

func (c *countingNotifier) NotifyOrder(context.Context, *model.Order) {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
}

type downMailer struct {
	mu    sync.Mutex
	calls int
}

func (d *downMailer) Send(context.Context, string, string, string) error {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	return errors.New("smtp: connection refused")
}

func completedEvent(t *testing.T) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":     "evt_handler",
		"object": "event",
		"type":   "checkout.session.completed",
		"data": map[string]any{"object": map[string]any{
			"id":               "cs_handler_1",
			"object":           "checkout.session",
			"amount_total":     4500,
			"currency":         "usd",
			"metadata":         map[string]string{"userId": "u-1"},
			"customer_details": map[string]any{"email": "buyer@example.com"},
		}},
	})
	require.NoError(t, err)
	return payload
}

func sign(payload []byte) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    webhookSecret,
		Timestamp: time.Now(),
	}).Header
}

func postWebhook(h http.Handler, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", bytes.NewReader(payload))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func newWebhookFixture(lines staticLines) (http.Handler, *memOrders, *countingNotifier) {
	orders := &memOrders{orders: map[string]*model.Order{}}
	notifier := &countingNotifier{}
	r := service.NewReconciler(webhookSecret, orders, lines, notifier, nil)
	return StripeWebhookHandler(r), orders, notifier
}

func TestWebhookRecordsOnceAcrossReplays(t *testing.T) {
	h, orders, notifier := newWebhookFixture(testLineItems())
	payload := completedEvent(t)

	rec := postWebhook(h, payload, sign(payload))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())

	rec = postWebhook(h, payload, sign(payload))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true,"message":"Order already processed"}`, rec.Body.String())

	assert.Len(t, orders.orders, 1)
	assert.Equal(t, int64(4500), orders.orders["cs_handler_1"].ItemsTotalCents())
	assert.Equal(t, 1, notifier.count)
}

func TestWebhookSignatureFailures(t *testing.T) {
	h, orders, _ := newWebhookFixture(staticLines{})
	payload := completedEvent(t)

	rec := postWebhook(h, payload, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postWebhook(h, payload, "t=1,v1=bad")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, orders.orders)
}

func TestWebhookUpstreamFailureIs500(t *testing.T) {
	h, orders, notifier := newWebhookFixture(staticLines{err: errors.New("provider timeout")})
	payload := completedEvent(t)

	rec := postWebhook(h, payload, sign(payload))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, orders.orders)
	assert.Zero(t, notifier.count)
}

func testLineItems() staticLines {
	return staticLines{lines: []service.LineItem{
		{ProductID: "p-a", Name: "Lavender Soap", Quantity: 2, AmountTotal: 2000},
		{ProductID: "p-b", Name: "Rose Oil", Quantity: 1, AmountTotal: 2500},
	}}
}

func TestWebhookStoreFailureIs500(t *testing.T) {
	tests := []struct {
		name      string
		findErr   error
		createErr error
	}{
		{name: "write", createErr: errors.New("db down")},
		{name: "read", findErr: errors.New("connection reset")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := &memOrders{orders: map[string]*model.Order{}, findErr: tt.findErr, createErr: tt.createErr}
			notifier := &countingNotifier{}
			h := StripeWebhookHandler(service.NewReconciler(webhookSecret, orders, testLineItems(), notifier, nil))
			payload := completedEvent(t)

			rec := postWebhook(h, payload, sign(payload))

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Empty(t, orders.orders)
			assert.Zero(t, notifier.count)
		})
	}
}

func TestWebhookMailOutageStillAcks(t *testing.T) {
	orders := &memOrders{orders: map[string]*model.Order{}}
	mailer := &downMailer{}
	dispatcher := service.NewDispatcher(mailer, "ops@example.com", time.Second, nil)
	h := StripeWebhookHandler(service.NewReconciler(webhookSecret, orders, testLineItems(), dispatcher, nil))
	payload := completedEvent(t)

	rec := postWebhook(h, payload, sign(payload))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())
	assert.Contains(t, orders.orders, "cs_handler_1")
	assert.Equal(t, 2, mailer.calls)
}

func TestWebhookIgnoredEventIs200(t *testing.T) {
	h, orders, _ := newWebhookFixture(staticLines{})
	payload := []byte(`{"id":"evt_2","object":"event","type":"customer.created","data":{"object":{"id":"cus_1"}}}`)

	rec := postWebhook(h, payload, sign(payload))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())
	assert.Empty(t, orders.orders)
}

func TestWebhookBodyLimit(t *testing.T) {
	h, _, _ := newWebhookFixture(staticLines{})
	payload := bytes.Repeat([]byte("a"), maxWebhookBody+1)

	rec := postWebhook(h, payload, sign(payload))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
