package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/model"
	"storefront/internal/mw"
	"storefront/internal/service"
)

func withUser(r *http.Request, userID, role string) *http.Request {
	claims := &service.Claims{UserID: userID, Role: role, Email: userID + "@example.com"}
	return r.WithContext(mw.WithClaims(r.Context(), claims))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

type stubOrders struct {
	orders    map[string]*model.Order
	lastLimit int
}

func (s *stubOrders) FindByID(_ context.Context, id string) (*model.Order, error) {
	if o, ok := s.orders[id]; ok {
		return o, nil
	}
	return nil, service.ErrOrderNotFound
}

func (s *stubOrders) ListByUser(_ context.Context, userID string) ([]model.Order, error) {
	out := []model.Order{}
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s *stubOrders) ListRecent(_ context.Context, limit int) ([]model.Order, error) {
	s.lastLimit = limit
	return []model.Order{}, nil
}

func (s *stubOrders) UpdateStatus(_ context.Context, id string, status model.OrderStatus) (*model.Order, error) {
	if !status.Valid() {
		return nil, service.ErrInvalidStatus
	}
	o, ok := s.orders[id]
	if !ok {
		return nil, service.ErrOrderNotFound
	}
	o.Status = status
	return o, nil
}

func newStubOrders() *stubOrders {
	return &stubOrders{orders: map[string]*model.Order{
		"cs_1": {ID: "cs_1", UserID: "u-1", Status: model.StatusPaid, TotalCents: 4500},
	}}
}

func TestGetOrderOwnerOnly(t *testing.T) {
	h := GetOrderHandler(newStubOrders())

	tests := []struct {
		name     string
		user     string
		id       string
		wantCode int
	}{
		{name: "owner", user: "u-1", id: "cs_1", wantCode: http.StatusOK},
		{name: "other user", user: "u-2", id: "cs_1", wantCode: http.StatusNotFound},
		{name: "missing", user: "u-1", id: "cs_x", wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/orders/"+tt.id, nil)
			req = withURLParam(withUser(req, tt.user, model.RoleUser), "id", tt.id)
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestListOrdersRequiresClaims(t *testing.T) {
	rec := httptest.NewRecorder()
	ListOrdersHandler(newStubOrders()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListOrders(t *testing.T) {
	req := withUser(httptest.NewRequest(http.MethodGet, "/api/orders", nil), "u-1", model.RoleUser)
	rec := httptest.NewRecorder()
	ListOrdersHandler(newStubOrders()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Orders []model.Order `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Orders, 1)
	assert.Equal(t, "cs_1", body.Orders[0].ID)
}

func TestUpdateOrderStatus(t *testing.T) {
	orders := newStubOrders()
	h := UpdateOrderStatusHandler(orders)

	do := func(body string) int {
		req := httptest.NewRequest(http.MethodPatch, "/api/orders/cs_1/status", strings.NewReader(body))
		req = withURLParam(req, "id", "cs_1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusBadRequest, do(`{"status":"shipped-to-mars"}`))
	assert.Equal(t, http.StatusBadRequest, do(`not json`))
	assert.Equal(t, http.StatusOK, do(`{"status":"processing"}`))
	assert.Equal(t, model.StatusProcessing, orders.orders["cs_1"].Status)
}

func TestAdminOrdersLimit(t *testing.T) {
	orders := newStubOrders()
	rec := httptest.NewRecorder()
	AdminOrdersHandler(orders).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 100, orders.lastLimit)
}

func TestCheckoutSessionLookup(t *testing.T) {
	h := CheckoutSessionHandler(newStubOrders())

	req := withURLParam(withUser(httptest.NewRequest(http.MethodGet, "/api/stripe/session/cs_1", nil), "u-1", model.RoleUser), "id", "cs_1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = withURLParam(withUser(httptest.NewRequest(http.MethodGet, "/api/stripe/session/cs_2", nil), "u-1", model.RoleUser), "id", "cs_2")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type stubCheckouts struct {
	userID, email string
	items         []model.CartItem
	err           error
}

func (s *stubCheckouts) Start(_ context.Context, userID, email string, items []model.CartItem) (*service.CheckoutSession, error) {
	s.userID, s.email, s.items = userID, email, items
	if s.err != nil {
		return nil, s.err
	}
	return &service.CheckoutSession{ID: "cs_new", URL: "https://checkout.stripe.test/cs_new"}, nil
}

func TestCreateCheckoutSession(t *testing.T) {
	stub := &stubCheckouts{}
	body := `{"items":[{"product_id":"p-a","quantity":2}]}`
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/stripe/create-checkout-session", strings.NewReader(body)), "u-1", model.RoleUser)
	rec := httptest.NewRecorder()

	CreateCheckoutSessionHandler(stub).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"url":"https://checkout.stripe.test/cs_new"}`, rec.Body.String())
	assert.Equal(t, "u-1", stub.userID)
	assert.Equal(t, "u-1@example.com", stub.email)
	assert.Equal(t, []model.CartItem{{ProductID: "p-a", Quantity: 2}}, stub.items)
}

func TestCreateCheckoutSessionEmpty(t *testing.T) {
	stub := &stubCheckouts{err: service.ErrEmptyCheckout}
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/stripe/create-checkout-session", strings.NewReader(`{}`)), "u-1", model.RoleUser)
	rec := httptest.NewRecorder()

	CreateCheckoutSessionHandler(stub).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubCarts struct {
	items map[string]int
}

func (s *stubCarts) snapshot(userID string) model.Cart {
	var items []model.CartItem
	for id, q := range s.items {
		items = append(items, model.CartItem{ProductID: id, Quantity: q})
	}
	return model.NewCart(userID, items)
}

func (s *stubCarts) Get(_ context.Context, userID string) (model.Cart, error) {
	return s.snapshot(userID), nil
}

func (s *stubCarts) Add(_ context.Context, userID, productID string, qty int) (model.Cart, error) {
	if qty < 1 {
		return model.Cart{}, service.ErrInvalidQuantity
	}
	s.items[productID] += qty
	return s.snapshot(userID), nil
}

func (s *stubCarts) Update(_ context.Context, userID, productID string, qty int) (model.Cart, error) {
	if _, ok := s.items[productID]; !ok {
		return model.Cart{}, service.ErrItemNotInCart
	}
	s.items[productID] = qty
	return s.snapshot(userID), nil
}

func (s *stubCarts) Remove(_ context.Context, userID, productID string) (model.Cart, error) {
	delete(s.items, productID)
	return s.snapshot(userID), nil
}

func (s *stubCarts) Clear(_ context.Context, userID string) (model.Cart, error) {
	s.items = map[string]int{}
	return s.snapshot(userID), nil
}

func TestCartHandlers(t *testing.T) {
	carts := &stubCarts{items: map[string]int{}}

	req := withUser(httptest.NewRequest(http.MethodPost, "/api/cart/items", strings.NewReader(`{"product_id":"p-a"}`)), "u-1", model.RoleUser)
	rec := httptest.NewRecorder()
	AddCartItemHandler(carts).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"cart":[{"product_id":"p-a","quantity":1}]}`, rec.Body.String())

	req = withUser(httptest.NewRequest(http.MethodPut, "/api/cart/items/p-z", strings.NewReader(`{"quantity":3}`)), "u-1", model.RoleUser)
	req = withURLParam(req, "productID", "p-z")
	rec = httptest.NewRecorder()
	UpdateCartItemHandler(carts).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = withUser(httptest.NewRequest(http.MethodPost, "/api/cart/items", strings.NewReader(`{"product_id":"p-a","quantity":-1}`)), "u-1", model.RoleUser)
	rec = httptest.NewRecorder()
	AddCartItemHandler(carts).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = withUser(httptest.NewRequest(http.MethodDelete, "/api/cart", nil), "u-1", model.RoleUser)
	rec = httptest.NewRecorder()
	ClearCartHandler(carts).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"cart":[]}`, rec.Body.String())
}

type stubAccounts struct {
	Accounts
	user *model.User
}

func (s *stubAccounts) Authenticate(_ context.Context, email, password string) (*model.User, error) {
	if email != s.user.Email || password != "Secret123" {
		return nil, service.ErrInvalidCredentials
	}
	return s.user, nil
}

func (s *stubAccounts) IssueToken(*model.User) (string, error) { return "signed-token", nil }

func TestLoginSetsCookie(t *testing.T) {
	accounts := &stubAccounts{user: &model.User{ID: "u-1", Email: "ada@example.com", Role: model.RoleUser}}
	h := LoginHandler(accounts, false)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"ada@example.com","password":"Secret123"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bearer signed-token", rec.Header().Get("Authorization"))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, mw.TokenCookie, cookies[0].Name)
	assert.Equal(t, "signed-token", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"ada@example.com","password":"wrong"}`))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutClearsCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	LogoutHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}
