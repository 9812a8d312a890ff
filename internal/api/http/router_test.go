package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"rental-reservation-backend/internal/domain"
	"rental-reservation-backend/internal/repository/memory"
	"rental-reservation-backend/internal/security"
	"rental-reservation-backend/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router http.Handler
	store  *memory.Store
	tokens security.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()
	settings := service.Settings{
		InventoryPolicy:    service.InventoryPolicyCounter,
		CheckoutMode:       service.CheckoutModePartial,
		LateFeePerDayCents: 5000,
		Retry:              service.RetryPolicy{MaxAttempts: 1},
	}
	ledger := service.NewInventoryLedger(store, nil, nil)
	availability := service.NewAvailabilityChecker(store, settings.InventoryPolicy)
	reservations := service.NewReservationService(store, ledger, availability, nil, nil, settings)
	checkout := service.NewCheckoutService(store, ledger, availability, reservations, nil, nil, settings)
	products := service.NewProductService(store, ledger, availability, nil, nil)

	tokens := security.NewTokenManager("test-secret", time.Hour)
	h := NewHandler(products, reservations, checkout, store.Ping)
	return &testServer{
		router: NewRouter(h, tokens, nil),
		store:  store,
		tokens: tokens,
	}
}

func (s *testServer) token(t *testing.T, userID int32, role domain.Role) string {
	t.Helper()
	tok, err := s.tokens.GenerateAccessToken(userID, "user@example.com", role)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) seed(stock int32) int32 {
	return s.store.Seed(domain.Product{
		OwnerID:           7,
		Name:              "Camping stove",
		Prices:            domain.PriceTable{DayCents: 1500},
		TotalQuantity:     stock,
		QuantityAvailable: stock,
		Availability:      stock > 0,
	})
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/products/1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/products/1", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckoutEndpoint(t *testing.T) {
	s := newTestServer(t)
	a := s.seed(1)
	b := s.seed(0)
	tok := s.token(t, 1, domain.RoleCustomer)

	rec := s.do(t, http.MethodPost, "/api/v1/checkout", tok, map[string]any{
		"items": []map[string]any{
			{"product_id": a, "quantity": 1, "start_date": "2025-06-01", "end_date": "2025-06-03", "duration_unit": "day"},
			{"product_id": b, "quantity": 1, "start_date": "2025-06-01", "end_date": "2025-06-03", "duration_unit": "day"},
			{"product_id": a, "quantity": 1, "start_date": "2025-06-05", "end_date": "2025-06-04"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result domain.CheckoutResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Items, 3)
	assert.Equal(t, domain.LineStatusOK, result.Items[0].Status)
	assert.NotZero(t, result.Items[0].ReservationID)
	assert.Equal(t, domain.LineStatusError, result.Items[1].Status)
	assert.Contains(t, result.Items[1].ErrorReason, "insufficient stock")
	assert.Equal(t, domain.LineStatusError, result.Items[2].Status)
	assert.Contains(t, result.Items[2].ErrorReason, "invalid date range")

	rec = s.do(t, http.MethodPost, "/api/v1/checkout", tok, map[string]any{"items": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutOnBehalfRequiresStaff(t *testing.T) {
	s := newTestServer(t)
	a := s.seed(2)
	body := map[string]any{
		"customer_id": 5,
		"items":       []map[string]any{{"product_id": a, "quantity": 1, "start_date": "2025-06-01", "end_date": "2025-06-02"}},
	}

	rec := s.do(t, http.MethodPost, "/api/v1/checkout", s.token(t, 1, domain.RoleCustomer), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/checkout", s.token(t, 50, domain.RoleStaff), body)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTransitionEndpoint(t *testing.T) {
	s := newTestServer(t)
	a := s.seed(1)
	customer := s.token(t, 1, domain.RoleCustomer)
	owner := s.token(t, 7, domain.RoleOwner)

	rec := s.do(t, http.MethodPost, "/api/v1/checkout", customer, map[string]any{
		"items": []map[string]any{{"product_id": a, "quantity": 1, "start_date": "2025-06-01", "end_date": "2025-06-02"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var result domain.CheckoutResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	id := result.Items[0].ReservationID
	path := "/api/v1/reservations/" + itoa(id) + "/transitions"

	rec = s.do(t, http.MethodPost, path, owner, map[string]string{"target_state": "returned"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPost, path, customer, map[string]string{"target_state": "reserved"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, path, owner, map[string]string{"target_state": "teleported"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPost, path, customer, map[string]string{"target_state": "cancelled"})
	require.Equal(t, http.StatusOK, rec.Code)
	var view reservationView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, domain.ReservationStatusCancelled, view.Status)

	p, err := s.store.Products().GetByID(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, int32(1), p.QuantityAvailable)

	rec = s.do(t, http.MethodGet, "/api/v1/reservations/999", owner, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProductEndpoints(t *testing.T) {
	s := newTestServer(t)
	owner := s.token(t, 7, domain.RoleOwner)

	rec := s.do(t, http.MethodPost, "/api/v1/products", owner, map[string]any{
		"name": "Kayak", "total_quantity": 2, "prices": map[string]any{"day_cents": 4000},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created productView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, int32(7), created.OwnerID)
	assert.Equal(t, int32(2), created.QuantityAvailable)
	path := "/api/v1/products/" + itoa(created.ID)

	rec = s.do(t, http.MethodPost, "/api/v1/products", owner, map[string]any{"total_quantity": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/products", owner, map[string]any{"name": "Free", "total_quantity": 1})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_product")

	rec = s.do(t, http.MethodPost, "/api/v1/products", owner, map[string]any{
		"name": "Gold", "total_quantity": 1, "prices": map[string]any{"day_cents": int64(1) << 62},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, path+"/stock", owner, map[string]any{"delta": -5})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPut, path+"/limits", owner, map[string]any{"min_quantity": 3, "max_quantity": 5})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, path, owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got productView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.LowStock)

	rec = s.do(t, http.MethodGet, path+"/availability?start=2025-06-01&end=2025-06-03&quantity=2", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var avail domain.AvailabilityResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &avail))
	assert.True(t, avail.Available)

	rec = s.do(t, http.MethodGet, path+"/availability?start=2025-06-03&end=2025-06-01", owner, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/quotes", owner, map[string]any{
		"product_id": created.ID, "quantity": 1, "start_date": "2025-06-01", "end_date": "2025-06-04",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var quote domain.Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quote))
	require.NotNil(t, quote.Cheapest)
	assert.Equal(t, int64(12000), quote.Cheapest.TotalCents)

	rec = s.do(t, http.MethodDelete, path, s.token(t, 8, domain.RoleOwner), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodDelete, path, owner, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func limitedHandler(t *testing.T, rl *RateLimiter) http.Handler {
	t.Helper()
	return rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func hit(h http.Handler, remoteAddr, forwardedFor string) int {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimiter(t *testing.T) {
	rl, err := NewRateLimiter(0.001, 2, nil)
	require.NoError(t, err)
	h := limitedHandler(t, rl)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, hit(h, "10.0.0.1:1234", ""))
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.2:1234", ""))
}

func TestRateLimiter_IgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	rl, err := NewRateLimiter(0.001, 1, nil)
	require.NoError(t, err)
	h := limitedHandler(t, rl)

	assert.Equal(t, http.StatusOK, hit(h, "203.0.113.9:5000", "198.51.100.1"))
	// rotating the header does not mint a fresh bucket
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "203.0.113.9:5000", "198.51.100.2"))
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "203.0.113.9:5000", ""))
}

func TestRateLimiter_HonoursForwardedForBehindTrustedProxy(t *testing.T) {
	rl, err := NewRateLimiter(0.001, 1, []string{"10.0.0.0/8", "192.0.2.7"})
	require.NoError(t, err)
	h := limitedHandler(t, rl)

	assert.Equal(t, http.StatusOK, hit(h, "10.1.2.3:443", "198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.9.9.9:443", "198.51.100.1"))
	assert.Equal(t, http.StatusOK, hit(h, "10.1.2.3:443", "198.51.100.2"))

	// a client-forged leftmost entry is skipped; the rightmost untrusted hop counts
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.1.2.3:443", "1.2.3.4, 198.51.100.2, 192.0.2.7"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:80"
	req.Header.Set("X-Forwarded-For", "198.51.100.3, 10.0.0.1")
	assert.Equal(t, "198.51.100.3", rl.clientIP(req))
}

func TestNewRateLimiter_RejectsBadTrustedProxy(t *testing.T) {
	_, err := NewRateLimiter(1, 1, []string{"not-an-ip"})
	assert.ErrorContains(t, err, "invalid trusted proxy")

	_, err = NewRateLimiter(1, 1, []string{"10.0.0.0/99"})
	assert.Error(t, err)
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	rl, err := NewRateLimiter(1, 1, nil)
	require.NoError(t, err)
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 50; i++ {
		rl.limiter(fmt.Sprintf("198.51.100.%d", i))
	}
	assert.Len(t, rl.clients, 50)

	now = now.Add(limiterIdleTTL / 2)
	rl.limiter("198.51.100.0")

	now = now.Add(limiterIdleTTL * 3 / 4)
	rl.limiter("203.0.113.1")

	// only the client seen within the idle window and the new one survive
	assert.Len(t, rl.clients, 2)
	assert.Contains(t, rl.clients, "203.0.113.1")
	assert.Contains(t, rl.clients, "198.51.100.0")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&domain.StockError{ProductID: 1}, http.StatusConflict},
		{domain.ErrProductInUse, http.StatusConflict},
		{&domain.DateRangeError{Reason: "x"}, http.StatusUnprocessableEntity},
		{&domain.TransitionError{From: "a", To: "b"}, http.StatusUnprocessableEntity},
		{domain.ErrInvalidQuantity, http.StatusBadRequest},
		{domain.ErrEmptyCart, http.StatusBadRequest},
		{domain.ErrUnauthorized, http.StatusForbidden},
		{security.ErrExpiredToken, http.StatusUnauthorized},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.NewPersistenceError("op", assert.AnError), http.StatusServiceUnavailable},
		{&domain.PricingError{ProductID: 1}, http.StatusInternalServerError},
		{&domain.ProductError{Field: "name", Reason: "is required"}, http.StatusUnprocessableEntity},
		{fmt.Errorf("quote: %w", domain.ErrAmountOverflow), http.StatusUnprocessableEntity},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		got, _ := statusFor(tt.err)
		assert.Equal(t, tt.want, got, tt.err.Error())
	}
}

func itoa(id int32) string { return strconv.Itoa(int(id)) }
