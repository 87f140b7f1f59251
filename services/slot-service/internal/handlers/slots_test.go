package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/md-rashed-zaman/slotbook/libs/auth"
	"github.com/md-rashed-zaman/slotbook/libs/errs"
	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/services/slot-service/internal/booking"
	"github.com/md-rashed-zaman/slotbook/services/slot-service/internal/cache"
	"github.com/md-rashed-zaman/slotbook/services/slot-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/slot-service/internal/query"
	"github.com/md-rashed-zaman/slotbook/services/slot-service/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "handler-test-secret"

func newServer(t *testing.T, layer *cache.Layer) (*httptest.Server, *storage.MemoryStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.NewMemoryStore()
	for _, s := range []model.Slot{
		{SlotID: "S1", Date: "2026-01-10", Time: "09:00", Status: model.StatusAvailable},
		{SlotID: "S2", Date: "2026-01-10", Time: "10:00", Status: model.StatusAvailable},
	} {
		_, err := store.CreateIfAbsent(context.Background(), s)
		require.NoError(t, err)
	}

	svc := booking.NewService(store, layer, nil, logger, booking.Config{})
	q := query.NewService(store, layer, logger, query.Config{})
	verifier := auth.NewVerifier(auth.VerifierConfig{Secret: testSecret})

	mux := http.NewServeMux()
	NewSlotHandler(svc, q, logger).Register(mux, nil, auth.RequireRole(verifier, "admin"))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, store
}

func adminToken(t *testing.T, role string) string {
	t.Helper()
	token, err := auth.SignHS256(auth.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, testSecret)
	require.NoError(t, err)
	return token
}

func do(t *testing.T, method, url, body, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestAvailableReportsCacheSource(t *testing.T) {
	srv, _ := newServer(t, cache.New(cache.NewMemoryBackend(time.Now), nil, cache.Config{}))

	first := do(t, http.MethodGet, srv.URL+"/api/v1/public/slots", "", "")
	require.Equal(t, http.StatusOK, first.StatusCode)
	assert.Equal(t, "MISS", first.Header.Get("X-Cache"))
	body := decode[availableResponse](t, first)
	assert.Equal(t, "store", body.Source)
	require.Len(t, body.Slots, 2)
	assert.Equal(t, "S1", body.Slots[0].SlotID)

	second := do(t, http.MethodGet, srv.URL+"/api/v1/public/slots", "", "")
	assert.Equal(t, "HIT", second.Header.Get("X-Cache"))
	assert.Equal(t, "cache", decode[availableResponse](t, second).Source)
}

func TestAvailableWithoutCache(t *testing.T) {
	srv, _ := newServer(t, nil)

	resp := do(t, http.MethodGet, srv.URL+"/api/v1/public/slots", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "BYPASS", resp.Header.Get("X-Cache"))
	assert.Len(t, decode[availableResponse](t, resp).Slots, 2)
}

func TestBookStatusCodes(t *testing.T) {
	srv, store := newServer(t, nil)
	url := srv.URL + "/api/v1/public/book"

	resp := do(t, http.MethodPost, url, `{"slot_id":"S1","contact":"a@example.com","name":"Ada"}`, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	booked := decode[bookResponse](t, resp)
	assert.Equal(t, model.StatusPending, booked.Status)
	assert.Equal(t, "S1", booked.Slot.SlotID)
	assert.Empty(t, booked.Slot.ClaimantContact, "public response must not echo claimant details")

	stored, err := store.Get(context.Background(), "S1")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", stored.ClaimantContact)

	cases := []struct {
		name string
		body string
		want int
	}{
		{name: "taken", body: `{"slot_id":"S1","contact":"b@example.com"}`, want: http.StatusConflict},
		{name: "unknown", body: `{"slot_id":"nope","contact":"b@example.com"}`, want: http.StatusNotFound},
		{name: "missing contact", body: `{"slot_id":"S2"}`, want: http.StatusBadRequest},
		{name: "bad json", body: `{"slot_id":`, want: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, do(t, http.MethodPost, url, tc.body, "").StatusCode)
		})
	}

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, http.MethodGet, url, "", "").StatusCode)
}

func TestBookIsRateLimited(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.NewMemoryStore()
	svc := booking.NewService(store, nil, nil, logger, booking.Config{})
	mux := http.NewServeMux()
	NewSlotHandler(svc, query.NewService(store, nil, logger, query.Config{}), logger).
		Register(mux, httpx.NewRateLimiter(1, 1).Middleware(), nil)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	body := `{"slot_id":"nope","contact":"a@example.com"}`
	assert.Equal(t, http.StatusNotFound, do(t, http.MethodPost, srv.URL+"/api/v1/public/book", body, "").StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, do(t, http.MethodPost, srv.URL+"/api/v1/public/book", body, "").StatusCode)
}

func TestAdminRequiresRole(t *testing.T) {
	srv, _ := newServer(t, nil)
	url := srv.URL + "/api/v1/admin/slots"

	assert.Equal(t, http.StatusUnauthorized, do(t, http.MethodGet, url, "", "").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, do(t, http.MethodGet, url, "", "garbage").StatusCode)
	assert.Equal(t, http.StatusForbidden, do(t, http.MethodGet, url, "", adminToken(t, "patient")).StatusCode)
	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, url, "", adminToken(t, "admin")).StatusCode)
}

func TestAdminListAndGet(t *testing.T) {
	srv, _ := newServer(t, nil)
	token := adminToken(t, "admin")

	resp := do(t, http.MethodPost, srv.URL+"/api/v1/public/book", `{"slot_id":"S2","contact":"a@example.com"}`, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	pending := decode[listResponse](t, do(t, http.MethodGet, srv.URL+"/api/v1/admin/slots?status=pending", "", token))
	require.Len(t, pending.Slots, 1)
	assert.Equal(t, "S2", pending.Slots[0].SlotID)
	assert.Equal(t, "a@example.com", pending.Slots[0].ClaimantContact)

	all := decode[listResponse](t, do(t, http.MethodGet, srv.URL+"/api/v1/admin/slots?limit=1", "", token))
	require.Len(t, all.Slots, 1)
	assert.Equal(t, "S1", all.Slots[0].SlotID)

	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodGet, srv.URL+"/api/v1/admin/slots?status=lost", "", token).StatusCode)
	for _, limit := range []string{"abc", "0", "-3", "501"} {
		resp := do(t, http.MethodGet, srv.URL+"/api/v1/admin/slots?limit="+limit, "", token)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "limit=%s", limit)
	}

	one := do(t, http.MethodGet, srv.URL+"/api/v1/admin/slots/S2", "", token)
	require.Equal(t, http.StatusOK, one.StatusCode)
	assert.Equal(t, model.StatusPending, decode[model.Slot](t, one).Status)
	assert.Equal(t, http.StatusNotFound, do(t, http.MethodGet, srv.URL+"/api/v1/admin/slots/ghost", "", token).StatusCode)
}

func TestAdminSetStatus(t *testing.T) {
	srv, _ := newServer(t, nil)
	token := adminToken(t, "admin")
	url := srv.URL + "/api/v1/admin/slots/status"

	resp := do(t, http.MethodPost, url, `{"slot_id":"S1","status":"accepted"}`, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, setStatusResponse{SlotID: "S1", Status: model.StatusAccepted}, decode[setStatusResponse](t, resp))

	cases := []struct {
		name string
		body string
		want int
	}{
		{name: "expected mismatch", body: `{"slot_id":"S1","status":"DECLINED","expected_status":"PENDING"}`, want: http.StatusConflict},
		{name: "unknown slot", body: `{"slot_id":"ghost","status":"DECLINED"}`, want: http.StatusNotFound},
		{name: "not a resolution", body: `{"slot_id":"S1","status":"AVAILABLE"}`, want: http.StatusBadRequest},
		{name: "unknown status", body: `{"slot_id":"S1","status":"MAYBE"}`, want: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, do(t, http.MethodPost, url, tc.body, token).StatusCode)
		})
	}
}

type failingLister struct{}

func (failingLister) ListAvailable(context.Context) ([]model.Slot, cache.Status, error) {
	return nil, cache.StatusBypass, errs.Mark(errors.New("pool closed"), model.ErrBackendUnavailable)
}

func TestStoreUnavailableIs503(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewSlotHandler(nil, failingLister{}, logger)

	rec := httptest.NewRecorder()
	h.Available(rec, httptest.NewRequest(http.MethodGet, "/api/v1/public/slots", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}
