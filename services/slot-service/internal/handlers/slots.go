package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/md-rashed-zaman/slotbook/libs/auth"
	"github.com/md-rashed-zaman/slotbook/libs/errs"
	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/services/slot-service/internal/booking"
	"github.com/md-rashed-zaman/slotbook/services/slot-service/internal/cache"
	"github.com/md-rashed-zaman/slotbook/services/slot-service/internal/model"
)

type Booker interface {
	Claim(ctx context.Context, req booking.ClaimRequest) (model.Slot, error)
	SetStatus(ctx context.Context, req booking.SetStatusRequest) (model.Slot, error)
	Get(ctx context.Context, slotID string) (model.Slot, error)
	List(ctx context.Context, status model.Status, limit int) ([]model.Slot, error)
}

type AvailableLister interface {
	ListAvailable(ctx context.Context) ([]model.Slot, cache.Status, error)
}

type SlotHandler struct {
	booker Booker
	lister AvailableLister
	logger *slog.Logger
}

func NewSlotHandler(booker Booker, lister AvailableLister, logger *slog.Logger) *SlotHandler {
	return &SlotHandler{booker: booker, lister: lister, logger: logger}
}

// Register mounts the public and admin routes. bookGuard wraps the claim
// endpoint (rate limiting); adminGuard wraps every admin route.
func (h *SlotHandler) Register(mux *http.ServeMux, bookGuard, adminGuard httpx.Middleware) {
	mux.HandleFunc("GET /api/v1/public/slots", h.Available)
	mux.Handle("POST /api/v1/public/book", httpx.Chain(http.HandlerFunc(h.Book), bookGuard))
	mux.Handle("GET /api/v1/admin/slots", httpx.Chain(http.HandlerFunc(h.AdminList), adminGuard))
	mux.Handle("GET /api/v1/admin/slots/{slotID}", httpx.Chain(http.HandlerFunc(h.AdminGet), adminGuard))
	mux.Handle("POST /api/v1/admin/slots/status", httpx.Chain(http.HandlerFunc(h.AdminSetStatus), adminGuard))
}

type availableResponse struct {
	Slots  []model.Slot `json:"slots"`
	Source string       `json:"source"`
}

type bookRequest struct {
	SlotID  string `json:"slot_id"`
	Contact string `json:"contact"`
	Name    string `json:"name"`
	Notes   string `json:"notes"`
}

type bookResponse struct {
	Status model.Status `json:"status"`
	Slot   model.Slot   `json:"slot"`
}

type setStatusRequest struct {
	SlotID         string `json:"slot_id"`
	Status         string `json:"status"`
	ExpectedStatus string `json:"expected_status"`
}

type setStatusResponse struct {
	SlotID string       `json:"slot_id"`
	Status model.Status `json:"status"`
}

type listResponse struct {
	Slots []model.Slot `json:"slots"`
}

func (h *SlotHandler) Available(w http.ResponseWriter, r *http.Request) {
	slots, status, err := h.lister.ListAvailable(r.Context())
	w.Header().Set("X-Cache", string(status))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	source := "store"
	if status == cache.StatusHit {
		source = "cache"
	}
	if slots == nil {
		slots = []model.Slot{}
	}
	writeJSON(w, http.StatusOK, availableResponse{Slots: slots, Source: source})
}

func (h *SlotHandler) Book(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if !decodeBody(w, r, &req) {
		return
	}
	slot, err := h.booker.Claim(r.Context(), booking.ClaimRequest{
		SlotID:  req.SlotID,
		Contact: req.Contact,
		Name:    req.Name,
		Notes:   req.Notes,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bookResponse{Status: slot.Status, Slot: slot.Public()})
}

func (h *SlotHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var status model.Status
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		parsed, ok := model.ParseStatus(raw)
		if !ok {
			http.Error(w, "invalid status", http.StatusBadRequest)
			return
		}
		status = parsed
	}
	limit := 100
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	slots, err := h.booker.List(r.Context(), status, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if slots == nil {
		slots = []model.Slot{}
	}
	writeJSON(w, http.StatusOK, listResponse{Slots: slots})
}

func (h *SlotHandler) AdminGet(w http.ResponseWriter, r *http.Request) {
	slot, err := h.booker.Get(r.Context(), r.PathValue("slotID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

func (h *SlotHandler) AdminSetStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	status, ok := model.ParseStatus(req.Status)
	if !ok {
		http.Error(w, "status must be ACCEPTED or DECLINED", http.StatusBadRequest)
		return
	}
	var expected model.Status
	if strings.TrimSpace(req.ExpectedStatus) != "" {
		if expected, ok = model.ParseStatus(req.ExpectedStatus); !ok {
			http.Error(w, "invalid expected_status", http.StatusBadRequest)
			return
		}
	}

	slot, err := h.booker.SetStatus(r.Context(), booking.SetStatusRequest{
		SlotID:   req.SlotID,
		Status:   status,
		Expected: expected,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	actor := ""
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		actor = claims.Subject
	}
	h.logger.Info("slot status changed by admin", "slot_id", slot.SlotID, "status", slot.Status, "actor", actor)
	writeJSON(w, http.StatusOK, setStatusResponse{SlotID: slot.SlotID, Status: slot.Status})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return false
	}
	return true
}

// writeError maps the service error classes onto status codes so a client
// can tell a taken slot from a missing one from a retryable failure.
func (h *SlotHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errs.Is(err, model.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errs.Is(err, model.ErrNotFound):
		http.Error(w, "slot not found", http.StatusNotFound)
	case errs.Is(err, model.ErrConflict):
		http.Error(w, "slot is no longer available", http.StatusConflict)
	case errs.Is(err, model.ErrBackendUnavailable):
		h.logger.Error("slot store unavailable", "request_id", httpx.RequestIDFromContext(r.Context()), "err", err)
		w.Header().Set("Retry-After", "1")
		http.Error(w, "service temporarily unavailable", http.StatusServiceUnavailable)
	default:
		h.logger.Error("unexpected slot error", "request_id", httpx.RequestIDFromContext(r.Context()), "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
