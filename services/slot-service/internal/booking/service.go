// Package booking moves slots through their lifecycle. The store's
// conditional update is the only serialization point; nothing here locks.
package booking

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/errs"
	"github.com/md-rashed-zaman/slotbook/services/slot-service/internal/cache"
	"github.com/md-rashed-zaman/slotbook/services/slot-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/slot-service/internal/storage"
	"github.com/md-rashed-zaman/slotbook/services/slot-service/internal/workflow"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("slot-service/booking")

type Config struct {
	// AvailableKey overrides cache.AvailableSlotsKey.
	AvailableKey    string
	StoreTimeout    time.Duration
	WorkflowTimeout time.Duration
}

type Service struct {
	store    storage.SlotStore
	cache    *cache.Layer
	workflow workflow.Trigger
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time
}

func NewService(store storage.SlotStore, layer *cache.Layer, trigger workflow.Trigger, logger *slog.Logger, cfg Config) *Service {
	if cfg.AvailableKey == "" {
		cfg.AvailableKey = cache.AvailableSlotsKey
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 3 * time.Second
	}
	if cfg.WorkflowTimeout <= 0 {
		cfg.WorkflowTimeout = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	if trigger == nil {
		trigger = workflow.Disabled{Logger: logger}
	}
	return &Service{
		store:    store,
		cache:    layer,
		workflow: trigger,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

type ClaimRequest struct {
	SlotID  string
	Contact string
	Name    string
	Notes   string
}

// Claim moves an AVAILABLE slot to PENDING on behalf of contact. Exactly one
// of several concurrent claims on the same slot succeeds; the rest get
// model.ErrConflict.
func (s *Service) Claim(ctx context.Context, req ClaimRequest) (model.Slot, error) {
	req.SlotID = strings.TrimSpace(req.SlotID)
	req.Contact = strings.TrimSpace(req.Contact)
	if req.SlotID == "" {
		return model.Slot{}, validation("slot_id is required")
	}
	if req.Contact == "" {
		return model.Slot{}, validation("contact is required")
	}

	ctx, span := tracer.Start(ctx, "booking.Claim", trace.WithAttributes(attribute.String("slot.id", req.SlotID)))
	defer span.End()

	slot, err := s.update(ctx, req.SlotID, storage.Update{
		Expected: model.StatusAvailable,
		Status:   model.StatusPending,
		Claimant: &storage.Claimant{
			Contact: req.Contact,
			Name:    strings.TrimSpace(req.Name),
			Notes:   strings.TrimSpace(req.Notes),
		},
	})
	if err != nil {
		recordError(span, err)
		return model.Slot{}, err
	}

	s.invalidate(ctx)
	s.logger.Info("slot claimed", "slot_id", slot.SlotID)
	return slot, nil
}

type SetStatusRequest struct {
	SlotID string
	Status model.Status
	// Expected, when set, must match the current status. Empty only
	// requires the slot to exist.
	Expected model.Status
}

// SetStatus records a back-office decision. After the store write it drops
// the available listing and starts the downstream workflow; a workflow
// failure is logged and never changes the result.
func (s *Service) SetStatus(ctx context.Context, req SetStatusRequest) (model.Slot, error) {
	req.SlotID = strings.TrimSpace(req.SlotID)
	if req.SlotID == "" {
		return model.Slot{}, validation("slot_id is required")
	}
	if !req.Status.Resolution() {
		return model.Slot{}, validation("status must be ACCEPTED or DECLINED")
	}
	if req.Expected != storage.AnyStatus && !req.Expected.Valid() {
		return model.Slot{}, validation("unknown expected_status")
	}

	ctx, span := tracer.Start(ctx, "booking.SetStatus", trace.WithAttributes(
		attribute.String("slot.id", req.SlotID),
		attribute.String("slot.status", string(req.Status)),
	))
	defer span.End()

	slot, err := s.update(ctx, req.SlotID, storage.Update{Expected: req.Expected, Status: req.Status})
	if err != nil {
		recordError(span, err)
		return model.Slot{}, err
	}

	s.invalidate(ctx)
	s.startWorkflow(ctx, slot)
	s.logger.Info("slot status set", "slot_id", slot.SlotID, "status", slot.Status)
	return slot, nil
}

func (s *Service) Get(ctx context.Context, slotID string) (model.Slot, error) {
	slotID = strings.TrimSpace(slotID)
	if slotID == "" {
		return model.Slot{}, validation("slot_id is required")
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	slot, err := s.store.Get(ctx, slotID)
	if err != nil {
		if errs.Is(err, model.ErrNotFound) {
			return model.Slot{}, err
		}
		return model.Slot{}, unavailable(err, "get slot")
	}
	return slot, nil
}

// List returns slots with the given status, or all slots when status is
// empty, ordered by date and time.
func (s *Service) List(ctx context.Context, status model.Status, limit int) ([]model.Slot, error) {
	if status != storage.AnyStatus && !status.Valid() {
		return nil, validation("unknown status")
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	var (
		slots []model.Slot
		err   error
	)
	if status == storage.AnyStatus {
		slots, err = s.store.List(ctx, limit)
	} else {
		slots, err = s.store.ListByStatus(ctx, status)
	}
	if err != nil {
		return nil, unavailable(err, "list slots")
	}
	model.SortByDateTime(slots)
	if limit > 0 && len(slots) > limit {
		slots = slots[:limit]
	}
	return slots, nil
}

func (s *Service) update(ctx context.Context, slotID string, u storage.Update) (model.Slot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	res, slot, err := s.store.ConditionalUpdate(ctx, slotID, u)
	if err != nil {
		return model.Slot{}, unavailable(err, "update slot")
	}
	switch res {
	case storage.UpdateOK:
		return slot, nil
	case storage.UpdateNotFound:
		return model.Slot{}, errs.Mark(errs.Newf("slot %q", slotID), model.ErrNotFound)
	default:
		return model.Slot{}, errs.Mark(errs.Newf("slot %q is not %s", slotID, expectedLabel(u.Expected)), model.ErrConflict)
	}
}

// invalidate drops the cached listing. It runs detached from the caller's
// cancellation so a client hanging up after the write can't skip it.
func (s *Service) invalidate(ctx context.Context) {
	res := s.cache.Delete(context.WithoutCancel(ctx), s.cfg.AvailableKey)
	if res.Status == cache.StatusBypass && res.Reason != cache.ReasonDisabled {
		s.logger.Warn("available listing not invalidated", "key", s.cfg.AvailableKey, "reason", res.Reason)
	}
}

func (s *Service) startWorkflow(ctx context.Context, slot model.Slot) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.WorkflowTimeout)
	defer cancel()

	sig := workflow.Signal{SlotID: slot.SlotID, Status: slot.Status, OccurredAt: s.now().UTC()}
	if err := s.workflow.Start(ctx, sig); err != nil {
		s.logger.Error("workflow start failed", "slot_id", slot.SlotID, "status", slot.Status, "err", err)
	}
}

func validation(msg string) error {
	return errs.Mark(errs.New(msg), model.ErrValidation)
}

func unavailable(err error, op string) error {
	return errs.Mark(errs.Wrap(err, op), model.ErrBackendUnavailable)
}

func expectedLabel(s model.Status) string {
	if s == storage.AnyStatus {
		return "present"
	}
	return string(s)
}

func recordError(span trace.Span, err error) {
	if errs.Is(err, model.ErrBackendUnavailable) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store unavailable")
	}
}
