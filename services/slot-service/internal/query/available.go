// Package query serves the available-slots listing through the cache.
package query

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/errs"
	"github.com/md-rashed-zaman/slotbook/services/slot-service/internal/cache"
	"github.com/md-rashed-zaman/slotbook/services/slot-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/slot-service/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("slot-service/query")

type Config struct {
	// AvailableKey overrides cache.AvailableSlotsKey; it must match the key
	// the booking service invalidates.
	AvailableKey string
	StoreTimeout time.Duration
}

type Service struct {
	store  storage.SlotStore
	cache  *cache.Layer
	logger *slog.Logger
	cfg    Config
}

func NewService(store storage.SlotStore, layer *cache.Layer, logger *slog.Logger, cfg Config) *Service {
	if cfg.AvailableKey == "" {
		cfg.AvailableKey = cache.AvailableSlotsKey
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 3 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, cache: layer, logger: logger, cfg: cfg}
}

// ListAvailable returns every AVAILABLE slot ordered by date and time,
// tagged with how the cache took part. A cache problem never fails the
// call; a store problem does.
func (s *Service) ListAvailable(ctx context.Context) ([]model.Slot, cache.Status, error) {
	ctx, span := tracer.Start(ctx, "query.ListAvailable")
	defer span.End()

	got := s.cache.Get(ctx, s.cfg.AvailableKey)
	if got.Status == cache.StatusHit {
		var slots []model.Slot
		err := json.Unmarshal(got.Value, &slots)
		if err == nil {
			span.SetAttributes(attribute.String("cache.status", string(cache.StatusHit)))
			s.logger.Debug("available listing", "cache", cache.StatusHit, "count", len(slots))
			return slots, cache.StatusHit, nil
		}
		s.logger.Warn("cached listing undecodable; rebuilding", "key", s.cfg.AvailableKey, "err", err)
		got = cache.Result{Status: cache.StatusMiss, Reason: cache.ReasonCorrupt}
	}

	status := cache.StatusMiss
	if got.Status == cache.StatusBypass {
		status = cache.StatusBypass
	}
	span.SetAttributes(attribute.String("cache.status", string(status)))

	slots, err := s.load(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, status, err
	}

	if payload, err := json.Marshal(slots); err == nil {
		s.cache.Set(ctx, s.cfg.AvailableKey, payload)
	}
	s.logger.Debug("available listing", "cache", status, "reason", got.Reason, "count", len(slots))
	return slots, status, nil
}

func (s *Service) load(ctx context.Context) ([]model.Slot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	stored, err := s.store.ListByStatus(ctx, model.StatusAvailable)
	if err != nil {
		return nil, errs.Mark(errs.Wrap(err, "list available slots"), model.ErrBackendUnavailable)
	}
	slots := make([]model.Slot, 0, len(stored))
	for _, slot := range stored {
		slots = append(slots, slot.Public())
	}
	model.SortByDateTime(slots)
	return slots, nil
}
