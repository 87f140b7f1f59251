package storage

import (
	"context"
	"sync"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/errs"
	"github.com/md-rashed-zaman/slotbook/services/slot-service/internal/model"
)

// MemoryStore is a process-local SlotStore for development and tests.
type MemoryStore struct {
	mu    sync.Mutex
	slots map[string]model.Slot
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: map[string]model.Slot{}, now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, slotID string) (model.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slots[slotID]
	if !ok {
		return model.Slot{}, errs.Mark(errs.Newf("slot %q", slotID), model.ErrNotFound)
	}
	return slot, nil
}

func (s *MemoryStore) ListByStatus(_ context.Context, status model.Status) ([]model.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Slot, 0, len(s.slots))
	for _, slot := range s.slots {
		if slot.Status == status {
			out = append(out, slot)
		}
	}
	return out, nil
}

func (s *MemoryStore) List(_ context.Context, limit int) ([]model.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Slot, 0, len(s.slots))
	for _, slot := range s.slots {
		out = append(out, slot)
	}
	model.SortByDateTime(out)
	if limit = normalizeLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ConditionalUpdate(_ context.Context, slotID string, u Update) (UpdateResult, model.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slots[slotID]
	if !ok {
		return UpdateNotFound, model.Slot{}, nil
	}
	if u.Expected != AnyStatus && slot.Status != u.Expected {
		return UpdatePreconditionFailed, model.Slot{}, nil
	}

	slot.Status = u.Status
	if u.Claimant != nil {
		slot.ClaimantContact = u.Claimant.Contact
		slot.ClaimantName = u.Claimant.Name
		slot.Notes = u.Claimant.Notes
	}
	slot.UpdatedAt = s.now().UTC()
	s.slots[slotID] = slot
	return UpdateOK, slot, nil
}

func (s *MemoryStore) CreateIfAbsent(_ context.Context, slot model.Slot) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.slots[slot.SlotID]; exists {
		return false, nil
	}
	if slot.UpdatedAt.IsZero() {
		slot.UpdatedAt = s.now().UTC()
	}
	s.slots[slot.SlotID] = slot
	return true, nil
}
