// Package storage holds the authoritative slot records. Its conditional
// update is the only primitive that decides who wins a slot.
package storage

import (
	"context"

	"github.com/md-rashed-zaman/slotbook/services/slot-service/internal/model"
)

// UpdateResult is the outcome of a conditional update. A failed precondition
// is a normal result, not an error.
type UpdateResult int

const (
	UpdateOK UpdateResult = iota
	UpdatePreconditionFailed
	UpdateNotFound
)

func (r UpdateResult) String() string {
	switch r {
	case UpdateOK:
		return "ok"
	case UpdatePreconditionFailed:
		return "precondition_failed"
	case UpdateNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// AnyStatus as Update.Expected only requires the record to exist.
const AnyStatus model.Status = ""

// Claimant replaces the claimant fields of a slot.
type Claimant struct {
	Contact string
	Name    string
	Notes   string
}

type Update struct {
	Expected model.Status
	Status   model.Status
	// Claimant is applied together with Status; nil leaves the stored
	// claimant fields untouched.
	Claimant *Claimant
}

type SlotStore interface {
	// Get returns an error marked model.ErrNotFound for unknown ids.
	Get(ctx context.Context, slotID string) (model.Slot, error)
	ListByStatus(ctx context.Context, status model.Status) ([]model.Slot, error)
	// List returns up to limit slots of any status.
	List(ctx context.Context, limit int) ([]model.Slot, error)
	// ConditionalUpdate applies u atomically if the current status matches
	// u.Expected. Of several racing callers with the same expectation exactly
	// one observes UpdateOK. The returned slot is only set for UpdateOK.
	ConditionalUpdate(ctx context.Context, slotID string, u Update) (UpdateResult, model.Slot, error)
	// CreateIfAbsent inserts slot unless its id already exists.
	CreateIfAbsent(ctx context.Context, slot model.Slot) (bool, error)
}

const defaultListLimit = 500

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > defaultListLimit {
		return defaultListLimit
	}
	return limit
}
