// Package workflow starts downstream executions when a claim is accepted or
// declined. Delivery is at-least-once; consumers dedupe on event_id.
package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/slot-service/internal/model"
)

type Signal struct {
	SlotID     string       `json:"slot_id"`
	Status     model.Status `json:"status"`
	OccurredAt time.Time    `json:"occurred_at"`
}

type Trigger interface {
	Start(ctx context.Context, sig Signal) error
}

// Disabled drops signals; used when no broker is configured.
type Disabled struct {
	Logger *slog.Logger
}

func (d Disabled) Start(_ context.Context, sig Signal) error {
	if d.Logger != nil {
		d.Logger.Debug("workflow trigger disabled; signal dropped", "slot_id", sig.SlotID, "status", sig.Status)
	}
	return nil
}
