package provisioning

import (
	"context"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/errs"
	"github.com/md-rashed-zaman/slotbook/services/slot-service/internal/model"
)

// Plan lays out AVAILABLE slots for each label on days consecutive
// calendar days starting at from. IDs are deterministic, so replanning the
// same range produces the same slots.
func Plan(from time.Time, days int, labels []string, skipWeekends bool) []model.Slot {
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	var slots []model.Slot
	for i := range days {
		d := day.AddDate(0, 0, i)
		if skipWeekends && (d.Weekday() == time.Saturday || d.Weekday() == time.Sunday) {
			continue
		}
		date := d.Format(model.DateLayout)
		for _, label := range labels {
			slots = append(slots, model.Slot{
				SlotID: SlotID(date, label),
				Date:   date,
				Time:   label,
				Status: model.StatusAvailable,
			})
		}
	}
	return slots
}

func SlotID(date, label string) string {
	return "slot-" + date + "-" + strings.ReplaceAll(label, ":", "")
}

type Creator interface {
	CreateIfAbsent(ctx context.Context, slot model.Slot) (bool, error)
}

type Report struct {
	Created int
	Skipped int
}

// Seed inserts slots that don't exist yet. Existing records are never
// touched, so a booked slot survives a rerun.
func Seed(ctx context.Context, store Creator, slots []model.Slot) (Report, error) {
	var rep Report
	for _, slot := range slots {
		created, err := store.CreateIfAbsent(ctx, slot)
		if err != nil {
			return rep, errs.Wrapf(err, "create %s", slot.SlotID)
		}
		if created {
			rep.Created++
		} else {
			rep.Skipped++
		}
	}
	return rep, nil
}
