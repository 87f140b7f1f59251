package provisioning

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/md-rashed-zaman/slotbook/services/slot-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/slot-service/internal/storage"
)

func TestLabels_Basic(t *testing.T) {
	labels := Labels(9*time.Hour, 10*time.Hour, 15*time.Minute, 15*time.Minute, []Interval{
		{Start: 9*time.Hour + 15*time.Minute, End: 9*time.Hour + 45*time.Minute},
	})
	if diff := cmp.Diff([]string{"09:00", "09:45"}, labels); diff != "" {
		t.Fatalf("labels mismatch (-want +got):\n%s", diff)
	}
}

func TestLabels_DefaultWorkday(t *testing.T) {
	labels := Labels(9*time.Hour, 18*time.Hour, time.Hour, time.Hour, nil)
	want := []string{"09:00", "10:00", "11:00", "12:00", "13:00", "14:00", "15:00", "16:00", "17:00"}
	if diff := cmp.Diff(want, labels); diff != "" {
		t.Fatalf("labels mismatch (-want +got):\n%s", diff)
	}
}

func TestLabels_Degenerate(t *testing.T) {
	if got := Labels(10*time.Hour, 9*time.Hour, time.Hour, time.Hour, nil); got != nil {
		t.Fatalf("expected nil for inverted window, got %v", got)
	}
	if got := Labels(9*time.Hour, 9*time.Hour+30*time.Minute, time.Hour, time.Hour, nil); got != nil {
		t.Fatalf("expected nil when length exceeds window, got %v", got)
	}
	if got := Labels(9*time.Hour, 10*time.Hour, time.Hour, 0, nil); got != nil {
		t.Fatalf("expected nil for zero step, got %v", got)
	}
}

func TestParseInterval(t *testing.T) {
	iv, err := ParseInterval("12:00-13:30")
	if err != nil {
		t.Fatalf("ParseInterval failed: %v", err)
	}
	if iv.Start != 12*time.Hour || iv.End != 13*time.Hour+30*time.Minute {
		t.Fatalf("unexpected interval %+v", iv)
	}
	for _, bad := range []string{"12:00", "13:00-12:00", "noon-13:00", "12:00-25:00"} {
		if _, err := ParseInterval(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
	if end, err := ParseClock("24:00"); err != nil || end != 24*time.Hour {
		t.Fatalf("expected 24:00 end of day, got %v %v", end, err)
	}
}

func TestPlan_SkipsWeekends(t *testing.T) {
	// 2026-01-09 is a Friday.
	from := time.Date(2026, 1, 9, 17, 30, 0, 0, time.UTC)
	slots := Plan(from, 4, []string{"09:00", "10:00"}, true)

	var ids []string
	for _, s := range slots {
		if s.Status != model.StatusAvailable {
			t.Fatalf("planned slot %s not AVAILABLE", s.SlotID)
		}
		ids = append(ids, s.SlotID)
	}
	want := []string{
		"slot-2026-01-09-0900", "slot-2026-01-09-1000",
		"slot-2026-01-12-0900", "slot-2026-01-12-1000",
	}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Fatalf("plan mismatch (-want +got):\n%s", diff)
	}

	if n := len(Plan(from, 4, []string{"09:00"}, false)); n != 4 {
		t.Fatalf("expected 4 slots with weekends, got %d", n)
	}
}

func TestSeed_DoesNotOverwrite(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	slots := Plan(time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC), 1, []string{"09:00", "10:00"}, true)

	rep, err := Seed(ctx, store, slots)
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if rep != (Report{Created: 2}) {
		t.Fatalf("unexpected first report %+v", rep)
	}

	res, _, err := store.ConditionalUpdate(ctx, slots[0].SlotID, storage.Update{
		Expected: model.StatusAvailable,
		Status:   model.StatusPending,
		Claimant: &storage.Claimant{Contact: "a@example.com"},
	})
	if err != nil || res != storage.UpdateOK {
		t.Fatalf("claim failed: %v %v", res, err)
	}

	rep, err = Seed(ctx, store, slots)
	if err != nil {
		t.Fatalf("reseed failed: %v", err)
	}
	if rep != (Report{Skipped: 2}) {
		t.Fatalf("unexpected reseed report %+v", rep)
	}
	got, _ := store.Get(ctx, slots[0].SlotID)
	if got.Status != model.StatusPending || got.ClaimantContact != "a@example.com" {
		t.Fatalf("reseed overwrote a claimed slot: %+v", got)
	}
}
