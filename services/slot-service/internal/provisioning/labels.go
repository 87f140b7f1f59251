// Package provisioning generates the bookable slot calendar.
package provisioning

import (
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/errs"
)

// Interval is a half-open [Start, End) span measured from midnight.
type Interval struct {
	Start time.Duration
	End   time.Duration
}

// Labels returns the HH:MM start labels within [windowStart, windowEnd)
// where a slot of the given length fits without overlapping any blackout.
func Labels(windowStart, windowEnd, length, step time.Duration, blackouts []Interval) []string {
	if length <= 0 || step <= 0 {
		return nil
	}
	if windowEnd <= windowStart || windowStart+length > windowEnd {
		return nil
	}

	var labels []string
	for t := windowStart; t+length <= windowEnd; t += step {
		if !overlapsAny(t, t+length, blackouts) {
			labels = append(labels, FormatClock(t))
		}
	}
	return labels
}

func overlapsAny(start, end time.Duration, blackouts []Interval) bool {
	for _, b := range blackouts {
		if start < b.End && b.Start < end {
			return true
		}
	}
	return false
}

// ParseClock parses "HH:MM" into an offset from midnight. "24:00" is
// accepted as an end-of-day bound.
func ParseClock(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "24:00" {
		return 24 * time.Hour, nil
	}
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return 0, errs.Wrapf(err, "invalid clock %q", raw)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func FormatClock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d/time.Hour), int(d%time.Hour/time.Minute))
}

// ParseInterval parses "HH:MM-HH:MM".
func ParseInterval(raw string) (Interval, error) {
	from, to, ok := strings.Cut(raw, "-")
	if !ok {
		return Interval{}, errs.Newf("invalid interval %q: want HH:MM-HH:MM", raw)
	}
	start, err := ParseClock(from)
	if err != nil {
		return Interval{}, err
	}
	end, err := ParseClock(to)
	if err != nil {
		return Interval{}, err
	}
	if end <= start {
		return Interval{}, errs.Newf("invalid interval %q: end must be after start", raw)
	}
	return Interval{Start: start, End: end}, nil
}
