package model

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

type Status string

const (
	StatusAvailable Status = "AVAILABLE"
	StatusPending   Status = "PENDING"
	StatusAccepted  Status = "ACCEPTED"
	StatusDeclined  Status = "DECLINED"
)

// DateLayout is the calendar date format of Slot.Date.
const DateLayout = "2006-01-02"

func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	return s, s.Valid()
}

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusPending, StatusAccepted, StatusDeclined:
		return true
	}
	return false
}

// Resolution reports whether s is a back-office decision on a claim.
func (s Status) Resolution() bool {
	return s == StatusAccepted || s == StatusDeclined
}

type Slot struct {
	SlotID          string    `json:"slot_id"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	Status          Status    `json:"status"`
	ClaimantContact string    `json:"claimant_contact,omitempty"`
	ClaimantName    string    `json:"claimant_name,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	UpdatedAt       time.Time `json:"updated_at,omitzero"`
}

// Public strips claimant details for anonymous listings.
func (s Slot) Public() Slot {
	return Slot{SlotID: s.SlotID, Date: s.Date, Time: s.Time, Status: s.Status}
}

// SortByDateTime orders slots by (date, time) ascending, comparing both as
// plain strings. Ties fall back to the slot id so the order is total.
func SortByDateTime(slots []Slot) {
	slices.SortFunc(slots, func(a, b Slot) int {
		return cmp.Or(
			strings.Compare(a.Date, b.Date),
			strings.Compare(a.Time, b.Time),
			strings.Compare(a.SlotID, b.SlotID),
		)
	})
}
