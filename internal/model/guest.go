package model

import (
	"fmt"
	"strings"
	"time"
)

// GuestType is the admission allowance printed on an invitation.
type GuestType string

const (
	GuestSingle GuestType = "single" // one admission
	GuestDouble GuestType = "double" // guest plus companion
)

// ParseGuestType normalises spreadsheet values ("Single", " DOUBLE ", "2").
// Anything unrecognised becomes a single ticket.
func ParseGuestType(s string) GuestType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "double", "2", "couple", "plus one", "plus-one", "+1":
		return GuestDouble
	default:
		return GuestSingle
	}
}

// AllowedScans is the number of admissions the ticket grants.
func (t GuestType) AllowedScans() int {
	if t == GuestDouble {
		return 2
	}
	return 1
}

// ScanState is the position of a ticket in its check-in lifecycle.
type ScanState string

const (
	StateNotStarted        ScanState = "NotStarted"
	StatePartiallyConsumed ScanState = "PartiallyConsumed"
	StateFullyConsumed     ScanState = "FullyConsumed"
)

// Guest mirrors a row of the `guests` table.  A guest is one invitee of
// one event.  ConsumedScans only ever grows and never exceeds
// Type.AllowedScans(); the ledger enforces that bound in its conditional
// update.  The raw QR token is never stored, only its SHA-256 hex digest.
//
// Fields:
//  ID            – guests.id (uuid)
//  EventID       – owning event
//  FirstName, LastName, Phone – display fields
//  Type          – single | double
//  ConsumedScans – accepted admissions so far
//  QRTokenHash   – digest of the current token; empty until one is issued
//  TokenIssuedAt – when the current token was issued
//  LastScannedAt – timestamp of the latest accepted scan
//  LastScannedBy – operator of the latest accepted scan
type Guest struct {
	ID            string
	EventID       string
	FirstName     string
	LastName      string
	Phone         string
	Type          GuestType
	ConsumedScans int
	QRTokenHash   string
	TokenIssuedAt *time.Time
	LastScannedAt *time.Time
	LastScannedBy *string
	CreatedAt     time.Time
}

// TotalAllowedScans is derived from the ticket type.
func (g Guest) TotalAllowedScans() int { return g.Type.AllowedScans() }

// RemainingScans never goes negative even if the row was edited by hand.
func (g Guest) RemainingScans() int {
	r := g.TotalAllowedScans() - g.ConsumedScans
	if r < 0 {
		return 0
	}
	return r
}

// State derives the lifecycle state from the consumed counter.
func (g Guest) State() ScanState {
	switch {
	case g.ConsumedScans <= 0:
		return StateNotStarted
	case g.ConsumedScans >= g.TotalAllowedScans():
		return StateFullyConsumed
	default:
		return StatePartiallyConsumed
	}
}

// Status is the label shown in guest lists and scan results.
func (g Guest) Status() string {
	switch g.State() {
	case StateNotStarted:
		return "Pending"
	case StateFullyConsumed:
		return "Confirmed"
	default:
		return fmt.Sprintf("%d remaining", g.RemainingScans())
	}
}

// FullName joins the display names, skipping empty parts.
func (g Guest) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(g.FirstName) + " " + strings.TrimSpace(g.LastName))
}
