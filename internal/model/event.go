package model

import "time"

// Event represents a row in the `events` table.  Date and times are stored
// as the strings the client submits ("2006-01-02", "15:04:05").
//
// Fields:
//  ID          – events.id (uuid)
//  Name        – display name
//  Date        – calendar day of the event
//  StartTime   – door opening time
//  EndTime     – closing time
//  Active      – false once the event is completed
//  Cancelled   – set by the cancel action, terminal
//  Completed   – set by the complete action
type Event struct {
	ID          string
	Name        string
	Date        string
	StartTime   string
	EndTime     string
	Location    string
	Description string
	Category    string
	Active      bool
	Cancelled   bool
	Completed   bool
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AcceptsScans reports whether validations are allowed for the event.
func (e Event) AcceptsScans() bool { return e.Active && !e.Cancelled }

// EventSummary aggregates guest counters for one event.
type EventSummary struct {
	EventID            string `json:"eventId"`
	TotalGuests        int    `json:"totalGuests"`
	ScannedGuestsCount int    `json:"scannedGuestsCount"`
	CompletedGuests    int    `json:"completedGuests"`
	TotalAllowedScans  int    `json:"totalAllowedScans"`
	ConsumedScans      int    `json:"consumedScans"`
}
