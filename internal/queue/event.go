// Package queue defines message payloads exchanged over the message broker
// and the background consumers that process them.
package queue

// Queue names.  Both queues are durable.
const (
	CheckedInQueue          = "guest.checked_in"
	InvitationsRequestQueue = "invitations.requested"
)

// GuestCheckedInEvent is published after the ledger accepted a scan.  It
// carries enough to write an audit line without querying the database.
type GuestCheckedInEvent struct {
	ScanID         string `json:"scan_id"`
	EventID        string `json:"event_id"`
	GuestID        string `json:"guest_id"`
	GuestName      string `json:"guest_name"`
	GuestType      string `json:"guest_type"`
	OperatorID     string `json:"operator_id"`
	ConsumedScans  int    `json:"consumed_scans"`
	RemainingScans int    `json:"remaining_scans"`
	State          string `json:"state"`
	ScannedAt      string `json:"scanned_at"`
}

// InvitationRequestedEvent asks the invitation consumer to issue fresh QR
// tokens for every guest of an event and dispatch them.
type InvitationRequestedEvent struct {
	EventID     string `json:"event_id"`
	Message     string `json:"message"`
	Method      string `json:"method"`
	RequestedBy string `json:"requested_by"`
	RequestedAt string `json:"requested_at"`
}
