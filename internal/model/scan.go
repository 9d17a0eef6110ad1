package model

import "time"

// ScanRecord is one accepted admission.  Rows are append-only and the
// number of rows per guest never exceeds the guest's allowance.
type ScanRecord struct {
	ID        string    `json:"id"`
	GuestID   string    `json:"guestId"`
	EventID   string    `json:"eventId"`
	ScannedAt time.Time `json:"scannedAt"`
	ScannedBy string    `json:"scannedBy"`
	Type      GuestType `json:"type"`
}

// ScanPermission authorises a SCANNER operator to validate tickets for one
// event.
type ScanPermission struct {
	ID        string    `json:"id"`
	EventID   string    `json:"eventId"`
	UserID    string    `json:"userId"`
	GrantedBy string    `json:"grantedBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// Invitation records one dispatch attempt to one guest.
type Invitation struct {
	ID      string    `json:"id"`
	EventID string    `json:"eventId"`
	GuestID string    `json:"guestId"`
	Channel string    `json:"channel"`
	Status  string    `json:"status"`
	Error   string    `json:"error,omitempty"`
	SentAt  time.Time `json:"sentAt"`
}
