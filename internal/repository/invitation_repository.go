package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/venue-scan/internal/model"
)

// Invitation delivery states.
const (
	InvitationSent   = "sent"
	InvitationFailed = "failed"
)

// InvitationRepo records invitation dispatch attempts.
type InvitationRepo struct {
	db *sql.DB
}

// NewInvitationRepo returns a new InvitationRepo bound to the provided database.
func NewInvitationRepo(db *sql.DB) *InvitationRepo { return &InvitationRepo{db: db} }

// Record appends one dispatch attempt.
func (r *InvitationRepo) Record(ctx context.Context, inv *model.Invitation) error {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.SentAt.IsZero() {
		inv.SentAt = time.Now().UTC()
	}
	if len(inv.Error) > 255 {
		inv.Error = inv.Error[:255]
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO invitations (id, event_id, guest_id, channel, status, error, sent_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.EventID, inv.GuestID, inv.Channel, inv.Status, inv.Error, inv.SentAt)
	return err
}

// InvitationStatus is the per-event dispatch overview.
type InvitationStatus struct {
	EventID     string             `json:"eventId"`
	TotalGuests int                `json:"totalGuests"`
	Sent        int                `json:"sent"`
	Failed      int                `json:"failed"`
	Invitations []model.Invitation `json:"invitations"`
}

// StatusByEvent returns every attempt for an event, newest first, with
// counters.  Sent counts distinct guests that received at least one
// invitation.
func (r *InvitationRepo) StatusByEvent(ctx context.Context, eventID string) (InvitationStatus, error) {
	st := InvitationStatus{EventID: eventID, Invitations: []model.Invitation{}}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM guests WHERE event_id = ?`, eventID).
		Scan(&st.TotalGuests); err != nil {
		return st, err
	}
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT guest_id) FROM invitations WHERE event_id = ? AND status = ?`, eventID, InvitationSent).
		Scan(&st.Sent); err != nil {
		return st, err
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id, event_id, guest_id, channel, status, error, sent_at
	   FROM invitations WHERE event_id = ? ORDER BY sent_at DESC`, eventID)
	if err != nil {
		return st, err
	}
	defer rows.Close()
	for rows.Next() {
		var inv model.Invitation
		if err := rows.Scan(&inv.ID, &inv.EventID, &inv.GuestID, &inv.Channel, &inv.Status, &inv.Error, &inv.SentAt); err != nil {
			return st, err
		}
		if inv.Status == InvitationFailed {
			st.Failed++
		}
		st.Invitations = append(st.Invitations, inv)
	}
	return st, rows.Err()
}
