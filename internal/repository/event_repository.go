// Package repository contains data access logic.  This file covers the
// events table: CRUD, lifecycle flags used by the scan validator, and the
// cascade delete that removes the guest ledger with its event.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/venue-scan/internal/model"
)

// EventRepo manages persistence for events.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the provided database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// DB exposes the underlying sql.DB so callers can begin transactions
// spanning the event and guest repositories.
func (r *EventRepo) DB() *sql.DB { return r.db }

const eventColumns = `id, name, event_date, start_time, end_time, location, description, category,
       active, cancelled, completed, created_by, created_at, updated_at`

// CreateTx inserts a new active event inside the caller's transaction and
// fills in ID and timestamps.
func (r *EventRepo) CreateTx(ctx context.Context, tx *sql.Tx, e *model.Event) error {
	now := time.Now().UTC()
	e.ID = uuid.NewString()
	e.Active, e.Cancelled, e.Completed = true, false, false
	e.CreatedAt, e.UpdatedAt = now, now
	_, err := tx.ExecContext(ctx, `INSERT INTO events (`+eventColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.Name, e.Date, e.StartTime, e.EndTime, e.Location, e.Description, e.Category,
		e.Active, e.Cancelled, e.Completed, e.CreatedBy, e.CreatedAt, e.UpdatedAt)
	return err
}

// GetByID loads one event.  It returns ErrEventNotFound when absent.
func (r *EventRepo) GetByID(ctx context.Context, id string) (model.Event, error) {
	e, err := scanEvent(r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, ErrEventNotFound
	}
	return e, err
}

// List returns every event, newest date first.
func (r *EventRepo) List(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events ORDER BY event_date DESC, created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := []model.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// UpdateDetailsTx rewrites the descriptive fields of an event.  Lifecycle
// flags are changed only through Complete and Cancel.
func (r *EventRepo) UpdateDetailsTx(ctx context.Context, tx *sql.Tx, e *model.Event) error {
	e.UpdatedAt = time.Now().UTC()
	res, err := tx.ExecContext(ctx, `UPDATE events SET name=?, event_date=?, start_time=?, end_time=?, location=?,
	       description=?, category=?, updated_at=? WHERE id=?`,
		e.Name, e.Date, e.StartTime, e.EndTime, e.Location, e.Description, e.Category, e.UpdatedAt, e.ID)
	if err != nil {
		return err
	}
	return requireOneRow(res, ErrEventNotFound)
}

// Complete closes the event for scanning.
func (r *EventRepo) Complete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE events SET active=?, completed=?, updated_at=? WHERE id=?`, false, true, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireOneRow(res, ErrEventNotFound)
}

// Cancel marks the event cancelled; cancelled events never accept scans.
func (r *EventRepo) Cancel(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE events SET cancelled=?, updated_at=? WHERE id=?`, true, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireOneRow(res, ErrEventNotFound)
}

// Delete removes the event and everything scoped to it in one transaction.
func (r *EventRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, q := range []string{
		`DELETE FROM scan_records WHERE event_id = ?`,
		`DELETE FROM invitations WHERE event_id = ?`,
		`DELETE FROM scan_permissions WHERE event_id = ?`,
		`DELETE FROM guests WHERE event_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return err
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := requireOneRow(res, ErrEventNotFound); err != nil {
		return err
	}
	return tx.Commit()
}

// Summary aggregates the guest counters of one event.
func (r *EventRepo) Summary(ctx context.Context, id string) (model.EventSummary, error) {
	s := model.EventSummary{EventID: id}
	err := r.db.QueryRowContext(ctx, `SELECT
	        COUNT(*),
	        COALESCE(SUM(CASE WHEN consumed_scans > 0 THEN 1 ELSE 0 END), 0),
	        COALESCE(SUM(CASE WHEN (type = 'double' AND consumed_scans >= 2) OR (type <> 'double' AND consumed_scans >= 1) THEN 1 ELSE 0 END), 0),
	        COALESCE(SUM(CASE WHEN type = 'double' THEN 2 ELSE 1 END), 0),
	        COALESCE(SUM(consumed_scans), 0)
	    FROM guests WHERE event_id = ?`, id).
		Scan(&s.TotalGuests, &s.ScannedGuestsCount, &s.CompletedGuests, &s.TotalAllowedScans, &s.ConsumedScans)
	return s, err
}

// DashboardTotals is the cross-event overview.
type DashboardTotals struct {
	TotalEvents   int `json:"totalEvents"`
	ActiveEvents  int `json:"activeEvents"`
	TotalGuests   int `json:"totalGuests"`
	CheckedIn     int `json:"checkedInGuests"`
	ScansSince    int `json:"scansToday"`
	TotalScanners int `json:"totalScanners"`
}

// Dashboard computes DashboardTotals; scans are counted from since.
func (r *EventRepo) Dashboard(ctx context.Context, since time.Time) (DashboardTotals, error) {
	var d DashboardTotals
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN active AND NOT cancelled THEN 1 ELSE 0 END), 0) FROM events`).
		Scan(&d.TotalEvents, &d.ActiveEvents); err != nil {
		return d, err
	}
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN consumed_scans > 0 THEN 1 ELSE 0 END), 0) FROM guests`).
		Scan(&d.TotalGuests, &d.CheckedIn); err != nil {
		return d, err
	}
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scan_records WHERE scanned_at >= ?`, since.UTC()).Scan(&d.ScansSince); err != nil {
		return d, err
	}
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role = 'SCANNER'`).Scan(&d.TotalScanners)
	return d, err
}

func scanEvent(s rowScanner) (model.Event, error) {
	var (
		e    model.Event
		desc sql.NullString
	)
	err := s.Scan(&e.ID, &e.Name, &e.Date, &e.StartTime, &e.EndTime, &e.Location, &desc, &e.Category,
		&e.Active, &e.Cancelled, &e.Completed, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	e.Description = desc.String
	return e, err
}
