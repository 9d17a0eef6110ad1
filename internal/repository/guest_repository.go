package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/venue-scan/internal/model"
)

// GuestRepo is the guest/ticket ledger.  It is the only writer of
// guests.consumed_scans and scan_records, and it enforces
// 0 <= consumed_scans <= allowed scans through a conditional update
// (compare-and-swap on the counter) instead of row locks, so concurrent
// doors never block each other on unrelated guests.
type GuestRepo struct {
	db *sql.DB
}

// NewGuestRepo returns a new GuestRepo bound to the provided database.
func NewGuestRepo(db *sql.DB) *GuestRepo { return &GuestRepo{db: db} }

const guestColumns = `id, event_id, first_name, last_name, phone, type, consumed_scans, qr_token_hash,
       token_issued_at, last_scanned_at, last_scanned_by, created_at`

// InsertManyTx inserts guests for an event inside the caller's transaction.
// Missing IDs are generated; ConsumedScans is forced to zero.
func (r *GuestRepo) InsertManyTx(ctx context.Context, tx *sql.Tx, eventID string, guests []model.Guest) error {
	if len(guests) == 0 {
		return nil
	}
	query := `INSERT INTO guests (id, event_id, first_name, last_name, phone, type, consumed_scans, qr_token_hash, token_issued_at, created_at) VALUES `
	args := make([]interface{}, 0, len(guests)*10)
	now := time.Now().UTC()
	for i := range guests {
		g := &guests[i]
		if g.ID == "" {
			g.ID = uuid.NewString()
		}
		if g.Type == "" {
			g.Type = model.GuestSingle
		}
		g.EventID, g.ConsumedScans, g.CreatedAt = eventID, 0, now
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
		args = append(args, g.ID, eventID, g.FirstName, g.LastName, g.Phone, string(g.Type), 0, g.QRTokenHash, nullTime(g.TokenIssuedAt), now)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// UpdateProfileTx rewrites the display fields of an existing guest inside
// the caller's transaction.  The id, token and counter are left alone.  A
// type change that would drop the allowance below the admissions already
// recorded is ignored.
func (r *GuestRepo) UpdateProfileTx(ctx context.Context, tx *sql.Tx, g model.Guest) error {
	typ := g.Type
	if typ == "" {
		typ = model.GuestSingle
	}
	// MySQL reports zero affected rows for an unchanged row, so the row
	// count is not checked here; callers read the guest in the same tx.
	_, err := tx.ExecContext(ctx, `UPDATE guests
	       SET first_name = ?, last_name = ?, phone = ?,
	           type = CASE WHEN consumed_scans <= ? THEN ? ELSE type END
	     WHERE id = ? AND event_id = ?`,
		g.FirstName, g.LastName, g.Phone, typ.AllowedScans(), string(typ), g.ID, g.EventID)
	return err
}

// ListByEvent returns all guests of an event ordered by name.
func (r *GuestRepo) ListByEvent(ctx context.Context, eventID string) ([]model.Guest, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+guestColumns+` FROM guests WHERE event_id = ? ORDER BY first_name, last_name, id`, eventID)
	if err != nil {
		return nil, err
	}
	return collectGuests(rows)
}

// ListByEventTx is ListByEvent inside the caller's transaction, so a
// guest list merge sees the same rows it writes.
func (r *GuestRepo) ListByEventTx(ctx context.Context, tx *sql.Tx, eventID string) ([]model.Guest, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+guestColumns+` FROM guests WHERE event_id = ? ORDER BY first_name, last_name, id`, eventID)
	if err != nil {
		return nil, err
	}
	return collectGuests(rows)
}

func collectGuests(rows *sql.Rows) ([]model.Guest, error) {
	defer rows.Close()
	guests := []model.Guest{}
	for rows.Next() {
		g, err := scanGuest(rows)
		if err != nil {
			return nil, err
		}
		guests = append(guests, g)
	}
	return guests, rows.Err()
}

// ReadGuest loads one guest scoped to its event.  A guest id that exists
// under another event is reported as ErrGuestNotFound.
func (r *GuestRepo) ReadGuest(ctx context.Context, eventID, guestID string) (model.Guest, error) {
	g, err := scanGuest(r.db.QueryRowContext(ctx,
		`SELECT `+guestColumns+` FROM guests WHERE id = ? AND event_id = ?`, guestID, eventID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Guest{}, ErrGuestNotFound
	}
	return g, err
}

// SetTokenHash stores the digest of a newly issued QR token.  The previous
// token stops validating as soon as this commits.
func (r *GuestRepo) SetTokenHash(ctx context.Context, eventID, guestID, tokenHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE guests SET qr_token_hash = ?, token_issued_at = ? WHERE id = ? AND event_id = ?`,
		tokenHash, time.Now().UTC(), guestID, eventID)
	if err != nil {
		return err
	}
	return requireOneRow(res, ErrGuestNotFound)
}

// TryConsumeScan increments consumed_scans from expected to expected+1 and
// appends rec in the same transaction.  It returns false, with no state
// change, when another request moved the counter first, when the token was
// rotated away from tokenHash, or when the ticket has no allowance left.
// rec.ID and rec.ScannedAt are filled on success.
func (r *GuestRepo) TryConsumeScan(ctx context.Context, eventID, guestID, tokenHash string, expected int, rec *model.ScanRecord) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `UPDATE guests
	       SET consumed_scans = consumed_scans + 1, last_scanned_at = ?, last_scanned_by = ?
	     WHERE id = ? AND event_id = ? AND consumed_scans = ? AND qr_token_hash = ?
	       AND consumed_scans < (CASE WHEN type = 'double' THEN 2 ELSE 1 END)`,
		now, rec.ScannedBy, guestID, eventID, expected, tokenHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	rec.GuestID, rec.EventID, rec.ScannedAt = guestID, eventID, now
	if err := r.AppendScanRecordTx(ctx, tx, rec); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	committed = true
	return true, nil
}

// AppendScanRecordTx inserts one scan record inside the caller's
// transaction.  Callers must only append after a successful counter update
// in the same transaction.
func (r *GuestRepo) AppendScanRecordTx(ctx context.Context, tx *sql.Tx, rec *model.ScanRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.ScannedAt.IsZero() {
		rec.ScannedAt = time.Now().UTC()
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO scan_records (id, guest_id, event_id, scanned_at, scanned_by, type) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.GuestID, rec.EventID, rec.ScannedAt, rec.ScannedBy, string(rec.Type))
	return err
}

// ScanHistoryEntry is a scan record joined with the guest's display name.
type ScanHistoryEntry struct {
	model.ScanRecord
	GuestName string `json:"guestName"`
}

// ListScanRecords returns the scan history of an event, newest first.
func (r *GuestRepo) ListScanRecords(ctx context.Context, eventID string) ([]ScanHistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT s.id, s.guest_id, s.event_id, s.scanned_at, s.scanned_by, s.type,
	        COALESCE(g.first_name, ''), COALESCE(g.last_name, '')
	   FROM scan_records s LEFT JOIN guests g ON g.id = s.guest_id
	  WHERE s.event_id = ?
	  ORDER BY s.scanned_at DESC`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ScanHistoryEntry{}
	for rows.Next() {
		var (
			e           ScanHistoryEntry
			typ         string
			first, last string
		)
		if err := rows.Scan(&e.ID, &e.GuestID, &e.EventID, &e.ScannedAt, &e.ScannedBy, &typ, &first, &last); err != nil {
			return nil, err
		}
		e.Type = model.GuestType(typ)
		e.GuestName = model.Guest{FirstName: first, LastName: last}.FullName()
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountScanRecords returns how many admissions were recorded for a guest.
func (r *GuestRepo) CountScanRecords(ctx context.Context, eventID, guestID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scan_records WHERE event_id = ? AND guest_id = ?`, eventID, guestID).Scan(&n)
	return n, err
}

func scanGuest(s rowScanner) (model.Guest, error) {
	var (
		g                     model.Guest
		typ                   string
		issuedAt, lastScanned sql.NullTime
		lastBy                sql.NullString
	)
	err := s.Scan(&g.ID, &g.EventID, &g.FirstName, &g.LastName, &g.Phone, &typ, &g.ConsumedScans, &g.QRTokenHash,
		&issuedAt, &lastScanned, &lastBy, &g.CreatedAt)
	if err != nil {
		return g, err
	}
	g.Type = model.ParseGuestType(typ)
	if issuedAt.Valid {
		t := issuedAt.Time
		g.TokenIssuedAt = &t
	}
	if lastScanned.Valid {
		t := lastScanned.Time
		g.LastScannedAt = &t
	}
	if lastBy.Valid {
		s := lastBy.String
		g.LastScannedBy = &s
	}
	return g, nil
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
