package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/venue-scan/internal/model"
)

// PermissionRepo stores which SCANNER operators may validate tickets for
// which event.
type PermissionRepo struct {
	db *sql.DB
}

// NewPermissionRepo returns a new PermissionRepo bound to the provided database.
func NewPermissionRepo(db *sql.DB) *PermissionRepo { return &PermissionRepo{db: db} }

// PermissionView is a grant joined with the operator's identity.
type PermissionView struct {
	model.ScanPermission
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

// Grant authorises userID to scan eventID.  A second grant for the same
// pair returns ErrConflict.
func (r *PermissionRepo) Grant(ctx context.Context, eventID, userID, grantedBy string) (model.ScanPermission, error) {
	p := model.ScanPermission{
		ID:        uuid.NewString(),
		EventID:   eventID,
		UserID:    userID,
		GrantedBy: grantedBy,
		CreatedAt: time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO scan_permissions (id, event_id, user_id, granted_by, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.EventID, p.UserID, p.GrantedBy, p.CreatedAt)
	if isDuplicate(err) {
		return model.ScanPermission{}, ErrConflict
	}
	return p, err
}

// ListByEvent returns the grants of an event with operator details.
func (r *PermissionRepo) ListByEvent(ctx context.Context, eventID string) ([]PermissionView, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT p.id, p.event_id, p.user_id, p.granted_by, p.created_at,
	        COALESCE(u.email, ''), COALESCE(u.first_name, ''), COALESCE(u.last_name, '')
	   FROM scan_permissions p LEFT JOIN users u ON u.id = p.user_id
	  WHERE p.event_id = ?
	  ORDER BY p.created_at`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []PermissionView{}
	for rows.Next() {
		var (
			v           PermissionView
			first, last string
		)
		if err := rows.Scan(&v.ID, &v.EventID, &v.UserID, &v.GrantedBy, &v.CreatedAt, &v.Email, &first, &last); err != nil {
			return nil, err
		}
		v.FullName = model.Guest{FirstName: first, LastName: last}.FullName()
		out = append(out, v)
	}
	return out, rows.Err()
}

// Revoke deletes one grant of an event.
func (r *PermissionRepo) Revoke(ctx context.Context, eventID, permissionID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM scan_permissions WHERE id = ? AND event_id = ?`, permissionID, eventID)
	if err != nil {
		return err
	}
	return requireOneRow(res, ErrPermissionNotFound)
}

// HasPermission reports whether userID may scan eventID.
func (r *PermissionRepo) HasPermission(ctx context.Context, eventID, userID string) (bool, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM scan_permissions WHERE event_id = ? AND user_id = ?`, eventID, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}
