package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-scan/internal/database"
	"github.com/iliyamo/venue-scan/internal/model"
	"github.com/iliyamo/venue-scan/internal/repository"
	"github.com/iliyamo/venue-scan/internal/utils"
)

type fixture struct {
	db          *sql.DB
	events      *repository.EventRepo
	guests      *repository.GuestRepo
	permissions *repository.PermissionRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))
	return &fixture{
		db:          db,
		events:      repository.NewEventRepo(db),
		guests:      repository.NewGuestRepo(db),
		permissions: repository.NewPermissionRepo(db),
	}
}

func (f *fixture) event(t *testing.T, name string) model.Event {
	t.Helper()
	ctx := context.Background()
	e := model.Event{Name: name, Date: "2026-11-02", CreatedBy: "admin"}
	tx, err := f.db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, f.events.CreateTx(ctx, tx, &e))
	require.NoError(t, tx.Commit())
	return e
}

// guest inserts a guest whose QR token is rawToken.
func (f *fixture) guest(t *testing.T, eventID, first string, typ model.GuestType, rawToken string) model.Guest {
	t.Helper()
	ctx := context.Background()
	g := []model.Guest{{FirstName: first, LastName: "Guest", Type: typ, Phone: "+15550100", QRTokenHash: utils.HashToken(rawToken)}}
	tx, err := f.db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, f.guests.InsertManyTx(ctx, tx, eventID, g))
	require.NoError(t, tx.Commit())
	return g[0]
}

func (f *fixture) validator(pub CheckInPublisher) *ScanValidator {
	return NewScanValidator(f.guests, f.events, f.permissions, pub, 3)
}

func (f *fixture) consumed(t *testing.T, eventID, guestID string) (int, int) {
	t.Helper()
	g, err := f.guests.ReadGuest(context.Background(), eventID, guestID)
	require.NoError(t, err)
	n, err := f.guests.CountScanRecords(context.Background(), eventID, guestID)
	require.NoError(t, err)
	return g.ConsumedScans, n
}

func adminScan(g model.Guest, token, scannedEventID string) ScanRequest {
	return ScanRequest{
		GuestID:        g.ID,
		EventID:        g.EventID,
		QRToken:        token,
		ScannedEventID: scannedEventID,
		OperatorID:     "op-1",
		OperatorRole:   model.RoleAdmin,
	}
}

func hashOf(raw string) string { return utils.HashToken(raw) }
