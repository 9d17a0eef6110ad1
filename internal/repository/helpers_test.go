package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-scan/internal/database"
	"github.com/iliyamo/venue-scan/internal/model"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))
	return db
}

func seedEvent(t *testing.T, db *sql.DB, name string) model.Event {
	t.Helper()
	ctx := context.Background()
	e := model.Event{Name: name, Date: "2026-11-02", StartTime: "18:00:00", EndTime: "23:00:00", CreatedBy: "admin"}
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, NewEventRepo(db).CreateTx(ctx, tx, &e))
	require.NoError(t, tx.Commit())
	return e
}

func seedGuests(t *testing.T, db *sql.DB, eventID string, guests ...model.Guest) []model.Guest {
	t.Helper()
	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, NewGuestRepo(db).InsertManyTx(ctx, tx, eventID, guests))
	require.NoError(t, tx.Commit())
	return guests
}
