package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-scan/internal/model"
)

func TestReports(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	h := NewReportHandler(env.events, env.guests)
	ev := env.seedEvent(t, "Gala")
	gs := env.seedGuests(t, ev.ID,
		model.Guest{FirstName: "Ada", Type: model.GuestDouble},
		model.Guest{FirstName: "Alan", Type: model.GuestSingle},
	)
	ok, err := env.guests.TryConsumeScan(ctx, ev.ID, gs[0].ID, "", 0, &model.ScanRecord{ScannedBy: "op-1", Type: model.GuestDouble})
	require.NoError(t, err)
	require.True(t, ok)

	c, rec := env.jsonCtx(http.MethodGet, "/", "")
	withParams(c, "id", ev.ID)
	require.NoError(t, h.CheckIns(c))
	require.Equal(t, http.StatusOK, rec.Code)
	m := body(t, rec)
	summary := m["summary"].(map[string]any)
	assert.Equal(t, float64(2), summary["totalGuests"])
	assert.Equal(t, float64(1), summary["scannedGuestsCount"])
	assert.Equal(t, float64(3), summary["totalAllowedScans"])
	assert.Equal(t, float64(1), summary["consumedScans"])
	rows := m["guests"].([]any)
	require.Len(t, rows, 2)
	byName := map[string]map[string]any{}
	for _, r := range rows {
		row := r.(map[string]any)
		byName[row["firstName"].(string)] = row
	}
	assert.Equal(t, "1 remaining", byName["Ada"]["status"])
	assert.NotNil(t, byName["Ada"]["lastScannedAt"])
	assert.Equal(t, float64(1), byName["Alan"]["remainednumberofscans"])
	assert.Nil(t, byName["Alan"]["lastScannedAt"])

	c, rec = env.jsonCtx(http.MethodGet, "/", "")
	withParams(c, "id", ev.ID)
	require.NoError(t, h.Report(c))
	require.Equal(t, http.StatusOK, rec.Code)
	scans := body(t, rec)["scans"].([]any)
	require.Len(t, scans, 1)
	assert.Equal(t, "Ada", scans[0].(map[string]any)["guestName"])

	c, rec = env.jsonCtx(http.MethodGet, "/api/dashboard", "")
	require.NoError(t, h.Dashboard(c))
	require.Equal(t, http.StatusOK, rec.Code)
	d := body(t, rec)["dashboard"].(map[string]any)
	assert.Equal(t, float64(1), d["totalEvents"])
	assert.Equal(t, float64(1), d["checkedInGuests"])
	assert.Equal(t, float64(1), d["scansToday"])
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)

	c, rec := env.jsonCtx(http.MethodGet, "/health", "")
	require.NoError(t, Health(c))
	assert.Equal(t, "ok", rec.Body.String())

	c, rec = env.jsonCtx(http.MethodGet, "/ready", "")
	require.NoError(t, Ready(env.db)(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, env.db.Close())
	c, rec = env.jsonCtx(http.MethodGet, "/ready", "")
	require.NoError(t, Ready(env.db)(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
