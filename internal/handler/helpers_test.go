package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-scan/internal/config"
	"github.com/iliyamo/venue-scan/internal/database"
	"github.com/iliyamo/venue-scan/internal/middleware"
	"github.com/iliyamo/venue-scan/internal/model"
	"github.com/iliyamo/venue-scan/internal/repository"
)

type testEnv struct {
	e           *echo.Echo
	db          *sql.DB
	cfg         config.Config
	events      *repository.EventRepo
	guests      *repository.GuestRepo
	users       *repository.UserRepo
	tokens      *repository.TokenRepo
	permissions *repository.PermissionRepo
	invitations *repository.InvitationRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.OpenSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))
	return &testEnv{
		e:           echo.New(),
		db:          db,
		cfg:         config.Config{JWTSecret: "test-secret", AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: 4, QRBaseURL: "https://venuescan.test/checkin"},
		events:      repository.NewEventRepo(db),
		guests:      repository.NewGuestRepo(db),
		users:       repository.NewUserRepo(db),
		tokens:      repository.NewTokenRepo(db),
		permissions: repository.NewPermissionRepo(db),
		invitations: repository.NewInvitationRepo(db),
	}
}

// jsonCtx builds a context for a JSON request.  body may be "".
func (env *testEnv) jsonCtx(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return env.e.NewContext(req, rec), rec
}

// formCtx builds a multipart request with fields and an optional file.
func (env *testEnv) formCtx(t *testing.T, method, target string, fields map[string]string, filename, content string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		fw, err := w.CreateFormFile("excelFile", filename)
		require.NoError(t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	return env.e.NewContext(req, rec), rec
}

func withParams(c echo.Context, kv ...string) echo.Context {
	var names, values []string
	for i := 0; i+1 < len(kv); i += 2 {
		names = append(names, kv[i])
		values = append(values, kv[i+1])
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	return c
}

func asOperator(c echo.Context, id, role string) echo.Context {
	c.Set(middleware.CtxUserID, id)
	c.Set(middleware.CtxRole, role)
	return c
}

func body(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func (env *testEnv) seedEvent(t *testing.T, name string) model.Event {
	t.Helper()
	ctx := context.Background()
	e := model.Event{Name: name, Date: "2026-11-02", StartTime: "18:00:00", CreatedBy: "admin"}
	tx, err := env.db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, env.events.CreateTx(ctx, tx, &e))
	require.NoError(t, tx.Commit())
	return e
}

func (env *testEnv) seedGuests(t *testing.T, eventID string, guests ...model.Guest) []model.Guest {
	t.Helper()
	ctx := context.Background()
	tx, err := env.db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, env.guests.InsertManyTx(ctx, tx, eventID, guests))
	require.NoError(t, tx.Commit())
	return guests
}

func (env *testEnv) seedUser(t *testing.T, email, password, role string) model.User {
	t.Helper()
	u, err := env.users.Create(context.Background(), repository.NewUser{
		Email: email, Password: password, FirstName: "Test", LastName: "Operator", Role: role,
	}, env.cfg.BcryptCost)
	require.NoError(t, err)
	return u
}
