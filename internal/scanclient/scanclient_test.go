package scanclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "op-1", "role": "SCANNER", "exp": exp.Unix(),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	return tok
}

func TestCredentials_Lifecycle(t *testing.T) {
	var logins atomic.Int32
	now := time.Date(2026, 11, 2, 18, 0, 0, 0, time.UTC)
	creds := NewCredentials(func(context.Context) (string, error) {
		logins.Add(1)
		return signed(t, now.Add(time.Hour)), nil
	})
	creds.now = func() time.Time { return now }

	_, err := creds.Token()
	assert.ErrorIs(t, err, ErrNoCredential)

	first, err := creds.Ensure(context.Background())
	require.NoError(t, err)
	again, err := creds.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, int32(1), logins.Load())

	// expired tokens are never handed out
	creds.now = func() time.Time { return now.Add(time.Hour) }
	_, err = creds.Token()
	assert.ErrorIs(t, err, ErrNoCredential)

	creds.now = func() time.Time { return now }
	_, err = creds.Ensure(context.Background())
	require.NoError(t, err)
	creds.Expire()
	_, err = creds.Token()
	assert.ErrorIs(t, err, ErrNoCredential)
	assert.Equal(t, int32(2), logins.Load())
}

func TestCredentials_RejectsTokenWithoutExpiry(t *testing.T) {
	creds := NewCredentials(func(context.Context) (string, error) {
		return jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "op-1"}).SignedString([]byte("k"))
	})
	_, err := creds.Acquire(context.Background())
	assert.Error(t, err)

	creds = NewCredentials(func(context.Context) (string, error) { return "", errors.New("bad password") })
	_, err = creds.Acquire(context.Background())
	assert.ErrorContains(t, err, "bad password")
}

func TestClient_LoginAndValidate(t *testing.T) {
	token := signed(t, time.Now().Add(time.Hour))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/login":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["password"] != "secret-pw" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"success":false,"message":"invalid email or password"}`))
				return
			}
			_, _ = w.Write([]byte(`{"success":true,"token":"` + token + `"}`))
		case "/api/events/validate-scan":
			if r.Header.Get("Authorization") != "Bearer "+token {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"success":false,"code":"UNAUTHORIZED","message":"missing bearer token"}`))
				return
			}
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"success":false,"code":"ALREADY_CHECKED_IN","message":"guest already checked in"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	_, err := c.Login(context.Background(), "door@venue.test", "wrong")
	assert.ErrorContains(t, err, "invalid email or password")

	got, err := c.Login(context.Background(), "door@venue.test", "secret-pw")
	require.NoError(t, err)
	assert.Equal(t, token, got)

	out, err := c.ValidateScan(context.Background(), got, ScanRequest{GuestID: "G1", EventID: "E1", QRToken: "T1", ScannedEventID: "E1"})
	require.NoError(t, err)
	assert.False(t, out.Accepted)
	assert.Equal(t, http.StatusConflict, out.HTTPStatus)
	assert.Equal(t, "ALREADY_CHECKED_IN", out.Code)
}

type fakeAPI struct {
	mu      sync.Mutex
	calls   []ScanRequest
	tokens  []string
	respond func(n int) Outcome
	block   chan struct{}
}

func (f *fakeAPI) ValidateScan(_ context.Context, token string, req ScanRequest) (Outcome, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	f.tokens = append(f.tokens, token)
	if f.respond != nil {
		return f.respond(len(f.calls)), nil
	}
	return Outcome{Accepted: true, HTTPStatus: http.StatusOK, GuestName: "Ada"}, nil
}

func newTestLoop(t *testing.T, api ScanAPI) *Loop {
	creds := NewCredentials(func(context.Context) (string, error) { return signed(t, time.Now().Add(time.Hour)), nil })
	return NewLoop("E1", creds, api)
}

const qr = "https://venuescan.test/checkin?guestId=G1&eventId=E1&token=T1"

func TestLoop_RequiresDismissBetweenScans(t *testing.T) {
	api := &fakeAPI{}
	l := newTestLoop(t, api)

	out, err := l.HandleScan(context.Background(), qr)
	require.NoError(t, err)
	assert.True(t, out.Accepted)
	assert.True(t, l.Busy())

	_, err = l.HandleScan(context.Background(), qr)
	assert.ErrorIs(t, err, ErrBusy)

	l.Dismiss()
	assert.False(t, l.Busy())
	_, err = l.HandleScan(context.Background(), qr)
	require.NoError(t, err)

	require.Len(t, api.calls, 2)
	assert.Equal(t, ScanRequest{GuestID: "G1", EventID: "E1", QRToken: "T1", ScannedEventID: "E1"}, api.calls[0])
}

type downAPI struct{ calls int }

func (d *downAPI) ValidateScan(context.Context, string, ScanRequest) (Outcome, error) {
	d.calls++
	return Outcome{}, errors.New("dial tcp: connection refused")
}

func TestLoop_TransportErrorRearms(t *testing.T) {
	api := &downAPI{}
	l := newTestLoop(t, api)

	_, err := l.HandleScan(context.Background(), qr)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBusy)
	assert.False(t, l.Busy())

	_, err = l.HandleScan(context.Background(), qr)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBusy)
	assert.Equal(t, 2, api.calls)

	failing := NewLoop("E1", NewCredentials(func(context.Context) (string, error) {
		return "", errors.New("login refused")
	}), &fakeAPI{})
	_, err = failing.HandleScan(context.Background(), qr)
	require.Error(t, err)
	assert.False(t, failing.Busy())
}

func TestLoop_LocalRejections(t *testing.T) {
	api := &fakeAPI{}
	l := newTestLoop(t, api)

	out, err := l.HandleScan(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, CodeMalformed, out.Code)
	l.Dismiss()

	out, err = l.HandleScan(context.Background(), `{"guestId":"G1","eventId":"E9","token":"T1"}`)
	require.NoError(t, err)
	assert.Equal(t, CodeMismatch, out.Code)
	assert.False(t, out.Accepted)

	assert.Empty(t, api.calls)
}

func TestLoop_ConcurrentScansSubmitOnce(t *testing.T) {
	api := &fakeAPI{block: make(chan struct{})}
	l := newTestLoop(t, api)

	var wg sync.WaitGroup
	var busy atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.HandleScan(context.Background(), qr); errors.Is(err, ErrBusy) {
				busy.Add(1)
			}
		}()
	}
	// let the seven losers return before releasing the one in flight
	require.Eventually(t, func() bool { return busy.Load() == 7 }, 2*time.Second, 5*time.Millisecond)
	close(api.block)
	wg.Wait()

	assert.Len(t, api.calls, 1)
}

func TestLoop_ReauthenticatesOnce(t *testing.T) {
	api := &fakeAPI{respond: func(n int) Outcome {
		if n == 1 {
			return Outcome{HTTPStatus: http.StatusUnauthorized, Code: "UNAUTHORIZED"}
		}
		return Outcome{Accepted: true, HTTPStatus: http.StatusOK}
	}}
	var logins atomic.Int32
	creds := NewCredentials(func(context.Context) (string, error) {
		n := logins.Add(1)
		return signed(t, time.Now().Add(time.Duration(n)*time.Hour)), nil
	})
	l := NewLoop("E1", creds, api)

	out, err := l.HandleScan(context.Background(), qr)
	require.NoError(t, err)
	assert.True(t, out.Accepted)
	assert.Equal(t, int32(2), logins.Load())
	require.Len(t, api.tokens, 2)
	assert.NotEqual(t, api.tokens[0], api.tokens[1])
}
