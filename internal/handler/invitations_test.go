package handler

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-scan/internal/model"
	q "github.com/iliyamo/venue-scan/internal/queue"
	"github.com/iliyamo/venue-scan/internal/service"
)

type stubPublisher struct {
	err error
	got []q.InvitationRequestedEvent
}

func (p *stubPublisher) PublishInvitationRequested(_ context.Context, ev q.InvitationRequestedEvent) error {
	p.got = append(p.got, ev)
	return p.err
}

type stubDispatcher struct {
	mu   sync.Mutex
	got  []q.InvitationRequestedEvent
	done chan struct{}
}

func (d *stubDispatcher) Dispatch(_ context.Context, req q.InvitationRequestedEvent) (service.DispatchReport, error) {
	d.mu.Lock()
	d.got = append(d.got, req)
	d.mu.Unlock()
	close(d.done)
	return service.DispatchReport{}, nil
}

func TestSendInvitations_Publishes(t *testing.T) {
	env := newTestEnv(t)
	ev := env.seedEvent(t, "Gala")
	pub := &stubPublisher{}
	h := NewInvitationHandler(env.events, env.invitations, pub, nil)

	c, rec := env.jsonCtx(http.MethodPost, "/api/invitations/send",
		`{"eventId":"`+ev.ID+`","message":"Hi {name}","method":"SMS"}`)
	asOperator(c, "admin-1", model.RoleAdmin)
	require.NoError(t, h.Send(c))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, pub.got, 1)
	assert.Equal(t, ev.ID, pub.got[0].EventID)
	assert.Equal(t, "sms", pub.got[0].Method)
	assert.Equal(t, "admin-1", pub.got[0].RequestedBy)
	at, err := time.Parse(time.RFC3339, pub.got[0].RequestedAt)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), at, time.Minute)
}

func TestSendInvitations_FallsBackWhenBrokerDown(t *testing.T) {
	env := newTestEnv(t)
	ev := env.seedEvent(t, "Gala")
	fb := &stubDispatcher{done: make(chan struct{})}
	h := NewInvitationHandler(env.events, env.invitations, &stubPublisher{err: errors.New("dial tcp: refused")}, fb)

	c, rec := env.jsonCtx(http.MethodPost, "/api/invitations/send", `{"eventId":"`+ev.ID+`"}`)
	require.NoError(t, h.Send(c))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case <-fb.done:
	case <-time.After(2 * time.Second):
		t.Fatal("fallback dispatch did not run")
	}
	fb.mu.Lock()
	defer fb.mu.Unlock()
	require.Len(t, fb.got, 1)
	assert.Equal(t, ev.ID, fb.got[0].EventID)
}

func TestSendInvitations_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ev := env.seedEvent(t, "Gala")
	require.NoError(t, env.events.Cancel(context.Background(), ev.ID))
	h := NewInvitationHandler(env.events, env.invitations, &stubPublisher{}, nil)

	cases := []struct {
		body   string
		status int
	}{
		{`{}`, http.StatusBadRequest},
		{`{"eventId":"` + ev.ID + `","method":"pigeon"}`, http.StatusBadRequest},
		{`{"eventId":"missing"}`, http.StatusNotFound},
		{`{"eventId":"` + ev.ID + `"}`, http.StatusConflict},
	}
	for _, tc := range cases {
		c, rec := env.jsonCtx(http.MethodPost, "/api/invitations/send", tc.body)
		require.NoError(t, h.Send(c))
		assert.Equal(t, tc.status, rec.Code, tc.body)
	}
}

func TestSendInvitations_BrokerDownWithoutFallback(t *testing.T) {
	env := newTestEnv(t)
	ev := env.seedEvent(t, "Gala")
	h := NewInvitationHandler(env.events, env.invitations, &stubPublisher{err: errors.New("dial tcp: refused")}, nil)

	c, rec := env.jsonCtx(http.MethodPost, "/api/invitations/send", `{"eventId":"`+ev.ID+`"}`)
	require.NoError(t, h.Send(c))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestInvitationStatus(t *testing.T) {
	env := newTestEnv(t)
	ev := env.seedEvent(t, "Gala")
	g := env.seedGuests(t, ev.ID, model.Guest{FirstName: "Ada", Phone: "+15550101", Type: model.GuestSingle})[0]
	require.NoError(t, env.invitations.Record(context.Background(),
		&model.Invitation{EventID: ev.ID, GuestID: g.ID, Channel: service.MethodSMS, Status: "sent"}))

	c, rec := env.jsonCtx(http.MethodGet, "/", "")
	withParams(c, "eventId", ev.ID)
	require.NoError(t, NewInvitationHandler(env.events, env.invitations, &stubPublisher{}, nil).Status(c))
	require.Equal(t, http.StatusOK, rec.Code)
	st := body(t, rec)["status"].(map[string]any)
	assert.Equal(t, float64(1), st["totalGuests"])
	assert.Equal(t, float64(1), st["sent"])
	assert.Len(t, st["invitations"], 1)
}
