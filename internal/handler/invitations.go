package handler

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	q "github.com/iliyamo/venue-scan/internal/queue"
	"github.com/iliyamo/venue-scan/internal/repository"
	"github.com/iliyamo/venue-scan/internal/service"
)

// InvitationPublisher hands an invitation request to the broker.
type InvitationPublisher interface {
	PublishInvitationRequested(ctx context.Context, ev q.InvitationRequestedEvent) error
}

// InvitationDispatcher runs an invitation request in-process.
type InvitationDispatcher interface {
	Dispatch(ctx context.Context, req q.InvitationRequestedEvent) (service.DispatchReport, error)
}

// InvitationHandler queues invitation sends and reports their status.
type InvitationHandler struct {
	Events      *repository.EventRepo
	Invitations *repository.InvitationRepo
	Publisher   InvitationPublisher
	// Fallback runs the request locally when the broker is unreachable.
	// It may be nil.
	Fallback InvitationDispatcher
}

func NewInvitationHandler(e *repository.EventRepo, i *repository.InvitationRepo, p InvitationPublisher, fb InvitationDispatcher) *InvitationHandler {
	return &InvitationHandler{Events: e, Invitations: i, Publisher: p, Fallback: fb}
}

type sendInvitationsReq struct {
	EventID string `json:"eventId"`
	Message string `json:"message"`
	Method  string `json:"method"`
}

// dispatchTimeout bounds a fallback run; large guest lists take a while.
const dispatchTimeout = 10 * time.Minute

// Send validates the request and queues it.  The response is 202 because
// delivery happens in the invitation consumer.
func (h *InvitationHandler) Send(c echo.Context) error {
	var req sendInvitationsReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.EventID = strings.TrimSpace(req.EventID)
	if req.EventID == "" {
		return badRequest(c, "eventId is required")
	}
	if _, err := service.Channels(req.Method); err != nil {
		return failErr(c, err, "invalid method")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()
	e, err := h.Events.GetByID(ctx, req.EventID)
	if err != nil {
		return failErr(c, err, "load event failed")
	}
	if e.Cancelled {
		return failErr(c, service.ErrEventNotActive, "event cancelled")
	}

	requestedBy, _ := operator(c)
	ev := q.InvitationRequestedEvent{
		EventID:     e.ID,
		Message:     req.Message,
		Method:      strings.ToLower(strings.TrimSpace(req.Method)),
		RequestedBy: requestedBy,
		RequestedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := h.Publisher.PublishInvitationRequested(ctx, ev); err != nil {
		if h.Fallback == nil {
			return failErr(c, err, "queue invitations failed")
		}
		log.Printf("invitations: publish failed, dispatching in-process: %v", err)
		go h.dispatchLocally(ev)
	}
	return c.JSON(http.StatusAccepted, echo.Map{
		"success": true,
		"message": "Invitations are being sent",
		"eventId": e.ID,
	})
}

func (h *InvitationHandler) dispatchLocally(ev q.InvitationRequestedEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()
	rep, err := h.Fallback.Dispatch(ctx, ev)
	if err != nil {
		log.Printf("invitations: in-process dispatch for event %s failed: %v", ev.EventID, err)
		return
	}
	log.Printf("invitations: event %s guests=%d sent=%d failed=%d", ev.EventID, rep.Guests, rep.Sent, rep.Failed)
}

// Status lists the recorded invitation attempts of an event.
func (h *InvitationHandler) Status(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()
	e, err := h.Events.GetByID(ctx, c.Param("eventId"))
	if err != nil {
		return failErr(c, err, "load event failed")
	}
	st, err := h.Invitations.StatusByEvent(ctx, e.ID)
	if err != nil {
		return failErr(c, err, "invitation status failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "status": st})
}
