package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-scan/internal/guestlist"
	"github.com/iliyamo/venue-scan/internal/model"
	"github.com/iliyamo/venue-scan/internal/repository"
	"github.com/iliyamo/venue-scan/internal/service"
)

// EventHandler serves event management, guest list ingestion and token
// rotation.
type EventHandler struct {
	Events *repository.EventRepo
	Guests *repository.GuestRepo
	Tokens *service.TokenIssuer
}

func NewEventHandler(e *repository.EventRepo, g *repository.GuestRepo, t *service.TokenIssuer) *EventHandler {
	return &EventHandler{Events: e, Guests: g, Tokens: t}
}

type eventResp struct {
	ID          string      `json:"id"`
	EventName   string      `json:"eventName"`
	EventDate   string      `json:"eventDate"`
	EventTime   string      `json:"eventTime"`
	EndTime     string      `json:"endTime"`
	Location    string      `json:"location"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Active      bool        `json:"active"`
	Cancelled   bool        `json:"cancelled"`
	Completed   bool        `json:"completed"`
	CreatedAt   time.Time   `json:"createdAt"`
	Guests      []guestResp `json:"Guests,omitempty"`
}

type guestResp struct {
	ID                string  `json:"id"`
	FirstName         string  `json:"firstName"`
	LastName          string  `json:"lastName"`
	Phone             string  `json:"phone"`
	Type              string  `json:"type"`
	Status            string  `json:"status"`
	State             string  `json:"state"`
	ConsumedScans     int     `json:"consumedScans"`
	TotalAllowedScans int     `json:"totalAllowedScans"`
	Remaining         int     `json:"remainednumberofscans"`
	LastScannedAt     *string `json:"lastScannedAt"`
	HasToken          bool    `json:"hasToken"`
}

func toEventResp(e model.Event) eventResp {
	return eventResp{
		ID: e.ID, EventName: e.Name, EventDate: e.Date, EventTime: e.StartTime, EndTime: e.EndTime,
		Location: e.Location, Description: e.Description, Category: e.Category,
		Active: e.Active, Cancelled: e.Cancelled, Completed: e.Completed, CreatedAt: e.CreatedAt,
	}
}

func toGuestResp(g model.Guest) guestResp {
	r := guestResp{
		ID: g.ID, FirstName: g.FirstName, LastName: g.LastName, Phone: g.Phone, Type: string(g.Type),
		Status: g.Status(), State: string(g.State()), ConsumedScans: g.ConsumedScans,
		TotalAllowedScans: g.TotalAllowedScans(), Remaining: g.RemainingScans(), HasToken: g.QRTokenHash != "",
	}
	if g.LastScannedAt != nil {
		s := g.LastScannedAt.UTC().Format(timeLayout)
		r.LastScannedAt = &s
	}
	return r
}

// eventForm reads the multipart fields shared by create and update.
// Missing fields keep the values already in e.
func eventForm(c echo.Context, e *model.Event) error {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(c.FormValue(key)); v != "" {
			*dst = v
		}
	}
	set(&e.Name, "name")
	set(&e.Date, "date")
	set(&e.StartTime, "time")
	set(&e.EndTime, "endTime")
	set(&e.Location, "location")
	set(&e.Description, "description")
	set(&e.Category, "category")

	if e.Name == "" {
		return errors.New("name is required")
	}
	if _, err := time.Parse("2006-01-02", e.Date); err != nil {
		return errors.New("date must be YYYY-MM-DD")
	}
	for _, t := range []*string{&e.StartTime, &e.EndTime} {
		if *t == "" {
			continue
		}
		norm, err := normalizeClock(*t)
		if err != nil {
			return err
		}
		*t = norm
	}
	return nil
}

func normalizeClock(s string) (string, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04:05"), nil
		}
	}
	return "", fmt.Errorf("invalid time %q, expected HH:MM or HH:MM:SS", s)
}

// uploadedGuests parses the optional excelFile part.  It returns nil, nil
// when no file was sent.
func uploadedGuests(c echo.Context) ([]model.Guest, error) {
	fh, err := c.FormFile("excelFile")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", guestlist.ErrUnsupportedFormat, err)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return guestlist.Parse(fh.Filename, f)
}

// CreateEvent creates an active event and ingests its guest list in one
// transaction.
func (h *EventHandler) CreateEvent(c echo.Context) error {
	// Read and validate the multipart form fields.
	var e model.Event
	if err := eventForm(c, &e); err != nil {
		return badRequest(c, err.Error())
	}
	// Parse the spreadsheet before touching the database so a bad file
	// leaves nothing behind.
	guests, err := uploadedGuests(c)
	if err != nil {
		return failErr(c, err, "read guest list failed")
	}
	e.CreatedBy, _ = operator(c)

	ctx, cancel := dbCtx(c)
	defer cancel()
	tx, err := h.Events.DB().BeginTx(ctx, nil)
	if err != nil {
		return failErr(c, err, "begin tx failed")
	}
	defer func() { _ = tx.Rollback() }()
	// Event row and guest rows commit together or not at all.
	if err := h.Events.CreateTx(ctx, tx, &e); err != nil {
		return failErr(c, err, "create event failed")
	}
	if err := h.Guests.InsertManyTx(ctx, tx, e.ID, guests); err != nil {
		return failErr(c, err, "insert guests failed")
	}
	if err := tx.Commit(); err != nil {
		return failErr(c, err, "commit failed")
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"success":     true,
		"message":     "Event created successfully",
		"event":       toEventResp(e),
		"guestsAdded": len(guests),
	})
}

// ListEvents returns all events.
func (h *EventHandler) ListEvents(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()
	events, err := h.Events.List(ctx)
	if err != nil {
		return failErr(c, err, "list events failed")
	}
	out := make([]eventResp, 0, len(events))
	for _, e := range events {
		out = append(out, toEventResp(e))
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "events": out})
}

// EventDetails returns the event with its guests and counters.
func (h *EventHandler) EventDetails(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()
	e, err := h.Events.GetByID(ctx, c.Param("id"))
	if err != nil {
		return failErr(c, err, "load event failed")
	}
	guests, err := h.Guests.ListByEvent(ctx, e.ID)
	if err != nil {
		return failErr(c, err, "list guests failed")
	}
	summary, err := h.Events.Summary(ctx, e.ID)
	if err != nil {
		return failErr(c, err, "summary failed")
	}
	resp := toEventResp(e)
	resp.Guests = make([]guestResp, 0, len(guests))
	for _, g := range guests {
		resp.Guests = append(resp.Guests, toGuestResp(g))
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "event": resp, "guests": resp.Guests, "summary": summary})
}

// UpdateEvent rewrites the event details.  A new guest list is merged into
// the existing one by name and phone: known guests keep their id, token and
// scan count and only get their display fields refreshed, unknown rows are
// added.  Guests are never removed here.
func (h *EventHandler) UpdateEvent(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	// load the event and apply the submitted form fields
	e, err := h.Events.GetByID(ctx, c.Param("id"))
	if err != nil {
		return failErr(c, err, "load event failed")
	}
	if err := eventForm(c, &e); err != nil {
		return badRequest(c, err.Error())
	}
	// the spreadsheet is optional on update
	guests, err := uploadedGuests(c)
	if err != nil {
		return failErr(c, err, "read guest list failed")
	}

	// details and guest merge commit together
	tx, err := h.Events.DB().BeginTx(ctx, nil)
	if err != nil {
		return failErr(c, err, "begin tx failed")
	}
	defer func() { _ = tx.Rollback() }()
	if err := h.Events.UpdateDetailsTx(ctx, tx, &e); err != nil {
		return failErr(c, err, "update event failed")
	}
	added, updated := 0, 0
	if guests != nil {
		// read the current list inside the tx so a concurrent admission
		// cannot slip between the read and the merge
		existing, err := h.Guests.ListByEventTx(ctx, tx, e.ID)
		if err != nil {
			return failErr(c, err, "list guests failed")
		}
		known := make(map[string]model.Guest, len(existing))
		for _, g := range existing {
			known[guestIdentity(g)] = g
		}
		fresh := make([]model.Guest, 0, len(guests))
		for _, g := range guests {
			key := guestIdentity(g)
			cur, ok := known[key]
			if !ok {
				fresh = append(fresh, g)
				known[key] = g // later duplicates in the upload are merged into this row
				continue
			}
			if cur.ID == "" {
				continue
			}
			cur.FirstName, cur.LastName, cur.Phone, cur.Type = g.FirstName, g.LastName, g.Phone, g.Type
			if err := h.Guests.UpdateProfileTx(ctx, tx, cur); err != nil {
				return failErr(c, err, "update guest failed")
			}
			updated++
		}
		if err := h.Guests.InsertManyTx(ctx, tx, e.ID, fresh); err != nil {
			return failErr(c, err, "insert guests failed")
		}
		added = len(fresh)
	}
	if err := tx.Commit(); err != nil {
		return failErr(c, err, "commit failed")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":       true,
		"message":       "Event updated successfully",
		"event":         toEventResp(e),
		"guestsAdded":   added,
		"guestsUpdated": updated,
	})
}

func guestIdentity(g model.Guest) string {
	return strings.ToLower(g.FullName()) + "|" + strings.TrimSpace(g.Phone)
}

// CompleteEvent closes the event for scanning.
func (h *EventHandler) CompleteEvent(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()
	if err := h.Events.Complete(ctx, c.Param("id")); err != nil {
		return failErr(c, err, "complete event failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Event marked as completed"})
}

// CancelEvent cancels the event; scans are rejected from then on.
func (h *EventHandler) CancelEvent(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()
	if err := h.Events.Cancel(ctx, c.Param("id")); err != nil {
		return failErr(c, err, "cancel event failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Event cancelled"})
}

// DeleteEvent removes the event with its guests, scans, permissions and
// invitations.
func (h *EventHandler) DeleteEvent(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()
	if err := h.Events.Delete(ctx, c.Param("id")); err != nil {
		return failErr(c, err, "delete event failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Event deleted successfully"})
}

// RotateToken issues a new QR token for one guest.  The raw token is only
// ever returned here and by the invitation sender.
func (h *EventHandler) RotateToken(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()
	e, err := h.Events.GetByID(ctx, c.Param("id"))
	if err != nil {
		return failErr(c, err, "load event failed")
	}
	issued, err := h.Tokens.Rotate(ctx, e.ID, c.Param("guestId"))
	if err != nil {
		return failErr(c, err, "rotate token failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "QR token issued", "token": issued})
}
