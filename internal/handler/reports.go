package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-scan/internal/repository"
)

// ReportHandler serves check-in logs, scan reports and the dashboard.
type ReportHandler struct {
	Events *repository.EventRepo
	Guests *repository.GuestRepo
}

func NewReportHandler(e *repository.EventRepo, g *repository.GuestRepo) *ReportHandler {
	return &ReportHandler{Events: e, Guests: g}
}

// CheckIns returns the event summary and one row per guest.
func (h *ReportHandler) CheckIns(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()
	e, err := h.Events.GetByID(ctx, c.Param("id"))
	if err != nil {
		return failErr(c, err, "load event failed")
	}
	summary, err := h.Events.Summary(ctx, e.ID)
	if err != nil {
		return failErr(c, err, "summary failed")
	}
	guests, err := h.Guests.ListByEvent(ctx, e.ID)
	if err != nil {
		return failErr(c, err, "list guests failed")
	}
	rows := make([]guestResp, 0, len(guests))
	for _, g := range guests {
		rows = append(rows, toGuestResp(g))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"event":   toEventResp(e),
		"summary": summary,
		"guests":  rows,
	})
}

// Report returns the summary plus the scan history, newest first.
func (h *ReportHandler) Report(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()
	e, err := h.Events.GetByID(ctx, c.Param("id"))
	if err != nil {
		return failErr(c, err, "load event failed")
	}
	summary, err := h.Events.Summary(ctx, e.ID)
	if err != nil {
		return failErr(c, err, "summary failed")
	}
	scans, err := h.Guests.ListScanRecords(ctx, e.ID)
	if err != nil {
		return failErr(c, err, "list scans failed")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"event":   toEventResp(e),
		"summary": summary,
		"scans":   scans,
	})
}

// Dashboard returns totals across all events; scans are counted since
// midnight UTC.
func (h *ReportHandler) Dashboard(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()
	since := time.Now().UTC().Truncate(24 * time.Hour)
	totals, err := h.Events.Dashboard(ctx, since)
	if err != nil {
		return failErr(c, err, "dashboard failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "dashboard": totals})
}
