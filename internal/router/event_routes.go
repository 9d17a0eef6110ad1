package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-scan/internal/handler"
	"github.com/iliyamo/venue-scan/internal/middleware"
	"github.com/iliyamo/venue-scan/internal/model"
)

// EventRoutes bundles the handlers mounted under /api for events.
// RateLimit guards validate-scan and Cache wraps the read-heavy report
// endpoints; either may be nil.
type EventRoutes struct {
	Events      *handler.EventHandler
	Reports     *handler.ReportHandler
	Permissions *handler.PermissionHandler
	Invitations *handler.InvitationHandler
	Scan        *handler.ScanHandler
	RateLimit   echo.MiddlewareFunc
	Cache       echo.MiddlewareFunc
}

// RegisterEvents registers event management, scanning, reports,
// permissions and invitations.
func RegisterEvents(e *echo.Echo, r EventRoutes, jwtSecret string) {
	rateLimit := optional(r.RateLimit)
	cache := optional(r.Cache)

	// ---- Both roles ----
	op := e.Group("/api",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleScanner),
	)
	op.GET("/getallevents", r.Events.ListEvents)
	op.POST("/events/validate-scan", r.Scan.ValidateScan, rateLimit)
	op.GET("/events/checkins/:id", r.Reports.CheckIns)

	// ---- Administrators ----
	admin := e.Group("/api",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	admin.POST("/events", r.Events.CreateEvent)
	admin.GET("/events/eventdetails/:id", r.Events.EventDetails)
	admin.PUT("/events/update/:id", r.Events.UpdateEvent)
	admin.PUT("/events/complete/:id", r.Events.CompleteEvent)
	admin.PUT("/events/cancel/:id", r.Events.CancelEvent)
	admin.DELETE("/events/delete/:id", r.Events.DeleteEvent)
	admin.POST("/events/:id/guests/:guestId/rotate-token", r.Events.RotateToken)

	admin.GET("/events/reports/:id", r.Reports.Report, cache)
	admin.GET("/dashboard", r.Reports.Dashboard, cache)

	admin.GET("/events/:id/scan-permissions", r.Permissions.List)
	admin.POST("/events/:id/scan-permissions", r.Permissions.Grant)
	admin.DELETE("/events/:id/scan-permissions/:permissionId", r.Permissions.Revoke)

	admin.POST("/invitations/send", r.Invitations.Send)
	admin.GET("/invitations/status/:eventId", r.Invitations.Status)
}

func optional(mw echo.MiddlewareFunc) echo.MiddlewareFunc {
	if mw == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return mw
}
