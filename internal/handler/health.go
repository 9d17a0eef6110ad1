package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Health is the liveness probe used by load balancers.  It returns a plain
// "ok" without touching dependencies.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Ready reports whether the database answers a ping within a second.
func Ready(db *sql.DB) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.Logger().Warnf("readiness: %v", err)
			return fail(c, http.StatusServiceUnavailable, "NOT_READY", "database unavailable")
		}
		return c.JSON(http.StatusOK, echo.Map{"success": true, "status": "ready"})
	}
}
