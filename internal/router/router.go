// Package router registers the HTTP routes of the check-in API.
package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-scan/internal/handler"
	"github.com/iliyamo/venue-scan/internal/middleware"
	"github.com/iliyamo/venue-scan/internal/model"
)

// RegisterRoutes registers the unauthenticated probes.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
}

// RegisterAuth registers login, token refresh, logout and /api/me.
// Logout accepts either a refresh token in the body or a bearer token, so
// it runs with optional authentication.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	e.POST("/api/login", a.Login)

	g := e.Group("/api/auth")
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout, middleware.OptionalJWTAuth(jwtSecret))

	e.GET("/api/me", a.Me,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleScanner))
}

// RegisterUsers registers operator management.  ADMIN only.
func RegisterUsers(e *echo.Echo, u *handler.UserHandler, jwtSecret string) {
	g := e.Group("/api/users",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.POST("/adduser", u.AddUser)
	g.GET("", u.ListUsers)
	g.GET("/:id", u.GetUser)
	g.PUT("/update/:id", u.UpdateUser)
	g.POST("/reset-password/:id", u.ResetPassword)
	g.DELETE("/delete/:id", u.DeleteUser)
}
