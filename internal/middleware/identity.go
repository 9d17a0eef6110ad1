package middleware

// identity.go holds the context keys set by JWTAuth and the helpers other
// middlewares and handlers use to read them back.

import (
	"github.com/labstack/echo/v4"
)

// Context keys populated by JWTAuth.
const (
	CtxUserID = "user_id"
	CtxRole   = "role"
)

// UserID returns the authenticated operator id, or "" when the request is
// anonymous.
func UserID(c echo.Context) string {
	s, _ := c.Get(CtxUserID).(string)
	return s
}

// Role returns the authenticated operator role, or "".
func Role(c echo.Context) string {
	s, _ := c.Get(CtxRole).(string)
	return s
}

// userKey is the identity used in rate limit keys.
func userKey(c echo.Context) string {
	if id := UserID(c); id != "" {
		return id
	}
	return "anon"
}

// reject writes the failure body shared by every middleware.
func reject(c echo.Context, status int, code, message string) error {
	return c.JSON(status, echo.Map{"success": false, "message": message, "code": code})
}
