package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-scan/internal/guestlist"
	"github.com/iliyamo/venue-scan/internal/middleware"
	"github.com/iliyamo/venue-scan/internal/repository"
	"github.com/iliyamo/venue-scan/internal/service"
)

// timeLayout formats timestamps in responses.
const timeLayout = time.RFC3339

// dbTimeout bounds the database work of one request.
const dbTimeout = 5 * time.Second

func dbCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}

// errorStatus maps domain errors to HTTP statuses.  Order matters only for
// wrapped errors that match several entries.
var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{service.ErrMalformedPayload, http.StatusBadRequest, ""},
	{service.ErrUnauthorized, http.StatusUnauthorized, ""},
	{service.ErrScanNotPermitted, http.StatusForbidden, ""},
	{service.ErrGuestNotFound, http.StatusNotFound, ""},
	{service.ErrEventNotFound, http.StatusNotFound, ""},
	{service.ErrEventMismatch, http.StatusUnprocessableEntity, ""},
	{service.ErrInvalidToken, http.StatusUnprocessableEntity, ""},
	{service.ErrEventNotActive, http.StatusConflict, ""},
	{service.ErrAlreadyCheckedIn, http.StatusConflict, ""},
	{service.ErrNoRemainingScans, http.StatusConflict, ""},
	{service.ErrInvalidMethod, http.StatusBadRequest, "INVALID_METHOD"},
	{repository.ErrEventNotFound, http.StatusNotFound, "EVENT_NOT_FOUND"},
	{repository.ErrGuestNotFound, http.StatusNotFound, "GUEST_NOT_FOUND"},
	{repository.ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND"},
	{repository.ErrPermissionNotFound, http.StatusNotFound, "PERMISSION_NOT_FOUND"},
	{repository.ErrEmailExists, http.StatusConflict, "EMAIL_EXISTS"},
	{repository.ErrConflict, http.StatusConflict, "CONFLICT"},
	{guestlist.ErrUnsupportedFormat, http.StatusBadRequest, "INVALID_GUEST_LIST"},
	{guestlist.ErrMissingHeader, http.StatusBadRequest, "INVALID_GUEST_LIST"},
	{guestlist.ErrEmpty, http.StatusBadRequest, "INVALID_GUEST_LIST"},
}

// classify returns the status and code for err.  Validator rejections use
// the taxonomy code from service.Code.
func classify(err error) (int, string) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			if e.code == "" {
				return e.status, service.Code(err)
			}
			return e.status, e.code
		}
	}
	return http.StatusInternalServerError, "INTERNAL"
}

// fail writes the failure body used across the API.
func fail(c echo.Context, status int, code, message string) error {
	return c.JSON(status, echo.Map{"success": false, "message": message, "code": code})
}

// failErr classifies err and writes it.  Unknown errors are logged and
// reported with a generic message.
func failErr(c echo.Context, err error, internalMsg string) error {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		c.Logger().Errorf("%s: %v", internalMsg, err)
		return fail(c, status, code, internalMsg)
	}
	return fail(c, status, code, rootMessage(err))
}

// rootMessage returns the text of the matched sentinel rather than the
// wrapped chain, so operators never see internal context.
func rootMessage(err error) string {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.err.Error()
		}
	}
	return err.Error()
}

func badRequest(c echo.Context, message string) error {
	return fail(c, http.StatusBadRequest, "BAD_REQUEST", message)
}

// operator returns the authenticated user id and role set by JWTAuth.
func operator(c echo.Context) (string, string) {
	return middleware.UserID(c), middleware.Role(c)
}
