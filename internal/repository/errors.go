// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow higher layers such as the scan
// validator and the handlers to distinguish between different failure
// scenarios without inspecting driver errors.
package repository

import (
	"errors"
	"strings"
)

// ErrConflict is returned when a write cannot be performed because of
// conflicting state, such as a duplicate unique key.  Handlers should
// translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

var (
	ErrEventNotFound      = errors.New("event not found")
	ErrGuestNotFound      = errors.New("guest not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrPermissionNotFound = errors.New("scan permission not found")
	ErrEmailExists        = errors.New("email already exists")
)

// isDuplicate recognises unique-key violations from both supported
// drivers (MySQL error 1062, SQLite "UNIQUE constraint failed").
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "1062") || strings.Contains(msg, "unique constraint")
}
