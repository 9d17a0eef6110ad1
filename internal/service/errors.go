package service

import (
	"errors"

	"github.com/iliyamo/venue-scan/internal/qrpayload"
)

// Validator-facing rejections.  The error text is the operator-facing
// message returned to the scanner.
var (
	ErrMalformedPayload = qrpayload.ErrMalformedPayload
	ErrUnauthorized     = errors.New("authentication required")
	ErrScanNotPermitted = errors.New("you are not allowed to scan for this event")
	ErrEventNotFound    = errors.New("event not found")
	ErrEventMismatch    = errors.New("this QR code belongs to a different event")
	ErrEventNotActive   = errors.New("event is not active")
	ErrGuestNotFound    = errors.New("guest not found")
	ErrInvalidToken     = errors.New("invalid or expired QR code")
	ErrAlreadyCheckedIn = errors.New("guest already checked in")
	ErrNoRemainingScans = errors.New("no remaining scans for this guest")
)

// errConcurrencyConflict marks a lost compare-and-swap.  Validate retries
// on it and never returns it.
var errConcurrencyConflict = errors.New("concurrent scan updated the guest")

var codes = []struct {
	err  error
	code string
}{
	{ErrMalformedPayload, "MALFORMED_PAYLOAD"},
	{ErrUnauthorized, "UNAUTHORIZED"},
	{ErrScanNotPermitted, "SCAN_NOT_PERMITTED"},
	{ErrEventNotFound, "EVENT_NOT_FOUND"},
	{ErrEventMismatch, "EVENT_MISMATCH"},
	{ErrEventNotActive, "EVENT_NOT_ACTIVE"},
	{ErrGuestNotFound, "GUEST_NOT_FOUND"},
	{ErrInvalidToken, "INVALID_TOKEN"},
	{ErrAlreadyCheckedIn, "ALREADY_CHECKED_IN"},
	{ErrNoRemainingScans, "NO_REMAINING_SCANS"},
}

// Code returns the machine-readable name of a validator rejection, or
// "INTERNAL" for anything outside the taxonomy.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "INTERNAL"
}

// IsRejection reports whether err is one of the validator rejections (as
// opposed to an infrastructure failure).
func IsRejection(err error) bool { return Code(err) != "INTERNAL" }
