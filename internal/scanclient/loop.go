package scanclient

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/iliyamo/venue-scan/internal/qrpayload"
)

// ErrBusy is returned for scans that arrive while a request is in flight
// or while the previous outcome has not been dismissed.
var ErrBusy = errors.New("scanner busy: dismiss the previous result first")

// Codes for rejections decided on the device.
const (
	CodeMalformed = "MALFORMED_PAYLOAD"
	CodeMismatch  = "EVENT_MISMATCH"
)

// ScanAPI is the server side of a scan.
type ScanAPI interface {
	ValidateScan(ctx context.Context, token string, req ScanRequest) (Outcome, error)
}

// Loop debounces a scanner bound to one event.  After HandleScan returns an
// outcome, accepted or rejected, further scans are refused until Dismiss is
// called.
type Loop struct {
	eventID string
	creds   *Credentials
	api     ScanAPI

	processing atomic.Bool // request in flight
	awaiting   atomic.Bool // outcome shown, waiting for Dismiss
}

func NewLoop(eventID string, creds *Credentials, api ScanAPI) *Loop {
	return &Loop{eventID: eventID, creds: creds, api: api}
}

// EventID is the event this loop scans for.
func (l *Loop) EventID() string { return l.eventID }

// Busy reports whether a scan would be refused.
func (l *Loop) Busy() bool { return l.processing.Load() || l.awaiting.Load() }

// Dismiss acknowledges the last outcome and re-arms the scanner.
func (l *Loop) Dismiss() { l.awaiting.Store(false) }

// HandleScan processes one raw scanned string.  Payloads that do not
// decode, or that belong to another event, are rejected locally without a
// network call.  An outcome must be dismissed before the next scan; an
// error (network, login) re-arms the scanner at once so the operator can
// simply scan again.
func (l *Loop) HandleScan(ctx context.Context, raw string) (_ Outcome, err error) {
	if l.processing.Load() || !l.awaiting.CompareAndSwap(false, true) {
		return Outcome{}, ErrBusy
	}
	l.processing.Store(true)
	defer func() {
		if err != nil {
			l.awaiting.Store(false)
		}
		l.processing.Store(false)
	}()

	p, err := qrpayload.Decode(raw)
	if err != nil {
		return Outcome{Code: CodeMalformed, Message: "Invalid QR code format"}, nil
	}
	if p.EventID != l.eventID {
		return Outcome{Code: CodeMismatch, Message: "This QR code belongs to a different event"}, nil
	}
	req := ScanRequest{GuestID: p.GuestID, EventID: p.EventID, QRToken: p.QRToken, ScannedEventID: l.eventID}

	token, err := l.creds.Ensure(ctx)
	if err != nil {
		return Outcome{}, err
	}
	out, err := l.api.ValidateScan(ctx, token, req)
	if err != nil {
		return Outcome{}, err
	}
	if out.HTTPStatus == http.StatusUnauthorized {
		// the cached token was revoked server-side; log in again once
		l.creds.Expire()
		if token, err = l.creds.Acquire(ctx); err != nil {
			return Outcome{}, err
		}
		return l.api.ValidateScan(ctx, token, req)
	}
	return out, nil
}
