// Package service holds the application logic that sits between the HTTP
// handlers and the repositories: the scan validator, QR token issuance and
// invitation dispatch.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/iliyamo/venue-scan/internal/model"
	"github.com/iliyamo/venue-scan/internal/monitoring"
	q "github.com/iliyamo/venue-scan/internal/queue"
	"github.com/iliyamo/venue-scan/internal/repository"
	"github.com/iliyamo/venue-scan/internal/utils"
)

// GuestLedger is the guest/ticket storage the validator reads and
// conditionally updates.
type GuestLedger interface {
	ReadGuest(ctx context.Context, eventID, guestID string) (model.Guest, error)
	TryConsumeScan(ctx context.Context, eventID, guestID, tokenHash string, expected int, rec *model.ScanRecord) (bool, error)
}

// EventLookup loads events by id.
type EventLookup interface {
	GetByID(ctx context.Context, id string) (model.Event, error)
}

// PermissionChecker answers whether an operator may scan an event.
type PermissionChecker interface {
	HasPermission(ctx context.Context, eventID, userID string) (bool, error)
}

// CheckInPublisher receives accepted scans.
type CheckInPublisher interface {
	PublishCheckedIn(ctx context.Context, ev q.GuestCheckedInEvent) error
}

// ScanRequest is one validate-scan call.  GuestID, EventID and QRToken come
// from the decoded QR code; ScannedEventID is the event the scanner is
// stationed at.  Operator fields come from the verified access token.
type ScanRequest struct {
	GuestID        string
	EventID        string
	QRToken        string
	ScannedEventID string
	OperatorID     string
	OperatorRole   string
}

// ScanResult describes an accepted scan.
type ScanResult struct {
	ScanID            string
	GuestID           string
	EventID           string
	GuestName         string
	Type              model.GuestType
	Status            string
	State             model.ScanState
	ConsumedScans     int
	RemainingScans    int
	TotalAllowedScans int
	ScannedAt         time.Time
}

// ScanValidator is the authoritative accept/reject decision for a scanned
// ticket and the only caller of the ledger's conditional update.
type ScanValidator struct {
	ledger      GuestLedger
	events      EventLookup
	permissions PermissionChecker
	publisher   CheckInPublisher
	attempts    int
	publishWait time.Duration
}

// NewScanValidator wires a validator.  attempts bounds the read-modify-write
// loop; values below 1 are treated as 1.  publisher may be nil.
func NewScanValidator(ledger GuestLedger, events EventLookup, permissions PermissionChecker, publisher CheckInPublisher, attempts int) *ScanValidator {
	if attempts < 1 {
		attempts = 1
	}
	return &ScanValidator{
		ledger:      ledger,
		events:      events,
		permissions: permissions,
		publisher:   publisher,
		attempts:    attempts,
		publishWait: 5 * time.Second,
	}
}

// Validate runs the check-in state machine for one scan.  Rejections are
// returned as the Err* values of this package; any other error is an
// infrastructure failure.
func (v *ScanValidator) Validate(ctx context.Context, req ScanRequest) (res ScanResult, err error) {
	start := time.Now()
	defer func() { monitoring.TrackValidation(resultLabel(err), time.Since(start)) }()

	if req.OperatorID == "" {
		return res, ErrUnauthorized
	}
	if req.GuestID == "" || req.EventID == "" || req.QRToken == "" || req.ScannedEventID == "" {
		return res, fmt.Errorf("%w: guestId, eventId, qrToken and scannedEventId are required", ErrMalformedPayload)
	}

	if req.OperatorRole != model.RoleAdmin {
		ok, err := v.permissions.HasPermission(ctx, req.ScannedEventID, req.OperatorID)
		if err != nil {
			return res, fmt.Errorf("check scan permission: %w", err)
		}
		if !ok {
			return res, ErrScanNotPermitted
		}
	}

	// the scanner's event is authoritative; the payload must name the same one
	ev, err := v.loadEvent(ctx, req.ScannedEventID)
	if err != nil {
		return res, err
	}
	if req.EventID != req.ScannedEventID {
		return res, ErrEventMismatch
	}
	if !ev.AcceptsScans() {
		return res, ErrEventNotActive
	}

	tokenHash := utils.HashToken(req.QRToken)
	for attempt := 1; ; attempt++ {
		g, err := v.readTicket(ctx, req, tokenHash)
		if err != nil {
			return res, err
		}

		res, err = v.consume(ctx, g, req.OperatorID)
		if err == nil {
			v.publishCheckedIn(res, req.OperatorID)
			return res, nil
		}
		if !errors.Is(err, errConcurrencyConflict) {
			return res, err
		}
		monitoring.TrackLedgerConflict()
		if attempt >= v.attempts {
			// out of retries: report what the row says now, a rotated
			// token included, and fall back to the exhausted rejection
			if _, err := v.readTicket(ctx, req, tokenHash); err != nil {
				return ScanResult{}, err
			}
			return ScanResult{}, exhausted(g)
		}
	}
}

// readTicket loads the guest and rejects it when the token does not match
// or the allowance is used up.
func (v *ScanValidator) readTicket(ctx context.Context, req ScanRequest, tokenHash string) (model.Guest, error) {
	g, err := v.ledger.ReadGuest(ctx, req.EventID, req.GuestID)
	if errors.Is(err, repository.ErrGuestNotFound) {
		return g, ErrGuestNotFound
	}
	if err != nil {
		return g, fmt.Errorf("read guest: %w", err)
	}
	if g.QRTokenHash == "" || subtle.ConstantTimeCompare([]byte(tokenHash), []byte(g.QRTokenHash)) != 1 {
		return g, ErrInvalidToken
	}
	if g.State() == model.StateFullyConsumed {
		return g, exhausted(g)
	}
	return g, nil
}

func (v *ScanValidator) loadEvent(ctx context.Context, id string) (model.Event, error) {
	ev, err := v.events.GetByID(ctx, id)
	if errors.Is(err, repository.ErrEventNotFound) {
		return ev, ErrEventNotFound
	}
	if err != nil {
		return ev, fmt.Errorf("load event: %w", err)
	}
	return ev, nil
}

// consume performs one compare-and-swap from g.ConsumedScans.  The swap
// also requires g's token to still be current.
func (v *ScanValidator) consume(ctx context.Context, g model.Guest, operatorID string) (ScanResult, error) {
	rec := &model.ScanRecord{ScannedBy: operatorID, Type: g.Type}
	ok, err := v.ledger.TryConsumeScan(ctx, g.EventID, g.ID, g.QRTokenHash, g.ConsumedScans, rec)
	if err != nil {
		return ScanResult{}, fmt.Errorf("consume scan: %w", err)
	}
	if !ok {
		return ScanResult{}, errConcurrencyConflict
	}
	g.ConsumedScans++
	return ScanResult{
		ScanID:            rec.ID,
		GuestID:           g.ID,
		EventID:           g.EventID,
		GuestName:         g.FullName(),
		Type:              g.Type,
		Status:            g.Status(),
		State:             g.State(),
		ConsumedScans:     g.ConsumedScans,
		RemainingScans:    g.RemainingScans(),
		TotalAllowedScans: g.TotalAllowedScans(),
		ScannedAt:         rec.ScannedAt,
	}, nil
}

// exhausted picks the rejection for a ticket with no allowance left.
func exhausted(g model.Guest) error {
	if g.Type == model.GuestDouble {
		return ErrNoRemainingScans
	}
	return ErrAlreadyCheckedIn
}

// publishCheckedIn hands the accepted scan to the broker in the
// background; the response never waits on it.
func (v *ScanValidator) publishCheckedIn(res ScanResult, operatorID string) {
	if v.publisher == nil {
		return
	}
	ev := q.GuestCheckedInEvent{
		ScanID:         res.ScanID,
		EventID:        res.EventID,
		GuestID:        res.GuestID,
		GuestName:      res.GuestName,
		GuestType:      string(res.Type),
		OperatorID:     operatorID,
		ConsumedScans:  res.ConsumedScans,
		RemainingScans: res.RemainingScans,
		State:          string(res.State),
		ScannedAt:      res.ScannedAt.UTC().Format(time.RFC3339),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), v.publishWait)
		defer cancel()
		if err := v.publisher.PublishCheckedIn(ctx, ev); err != nil {
			log.Printf("scan: publish checked-in for guest %s failed: %v", ev.GuestID, err)
		}
	}()
}

func resultLabel(err error) string {
	if err == nil {
		return "accepted"
	}
	return strings.ToLower(Code(err))
}
