package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/venue-scan/internal/model"
	"github.com/iliyamo/venue-scan/internal/monitoring"
	q "github.com/iliyamo/venue-scan/internal/queue"
	"github.com/iliyamo/venue-scan/internal/repository"
)

// Invitation delivery channels.  MethodBoth fans out to SMS and WhatsApp.
const (
	MethodSMS      = "sms"
	MethodWhatsApp = "whatsapp"
	MethodBoth     = "both"
)

// DefaultInvitationMessage is used when the request carries no text.
const DefaultInvitationMessage = "You're invited to our special event! We can't wait to celebrate with you."

// ErrInvalidMethod is returned for an unknown delivery method.
var ErrInvalidMethod = errors.New("method must be sms, whatsapp or both")

// Channels expands a requested method into delivery channels.
func Channels(method string) ([]string, error) {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case "", MethodBoth:
		return []string{MethodSMS, MethodWhatsApp}, nil
	case MethodSMS:
		return []string{MethodSMS}, nil
	case MethodWhatsApp:
		return []string{MethodWhatsApp}, nil
	}
	return nil, ErrInvalidMethod
}

// OutgoingInvitation is one rendered message for one guest on one channel.
type OutgoingInvitation struct {
	EventID   string
	EventName string
	GuestID   string
	GuestName string
	Phone     string
	Channel   string
	Body      string
	QRData    string
}

// Sender delivers a rendered invitation.
type Sender interface {
	Send(ctx context.Context, inv OutgoingInvitation) error
}

// LogSender appends invitations to a file instead of calling a messaging
// provider.
type LogSender struct {
	Path string
	mu   sync.Mutex
}

// Send writes one line per invitation.
func (s *LogSender) Send(_ context.Context, inv OutgoingInvitation) error {
	if inv.Phone == "" {
		return errors.New("guest has no phone number")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(s.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open invitation log: %w", err)
	}
	defer f.Close()
	line := fmt.Sprintf("[%s] %s -> %s (%s) | event=%q | guest=%q | qr=%s | %s\n",
		time.Now().UTC().Format(time.RFC3339), inv.Channel, inv.Phone, inv.GuestID, inv.EventName, inv.GuestName,
		inv.QRData, strings.ReplaceAll(inv.Body, "\n", " "))
	_, err = f.WriteString(line)
	return err
}

// GuestLister lists an event's guests.
type GuestLister interface {
	ListByEvent(ctx context.Context, eventID string) ([]model.Guest, error)
}

// InvitationRecorder stores dispatch attempts.
type InvitationRecorder interface {
	Record(ctx context.Context, inv *model.Invitation) error
}

// InvitationService issues fresh QR tokens for an event's guests and hands
// the rendered invitations to a Sender.
type InvitationService struct {
	events  EventLookup
	guests  GuestLister
	tokens  *TokenIssuer
	records InvitationRecorder
	sender  Sender
}

// NewInvitationService wires an InvitationService.
func NewInvitationService(events EventLookup, guests GuestLister, tokens *TokenIssuer, records InvitationRecorder, sender Sender) *InvitationService {
	return &InvitationService{events: events, guests: guests, tokens: tokens, records: records, sender: sender}
}

// DispatchReport summarises one Dispatch run.
type DispatchReport struct {
	Guests int
	Sent   int
	Failed int
}

// Dispatch handles one invitations.requested message.  A failure for one
// guest is recorded and does not stop the others.
func (s *InvitationService) Dispatch(ctx context.Context, req q.InvitationRequestedEvent) (DispatchReport, error) {
	var rep DispatchReport
	channels, err := Channels(req.Method)
	if err != nil {
		return rep, err
	}
	ev, err := s.events.GetByID(ctx, req.EventID)
	if errors.Is(err, repository.ErrEventNotFound) {
		return rep, ErrEventNotFound
	}
	if err != nil {
		return rep, fmt.Errorf("load event: %w", err)
	}
	if ev.Cancelled {
		return rep, ErrEventNotActive
	}
	guests, err := s.guests.ListByEvent(ctx, req.EventID)
	if err != nil {
		return rep, fmt.Errorf("list guests: %w", err)
	}
	message := req.Message
	if strings.TrimSpace(message) == "" {
		message = DefaultInvitationMessage
	}

	rep.Guests = len(guests)
	for _, g := range guests {
		issued, err := s.tokens.Rotate(ctx, ev.ID, g.ID)
		if err != nil {
			log.Printf("invitations: rotate token for guest %s failed: %v", g.ID, err)
			for _, ch := range channels {
				s.record(ctx, &rep, ev.ID, g.ID, ch, err)
			}
			continue
		}
		for _, ch := range channels {
			out := OutgoingInvitation{
				EventID:   ev.ID,
				EventName: ev.Name,
				GuestID:   g.ID,
				GuestName: g.FullName(),
				Phone:     g.Phone,
				Channel:   ch,
				Body:      RenderInvitation(message, g.FullName(), issued.QRData),
				QRData:    issued.QRData,
			}
			s.record(ctx, &rep, ev.ID, g.ID, ch, s.sender.Send(ctx, out))
		}
	}
	return rep, nil
}

func (s *InvitationService) record(ctx context.Context, rep *DispatchReport, eventID, guestID, channel string, sendErr error) {
	inv := &model.Invitation{EventID: eventID, GuestID: guestID, Channel: channel, Status: repository.InvitationSent}
	if sendErr != nil {
		inv.Status, inv.Error = repository.InvitationFailed, sendErr.Error()
		rep.Failed++
	} else {
		rep.Sent++
	}
	monitoring.TrackInvitation(inv.Status)
	if err := s.records.Record(ctx, inv); err != nil {
		log.Printf("invitations: record %s for guest %s failed: %v", inv.Status, guestID, err)
	}
}

// RenderInvitation substitutes {name} and {qr} in message.  When the
// message has no {qr} placeholder the link is appended on its own line.
func RenderInvitation(message, guestName, qrData string) string {
	body := strings.ReplaceAll(message, "{name}", guestName)
	if strings.Contains(body, "{qr}") {
		return strings.ReplaceAll(body, "{qr}", qrData)
	}
	return body + "\n" + qrData
}
