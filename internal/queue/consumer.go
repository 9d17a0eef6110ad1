package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one message body.  A returned error rejects the
// message without requeueing it.
type Handler func(ctx context.Context, body []byte) error

// Run connects to RabbitMQ, declares the durable queue and consumes it
// until ctx is cancelled.  Broker failures are retried with exponential
// backoff capped at 30s, so the server keeps running while the broker is
// down.
func Run(ctx context.Context, url, queueName, component string, handle Handler) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("%s: failed to dial broker: %v; retrying in %s", component, err, backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, queueName, component, handle)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("%s: consume loop ended: %v; reconnecting", component, err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, queueName, component string, handle Handler) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("%s: set QoS failed: %v", component, err)
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handle(ctx, d.Body); err != nil {
				log.Printf("%s: handle message failed: %v", component, err)
				_ = d.Nack(false, false) // no requeue, avoids tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// CheckInLogHandler appends one line per guest.checked_in message to path.
func CheckInLogHandler(path string) Handler {
	var mu sync.Mutex
	return func(_ context.Context, body []byte) error {
		var ev GuestCheckedInEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		line := fmt.Sprintf("[%s] Guest checked in | scan_id=%s | event_id=%s | guest_id=%s | guest=%q | type=%s | operator=%s | consumed=%d | remaining=%d | state=%s\n",
			ev.ScannedAt, ev.ScanID, ev.EventID, ev.GuestID, ev.GuestName, ev.GuestType, ev.OperatorID,
			ev.ConsumedScans, ev.RemainingScans, ev.State)

		mu.Lock()
		defer mu.Unlock()
		return appendLine(path, line)
	}
}

// InvitationHandler decodes invitations.requested messages and passes them
// to dispatch.
func InvitationHandler(dispatch func(ctx context.Context, ev InvitationRequestedEvent) error) Handler {
	return func(ctx context.Context, body []byte) error {
		var ev InvitationRequestedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		if ev.EventID == "" {
			return errors.New("invitation request without event_id")
		}
		return dispatch(ctx, ev)
	}
}

func appendLine(path, line string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
