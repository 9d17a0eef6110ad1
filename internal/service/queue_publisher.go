package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/venue-scan/internal/monitoring"
	q "github.com/iliyamo/venue-scan/internal/queue"
)

// Publisher sends domain events to RabbitMQ.  Each call dials, declares the
// durable queue and publishes one persistent message; errors are logged and
// returned so callers can ignore them without interrupting the request.
type Publisher struct {
	url string
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string) *Publisher { return &Publisher{url: url} }

// PublishCheckedIn publishes to the guest.checked_in queue.
func (p *Publisher) PublishCheckedIn(ctx context.Context, ev q.GuestCheckedInEvent) error {
	return p.publish(ctx, q.CheckedInQueue, ev)
}

// PublishInvitationRequested publishes to the invitations.requested queue.
func (p *Publisher) PublishInvitationRequested(ctx context.Context, ev q.InvitationRequestedEvent) error {
	return p.publish(ctx, q.InvitationsRequestQueue, ev)
}

func (p *Publisher) publish(ctx context.Context, queueName string, v interface{}) (err error) {
	defer func() {
		if err != nil {
			monitoring.TrackPublishFailure(queueName)
		}
	}()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		log.Printf("rabbitmq: queue declare %s failed: %v", queueName, err)
		return err
	}

	body, err := json.Marshal(v)
	if err != nil {
		log.Printf("rabbitmq: marshal %s failed: %v", queueName, err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	// default exchange, routing key = queue name
	if err := ch.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
		log.Printf("rabbitmq: publish %s failed: %v", queueName, err)
		return err
	}
	return nil
}
