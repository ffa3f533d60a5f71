package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/arashfz/cinebook/internal/logger"
)

const reservationQueueName = "reservation.events"

// Publisher sends reservation events to RabbitMQ. Each publish dials a
// fresh connection, which keeps the publisher free of reconnect state
// at the cost of a handshake per event; reservation volume is low
// enough that this trade is fine. Errors are logged and returned so
// callers can ignore failures without interrupting the request flow.
type Publisher struct {
	url string
	log logger.Logger
}

// NewPublisher returns a Publisher for the given AMQP URL.
func NewPublisher(url string, log logger.Logger) *Publisher {
	if log == nil {
		log = logger.NewNop()
	}
	return &Publisher{url: url, log: log}
}

// PublishReservationEvent writes the event to the durable
// reservation.events queue. Messages are marked persistent so they
// survive broker restarts.
func (p *Publisher) PublishReservationEvent(ctx context.Context, event ReservationEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warn("rabbitmq dial failed", "error", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("rabbitmq channel open failed", "error", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(reservationQueueName, true, false, false, false, nil); err != nil {
		p.log.Warn("rabbitmq queue declare failed", "error", err)
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", reservationQueueName, false, false, pub); err != nil {
		p.log.Warn("rabbitmq publish failed", "error", err)
		return err
	}
	return nil
}
