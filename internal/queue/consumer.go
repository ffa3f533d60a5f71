package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/arashfz/cinebook/internal/logger"
)

// StartConsumer connects to RabbitMQ, declares the durable
// reservation.events queue and consumes it until the context is
// cancelled, writing one structured log line per event. It runs a
// reconnect loop with exponential backoff so a broker restart never
// takes the server down; malformed messages are rejected without
// requeue to avoid tight redelivery loops.
func StartConsumer(ctx context.Context, url string, log logger.Logger) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn("reservation consumer dial failed", "error", err, "retry_in", backoff.String())
			if err := sleep(ctx, backoff); err != nil {
				return err
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := consumeLoop(ctx, conn, log); err != nil {
			log.Warn("reservation consume loop ended", "error", err)
			_ = conn.Close()
			if err := sleep(ctx, 2*time.Second); err != nil {
				return err
			}
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, log logger.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("set QoS failed", "error", err)
	}
	if _, err := ch.QueueDeclare(reservationQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(reservationQueueName, "", false, false, false, false, nil)
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
			var ev ReservationEvent
			if err := json.Unmarshal(d.Body, &ev); err != nil {
				log.Error("reservation event unmarshal failed", "error", err)
				_ = d.Nack(false, false)
				continue
			}
			log.Info("reservation event",
				"status", ev.Status,
				"booking_id", ev.BookingID,
				"screening_id", ev.ScreeningID,
				"holder_id", ev.HolderID,
				"row", ev.Row,
				"seat", ev.Seat,
				"occurred_at", ev.OccurredAt,
			)
			_ = d.Ack(false)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
