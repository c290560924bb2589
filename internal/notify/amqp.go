// Package notify delivers reservation lifecycle notifications. The AMQP
// sender publishes persistent JSON messages to a durable queue; errors are
// logged and returned so callers can ignore failures without interrupting
// the main request flow.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/example/roombook/internal/booking"
	"github.com/example/roombook/internal/logging"
)

// DefaultQueue is the queue lifecycle notifications are published to.
const DefaultQueue = "roombook.notifications"

// AMQPNotifier publishes notifications to RabbitMQ. A fresh connection is
// dialed per publish so a broker restart never leaves the notifier holding a
// dead channel.
type AMQPNotifier struct {
	url   string
	queue string
}

// NewAMQPNotifier creates a notifier targeting the given broker URL. An empty
// queue name falls back to DefaultQueue.
func NewAMQPNotifier(url, queue string) *AMQPNotifier {
	if queue == "" {
		queue = DefaultQueue
	}
	return &AMQPNotifier{url: url, queue: queue}
}

// Notify publishes the notification as a persistent JSON message.
func (n *AMQPNotifier) Notify(ctx context.Context, notification booking.Notification) error {
	logger := logging.FromContext(ctx)

	conn, err := amqp.Dial(n.url)
	if err != nil {
		logger.Error("rabbitmq dial failed", slog.String("error", err.Error()))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		logger.Error("rabbitmq channel open failed", slog.String("error", err.Error()))
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts. Declaration is idempotent.
	if _, err := ch.QueueDeclare(n.queue, true, false, false, false, nil); err != nil {
		logger.Error("rabbitmq queue declare failed", slog.String("error", err.Error()))
		return err
	}

	body, err := json.Marshal(notification)
	if err != nil {
		logger.Error("marshal notification failed", slog.String("error", err.Error()))
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         string(notification.Kind),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx, "", n.queue, false, false, pub); err != nil {
		logger.Error("rabbitmq publish failed", slog.String("error", err.Error()))
		return err
	}
	return nil
}
