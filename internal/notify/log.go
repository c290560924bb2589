package notify

import (
	"context"
	"log/slog"
	"strings"

	"github.com/example/roombook/internal/booking"
	"github.com/example/roombook/internal/logging"
)

// LogNotifier writes notifications to the structured log. Used when no broker
// is configured, typically in local development and tests.
type LogNotifier struct{}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Notify logs the notification and always succeeds.
func (n *LogNotifier) Notify(ctx context.Context, notification booking.Notification) error {
	logging.FromContext(ctx).Info("notification",
		slog.String("kind", string(notification.Kind)),
		slog.String("reservation_id", notification.ReservationID),
		slog.String("room_id", notification.RoomID),
		slog.String("dates", strings.Join(notification.Dates, ",")),
		slog.String("reason", notification.Reason),
	)
	return nil
}
