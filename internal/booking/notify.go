package booking

import "context"

// EventKind identifies a lifecycle event published to the notification sender.
type EventKind string

const (
	// EventBookingCreated fires when a reservation is created.
	EventBookingCreated EventKind = "booking.created"
	// EventBookingAccepted fires when a pre-booking is confirmed.
	EventBookingAccepted EventKind = "booking.accepted"
	// EventBookingRejected fires when a reservation is rejected.
	EventBookingRejected EventKind = "booking.rejected"
	// EventBookingCancelled fires when a reservation is cancelled.
	EventBookingCancelled EventKind = "booking.cancelled"
	// EventBookingModified fires when tracked reservation fields change.
	EventBookingModified EventKind = "booking.modified"
	// EventBookingSplit fires when an ongoing reservation is split.
	EventBookingSplit EventKind = "booking.split"
	// EventOccurrenceCancelled fires when a single day is withdrawn.
	EventOccurrenceCancelled EventKind = "occurrence.cancelled"
	// EventOccurrenceRejected fires when a single day is refused.
	EventOccurrenceRejected EventKind = "occurrence.rejected"
)

// Notification is the payload handed to the notification sender.
type Notification struct {
	Kind          EventKind `json:"kind"`
	ReservationID string    `json:"reservation_id"`
	RoomID        string    `json:"room_id"`
	Dates         []string  `json:"dates,omitempty"`
	Reason        string    `json:"reason,omitempty"`
}

// Notifier delivers lifecycle notifications. Delivery is fire-and-forget:
// callers log and swallow errors so a failed notification never rolls back
// the state transition that triggered it.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}
