package application

import "github.com/example/roombook/internal/booking"

// Guard exposes the capability predicates supplied by the identity/ACL
// collaborator. Implementations decide who may book, pre-book, override
// room restrictions and moderate reservations.
type Guard interface {
	CanBook(room *booking.Room, p booking.Principal) bool
	CanPrebook(room *booking.Room, p booking.Principal) bool
	CanOverride(room *booking.Room, p booking.Principal) bool
	CanManage(room *booking.Room, p booking.Principal) bool
}

// OwnerGuard is the stock capability policy: everyone with an identity may
// book and pre-book, while override and moderation rights belong to the
// room's owner, its managers and admins.
type OwnerGuard struct{}

// CanBook reports whether the principal may request bookings.
func (OwnerGuard) CanBook(_ *booking.Room, p booking.Principal) bool {
	return p.UserID != ""
}

// CanPrebook reports whether the principal may request pre-bookings.
func (OwnerGuard) CanPrebook(_ *booking.Room, p booking.Principal) bool {
	return p.UserID != ""
}

// CanOverride reports whether the principal may book through room restrictions.
func (OwnerGuard) CanOverride(room *booking.Room, p booking.Principal) bool {
	return p.IsAdmin || (room != nil && room.IsOwnedBy(p))
}

// CanManage reports whether the principal may moderate reservations on the room.
func (OwnerGuard) CanManage(room *booking.Room, p booking.Principal) bool {
	return p.IsAdmin || (room != nil && room.IsOwnedBy(p))
}
