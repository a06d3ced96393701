package model

import "time"

// ReservationStatus tracks the life cycle of a hold.  PENDING is the
// only non-terminal state.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationExpired   ReservationStatus = "expired"
)

// IsTerminal reports whether no further transitions are allowed.
func (s ReservationStatus) IsTerminal() bool { return s != ReservationPending }

// Reservation records a user's temporary hold on one or more seats of
// a pool.  It is created by a seat selection and ends either confirmed
// (a booking exists), cancelled by the user or expired by the reaper.
//
// Fields:
//
//	ID              – UUID generated before any write.
//	UserID          – user who owns the hold.
//	PoolID          – pool whose seats are held.
//	SeatNumbers     – non-empty, deduplicated seat set.
//	TotalPriceCents – price per seat times the number of seats.
//	Status          – pending, confirmed, cancelled or expired.
//	ExpiresAt       – end of the hold TTL.
//	CreatedAt       – creation timestamp.
//	BookingID       – booking created on confirmation.
type Reservation struct {
	ID              string            // reservations.id
	UserID          uint64            // reservations.user_id
	PoolID          uint64            // reservations.pool_id
	SeatNumbers     []string          // reservations.seat_numbers (JSON)
	TotalPriceCents int64             // reservations.total_price_cents
	Status          ReservationStatus // reservations.status
	ExpiresAt       time.Time         // reservations.expires_at
	CreatedAt       time.Time         // reservations.created_at
	BookingID       *string           // reservations.booking_id (nullable)
}

// ExpiredAt reports whether the hold TTL has elapsed at now.
func (r *Reservation) ExpiredAt(now time.Time) bool { return !now.Before(r.ExpiresAt) }
