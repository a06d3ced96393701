package model

import "time"

// BookingStatusActive is the status of every booking created by a
// confirmation.
const BookingStatusActive = "active"

// Booking is the durable purchase produced from exactly one confirmed
// reservation.
type Booking struct {
	ID              string    // bookings.id
	ReservationID   string    // bookings.reservation_id
	UserID          uint64    // bookings.user_id
	PoolID          uint64    // bookings.pool_id
	SeatNumbers     []string  // bookings.seat_numbers (JSON)
	TotalPriceCents int64     // bookings.total_price_cents
	Status          string    // bookings.status
	CreatedAt       time.Time // bookings.created_at
}

// Passenger is the traveller recorded for one booked seat.
type Passenger struct {
	ID         string    // passengers.id
	BookingID  string    // passengers.booking_id
	SeatNumber string    // passengers.seat_number
	Name       string    // passengers.name
	Email      string    // passengers.email
	Mobile     string    // passengers.mobile
	CreatedAt  time.Time // passengers.created_at
}
