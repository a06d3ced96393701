package model

// SeatStatus is the persistent state of a seat inside a pool.
type SeatStatus string

const (
	SeatAvailable SeatStatus = "available"
	SeatReserved  SeatStatus = "reserved"
	SeatBooked    SeatStatus = "booked"
)

// Seat describes one seat of a pool together with its current holder.
// A reserved seat names the pending reservation holding it; a booked
// seat names the booking that bought it.  At most one holder is set.
//
// Fields:
//
//	PoolID              – pool the seat belongs to.
//	SeatNumber          – seat label, unique within the pool.
//	Status              – available, reserved or booked.
//	HolderReservationID – reservation holding the seat while reserved.
//	HolderBookingID     – booking owning the seat once booked.
type Seat struct {
	PoolID              uint64     // pool_seats.pool_id
	SeatNumber          string     // pool_seats.seat_number
	Status              SeatStatus // pool_seats.status
	HolderReservationID *string    // pool_seats.holder_reservation_id (nullable)
	HolderBookingID     *string    // pool_seats.holder_booking_id (nullable)
}

// HeldBy reports whether the seat is reserved by the given reservation.
func (s Seat) HeldBy(reservationID string) bool {
	return s.Status == SeatReserved && s.HolderReservationID != nil && *s.HolderReservationID == reservationID
}
