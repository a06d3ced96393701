package repository

import (
	"context"
	"time"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// PoolRegistry is the read side of the pool catalogue.
type PoolRegistry interface {
	GetPool(ctx context.Context, poolID uint64) (*model.Pool, error)
	ListSeats(ctx context.Context, poolID uint64) ([]model.Seat, error)
}

// PoolAdmin creates pools together with their seat rows and opens
// draft pools for sale.
type PoolAdmin interface {
	// CreatePool inserts p, sets p.ID and creates seats "1".."SeatCount"
	// as available.
	CreatePool(ctx context.Context, p *model.Pool) error
	// PublishPool moves a draft pool to published and returns it.  It
	// returns ErrNotFound for an unknown pool and ErrPoolNotDraft when
	// the pool was already past draft.
	PublishPool(ctx context.Context, poolID uint64) (*model.Pool, error)
}

// SeatStore exposes seat reads and the conditional seat transitions
// used while a hold is being taken or rolled back.  Both mutations
// return the number of seats they actually transitioned.
type SeatStore interface {
	GetSeats(ctx context.Context, poolID uint64, seatNumbers []string) ([]model.Seat, error)
	// ReserveSeats moves available seats to reserved with the given holder.
	ReserveSeats(ctx context.Context, poolID uint64, seatNumbers []string, reservationID string) (int64, error)
	// ReleaseSeats moves seats reserved by reservationID back to available.
	ReleaseSeats(ctx context.Context, poolID uint64, seatNumbers []string, reservationID string) (int64, error)
}

// CancelResult reports what a cancellation actually changed.
type CancelResult struct {
	SeatsReleased int64 // seats moved from reserved back to available
	Transitioned  bool  // reservation moved out of pending by this call
}

// ReservationStore owns reservation records.
type ReservationStore interface {
	Create(ctx context.Context, res *model.Reservation) error
	GetByID(ctx context.Context, id string) (*model.Reservation, error)
	// Cancel releases the seats still held by res and moves it from
	// pending to status as one unit.  Zero rows is not an error.
	Cancel(ctx context.Context, res *model.Reservation, status model.ReservationStatus) (CancelResult, error)
	// ListExpired returns pending reservations with expires_at <= now.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error)
}

// AccountStore reads balances.  Debits only happen inside Finalize.
type AccountStore interface {
	GetAccount(ctx context.Context, userID uint64) (*model.Account, error)
}

// FinalizeParams describes the durable side effects of a purchase.
type FinalizeParams struct {
	Reservation *model.Reservation
	Booking     *model.Booking
	Passengers  []model.Passenger
	Transaction *model.Transaction
	ConfirmedAt time.Time
}

// BookingStore writes bookings.  Finalize applies, in a single atomic
// unit, the pending→confirmed transition, the reserved→booked seat
// transition, the conditional debit and the booking, passenger and
// transaction inserts.  It returns ErrStateChanged, ErrSeatConflict or
// ErrInsufficientBalance when a guard did not hold, leaving nothing
// applied.
type BookingStore interface {
	Finalize(ctx context.Context, p FinalizeParams) error
	ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error)
}

// UserStore holds user credentials for the auth surface.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id uint64) (*model.User, error)
}

var (
	_ PoolRegistry     = (*PoolRepo)(nil)
	_ PoolAdmin        = (*PoolRepo)(nil)
	_ SeatStore        = (*SeatRepo)(nil)
	_ ReservationStore = (*ReservationRepo)(nil)
	_ BookingStore     = (*BookingRepo)(nil)
	_ UserStore        = (*UserRepo)(nil)
	_ AccountStore     = (*UserRepo)(nil)
)
