package handler

import (
	"time"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// Response DTOs.  Times are RFC 3339 in UTC; money is in cents.

type poolView struct {
	ID                uint64    `json:"id"`
	Name              string    `json:"name"`
	Origin            string    `json:"origin"`
	Destination       string    `json:"destination"`
	StartsAt          time.Time `json:"starts_at"`
	PricePerSeatCents int64     `json:"price_per_seat_cents"`
	SeatCount         int       `json:"seat_count"`
	Status            string    `json:"status"`
}

func newPoolView(p *model.Pool) poolView {
	return poolView{
		ID:                p.ID,
		Name:              p.Name,
		Origin:            p.Origin,
		Destination:       p.Destination,
		StartsAt:          p.StartsAt.UTC(),
		PricePerSeatCents: p.PricePerSeatCents,
		SeatCount:         p.SeatCount,
		Status:            p.Status,
	}
}

type seatView struct {
	SeatNumber string           `json:"seat_number"`
	Status     model.SeatStatus `json:"status"`
}

type reservationView struct {
	ID              string                  `json:"id"`
	PoolID          uint64                  `json:"pool_id"`
	SeatNumbers     []string                `json:"seat_numbers"`
	TotalPriceCents int64                   `json:"total_price_cents"`
	Status          model.ReservationStatus `json:"status"`
	ExpiresAt       time.Time               `json:"expires_at"`
	CreatedAt       time.Time               `json:"created_at"`
	BookingID       *string                 `json:"booking_id,omitempty"`
}

func newReservationView(r *model.Reservation) reservationView {
	return reservationView{
		ID:              r.ID,
		PoolID:          r.PoolID,
		SeatNumbers:     r.SeatNumbers,
		TotalPriceCents: r.TotalPriceCents,
		Status:          r.Status,
		ExpiresAt:       r.ExpiresAt.UTC(),
		CreatedAt:       r.CreatedAt.UTC(),
		BookingID:       r.BookingID,
	}
}

// heldView is the select response: the new hold plus its TTL in seconds.
type heldView struct {
	reservationView
	ExpiresIn int64 `json:"expires_in"`
}

type bookingView struct {
	ID              string    `json:"id"`
	ReservationID   string    `json:"reservation_id"`
	PoolID          uint64    `json:"pool_id"`
	SeatNumbers     []string  `json:"seat_numbers"`
	TotalPriceCents int64     `json:"total_price_cents"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

func newBookingView(b *model.Booking) bookingView {
	return bookingView{
		ID:              b.ID,
		ReservationID:   b.ReservationID,
		PoolID:          b.PoolID,
		SeatNumbers:     b.SeatNumbers,
		TotalPriceCents: b.TotalPriceCents,
		Status:          b.Status,
		CreatedAt:       b.CreatedAt.UTC(),
	}
}
