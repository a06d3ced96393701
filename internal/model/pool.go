package model

import "time"

// Pool status values.  Only PUBLISHED pools accept new holds; the
// finalization process that moves a pool to FINALIZED runs elsewhere.
const (
	PoolStatusDraft     = "draft"
	PoolStatusPublished = "published"
	PoolStatusFinalized = "finalized"
)

// Pool represents a scheduled trip of one vehicle.  It owns a fixed
// set of seats, all sold at the same price.
//
// Fields:
//
//	ID                – primary key identifier.
//	Name              – display name of the vehicle.
//	Origin            – departure city.
//	Destination       – arrival city.
//	StartsAt          – scheduled departure time (UTC).
//	PricePerSeatCents – price of one seat in cents.
//	SeatCount         – number of seats created for the pool.
//	Status            – draft, published or finalized.
type Pool struct {
	ID                uint64    // pools.id
	Name              string    // pools.name
	Origin            string    // pools.origin
	Destination       string    // pools.destination
	StartsAt          time.Time // pools.starts_at
	PricePerSeatCents int64     // pools.price_per_seat_cents
	SeatCount         int       // pools.seat_count
	Status            string    // pools.status
}

// IsOpen reports whether the pool currently accepts holds.
func (p *Pool) IsOpen() bool { return p.Status == PoolStatusPublished }
