// Package memstore is an in-memory implementation of every repository
// port.  All state sits behind one mutex, so each method is atomic the
// same way a single database transaction is.  It backs the tests and
// STORE_DRIVER=memory.
package memstore

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/repository"
)

type seatKey struct {
	pool uint64
	seat string
}

// Store holds all records.  Use the view accessors to obtain the
// individual ports.
type Store struct {
	mu           sync.Mutex
	nextPool     uint64
	nextUser     uint64
	pools        map[uint64]model.Pool
	seats        map[seatKey]model.Seat
	reservations map[string]model.Reservation
	bookings     map[string]model.Booking
	passengers   map[string][]model.Passenger
	users        map[uint64]model.User
	transactions []model.Transaction
}

// New returns an empty store.
func New() *Store {
	return &Store{
		pools:        make(map[uint64]model.Pool),
		seats:        make(map[seatKey]model.Seat),
		reservations: make(map[string]model.Reservation),
		bookings:     make(map[string]model.Booking),
		passengers:   make(map[string][]model.Passenger),
		users:        make(map[uint64]model.User),
	}
}

// Pools returns the PoolRegistry and PoolAdmin view.
func (s *Store) Pools() *Pools { return &Pools{s} }

// Seats returns the SeatStore view.
func (s *Store) Seats() *Seats { return &Seats{s} }

// Reservations returns the ReservationStore view.
func (s *Store) Reservations() *Reservations { return &Reservations{s} }

// Bookings returns the BookingStore view.
func (s *Store) Bookings() *Bookings { return &Bookings{s} }

// Users returns the UserStore and AccountStore view.
func (s *Store) Users() *Users { return &Users{s} }

// Transactions returns a copy of the ledger.
func (s *Store) Transactions() []model.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Transaction(nil), s.transactions...)
}

// Passengers returns the passengers stored for a booking.
func (s *Store) Passengers(bookingID string) []model.Passenger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Passenger(nil), s.passengers[bookingID]...)
}

func cloneStrPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneSeat(st model.Seat) model.Seat {
	st.HolderReservationID = cloneStrPtr(st.HolderReservationID)
	st.HolderBookingID = cloneStrPtr(st.HolderBookingID)
	return st
}

func cloneReservation(r model.Reservation) model.Reservation {
	r.SeatNumbers = append([]string(nil), r.SeatNumbers...)
	r.BookingID = cloneStrPtr(r.BookingID)
	return r
}

// Pools implements repository.PoolRegistry and repository.PoolAdmin.
type Pools struct{ s *Store }

func (p *Pools) GetPool(_ context.Context, poolID uint64) (*model.Pool, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	pool, ok := p.s.pools[poolID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &pool, nil
}

func (p *Pools) ListSeats(_ context.Context, poolID uint64) ([]model.Seat, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	var out []model.Seat
	for k, st := range p.s.seats {
		if k.pool == poolID {
			out = append(out, cloneSeat(st))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].SeatNumber, out[j].SeatNumber
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return a < b
	})
	return out, nil
}

func (p *Pools) CreatePool(_ context.Context, pool *model.Pool) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if pool.Status == "" {
		pool.Status = model.PoolStatusPublished
	}
	p.s.nextPool++
	pool.ID = p.s.nextPool
	p.s.pools[pool.ID] = *pool
	for i := 1; i <= pool.SeatCount; i++ {
		n := strconv.Itoa(i)
		p.s.seats[seatKey{pool.ID, n}] = model.Seat{PoolID: pool.ID, SeatNumber: n, Status: model.SeatAvailable}
	}
	return nil
}

func (p *Pools) PublishPool(_ context.Context, poolID uint64) (*model.Pool, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	pool, ok := p.s.pools[poolID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if pool.Status != model.PoolStatusDraft {
		return &pool, repository.ErrPoolNotDraft
	}
	pool.Status = model.PoolStatusPublished
	p.s.pools[poolID] = pool
	return &pool, nil
}

// Seats implements repository.SeatStore.
type Seats struct{ s *Store }

func (v *Seats) GetSeats(_ context.Context, poolID uint64, seatNumbers []string) ([]model.Seat, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []model.Seat
	for _, n := range seatNumbers {
		if st, ok := v.s.seats[seatKey{poolID, n}]; ok {
			out = append(out, cloneSeat(st))
		}
	}
	return out, nil
}

func (v *Seats) ReserveSeats(_ context.Context, poolID uint64, seatNumbers []string, reservationID string) (int64, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var n int64
	for _, num := range seatNumbers {
		k := seatKey{poolID, num}
		st, ok := v.s.seats[k]
		if !ok || st.Status != model.SeatAvailable {
			continue
		}
		id := reservationID
		st.Status = model.SeatReserved
		st.HolderReservationID = &id
		v.s.seats[k] = st
		n++
	}
	return n, nil
}

func (v *Seats) ReleaseSeats(_ context.Context, poolID uint64, seatNumbers []string, reservationID string) (int64, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return v.s.releaseLocked(poolID, seatNumbers, reservationID), nil
}

func (s *Store) releaseLocked(poolID uint64, seatNumbers []string, reservationID string) int64 {
	var n int64
	for _, num := range seatNumbers {
		k := seatKey{poolID, num}
		st, ok := s.seats[k]
		if !ok || !st.HeldBy(reservationID) {
			continue
		}
		st.Status = model.SeatAvailable
		st.HolderReservationID = nil
		s.seats[k] = st
		n++
	}
	return n
}

// SetSeatStatus overwrites a seat.  Tests use it to simulate writers
// outside the reservation core.
func (s *Store) SetSeatStatus(poolID uint64, seat string, status model.SeatStatus, holder *string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := model.Seat{PoolID: poolID, SeatNumber: seat, Status: status}
	switch status {
	case model.SeatReserved:
		st.HolderReservationID = cloneStrPtr(holder)
	case model.SeatBooked:
		st.HolderBookingID = cloneStrPtr(holder)
	}
	s.seats[seatKey{poolID, seat}] = st
}

// Reservations implements repository.ReservationStore.
type Reservations struct{ s *Store }

func (v *Reservations) Create(_ context.Context, res *model.Reservation) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	v.s.reservations[res.ID] = cloneReservation(*res)
	return nil
}

func (v *Reservations) GetByID(_ context.Context, id string) (*model.Reservation, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	res, ok := v.s.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneReservation(res)
	return &out, nil
}

func (v *Reservations) Cancel(_ context.Context, res *model.Reservation, status model.ReservationStatus) (repository.CancelResult, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	cur, ok := v.s.reservations[res.ID]
	if !ok || cur.Status != model.ReservationPending {
		return repository.CancelResult{}, nil
	}
	released := v.s.releaseLocked(cur.PoolID, cur.SeatNumbers, cur.ID)
	cur.Status = status
	v.s.reservations[cur.ID] = cur
	return repository.CancelResult{SeatsReleased: released, Transitioned: true}, nil
}

func (v *Reservations) ListExpired(_ context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []model.Reservation
	for _, r := range v.s.reservations {
		if r.Status == model.ReservationPending && r.ExpiredAt(now) {
			out = append(out, cloneReservation(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (v *Reservations) ListByUser(_ context.Context, userID uint64) ([]model.Reservation, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []model.Reservation
	for _, r := range v.s.reservations {
		if r.UserID == userID {
			out = append(out, cloneReservation(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Bookings implements repository.BookingStore.
type Bookings struct{ s *Store }

// Finalize checks every guard before applying anything, which gives the
// same all-or-nothing outcome as the SQL transaction.
func (v *Bookings) Finalize(_ context.Context, p repository.FinalizeParams) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	res, ok := s.reservations[p.Reservation.ID]
	if !ok || res.Status != model.ReservationPending {
		return repository.ErrStateChanged
	}
	for _, n := range res.SeatNumbers {
		st, ok := s.seats[seatKey{res.PoolID, n}]
		if !ok || !st.HeldBy(res.ID) {
			return repository.ErrSeatConflict
		}
	}
	user, ok := s.users[res.UserID]
	if !ok || user.BalanceCents < p.Booking.TotalPriceCents {
		return repository.ErrInsufficientBalance
	}

	b := *p.Booking
	bid := b.ID
	res.Status = model.ReservationConfirmed
	res.BookingID = &bid
	s.reservations[res.ID] = res
	for _, n := range res.SeatNumbers {
		k := seatKey{res.PoolID, n}
		st := s.seats[k]
		st.Status = model.SeatBooked
		st.HolderReservationID = nil
		id := bid
		st.HolderBookingID = &id
		s.seats[k] = st
	}
	user.BalanceCents -= b.TotalPriceCents
	s.users[user.ID] = user
	b.SeatNumbers = append([]string(nil), b.SeatNumbers...)
	s.bookings[bid] = b
	if len(p.Passengers) > 0 {
		s.passengers[bid] = append([]model.Passenger(nil), p.Passengers...)
	}
	if p.Transaction != nil {
		t := *p.Transaction
		t.BookingID = cloneStrPtr(t.BookingID)
		s.transactions = append(s.transactions, t)
	}
	return nil
}

func (v *Bookings) ListByUser(_ context.Context, userID uint64) ([]model.Booking, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []model.Booking
	for _, b := range v.s.bookings {
		if b.UserID == userID {
			b.SeatNumbers = append([]string(nil), b.SeatNumbers...)
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Users implements repository.UserStore and repository.AccountStore.
type Users struct{ s *Store }

func (v *Users) Create(_ context.Context, u *model.User) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range v.s.users {
		if existing.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	if u.Role == "" {
		u.Role = model.RoleCustomer
	}
	v.s.nextUser++
	u.ID = v.s.nextUser
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	v.s.users[u.ID] = *u
	return nil
}

func (v *Users) GetByEmail(_ context.Context, email string) (*model.User, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range v.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (v *Users) GetByID(_ context.Context, id uint64) (*model.User, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	u, ok := v.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (v *Users) GetAccount(_ context.Context, userID uint64) (*model.Account, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	u, ok := v.s.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &model.Account{UserID: u.ID, Email: u.Email, Name: u.Name, BalanceCents: u.BalanceCents}, nil
}

var (
	_ repository.PoolRegistry     = (*Pools)(nil)
	_ repository.PoolAdmin        = (*Pools)(nil)
	_ repository.SeatStore        = (*Seats)(nil)
	_ repository.ReservationStore = (*Reservations)(nil)
	_ repository.BookingStore     = (*Bookings)(nil)
	_ repository.UserStore        = (*Users)(nil)
	_ repository.AccountStore     = (*Users)(nil)
)
