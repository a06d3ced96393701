package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/bus-seat-reservation/internal/lock"
	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/notify"
	"github.com/iliyamo/bus-seat-reservation/internal/repository"
	"github.com/iliyamo/bus-seat-reservation/internal/repository/memstore"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recorder struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
}

func (r *recorder) Notify(_ context.Context, m notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
	return r.err
}

func (r *recorder) all() []notify.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Message(nil), r.msgs...)
}

type env struct {
	store *memstore.Store
	locks *lock.Table
	clock *fakeClock
	notes *recorder
	fin   *Finalizer
	svc   *ReservationService
	pool  *model.Pool
}

type envOption func(*env, *Deps)

func newEnv(t *testing.T, seats int, price int64, opts ...envOption) *env {
	t.Helper()
	e := &env{store: memstore.New(), locks: lock.NewTable(), clock: newClock(), notes: &recorder{}}
	e.pool = &model.Pool{Name: "Bus 12", Origin: "Tehran", Destination: "Isfahan",
		StartsAt: e.clock.Now().Add(48 * time.Hour), PricePerSeatCents: price, SeatCount: seats}
	require.NoError(t, e.store.Pools().CreatePool(context.Background(), e.pool))

	d := Deps{
		Pools:        e.store.Pools(),
		Seats:        e.store.Seats(),
		Reservations: e.store.Reservations(),
		Accounts:     e.store.Users(),
		Bookings:     e.store.Bookings(),
		Locks:        e.locks,
	}
	for _, o := range opts {
		o(e, &d)
	}
	e.fin = NewFinalizer(d.Bookings, d.Pools, d.Accounts, e.notes,
		FinalizerOptions{Now: e.clock.Now, RetryInterval: time.Millisecond}, zap.NewNop())
	e.svc = NewReservationService(d, e.fin, Options{HoldTTL: 600 * time.Second, Now: e.clock.Now}, zap.NewNop())
	t.Cleanup(e.fin.Wait)
	return e
}

func (e *env) user(t *testing.T, email string, balance int64) uint64 {
	t.Helper()
	u := &model.User{Email: email, Name: email, BalanceCents: balance}
	require.NoError(t, e.store.Users().Create(context.Background(), u))
	return u.ID
}

func (e *env) seat(t *testing.T, n string) model.Seat {
	t.Helper()
	seats, err := e.store.Seats().GetSeats(context.Background(), e.pool.ID, []string{n})
	require.NoError(t, err)
	require.Len(t, seats, 1)
	return seats[0]
}

func (e *env) balance(t *testing.T, userID uint64) int64 {
	t.Helper()
	a, err := e.store.Users().GetAccount(context.Background(), userID)
	require.NoError(t, err)
	return a.BalanceCents
}

// grantAll is a Locker that never refuses, standing in for a lock table
// owned by another process.
type grantAll struct{}

func (grantAll) TryAcquireBatch(context.Context, uint64, []string, string) ([]string, bool) {
	return nil, true
}
func (grantAll) ReleaseBatch(context.Context, uint64, []string, string) {}
func (grantAll) Owner(context.Context, uint64, string) (string, bool) { return "", false }

// stealingSeats takes a seat for another holder right before the
// conditional write, simulating a writer the lock table cannot see.
type stealingSeats struct {
	repository.SeatStore
	store *memstore.Store
	seat  string
}

func (s *stealingSeats) ReserveSeats(ctx context.Context, poolID uint64, seats []string, id string) (int64, error) {
	other := "other-process"
	s.store.SetSeatStatus(poolID, s.seat, model.SeatReserved, &other)
	return s.SeatStore.ReserveSeats(ctx, poolID, seats, id)
}

type flakyBookings struct {
	repository.BookingStore
	mu    sync.Mutex
	fails []error
	calls int
}

func (f *flakyBookings) Finalize(ctx context.Context, p repository.FinalizeParams) error {
	f.mu.Lock()
	f.calls++
	var err error
	if len(f.fails) > 0 {
		err, f.fails = f.fails[0], f.fails[1:]
	}
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.BookingStore.Finalize(ctx, p)
}
