// Package service holds the reservation core: seat selection, hold
// confirmation and cancellation, and the booking finalizer.  The
// persistent store is the authority for every decision; the advisory
// lock table only reduces contention in front of it.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/bus-seat-reservation/internal/lock"
	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/repository"
)

// DefaultHoldTTL is how long a pending reservation keeps its seats.
const DefaultHoldTTL = 600 * time.Second

// Deps groups the stores the orchestrator works against.
type Deps struct {
	Pools        repository.PoolRegistry
	Seats        repository.SeatStore
	Reservations repository.ReservationStore
	Accounts     repository.AccountStore
	Bookings     repository.BookingStore
	Locks        lock.Locker
}

// Options tunes the orchestrator.  Zero values pick the defaults.
type Options struct {
	HoldTTL time.Duration
	Now     func() time.Time
	NewID   func() string
}

func (o Options) withDefaults() Options {
	if o.HoldTTL <= 0 {
		o.HoldTTL = DefaultHoldTTL
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// SelectRequest asks for a hold on seats of one pool.
type SelectRequest struct {
	PoolID      uint64
	UserID      uint64
	SeatNumbers []string
}

// PassengerInput describes the traveller for one seat of a confirmation.
type PassengerInput struct {
	SeatNumber string
	Name       string
	Email      string
	Mobile     string
}

// ConfirmRequest turns a pending reservation into a booking.
type ConfirmRequest struct {
	ReservationID string
	UserID        uint64
	Passengers    []PassengerInput
}

// ReservationService orchestrates select, confirm and cancel.
type ReservationService struct {
	pools        repository.PoolRegistry
	seats        repository.SeatStore
	reservations repository.ReservationStore
	accounts     repository.AccountStore
	bookings     repository.BookingStore
	locks        lock.Locker
	finalizer    *Finalizer
	log          *zap.Logger
	ttl          time.Duration
	now          func() time.Time
	newID        func() string
}

// NewReservationService wires the orchestrator.
func NewReservationService(d Deps, f *Finalizer, opts Options, log *zap.Logger) *ReservationService {
	opts = opts.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &ReservationService{
		pools:        d.Pools,
		seats:        d.Seats,
		reservations: d.Reservations,
		accounts:     d.Accounts,
		bookings:     d.Bookings,
		locks:        d.Locks,
		finalizer:    f,
		log:          log.Named("reservations"),
		ttl:          opts.HoldTTL,
		now:          opts.Now,
		newID:        opts.NewID,
	}
}

// HoldTTL returns the configured hold duration.
func (s *ReservationService) HoldTTL() time.Duration { return s.ttl }

// Select places a hold on the requested seats.  On any failure no seat
// is left reserved and no lock is left held by the attempt.
func (s *ReservationService) Select(ctx context.Context, req SelectRequest) (*model.Reservation, error) {
	seats, err := normalizeSeats(req.SeatNumbers)
	if err != nil {
		return nil, err
	}
	pool, err := s.pools.GetPool(ctx, req.PoolID)
	if err != nil {
		return nil, notFound(err, "pool %d", req.PoolID)
	}
	if !pool.IsOpen() {
		return nil, fmt.Errorf("%w: pool %d is %s", ErrInvalidState, pool.ID, pool.Status)
	}

	current, err := s.currentSeats(ctx, pool.ID, seats)
	if err != nil {
		return nil, err
	}
	if taken := unavailable(current); len(taken) > 0 {
		return nil, &ConflictError{Seats: taken}
	}

	id := s.newID()
	if conflicts, ok := s.acquire(ctx, pool.ID, seats, id); !ok {
		return nil, &ConflictError{Seats: conflicts}
	}

	total := pool.PricePerSeatCents * int64(len(seats))
	n, err := s.seats.ReserveSeats(ctx, pool.ID, seats, id)
	if err != nil {
		s.undoSelect(ctx, pool.ID, seats, id)
		return nil, fmt.Errorf("reserve seats: %w", err)
	}
	if n != int64(len(seats)) {
		cause := &InconsistencyError{Op: "reserve seats", Expected: int64(len(seats)), Actual: n}
		s.undoSelect(ctx, pool.ID, seats, id)
		taken := s.takenBy(ctx, pool.ID, seats, id)
		s.log.Warn("seat reservation lost a race",
			zap.Uint64("pool_id", pool.ID), zap.Strings("seats", seats), zap.Strings("taken", taken), zap.Error(cause))
		return nil, &ConflictError{Seats: taken, Cause: cause}
	}

	now := s.now()
	res := &model.Reservation{
		ID:              id,
		UserID:          req.UserID,
		PoolID:          pool.ID,
		SeatNumbers:     seats,
		TotalPriceCents: total,
		Status:          model.ReservationPending,
		ExpiresAt:       now.Add(s.ttl),
		CreatedAt:       now,
	}
	if err := s.reservations.Create(ctx, res); err != nil {
		s.undoSelect(ctx, pool.ID, seats, id)
		return nil, fmt.Errorf("create reservation: %w", err)
	}
	s.log.Info("seats held",
		zap.String("reservation_id", id), zap.Uint64("pool_id", pool.ID),
		zap.Uint64("user_id", req.UserID), zap.Strings("seats", seats))
	return res, nil
}

// acquire takes the advisory locks for a select.  A lock whose owner
// reservation already ended (for example expired by a reaper in another
// process) is stale: it is dropped and the batch retried.
func (s *ReservationService) acquire(ctx context.Context, poolID uint64, seats []string, id string) ([]string, bool) {
	conflicts, ok := s.locks.TryAcquireBatch(ctx, poolID, seats, id)
	for attempt := 0; !ok && attempt < len(seats); attempt++ {
		if !s.clearStaleLocks(ctx, poolID, conflicts) {
			break
		}
		conflicts, ok = s.locks.TryAcquireBatch(ctx, poolID, seats, id)
	}
	return conflicts, ok
}

func (s *ReservationService) clearStaleLocks(ctx context.Context, poolID uint64, seats []string) bool {
	cleared := false
	for _, seat := range seats {
		owner, held := s.locks.Owner(ctx, poolID, seat)
		if !held {
			cleared = true
			continue
		}
		res, err := s.reservations.GetByID(ctx, owner)
		if err != nil {
			// not persisted yet: a select in flight
			continue
		}
		switch {
		case res.Status.IsTerminal():
			s.locks.ReleaseBatch(ctx, poolID, []string{seat}, owner)
			cleared = true
		case res.ExpiredAt(s.now()):
			if _, err := s.Expire(ctx, res); err == nil {
				cleared = true
			}
		}
	}
	return cleared
}

// undoSelect reverts whatever a failed select transitioned and drops its
// locks.  The holder check keeps seats owned by anyone else untouched.
func (s *ReservationService) undoSelect(ctx context.Context, poolID uint64, seats []string, id string) {
	if _, err := s.seats.ReleaseSeats(ctx, poolID, seats, id); err != nil {
		s.log.Error("select rollback failed", zap.String("reservation_id", id), zap.Error(err))
	}
	s.locks.ReleaseBatch(ctx, poolID, seats, id)
}

// takenBy lists the requested seats that are not available after a
// rollback.  It falls back to every seat when the state cannot be read.
func (s *ReservationService) takenBy(ctx context.Context, poolID uint64, seats []string, id string) []string {
	current, err := s.seats.GetSeats(ctx, poolID, seats)
	if err != nil {
		return seats
	}
	taken := unavailable(current)
	if len(taken) == 0 {
		return seats
	}
	return taken
}

// Confirm buys the seats of a pending reservation.
func (s *ReservationService) Confirm(ctx context.Context, req ConfirmRequest) (*model.Booking, error) {
	res, err := s.owned(ctx, req.ReservationID, req.UserID)
	if err != nil {
		return nil, err
	}
	if res.Status != model.ReservationPending {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, res.Status)
	}
	if res.ExpiredAt(s.now()) {
		s.cancel(ctx, res, model.ReservationExpired)
		return nil, ErrExpired
	}
	if err := validatePassengers(res, req.Passengers); err != nil {
		return nil, err
	}

	acct, err := s.accounts.GetAccount(ctx, res.UserID)
	if err != nil {
		return nil, notFound(err, "account %d", res.UserID)
	}
	if acct.BalanceCents < res.TotalPriceCents {
		s.cancel(ctx, res, model.ReservationCancelled)
		return nil, &InsufficientFundsError{RequiredCents: res.TotalPriceCents, AvailableCents: acct.BalanceCents}
	}

	booking, err := s.finalizer.Finalize(ctx, res, req.Passengers)
	switch {
	case err == nil:
		s.locks.ReleaseBatch(ctx, res.PoolID, res.SeatNumbers, res.ID)
		return booking, nil
	case errors.Is(err, repository.ErrStateChanged):
		return nil, fmt.Errorf("%w: changed concurrently", ErrInvalidState)
	case errors.Is(err, repository.ErrSeatConflict):
		held, _ := s.seats.GetSeats(ctx, res.PoolID, res.SeatNumbers)
		lost := notHeldBy(res, held)
		cause := &InconsistencyError{Op: "book seats", Expected: int64(len(res.SeatNumbers)), Actual: int64(len(res.SeatNumbers) - len(lost))}
		s.log.Error("confirm found seats no longer held",
			zap.String("reservation_id", res.ID), zap.Strings("lost", lost), zap.Error(cause))
		s.cancel(ctx, res, model.ReservationCancelled)
		return nil, &ConflictError{Seats: lost, Cause: cause}
	case errors.Is(err, repository.ErrInsufficientBalance):
		s.cancel(ctx, res, model.ReservationCancelled)
		available := int64(0)
		if a, aerr := s.accounts.GetAccount(ctx, res.UserID); aerr == nil {
			available = a.BalanceCents
		}
		return nil, &InsufficientFundsError{RequiredCents: res.TotalPriceCents, AvailableCents: available}
	default:
		return nil, fmt.Errorf("finalize booking: %w", err)
	}
}

// Cancel ends a pending reservation on behalf of its owner.
func (s *ReservationService) Cancel(ctx context.Context, reservationID string, userID uint64) (*model.Reservation, error) {
	res, err := s.owned(ctx, reservationID, userID)
	if err != nil {
		return nil, err
	}
	if res.Status != model.ReservationPending {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, res.Status)
	}
	if res.ExpiredAt(s.now()) {
		s.cancel(ctx, res, model.ReservationExpired)
		return nil, ErrExpired
	}
	out, err := s.cancel(ctx, res, model.ReservationCancelled)
	if err != nil {
		return nil, err
	}
	if !out.Transitioned {
		return nil, fmt.Errorf("%w: changed concurrently", ErrInvalidState)
	}
	res.Status = model.ReservationCancelled
	return res, nil
}

// Expire cancels an expired hold with status expired.  It reports
// whether this call performed the transition; false means another actor
// finished the reservation first, which is not an error.
func (s *ReservationService) Expire(ctx context.Context, res *model.Reservation) (bool, error) {
	out, err := s.cancel(ctx, res, model.ReservationExpired)
	if err != nil {
		return false, err
	}
	return out.Transitioned, nil
}

// ExpiredReservations lists pending holds whose TTL elapsed.
func (s *ReservationService) ExpiredReservations(ctx context.Context, limit int) ([]model.Reservation, error) {
	return s.reservations.ListExpired(ctx, s.now(), limit)
}

// cancel releases the seats still held by res and ends it with status.
// Locks for the holder are dropped whatever the store reported.
func (s *ReservationService) cancel(ctx context.Context, res *model.Reservation, status model.ReservationStatus) (repository.CancelResult, error) {
	out, err := s.reservations.Cancel(ctx, res, status)
	s.locks.ReleaseBatch(ctx, res.PoolID, res.SeatNumbers, res.ID)
	if err != nil {
		s.log.Error("cancel failed", zap.String("reservation_id", res.ID), zap.String("to", string(status)), zap.Error(err))
		return out, fmt.Errorf("cancel reservation: %w", err)
	}
	if out.Transitioned {
		s.log.Info("reservation ended",
			zap.String("reservation_id", res.ID), zap.String("status", string(status)),
			zap.Int64("seats_released", out.SeatsReleased))
	}
	return out, nil
}

// Get returns a reservation owned by userID, expiring it first when its
// TTL has elapsed.
func (s *ReservationService) Get(ctx context.Context, reservationID string, userID uint64) (*model.Reservation, error) {
	res, err := s.owned(ctx, reservationID, userID)
	if err != nil {
		return nil, err
	}
	s.lazyExpire(ctx, res)
	return res, nil
}

// ListReservations returns the user's reservations, newest first.
func (s *ReservationService) ListReservations(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	list, err := s.reservations.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range list {
		s.lazyExpire(ctx, &list[i])
	}
	return list, nil
}

// ListBookings returns the user's bookings, newest first.
func (s *ReservationService) ListBookings(ctx context.Context, userID uint64) ([]model.Booking, error) {
	return s.bookings.ListByUser(ctx, userID)
}

// Pool returns one pool by ID.
func (s *ReservationService) Pool(ctx context.Context, poolID uint64) (*model.Pool, error) {
	pool, err := s.pools.GetPool(ctx, poolID)
	if err != nil {
		return nil, notFound(err, "pool %d", poolID)
	}
	return pool, nil
}

// SeatMap returns the pool and all of its seats.  Seats held by expired
// reservations are reclaimed before the map is read.
func (s *ReservationService) SeatMap(ctx context.Context, poolID uint64) (*model.Pool, []model.Seat, error) {
	pool, err := s.pools.GetPool(ctx, poolID)
	if err != nil {
		return nil, nil, notFound(err, "pool %d", poolID)
	}
	seats, err := s.pools.ListSeats(ctx, poolID)
	if err != nil {
		return nil, nil, err
	}
	if s.reclaimExpired(ctx, seats) {
		if seats, err = s.pools.ListSeats(ctx, poolID); err != nil {
			return nil, nil, err
		}
	}
	return pool, seats, nil
}

func (s *ReservationService) lazyExpire(ctx context.Context, res *model.Reservation) {
	if res.Status != model.ReservationPending || !res.ExpiredAt(s.now()) {
		return
	}
	if ok, err := s.Expire(ctx, res); err == nil && ok {
		res.Status = model.ReservationExpired
	} else if err == nil {
		if cur, gerr := s.reservations.GetByID(ctx, res.ID); gerr == nil {
			*res = *cur
		}
	}
}

func (s *ReservationService) owned(ctx context.Context, reservationID string, userID uint64) (*model.Reservation, error) {
	if strings.TrimSpace(reservationID) == "" {
		return nil, validation("reservation id is required")
	}
	res, err := s.reservations.GetByID(ctx, reservationID)
	if err != nil {
		return nil, notFound(err, "reservation %s", reservationID)
	}
	if res.UserID != userID {
		return nil, ErrForbidden
	}
	return res, nil
}

// currentSeats loads the requested seats, failing with ErrNotFound when
// any is missing.  Seats held by expired reservations are reclaimed and
// read again.
func (s *ReservationService) currentSeats(ctx context.Context, poolID uint64, seats []string) ([]model.Seat, error) {
	current, err := s.seats.GetSeats(ctx, poolID, seats)
	if err != nil {
		return nil, err
	}
	if len(current) != len(seats) {
		found := make(map[string]bool, len(current))
		for _, st := range current {
			found[st.SeatNumber] = true
		}
		var missing []string
		for _, n := range seats {
			if !found[n] {
				missing = append(missing, n)
			}
		}
		return nil, fmt.Errorf("%w: seats %s in pool %d", ErrNotFound, strings.Join(missing, ","), poolID)
	}
	if s.reclaimExpired(ctx, current) {
		return s.seats.GetSeats(ctx, poolID, seats)
	}
	return current, nil
}

// reclaimExpired expires the pending holders of reserved seats whose TTL
// elapsed.  It reports whether anything was released.
func (s *ReservationService) reclaimExpired(ctx context.Context, seats []model.Seat) bool {
	holders := map[string]bool{}
	for _, st := range seats {
		if st.Status == model.SeatReserved && st.HolderReservationID != nil {
			holders[*st.HolderReservationID] = true
		}
	}
	now := s.now()
	reclaimed := false
	for id := range holders {
		res, err := s.reservations.GetByID(ctx, id)
		if err != nil || res.Status != model.ReservationPending || !res.ExpiredAt(now) {
			continue
		}
		if ok, err := s.Expire(ctx, res); err == nil && ok {
			reclaimed = true
		}
	}
	return reclaimed
}

func normalizeSeats(in []string) ([]string, error) {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, n := range in {
		n = strings.TrimSpace(n)
		if n == "" {
			return nil, validation("seat number must not be blank")
		}
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil, validation("at least one seat is required")
	}
	sort.Strings(out)
	return out, nil
}

func unavailable(seats []model.Seat) []string {
	var out []string
	for _, st := range seats {
		if st.Status != model.SeatAvailable {
			out = append(out, st.SeatNumber)
		}
	}
	sort.Strings(out)
	return out
}

func notHeldBy(res *model.Reservation, seats []model.Seat) []string {
	held := map[string]bool{}
	for _, st := range seats {
		if st.HeldBy(res.ID) {
			held[st.SeatNumber] = true
		}
	}
	var lost []string
	for _, n := range res.SeatNumbers {
		if !held[n] {
			lost = append(lost, n)
		}
	}
	if len(lost) == 0 {
		return append([]string(nil), res.SeatNumbers...)
	}
	return lost
}

func validatePassengers(res *model.Reservation, ps []PassengerInput) error {
	if len(ps) == 0 {
		return nil
	}
	inRes := make(map[string]bool, len(res.SeatNumbers))
	for _, n := range res.SeatNumbers {
		inRes[n] = true
	}
	seen := map[string]bool{}
	for _, p := range ps {
		seat := strings.TrimSpace(p.SeatNumber)
		if !inRes[seat] {
			return validation("passenger seat %q is not part of the reservation", p.SeatNumber)
		}
		if seen[seat] {
			return validation("seat %q has more than one passenger", seat)
		}
		seen[seat] = true
		if strings.TrimSpace(p.Name) == "" {
			return validation("passenger name is required for seat %q", seat)
		}
	}
	return nil
}

func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
	}
	return err
}
