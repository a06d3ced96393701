package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/notify"
	"github.com/iliyamo/bus-seat-reservation/internal/repository"
)

// FinalizerOptions tunes the finalizer.  Zero values pick the defaults.
type FinalizerOptions struct {
	TransactionStatus model.TransactionStatus // held (default) or settled
	MaxTries          uint                    // attempts on transient storage errors
	RetryInterval     time.Duration           // first backoff interval
	NotifyTimeout     time.Duration
	Now               func() time.Time
	NewID             func() string
}

// Finalizer writes the durable side effects of a purchase and sends the
// confirmation.  The write is a single BookingStore.Finalize call, so a
// booked seat never exists without its booking.
type Finalizer struct {
	bookings repository.BookingStore
	pools    repository.PoolRegistry
	accounts repository.AccountStore
	notifier notify.Notifier
	log      *zap.Logger
	opts     FinalizerOptions
	wg       sync.WaitGroup
}

// NewFinalizer builds a Finalizer.  A nil notifier disables notifications.
func NewFinalizer(bookings repository.BookingStore, pools repository.PoolRegistry, accounts repository.AccountStore,
	notifier notify.Notifier, opts FinalizerOptions, log *zap.Logger) *Finalizer {
	if opts.TransactionStatus == "" {
		opts.TransactionStatus = model.TransactionHeld
	}
	if opts.MaxTries == 0 {
		opts.MaxTries = 3
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 50 * time.Millisecond
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Finalizer{
		bookings: bookings,
		pools:    pools,
		accounts: accounts,
		notifier: notifier,
		log:      log.Named("finalizer"),
		opts:     opts,
	}
}

// Finalize books the reservation's seats.  Guard failures come back as
// the repository sentinels; deadlocks and lock wait timeouts are retried.
func (f *Finalizer) Finalize(ctx context.Context, res *model.Reservation, passengers []PassengerInput) (*model.Booking, error) {
	now := f.opts.Now()
	bookingID := f.opts.NewID()
	booking := &model.Booking{
		ID:              bookingID,
		ReservationID:   res.ID,
		UserID:          res.UserID,
		PoolID:          res.PoolID,
		SeatNumbers:     append([]string(nil), res.SeatNumbers...),
		TotalPriceCents: res.TotalPriceCents,
		Status:          model.BookingStatusActive,
		CreatedAt:       now,
	}
	params := repository.FinalizeParams{
		Reservation: res,
		Booking:     booking,
		Transaction: &model.Transaction{
			ID:          f.opts.NewID(),
			UserID:      res.UserID,
			BookingID:   &bookingID,
			AmountCents: res.TotalPriceCents,
			Kind:        model.TransactionDebit,
			Status:      f.opts.TransactionStatus,
			Description: fmt.Sprintf("booking %s seats %s", bookingID, strings.Join(res.SeatNumbers, ",")),
			CreatedAt:   now,
		},
		ConfirmedAt: now,
	}
	for _, p := range passengers {
		params.Passengers = append(params.Passengers, model.Passenger{
			ID:         f.opts.NewID(),
			BookingID:  bookingID,
			SeatNumber: strings.TrimSpace(p.SeatNumber),
			Name:       strings.TrimSpace(p.Name),
			Email:      strings.TrimSpace(p.Email),
			Mobile:     strings.TrimSpace(p.Mobile),
			CreatedAt:  now,
		})
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = f.opts.RetryInterval
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := f.bookings.Finalize(ctx, params)
		if err == nil {
			return struct{}{}, nil
		}
		if repository.IsTransient(err) {
			f.log.Warn("finalize retry", zap.String("reservation_id", res.ID), zap.Error(err))
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(f.opts.MaxTries))
	if err != nil {
		return nil, err
	}

	f.log.Info("booking finalized",
		zap.String("booking_id", bookingID), zap.String("reservation_id", res.ID),
		zap.Int64("total_cents", booking.TotalPriceCents))
	f.notifyAsync(booking, params.Passengers)
	return booking, nil
}

// Wait blocks until in-flight notifications finish.
func (f *Finalizer) Wait() { f.wg.Wait() }

func (f *Finalizer) notifyAsync(b *model.Booking, passengers []model.Passenger) {
	if f.notifier == nil {
		return
	}
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				f.log.Error("notifier panicked", zap.String("booking_id", b.ID), zap.Any("panic", r))
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), f.opts.NotifyTimeout)
		defer cancel()

		acct, err := f.accounts.GetAccount(ctx, b.UserID)
		if err != nil {
			f.log.Warn("notification skipped, account lookup failed", zap.String("booking_id", b.ID), zap.Error(err))
			return
		}
		pool, err := f.pools.GetPool(ctx, b.PoolID)
		if err != nil {
			f.log.Warn("notification skipped, pool lookup failed", zap.String("booking_id", b.ID), zap.Error(err))
			return
		}
		msg := BookingMessage(acct, pool, b, passengers)
		if err := f.notifier.Notify(ctx, msg); err != nil {
			f.log.Warn("booking notification failed", zap.String("booking_id", b.ID), zap.Error(err))
		}
	}()
}

// BookingMessage renders the confirmation sent to the buyer.
func BookingMessage(acct *model.Account, pool *model.Pool, b *model.Booking, passengers []model.Passenger) notify.Message {
	var sb strings.Builder
	name := acct.Name
	if name == "" {
		name = acct.Email
	}
	fmt.Fprintf(&sb, "Hello %s,\n\nYour booking is confirmed.\n\n", name)
	fmt.Fprintf(&sb, "Ticket: %s\n", b.ID)
	fmt.Fprintf(&sb, "Trip: %s (%s to %s)\n", pool.Name, pool.Origin, pool.Destination)
	fmt.Fprintf(&sb, "Departure: %s UTC\n", pool.StartsAt.UTC().Format("2006-01-02 15:04"))
	fmt.Fprintf(&sb, "Seats: %s\n", strings.Join(b.SeatNumbers, ", "))
	fmt.Fprintf(&sb, "Total: %s\n", FormatCents(b.TotalPriceCents))
	if len(passengers) > 0 {
		sb.WriteString("\nPassengers:\n")
		for _, p := range passengers {
			fmt.Fprintf(&sb, "  seat %s: %s\n", p.SeatNumber, p.Name)
		}
	}
	return notify.Message{
		To:      acct.Email,
		Subject: "Booking confirmed: " + pool.Name,
		Body:    sb.String(),
	}
}

// FormatCents renders an amount as units.cents.
func FormatCents(c int64) string {
	sign := ""
	if c < 0 {
		sign, c = "-", -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}
