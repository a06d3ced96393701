package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/repository"
)

func seed(t *testing.T) (*Store, *model.Pool, *model.User) {
	t.Helper()
	s := New()
	ctx := context.Background()
	p := &model.Pool{Name: "Bus", SeatCount: 4, PricePerSeatCents: 100}
	require.NoError(t, s.Pools().CreatePool(ctx, p))
	u := &model.User{Email: "a@b.io", BalanceCents: 1000}
	require.NoError(t, s.Users().Create(ctx, u))
	return s, p, u
}

func TestSeatsReserveAndRelease(t *testing.T) {
	s, p, _ := seed(t)
	ctx := context.Background()

	n, err := s.Seats().ReserveSeats(ctx, p.ID, []string{"1", "2", "99"}, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, _ = s.Seats().ReserveSeats(ctx, p.ID, []string{"2", "3"}, "r2")
	assert.Equal(t, int64(1), n)

	n, _ = s.Seats().ReleaseSeats(ctx, p.ID, []string{"1", "2", "3"}, "r1")
	assert.Equal(t, int64(2), n, "seat 3 belongs to r2")

	seats, _ := s.Pools().ListSeats(ctx, p.ID)
	require.Len(t, seats, 4)
	assert.Equal(t, model.SeatAvailable, seats[0].Status)
	assert.True(t, seats[2].HeldBy("r2"))
}

func TestCancelOnlyFromPending(t *testing.T) {
	s, p, u := seed(t)
	ctx := context.Background()
	res := &model.Reservation{ID: "r1", UserID: u.ID, PoolID: p.ID, SeatNumbers: []string{"1"}, Status: model.ReservationPending}
	require.NoError(t, s.Reservations().Create(ctx, res))
	_, _ = s.Seats().ReserveSeats(ctx, p.ID, res.SeatNumbers, res.ID)

	out, err := s.Reservations().Cancel(ctx, res, model.ReservationExpired)
	require.NoError(t, err)
	assert.Equal(t, repository.CancelResult{SeatsReleased: 1, Transitioned: true}, out)

	out, err = s.Reservations().Cancel(ctx, res, model.ReservationCancelled)
	require.NoError(t, err)
	assert.False(t, out.Transitioned)
	got, _ := s.Reservations().GetByID(ctx, "r1")
	assert.Equal(t, model.ReservationExpired, got.Status)
}

func TestFinalizeAllOrNothing(t *testing.T) {
	s, p, u := seed(t)
	ctx := context.Background()
	res := &model.Reservation{ID: "r1", UserID: u.ID, PoolID: p.ID, SeatNumbers: []string{"1", "2"},
		TotalPriceCents: 2000, Status: model.ReservationPending}
	require.NoError(t, s.Reservations().Create(ctx, res))
	_, _ = s.Seats().ReserveSeats(ctx, p.ID, res.SeatNumbers, res.ID)

	params := repository.FinalizeParams{
		Reservation: res,
		Booking:     &model.Booking{ID: "b1", ReservationID: "r1", UserID: u.ID, PoolID: p.ID, SeatNumbers: res.SeatNumbers, TotalPriceCents: 2000},
	}
	err := s.Bookings().Finalize(ctx, params)
	assert.ErrorIs(t, err, repository.ErrInsufficientBalance)
	seats, _ := s.Seats().GetSeats(ctx, p.ID, res.SeatNumbers)
	for _, st := range seats {
		assert.True(t, st.HeldBy("r1"))
	}

	params.Booking.TotalPriceCents = 200
	require.NoError(t, s.Bookings().Finalize(ctx, params))
	acct, _ := s.Users().GetAccount(ctx, u.ID)
	assert.Equal(t, int64(800), acct.BalanceCents)
	got, _ := s.Reservations().GetByID(ctx, "r1")
	assert.Equal(t, model.ReservationConfirmed, got.Status)
	require.NotNil(t, got.BookingID)
	assert.Equal(t, "b1", *got.BookingID)

	assert.ErrorIs(t, s.Bookings().Finalize(ctx, params), repository.ErrStateChanged)
}

func TestListExpired(t *testing.T) {
	s, p, u := seed(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, d := range []time.Duration{-2 * time.Minute, -time.Minute, time.Minute} {
		_ = s.Reservations().Create(ctx, &model.Reservation{ID: string(rune('a' + i)), UserID: u.ID, PoolID: p.ID,
			Status: model.ReservationPending, ExpiresAt: now.Add(d)})
	}
	list, err := s.Reservations().ListExpired(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)

	list, _ = s.Reservations().ListExpired(ctx, now, 1)
	assert.Len(t, list, 1)
}

func TestUsers(t *testing.T) {
	s, _, _ := seed(t)
	ctx := context.Background()
	assert.ErrorIs(t, s.Users().Create(ctx, &model.User{Email: " A@B.io"}), repository.ErrEmailExists)
	_, err := s.Users().GetByEmail(ctx, "none@b.io")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	u, err := s.Users().GetByEmail(ctx, "A@b.io")
	require.NoError(t, err)
	assert.Equal(t, model.RoleCustomer, u.Role)
}

func TestPublishPool(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := &model.Pool{Name: "Bus", SeatCount: 1, PricePerSeatCents: 100, Status: model.PoolStatusDraft}
	require.NoError(t, s.Pools().CreatePool(ctx, p))

	got, err := s.Pools().PublishPool(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PoolStatusPublished, got.Status)

	_, err = s.Pools().PublishPool(ctx, p.ID)
	assert.ErrorIs(t, err, repository.ErrPoolNotDraft)
	_, err = s.Pools().PublishPool(ctx, p.ID+1)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
