package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

func TestInClause(t *testing.T) {
	assert.Equal(t, "", inClause(0))
	assert.Equal(t, "?", inClause(1))
	assert.Equal(t, "?,?,?", inClause(3))
	assert.Equal(t, []interface{}{"r", uint64(1), "a", "b"}, seatArgs([]string{"a", "b"}, "r", uint64(1)))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(&mysql.MySQLError{Number: 1213}))
	assert.True(t, IsTransient(&mysql.MySQLError{Number: 1205}))
	assert.False(t, IsTransient(&mysql.MySQLError{Number: 1062}))
	assert.False(t, IsTransient(errors.New("boom")))
}

func TestPoolRepo_GetPool(t *testing.T) {
	db, mock := newMock(t)
	starts := time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(q("FROM pools WHERE id = ?")).WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "origin", "destination", "starts_at", "price_per_seat_cents", "seat_count", "status"}).
			AddRow(7, "Bus 7", "Tehran", "Shiraz", starts, 1500, 40, "published"))

	p, err := NewPoolRepo(db).GetPool(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), p.ID)
	assert.Equal(t, int64(1500), p.PricePerSeatCents)
	assert.True(t, p.IsOpen())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolRepo_GetPool_NotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("FROM pools")).WillReturnError(sql.ErrNoRows)
	_, err := NewPoolRepo(db).GetPool(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPoolRepo_CreatePool(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO pools")).WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectExec(q("INSERT INTO pool_seats (pool_id, seat_number, status) VALUES (?, ?, ?),(?, ?, ?),(?, ?, ?)")).
		WithArgs(9, "1", "available", 9, "2", "available", 9, "3", "available").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	p := &model.Pool{Name: "Bus", SeatCount: 3, PricePerSeatCents: 100}
	require.NoError(t, NewPoolRepo(db).CreatePool(context.Background(), p))
	assert.Equal(t, uint64(9), p.ID)
	assert.Equal(t, model.PoolStatusPublished, p.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func poolRows(id uint64, status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "origin", "destination", "starts_at", "price_per_seat_cents", "seat_count", "status"}).
		AddRow(id, "Bus", "Tehran", "Yazd", time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC), 100, 4, status)
}

func TestPoolRepo_PublishPool(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(q("UPDATE pools SET status = ? WHERE id = ? AND status = ?")).
		WithArgs("published", 3, "draft").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q("FROM pools WHERE id = ?")).WithArgs(3).WillReturnRows(poolRows(3, "published"))

	p, err := NewPoolRepo(db).PublishPool(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, p.IsOpen())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolRepo_PublishPool_NotDraft(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(q("UPDATE pools SET status")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("FROM pools WHERE id = ?")).WithArgs(3).WillReturnRows(poolRows(3, "finalized"))

	_, err := NewPoolRepo(db).PublishPool(context.Background(), 3)
	assert.ErrorIs(t, err, ErrPoolNotDraft)

	mock.ExpectExec(q("UPDATE pools SET status")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("FROM pools WHERE id = ?")).WillReturnError(sql.ErrNoRows)
	_, err = NewPoolRepo(db).PublishPool(context.Background(), 4)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolRepo_ListSeats(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("FROM pool_seats")).WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"pool_id", "seat_number", "status", "holder_reservation_id", "holder_booking_id"}).
			AddRow(1, "1", "available", nil, nil).
			AddRow(1, "2", "reserved", "res-1", nil).
			AddRow(1, "3", "booked", nil, "bk-1"))

	seats, err := NewPoolRepo(db).ListSeats(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, seats, 3)
	assert.Nil(t, seats[0].HolderReservationID)
	assert.True(t, seats[1].HeldBy("res-1"))
	assert.Equal(t, "bk-1", *seats[2].HolderBookingID)
}

func TestSeatRepo_ReserveSeats(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("(?s)"+q("SET status = 'reserved', holder_reservation_id = ?")+".*"+q("status = 'available' AND seat_number IN (?,?)")).
		WithArgs("res-1", 1, "1", "2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := NewSeatRepo(db).ReserveSeats(context.Background(), 1, []string{"1", "2"}, "res-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepo_ReleaseSeats_HolderChecked(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(q("status = 'reserved' AND holder_reservation_id = ?")).
		WithArgs(1, "res-1", "1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := NewSeatRepo(db).ReleaseSeats(context.Background(), 1, []string{"1"}, "res-1")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepo_EmptyInput(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSeatRepo(db)
	n, err := repo.ReserveSeats(context.Background(), 1, nil, "r")
	assert.NoError(t, err)
	assert.Zero(t, n)
	seats, err := repo.GetSeats(context.Background(), 1, nil)
	assert.NoError(t, err)
	assert.Empty(t, seats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func reservationRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "pool_id", "seat_numbers", "total_price_cents", "status", "expires_at", "created_at", "booking_id"})
}

func TestReservationRepo_CreateAndGet(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	res := &model.Reservation{ID: "res-1", UserID: 3, PoolID: 1, SeatNumbers: []string{"4", "5"},
		TotalPriceCents: 200, Status: model.ReservationPending, ExpiresAt: now.Add(10 * time.Minute), CreatedAt: now}

	mock.ExpectExec(q("INSERT INTO reservations")).
		WithArgs("res-1", 3, 1, `["4","5"]`, 200, "pending", sqlmock.AnyArg(), sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q("FROM reservations WHERE id = ?")).WithArgs("res-1").
		WillReturnRows(reservationRows().AddRow("res-1", 3, 1, `["4","5"]`, 200, "pending", res.ExpiresAt, now, nil))

	repo := NewReservationRepo(db)
	require.NoError(t, repo.Create(context.Background(), res))
	got, err := repo.GetByID(context.Background(), "res-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "5"}, got.SeatNumbers)
	assert.Equal(t, model.ReservationPending, got.Status)
	assert.Nil(t, got.BookingID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepo_GetByID_NotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("FROM reservations")).WillReturnError(sql.ErrNoRows)
	_, err := NewReservationRepo(db).GetByID(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReservationRepo_Cancel(t *testing.T) {
	db, mock := newMock(t)
	res := &model.Reservation{ID: "res-1", PoolID: 1, SeatNumbers: []string{"1", "2"}}
	mock.ExpectBegin()
	mock.ExpectExec(q("SET status = 'available', holder_reservation_id = NULL")).
		WithArgs(1, "res-1", "1", "2").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(q("UPDATE reservations SET status = ? WHERE id = ? AND status = 'pending'")).
		WithArgs("expired", "res-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	out, err := NewReservationRepo(db).Cancel(context.Background(), res, model.ReservationExpired)
	require.NoError(t, err)
	assert.Equal(t, CancelResult{SeatsReleased: 2, Transitioned: true}, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepo_Cancel_AlreadyTerminalRollsBack(t *testing.T) {
	db, mock := newMock(t)
	res := &model.Reservation{ID: "res-1", PoolID: 1, SeatNumbers: []string{"1"}}
	mock.ExpectBegin()
	mock.ExpectExec(q("UPDATE pool_seats")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q("UPDATE reservations")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	out, err := NewReservationRepo(db).Cancel(context.Background(), res, model.ReservationCancelled)
	require.NoError(t, err)
	assert.False(t, out.Transitioned)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepo_ListExpired(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(q("WHERE status = 'pending' AND expires_at <= ?")).WithArgs(now, 50).
		WillReturnRows(reservationRows().
			AddRow("a", 1, 1, `["1"]`, 100, "pending", now.Add(-time.Minute), now.Add(-11*time.Minute), nil).
			AddRow("b", 2, 1, `["2"]`, 100, "pending", now, now.Add(-10*time.Minute), nil))

	list, err := NewReservationRepo(db).ListExpired(context.Background(), now, 50)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func finalizeParams() FinalizeParams {
	bid := "bk-1"
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return FinalizeParams{
		Reservation: &model.Reservation{ID: "res-1", UserID: 3, PoolID: 1, SeatNumbers: []string{"1", "2"}, TotalPriceCents: 300},
		Booking: &model.Booking{ID: bid, ReservationID: "res-1", UserID: 3, PoolID: 1, SeatNumbers: []string{"1", "2"},
			TotalPriceCents: 300, Status: model.BookingStatusActive, CreatedAt: now},
		Passengers: []model.Passenger{{ID: "p-1", BookingID: bid, SeatNumber: "1", Name: "Ali", CreatedAt: now}},
		Transaction: &model.Transaction{ID: "tx-1", UserID: 3, BookingID: &bid, AmountCents: 300,
			Kind: model.TransactionDebit, Status: model.TransactionHeld, Description: "booking", CreatedAt: now},
		ConfirmedAt: now,
	}
}

func TestBookingRepo_Finalize(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(q("UPDATE reservations SET status = 'confirmed', booking_id = ?")).
		WithArgs("bk-1", "res-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("SET status = 'booked'")).
		WithArgs("bk-1", 1, "res-1", "1", "2").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(q("UPDATE users SET balance_cents = balance_cents - ?")).
		WithArgs(300, 3, 300).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO bookings")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO passengers")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO transactions")).
		WithArgs("tx-1", 3, "bk-1", 300, "debit", "held", "booking", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, NewBookingRepo(db).Finalize(context.Background(), finalizeParams()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepo_Finalize_Guards(t *testing.T) {
	cases := []struct {
		name   string
		setup  func(sqlmock.Sqlmock)
		expect error
	}{
		{"state changed", func(m sqlmock.Sqlmock) {
			m.ExpectExec(q("UPDATE reservations")).WillReturnResult(sqlmock.NewResult(0, 0))
		}, ErrStateChanged},
		{"seat conflict", func(m sqlmock.Sqlmock) {
			m.ExpectExec(q("UPDATE reservations")).WillReturnResult(sqlmock.NewResult(0, 1))
			m.ExpectExec(q("UPDATE pool_seats")).WillReturnResult(sqlmock.NewResult(0, 1))
		}, ErrSeatConflict},
		{"insufficient balance", func(m sqlmock.Sqlmock) {
			m.ExpectExec(q("UPDATE reservations")).WillReturnResult(sqlmock.NewResult(0, 1))
			m.ExpectExec(q("UPDATE pool_seats")).WillReturnResult(sqlmock.NewResult(0, 2))
			m.ExpectExec(q("UPDATE users")).WillReturnResult(sqlmock.NewResult(0, 0))
		}, ErrInsufficientBalance},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectBegin()
			tc.setup(mock)
			mock.ExpectRollback()

			err := NewBookingRepo(db).Finalize(context.Background(), finalizeParams())
			assert.ErrorIs(t, err, tc.expect)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepo_Create(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(q("INSERT INTO users")).
		WithArgs("a@b.io", "A", "", "hash", "CUSTOMER", 100000).
		WillReturnResult(sqlmock.NewResult(5, 1))

	u := &model.User{Email: "  A@B.io ", Name: "A", PasswordHash: "hash", BalanceCents: 100000}
	require.NoError(t, NewUserRepo(db).Create(context.Background(), u))
	assert.Equal(t, uint64(5), u.ID)
	assert.Equal(t, "a@b.io", u.Email)
}

func TestUserRepo_Create_Duplicate(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(q("INSERT INTO users")).WillReturnError(&mysql.MySQLError{Number: 1062, Message: "dup"})
	err := NewUserRepo(db).Create(context.Background(), &model.User{Email: "a@b.io"})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestUserRepo_GetAccount(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("SELECT id, email, name, balance_cents FROM users")).WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "balance_cents"}).AddRow(5, "a@b.io", "A", 700))
	a, err := NewUserRepo(db).GetAccount(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(700), a.BalanceCents)

	mock.ExpectQuery(q("FROM users")).WillReturnError(sql.ErrNoRows)
	_, err = NewUserRepo(db).GetAccount(context.Background(), 6)
	assert.ErrorIs(t, err, ErrNotFound)
}
