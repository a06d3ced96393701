package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// ReservationRepo stores reservations.  The seat set is kept as a JSON
// array on the row; seat ownership itself lives on pool_seats.  All
// timestamps are written in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, user_id, pool_id, seat_numbers, total_price_cents, status, expires_at, created_at, booking_id`

// Create inserts a new reservation row.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	seats, err := encodeSeats(res.SeatNumbers)
	if err != nil {
		return err
	}
	const q = `INSERT INTO reservations (` + reservationColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, q,
		res.ID, res.UserID, res.PoolID, seats, res.TotalPriceCents, string(res.Status),
		res.ExpiresAt.UTC(), res.CreatedAt.UTC(), nullString(res.BookingID))
	return err
}

// GetByID fetches a reservation by id.
func (r *ReservationRepo) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ? LIMIT 1`
	res, err := scanReservation(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return res, err
}

// Cancel releases the seats res still holds and moves it out of pending
// in one transaction.  When the reservation is no longer pending nothing
// is applied and a zero result is returned.
func (r *ReservationRepo) Cancel(ctx context.Context, res *model.Reservation, status model.ReservationStatus) (CancelResult, error) {
	var out CancelResult
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		released, err := releaseSeats(ctx, tx, res.PoolID, res.SeatNumbers, res.ID)
		if err != nil {
			return err
		}
		const q = `UPDATE reservations SET status = ? WHERE id = ? AND status = 'pending'`
		upd, err := tx.ExecContext(ctx, q, string(status), res.ID)
		if err != nil {
			return err
		}
		n, err := upd.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errNoTransition
		}
		out = CancelResult{SeatsReleased: released, Transitioned: true}
		return nil
	})
	if errors.Is(err, errNoTransition) {
		return CancelResult{}, nil
	}
	return out, err
}

var errNoTransition = errors.New("no transition")

// ListExpired returns up to limit pending reservations whose TTL has
// elapsed at now, oldest first.
func (r *ReservationRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + reservationColumns + `
	           FROM reservations
	           WHERE status = 'pending' AND expires_at <= ?
	           ORDER BY expires_at
	           LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReservations(rows)
}

// ListByUser returns the user's reservations, newest first.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + `
	           FROM reservations
	           WHERE user_id = ?
	           ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReservations(rows)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanReservation(row scanner) (*model.Reservation, error) {
	var (
		res       model.Reservation
		seats     []byte
		status    string
		bookingID sql.NullString
	)
	if err := row.Scan(&res.ID, &res.UserID, &res.PoolID, &seats, &res.TotalPriceCents,
		&status, &res.ExpiresAt, &res.CreatedAt, &bookingID); err != nil {
		return nil, err
	}
	var err error
	if res.SeatNumbers, err = decodeSeats(seats); err != nil {
		return nil, err
	}
	res.Status = model.ReservationStatus(status)
	res.BookingID = stringPtr(bookingID)
	return &res, nil
}

func scanReservations(rows *sql.Rows) ([]model.Reservation, error) {
	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}
