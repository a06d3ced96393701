package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// BookingRepo writes bookings and everything a purchase touches.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// Finalize performs the purchase as one transaction.  The guards run in
// a fixed order: reservation status, seat ownership, balance.  The first
// one that fails rolls the whole transaction back.
func (r *BookingRepo) Finalize(ctx context.Context, p FinalizeParams) error {
	res, b := p.Reservation, p.Booking
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		// 1. exactly-once guard
		const cas = `UPDATE reservations SET status = 'confirmed', booking_id = ?
		             WHERE id = ? AND status = 'pending'`
		n, err := affected(tx.ExecContext(ctx, cas, b.ID, res.ID))
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrStateChanged
		}

		// 2. seats must still be held by this reservation
		book := `UPDATE pool_seats
		         SET status = 'booked', holder_reservation_id = NULL, holder_booking_id = ?
		         WHERE pool_id = ? AND status = 'reserved' AND holder_reservation_id = ?
		           AND seat_number IN (` + inClause(len(res.SeatNumbers)) + `)`
		n, err = affected(tx.ExecContext(ctx, book, seatArgs(res.SeatNumbers, b.ID, res.PoolID, res.ID)...))
		if err != nil {
			return err
		}
		if n != int64(len(res.SeatNumbers)) {
			return ErrSeatConflict
		}

		// 3. conditional debit
		const debit = `UPDATE users SET balance_cents = balance_cents - ?
		               WHERE id = ? AND balance_cents >= ?`
		n, err = affected(tx.ExecContext(ctx, debit, b.TotalPriceCents, res.UserID, b.TotalPriceCents))
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrInsufficientBalance
		}

		// 4. records
		seats, err := encodeSeats(b.SeatNumbers)
		if err != nil {
			return err
		}
		const insBooking = `INSERT INTO bookings (id, reservation_id, user_id, pool_id, seat_numbers, total_price_cents, status, created_at)
		                    VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, insBooking, b.ID, b.ReservationID, b.UserID, b.PoolID, seats,
			b.TotalPriceCents, b.Status, b.CreatedAt.UTC()); err != nil {
			return err
		}
		const insPassenger = `INSERT INTO passengers (id, booking_id, seat_number, name, email, mobile, created_at)
		                      VALUES (?, ?, ?, ?, ?, ?, ?)`
		for _, ps := range p.Passengers {
			if _, err := tx.ExecContext(ctx, insPassenger, ps.ID, b.ID, ps.SeatNumber, ps.Name, ps.Email,
				ps.Mobile, ps.CreatedAt.UTC()); err != nil {
				return err
			}
		}
		if t := p.Transaction; t != nil {
			const insTx = `INSERT INTO transactions (id, user_id, booking_id, amount_cents, kind, status, description, created_at)
			               VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
			if _, err := tx.ExecContext(ctx, insTx, t.ID, t.UserID, nullString(t.BookingID), t.AmountCents,
				string(t.Kind), string(t.Status), t.Description, t.CreatedAt.UTC()); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListByUser returns the user's bookings, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	const q = `SELECT id, reservation_id, user_id, pool_id, seat_numbers, total_price_cents, status, created_at
	           FROM bookings
	           WHERE user_id = ?
	           ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		var (
			b     model.Booking
			seats []byte
		)
		if err := rows.Scan(&b.ID, &b.ReservationID, &b.UserID, &b.PoolID, &seats,
			&b.TotalPriceCents, &b.Status, &b.CreatedAt); err != nil {
			return nil, err
		}
		if b.SeatNumbers, err = decodeSeats(seats); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func affected(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
