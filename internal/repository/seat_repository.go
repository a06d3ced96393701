package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// SeatRepo applies conditional transitions to pool_seats.  Every update
// carries its precondition in the WHERE clause and reports the number
// of rows it changed, so concurrent writers never overwrite each other.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{db: db} }

// GetSeats returns the requested seats of a pool.  Unknown seat numbers
// are simply absent from the result.
func (r *SeatRepo) GetSeats(ctx context.Context, poolID uint64, seatNumbers []string) ([]model.Seat, error) {
	if len(seatNumbers) == 0 {
		return nil, nil
	}
	q := `SELECT pool_id, seat_number, status, holder_reservation_id, holder_booking_id
	      FROM pool_seats
	      WHERE pool_id = ? AND seat_number IN (` + inClause(len(seatNumbers)) + `)`
	rows, err := r.db.QueryContext(ctx, q, seatArgs(seatNumbers, poolID)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSeats(rows)
}

// ReserveSeats marks available seats as reserved by reservationID.
func (r *SeatRepo) ReserveSeats(ctx context.Context, poolID uint64, seatNumbers []string, reservationID string) (int64, error) {
	if len(seatNumbers) == 0 {
		return 0, nil
	}
	q := `UPDATE pool_seats
	      SET status = 'reserved', holder_reservation_id = ?
	      WHERE pool_id = ? AND status = 'available' AND seat_number IN (` + inClause(len(seatNumbers)) + `)`
	res, err := r.db.ExecContext(ctx, q, seatArgs(seatNumbers, reservationID, poolID)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReleaseSeats returns seats still reserved by reservationID to available.
func (r *SeatRepo) ReleaseSeats(ctx context.Context, poolID uint64, seatNumbers []string, reservationID string) (int64, error) {
	return releaseSeats(ctx, r.db, poolID, seatNumbers, reservationID)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func releaseSeats(ctx context.Context, db execer, poolID uint64, seatNumbers []string, reservationID string) (int64, error) {
	if len(seatNumbers) == 0 {
		return 0, nil
	}
	q := `UPDATE pool_seats
	      SET status = 'available', holder_reservation_id = NULL
	      WHERE pool_id = ? AND status = 'reserved' AND holder_reservation_id = ?
	        AND seat_number IN (` + inClause(len(seatNumbers)) + `)`
	res, err := db.ExecContext(ctx, q, seatArgs(seatNumbers, poolID, reservationID)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
