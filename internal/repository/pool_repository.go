package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// PoolRepo reads pools and their seat maps.
type PoolRepo struct {
	db *sql.DB
}

// NewPoolRepo constructs a PoolRepo with the given DB handle.
func NewPoolRepo(db *sql.DB) *PoolRepo { return &PoolRepo{db: db} }

// GetPool fetches a pool by id.
func (r *PoolRepo) GetPool(ctx context.Context, poolID uint64) (*model.Pool, error) {
	const q = `SELECT id, name, origin, destination, starts_at, price_per_seat_cents, seat_count, status
	           FROM pools WHERE id = ? LIMIT 1`
	var p model.Pool
	err := r.db.QueryRowContext(ctx, q, poolID).Scan(
		&p.ID, &p.Name, &p.Origin, &p.Destination, &p.StartsAt,
		&p.PricePerSeatCents, &p.SeatCount, &p.Status,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListSeats returns every seat of the pool ordered by seat label length
// then label, so "2" sorts before "10".
func (r *PoolRepo) ListSeats(ctx context.Context, poolID uint64) ([]model.Seat, error) {
	const q = `SELECT pool_id, seat_number, status, holder_reservation_id, holder_booking_id
	           FROM pool_seats
	           WHERE pool_id = ?
	           ORDER BY CHAR_LENGTH(seat_number), seat_number`
	rows, err := r.db.QueryContext(ctx, q, poolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSeats(rows)
}

// CreatePool inserts the pool and its seats in one transaction.
func (r *PoolRepo) CreatePool(ctx context.Context, p *model.Pool) error {
	if p.Status == "" {
		p.Status = model.PoolStatusPublished
	}
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		const ins = `INSERT INTO pools (name, origin, destination, starts_at, price_per_seat_cents, seat_count, status)
		             VALUES (?, ?, ?, ?, ?, ?, ?)`
		res, err := tx.ExecContext(ctx, ins, p.Name, p.Origin, p.Destination, p.StartsAt,
			p.PricePerSeatCents, p.SeatCount, p.Status)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		p.ID = uint64(id)
		if p.SeatCount <= 0 {
			return nil
		}
		// bulk insert, one statement for all seats
		var sb strings.Builder
		sb.WriteString(`INSERT INTO pool_seats (pool_id, seat_number, status) VALUES `)
		args := make([]interface{}, 0, p.SeatCount*3)
		for i := 1; i <= p.SeatCount; i++ {
			if i > 1 {
				sb.WriteString(",")
			}
			sb.WriteString("(?, ?, ?)")
			args = append(args, p.ID, strconv.Itoa(i), string(model.SeatAvailable))
		}
		_, err = tx.ExecContext(ctx, sb.String(), args...)
		return err
	})
}

// PublishPool flips a draft pool to published with a conditional update.
// When nothing matched, the pool is read back to tell a missing pool from
// one that was not a draft.
func (r *PoolRepo) PublishPool(ctx context.Context, poolID uint64) (*model.Pool, error) {
	const upd = `UPDATE pools SET status = ? WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, upd, model.PoolStatusPublished, poolID, model.PoolStatusDraft)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	p, err := r.GetPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return p, ErrPoolNotDraft
	}
	return p, nil
}

type rowScanner interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanSeats(rows rowScanner) ([]model.Seat, error) {
	var out []model.Seat
	for rows.Next() {
		var (
			s           model.Seat
			status      string
			holderRes   sql.NullString
			holderBooks sql.NullString
		)
		if err := rows.Scan(&s.PoolID, &s.SeatNumber, &status, &holderRes, &holderBooks); err != nil {
			return nil, err
		}
		s.Status = model.SeatStatus(status)
		s.HolderReservationID = stringPtr(holderRes)
		s.HolderBookingID = stringPtr(holderBooks)
		out = append(out, s)
	}
	return out, rows.Err()
}
