package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
)

// inClause returns "?,?,?" for n values.
func inClause(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// seatArgs builds the argument list head..., seats... for an IN query.
func seatArgs(seats []string, head ...interface{}) []interface{} {
	args := make([]interface{}, 0, len(head)+len(seats))
	args = append(args, head...)
	for _, s := range seats {
		args = append(args, s)
	}
	return args
}

func encodeSeats(seats []string) (string, error) {
	if seats == nil {
		seats = []string{}
	}
	b, err := json.Marshal(seats)
	return string(b), err
}

func decodeSeats(raw []byte) ([]string, error) {
	var seats []string
	if len(raw) == 0 {
		return seats, nil
	}
	err := json.Unmarshal(raw, &seats)
	return seats, err
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
