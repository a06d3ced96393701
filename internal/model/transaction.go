package model

import "time"

// TransactionKind classifies a ledger entry.
type TransactionKind string

const (
	TransactionDebit  TransactionKind = "debit"
	TransactionCredit TransactionKind = "credit"
	TransactionRefund TransactionKind = "refund"
)

// TransactionStatus values.  A held entry is promoted to settled once
// the trip is finalized; no other mutation is allowed.
type TransactionStatus string

const (
	TransactionHeld    TransactionStatus = "held"
	TransactionSettled TransactionStatus = "settled"
)

// Transaction is an append-only ledger entry describing a balance
// movement.
type Transaction struct {
	ID          string            // transactions.id
	UserID      uint64            // transactions.user_id
	BookingID   *string           // transactions.booking_id (nullable)
	AmountCents int64             // transactions.amount_cents
	Kind        TransactionKind   // transactions.kind
	Status      TransactionStatus // transactions.status
	Description string            // transactions.description
	CreatedAt   time.Time         // transactions.created_at
}
