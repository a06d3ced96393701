package model

import "time"

// User represents an application user record as stored in the
// `users` table.  The balance column makes every user an account that
// bookings are debited from.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Email        – unique email address.
//	Name         – display name used in notifications.
//	Mobile       – contact phone number.
//	PasswordHash – bcrypt hashed password.
//	Role         – CUSTOMER or ADMIN.
//	BalanceCents – spendable balance in cents.
//	CreatedAt    – timestamp of creation.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	Name         string    // users.name
	Mobile       string    // users.mobile
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	BalanceCents int64     // users.balance_cents
	CreatedAt    time.Time // users.created_at
}

// Role names stored in users.role and in the JWT role claim.
const (
	RoleCustomer = "CUSTOMER"
	RoleAdmin    = "ADMIN"
)

// Account is the balance view of a user used by the booking path.
type Account struct {
	UserID       uint64
	Email        string
	Name         string
	BalanceCents int64
}
