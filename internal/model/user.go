package model

import "time"

// Roles accepted on the users table.
const (
	RoleOrganizer = "ORGANIZER"
	RolePartner   = "PARTNER"
)

// User represents an application user record as stored in the
// `users` table.  Handlers define their own response shapes, so the
// struct carries no json tags.
//
// Fields:
//
//	ID           – uuid primary key.
//	Email        – unique, lower-cased email address.
//	PasswordHash – bcrypt hash.
//	Role         – ORGANIZER or PARTNER.
//	IsActive     – whether the account may log in.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the token value is stored.
type RefreshToken struct {
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}
