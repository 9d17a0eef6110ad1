package model

import "time"

// Operator roles carried in the access token's "role" claim.
const (
	RoleAdmin   = "ADMIN"
	RoleScanner = "SCANNER"
)

// Account statuses.  Inactive users cannot log in.
const (
	UserActive   = "active"
	UserInactive = "inactive"
)

// User represents an operator record as stored in the `users` table.
// The json tags are omitted here because these structs are primarily used
// internally by the repository layer; handlers define their own response
// types.
//
// Fields:
//  ID           – primary key (uuid).
//  Email        – unique login, stored lower-case.
//  PasswordHash – bcrypt hashed password.
//  Role         – ADMIN or SCANNER.
//  Status       – active or inactive.
type User struct {
	ID           string    // users.id
	Email        string    // users.email
	FirstName    string    // users.first_name
	LastName     string    // users.last_name
	Phone        string    // users.phone
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	Status       string    // users.status
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// IsActive reports whether the account may authenticate.
func (u User) IsActive() bool { return u.Status != UserInactive }

// RefreshToken models an entry in the `refresh_tokens` table.  The plain
// token is not stored; only its SHA‑256 hash.
type RefreshToken struct {
	ID        string     // refresh_tokens.id
	UserID    string     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
