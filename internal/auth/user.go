package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/mstelder/authd/internal/email"
	"github.com/mstelder/authd/internal/krypto"
)

// User contains the data for a user.
//
// SessionToken and ResetToken are nil when the user has no active session
// or no pending password reset. A user has at most one of each, starting
// a new session or reset invalidates the previous one.
type User struct {
	ID           uuid.UUID
	Email        email.Address
	PasswordHash krypto.Argon2Hash
	SessionToken *krypto.Token
	ResetToken   *krypto.Token
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Credentials are a combination of email address and plaintext password.
// They are provided by users when they register or log in.
type Credentials struct {
	Email    email.Address
	Password Password
}

// NewPassword combines a password reset token with the replacement
// password it authorizes.
type NewPassword struct {
	Token    *krypto.Token
	Password Password
}
