package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/mstelder/authd/internal/email"
	"github.com/mstelder/authd/internal/krypto"
)

// UserFilter is used to find a single user.
//
// Exactly one criterion must be set. A filter with zero or multiple
// criteria is rejected with errorz.ErrNoFilter, ambiguous lookups are
// almost always a bug in the caller.
type UserFilter struct {
	ID           *uuid.UUID
	Email        *email.Address
	SessionToken *krypto.Token
	ResetToken   *krypto.Token
}

// TokenChange describes a modification of one of the token fields on a
// user. A nil *TokenChange in UserChanges means "leave the field alone",
// a TokenChange with a nil To clears the field.
type TokenChange struct {
	To *krypto.Token
}

// SetToken returns a TokenChange that sets a token field to t.
func SetToken(t krypto.Token) *TokenChange {
	return &TokenChange{To: &t}
}

// ClearToken returns a TokenChange that clears a token field.
func ClearToken() *TokenChange {
	return &TokenChange{}
}

// UserChanges describes a partial update of a user. Nil fields are left
// unmodified. Email addresses are deliberately absent, they identify
// users and don't change.
type UserChanges struct {
	PasswordHash *krypto.Argon2Hash
	SessionToken *TokenChange
	ResetToken   *TokenChange
}

// Store provides access to the user store.
type Store interface {
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx is a transaction. If an error occurs on any of the Create/Update/Find
// methods, the transaction is considered to have failed and should be
// rolled back. Tx is not safe for concurrent use.
type Tx interface {
	Commit() error
	Rollback() error

	// CreateUser inserts a new user and assigns its ID.
	CreateUser(u *User) error
	// UpdateUser applies the given changes to the user with the given ID.
	// It returns errorz.ErrNotFound if no such user exists.
	UpdateUser(id uuid.UUID, c UserChanges) error
	// FindUser returns the single user matching the filter.
	// It returns errorz.ErrNotFound if no user matches.
	FindUser(filter *UserFilter) (User, error)
}
