package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mstelder/authd/internal/email"
	"github.com/mstelder/authd/internal/errorz"
	"github.com/mstelder/authd/internal/krypto"
)

var (
	// ErrDuplicateUser indicates a user with the same email address already exists.
	ErrDuplicateUser = errors.New("duplicate user")
	// ErrUnknownEmail indicates no user with the given email address exists.
	ErrUnknownEmail = errors.New("unknown email")
	// ErrInvalidResetToken indicates a reset token does not belong to any user.
	ErrInvalidResetToken = errors.New("invalid reset token")
)

// ErrFunc is a function that handles errors.
type ErrFunc func(error)

// Service is the type that provides the main rules for authentication.
type Service struct {
	store      Store
	errHandler ErrFunc

	// comparisonHash is used to compare passwords when no user was found.
	comparisonHash krypto.Argon2Hash

	// NowFunc is used to get the current time.
	// Exposed for testing purposes.
	NowFunc func() time.Time
}

func NewService(s Store, errHandler ErrFunc) (*Service, error) {
	tok, err := krypto.GenerateToken()
	if err != nil {
		return nil, err
	}

	hash, err := krypto.HashArgon2(tok[:])
	if err != nil {
		return nil, err
	}

	svc := &Service{
		store:          s,
		errHandler:     errHandler,
		comparisonHash: hash,
		NowFunc:        time.Now,
	}

	return svc, nil
}

// RegisterUser registers a new user with the provided credentials.
// If a user with the same email address already exists, ErrDuplicateUser
// is returned.
func (s *Service) RegisterUser(ctx context.Context, c Credentials) (User, error) {
	pwdHash, err := c.Password.Hash()
	if err != nil {
		return User{}, err
	}

	now := s.NowFunc()

	user := User{
		Email:        c.Email,
		PasswordHash: pwdHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.inTx(ctx, func(tx Tx) error {
		return tx.CreateUser(&user)
	})
	if err != nil {
		// The store has a uniqueness constraint on the email address. Relying
		// on the constraint instead of a lookup-then-insert means two
		// concurrent registrations for the same address can't both succeed.
		if errors.Is(err, errorz.ErrConstraintViolated) {
			return User{}, ErrDuplicateUser
		}
		return User{}, err
	}

	return user, nil
}

// ValidLogin checks if the provided credentials belong to a registered user.
//
// It reports false both for unknown email addresses and for wrong
// passwords, callers can't tell the difference. Internal failures are also
// reported as false, after being passed to the error handler. Logins fail
// closed.
func (s *Service) ValidLogin(ctx context.Context, c Credentials) bool {
	user, err := s.findUser(ctx, &UserFilter{Email: &c.Email})
	if err != nil {
		if !errors.Is(err, errorz.ErrNotFound) {
			s.errHandler(err)
		}

		// Even if no user is found we compare to a hash to prevent timing
		// differences that could result in user enumeration attacks.
		_ = c.Password.Match(s.comparisonHash)
		return false
	}

	return c.Password.Match(user.PasswordHash)
}

// CreateSession starts a new session for the user with the provided email
// address and returns the session token. Any existing session for the user
// is invalidated.
//
// If no user with the email address exists, CreateSession returns a nil
// token and no error.
func (s *Service) CreateSession(ctx context.Context, addr email.Address) (*krypto.Token, error) {
	token, err := krypto.GenerateToken()
	if err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(tx Tx) error {
		user, txErr := tx.FindUser(&UserFilter{Email: &addr})
		if txErr != nil {
			return txErr
		}

		return tx.UpdateUser(user.ID, UserChanges{
			SessionToken: SetToken(token),
		})
	})
	if err != nil {
		if errors.Is(err, errorz.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &token, nil
}

// UserBySession returns the user that owns the provided session token.
// It returns nil if the token is nil or doesn't belong to any user.
func (s *Service) UserBySession(ctx context.Context, token *krypto.Token) (*User, error) {
	if token == nil {
		return nil, nil
	}

	user, err := s.findUser(ctx, &UserFilter{SessionToken: token})
	if err != nil {
		if errors.Is(err, errorz.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}

// DestroySession ends the session of the user with the provided ID.
// Destroying the session of an unknown user or a user without a session
// is not an error, the outcome is the same: no session.
func (s *Service) DestroySession(ctx context.Context, userID uuid.UUID) error {
	err := s.inTx(ctx, func(tx Tx) error {
		return tx.UpdateUser(userID, UserChanges{
			SessionToken: ClearToken(),
		})
	})
	if err != nil && !errors.Is(err, errorz.ErrNotFound) {
		return err
	}

	return nil
}

// RequestPasswordReset generates a password reset token for the user with
// the provided email address. A previously issued reset token for the same
// user is invalidated.
//
// If no user with the email address exists, ErrUnknownEmail is returned.
func (s *Service) RequestPasswordReset(ctx context.Context, addr email.Address) (krypto.Token, error) {
	token, err := krypto.GenerateToken()
	if err != nil {
		return krypto.Token{}, err
	}

	err = s.inTx(ctx, func(tx Tx) error {
		user, txErr := tx.FindUser(&UserFilter{Email: &addr})
		if txErr != nil {
			return txErr
		}

		return tx.UpdateUser(user.ID, UserChanges{
			ResetToken: SetToken(token),
		})
	})
	if err != nil {
		if errors.Is(err, errorz.ErrNotFound) {
			return krypto.Token{}, ErrUnknownEmail
		}
		return krypto.Token{}, err
	}

	return token, nil
}

// ResetPassword sets a new password for the user that owns the provided
// reset token and consumes the token. The user's session is left alone.
//
// If the token is nil or doesn't belong to any user, ErrInvalidResetToken
// is returned.
func (s *Service) ResetPassword(ctx context.Context, np NewPassword) error {
	if np.Token == nil {
		return ErrInvalidResetToken
	}

	pwdHash, err := np.Password.Hash()
	if err != nil {
		return err
	}

	err = s.inTx(ctx, func(tx Tx) error {
		user, txErr := tx.FindUser(&UserFilter{ResetToken: np.Token})
		if txErr != nil {
			return txErr
		}

		// Updating the password and consuming the token is a single update,
		// a reset can never partially succeed.
		return tx.UpdateUser(user.ID, UserChanges{
			PasswordHash: &pwdHash,
			ResetToken:   ClearToken(),
		})
	})
	if err != nil {
		if errors.Is(err, errorz.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}

	return nil
}

func (s *Service) findUser(ctx context.Context, filter *UserFilter) (User, error) {
	var user User
	err := s.inTx(ctx, func(tx Tx) error {
		var txErr error
		user, txErr = tx.FindUser(filter)
		return txErr
	})
	if err != nil {
		return User{}, err
	}

	return user, nil
}

func (s *Service) inTx(ctx context.Context, f func(tx Tx) error) error {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return err
	}

	err = f(tx)
	if err != nil {
		rBackErr := tx.Rollback()
		if rBackErr != nil {
			err = errors.Join(err, errorz.ErrTxBadState, rBackErr)
		}
		return err
	}

	return tx.Commit()
}
