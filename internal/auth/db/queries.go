package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mstelder/authd/internal/auth"
	"github.com/mstelder/authd/internal/db"
	"github.com/mstelder/authd/internal/email"
	"github.com/mstelder/authd/internal/errorz"
	"github.com/mstelder/authd/internal/krypto"
)

type execFunc func(query string, params ...any) (sql.Result, error)
type queryFunc func(query string, params ...any) (*sql.Rows, error)

func insertUser(q db.Query, ef execFunc, u *auth.User) error {
	if u.ID == uuid.Nil {
		return fmt.Errorf("zero uuid provided: %w", errorz.ErrConstraintViolated)
	}

	q.Unsafe(`INSERT INTO users (id, email_encrypted, email_blind_index, password_hash, session_token, reset_token, created_at, updated_at) VALUES (`)
	q.Param(u.ID)
	q.Unsafe(`, `)
	q.ParamEncrypted([]byte(u.Email))
	q.Unsafe(`, `)
	q.ParamBlindIndex([]byte(u.Email))
	q.Unsafe(`, `)
	q.Params(u.PasswordHash.String(), tokenParam(u.SessionToken), tokenParam(u.ResetToken), u.CreatedAt, u.UpdatedAt)
	q.Unsafe(`)`)

	s, params, err := q.Get()
	if err != nil {
		return err
	}

	_, err = ef(s, params...)
	if err != nil {
		return errorz.MapDBErr(err)
	}

	return nil
}

func updateUser(q db.Query, ef execFunc, id uuid.UUID, c auth.UserChanges, now time.Time) error {
	q.Unsafe(`UPDATE users SET `)

	if c.PasswordHash != nil {
		q.Unsafe(`password_hash = `)
		q.Param(c.PasswordHash.String())
		q.Unsafe(`, `)
	}

	if c.SessionToken != nil {
		q.Unsafe(`session_token = `)
		q.Param(tokenParam(c.SessionToken.To))
		q.Unsafe(`, `)
	}

	if c.ResetToken != nil {
		q.Unsafe(`reset_token = `)
		q.Param(tokenParam(c.ResetToken.To))
		q.Unsafe(`, `)
	}

	q.Unsafe(`updated_at = `)
	q.Param(now)

	q.Unsafe(` WHERE id = `)
	q.Param(id)

	s, params, err := q.Get()
	if err != nil {
		return err
	}

	result, err := ef(s, params...)
	if err != nil {
		return errorz.MapDBErr(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errorz.MapDBErr(err)
	}

	if rows == 0 {
		return fmt.Errorf("user not found: %w", errorz.ErrNotFound)
	}

	return nil
}

func selectUser(q db.Query, qf queryFunc, f *auth.UserFilter) (auth.User, error) {
	q.Unsafe(`SELECT id, email_encrypted, password_hash, session_token, reset_token, created_at, updated_at FROM users WHERE `)

	criteria := 0
	if f.ID != nil {
		criteria++
	}
	if f.Email != nil {
		criteria++
	}
	if f.SessionToken != nil {
		criteria++
	}
	if f.ResetToken != nil {
		criteria++
	}

	if criteria != 1 {
		return auth.User{}, fmt.Errorf("got %d filter criteria, want exactly 1: %w", criteria, errorz.ErrNoFilter)
	}

	switch {
	case f.ID != nil:
		q.Unsafe(`id = `)
		q.Param(*f.ID)
	case f.Email != nil:
		q.Unsafe(`email_blind_index = `)
		q.ParamBlindIndex([]byte(*f.Email))
	case f.SessionToken != nil:
		q.Unsafe(`session_token = `)
		q.Param(f.SessionToken.String())
	case f.ResetToken != nil:
		q.Unsafe(`reset_token = `)
		q.Param(f.ResetToken.String())
	}

	s, params, err := q.Get()
	if err != nil {
		return auth.User{}, err
	}

	rows, err := qf(s, params...)
	if err != nil {
		return auth.User{}, errorz.MapDBErr(err)
	}

	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return auth.User{}, errorz.MapDBErr(err)
		}
		return auth.User{}, fmt.Errorf("user not found: %w", errorz.ErrNotFound)
	}

	var u auth.User
	var sessionToken, resetToken sql.NullString
	emailBytes := q.DecryptionTarget()
	err = rows.Scan(&u.ID, emailBytes, &u.PasswordHash, &sessionToken, &resetToken, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return auth.User{}, errorz.MapDBErr(err)
	}

	u.Email, err = email.ParseAddress(string(emailBytes.Data))
	if err != nil {
		return auth.User{}, err
	}

	u.SessionToken, err = scanToken(sessionToken)
	if err != nil {
		return auth.User{}, err
	}

	u.ResetToken, err = scanToken(resetToken)
	if err != nil {
		return auth.User{}, err
	}

	if err := rows.Err(); err != nil {
		return auth.User{}, errorz.MapDBErr(err)
	}

	return u, nil
}

// tokenParam converts an optional token to a bind parameter.
// Absent tokens are stored as NULL.
func tokenParam(t *krypto.Token) any {
	if t == nil {
		return nil
	}
	return t.String()
}

func scanToken(src sql.NullString) (*krypto.Token, error) {
	if !src.Valid {
		return nil, nil
	}

	t, err := krypto.ParseToken(src.String)
	if err != nil {
		return nil, err
	}

	return &t, nil
}
