package db

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/mstelder/authd/internal/auth"
)

type Tx struct {
	tx    *sql.Tx
	store *Store
}

func (t *Tx) Commit() error {
	return t.tx.Commit()
}

func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// CreateUser creates a user in the database.
// It assigns the users ID when successful.
func (t *Tx) CreateUser(u *auth.User) error {
	u.ID = uuid.New()
	return insertUser(t.store.newQuery(), t.tx.Exec, u)
}

// UpdateUser applies the provided changes to the user with the given ID.
// It returns errorz.ErrNotFound if no user is found.
func (t *Tx) UpdateUser(id uuid.UUID, c auth.UserChanges) error {
	return updateUser(t.store.newQuery(), t.tx.Exec, id, c, t.store.NowFunc())
}

// FindUser queries for the single user matching the provided filter.
// It returns errorz.ErrNotFound if no user is found.
func (t *Tx) FindUser(filter *auth.UserFilter) (auth.User, error) {
	return selectUser(t.store.newQuery(), t.tx.Query, filter)
}
