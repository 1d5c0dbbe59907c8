// Package db provides a SQLite backed auth.Store.
//
// Email addresses are PII and are stored encrypted. To still support
// lookups by email address, a deterministic blind index is stored
// alongside the ciphertext. The blind index column also carries the
// uniqueness constraint that prevents duplicate registrations.
package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/mstelder/authd/internal/auth"
	"github.com/mstelder/authd/internal/db"
	"github.com/mstelder/authd/internal/krypto"
)

// NowFunc is a function that returns the current time.
type NowFunc func() time.Time

// Store is responsible for interacting with a database.
type Store struct {
	db            *sql.DB
	encryptor     *krypto.Encryptor
	blindIndexKey krypto.Key

	// NowFunc is used to timestamp updates.
	// Exposed for testing purposes.
	NowFunc NowFunc
}

// New creates a new Store.
func New(db *sql.DB, encryptor *krypto.Encryptor, blindIndexKey krypto.Key) *Store {
	return &Store{
		db:            db,
		encryptor:     encryptor,
		blindIndexKey: blindIndexKey,
		NowFunc:       time.Now,
	}
}

// BeginTx starts a new transaction.
func (s *Store) BeginTx(ctx context.Context) (auth.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{
		tx:    tx,
		store: s,
	}, nil
}

func (s *Store) newQuery() db.Query {
	return db.Query{
		Encryptor:     s.encryptor,
		BlindIndexKey: s.blindIndexKey,
	}
}
