// Package store provides the SQLite persistence layer for trackd: the
// tracker table with its scheduling state and the admin roster. Pure data
// access; scheduling and change-detection decisions live in the engine.
package store

import (
	"database/sql"

	"github.com/hazyhaar/trackd/internal/dbopen"
)

// Store is the trackd database handle.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the trackd SQLite database at path, applies
// pragmas and the schema.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	allOpts := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, allOpts...)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// New wraps an already-opened database. The caller is responsible for the
// schema having been applied.
func New(db *sql.DB) *Store {
	return &Store{DB: db}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}
