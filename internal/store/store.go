package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	// ErrMissingBase means the company-null override row for a lifecycle is
	// gone. That row must exist for as long as the project does, so this is
	// data corruption and never silently repaired.
	ErrMissingBase = errors.New("missing base override row")

	// ErrCorruptChain wraps a chain invariant violation found on read.
	ErrCorruptChain = errors.New("corrupt content chain")

	// ErrNoDraft is returned by operations that need an in-progress draft.
	ErrNoDraft = errors.New("project has no draft")

	// ErrNoLive is returned by Revert when there is no published copy to
	// fall back to.
	ErrNoLive = errors.New("project has no live copy")
)

// Store is the Postgres-backed versioned record store. Every exported
// operation runs in its own transaction: either all of its row changes
// commit or none do.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
