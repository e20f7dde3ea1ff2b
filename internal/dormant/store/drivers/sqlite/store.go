package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/aussiebroadwan/dormant/internal/dormant/store"
	_ "modernc.org/sqlite"
)

type Store struct {
	db  *sql.DB
	dsn string
}

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// Serialised access avoids SQLITE_BUSY from concurrent writers on the
	// same connection pool.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, dsn: dsn}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Submissions() store.Submissions     { return &submissionsRepo{db: s.db} }
func (s *Store) OptStates() store.OptStates         { return &optStatesRepo{db: s.db} }
func (s *Store) ResetSessions() store.ResetSessions { return &resetSessionsRepo{db: s.db} }
func (s *Store) ActionTokens() store.ActionTokens   { return &actionTokensRepo{db: s.db} }
func (s *Store) Progress() store.Progress           { return &progressRepo{db: s.db} }
func (s *Store) Audit() store.Audit                 { return &auditRepo{db: s.db} }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
