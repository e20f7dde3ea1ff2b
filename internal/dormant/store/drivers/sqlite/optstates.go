package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/dormant/internal/dormant/domain"
)

// optStatesRepo keeps one row per user; an upsert replaces the prior status,
// so mutual exclusivity holds by construction.
type optStatesRepo struct {
	db *sql.DB
}

func (r *optStatesRepo) Get(ctx context.Context, user string) (domain.OptState, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT username, status, since FROM opt_states WHERE username = ?`, user)

	var s domain.OptState
	if err := row.Scan(&s.User, &s.Status, &s.Since); err != nil {
		return domain.OptState{}, mapNotFound(err)
	}
	return s, nil
}

func (r *optStatesRepo) Set(ctx context.Context, state domain.OptState) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO opt_states (username, status, since) VALUES (?, ?, ?)
		 ON CONFLICT (username) DO UPDATE SET status = excluded.status, since = excluded.since`,
		state.User, state.Status, state.Since.UTC())
	return err
}
