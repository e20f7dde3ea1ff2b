package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/dormant/internal/dormant/domain"
	"github.com/aussiebroadwan/dormant/internal/dormant/store"
)

type resetSessionsRepo struct {
	db *sql.DB
}

func (r *resetSessionsRepo) Create(ctx context.Context, s domain.ResetSession) error {
	// Replaces a prior unused session for the user; a completed session is
	// terminal, so the conditional upsert affects zero rows and we refuse.
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO reset_sessions (id, username, token_hash, issued_at, used)
		 VALUES (?, ?, ?, ?, 0)
		 ON CONFLICT (username) DO UPDATE
		     SET id = excluded.id, token_hash = excluded.token_hash,
		         issued_at = excluded.issued_at, used = 0, used_at = NULL
		     WHERE reset_sessions.used = 0`,
		s.ID, s.User, s.TokenHash, s.IssuedAt.UTC())
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrAlreadyExists
	}
	return nil
}

func (r *resetSessionsRepo) GetByUser(ctx context.Context, user string) (domain.ResetSession, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, token_hash, issued_at, used, used_at
		 FROM reset_sessions WHERE username = ?`, user)

	var (
		s      domain.ResetSession
		usedAt sql.NullTime
	)
	if err := row.Scan(&s.ID, &s.User, &s.TokenHash, &s.IssuedAt, &s.Used, &usedAt); err != nil {
		return domain.ResetSession{}, mapNotFound(err)
	}
	if usedAt.Valid {
		t := usedAt.Time
		s.UsedAt = &t
	}
	return s, nil
}

func (r *resetSessionsRepo) Complete(ctx context.Context, id string, at time.Time) error {
	// Compare-and-swap on used: exactly one caller flips it.
	res, err := r.db.ExecContext(ctx,
		`UPDATE reset_sessions SET used = 1, used_at = ? WHERE id = ? AND used = 0`,
		at.UTC(), id)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	var used bool
	err = r.db.QueryRowContext(ctx,
		`SELECT used FROM reset_sessions WHERE id = ?`, id).Scan(&used)
	if err != nil {
		return mapNotFound(err)
	}
	return store.ErrAlreadyExists
}

func (r *resetSessionsRepo) DeleteExpired(ctx context.Context, cutoff time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM reset_sessions WHERE used = 0 AND issued_at < ?`, cutoff.UTC())
	return err
}
