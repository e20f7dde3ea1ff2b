package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/dormant/internal/dormant/store"
)

type actionTokensRepo struct {
	db *sql.DB
}

func (r *actionTokensRepo) Insert(ctx context.Context, fingerprint, user string, issuedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO action_tokens (fingerprint, username, issued_at) VALUES (?, ?, ?)`,
		fingerprint, user, issuedAt.UTC())
	return err
}

func (r *actionTokensRepo) Lookup(ctx context.Context, fingerprint string) (string, time.Time, error) {
	var (
		user     string
		issuedAt time.Time
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT username, issued_at FROM action_tokens WHERE fingerprint = ?`,
		fingerprint).Scan(&user, &issuedAt)
	if err != nil {
		return "", time.Time{}, mapNotFound(err)
	}
	return user, issuedAt, nil
}

func (r *actionTokensRepo) Delete(ctx context.Context, fingerprint string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM action_tokens WHERE fingerprint = ?`, fingerprint)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *actionTokensRepo) DeleteExpired(ctx context.Context, cutoff time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM action_tokens WHERE issued_at < ?`, cutoff.UTC())
	return err
}
