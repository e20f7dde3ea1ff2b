package sqlite

import (
	"context"
	"database/sql"
	"time"
)

type progressRepo struct {
	db *sql.DB
}

func (r *progressRepo) MarkDone(ctx context.Context, user, seq, step string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO step_progress (username, sequence, step, done_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (username, sequence, step) DO NOTHING`,
		user, seq, step, time.Now().UTC())
	return err
}

func (r *progressRepo) Done(ctx context.Context, user, seq string) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT step FROM step_progress WHERE username = ? AND sequence = ?`, user, seq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	done := map[string]bool{}
	for rows.Next() {
		var step string
		if err := rows.Scan(&step); err != nil {
			return nil, err
		}
		done[step] = true
	}
	return done, rows.Err()
}
