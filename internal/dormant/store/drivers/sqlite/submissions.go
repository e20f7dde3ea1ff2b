package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/dormant/internal/dormant/domain"
	"github.com/aussiebroadwan/dormant/internal/dormant/store"
)

type submissionsRepo struct {
	db *sql.DB
}

func (r *submissionsRepo) Get(ctx context.Context, user string) (domain.Submission, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT username, decision, recorded_at FROM submissions WHERE username = ?`, user)

	var s domain.Submission
	if err := row.Scan(&s.User, &s.Decision, &s.RecordedAt); err != nil {
		return domain.Submission{}, mapNotFound(err)
	}
	return s, nil
}

func (r *submissionsRepo) Record(ctx context.Context, s domain.Submission) error {
	// ON CONFLICT DO NOTHING gives first-write-wins: a duplicate record
	// affects zero rows and the stored decision is untouched.
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO submissions (username, decision, recorded_at) VALUES (?, ?, ?)
		 ON CONFLICT (username) DO NOTHING`,
		s.User, s.Decision, s.RecordedAt.UTC())
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

func (r *submissionsRepo) List(ctx context.Context) ([]domain.Submission, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT username, decision, recorded_at FROM submissions ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Submission
	for rows.Next() {
		var s domain.Submission
		if err := rows.Scan(&s.User, &s.Decision, &s.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
