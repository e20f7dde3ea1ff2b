package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/dormant/internal/dormant/domain"
)

type auditRepo struct {
	db *sql.DB
}

func (r *auditRepo) Append(ctx context.Context, e domain.AuditEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, username, action, detail, at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.User, e.Action, e.Detail, e.At.UTC())
	return err
}

func (r *auditRepo) List(ctx context.Context) ([]domain.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, username, action, detail, at FROM audit_log ORDER BY at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.ID, &e.User, &e.Action, &e.Detail, &e.At); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
