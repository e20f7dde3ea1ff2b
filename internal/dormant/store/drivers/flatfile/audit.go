package flatfile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/dormant/internal/dormant/domain"
)

// auditRepo appends one tab-separated line per entry. The log is append-only
// and never rewritten.
type auditRepo struct {
	s *Store
}

func (r *auditRepo) Append(ctx context.Context, e domain.AuditEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	line := fmt.Sprintf("%s\t%s\t%s\t%s\t%s",
		e.At.UTC().Format(time.RFC3339), e.ID, e.User, e.Action, e.Detail)
	return appendLine(r.s.path(auditFile), line)
}

func (r *auditRepo) List(ctx context.Context) ([]domain.AuditEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	lines, err := readLines(r.s.path(auditFile))
	if err != nil {
		return nil, err
	}

	out := make([]domain.AuditEntry, 0, len(lines))
	for _, line := range lines {
		parts := strings.SplitN(line, "\t", 5)
		if len(parts) != 5 {
			continue
		}
		at, err := time.Parse(time.RFC3339, parts[0])
		if err != nil {
			continue
		}
		out = append(out, domain.AuditEntry{
			At:     at,
			ID:     parts[1],
			User:   parts[2],
			Action: parts[3],
			Detail: parts[4],
		})
	}
	return out, nil
}
