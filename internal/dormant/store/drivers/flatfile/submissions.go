package flatfile

import (
	"context"
	"sort"

	"github.com/aussiebroadwan/dormant/internal/dormant/domain"
	"github.com/aussiebroadwan/dormant/internal/dormant/store"
)

// submissionsRepo persists the decision ledger as user=yes|no lines.
// RecordedAt is not part of the file format; reads return it zero.
type submissionsRepo struct {
	s *Store
}

func (r *submissionsRepo) Get(ctx context.Context, user string) (domain.Submission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	kv, err := readKV(r.s.path(submissionsFile))
	if err != nil {
		return domain.Submission{}, err
	}
	decision, ok := kv[user]
	if !ok {
		return domain.Submission{}, store.ErrNotFound
	}
	return domain.Submission{User: user, Decision: domain.Decision(decision)}, nil
}

func (r *submissionsRepo) Record(ctx context.Context, s domain.Submission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	path := r.s.path(submissionsFile)
	kv, err := readKV(path)
	if err != nil {
		return err
	}
	if _, ok := kv[s.User]; ok {
		// First write wins; the stored decision is never overwritten.
		return store.ErrAlreadyExists
	}
	kv[s.User] = string(s.Decision)
	return writeKV(path, kv)
}

func (r *submissionsRepo) List(ctx context.Context) ([]domain.Submission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	kv, err := readKV(r.s.path(submissionsFile))
	if err != nil {
		return nil, err
	}

	out := make([]domain.Submission, 0, len(kv))
	for user, decision := range kv {
		out = append(out, domain.Submission{User: user, Decision: domain.Decision(decision)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].User < out[j].User })
	return out, nil
}
