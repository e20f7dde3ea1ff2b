package flatfile

import (
	"context"
	"time"

	"github.com/aussiebroadwan/dormant/internal/dormant/store"
)

// tokenRecord is the JSON value stored per opaque token fingerprint.
type tokenRecord struct {
	User     string    `json:"user"`
	IssuedAt time.Time `json:"issued_at"`
}

// actionTokensRepo persists the opaque token map as a single JSON object,
// keyed by token fingerprint.
type actionTokensRepo struct {
	s *Store
}

func (r *actionTokensRepo) load() (map[string]tokenRecord, error) {
	tokens := map[string]tokenRecord{}
	if err := readJSONFile(r.s.path(tokensFile), &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *actionTokensRepo) Insert(ctx context.Context, fingerprint, user string, issuedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	tokens, err := r.load()
	if err != nil {
		return err
	}
	tokens[fingerprint] = tokenRecord{User: user, IssuedAt: issuedAt}
	return writeJSONFile(r.s.path(tokensFile), tokens)
}

func (r *actionTokensRepo) Lookup(ctx context.Context, fingerprint string) (string, time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	tokens, err := r.load()
	if err != nil {
		return "", time.Time{}, err
	}
	rec, ok := tokens[fingerprint]
	if !ok {
		return "", time.Time{}, store.ErrNotFound
	}
	return rec.User, rec.IssuedAt, nil
}

func (r *actionTokensRepo) Delete(ctx context.Context, fingerprint string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	tokens, err := r.load()
	if err != nil {
		return err
	}
	if _, ok := tokens[fingerprint]; !ok {
		return store.ErrNotFound
	}
	delete(tokens, fingerprint)
	return writeJSONFile(r.s.path(tokensFile), tokens)
}

func (r *actionTokensRepo) DeleteExpired(ctx context.Context, cutoff time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	tokens, err := r.load()
	if err != nil {
		return err
	}

	changed := false
	for fp, rec := range tokens {
		if rec.IssuedAt.Before(cutoff) {
			delete(tokens, fp)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return writeJSONFile(r.s.path(tokensFile), tokens)
}
