package flatfile

import (
	"context"
	"time"

	"github.com/aussiebroadwan/dormant/internal/dormant/domain"
	"github.com/aussiebroadwan/dormant/internal/dormant/store"
)

// sessionRecord is the JSON shape of a persisted reset session.
type sessionRecord struct {
	ID        string     `json:"id"`
	TokenHash string     `json:"token_hash"`
	IssuedAt  time.Time  `json:"issued_at"`
	Used      bool       `json:"used"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}

// resetSessionsRepo persists reset sessions as a JSON object keyed by user.
type resetSessionsRepo struct {
	s *Store
}

func (r *resetSessionsRepo) load() (map[string]sessionRecord, error) {
	sessions := map[string]sessionRecord{}
	if err := readJSONFile(r.s.path(sessionsFile), &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *resetSessionsRepo) Create(ctx context.Context, s domain.ResetSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sessions, err := r.load()
	if err != nil {
		return err
	}
	if prior, ok := sessions[s.User]; ok && prior.Used {
		// A completed session is terminal; never reopen the gate.
		return store.ErrAlreadyExists
	}

	sessions[s.User] = sessionRecord{
		ID:        s.ID,
		TokenHash: s.TokenHash,
		IssuedAt:  s.IssuedAt,
	}
	return writeJSONFile(r.s.path(sessionsFile), sessions)
}

func (r *resetSessionsRepo) GetByUser(ctx context.Context, user string) (domain.ResetSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sessions, err := r.load()
	if err != nil {
		return domain.ResetSession{}, err
	}
	rec, ok := sessions[user]
	if !ok {
		return domain.ResetSession{}, store.ErrNotFound
	}
	return domain.ResetSession{
		ID:        rec.ID,
		User:      user,
		TokenHash: rec.TokenHash,
		IssuedAt:  rec.IssuedAt,
		Used:      rec.Used,
		UsedAt:    rec.UsedAt,
	}, nil
}

func (r *resetSessionsRepo) Complete(ctx context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sessions, err := r.load()
	if err != nil {
		return err
	}
	for user, rec := range sessions {
		if rec.ID != id {
			continue
		}
		if rec.Used {
			return store.ErrAlreadyExists
		}
		rec.Used = true
		rec.UsedAt = &at
		sessions[user] = rec
		return writeJSONFile(r.s.path(sessionsFile), sessions)
	}
	return store.ErrNotFound
}

func (r *resetSessionsRepo) DeleteExpired(ctx context.Context, cutoff time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sessions, err := r.load()
	if err != nil {
		return err
	}

	changed := false
	for user, rec := range sessions {
		if !rec.Used && rec.IssuedAt.Before(cutoff) {
			delete(sessions, user)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return writeJSONFile(r.s.path(sessionsFile), sessions)
}
