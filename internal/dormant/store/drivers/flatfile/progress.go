package flatfile

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// progressRepo records completed directory steps as lines of the form
// user:sequence:step=RFC3339. Entries are never removed; completion of a
// sequence is detected by comparing against the sequence's step list.
type progressRepo struct {
	s *Store
}

func progressKey(user, seq, step string) string {
	return fmt.Sprintf("%s:%s:%s", user, seq, step)
}

func (r *progressRepo) MarkDone(ctx context.Context, user, seq, step string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	path := r.s.path(progressFile)
	kv, err := readKV(path)
	if err != nil {
		return err
	}

	key := progressKey(user, seq, step)
	if _, ok := kv[key]; ok {
		return nil
	}
	kv[key] = time.Now().UTC().Format(time.RFC3339)
	return writeKV(path, kv)
}

func (r *progressRepo) Done(ctx context.Context, user, seq string) (map[string]bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	kv, err := readKV(r.s.path(progressFile))
	if err != nil {
		return nil, err
	}

	prefix := user + ":" + seq + ":"
	done := map[string]bool{}
	for key := range kv {
		if step, ok := strings.CutPrefix(key, prefix); ok {
			done[step] = true
		}
	}
	return done, nil
}
