// Package flatfile persists lifecycle state as line-oriented files in a
// single state directory, matching the formats consumed by the surrounding
// tooling (user=yes|no ledger, user=YYYY-MM-DD opt lists).
//
// Every mutation rewrites the backing file to a temporary sibling and then
// renames it into place, so a crash mid-write never truncates state. A
// single store-wide mutex makes each read-check-then-write sequence an
// explicit critical section; callers never see a torn update.
package flatfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aussiebroadwan/dormant/internal/dormant/store"
)

const (
	submissionsFile = "submissions.conf"
	optInFile       = "opt_in.conf"
	optOutFile      = "opt_out.conf"
	tokensFile      = "tokens.json"
	sessionsFile    = "reset_sessions.json"
	progressFile    = "progress.conf"
	auditFile       = "audit.log"
)

type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore opens (creating if necessary) the state directory.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("flatfile: create state dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Close() error { return nil }

// Ping verifies the state directory still exists and is writable.
func (s *Store) Ping(ctx context.Context) error {
	probe, err := os.CreateTemp(s.dir, ".ping-*")
	if err != nil {
		return fmt.Errorf("flatfile: state dir not writable: %w", err)
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}

func (s *Store) path(name string) string { return filepath.Join(s.dir, name) }

func (s *Store) Submissions() store.Submissions     { return &submissionsRepo{s: s} }
func (s *Store) OptStates() store.OptStates         { return &optStatesRepo{s: s} }
func (s *Store) ResetSessions() store.ResetSessions { return &resetSessionsRepo{s: s} }
func (s *Store) ActionTokens() store.ActionTokens   { return &actionTokensRepo{s: s} }
func (s *Store) Progress() store.Progress           { return &progressRepo{s: s} }
func (s *Store) Audit() store.Audit                 { return &auditRepo{s: s} }
