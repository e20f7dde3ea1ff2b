package flatfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/dormant/internal/dormant/domain"
	"github.com/aussiebroadwan/dormant/internal/dormant/store"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSubmissionsFirstWriteWins(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Submissions().Get(ctx, "alice")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Submissions().Record(ctx, domain.Submission{
		User: "alice", Decision: domain.DecisionYes, RecordedAt: time.Now(),
	}))

	// The second write must not overwrite the stored decision.
	err = s.Submissions().Record(ctx, domain.Submission{
		User: "alice", Decision: domain.DecisionNo, RecordedAt: time.Now(),
	})
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	got, err := s.Submissions().Get(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, domain.DecisionYes, got.Decision)
}

func TestSubmissionsFileFormat(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Submissions().Record(ctx, domain.Submission{User: "bob", Decision: domain.DecisionNo}))
	require.NoError(t, s.Submissions().Record(ctx, domain.Submission{User: "alice", Decision: domain.DecisionYes}))

	data, err := os.ReadFile(filepath.Join(dir, submissionsFile))
	require.NoError(t, err)
	require.Equal(t, "alice=yes\nbob=no\n", string(data))
}

func TestOptStatesMutualExclusion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	day := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.OptStates().Set(ctx, domain.OptState{User: "alice", Status: domain.OptedIn, Since: day}))

	got, err := s.OptStates().Get(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, domain.OptedIn, got.Status)

	require.NoError(t, s.OptStates().Set(ctx, domain.OptState{User: "alice", Status: domain.OptedOut, Since: day.AddDate(0, 0, 1)}))

	got, err = s.OptStates().Get(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, domain.OptedOut, got.Status)
	require.Equal(t, "2025-06-02", got.Since.Format("2006-01-02"))

	// No trace of the opt-in record may remain.
	in, err := os.ReadFile(filepath.Join(dir, optInFile))
	require.NoError(t, err)
	require.NotContains(t, string(in), "alice")

	out, err := os.ReadFile(filepath.Join(dir, optOutFile))
	require.NoError(t, err)
	require.Equal(t, "alice=2025-06-02\n", string(out))
}

func TestOptStatesFormatSurvivesForeignEntries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	// Entries written by other tooling must survive a swap for another user.
	require.NoError(t, os.WriteFile(filepath.Join(dir, optInFile), []byte("carol=2025-01-15\n"), 0o640))

	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.OptStates().Set(ctx, domain.OptState{User: "alice", Status: domain.OptedIn, Since: day}))

	in, err := os.ReadFile(filepath.Join(dir, optInFile))
	require.NoError(t, err)
	require.Equal(t, "alice=2025-06-01\ncarol=2025-01-15\n", string(in))
}

func TestResetSessionsSingleUse(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	session := domain.ResetSession{
		ID:        "01HSESSION",
		User:      "alice",
		TokenHash: "fingerprint",
		IssuedAt:  time.Now().UTC(),
	}
	require.NoError(t, s.ResetSessions().Create(ctx, session))

	got, err := s.ResetSessions().GetByUser(ctx, "alice")
	require.NoError(t, err)
	require.False(t, got.Used)

	now := time.Now().UTC()
	require.NoError(t, s.ResetSessions().Complete(ctx, session.ID, now))

	// Exactly one caller observes the transition.
	err = s.ResetSessions().Complete(ctx, session.ID, now)
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	got, err = s.ResetSessions().GetByUser(ctx, "alice")
	require.NoError(t, err)
	require.True(t, got.Used)
	require.NotNil(t, got.UsedAt)

	// A completed session can not be replaced by a fresh one.
	err = s.ResetSessions().Create(ctx, domain.ResetSession{ID: "01HOTHER", User: "alice", TokenHash: "x", IssuedAt: time.Now()})
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestResetSessionsDeleteExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	old := domain.ResetSession{ID: "a", User: "alice", TokenHash: "h1", IssuedAt: time.Now().Add(-48 * time.Hour)}
	fresh := domain.ResetSession{ID: "b", User: "bob", TokenHash: "h2", IssuedAt: time.Now()}
	require.NoError(t, s.ResetSessions().Create(ctx, old))
	require.NoError(t, s.ResetSessions().Create(ctx, fresh))

	require.NoError(t, s.ResetSessions().DeleteExpired(ctx, time.Now().Add(-24*time.Hour)))

	_, err := s.ResetSessions().GetByUser(ctx, "alice")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.ResetSessions().GetByUser(ctx, "bob")
	require.NoError(t, err)
}

func TestActionTokensConsumeOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	issued := time.Now().UTC()
	require.NoError(t, s.ActionTokens().Insert(ctx, "fp1", "alice", issued))

	user, at, err := s.ActionTokens().Lookup(ctx, "fp1")
	require.NoError(t, err)
	require.Equal(t, "alice", user)
	require.WithinDuration(t, issued, at, time.Second)

	require.NoError(t, s.ActionTokens().Delete(ctx, "fp1"))
	require.ErrorIs(t, s.ActionTokens().Delete(ctx, "fp1"), store.ErrNotFound)

	_, _, err = s.ActionTokens().Lookup(ctx, "fp1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestProgressTracksSteps(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	done, err := s.Progress().Done(ctx, "alice", domain.SeqReset)
	require.NoError(t, err)
	require.Empty(t, done)

	require.NoError(t, s.Progress().MarkDone(ctx, "alice", domain.SeqReset, domain.StepSetPassword))
	require.NoError(t, s.Progress().MarkDone(ctx, "alice", domain.SeqReset, domain.StepSetPassword)) // idempotent
	require.NoError(t, s.Progress().MarkDone(ctx, "alice", domain.SeqDeactivate, domain.StepLock))

	done, err = s.Progress().Done(ctx, "alice", domain.SeqReset)
	require.NoError(t, err)
	require.Equal(t, map[string]bool{domain.StepSetPassword: true}, done)
}

func TestAuditAppendAndList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.Audit().Append(ctx, domain.AuditEntry{
		ID: "01H1", User: "bob", Action: domain.AuditDeactivated, Detail: "via email link", At: at,
	}))
	require.NoError(t, s.Audit().Append(ctx, domain.AuditEntry{
		ID: "01H2", User: "alice", Action: domain.AuditPasswordReset, Detail: "dormancy renewed", At: at.Add(time.Hour),
	}))

	entries, err := s.Audit().List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "bob", entries[0].User)
	require.Equal(t, domain.AuditDeactivated, entries[0].Action)
	require.Equal(t, at, entries[0].At)
}

func TestConcurrentSubmissionsSingleWinner(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	const writers = 16
	var wg sync.WaitGroup
	errs := make([]error, writers)

	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.Submissions().Record(ctx, domain.Submission{
				User:     "alice",
				Decision: domain.Decision(fmt.Sprintf("yes-%d", i)),
			})
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			require.ErrorIs(t, err, store.ErrAlreadyExists)
		}
	}
	require.Equal(t, 1, wins)
}

func TestPing(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.Ping(context.Background()))
}
