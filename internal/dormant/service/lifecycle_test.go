package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/dormant/internal/dormant/domain"
	"github.com/aussiebroadwan/dormant/internal/dormant/store"
	"github.com/aussiebroadwan/dormant/internal/dormant/store/drivers/flatfile"
	"github.com/aussiebroadwan/dormant/pkg/cryptox"
)

// fakeDirectory records every call and can be told to fail a named
// operation, so tests can assert exactly which account mutations ran.
type fakeDirectory struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error

	passwords map[string]string
	shells    map[string]string
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		calls:     make(map[string]int),
		fail:      make(map[string]error),
		passwords: make(map[string]string),
		shells:    make(map[string]string),
	}
}

func (d *fakeDirectory) record(op string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[op]++
	return d.fail[op]
}

func (d *fakeDirectory) count(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[op]
}

func (d *fakeDirectory) total() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		n += c
	}
	return n
}

func (d *fakeDirectory) Lock(ctx context.Context, user string) error {
	return d.record("lock")
}

func (d *fakeDirectory) SetLoginShell(ctx context.Context, user, shell string) error {
	if err := d.record("set_shell"); err != nil {
		return err
	}
	d.mu.Lock()
	d.shells[user] = shell
	d.mu.Unlock()
	return nil
}

func (d *fakeDirectory) SetPassword(ctx context.Context, user, password string) error {
	if err := d.record("set_password"); err != nil {
		return err
	}
	d.mu.Lock()
	d.passwords[user] = password
	d.mu.Unlock()
	return nil
}

func (d *fakeDirectory) SetPasswordChangeDate(ctx context.Context, user string, day time.Time) error {
	return d.record("set_change_date")
}

func (d *fakeDirectory) ClearExpiration(ctx context.Context, user string) error {
	return d.record("clear_expiration")
}

type lifecycleFixture struct {
	svc   *LifecycleService
	store store.Store
	dir   *fakeDirectory
	now   time.Time
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()

	st, err := flatfile.NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	dir := newFakeDirectory()

	return &lifecycleFixture{
		svc: &LifecycleService{
			Store:        st,
			Directory:    dir,
			Tokens:       &HMACStrategy{Secret: testSecret, Now: fixedClock(now)},
			Locks:        NewUserLocks(),
			TrackOptOut:  true,
			NologinShell: "/usr/sbin/nologin",
		},
		store: st,
		dir:   dir,
		now:   now,
	}
}

func (f *lifecycleFixture) issue(t *testing.T, user string) string {
	t.Helper()
	token, err := f.svc.Tokens.Issue(context.Background(), user)
	require.NoError(t, err)
	return token
}

func TestLifecycleConfirmYes(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t)
	token := f.issue(t, "alice")

	resetToken, err := f.svc.Confirm(ctx, "alice", token, domain.DecisionYes)
	require.NoError(t, err)
	require.NotEmpty(t, resetToken)
	require.NotEqual(t, token, resetToken)

	sub, err := f.store.Submissions().Get(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, domain.DecisionYes, sub.Decision)

	state, err := f.store.OptStates().Get(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, domain.OptedIn, state.Status)

	sess, err := f.store.ResetSessions().GetByUser(ctx, "alice")
	require.NoError(t, err)
	require.False(t, sess.Used)

	// An opt-in touches no account attributes.
	require.Zero(t, f.dir.total())

	// A second click on the same link is a conflict, still with no
	// account mutations and no replacement session.
	_, err = f.svc.Confirm(ctx, "alice", token, domain.DecisionYes)
	require.ErrorIs(t, err, ErrAlreadyDecided)
	require.Zero(t, f.dir.total())

	again, err := f.store.ResetSessions().GetByUser(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, sess.ID, again.ID)
}

func TestLifecycleConfirmNo(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t)
	token := f.issue(t, "bob")

	_, err := f.svc.Confirm(ctx, "bob", token, domain.DecisionNo)
	require.NoError(t, err)

	require.Equal(t, 1, f.dir.count("lock"))
	require.Equal(t, 1, f.dir.count("set_shell"))
	require.Equal(t, "/usr/sbin/nologin", f.dir.shells["bob"])

	sub, err := f.store.Submissions().Get(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, domain.DecisionNo, sub.Decision)

	state, err := f.store.OptStates().Get(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, domain.OptedOut, state.Status)

	entries, err := f.store.Audit().List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, domain.AuditDeactivated, entries[0].Action)
}

func TestLifecycleConfirmIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t)
	token := f.issue(t, "bob")

	_, err := f.svc.Confirm(ctx, "bob", token, domain.DecisionNo)
	require.NoError(t, err)
	callsAfterFirst := f.dir.total()

	// Replaying the link, with either answer, is a conflict with zero
	// further account mutations.
	_, err = f.svc.Confirm(ctx, "bob", token, domain.DecisionNo)
	require.ErrorIs(t, err, ErrAlreadyDecided)

	_, err = f.svc.Confirm(ctx, "bob", token, domain.DecisionYes)
	require.ErrorIs(t, err, ErrAlreadyDecided)

	require.Equal(t, callsAfterFirst, f.dir.total())

	sub, err := f.store.Submissions().Get(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, domain.DecisionNo, sub.Decision)
}

// flakyOptStates fails Set a configured number of times before delegating.
type flakyOptStates struct {
	store.OptStates
	failures int
}

func (f *flakyOptStates) Set(ctx context.Context, state domain.OptState) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("store unavailable")
	}
	return f.OptStates.Set(ctx, state)
}

type flakyStore struct {
	store.Store
	optStates *flakyOptStates
}

func (f *flakyStore) OptStates() store.OptStates { return f.optStates }

func TestLifecycleConfirmYesRetriesAfterStoreFailure(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t)
	f.svc.Store = &flakyStore{
		Store:     f.store,
		optStates: &flakyOptStates{OptStates: f.store.OptStates(), failures: 1},
	}
	token := f.issue(t, "alice")

	_, err := f.svc.Confirm(ctx, "alice", token, domain.DecisionYes)
	require.Error(t, err)

	// The failed attempt records no decision, so the retry is not shut
	// out as a duplicate with no session to show for it.
	_, err = f.store.Submissions().Get(ctx, "alice")
	require.ErrorIs(t, err, store.ErrNotFound)

	resetToken, err := f.svc.Confirm(ctx, "alice", token, domain.DecisionYes)
	require.NoError(t, err)
	require.NotEmpty(t, resetToken)

	sess, err := f.store.ResetSessions().GetByUser(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, cryptox.FingerprintToken(resetToken), sess.TokenHash)
}

func TestLifecycleConfirmValidation(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t)

	t.Run("missing params", func(t *testing.T) {
		_, err := f.svc.Confirm(ctx, "", "tok", domain.DecisionYes)
		require.ErrorIs(t, err, ErrMissingParams)

		_, err = f.svc.Confirm(ctx, "alice", "", domain.DecisionYes)
		require.ErrorIs(t, err, ErrMissingParams)
	})

	t.Run("bad token", func(t *testing.T) {
		_, err := f.svc.Confirm(ctx, "alice", "forged:202603140930", domain.DecisionYes)
		require.ErrorIs(t, err, ErrInvalidToken)
		require.Zero(t, f.dir.total())
	})

	t.Run("token for another user", func(t *testing.T) {
		token := f.issue(t, "alice")
		_, err := f.svc.Confirm(ctx, "mallory", token, domain.DecisionNo)
		require.ErrorIs(t, err, ErrInvalidToken)
		require.Zero(t, f.dir.total())
	})
}

func TestLifecycleDeactivateResumesAfterPartialFailure(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t)
	token := f.issue(t, "bob")

	f.dir.fail["set_shell"] = errors.New("directory unavailable")

	_, err := f.svc.Confirm(ctx, "bob", token, domain.DecisionNo)
	require.Error(t, err)

	// The ledger stays empty after a partial failure so the retry is
	// not shut out as a duplicate.
	_, err = f.store.Submissions().Get(ctx, "bob")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.Equal(t, 1, f.dir.count("lock"))

	f.dir.fail = map[string]error{}
	_, err = f.svc.Confirm(ctx, "bob", token, domain.DecisionNo)
	require.NoError(t, err)

	// The completed lock step is not re-applied on the retry.
	require.Equal(t, 1, f.dir.count("lock"))
	require.Equal(t, 2, f.dir.count("set_shell"))

	sub, err := f.store.Submissions().Get(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, domain.DecisionNo, sub.Decision)
}

func TestLifecycleDeactivateRoute(t *testing.T) {
	ctx := context.Background()

	t.Run("token required by default", func(t *testing.T) {
		f := newLifecycleFixture(t)

		err := f.svc.Deactivate(ctx, "bob", "")
		require.ErrorIs(t, err, ErrMissingParams)

		err = f.svc.Deactivate(ctx, "bob", "bad:202603140930")
		require.ErrorIs(t, err, ErrInvalidToken)
		require.Zero(t, f.dir.total())

		err = f.svc.Deactivate(ctx, "bob", f.issue(t, "bob"))
		require.NoError(t, err)
		require.Equal(t, 1, f.dir.count("lock"))
	})

	t.Run("open mode skips the token gate", func(t *testing.T) {
		f := newLifecycleFixture(t)
		f.svc.OpenDeactivate = true

		require.NoError(t, f.svc.Deactivate(ctx, "bob", ""))
		require.Equal(t, 1, f.dir.count("lock"))

		require.ErrorIs(t, f.svc.Deactivate(ctx, "bob", ""), ErrAlreadyDecided)
		require.Equal(t, 1, f.dir.count("lock"))
	})
}

func TestLifecycleOptOutTrackingDisabled(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t)
	f.svc.TrackOptOut = false

	_, err := f.svc.Confirm(ctx, "bob", f.issue(t, "bob"), domain.DecisionNo)
	require.NoError(t, err)

	_, err = f.store.OptStates().Get(ctx, "bob")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestLifecycleConcurrentConfirmSingleWinner(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t)
	token := f.issue(t, "bob")

	const n = 8
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Confirm(ctx, "bob", token, domain.DecisionNo)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var wins, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrAlreadyDecided):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, n-1, conflicts)
	require.Equal(t, 1, f.dir.count("lock"))
}
