package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/dormant/internal/dormant/directory"
	"github.com/aussiebroadwan/dormant/internal/dormant/domain"
	"github.com/aussiebroadwan/dormant/internal/dormant/store"
	"github.com/aussiebroadwan/dormant/pkg/cryptox"
	"github.com/aussiebroadwan/dormant/pkg/idx"
	"github.com/aussiebroadwan/dormant/pkg/slogx"
)

// LifecycleService orchestrates the two inbound actions driven by emailed
// links: confirming a lifecycle decision and directly deactivating an
// account. All side effects go through the Account Directory Service; all
// persisted checks run under a per-user lock.
type LifecycleService struct {
	Store     store.Store
	Directory directory.Directory
	Tokens    TokenStrategy
	Locks     *UserLocks

	// TrackOptOut controls whether "no" decisions are recorded on the
	// opt-out list (some deployments only track opt-ins).
	TrackOptOut bool

	// OpenDeactivate allows the direct /deactivate path without a token.
	// Off by default; only for deployments that gate the route upstream.
	OpenDeactivate bool

	// NologinShell is assigned when an account is deactivated.
	NologinShell string

	// DirectoryTimeout bounds each individual directory call. Timeouts
	// surface as directory errors and are never retried automatically.
	DirectoryTimeout time.Duration
}

// Confirm processes a response=yes|no action link. On "yes" it records the
// decision, opts the user in, and issues a fresh single-use reset token for
// the password-reset gate, which it returns. On "no" it deactivates the
// account. A repeated confirm observes ErrAlreadyDecided and performs no
// directory calls.
func (s *LifecycleService) Confirm(ctx context.Context, user, token string, decision domain.Decision) (string, error) {
	log := slogx.FromContext(ctx)

	if user == "" || token == "" {
		return "", ErrMissingParams
	}

	if err := s.Tokens.Verify(ctx, user, token); err != nil {
		log.Warn("confirm rejected: token verification failed", slog.String("user", user))
		return "", err
	}

	unlock := s.Locks.Lock(user)
	defer unlock()

	// The ledger is checked before any side effect; write-time conflict
	// detection alone must never be what suppresses a duplicate mutation.
	if _, err := s.Store.Submissions().Get(ctx, user); err == nil {
		return "", ErrAlreadyDecided
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	switch decision {
	case domain.DecisionYes:
		return s.confirmYes(ctx, user, token)
	case domain.DecisionNo:
		return "", s.confirmNo(ctx, user, token)
	default:
		return "", ErrMissingParams
	}
}

func (s *LifecycleService) confirmYes(ctx context.Context, user, token string) (string, error) {
	log := slogx.FromContext(ctx)
	now := time.Now().UTC()

	// The ledger write comes last: a failure while setting up the opt-in
	// state or the reset session leaves the decision unrecorded, so the
	// user can retry instead of being shut out with no session issued.
	// Set and Create are both safe to repeat on that retry.
	if err := s.Store.OptStates().Set(ctx, domain.OptState{
		User: user, Status: domain.OptedIn, Since: now,
	}); err != nil {
		return "", err
	}

	resetToken, err := s.Tokens.Issue(ctx, user)
	if err != nil {
		return "", err
	}

	if err := s.Store.ResetSessions().Create(ctx, domain.ResetSession{
		ID:        idx.New().String(),
		User:      user,
		TokenHash: cryptox.FingerprintToken(resetToken),
		IssuedAt:  now,
	}); err != nil {
		return "", err
	}

	if err := s.Store.Submissions().Record(ctx, domain.Submission{
		User: user, Decision: domain.DecisionYes, RecordedAt: now,
	}); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return "", ErrAlreadyDecided
		}
		return "", err
	}

	// The confirm link is spent only once the decision is on record; a
	// failure here is logged, not surfaced, since replays of the link
	// land on the ledger conflict anyway.
	if err := s.Tokens.Consume(ctx, user, token); err != nil {
		log.Warn("failed to consume confirm token", slog.String("user", user), slog.Any("error", err))
	}

	log.Info("opt-in confirmed, reset session issued", slog.String("user", user))
	return resetToken, nil
}

func (s *LifecycleService) confirmNo(ctx context.Context, user, token string) error {
	log := slogx.FromContext(ctx)
	now := time.Now().UTC()

	// Directory first: if deactivation fails the ledger stays empty and
	// the user may retry; completed steps are skipped on that retry.
	if err := s.runDeactivateSequence(ctx, user); err != nil {
		return err
	}

	if err := s.Store.Submissions().Record(ctx, domain.Submission{
		User: user, Decision: domain.DecisionNo, RecordedAt: now,
	}); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return ErrAlreadyDecided
		}
		return err
	}

	if s.TrackOptOut {
		if err := s.Store.OptStates().Set(ctx, domain.OptState{
			User: user, Status: domain.OptedOut, Since: now,
		}); err != nil {
			return err
		}
	}

	if token != "" {
		if err := s.Tokens.Consume(ctx, user, token); err != nil {
			return err
		}
	}

	if err := s.Store.Audit().Append(ctx, domain.AuditEntry{
		ID:     idx.New().String(),
		User:   user,
		Action: domain.AuditDeactivated,
		Detail: "deactivated via email link",
		At:     now,
	}); err != nil {
		log.Error("failed to append audit entry", slog.Any("error", err))
	}

	log.Info("account deactivated", slog.String("user", user))
	return nil
}

// Deactivate serves the direct /deactivate/{username} path. It is gated by
// the same token strategy unless OpenDeactivate is set, and is idempotent
// against the decision ledger exactly like Confirm.
func (s *LifecycleService) Deactivate(ctx context.Context, user, token string) error {
	if user == "" {
		return ErrMissingParams
	}

	if s.OpenDeactivate {
		// Unverified tokens are ignored, not consumed.
		token = ""
	} else {
		if token == "" {
			return ErrMissingParams
		}
		if err := s.Tokens.Verify(ctx, user, token); err != nil {
			return err
		}
	}

	unlock := s.Locks.Lock(user)
	defer unlock()

	if _, err := s.Store.Submissions().Get(ctx, user); err == nil {
		return ErrAlreadyDecided
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	return s.confirmNo(ctx, user, token)
}

// runDeactivateSequence applies the deactivate directory steps, skipping
// any recorded as done by an earlier partial attempt. A failure surfaces
// after the completed prefix is recorded, so a retry resumes rather than
// re-applies.
func (s *LifecycleService) runDeactivateSequence(ctx context.Context, user string) error {
	done, err := s.Store.Progress().Done(ctx, user, domain.SeqDeactivate)
	if err != nil {
		return err
	}

	for _, step := range domain.DeactivateSteps() {
		if done[step] {
			continue
		}

		var stepErr error
		switch step {
		case domain.StepLock:
			stepErr = s.directoryCall(ctx, func(ctx context.Context) error {
				return s.Directory.Lock(ctx, user)
			})
		case domain.StepDisableShell:
			stepErr = s.directoryCall(ctx, func(ctx context.Context) error {
				return s.Directory.SetLoginShell(ctx, user, s.NologinShell)
			})
		}
		if stepErr != nil {
			return fmt.Errorf("deactivate %s: %w", step, stepErr)
		}

		if err := s.Store.Progress().MarkDone(ctx, user, domain.SeqDeactivate, step); err != nil {
			return err
		}
	}
	return nil
}

// directoryCall bounds a single directory operation by the configured
// timeout. A timeout is an error to surface, never an automatic retry: the
// remote mutation may or may not have applied.
func (s *LifecycleService) directoryCall(ctx context.Context, fn func(context.Context) error) error {
	if s.DirectoryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.DirectoryTimeout)
		defer cancel()
	}
	return fn(ctx)
}
