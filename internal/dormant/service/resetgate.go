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

// ResetService runs the single-use password-reset gate that follows an
// opt-in confirmation. The session issued at confirm time binds the reset
// token to one completion; a replayed completion is terminal and performs
// no password change.
type ResetService struct {
	Store     store.Store
	Directory directory.Directory
	Tokens    TokenStrategy
	Locks     *UserLocks

	// LoginShell is restored when a dormant account comes back to life.
	LoginShell string

	DirectoryTimeout time.Duration
}

// Form validates a GET of the reset form. It checks the session and token
// before any HTML is rendered, so a spent or foreign link never shows the
// password fields.
func (s *ResetService) Form(ctx context.Context, user, token string) (domain.ResetSession, error) {
	if user == "" || token == "" {
		return domain.ResetSession{}, ErrMissingParams
	}

	sess, err := s.Store.ResetSessions().GetByUser(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ResetSession{}, ErrNoResetSession
		}
		return domain.ResetSession{}, err
	}
	if sess.TokenHash != cryptox.FingerprintToken(token) {
		return domain.ResetSession{}, ErrInvalidToken
	}
	if sess.Used {
		return domain.ResetSession{}, ErrAlreadyReset
	}
	if err := s.Tokens.Verify(ctx, user, token); err != nil {
		return domain.ResetSession{}, err
	}
	return sess, nil
}

// Complete processes the reset form submission. Validation failures leave
// the session untouched and the token valid, so the user can resubmit the
// same link. A successful completion spends the session, consumes the
// token, and restores the account through the directory.
func (s *ResetService) Complete(ctx context.Context, user, token, password, confirm string) error {
	log := slogx.FromContext(ctx)

	if user == "" || token == "" {
		return ErrMissingParams
	}
	if password == "" || confirm == "" {
		return ErrPasswordFieldsRequired
	}
	if password != confirm {
		return ErrPasswordMismatch
	}

	unlock := s.Locks.Lock(user)
	defer unlock()

	sess, err := s.Store.ResetSessions().GetByUser(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNoResetSession
		}
		return err
	}
	if sess.TokenHash != cryptox.FingerprintToken(token) {
		return ErrInvalidToken
	}
	if sess.Used {
		// The password was already changed on the completing request.
		// If that request died after the session flipped, finish the
		// remaining restore steps here without touching the password.
		return s.resumeAfterComplete(ctx, user)
	}
	if err := s.Tokens.Verify(ctx, user, token); err != nil {
		return err
	}

	// The password is set before the session is spent: a directory
	// failure here leaves the session open for a clean retry, and
	// re-setting the same password is harmless.
	if err := s.directoryCall(ctx, func(ctx context.Context) error {
		return s.Directory.SetPassword(ctx, user, password)
	}); err != nil {
		return fmt.Errorf("reset %s: %w", domain.StepSetPassword, err)
	}
	if err := s.Store.Progress().MarkDone(ctx, user, domain.SeqReset, domain.StepSetPassword); err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := s.Store.ResetSessions().Complete(ctx, sess.ID, now); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return ErrAlreadyReset
		}
		return err
	}
	if err := s.Tokens.Consume(ctx, user, token); err != nil {
		return err
	}

	if err := s.runRestoreSteps(ctx, user); err != nil {
		return err
	}

	if err := s.Store.OptStates().Set(ctx, domain.OptState{
		User: user, Status: domain.OptedIn, Since: now,
	}); err != nil {
		return err
	}

	if err := s.Store.Audit().Append(ctx, domain.AuditEntry{
		ID:     idx.New().String(),
		User:   user,
		Action: domain.AuditPasswordReset,
		Detail: "password reset completed",
		At:     now,
	}); err != nil {
		log.Error("failed to append audit entry", slog.Any("error", err))
	}

	log.Info("password reset completed", slog.String("user", user))
	return nil
}

// resumeAfterComplete handles a replayed completion against a spent
// session. If every restore step already ran this is the terminal
// already-reset outcome with zero directory calls; otherwise the
// remaining non-password steps are finished.
func (s *ResetService) resumeAfterComplete(ctx context.Context, user string) error {
	done, err := s.Store.Progress().Done(ctx, user, domain.SeqReset)
	if err != nil {
		return err
	}

	remaining := false
	for _, step := range domain.ResetSteps() {
		if !done[step] {
			remaining = true
			break
		}
	}
	if !remaining {
		return ErrAlreadyReset
	}

	slogx.FromContext(ctx).Info("resuming interrupted account restore", slog.String("user", user))
	if err := s.runRestoreSteps(ctx, user); err != nil {
		return err
	}
	return ErrAlreadyReset
}

// runRestoreSteps applies the post-password restore steps, skipping any
// already recorded. The password step is never part of this walk.
func (s *ResetService) runRestoreSteps(ctx context.Context, user string) error {
	done, err := s.Store.Progress().Done(ctx, user, domain.SeqReset)
	if err != nil {
		return err
	}

	for _, step := range domain.ResetSteps() {
		if step == domain.StepSetPassword || done[step] {
			continue
		}

		var stepErr error
		switch step {
		case domain.StepPasswordChangeDay:
			stepErr = s.directoryCall(ctx, func(ctx context.Context) error {
				return s.Directory.SetPasswordChangeDate(ctx, user, time.Now().UTC())
			})
		case domain.StepClearExpiration:
			stepErr = s.directoryCall(ctx, func(ctx context.Context) error {
				return s.Directory.ClearExpiration(ctx, user)
			})
		case domain.StepRestoreShell:
			stepErr = s.directoryCall(ctx, func(ctx context.Context) error {
				return s.Directory.SetLoginShell(ctx, user, s.LoginShell)
			})
		}
		if stepErr != nil {
			return fmt.Errorf("reset %s: %w", step, stepErr)
		}

		if err := s.Store.Progress().MarkDone(ctx, user, domain.SeqReset, step); err != nil {
			return err
		}
	}
	return nil
}

func (s *ResetService) directoryCall(ctx context.Context, fn func(context.Context) error) error {
	if s.DirectoryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.DirectoryTimeout)
		defer cancel()
	}
	return fn(ctx)
}
