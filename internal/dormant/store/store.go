package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/dormant/internal/dormant/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (flatfile,
// sqlite) implement this. It exposes sub-repositories to keep concerns tidy
// and testable. Every repository method is safe for concurrent use; the
// driver serialises read-check-then-write sequences internally.
type Store interface {
	Submissions() Submissions
	OptStates() OptStates
	ResetSessions() ResetSessions
	ActionTokens() ActionTokens
	Progress() Progress
	Audit() Audit

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the backing store is reachable and writable.
	Ping(ctx context.Context) error
}

// Submissions is the ledger of each user's one permitted lifecycle decision.
type Submissions interface {
	// Get returns the recorded decision for a user, or ErrNotFound.
	Get(ctx context.Context, user string) (domain.Submission, error)

	// Record persists a decision. The first write for a user wins; a second
	// write returns ErrAlreadyExists and leaves the stored record untouched.
	Record(ctx context.Context, s domain.Submission) error

	// List returns every recorded submission.
	List(ctx context.Context) ([]domain.Submission, error)
}

// OptStates persists mutually exclusive opt-in/opt-out status.
type OptStates interface {
	// Get returns the user's current status, or ErrNotFound.
	Get(ctx context.Context, user string) (domain.OptState, error)

	// Set records a status for the user, atomically clearing any prior
	// record of either status. Mutual exclusivity is a post-condition.
	Set(ctx context.Context, state domain.OptState) error
}

// ResetSessions persists the single-use password-reset sessions.
type ResetSessions interface {
	// Create stores a freshly issued session, replacing any prior unused
	// session for the same user.
	Create(ctx context.Context, s domain.ResetSession) error

	// GetByUser returns the user's session, or ErrNotFound.
	GetByUser(ctx context.Context, user string) (domain.ResetSession, error)

	// Complete atomically flips Used from false to true. It returns
	// ErrAlreadyExists if the session was already used, so exactly one
	// caller ever observes the transition.
	Complete(ctx context.Context, id string, at time.Time) error

	// DeleteExpired removes unused sessions issued before cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) error
}

// ActionTokens backs the opaque token strategy: a single-use mapping of
// token fingerprint to user, destroyed on first consumption.
type ActionTokens interface {
	// Insert stores a fingerprint -> user mapping.
	Insert(ctx context.Context, fingerprint, user string, issuedAt time.Time) error

	// Lookup returns the user and issuance time for a fingerprint, or
	// ErrNotFound.
	Lookup(ctx context.Context, fingerprint string) (user string, issuedAt time.Time, err error)

	// Delete removes a fingerprint. Deleting an absent fingerprint returns
	// ErrNotFound so consumption races resolve to exactly one winner.
	Delete(ctx context.Context, fingerprint string) error

	// DeleteExpired removes tokens issued before cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) error
}

// Progress records which steps of a directory mutation sequence have
// completed for a user, so a retry resumes rather than re-applies.
type Progress interface {
	// MarkDone records that step of sequence seq completed for user.
	// Marking an already-done step is a no-op.
	MarkDone(ctx context.Context, user, seq, step string) error

	// Done returns the set of completed steps for (user, seq).
	Done(ctx context.Context, user, seq string) (map[string]bool, error)
}

// Audit is the append-only log of irreversible mutations. There is no query
// surface; List exists for housekeeping and tests.
type Audit interface {
	Append(ctx context.Context, e domain.AuditEntry) error
	List(ctx context.Context) ([]domain.AuditEntry, error)
}
