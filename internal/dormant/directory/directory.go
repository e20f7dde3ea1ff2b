// Package directory defines the Account Directory Service: the external
// collaborator that performs the actual OS-level account mutations. The
// lifecycle engine only ever talks to this interface; it never assumes the
// operations are transactional across calls.
package directory

import (
	"context"
	"fmt"
	"regexp"
	"time"
)

// Directory is the account mutation contract. Each operation is a single
// imperative call that may fail independently of the others. Implementations
// must honor context cancellation and deadlines.
type Directory interface {
	// Lock disables authentication for the account.
	Lock(ctx context.Context, user string) error

	// SetLoginShell replaces the account's login shell.
	SetLoginShell(ctx context.Context, user, shell string) error

	// SetPassword sets the account password. The plaintext is handed over
	// by contract; the directory is responsible for hashing.
	SetPassword(ctx context.Context, user, password string) error

	// SetPasswordChangeDate sets the last-password-change date.
	SetPasswordChangeDate(ctx context.Context, user string, date time.Time) error

	// ClearExpiration removes any account expiration date.
	ClearExpiration(ctx context.Context, user string) error
}

// Error wraps a failed directory operation. Err holds the raw cause
// (including any command output) for logs; user-facing surfaces must use
// Sanitized, which never echoes it.
type Error struct {
	Op   string // logical step, e.g. "lock", "set_password"
	User string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("directory %s for %q: %v", e.Op, e.User, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Sanitized returns a message safe to show an end user.
func (e *Error) Sanitized() string {
	return fmt.Sprintf("account update failed during %s", e.Op)
}

// usernamePattern matches the conservative POSIX portable username set.
var usernamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}$`)

// ValidUsername reports whether user is safe to pass to the directory.
// Anything else is rejected before a process is ever spawned.
func ValidUsername(user string) bool {
	return usernamePattern.MatchString(user)
}
