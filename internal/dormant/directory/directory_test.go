package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidUsername(t *testing.T) {
	t.Parallel()

	valid := []string{"alice", "user01", "_svc", "a-b_c"}
	for _, u := range valid {
		require.True(t, ValidUsername(u), u)
	}

	invalid := []string{
		"", "Alice", "1user", "a b", "user;rm -rf /", "user$(id)",
		"user\n", "-flag", "x:y", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", // 33 chars
	}
	for _, u := range invalid {
		require.False(t, ValidUsername(u), u)
	}
}

func TestErrorSanitizedHidesCause(t *testing.T) {
	t.Parallel()

	err := &Error{
		Op:   "set_password",
		User: "alice",
		Err:  errors.New("exit status 1: chpasswd: PAM failure, /etc/shadow busy"),
	}

	require.Contains(t, err.Error(), "chpasswd")
	require.NotContains(t, err.Sanitized(), "chpasswd")
	require.NotContains(t, err.Sanitized(), "shadow")
	require.Equal(t, "account update failed during set_password", err.Sanitized())
}

func TestShadowRejectsUnsafeUsernameWithoutExec(t *testing.T) {
	t.Parallel()

	d := &Shadow{}
	err := d.Lock(context.Background(), "alice;reboot")

	var dirErr *Error
	require.ErrorAs(t, err, &dirErr)
	require.Equal(t, "lock", dirErr.Op)
}
