package directory

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Shadow mutates accounts through the shadow-utils commands (usermod,
// chpasswd, chage). Arguments are passed as argv arrays and the password
// travels over stdin, so no user-supplied value is ever interpreted by a
// shell.
type Shadow struct {
	// Timeout bounds each individual command. Zero means the caller's
	// context deadline is the only bound.
	Timeout time.Duration
}

func (d *Shadow) Lock(ctx context.Context, user string) error {
	return d.run(ctx, "lock", user, nil, "usermod", "-L", user)
}

func (d *Shadow) SetLoginShell(ctx context.Context, user, shell string) error {
	return d.run(ctx, "set_login_shell", user, nil, "usermod", "-s", shell, user)
}

func (d *Shadow) SetPassword(ctx context.Context, user, password string) error {
	// chpasswd reads "user:password" lines from stdin; the password never
	// appears in the process argument list.
	stdin := strings.NewReader(user + ":" + password + "\n")
	return d.run(ctx, "set_password", user, stdin, "chpasswd")
}

func (d *Shadow) SetPasswordChangeDate(ctx context.Context, user string, date time.Time) error {
	return d.run(ctx, "set_password_change_date", user, nil,
		"chage", "-d", date.Format("2006-01-02"), user)
}

func (d *Shadow) ClearExpiration(ctx context.Context, user string) error {
	return d.run(ctx, "clear_expiration", user, nil, "chage", "-E", "-1", user)
}

func (d *Shadow) run(ctx context.Context, op, user string, stdin *strings.Reader, name string, args ...string) error {
	if !ValidUsername(user) {
		return &Error{Op: op, User: user, Err: fmt.Errorf("invalid username")}
	}

	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = stdin
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			err = fmt.Errorf("%w: %s", err, detail)
		}
		return &Error{Op: op, User: user, Err: err}
	}
	return nil
}
