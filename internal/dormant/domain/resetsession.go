package domain

import "time"

// ResetSession is the single-use window in which a user may set a new
// password after opting in. It is Issued when the opt-in is confirmed and
// Completed exactly once; Completed is terminal and sticky.
type ResetSession struct {
	ID        string
	User      string
	TokenHash string // fingerprint of the reset token, never the raw value
	IssuedAt  time.Time
	Used      bool
	UsedAt    *time.Time
}

// Directory mutation sequences tracked per step so a retry after partial
// failure resumes instead of re-applying already-completed steps.
const (
	SeqDeactivate = "deactivate"
	SeqReset      = "reset"
)

// Step names within the deactivate sequence.
const (
	StepLock         = "lock"
	StepDisableShell = "disable_shell"
)

// Step names within the reset sequence.
const (
	StepSetPassword       = "set_password"
	StepPasswordChangeDay = "set_password_change_date"
	StepClearExpiration   = "clear_expiration"
	StepRestoreShell      = "restore_shell"
)

// DeactivateSteps lists the deactivate sequence in execution order.
func DeactivateSteps() []string {
	return []string{StepLock, StepDisableShell}
}

// ResetSteps lists the reset sequence in execution order. StepSetPassword is
// always first: once it succeeds the session is consumed and the step must
// never run again.
func ResetSteps() []string {
	return []string{StepSetPassword, StepPasswordChangeDay, StepClearExpiration, StepRestoreShell}
}
