package domain

import "time"

// AuditEntry is an append-only record of an irreversible account mutation.
type AuditEntry struct {
	ID     string
	User   string
	Action string
	Detail string
	At     time.Time
}

// Audit actions.
const (
	AuditDeactivated   = "deactivated"
	AuditPasswordReset = "password_reset"
)
