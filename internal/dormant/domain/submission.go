package domain

import "time"

// Decision is a user's one permitted lifecycle choice.
type Decision string

const (
	DecisionYes Decision = "yes" // keep the account; triggers a password reset
	DecisionNo  Decision = "no"  // relinquish the account; triggers deactivation
)

// ParseDecision validates a raw request value.
func ParseDecision(s string) (Decision, bool) {
	switch Decision(s) {
	case DecisionYes, DecisionNo:
		return Decision(s), true
	default:
		return "", false
	}
}

// Submission is the idempotency record of a user's lifecycle decision.
// The first successful write is authoritative; it is never overwritten.
type Submission struct {
	User       string
	Decision   Decision
	RecordedAt time.Time
}
