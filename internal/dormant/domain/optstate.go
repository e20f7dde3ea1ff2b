package domain

import "time"

// OptStatus is the user's recorded choice to keep or relinquish access.
type OptStatus string

const (
	OptedIn  OptStatus = "opted_in"
	OptedOut OptStatus = "opted_out"
)

// OptState records which list a user is currently on. A user is on exactly
// one list at a time; recording one clears the other.
type OptState struct {
	User   string
	Status OptStatus
	Since  time.Time
}
