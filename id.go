package workshop

import "github.com/google/uuid"

// NewID returns a session identifier: a UUIDv7, so ids sort by creation
// time and session log files line up with their sessions.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
