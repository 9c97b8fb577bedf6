package model

import "time"

// SessionSummary is the derived view of a session: it has no row of its own
// and exists only while at least one message carries its id.
type SessionSummary struct {
	SessionID   string    `json:"session_id"`
	LastUpdated time.Time `json:"last_updated"`
}
