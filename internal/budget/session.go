package budget

import "time"

// EndReason records why a session ended.
type EndReason string

const (
	ReasonExplicit  EndReason = "explicit"
	ReasonClosed    EndReason = "closed"
	ReasonNavigated EndReason = "navigated"
	ReasonExhausted EndReason = "exhausted"
	ReasonError     EndReason = "error"
)

// Session is one consumer's metered grant for one site. Sessions are
// ephemeral: they live only inside the Manager and are never persisted.
type Session struct {
	SiteID          string
	ConsumerID      string
	StartedAt       time.Time
	LastDrainedAt   time.Time
	MinutesConsumed float64
}
