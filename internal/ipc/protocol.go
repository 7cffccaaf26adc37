package ipc

const (
	ObjectPath    = "/io/github/soarinferret/sitewarden"
	InterfaceName = "io.github.soarinferret.sitewarden.Manager"
	ServiceName   = "io.github.soarinferret.sitewarden"
)

// Status is the JSON payload returned by GetStatus.
type Status struct {
	Denying          bool            `json:"denying"`
	Enabled          bool            `json:"enabled"`
	ActiveScheduleID string          `json:"active_schedule_id,omitempty"`
	PausedUntil      string          `json:"paused_until,omitempty"`
	Budget           BudgetStatus    `json:"budget"`
	Sessions         []SessionStatus `json:"sessions,omitempty"`
}

type BudgetStatus struct {
	RemainingMinutes float64 `json:"remaining_minutes"`
	UsedMinutes      float64 `json:"used_minutes"`
	TotalMinutes     float64 `json:"total_minutes"`
}

type SessionStatus struct {
	SiteID          string  `json:"site_id"`
	ConsumerID      string  `json:"consumer_id"`
	MinutesConsumed float64 `json:"minutes_consumed"`
}
