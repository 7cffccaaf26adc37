// Package budget tracks the daily metered-access quota and the
// concurrently active pay-to-access sessions draining it.
package budget

import (
	"time"
)

// DayRecord is one logical day of budget consumption. Date is the day
// key; a mismatch against the current logical day triggers
// archive-then-reset before any use.
type DayRecord struct {
	Date        string             `json:"date"`
	UsedMinutes float64            `json:"used_minutes"`
	PerSite     map[string]float64 `json:"per_site,omitempty"`

	// Warned lists threshold percentages already signaled today, so
	// warnings fire once per day.
	Warned []int `json:"warned,omitempty"`
}

func (d *DayRecord) addUse(siteID string, minutes float64) {
	d.UsedMinutes += minutes
	if d.PerSite == nil {
		d.PerSite = make(map[string]float64)
	}
	d.PerSite[siteID] += minutes
}

func (d *DayRecord) hasWarned(threshold int) bool {
	for _, w := range d.Warned {
		if w == threshold {
			return true
		}
	}
	return false
}

// Budget is the persisted daily budget record.
type Budget struct {
	QuotaMinutes float64   `json:"quota_minutes"`
	ResetTime    int       `json:"reset_time"` // minute of day the logical day rolls over
	Today        DayRecord `json:"today"`
}

// historyLimit bounds the archived-day ring.
const historyLimit = 30

// dayKey computes the logical day for an instant: the calendar date
// after shifting the reset time back to midnight. With the default
// reset of 00:00 this is the plain local date.
func dayKey(now time.Time, resetMinute int) string {
	return now.Add(-time.Duration(resetMinute) * time.Minute).Format("2006-01-02")
}

// Remaining is the answer to a budget query.
type Remaining struct {
	GlobalRemaining float64 `json:"global_remaining"`
	UsedToday       float64 `json:"used_today"`
	Total           float64 `json:"total"`
}

// Availability is the answer to a per-site access check. SiteRemaining
// is nil unless the site carries its own quota override.
type Availability struct {
	CanAccess       bool     `json:"can_access"`
	GlobalRemaining float64  `json:"global_remaining"`
	SiteRemaining   *float64 `json:"site_remaining,omitempty"`
}
