package ipc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/SoarinFerret/SiteWarden/internal/budget"
	"github.com/SoarinFerret/SiteWarden/internal/gate"
	"github.com/SoarinFerret/SiteWarden/internal/schedule"
	"github.com/SoarinFerret/SiteWarden/internal/site"
)

// Manager is the D-Bus object the daemon exports. Every method maps to
// one siwctl subcommand.
type Manager struct {
	Eval   *schedule.Evaluator
	Budget *budget.Manager
	Sites  *site.Registry
	Gate   *gate.Gate

	// SyncSites pushes the site rule set to the enforcement layer
	// after the blocked-site list changes. Optional.
	SyncSites func(ctx context.Context) error

	Now func() time.Time
}

func (m *Manager) sync(ctx context.Context) *dbus.Error {
	if m.SyncSites == nil {
		return nil
	}
	if err := m.SyncSites(ctx); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

func (m *Manager) GetStatus() (string, *dbus.Error) {
	ctx := context.Background()
	now := time.Now()
	if m.Now != nil {
		now = m.Now()
	}

	status := Status{
		Denying:          m.Eval.ShouldDenyAccess(ctx, now),
		Enabled:          m.Eval.Enabled(),
		ActiveScheduleID: m.Eval.ActiveScheduleID(),
	}
	if until := m.Eval.PausedUntil(); !until.IsZero() {
		status.PausedUntil = until.Format(time.RFC3339)
	}

	rem, err := m.Budget.Remaining(ctx)
	if err != nil {
		return "", dbus.MakeFailedError(err)
	}
	status.Budget = BudgetStatus{
		RemainingMinutes: rem.GlobalRemaining,
		UsedMinutes:      rem.UsedToday,
		TotalMinutes:     rem.Total,
	}
	for _, s := range m.Budget.Sessions() {
		status.Sessions = append(status.Sessions, SessionStatus{
			SiteID:          s.SiteID,
			ConsumerID:      s.ConsumerID,
			MinutesConsumed: s.MinutesConsumed,
		})
	}

	return marshal(status)
}

func (m *Manager) Pause(minutes int32) *dbus.Error {
	if err := m.Eval.PauseFor(context.Background(), int(minutes)); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

func (m *Manager) Resume() *dbus.Error {
	if err := m.Eval.Resume(context.Background()); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

func (m *Manager) SetEnabled(enabled bool) *dbus.Error {
	if err := m.Eval.SetEnabled(context.Background(), enabled); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

func (m *Manager) ListSchedules() (string, *dbus.Error) {
	schedules, err := m.Eval.ListSchedules(context.Background())
	if err != nil {
		return "", dbus.MakeFailedError(err)
	}
	return marshal(schedules)
}

func (m *Manager) CreateSchedule(name string, daysJSON string) (string, *dbus.Error) {
	var days map[string][]schedule.TimeBlock
	if daysJSON != "" {
		if err := json.Unmarshal([]byte(daysJSON), &days); err != nil {
			return "", dbus.MakeFailedError(err)
		}
	}
	sched, err := m.Eval.CreateSchedule(context.Background(), name, days)
	if err != nil {
		return "", dbus.MakeFailedError(err)
	}
	return sched.ID, nil
}

func (m *Manager) DeleteSchedule(id string) *dbus.Error {
	if err := m.Eval.DeleteSchedule(context.Background(), id); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

func (m *Manager) SetActiveSchedule(id string) *dbus.Error {
	if err := m.Eval.SetActiveSchedule(context.Background(), id); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

func (m *Manager) ListSites() (string, *dbus.Error) {
	sites, err := m.Sites.List(context.Background())
	if err != nil {
		return "", dbus.MakeFailedError(err)
	}
	return marshal(sites)
}

func (m *Manager) AddSite(pattern string) (string, *dbus.Error) {
	ctx := context.Background()
	s, err := m.Sites.Add(ctx, pattern)
	if err != nil {
		return "", dbus.MakeFailedError(err)
	}
	if derr := m.sync(ctx); derr != nil {
		return s.ID, derr
	}
	return s.ID, nil
}

func (m *Manager) RemoveSite(id string) *dbus.Error {
	ctx := context.Background()
	if err := m.Sites.Remove(ctx, id); err != nil {
		return dbus.MakeFailedError(err)
	}
	return m.sync(ctx)
}

func (m *Manager) SetSiteEnabled(id string, enabled bool) *dbus.Error {
	ctx := context.Background()
	if err := m.Sites.SetEnabled(ctx, id, enabled); err != nil {
		return dbus.MakeFailedError(err)
	}
	return m.sync(ctx)
}

func (m *Manager) AddException(id, pattern string) *dbus.Error {
	ctx := context.Background()
	if err := m.Sites.AddException(ctx, id, pattern); err != nil {
		return dbus.MakeFailedError(err)
	}
	return m.sync(ctx)
}

// SetSiteDailyLimit installs a per-site budget override in minutes.
// Zero or negative clears the override.
func (m *Manager) SetSiteDailyLimit(id string, minutes float64) *dbus.Error {
	var limit *float64
	if minutes > 0 {
		limit = &minutes
	}
	if err := m.Sites.SetDailyLimit(context.Background(), id, limit); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// RecordBlock is called by the enforcement layer whenever it blocks a
// request for the site, to keep the block counter.
func (m *Manager) RecordBlock(id string) *dbus.Error {
	if err := m.Sites.RecordBlock(context.Background(), id); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

func (m *Manager) GetBudgetRemaining() (string, *dbus.Error) {
	rem, err := m.Budget.Remaining(context.Background())
	if err != nil {
		return "", dbus.MakeFailedError(err)
	}
	return marshal(rem)
}

func (m *Manager) GetBudgetHistory() (string, *dbus.Error) {
	history, err := m.Budget.History(context.Background())
	if err != nil {
		return "", dbus.MakeFailedError(err)
	}
	return marshal(history)
}

func (m *Manager) RequestAccess(consumerID, siteID string) *dbus.Error {
	if _, err := m.Gate.RequestAccess(context.Background(), consumerID, siteID); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

func (m *Manager) EndAccess(consumerID string) *dbus.Error {
	if err := m.Gate.EndAccess(context.Background(), consumerID); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

func marshal(v any) (string, *dbus.Error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", dbus.MakeFailedError(err)
	}
	return string(data), nil
}
