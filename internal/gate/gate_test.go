package gate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SoarinFerret/SiteWarden/internal/budget"
	"github.com/SoarinFerret/SiteWarden/internal/clock"
	"github.com/SoarinFerret/SiteWarden/internal/notify"
	"github.com/SoarinFerret/SiteWarden/internal/schedule"
	"github.com/SoarinFerret/SiteWarden/internal/store"
)

var monday10 = time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)

type overrideCall struct {
	consumer string
	site     string
	allow    bool
}

type fakeEnforcer struct {
	mu            sync.Mutex
	enabledCalls  []bool
	overrideCalls []overrideCall
	failEnable    error
	failOverride  error
}

func (f *fakeEnforcer) SetEnabledForAllSites(_ context.Context, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabledCalls = append(f.enabledCalls, enabled)
	return f.failEnable
}

func (f *fakeEnforcer) SetConsumerOverride(_ context.Context, consumerID, siteID string, allow bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overrideCalls = append(f.overrideCalls, overrideCall{consumer: consumerID, site: siteID, allow: allow})
	return f.failOverride
}

func (f *fakeEnforcer) ListSites(context.Context) ([]string, error) {
	return nil, nil
}

func (f *fakeEnforcer) enabled() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bool, len(f.enabledCalls))
	copy(out, f.enabledCalls)
	return out
}

func (f *fakeEnforcer) overrides() []overrideCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]overrideCall, len(f.overrideCalls))
	copy(out, f.overrideCalls)
	return out
}

type fixture struct {
	gate *Gate
	enf  *fakeEnforcer
	eval *schedule.Evaluator
	bm   *budget.Manager
	clk  *clock.ManualClock
	rec  *notify.Recorder
}

func newFixture(t *testing.T, quotaMinutes float64) *fixture {
	t.Helper()
	clk := clock.Manual(monday10)
	st := store.NewMemoryStore()

	eval, err := schedule.NewEvaluator(context.Background(), st, clk)
	require.NoError(t, err)

	bm := budget.NewManager(st, clk, notify.Nop{}, budget.Options{
		DefaultQuotaMinutes: quotaMinutes,
		DrainInterval:       10 * time.Second,
	})

	enf := &fakeEnforcer{}
	rec := &notify.Recorder{}
	return &fixture{
		gate: New(enf, eval, bm, rec, clk, time.Minute),
		enf:  enf,
		eval: eval,
		bm:   bm,
		clk:  clk,
		rec:  rec,
	}
}

// activateSchoolHours installs and activates a Monday 09:00-17:00
// schedule, which denies at the fixture's starting instant.
func activateSchoolHours(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	sched, err := f.eval.CreateSchedule(ctx, "school", map[string][]schedule.TimeBlock{
		"monday": {{Start: 540, End: 1020}},
	})
	require.NoError(t, err)
	require.NoError(t, f.eval.SetActiveSchedule(ctx, sched.ID))
}

func TestApplyVerdict_OnlyChangesReachEnforcer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 30)

	activateSchoolHours(t, f)
	assert.Equal(t, []bool{true}, f.enf.enabled())

	// Same verdict again: no enforcer traffic.
	require.NoError(t, f.eval.Tick(ctx))
	assert.Equal(t, []bool{true}, f.enf.enabled())

	require.NoError(t, f.eval.PauseFor(ctx, 15))
	assert.Equal(t, []bool{true, false}, f.enf.enabled())

	f.clk.Advance(16 * time.Minute)
	require.NoError(t, f.eval.Tick(ctx))
	assert.Equal(t, []bool{true, false, true}, f.enf.enabled())
}

func TestApplyVerdict_EnforcerFailurePropagatesAndRetries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 30)

	f.enf.failEnable = errors.New("dbus unreachable")
	err := f.eval.PauseFor(ctx, 15)
	assert.Error(t, err, "the caller must see the rejected enforcement update")
	assert.Equal(t, []bool{false}, f.enf.enabled())

	// Nothing was marked applied, so the next push retries the same
	// state instead of diffing it away.
	f.enf.failEnable = nil
	require.NoError(t, f.eval.Tick(ctx))
	assert.Equal(t, []bool{false, false}, f.enf.enabled())
}

func TestRequestAccess_InstallsOverride(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 30)

	sess, err := f.gate.RequestAccess(ctx, "tab1", "site-x")
	require.NoError(t, err)
	assert.Equal(t, "site-x", sess.SiteID)

	require.Len(t, f.bm.Sessions(), 1)
	assert.Equal(t, []overrideCall{{consumer: "tab1", site: "site-x", allow: true}}, f.enf.overrides())
}

func TestRequestAccess_OverrideFailureRollsBackSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 30)

	f.enf.failOverride = errors.New("dbus unreachable")
	_, err := f.gate.RequestAccess(ctx, "tab1", "site-x")
	assert.Error(t, err)
	assert.Empty(t, f.bm.Sessions(), "session must not outlive a failed override install")

	// The rollback still attempts the override removal.
	calls := f.enf.overrides()
	require.Len(t, calls, 2)
	assert.True(t, calls[0].allow)
	assert.False(t, calls[1].allow)
}

func TestRequestAccess_SwitchingSitesMovesOverride(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 30)

	_, err := f.gate.RequestAccess(ctx, "tab1", "site-x")
	require.NoError(t, err)
	_, err = f.gate.RequestAccess(ctx, "tab1", "site-y")
	require.NoError(t, err)

	// Old override removed before the new one lands.
	assert.Equal(t, []overrideCall{
		{consumer: "tab1", site: "site-x", allow: true},
		{consumer: "tab1", site: "site-x", allow: false},
		{consumer: "tab1", site: "site-y", allow: true},
	}, f.enf.overrides())

	sessions := f.bm.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "site-y", sessions[0].SiteID)
}

func TestExhaustion_RemovesOverrideAndNotifies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)

	_, err := f.gate.RequestAccess(ctx, "tab1", "site-x")
	require.NoError(t, err)

	f.clk.Advance(2 * time.Minute)
	require.NoError(t, f.bm.DrainNow(ctx))

	assert.Empty(t, f.bm.Sessions())
	calls := f.enf.overrides()
	require.Len(t, calls, 2)
	assert.Equal(t, overrideCall{consumer: "tab1", site: "site-x", allow: false}, calls[1])

	require.NotEmpty(t, f.rec.Notifications)
	n := f.rec.Notifications[len(f.rec.Notifications)-1]
	assert.Equal(t, notify.LevelCritical, n.Level)
	assert.Equal(t, "Time budget exhausted", n.Summary)

	// Further requests are refused until the next daily reset.
	_, err = f.gate.RequestAccess(ctx, "tab2", "site-x")
	assert.ErrorIs(t, err, budget.ErrBudgetExhausted)
}

func TestHandleConsumerClosed_EndsSessionAndOverride(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 30)

	_, err := f.gate.RequestAccess(ctx, "tab1", "site-x")
	require.NoError(t, err)

	f.gate.HandleConsumerClosed(ctx, "tab1")
	assert.Empty(t, f.bm.Sessions())

	calls := f.enf.overrides()
	require.Len(t, calls, 2)
	assert.False(t, calls[1].allow)
	assert.Empty(t, f.rec.Notifications, "a closed tab is not an exhaustion event")
}

func TestEndAccess_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 30)

	_, err := f.gate.RequestAccess(ctx, "tab1", "site-x")
	require.NoError(t, err)

	require.NoError(t, f.gate.EndAccess(ctx, "tab1"))
	require.NoError(t, f.gate.EndAccess(ctx, "tab1"))
	assert.Empty(t, f.bm.Sessions())

	calls := f.enf.overrides()
	require.Len(t, calls, 2, "a second end must not touch the enforcer again")
}
