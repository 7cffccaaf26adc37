package budget

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/SoarinFerret/SiteWarden/internal/clock"
	"github.com/SoarinFerret/SiteWarden/internal/notify"
	"github.com/SoarinFerret/SiteWarden/internal/store"
)

var ErrBudgetExhausted = errors.New("daily time budget exhausted")

// SiteQuota resolves a per-site quota override in minutes. Returns nil
// when the site has no override.
type SiteQuota func(ctx context.Context, siteID string) (*float64, error)

// EndHandler observes session ends, whatever the reason. Handlers run
// after the session is gone from the manager.
type EndHandler func(sess Session, reason EndReason)

type Options struct {
	DefaultQuotaMinutes float64
	ResetMinute         int
	WarnThresholds      []int
	DrainInterval       time.Duration
	SiteQuota           SiteQuota
}

// Manager owns the persisted daily budget and every active session.
// Sessions for different consumers drain on one shared tick; each drain
// is a read-modify-write against the persisted budget so the shared
// quota stays consistent.
type Manager struct {
	store    store.Store
	clock    clock.Clock
	notifier notify.Notifier
	opts     Options

	mu          sync.Mutex
	sessions    map[string]*Session
	endHandlers []EndHandler
}

func NewManager(st store.Store, clk clock.Clock, notifier notify.Notifier, opts Options) *Manager {
	if opts.DrainInterval <= 0 {
		opts.DrainInterval = 10 * time.Second
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	// Highest threshold first so a single drop past several thresholds
	// warns in descending order.
	sort.Sort(sort.Reverse(sort.IntSlice(opts.WarnThresholds)))
	return &Manager{
		store:    st,
		clock:    clk,
		notifier: notifier,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// OnSessionEnd registers a handler for session ends of any reason.
func (m *Manager) OnSessionEnd(h EndHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endHandlers = append(m.endHandlers, h)
}

// Run drives the shared drain loop until ctx is cancelled. One ticker
// serves every active session.
func (m *Manager) Run(ctx context.Context) error {
	ticker := m.clock.NewTicker(m.opts.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final drain so consumed time is not lost on shutdown.
			if err := m.DrainNow(context.WithoutCancel(ctx)); err != nil {
				log.Warn().Err(err).Msg("final budget drain failed")
			}
			return nil
		case <-ticker.Chan():
			if err := m.DrainNow(ctx); err != nil {
				log.Warn().Err(err).Msg("budget drain failed")
			}
		}
	}
}

// Remaining reports the global budget state, performing the lazy
// day-rollover first.
func (m *Manager) Remaining(ctx context.Context) (Remaining, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, err := m.loadCurrentLocked(ctx)
	if err != nil {
		return Remaining{}, err
	}
	return remainingOf(b), nil
}

func remainingOf(b *Budget) Remaining {
	rem := b.QuotaMinutes - b.Today.UsedMinutes
	if rem < 0 {
		rem = 0
	}
	return Remaining{GlobalRemaining: rem, UsedToday: b.Today.UsedMinutes, Total: b.QuotaMinutes}
}

// CheckAvailable decides whether a metered session could start for the
// site right now. SiteRemaining is populated only when the site carries
// its own quota override.
func (m *Manager) CheckAvailable(ctx context.Context, siteID string) (Availability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkAvailableLocked(ctx, siteID)
}

func (m *Manager) checkAvailableLocked(ctx context.Context, siteID string) (Availability, error) {
	b, err := m.loadCurrentLocked(ctx)
	if err != nil {
		return Availability{}, err
	}

	rem := remainingOf(b)
	avail := Availability{
		CanAccess:       rem.GlobalRemaining > 0,
		GlobalRemaining: rem.GlobalRemaining,
	}

	if m.opts.SiteQuota != nil {
		override, err := m.opts.SiteQuota(ctx, siteID)
		if err != nil {
			return Availability{}, fmt.Errorf("failed to resolve site quota: %w", err)
		}
		if override != nil {
			siteRem := *override - b.Today.PerSite[siteID]
			if siteRem < 0 {
				siteRem = 0
			}
			avail.SiteRemaining = &siteRem
			if siteRem <= 0 {
				avail.CanAccess = false
			}
		}
	}
	return avail, nil
}

// StartSession grants a metered session for one consumer. A consumer
// holds at most one session: re-requesting the same site returns the
// existing grant, switching sites ends the old grant first.
func (m *Manager) StartSession(ctx context.Context, siteID, consumerID string) (Session, error) {
	m.mu.Lock()

	avail, err := m.checkAvailableLocked(ctx, siteID)
	if err != nil {
		m.mu.Unlock()
		return Session{}, err
	}
	if !avail.CanAccess {
		m.mu.Unlock()
		return Session{}, fmt.Errorf("%w: site %s", ErrBudgetExhausted, siteID)
	}

	var ended []endedSession
	if existing, ok := m.sessions[consumerID]; ok {
		if existing.SiteID == siteID {
			s := *existing
			m.mu.Unlock()
			return s, nil
		}
		ended, err = m.endLocked(ctx, consumerID, ReasonNavigated)
		if err != nil {
			m.mu.Unlock()
			return Session{}, err
		}
	}

	now := m.clock.Now()
	sess := &Session{
		SiteID:        siteID,
		ConsumerID:    consumerID,
		StartedAt:     now,
		LastDrainedAt: now,
	}
	m.sessions[consumerID] = sess
	s := *sess
	m.mu.Unlock()

	m.fireEnds(ended)
	log.Info().Str("site", siteID).Str("consumer", consumerID).Msg("budget session started")
	return s, nil
}

// EndSession ends one consumer's session after a final drain. Ending a
// session that does not exist is a no-op.
func (m *Manager) EndSession(ctx context.Context, consumerID string, reason EndReason) error {
	m.mu.Lock()
	ended, err := m.endLocked(ctx, consumerID, reason)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	m.fireEnds(ended)
	return nil
}

// Sessions returns a snapshot of the active sessions.
func (m *Manager) Sessions() []Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, *s)
	}
	return out
}

// DrainNow performs one drain pass over every active session: charge
// elapsed wall time to the shared budget, persist, emit threshold
// warnings, and force-end everything once the quota is gone.
func (m *Manager) DrainNow(ctx context.Context) error {
	m.mu.Lock()

	b, err := m.loadCurrentLocked(ctx)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	now := m.clock.Now()
	deltas := make(map[string]float64)
	for id, s := range m.sessions {
		delta := now.Sub(s.LastDrainedAt).Minutes()
		if delta <= 0 {
			continue
		}
		deltas[id] = delta
		b.Today.addUse(s.SiteID, delta)
	}

	warnings := m.collectWarningsLocked(b)

	if len(deltas) > 0 || len(warnings) > 0 {
		if err := m.store.Set(ctx, store.KeyTimeBudget, b); err != nil {
			// Sessions keep their old LastDrainedAt, so the elapsed
			// time is re-charged on the next successful drain.
			m.mu.Unlock()
			return fmt.Errorf("failed to persist budget: %w", err)
		}
	}

	for id, delta := range deltas {
		s := m.sessions[id]
		s.MinutesConsumed += delta
		s.LastDrainedAt = now
	}

	ended, err := m.endExhaustedLocked(ctx, b)
	m.mu.Unlock()

	for _, w := range warnings {
		m.notifier.Notify(notify.LevelWarn, "Time budget running low",
			fmt.Sprintf("Less than %d%% of today's browsing budget remains", w))
	}
	m.fireEnds(ended)
	return err
}

type endedSession struct {
	sess   Session
	reason EndReason
}

// endExhaustedLocked force-ends sessions whose quota ran out. Global
// exhaustion ends everything; a per-site override ends only that
// site's sessions.
func (m *Manager) endExhaustedLocked(ctx context.Context, b *Budget) ([]endedSession, error) {
	var ended []endedSession

	globalOut := b.Today.UsedMinutes >= b.QuotaMinutes
	for id, s := range m.sessions {
		out := globalOut
		if !out && m.opts.SiteQuota != nil {
			override, err := m.opts.SiteQuota(ctx, s.SiteID)
			if err != nil {
				return ended, fmt.Errorf("failed to resolve site quota: %w", err)
			}
			out = override != nil && b.Today.PerSite[s.SiteID] >= *override
		}
		if out {
			delete(m.sessions, id)
			ended = append(ended, endedSession{sess: *s, reason: ReasonExhausted})
		}
	}
	return ended, nil
}

// endLocked removes one session after charging its final partial drain.
func (m *Manager) endLocked(ctx context.Context, consumerID string, reason EndReason) ([]endedSession, error) {
	s, ok := m.sessions[consumerID]
	if !ok {
		return nil, nil
	}

	b, err := m.loadCurrentLocked(ctx)
	if err != nil {
		return nil, err
	}

	delta := m.clock.Now().Sub(s.LastDrainedAt).Minutes()
	if delta > 0 {
		b.Today.addUse(s.SiteID, delta)
		if err := m.store.Set(ctx, store.KeyTimeBudget, b); err != nil {
			return nil, fmt.Errorf("failed to persist budget: %w", err)
		}
		s.MinutesConsumed += delta
		s.LastDrainedAt = m.clock.Now()
	}

	delete(m.sessions, consumerID)
	return []endedSession{{sess: *s, reason: reason}}, nil
}

func (m *Manager) fireEnds(ended []endedSession) {
	if len(ended) == 0 {
		return
	}
	m.mu.Lock()
	handlers := make([]EndHandler, len(m.endHandlers))
	copy(handlers, m.endHandlers)
	m.mu.Unlock()

	for _, e := range ended {
		log.Info().
			Str("site", e.sess.SiteID).
			Str("consumer", e.sess.ConsumerID).
			Str("reason", string(e.reason)).
			Float64("minutes", e.sess.MinutesConsumed).
			Msg("budget session ended")
		for _, h := range handlers {
			h(e.sess, e.reason)
		}
	}
}

// collectWarningsLocked records thresholds newly crossed below and
// returns them. Recorded thresholds do not re-fire until the next
// daily reset.
func (m *Manager) collectWarningsLocked(b *Budget) []int {
	if b.QuotaMinutes <= 0 {
		return nil
	}
	remaining := b.QuotaMinutes - b.Today.UsedMinutes
	pct := remaining / b.QuotaMinutes * 100

	var fired []int
	for _, t := range m.opts.WarnThresholds {
		if pct < float64(t) && !b.Today.hasWarned(t) {
			b.Today.Warned = append(b.Today.Warned, t)
			fired = append(fired, t)
		}
	}
	return fired
}

// loadCurrentLocked reads the persisted budget (seeding it on first
// run) and applies the day rollover when the stored date has drifted.
func (m *Manager) loadCurrentLocked(ctx context.Context) (*Budget, error) {
	now := m.clock.Now()
	key := dayKey(now, m.opts.ResetMinute)

	var b Budget
	err := m.store.Get(ctx, store.KeyTimeBudget, &b)
	if errors.Is(err, store.ErrKeyNotFound) {
		b = Budget{
			QuotaMinutes: m.opts.DefaultQuotaMinutes,
			ResetTime:    m.opts.ResetMinute,
			Today:        DayRecord{Date: key},
		}
		if err := m.store.Set(ctx, store.KeyTimeBudget, &b); err != nil {
			return nil, fmt.Errorf("failed to seed budget: %w", err)
		}
		return &b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load budget: %w", err)
	}

	if b.Today.Date == key {
		return &b, nil
	}

	// Date drift: archive yesterday, then start the new day clean.
	if b.Today.Date != "" {
		if err := m.archiveLocked(ctx, b.Today); err != nil {
			return nil, err
		}
	}
	b.Today = DayRecord{Date: key}
	if err := m.store.Set(ctx, store.KeyTimeBudget, &b); err != nil {
		return nil, fmt.Errorf("failed to persist budget reset: %w", err)
	}

	m.notifier.Notify(notify.LevelInfo, "Time budget reset",
		fmt.Sprintf("A fresh budget of %.0f minutes is available", b.QuotaMinutes))
	return &b, nil
}

// archiveLocked appends a finished day to the bounded history ring.
func (m *Manager) archiveLocked(ctx context.Context, day DayRecord) error {
	var history []DayRecord
	if err := m.store.Get(ctx, store.KeyBudgetHistory, &history); err != nil && !errors.Is(err, store.ErrKeyNotFound) {
		return fmt.Errorf("failed to load budget history: %w", err)
	}
	history = append(history, day)
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	if err := m.store.Set(ctx, store.KeyBudgetHistory, history); err != nil {
		return fmt.Errorf("failed to persist budget history: %w", err)
	}
	return nil
}

// History returns the archived days, oldest first.
func (m *Manager) History(ctx context.Context) ([]DayRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var history []DayRecord
	if err := m.store.Get(ctx, store.KeyBudgetHistory, &history); err != nil && !errors.Is(err, store.ErrKeyNotFound) {
		return nil, err
	}
	return history, nil
}
