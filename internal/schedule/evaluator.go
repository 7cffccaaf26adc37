package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/SoarinFerret/SiteWarden/internal/clock"
	"github.com/SoarinFerret/SiteWarden/internal/store"
)

// settings is the persisted global toggle.
type settings struct {
	Enabled bool `json:"enabled"`
}

// VerdictHandler receives the deny verdict after every state-affecting
// operation. An error from the handler propagates to the caller of that
// operation.
type VerdictHandler func(deny bool) error

// Evaluator owns the active-schedule pointer and the manual pause, and
// pushes a recomputed verdict after every state change. There is no
// lazy pull surface; consumers register a VerdictHandler.
//
// Construct one per process and thread it through explicitly.
type Evaluator struct {
	mu    sync.Mutex
	store store.Store
	clock clock.Clock

	activeID    string
	enabled     bool
	pausedUntil time.Time

	handlers []VerdictHandler
}

func NewEvaluator(ctx context.Context, st store.Store, clk clock.Clock) (*Evaluator, error) {
	e := &Evaluator{store: st, clock: clk, enabled: true}

	var cfg settings
	err := st.Get(ctx, store.KeySettings, &cfg)
	switch {
	case err == nil:
		e.enabled = cfg.Enabled
	case errors.Is(err, store.ErrKeyNotFound):
		// First run: enabled by default.
	default:
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	var active string
	err = st.Get(ctx, store.KeyActiveSchedule, &active)
	if err != nil && !errors.Is(err, store.ErrKeyNotFound) {
		return nil, fmt.Errorf("failed to load active schedule: %w", err)
	}
	e.activeID = active

	return e, nil
}

// OnVerdictChanged registers a handler invoked with the fresh verdict
// after every state-affecting operation, including ticks.
func (e *Evaluator) OnVerdictChanged(h VerdictHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, h)
}

// ShouldDenyAccess computes the verdict for the given instant. A store
// failure or a dangling active-schedule id fails closed: the answer is
// deny.
func (e *Evaluator) ShouldDenyAccess(ctx context.Context, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shouldDenyLocked(ctx, now)
}

func (e *Evaluator) shouldDenyLocked(ctx context.Context, now time.Time) bool {
	if !e.pausedUntil.IsZero() {
		if now.Before(e.pausedUntil) {
			return false
		}
		// Pause expired; clear it lazily on first observation.
		e.pausedUntil = time.Time{}
	}

	if !e.enabled {
		return false
	}

	if e.activeID == "" {
		// No active schedule: always deny.
		return true
	}

	sched, err := e.getLocked(ctx, e.activeID)
	if err != nil {
		log.Warn().Err(err).Str("schedule", e.activeID).Msg("active schedule unresolvable, failing closed")
		return true
	}
	return sched.BlocksAt(now)
}

// PauseFor suspends schedule-based denial. minutes == -1 pauses until
// the next local midnight; any other positive value pauses for that
// many minutes.
func (e *Evaluator) PauseFor(ctx context.Context, minutes int) error {
	e.mu.Lock()
	now := e.clock.Now()
	switch {
	case minutes == -1:
		e.pausedUntil = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	case minutes > 0:
		e.pausedUntil = now.Add(time.Duration(minutes) * time.Minute)
	default:
		e.mu.Unlock()
		return fmt.Errorf("invalid pause duration: %d minutes", minutes)
	}
	until := e.pausedUntil
	e.mu.Unlock()

	log.Info().Time("until", until).Msg("blocking paused")
	return e.push(ctx)
}

// Resume clears the pause immediately. Resuming when not paused is a
// no-op aside from the verdict push.
func (e *Evaluator) Resume(ctx context.Context) error {
	e.mu.Lock()
	e.pausedUntil = time.Time{}
	e.mu.Unlock()
	return e.push(ctx)
}

// SetEnabled flips the global toggle and persists it.
func (e *Evaluator) SetEnabled(ctx context.Context, enabled bool) error {
	e.mu.Lock()
	previous := e.enabled
	e.enabled = enabled
	if err := e.store.Set(ctx, store.KeySettings, settings{Enabled: enabled}); err != nil {
		e.enabled = previous
		e.mu.Unlock()
		return fmt.Errorf("failed to persist settings: %w", err)
	}
	e.mu.Unlock()
	return e.push(ctx)
}

// SetActiveSchedule points enforcement at an existing schedule, or
// clears the pointer when id is empty.
func (e *Evaluator) SetActiveSchedule(ctx context.Context, id string) error {
	e.mu.Lock()
	if id != "" {
		if _, err := e.getLocked(ctx, id); err != nil {
			e.mu.Unlock()
			return err
		}
	}
	previous := e.activeID
	e.activeID = id
	if err := e.store.Set(ctx, store.KeyActiveSchedule, id); err != nil {
		e.activeID = previous
		e.mu.Unlock()
		return fmt.Errorf("failed to persist active schedule: %w", err)
	}
	e.mu.Unlock()
	return e.push(ctx)
}

// Enabled reports the global toggle.
func (e *Evaluator) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// ActiveScheduleID returns the current pointer, empty when none.
func (e *Evaluator) ActiveScheduleID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeID
}

// PausedUntil returns the pause deadline, zero when not paused.
func (e *Evaluator) PausedUntil() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pausedUntil
}

// Tick is driven by the periodic wake-up service. It clears an expired
// pause and pushes the fresh verdict.
func (e *Evaluator) Tick(ctx context.Context) error {
	return e.push(ctx)
}

// push recomputes the verdict and forwards it to every handler.
func (e *Evaluator) push(ctx context.Context) error {
	e.mu.Lock()
	verdict := e.shouldDenyLocked(ctx, e.clock.Now())
	handlers := make([]VerdictHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.Unlock()

	for _, h := range handlers {
		if err := h(verdict); err != nil {
			return err
		}
	}
	return nil
}

// Schedule CRUD. The list lives under one store key; mutations are
// read-modify-write over the whole list.

func (e *Evaluator) ListSchedules(ctx context.Context) ([]Schedule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.listLocked(ctx)
}

func (e *Evaluator) listLocked(ctx context.Context) ([]Schedule, error) {
	var schedules []Schedule
	if err := e.store.Get(ctx, store.KeySchedules, &schedules); err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return schedules, nil
}

func (e *Evaluator) GetSchedule(ctx context.Context, id string) (*Schedule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.getLocked(ctx, id)
}

func (e *Evaluator) getLocked(ctx context.Context, id string) (*Schedule, error) {
	schedules, err := e.listLocked(ctx)
	if err != nil {
		return nil, err
	}
	for i := range schedules {
		if schedules[i].ID == id {
			return &schedules[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrScheduleNotFound, id)
}

func (e *Evaluator) CreateSchedule(ctx context.Context, name string, days map[string][]TimeBlock) (*Schedule, error) {
	normalized, err := NormalizeDays(days)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	schedules, err := e.listLocked(ctx)
	if err != nil {
		return nil, err
	}
	sched := Schedule{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: e.clock.Now(),
		Days:      normalized,
	}
	schedules = append(schedules, sched)
	if err := e.store.Set(ctx, store.KeySchedules, schedules); err != nil {
		return nil, err
	}
	return &sched, nil
}

// UpdateSchedule replaces the name and day contents of an existing
// schedule in place. Pushes a fresh verdict when the updated schedule
// is the active one.
func (e *Evaluator) UpdateSchedule(ctx context.Context, id, name string, days map[string][]TimeBlock) error {
	normalized, err := NormalizeDays(days)
	if err != nil {
		return err
	}

	e.mu.Lock()
	schedules, err := e.listLocked(ctx)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	found := false
	for i := range schedules {
		if schedules[i].ID == id {
			schedules[i].Name = name
			schedules[i].Days = normalized
			found = true
			break
		}
	}
	if !found {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrScheduleNotFound, id)
	}
	if err := e.store.Set(ctx, store.KeySchedules, schedules); err != nil {
		e.mu.Unlock()
		return err
	}
	active := e.activeID == id
	e.mu.Unlock()

	if active {
		return e.push(ctx)
	}
	return nil
}

// DeleteSchedule removes a schedule. Deleting the active schedule
// clears the active pointer, which flips the verdict to the fail-closed
// default.
func (e *Evaluator) DeleteSchedule(ctx context.Context, id string) error {
	e.mu.Lock()
	schedules, err := e.listLocked(ctx)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	kept := schedules[:0]
	found := false
	for _, s := range schedules {
		if s.ID == id {
			found = true
			continue
		}
		kept = append(kept, s)
	}
	if !found {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrScheduleNotFound, id)
	}
	if err := e.store.Set(ctx, store.KeySchedules, kept); err != nil {
		e.mu.Unlock()
		return err
	}

	wasActive := e.activeID == id
	if wasActive {
		e.activeID = ""
		if err := e.store.Set(ctx, store.KeyActiveSchedule, ""); err != nil {
			e.mu.Unlock()
			return fmt.Errorf("failed to clear active schedule: %w", err)
		}
	}
	e.mu.Unlock()

	if wasActive {
		return e.push(ctx)
	}
	return nil
}
