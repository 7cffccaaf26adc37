// Package gate ties the schedule verdict and the budget sessions to the
// external enforcement layer. It is the only path that mutates global
// enforcement state.
package gate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/SoarinFerret/SiteWarden/internal/budget"
	"github.com/SoarinFerret/SiteWarden/internal/clock"
	"github.com/SoarinFerret/SiteWarden/internal/notify"
	"github.com/SoarinFerret/SiteWarden/internal/schedule"
)

// Enforcer is the external rule-enforcement collaborator. How blocking
// is physically implemented is its business.
type Enforcer interface {
	// SetEnabledForAllSites turns blocking on or off for every
	// tracked site at once.
	SetEnabledForAllSites(ctx context.Context, enabled bool) error

	// SetConsumerOverride installs (allow=true) or removes
	// (allow=false) a consumer-scoped allow rule that outranks the
	// global block for one site.
	SetConsumerOverride(ctx context.Context, consumerID, siteID string, allow bool) error

	// ListSites returns the ids of the sites the layer tracks.
	ListSites(ctx context.Context) ([]string, error)
}

// Gate composes the evaluator's verdict with budget sessions and
// forwards the results to the Enforcer.
type Gate struct {
	enforcer Enforcer
	eval     *schedule.Evaluator
	budget   *budget.Manager
	notifier notify.Notifier
	clock    clock.Clock
	tick     time.Duration

	mu          sync.Mutex
	lastApplied *bool
}

func New(enforcer Enforcer, eval *schedule.Evaluator, bm *budget.Manager, notifier notify.Notifier, clk clock.Clock, tick time.Duration) *Gate {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	g := &Gate{
		enforcer: enforcer,
		eval:     eval,
		budget:   bm,
		notifier: notifier,
		clock:    clk,
		tick:     tick,
	}
	eval.OnVerdictChanged(g.applyVerdict)
	bm.OnSessionEnd(g.handleSessionEnd)
	return g
}

// applyVerdict receives every evaluator push, diffs it against the last
// applied state and forwards changes to the enforcement layer. When the
// layer rejects the update, the previous applied state is kept: nothing
// is partially applied, and the caller sees the failure.
func (g *Gate) applyVerdict(deny bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.lastApplied != nil && *g.lastApplied == deny {
		return nil
	}
	if err := g.enforcer.SetEnabledForAllSites(context.Background(), deny); err != nil {
		return fmt.Errorf("enforcement update rejected: %w", err)
	}
	g.lastApplied = &deny
	log.Info().Bool("deny", deny).Msg("enforcement state applied")
	return nil
}

// RequestAccess starts a metered budget session for one consumer and
// installs its allow override. When the override cannot be installed
// the session is rolled back and the failure propagates.
func (g *Gate) RequestAccess(ctx context.Context, consumerID, siteID string) (budget.Session, error) {
	sess, err := g.budget.StartSession(ctx, siteID, consumerID)
	if err != nil {
		return budget.Session{}, err
	}

	if err := g.enforcer.SetConsumerOverride(ctx, consumerID, siteID, true); err != nil {
		if endErr := g.budget.EndSession(ctx, consumerID, budget.ReasonError); endErr != nil {
			log.Error().Err(endErr).Str("consumer", consumerID).Msg("failed to roll back session")
		}
		return budget.Session{}, fmt.Errorf("failed to install consumer override: %w", err)
	}
	return sess, nil
}

// EndAccess explicitly ends a consumer's session. Unknown consumers are
// a no-op.
func (g *Gate) EndAccess(ctx context.Context, consumerID string) error {
	return g.budget.EndSession(ctx, consumerID, budget.ReasonExplicit)
}

// HandleConsumerClosed ends the session of a consumer that went away.
func (g *Gate) HandleConsumerClosed(ctx context.Context, consumerID string) {
	if err := g.budget.EndSession(ctx, consumerID, budget.ReasonClosed); err != nil {
		log.Warn().Err(err).Str("consumer", consumerID).Msg("failed to end session on close")
	}
}

// HandleConsumerNavigated ends the session of a consumer that left the
// granted site.
func (g *Gate) HandleConsumerNavigated(ctx context.Context, consumerID string) {
	if err := g.budget.EndSession(ctx, consumerID, budget.ReasonNavigated); err != nil {
		log.Warn().Err(err).Str("consumer", consumerID).Msg("failed to end session on navigation")
	}
}

// handleSessionEnd removes the consumer override whenever a session
// ends, regardless of the reason.
func (g *Gate) handleSessionEnd(sess budget.Session, reason budget.EndReason) {
	ctx := context.Background()
	if err := g.enforcer.SetConsumerOverride(ctx, sess.ConsumerID, sess.SiteID, false); err != nil {
		log.Error().Err(err).
			Str("consumer", sess.ConsumerID).
			Str("site", sess.SiteID).
			Msg("failed to remove consumer override")
	}
	if reason == budget.ReasonExhausted {
		g.notifier.Notify(notify.LevelCritical, "Time budget exhausted",
			"Today's browsing budget is used up; blocking is back in force")
	}
}

// Run drives the periodic schedule tick until ctx is cancelled. The
// first evaluation happens immediately, not a tick later.
func (g *Gate) Run(ctx context.Context) error {
	if err := g.eval.Tick(ctx); err != nil {
		log.Warn().Err(err).Msg("initial verdict push failed")
	}

	ticker := g.clock.NewTicker(g.tick)
	defer ticker.Stop()

	log.Info().Dur("interval", g.tick).Msg("gate coordinator started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			if err := g.eval.Tick(ctx); err != nil {
				// Previous enforcement state stays in place; the
				// next differing push retries naturally.
				log.Warn().Err(err).Msg("verdict push failed")
			}
		}
	}
}
