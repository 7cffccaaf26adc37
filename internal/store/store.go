// Package store abstracts the persistent key-value store the daemon
// keeps its state in. Values are JSON-shaped; there are no transactions,
// so callers own their own read-modify-write safety.
package store

import (
	"context"
	"errors"
)

// Well-known keys.
const (
	KeySchedules      = "schedules"
	KeyActiveSchedule = "activeSchedule"
	KeyBlockedSites   = "blockedSites"
	KeyTimeBudget     = "timeBudget"
	KeyBudgetHistory  = "statistics.budgetHistory"
	KeySettings       = "settings"
)

var ErrKeyNotFound = errors.New("key not found")

type Store interface {
	// Get unmarshals the value stored under key into out. Returns
	// ErrKeyNotFound when the key has never been set.
	Get(ctx context.Context, key string, out any) error

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value any) error
}
