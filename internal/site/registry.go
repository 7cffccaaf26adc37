package site

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/SoarinFerret/SiteWarden/internal/store"
)

var ErrSiteNotFound = errors.New("site not found")

// Registry owns the persisted blocked-site list.
type Registry struct {
	store store.Store
}

func NewRegistry(st store.Store) *Registry {
	return &Registry{store: st}
}

func (r *Registry) List(ctx context.Context) ([]Site, error) {
	var sites []Site
	if err := r.store.Get(ctx, store.KeyBlockedSites, &sites); err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return sites, nil
}

// Enabled returns only the entries currently in active enforcement.
func (r *Registry) Enabled(ctx context.Context) ([]Site, error) {
	sites, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var enabled []Site
	for _, s := range sites {
		if s.Enabled {
			enabled = append(enabled, s)
		}
	}
	return enabled, nil
}

func (r *Registry) Get(ctx context.Context, id string) (*Site, error) {
	sites, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range sites {
		if sites[i].ID == id {
			return &sites[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrSiteNotFound, id)
}

func (r *Registry) Add(ctx context.Context, pattern string) (*Site, error) {
	if Normalize(pattern) == "" {
		return nil, fmt.Errorf("empty site pattern")
	}
	sites, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	s := Site{
		ID:      uuid.NewString(),
		Pattern: pattern,
		Enabled: true,
		AddedAt: time.Now(),
	}
	sites = append(sites, s)
	if err := r.store.Set(ctx, store.KeyBlockedSites, sites); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Registry) Remove(ctx context.Context, id string) error {
	return r.update(ctx, id, nil)
}

func (r *Registry) SetEnabled(ctx context.Context, id string, enabled bool) error {
	return r.update(ctx, id, func(s *Site) error {
		s.Enabled = enabled
		return nil
	})
}

// AddException validates the exception against the site's pattern and
// stores it. Validation happens here, at insertion; stored exceptions
// are not re-validated later.
func (r *Registry) AddException(ctx context.Context, id, exception string) error {
	return r.update(ctx, id, func(s *Site) error {
		if !IsValidException(s.Pattern, exception) {
			return fmt.Errorf("%w: %q does not contain %q", ErrInvalidException, exception, s.Pattern)
		}
		s.Exceptions = append(s.Exceptions, exception)
		return nil
	})
}

// RecordBlock bumps the block counter for statistics.
func (r *Registry) RecordBlock(ctx context.Context, id string) error {
	return r.update(ctx, id, func(s *Site) error {
		s.BlockCount++
		return nil
	})
}

// SetDailyLimit sets or clears the per-site budget quota override.
func (r *Registry) SetDailyLimit(ctx context.Context, id string, minutes *float64) error {
	return r.update(ctx, id, func(s *Site) error {
		s.DailyLimitMinutes = minutes
		return nil
	})
}

// update applies mutate to the entry with the given id and persists the
// list. A nil mutate removes the entry.
func (r *Registry) update(ctx context.Context, id string, mutate func(*Site) error) error {
	sites, err := r.List(ctx)
	if err != nil {
		return err
	}
	for i := range sites {
		if sites[i].ID != id {
			continue
		}
		if mutate == nil {
			sites = append(sites[:i], sites[i+1:]...)
		} else if err := mutate(&sites[i]); err != nil {
			return err
		}
		return r.store.Set(ctx, store.KeyBlockedSites, sites)
	}
	return fmt.Errorf("%w: %s", ErrSiteNotFound, id)
}
