package site

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SoarinFerret/SiteWarden/internal/store"
)

func TestRegistry_AddAndList(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(store.NewMemoryStore())

	s, err := r.Add(ctx, "youtube.com")
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.True(t, s.Enabled)

	sites, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, "youtube.com", sites[0].Pattern)

	_, err = r.Add(ctx, "   ")
	assert.Error(t, err)
}

func TestRegistry_AddException(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(store.NewMemoryStore())
	s, err := r.Add(ctx, "youtube.com")
	require.NoError(t, err)

	require.NoError(t, r.AddException(ctx, s.ID, "music.youtube.com"))

	err = r.AddException(ctx, s.ID, "vimeo.com")
	assert.ErrorIs(t, err, ErrInvalidException)

	got, err := r.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"music.youtube.com"}, got.Exceptions)
}

func TestRegistry_EnableDisable(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(store.NewMemoryStore())
	s, err := r.Add(ctx, "reddit.com")
	require.NoError(t, err)

	require.NoError(t, r.SetEnabled(ctx, s.ID, false))

	enabled, err := r.Enabled(ctx)
	require.NoError(t, err)
	assert.Empty(t, enabled, "disabled sites should drop out of active enforcement")

	all, err := r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "disabling must not delete the entry")
}

func TestRegistry_RemoveAndNotFound(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(store.NewMemoryStore())
	s, err := r.Add(ctx, "reddit.com")
	require.NoError(t, err)

	require.NoError(t, r.Remove(ctx, s.ID))
	assert.ErrorIs(t, r.Remove(ctx, s.ID), ErrSiteNotFound)

	_, err = r.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSiteNotFound)
}

func TestRegistry_RecordBlock(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(store.NewMemoryStore())
	s, err := r.Add(ctx, "reddit.com")
	require.NoError(t, err)

	require.NoError(t, r.RecordBlock(ctx, s.ID))
	require.NoError(t, r.RecordBlock(ctx, s.ID))

	got, err := r.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.BlockCount)
}

func TestRegistry_SetDailyLimit(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(store.NewMemoryStore())
	s, err := r.Add(ctx, "reddit.com")
	require.NoError(t, err)

	limit := 15.0
	require.NoError(t, r.SetDailyLimit(ctx, s.ID, &limit))

	got, err := r.Get(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DailyLimitMinutes)
	assert.Equal(t, 15.0, *got.DailyLimitMinutes)
}
