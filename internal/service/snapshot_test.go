package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/roster-api/internal/models"
)

func TestRosterSnapshotDiscardsSupersededFetch(t *testing.T) {
	snap := NewRosterSnapshot()
	ctx := context.Background()

	slow := snap.Begin()
	fast := snap.Begin()
	require.True(t, snap.Apply(ctx, fast, []models.Student{{ID: "new"}}))
	assert.False(t, snap.Apply(ctx, slow, []models.Student{{ID: "old"}}))

	students, _, ok := snap.Current()
	require.True(t, ok)
	assert.Equal(t, "new", students[0].ID)
}

func TestRosterSnapshotDiscardsCancelledFetch(t *testing.T) {
	snap := NewRosterSnapshot()
	ctx, cancel := context.WithCancel(context.Background())
	gen := snap.Begin()
	cancel()
	assert.False(t, snap.Apply(ctx, gen, []models.Student{{ID: "x"}}))
	_, _, ok := snap.Current()
	assert.False(t, ok)
}

func TestRosterSnapshotFreshness(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	snap := NewRosterSnapshot()
	snap.now = func() time.Time { return now }
	assert.False(t, snap.Fresh(time.Minute))

	require.True(t, snap.Apply(context.Background(), snap.Begin(), nil))
	assert.True(t, snap.Fresh(time.Minute))
	now = now.Add(2 * time.Minute)
	assert.False(t, snap.Fresh(time.Minute))
	assert.False(t, snap.Fresh(0))
}

func TestRosterSnapshotReturnsCopy(t *testing.T) {
	snap := NewRosterSnapshot()
	require.True(t, snap.Apply(context.Background(), snap.Begin(), []models.Student{{ID: "a", Name: "A"}}))
	students, _, _ := snap.Current()
	students[0].Name = "changed"
	again, _, _ := snap.Current()
	assert.Equal(t, "A", again[0].Name)
}
