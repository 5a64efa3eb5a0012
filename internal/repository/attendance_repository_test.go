package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/roster-api/internal/models"
)

func TestAttendanceRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo := NewAttendanceRepository(store, time.UTC)

	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	rec := &models.AttendanceRecord{StudentID: "s1", Date: &at, Present: true}
	require.NoError(t, repo.Create(ctx, rec))
	assert.NotEmpty(t, rec.ID)

	_, err := store.Create(ctx, models.CollectionAttendance, map[string]interface{}{
		"student_id": "s2",
		"timestamp":  "not a date",
		"present":    "false",
	})
	require.NoError(t, err)

	records, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "s1", records[0].StudentID)
	require.True(t, records[0].HasDate())
	assert.True(t, at.Equal(*records[0].Date))
	assert.True(t, records[0].Present)

	assert.Equal(t, "s2", records[1].StudentID)
	assert.False(t, records[1].HasDate())
	assert.False(t, records[1].Present)
}
