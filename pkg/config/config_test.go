package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("DASHBOARD_CACHE_TTL", "not-a-duration")
	t.Setenv("NOTIFY_RECIPIENTS", " a@example.com, ,b@example.com ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorePostgres, cfg.Store.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Dashboard.CacheTTL)
	assert.Equal(t, 10, cfg.Dashboard.AbsenteeCap)
	assert.Equal(t, 8, cfg.Dashboard.TopAttendees)
	assert.Equal(t, 3, cfg.Dashboard.BirthdayDays)
	assert.Equal(t, 10, cfg.Scanner.FPS)
	assert.Equal(t, 2*time.Minute, cfg.Scanner.SessionTimeout)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Notify.Recipients)
}

func TestLocationFallsBackToLocal(t *testing.T) {
	cfg := &Config{Timezone: "Nowhere/Invalid"}
	assert.Equal(t, time.Local, cfg.Location())

	cfg.Timezone = "UTC"
	assert.Equal(t, "UTC", cfg.Location().String())
}
