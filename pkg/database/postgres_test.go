package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/roster-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "roster", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=roster sslmode=disable", dsn)
}

func TestNewPostgresRejectsUnknownDriver(t *testing.T) {
	_, err := NewPostgres(config.DatabaseConfig{Driver: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}
