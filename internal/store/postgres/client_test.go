package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/cj?sslmode=disable",
		DSN(ClientConfig{Host: "db", Database: "cj", User: "u", Password: "p"}))
	assert.Equal(t, "postgres://u:p@db:6543/cj?sslmode=require",
		DSN(ClientConfig{Host: "db", Port: 6543, Database: "cj", User: "u", Password: "p", SSLMode: "require"}))
	assert.Equal(t, "postgres://x", DSN(ClientConfig{DSN: "postgres://x", Host: "ignored"}))
}

func TestMigrationNames(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_init.sql", names[0])
	assert.IsIncreasing(t, names)
}
