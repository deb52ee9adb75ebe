package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverName(t *testing.T) {
	tests := map[string]string{
		"sqlite":     "sqlite3",
		"SQLite3":    "sqlite3",
		"postgres":   "postgres",
		"postgresql": "postgres",
		"pgsql":      "postgres",
		"mysql":      "mysql",
		" MariaDB ":  "mysql",
		"oracle":     "",
		"":           "",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, DriverName(in))
		})
	}
}

func TestOpen_SQLite(t *testing.T) {
	db, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "target.db"))
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow("SELECT 1").Scan(&n))
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, db.Stats().MaxOpenConnections)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "dsn")
	require.Error(t, err)
	var ue *ErrUnsupportedDriver
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "oracle", ue.Driver)
}

func TestOpen_EmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), "postgres", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty connection string")
}

func TestOpen_InvalidMySQLDSN(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "not a dsn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mysql")
}
