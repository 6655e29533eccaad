package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLiteEnablesForeignKeys(t *testing.T) {
	handle, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "animevote.db"))
	require.NoError(t, err)
	defer func() { assert.NoError(t, handle.Close()) }()

	var enabled int
	require.NoError(t, handle.DB.QueryRow(`PRAGMA foreign_keys`).Scan(&enabled))
	assert.Equal(t, 1, enabled)
	assert.Equal(t, 1, handle.DB.Stats().MaxOpenConnections)
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), "  ")
	require.Error(t, err)
}

func TestConnectPostgresRequiresDSN(t *testing.T) {
	_, err := ConnectPostgres(context.Background(), "")
	require.Error(t, err)
}

func TestCloseNilHandles(t *testing.T) {
	var pg *Postgres
	assert.NoError(t, pg.Close())
	var lite *SQLite
	assert.NoError(t, lite.Close())
}
