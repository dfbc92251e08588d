package db

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mcatalog/internal/config"
)

func TestOpenSQLiteRegistersSimilarity(t *testing.T) {
	conn, err := Open(config.DatabaseConfig{Driver: "sqlite", DSN: "file:db_similarity?mode=memory&cache=shared"})
	require.NoError(t, err)
	defer conn.Close()
	require.Equal(t, DriverSQLite, conn.DriverName())

	var score float64
	require.NoError(t, conn.Get(&score, "SELECT similarity(?, ?)", "Hello", "hello"))
	require.Equal(t, 1.0, score)

	require.NoError(t, conn.Get(&score, "SELECT similarity(?, ?)", "abc", "xyz"))
	require.Equal(t, 0.0, score)
}

func TestOpenSQLiteAlternateMetric(t *testing.T) {
	conn, err := OpenSQLite("file:db_metric?mode=memory&cache=shared", "jaro-winkler")
	require.NoError(t, err)
	defer conn.Close()

	var score float64
	require.NoError(t, conn.Get(&score, "SELECT similarity(?, ?)", "Adele", "Adele"))
	require.InDelta(t, 1.0, score, 1e-9)
}

func TestOpenSQLiteUnknownMetric(t *testing.T) {
	_, err := OpenSQLite("file:db_unknown?mode=memory&cache=shared", "soundex")
	require.Error(t, err)
}

func TestApplyMigrationsIsRepeatable(t *testing.T) {
	conn, err := OpenSQLite("file:db_migrate?mode=memory&cache=shared", "")
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, ApplyMigrations(conn))
	require.NoError(t, ApplyMigrations(conn))

	var count int
	require.NoError(t, conn.Get(&count, "SELECT COUNT(*) FROM import_tasks"))
	require.Equal(t, 0, count)
}
