package dbutil

import (
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func TestFinalizePostgres(t *testing.T) {
	db := sqlx.NewDb(nil, "postgres")
	query, args := Finalize(db, "SELECT `id` FROM tags WHERE user_id = ? LIMIT ?,?", []interface{}{"u", 10, 20})
	require.Equal(t, "SELECT id FROM tags WHERE user_id = $1 LIMIT $2 OFFSET $3", query)
	require.Equal(t, []interface{}{"u", 20, 10}, args)
}

func TestFinalizeSQLiteKeepsQuestionMarks(t *testing.T) {
	db := sqlx.NewDb(nil, "sqlite3")
	query, args := Finalize(db, "SELECT `id` FROM tags WHERE user_id = ? LIMIT ?,?", []interface{}{"u", 10, 20})
	require.Equal(t, "SELECT `id` FROM tags WHERE user_id = ? LIMIT ?,?", query)
	require.Equal(t, []interface{}{"u", 10, 20}, args)
}

func TestInArgs(t *testing.T) {
	list, args := InArgs([]string{"a", "b", "c"})
	require.Equal(t, "?, ?, ?", list)
	require.Equal(t, []interface{}{"a", "b", "c"}, args)

	list, args = InArgs(nil)
	require.Equal(t, "", list)
	require.Empty(t, args)
}
