package matching

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrefilterIncludesFloor(t *testing.T) {
	require.Equal(t, "similarity(s.title, p.song_title) >= ?", sqliteDialect.near("s.title", "p.song_title"))
	require.Equal(t, "s.title % p.song_title", postgresDialect.near("s.title", "p.song_title"))
}

func TestBuildScoreQueryArgs(t *testing.T) {
	w := Weights{Title: 0.3, Album: 0.3, Artist: 0.2, Date: 0.1}

	query, args := buildScoreQuery(sqliteDialect, w, 0.1, 0.3, "batch-1", "pending")
	require.Equal(t, strings.Count(query, "?"), len(args))
	require.Equal(t, []interface{}{"batch-1", "pending", 0.1, 0.1, 0.1, 0.3, 0.3, 0.2, 0.1, 0.3}, args)

	query, args = buildScoreQuery(postgresDialect, w, 0.1, 0.3, "batch-1", "pending")
	require.Equal(t, strings.Count(query, "?"), len(args))
	require.Len(t, args, 7)
	require.Contains(t, query, "score > CAST(? AS DOUBLE PRECISION)")
}
