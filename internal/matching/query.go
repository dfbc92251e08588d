package matching

import (
	"strings"

	"github.com/xxxsen/mcatalog/internal/db"
)

// dialect holds the store specific fragments of the scoring query.
type dialect struct {
	// sim wraps similarity() so its result is a double on every store.
	sim func(a, b string) string
	// near is the index friendly prefilter predicate for "sim(a, b) at least the floor",
	// matching pg_trgm's % operator.
	near func(a, b string) string
	// days is the signed distance in days between two date columns.
	days      func(a, b string) string
	floorArgs int
}

var postgresDialect = dialect{
	sim: func(a, b string) string {
		return "CAST(similarity(" + a + ", " + b + ") AS DOUBLE PRECISION)"
	},
	// % uses the gin trigram indexes; the floor is set per transaction via set_limit.
	near: func(a, b string) string {
		return a + " % " + b
	},
	days: func(a, b string) string {
		return "(" + a + " - " + b + ")"
	},
}

var sqliteDialect = dialect{
	sim: func(a, b string) string {
		return "similarity(" + a + ", " + b + ")"
	},
	near: func(a, b string) string {
		return "similarity(" + a + ", " + b + ") >= ?"
	},
	days: func(a, b string) string {
		return "(julianday(" + a + ") - julianday(" + b + "))"
	},
	floorArgs: 1,
}

func dialectFor(driverName string) dialect {
	if driverName == db.DriverSQLite {
		return sqliteDialect
	}
	return postgresDialect
}

// buildScoreQuery renders the set based best match query for one batch. The
// statement returns at most one row per pending entry: its best candidate by
// score, ties broken by song id, kept only when the score beats the threshold.
func buildScoreQuery(d dialect, w Weights, floor, threshold float64, batchID, pending string) (string, []interface{}) {
	var sb strings.Builder
	args := make([]interface{}, 0, 10)

	sb.WriteString("WITH pending AS (")
	sb.WriteString(" SELECT id, playlist_id, song_title, album_name, artist_name, release_date")
	sb.WriteString(" FROM staging_entries WHERE batch_id = ? AND status = ?")
	sb.WriteString("), candidates AS (")
	sb.WriteString(" SELECT p.id AS entry_id, p.playlist_id AS playlist_id, s.id AS song_id,")
	sb.WriteString(" COALESCE(" + d.sim("s.title", "p.song_title") + ", 0) AS title_sim,")
	sb.WriteString(" COALESCE(" + d.sim("a.title", "p.album_name") + ", 0) AS album_sim,")
	sb.WriteString(" COALESCE((SELECT MAX(" + d.sim("u.username", "p.artist_name") + ")")
	sb.WriteString(" FROM song_artists sa JOIN users u ON u.id = sa.artist_id WHERE sa.song_id = s.id), 0) AS artist_sim,")
	sb.WriteString(" COALESCE(CAST(1.0 / (1.0 + ABS(" + d.days("a.release_date", "p.release_date") + ")) AS DOUBLE PRECISION), 0) AS date_sim")
	sb.WriteString(" FROM pending p CROSS JOIN songs s JOIN albums a ON a.id = s.album_id")
	sb.WriteString(" WHERE " + d.near("s.title", "p.song_title"))
	sb.WriteString(" OR " + d.near("a.title", "p.album_name"))
	sb.WriteString(" OR EXISTS (SELECT 1 FROM song_artists sa2 JOIN users u2 ON u2.id = sa2.artist_id")
	sb.WriteString(" WHERE sa2.song_id = s.id AND " + d.near("u2.username", "p.artist_name") + ")")
	sb.WriteString("), scored AS (")
	sb.WriteString(" SELECT entry_id, playlist_id, song_id,")
	sb.WriteString(" CAST(? AS DOUBLE PRECISION) * title_sim + CAST(? AS DOUBLE PRECISION) * album_sim")
	sb.WriteString(" + CAST(? AS DOUBLE PRECISION) * artist_sim + CAST(? AS DOUBLE PRECISION) * date_sim AS score")
	sb.WriteString(" FROM candidates")
	sb.WriteString("), ranked AS (")
	sb.WriteString(" SELECT entry_id, playlist_id, song_id, score,")
	sb.WriteString(" ROW_NUMBER() OVER (PARTITION BY entry_id ORDER BY score DESC, song_id ASC) AS rn")
	sb.WriteString(" FROM scored")
	sb.WriteString(")")
	sb.WriteString(" SELECT entry_id, playlist_id, song_id, score FROM ranked")
	sb.WriteString(" WHERE rn = 1 AND score > CAST(? AS DOUBLE PRECISION)")
	sb.WriteString(" ORDER BY entry_id")

	args = append(args, batchID, pending)
	for i := 0; i < 3*d.floorArgs; i++ {
		args = append(args, floor)
	}
	args = append(args, w.Title, w.Album, w.Artist, w.Date)
	args = append(args, threshold)
	return sb.String(), args
}
