package model

import (
	"database/sql"
	"time"
)

type StagingStatus string

const (
	StagingStatusPending StagingStatus = "pending"
	StagingStatusMatched StagingStatus = "matched"
	StagingStatusFailed  StagingStatus = "failed"
)

// StagingEntry is a free-text song reference waiting to be resolved against the catalog.
type StagingEntry struct {
	ID            string          `db:"id"`
	BatchID       string          `db:"batch_id"`
	TaskID        string          `db:"task_id"`
	PlaylistID    string          `db:"playlist_id"`
	Position      int             `db:"position"`
	SongTitle     string          `db:"song_title"`
	AlbumName     string          `db:"album_name"`
	ArtistName    string          `db:"artist_name"`
	ReleaseDate   sql.NullTime    `db:"release_date"`
	Status        StagingStatus   `db:"status"`
	MatchedSongID sql.NullString  `db:"matched_song_id"`
	Score         sql.NullFloat64 `db:"score"`
	Ctime         int64           `db:"ctime"`
}

// StagingCounts is the number of resolved entries of one task.
type StagingCounts struct {
	Matched int
	Failed  int
	Pending int
}

const DateLayout = "2006-01-02"

// DateValue renders a nullable calendar date the way both stores accept it.
func DateValue(t sql.NullTime) interface{} {
	if !t.Valid {
		return nil
	}
	return t.Time.Format(DateLayout)
}

func NewDate(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
