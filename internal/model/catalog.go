package model

import "database/sql"

// User doubles as the catalog artist; songs credit users through song_artists.
type User struct {
	ID       string `db:"id"`
	Username string `db:"username"`
	Ctime    int64  `db:"ctime"`
}

type Album struct {
	ID          string       `db:"id"`
	Title       string       `db:"title"`
	ReleaseDate sql.NullTime `db:"release_date"`
	Ctime       int64        `db:"ctime"`
}

type Song struct {
	ID        string   `db:"id"`
	Title     string   `db:"title"`
	AlbumID   string   `db:"album_id"`
	ArtistIDs []string `db:"-"`
	Ctime     int64    `db:"ctime"`
}

type Playlist struct {
	ID       string `db:"id"`
	OwnerID  string `db:"owner_id"`
	Name     string `db:"name"`
	IsPublic bool   `db:"is_public"`
	Ctime    int64  `db:"ctime"`
}

type PlaylistSong struct {
	PlaylistID string `db:"playlist_id"`
	SongID     string `db:"song_id"`
	Ctime      int64  `db:"ctime"`
}
