package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mcatalog/internal/config"
	"github.com/xxxsen/mcatalog/internal/db"
	"github.com/xxxsen/mcatalog/internal/model"
	"github.com/xxxsen/mcatalog/internal/repo"
)

// OpenSQLite returns a private in-memory database with migrations applied.
func OpenSQLite(t *testing.T) *sqlx.DB {
	t.Helper()
	conn, err := db.OpenSQLite("file:"+uuid.NewString()+"?mode=memory&cache=shared", "")
	require.NoError(t, err)
	require.NoError(t, db.ApplyMigrations(conn))
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

// OpenPostgres connects to TEST_DB_HOST and skips the test when it is unset.
func OpenPostgres(t *testing.T) *sqlx.DB {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	conn, err := db.Open(config.DatabaseConfig{
		Driver:   "postgres",
		Host:     host,
		Port:     5432,
		User:     "mcatalog",
		Password: "mcatalog_pass",
		DBName:   "mcatalog_test",
		SSLMode:  "disable",
	})
	require.NoError(t, err)
	require.NoError(t, db.ApplyMigrations(conn))
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

// CatalogSong describes one song to seed.
type CatalogSong struct {
	ID          string
	Title       string
	Album       string
	Artists     []string
	ReleaseDate string
}

// SeedSong creates the album, artist users and song described by s and returns the song id.
func SeedSong(t *testing.T, conn sqlx.ExtContext, s CatalogSong) string {
	t.Helper()
	ctx := context.Background()
	catalog := repo.NewCatalogRepo(conn)
	album := &model.Album{ID: uuid.NewString(), Title: s.Album}
	if s.ReleaseDate != "" {
		album.ReleaseDate = model.NewDate(MustDate(t, s.ReleaseDate))
	}
	require.NoError(t, catalog.CreateAlbum(ctx, album))
	song := &model.Song{ID: s.ID, Title: s.Title, AlbumID: album.ID}
	if song.ID == "" {
		song.ID = uuid.NewString()
	}
	for _, name := range s.Artists {
		user := &model.User{ID: uuid.NewString(), Username: name}
		require.NoError(t, catalog.CreateUser(ctx, user))
		song.ArtistIDs = append(song.ArtistIDs, user.ID)
	}
	require.NoError(t, catalog.CreateSong(ctx, song))
	return song.ID
}

func MustDate(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := time.Parse(model.DateLayout, value)
	require.NoError(t, err)
	return d
}
