package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mcatalog/internal/model"
	"github.com/xxxsen/mcatalog/internal/repo"
	"github.com/xxxsen/mcatalog/internal/testutil"
)

func TestPlaylistRepoAddSongsIgnoresDuplicates(t *testing.T) {
	conn := testutil.OpenSQLite(t)
	playlists := repo.NewPlaylistRepo(conn)
	ctx := context.Background()

	songID := testutil.SeedSong(t, conn, testutil.CatalogSong{Title: "Hello", Album: "25", Artists: []string{"Adele"}})
	require.NoError(t, playlists.CreateBatch(ctx, []model.Playlist{
		{ID: "playlist-1", OwnerID: "user-1", Name: "Road Trip"},
		{ID: "playlist-2", OwnerID: "user-1", Name: "Gym"},
	}))

	inserted, err := playlists.AddSongs(ctx, []model.PlaylistSong{{PlaylistID: "playlist-1", SongID: songID}})
	require.NoError(t, err)
	require.Equal(t, 1, inserted)

	inserted, err = playlists.AddSongs(ctx, []model.PlaylistSong{{PlaylistID: "playlist-1", SongID: songID}})
	require.NoError(t, err)
	require.Equal(t, 0, inserted)

	ids, err := playlists.ListSongIDs(ctx, "playlist-1")
	require.NoError(t, err)
	require.Equal(t, []string{songID}, ids)

	p, err := playlists.Get(ctx, "playlist-1")
	require.NoError(t, err)
	require.Equal(t, "Road Trip", p.Name)
	require.False(t, p.IsPublic)

	owned, err := playlists.ListByOwner(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, owned, 2)
}
