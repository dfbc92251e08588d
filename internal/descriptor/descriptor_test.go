package descriptor

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/mcatalog/internal/pkg/errors"
)

func TestParseRoadTrip(t *testing.T) {
	data := []byte(`{"playlists":["Road Trip"],
		"songs":[{"title":"Hello","artist":"Adele","album":"25","releaseDate":"2015-10-23","playlistIndex":0}]}`)
	d, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, []string{"Road Trip"}, d.Playlists)
	require.Len(t, d.Songs, 1)
	s := d.Songs[0]
	require.Equal(t, "Hello", s.Title)
	require.Equal(t, "Adele", s.Artist)
	require.Equal(t, "25", s.Album)
	require.Equal(t, 0, s.PlaylistIndex)
	require.Equal(t, "2015-10-23", s.ReleaseDate.Format(DateLayout))
}

func TestParseEmptyLists(t *testing.T) {
	d, err := Parse([]byte(`{"playlists":[],"songs":[]}`))
	require.NoError(t, err)
	require.Empty(t, d.Playlists)
	require.Empty(t, d.Songs)
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"malformed":         `{"playlists":[`,
		"not an object":     `[1,2]`,
		"missing playlists": `{"songs":[]}`,
		"missing songs":     `{"playlists":["a"]}`,
		"empty name":        `{"playlists":[" "],"songs":[]}`,
		"index high":        `{"playlists":["a"],"songs":[{"title":"x","releaseDate":"2015-10-23","playlistIndex":1}]}`,
		"index negative":    `{"playlists":["a"],"songs":[{"title":"x","releaseDate":"2015-10-23","playlistIndex":-1}]}`,
		"index missing":     `{"playlists":["a"],"songs":[{"title":"x","releaseDate":"2015-10-23"}]}`,
		"bad date":          `{"playlists":["a"],"songs":[{"title":"x","releaseDate":"23/10/2015","playlistIndex":0}]}`,
		"datetime":          `{"playlists":["a"],"songs":[{"title":"x","releaseDate":"2015-10-23T00:00:00Z","playlistIndex":0}]}`,
		"empty date":        `{"playlists":["a"],"songs":[{"title":"x","releaseDate":"","playlistIndex":0}]}`,
		"trailing":          `{"playlists":[],"songs":[]} {}`,
		"stray bracket":     `{"playlists":[],"songs":[]}]`,
		"stray brace":       `{"playlists":[],"songs":[]}}`,
		"trailing word":     `{"playlists":[],"songs":[]} x`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			d, err := Parse([]byte(body))
			require.Nil(t, d)
			require.ErrorIs(t, err, appErr.ErrDescriptorInvalid)
		})
	}
}

func TestParseAllowsTrailingWhitespace(t *testing.T) {
	d, err := Parse([]byte("{\"playlists\":[],\"songs\":[]}\n\t "))
	require.NoError(t, err)
	require.Empty(t, d.Songs)
}

func buildSongs(n int) []SongRef {
	songs := make([]SongRef, 0, n)
	for i := 0; i < n; i++ {
		songs = append(songs, SongRef{Title: fmt.Sprintf("song-%d", i)})
	}
	return songs
}

func TestChunk301Into2Batches(t *testing.T) {
	songs := buildSongs(301)
	batches := Chunk(songs, 300)
	require.Len(t, batches, 2)
	require.Len(t, batches[0], 300)
	require.Len(t, batches[1], 1)
	require.Equal(t, "song-0", batches[0][0].Title)
	require.Equal(t, "song-299", batches[0][299].Title)
	require.Equal(t, "song-300", batches[1][0].Title)
}

func TestChunkEdges(t *testing.T) {
	require.Empty(t, Chunk(nil, 300))
	require.Len(t, Chunk(buildSongs(300), 300), 1)
	require.Len(t, Chunk(buildSongs(5), 0), 1)
	batches := Chunk(buildSongs(7), 3)
	require.Len(t, batches, 3)
	var titles []string
	for _, b := range batches {
		for _, s := range b {
			titles = append(titles, s.Title)
		}
	}
	require.True(t, strings.HasPrefix(titles[6], "song-6"))
}
