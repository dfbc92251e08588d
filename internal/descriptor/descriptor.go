package descriptor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	appErr "github.com/xxxsen/mcatalog/internal/pkg/errors"
)

const DateLayout = "2006-01-02"

// Descriptor is the decoded import file: playlist names and the songs that go into them.
type Descriptor struct {
	Playlists []string
	Songs     []SongRef
}

// SongRef is one free-text reference to a catalog song.
type SongRef struct {
	Title         string
	Artist        string
	Album         string
	ReleaseDate   time.Time
	PlaylistIndex int
}

type rawDescriptor struct {
	Playlists *[]string  `json:"playlists"`
	Songs     *[]rawSong `json:"songs"`
}

type rawSong struct {
	Title         string `json:"title"`
	Artist        string `json:"artist"`
	Album         string `json:"album"`
	ReleaseDate   string `json:"releaseDate"`
	PlaylistIndex *int   `json:"playlistIndex"`
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", appErr.ErrDescriptorInvalid, fmt.Sprintf(format, args...))
}

// Parse decodes data into a Descriptor. Any defect fails the whole document.
func Parse(data []byte) (*Descriptor, error) {
	var raw rawDescriptor
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return nil, invalid("decode: %v", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, invalid("trailing data after document")
	}
	if raw.Playlists == nil {
		return nil, invalid("playlists is required")
	}
	if raw.Songs == nil {
		return nil, invalid("songs is required")
	}
	d := &Descriptor{
		Playlists: make([]string, 0, len(*raw.Playlists)),
		Songs:     make([]SongRef, 0, len(*raw.Songs)),
	}
	for i, name := range *raw.Playlists {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, invalid("playlists[%d]: empty name", i)
		}
		d.Playlists = append(d.Playlists, name)
	}
	for i, s := range *raw.Songs {
		ref, err := convertSong(s, len(d.Playlists))
		if err != nil {
			return nil, invalid("songs[%d]: %v", i, err)
		}
		d.Songs = append(d.Songs, ref)
	}
	return d, nil
}

func convertSong(s rawSong, playlists int) (SongRef, error) {
	if s.PlaylistIndex == nil {
		return SongRef{}, fmt.Errorf("playlistIndex is required")
	}
	idx := *s.PlaylistIndex
	if idx < 0 || idx >= playlists {
		return SongRef{}, fmt.Errorf("playlistIndex %d out of range", idx)
	}
	date, err := time.Parse(DateLayout, strings.TrimSpace(s.ReleaseDate))
	if err != nil {
		return SongRef{}, fmt.Errorf("releaseDate %q is not a calendar date", s.ReleaseDate)
	}
	return SongRef{
		Title:         s.Title,
		Artist:        s.Artist,
		Album:         s.Album,
		ReleaseDate:   date,
		PlaylistIndex: idx,
	}, nil
}

// Chunk splits songs into consecutive batches of at most size refs, keeping order.
func Chunk(songs []SongRef, size int) [][]SongRef {
	if len(songs) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(songs)
	}
	batches := make([][]SongRef, 0, (len(songs)+size-1)/size)
	for start := 0; start < len(songs); start += size {
		end := min(start+size, len(songs))
		batches = append(batches, songs[start:end])
	}
	return batches
}
