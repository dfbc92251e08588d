package repo

import (
	"context"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/mcatalog/internal/model"
	"github.com/xxxsen/mcatalog/internal/pkg/dbutil"
	appErr "github.com/xxxsen/mcatalog/internal/pkg/errors"
)

// CatalogRepo writes the canonical catalog the import matcher reads. Full catalog
// management lives in the CRUD service; this covers seeding and lookups.
type CatalogRepo struct {
	db sqlx.ExtContext
}

func NewCatalogRepo(db sqlx.ExtContext) *CatalogRepo {
	return &CatalogRepo{db: db}
}

func (r *CatalogRepo) CreateUser(ctx context.Context, user *model.User) error {
	return r.insert(ctx, "users", map[string]interface{}{
		"id":       user.ID,
		"username": user.Username,
		"ctime":    user.Ctime,
	})
}

func (r *CatalogRepo) CreateAlbum(ctx context.Context, album *model.Album) error {
	return r.insert(ctx, "albums", map[string]interface{}{
		"id":           album.ID,
		"title":        album.Title,
		"release_date": model.DateValue(album.ReleaseDate),
		"ctime":        album.Ctime,
	})
}

// CreateSong stores the song and its artist credits.
func (r *CatalogRepo) CreateSong(ctx context.Context, song *model.Song) error {
	if err := r.insert(ctx, "songs", map[string]interface{}{
		"id":       song.ID,
		"title":    song.Title,
		"album_id": song.AlbumID,
		"ctime":    song.Ctime,
	}); err != nil {
		return err
	}
	if len(song.ArtistIDs) == 0 {
		return nil
	}
	rows := make([]map[string]interface{}, 0, len(song.ArtistIDs))
	for _, artistID := range song.ArtistIDs {
		rows = append(rows, map[string]interface{}{"song_id": song.ID, "artist_id": artistID})
	}
	sqlStr, args, err := builder.BuildInsert("song_artists", rows)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(r.db, sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *CatalogRepo) CountSongs(ctx context.Context) (int, error) {
	var count int
	if err := sqlx.GetContext(ctx, r.db, &count, "SELECT COUNT(*) FROM songs"); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *CatalogRepo) insert(ctx context.Context, table string, data map[string]interface{}) error {
	sqlStr, args, err := builder.BuildInsert(table, []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(r.db, sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}
