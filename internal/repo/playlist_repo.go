package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/mcatalog/internal/model"
	"github.com/xxxsen/mcatalog/internal/pkg/dbutil"
	appErr "github.com/xxxsen/mcatalog/internal/pkg/errors"
)

type PlaylistRepo struct {
	db sqlx.ExtContext
}

func NewPlaylistRepo(db sqlx.ExtContext) *PlaylistRepo {
	return &PlaylistRepo{db: db}
}

func (r *PlaylistRepo) WithTx(tx *sqlx.Tx) *PlaylistRepo {
	return &PlaylistRepo{db: tx}
}

func (r *PlaylistRepo) CreateBatch(ctx context.Context, playlists []model.Playlist) error {
	if len(playlists) == 0 {
		return nil
	}
	rows := make([]map[string]interface{}, 0, len(playlists))
	for _, p := range playlists {
		rows = append(rows, map[string]interface{}{
			"id":        p.ID,
			"owner_id":  p.OwnerID,
			"name":      p.Name,
			"is_public": p.IsPublic,
			"ctime":     p.Ctime,
		})
	}
	sqlStr, args, err := builder.BuildInsert("playlists", rows)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(r.db, sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *PlaylistRepo) Get(ctx context.Context, playlistID string) (*model.Playlist, error) {
	query := r.db.Rebind("SELECT id, owner_id, name, is_public, ctime FROM playlists WHERE id = ?")
	var p model.Playlist
	if err := sqlx.GetContext(ctx, r.db, &p, query, playlistID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PlaylistRepo) ListByOwner(ctx context.Context, ownerID string) ([]model.Playlist, error) {
	query := r.db.Rebind("SELECT id, owner_id, name, is_public, ctime FROM playlists WHERE owner_id = ? ORDER BY ctime ASC, name ASC")
	items := make([]model.Playlist, 0)
	if err := sqlx.SelectContext(ctx, r.db, &items, query, ownerID); err != nil {
		return nil, err
	}
	return items, nil
}

// AddSongs links songs to playlists; pairs that already exist are left alone.
// It returns the number of rows actually inserted.
func (r *PlaylistRepo) AddSongs(ctx context.Context, items []model.PlaylistSong) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	rows := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		rows = append(rows, map[string]interface{}{
			"playlist_id": item.PlaylistID,
			"song_id":     item.SongID,
			"ctime":       item.Ctime,
		})
	}
	sqlStr, args, err := builder.BuildInsert("playlist_songs", rows)
	if err != nil {
		return 0, err
	}
	sqlStr += " ON CONFLICT (playlist_id, song_id) DO NOTHING"
	sqlStr, args = dbutil.Finalize(r.db, sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (r *PlaylistRepo) ListSongIDs(ctx context.Context, playlistID string) ([]string, error) {
	query := r.db.Rebind("SELECT song_id FROM playlist_songs WHERE playlist_id = ? ORDER BY song_id")
	ids := make([]string, 0)
	if err := sqlx.SelectContext(ctx, r.db, &ids, query, playlistID); err != nil {
		return nil, err
	}
	return ids, nil
}
