package repo

import (
	"context"
	"strings"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/mcatalog/internal/model"
	"github.com/xxxsen/mcatalog/internal/pkg/dbutil"
)

var stagingColumns = []string{
	"id", "batch_id", "task_id", "playlist_id", "position", "song_title", "album_name",
	"artist_name", "release_date", "status", "matched_song_id", "score", "ctime",
}

// MatchedEntry resolves one pending staging entry to a catalog song.
type MatchedEntry struct {
	EntryID    string  `db:"entry_id"`
	PlaylistID string  `db:"playlist_id"`
	SongID     string  `db:"song_id"`
	Score      float64 `db:"score"`
}

type StagingEntryRepo struct {
	db sqlx.ExtContext
}

func NewStagingEntryRepo(db sqlx.ExtContext) *StagingEntryRepo {
	return &StagingEntryRepo{db: db}
}

func (r *StagingEntryRepo) WithTx(tx *sqlx.Tx) *StagingEntryRepo {
	return &StagingEntryRepo{db: tx}
}

func (r *StagingEntryRepo) InsertBatch(ctx context.Context, entries []model.StagingEntry) error {
	if len(entries) == 0 {
		return nil
	}
	data := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		data = append(data, map[string]interface{}{
			"id":              e.ID,
			"batch_id":        e.BatchID,
			"task_id":         e.TaskID,
			"playlist_id":     e.PlaylistID,
			"position":        e.Position,
			"song_title":      e.SongTitle,
			"album_name":      e.AlbumName,
			"artist_name":     e.ArtistName,
			"release_date":    model.DateValue(e.ReleaseDate),
			"status":          string(e.Status),
			"matched_song_id": nil,
			"score":           nil,
			"ctime":           e.Ctime,
		})
	}
	sqlStr, args, err := builder.BuildInsert("staging_entries", data)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(r.db, sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *StagingEntryRepo) ListByBatch(ctx context.Context, batchID string) ([]model.StagingEntry, error) {
	where := map[string]interface{}{"batch_id": batchID, "_orderby": "position asc"}
	return r.selectEntries(ctx, where)
}

// ListByTask pages through a task's entries in descriptor order; an empty status
// selects every entry.
func (r *StagingEntryRepo) ListByTask(ctx context.Context, taskID string, status model.StagingStatus, limit, offset int) ([]model.StagingEntry, error) {
	where := map[string]interface{}{"task_id": taskID, "_orderby": "position asc"}
	if status != "" {
		where["status"] = string(status)
	}
	if limit > 0 {
		if offset < 0 {
			offset = 0
		}
		where["_limit"] = []uint{uint(offset), uint(limit)}
	}
	return r.selectEntries(ctx, where)
}

func (r *StagingEntryRepo) selectEntries(ctx context.Context, where map[string]interface{}) ([]model.StagingEntry, error) {
	sqlStr, args, err := builder.BuildSelect("staging_entries", where, stagingColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(r.db, sqlStr, args)
	entries := make([]model.StagingEntry, 0)
	if err := sqlx.SelectContext(ctx, r.db, &entries, sqlStr, args...); err != nil {
		return nil, err
	}
	return entries, nil
}

// CountByTasks groups staging rows of the given tasks by status.
func (r *StagingEntryRepo) CountByTasks(ctx context.Context, taskIDs []string) (map[string]model.StagingCounts, error) {
	result := make(map[string]model.StagingCounts, len(taskIDs))
	if len(taskIDs) == 0 {
		return result, nil
	}
	list, args := dbutil.InArgs(taskIDs)
	query := r.db.Rebind("SELECT task_id, status, COUNT(*) FROM staging_entries WHERE task_id IN (" + list + ") GROUP BY task_id, status")
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var taskID string
		var status string
		var count int
		if err := rows.Scan(&taskID, &status, &count); err != nil {
			return nil, err
		}
		counts := result[taskID]
		switch model.StagingStatus(status) {
		case model.StagingStatusMatched:
			counts.Matched += count
		case model.StagingStatusFailed:
			counts.Failed += count
		case model.StagingStatusPending:
			counts.Pending += count
		}
		result[taskID] = counts
	}
	return result, rows.Err()
}

// TaskIDsByBatch lists the owning tasks of a batch; normally exactly one.
func (r *StagingEntryRepo) TaskIDsByBatch(ctx context.Context, batchID string) ([]string, error) {
	query := r.db.Rebind("SELECT DISTINCT task_id FROM staging_entries WHERE batch_id = ? ORDER BY task_id")
	ids := make([]string, 0, 1)
	if err := sqlx.SelectContext(ctx, r.db, &ids, query, batchID); err != nil {
		return nil, err
	}
	return ids, nil
}

// MarkMatched moves the given entries from pending to matched in one statement
// and returns the subset that was still pending, in input order.
func (r *StagingEntryRepo) MarkMatched(ctx context.Context, matches []MatchedEntry) ([]MatchedEntry, error) {
	if len(matches) == 0 {
		return nil, nil
	}
	var songCase, scoreCase strings.Builder
	caseArgs := make([]interface{}, 0, len(matches)*2)
	scoreArgs := make([]interface{}, 0, len(matches)*2)
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		songCase.WriteString(" WHEN ? THEN ?")
		caseArgs = append(caseArgs, m.EntryID, m.SongID)
		scoreCase.WriteString(" WHEN ? THEN CAST(? AS DOUBLE PRECISION)")
		scoreArgs = append(scoreArgs, m.EntryID, m.Score)
		ids = append(ids, m.EntryID)
	}
	list, idArgs := dbutil.InArgs(ids)
	query := "UPDATE staging_entries SET status = ?," +
		" matched_song_id = CASE id" + songCase.String() + " END," +
		" score = CASE id" + scoreCase.String() + " END" +
		" WHERE status = ? AND id IN (" + list + ")" +
		" RETURNING id"
	args := make([]interface{}, 0, 2+len(caseArgs)+len(scoreArgs)+len(idArgs))
	args = append(args, string(model.StagingStatusMatched))
	args = append(args, caseArgs...)
	args = append(args, scoreArgs...)
	args = append(args, string(model.StagingStatusPending))
	args = append(args, idArgs...)
	updated := make([]string, 0, len(matches))
	if err := sqlx.SelectContext(ctx, r.db, &updated, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	moved := make(map[string]struct{}, len(updated))
	for _, id := range updated {
		moved[id] = struct{}{}
	}
	result := make([]MatchedEntry, 0, len(updated))
	for _, m := range matches {
		if _, ok := moved[m.EntryID]; ok {
			result = append(result, m)
		}
	}
	return result, nil
}

// FailPendingByBatch marks every still pending entry of a batch as failed.
func (r *StagingEntryRepo) FailPendingByBatch(ctx context.Context, batchID string) (int, error) {
	return r.exec(ctx, "UPDATE staging_entries SET status = ? WHERE batch_id = ? AND status = ?",
		string(model.StagingStatusFailed), batchID, string(model.StagingStatusPending))
}

// FailPendingByTask marks every still pending entry of a task as failed.
func (r *StagingEntryRepo) FailPendingByTask(ctx context.Context, taskID string) (int, error) {
	return r.exec(ctx, "UPDATE staging_entries SET status = ? WHERE task_id = ? AND status = ?",
		string(model.StagingStatusFailed), taskID, string(model.StagingStatusPending))
}

func (r *StagingEntryRepo) exec(ctx context.Context, query string, args ...interface{}) (int, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}
