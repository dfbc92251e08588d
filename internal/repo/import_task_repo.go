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

const importTaskColumns = "id, creator_id, status, file_key, total_entries, processed_entries, ctime, mtime"

type ImportTaskRepo struct {
	db sqlx.ExtContext
}

func NewImportTaskRepo(db sqlx.ExtContext) *ImportTaskRepo {
	return &ImportTaskRepo{db: db}
}

// WithTx returns a repo bound to tx.
func (r *ImportTaskRepo) WithTx(tx *sqlx.Tx) *ImportTaskRepo {
	return &ImportTaskRepo{db: tx}
}

func (r *ImportTaskRepo) Create(ctx context.Context, task *model.ImportTask) error {
	data := map[string]interface{}{
		"id":                task.ID,
		"creator_id":        task.CreatorID,
		"status":            string(task.Status),
		"file_key":          task.FileKey,
		"total_entries":     task.TotalEntries,
		"processed_entries": task.ProcessedEntries,
		"ctime":             task.Ctime,
		"mtime":             task.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("import_tasks", []map[string]interface{}{data})
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

func (r *ImportTaskRepo) Get(ctx context.Context, taskID string) (*model.ImportTask, error) {
	query := r.db.Rebind("SELECT " + importTaskColumns + " FROM import_tasks WHERE id = ?")
	var task model.ImportTask
	if err := sqlx.GetContext(ctx, r.db, &task, query, taskID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &task, nil
}

func (r *ImportTaskRepo) GetByCreator(ctx context.Context, creatorID, taskID string) (*model.ImportTask, error) {
	query := r.db.Rebind("SELECT " + importTaskColumns + " FROM import_tasks WHERE id = ? AND creator_id = ?")
	var task model.ImportTask
	if err := sqlx.GetContext(ctx, r.db, &task, query, taskID, creatorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &task, nil
}

// ListByStatus returns up to limit tasks in the given status, oldest first.
func (r *ImportTaskRepo) ListByStatus(ctx context.Context, status model.ImportTaskStatus, limit int) ([]model.ImportTask, error) {
	if limit <= 0 {
		limit = 1
	}
	query := r.db.Rebind("SELECT " + importTaskColumns + " FROM import_tasks WHERE status = ? ORDER BY ctime ASC, id ASC LIMIT ?")
	tasks := make([]model.ImportTask, 0)
	if err := sqlx.SelectContext(ctx, r.db, &tasks, query, string(status), limit); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *ImportTaskRepo) ListByCreator(ctx context.Context, creatorID string) ([]model.ImportTask, error) {
	query := r.db.Rebind("SELECT " + importTaskColumns + " FROM import_tasks WHERE creator_id = ? ORDER BY ctime DESC, id ASC")
	tasks := make([]model.ImportTask, 0)
	if err := sqlx.SelectContext(ctx, r.db, &tasks, query, creatorID); err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListStale returns tasks left in status whose last modification is before cutoff.
func (r *ImportTaskRepo) ListStale(ctx context.Context, status model.ImportTaskStatus, cutoff int64) ([]model.ImportTask, error) {
	query := r.db.Rebind("SELECT " + importTaskColumns + " FROM import_tasks WHERE status = ? AND mtime < ? ORDER BY mtime ASC")
	tasks := make([]model.ImportTask, 0)
	if err := sqlx.SelectContext(ctx, r.db, &tasks, query, string(status), cutoff); err != nil {
		return nil, err
	}
	return tasks, nil
}

// UpdateStatusIf flips the status only while the row is still in fromStatus and
// reports whether this caller won. It is the claim step between worker instances.
func (r *ImportTaskRepo) UpdateStatusIf(ctx context.Context, taskID string, fromStatus, toStatus model.ImportTaskStatus, mtime int64) (bool, error) {
	query := r.db.Rebind("UPDATE import_tasks SET status = ?, mtime = ? WHERE id = ? AND status = ?")
	res, err := r.db.ExecContext(ctx, query, string(toStatus), mtime, taskID, string(fromStatus))
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *ImportTaskRepo) UpdateStatus(ctx context.Context, taskID string, status model.ImportTaskStatus, mtime int64) error {
	query := r.db.Rebind("UPDATE import_tasks SET status = ?, mtime = ? WHERE id = ?")
	res, err := r.db.ExecContext(ctx, query, string(status), mtime, taskID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// IncrementProcessed adds delta to the counter in the database, never by
// reading and writing back the value.
func (r *ImportTaskRepo) IncrementProcessed(ctx context.Context, taskID string, delta int, mtime int64) error {
	if delta == 0 {
		return nil
	}
	query := r.db.Rebind("UPDATE import_tasks SET processed_entries = processed_entries + ?, mtime = ? WHERE id = ?")
	res, err := r.db.ExecContext(ctx, query, delta, mtime, taskID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}
