package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mcatalog/internal/metrics"
	"github.com/xxxsen/mcatalog/internal/model"
	"github.com/xxxsen/mcatalog/internal/pkg/dbutil"
	"github.com/xxxsen/mcatalog/internal/repo"
)

var errTaskMoved = errors.New("task no longer processing")

// StaleImportJob finishes tasks stuck in processing, typically after a worker
// crashed mid task. Remaining pending entries become failed and are counted as
// processed so the task counters stay consistent. Tasks are not re-run.
type StaleImportJob struct {
	db     *sqlx.DB
	maxAge time.Duration
	now    func() time.Time
}

func NewStaleImportJob(db *sqlx.DB, maxAge time.Duration) *StaleImportJob {
	return &StaleImportJob{db: db, maxAge: maxAge, now: time.Now}
}

func (j *StaleImportJob) Name() string {
	return "stale_import_reaper"
}

func (j *StaleImportJob) Run(ctx context.Context) error {
	if j.db == nil || j.maxAge <= 0 {
		return nil
	}
	cutoff := j.now().Add(-j.maxAge).Unix()
	stale, err := repo.NewImportTaskRepo(j.db).ListStale(ctx, model.ImportTaskStatusProcessing, cutoff)
	if err != nil {
		return fmt.Errorf("list stale tasks: %w", err)
	}
	for i := range stale {
		if err := ctx.Err(); err != nil {
			return err
		}
		failed, err := j.reap(ctx, stale[i].ID, cutoff)
		if errors.Is(err, errTaskMoved) {
			continue
		}
		if err != nil {
			return fmt.Errorf("reap task %s: %w", stale[i].ID, err)
		}
		metrics.ImportTasksFinished.WithLabelValues(metrics.OutcomeReaped).Inc()
		metrics.ImportEntries.WithLabelValues(string(model.StagingStatusFailed)).Add(float64(failed))
		logutil.GetLogger(ctx).Warn("stale import task finished",
			zap.String("task_id", stale[i].ID),
			zap.Int("failed", failed),
		)
	}
	return nil
}

func (j *StaleImportJob) reap(ctx context.Context, taskID string, cutoff int64) (int, error) {
	var failed int
	err := dbutil.WithTx(ctx, j.db, func(tx *sqlx.Tx) error {
		tasks := repo.NewImportTaskRepo(tx)
		task, err := tasks.Get(ctx, taskID)
		if err != nil {
			return err
		}
		if task.Status != model.ImportTaskStatusProcessing || task.Mtime >= cutoff {
			return errTaskMoved
		}
		failed, err = repo.NewStagingEntryRepo(tx).FailPendingByTask(ctx, taskID)
		if err != nil {
			return err
		}
		mtime := j.now().Unix()
		if err := tasks.IncrementProcessed(ctx, taskID, failed, mtime); err != nil {
			return err
		}
		won, err := tasks.UpdateStatusIf(ctx, taskID, model.ImportTaskStatusProcessing, model.ImportTaskStatusFinished, mtime)
		if err != nil {
			return err
		}
		if !won {
			return errTaskMoved
		}
		return nil
	})
	return failed, err
}
