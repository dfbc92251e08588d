package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mcatalog/internal/config"
	"github.com/xxxsen/mcatalog/internal/descriptor"
	"github.com/xxxsen/mcatalog/internal/filestore"
	"github.com/xxxsen/mcatalog/internal/matching"
	"github.com/xxxsen/mcatalog/internal/metrics"
	"github.com/xxxsen/mcatalog/internal/model"
)

// claimCandidates is how many created tasks one tick tries to claim before
// concluding that other workers took them all.
const claimCandidates = 8

type TaskStore interface {
	ListByStatus(ctx context.Context, status model.ImportTaskStatus, limit int) ([]model.ImportTask, error)
	UpdateStatusIf(ctx context.Context, taskID string, fromStatus, toStatus model.ImportTaskStatus, mtime int64) (bool, error)
	UpdateStatus(ctx context.Context, taskID string, status model.ImportTaskStatus, mtime int64) error
}

type StagingStore interface {
	InsertBatch(ctx context.Context, entries []model.StagingEntry) error
}

type PlaylistStore interface {
	CreateBatch(ctx context.Context, playlists []model.Playlist) error
}

type BlobStore = filestore.Opener

type Matcher interface {
	MatchBatch(ctx context.Context, batchID string, threshold float64) (*matching.BatchResult, error)
}

type Options struct {
	PollInterval time.Duration
	BatchSize    int
	Threshold    float64
}

func OptionsFromConfig(c config.ImportConfig) Options {
	return Options{PollInterval: c.PollInterval(), BatchSize: c.BatchSize, Threshold: c.Threshold}
}

// Worker drives created import tasks to finished, one task at a time.
type Worker struct {
	tasks     TaskStore
	entries   StagingStore
	playlists PlaylistStore
	blobs     BlobStore
	matcher   Matcher
	opts      Options
	now       func() time.Time
	newID     func() string
}

func NewWorker(tasks TaskStore, entries StagingStore, playlists PlaylistStore, blobs BlobStore, matcher Matcher, opts Options) *Worker {
	def := config.DefaultImportConfig()
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	return &Worker{
		tasks:     tasks,
		entries:   entries,
		playlists: playlists,
		blobs:     blobs,
		matcher:   matcher,
		opts:      opts,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Run polls until ctx is done. A failing task is logged and left processing;
// the loop moves on to the next one.
func (w *Worker) Run(ctx context.Context) error {
	logger := logutil.GetLogger(ctx)
	logger.Info("import worker started", zap.Duration("poll_interval", w.opts.PollInterval), zap.Int("batch_size", w.opts.BatchSize))
	for {
		if ctx.Err() != nil {
			logger.Info("import worker stopped")
			return nil
		}
		worked, err := w.ProcessNext(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			metrics.ImportTaskErrors.Inc()
			logger.Error("process import task failed", zap.Error(err))
		}
		if worked && err == nil {
			continue
		}
		timer := time.NewTimer(w.opts.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
}

// ProcessNext claims one created task and processes it. It reports false when
// there was nothing to claim.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	candidates, err := w.tasks.ListByStatus(ctx, model.ImportTaskStatusCreated, claimCandidates)
	if err != nil {
		return false, fmt.Errorf("list created tasks: %w", err)
	}
	for i := range candidates {
		task := &candidates[i]
		won, err := w.tasks.UpdateStatusIf(ctx, task.ID, model.ImportTaskStatusCreated, model.ImportTaskStatusProcessing, w.now().Unix())
		if err != nil {
			return false, fmt.Errorf("claim task %s: %w", task.ID, err)
		}
		if !won {
			continue
		}
		task.Status = model.ImportTaskStatusProcessing
		metrics.ImportTasksClaimed.Inc()
		logutil.GetLogger(ctx).Info("import task claimed", zap.String("task_id", task.ID), zap.Int("total_entries", task.TotalEntries))
		if err := w.ProcessTask(ctx, task); err != nil {
			return true, fmt.Errorf("task %s: %w", task.ID, err)
		}
		return true, nil
	}
	return false, nil
}

// ProcessTask runs a claimed task to completion. A missing or malformed
// descriptor finishes the task without progress and is not an error.
func (w *Worker) ProcessTask(ctx context.Context, task *model.ImportTask) error {
	logger := logutil.GetLogger(ctx).With(zap.String("task_id", task.ID))

	doc, err := w.load(ctx, task.FileKey)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logger.Warn("import descriptor unusable, finishing without progress", zap.Error(err))
		if err := w.finish(ctx, task); err != nil {
			return err
		}
		metrics.ImportTasksFinished.WithLabelValues(metrics.OutcomeIngestionFailed).Inc()
		return nil
	}

	playlists, err := w.createPlaylists(ctx, task, doc.Playlists)
	if err != nil {
		return err
	}

	position := 0
	for _, batch := range descriptor.Chunk(doc.Songs, w.opts.BatchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.processBatch(ctx, task, playlists, batch, position); err != nil {
			return err
		}
		position += len(batch)
	}

	if err := w.finish(ctx, task); err != nil {
		return err
	}
	metrics.ImportTasksFinished.WithLabelValues(metrics.OutcomeCompleted).Inc()
	logger.Info("import task finished", zap.Int("entries", len(doc.Songs)), zap.Int("playlists", len(playlists)))
	return nil
}

func (w *Worker) load(ctx context.Context, key string) (*descriptor.Descriptor, error) {
	data, err := filestore.ReadAll(ctx, w.blobs, key)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	return descriptor.Parse(data)
}

func (w *Worker) createPlaylists(ctx context.Context, task *model.ImportTask, names []string) ([]model.Playlist, error) {
	ctime := w.now().Unix()
	playlists := make([]model.Playlist, 0, len(names))
	for _, name := range names {
		playlists = append(playlists, model.Playlist{
			ID:       w.newID(),
			OwnerID:  task.CreatorID,
			Name:     name,
			IsPublic: false,
			Ctime:    ctime,
		})
	}
	if err := w.playlists.CreateBatch(ctx, playlists); err != nil {
		return nil, fmt.Errorf("create playlists: %w", err)
	}
	return playlists, nil
}

func (w *Worker) processBatch(ctx context.Context, task *model.ImportTask, playlists []model.Playlist, refs []descriptor.SongRef, offset int) error {
	start := w.now()
	batchID := w.newID()
	entries := make([]model.StagingEntry, 0, len(refs))
	for i, ref := range refs {
		entries = append(entries, model.StagingEntry{
			ID:          w.newID(),
			BatchID:     batchID,
			TaskID:      task.ID,
			PlaylistID:  playlists[ref.PlaylistIndex].ID,
			Position:    offset + i,
			SongTitle:   ref.Title,
			AlbumName:   ref.Album,
			ArtistName:  ref.Artist,
			ReleaseDate: model.NewDate(ref.ReleaseDate),
			Status:      model.StagingStatusPending,
			Ctime:       start.Unix(),
		})
	}
	if err := w.entries.InsertBatch(ctx, entries); err != nil {
		return fmt.Errorf("stage batch %s: %w", batchID, err)
	}
	res, err := w.matcher.MatchBatch(ctx, batchID, w.opts.Threshold)
	if err != nil {
		return fmt.Errorf("match batch %s: %w", batchID, err)
	}
	metrics.ImportEntries.WithLabelValues(string(model.StagingStatusMatched)).Add(float64(res.Matched))
	metrics.ImportEntries.WithLabelValues(string(model.StagingStatusFailed)).Add(float64(res.Failed))
	elapsed := w.now().Sub(start)
	metrics.ImportBatchDurationSeconds.Observe(elapsed.Seconds())
	logutil.GetLogger(ctx).Info("import batch processed",
		zap.String("task_id", task.ID),
		zap.String("batch_id", batchID),
		zap.Int("size", len(entries)),
		zap.Int("matched", res.Matched),
		zap.Int("failed", res.Failed),
		zap.Duration("duration", elapsed),
	)
	return nil
}

func (w *Worker) finish(ctx context.Context, task *model.ImportTask) error {
	if err := w.tasks.UpdateStatus(ctx, task.ID, model.ImportTaskStatusFinished, w.now().Unix()); err != nil {
		return fmt.Errorf("finish task: %w", err)
	}
	task.Status = model.ImportTaskStatusFinished
	return nil
}
