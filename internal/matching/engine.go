package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mcatalog/internal/config"
	"github.com/xxxsen/mcatalog/internal/db"
	"github.com/xxxsen/mcatalog/internal/model"
	"github.com/xxxsen/mcatalog/internal/pkg/dbutil"
	"github.com/xxxsen/mcatalog/internal/repo"
)

// Weights of the composite score terms.
type Weights struct {
	Title  float64
	Album  float64
	Artist float64
	Date   float64
}

func WeightsFromConfig(c config.WeightsConfig) Weights {
	return Weights{Title: c.Title, Album: c.Album, Artist: c.Artist, Date: c.Date}
}

// PrefilterBound is the best score a candidate dropped by the prefilter at
// floor could still reach.
func (w Weights) PrefilterBound(floor float64) float64 {
	return (w.Title+w.Album+w.Artist)*floor + w.Date
}

// BatchResult counts the entries of one batch that left pending during a pass.
type BatchResult struct {
	Matched int
	Failed  int
}

func (r BatchResult) Processed() int {
	return r.Matched + r.Failed
}

// Engine resolves staged song references against the catalog, one batch per
// transaction, entirely inside the database.
type Engine struct {
	db      *sqlx.DB
	weights Weights
	floor   float64
	dialect dialect
	now     func() time.Time
}

func NewEngine(conn *sqlx.DB, weights Weights, floor float64) *Engine {
	return &Engine{
		db:      conn,
		weights: weights,
		floor:   floor,
		dialect: dialectFor(conn.DriverName()),
		now:     time.Now,
	}
}

// MatchBatch scores every pending entry of batchID, links the winners into their
// playlists and fails the rest. The counters of the owning task grow by exactly
// the number of entries that transitioned, so a second pass over a resolved
// batch changes nothing. Any error rolls the whole batch back.
func (e *Engine) MatchBatch(ctx context.Context, batchID string, threshold float64) (*BatchResult, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold %v out of range", threshold)
	}
	if bound := e.weights.PrefilterBound(e.floor); bound > threshold {
		return nil, fmt.Errorf("prefilter floor %v hides candidates scoring up to %.3f, above threshold %v", e.floor, bound, threshold)
	}
	start := e.now()
	result := &BatchResult{}
	err := dbutil.WithTx(ctx, e.db, func(tx *sqlx.Tx) error {
		entries := repo.NewStagingEntryRepo(tx)
		taskIDs, err := entries.TaskIDsByBatch(ctx, batchID)
		if err != nil {
			return fmt.Errorf("load batch tasks: %w", err)
		}
		if len(taskIDs) == 0 {
			return nil
		}
		if len(taskIDs) > 1 {
			return fmt.Errorf("batch %s spans %d tasks", batchID, len(taskIDs))
		}
		matches, err := e.score(ctx, tx, batchID, threshold)
		if err != nil {
			return fmt.Errorf("score batch: %w", err)
		}
		// Only entries that were still pending get linked; a concurrent reaper
		// may have failed some of them since scoring.
		marked, err := entries.MarkMatched(ctx, matches)
		if err != nil {
			return fmt.Errorf("mark matched: %w", err)
		}
		if err := e.link(ctx, tx, marked); err != nil {
			return fmt.Errorf("link matches: %w", err)
		}
		failed, err := entries.FailPendingByBatch(ctx, batchID)
		if err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		result.Matched, result.Failed = len(marked), failed
		if err := repo.NewImportTaskRepo(tx).IncrementProcessed(ctx, taskIDs[0], result.Processed(), e.now().Unix()); err != nil {
			return fmt.Errorf("increment progress: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Debug("batch matched",
		zap.String("batch_id", batchID),
		zap.Int("matched", result.Matched),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", e.now().Sub(start)),
	)
	return result, nil
}

func (e *Engine) score(ctx context.Context, tx *sqlx.Tx, batchID string, threshold float64) ([]repo.MatchedEntry, error) {
	if tx.DriverName() == db.DriverPostgres {
		if _, err := tx.ExecContext(ctx, "SELECT set_limit($1)", e.floor); err != nil {
			return nil, fmt.Errorf("set trigram floor: %w", err)
		}
	}
	query, args := buildScoreQuery(e.dialect, e.weights, e.floor, threshold, batchID, string(model.StagingStatusPending))
	matches := make([]repo.MatchedEntry, 0)
	if err := sqlx.SelectContext(ctx, tx, &matches, tx.Rebind(query), args...); err != nil {
		return nil, err
	}
	return matches, nil
}

func (e *Engine) link(ctx context.Context, tx *sqlx.Tx, matches []repo.MatchedEntry) error {
	if len(matches) == 0 {
		return nil
	}
	ctime := e.now().Unix()
	items := make([]model.PlaylistSong, 0, len(matches))
	for _, m := range matches {
		items = append(items, model.PlaylistSong{PlaylistID: m.PlaylistID, SongID: m.SongID, Ctime: ctime})
	}
	_, err := repo.NewPlaylistRepo(tx).AddSongs(ctx, items)
	return err
}
