package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mcatalog/internal/descriptor"
	"github.com/xxxsen/mcatalog/internal/filestore"
	"github.com/xxxsen/mcatalog/internal/metrics"
	"github.com/xxxsen/mcatalog/internal/model"
	appErr "github.com/xxxsen/mcatalog/internal/pkg/errors"
	"github.com/xxxsen/mcatalog/internal/repo"
)

const defaultEntriesPageSize = 100

type TaskProgress struct {
	ID               string  `json:"id"`
	Status           string  `json:"status"`
	TotalEntries     int     `json:"total_entries"`
	ProcessedEntries int     `json:"processed_entries"`
	Progress         float64 `json:"progress"`
	Matched          int     `json:"matched"`
	Failed           int     `json:"failed"`
	Ctime            int64   `json:"ctime"`
	Mtime            int64   `json:"mtime"`
}

type EntryView struct {
	ID            string   `json:"id"`
	Position      int      `json:"position"`
	PlaylistID    string   `json:"playlist_id"`
	SongTitle     string   `json:"song_title"`
	AlbumName     string   `json:"album_name"`
	ArtistName    string   `json:"artist_name"`
	ReleaseDate   string   `json:"release_date,omitempty"`
	Status        string   `json:"status"`
	MatchedSongID string   `json:"matched_song_id,omitempty"`
	Score         *float64 `json:"score,omitempty"`
}

type ImportService struct {
	tasks    *repo.ImportTaskRepo
	entries  *repo.StagingEntryRepo
	blobs    filestore.Store
	maxBytes int64
}

func NewImportService(tasks *repo.ImportTaskRepo, entries *repo.StagingEntryRepo, blobs filestore.Store, maxBytes int64) *ImportService {
	return &ImportService{
		tasks:    tasks,
		entries:  entries,
		blobs:    blobs,
		maxBytes: maxBytes,
	}
}

type blobReader struct {
	*bytes.Reader
}

func (blobReader) Close() error { return nil }

// CreateTask stores an uploaded descriptor and queues it for the import worker.
// entries is the caller's song count and must agree with the descriptor.
func (s *ImportService) CreateTask(ctx context.Context, creatorID string, data []byte, entries int) (*model.ImportTask, error) {
	if creatorID == "" {
		return nil, appErr.ErrUnauthorized
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, appErr.ErrDescriptorTooLarge
	}
	doc, err := descriptor.Parse(data)
	if err != nil {
		return nil, err
	}
	if entries != len(doc.Songs) {
		return nil, fmt.Errorf("%w: declared %d, descriptor has %d", appErr.ErrEntriesMismatch, entries, len(doc.Songs))
	}
	now := time.Now().Unix()
	task := &model.ImportTask{
		ID:           newID(),
		CreatorID:    creatorID,
		Status:       model.ImportTaskStatusCreated,
		TotalEntries: len(doc.Songs),
		Ctime:        now,
		Mtime:        now,
	}
	task.FileKey = newFileKey(task.ID)
	if err := s.blobs.Save(ctx, task.FileKey, blobReader{bytes.NewReader(data)}, int64(len(data))); err != nil {
		return nil, fmt.Errorf("save descriptor: %w", err)
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	metrics.ImportTasksCreated.Inc()
	logutil.GetLogger(ctx).Info("import task created",
		zap.String("task_id", task.ID),
		zap.String("creator_id", creatorID),
		zap.Int("total_entries", task.TotalEntries),
		zap.Int("playlists", len(doc.Playlists)),
	)
	return task, nil
}

// ListProgress reports every task of the creator, newest first.
func (s *ImportService) ListProgress(ctx context.Context, creatorID string) ([]TaskProgress, error) {
	tasks, err := s.tasks.ListByCreator(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	counts, err := s.entries.CountByTasks(ctx, ids)
	if err != nil {
		return nil, err
	}
	result := make([]TaskProgress, 0, len(tasks))
	for i := range tasks {
		result = append(result, toProgress(&tasks[i], counts[tasks[i].ID]))
	}
	return result, nil
}

func (s *ImportService) GetProgress(ctx context.Context, creatorID, taskID string) (*TaskProgress, error) {
	task, err := s.tasks.GetByCreator(ctx, creatorID, taskID)
	if err != nil {
		return nil, err
	}
	counts, err := s.entries.CountByTasks(ctx, []string{task.ID})
	if err != nil {
		return nil, err
	}
	p := toProgress(task, counts[task.ID])
	return &p, nil
}

// ListEntries pages through a task's staging rows; status may be empty.
func (s *ImportService) ListEntries(ctx context.Context, creatorID, taskID, status string, limit, offset int) ([]EntryView, error) {
	switch model.StagingStatus(status) {
	case "", model.StagingStatusPending, model.StagingStatusMatched, model.StagingStatusFailed:
	default:
		return nil, appErr.ErrInvalid
	}
	if _, err := s.tasks.GetByCreator(ctx, creatorID, taskID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultEntriesPageSize
	}
	rows, err := s.entries.ListByTask(ctx, taskID, model.StagingStatus(status), limit, offset)
	if err != nil {
		return nil, err
	}
	views := make([]EntryView, 0, len(rows))
	for _, r := range rows {
		v := EntryView{
			ID:         r.ID,
			Position:   r.Position,
			PlaylistID: r.PlaylistID,
			SongTitle:  r.SongTitle,
			AlbumName:  r.AlbumName,
			ArtistName: r.ArtistName,
			Status:     string(r.Status),
		}
		if r.ReleaseDate.Valid {
			v.ReleaseDate = r.ReleaseDate.Time.Format(model.DateLayout)
		}
		if r.MatchedSongID.Valid {
			v.MatchedSongID = r.MatchedSongID.String
		}
		if r.Score.Valid {
			score := r.Score.Float64
			v.Score = &score
		}
		views = append(views, v)
	}
	return views, nil
}

func toProgress(task *model.ImportTask, counts model.StagingCounts) TaskProgress {
	return TaskProgress{
		ID:               task.ID,
		Status:           string(task.Status),
		TotalEntries:     task.TotalEntries,
		ProcessedEntries: task.ProcessedEntries,
		Progress:         task.Progress(),
		Matched:          counts.Matched,
		Failed:           counts.Failed,
		Ctime:            task.Ctime,
		Mtime:            task.Mtime,
	}
}
