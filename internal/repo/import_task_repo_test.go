package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mcatalog/internal/model"
	appErr "github.com/xxxsen/mcatalog/internal/pkg/errors"
	"github.com/xxxsen/mcatalog/internal/repo"
	"github.com/xxxsen/mcatalog/internal/testutil"
)

func newTask(id, creator string, ctime int64, total int) *model.ImportTask {
	return &model.ImportTask{
		ID:           id,
		CreatorID:    creator,
		Status:       model.ImportTaskStatusCreated,
		FileKey:      "import-" + id + ".json",
		TotalEntries: total,
		Ctime:        ctime,
		Mtime:        ctime,
	}
}

func TestImportTaskRepoCRUD(t *testing.T) {
	conn := testutil.OpenSQLite(t)
	tasks := repo.NewImportTaskRepo(conn)
	ctx := context.Background()

	require.NoError(t, tasks.Create(ctx, newTask("task-1", "user-1", 10, 3)))
	require.ErrorIs(t, tasks.Create(ctx, newTask("task-1", "user-1", 10, 3)), appErr.ErrConflict)

	got, err := tasks.Get(ctx, "task-1")
	require.NoError(t, err)
	require.Equal(t, model.ImportTaskStatusCreated, got.Status)
	require.Equal(t, 3, got.TotalEntries)
	require.Equal(t, 0, got.ProcessedEntries)

	_, err = tasks.Get(ctx, "missing")
	require.ErrorIs(t, err, appErr.ErrNotFound)

	_, err = tasks.GetByCreator(ctx, "user-2", "task-1")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestImportTaskRepoListByStatusOldestFirst(t *testing.T) {
	conn := testutil.OpenSQLite(t)
	tasks := repo.NewImportTaskRepo(conn)
	ctx := context.Background()

	require.NoError(t, tasks.Create(ctx, newTask("task-new", "user-1", 20, 1)))
	require.NoError(t, tasks.Create(ctx, newTask("task-old", "user-1", 10, 1)))

	list, err := tasks.ListByStatus(ctx, model.ImportTaskStatusCreated, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "task-old", list[0].ID)

	list, err = tasks.ListByStatus(ctx, model.ImportTaskStatusCreated, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)

	byCreator, err := tasks.ListByCreator(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, "task-new", byCreator[0].ID)
}

func TestImportTaskRepoUpdateStatusIfClaimsOnce(t *testing.T) {
	conn := testutil.OpenSQLite(t)
	tasks := repo.NewImportTaskRepo(conn)
	ctx := context.Background()
	require.NoError(t, tasks.Create(ctx, newTask("task-1", "user-1", 10, 1)))

	won, err := tasks.UpdateStatusIf(ctx, "task-1", model.ImportTaskStatusCreated, model.ImportTaskStatusProcessing, 11)
	require.NoError(t, err)
	require.True(t, won)

	won, err = tasks.UpdateStatusIf(ctx, "task-1", model.ImportTaskStatusCreated, model.ImportTaskStatusProcessing, 12)
	require.NoError(t, err)
	require.False(t, won)

	got, err := tasks.Get(ctx, "task-1")
	require.NoError(t, err)
	require.Equal(t, model.ImportTaskStatusProcessing, got.Status)
	require.Equal(t, int64(11), got.Mtime)
}

func TestImportTaskRepoIncrementProcessed(t *testing.T) {
	conn := testutil.OpenSQLite(t)
	tasks := repo.NewImportTaskRepo(conn)
	ctx := context.Background()
	require.NoError(t, tasks.Create(ctx, newTask("task-1", "user-1", 10, 5)))

	require.NoError(t, tasks.IncrementProcessed(ctx, "task-1", 2, 11))
	require.NoError(t, tasks.IncrementProcessed(ctx, "task-1", 0, 12))
	require.NoError(t, tasks.IncrementProcessed(ctx, "task-1", 3, 13))
	require.ErrorIs(t, tasks.IncrementProcessed(ctx, "missing", 1, 13), appErr.ErrNotFound)

	got, err := tasks.Get(ctx, "task-1")
	require.NoError(t, err)
	require.Equal(t, 5, got.ProcessedEntries)
	require.Equal(t, int64(13), got.Mtime)
}

func TestImportTaskRepoListStale(t *testing.T) {
	conn := testutil.OpenSQLite(t)
	tasks := repo.NewImportTaskRepo(conn)
	ctx := context.Background()
	require.NoError(t, tasks.Create(ctx, newTask("task-1", "user-1", 10, 1)))
	require.NoError(t, tasks.Create(ctx, newTask("task-2", "user-1", 100, 1)))
	require.NoError(t, tasks.UpdateStatus(ctx, "task-1", model.ImportTaskStatusProcessing, 10))
	require.NoError(t, tasks.UpdateStatus(ctx, "task-2", model.ImportTaskStatusProcessing, 100))

	stale, err := tasks.ListStale(ctx, model.ImportTaskStatusProcessing, 50)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	require.Equal(t, "task-1", stale[0].ID)
}
