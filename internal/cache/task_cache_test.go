package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskmanager/internal/models"
	"taskmanager/internal/repository"
	"taskmanager/internal/testutil"
)

func setupCache(t *testing.T) (*CachedTaskStore, *testutil.TaskStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	users := testutil.NewUserStore()
	_, err = users.Create(context.Background(), "owner@example.com", "hash", models.RoleUser)
	require.NoError(t, err)
	inner := testutil.NewTaskStore(users)
	return NewCachedTaskStore(inner, client, time.Minute), inner, mr
}

func seedTask(t *testing.T, store repository.TaskStore, title string) models.Task {
	t.Helper()
	task, err := store.Insert(context.Background(), models.Task{
		Title: title, Status: models.StatusPending, Priority: models.PriorityMedium,
		CreatedBy: models.UserRef{ID: 1}, AssignedTo: models.UserRef{ID: 1},
	})
	require.NoError(t, err)
	return task
}

func TestFindByIDReadsThrough(t *testing.T) {
	store, inner, mr := setupCache(t)
	ctx := context.Background()
	task := seedTask(t, inner, "first")

	got, err := store.FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Title)
	assert.True(t, mr.Exists(cacheKey(task.ID)))
	assert.Equal(t, time.Minute, mr.TTL(cacheKey(task.ID)))

	// served from redis even though the inner store changed underneath
	title := "changed behind the cache"
	_, err = inner.UpdateByID(ctx, task.ID, repository.TaskPatch{Title: &title})
	require.NoError(t, err)
	got, err = store.FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Title)
}

func TestUpdateRefreshesCache(t *testing.T) {
	store, inner, _ := setupCache(t)
	ctx := context.Background()
	task := seedTask(t, inner, "first")
	_, err := store.FindByID(ctx, task.ID)
	require.NoError(t, err)

	title := "second"
	_, err = store.UpdateByID(ctx, task.ID, repository.TaskPatch{Title: &title})
	require.NoError(t, err)

	got, err := store.FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Title)
}

func TestDeleteInvalidates(t *testing.T) {
	store, inner, mr := setupCache(t)
	ctx := context.Background()
	task := seedTask(t, inner, "first")
	_, err := store.FindByID(ctx, task.ID)
	require.NoError(t, err)

	require.NoError(t, store.DeleteByID(ctx, task.ID))
	assert.False(t, mr.Exists(cacheKey(task.ID)))

	_, err = store.FindByID(ctx, task.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestFindDoesNotCacheRows(t *testing.T) {
	store, inner, mr := setupCache(t)
	a := seedTask(t, inner, "a")
	b := seedTask(t, inner, "b")

	tasks, err := store.Find(context.Background(), repository.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
	assert.False(t, mr.Exists(cacheKey(a.ID)))
	assert.False(t, mr.Exists(cacheKey(b.ID)))
}

func TestListBeforeUpdateDoesNotPinOldRow(t *testing.T) {
	store, inner, _ := setupCache(t)
	ctx := context.Background()
	task := seedTask(t, inner, "old")

	// a list read that started before the update completes after it
	listed, err := store.Find(ctx, repository.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, listed, 1)

	title := "new"
	_, err = store.UpdateByID(ctx, task.ID, repository.TaskPatch{
		Title:     &title,
		Documents: []models.Document{{Filename: "a.pdf", Path: "a.pdf"}},
	})
	require.NoError(t, err)

	got, err := store.FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Title)
	assert.Len(t, got.Documents, 1)
}

func TestUpdateLeavesNoKeyBehind(t *testing.T) {
	store, inner, mr := setupCache(t)
	ctx := context.Background()
	task := seedTask(t, inner, "first")
	_, err := store.FindByID(ctx, task.ID)
	require.NoError(t, err)

	title := "second"
	_, err = store.UpdateByID(ctx, task.ID, repository.TaskPatch{Title: &title})
	require.NoError(t, err)
	assert.False(t, mr.Exists(cacheKey(task.ID)))
}

func TestUncachedSkipsRedis(t *testing.T) {
	store, inner, _ := setupCache(t)
	ctx := context.Background()
	task := seedTask(t, inner, "first")
	_, err := store.FindByID(ctx, task.ID)
	require.NoError(t, err)

	title := "changed behind the cache"
	_, err = inner.UpdateByID(ctx, task.ID, repository.TaskPatch{Title: &title})
	require.NoError(t, err)

	got, err := repository.Uncached(store).FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, title, got.Title)
}

func TestRedisOutageFallsThrough(t *testing.T) {
	store, inner, mr := setupCache(t)
	task := seedTask(t, inner, "first")
	mr.Close()

	got, err := store.FindByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Title)
}
