package inmemory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/telegrind/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_PreservesOrderPerKey(t *testing.T) {
	q := NewQueue(4, 64, nil)

	var mu sync.Mutex
	seen := map[int64][]int{}
	handler := func(ctx context.Context, job *jobs.Job) error {
		mu.Lock()
		defer mu.Unlock()
		seen[job.Key] = append(seen[job.Key], job.Payload.(int))
		return nil
	}
	require.NoError(t, q.Start(context.Background(), handler))

	keys := []int64{1, 2, 3, -100500}
	for i := 0; i < 20; i++ {
		for _, k := range keys {
			require.NoError(t, q.Publish(context.Background(), &jobs.Job{Key: k, Payload: i}))
		}
	}
	require.NoError(t, q.Stop(context.Background()))

	for _, k := range keys {
		require.Len(t, seen[k], 20, "key %d", k)
		for i, v := range seen[k] {
			assert.Equal(t, i, v, "key %d", k)
		}
	}
}

func TestQueue_SameKeyNeverConcurrent(t *testing.T) {
	q := NewQueue(8, 16, nil)

	var mu sync.Mutex
	running := 0
	overlap := false
	handler := func(ctx context.Context, job *jobs.Job) error {
		mu.Lock()
		running++
		if running > 1 {
			overlap = true
		}
		mu.Unlock()

		time.Sleep(time.Millisecond)

		mu.Lock()
		running--
		mu.Unlock()
		return nil
	}
	require.NoError(t, q.Start(context.Background(), handler))
	for i := 0; i < 10; i++ {
		require.NoError(t, q.Publish(context.Background(), &jobs.Job{Key: 42}))
	}
	require.NoError(t, q.Stop(context.Background()))
	assert.False(t, overlap)
}

func TestQueue_RecordsStatusWithoutRetry(t *testing.T) {
	store := NewStore(0)
	q := NewQueue(1, 4, store)

	calls := 0
	handler := func(ctx context.Context, job *jobs.Job) error {
		calls++
		if job.Kind == "bad" {
			return errors.New("sheet unavailable")
		}
		return nil
	}
	require.NoError(t, q.Start(context.Background(), handler))

	good := &jobs.Job{Key: 1, Kind: "good"}
	bad := &jobs.Job{Key: 1, Kind: "bad"}
	require.NoError(t, q.Publish(context.Background(), good))
	require.NoError(t, q.Publish(context.Background(), bad))
	require.NoError(t, q.Stop(context.Background()))

	assert.Equal(t, 2, calls)

	got, err := store.GetJob(context.Background(), good.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)

	got, err = store.GetJob(context.Background(), bad.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusFailed, got.Status)
	assert.Equal(t, "sheet unavailable", got.Error)
}

func TestQueue_BusyKeyDoesNotBlockOthers(t *testing.T) {
	ctx := context.Background()
	store := NewStore(0)
	q := NewQueue(2, 1, store)
	q.SetPublishTimeout(20 * time.Millisecond)

	// Not started: the first job fills key 0's buffer.
	require.NoError(t, q.Publish(ctx, &jobs.Job{Key: 0, Kind: "first"}))

	dropped := &jobs.Job{Key: 0, Kind: "second"}
	start := time.Now()
	err := q.Publish(ctx, dropped)
	require.ErrorIs(t, err, jobs.ErrQueueFull)
	assert.Less(t, time.Since(start), time.Second)

	got, err := store.GetJob(ctx, dropped.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusFailed, got.Status)
	assert.Equal(t, jobs.ErrQueueFull.Error(), got.Error)

	// Another chat lands on the other worker and is accepted at once.
	require.NoError(t, q.Publish(ctx, &jobs.Job{Key: 1, Kind: "other"}))

	handled := make(chan string, 2)
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.Job) error {
		handled <- job.Kind
		return nil
	}))
	require.NoError(t, q.Stop(ctx))
	close(handled)

	var kinds []string
	for k := range handled {
		kinds = append(kinds, k)
	}
	assert.ElementsMatch(t, []string{"first", "other"}, kinds)
}

func TestQueue_RejectsAfterStop(t *testing.T) {
	q := NewQueue(2, 1, nil)
	require.NoError(t, q.Start(context.Background(), func(ctx context.Context, job *jobs.Job) error { return nil }))
	require.NoError(t, q.Stop(context.Background()))

	assert.Error(t, q.Publish(context.Background(), &jobs.Job{Key: 1}))
	assert.Error(t, q.Start(context.Background(), nil))
	assert.NoError(t, q.Stop(context.Background()))

	select {
	case <-q.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
}

func TestStore_ListAndEvict(t *testing.T) {
	ctx := context.Background()
	store := NewStore(3)
	base := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	for i, key := range []int64{1, 2, 1, 1} {
		job := &jobs.Job{
			ID:        string(rune('a' + i)),
			Key:       key,
			Status:    jobs.JobStatusCompleted,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.SaveJob(ctx, job))
	}

	_, err := store.GetJob(ctx, "a")
	assert.Error(t, err, "oldest job should be evicted")

	list, err := store.ListJobs(ctx, jobs.JobFilter{Key: 1})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "d", list[0].ID)
	assert.Equal(t, "c", list[1].ID)

	list, err = store.ListJobs(ctx, jobs.JobFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "c", list[0].ID)

	assert.Error(t, store.SaveJob(ctx, &jobs.Job{}))
}
