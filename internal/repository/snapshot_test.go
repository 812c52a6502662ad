package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"taskboard/internal/engine"
	"taskboard/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	calls int
	snap  engine.Snapshot
	err   error
}

func (s *stubSource) LoadSnapshot(ctx context.Context, boardID uuid.UUID) (engine.Snapshot, error) {
	s.calls++
	return s.snap, s.err
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func sampleSnapshot(boardID uuid.UUID) engine.Snapshot {
	limit := 2
	return engine.Snapshot{
		ID:   boardID.String(),
		Name: "Team board",
		Code: "ABCD1234",
		Columns: []engine.Column{
			{ID: "backlog", Title: "Backlog"},
			{ID: "test", Title: "Test", AllowWipLimit: true, WipLimit: &limit},
		},
		Tasks: []engine.Task{{ID: "t1", Title: "Write tests", Status: engine.StatusTest}},
	}
}

func TestSnapshotCache_MissThenHit(t *testing.T) {
	// Arrange
	mr, client := setupRedis(t)
	boardID := uuid.New()
	source := &stubSource{snap: sampleSnapshot(boardID)}
	logger, _ := test.NewNullLogger()
	cache := repository.NewSnapshotCache(source, client, time.Minute, logger)

	// Act
	first, err := cache.LoadSnapshot(context.Background(), boardID)
	require.NoError(t, err)
	second, err := cache.LoadSnapshot(context.Background(), boardID)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, source.snap, first)
	assert.Equal(t, source.snap, second)
	assert.Equal(t, 1, source.calls)
	ttl := mr.TTL("board:snapshot:" + boardID.String())
	assert.True(t, ttl > 0 && ttl <= time.Minute, "unexpected ttl %v", ttl)
}

func TestSnapshotCache_EvictForcesReload(t *testing.T) {
	mr, client := setupRedis(t)
	boardID := uuid.New()
	source := &stubSource{snap: sampleSnapshot(boardID)}
	cache := repository.NewSnapshotCache(source, client, time.Minute, nil)

	_, err := cache.LoadSnapshot(context.Background(), boardID)
	require.NoError(t, err)

	cache.Evict(context.Background(), boardID)
	assert.False(t, mr.Exists("board:snapshot:"+boardID.String()))

	source.snap.Name = "Renamed"
	got, err := cache.LoadSnapshot(context.Background(), boardID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, 2, source.calls)
}

func TestSnapshotCache_CorruptEntryFallsBack(t *testing.T) {
	mr, client := setupRedis(t)
	boardID := uuid.New()
	source := &stubSource{snap: sampleSnapshot(boardID)}
	cache := repository.NewSnapshotCache(source, client, time.Minute, nil)
	require.NoError(t, mr.Set("board:snapshot:"+boardID.String(), "{not json"))

	got, err := cache.LoadSnapshot(context.Background(), boardID)

	require.NoError(t, err)
	assert.Equal(t, "Team board", got.Name)
	assert.Equal(t, 1, source.calls)
}

func TestSnapshotCache_RedisDownFallsBack(t *testing.T) {
	mr, client := setupRedis(t)
	boardID := uuid.New()
	source := &stubSource{snap: sampleSnapshot(boardID)}
	logger, _ := test.NewNullLogger()
	cache := repository.NewSnapshotCache(source, client, time.Minute, logger)
	mr.Close()

	got, err := cache.LoadSnapshot(context.Background(), boardID)

	require.NoError(t, err)
	assert.Equal(t, source.snap, got)
}

func TestSnapshotCache_SourceErrorIsNotCached(t *testing.T) {
	mr, client := setupRedis(t)
	boardID := uuid.New()
	source := &stubSource{err: errors.New("db down")}
	cache := repository.NewSnapshotCache(source, client, time.Minute, nil)

	_, err := cache.LoadSnapshot(context.Background(), boardID)

	assert.Error(t, err)
	assert.False(t, mr.Exists("board:snapshot:"+boardID.String()))
}

func TestSnapshotCache_NilClientPassesThrough(t *testing.T) {
	boardID := uuid.New()
	source := &stubSource{snap: sampleSnapshot(boardID)}
	cache := repository.NewSnapshotCache(source, nil, time.Minute, nil)

	_, _ = cache.LoadSnapshot(context.Background(), boardID)
	_, _ = cache.LoadSnapshot(context.Background(), boardID)
	cache.Evict(context.Background(), boardID)

	assert.Equal(t, 2, source.calls)
}
