package repository

import (
	"context"
	"time"

	"taskboard/internal/engine"
	"taskboard/internal/model"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// SnapshotSource builds the full board view served to clients.
type SnapshotSource interface {
	LoadSnapshot(ctx context.Context, boardID uuid.UUID) (engine.Snapshot, error)
}

type SnapshotRepository struct {
	boards  *BoardRepository
	columns *ColumnRepository
	tasks   *TaskRepository
}

func NewSnapshotRepository(boards *BoardRepository, columns *ColumnRepository, tasks *TaskRepository) *SnapshotRepository {
	return &SnapshotRepository{boards: boards, columns: columns, tasks: tasks}
}

func (r *SnapshotRepository) LoadSnapshot(ctx context.Context, boardID uuid.UUID) (engine.Snapshot, error) {
	board, err := r.boards.GetByID(ctx, boardID)
	if err != nil {
		return engine.Snapshot{}, err
	}
	columns, err := r.columns.ListByBoard(ctx, boardID)
	if err != nil {
		return engine.Snapshot{}, err
	}
	tasks, err := r.tasks.ListByBoard(ctx, boardID)
	if err != nil {
		return engine.Snapshot{}, err
	}

	snap := toSnapshot(board.ID.String(), columns, tasks)
	snap.Name, snap.Code = board.Name, board.Code
	return snap, nil
}

func toSnapshot(boardID string, columns []model.Column, tasks []model.Task) engine.Snapshot {
	snap := engine.Snapshot{
		ID:      boardID,
		Columns: make([]engine.Column, len(columns)),
		Tasks:   make([]engine.Task, len(tasks)),
	}
	for i, c := range columns {
		snap.Columns[i] = c.ToEngine()
	}
	for i, t := range tasks {
		snap.Tasks[i] = t.ToEngine()
	}
	return snap
}

// SnapshotCache wraps a SnapshotSource with a Redis read-through cache.
// Every write to a board must call Evict. Redis errors fall back to the
// source.
type SnapshotCache struct {
	source SnapshotSource
	redis  *redis.Client
	ttl    time.Duration
	logger log.FieldLogger
}

func NewSnapshotCache(source SnapshotSource, client *redis.Client, ttl time.Duration, logger log.FieldLogger) *SnapshotCache {
	if source == nil {
		panic("repository.NewSnapshotCache: source is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &SnapshotCache{source: source, redis: client, ttl: ttl, logger: logger}
}

func (c *SnapshotCache) LoadSnapshot(ctx context.Context, boardID uuid.UUID) (engine.Snapshot, error) {
	if snap, ok := c.load(ctx, boardID); ok {
		return snap, nil
	}

	snap, err := c.source.LoadSnapshot(ctx, boardID)
	if err != nil {
		return engine.Snapshot{}, err
	}

	c.store(ctx, boardID, snap)
	return snap, nil
}

func (c *SnapshotCache) Evict(ctx context.Context, boardID uuid.UUID) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, snapshotCacheKey(boardID)).Err(); err != nil {
		c.logger.WithError(err).WithField("board_id", boardID).Warn("snapshot cache evict failed")
	}
}

func (c *SnapshotCache) load(ctx context.Context, boardID uuid.UUID) (engine.Snapshot, bool) {
	if c.redis == nil {
		return engine.Snapshot{}, false
	}
	key := snapshotCacheKey(boardID)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).Debug("snapshot cache read failed")
			_ = c.redis.Del(ctx, key).Err()
		}
		return engine.Snapshot{}, false
	}
	var snap engine.Snapshot
	if err := sonic.Unmarshal(data, &snap); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return engine.Snapshot{}, false
	}
	return snap, true
}

func (c *SnapshotCache) store(ctx context.Context, boardID uuid.UUID, snap engine.Snapshot) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(snap)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, snapshotCacheKey(boardID), data, c.ttl).Err()
}

func snapshotCacheKey(boardID uuid.UUID) string {
	return "board:snapshot:" + boardID.String()
}
