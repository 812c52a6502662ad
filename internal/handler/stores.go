package handler

import (
	"context"
	"net/http"

	"taskboard/internal/engine"
	"taskboard/internal/middleware"
	"taskboard/internal/model"
	"taskboard/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

type BoardStore interface {
	Create(ctx context.Context, board *model.Board) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Board, error)
	GetByCode(ctx context.Context, code string) (*model.Board, error)
	ListForMember(ctx context.Context, userID uuid.UUID) ([]model.Board, error)
	Rename(ctx context.Context, id uuid.UUID, name string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type MemberStore interface {
	AddMember(ctx context.Context, boardID, userID uuid.UUID) error
	IsMember(ctx context.Context, boardID, userID uuid.UUID) (bool, error)
	ListMembers(ctx context.Context, boardID uuid.UUID) ([]model.BoardMember, error)
}

type ColumnStore interface {
	GetBySlug(ctx context.Context, boardID uuid.UUID, slug string) (*model.Column, error)
	UpdateSettings(ctx context.Context, column *model.Column) error
}

type TaskStore interface {
	Create(ctx context.Context, task *model.Task) error
	GetByID(ctx context.Context, boardID, id uuid.UUID) (*model.Task, error)
	// Update writes detail edits and the move chosen by planner atomically.
	Update(ctx context.Context, task *model.Task, details bool, planner repository.Planner) error
	Delete(ctx context.Context, boardID, id uuid.UUID) error
}

// SnapshotLoader builds the full board view.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context, boardID uuid.UUID) (engine.Snapshot, error)
}

// CacheEvicter drops cached board views after a write.
type CacheEvicter interface {
	Evict(ctx context.Context, boardID uuid.UUID)
}

// BoardViews serves cached board views and drops them when a board changes.
type BoardViews interface {
	SnapshotLoader
	CacheEvicter
}

func currentUser(c *gin.Context) (uuid.UUID, bool) {
	value, exists := c.Get(middleware.UserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return uuid.Nil, false
	}
	userID, ok := value.(uuid.UUID)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Invalid user ID format"})
		return uuid.Nil, false
	}
	return userID, true
}

// boardAccess resolves the caller and the :id board and checks membership.
// It writes the error response itself; callers return when ok is false.
func boardAccess(c *gin.Context, members MemberStore) (userID, boardID uuid.UUID, ok bool) {
	userID, ok = currentUser(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	boardID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid board ID format"})
		return uuid.Nil, uuid.Nil, false
	}

	member, err := members.IsMember(c.Request.Context(), boardID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check access"})
		return uuid.Nil, uuid.Nil, false
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not a member of this board"})
		return uuid.Nil, uuid.Nil, false
	}
	return userID, boardID, true
}
