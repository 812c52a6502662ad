package repository

import (
	"context"
	"errors"
	"strings"

	"taskboard/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type BoardRepository struct {
	db *gorm.DB
}

func NewBoardRepository(db *gorm.DB) *BoardRepository {
	return &BoardRepository{db: db}
}

// joinCodeAttempts bounds how often Create draws a new join code after a
// collision with an existing board.
const joinCodeAttempts = 5

// SQLSTATE unique_violation
const uniqueViolation = "23505"

// Create stores a board together with its default columns and makes the
// owner its first member. A generated join code that is already taken is
// replaced and the insert retried.
func (r *BoardRepository) Create(ctx context.Context, board *model.Board) error {
	if board.ID == uuid.Nil {
		board.ID = uuid.New()
	}
	generated := board.Code == ""
	for attempt := 1; ; attempt++ {
		if generated {
			board.Code = NewJoinCode()
		}
		err := r.create(ctx, board)
		if err == nil || !generated || !isJoinCodeCollision(err) || attempt == joinCodeAttempts {
			return err
		}
		log.WithField("attempt", attempt).Debug("join code taken, drawing another")
	}
}

func (r *BoardRepository) create(ctx context.Context, board *model.Board) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Owner", "Columns", "Members").Create(board).Error; err != nil {
			return err
		}
		columns := model.DefaultColumns(board.ID)
		if err := tx.Create(&columns).Error; err != nil {
			return err
		}
		board.Columns = columns
		return tx.Create(&model.BoardMember{BoardID: board.ID, UserID: board.OwnerID}).Error
	})
}

func isJoinCodeCollision(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation && strings.Contains(pgErr.ConstraintName, "code")
	}
	return false
}

func (r *BoardRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Board, error) {
	var board model.Board
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&board).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBoardNotFound
		}
		return nil, err
	}
	return &board, nil
}

func (r *BoardRepository) GetByCode(ctx context.Context, code string) (*model.Board, error) {
	var board model.Board
	err := r.db.WithContext(ctx).Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).First(&board).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBoardNotFound
		}
		return nil, err
	}
	return &board, nil
}

// ListForMember returns the boards userID belongs to, newest first.
func (r *BoardRepository) ListForMember(ctx context.Context, userID uuid.UUID) ([]model.Board, error) {
	var boards []model.Board
	err := r.db.WithContext(ctx).
		Joins("JOIN board_members ON board_members.board_id = boards.id").
		Where("board_members.user_id = ?", userID).
		Order("boards.created_at DESC").
		Find(&boards).Error
	return boards, err
}

func (r *BoardRepository) Rename(ctx context.Context, id uuid.UUID, name string) error {
	result := r.db.WithContext(ctx).Model(&model.Board{}).Where("id = ?", id).Update("name", name)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBoardNotFound
	}
	return nil
}

// Delete removes a board with its tasks, columns and memberships.
func (r *BoardRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("board_id = ?", id).Delete(&model.Task{}).Error; err != nil {
			return err
		}
		if err := tx.Where("board_id = ?", id).Delete(&model.Column{}).Error; err != nil {
			return err
		}
		if err := tx.Where("board_id = ?", id).Delete(&model.BoardMember{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&model.Board{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrBoardNotFound
		}
		return nil
	})
}

// NewJoinCode returns a short code other users can join a board with.
func NewJoinCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
