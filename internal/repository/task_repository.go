package repository

import (
	"context"
	"errors"

	"taskboard/internal/engine"
	"taskboard/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create appends the task to the end of its status bucket.
func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Task{}).
			Where("board_id = ? AND status = ?", task.BoardID, task.Status).
			Count(&count).Error; err != nil {
			return err
		}
		task.Position = int(count)
		return tx.Omit("Board", "Assignee", "Creator").Create(task).Error
	})
}

func (r *TaskRepository) GetByID(ctx context.Context, boardID, id uuid.UUID) (*model.Task, error) {
	var task model.Task
	result := r.db.WithContext(ctx).First(&task, "id = ? AND board_id = ?", id, boardID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, result.Error
	}
	return &task, nil
}

// ListByBoard returns every task of a board ordered by bucket position, so
// a stable grouping by status reproduces the stored order.
func (r *TaskRepository) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]model.Task, error) {
	return listTasks(r.db.WithContext(ctx), boardID)
}

func listTasks(db *gorm.DB, boardID uuid.UUID) ([]model.Task, error) {
	var tasks []model.Task
	result := db.
		Where("board_id = ?", boardID).
		Order("position").
		Order("created_at").
		Find(&tasks)
	if result.Error != nil {
		return nil, result.Error
	}
	return tasks, nil
}

// Placement is the status bucket and index a task is moved to.
type Placement struct {
	Status   string
	Position int
}

// Planner decides where a task goes, given the board as read inside the
// update transaction. A nil Placement leaves the task where it is; an error
// aborts the whole update.
type Planner func(snap engine.Snapshot) (*Placement, error)

// Update writes a task's detail edits and, if planner places it, its move in
// one transaction. The board row is locked before anything is read, so
// concurrent updates of one board are planned one after the other.
func (r *TaskRepository) Update(ctx context.Context, task *model.Task, details bool, planner Planner) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var board model.Board
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&board, "id = ?", task.BoardID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBoardNotFound
			}
			return err
		}

		var place *Placement
		if planner != nil {
			snap, err := boardRows(tx, task.BoardID)
			if err != nil {
				return err
			}
			if place, err = planner(snap); err != nil {
				return err
			}
		}

		if details {
			if err := updateDetails(tx, task); err != nil {
				return err
			}
		}
		if place == nil {
			return nil
		}
		moved, err := moveTask(tx, task.ID, place.Status, place.Position)
		if err != nil {
			return err
		}
		task.Status, task.Position = moved.Status, moved.Position
		return nil
	})
}

// boardRows reads the columns and tasks of a board into a snapshot without
// the board's name or code.
func boardRows(tx *gorm.DB, boardID uuid.UUID) (engine.Snapshot, error) {
	columns, err := listColumns(tx, boardID)
	if err != nil {
		return engine.Snapshot{}, err
	}
	tasks, err := listTasks(tx, boardID)
	if err != nil {
		return engine.Snapshot{}, err
	}
	return toSnapshot(boardID.String(), columns, tasks), nil
}

func updateDetails(tx *gorm.DB, task *model.Task) error {
	result := tx.Model(task).
		Select("title", "description", "color", "assigned_to").
		Updates(map[string]any{
			"title":       task.Title,
			"description": task.Description,
			"color":       task.Color,
			"assigned_to": task.AssignedTo,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// Delete removes a task and closes the gap it leaves in its bucket.
func (r *TaskRepository) Delete(ctx context.Context, boardID, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task model.Task
		if err := tx.First(&task, "id = ? AND board_id = ?", id, boardID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTaskNotFound
			}
			return err
		}
		if err := tx.Delete(&model.Task{}, "id = ?", id).Error; err != nil {
			return err
		}
		return tx.Model(&model.Task{}).
			Where("board_id = ? AND status = ? AND position > ?", boardID, task.Status, task.Position).
			Update("position", gorm.Expr("position - 1")).Error
	})
}

// moveTask puts a task into a status bucket at newPosition, shifting its
// neighbours in both the old and the new bucket.
func moveTask(tx *gorm.DB, taskID uuid.UUID, status string, newPosition int) (*model.Task, error) {
	var task model.Task
	if err := tx.First(&task, "id = ?", taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}

	oldStatus := task.Status
	oldPosition := task.Position
	shift := func(expr string, query string, args ...any) error {
		return tx.Model(&model.Task{}).
			Where("board_id = ?", task.BoardID).
			Where(query, args...).
			Update("position", gorm.Expr(expr)).Error
	}

	switch {
	case oldStatus != status:
		if err := shift("position - 1", "status = ? AND position > ?", oldStatus, oldPosition); err != nil {
			return nil, err
		}
		if err := shift("position + 1", "status = ? AND position >= ?", status, newPosition); err != nil {
			return nil, err
		}
	case oldPosition < newPosition:
		if err := shift("position - 1", "status = ? AND position > ? AND position <= ?", status, oldPosition, newPosition); err != nil {
			return nil, err
		}
	case oldPosition > newPosition:
		if err := shift("position + 1", "status = ? AND position >= ? AND position < ?", status, newPosition, oldPosition); err != nil {
			return nil, err
		}
	default:
		return &task, nil
	}

	task.Status = status
	task.Position = newPosition
	err := tx.Model(&task).Select("status", "position").
		Updates(map[string]any{"status": status, "position": newPosition}).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}
