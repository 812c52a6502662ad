package model

import (
	"time"

	"taskboard/internal/engine"

	"github.com/google/uuid"
)

// Task positions are dense and zero-based within a (board, status) bucket.
type Task struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	BoardID     uuid.UUID  `gorm:"type:uuid;not null;index:idx_task_bucket"`
	Status      string     `gorm:"not null;index:idx_task_bucket"`
	Position    int        `gorm:"not null"`
	Title       string     `gorm:"not null"`
	Description *string
	Color       *string
	AssignedTo  *uuid.UUID `gorm:"type:uuid"`
	CreatedBy   uuid.UUID  `gorm:"type:uuid;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Board    Board `gorm:"foreignKey:BoardID"`
	Assignee *User `gorm:"foreignKey:AssignedTo"`
	Creator  User  `gorm:"foreignKey:CreatedBy"`
}

func (t Task) ToEngine() engine.Task {
	out := engine.Task{
		ID:          t.ID.String(),
		Title:       t.Title,
		Description: t.Description,
		Status:      engine.Status(t.Status),
		Color:       t.Color,
	}
	if t.AssignedTo != nil {
		id := t.AssignedTo.String()
		out.AssignedTo = &id
	}
	return out
}
