package model

import (
	"taskboard/internal/engine"

	"github.com/google/uuid"
)

// Column is a board-scoped column. Slug is the stable identifier the status
// vocabulary is derived from ("backlog", "specification", ...).
type Column struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	BoardID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_board_column_slug"`
	Slug           string    `gorm:"not null;uniqueIndex:idx_board_column_slug"`
	Title          string    `gorm:"not null"`
	Position       int       `gorm:"not null"`
	HasSubsections bool      `gorm:"not null;default:false"`
	AllowWipLimit  bool      `gorm:"not null;default:false"`
	WipLimit       *int
	DoneRule       *string

	Board Board `gorm:"foreignKey:BoardID"`
}

func (c Column) ToEngine() engine.Column {
	return engine.Column{
		ID:             c.Slug,
		Title:          c.Title,
		HasSubsections: c.HasSubsections,
		AllowWipLimit:  c.AllowWipLimit,
		WipLimit:       c.WipLimit,
		DoneRule:       c.DoneRule,
	}
}

// DefaultColumns is the column set every new board starts with.
func DefaultColumns(boardID uuid.UUID) []Column {
	defs := engine.DefaultColumns()
	cols := make([]Column, len(defs))
	for i, d := range defs {
		cols[i] = Column{
			BoardID:        boardID,
			Slug:           d.ID,
			Title:          d.Title,
			Position:       i,
			HasSubsections: d.HasSubsections,
			AllowWipLimit:  d.AllowWipLimit,
		}
	}
	return cols
}
