package repository

import (
	"context"
	"errors"

	"taskboard/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ColumnRepository struct {
	db *gorm.DB
}

func NewColumnRepository(db *gorm.DB) *ColumnRepository {
	return &ColumnRepository{db: db}
}

func (r *ColumnRepository) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]model.Column, error) {
	return listColumns(r.db.WithContext(ctx), boardID)
}

func listColumns(db *gorm.DB, boardID uuid.UUID) ([]model.Column, error) {
	var columns []model.Column
	err := db.Where("board_id = ?", boardID).Order("position").Find(&columns).Error
	return columns, err
}

func (r *ColumnRepository) GetBySlug(ctx context.Context, boardID uuid.UUID, slug string) (*model.Column, error) {
	var column model.Column
	err := r.db.WithContext(ctx).Where("board_id = ? AND slug = ?", boardID, slug).First(&column).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrColumnNotFound
		}
		return nil, err
	}
	return &column, nil
}

// UpdateSettings writes the WIP limit and done rule. Both may be cleared.
func (r *ColumnRepository) UpdateSettings(ctx context.Context, column *model.Column) error {
	result := r.db.WithContext(ctx).Model(column).
		Select("wip_limit", "done_rule").
		Updates(map[string]any{"wip_limit": column.WipLimit, "done_rule": column.DoneRule})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrColumnNotFound
	}
	return nil
}
