package model

import (
	"time"

	"github.com/google/uuid"
)

// BoardMember links a user to a board they may read and edit.
type BoardMember struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	BoardID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_board_member"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_board_member"`
	JoinedAt time.Time `gorm:"autoCreateTime"`

	Board Board `gorm:"foreignKey:BoardID"`
	User  User  `gorm:"foreignKey:UserID"`
}
