package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CommentStatus string

const (
	CommentApproved CommentStatus = "approved"
	CommentInReview CommentStatus = "in_review"
	CommentRemoved  CommentStatus = "removed"
)

// Comment on a listing. A user keeps at most one non-removed comment per profile.
type Comment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time
	ProfileID uuid.UUID     `gorm:"type:uuid;index;not null"`
	UserID    uuid.UUID     `gorm:"type:uuid;index;not null"`
	User      User          `gorm:"foreignKey:UserID"`
	Text      string        `gorm:"type:text;not null"`
	Status    CommentStatus `gorm:"size:16;index;not null;default:approved"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
