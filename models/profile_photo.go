package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PhotoStatus string

const (
	PhotoActive  PhotoStatus = "active"
	PhotoDeleted PhotoStatus = "deleted"
)

// ProfilePhoto points at a file stored under <photos root>/<ProfileID>/<FileName>.
// FileName is generated by the server, never taken from the client.
type ProfilePhoto struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time
	ProfileID uuid.UUID   `gorm:"type:uuid;index;not null"`
	Status    PhotoStatus `gorm:"size:16;index;not null;default:active"`
	FileName  string      `gorm:"size:255;not null"`
	Size      int64       `gorm:"not null"`
}

func (p *ProfilePhoto) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
