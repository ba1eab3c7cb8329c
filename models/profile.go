package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProfileStatus string

const (
	ProfileDraft   ProfileStatus = "draft"
	ProfileActive  ProfileStatus = "active"
	ProfileDeleted ProfileStatus = "deleted"
)

// Profile is a listing. Rows are never removed: Status carries the
// draft -> active -> deleted lifecycle instead.
type Profile struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time     `gorm:"index"`
	UserID      uuid.UUID     `gorm:"type:uuid;index;not null"`
	User        User          `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Status      ProfileStatus `gorm:"size:16;index;not null;default:draft"`
	Name        string        `gorm:"size:255"`
	Height      int
	Weight      int
	Description string `gorm:"type:text"`
	PhoneNumber string `gorm:"size:32;index"`
	City        string `gorm:"size:255;index"`
	ViewCount   int64  `gorm:"not null;default:0"`
	// Photos is a one-to-many relation from Profile to ProfilePhoto
	Photos []ProfilePhoto `gorm:"foreignKey:ProfileID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (p Profile) IsActive() bool { return p.Status == ProfileActive }
