package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ReportStatus string

const (
	ReportNew      ReportStatus = "new"
	ReportReviewed ReportStatus = "reviewed"
)

// Report is a free-text abuse report. Anonymous reports have a nil UserID.
type Report struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time
	UserID    *uuid.UUID   `gorm:"type:uuid;index"`
	ProfileID *uuid.UUID   `gorm:"type:uuid;index"`
	Text      string       `gorm:"type:text;not null"`
	Status    ReportStatus `gorm:"size:16;index;not null;default:new"`
	// request metadata: ip, user agent, request id
	Context datatypes.JSONMap
}

func (r *Report) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
