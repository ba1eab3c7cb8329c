package models

type CityStatus string

const (
	CityOn  CityStatus = "on"
	CityOff CityStatus = "off"
)

// City is reference data for the listing filter and the sitemap.
type City struct {
	ID     uint       `gorm:"primaryKey"`
	Name   string     `gorm:"size:255;uniqueIndex;not null"`
	Status CityStatus `gorm:"size:8;not null;default:on"`
}
