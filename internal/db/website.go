package db

import "gorm.io/gorm"

// Website is a tenant owning pages and page parts.
type Website struct {
	gorm.Model
	Slug          string `gorm:"size:100;uniqueIndex;not null"`
	Name          string `gorm:"not null"`
	DefaultLocale string `gorm:"size:16;not null"`
}
