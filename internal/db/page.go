package db

import "gorm.io/gorm"

// Page is an addressable document within a website.
type Page struct {
	gorm.Model
	WebsiteID       uint   `gorm:"not null;uniqueIndex:idx_pages_website_slug,priority:1"`
	Slug            string `gorm:"size:191;not null;uniqueIndex:idx_pages_website_slug,priority:2"`
	Title           string `gorm:"not null"`
	SeoTitle        string
	MetaDescription string `gorm:"type:text"`
	// PartKeys declares the part keys expected on this page; missing placements
	// are created for them on read.
	PartKeys StringList `gorm:"type:text"`
	Visible  bool       `gorm:"not null"`
}
