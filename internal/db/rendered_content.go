package db

import "time"

const (
	RenderSourceTemplate = "template"
	RenderSourceClient   = "client"
)

// RenderedContent caches the HTML of one placement in one locale. It is never
// authoritative; block contents are.
type RenderedContent struct {
	ID            uint `gorm:"primarykey"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PageContentID uint   `gorm:"not null;uniqueIndex:idx_rendered_contents_scope,priority:1"`
	Locale        string `gorm:"size:16;not null;uniqueIndex:idx_rendered_contents_scope,priority:2"`
	HTML          string `gorm:"type:text"`
	Source        string `gorm:"size:16"`
}
