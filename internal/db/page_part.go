package db

import "time"

// PagePart is the per-tenant instance of a part definition. An empty PageSlug
// marks the website-wide record used by every page without its own override.
type PagePart struct {
	ID            uint `gorm:"primarykey"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
	WebsiteID     uint          `gorm:"not null;uniqueIndex:idx_page_parts_scope,priority:1"`
	PartKey       string        `gorm:"size:191;not null;uniqueIndex:idx_page_parts_scope,priority:2"`
	PageSlug      string        `gorm:"size:191;not null;default:'';uniqueIndex:idx_page_parts_scope,priority:3"`
	BlockContents BlockContents `gorm:"type:text;not null"`
	Template      string        `gorm:"type:text"`
	ShowInEditor  bool          `gorm:"not null"`
	OrderInEditor int           `gorm:"not null;default:0"`
}

// IsWebsiteWide reports whether the record applies to every page of the website.
func (p PagePart) IsWebsiteWide() bool {
	return p.PageSlug == ""
}
