package db

import "time"

// PageContent places a page part on a page. Root placements have no parent;
// nested placements live in one slot of a container parent.
type PageContent struct {
	ID            uint `gorm:"primarykey"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
	WebsiteID     uint   `gorm:"not null;index"`
	PageID        uint   `gorm:"not null;index:idx_page_contents_tree,priority:1"`
	PagePartKey   string `gorm:"size:191;not null"`
	ParentID      *uint  `gorm:"index:idx_page_contents_tree,priority:2"`
	SlotName      string `gorm:"size:100;not null;default:''"`
	SortOrder     int    `gorm:"not null;default:0"`
	VisibleOnPage bool   `gorm:"not null"`
	Label         string
	// CodeRendered marks placements whose HTML is produced outside the
	// template path; the engine never renders them.
	CodeRendered bool `gorm:"not null"`
}

// IsRoot reports whether the placement sits at the root level of its page.
func (c PageContent) IsRoot() bool {
	return c.ParentID == nil
}
