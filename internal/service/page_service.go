package service

import (
	"context"
	"errors"
	"strings"

	"github.com/pagewright/internal/db"
	"gorm.io/gorm"
)

// PageService provides access to the pages of a website.
type PageService struct {
	db *gorm.DB
}

// NewPageService returns a new PageService instance.
func NewPageService(gdb *gorm.DB) *PageService {
	return &PageService{db: gdb}
}

// PageInput carries the editable page attributes.
type PageInput struct {
	Slug            string
	Title           string
	SeoTitle        string
	MetaDescription string
	PartKeys        []string
	Hidden          bool
}

// GetBySlug fetches a page for a given slug.
func (s *PageService) GetBySlug(ctx context.Context, websiteID uint, slug string) (*db.Page, error) {
	var page db.Page
	err := s.db.WithContext(ctx).
		Where("website_id = ? AND slug = ?", websiteID, strings.TrimSpace(slug)).
		First(&page).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPageNotFound
		}
		return nil, internalError("load page", err)
	}
	return &page, nil
}

// List returns the pages of a website ordered by slug.
func (s *PageService) List(ctx context.Context, websiteID uint) ([]db.Page, error) {
	var pages []db.Page
	if err := s.db.WithContext(ctx).Where("website_id = ?", websiteID).Order("slug asc").Find(&pages).Error; err != nil {
		return nil, internalError("list pages", err)
	}
	return pages, nil
}

// Save creates or updates the page identified by input.Slug.
func (s *PageService) Save(ctx context.Context, websiteID uint, input PageInput) (*db.Page, error) {
	slug := strings.Trim(strings.TrimSpace(input.Slug), "/")
	fields := make(map[string][]string)
	if slug == "" {
		fields["slug"] = append(fields["slug"], "is required")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		fields["title"] = append(fields["title"], "is required")
	}
	if len(fields) > 0 {
		return nil, validationFailed(fields)
	}

	seoTitle := strings.TrimSpace(input.SeoTitle)
	if seoTitle == "" {
		seoTitle = title
	}

	keys := make(db.StringList, 0, len(input.PartKeys))
	for _, key := range input.PartKeys {
		if trimmed := strings.TrimSpace(key); trimmed != "" {
			keys = append(keys, trimmed)
		}
	}

	var page db.Page
	err := s.db.WithContext(ctx).Where("website_id = ? AND slug = ?", websiteID, slug).First(&page).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internalError("load page", err)
		}
		page = db.Page{
			WebsiteID:       websiteID,
			Slug:            slug,
			Title:           title,
			SeoTitle:        seoTitle,
			MetaDescription: strings.TrimSpace(input.MetaDescription),
			PartKeys:        keys,
			Visible:         !input.Hidden,
		}
		if err := s.db.WithContext(ctx).Create(&page).Error; err != nil {
			return nil, internalError("create page", err)
		}
		return &page, nil
	}

	page.Title = title
	page.SeoTitle = seoTitle
	page.MetaDescription = strings.TrimSpace(input.MetaDescription)
	page.PartKeys = keys
	page.Visible = !input.Hidden

	if err := s.db.WithContext(ctx).Save(&page).Error; err != nil {
		return nil, internalError("save page", err)
	}

	return &page, nil
}
