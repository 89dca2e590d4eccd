package service

import (
	"context"
	"errors"
	"strings"

	"github.com/pagewright/internal/db"
	"gorm.io/gorm"
)

// WebsiteService looks up and registers tenants.
type WebsiteService struct {
	db *gorm.DB
}

// NewWebsiteService creates a WebsiteService.
func NewWebsiteService(gdb *gorm.DB) *WebsiteService {
	return &WebsiteService{db: gdb}
}

// GetBySlug fetches a website by slug.
func (s *WebsiteService) GetBySlug(ctx context.Context, slug string) (*db.Website, error) {
	var website db.Website
	err := s.db.WithContext(ctx).Where("slug = ?", strings.TrimSpace(slug)).First(&website).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWebsiteNotFound
		}
		return nil, internalError("load website", err)
	}
	return &website, nil
}

// Ensure returns the website with slug, creating it when missing.
func (s *WebsiteService) Ensure(ctx context.Context, slug, name, defaultLocale string) (*db.Website, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, validationFailed(map[string][]string{"slug": {"is required"}})
	}
	if strings.TrimSpace(name) == "" {
		name = slug
	}
	if strings.TrimSpace(defaultLocale) == "" {
		defaultLocale = "en"
	}

	website := db.Website{Slug: slug, Name: name, DefaultLocale: defaultLocale}
	if err := s.db.WithContext(ctx).Where(db.Website{Slug: slug}).FirstOrCreate(&website).Error; err != nil {
		return nil, internalError("ensure website", err)
	}
	return &website, nil
}
