package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pagewright/internal/db"
	"github.com/pagewright/internal/metrics"
	"github.com/pagewright/internal/parts"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PagePartService resolves and creates the page part record behind a
// (website, part key, page) triple.
type PagePartService struct {
	db            *gorm.DB
	registry      *parts.Registry
	defaultLocale string
	log           logrus.FieldLogger
	group         singleflight.Group
}

// NewPagePartService creates a PagePartService. New records are seeded under
// defaultLocale.
func NewPagePartService(gdb *gorm.DB, registry *parts.Registry, defaultLocale string, log logrus.FieldLogger) *PagePartService {
	if strings.TrimSpace(defaultLocale) == "" {
		defaultLocale = "en"
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &PagePartService{db: gdb, registry: registry, defaultLocale: defaultLocale, log: log}
}

// Resolve looks up the record for key on pageSlug: the page-specific record
// first, then the website-wide one. It never creates anything and returns
// (nil, nil) when neither exists.
func (s *PagePartService) Resolve(ctx context.Context, site *Site, key, pageSlug string) (*db.PagePart, error) {
	if part, ok := site.cachedPart(key, pageSlug); ok {
		return part, nil
	}

	part, err := s.lookup(s.db.WithContext(ctx), site.WebsiteID, key, pageSlug)
	if err != nil {
		return nil, internalError("resolve page part", err)
	}
	if part != nil {
		site.rememberPart(key, pageSlug, part)
	}
	return part, nil
}

func (s *PagePartService) lookup(tx *gorm.DB, websiteID uint, key, pageSlug string) (*db.PagePart, error) {
	scopes := []string{pageSlug}
	if pageSlug != "" {
		scopes = append(scopes, "")
	}

	for _, scope := range scopes {
		var part db.PagePart
		err := tx.Where("website_id = ? AND part_key = ? AND page_slug = ?", websiteID, key, scope).
			Take(&part).Error
		if err == nil {
			return &part, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// ResolveOrCreate returns the record for key on pageSlug, creating a
// page-scoped record seeded with the definition defaults when none exists.
// Concurrent callers with the same arguments end up with the same row.
func (s *PagePartService) ResolveOrCreate(ctx context.Context, site *Site, key, pageSlug string) (*db.PagePart, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, badRequest("part_key_required", "part key is required")
	}

	if part, err := s.Resolve(ctx, site, key, pageSlug); err != nil || part != nil {
		return part, err
	}

	flightKey := fmt.Sprintf("%d\x00%s\x00%s", site.WebsiteID, key, pageSlug)
	value, err, _ := s.group.Do(flightKey, func() (interface{}, error) {
		return s.createOrFetch(ctx, site.WebsiteID, key, pageSlug)
	})
	if err != nil {
		return nil, internalError("create page part", err)
	}

	// Copy so singleflight callers do not share one pointer.
	created := *value.(*db.PagePart)
	site.rememberPart(key, pageSlug, &created)
	return &created, nil
}

// createOrFetch inserts a new record and, when another writer got there
// first, reads theirs back instead.
func (s *PagePartService) createOrFetch(ctx context.Context, websiteID uint, key, pageSlug string) (*db.PagePart, error) {
	tx := s.db.WithContext(ctx)

	part := s.newRecord(websiteID, key, pageSlug)
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(part)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return nil, result.Error
	}
	if result.Error == nil && result.RowsAffected > 0 {
		metrics.RecordAutoCreate("created")
		s.log.WithFields(logrus.Fields{
			"website_id": websiteID,
			"part_key":   key,
			"page_slug":  pageSlug,
		}).Info("created page part")
		return part, nil
	}

	metrics.RecordAutoCreate("conflict")
	var existing db.PagePart
	if err := tx.Where("website_id = ? AND part_key = ? AND page_slug = ?", websiteID, key, pageSlug).
		Take(&existing).Error; err != nil {
		return nil, fmt.Errorf("reload page part after conflict: %w", err)
	}
	return &existing, nil
}

func (s *PagePartService) newRecord(websiteID uint, key, pageSlug string) *db.PagePart {
	var contents db.BlockContents
	part := &db.PagePart{
		WebsiteID:    websiteID,
		PartKey:      key,
		PageSlug:     pageSlug,
		ShowInEditor: true,
	}
	if def, ok := s.registry.Definition(key); ok {
		contents.Set(s.defaultLocale, DefaultBlocksFor(def))
		part.Template = def.Template
	}
	part.BlockContents = contents
	return part
}

// SaveBlocks persists new block contents for a record.
func (s *PagePartService) SaveBlocks(ctx context.Context, site *Site, part *db.PagePart, contents db.BlockContents) error {
	err := s.db.WithContext(ctx).Model(part).Update("block_contents", contents).Error
	if err != nil {
		return internalError("save block contents", err)
	}
	part.BlockContents = contents
	site.forgetParts()
	return nil
}

// ListForEditor returns the website's parts shown in the editor palette,
// ordered by their editor position.
func (s *PagePartService) ListForEditor(ctx context.Context, site *Site) ([]db.PagePart, error) {
	var records []db.PagePart
	if err := s.db.WithContext(ctx).
		Where("website_id = ? AND show_in_editor = ?", site.WebsiteID, true).
		Order("order_in_editor asc").
		Order("part_key asc").
		Order("id asc").
		Find(&records).Error; err != nil {
		return nil, internalError("list editor parts", err)
	}
	return records, nil
}

// ReorderEditor rewrites the editor position of every record carrying one of
// keys; position follows the order of keys.
func (s *PagePartService) ReorderEditor(ctx context.Context, site *Site, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if strings.TrimSpace(key) == "" {
			return badRequest("invalid_order", "order contains an empty key")
		}
		if _, ok := seen[key]; ok {
			return badRequest("invalid_order", "order contains duplicate keys")
		}
		seen[key] = struct{}{}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for idx, key := range keys {
			result := tx.Model(&db.PagePart{}).
				Where("website_id = ? AND part_key = ?", site.WebsiteID, key).
				Update("order_in_editor", idx)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return partNotFound(key)
			}
		}
		return nil
	})
	if err != nil {
		return internalError("reorder editor parts", err)
	}
	site.forgetParts()
	return nil
}
