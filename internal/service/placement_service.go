package service

import (
	"context"
	"errors"
	"strings"

	"github.com/pagewright/internal/db"
	"github.com/pagewright/internal/parts"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// maxPlacementDepth bounds recursion over stored parent links.
const maxPlacementDepth = 16

// PlacementService owns the tree of placements on a page.
type PlacementService struct {
	db       *gorm.DB
	registry *parts.Registry
	parts    *PagePartService
	log      logrus.FieldLogger
}

// NewPlacementService creates a PlacementService.
func NewPlacementService(gdb *gorm.DB, registry *parts.Registry, partService *PagePartService, log logrus.FieldLogger) *PlacementService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &PlacementService{db: gdb, registry: registry, parts: partService, log: log}
}

// PlacementView is one node of a built page tree.
type PlacementView struct {
	ID            uint                       `json:"id"`
	PagePartKey   string                     `json:"page_part_key"`
	SortOrder     int                        `json:"sort_order"`
	VisibleOnPage bool                       `json:"visible_on_page"`
	IsContainer   bool                       `json:"is_container"`
	ParentID      *uint                      `json:"parent_id"`
	SlotName      *string                    `json:"slot_name"`
	Label         string                     `json:"label"`
	CodeRendered  bool                       `json:"code_rendered"`
	Locale        string                     `json:"locale"`
	Blocks        map[string]interface{}     `json:"blocks"`
	Slots         map[string][]PlacementView `json:"slots,omitempty"`

	Placement     db.PageContent   `json:"-"`
	Part          *db.PagePart     `json:"-"`
	Definition    parts.Definition `json:"-"`
	HasDefinition bool             `json:"-"`
	Content       db.LocaleBlocks  `json:"-"`
}

// Build returns the ordered forest of placements on page. Hidden placements
// (and everything nested in them) are skipped unless includeHidden is set.
// Build never creates records.
func (s *PlacementService) Build(ctx context.Context, site *Site, page *db.Page, includeHidden bool) ([]PlacementView, error) {
	query := s.db.WithContext(ctx).Where("page_id = ?", page.ID)
	if !includeHidden {
		query = query.Where("visible_on_page = ?", true)
	}

	var placements []db.PageContent
	if err := query.Order("sort_order asc").Order("id asc").Find(&placements).Error; err != nil {
		return nil, internalError("load placements", err)
	}

	var roots []db.PageContent
	children := make(map[uint][]db.PageContent)
	for _, placement := range placements {
		if placement.ParentID == nil {
			roots = append(roots, placement)
			continue
		}
		children[*placement.ParentID] = append(children[*placement.ParentID], placement)
	}

	b := treeBuilder{svc: s, site: site, page: page, children: children, visited: make(map[uint]bool)}
	return b.level(ctx, roots, 0)
}

type treeBuilder struct {
	svc      *PlacementService
	site     *Site
	page     *db.Page
	children map[uint][]db.PageContent
	visited  map[uint]bool
}

func (b *treeBuilder) level(ctx context.Context, placements []db.PageContent, depth int) ([]PlacementView, error) {
	views := make([]PlacementView, 0, len(placements))
	for _, placement := range placements {
		if b.visited[placement.ID] {
			continue
		}
		b.visited[placement.ID] = true

		view, err := b.svc.view(ctx, b.site, b.page, placement)
		if err != nil {
			return nil, err
		}

		if view.IsContainer && depth < maxPlacementDepth {
			kids := b.children[placement.ID]
			view.Slots = make(map[string][]PlacementView, len(view.Definition.Slots))
			for _, slot := range view.Definition.Slots {
				var inSlot []db.PageContent
				for _, child := range kids {
					if child.SlotName == slot {
						inSlot = append(inSlot, child)
					}
				}
				nested, err := b.level(ctx, inSlot, depth+1)
				if err != nil {
					return nil, err
				}
				view.Slots[slot] = nested
			}
		}

		views = append(views, view)
	}
	return views, nil
}

func (s *PlacementService) view(ctx context.Context, site *Site, page *db.Page, placement db.PageContent) (PlacementView, error) {
	part, err := s.parts.Resolve(ctx, site, placement.PagePartKey, page.Slug)
	if err != nil {
		return PlacementView{}, err
	}

	def, hasDef := s.registry.Definition(placement.PagePartKey)

	var resolved string
	content := db.LocaleBlocks{Blocks: map[string]db.BlockField{}}
	if part != nil {
		resolved, content = part.BlockContents.Resolve(site.Locale)
	}

	var slot *string
	if placement.ParentID != nil {
		name := placement.SlotName
		slot = &name
	}

	return PlacementView{
		ID:            placement.ID,
		PagePartKey:   placement.PagePartKey,
		SortOrder:     placement.SortOrder,
		VisibleOnPage: placement.VisibleOnPage,
		IsContainer:   hasDef && def.Container,
		ParentID:      placement.ParentID,
		SlotName:      slot,
		Label:         placement.Label,
		CodeRendered:  placement.CodeRendered,
		Locale:        resolved,
		Blocks:        SerializeBlocks(content),
		Placement:     placement,
		Part:          part,
		Definition:    def,
		HasDefinition: hasDef,
		Content:       content,
	}, nil
}

// EnsurePlacements makes sure every key has a page part record and a
// placement on page. A key placed anywhere on the page, nested ones included,
// counts as present; missing keys get a root placement after the existing
// ones. Records are also ensured for keys already placed on the page.
func (s *PlacementService) EnsurePlacements(ctx context.Context, site *Site, page *db.Page, keys []string) error {
	var placed []db.PageContent
	if err := s.db.WithContext(ctx).
		Select("id", "page_part_key", "parent_id", "sort_order").
		Where("page_id = ?", page.ID).
		Find(&placed).Error; err != nil {
		return internalError("load placements", err)
	}

	placedKeys := make(map[string]bool)
	maxRoot := -1
	needed := make([]string, 0, len(keys)+len(placed))
	seen := make(map[string]bool)
	for _, placement := range placed {
		placedKeys[placement.PagePartKey] = true
		if placement.ParentID == nil && placement.SortOrder > maxRoot {
			maxRoot = placement.SortOrder
		}
		if !seen[placement.PagePartKey] {
			seen[placement.PagePartKey] = true
			needed = append(needed, placement.PagePartKey)
		}
	}
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key != "" && !seen[key] {
			seen[key] = true
			needed = append(needed, key)
		}
	}

	for _, key := range needed {
		if _, err := s.parts.ResolveOrCreate(ctx, site, key, page.Slug); err != nil {
			return err
		}
	}

	next := maxRoot + 1
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" || placedKeys[key] {
			continue
		}
		placement := db.PageContent{
			WebsiteID:     page.WebsiteID,
			PageID:        page.ID,
			PagePartKey:   key,
			SortOrder:     next,
			VisibleOnPage: true,
		}
		if err := s.db.WithContext(ctx).Create(&placement).Error; err != nil {
			return internalError("create placement", err)
		}
		s.log.WithFields(logrus.Fields{
			"page_id":  page.ID,
			"part_key": key,
		}).Debug("created missing placement")
		placedKeys[key] = true
		next++
	}
	return nil
}

// AddPlacementInput describes a placement created from the editor.
type AddPlacementInput struct {
	PartKey      string
	ParentID     *uint
	SlotName     string
	Label        string
	Hidden       bool
	CodeRendered bool
}

// Add creates a placement at the end of its sibling set.
func (s *PlacementService) Add(ctx context.Context, site *Site, page *db.Page, input AddPlacementInput) (*db.PageContent, error) {
	placement := db.PageContent{
		WebsiteID:     page.WebsiteID,
		PageID:        page.ID,
		PagePartKey:   strings.TrimSpace(input.PartKey),
		ParentID:      input.ParentID,
		SlotName:      strings.TrimSpace(input.SlotName),
		Label:         strings.TrimSpace(input.Label),
		VisibleOnPage: !input.Hidden,
		CodeRendered:  input.CodeRendered,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.validate(tx, page, &placement); err != nil {
			return err
		}

		siblings := tx.Model(&db.PageContent{}).Where("page_id = ?", page.ID)
		if placement.ParentID == nil {
			siblings = siblings.Where("parent_id IS NULL")
		} else {
			siblings = siblings.Where("parent_id = ? AND slot_name = ?", *placement.ParentID, placement.SlotName)
		}
		var maxSort int
		if err := siblings.Select("COALESCE(MAX(sort_order), -1)").Scan(&maxSort).Error; err != nil {
			return err
		}
		placement.SortOrder = maxSort + 1

		return tx.Create(&placement).Error
	})
	if err != nil {
		return nil, internalError("add placement", err)
	}

	if _, err := s.parts.ResolveOrCreate(ctx, site, placement.PagePartKey, page.Slug); err != nil {
		return nil, err
	}
	return &placement, nil
}

// validate checks the parent/slot rules of a placement.
func (s *PlacementService) validate(tx *gorm.DB, page *db.Page, placement *db.PageContent) error {
	fields := make(map[string][]string)

	if placement.PagePartKey == "" {
		fields["page_part_key"] = append(fields["page_part_key"], "is required")
	} else if _, ok := s.registry.Definition(placement.PagePartKey); !ok {
		fields["page_part_key"] = append(fields["page_part_key"], "is not a known page part")
	}

	if placement.ParentID == nil {
		if placement.SlotName != "" {
			fields["slot_name"] = append(fields["slot_name"], "is only allowed inside a container")
		}
	} else {
		var parent db.PageContent
		err := tx.Where("id = ? AND page_id = ?", *placement.ParentID, page.ID).Take(&parent).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			fields["parent_id"] = append(fields["parent_id"], "does not exist on this page")
		case err != nil:
			return err
		case !s.registry.IsContainer(parent.PagePartKey):
			fields["parent_id"] = append(fields["parent_id"], "is not a container")
		case placement.SlotName == "":
			fields["slot_name"] = append(fields["slot_name"], "is required inside a container")
		case !s.registry.HasSlot(parent.PagePartKey, placement.SlotName):
			fields["slot_name"] = append(fields["slot_name"], "is not a slot of "+parent.PagePartKey)
		}
		if placement.ID != 0 && *placement.ParentID == placement.ID {
			fields["parent_id"] = append(fields["parent_id"], "cannot be the placement itself")
		}
	}

	if len(fields) > 0 {
		return validationFailed(fields)
	}
	return nil
}

// Get loads one placement on page.
func (s *PlacementService) Get(ctx context.Context, page *db.Page, id uint) (*db.PageContent, error) {
	var placement db.PageContent
	err := s.db.WithContext(ctx).Where("id = ? AND page_id = ?", id, page.ID).Take(&placement).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlacementNotFound
		}
		return nil, internalError("load placement", err)
	}
	return &placement, nil
}

// RootByKey returns the first root-level placement of key on page.
func (s *PlacementService) RootByKey(ctx context.Context, page *db.Page, key string) (*db.PageContent, error) {
	var placement db.PageContent
	err := s.db.WithContext(ctx).
		Where("page_id = ? AND page_part_key = ? AND parent_id IS NULL", page.ID, key).
		Order("sort_order asc").Order("id asc").
		Take(&placement).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, partNotFound(key)
		}
		return nil, internalError("load placement", err)
	}
	return &placement, nil
}

// ListByKey returns every placement of key on page, roots first.
func (s *PlacementService) ListByKey(ctx context.Context, page *db.Page, key string) ([]db.PageContent, error) {
	var placements []db.PageContent
	if err := s.db.WithContext(ctx).
		Where("page_id = ? AND page_part_key = ?", page.ID, key).
		Order("parent_id IS NOT NULL").Order("sort_order asc").Order("id asc").
		Find(&placements).Error; err != nil {
		return nil, internalError("load placements", err)
	}
	return placements, nil
}

// SetVisibility shows or hides the root-level placements of key on page.
func (s *PlacementService) SetVisibility(ctx context.Context, page *db.Page, key string, visible bool) (*db.PageContent, error) {
	placement, err := s.RootByKey(ctx, page, key)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(&db.PageContent{}).
		Where("page_id = ? AND page_part_key = ? AND parent_id IS NULL", page.ID, key).
		Update("visible_on_page", visible).Error; err != nil {
		return nil, internalError("update visibility", err)
	}
	placement.VisibleOnPage = visible
	return placement, nil
}

// Delete removes a placement. Containers with children are refused unless
// force is set, in which case the whole subtree goes.
func (s *PlacementService) Delete(ctx context.Context, websiteID, id uint, force bool) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var placement db.PageContent
		if err := tx.Where("id = ? AND website_id = ?", id, websiteID).Take(&placement).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPlacementNotFound
			}
			return err
		}

		var count int64
		if err := tx.Model(&db.PageContent{}).Where("parent_id = ?", placement.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 && !force {
			return ErrHasChildren.with(map[string]interface{}{"children_count": count})
		}

		return deleteSubtree(tx, placement.ID, 0)
	})
	if err != nil {
		return internalError("delete placement", err)
	}
	return nil
}

func deleteSubtree(tx *gorm.DB, id uint, depth int) error {
	if depth > maxPlacementDepth {
		return errors.New("placement nesting too deep")
	}

	var childIDs []uint
	if err := tx.Model(&db.PageContent{}).Where("parent_id = ?", id).Pluck("id", &childIDs).Error; err != nil {
		return err
	}
	for _, childID := range childIDs {
		if err := deleteSubtree(tx, childID, depth+1); err != nil {
			return err
		}
	}

	if err := tx.Where("page_content_id = ?", id).Delete(&db.RenderedContent{}).Error; err != nil {
		return err
	}
	return tx.Delete(&db.PageContent{}, id).Error
}
