package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/pagewright/internal/db"
	"github.com/pagewright/internal/metrics"
	"github.com/pagewright/internal/parts"
	"gorm.io/gorm"
)

// PositionUpdate assigns a sort order to one placement.
type PositionUpdate struct {
	ID        uint `json:"id"`
	SortOrder int  `json:"sort_order"`
}

// SlotAssignment moves children into the slots of a container; the index of
// an id within its slot list becomes its sort order.
type SlotAssignment struct {
	ContainerID uint
	Slots       map[string][]uint
}

// ReorderService applies the two reorder protocols. Each call runs in one
// transaction; any failure leaves all sort orders as they were.
type ReorderService struct {
	db       *gorm.DB
	registry *parts.Registry
}

// NewReorderService creates a ReorderService.
func NewReorderService(gdb *gorm.DB, registry *parts.Registry) *ReorderService {
	return &ReorderService{db: gdb, registry: registry}
}

// ReorderPositional applies id -> sort order pairs on page. Ids that do not
// belong to page are skipped. When slots is set, the listed children are
// moved into the container's slots as well.
func (s *ReorderService) ReorderPositional(ctx context.Context, page *db.Page, updates []PositionUpdate, slots *SlotAssignment) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, update := range updates {
			if update.ID == 0 {
				continue
			}
			if err := tx.Model(&db.PageContent{}).
				Where("id = ? AND page_id = ?", update.ID, page.ID).
				Update("sort_order", update.SortOrder).Error; err != nil {
				return err
			}
		}

		if slots == nil || len(slots.Slots) == 0 {
			return nil
		}
		return s.assignSlots(tx, page, *slots)
	})

	metrics.RecordReorder("positional", err == nil)
	if err != nil {
		return internalError("reorder placements", err)
	}
	return nil
}

func (s *ReorderService) assignSlots(tx *gorm.DB, page *db.Page, assignment SlotAssignment) error {
	var container db.PageContent
	if err := tx.Where("id = ? AND page_id = ?", assignment.ContainerID, page.ID).Take(&container).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return validationFailed(map[string][]string{"container_id": {"does not exist on this page"}})
		}
		return err
	}

	def, ok := s.registry.Definition(container.PagePartKey)
	if !ok || !def.Container {
		return validationFailed(map[string][]string{"container_id": {"is not a container"}})
	}

	ancestors, err := ancestorIDs(tx, container)
	if err != nil {
		return err
	}

	fields := make(map[string][]string)
	slotNames := make([]string, 0, len(assignment.Slots))
	for slot := range assignment.Slots {
		slotNames = append(slotNames, slot)
	}
	sort.Strings(slotNames)

	for _, slot := range slotNames {
		if !def.HasSlot(slot) {
			fields["slot_order"] = append(fields["slot_order"], slot+" is not a slot of "+container.PagePartKey)
			continue
		}
		for idx, childID := range assignment.Slots[slot] {
			if childID == container.ID || ancestors[childID] {
				fields["slot_order"] = append(fields["slot_order"], "a container cannot be nested inside itself")
				continue
			}
			if err := tx.Model(&db.PageContent{}).
				Where("id = ? AND page_id = ?", childID, page.ID).
				Updates(map[string]interface{}{
					"parent_id":  container.ID,
					"slot_name":  slot,
					"sort_order": idx,
				}).Error; err != nil {
				return err
			}
		}
	}

	if len(fields) > 0 {
		return validationFailed(fields)
	}
	return nil
}

// ancestorIDs collects the parent chain above placement.
func ancestorIDs(tx *gorm.DB, placement db.PageContent) (map[uint]bool, error) {
	out := make(map[uint]bool)
	current := placement
	for depth := 0; current.ParentID != nil && depth < maxPlacementDepth; depth++ {
		parentID := *current.ParentID
		if out[parentID] {
			break
		}
		out[parentID] = true
		var parent db.PageContent
		if err := tx.Select("id", "parent_id").Where("id = ?", parentID).Take(&parent).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				break
			}
			return nil, err
		}
		current = parent
	}
	return out, nil
}

// ReorderSemantic orders the root placements of page by part key. Every key
// must be on the page or nothing changes. Named placements take positions
// 0..n-1; the remaining root placements follow in their previous order.
// It returns the resulting root order.
func (s *ReorderService) ReorderSemantic(ctx context.Context, page *db.Page, keys []string) ([]string, error) {
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if strings.TrimSpace(key) == "" {
			return nil, badRequest("invalid_order", "order contains an empty key")
		}
		if seen[key] {
			return nil, badRequest("invalid_order", "order contains duplicate keys")
		}
		seen[key] = true
	}

	var order []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var roots []db.PageContent
		if err := tx.Where("page_id = ? AND parent_id IS NULL", page.ID).
			Order("sort_order asc").Order("id asc").
			Find(&roots).Error; err != nil {
			return err
		}

		byKey := make(map[string][]db.PageContent)
		available := make([]string, 0, len(roots))
		for _, root := range roots {
			if _, ok := byKey[root.PagePartKey]; !ok {
				available = append(available, root.PagePartKey)
			}
			byKey[root.PagePartKey] = append(byKey[root.PagePartKey], root)
		}

		var unknown []string
		for _, key := range keys {
			if _, ok := byKey[key]; !ok {
				unknown = append(unknown, key)
			}
		}
		if len(unknown) > 0 {
			return ErrUnknownKeys.with(map[string]interface{}{
				"unknown_keys":   unknown,
				"available_keys": available,
			})
		}

		position := 0
		final := make([]string, 0, len(roots))
		apply := func(placement db.PageContent) error {
			final = append(final, placement.PagePartKey)
			defer func() { position++ }()
			if placement.SortOrder == position {
				return nil
			}
			return tx.Model(&db.PageContent{}).Where("id = ?", placement.ID).
				Update("sort_order", position).Error
		}

		for _, key := range keys {
			for _, placement := range byKey[key] {
				if err := apply(placement); err != nil {
					return err
				}
			}
		}
		for _, root := range roots {
			if seen[root.PagePartKey] {
				continue
			}
			if err := apply(root); err != nil {
				return err
			}
		}

		order = final
		return nil
	})

	metrics.RecordReorder("semantic", err == nil)
	if err != nil {
		return nil, internalError("reorder placements", err)
	}
	return order, nil
}
