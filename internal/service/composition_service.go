package service

import (
	"context"
	"html/template"
	"strings"

	"github.com/pagewright/internal/db"
	"github.com/pagewright/internal/parts"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const tracerName = "github.com/pagewright/internal/service"

// Services bundles every service the HTTP layer needs.
type Services struct {
	Websites    *WebsiteService
	Settings    *WebsiteSettingService
	Pages       *PageService
	Parts       *PagePartService
	Placements  *PlacementService
	Render      *RenderService
	Reorder     *ReorderService
	Composition *CompositionService
}

// NewServices wires the services on top of one database handle.
func NewServices(gdb *gorm.DB, registry *parts.Registry, defaultLocale string, log logrus.FieldLogger) *Services {
	if log == nil {
		log = logrus.StandardLogger()
	}
	pages := NewPageService(gdb)
	partService := NewPagePartService(gdb, registry, defaultLocale, log)
	placements := NewPlacementService(gdb, registry, partService, log)
	renderer := NewRenderService(gdb, registry, partService, log)
	reorder := NewReorderService(gdb, registry)

	return &Services{
		Websites:    NewWebsiteService(gdb),
		Settings:    NewWebsiteSettingService(gdb, defaultLocale),
		Pages:       pages,
		Parts:       partService,
		Placements:  placements,
		Render:      renderer,
		Reorder:     reorder,
		Composition: NewCompositionService(registry, pages, partService, placements, renderer, reorder, log),
	}
}

// CompositionService is the entry point used by the editor and the public
// renderer. It turns pages, parts and placements into trees, HTML and
// mutations, and translates every failure into an *Error.
type CompositionService struct {
	registry   *parts.Registry
	pages      *PageService
	parts      *PagePartService
	placements *PlacementService
	renderer   *RenderService
	reorder    *ReorderService
	log        logrus.FieldLogger
	tracer     trace.Tracer
}

// NewCompositionService creates a CompositionService.
func NewCompositionService(
	registry *parts.Registry,
	pages *PageService,
	partService *PagePartService,
	placements *PlacementService,
	renderer *RenderService,
	reorder *ReorderService,
	log logrus.FieldLogger,
) *CompositionService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CompositionService{
		registry:   registry,
		pages:      pages,
		parts:      partService,
		placements: placements,
		renderer:   renderer,
		reorder:    reorder,
		log:        log,
		tracer:     otel.Tracer(tracerName),
	}
}

func (c *CompositionService) start(ctx context.Context, name string, site *Site, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.Int64("website.id", int64(site.WebsiteID)),
		attribute.String("locale", site.Locale),
	)
	return c.tracer.Start(ctx, "composition."+name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// Tree returns the placement tree of a page. Every part key the page expects
// gets a record and a root placement first, so the tree never has holes.
func (c *CompositionService) Tree(ctx context.Context, site *Site, pageSlug string, includeHidden bool) (views []PlacementView, err error) {
	ctx, span := c.start(ctx, "tree", site, attribute.String("page.slug", pageSlug))
	defer func() { finish(span, err) }()

	page, err := c.pages.GetBySlug(ctx, site.WebsiteID, pageSlug)
	if err != nil {
		return nil, err
	}
	if err := c.placements.EnsurePlacements(ctx, site, page, page.PartKeys); err != nil {
		return nil, err
	}
	return c.placements.Build(ctx, site, page, includeHidden)
}

// UpdateBlocksInput is an editor content update for one part on one page.
type UpdateBlocksInput struct {
	PageSlug     string
	PartKey      string
	Locale       string
	Fields       map[string]interface{}
	RenderedHTML *string
	Regenerate   bool
}

// UpdateBlocksResult describes the stored record after an update.
type UpdateBlocksResult struct {
	Part     *db.PagePart
	Locale   string
	Blocks   db.LocaleBlocks
	Rendered []RenderResult
	Warnings []string
}

// UpdateBlocks merges fields into the part's content for one locale and then
// either stores the client supplied HTML or re-renders the part's
// placements. Template failures end up in Warnings.
func (c *CompositionService) UpdateBlocks(ctx context.Context, site *Site, input UpdateBlocksInput) (result *UpdateBlocksResult, err error) {
	ctx, span := c.start(ctx, "update_blocks", site,
		attribute.String("page.slug", input.PageSlug),
		attribute.String("part.key", input.PartKey),
	)
	defer func() { finish(span, err) }()

	key := strings.TrimSpace(input.PartKey)
	if key == "" {
		return nil, badRequest("part_key_required", "part_key is required")
	}
	hasHTML := input.RenderedHTML != nil
	if hasHTML == input.Regenerate {
		return nil, badRequest("render_mode_required", "exactly one of rendered_html or regenerate must be given")
	}

	page, err := c.pages.GetBySlug(ctx, site.WebsiteID, input.PageSlug)
	if err != nil {
		return nil, err
	}

	if err := c.placements.EnsurePlacements(ctx, site, page, page.PartKeys); err != nil {
		return nil, err
	}

	placements, err := c.placements.ListByKey(ctx, page, key)
	if err != nil {
		return nil, err
	}
	if len(placements) == 0 {
		return nil, partNotFound(key)
	}

	part, err := c.parts.ResolveOrCreate(ctx, site, key, page.Slug)
	if err != nil {
		return nil, err
	}

	loc := strings.TrimSpace(input.Locale)
	if loc == "" {
		loc = site.Locale
	}
	if loc == "" {
		loc = c.parts.defaultLocale
	}

	contents := part.BlockContents
	if def, ok := c.registry.Definition(key); ok {
		contents = SeedLocale(contents, loc, def)
	}
	contents = MergeUpdate(contents, loc, input.Fields)
	if err := c.parts.SaveBlocks(ctx, site, part, contents); err != nil {
		return nil, err
	}

	if part.IsWebsiteWide() {
		// other pages share this record; their stored HTML is stale now
		if err := c.renderer.Invalidate(ctx, site.WebsiteID, key, page.ID); err != nil {
			return nil, err
		}
	}

	result = &UpdateBlocksResult{Part: part, Locale: loc}
	result.Blocks, _ = part.BlockContents.Get(loc)

	for i := range placements {
		placement := &placements[i]
		if hasHTML {
			if _, err := c.renderer.StoreClientHTML(ctx, placement, loc, *input.RenderedHTML); err != nil {
				return nil, err
			}
			continue
		}
		rendered, err := c.renderer.RenderAllLocales(ctx, site, page, placement)
		if err != nil {
			return nil, err
		}
		for _, r := range rendered {
			if warning := r.Warning(); warning != "" {
				result.Warnings = append(result.Warnings, warning)
			}
		}
		result.Rendered = append(result.Rendered, rendered...)
	}

	c.log.WithFields(logrus.Fields{
		"website_id": site.WebsiteID,
		"page":       page.Slug,
		"part_key":   key,
		"locale":     loc,
		"regenerate": input.Regenerate,
		"warnings":   len(result.Warnings),
	}).Info("updated block contents")

	return result, nil
}

// ReorderSemantic orders the page's root placements by part key.
func (c *CompositionService) ReorderSemantic(ctx context.Context, site *Site, pageSlug string, keys []string) (order []string, err error) {
	ctx, span := c.start(ctx, "reorder_semantic", site,
		attribute.String("page.slug", pageSlug),
		attribute.StringSlice("order", keys),
	)
	defer func() { finish(span, err) }()

	page, err := c.pages.GetBySlug(ctx, site.WebsiteID, pageSlug)
	if err != nil {
		return nil, err
	}
	return c.reorder.ReorderSemantic(ctx, page, keys)
}

// ReorderPositional applies explicit sort orders and optional slot moves.
func (c *CompositionService) ReorderPositional(ctx context.Context, site *Site, pageSlug string, updates []PositionUpdate, slots *SlotAssignment) (err error) {
	ctx, span := c.start(ctx, "reorder_positional", site,
		attribute.String("page.slug", pageSlug),
		attribute.Int("updates", len(updates)),
	)
	defer func() { finish(span, err) }()

	page, err := c.pages.GetBySlug(ctx, site.WebsiteID, pageSlug)
	if err != nil {
		return err
	}
	return c.reorder.ReorderPositional(ctx, page, updates, slots)
}

// SetVisibility shows or hides a part on a page.
func (c *CompositionService) SetVisibility(ctx context.Context, site *Site, pageSlug, key string, visible bool) (placement *db.PageContent, err error) {
	ctx, span := c.start(ctx, "set_visibility", site,
		attribute.String("page.slug", pageSlug),
		attribute.String("part.key", key),
		attribute.Bool("visible", visible),
	)
	defer func() { finish(span, err) }()

	page, err := c.pages.GetBySlug(ctx, site.WebsiteID, pageSlug)
	if err != nil {
		return nil, err
	}
	return c.placements.SetVisibility(ctx, page, strings.TrimSpace(key), visible)
}

// AddPlacement puts a part onto a page, optionally inside a container slot.
func (c *CompositionService) AddPlacement(ctx context.Context, site *Site, pageSlug string, input AddPlacementInput) (placement *db.PageContent, err error) {
	ctx, span := c.start(ctx, "add_placement", site,
		attribute.String("page.slug", pageSlug),
		attribute.String("part.key", input.PartKey),
	)
	defer func() { finish(span, err) }()

	page, err := c.pages.GetBySlug(ctx, site.WebsiteID, pageSlug)
	if err != nil {
		return nil, err
	}
	return c.placements.Add(ctx, site, page, input)
}

// DeletePlacement removes a placement; see PlacementService.Delete.
func (c *CompositionService) DeletePlacement(ctx context.Context, site *Site, id uint, force bool) (err error) {
	ctx, span := c.start(ctx, "delete_placement", site,
		attribute.Int64("placement.id", int64(id)),
		attribute.Bool("force", force),
	)
	defer func() { finish(span, err) }()

	return c.placements.Delete(ctx, site.WebsiteID, id, force)
}

// RenderedPage is the public markup of a page.
type RenderedPage struct {
	Page     *db.Page
	Locale   string
	HTML     template.HTML
	Warnings []string
}

// RenderPage assembles the visible placements of a page into HTML. Leaves use
// their stored HTML and are rendered on a miss; containers wrap their slots.
func (c *CompositionService) RenderPage(ctx context.Context, site *Site, pageSlug string) (out *RenderedPage, err error) {
	ctx, span := c.start(ctx, "render_page", site, attribute.String("page.slug", pageSlug))
	defer func() { finish(span, err) }()

	page, err := c.pages.GetBySlug(ctx, site.WebsiteID, pageSlug)
	if err != nil {
		return nil, err
	}
	if !page.Visible {
		return nil, ErrPageNotFound
	}
	if err := c.placements.EnsurePlacements(ctx, site, page, page.PartKeys); err != nil {
		return nil, err
	}

	views, err := c.placements.Build(ctx, site, page, false)
	if err != nil {
		return nil, err
	}

	out = &RenderedPage{Page: page, Locale: site.Locale}
	var buf strings.Builder
	if err := c.writeViews(ctx, site, page, views, &buf, out); err != nil {
		return nil, err
	}
	out.HTML = template.HTML(buf.String())
	return out, nil
}

func (c *CompositionService) writeViews(ctx context.Context, site *Site, page *db.Page, views []PlacementView, buf *strings.Builder, out *RenderedPage) error {
	for i := range views {
		view := &views[i]
		if view.IsContainer {
			buf.WriteString(`<div data-part="` + template.HTMLEscapeString(view.PagePartKey) + `">`)
			for _, slot := range view.Definition.Slots {
				buf.WriteString(`<div data-slot="` + template.HTMLEscapeString(slot) + `">`)
				if err := c.writeViews(ctx, site, page, view.Slots[slot], buf, out); err != nil {
					return err
				}
				buf.WriteString(`</div>`)
			}
			buf.WriteString(`</div>`)
			continue
		}
		if view.CodeRendered {
			continue
		}

		markup, err := c.leafHTML(ctx, site, page, view, out)
		if err != nil {
			return err
		}
		buf.WriteString(markup)
	}
	return nil
}

func (c *CompositionService) leafHTML(ctx context.Context, site *Site, page *db.Page, view *PlacementView, out *RenderedPage) (string, error) {
	loc := view.Locale
	if loc == "" {
		loc = site.Locale
	}

	cached, ok, err := c.renderer.Cached(ctx, view.ID, loc)
	if err != nil {
		return "", err
	}
	if ok {
		return cached, nil
	}

	placement := view.Placement
	result, err := c.renderer.Render(ctx, site, page, &placement, loc)
	if err != nil {
		return "", err
	}
	if warning := result.Warning(); warning != "" {
		out.Warnings = append(out.Warnings, warning)
	}
	return result.HTML, nil
}
