package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	gocache "github.com/patrickmn/go-cache"
	"github.com/pagewright/internal/db"
	"github.com/pagewright/internal/metrics"
	"github.com/pagewright/internal/parts"
	"github.com/sirupsen/logrus"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	sanitizer = bluemonday.UGCPolicy()
)

// templateVariable is the single variable templates receive.
const templateVariable = "page_part"

// RenderStatus is the outcome of rendering one placement.
type RenderStatus string

const (
	RenderRendered RenderStatus = "rendered"
	RenderSkipped  RenderStatus = "skipped"
	RenderFailed   RenderStatus = "failed"
)

// RenderResult reports what Render did. Err is set only for RenderFailed and
// is meant to be surfaced as a warning.
type RenderResult struct {
	PlacementID uint
	Locale      string
	Status      RenderStatus
	HTML        string
	Err         error
}

// Warning returns a short description of a failed render.
func (r RenderResult) Warning() string {
	if r.Status != RenderFailed || r.Err == nil {
		return ""
	}
	return fmt.Sprintf("placement %d (%s): %v", r.PlacementID, r.Locale, r.Err)
}

// RenderService renders placements through their templates and stores the
// HTML per placement and locale.
type RenderService struct {
	db       *gorm.DB
	registry *parts.Registry
	parts    *PagePartService
	log      logrus.FieldLogger
	compiled *gocache.Cache
}

// NewRenderService creates a RenderService.
func NewRenderService(gdb *gorm.DB, registry *parts.Registry, partService *PagePartService, log logrus.FieldLogger) *RenderService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RenderService{
		db:       gdb,
		registry: registry,
		parts:    partService,
		log:      log,
		compiled: gocache.New(30*time.Minute, time.Hour),
	}
}

// Render renders placement in locale and persists the HTML. Containers and
// parts without a template are skipped. Template errors are logged and
// returned in the result; they are not returned as err, which is reserved for
// storage failures.
func (s *RenderService) Render(ctx context.Context, site *Site, page *db.Page, placement *db.PageContent, locale string) (RenderResult, error) {
	result := RenderResult{PlacementID: placement.ID, Locale: locale, Status: RenderSkipped}

	def, hasDef := s.registry.Definition(placement.PagePartKey)
	if hasDef && def.Container {
		return result, nil
	}
	if placement.CodeRendered {
		return result, nil
	}

	part, err := s.parts.Resolve(ctx, site, placement.PagePartKey, page.Slug)
	if err != nil {
		return result, err
	}

	source := ""
	if part != nil {
		source = part.Template
	}
	if strings.TrimSpace(source) == "" {
		source, _ = s.registry.TemplateFor(placement.PagePartKey)
	}
	if strings.TrimSpace(source) == "" {
		return result, nil
	}

	var content db.LocaleBlocks
	if part != nil {
		_, content = part.BlockContents.Resolve(locale)
	}

	start := time.Now()
	out, execErr := s.execute(source, templateInput(content, def, hasDef))
	if execErr != nil {
		metrics.RecordRender(string(RenderFailed), time.Since(start))
		s.log.WithFields(logrus.Fields{
			"placement_id": placement.ID,
			"part_key":     placement.PagePartKey,
			"locale":       locale,
		}).WithError(execErr).Warn("template render failed")
		result.Status = RenderFailed
		result.Err = execErr
		// a failed locale has no HTML; drop what an earlier render stored
		if err := s.discard(ctx, placement.ID, locale); err != nil {
			return result, err
		}
		return result, nil
	}
	metrics.RecordRender(string(RenderRendered), time.Since(start))

	if err := s.store(ctx, placement.ID, locale, out, db.RenderSourceTemplate); err != nil {
		return result, err
	}
	result.Status = RenderRendered
	result.HTML = out
	return result, nil
}

// RenderAllLocales renders placement once per stored locale, continuing past
// template failures.
func (s *RenderService) RenderAllLocales(ctx context.Context, site *Site, page *db.Page, placement *db.PageContent) ([]RenderResult, error) {
	part, err := s.parts.Resolve(ctx, site, placement.PagePartKey, page.Slug)
	if err != nil {
		return nil, err
	}
	if part == nil {
		return nil, nil
	}

	results := make([]RenderResult, 0, part.BlockContents.Len())
	for _, locale := range part.BlockContents.Locales() {
		result, err := s.Render(ctx, site, page, placement, locale)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

// StoreClientHTML persists HTML rendered by the editor after sanitizing it.
func (s *RenderService) StoreClientHTML(ctx context.Context, placement *db.PageContent, locale, raw string) (string, error) {
	cleaned := sanitizer.Sanitize(raw)
	if err := s.store(ctx, placement.ID, locale, cleaned, db.RenderSourceClient); err != nil {
		return "", err
	}
	return cleaned, nil
}

// Cached returns the stored HTML of a placement in locale, if any.
func (s *RenderService) Cached(ctx context.Context, placementID uint, locale string) (string, bool, error) {
	var rendered db.RenderedContent
	result := s.db.WithContext(ctx).
		Where("page_content_id = ? AND locale = ?", placementID, locale).
		Limit(1).
		Find(&rendered)
	if result.Error != nil {
		return "", false, internalError("load rendered content", result.Error)
	}
	if result.RowsAffected == 0 {
		return "", false, nil
	}
	return rendered.HTML, true, nil
}

// Invalidate drops the stored HTML of every placement of key on the
// website's pages other than exceptPageID. The next public render of those
// placements renders from the current block contents.
func (s *RenderService) Invalidate(ctx context.Context, websiteID uint, key string, exceptPageID uint) error {
	placements := s.db.Model(&db.PageContent{}).
		Select("id").
		Where("website_id = ? AND page_part_key = ? AND page_id <> ?", websiteID, key, exceptPageID)
	result := s.db.WithContext(ctx).
		Where("page_content_id IN (?)", placements).
		Delete(&db.RenderedContent{})
	if result.Error != nil {
		return internalError("invalidate rendered content", result.Error)
	}
	if result.RowsAffected > 0 {
		s.log.WithFields(logrus.Fields{
			"website_id": websiteID,
			"part_key":   key,
			"rows":       result.RowsAffected,
		}).Debug("invalidated rendered content")
	}
	return nil
}

func (s *RenderService) discard(ctx context.Context, placementID uint, locale string) error {
	err := s.db.WithContext(ctx).
		Where("page_content_id = ? AND locale = ?", placementID, locale).
		Delete(&db.RenderedContent{}).Error
	if err != nil {
		return internalError("discard rendered content", err)
	}
	return nil
}

func (s *RenderService) store(ctx context.Context, placementID uint, locale, out, source string) error {
	record := db.RenderedContent{PageContentID: placementID, Locale: locale, HTML: out, Source: source}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "page_content_id"}, {Name: "locale"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"html":       out,
			"source":     source,
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&record).Error
	if err != nil {
		return internalError("store rendered content", err)
	}
	return nil
}

func (s *RenderService) execute(source string, blocks map[string]interface{}) (string, error) {
	tmpl, err := s.compile(source)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]interface{}{templateVariable: blocks}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// compile parses source once per distinct template text.
func (s *RenderService) compile(source string) (*template.Template, error) {
	sum := sha256.Sum256([]byte(source))
	key := hex.EncodeToString(sum[:])

	if cached, ok := s.compiled.Get(key); ok {
		if tmpl, ok := cached.(*template.Template); ok {
			return tmpl, nil
		}
	}

	tmpl, err := template.New("page_part").Funcs(templateFuncs).Parse(source)
	if err != nil {
		return nil, err
	}
	s.compiled.SetDefault(key, tmpl)
	return tmpl, nil
}

var templateFuncs = template.FuncMap{
	"markdown": renderMarkdown,
	"video":    videoEmbedHTML,
	"default": func(fallback, value interface{}) interface{} {
		if value == nil {
			return fallback
		}
		if str, ok := value.(string); ok && strings.TrimSpace(str) == "" {
			return fallback
		}
		return value
	},
}

func renderMarkdown(value interface{}) (template.HTML, error) {
	text := stringValue(value)
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	return template.HTML(sanitizer.SanitizeBytes(buf.Bytes())), nil
}
