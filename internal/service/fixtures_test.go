package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/pagewright/internal/db"
	"github.com/pagewright/internal/logging"
	"github.com/pagewright/internal/parts"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq int64

// setupServiceTestDB opens a fresh in-memory database per test. A single
// connection keeps every statement on the same shared-cache handle.
func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:pagewright-service-%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	gdb, err := db.Open(sqlite.Open(dsn), logger.Silent)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	return gdb
}

func testRegistry() *parts.Registry {
	return parts.MustNew(
		parts.Definition{
			Key:      "heroes/hero",
			Fields:   parts.FieldList{{Name: "title", Default: "Welcome"}, {Name: "subtitle"}},
			Template: `<h1>{{ .page_part.title.content }}</h1>{{ with .page_part.subtitle.content }}<p>{{ . }}</p>{{ end }}`,
		},
		parts.Definition{
			Key:      "content/text",
			Fields:   parts.FieldList{{Name: "body"}},
			Template: `<div class="text">{{ markdown .page_part.body.content }}</div>`,
		},
		parts.Definition{
			Key:      "cta/banner",
			Fields:   parts.FieldList{{Name: "label", Default: "Contact us"}},
			Template: `<a>{{ .page_part.label.content }}</a>`,
		},
		parts.Definition{
			Key:      "broken/part",
			Fields:   parts.FieldList{{Name: "title"}},
			Template: `{{ template "missing" }}`,
		},
		parts.Definition{
			Key:      "content/initial",
			Fields:   parts.FieldList{{Name: "title"}},
			Template: `<b>{{ index .page_part.title.content 0 }}</b>`,
		},
		parts.Definition{
			Key:       "layout/two_columns",
			Container: true,
			Slots:     []string{"left", "right"},
			Template:  `<div>should never render</div>`,
		},
	)
}

type testEnv struct {
	db       *gorm.DB
	registry *parts.Registry
	services *Services
	website  *db.Website
	site     *Site
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gdb := setupServiceTestDB(t)
	registry := testRegistry()
	services := NewServices(gdb, registry, "en", logging.Discard())

	website, err := services.Websites.Ensure(context.Background(), "acme", "Acme Homes", "en")
	if err != nil {
		t.Fatalf("failed to create website: %v", err)
	}

	return &testEnv{
		db:       gdb,
		registry: registry,
		services: services,
		website:  website,
		site:     NewSite(website.ID, "en"),
	}
}

func (e *testEnv) page(t *testing.T, slug string, keys ...string) *db.Page {
	t.Helper()
	page, err := e.services.Pages.Save(context.Background(), e.website.ID, PageInput{
		Slug:     slug,
		Title:    "Page " + slug,
		PartKeys: keys,
	})
	if err != nil {
		t.Fatalf("failed to save page %s: %v", slug, err)
	}
	return page
}

func (e *testEnv) placement(t *testing.T, page *db.Page, key string, parentID *uint, slot string) *db.PageContent {
	t.Helper()
	placement, err := e.services.Placements.Add(context.Background(), e.site, page, AddPlacementInput{
		PartKey:  key,
		ParentID: parentID,
		SlotName: slot,
	})
	if err != nil {
		t.Fatalf("failed to add placement %s: %v", key, err)
	}
	return placement
}

func rootKeys(views []PlacementView) []string {
	keys := make([]string, 0, len(views))
	for _, view := range views {
		keys = append(keys, view.PagePartKey)
	}
	return keys
}

func uintPtr(v uint) *uint {
	return &v
}
