package service

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/pagewright/internal/db"
)

func TestTreeCreatesExpectedPlacements(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.page(t, "home", keyA, keyB)

	views, err := e.services.Composition.Tree(ctx, e.site, "home", false)
	if err != nil {
		t.Fatalf("Tree returned error: %v", err)
	}
	if got := rootKeys(views); !reflect.DeepEqual(got, []string{keyA, keyB}) {
		t.Fatalf("unexpected tree %v", got)
	}
	if views[0].Locale != "en" {
		t.Fatalf("expected resolved locale en, got %q", views[0].Locale)
	}

	again, err := e.services.Composition.Tree(ctx, NewSite(e.website.ID, "en"), "home", false)
	if err != nil {
		t.Fatalf("second Tree returned error: %v", err)
	}
	if len(again) != 2 {
		t.Fatalf("expected reads to be idempotent, got %v", rootKeys(again))
	}

	if _, err := e.services.Composition.Tree(ctx, e.site, "missing", false); !errors.Is(err, ErrPageNotFound) {
		t.Fatalf("expected page not found, got %v", err)
	}
}

func TestUpdateBlocksRequiresExactlyOneRenderMode(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.page(t, "home", keyA)
	html := "<h1>x</h1>"

	inputs := []UpdateBlocksInput{
		{PageSlug: "home", PartKey: keyA, Fields: map[string]interface{}{"title": "x"}},
		{PageSlug: "home", PartKey: keyA, Fields: map[string]interface{}{"title": "x"}, RenderedHTML: &html, Regenerate: true},
	}
	for i, input := range inputs {
		_, err := e.services.Composition.UpdateBlocks(ctx, e.site, input)
		if svcErr := AsError(err); svcErr == nil || svcErr.Kind != KindBadRequest {
			t.Fatalf("case %d: expected bad request, got %v", i, err)
		}
	}

	var count int64
	e.db.Model(&db.PagePart{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected rejection before any mutation, got %d records", count)
	}
}

func TestUpdateBlocksMergesAndRegenerates(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.page(t, "home", keyA)

	first, err := e.services.Composition.UpdateBlocks(ctx, e.site, UpdateBlocksInput{
		PageSlug:   "home",
		PartKey:    keyA,
		Locale:     "en",
		Fields:     map[string]interface{}{"title": "1", "subtitle": "2"},
		Regenerate: true,
	})
	if err != nil {
		t.Fatalf("UpdateBlocks returned error: %v", err)
	}
	if len(first.Warnings) != 0 {
		t.Fatalf("unexpected warnings %v", first.Warnings)
	}

	second, err := e.services.Composition.UpdateBlocks(ctx, NewSite(e.website.ID, "en"), UpdateBlocksInput{
		PageSlug:   "home",
		PartKey:    keyA,
		Locale:     "en",
		Fields:     map[string]interface{}{"blocks": map[string]interface{}{"title": map[string]interface{}{"content": "9"}}},
		Regenerate: true,
	})
	if err != nil {
		t.Fatalf("UpdateBlocks returned error: %v", err)
	}
	if second.Blocks.Blocks["title"].Content != "9" || second.Blocks.Blocks["subtitle"].Content != "2" {
		t.Fatalf("expected untouched fields preserved, got %#v", second.Blocks.Blocks)
	}

	page, err := e.services.Pages.GetBySlug(ctx, e.website.ID, "home")
	if err != nil {
		t.Fatalf("GetBySlug returned error: %v", err)
	}
	placement, err := e.services.Placements.RootByKey(ctx, page, keyA)
	if err != nil {
		t.Fatalf("RootByKey returned error: %v", err)
	}
	cached, ok, err := e.services.Render.Cached(ctx, placement.ID, "en")
	if err != nil || !ok {
		t.Fatalf("expected regenerated html, got %v %v", ok, err)
	}
	if cached != "<h1>9</h1><p>2</p>" {
		t.Fatalf("unexpected html %q", cached)
	}
}

func TestUpdateBlocksSeedsNewLocaleFromDefaults(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.page(t, "home", keyA)

	result, err := e.services.Composition.UpdateBlocks(ctx, NewSite(e.website.ID, "es"), UpdateBlocksInput{
		PageSlug:   "home",
		PartKey:    keyA,
		Fields:     map[string]interface{}{"subtitle": "Hola"},
		Regenerate: true,
	})
	if err != nil {
		t.Fatalf("UpdateBlocks returned error: %v", err)
	}
	if result.Locale != "es" {
		t.Fatalf("expected locale from site, got %q", result.Locale)
	}
	if result.Blocks.Blocks["title"].Content != "Welcome" || result.Blocks.Blocks["subtitle"].Content != "Hola" {
		t.Fatalf("unexpected es blocks %#v", result.Blocks.Blocks)
	}
	if got := result.Part.BlockContents.Locales(); !reflect.DeepEqual(got, []string{"en", "es"}) {
		t.Fatalf("expected en kept and es appended, got %v", got)
	}
	if len(result.Rendered) != 2 {
		t.Fatalf("expected every locale regenerated, got %d results", len(result.Rendered))
	}
}

func TestUpdateBlocksAbsorbsTemplateFailures(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.page(t, "home", "broken/part")

	result, err := e.services.Composition.UpdateBlocks(ctx, e.site, UpdateBlocksInput{
		PageSlug:   "home",
		PartKey:    "broken/part",
		Locale:     "en",
		Fields:     map[string]interface{}{"title": "still saved"},
		Regenerate: true,
	})
	if err != nil {
		t.Fatalf("template failures must not fail the update: %v", err)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", result.Warnings)
	}

	part, err := e.services.Parts.Resolve(ctx, NewSite(e.website.ID, "en"), "broken/part", "home")
	if err != nil || part == nil {
		t.Fatalf("expected stored record, got %v %v", part, err)
	}
	if _, blocks := part.BlockContents.Resolve("en"); blocks.Blocks["title"].Content != "still saved" {
		t.Fatalf("expected content saved despite template failure, got %#v", blocks.Blocks)
	}
}

func TestUpdateBlocksStoresClientHTML(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.page(t, "home", keyA)
	html := `<h1 onclick="x()">Client</h1>`

	if _, err := e.services.Composition.UpdateBlocks(ctx, e.site, UpdateBlocksInput{
		PageSlug:     "home",
		PartKey:      keyA,
		Locale:       "en",
		Fields:       map[string]interface{}{"title": "Client"},
		RenderedHTML: &html,
	}); err != nil {
		t.Fatalf("UpdateBlocks returned error: %v", err)
	}

	var rows []db.RenderedContent
	e.db.Find(&rows)
	if len(rows) != 1 || rows[0].HTML != "<h1>Client</h1>" || rows[0].Source != db.RenderSourceClient {
		t.Fatalf("unexpected stored html %#v", rows)
	}
}

func TestUpdateBlocksNotFound(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.page(t, "home", keyA)

	_, err := e.services.Composition.UpdateBlocks(ctx, e.site, UpdateBlocksInput{PageSlug: "home", PartKey: keyC, Regenerate: true})
	if !errors.Is(err, ErrPartNotFound) {
		t.Fatalf("expected part not found, got %v", err)
	}
	_, err = e.services.Composition.UpdateBlocks(ctx, e.site, UpdateBlocksInput{PageSlug: "nope", PartKey: keyA, Regenerate: true})
	if !errors.Is(err, ErrPageNotFound) {
		t.Fatalf("expected page not found, got %v", err)
	}
}

func TestRenderPageWrapsContainers(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	page := e.page(t, "home")

	e.placement(t, page, keyA, nil, "")
	layout := e.placement(t, page, "layout/two_columns", nil, "")
	e.placement(t, page, keyC, &layout.ID, "right")
	e.placement(t, page, "broken/part", nil, "")
	hidden := e.placement(t, page, keyB, nil, "")
	if err := e.db.Model(hidden).Update("visible_on_page", false).Error; err != nil {
		t.Fatalf("hide failed: %v", err)
	}

	rendered, err := e.services.Composition.RenderPage(ctx, e.site, "home")
	if err != nil {
		t.Fatalf("RenderPage returned error: %v", err)
	}

	want := `<h1>Welcome</h1>` +
		`<div data-part="layout/two_columns"><div data-slot="left"></div><div data-slot="right"><a>Contact us</a></div></div>`
	if string(rendered.HTML) != want {
		t.Fatalf("unexpected page html:\n got %s\nwant %s", rendered.HTML, want)
	}
	if len(rendered.Warnings) != 1 {
		t.Fatalf("expected the broken part as a warning, got %v", rendered.Warnings)
	}

	if _, err := e.services.Composition.SetVisibility(ctx, e.site, "home", keyA, false); err != nil {
		t.Fatalf("SetVisibility returned error: %v", err)
	}
	rendered, err = e.services.Composition.RenderPage(ctx, NewSite(e.website.ID, "en"), "home")
	if err != nil {
		t.Fatalf("RenderPage returned error: %v", err)
	}
	if strings.Contains(string(rendered.HTML), "Welcome") {
		t.Fatalf("expected hidden hero to be left out, got %s", rendered.HTML)
	}
}

func TestRenderPageUsesWebsiteWideRecord(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	seedPart(t, e, keyA, "", "Shared hero")
	seedPart(t, e, keyA, "home", "Home hero")
	e.page(t, "home", keyA)
	e.page(t, "about", keyA)

	home, err := e.services.Composition.RenderPage(ctx, e.site, "home")
	if err != nil {
		t.Fatalf("RenderPage returned error: %v", err)
	}
	about, err := e.services.Composition.RenderPage(ctx, NewSite(e.website.ID, "en"), "about")
	if err != nil {
		t.Fatalf("RenderPage returned error: %v", err)
	}

	if string(home.HTML) != "<h1>Home hero</h1>" {
		t.Fatalf("unexpected home html %q", home.HTML)
	}
	if string(about.HTML) != "<h1>Shared hero</h1>" {
		t.Fatalf("unexpected about html %q", about.HTML)
	}
}

func TestRenderPageHiddenPage(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	if _, err := e.services.Pages.Save(ctx, e.website.ID, PageInput{Slug: "draft", Title: "Draft", Hidden: true}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	if _, err := e.services.Composition.RenderPage(ctx, e.site, "draft"); !errors.Is(err, ErrPageNotFound) {
		t.Fatalf("expected hidden page to be not found, got %v", err)
	}
}

func TestCompositionDeleteAndReorder(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.page(t, "home", keyA, keyB, keyC)

	if _, err := e.services.Composition.Tree(ctx, e.site, "home", false); err != nil {
		t.Fatalf("Tree returned error: %v", err)
	}

	order, err := e.services.Composition.ReorderSemantic(ctx, e.site, "home", []string{keyC, keyB, keyA})
	if err != nil {
		t.Fatalf("ReorderSemantic returned error: %v", err)
	}
	if !reflect.DeepEqual(order, []string{keyC, keyB, keyA}) {
		t.Fatalf("unexpected order %v", order)
	}

	views, err := e.services.Composition.Tree(ctx, NewSite(e.website.ID, "en"), "home", false)
	if err != nil {
		t.Fatalf("Tree returned error: %v", err)
	}
	if err := e.services.Composition.DeletePlacement(ctx, e.site, views[0].ID, false); err != nil {
		t.Fatalf("DeletePlacement returned error: %v", err)
	}

	if _, err := e.services.Composition.ReorderSemantic(ctx, e.site, "nope", []string{keyA}); !errors.Is(err, ErrPageNotFound) {
		t.Fatalf("expected page not found, got %v", err)
	}
}

func TestTreeKeepsNestedExpectedKey(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	page := e.page(t, "home", "layout/two_columns", keyA)

	views, err := e.services.Composition.Tree(ctx, e.site, "home", false)
	if err != nil {
		t.Fatalf("Tree returned error: %v", err)
	}
	layoutID, heroID := views[0].ID, views[1].ID

	if err := e.services.Composition.ReorderPositional(ctx, e.site, "home", nil, &SlotAssignment{
		ContainerID: layoutID,
		Slots:       map[string][]uint{"left": {heroID}},
	}); err != nil {
		t.Fatalf("ReorderPositional returned error: %v", err)
	}

	for i := 0; i < 2; i++ {
		views, err = e.services.Composition.Tree(ctx, NewSite(e.website.ID, "en"), "home", false)
		if err != nil {
			t.Fatalf("Tree returned error: %v", err)
		}
	}
	if got := rootKeys(views); !reflect.DeepEqual(got, []string{"layout/two_columns"}) {
		t.Fatalf("expected only the layout at the root, got %v", got)
	}

	var count int64
	e.db.Model(&db.PageContent{}).Where("page_id = ? AND page_part_key = ?", page.ID, keyA).Count(&count)
	if count != 1 {
		t.Fatalf("expected one hero placement, got %d", count)
	}

	rendered, err := e.services.Composition.RenderPage(ctx, NewSite(e.website.ID, "en"), "home")
	if err != nil {
		t.Fatalf("RenderPage returned error: %v", err)
	}
	if strings.Count(string(rendered.HTML), "<h1>") != 1 {
		t.Fatalf("expected the hero once, got %s", rendered.HTML)
	}
}

func TestUpdateWebsiteWidePartRefreshesOtherPages(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	seedPart(t, e, keyA, "", "Old")
	e.page(t, "a", keyA)
	e.page(t, "b", keyA)

	before, err := e.services.Composition.RenderPage(ctx, e.site, "b")
	if err != nil {
		t.Fatalf("RenderPage returned error: %v", err)
	}
	if string(before.HTML) != "<h1>Old</h1>" {
		t.Fatalf("unexpected html before the edit %q", before.HTML)
	}

	result, err := e.services.Composition.UpdateBlocks(ctx, NewSite(e.website.ID, "en"), UpdateBlocksInput{
		PageSlug:   "a",
		PartKey:    keyA,
		Fields:     map[string]interface{}{"title": "New"},
		Regenerate: true,
	})
	if err != nil {
		t.Fatalf("UpdateBlocks returned error: %v", err)
	}
	if !result.Part.IsWebsiteWide() {
		t.Fatalf("expected the shared record to be edited, got page %q", result.Part.PageSlug)
	}

	for _, slug := range []string{"a", "b"} {
		after, err := e.services.Composition.RenderPage(ctx, NewSite(e.website.ID, "en"), slug)
		if err != nil {
			t.Fatalf("RenderPage %s returned error: %v", slug, err)
		}
		if string(after.HTML) != "<h1>New</h1>" {
			t.Fatalf("page %s: expected the edit to show, got %q", slug, after.HTML)
		}
	}
}
