package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/pagewright/internal/db"
	"github.com/pagewright/internal/logging"
	"github.com/pagewright/internal/parts"
	"github.com/pagewright/internal/service"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm/logger"
)

var handlerDBSeq int64

type testServer struct {
	api     *API
	engine  *gin.Engine
	website *db.Website
}

func setupTestServer(t *testing.T, defaultWebsite string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:pagewright-handler-%d?mode=memory&cache=shared", atomic.AddInt64(&handlerDBSeq, 1))
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

	registry := parts.MustNew(
		parts.Definition{
			Key:      "heroes/hero",
			Fields:   parts.FieldList{{Name: "title", Default: "Welcome"}},
			Template: `<h1>{{ .page_part.title.content }}</h1>`,
		},
		parts.Definition{
			Key:      "cta/banner",
			Fields:   parts.FieldList{{Name: "label"}},
			Template: `<a>{{ .page_part.label.content }}</a>`,
		},
		parts.Definition{
			Key:       "layout/two_columns",
			Container: true,
			Slots:     []string{"left", "right"},
		},
	)

	api := NewAPI(gdb, registry, Options{DefaultWebsite: defaultWebsite, DefaultLocale: "en", Log: logging.Discard()})

	ctx := context.Background()
	website, err := api.websites.Ensure(ctx, "acme", "Acme", "en")
	if err != nil {
		t.Fatalf("failed to seed website: %v", err)
	}
	if _, err := api.pages.Save(ctx, website.ID, service.PageInput{
		Slug:     "home",
		Title:    "Home",
		PartKeys: []string{"heroes/hero", "cta/banner"},
	}); err != nil {
		t.Fatalf("failed to seed page: %v", err)
	}

	engine := gin.New()
	engine.Use(api.RequestID())
	engine.Use(sessions.Sessions("test_session", cookie.NewStore([]byte("test-secret"))))
	site := engine.Group("")
	site.Use(api.SiteMiddleware())
	site.GET("/p/:slug", api.RenderPublicPage)
	site.GET("/api/pages/:slug/parts", api.GetPageParts)
	site.PUT("/api/pages/:slug/blocks", api.UpdateBlocks)
	site.POST("/api/pages/:slug/reorder", api.ReorderParts)
	site.POST("/api/pages/:slug/placements/reorder", api.ReorderPlacements)
	site.POST("/api/pages/:slug/placements", api.AddPlacement)
	site.PATCH("/api/pages/:slug/visibility", api.SetVisibility)
	site.DELETE("/api/placements/:id", api.DeletePlacement)
	site.GET("/api/parts", api.ListEditorParts)
	site.POST("/api/parts/reorder", api.ReorderEditorParts)
	site.PUT("/api/session/locale", api.UpdateSessionLocale)

	return &testServer{api: api, engine: engine, website: website}
}

func (s *testServer) do(t *testing.T, method, path string, payload interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	switch v := payload.(type) {
	case nil:
		body = bytes.NewReader(nil)
	case string:
		body = bytes.NewReader([]byte(v))
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(websiteHeader, "acme")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid json response %q: %v", w.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, status int) map[string]interface{} {
	t.Helper()
	if w.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, w.Code, w.Body.String())
	}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		return decodeBody(t, w)
	}
	return nil
}

// placementIDs reads the tree and maps part keys to root placement ids.
func (s *testServer) placementIDs(t *testing.T) map[string]uint {
	t.Helper()
	body := expectStatus(t, s.do(t, http.MethodGet, "/api/pages/home/parts?include_hidden=true", nil, nil), http.StatusOK)
	out := make(map[string]uint)
	for _, raw := range body["parts"].([]interface{}) {
		part := raw.(map[string]interface{})
		out[part["page_part_key"].(string)] = uint(part["id"].(float64))
	}
	return out
}
