package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListEditorParts returns the editor palette: the website's part records in
// editor order plus the catalogue of definitions.
func (a *API) ListEditorParts(c *gin.Context) {
	site, ok := a.mustSite(c)
	if !ok {
		return
	}

	records, err := a.parts.ListForEditor(c.Request.Context(), site)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}

	items := make([]gin.H, 0, len(records))
	for _, record := range records {
		def, known := a.registry.Definition(record.PartKey)
		items = append(items, gin.H{
			"key":             record.PartKey,
			"label":           def.Label,
			"known":           known,
			"is_container":    known && def.Container,
			"page_slug":       record.PageSlug,
			"order_in_editor": record.OrderInEditor,
		})
	}

	catalogue := make([]interface{}, 0, len(a.registry.Keys()))
	for _, key := range a.registry.Keys() {
		if def, ok := a.registry.Definition(key); ok {
			catalogue = append(catalogue, def)
		}
	}

	c.JSON(http.StatusOK, gin.H{"parts": items, "catalogue": catalogue})
}

// ReorderEditorParts rewrites the editor palette order.
func (a *API) ReorderEditorParts(c *gin.Context) {
	site, ok := a.mustSite(c)
	if !ok {
		return
	}
	body, ok := readJSONObject(c)
	if !ok {
		return
	}
	keys, ok := orderKeys(c, body)
	if !ok {
		return
	}

	if err := a.parts.ReorderEditor(c.Request.Context(), site, keys); err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": keys})
}
