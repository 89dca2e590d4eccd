package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pagewright/internal/db"
	"github.com/pagewright/internal/service"
	"github.com/tidwall/gjson"
)

// updateBlocksReserved are the keys of an update payload that are not fields.
var updateBlocksReserved = map[string]struct{}{
	"part_key":      {},
	"locale":        {},
	"rendered_html": {},
	"regenerate":    {},
}

// readJSONObject reads the request body and checks it is a JSON object.
func readJSONObject(c *gin.Context) ([]byte, bool) {
	body, err := c.GetRawData()
	if err != nil || !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		respondCode(c, http.StatusBadRequest, "invalid_payload", "request body must be a JSON object")
		return nil, false
	}
	return body, true
}

// orderKeys extracts a list of part keys from the "order" member of body.
func orderKeys(c *gin.Context, body []byte) ([]string, bool) {
	order := gjson.GetBytes(body, "order")
	if !order.IsArray() {
		respondCode(c, http.StatusBadRequest, "invalid_order", "order must be a list")
		return nil, false
	}

	items := order.Array()
	keys := make([]string, 0, len(items))
	for _, item := range items {
		if item.Type != gjson.String {
			respondCode(c, http.StatusBadRequest, "invalid_order", "order must contain part keys")
			return nil, false
		}
		keys = append(keys, item.String())
	}
	return keys, true
}

func placementJSON(p *db.PageContent) gin.H {
	var slot interface{}
	if p.ParentID != nil {
		slot = p.SlotName
	}
	return gin.H{
		"id":              p.ID,
		"page_part_key":   p.PagePartKey,
		"parent_id":       p.ParentID,
		"slot_name":       slot,
		"sort_order":      p.SortOrder,
		"visible_on_page": p.VisibleOnPage,
		"label":           p.Label,
		"code_rendered":   p.CodeRendered,
	}
}

// GetPageParts returns the placement tree of a page.
func (a *API) GetPageParts(c *gin.Context) {
	site, ok := a.mustSite(c)
	if !ok {
		return
	}

	slug := c.Param("slug")
	views, err := a.composition.Tree(c.Request.Context(), site, slug, queryBool(c, "include_hidden"))
	if err != nil {
		a.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"page":   slug,
		"locale": site.Locale,
		"parts":  views,
	})
}

// UpdateBlocks merges block content of one part and re-renders or stores the
// client supplied HTML.
func (a *API) UpdateBlocks(c *gin.Context) {
	site, ok := a.mustSite(c)
	if !ok {
		return
	}
	body, ok := readJSONObject(c)
	if !ok {
		return
	}

	var payload map[string]interface{}
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&payload); err != nil {
		respondCode(c, http.StatusBadRequest, "invalid_payload", "request body must be a JSON object")
		return
	}

	input := service.UpdateBlocksInput{
		PageSlug:   c.Param("slug"),
		PartKey:    strings.TrimSpace(gjson.GetBytes(body, "part_key").String()),
		Locale:     gjson.GetBytes(body, "locale").String(),
		Regenerate: gjson.GetBytes(body, "regenerate").Bool(),
	}
	if html := gjson.GetBytes(body, "rendered_html"); html.Exists() && html.Type == gjson.String {
		value := html.String()
		input.RenderedHTML = &value
	}

	if blocks, ok := payload["blocks"].(map[string]interface{}); ok {
		input.Fields = blocks
	} else {
		input.Fields = make(map[string]interface{}, len(payload))
		for key, value := range payload {
			if _, reserved := updateBlocksReserved[key]; !reserved {
				input.Fields[key] = value
			}
		}
	}

	result, err := a.composition.UpdateBlocks(c.Request.Context(), site, input)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}

	warnings := result.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"part_key":     input.PartKey,
		"locale":       result.Locale,
		"website_wide": result.Part.IsWebsiteWide(),
		"blocks":       service.SerializeBlocks(result.Blocks),
		"warnings":     warnings,
	})
}

// ReorderParts orders the root placements of a page by part key.
func (a *API) ReorderParts(c *gin.Context) {
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

	order, err := a.composition.ReorderSemantic(c.Request.Context(), site, c.Param("slug"), keys)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

type positionalPayload struct {
	Order       []service.PositionUpdate `json:"order"`
	SlotOrder   map[string][]uint        `json:"slot_order"`
	ContainerID *uint                    `json:"container_id"`
}

// ReorderPlacements applies explicit sort orders and slot assignments.
func (a *API) ReorderPlacements(c *gin.Context) {
	site, ok := a.mustSite(c)
	if !ok {
		return
	}
	body, ok := readJSONObject(c)
	if !ok {
		return
	}
	if !gjson.GetBytes(body, "order").IsArray() {
		respondCode(c, http.StatusBadRequest, "invalid_order", "order must be a list")
		return
	}

	var payload positionalPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		respondCode(c, http.StatusBadRequest, "invalid_order", "order entries must be {id, sort_order}")
		return
	}

	var slots *service.SlotAssignment
	if len(payload.SlotOrder) > 0 {
		if payload.ContainerID == nil {
			respondCode(c, http.StatusBadRequest, "container_id_required", "slot_order requires container_id")
			return
		}
		slots = &service.SlotAssignment{ContainerID: *payload.ContainerID, Slots: payload.SlotOrder}
	}

	if err := a.composition.ReorderPositional(c.Request.Context(), site, c.Param("slug"), payload.Order, slots); err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "placements reordered"})
}

type visibilityPayload struct {
	PartKey string `json:"part_key"`
	Visible *bool  `json:"visible"`
}

// SetVisibility shows or hides a part on a page.
func (a *API) SetVisibility(c *gin.Context) {
	site, ok := a.mustSite(c)
	if !ok {
		return
	}

	var payload visibilityPayload
	if !bindJSON(c, &payload, "invalid visibility payload") {
		return
	}
	if strings.TrimSpace(payload.PartKey) == "" || payload.Visible == nil {
		respondCode(c, http.StatusBadRequest, "bad_request", "part_key and visible are required")
		return
	}

	placement, err := a.composition.SetVisibility(c.Request.Context(), site, c.Param("slug"), payload.PartKey, *payload.Visible)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":              placement.ID,
		"part_key":        placement.PagePartKey,
		"visible_on_page": placement.VisibleOnPage,
	})
}

type addPlacementPayload struct {
	PartKey  string `json:"part_key"`
	ParentID *uint  `json:"parent_id"`
	SlotName string `json:"slot_name"`
	Label    string `json:"label"`
	Hidden   bool   `json:"hidden"`
}

// AddPlacement puts a part on a page.
func (a *API) AddPlacement(c *gin.Context) {
	site, ok := a.mustSite(c)
	if !ok {
		return
	}

	var payload addPlacementPayload
	if !bindJSON(c, &payload, "invalid placement payload") {
		return
	}

	placement, err := a.composition.AddPlacement(c.Request.Context(), site, c.Param("slug"), service.AddPlacementInput{
		PartKey:  payload.PartKey,
		ParentID: payload.ParentID,
		SlotName: payload.SlotName,
		Label:    payload.Label,
		Hidden:   payload.Hidden,
	})
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"placement": placementJSON(placement)})
}

// DeletePlacement removes a placement; containers with children need force.
func (a *API) DeletePlacement(c *gin.Context) {
	site, ok := a.mustSite(c)
	if !ok {
		return
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		respondCode(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	if err := a.composition.DeletePlacement(c.Request.Context(), site, id, queryBool(c, "force")); err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "placement deleted"})
}
