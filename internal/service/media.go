package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pagewright/internal/db"
)

// MediaKind is the closed set of media items a block value can reference.
type MediaKind int

const (
	MediaUnknown MediaKind = iota
	MediaContentPhoto
	MediaWebsitePhoto
)

func (k MediaKind) String() string {
	switch k {
	case MediaContentPhoto:
		return "content_photo"
	case MediaWebsitePhoto:
		return "website_photo"
	default:
		return "unknown"
	}
}

// MediaItem is a classified photo reference. Raw holds the original value so
// unknown items serialize unchanged.
type MediaItem struct {
	Kind    MediaKind
	ID      string
	URL     string
	AltText string
	Raw     map[string]interface{}
}

// ClassifyMedia inspects a block value once. Values that are not photo
// descriptors (a map with a "photo_type" key) return ok=false.
func ClassifyMedia(value interface{}) (MediaItem, bool) {
	raw, ok := value.(map[string]interface{})
	if !ok {
		return MediaItem{}, false
	}
	photoType, ok := raw["photo_type"].(string)
	if !ok {
		return MediaItem{}, false
	}

	item := MediaItem{
		ID:      stringValue(raw["id"]),
		URL:     stringValue(raw["url"]),
		AltText: stringValue(raw["alt"]),
		Raw:     raw,
	}
	switch strings.TrimSpace(photoType) {
	case "content":
		item.Kind = MediaContentPhoto
	case "website":
		item.Kind = MediaWebsitePhoto
	default:
		item.Kind = MediaUnknown
	}
	return item, true
}

// Serialize renders the item for API responses, one shape per kind. Every
// shape keeps the raw keys, photo_type included, so a value sent back by the
// editor classifies the same way again.
func (m MediaItem) Serialize() map[string]interface{} {
	out := make(map[string]interface{}, len(m.Raw)+5)
	for k, v := range m.Raw {
		out[k] = v
	}
	out["type"] = m.Kind.String()

	switch m.Kind {
	case MediaContentPhoto:
		out["id"] = m.ID
		out["url"] = m.URL
		out["alt"] = m.AltText
	case MediaWebsitePhoto:
		out["id"] = m.ID
		out["url"] = m.URL
		out["alt"] = m.AltText
		out["shared"] = true
	}
	return out
}

// serializeValue classifies media values and passes everything else through.
func serializeValue(value interface{}) interface{} {
	if item, ok := ClassifyMedia(value); ok {
		return item.Serialize()
	}
	return value
}

// SerializeBlocks shapes blocks as field -> {"content": value} for API
// responses, serializing media values through their variant.
func SerializeBlocks(blocks db.LocaleBlocks) map[string]interface{} {
	out := make(map[string]interface{}, len(blocks.Blocks))
	for name, field := range blocks.Blocks {
		out[name] = map[string]interface{}{"content": serializeValue(field.Content)}
	}
	return out
}

func stringValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
