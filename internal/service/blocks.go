package service

import (
	"github.com/pagewright/internal/db"
	"github.com/pagewright/internal/parts"
)

// DefaultBlocksFor seeds one locale worth of fields from a definition, using
// each field's default or "" when none is declared.
func DefaultBlocksFor(def parts.Definition) db.LocaleBlocks {
	blocks := make(map[string]db.BlockField, len(def.Fields))
	for _, field := range def.Fields {
		blocks[field.Name] = db.BlockField{Content: field.DefaultContent()}
	}
	return db.LocaleBlocks{Blocks: blocks}
}

// NormalizeIncoming flattens an update payload to field -> value. Payloads
// may wrap fields as {"blocks": {...}}, and values may already be shaped as
// {"content": v}; both are unwrapped.
func NormalizeIncoming(payload map[string]interface{}) map[string]interface{} {
	fields := payload
	if wrapped, ok := payload["blocks"].(map[string]interface{}); ok && len(payload) == 1 {
		fields = wrapped
	}

	out := make(map[string]interface{}, len(fields))
	for name, value := range fields {
		if entry, ok := value.(map[string]interface{}); ok && len(entry) == 1 {
			if content, has := entry["content"]; has {
				out[name] = content
				continue
			}
		}
		out[name] = value
	}
	return out
}

// MergeUpdate returns a copy of current with incoming fields applied to
// locale. Each incoming field replaces its whole {content: value} entry;
// fields not mentioned and other locales are left untouched. Field names are
// not checked against any definition.
func MergeUpdate(current db.BlockContents, locale string, incoming map[string]interface{}) db.BlockContents {
	next := current.Clone()

	entry, _ := next.Get(locale)
	fields := make(map[string]db.BlockField, len(entry.Blocks)+len(incoming))
	for name, field := range entry.Blocks {
		fields[name] = field
	}
	for name, value := range NormalizeIncoming(incoming) {
		fields[name] = db.BlockField{Content: value}
	}

	next.Set(locale, db.LocaleBlocks{Blocks: fields})
	return next
}

// SeedLocale fills locale from the definition defaults when it has no entry.
func SeedLocale(current db.BlockContents, locale string, def parts.Definition) db.BlockContents {
	if _, exists := current.Get(locale); exists {
		return current
	}
	next := current.Clone()
	next.Set(locale, DefaultBlocksFor(def))
	return next
}

// templateInput returns the resolved blocks with every declared field present,
// so templates can address fields the stored content predates.
func templateInput(blocks db.LocaleBlocks, def parts.Definition, hasDef bool) map[string]interface{} {
	values := blocks.Values()
	if hasDef {
		for _, field := range def.Fields {
			if _, ok := values[field.Name]; !ok {
				values[field.Name] = map[string]interface{}{"content": ""}
			}
		}
	}
	return values
}
