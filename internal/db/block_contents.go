package db

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/pagewright/internal/locale"
)

// BlockField is the stored value of one editable field.
type BlockField struct {
	Content interface{} `json:"content"`
}

// LocaleBlocks holds the fields of one locale.
type LocaleBlocks struct {
	Blocks map[string]BlockField `json:"blocks"`
}

// IsEmpty reports whether the locale carries no fields.
func (b LocaleBlocks) IsEmpty() bool {
	return len(b.Blocks) == 0
}

// Values flattens the blocks into field -> {content: value} maps, the shape
// templates receive.
func (b LocaleBlocks) Values() map[string]interface{} {
	out := make(map[string]interface{}, len(b.Blocks))
	for name, field := range b.Blocks {
		out[name] = map[string]interface{}{"content": field.Content}
	}
	return out
}

// BlockContents maps locale codes to their blocks. Locale order is the order
// in which entries were stored and survives JSON round trips, which keeps the
// "first available locale" fallback deterministic.
type BlockContents struct {
	order   []string
	entries map[string]LocaleBlocks
}

// Locales returns the stored locales in stored order.
func (c BlockContents) Locales() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of stored locales.
func (c BlockContents) Len() int {
	return len(c.order)
}

// Get returns the blocks stored under locale.
func (c BlockContents) Get(code string) (LocaleBlocks, bool) {
	entry, ok := c.entries[code]
	return entry, ok
}

// Set stores blocks under locale, appending new locales at the end.
func (c *BlockContents) Set(code string, blocks LocaleBlocks) {
	if c.entries == nil {
		c.entries = make(map[string]LocaleBlocks)
	}
	if blocks.Blocks == nil {
		blocks.Blocks = map[string]BlockField{}
	}
	if _, exists := c.entries[code]; !exists {
		c.order = append(c.order, code)
	}
	c.entries[code] = blocks
}

// Clone returns a deep copy of the locale and field maps.
func (c BlockContents) Clone() BlockContents {
	out := BlockContents{
		order:   make([]string, len(c.order)),
		entries: make(map[string]LocaleBlocks, len(c.entries)),
	}
	copy(out.order, c.order)
	for code, entry := range c.entries {
		fields := make(map[string]BlockField, len(entry.Blocks))
		for name, field := range entry.Blocks {
			fields[name] = field
		}
		out.entries[code] = LocaleBlocks{Blocks: fields}
	}
	return out
}

// Resolve applies the locale fallback chain. Only locales with at least one
// field count as available; when none do, the first stored locale is used.
// An empty map resolves to an empty locale and empty blocks.
func (c BlockContents) Resolve(requested string) (string, LocaleBlocks) {
	if len(c.order) == 0 {
		return "", LocaleBlocks{Blocks: map[string]BlockField{}}
	}

	filled := make([]string, 0, len(c.order))
	for _, code := range c.order {
		if !c.entries[code].IsEmpty() {
			filled = append(filled, code)
		}
	}
	if len(filled) == 0 {
		first := c.order[0]
		return first, c.entries[first]
	}

	resolved := locale.Pick(requested, filled)
	return resolved, c.entries[resolved]
}

// MarshalJSON writes locales in stored order.
func (c BlockContents) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, code := range c.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(code)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		entry, err := json.Marshal(c.entries[code])
		if err != nil {
			return nil, fmt.Errorf("encode locale %s: %w", code, err)
		}
		buf.Write(entry)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON records locale order as it appears in the document. Numbers
// are kept as json.Number so they re-encode unchanged.
func (c *BlockContents) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode block contents: %w", err)
	}
	if tok == nil {
		*c = BlockContents{}
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("decode block contents: expected object, got %v", tok)
	}

	var out BlockContents
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode block contents: %w", err)
		}
		code, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("decode block contents: unexpected key %v", keyTok)
		}
		var entry LocaleBlocks
		if err := dec.Decode(&entry); err != nil {
			return fmt.Errorf("decode locale %s: %w", code, err)
		}
		out.Set(code, entry)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode block contents: %w", err)
	}

	*c = out
	return nil
}

// Value implements driver.Valuer.
func (c BlockContents) Value() (driver.Value, error) {
	encoded, err := c.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

// Scan implements sql.Scanner.
func (c *BlockContents) Scan(src interface{}) error {
	raw, err := scanBytes(src)
	if err != nil {
		return fmt.Errorf("scan block contents: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		*c = BlockContents{}
		return nil
	}
	return c.UnmarshalJSON(raw)
}
