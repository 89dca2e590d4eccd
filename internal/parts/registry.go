package parts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	stdpath "path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownPart is returned by lookups that require a definition.
var ErrUnknownPart = errors.New("unknown page part")

// Definition describes a reusable page part.
type Definition struct {
	Key       string    `yaml:"key" json:"key"`
	Label     string    `yaml:"label" json:"label"`
	Container bool      `yaml:"container" json:"is_container"`
	Slots     []string  `yaml:"slots" json:"slots,omitempty"`
	Fields    FieldList `yaml:"fields" json:"fields"`
	// Template holds inline template source; TemplateFile points into the
	// catalogue's templates/ directory and is resolved at load time.
	Template     string `yaml:"template" json:"-"`
	TemplateFile string `yaml:"template_file" json:"-"`
}

// HasSlot reports whether the definition declares slot.
func (d Definition) HasSlot(slot string) bool {
	for _, candidate := range d.Slots {
		if candidate == slot {
			return true
		}
	}
	return false
}

// FieldNames returns the declared field names in order.
func (d Definition) FieldNames() []string {
	names := make([]string, 0, len(d.Fields))
	for _, field := range d.Fields {
		names = append(names, field.Name)
	}
	return names
}

// catalogueFile is the root structure of a definition file.
type catalogueFile struct {
	Parts []Definition `yaml:"parts"`
}

// Registry is an immutable catalogue of part definitions.
type Registry struct {
	defs map[string]Definition
	keys []string
}

// New builds a registry from definitions, validating each one.
func New(defs ...Definition) (*Registry, error) {
	r := &Registry{defs: make(map[string]Definition, len(defs))}
	for _, def := range defs {
		if err := r.add(def); err != nil {
			return nil, err
		}
	}
	sort.Strings(r.keys)
	return r, nil
}

// MustNew is New for statically known definitions.
func MustNew(defs ...Definition) *Registry {
	r, err := New(defs...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) add(def Definition) error {
	key := strings.TrimSpace(def.Key)
	if key == "" {
		return errors.New("part definition without key")
	}
	if _, exists := r.defs[key]; exists {
		return fmt.Errorf("duplicate part definition %s", key)
	}
	if def.Container && len(def.Slots) == 0 {
		return fmt.Errorf("container %s declares no slots", key)
	}
	if !def.Container && len(def.Slots) > 0 {
		return fmt.Errorf("part %s declares slots but is not a container", key)
	}
	def.Key = key
	r.defs[key] = def
	r.keys = append(r.keys, key)
	return nil
}

// Load reads every *.yaml file at the root of fsys. Template files are
// resolved against templates/ in the same filesystem.
func Load(fsys fs.FS) (*Registry, error) {
	var defs []Definition

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read catalogue: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}

		var file catalogueFile
		if err := yaml.Unmarshal(content, &file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}

		for _, def := range file.Parts {
			if def.Template == "" && def.TemplateFile != "" {
				source, err := fs.ReadFile(fsys, stdpath.Join("templates", def.TemplateFile))
				if err != nil {
					return nil, fmt.Errorf("part %s in %s: %w", def.Key, name, err)
				}
				def.Template = string(source)
			}
			defs = append(defs, def)
		}
	}

	return New(defs...)
}

// LoadDefault loads the embedded catalogue, or the catalogue in dir when dir
// is not empty.
func LoadDefault(dir string) (*Registry, error) {
	if trimmed := strings.TrimSpace(dir); trimmed != "" {
		return Load(os.DirFS(trimmed))
	}
	return Load(CatalogueFS())
}

// Definition looks up a definition by key.
func (r *Registry) Definition(key string) (Definition, bool) {
	if r == nil {
		return Definition{}, false
	}
	def, ok := r.defs[key]
	return def, ok
}

// IsContainer reports whether key names a container definition.
func (r *Registry) IsContainer(key string) bool {
	def, ok := r.Definition(key)
	return ok && def.Container
}

// TemplateFor returns the template source of key, if any.
func (r *Registry) TemplateFor(key string) (string, bool) {
	def, ok := r.Definition(key)
	if !ok || strings.TrimSpace(def.Template) == "" {
		return "", false
	}
	return def.Template, true
}

// HasSlot reports whether key is a container declaring slot.
func (r *Registry) HasSlot(key, slot string) bool {
	def, ok := r.Definition(key)
	return ok && def.Container && def.HasSlot(slot)
}

// Keys returns all definition keys sorted.
func (r *Registry) Keys() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}
