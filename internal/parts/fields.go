package parts

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Field describes one editable field of a part.
type Field struct {
	Name    string      `yaml:"name" json:"name"`
	Type    string      `yaml:"type" json:"type,omitempty"`
	Label   string      `yaml:"label" json:"label,omitempty"`
	Default interface{} `yaml:"default" json:"default,omitempty"`
}

// DefaultContent returns the configured default, or "" when none is set.
func (f Field) DefaultContent() interface{} {
	if f.Default == nil {
		return ""
	}
	return f.Default
}

// FieldList accepts both declaration shapes found in definition files:
//
//	fields: [title, subtitle]
//
//	fields:
//	  title:
//	    default: Welcome
type FieldList []Field

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *FieldList) UnmarshalYAML(node *yaml.Node) error {
	fields, err := DetectFields(node)
	if err != nil {
		return err
	}
	*l = fields
	return nil
}

// UnmarshalJSON parses JSON through the YAML node API so that mapping order
// is kept for the map-shaped declaration.
func (l *FieldList) UnmarshalJSON(data []byte) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse fields: %w", err)
	}
	node := &doc
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		node = doc.Content[0]
	}
	return l.UnmarshalYAML(node)
}

// DetectFields normalizes a field declaration node. Sequences hold field
// names (or {name: ...} entries); mappings hold name -> config, where config
// is either a mapping with default/type/label, a bare default scalar, or null.
func DetectFields(node *yaml.Node) ([]Field, error) {
	if node == nil {
		return nil, nil
	}

	switch node.Kind {
	case yaml.SequenceNode:
		fields := make([]Field, 0, len(node.Content))
		for _, item := range node.Content {
			switch item.Kind {
			case yaml.ScalarNode:
				fields = append(fields, Field{Name: item.Value})
			case yaml.MappingNode:
				var field Field
				if err := item.Decode(&field); err != nil {
					return nil, fmt.Errorf("line %d: %w", item.Line, err)
				}
				if field.Name == "" {
					return nil, fmt.Errorf("line %d: field entry without name", item.Line)
				}
				fields = append(fields, field)
			default:
				return nil, fmt.Errorf("line %d: unsupported field entry", item.Line)
			}
		}
		return fields, nil

	case yaml.MappingNode:
		fields := make([]Field, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			name := node.Content[i].Value
			config := node.Content[i+1]
			field := Field{Name: name}

			switch {
			case config.Kind == yaml.MappingNode:
				if err := config.Decode(&field); err != nil {
					return nil, fmt.Errorf("field %s: %w", name, err)
				}
				field.Name = name
			case config.Kind == yaml.ScalarNode && config.Tag == "!!null":
			case config.Kind == yaml.ScalarNode:
				var value interface{}
				if err := config.Decode(&value); err != nil {
					return nil, fmt.Errorf("field %s: %w", name, err)
				}
				field.Default = value
			default:
				return nil, fmt.Errorf("field %s: unsupported config", name)
			}
			fields = append(fields, field)
		}
		return fields, nil

	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil, nil
		}
	}

	return nil, fmt.Errorf("line %d: fields must be a list or a mapping", node.Line)
}
