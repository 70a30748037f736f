package opts

import (
	"sort"
)

// FieldDescriptor describes one leaf of the configuration: its dotted path,
// its kind and the value currently in effect.
type FieldDescriptor struct {
	Path    string `json:"path"`
	Type    string `json:"type"`
	Default any    `json:"default,omitempty"`
}

// DefaultSchemaGenerator returns the built-in descriptor-based schema generator.
func DefaultSchemaGenerator() SchemaGenerator {
	return descriptorGenerator{}
}

type descriptorGenerator struct{}

func (descriptorGenerator) Generate(value any) (SchemaDocument, error) {
	descriptors := deriveFieldDescriptors(value, "")
	if descriptors == nil {
		descriptors = []FieldDescriptor{}
	}
	return SchemaDocument{
		Format:   SchemaFormatDescriptors,
		Document: descriptors,
	}, nil
}

func deriveFieldDescriptors(value any, prefix string) []FieldDescriptor {
	switch typed := value.(type) {
	case nil:
		return nil
	case Tree:
		return deriveFieldDescriptors(typed.Plain(), prefix)
	case map[string]any:
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		var fields []FieldDescriptor
		for _, key := range keys {
			fields = append(fields, deriveFieldDescriptors(typed[key], joinPath(prefix, key))...)
		}
		return fields
	default:
		if prefix == "" {
			return nil
		}
		leaf, err := ValueOf(typed)
		if err != nil {
			return []FieldDescriptor{{Path: prefix, Type: KindInvalid.String()}}
		}
		return []FieldDescriptor{{Path: prefix, Type: leaf.Kind().String(), Default: leaf.Interface()}}
	}
}

// Schema describes the effective configuration with the configured generator.
// With WithScopeSchema(true) the document also lists every applied layer.
func (o *Options) Schema() (SchemaDocument, error) {
	generator := o.cfg.schemaGenerator
	if generator == nil {
		generator = DefaultSchemaGenerator()
	}
	doc, err := generator.Generate(o.tree.Plain())
	if err != nil {
		return SchemaDocument{}, err
	}
	if o.cfg.scopeSchema {
		for _, layer := range o.Layers() {
			doc.Scopes = append(doc.Scopes, SchemaScope{
				Name:       layer.Scope.Name,
				Label:      layer.Scope.Label,
				Priority:   layer.Scope.Priority,
				Metadata:   copyMetadata(layer.Scope.Metadata),
				SnapshotID: layer.SnapshotID,
			})
		}
	}
	return doc, nil
}
