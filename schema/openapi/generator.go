// Package openapi renders a configuration tree as an OpenAPI 3 document. Each
// top-level section becomes a component schema; leaves carry their type and
// the value currently in effect as the default.
package openapi

import (
	"fmt"
	"sort"
	"strings"

	opts "github.com/goliatone/go-optstore"
)

type generator struct {
	config generatorConfig
}

// NewGenerator constructs an OpenAPI-compatible schema generator.
func NewGenerator(options ...GeneratorOption) opts.SchemaGenerator {
	cfg := defaultGeneratorConfig()
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}
	return generator{config: cfg}
}

// Option wires the OpenAPI generator into a store.
func Option(options ...GeneratorOption) opts.Option {
	return opts.WithSchemaGenerator(NewGenerator(options...))
}

func (g generator) Generate(value any) (opts.SchemaDocument, error) {
	root, ok := value.(map[string]any)
	if !ok && value != nil {
		if tree, isTree := value.(opts.Tree); isTree {
			root = tree.Plain()
		} else {
			return opts.SchemaDocument{}, fmt.Errorf("openapi: expected a configuration map, got %T", value)
		}
	}

	components := map[string]any{}
	properties := map[string]any{}
	for _, name := range sortedKeys(root) {
		child := root[name]
		if section, ok := child.(map[string]any); ok {
			component := componentName(name)
			schema, err := objectSchema(section)
			if err != nil {
				return opts.SchemaDocument{}, fmt.Errorf("openapi: %s: %w", name, err)
			}
			components[component] = schema
			properties[name] = map[string]any{"$ref": "#/components/schemas/" + component}
			continue
		}
		schema, err := leafSchema(child)
		if err != nil {
			return opts.SchemaDocument{}, fmt.Errorf("openapi: %s: %w", name, err)
		}
		properties[name] = schema
	}
	components[g.config.rootComponent] = map[string]any{
		"type":       "object",
		"properties": properties,
	}

	return opts.SchemaDocument{
		Format:   opts.SchemaFormatOpenAPI,
		Document: g.document(components),
	}, nil
}

func (g generator) document(components map[string]any) map[string]any {
	info := map[string]any{
		"title":   g.config.info.Title,
		"version": g.config.info.Version,
	}
	if g.config.info.Description != "" {
		info["description"] = g.config.info.Description
	}
	operation := map[string]any{
		"operationId": g.config.operationID(),
		"requestBody": map[string]any{
			"required": true,
			"content": map[string]any{
				g.config.contentType: map[string]any{
					"schema": map[string]any{"$ref": "#/components/schemas/" + g.config.rootComponent},
				},
			},
		},
		"responses": map[string]any{
			"204": map[string]any{"description": "Configuration applied"},
		},
	}
	if summary := strings.TrimSpace(g.config.operation.Summary); summary != "" {
		operation["summary"] = summary
	}
	return map[string]any{
		"openapi": g.config.openAPIVersion,
		"info":    info,
		"paths": map[string]any{
			g.config.operation.Path: map[string]any{
				g.config.operation.Method: operation,
			},
		},
		"components": map[string]any{"schemas": components},
	}
}

func objectSchema(section map[string]any) (map[string]any, error) {
	properties := make(map[string]any, len(section))
	for _, key := range sortedKeys(section) {
		var (
			schema map[string]any
			err    error
		)
		if nested, ok := section[key].(map[string]any); ok {
			schema, err = objectSchema(nested)
		} else {
			schema, err = leafSchema(section[key])
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		properties[key] = schema
	}
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}, nil
}

func leafSchema(raw any) (map[string]any, error) {
	value, err := opts.ValueOf(raw)
	if err != nil {
		return nil, err
	}
	var kind string
	switch value.Kind() {
	case opts.KindBool:
		kind = "boolean"
	case opts.KindInt:
		kind = "integer"
	case opts.KindFloat:
		kind = "number"
	default:
		kind = "string"
	}
	return map[string]any{"type": kind, "default": value.Interface()}, nil
}

// componentName turns a section key such as "qa_handler" into "QaHandler".
func componentName(section string) string {
	var b strings.Builder
	for _, part := range strings.FieldsFunc(section, func(r rune) bool {
		return r == '_' || r == '-' || r == '.'
	}) {
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	if b.Len() == 0 {
		return "Section"
	}
	return b.String()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
