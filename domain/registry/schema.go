package registry

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	svcerrors "github.com/lattice-data/gateway/infrastructure/errors"
)

// BaseTypesSchemaName is the conventional schema carrying shared
// definitions referenced by other schemas via $ref.
const BaseTypesSchemaName = "base-types"

// PathSegment is one step of a schema-tree pointer: either a property name
// or the literal array-element marker.
type PathSegment struct {
	Property     string
	ArrayElement bool
}

// EnumFieldBinding records where an enum placeholder was expanded in a
// schema tree, so the response transformer can later map codes to literals
// at the same pointer.
type EnumFieldBinding struct {
	Pointer  []PathSegment
	EnumName string
}

// JSONSchema pairs a resolved schema with the enum bindings discovered
// while augmenting it.
type JSONSchema struct {
	Name     string
	raw      map[string]interface{}
	resolved *jsonschema.Resolved
	Bindings []EnumFieldBinding
}

// Validate checks instance (a decoded document) against the schema.
func (s *JSONSchema) Validate(instance interface{}) error {
	if s.resolved == nil {
		b, err := json.Marshal(s.raw)
		if err != nil {
			return svcerrors.Internal("marshal schema "+s.Name, err)
		}
		var schema jsonschema.Schema
		if err := json.Unmarshal(b, &schema); err != nil {
			return svcerrors.Internal("parse schema "+s.Name, err)
		}
		resolved, err := schema.Resolve(nil)
		if err != nil {
			return svcerrors.Internal("resolve schema "+s.Name, err)
		}
		s.resolved = resolved
	}
	if err := s.resolved.Validate(instance); err != nil {
		return svcerrors.SchemaValidationFailed(s.Name, err.Error())
	}
	return nil
}

// SchemaRegistry holds every loaded JSON Schema keyed by name, plus the
// enum registry used to resolve enumRef placeholders during augmentation.
type SchemaRegistry struct {
	schemas map[string]*JSONSchema
	enums   *EnumRegistry
}

// NewSchemaRegistry wires a SchemaRegistry against an EnumRegistry; enums
// may be nil if no endpoint in this deployment uses enumRef placeholders.
func NewSchemaRegistry(enums *EnumRegistry) *SchemaRegistry {
	return &SchemaRegistry{schemas: make(map[string]*JSONSchema), enums: enums}
}

// Load parses raw JSON Schema bytes, augments enumRef placeholders with
// concrete enum literal arrays sourced from the enum registry, and stores
// the result under name.
func (r *SchemaRegistry) Load(name string, raw []byte) (*JSONSchema, error) {
	var tree map[string]interface{}
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("registry: parse schema %q: %w", name, err)
	}

	entry := &JSONSchema{Name: name, raw: tree}
	augmentSchema(tree, nil, r.enums, &entry.Bindings)
	r.schemas[name] = entry
	return entry, nil
}

// Get returns the named schema, if loaded.
func (r *SchemaRegistry) Get(name string) (*JSONSchema, bool) {
	s, ok := r.schemas[name]
	return s, ok
}

// enumRefExtension is the vendor-extension keyword schemas use to reference
// a dynamic enum by name; augmentSchema replaces it with a concrete "enum"
// array and records the binding.
const enumRefExtension = "enumRef"

// augmentSchema walks properties, items, allOf, and anyOf of a decoded
// schema tree, accumulating a path of segments and replacing enumRef
// markers with concrete enum arrays sourced from the enum registry.
func augmentSchema(node map[string]interface{}, path []PathSegment, enums *EnumRegistry, bindings *[]EnumFieldBinding) {
	if node == nil {
		return
	}

	if rawName, ok := node[enumRefExtension]; ok {
		if enumName, ok := rawName.(string); ok && enumName != "" {
			if enums != nil {
				if e, ok := enums.Get(enumName); ok {
					literals := make([]interface{}, len(e.Literals()))
					for i, v := range e.Literals() {
						literals[i] = v
					}
					node["enum"] = literals
				}
			}
			delete(node, enumRefExtension)
			cp := make([]PathSegment, len(path))
			copy(cp, path)
			*bindings = append(*bindings, EnumFieldBinding{Pointer: cp, EnumName: enumName})
		}
	}

	if props, ok := node["properties"].(map[string]interface{}); ok {
		for name, child := range props {
			if childNode, ok := child.(map[string]interface{}); ok {
				augmentSchema(childNode, append(path, PathSegment{Property: name}), enums, bindings)
			}
		}
	}
	if items, ok := node["items"].(map[string]interface{}); ok {
		augmentSchema(items, append(path, PathSegment{ArrayElement: true}), enums, bindings)
	}
	for _, key := range []string{"allOf", "anyOf"} {
		if list, ok := node[key].([]interface{}); ok {
			for _, item := range list {
				if childNode, ok := item.(map[string]interface{}); ok {
					augmentSchema(childNode, path, enums, bindings)
				}
			}
		}
	}
}

// PointerString renders a binding pointer in a debug-friendly dotted form,
// using "[]" for array-element segments.
func PointerString(segments []PathSegment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg.ArrayElement {
			parts = append(parts, "[]")
			continue
		}
		parts = append(parts, seg.Property)
	}
	return strings.Join(parts, ".")
}
