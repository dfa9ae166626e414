package filter

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Parse parses raw JSON bytes representing a filter document into a Node
// tree. Object key order is preserved via gjson.ForEach, so the children of
// a Composite node follow the key order of the document.
func Parse(raw []byte) (Node, error) {
	result := gjson.ParseBytes(raw)
	if !result.IsObject() {
		return Node{}, invalidStructure("filter document must be a JSON object")
	}
	return parseObject(result)
}

// ParseValue parses an already-decoded filter document (e.g. forwarded from
// a GET-style translation) into a Node tree.
func ParseValue(doc map[string]interface{}) (Node, error) {
	return parseFields(orderedKeys(doc), doc)
}

func parseObject(result gjson.Result) (Node, error) {
	keys := make([]string, 0)
	values := make(map[string]interface{})
	raws := make(map[string]gjson.Result)
	var parseErr error
	result.ForEach(func(key, value gjson.Result) bool {
		k := key.String()
		keys = append(keys, k)
		values[k] = value.Value()
		raws[k] = value
		return true
	})
	if parseErr != nil {
		return Node{}, parseErr
	}
	return parseFieldsRaw(keys, values, raws)
}

// parseFields parses a decoded (order-lost) map; used for GET-style and
// programmatic callers where wire order doesn't matter.
func parseFields(keys []string, values map[string]interface{}) (Node, error) {
	return parseFieldsRaw(keys, values, nil)
}

func parseFieldsRaw(keys []string, values map[string]interface{}, raws map[string]gjson.Result) (Node, error) {
	children := make([]Node, 0, len(keys))
	for _, key := range keys {
		val := values[key]
		if strings.HasPrefix(key, "$") {
			op, ok := IsLogicalOp(key)
			if !ok {
				return Node{}, invalidStructure(fmt.Sprintf("unknown logical operator %q", key))
			}
			list, ok := val.([]interface{})
			if !ok {
				return Node{}, invalidStructure(fmt.Sprintf("logical operator %q requires a list of sub-filters", key))
			}
			childNodes := make([]Node, 0, len(list))
			for _, item := range list {
				obj, ok := item.(map[string]interface{})
				if !ok {
					return Node{}, invalidStructure(fmt.Sprintf("logical operator %q children must be objects", key))
				}
				child, err := parseFields(orderedKeys(obj), obj)
				if err != nil {
					return Node{}, err
				}
				childNodes = append(childNodes, child)
			}
			if op == LogicalNot && len(childNodes) != 1 {
				return Node{}, invalidStructure("$not requires exactly one child filter")
			}
			if op != LogicalNot && len(childNodes) < 1 {
				return Node{}, invalidStructure(fmt.Sprintf("%s requires at least one child filter", op))
			}
			children = append(children, LogicalNode(op, childNodes))
			continue
		}

		field, err := parseFieldFilter(key, val)
		if err != nil {
			return Node{}, err
		}
		children = append(children, field)
	}

	if len(children) == 0 {
		return CompositeNode(nil), nil
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return CompositeNode(children), nil
}

func parseFieldFilter(field string, val interface{}) (Node, error) {
	opsMap, ok := val.(map[string]interface{})
	if !ok {
		// Bare-value sugar for $eq.
		return FieldNode(field, []OpValue{{Op: OpEq, Value: val}}), nil
	}

	keys := orderedKeys(opsMap)
	ops := make([]OpValue, 0, len(keys))
	for _, opKey := range keys {
		if !strings.HasPrefix(opKey, "$") {
			return Node{}, invalidStructure(fmt.Sprintf("field %q: key %q is not a recognised operator", field, opKey))
		}
		spec, ok := LookupOperator(opKey)
		if !ok {
			return Node{}, invalidStructure(fmt.Sprintf("field %q: unknown operator %q", field, opKey))
		}
		ops = append(ops, OpValue{Op: spec.Operator, Value: opsMap[opKey]})
	}
	return FieldNode(field, ops), nil
}

// orderedKeys returns the keys of a decoded map. Go maps don't preserve
// insertion order, so callers that need wire order (sort specs) must come
// through Parse/gjson instead of a pre-decoded map.
func orderedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
