package filter

import (
	"net/url"
	"strconv"
	"strings"
)

// Reserved query parameter names that never become implicit field filters.
const (
	ParamLimit          = "limit"
	ParamSkip           = "skip"
	ParamSort           = "sort"
	ParamSequence       = "sequence"
	ParamBulkSize       = "bulkSize"
	ParamProjectInclude = "projectInclude"
	ParamProjectExclude = "projectExclude"
)

var reservedParams = map[string]bool{
	ParamLimit:          true,
	ParamSkip:           true,
	ParamSort:           true,
	ParamSequence:       true,
	ParamBulkSize:       true,
	ParamProjectInclude: true,
	ParamProjectExclude: true,
}

// ParseQueryValues translates a flat GET-style query string into a Node tree
// plus an Options block. Every parameter other than the reserved names
// becomes an implicit $eq string-value field filter, ANDed together. sort
// accepts a comma-separated list of field names, each optionally prefixed
// with "-" for descending order.
func ParseQueryValues(values url.Values) (Node, Options, error) {
	var opts Options

	if raw := values.Get(ParamLimit); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Node{}, Options{}, invalidStructure("limit must be an integer")
		}
		opts.Limit = n
	}
	if raw := values.Get(ParamSkip); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Node{}, Options{}, invalidStructure("skip must be an integer")
		}
		opts.Skip = n
	}
	if raw := values.Get(ParamSort); raw != "" {
		for _, field := range strings.Split(raw, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			dir := SortAscending
			if strings.HasPrefix(field, "-") {
				dir = SortDescending
				field = field[1:]
			}
			opts.Sort = append(opts.Sort, SortField{Field: field, Direction: dir})
		}
	}
	if raw := values.Get(ParamProjectInclude); raw != "" {
		opts.Projection.Include = splitFieldList(raw)
	}
	if raw := values.Get(ParamProjectExclude); raw != "" {
		opts.Projection.Exclude = splitFieldList(raw)
	}

	var children []Node
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	for _, key := range keys {
		if reservedParams[key] {
			continue
		}
		vals := values[key]
		if len(vals) == 0 {
			continue
		}
		children = append(children, FieldNode(key, []OpValue{{Op: OpEq, Value: vals[0]}}))
	}

	var node Node
	switch len(children) {
	case 0:
		node = CompositeNode(nil)
	case 1:
		node = children[0]
	default:
		node = CompositeNode(children)
	}

	if err := opts.Validate(); err != nil {
		return Node{}, Options{}, err
	}
	return node, opts, nil
}

// splitFieldList turns a comma-separated field list into a set, dropping
// blank entries.
func splitFieldList(raw string) map[string]bool {
	fields := strings.Split(raw, ",")
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			set[f] = true
		}
	}
	return set
}

// SequenceParam extracts the sequence cursor value, if present.
func SequenceParam(values url.Values) (string, bool) {
	v := values.Get(ParamSequence)
	return v, v != ""
}

// BulkSizeParam extracts the bulkSize value, if present, defaulting via the
// caller-supplied fallback when absent or invalid.
func BulkSizeParam(values url.Values, fallback int) int {
	raw := values.Get(ParamBulkSize)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
