package filter

import "fmt"

// Config is the per-endpoint filter policy: which fields are filterable and
// with which operators. The primary-key field is always filterable with
// equality, regardless of what the endpoint configuration declares.
type Config struct {
	FieldOperators map[string]map[Operator]bool
	Enabled        bool
}

// PrimaryKeyField is always filterable with equality, regardless of endpoint configuration.
const PrimaryKeyField = "_id"

// NewConfig builds a Config from a field -> allowed-operator-list mapping,
// enforcing the _id/$eq invariant.
func NewConfig(fieldOperators map[string][]Operator, enabled bool) Config {
	cfg := Config{FieldOperators: make(map[string]map[Operator]bool, len(fieldOperators)+1), Enabled: enabled}
	for field, ops := range fieldOperators {
		set := make(map[Operator]bool, len(ops))
		for _, op := range ops {
			set[op] = true
		}
		cfg.FieldOperators[field] = set
	}
	if cfg.FieldOperators[PrimaryKeyField] == nil {
		cfg.FieldOperators[PrimaryKeyField] = map[Operator]bool{}
	}
	cfg.FieldOperators[PrimaryKeyField][OpEq] = true
	return cfg
}

// Filterable reports whether field may be filtered at all.
func (c Config) Filterable(field string) bool {
	_, ok := c.FieldOperators[field]
	return ok
}

// Allowed reports whether operator op is permitted on field.
func (c Config) Allowed(field string, op Operator) bool {
	ops, ok := c.FieldOperators[field]
	if !ok {
		return false
	}
	return ops[op]
}

// SortDirection is +1 (ascending) or -1 (descending).
type SortDirection int

const (
	SortAscending  SortDirection = 1
	SortDescending SortDirection = -1
)

// SortField is one entry of an ordered sort specification.
type SortField struct {
	Field     string
	Direction SortDirection
}

// Projection controls field inclusion/exclusion in query results.
// Include and Exclude are mutually exclusive per field: a field present in
// both is a validation error.
type Projection struct {
	Include map[string]bool
	Exclude map[string]bool
}

// Options mirrors the DSL's FilterOptions block: sort (ordered to preserve
// wire-level key order), limit (0 or unset = unbounded), skip, and
// projection.
type Options struct {
	Sort       []SortField
	Limit      int
	Skip       int
	Projection Projection
}

// Validate checks projection and numeric bounds invariants on the options
// block itself (field-existence is not checked here; see ValidateFields).
func (o Options) Validate() error {
	for field := range o.Projection.Include {
		if o.Projection.Exclude[field] {
			return fieldProjectionConflict(field)
		}
	}
	if o.Limit < 0 {
		return negativeLimit()
	}
	if o.Skip < 0 {
		return negativeSkip()
	}
	return nil
}

// ValidateFields checks every field named by Sort and Projection against the
// endpoint's filter policy, the same policy ordinary field filters are held
// to. Unlike Validate, this accumulates every problem rather than stopping
// at the first, matching Validate(Node, Config)'s non-fail-fast behavior.
func (o Options) ValidateFields(cfg Config) []string {
	var errs []string
	for _, sf := range o.Sort {
		if !cfg.Filterable(sf.Field) {
			errs = append(errs, fmt.Sprintf("field %q is not sortable", sf.Field))
		}
	}
	for field := range o.Projection.Include {
		if !cfg.Filterable(field) {
			errs = append(errs, fmt.Sprintf("field %q is not projectable", field))
		}
	}
	for field := range o.Projection.Exclude {
		if !cfg.Filterable(field) {
			errs = append(errs, fmt.Sprintf("field %q is not projectable", field))
		}
	}
	return errs
}
