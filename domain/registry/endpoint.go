// Package registry holds the three read-mostly registries the request path
// resolves against: endpoints (routing table), schemas (JSON Schema plus
// enum augmentation), and enums (code -> literal lookups). Each is rebuilt
// from a configuration subtree and published as an immutable snapshot so a
// single request sees one coherent view for its entire lifetime.
package registry

import (
	"fmt"
	"strings"

	svcerrors "github.com/lattice-data/gateway/infrastructure/errors"
	"github.com/lattice-data/gateway/domain/filter"
)

// EndpointKind distinguishes the transport surface an endpoint is exposed
// over.
type EndpointKind string

const (
	KindREST    EndpointKind = "REST"
	KindGraphQL EndpointKind = "GRAPHQL"
)

const defaultBulkSizeCeiling = 10000

// EndpointDescriptor is immutable once built; it never changes after being
// placed in a snapshot.
type EndpointDescriptor struct {
	Name            string
	Path            string
	Method          string
	Collection      string
	Kind            EndpointKind
	SequenceEnabled bool
	DefaultBulkSize int
	WriteMethods    map[string]bool
	FilterConfig    filter.Config
	SubEntityFields map[string]bool
	SchemaName      string
	NestedDocument  bool
}

// CacheKey is the lookup key for this descriptor: UPPER(method) + ":" + path.
func (d EndpointDescriptor) CacheKey() string {
	return cacheKey(d.Method, d.Path)
}

// AllowsWrite reports whether method is a configured write method for this
// endpoint.
func (d EndpointDescriptor) AllowsWrite(method string) bool {
	return d.WriteMethods[strings.ToUpper(method)]
}

func cacheKey(method, path string) string {
	return strings.ToUpper(method) + ":" + path
}

// EndpointSource is one endpoint's raw leaves as read from the config tree,
// in the shape the builder expects after a subtree scan.
type EndpointSource struct {
	Name            string
	Path            string
	Method          string
	Collection      string
	Type            string
	SequenceEnabled bool
	DefaultBulkSize int
	WriteMethods    []string
	SubEntityFields []string
	SchemaName      string
	NestedDocument  bool
	FilterConfig    filter.Config
}

// EndpointSnapshot is an immutable, point-in-time view of the routing
// table. Readers hold a snapshot for the duration of a single request.
type EndpointSnapshot struct {
	byKey map[string]*EndpointDescriptor
}

// Find performs an exact (method, path) lookup. Matching is exact on the
// relative path; there is no parameterised routing.
func (s *EndpointSnapshot) Find(method, relativePath string) (*EndpointDescriptor, bool) {
	if s == nil {
		return nil, false
	}
	d, ok := s.byKey[cacheKey(method, relativePath)]
	return d, ok
}

// Size reports how many descriptors the snapshot holds.
func (s *EndpointSnapshot) Size() int {
	if s == nil {
		return 0
	}
	return len(s.byKey)
}

// BuildSnapshot builds a new snapshot in one pass from a set of endpoint
// sources. A duplicate (method, path) across two sources is rejected at
// build time rather than silently shadowed.
func BuildSnapshot(sources []EndpointSource) (*EndpointSnapshot, error) {
	byKey := make(map[string]*EndpointDescriptor, len(sources))
	for _, src := range sources {
		desc, err := buildDescriptor(src)
		if err != nil {
			return nil, fmt.Errorf("registry: endpoint %q: %w", src.Name, err)
		}
		key := desc.CacheKey()
		if _, dup := byKey[key]; dup {
			return nil, fmt.Errorf("registry: duplicate endpoint for %s", key)
		}
		byKey[key] = desc
	}
	return &EndpointSnapshot{byKey: byKey}, nil
}

func buildDescriptor(src EndpointSource) (*EndpointDescriptor, error) {
	if src.Path == "" {
		return nil, fmt.Errorf("missing path")
	}
	if src.Method == "" {
		return nil, fmt.Errorf("missing method")
	}
	if src.Collection == "" {
		return nil, fmt.Errorf("missing collection")
	}

	kind := KindREST
	if strings.EqualFold(src.Type, string(KindGraphQL)) {
		kind = KindGraphQL
	}

	bulkSize := src.DefaultBulkSize
	if bulkSize <= 0 {
		bulkSize = 100
	}
	if bulkSize > defaultBulkSizeCeiling {
		return nil, fmt.Errorf("defaultBulkSize %d exceeds ceiling %d", bulkSize, defaultBulkSizeCeiling)
	}

	writeMethods := make(map[string]bool, len(src.WriteMethods))
	for _, m := range src.WriteMethods {
		m = strings.ToUpper(strings.TrimSpace(m))
		switch m {
		case "POST", "PUT", "PATCH", "DELETE":
			writeMethods[m] = true
		case "":
			continue
		default:
			return nil, fmt.Errorf("writeMethods: %q is not a permitted write method", m)
		}
	}

	subEntity := make(map[string]bool, len(src.SubEntityFields))
	for _, f := range src.SubEntityFields {
		f = strings.TrimSpace(f)
		if f != "" {
			subEntity[f] = true
		}
	}

	return &EndpointDescriptor{
		Name:            src.Name,
		Path:            src.Path,
		Method:          strings.ToUpper(src.Method),
		Collection:      src.Collection,
		Kind:            kind,
		SequenceEnabled: src.SequenceEnabled,
		DefaultBulkSize: bulkSize,
		WriteMethods:    writeMethods,
		FilterConfig:    src.FilterConfig,
		SubEntityFields: subEntity,
		SchemaName:      src.SchemaName,
		NestedDocument:  src.NestedDocument,
	}, nil
}

// EnvironmentMismatch builds the error for a request whose declared
// environment header differs from this deployment's environment; it does no
// comparison itself. Kept here since it guards the same routing boundary as
// endpoint resolution.
func EnvironmentMismatch(want, got string) error {
	return svcerrors.EnvironmentMismatch(want, got)
}
