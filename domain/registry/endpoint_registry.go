package registry

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/lattice-data/gateway/domain/configstore"
	"github.com/lattice-data/gateway/domain/filter"
)

// EndpointsPathSegment is the well-known subtree name holding endpoint
// definitions beneath /{ENV}/{SERVICE}.
const EndpointsPathSegment = "endpoints"

// EndpointRegistry holds the active EndpointSnapshot behind an atomic
// pointer: readers always see one coherent snapshot; a rebuild swaps the
// pointer without blocking in-flight reads against the old one.
type EndpointRegistry struct {
	active atomic.Pointer[EndpointSnapshot]
}

// NewEndpointRegistry returns a registry with an empty initial snapshot.
func NewEndpointRegistry() *EndpointRegistry {
	r := &EndpointRegistry{}
	empty, _ := BuildSnapshot(nil)
	r.active.Store(empty)
	return r
}

// Snapshot returns the currently published snapshot.
func (r *EndpointRegistry) Snapshot() *EndpointSnapshot {
	return r.active.Load()
}

// Find resolves (method, relativePath) against the currently published
// snapshot.
func (r *EndpointRegistry) Find(method, relativePath string) (*EndpointDescriptor, bool) {
	return r.Snapshot().Find(method, relativePath)
}

// Rebuild reads the endpoints subtree beneath root out of cache, builds a
// fresh snapshot, and atomically publishes it. The previous snapshot
// remains valid for any reader that already holds it.
func (r *EndpointRegistry) Rebuild(cache *configstore.Cache, root string) error {
	endpointsRoot := strings.TrimSuffix(root, "/") + "/" + EndpointsPathSegment
	names := cache.Children(endpointsRoot)

	sources := make([]EndpointSource, 0, len(names))
	for _, name := range names {
		src, err := readEndpointSource(cache, endpointsRoot, name)
		if err != nil {
			return fmt.Errorf("registry: reading endpoint %q: %w", name, err)
		}
		sources = append(sources, src)
	}

	snapshot, err := BuildSnapshot(sources)
	if err != nil {
		return err
	}
	r.active.Store(snapshot)
	return nil
}

func readEndpointSource(cache *configstore.Cache, endpointsRoot, name string) (EndpointSource, error) {
	base := endpointsRoot + "/" + name

	src := EndpointSource{
		Name:            name,
		Path:            cache.GetStringDefault(base+"/path", ""),
		Method:          cache.GetStringDefault(base+"/method", ""),
		Collection:      cache.GetStringDefault(base+"/collection", ""),
		Type:            cache.GetStringDefault(base+"/type", string(KindREST)),
		SequenceEnabled: cache.GetBoolDefault(base+"/sequenceEnabled", false),
		DefaultBulkSize: cache.GetIntDefault(base+"/defaultBulkSize", 100),
		WriteMethods:    cache.GetCSV(base + "/writeMethods"),
		SubEntityFields: cache.GetCSV(base + "/subEntityFields"),
		SchemaName:      cache.GetStringDefault(base+"/schemaName", ""),
		NestedDocument:  cache.GetBoolDefault(base+"/nestedDocument", false),
	}

	src.FilterConfig = readFilterConfig(cache, base+"/filterConfig")
	return src, nil
}

// readFilterConfig builds a filter.Config from the filterConfig subtree:
// one child per filterable field, each holding a comma-separated operator
// list leaf named "operators".
func readFilterConfig(cache *configstore.Cache, base string) filter.Config {
	fieldOperators := make(map[string][]filter.Operator)
	for _, field := range cache.Children(base) {
		raw := cache.GetCSV(base + "/" + field + "/operators")
		ops := make([]filter.Operator, 0, len(raw))
		for _, r := range raw {
			if spec, ok := filter.LookupOperator(r); ok {
				ops = append(ops, spec.Operator)
			}
		}
		fieldOperators[field] = ops
	}
	enabled := cache.GetBoolDefault(base+"/enabled", true)
	return filter.NewConfig(fieldOperators, enabled)
}

// IsEndpointsPath reports whether path falls under an endpoints subtree for
// some /{ENV}/{SERVICE} root, i.e. it contains an "/endpoints" segment.
func IsEndpointsPath(path string) bool {
	return strings.Contains(path, "/"+EndpointsPathSegment+"/") || strings.HasSuffix(path, "/"+EndpointsPathSegment)
}

// ParseBulkSize parses a raw defaultBulkSize leaf, defaulting on error.
func ParseBulkSize(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return n
}
