package registry

import (
	"testing"

	"github.com/lattice-data/gateway/domain/configstore"
)

func TestRegistryRebuildAndPublish(t *testing.T) {
	cache := configstore.NewCache()
	cache.Set("/prod/gateway/endpoints/users/path", []byte("/users"))
	cache.Set("/prod/gateway/endpoints/users/method", []byte("GET"))
	cache.Set("/prod/gateway/endpoints/users/collection", []byte("users"))
	cache.Set("/prod/gateway/endpoints/users/filterConfig/status/operators", []byte("$eq,$in"))

	reg := NewEndpointRegistry()
	if reg.Snapshot().Size() != 0 {
		t.Fatal("expected empty initial snapshot")
	}

	if err := reg.Rebuild(cache, "/prod/gateway"); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	d, ok := reg.Find("GET", "/users")
	if !ok {
		t.Fatal("expected users endpoint to resolve")
	}
	if !d.FilterConfig.Filterable("status") {
		t.Fatal("expected status field to be filterable from filterConfig subtree")
	}
	if !d.FilterConfig.Filterable("_id") {
		t.Fatal("expected _id to always be filterable")
	}
}

func TestRegistryOldSnapshotSurvivesRebuild(t *testing.T) {
	cache := configstore.NewCache()
	cache.Set("/prod/gateway/endpoints/a/path", []byte("/a"))
	cache.Set("/prod/gateway/endpoints/a/method", []byte("GET"))
	cache.Set("/prod/gateway/endpoints/a/collection", []byte("a"))

	reg := NewEndpointRegistry()
	if err := reg.Rebuild(cache, "/prod/gateway"); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	held := reg.Snapshot()

	cache.Delete("/prod/gateway/endpoints/a/path")
	cache.Delete("/prod/gateway/endpoints/a/method")
	cache.Delete("/prod/gateway/endpoints/a/collection")
	cache.Set("/prod/gateway/endpoints/b/path", []byte("/b"))
	cache.Set("/prod/gateway/endpoints/b/method", []byte("GET"))
	cache.Set("/prod/gateway/endpoints/b/collection", []byte("b"))
	if err := reg.Rebuild(cache, "/prod/gateway"); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	if _, ok := held.Find("GET", "/a"); !ok {
		t.Fatal("expected a held-onto old snapshot to still resolve /a")
	}
	if _, ok := reg.Find("GET", "/a"); ok {
		t.Fatal("expected the current snapshot to no longer resolve /a")
	}
	if _, ok := reg.Find("GET", "/b"); !ok {
		t.Fatal("expected the current snapshot to resolve /b")
	}
}

func TestIsEndpointsPath(t *testing.T) {
	if !IsEndpointsPath("/prod/gateway/endpoints/users/path") {
		t.Fatal("expected path under endpoints to match")
	}
	if IsEndpointsPath("/prod/gateway/Globals/IsEnvValidate") {
		t.Fatal("expected unrelated path to not match")
	}
}
