package configstore

import (
	"testing"
	"time"
)

func TestCacheSetGet(t *testing.T) {
	c := NewCache()
	c.Set("/prod/gateway/Globals/IsEnvValidate", []byte("true"))
	v, ok := c.GetString("/prod/gateway/Globals/IsEnvValidate")
	if !ok || v != "true" {
		t.Fatalf("unexpected get result: %q, %v", v, ok)
	}
}

func TestCacheMissingPathIsAbsent(t *testing.T) {
	c := NewCache()
	if _, ok := c.Get("/nope"); ok {
		t.Fatal("expected absent value")
	}
}

func TestCacheGetBoolDefault(t *testing.T) {
	c := NewCache()
	if got := c.GetBoolDefault("/missing", true); !got {
		t.Fatal("expected default true")
	}
	c.Set("/flag", []byte("false"))
	if got := c.GetBoolDefault("/flag", true); got {
		t.Fatal("expected stored false to override default")
	}
}

func TestCacheGetIntDefaultAndDuration(t *testing.T) {
	c := NewCache()
	if got := c.GetIntDefault("/missing", 300); got != 300 {
		t.Fatalf("expected default 300, got %d", got)
	}
	c.Set("/refresh", []byte("120"))
	if got := c.GetDurationSeconds("/refresh", time.Second); got != 120*time.Second {
		t.Fatalf("expected 120s, got %v", got)
	}
}

func TestCacheGetCSV(t *testing.T) {
	c := NewCache()
	c.Set("/list", []byte("POST, PUT , DELETE"))
	got := c.GetCSV("/list")
	want := []string{"POST", "PUT", "DELETE"}
	if len(got) != len(want) {
		t.Fatalf("unexpected CSV split: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected CSV split: %v", got)
		}
	}
}

func TestCacheChildren(t *testing.T) {
	c := NewCache()
	c.Set("/prod/gateway/endpoints/users/path", []byte("/users"))
	c.Set("/prod/gateway/endpoints/users/method", []byte("GET"))
	c.Set("/prod/gateway/endpoints/orders/path", []byte("/orders"))

	got := c.Children("/prod/gateway/endpoints")
	if len(got) != 2 {
		t.Fatalf("expected 2 children, got %v", got)
	}
}

func TestCacheSubtreeAndReplace(t *testing.T) {
	c := NewCache()
	c.Set("/a/x", []byte("1"))
	c.Set("/a/y", []byte("2"))
	c.Set("/b/z", []byte("3"))

	sub := c.Subtree("/a")
	if len(sub) != 2 {
		t.Fatalf("expected 2 entries under /a, got %d", len(sub))
	}

	c.ReplaceSubtree("/a", map[string][]byte{"/a/x": []byte("10")})
	if _, ok := c.Get("/a/y"); ok {
		t.Fatal("expected /a/y removed after replace")
	}
	if v, _ := c.GetString("/a/x"); v != "10" {
		t.Fatalf("expected updated value, got %q", v)
	}
	if _, ok := c.Get("/b/z"); !ok {
		t.Fatal("expected /b/z untouched by unrelated subtree replace")
	}
}
