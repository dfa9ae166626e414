// Package configstore implements the configuration-store client and cache:
// a canonical-path key/value view over a hierarchical configuration tree,
// kept current by watching change events and exposing typed reads to the
// endpoint, schema, and enum registries.
package configstore

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// Cache is a concurrent path -> raw bytes map. Paths are canonical absolute
// strings ("/" + env + "/" + service + ...). A missing path yields an absent
// value; callers apply their own defaults.
type Cache struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{data: make(map[string][]byte)}
}

// Set stores raw bytes for path, overwriting any previous value.
func (c *Cache) Set(path string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[path] = value
}

// Delete removes path from the cache.
func (c *Cache) Delete(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, path)
}

// Get returns the raw bytes stored for path, if any.
func (c *Cache) Get(path string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[path]
	return v, ok
}

// GetString returns the UTF-8 string stored at path.
func (c *Cache) GetString(path string) (string, bool) {
	v, ok := c.Get(path)
	if !ok {
		return "", false
	}
	return string(v), true
}

// GetStringDefault returns the string at path or def if absent.
func (c *Cache) GetStringDefault(path, def string) string {
	if v, ok := c.GetString(path); ok {
		return v
	}
	return def
}

// GetBool parses the value at path as a bool.
func (c *Cache) GetBool(path string) (bool, bool) {
	v, ok := c.GetString(path)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, false
	}
	return b, true
}

// GetBoolDefault returns the bool at path or def if absent/unparseable.
func (c *Cache) GetBoolDefault(path string, def bool) bool {
	if b, ok := c.GetBool(path); ok {
		return b
	}
	return def
}

// GetInt parses the value at path as an int.
func (c *Cache) GetInt(path string) (int, bool) {
	v, ok := c.GetString(path)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

// GetIntDefault returns the int at path or def if absent/unparseable.
func (c *Cache) GetIntDefault(path string, def int) int {
	if n, ok := c.GetInt(path); ok {
		return n
	}
	return def
}

// GetDurationSeconds interprets the stored integer as a count of seconds.
func (c *Cache) GetDurationSeconds(path string, def time.Duration) time.Duration {
	if n, ok := c.GetInt(path); ok {
		return time.Duration(n) * time.Second
	}
	return def
}

// GetCSV splits a comma-separated value at path into a trimmed string slice.
func (c *Cache) GetCSV(path string) []string {
	v, ok := c.GetString(path)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Children returns the immediate child path segments beneath prefix (e.g.
// Children("/prod/gateway/endpoints") returns endpoint names, not full
// paths), deduplicated.
func (c *Cache) Children(prefix string) []string {
	prefix = strings.TrimSuffix(prefix, "/") + "/"
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for path := range c.data {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		rest := strings.TrimPrefix(path, prefix)
		if idx := strings.Index(rest, "/"); idx >= 0 {
			rest = rest[:idx]
		}
		if rest == "" || seen[rest] {
			continue
		}
		seen[rest] = true
		out = append(out, rest)
	}
	return out
}

// Subtree returns every path beneath (and including) prefix, as a path ->
// bytes map snapshot.
func (c *Cache) Subtree(prefix string) map[string][]byte {
	prefix = strings.TrimSuffix(prefix, "/")
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string][]byte)
	for path, v := range c.data {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			cp := make([]byte, len(v))
			copy(cp, v)
			out[path] = cp
		}
	}
	return out
}

// ReplaceSubtree atomically swaps every path beneath prefix with tree,
// removing any path under prefix not present in tree.
func (c *Cache) ReplaceSubtree(prefix string, tree map[string][]byte) {
	prefix = strings.TrimSuffix(prefix, "/")
	c.mu.Lock()
	defer c.mu.Unlock()
	for path := range c.data {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			if _, keep := tree[path]; !keep {
				delete(c.data, path)
			}
		}
	}
	for path, v := range tree {
		c.data[path] = v
	}
}
