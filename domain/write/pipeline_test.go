package write

import (
	"context"
	"testing"
	"time"

	"github.com/lattice-data/gateway/domain/document"
	"github.com/lattice-data/gateway/domain/registry"
)

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func TestPrepareCreateStripsAndInjectsAuditFields(t *testing.T) {
	p := NewPipeline(nil)
	p.Now = fixedClock(time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC))

	endpoint := &registry.EndpointDescriptor{}
	doc := document.Document{
		document.FieldCreatedAt: "1970-01-01T00:00:00Z",
		"item":                  "x",
	}
	out, err := p.PrepareCreate(context.Background(), endpoint, doc, "req-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[document.FieldCreatedAt] == "1970-01-01T00:00:00Z" {
		t.Fatal("expected client-supplied _createdAt to be overwritten")
	}
	if out[document.FieldLastRequestID] != "req-1" {
		t.Fatalf("expected request id stamped, got %v", out[document.FieldLastRequestID])
	}
	if out["item"] != "x" {
		t.Fatalf("expected item field preserved, got %v", out["item"])
	}
}

func TestPrepareCreateSubEntityPreInsert(t *testing.T) {
	p := NewPipeline(nil)
	endpoint := &registry.EndpointDescriptor{SubEntityFields: map[string]bool{"items": true}}
	doc := document.Document{
		"items": []interface{}{map[string]interface{}{"name": "widget"}},
	}
	out, err := p.PrepareCreate(context.Background(), endpoint, doc, "req-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items := out["items"].([]interface{})
	entry := items[0].(map[string]interface{})
	if entry["myId"] == nil || entry["myId"] == "" {
		t.Fatal("expected myId assigned during pre-insert")
	}
}

func TestPrepareUpdatePreservesCreatedAt(t *testing.T) {
	p := NewPipeline(nil)
	p.Now = fixedClock(time.Date(2026, 7, 30, 1, 0, 0, 0, time.UTC))
	endpoint := &registry.EndpointDescriptor{}

	current := document.Document{
		document.FieldCreatedAt: "2020-01-01T00:00:00Z",
		"name":                  "old",
	}
	updates := document.Document{
		document.FieldCreatedAt: "malicious",
		"name":                  "new",
	}
	out, err := p.PrepareUpdate(context.Background(), endpoint, current, updates, "req-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[document.FieldCreatedAt] != "2020-01-01T00:00:00Z" {
		t.Fatalf("expected preserved _createdAt, got %v", out[document.FieldCreatedAt])
	}
	if out["name"] != "new" {
		t.Fatalf("expected updated name, got %v", out["name"])
	}
	if out[document.FieldLastRequestID] != "req-2" {
		t.Fatalf("expected request id stamped, got %v", out[document.FieldLastRequestID])
	}
}
