package dispatch

import (
	"net/url"
	"testing"

	"github.com/lattice-data/gateway/domain/registry"
)

func writeEndpoint() *registry.EndpointDescriptor {
	return &registry.EndpointDescriptor{
		WriteMethods: map[string]bool{"POST": true, "PUT": true, "DELETE": true},
	}
}

func TestParseQueryRequestEmptyIsFullCollection(t *testing.T) {
	req, err := ParseQueryRequest(nil, url.Values{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Kind != FullCollection {
		t.Fatalf("expected FullCollection, got %v", req.Kind)
	}
}

func TestParseQueryRequestBodyTakesPrecedence(t *testing.T) {
	req, err := ParseQueryRequest([]byte(`{"status":"active"}`), url.Values{"status": {"ignored"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Kind != Filtered {
		t.Fatalf("expected Filtered, got %v", req.Kind)
	}
}

func TestParseQueryRequestSequenceParam(t *testing.T) {
	values := url.Values{"sequence": {"42"}, "bulkSize": {"10"}}
	req, err := ParseQueryRequest(nil, values)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Kind != SequenceBased {
		t.Fatalf("expected SequenceBased, got %v", req.Kind)
	}
	if req.After != 42 || req.BulkSize != 10 {
		t.Fatalf("expected after=42 bulkSize=10, got after=%d bulkSize=%d", req.After, req.BulkSize)
	}
}

func TestParseQueryRequestNonReservedParamsBecomeFilter(t *testing.T) {
	values := url.Values{"status": {"active"}, "limit": {"5"}}
	req, err := ParseQueryRequest(nil, values)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Kind != Filtered {
		t.Fatalf("expected Filtered, got %v", req.Kind)
	}
	if req.Options.Limit != 5 {
		t.Fatalf("expected limit 5, got %d", req.Options.Limit)
	}
}

func TestParseQueryRequestProjectionParamsBecomeOptions(t *testing.T) {
	values := url.Values{"status": {"active"}, "projectInclude": {"name"}, "projectExclude": {"ssn"}}
	req, err := ParseQueryRequest(nil, values)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Kind != Filtered {
		t.Fatalf("expected Filtered, got %v", req.Kind)
	}
	if !req.Options.Projection.Include["name"] || !req.Options.Projection.Exclude["ssn"] {
		t.Fatalf("expected projection populated, got %+v", req.Options.Projection)
	}
}

func TestParseQueryRequestBodyFilterWithProjectionParams(t *testing.T) {
	values := url.Values{"projectInclude": {"name"}}
	req, err := ParseQueryRequest([]byte(`{"status":"active"}`), values)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !req.Options.Projection.Include["name"] {
		t.Fatalf("expected projection carried alongside POST-body filter, got %+v", req.Options.Projection)
	}
}

func TestParseWriteRequestCreateSingleDocument(t *testing.T) {
	req, err := ParseWriteRequest("POST", writeEndpoint(), []byte(`{"name":"a"}`), url.Values{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Kind != Create || len(req.Docs) != 1 {
		t.Fatalf("expected Create with 1 doc, got %+v", req)
	}
}

func TestParseWriteRequestCreateBatch(t *testing.T) {
	req, err := ParseWriteRequest("POST", writeEndpoint(), []byte(`[{"name":"a"},{"name":"b"}]`), url.Values{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(req.Docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(req.Docs))
	}
}

func TestParseWriteRequestCreateLeavesAuditFieldForPipeline(t *testing.T) {
	req, err := ParseWriteRequest("POST", writeEndpoint(), []byte(`{"_createdAt":"2020-01-01"}`), url.Values{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(req.Docs) != 1 || req.Docs[0]["_createdAt"] != "2020-01-01" {
		t.Fatalf("expected client-supplied audit field to pass through to the pipeline, got %+v", req.Docs)
	}
}

func TestParseWriteRequestUpdateEnvelope(t *testing.T) {
	body := []byte(`{"filter":{"status":"active"},"updates":{"status":"inactive"}}`)
	req, err := ParseWriteRequest("PUT", writeEndpoint(), body, url.Values{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Kind != Update {
		t.Fatalf("expected Update, got %v", req.Kind)
	}
	if req.Updates["status"] != "inactive" {
		t.Fatalf("expected updates decoded, got %+v", req.Updates)
	}
}

func TestParseWriteRequestUpsertViaParam(t *testing.T) {
	body := []byte(`{"filter":{"status":"active"},"updates":{"status":"inactive"}}`)
	req, err := ParseWriteRequest("PUT", writeEndpoint(), body, url.Values{"upsert": {"true"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Kind != Upsert {
		t.Fatalf("expected Upsert, got %v", req.Kind)
	}
}

func TestParseWriteRequestDeleteByIDParam(t *testing.T) {
	req, err := ParseWriteRequest("DELETE", writeEndpoint(), nil, url.Values{"_id": {"abc"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Kind != Delete {
		t.Fatalf("expected Delete, got %v", req.Kind)
	}
}

func TestParseWriteRequestDeleteByFilterBody(t *testing.T) {
	body := []byte(`{"filter":{"status":"inactive"}}`)
	req, err := ParseWriteRequest("DELETE", writeEndpoint(), body, url.Values{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Kind != Delete {
		t.Fatalf("expected Delete, got %v", req.Kind)
	}
}

func TestParseWriteRequestRejectsUnconfiguredMethod(t *testing.T) {
	endpoint := &registry.EndpointDescriptor{WriteMethods: map[string]bool{}}
	_, err := ParseWriteRequest("POST", endpoint, []byte(`{}`), url.Values{})
	if err == nil {
		t.Fatal("expected method-not-allowed error")
	}
}
