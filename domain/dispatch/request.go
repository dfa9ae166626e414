// Package dispatch classifies an inbound HTTP request against its resolved
// endpoint descriptor into one of the read or write request shapes the
// query and write executors drive, before any filter parsing happens.
package dispatch

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/lattice-data/gateway/domain/document"
	"github.com/lattice-data/gateway/domain/filter"
	"github.com/lattice-data/gateway/domain/registry"
	svcerrors "github.com/lattice-data/gateway/infrastructure/errors"
)

// QueryKind distinguishes the three shapes a read request can take.
type QueryKind int

const (
	FullCollection QueryKind = iota
	Filtered
	SequenceBased
)

// QueryRequest is a classified read request, ready for the query executor.
type QueryRequest struct {
	Kind     QueryKind
	Node     filter.Node
	Options  filter.Options
	After    int64
	BulkSize int
}

// ParseQueryRequest classifies a read request (a GET, or a POST to an
// endpoint without write methods). A JSON body takes precedence
// over query parameters as the filter source; in its absence, a sequence
// cursor or bulk size in the query string selects sequence pagination;
// otherwise any remaining query parameters become an implicit equality
// filter, and an entirely empty query string means a full collection scan.
func ParseQueryRequest(body []byte, values url.Values) (QueryRequest, error) {
	if len(body) > 0 {
		node, err := filter.Parse(body)
		if err != nil {
			return QueryRequest{}, svcerrors.InvalidFilterStructure(err.Error())
		}
		opts, err := optionsFromValues(values)
		if err != nil {
			return QueryRequest{}, err
		}
		return QueryRequest{Kind: Filtered, Node: node, Options: opts}, nil
	}

	if raw, ok := filter.SequenceParam(values); ok {
		after, err := parseSequenceCursor(raw)
		if err != nil {
			return QueryRequest{}, svcerrors.InvalidFilterStructure(err.Error())
		}
		bulkSize := filter.BulkSizeParam(values, 0)
		return QueryRequest{Kind: SequenceBased, After: after, BulkSize: bulkSize}, nil
	}
	if values.Get(filter.ParamBulkSize) != "" {
		bulkSize := filter.BulkSizeParam(values, 0)
		return QueryRequest{Kind: SequenceBased, After: 0, BulkSize: bulkSize}, nil
	}

	if hasNonReservedParams(values) || values.Get(filter.ParamLimit) != "" || values.Get(filter.ParamSkip) != "" || values.Get(filter.ParamSort) != "" ||
		values.Get(filter.ParamProjectInclude) != "" || values.Get(filter.ParamProjectExclude) != "" {
		node, opts, err := filter.ParseQueryValues(values)
		if err != nil {
			return QueryRequest{}, svcerrors.InvalidFilterStructure(err.Error())
		}
		return QueryRequest{Kind: Filtered, Node: node, Options: opts}, nil
	}

	return QueryRequest{Kind: FullCollection}, nil
}

func hasNonReservedParams(values url.Values) bool {
	for key := range values {
		if !isReserved(key) {
			return true
		}
	}
	return false
}

func isReserved(key string) bool {
	switch key {
	case filter.ParamLimit, filter.ParamSkip, filter.ParamSort, filter.ParamSequence, filter.ParamBulkSize,
		filter.ParamProjectInclude, filter.ParamProjectExclude:
		return true
	default:
		return false
	}
}

func optionsFromValues(values url.Values) (filter.Options, error) {
	_, opts, err := filter.ParseQueryValues(url.Values{
		filter.ParamLimit:          values[filter.ParamLimit],
		filter.ParamSkip:           values[filter.ParamSkip],
		filter.ParamSort:           values[filter.ParamSort],
		filter.ParamProjectInclude: values[filter.ParamProjectInclude],
		filter.ParamProjectExclude: values[filter.ParamProjectExclude],
	})
	if err != nil {
		return filter.Options{}, svcerrors.InvalidFilterStructure(err.Error())
	}
	return opts, nil
}

func parseSequenceCursor(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	var n int64
	if _, err := fmt.Sscanf(raw, "%d", &n); err != nil {
		return 0, fmt.Errorf("sequence cursor %q is not an integer", raw)
	}
	return n, nil
}

// WriteKind distinguishes the four write operations a request can perform.
type WriteKind int

const (
	Create WriteKind = iota
	Update
	Delete
	Upsert
)

// WriteRequest is a classified write request, ready for the write executor.
type WriteRequest struct {
	Kind    WriteKind
	Docs    []document.Document
	Filter  filter.Node
	Updates document.Document
}

// writeEnvelope is the body shape for update/delete/upsert requests: a
// filter selecting the target documents plus the fields to apply.
type writeEnvelope struct {
	Filter  json.RawMessage `json:"filter"`
	Updates json.RawMessage `json:"updates"`
}

// ParseWriteRequest classifies a write request by HTTP method, consulting
// the endpoint's configured write methods and an explicit upsert query
// parameter.
func ParseWriteRequest(method string, endpoint *registry.EndpointDescriptor, body []byte, values url.Values) (WriteRequest, error) {
	method = strings.ToUpper(method)
	if !endpoint.AllowsWrite(method) {
		return WriteRequest{}, svcerrors.MethodNotAllowed(method)
	}

	upsert := strings.EqualFold(values.Get("upsert"), "true")

	switch method {
	case "POST":
		if upsert {
			return parseUpsertRequest(body)
		}
		return parseCreateRequest(body)

	case "PUT", "PATCH":
		if upsert {
			return parseUpsertRequest(body)
		}
		return parseUpdateRequest(body)

	case "DELETE":
		return parseDeleteRequest(body, values)

	default:
		return WriteRequest{}, svcerrors.MethodNotAllowed(method)
	}
}

func parseCreateRequest(body []byte) (WriteRequest, error) {
	docs, err := decodeDocs(body)
	if err != nil {
		return WriteRequest{}, err
	}
	return WriteRequest{Kind: Create, Docs: docs}, nil
}

func parseUpdateRequest(body []byte) (WriteRequest, error) {
	env, err := decodeEnvelope(body)
	if err != nil {
		return WriteRequest{}, err
	}
	node, updates, err := nodeAndUpdates(env)
	if err != nil {
		return WriteRequest{}, err
	}
	return WriteRequest{Kind: Update, Filter: node, Updates: updates}, nil
}

func parseUpsertRequest(body []byte) (WriteRequest, error) {
	env, err := decodeEnvelope(body)
	if err != nil {
		return WriteRequest{}, err
	}
	node, updates, err := nodeAndUpdates(env)
	if err != nil {
		return WriteRequest{}, err
	}
	return WriteRequest{Kind: Upsert, Filter: node, Docs: []document.Document{updates}}, nil
}

func parseDeleteRequest(body []byte, values url.Values) (WriteRequest, error) {
	if id := values.Get(document.FieldID); id != "" {
		node := filter.FieldNode(filter.PrimaryKeyField, []filter.OpValue{{Op: filter.OpEq, Value: id}})
		return WriteRequest{Kind: Delete, Filter: node}, nil
	}
	if len(body) == 0 {
		return WriteRequest{}, svcerrors.InvalidFilterStructure("delete requires a filter")
	}
	env, err := decodeEnvelope(body)
	if err != nil {
		return WriteRequest{}, err
	}
	node, err := filter.Parse(env.Filter)
	if err != nil {
		return WriteRequest{}, svcerrors.InvalidFilterStructure(err.Error())
	}
	return WriteRequest{Kind: Delete, Filter: node}, nil
}

func decodeEnvelope(body []byte) (writeEnvelope, error) {
	var env writeEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return writeEnvelope{}, svcerrors.InvalidFilterStructure(err.Error())
	}
	if len(env.Filter) == 0 {
		return writeEnvelope{}, svcerrors.InvalidFilterStructure("missing filter")
	}
	return env, nil
}

func nodeAndUpdates(env writeEnvelope) (filter.Node, document.Document, error) {
	node, err := filter.Parse(env.Filter)
	if err != nil {
		return filter.Node{}, nil, svcerrors.InvalidFilterStructure(err.Error())
	}
	updates := document.Document{}
	if len(env.Updates) > 0 {
		if err := json.Unmarshal(env.Updates, &updates); err != nil {
			return filter.Node{}, nil, svcerrors.InvalidFilterStructure(err.Error())
		}
	}
	return node, updates, nil
}

func decodeDocs(body []byte) ([]document.Document, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var docs []document.Document
		if err := json.Unmarshal(body, &docs); err != nil {
			return nil, svcerrors.InvalidFilterStructure(err.Error())
		}
		return docs, nil
	}
	var doc document.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, svcerrors.InvalidFilterStructure(err.Error())
	}
	return []document.Document{doc}, nil
}
