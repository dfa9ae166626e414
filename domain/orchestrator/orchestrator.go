// Package orchestrator runs the top-level request flow: classify the
// request via dispatch, execute it against the query or write executor,
// post-process reads with enum literal expansion, and shape the outcome
// into a response. It never panics or propagates an error to the caller;
// every path returns a complete Outcome.
package orchestrator

import (
	"context"
	"net/http"
	"net/url"

	"github.com/lattice-data/gateway/domain/dispatch"
	"github.com/lattice-data/gateway/domain/query"
	"github.com/lattice-data/gateway/domain/registry"
	"github.com/lattice-data/gateway/domain/response"
	"github.com/lattice-data/gateway/domain/write"
	svcerrors "github.com/lattice-data/gateway/infrastructure/errors"
)

// Orchestrator wires the registries and executors every request is run
// against.
type Orchestrator struct {
	Endpoints *registry.EndpointRegistry
	Schemas   *registry.SchemaRegistry
	Enums     *registry.EnumRegistry
	Query     *query.Executor
	Write     *write.Executor
}

// New wires an Orchestrator from its collaborators.
func New(endpoints *registry.EndpointRegistry, schemas *registry.SchemaRegistry, enums *registry.EnumRegistry, q *query.Executor, w *write.Executor) *Orchestrator {
	return &Orchestrator{Endpoints: endpoints, Schemas: schemas, Enums: enums, Query: q, Write: w}
}

// Outcome is the fully-shaped result of one request: a status code and a
// JSON-serialisable body, ready for the transport layer to write.
type Outcome struct {
	Status int
	Body   interface{}
}

func errorOutcome(err error) Outcome {
	return Outcome{Status: response.ErrorStatus(err), Body: response.NewErrorResponse(err)}
}

func validationOutcome(details []string) Outcome {
	return Outcome{
		Status: response.StatusForValidationErrors,
		Body:   response.NewValidationErrorResponse("Filter validation failed", details),
	}
}

// Resolve looks up the endpoint for (method, relativePath), returning a
// ready-made not-found Outcome when absent.
func (o *Orchestrator) Resolve(method, relativePath string) (*registry.EndpointDescriptor, *Outcome) {
	endpoint, ok := o.Endpoints.Snapshot().Find(method, relativePath)
	if !ok {
		outcome := errorOutcome(svcerrors.EndpointNotFound(method, relativePath))
		return nil, &outcome
	}
	return endpoint, nil
}

// ExecuteQuery runs a read request end to end: parse, execute, post-process.
func (o *Orchestrator) ExecuteQuery(ctx context.Context, endpoint *registry.EndpointDescriptor, body []byte, values url.Values) Outcome {
	req, err := dispatch.ParseQueryRequest(body, values)
	if err != nil {
		return errorOutcome(err)
	}

	var result query.Result
	var errs []string
	switch req.Kind {
	case dispatch.FullCollection:
		r, err := o.Query.RunFullCollection(ctx, endpoint)
		if err != nil {
			return errorOutcome(err)
		}
		result = r

	case dispatch.Filtered:
		r, e := o.Query.RunFiltered(ctx, endpoint, req.Node, req.Options)
		if len(e) > 0 {
			errs = e
			break
		}
		result = r

	case dispatch.SequenceBased:
		r, err := o.Query.RunSequence(ctx, endpoint, req.After, req.BulkSize)
		if err != nil {
			return errorOutcome(err)
		}
		result = r

	default:
		return errorOutcome(svcerrors.Internal("unrecognised query request kind", nil))
	}

	if len(errs) > 0 {
		return validationOutcome(errs)
	}

	o.applyEnumBindings(endpoint, result)

	if req.Kind == dispatch.SequenceBased {
		return Outcome{Status: http.StatusOK, Body: response.SequenceResponse{
			NextSequence: result.NextSequence,
			Data:         result.Documents,
			HasMore:      result.HasMore,
		}}
	}
	return Outcome{Status: http.StatusOK, Body: response.DocumentListResponse{Data: result.Documents}}
}

func (o *Orchestrator) applyEnumBindings(endpoint *registry.EndpointDescriptor, result query.Result) {
	if o.Schemas == nil || endpoint.SchemaName == "" {
		return
	}
	schema, ok := o.Schemas.Get(endpoint.SchemaName)
	if !ok || len(schema.Bindings) == 0 {
		return
	}
	for _, doc := range result.Documents {
		registry.ApplyEnumBindings(doc, schema.Bindings, o.Enums)
	}
}

// ExecuteWrite runs a write request end to end: parse, execute, shape.
func (o *Orchestrator) ExecuteWrite(ctx context.Context, endpoint *registry.EndpointDescriptor, method string, body []byte, values url.Values, requestID string) Outcome {
	req, err := dispatch.ParseWriteRequest(method, endpoint, body, values)
	if err != nil {
		return errorOutcome(err)
	}

	switch req.Kind {
	case dispatch.Create:
		result, err := o.Write.Create(ctx, endpoint, req.Docs, requestID)
		if err != nil {
			return errorOutcome(err)
		}
		resp := response.NewCreateResponse(result.InsertedIDs)
		return Outcome{Status: response.CreatedStatus(result.InsertedCount), Body: resp}

	case dispatch.Update:
		result, errs := o.Write.Update(ctx, endpoint, req.Filter, req.Updates, requestID)
		if len(errs) > 0 {
			return validationOutcome(errs)
		}
		return Outcome{Status: http.StatusOK, Body: response.NewUpdateResponse(result.MatchedCount, result.ModifiedCount)}

	case dispatch.Delete:
		result, errs := o.Write.Delete(ctx, endpoint, req.Filter)
		if len(errs) > 0 {
			return validationOutcome(errs)
		}
		return Outcome{Status: http.StatusOK, Body: response.NewDeleteResponse(result.DeletedCount)}

	case dispatch.Upsert:
		var doc = req.Docs[0]
		result, errs := o.Write.Upsert(ctx, endpoint, req.Filter, doc, requestID)
		if len(errs) > 0 {
			return validationOutcome(errs)
		}
		resp := response.NewUpsertResponse(result.WasInserted, result.DocumentID, result.MatchedCount, result.ModifiedCount)
		return Outcome{Status: response.UpsertStatus(result.WasInserted), Body: resp}

	default:
		return errorOutcome(svcerrors.Internal("unrecognised write request kind", nil))
	}
}
