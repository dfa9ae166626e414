package write

import (
	"context"

	"github.com/lattice-data/gateway/domain/document"
	"github.com/lattice-data/gateway/domain/filter"
	"github.com/lattice-data/gateway/domain/registry"
	"github.com/lattice-data/gateway/domain/store"
	svcerrors "github.com/lattice-data/gateway/infrastructure/errors"
)

// Executor drives the write pipeline against a backend Store: it prepares
// documents via the Pipeline, then persists the result.
type Executor struct {
	Store    store.Store
	Pipeline *Pipeline
}

// NewExecutor wires an Executor against a backend Store and Pipeline.
func NewExecutor(s store.Store, p *Pipeline) *Executor {
	return &Executor{Store: s, Pipeline: p}
}

// CreateResult reports the outcome of a create.
type CreateResult struct {
	InsertedIDs   []string
	InsertedCount int
}

// Create prepares and inserts one or more documents.
func (e *Executor) Create(ctx context.Context, endpoint *registry.EndpointDescriptor, docs []document.Document, requestID string) (CreateResult, error) {
	prepared := make([]document.Document, 0, len(docs))
	for _, doc := range docs {
		effective, err := e.Pipeline.PrepareCreate(ctx, endpoint, doc, requestID)
		if err != nil {
			return CreateResult{}, err
		}
		prepared = append(prepared, effective)
	}
	ids, err := e.Store.Insert(ctx, endpoint.Collection, prepared)
	if err != nil {
		return CreateResult{}, svcerrors.BackendUnavailable("insert", err)
	}
	return CreateResult{InsertedIDs: ids, InsertedCount: len(ids)}, nil
}

// UpdateResult reports the outcome of a filtered update.
type UpdateResult struct {
	MatchedCount  int
	ModifiedCount int
}

// Update applies updates to every document matching node, merging sub-
// entities and re-validating each effective document before replacing it.
func (e *Executor) Update(ctx context.Context, endpoint *registry.EndpointDescriptor, node filter.Node, updates document.Document, requestID string) (UpdateResult, []string) {
	if errs := filter.Validate(node, endpoint.FilterConfig); len(errs) > 0 {
		return UpdateResult{}, errs
	}
	pred, err := filter.Translate(node, store.DocumentColumn, store.IDColumn, 1)
	if err != nil {
		return UpdateResult{}, []string{err.Error()}
	}
	matches, err := e.Store.Find(ctx, endpoint.Collection, pred, filter.Options{})
	if err != nil {
		return UpdateResult{}, []string{svcerrors.BackendUnavailable("find", err).Error()}
	}

	modified := 0
	for _, current := range matches {
		id, _ := current[document.FieldID].(string)
		effective, err := e.Pipeline.PrepareUpdate(ctx, endpoint, current, updates, requestID)
		if err != nil {
			return UpdateResult{}, []string{err.Error()}
		}
		if err := e.Store.ReplaceByID(ctx, endpoint.Collection, id, effective); err != nil {
			return UpdateResult{}, []string{svcerrors.BackendUnavailable("replace", err).Error()}
		}
		modified++
	}
	return UpdateResult{MatchedCount: len(matches), ModifiedCount: modified}, nil
}

// DeleteResult reports the outcome of a filtered delete.
type DeleteResult struct {
	DeletedCount int
}

// Delete hard-deletes every document matching node.
func (e *Executor) Delete(ctx context.Context, endpoint *registry.EndpointDescriptor, node filter.Node) (DeleteResult, []string) {
	if errs := filter.Validate(node, endpoint.FilterConfig); len(errs) > 0 {
		return DeleteResult{}, errs
	}
	pred, err := filter.Translate(node, store.DocumentColumn, store.IDColumn, 1)
	if err != nil {
		return DeleteResult{}, []string{err.Error()}
	}
	n, err := e.Store.DeleteMatching(ctx, endpoint.Collection, pred)
	if err != nil {
		return DeleteResult{}, []string{svcerrors.BackendUnavailable("delete", err).Error()}
	}
	return DeleteResult{DeletedCount: n}, nil
}

// UpsertResult reports whether the matching document was inserted fresh or
// merged into an existing one.
type UpsertResult struct {
	WasInserted   bool
	DocumentID    string
	MatchedCount  int
	ModifiedCount int
}

// Upsert replaces the document matching node if one exists, otherwise
// creates doc as a new document.
func (e *Executor) Upsert(ctx context.Context, endpoint *registry.EndpointDescriptor, node filter.Node, doc document.Document, requestID string) (UpsertResult, []string) {
	if errs := filter.Validate(node, endpoint.FilterConfig); len(errs) > 0 {
		return UpsertResult{}, errs
	}
	pred, err := filter.Translate(node, store.DocumentColumn, store.IDColumn, 1)
	if err != nil {
		return UpsertResult{}, []string{err.Error()}
	}
	current, found, err := e.Store.FindOne(ctx, endpoint.Collection, pred)
	if err != nil {
		return UpsertResult{}, []string{svcerrors.BackendUnavailable("find", err).Error()}
	}

	if !found {
		result, err := e.Create(ctx, endpoint, []document.Document{doc}, requestID)
		if err != nil {
			return UpsertResult{}, []string{err.Error()}
		}
		id := ""
		if len(result.InsertedIDs) > 0 {
			id = result.InsertedIDs[0]
		}
		return UpsertResult{WasInserted: true, DocumentID: id}, nil
	}

	id, _ := current[document.FieldID].(string)
	effective, err := e.Pipeline.PrepareUpdate(ctx, endpoint, current, doc, requestID)
	if err != nil {
		return UpsertResult{}, []string{err.Error()}
	}
	if err := e.Store.ReplaceByID(ctx, endpoint.Collection, id, effective); err != nil {
		return UpsertResult{}, []string{svcerrors.BackendUnavailable("replace", err).Error()}
	}
	return UpsertResult{WasInserted: false, DocumentID: id, MatchedCount: 1, ModifiedCount: 1}, nil
}
