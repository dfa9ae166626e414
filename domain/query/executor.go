// Package query implements the query executor: it applies a translated
// filter predicate to a backend collection and assembles the paginated or
// sequence-based result the response builder renders.
package query

import (
	"context"
	"fmt"

	"github.com/lattice-data/gateway/domain/document"
	"github.com/lattice-data/gateway/domain/filter"
	"github.com/lattice-data/gateway/domain/registry"
	"github.com/lattice-data/gateway/domain/store"
	svcerrors "github.com/lattice-data/gateway/infrastructure/errors"
)

// Executor runs read queries against a Store for a resolved endpoint.
type Executor struct {
	Store store.Store
}

// NewExecutor wires an Executor against a backend Store.
func NewExecutor(s store.Store) *Executor {
	return &Executor{Store: s}
}

// Result is the raw outcome of a query, before response shaping.
type Result struct {
	Documents    []document.Document
	NextSequence string
	HasMore      bool
}

// RunFiltered validates and translates node/opts against the endpoint's
// filter policy, then executes the resulting predicate.
func (e *Executor) RunFiltered(ctx context.Context, endpoint *registry.EndpointDescriptor, node filter.Node, opts filter.Options) (Result, []string) {
	if errs := filter.Validate(node, endpoint.FilterConfig); len(errs) > 0 {
		return Result{}, errs
	}
	if err := opts.Validate(); err != nil {
		return Result{}, []string{err.Error()}
	}
	if errs := opts.ValidateFields(endpoint.FilterConfig); len(errs) > 0 {
		return Result{}, errs
	}

	pred, err := filter.Translate(node, store.DocumentColumn, store.IDColumn, 1)
	if err != nil {
		return Result{}, []string{err.Error()}
	}

	docs, err := e.Store.Find(ctx, endpoint.Collection, pred, opts)
	if err != nil {
		return Result{}, []string{svcerrors.BackendUnavailable("find", err).Error()}
	}
	return Result{Documents: docs}, nil
}

// RunFullCollection executes an unfiltered scan of the endpoint's
// collection, honoring the endpoint's default bulk size as the page limit.
func (e *Executor) RunFullCollection(ctx context.Context, endpoint *registry.EndpointDescriptor) (Result, error) {
	node := filter.CompositeNode(nil)
	pred, err := filter.Translate(node, store.DocumentColumn, store.IDColumn, 1)
	if err != nil {
		return Result{}, err
	}
	opts := filter.Options{Limit: endpoint.DefaultBulkSize}
	docs, err := e.Store.Find(ctx, endpoint.Collection, pred, opts)
	if err != nil {
		return Result{}, svcerrors.BackendUnavailable("find", err)
	}
	return Result{Documents: docs}, nil
}

// RunSequence executes a sequence-based page scan: documents with a
// monotonic cursor greater than after, ordered ascending, capped at
// bulkSize. hasMore reports whether the backend had more rows than fit in
// one page.
func (e *Executor) RunSequence(ctx context.Context, endpoint *registry.EndpointDescriptor, after int64, bulkSize int) (Result, error) {
	if !endpoint.SequenceEnabled {
		return Result{}, fmt.Errorf("query: sequence pagination is not enabled for this endpoint")
	}
	if bulkSize <= 0 {
		bulkSize = endpoint.DefaultBulkSize
	}

	docs, _, err := e.Store.FindAfterSequence(ctx, endpoint.Collection, after, bulkSize+1)
	if err != nil {
		return Result{}, svcerrors.BackendUnavailable("find", err)
	}

	hasMore := len(docs) > bulkSize
	if hasMore {
		docs = docs[:bulkSize]
	}
	next := after
	if len(docs) > 0 {
		if seq, ok := docs[len(docs)-1][document.FieldSequence].(int64); ok {
			next = seq
		}
	}
	return Result{Documents: docs, NextSequence: fmt.Sprintf("%d", next), HasMore: hasMore}, nil
}
