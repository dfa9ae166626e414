// Package store defines the backend abstraction the query and write
// executors compile filter predicates against: a JSONB document table per
// collection, addressed through the same (method, path) -> collection
// mapping the endpoint registry resolves.
package store

import (
	"context"

	"github.com/lattice-data/gateway/domain/document"
	"github.com/lattice-data/gateway/domain/filter"
)

// Store is the persistence surface the query and write executors drive.
// Every method is scoped to a single collection (backend table).
type Store interface {
	// Find returns documents matching pred, ordered/limited/skipped per opts.
	Find(ctx context.Context, collection string, pred filter.Predicate, opts filter.Options) ([]document.Document, error)

	// FindOne returns the first document matching pred, if any.
	FindOne(ctx context.Context, collection string, pred filter.Predicate) (document.Document, bool, error)

	// Count returns how many documents match pred.
	Count(ctx context.Context, collection string, pred filter.Predicate) (int, error)

	// Insert persists docs, returning their assigned _id values in order.
	Insert(ctx context.Context, collection string, docs []document.Document) ([]string, error)

	// ReplaceByID overwrites the document identified by id with doc.
	ReplaceByID(ctx context.Context, collection, id string, doc document.Document) error

	// DeleteMatching hard-deletes every document matching pred, returning the
	// number of rows removed.
	DeleteMatching(ctx context.Context, collection string, pred filter.Predicate) (int, error)

	// FindAfterSequence returns up to limit documents whose monotonic
	// sequence number is greater than after, ordered ascending by sequence,
	// along with the highest sequence value returned (0 if none).
	FindAfterSequence(ctx context.Context, collection string, after int64, limit int) (docs []document.Document, lastSeq int64, err error)
}
