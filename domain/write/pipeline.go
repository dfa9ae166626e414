package write

import (
	"context"
	"time"

	"github.com/lattice-data/gateway/domain/document"
	"github.com/lattice-data/gateway/domain/registry"
)

// Clock abstracts time.Now for deterministic tests.
type Clock func() time.Time

// Pipeline prepares documents for persistence; it never talks to a backend
// itself, so it composes in front of whichever query/write executor a
// caller wires in.
type Pipeline struct {
	Schemas *registry.SchemaRegistry
	Now     Clock
}

// NewPipeline builds a Pipeline using time.Now as its clock.
func NewPipeline(schemas *registry.SchemaRegistry) *Pipeline {
	return &Pipeline{Schemas: schemas, Now: time.Now}
}

// PrepareCreate strips client-supplied audit fields, injects fresh ones,
// runs the sub-entity pre-insert pass, and validates against the endpoint's
// bound schema (if any). It returns the effective document ready to insert.
func (p *Pipeline) PrepareCreate(ctx context.Context, endpoint *registry.EndpointDescriptor, doc document.Document, requestID string) (document.Document, error) {
	effective := doc.Clone()
	document.StripAuditFields(effective)

	now := p.Now().UTC()
	effective[document.FieldCreatedAt] = now
	effective[document.FieldUpdatedAt] = now
	effective[document.FieldLastRequestID] = requestID

	if err := PrepareSubEntitiesForInsert(effective, endpoint.SubEntityFields); err != nil {
		return nil, err
	}

	if err := p.validate(endpoint, effective); err != nil {
		return nil, err
	}
	return effective, nil
}

// PrepareUpdate merges incoming updates onto the current persisted
// document: strips audit fields from the incoming payload, stamps
// _updatedAt/_lastRequestId, preserves _createdAt, merges sub-entities, and
// validates the resulting effective document.
func (p *Pipeline) PrepareUpdate(ctx context.Context, endpoint *registry.EndpointDescriptor, current document.Document, updates document.Document, requestID string) (document.Document, error) {
	incoming := updates.Clone()
	document.StripAuditFields(incoming)

	effective, err := MergeAllSubEntities(current, incoming, endpoint.SubEntityFields)
	if err != nil {
		return nil, err
	}

	effective[document.FieldCreatedAt] = current[document.FieldCreatedAt]
	effective[document.FieldUpdatedAt] = p.Now().UTC()
	effective[document.FieldLastRequestID] = requestID

	if err := p.validate(endpoint, effective); err != nil {
		return nil, err
	}
	return effective, nil
}

func (p *Pipeline) validate(endpoint *registry.EndpointDescriptor, doc document.Document) error {
	if endpoint.SchemaName == "" || p.Schemas == nil {
		return nil
	}
	schema, ok := p.Schemas.Get(endpoint.SchemaName)
	if !ok {
		return nil
	}
	return schema.Validate(map[string]interface{}(doc))
}
