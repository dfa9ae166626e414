// Package response shapes the outcome of a query or write operation into
// the wire response bodies clients see, distinct from the ambient error
// envelope the rest of the service uses: this boundary's error body is the
// flat {"error", "details"} shape dynamic clients expect.
package response

import (
	"net/http"

	"github.com/lattice-data/gateway/domain/document"
	svcerrors "github.com/lattice-data/gateway/infrastructure/errors"
)

// DocumentListResponse is the body for a full-collection or filtered read.
type DocumentListResponse struct {
	Data []document.Document `json:"data"`
}

// SequenceResponse is the body for a sequence-paginated read.
type SequenceResponse struct {
	NextSequence string              `json:"nextSequence"`
	Data         []document.Document `json:"data"`
	HasMore      bool                `json:"hasMore"`
}

// CreateResponse is the body for a create.
type CreateResponse struct {
	AffectedCount int      `json:"affectedCount"`
	InsertedIDs   []string `json:"insertedIds"`
	InsertedCount int      `json:"insertedCount"`
}

// UpdateResponse is the body for a filtered update.
type UpdateResponse struct {
	AffectedCount int `json:"affectedCount"`
	MatchedCount  int `json:"matchedCount"`
	ModifiedCount int `json:"modifiedCount"`
}

// DeleteResponse is the body for a filtered delete.
type DeleteResponse struct {
	AffectedCount int `json:"affectedCount"`
	DeletedCount  int `json:"deletedCount"`
}

// UpsertResponse is the body for an upsert.
type UpsertResponse struct {
	WasInserted   bool   `json:"wasInserted"`
	DocumentID    string `json:"documentId,omitempty"`
	MatchedCount  int    `json:"matchedCount,omitempty"`
	ModifiedCount int    `json:"modifiedCount,omitempty"`
}

// ErrorResponse is the flat error body this boundary renders, independent
// of the structured {code, message, details, traceId} envelope the rest of
// the service's infrastructure/httputil package writes.
type ErrorResponse struct {
	Message string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// NewCreateResponse builds a CreateResponse from inserted ids.
func NewCreateResponse(ids []string) CreateResponse {
	return CreateResponse{AffectedCount: len(ids), InsertedIDs: ids, InsertedCount: len(ids)}
}

// NewUpdateResponse builds an UpdateResponse.
func NewUpdateResponse(matched, modified int) UpdateResponse {
	return UpdateResponse{AffectedCount: matched, MatchedCount: matched, ModifiedCount: modified}
}

// NewDeleteResponse builds a DeleteResponse.
func NewDeleteResponse(deleted int) DeleteResponse {
	return DeleteResponse{AffectedCount: deleted, DeletedCount: deleted}
}

// NewUpsertResponse builds an UpsertResponse.
func NewUpsertResponse(wasInserted bool, id string, matched, modified int) UpsertResponse {
	resp := UpsertResponse{WasInserted: wasInserted, DocumentID: id}
	if !wasInserted {
		resp.MatchedCount = matched
		resp.ModifiedCount = modified
	}
	return resp
}

// StatusForValidationErrors is the status code for a request that failed
// filter/schema/sub-entity validation before reaching the backend.
const StatusForValidationErrors = http.StatusBadRequest

// ErrorStatus maps an error to the HTTP status this boundary should answer
// with. A *svcerrors.ServiceError carries its own status; anything else is
// an unhandled failure and maps to 500.
func ErrorStatus(err error) int {
	if se := svcerrors.GetServiceError(err); se != nil {
		return se.HTTPStatus
	}
	return http.StatusInternalServerError
}

// NewErrorResponse builds the flat error body for a single error.
func NewErrorResponse(err error) ErrorResponse {
	if se := svcerrors.GetServiceError(err); se != nil {
		return ErrorResponse{Message: se.Message, Details: se.DetailStrings()}
	}
	return ErrorResponse{Message: err.Error()}
}

// NewValidationErrorResponse builds the flat error body for a list of
// validation error strings accumulated by the filter or write pipeline.
func NewValidationErrorResponse(message string, details []string) ErrorResponse {
	return ErrorResponse{Message: message, Details: details}
}

// CreatedStatus is 201 when at least one document was inserted.
func CreatedStatus(insertedCount int) int {
	if insertedCount > 0 {
		return http.StatusCreated
	}
	return http.StatusOK
}

// UpsertStatus is 201 when the upsert inserted a new document, 200 when it
// matched and updated an existing one.
func UpsertStatus(wasInserted bool) int {
	if wasInserted {
		return http.StatusCreated
	}
	return http.StatusOK
}
