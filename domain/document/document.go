// Package document defines the document model shared by the filter engine,
// write pipeline, and query executor: a string-keyed map of values, the
// system-reserved fields, and the sub-entity conventions used by the write
// pipeline's merge rules.
package document

import (
	"strings"

	"github.com/google/uuid"
)

// Reserved field names. The three audit fields (see AuditFields) are
// stripped from client input and re-injected by the write pipeline; _id is
// the primary key and _sequence the pagination cursor.
const (
	FieldCreatedAt     = "_createdAt"
	FieldUpdatedAt     = "_updatedAt"
	FieldLastRequestID = "_lastRequestId"
	FieldID            = "_id"
	FieldSequence      = "_sequence"
)

// AuditFields lists the audit fields, in the order they are stripped and
// re-injected.
var AuditFields = []string{FieldCreatedAt, FieldUpdatedAt, FieldLastRequestID}

// Sub-entity conventions: the technical id field, the persisted soft-delete
// flag, and the two case-insensitive spellings of the client's delete
// intent flag.
const (
	SubEntityIDField        = "myId"
	SubEntityDeletedField   = "isDeleted"
	SubEntityDeleteFlagA    = "isDelete"
	SubEntityDeleteFlagB    = "isDeleted"
)

// Document is a string-keyed map of values. Go map iteration order is not
// defined, so a Document does not keep the field order of its source.
type Document map[string]interface{}

// Clone returns a shallow copy of the document.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// StripAuditFields removes every system-reserved audit field from a
// client-supplied document in place, returning the same map for chaining.
func StripAuditFields(d Document) Document {
	for _, f := range AuditFields {
		delete(d, f)
	}
	return d
}

// IsDeleteFlag reports whether the document carries a truthy isDelete or
// isDeleted operation flag; both spellings are treated as synonyms and
// matched case-insensitively.
func IsDeleteFlag(d Document) bool {
	for key, v := range d {
		if !isDeleteFlagKey(key) {
			continue
		}
		if b, ok := v.(bool); ok && b {
			return true
		}
	}
	return false
}

func isDeleteFlagKey(key string) bool {
	return strings.EqualFold(key, SubEntityDeleteFlagA) || strings.EqualFold(key, SubEntityDeleteFlagB)
}

// StripOperationFlags removes the client operation flags (isDelete/isDeleted
// used as an instruction) from a sub-entity element, leaving the persisted
// isDeleted state to be set explicitly by the merge logic.
func StripOperationFlags(d Document) {
	for key := range d {
		if isDeleteFlagKey(key) {
			delete(d, key)
		}
	}
}

// NewID returns a fresh technical id for a sub-entity or a document's
// primary key when one isn't supplied.
func NewID() string {
	return uuid.NewString()
}
