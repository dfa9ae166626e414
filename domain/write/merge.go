// Package write implements document shaping for create/update/delete/upsert
// requests: audit-field stripping and injection, sub-entity list merging,
// and the schema-validation hook invoked before persistence.
package write

import (
	"fmt"
	"strings"

	"github.com/lattice-data/gateway/domain/document"
	svcerrors "github.com/lattice-data/gateway/infrastructure/errors"
)

// MergeSubEntity merges an incoming sub-entity list against the current
// persisted list for one configured field, applying rules (a)-(f): new
// entries are appended with a fresh myId, existing entries are soft-deleted
// or field-merged by myId, and referencing an unknown or already-deleted
// myId is an error. Order of existing entries is preserved; new entries are
// appended at the end.
func MergeSubEntity(field string, current, incoming []interface{}) ([]interface{}, error) {
	indexByID := make(map[string]int, len(current))
	result := make([]document.Document, 0, len(current))
	for i, raw := range current {
		obj, _ := raw.(map[string]interface{})
		d := document.Document(obj)
		result = append(result, d)
		if id, ok := d[document.SubEntityIDField].(string); ok && id != "" {
			indexByID[id] = i
		}
	}

	for i, raw := range incoming {
		obj, ok := raw.(map[string]interface{})
		if !ok {
			return nil, svcerrors.SubEntityConflict(field, fmt.Sprintf("element %d is not a JSON object", i))
		}
		elem := document.Document(obj).Clone()

		myID, _ := elem[document.SubEntityIDField].(string)
		isDelete := document.IsDeleteFlag(elem)
		document.StripOperationFlags(elem)
		delete(elem, document.SubEntityIDField)

		switch {
		case myID == "" && isDelete:
			// (a) no myId + delete => error.
			return nil, svcerrors.SubEntityConflict(field, fmt.Sprintf("element %d: cannot delete without myId", i))

		case myID == "":
			// (b) no myId + not delete => new entry.
			elem[document.SubEntityIDField] = document.NewID()
			elem[document.SubEntityDeletedField] = false
			result = append(result, elem)

		default:
			idx, found := indexByID[myID]
			if !found {
				// (c) myId absent from current list => error.
				return nil, svcerrors.SubEntityConflict(field, fmt.Sprintf("myId %q does not exist", myID))
			}
			existing := result[idx]
			if deleted, _ := existing[document.SubEntityDeletedField].(bool); deleted {
				// (d) myId found but already deleted => error.
				return nil, svcerrors.SubEntityConflict(field, fmt.Sprintf("myId %q already deleted", myID))
			}
			if isDelete {
				// (e) myId found + delete => soft delete.
				existing[document.SubEntityDeletedField] = true
				result[idx] = existing
				continue
			}
			// (f) myId found + not delete => merge fields, keep myId.
			for k, v := range elem {
				existing[k] = v
			}
			existing[document.SubEntityIDField] = myID
			existing[document.SubEntityDeletedField] = false
			result[idx] = existing
		}
	}

	out := make([]interface{}, len(result))
	for i, d := range result {
		out[i] = map[string]interface{}(d)
	}
	return out, nil
}

// MergeAllSubEntities applies MergeSubEntity to every configured sub-entity
// field present in incoming, producing the effective document by merging
// onto base.
func MergeAllSubEntities(base document.Document, incoming document.Document, subEntityFields map[string]bool) (document.Document, error) {
	effective := base.Clone()
	for field := range subEntityFields {
		val, present := incoming[field]
		if !present {
			continue
		}
		list, ok := val.([]interface{})
		if !ok {
			return nil, svcerrors.SubEntityConflict(field, "value must be a list")
		}
		currentList, _ := effective[field].([]interface{})
		merged, err := MergeSubEntity(field, currentList, list)
		if err != nil {
			return nil, err
		}
		effective[field] = merged
	}
	for k, v := range incoming {
		if subEntityFields[k] {
			continue
		}
		if strings.HasPrefix(k, "_") {
			continue
		}
		effective[k] = v
	}
	return effective, nil
}

// PrepareSubEntitiesForInsert runs the pre-insert pass for Create: every
// configured sub-entity field whose value is a list has each element
// normalised to an object without a delete flag, with a myId assigned if
// missing, and isDeleted set to false.
func PrepareSubEntitiesForInsert(doc document.Document, subEntityFields map[string]bool) error {
	for field := range subEntityFields {
		val, present := doc[field]
		if !present {
			continue
		}
		list, ok := val.([]interface{})
		if !ok {
			return svcerrors.SubEntityConflict(field, "value must be a list")
		}
		out := make([]interface{}, 0, len(list))
		for i, raw := range list {
			obj, ok := raw.(map[string]interface{})
			if !ok {
				return svcerrors.SubEntityConflict(field, fmt.Sprintf("element %d is not a JSON object", i))
			}
			elem := document.Document(obj).Clone()
			if document.IsDeleteFlag(elem) {
				return svcerrors.SubEntityConflict(field, fmt.Sprintf("element %d: cannot carry a delete flag on insert", i))
			}
			document.StripOperationFlags(elem)
			if id, _ := elem[document.SubEntityIDField].(string); id == "" {
				elem[document.SubEntityIDField] = document.NewID()
			}
			elem[document.SubEntityDeletedField] = false
			out = append(out, map[string]interface{}(elem))
		}
		doc[field] = out
	}
	return nil
}
