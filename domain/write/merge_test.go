package write

import "testing"

func TestMergeSubEntityNewEntryGetsID(t *testing.T) {
	out, err := MergeSubEntity("items", nil, []interface{}{
		map[string]interface{}{"name": "widget"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(out))
	}
	entry := out[0].(map[string]interface{})
	if entry["myId"] == "" || entry["myId"] == nil {
		t.Fatal("expected a generated myId")
	}
	if entry["isDeleted"] != false {
		t.Fatalf("expected isDeleted=false, got %v", entry["isDeleted"])
	}
}

func TestMergeSubEntityNoIDWithDeleteIsError(t *testing.T) {
	_, err := MergeSubEntity("items", nil, []interface{}{
		map[string]interface{}{"isDelete": true},
	})
	if err == nil {
		t.Fatal("expected error for delete without myId")
	}
}

func TestMergeSubEntityUnknownIDIsError(t *testing.T) {
	_, err := MergeSubEntity("items", nil, []interface{}{
		map[string]interface{}{"myId": "missing", "name": "x"},
	})
	if err == nil {
		t.Fatal("expected error for unknown myId")
	}
}

func TestMergeSubEntitySoftDelete(t *testing.T) {
	current := []interface{}{
		map[string]interface{}{"myId": "id-1", "name": "widget", "isDeleted": false},
	}
	out, err := MergeSubEntity("items", current, []interface{}{
		map[string]interface{}{"myId": "id-1", "isDelete": true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry := out[0].(map[string]interface{})
	if entry["isDeleted"] != true {
		t.Fatalf("expected soft delete, got %v", entry)
	}
}

func TestMergeSubEntityAlreadyDeletedIsError(t *testing.T) {
	current := []interface{}{
		map[string]interface{}{"myId": "id-1", "isDeleted": true},
	}
	_, err := MergeSubEntity("items", current, []interface{}{
		map[string]interface{}{"myId": "id-1", "name": "x"},
	})
	if err == nil {
		t.Fatal("expected error for re-touching an already-deleted entry")
	}
}

func TestMergeSubEntityFieldMerge(t *testing.T) {
	current := []interface{}{
		map[string]interface{}{"myId": "id-1", "name": "widget", "qty": float64(1), "isDeleted": false},
	}
	out, err := MergeSubEntity("items", current, []interface{}{
		map[string]interface{}{"myId": "id-1", "qty": float64(5)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry := out[0].(map[string]interface{})
	if entry["name"] != "widget" || entry["qty"] != float64(5) {
		t.Fatalf("expected merged fields, got %v", entry)
	}
}

func TestMergeSubEntityPreservesOrderNewAppended(t *testing.T) {
	current := []interface{}{
		map[string]interface{}{"myId": "id-1", "name": "a", "isDeleted": false},
		map[string]interface{}{"myId": "id-2", "name": "b", "isDeleted": false},
	}
	out, err := MergeSubEntity("items", current, []interface{}{
		map[string]interface{}{"name": "c"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(out))
	}
	if out[0].(map[string]interface{})["myId"] != "id-1" || out[1].(map[string]interface{})["myId"] != "id-2" {
		t.Fatal("expected existing order preserved")
	}
}

func TestMergeSubEntityRejectsNonObjectElement(t *testing.T) {
	_, err := MergeSubEntity("items", nil, []interface{}{"not-an-object"})
	if err == nil {
		t.Fatal("expected error for non-object element")
	}
}
