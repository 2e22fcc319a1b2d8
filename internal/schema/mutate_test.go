package schema

import (
	"testing"

	"github.com/shoaldb/shoal/internal/sherr"
)

func TestAddField(t *testing.T) {
	c := testCollection()
	f := textField("fld_slug_01", "slug")

	out, err := AddField(c, f)
	if err != nil {
		t.Fatalf("AddField() error = %v", err)
	}
	if out.FieldByID("fld_slug_01") == nil {
		t.Error("field not added")
	}
	if c.FieldByID("fld_slug_01") != nil {
		t.Error("AddField mutated the input state")
	}
}

func TestAddField_IdempotentByID(t *testing.T) {
	c := testCollection()
	out, err := AddField(c, textField("fld_title_01", "title"))
	if err != nil {
		t.Fatalf("re-adding by id should be a no-op, got %v", err)
	}
	if len(out.Fields) != len(c.Fields) {
		t.Error("no-op add changed the field count")
	}
}

func TestAddField_NameClash(t *testing.T) {
	c := testCollection()
	_, err := AddField(c, textField("fld_other_id", "title"))
	if !sherr.Is(err, sherr.ErrConstraint) {
		t.Errorf("expected ErrConstraint, got %v", err)
	}
}

func TestRemoveFieldByID(t *testing.T) {
	c := testCollection()
	out, err := RemoveFieldByID(c, "fld_capacity_01")
	if err != nil {
		t.Fatalf("RemoveFieldByID() error = %v", err)
	}
	if out.FieldByID("fld_capacity_01") != nil {
		t.Error("field not removed")
	}

	// Absent id is a no-op, not an error (partial-apply retry safety).
	again, err := RemoveFieldByID(out, "fld_capacity_01")
	if err != nil {
		t.Fatalf("repeat removal error = %v", err)
	}
	if len(again.Fields) != len(out.Fields) {
		t.Error("repeat removal changed the state")
	}
}

// Removal by stable identifier survives an intervening rename; removal by
// the old name does not. The asymmetry is the documented hazard.
func TestRemoveField_RenameAsymmetry(t *testing.T) {
	c := testCollection()

	renamed, err := RenameField(c, "capacity", "bed_count")
	if err != nil {
		t.Fatalf("RenameField() error = %v", err)
	}

	// By id: still works after the rename.
	out, err := RemoveFieldByID(renamed, "fld_capacity_01")
	if err != nil {
		t.Fatalf("RemoveFieldByID after rename error = %v", err)
	}
	if out.FieldByName("bed_count") != nil {
		t.Error("renamed field should be gone")
	}

	// By stale name: hard resolution error, never a silent miss.
	_, err = RemoveFieldByName(renamed, "capacity")
	if !sherr.Is(err, sherr.ErrStaleName) {
		t.Errorf("expected ErrStaleName, got %v", err)
	}
}

func TestRemoveFieldByName(t *testing.T) {
	c := testCollection()
	out, err := RemoveFieldByName(c, "capacity")
	if err != nil {
		t.Fatalf("RemoveFieldByName() error = %v", err)
	}
	if out.FieldByName("capacity") != nil {
		t.Error("field not removed")
	}
}

func TestRemoveFieldByID_DanglingIndex(t *testing.T) {
	c := testCollection()
	c.Indexes = []*Index{{Name: "idx_sessions_capacity", Columns: []string{"capacity"}}}

	_, err := RemoveFieldByID(c, "fld_capacity_01")
	if !sherr.Is(err, sherr.ErrDanglingIndex) {
		t.Errorf("expected ErrDanglingIndex, got %v", err)
	}
}

func TestRenameField(t *testing.T) {
	c := testCollection()
	out, err := RenameField(c, "title", "display_name")
	if err != nil {
		t.Fatalf("RenameField() error = %v", err)
	}
	f := out.FieldByID("fld_title_01")
	if f == nil || f.Name != "display_name" {
		t.Error("rename did not stick")
	}
	if c.FieldByName("title") == nil {
		t.Error("rename mutated the input state")
	}

	// Reapplying to the already-renamed state is a no-op.
	again, err := RenameField(out, "title", "display_name")
	if err != nil {
		t.Fatalf("repeat rename error = %v", err)
	}
	if again.FieldByName("display_name") == nil {
		t.Error("idempotent rename lost the field")
	}
}

func TestRenameField_StaleAndClash(t *testing.T) {
	c := testCollection()

	if _, err := RenameField(c, "missing", "other"); !sherr.Is(err, sherr.ErrStaleName) {
		t.Errorf("expected ErrStaleName, got %v", err)
	}
	if _, err := RenameField(c, "title", "capacity"); !sherr.Is(err, sherr.ErrConstraint) {
		t.Errorf("expected ErrConstraint for name clash, got %v", err)
	}
}

func TestRenameField_DanglingIndex(t *testing.T) {
	c := testCollection()
	c.Indexes = []*Index{{Name: "idx_sessions_title", Columns: []string{"title"}}}

	_, err := RenameField(c, "title", "display_name")
	if !sherr.Is(err, sherr.ErrDanglingIndex) {
		t.Errorf("expected ErrDanglingIndex, got %v", err)
	}
}

func TestAddIndex(t *testing.T) {
	c := testCollection()
	idx := &Index{Name: "idx_sessions_title", Columns: []string{"title"}, Unique: true}

	out, err := AddIndex(c, idx)
	if err != nil {
		t.Fatalf("AddIndex() error = %v", err)
	}
	if out.IndexByName("idx_sessions_title") == nil {
		t.Error("index not added")
	}

	// Same definition again: no-op.
	again, err := AddIndex(out, idx)
	if err != nil {
		t.Fatalf("idempotent AddIndex error = %v", err)
	}
	if len(again.Indexes) != 1 {
		t.Errorf("index count = %d, want 1", len(again.Indexes))
	}

	// Same name, different definition: constraint error.
	_, err = AddIndex(out, &Index{Name: "idx_sessions_title", Columns: []string{"capacity"}})
	if !sherr.Is(err, sherr.ErrConstraint) {
		t.Errorf("expected ErrConstraint, got %v", err)
	}
}

func TestAddIndex_UnknownField(t *testing.T) {
	c := testCollection()
	_, err := AddIndex(c, &Index{Name: "idx_bad", Columns: []string{"ghost"}})
	if !sherr.Is(err, sherr.ErrDanglingIndex) {
		t.Errorf("expected ErrDanglingIndex, got %v", err)
	}
}

func TestRemoveIndexMatching(t *testing.T) {
	c := testCollection()
	c.Indexes = []*Index{
		{Name: "idx_sessions_title", Columns: []string{"title"}},
		{Name: "_sys_auto_7f2k1", Columns: []string{"capacity"}},
	}

	out, err := RemoveIndexMatching(c, "_sys_auto_")
	if err != nil {
		t.Fatalf("RemoveIndexMatching() error = %v", err)
	}
	if len(out.Indexes) != 1 || out.Indexes[0].Name != "idx_sessions_title" {
		t.Errorf("unexpected indexes after removal: %+v", out.Indexes)
	}

	// Matching nothing is a no-op.
	again, err := RemoveIndexMatching(out, "nope")
	if err != nil || len(again.Indexes) != 1 {
		t.Errorf("no-op removal misbehaved: %v %+v", err, again.Indexes)
	}
}

func TestConvertField_RoundTrip(t *testing.T) {
	c := testCollection()
	relation := &Field{
		ID:   "fld_rel_grp_01",
		Name: "session_group",
		Type: TypeRelation,
		Options: FieldOptions{
			CollectionID: "col_groups_01",
			MaxSelect:    1,
		},
	}

	converted, original, err := ConvertField(c, "capacity", relation)
	if err != nil {
		t.Fatalf("ConvertField() error = %v", err)
	}
	if converted.FieldByName("capacity") != nil {
		t.Error("old scalar field still present")
	}
	if converted.FieldByName("session_group") == nil {
		t.Error("relation field missing")
	}
	if original == nil || original.ID != "fld_capacity_01" {
		t.Fatalf("original declaration not captured: %+v", original)
	}

	// Backward: restore the original declaration bit-for-bit.
	restored, err := RestoreField(converted, original, relation.ID)
	if err != nil {
		t.Fatalf("RestoreField() error = %v", err)
	}
	back := restored.FieldByID("fld_capacity_01")
	if back == nil || !back.Equal(c.FieldByID("fld_capacity_01")) {
		t.Error("restored field does not match the original declaration")
	}
	if restored.FieldByID(relation.ID) != nil {
		t.Error("relation field should be gone after restore")
	}
}

func TestConvertField_Idempotent(t *testing.T) {
	c := testCollection()
	relation := &Field{
		ID: "fld_rel_grp_01", Name: "session_group", Type: TypeRelation,
		Options: FieldOptions{CollectionID: "col_groups_01", MaxSelect: 1},
	}
	converted, _, err := ConvertField(c, "capacity", relation)
	if err != nil {
		t.Fatal(err)
	}

	again, original, err := ConvertField(converted, "capacity", relation)
	if err != nil {
		t.Fatalf("reapplied conversion should be a no-op, got %v", err)
	}
	if original != nil {
		t.Error("no-op conversion should not capture an original")
	}
	if !again.Equal(converted) {
		t.Error("no-op conversion changed the state")
	}
}
