package migrations

import (
	"context"
	"testing"

	"github.com/shoaldb/shoal/internal/migrate"
	"github.com/shoaldb/shoal/internal/schema"
	"github.com/shoaldb/shoal/internal/store"
)

func applyAll(t *testing.T) *store.MemStore {
	t.Helper()
	st := store.NewMemStore()
	if err := migrate.NewRunner(st, Registry).Up(context.Background()); err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	return st
}

func TestApplyAll(t *testing.T) {
	ctx := context.Background()
	st := applyAll(t)

	entries, err := st.AppliedVersions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != Registry.Len() {
		t.Fatalf("applied %d of %d changesets", len(entries), Registry.Len())
	}

	all, _ := st.Collections(ctx)
	if len(all) != 5 {
		t.Fatalf("expected 5 collections, got %d", len(all))
	}
}

func TestFinalSessionsShape(t *testing.T) {
	ctx := context.Background()
	st := applyAll(t)

	sessions, err := st.FindCollectionByID(ctx, SessionsID)
	if err != nil {
		t.Fatal(err)
	}

	// The scalar pointer was converted into a relation.
	if sessions.FieldByName("group_id") != nil {
		t.Error("group_id scalar should be gone after the conversion")
	}
	rel := sessions.FieldByName("session_group")
	if rel == nil {
		t.Fatal("session_group relation missing")
	}
	if rel.Type != schema.TypeRelation || rel.Options.CollectionID != GroupsID {
		t.Errorf("relation misconfigured: %+v", rel)
	}
}

func TestFinalPersonsShape(t *testing.T) {
	ctx := context.Background()
	st := applyAll(t)

	persons, err := st.FindCollectionByName(ctx, "persons")
	if err != nil {
		t.Fatal(err)
	}
	if persons.FieldByName("nickname") != nil || persons.FieldByName("display_name") != nil {
		t.Error("renamed-then-removed field should be gone under both names")
	}
	if persons.IndexByName("idx_persons_nickname") != nil || persons.IndexByName("idx_persons_display_name") != nil {
		t.Error("indexes on the removed field should be gone")
	}
	if persons.FieldByName("full_name") == nil {
		t.Error("unrelated field lost along the way")
	}
}

func TestFinalStaffShape(t *testing.T) {
	ctx := context.Background()
	st := applyAll(t)

	staff, err := st.FindCollectionByID(ctx, StaffID)
	if err != nil {
		t.Fatal(err)
	}
	roles := staff.FieldByName("roles")
	if roles == nil {
		t.Fatal("roles field missing")
	}
	if len(roles.Options.Values) != 4 || roles.Options.MaxSelect != 2 {
		t.Errorf("roles not widened: %+v", roles.Options)
	}
}

func TestFinalBunksShape(t *testing.T) {
	ctx := context.Background()
	st := applyAll(t)

	bunks, err := st.FindCollectionByID(ctx, BunksID)
	if err != nil {
		t.Fatal(err)
	}
	if bunks.ListRule == nil || bunks.ViewRule == nil {
		t.Error("access rules missing")
	}
	if bunks.CreateRule != nil {
		t.Error("unset rules must stay nil")
	}
	group := bunks.FieldByName("group")
	if group == nil || group.Options.CollectionID != GroupsID {
		t.Errorf("group relation misconfigured: %+v", group)
	}
}

func TestFullRevert(t *testing.T) {
	ctx := context.Background()
	st := applyAll(t)
	r := migrate.NewRunner(st, Registry)

	if err := r.Down(ctx, Registry.Len()); err != nil {
		t.Fatalf("Down() error = %v", err)
	}

	all, _ := st.Collections(ctx)
	if len(all) != 0 {
		t.Errorf("store should be empty after full revert, got %d collections", len(all))
	}
	entries, _ := st.AppliedVersions(ctx)
	if len(entries) != 0 {
		t.Errorf("ledger should be empty after full revert, got %+v", entries)
	}
}

func TestRevertToMidpointAndReapply(t *testing.T) {
	ctx := context.Background()
	st := applyAll(t)
	r := migrate.NewRunner(st, Registry)

	// Roll back past the conversion, then forward again.
	if err := r.DownTo(ctx, 1660000600); err != nil {
		t.Fatalf("DownTo() error = %v", err)
	}

	sessions, err := st.FindCollectionByID(ctx, SessionsID)
	if err != nil {
		t.Fatal(err)
	}
	scalar := sessions.FieldByName("group_id")
	if scalar == nil {
		t.Fatal("revert should restore the original scalar field")
	}
	if scalar.ID != "f_session_group_id" || scalar.Type != schema.TypeNumber || !scalar.Options.OnlyInt {
		t.Errorf("original declaration not restored: %+v", scalar)
	}

	if err := r.Up(ctx); err != nil {
		t.Fatalf("reapply error = %v", err)
	}
	entries, _ := st.AppliedVersions(ctx)
	if len(entries) != Registry.Len() {
		t.Errorf("reapply left %d of %d applied", len(entries), Registry.Len())
	}
}

func TestLedgerVerifies(t *testing.T) {
	ctx := context.Background()
	st := applyAll(t)

	v, err := migrate.NewRunner(st, Registry).Verify(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !v.OK() {
		t.Errorf("ledger should verify after a clean run: %s", v)
	}
	if v.Applied != Registry.Len() {
		t.Errorf("Applied = %d, want %d", v.Applied, Registry.Len())
	}
}
