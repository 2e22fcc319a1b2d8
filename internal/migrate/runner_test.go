package migrate

import (
	"context"
	"fmt"
	"testing"

	"github.com/shoaldb/shoal/internal/resolve"
	"github.com/shoaldb/shoal/internal/schema"
	"github.com/shoaldb/shoal/internal/sherr"
	"github.com/shoaldb/shoal/internal/store"
)

func createCollection(id, name string) Changeset {
	c := &schema.Collection{
		ID:   id,
		Name: name,
		Fields: []*schema.Field{
			{ID: "f_" + name + "_title", Name: "title", Type: schema.TypeText, Required: true},
		},
	}
	version := int64(1660000000 + len(name)) // distinct per name in these tests
	return Changeset{
		Version: version,
		Name:    "create_" + name,
		Up: func(ctx context.Context, tx store.Store) error {
			return tx.SaveCollection(ctx, c.Clone())
		},
		Down: func(ctx context.Context, tx store.Store) error {
			return tx.DeleteCollection(ctx, id)
		},
	}
}

func mustRegistry(t *testing.T, sets ...Changeset) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, cs := range sets {
		if err := r.Register(cs); err != nil {
			t.Fatal(err)
		}
	}
	return r
}

func TestRunner_UpAppliesInOrder(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()

	var order []string
	mk := func(version int64, name string) Changeset {
		return Changeset{
			Version: version,
			Name:    name,
			Up: func(ctx context.Context, tx store.Store) error {
				order = append(order, name)
				return nil
			},
			Down: noop,
		}
	}
	reg := mustRegistry(t,
		mk(1660000300, "third"),
		mk(1660000100, "first"),
		mk(1660000200, "second"),
	)

	if err := NewRunner(st, reg).Up(ctx); err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	want := []string{"first", "second", "third"}
	for i, name := range want {
		if order[i] != name {
			t.Errorf("apply order[%d] = %s, want %s", i, order[i], name)
		}
	}

	entries, _ := st.AppliedVersions(ctx)
	if len(entries) != 3 {
		t.Errorf("ledger entries = %d, want 3", len(entries))
	}
}

func TestRunner_RerunIsNoOp(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()

	applies := 0
	reg := mustRegistry(t, Changeset{
		Version: 1660000100,
		Name:    "once",
		Up: func(ctx context.Context, tx store.Store) error {
			applies++
			return nil
		},
		Down: noop,
	})
	r := NewRunner(st, reg)

	if err := r.Up(ctx); err != nil {
		t.Fatal(err)
	}
	if err := r.Up(ctx); err != nil {
		t.Fatalf("second Up() error = %v", err)
	}
	if applies != 1 {
		t.Errorf("changeset applied %d times, want 1", applies)
	}
}

func TestRunner_UpTo(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	reg := mustRegistry(t,
		Changeset{Version: 1660000100, Name: "a", Up: noop, Down: noop},
		Changeset{Version: 1660000200, Name: "b", Up: noop, Down: noop},
		Changeset{Version: 1660000300, Name: "c", Up: noop, Down: noop},
	)
	r := NewRunner(st, reg)

	if err := r.UpTo(ctx, 1660000200); err != nil {
		t.Fatal(err)
	}
	entries, _ := st.AppliedVersions(ctx)
	if len(entries) != 2 {
		t.Fatalf("applied %d, want 2", len(entries))
	}
	if entries[1].Version != 1660000200 {
		t.Errorf("newest applied = %d", entries[1].Version)
	}
}

// A changeset that lands in the repository with a version token older
// than something already applied is a conflict, not a silent backfill.
func TestRunner_OutOfOrderIsFatal(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()

	newer := Changeset{Version: 1660000200, Name: "newer", Up: noop, Down: noop}
	if err := NewRunner(st, mustRegistry(t, newer)).Up(ctx); err != nil {
		t.Fatal(err)
	}

	// A latecomer with an older token appears in the next run.
	older := Changeset{Version: 1660000100, Name: "latecomer", Up: noop, Down: noop}
	err := NewRunner(st, mustRegistry(t, newer, older)).Up(ctx)
	if !sherr.Is(err, sherr.ErrOutOfOrder) {
		t.Errorf("Up() error = %v, want ErrOutOfOrder", err)
	}
}

func TestRunner_FailedChangesetRollsBack(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()

	boom := fmt.Errorf("backfill failed")
	reg := mustRegistry(t,
		Changeset{
			Version: 1660000100,
			Name:    "partial",
			Up: func(ctx context.Context, tx store.Store) error {
				c := schema.NewCollectionWithID("col_orphan_01", "orphans")
				c.Fields = []*schema.Field{{ID: "f_x", Name: "x", Type: schema.TypeText}}
				if err := tx.SaveCollection(ctx, c); err != nil {
					return err
				}
				return boom
			},
			Down: noop,
		},
		Changeset{Version: 1660000200, Name: "never_reached", Up: noop, Down: noop},
	)

	err := NewRunner(st, reg).Up(ctx)
	if err == nil {
		t.Fatal("Up() should fail")
	}
	if sherr.GetErrorCode(err) == "" {
		t.Errorf("failure should carry a code, got %v", err)
	}

	// The partial write must be gone and nothing after it may have run.
	if _, err := st.FindCollectionByID(ctx, "col_orphan_01"); !sherr.Is(err, sherr.ErrNotFound) {
		t.Error("partial write survived the rollback")
	}
	entries, _ := st.AppliedVersions(ctx)
	if len(entries) != 0 {
		t.Errorf("ledger should be empty after failure, got %+v", entries)
	}
}

func TestRunner_DownRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()

	a := createCollection("col_groups_01", "groups")
	b := createCollection("col_sessions_01", "sessions")
	r := NewRunner(st, mustRegistry(t, a, b))

	if err := r.Up(ctx); err != nil {
		t.Fatal(err)
	}
	if err := r.Down(ctx, 1); err != nil {
		t.Fatalf("Down() error = %v", err)
	}

	// Newest first: sessions is gone, groups survives.
	if _, err := st.FindCollectionByName(ctx, "sessions"); !sherr.Is(err, sherr.ErrNotFound) {
		t.Error("newest changeset should have been reverted")
	}
	if _, err := st.FindCollectionByName(ctx, "groups"); err != nil {
		t.Errorf("older changeset should still be applied: %v", err)
	}

	if err := r.Down(ctx, 1); err != nil {
		t.Fatal(err)
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

func TestRunner_DownTo(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	reg := mustRegistry(t,
		Changeset{Version: 1660000100, Name: "a", Up: noop, Down: noop},
		Changeset{Version: 1660000200, Name: "b", Up: noop, Down: noop},
		Changeset{Version: 1660000300, Name: "c", Up: noop, Down: noop},
	)
	r := NewRunner(st, reg)
	if err := r.Up(ctx); err != nil {
		t.Fatal(err)
	}

	if err := r.DownTo(ctx, 1660000100); err != nil {
		t.Fatal(err)
	}
	entries, _ := st.AppliedVersions(ctx)
	if len(entries) != 1 || entries[0].Version != 1660000100 {
		t.Errorf("DownTo target should stay applied, ledger = %+v", entries)
	}
}

func TestRunner_DownMissingChangeset(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	if err := st.RecordApplied(ctx, store.LedgerEntry{Version: 1660000100, Name: "deleted_file"}); err != nil {
		t.Fatal(err)
	}

	err := NewRunner(st, NewRegistry()).Down(ctx, 1)
	if !sherr.Is(err, sherr.ErrNotFound) {
		t.Errorf("Down() error = %v, want ErrNotFound", err)
	}
}

func TestRunner_Status(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	reg := mustRegistry(t,
		Changeset{Version: 1660000100, Name: "a", Up: noop, Down: noop},
		Changeset{Version: 1660000200, Name: "b", Up: noop, Down: noop},
	)
	r := NewRunner(st, reg)
	if err := r.UpTo(ctx, 1660000100); err != nil {
		t.Fatal(err)
	}
	// An applied version whose changeset file no longer exists.
	if err := st.RecordApplied(ctx, store.LedgerEntry{Version: 1660000050, Name: "ghost"}); err != nil {
		t.Fatal(err)
	}

	statuses, err := r.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := map[int64]State{
		1660000050: StateMissing,
		1660000100: StateApplied,
		1660000200: StatePending,
	}
	if len(statuses) != len(want) {
		t.Fatalf("got %d statuses, want %d", len(statuses), len(want))
	}
	for _, s := range statuses {
		if s.State != want[s.Version] {
			t.Errorf("version %d state = %s, want %s", s.Version, s.State, want[s.Version])
		}
		if s.State != StatePending && s.AppliedAt == nil {
			t.Errorf("version %d should carry an applied timestamp", s.Version)
		}
	}
}

func TestRunner_CancelledBetweenChangesets(t *testing.T) {
	st := store.NewMemStore()
	ctx, cancel := context.WithCancel(context.Background())

	reg := mustRegistry(t,
		Changeset{
			Version: 1660000100,
			Name:    "cancels_after",
			Up: func(ctx context.Context, tx store.Store) error {
				cancel()
				return nil
			},
			Down: noop,
		},
		Changeset{Version: 1660000200, Name: "never_runs", Up: noop, Down: noop},
	)

	err := NewRunner(st, reg).Up(ctx)
	if err == nil {
		t.Fatal("Up() should stop on cancellation")
	}

	// The changeset that completed before cancellation stays applied.
	entries, _ := st.AppliedVersions(context.Background())
	if len(entries) != 1 || entries[0].Version != 1660000100 {
		t.Errorf("ledger = %+v, want only the completed changeset", entries)
	}
}

// Reference-by-name imposes an ordering dependency: a changeset looking
// up "groups" fails hard once a rename has applied, while a changeset
// holding the stable identifier is unaffected.
func TestRunner_StaleNameAfterRename(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()

	create := Changeset{
		Version: 1660000100,
		Name:    "create_groups",
		Up: func(ctx context.Context, tx store.Store) error {
			c := schema.NewCollectionWithID("col_groups_01", "groups")
			c.Fields = []*schema.Field{{ID: "f_name", Name: "name", Type: schema.TypeText, Required: true}}
			return tx.SaveCollection(ctx, c)
		},
		Down: func(ctx context.Context, tx store.Store) error {
			return tx.DeleteCollection(ctx, "col_groups_01")
		},
	}
	rename := Changeset{
		Version: 1660000200,
		Name:    "rename_groups",
		Up: func(ctx context.Context, tx store.Store) error {
			c, err := tx.FindCollectionByID(ctx, "col_groups_01")
			if err != nil {
				return err
			}
			c.Name = "camp_groups"
			return tx.SaveCollection(ctx, c)
		},
		Down: noop,
	}
	byName := Changeset{
		Version: 1660000300,
		Name:    "reference_by_stale_name",
		Up: func(ctx context.Context, tx store.Store) error {
			_, err := resolve.New(tx).Resolve(ctx, resolve.ByName("groups"))
			return err
		},
		Down: noop,
	}
	byID := Changeset{
		Version: 1660000400,
		Name:    "reference_by_id",
		Up: func(ctx context.Context, tx store.Store) error {
			_, err := resolve.New(tx).Resolve(ctx, resolve.ByID("col_groups_01"))
			return err
		},
		Down: noop,
	}

	err := NewRunner(st, mustRegistry(t, create, rename, byName, byID)).Up(ctx)
	if !sherr.Is(err, sherr.ErrNotFound) {
		t.Fatalf("stale name lookup should fail with ErrNotFound, got %v", err)
	}

	// The run stopped at the stale reference; the by-id changeset never ran.
	entries, _ := st.AppliedVersions(ctx)
	if len(entries) != 2 {
		t.Fatalf("applied = %d, want 2", len(entries))
	}

	// After the author drops the stale changeset, the by-id reference
	// applies cleanly because identifiers survive renames.
	err = NewRunner(st, mustRegistry(t, create, rename, byID)).Up(ctx)
	if err != nil {
		t.Errorf("by-id reference should survive the rename: %v", err)
	}
}
