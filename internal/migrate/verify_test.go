package migrate

import (
	"context"
	"testing"

	"github.com/shoaldb/shoal/internal/store"
)

func TestVerifyLedger_CleanState(t *testing.T) {
	reg := mustRegistry(t,
		Changeset{Version: 1660000100, Name: "a", Up: noop, Down: noop},
		Changeset{Version: 1660000200, Name: "b", Up: noop, Down: noop},
	)
	applied := []store.LedgerEntry{
		{Version: 1660000100, Name: "a"},
		{Version: 1660000200, Name: "b"},
	}

	v, err := VerifyLedger(reg, applied)
	if err != nil {
		t.Fatal(err)
	}
	if !v.OK() {
		t.Errorf("clean state should verify: %s", v)
	}
	if v.Applied != 2 {
		t.Errorf("Applied = %d", v.Applied)
	}
	if v.Root == "" {
		t.Error("root hash missing")
	}
}

func TestVerifyLedger_UnknownVersion(t *testing.T) {
	reg := mustRegistry(t,
		Changeset{Version: 1660000100, Name: "a", Up: noop, Down: noop},
	)
	applied := []store.LedgerEntry{
		{Version: 1660000100, Name: "a"},
		{Version: 1660000150, Name: "deleted_changeset"},
	}

	v, err := VerifyLedger(reg, applied)
	if err != nil {
		t.Fatal(err)
	}
	if v.OK() {
		t.Fatal("unknown applied version should fail verification")
	}
	if len(v.Unknown) != 1 || v.Unknown[0] != 1660000150 {
		t.Errorf("Unknown = %v", v.Unknown)
	}
}

func TestVerifyLedger_Unapplied(t *testing.T) {
	reg := mustRegistry(t,
		Changeset{Version: 1660000100, Name: "a", Up: noop, Down: noop},
		Changeset{Version: 1660000200, Name: "b", Up: noop, Down: noop},
	)
	applied := []store.LedgerEntry{{Version: 1660000100, Name: "a"}}

	v, err := VerifyLedger(reg, applied)
	if err != nil {
		t.Fatal(err)
	}
	// Pending work is not divergence.
	if !v.OK() {
		t.Errorf("pending changesets should still verify: %s", v)
	}
	if len(v.Unapplied) != 1 || v.Unapplied[0] != 1660000200 {
		t.Errorf("Unapplied = %v", v.Unapplied)
	}
}

// Two stores that applied the same sequence fingerprint identically, and
// any divergence in versions or names changes the root.
func TestVerifyLedger_RootIsSequenceFingerprint(t *testing.T) {
	reg := mustRegistry(t,
		Changeset{Version: 1660000100, Name: "a", Up: noop, Down: noop},
		Changeset{Version: 1660000200, Name: "b", Up: noop, Down: noop},
	)
	seq := []store.LedgerEntry{
		{Version: 1660000100, Name: "a"},
		{Version: 1660000200, Name: "b"},
	}

	v1, err := VerifyLedger(reg, seq)
	if err != nil {
		t.Fatal(err)
	}
	v2, err := VerifyLedger(reg, seq)
	if err != nil {
		t.Fatal(err)
	}
	if v1.Root != v2.Root {
		t.Error("identical sequences must share a root")
	}

	divergent, err := VerifyLedger(reg, seq[:1])
	if err != nil {
		t.Fatal(err)
	}
	if divergent.Root == v1.Root {
		t.Error("different sequences must not share a root")
	}

	empty, err := VerifyLedger(reg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if empty.Root == "" || empty.Root == v1.Root {
		t.Error("empty ledger needs its own stable root")
	}
}

func TestRunner_Verify(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	reg := mustRegistry(t,
		Changeset{Version: 1660000100, Name: "a", Up: noop, Down: noop},
	)
	r := NewRunner(st, reg)
	if err := r.Up(ctx); err != nil {
		t.Fatal(err)
	}

	v, err := r.Verify(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !v.OK() || v.Applied != 1 {
		t.Errorf("verification = %+v", v)
	}
}
