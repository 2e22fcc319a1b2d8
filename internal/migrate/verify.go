package migrate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/cbergoon/merkletree"

	"github.com/shoaldb/shoal/internal/sherr"
	"github.com/shoaldb/shoal/internal/store"
)

// Verification is the result of checking the ledger against the
// changeset repository. The root hash is a compact fingerprint of the
// applied sequence; two stores with the same root have applied the same
// changesets in the same order.
type Verification struct {
	Root       string
	Applied    int
	Unapplied  []int64 // registered but not applied
	Unknown    []int64 // applied but not registered
	OutOfOrder []int64 // applied versions newer ledger entries precede
}

// OK reports whether the ledger and the repository agree.
func (v *Verification) OK() bool {
	return len(v.Unknown) == 0 && len(v.OutOfOrder) == 0
}

// entryContent implements merkletree.Content for one ledger entry.
type entryContent struct {
	hash string
}

func (e entryContent) CalculateHash() ([]byte, error) {
	h := sha256.Sum256([]byte(e.hash))
	return h[:], nil
}

func (e entryContent) Equals(other merkletree.Content) (bool, error) {
	o, ok := other.(entryContent)
	if !ok {
		return false, nil
	}
	return e.hash == o.hash, nil
}

// Verify checks the runner's store against the registry and fingerprints
// the applied sequence.
func (r *Runner) Verify(ctx context.Context) (*Verification, error) {
	applied, err := r.st.AppliedVersions(ctx)
	if err != nil {
		return nil, err
	}
	return VerifyLedger(r.reg, applied)
}

// VerifyLedger cross-checks ledger entries against registered changesets
// and computes the merkle root over the applied sequence.
//
// An applied version with no registered changeset means the store ran
// ahead of this repository checkout, or a changeset file was deleted
// after applying. Either way a rollback through that version is
// impossible, so it is surfaced rather than ignored.
func VerifyLedger(reg *Registry, applied []store.LedgerEntry) (*Verification, error) {
	v := &Verification{Applied: len(applied)}

	appliedSet := make(map[int64]bool, len(applied))
	var prev int64
	for _, e := range applied {
		appliedSet[e.Version] = true
		if e.Version < prev {
			v.OutOfOrder = append(v.OutOfOrder, e.Version)
		}
		prev = e.Version
	}
	for _, cs := range reg.Ordered() {
		if !appliedSet[cs.Version] {
			v.Unapplied = append(v.Unapplied, cs.Version)
		}
	}
	for _, e := range applied {
		if _, ok := reg.ByVersion(e.Version); !ok {
			v.Unknown = append(v.Unknown, e.Version)
		}
	}
	sort.Slice(v.Unapplied, func(i, j int) bool { return v.Unapplied[i] < v.Unapplied[j] })
	sort.Slice(v.Unknown, func(i, j int) bool { return v.Unknown[i] < v.Unknown[j] })

	root, err := ledgerRoot(applied)
	if err != nil {
		return nil, err
	}
	v.Root = root
	return v, nil
}

// ledgerRoot builds a merkle tree over the applied entries in version
// order. Timestamps are excluded: the fingerprint covers what applied and
// in what order, not when.
func ledgerRoot(applied []store.LedgerEntry) (string, error) {
	if len(applied) == 0 {
		return emptyRoot(), nil
	}
	entries := make([]store.LedgerEntry, len(applied))
	copy(entries, applied)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Version < entries[j].Version })

	contents := make([]merkletree.Content, 0, len(entries))
	for _, e := range entries {
		contents = append(contents, entryContent{
			hash: fmt.Sprintf("version:%d|name:%s", e.Version, e.Name),
		})
	}

	tree, err := merkletree.NewTree(contents)
	if err != nil {
		return "", sherr.Wrap(sherr.ErrLedger, err, "failed to fingerprint the ledger")
	}
	return hex.EncodeToString(tree.MerkleRoot()), nil
}

func emptyRoot() string {
	h := sha256.Sum256([]byte("empty_ledger"))
	return hex.EncodeToString(h[:])
}

// String renders the verification for display.
func (v *Verification) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "root: %s\napplied: %d", v.Root, v.Applied)
	if len(v.Unapplied) > 0 {
		fmt.Fprintf(&b, "\nunapplied: %v", v.Unapplied)
	}
	if len(v.Unknown) > 0 {
		fmt.Fprintf(&b, "\nunknown: %v", v.Unknown)
	}
	if len(v.OutOfOrder) > 0 {
		fmt.Fprintf(&b, "\nout of order: %v", v.OutOfOrder)
	}
	return b.String()
}
