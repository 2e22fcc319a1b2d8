package schema

import (
	"strings"

	"github.com/shoaldb/shoal/internal/sherr"
)

// Mutation primitives. Each takes the old state, returns a new state, and
// never touches the input. Each is idempotent when reapplied to a state
// where its effect is already present, so a retried partial apply is safe.

// AddField returns a new collection state with f appended.
//
// Re-adding a field that already exists by identifier is a no-op. A field
// with a different identifier but a clashing name is a constraint error.
func AddField(c *Collection, f *Field) (*Collection, error) {
	if existing := c.FieldByID(f.ID); existing != nil {
		return c.Clone(), nil
	}
	if existing := c.FieldByName(f.Name); existing != nil {
		return nil, sherr.New(sherr.ErrConstraint, "field name already in use").
			WithCollection(c.Name).
			WithField(f.Name).
			With("existing_id", existing.ID)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	out := c.Clone()
	out.Fields = append(out.Fields, f.Clone())
	return out, nil
}

// RemoveFieldByID returns a new collection state without the field that
// carries the given stable identifier. Removing an absent field is a
// no-op. Identifier removal is safe across renames.
func RemoveFieldByID(c *Collection, id string) (*Collection, error) {
	out := c.Clone()
	kept := out.Fields[:0]
	var removed *Field
	for _, f := range out.Fields {
		if f.ID == id {
			removed = f
			continue
		}
		kept = append(kept, f)
	}
	out.Fields = kept
	if removed != nil {
		if err := checkIndexesAfterRemoval(out, removed.Name); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// RemoveFieldByName resolves the name to a stable identifier at call time
// and removes by identifier. If the name does not match a live field the
// lookup fails with a resolution error: the field may have been renamed
// by an intervening changeset, and silently missing it would leave the
// schema in a state the author did not intend.
func RemoveFieldByName(c *Collection, name string) (*Collection, error) {
	f := c.FieldByName(name)
	if f == nil {
		return nil, sherr.New(sherr.ErrStaleName, "no field with this name").
			WithCollection(c.Name).
			WithField(name).
			WithHelp("the field may have been renamed; remove by stable identifier instead")
	}
	return RemoveFieldByID(c, f.ID)
}

// RenameField returns a new state with the field known as oldName renamed
// to newName. If oldName is gone but newName is already live, the rename
// is treated as already applied.
func RenameField(c *Collection, oldName, newName string) (*Collection, error) {
	if err := ValidateName(newName); err != nil {
		return nil, err
	}
	f := c.FieldByName(oldName)
	if f == nil {
		if c.FieldByName(newName) != nil {
			return c.Clone(), nil
		}
		return nil, sherr.New(sherr.ErrStaleName, "no field with this name").
			WithCollection(c.Name).
			WithField(oldName)
	}
	if clash := c.FieldByName(newName); clash != nil && clash.ID != f.ID {
		return nil, sherr.New(sherr.ErrConstraint, "target field name already in use").
			WithCollection(c.Name).
			WithField(newName)
	}
	out := c.Clone()
	out.FieldByID(f.ID).Name = newName
	if err := checkIndexesAfterRemoval(out, oldName); err != nil {
		return nil, err
	}
	return out, nil
}

// checkIndexesAfterRemoval enforces the dangling-index invariant: any
// index still referencing the removed or renamed field name must have
// been dropped or rewritten within the same changeset.
func checkIndexesAfterRemoval(c *Collection, fieldName string) error {
	for _, idx := range c.Indexes {
		for _, col := range idx.Columns {
			if col == fieldName {
				return sherr.New(sherr.ErrDanglingIndex, "index still references a removed or renamed field").
					WithCollection(c.Name).
					With("index", idx.Name).
					WithField(fieldName).
					WithHelp("drop or rewrite the index in the same changeset")
			}
		}
	}
	return nil
}

// AddIndex returns a new state with idx appended. Re-adding an index that
// already exists by name is a no-op when the definitions match, and a
// constraint error when they differ.
func AddIndex(c *Collection, idx *Index) (*Collection, error) {
	if err := idx.Validate(); err != nil {
		return nil, err
	}
	if existing := c.IndexByName(idx.Name); existing != nil {
		if existing.Equal(idx) {
			return c.Clone(), nil
		}
		return nil, sherr.New(sherr.ErrConstraint, "index name already in use with a different definition").
			WithCollection(c.Name).
			With("index", idx.Name)
	}
	for _, col := range idx.Columns {
		if c.FieldByName(col) == nil {
			return nil, sherr.New(sherr.ErrDanglingIndex, "index references unknown field").
				WithCollection(c.Name).
				With("index", idx.Name).
				WithField(col)
		}
	}
	out := c.Clone()
	out.Indexes = append(out.Indexes, idx.Clone())
	return out, nil
}

// RemoveIndexByPredicate returns a new state without the indexes matched
// by pred. Removing nothing is a no-op, which keeps the primitive
// idempotent against system-generated index names that may differ
// between environments.
func RemoveIndexByPredicate(c *Collection, pred func(*Index) bool) (*Collection, error) {
	out := c.Clone()
	kept := out.Indexes[:0]
	for _, idx := range out.Indexes {
		if pred(idx) {
			continue
		}
		kept = append(kept, idx)
	}
	out.Indexes = kept
	return out, nil
}

// RemoveIndexMatching removes indexes whose name contains the given
// substring. Index names may be human-chosen or system-generated opaque
// tokens, so substring matching is the practical lookup.
func RemoveIndexMatching(c *Collection, substr string) (*Collection, error) {
	return RemoveIndexByPredicate(c, func(idx *Index) bool {
		return strings.Contains(idx.Name, substr)
	})
}

// ConvertField replaces the field named name with repl, preserving the
// original declaration so the caller's backward transformation can
// restore it bit-for-bit. The forward transformation only changes the
// schema shape; populating repl's values from the old field's data is
// the data-migration collaborator's job.
//
// If name is gone but repl is already live, the conversion is treated as
// already applied and the returned original is nil.
func ConvertField(c *Collection, name string, repl *Field) (*Collection, *Field, error) {
	old := c.FieldByName(name)
	if old == nil {
		if c.FieldByID(repl.ID) != nil {
			return c.Clone(), nil, nil
		}
		return nil, nil, sherr.New(sherr.ErrStaleName, "no field with this name").
			WithCollection(c.Name).
			WithField(name)
	}
	original := old.Clone()

	out, err := RemoveFieldByID(c, old.ID)
	if err != nil {
		return nil, nil, err
	}
	out, err = AddField(out, repl)
	if err != nil {
		return nil, nil, err
	}
	return out, original, nil
}

// RestoreField re-adds a previously captured field declaration. It is the
// backward half of ConvertField: the original definition comes back
// exactly, though row data populated under the new shape is not
// reconstructed.
func RestoreField(c *Collection, original *Field, replID string) (*Collection, error) {
	out, err := RemoveFieldByID(c, replID)
	if err != nil {
		return nil, err
	}
	return AddField(out, original)
}
