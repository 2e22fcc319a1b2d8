// Package compile translates field and index declarations into the
// store's native constraint language and validates type-specific options.
// It is the last gate before a schema change reaches the storage engine:
// anything that passes here is expected to be directly executable.
package compile

import (
	"strings"

	"github.com/shoaldb/shoal/internal/schema"
	"github.com/shoaldb/shoal/internal/sherr"
)

// Field validates a field declaration for compilation. On top of the
// model-level checks it enforces the compile-time invariants: relation
// targets must already be resolved identifiers, and cascade delete is an
// explicit opt-in that is never implied by cardinality.
func Field(f *schema.Field) (*schema.Field, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	out := f.Clone()

	switch out.Type {
	case schema.TypeRelation:
		// MaxSelect 0 means single-select; normalize so widening checks
		// compare like with like.
		if out.Options.MaxSelect == 0 {
			out.Options.MaxSelect = 1
		}
	case schema.TypeSelect:
		if out.Options.MaxSelect == 0 {
			out.Options.MaxSelect = 1
		}
	}
	return out, nil
}

// Index renders an index declaration into the store's constraint
// expression. Composite uniqueness is a single multi-column index, and
// column order is preserved verbatim: the index engine may be
// order-sensitive for partial-match queries.
func Index(idx *schema.Index, c *schema.Collection) (string, error) {
	if err := idx.Validate(); err != nil {
		return "", err
	}
	for _, col := range idx.Columns {
		if c.FieldByName(col) == nil {
			return "", sherr.New(sherr.ErrDanglingIndex, "index references unknown field").
				WithCollection(c.Name).
				With("index", idx.Name).
				WithField(col)
		}
	}

	var b strings.Builder
	b.WriteString("CREATE ")
	if idx.Unique {
		b.WriteString("UNIQUE ")
	}
	b.WriteString("INDEX ")
	b.WriteString(quoteIdent(idx.Name))
	b.WriteString(" ON ")
	b.WriteString(quoteIdent(c.Name))
	b.WriteString(" (")
	for i, col := range idx.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteIdent(col))
	}
	b.WriteString(")")
	return b.String(), nil
}

// Collection compiles every field and index of a collection, returning
// the rendered index expressions in declaration order.
func Collection(c *schema.Collection) ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	for _, f := range c.Fields {
		if _, err := Field(f); err != nil {
			return nil, sherr.Wrap(sherr.ErrConstraint, err, "field failed to compile").
				WithCollection(c.Name).
				WithField(f.Name)
		}
	}
	exprs := make([]string, 0, len(c.Indexes))
	for _, idx := range c.Indexes {
		expr, err := Index(idx, c)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
	}
	return exprs, nil
}

// CheckEvolution validates that replacing old with next is a safe,
// non-breaking change for existing data:
//
//   - widening a select value set or raising a selection cap is fine;
//   - removing a permitted value or lowering the cap could orphan stored
//     rows and is rejected;
//   - changing the field's type is always rejected here — that path goes
//     through the explicit convert primitive, which captures the original
//     declaration for the backward transformation.
//
// The engine cannot see row data, so narrowing is refused outright rather
// than probed; proving compatibility is an out-of-band operator decision.
func CheckEvolution(old, next *schema.Field) error {
	if old.ID != next.ID {
		return sherr.New(sherr.ErrConstraint, "field identity cannot change").
			WithField(old.Name).
			With("old_id", old.ID).
			With("new_id", next.ID)
	}
	if old.Type != next.Type {
		return sherr.New(sherr.ErrConstraint, "field type cannot change in place").
			WithField(old.Name).
			With("old_type", string(old.Type)).
			With("new_type", string(next.Type)).
			WithHelp("convert the field instead, so the original declaration is preserved for rollback")
	}

	switch old.Type {
	case schema.TypeSelect:
		for _, v := range old.Options.Values {
			if !containsString(next.Options.Values, v) {
				return sherr.New(sherr.ErrNarrowing, "select value removed while existing rows may use it").
					WithField(old.Name).
					With("value", v)
			}
		}
		if effectiveMax(next.Options.MaxSelect) < effectiveMax(old.Options.MaxSelect) {
			return narrowingErr(old, next)
		}
	case schema.TypeRelation:
		if next.Options.CollectionID != old.Options.CollectionID {
			return sherr.New(sherr.ErrConstraint, "relation target cannot change in place").
				WithField(old.Name)
		}
		if effectiveMax(next.Options.MaxSelect) < effectiveMax(old.Options.MaxSelect) {
			return narrowingErr(old, next)
		}
	}
	return nil
}

func narrowingErr(old, next *schema.Field) error {
	return sherr.New(sherr.ErrNarrowing, "cardinality narrowed; existing rows may exceed the new cap").
		WithField(old.Name).
		With("old_max", effectiveMax(old.Options.MaxSelect)).
		With("new_max", effectiveMax(next.Options.MaxSelect))
}

// effectiveMax treats 0 as single-select.
func effectiveMax(v int) int {
	if v == 0 {
		return 1
	}
	return v
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

// quoteIdent quotes an identifier for the constraint expression.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
