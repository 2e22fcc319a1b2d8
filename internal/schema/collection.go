// Package schema defines the in-memory model of a collection: its fields,
// indexes, and access rules, plus the pure mutation primitives changesets
// use to evolve it. The package has no storage or ordering concerns; it
// only knows how to validate and transform a single collection value.
package schema

import (
	"strings"

	"github.com/google/uuid"

	"github.com/shoaldb/shoal/internal/sherr"
)

// Collection is a named schema unit, analogous to a table/entity type.
//
// ID is opaque, assigned once and never reused; Name is the mutable human
// handle and must be unique among live collections at any point in time
// (the store enforces the uniqueness, the model enforces immutability by
// never exposing an ID setter past creation).
type Collection struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Fields  []*Field `json:"fields"`
	Indexes []*Index `json:"indexes,omitempty"`

	// Access-rule expressions, stored and transported verbatim.
	// Evaluation is the access-control collaborator's responsibility.
	// nil means "no rule set" which the evaluator treats as locked down.
	ListRule   *string `json:"listRule,omitempty"`
	ViewRule   *string `json:"viewRule,omitempty"`
	CreateRule *string `json:"createRule,omitempty"`
	UpdateRule *string `json:"updateRule,omitempty"`
	DeleteRule *string `json:"deleteRule,omitempty"`

	// Free-form options carried through unchanged.
	Options map[string]any `json:"options,omitempty"`
}

// Index is a named constraint over one or more field names of a single
// collection. Uniqueness is a property of the index, not of the fields.
// Column order is significant: the underlying index engine may be
// order-sensitive for partial-match queries.
type Index struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique,omitempty"`
}

// Validate checks the index definition in isolation (no field existence
// check; that needs the owning collection, see Collection.Validate).
func (i *Index) Validate() error {
	if i.Name == "" {
		return sherr.New(sherr.ErrDefinition, "index name is required")
	}
	if len(i.Columns) == 0 {
		return sherr.New(sherr.ErrDefinition, "index must have at least one column").
			With("index", i.Name)
	}
	return nil
}

// Clone returns a deep copy of the index.
func (i *Index) Clone() *Index {
	dup := *i
	dup.Columns = append([]string(nil), i.Columns...)
	return &dup
}

// Equal reports whether two index definitions are identical, including
// column order.
func (i *Index) Equal(other *Index) bool {
	if i == nil || other == nil {
		return i == other
	}
	return i.Name == other.Name &&
		i.Unique == other.Unique &&
		stringsEqual(i.Columns, other.Columns)
}

// NewID generates an opaque stable identifier for a collection or field.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:15]
}

// NewCollection creates a collection with a fresh stable identifier.
func NewCollection(name string) *Collection {
	return &Collection{ID: NewID(), Name: name}
}

// NewCollectionWithID creates a collection with a pre-declared stable
// identifier. Foundational collections use this so later changesets can
// reference them without depending on apply order.
func NewCollectionWithID(id, name string) *Collection {
	return &Collection{ID: id, Name: name}
}

// FieldByID returns the field with the given stable identifier, or nil.
func (c *Collection) FieldByID(id string) *Field {
	for _, f := range c.Fields {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// FieldByName returns the field with the given name, or nil.
func (c *Collection) FieldByName(name string) *Field {
	for _, f := range c.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// IndexByName returns the index with the given name, or nil.
func (c *Collection) IndexByName(name string) *Index {
	for _, idx := range c.Indexes {
		if idx.Name == name {
			return idx
		}
	}
	return nil
}

// Clone returns a deep copy of the collection. Mutation primitives clone
// before touching anything so the old state stays intact.
func (c *Collection) Clone() *Collection {
	dup := *c
	dup.Fields = make([]*Field, len(c.Fields))
	for i, f := range c.Fields {
		dup.Fields[i] = f.Clone()
	}
	dup.Indexes = make([]*Index, len(c.Indexes))
	for i, idx := range c.Indexes {
		dup.Indexes[i] = idx.Clone()
	}
	dup.ListRule = cloneRule(c.ListRule)
	dup.ViewRule = cloneRule(c.ViewRule)
	dup.CreateRule = cloneRule(c.CreateRule)
	dup.UpdateRule = cloneRule(c.UpdateRule)
	dup.DeleteRule = cloneRule(c.DeleteRule)
	if c.Options != nil {
		dup.Options = make(map[string]any, len(c.Options))
		for k, v := range c.Options {
			dup.Options[k] = v
		}
	}
	return &dup
}

func cloneRule(r *string) *string {
	if r == nil {
		return nil
	}
	v := *r
	return &v
}

// Validate checks the collection's own invariants: identifier and name
// present, field declarations well-formed, no duplicate field names or
// IDs, and every index column naming an existing field. A dangling index
// reference is a definition error, not a runtime surprise.
func (c *Collection) Validate() error {
	if c.ID == "" {
		return sherr.New(sherr.ErrDefinition, "collection id is required").
			WithCollection(c.Name)
	}
	if c.Name == "" {
		return sherr.New(sherr.ErrDefinition, "collection name is required")
	}
	if err := ValidateName(c.Name); err != nil {
		return err
	}

	seenNames := make(map[string]bool, len(c.Fields))
	seenIDs := make(map[string]bool, len(c.Fields))
	for _, f := range c.Fields {
		if err := f.Validate(); err != nil {
			return sherr.Wrap(sherr.ErrDefinition, err, "invalid field").
				WithCollection(c.Name).
				WithField(f.Name)
		}
		if seenNames[f.Name] {
			return sherr.New(sherr.ErrDefinition, "duplicate field name").
				WithCollection(c.Name).
				WithField(f.Name)
		}
		if seenIDs[f.ID] {
			return sherr.New(sherr.ErrDefinition, "duplicate field id").
				WithCollection(c.Name).
				With("id", f.ID)
		}
		seenNames[f.Name] = true
		seenIDs[f.ID] = true
	}

	seenIdx := make(map[string]bool, len(c.Indexes))
	for _, idx := range c.Indexes {
		if err := idx.Validate(); err != nil {
			return err
		}
		if seenIdx[idx.Name] {
			return sherr.New(sherr.ErrDefinition, "duplicate index name").
				WithCollection(c.Name).
				With("index", idx.Name)
		}
		seenIdx[idx.Name] = true
		for _, col := range idx.Columns {
			if !seenNames[col] {
				return sherr.New(sherr.ErrDanglingIndex, "index references unknown field").
					WithCollection(c.Name).
					With("index", idx.Name).
					WithField(col).
					WithHelp("drop or rewrite the index in the same changeset that renames or removes the field")
			}
		}
	}

	return nil
}

// Equal reports whether two collection states are identical
// field-for-field and index-for-index. Rules and options are compared
// verbatim. Used by round-trip tests.
func (c *Collection) Equal(other *Collection) bool {
	if c == nil || other == nil {
		return c == other
	}
	if c.ID != other.ID || c.Name != other.Name {
		return false
	}
	if len(c.Fields) != len(other.Fields) || len(c.Indexes) != len(other.Indexes) {
		return false
	}
	for i := range c.Fields {
		if !c.Fields[i].Equal(other.Fields[i]) {
			return false
		}
	}
	for i := range c.Indexes {
		if !c.Indexes[i].Equal(other.Indexes[i]) {
			return false
		}
	}
	return ruleEqual(c.ListRule, other.ListRule) &&
		ruleEqual(c.ViewRule, other.ViewRule) &&
		ruleEqual(c.CreateRule, other.CreateRule) &&
		ruleEqual(c.UpdateRule, other.UpdateRule) &&
		ruleEqual(c.DeleteRule, other.DeleteRule)
}

func ruleEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
