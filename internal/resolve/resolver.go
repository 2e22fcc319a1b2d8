// Package resolve maps collection references to concrete stable
// identifiers against a live store.
//
// Two reference strategies coexist deliberately and must never fall back
// to one another:
//
//   - stable identifiers are assigned up front to foundational
//     collections, so any later changeset can reference them without
//     depending on apply order;
//   - name lookup serves collections introduced organically, and imposes
//     a strict ordering dependency: the defining changeset must carry an
//     earlier version token, or resolution fails.
package resolve

import (
	"context"

	"github.com/shoaldb/shoal/internal/schema"
	"github.com/shoaldb/shoal/internal/sherr"
	"github.com/shoaldb/shoal/internal/store"
)

// Ref is a reference to a collection: either a pre-declared stable
// identifier or a live name. Exactly one side is set.
type Ref struct {
	ID   string
	Name string
}

// ByID builds a stable-identifier reference.
func ByID(id string) Ref { return Ref{ID: id} }

// ByName builds a name reference.
func ByName(name string) Ref { return Ref{Name: name} }

// String returns the reference in display form.
func (r Ref) String() string {
	if r.ID != "" {
		return "id:" + r.ID
	}
	return "name:" + r.Name
}

// Resolver resolves references against a store handle. It is cheap to
// construct; changesets build one over their transaction-scoped store so
// lookups see the effects of earlier work in the same batch.
type Resolver struct {
	st store.Store
}

// New creates a resolver over the given store handle.
func New(st store.Store) *Resolver {
	return &Resolver{st: st}
}

// Resolve returns the identifier of the referenced collection, using
// whichever strategy the reference declares. There is no silent fallback
// between the two paths: a dead identifier never retries by name and a
// stale name never guesses an identifier.
func (r *Resolver) Resolve(ctx context.Context, ref Ref) (string, error) {
	switch {
	case ref.ID != "" && ref.Name != "":
		return "", sherr.New(sherr.ErrDefinition, "reference declares both an identifier and a name").
			With("ref", ref.String())
	case ref.ID != "":
		c, err := r.CollectionByID(ctx, ref.ID)
		if err != nil {
			return "", err
		}
		return c.ID, nil
	case ref.Name != "":
		c, err := r.CollectionByName(ctx, ref.Name)
		if err != nil {
			return "", err
		}
		return c.ID, nil
	default:
		return "", sherr.New(sherr.ErrDefinition, "empty collection reference")
	}
}

// CollectionByID returns the collection with the given stable identifier.
// A miss is a hard resolution failure of the enclosing changeset.
func (r *Resolver) CollectionByID(ctx context.Context, id string) (*schema.Collection, error) {
	c, err := r.st.FindCollectionByID(ctx, id)
	if err != nil {
		if sherr.Is(err, sherr.ErrNotFound) {
			return nil, sherr.New(sherr.ErrNotFound, "referenced collection not found").
				With("id", id).
				WithHelp("the declaring changeset must be applied first")
		}
		return nil, err
	}
	return c, nil
}

// CollectionByName returns the live collection with the given name. The
// referent must already exist in the store at the moment of resolution;
// a miss means a dependency was reordered or renamed and must surface as
// a failure, never as a null reference.
func (r *Resolver) CollectionByName(ctx context.Context, name string) (*schema.Collection, error) {
	c, err := r.st.FindCollectionByName(ctx, name)
	if err != nil {
		if sherr.Is(err, sherr.ErrNotFound) {
			return nil, sherr.New(sherr.ErrNotFound, "referenced collection not found").
				WithCollection(name).
				WithHelp("the changeset that creates this collection must carry an earlier version token")
		}
		return nil, err
	}
	return c, nil
}

// Relation resolves ref and returns a relation field targeting it. This
// is the common authoring path: the target is pinned to its identifier
// at resolution time, so later renames of the referent do not break the
// field.
func (r *Resolver) Relation(ctx context.Context, name string, ref Ref) (*schema.Field, error) {
	targetID, err := r.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &schema.Field{
		ID:   schema.NewID(),
		Name: name,
		Type: schema.TypeRelation,
		Options: schema.FieldOptions{
			CollectionID: targetID,
			MaxSelect:    1,
		},
	}, nil
}
