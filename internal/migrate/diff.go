package migrate

import (
	"context"

	"github.com/shoaldb/shoal/internal/resolve"
	"github.com/shoaldb/shoal/internal/schema"
	"github.com/shoaldb/shoal/internal/sherr"
	"github.com/shoaldb/shoal/internal/store"
)

// Op is one schema operation whose backward transformation is derivable
// from its declaration alone. Ops carry everything the reversal needs in
// their own fields, so the derived Down works in a fresh process with no
// memory of the forward run.
type Op interface {
	Apply(ctx context.Context, tx store.Store) error
	Revert(ctx context.Context, tx store.Store) error
}

// FromDiff builds a changeset from a sequence of ops. Up applies them in
// declaration order; the derived Down reverts them in reverse order.
//
// Hand-written Up/Down pairs stay the escape hatch for anything the op
// vocabulary cannot express, data backfills in particular.
func FromDiff(version int64, name string, ops ...Op) Changeset {
	return Changeset{
		Version: version,
		Name:    name,
		Up: func(ctx context.Context, tx store.Store) error {
			for _, op := range ops {
				if err := op.Apply(ctx, tx); err != nil {
					return err
				}
			}
			return nil
		},
		Down: func(ctx context.Context, tx store.Store) error {
			for i := len(ops) - 1; i >= 0; i-- {
				if err := ops[i].Revert(ctx, tx); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// CreateCollection creates the declared collection. Reverts by dropping
// it.
type CreateCollection struct {
	Collection *schema.Collection
}

func (op CreateCollection) Apply(ctx context.Context, tx store.Store) error {
	existing, err := tx.FindCollectionByID(ctx, op.Collection.ID)
	if err != nil && !sherr.Is(err, sherr.ErrNotFound) {
		return err
	}
	// Reapplying an identical create is a no-op, matching the field-level
	// mutation primitives.
	if existing != nil {
		if existing.Equal(op.Collection) {
			return nil
		}
		return sherr.New(sherr.ErrConstraint, "collection identifier already in use with a different definition").
			WithCollection(op.Collection.Name).
			With("id", op.Collection.ID)
	}
	return tx.SaveCollection(ctx, op.Collection.Clone())
}

func (op CreateCollection) Revert(ctx context.Context, tx store.Store) error {
	return tx.DeleteCollection(ctx, op.Collection.ID)
}

// DropCollection drops a collection by stable identifier. The declared
// snapshot is what the reversal recreates; row data is gone either way.
type DropCollection struct {
	ID       string
	Snapshot *schema.Collection
}

func (op DropCollection) Apply(ctx context.Context, tx store.Store) error {
	return tx.DeleteCollection(ctx, op.ID)
}

func (op DropCollection) Revert(ctx context.Context, tx store.Store) error {
	if op.Snapshot == nil {
		return sherr.New(sherr.ErrMissingDown, "drop op declares no snapshot to restore").
			With("id", op.ID)
	}
	return tx.SaveCollection(ctx, op.Snapshot.Clone())
}

// AddField adds a field to the referenced collection. Reverts by removing
// the field through its stable identifier, so an intervening rename does
// not break the rollback.
type AddField struct {
	Collection resolve.Ref
	Field      *schema.Field
}

func (op AddField) Apply(ctx context.Context, tx store.Store) error {
	return mutateCollection(ctx, tx, op.Collection, func(c *schema.Collection) (*schema.Collection, error) {
		return schema.AddField(c, op.Field)
	})
}

func (op AddField) Revert(ctx context.Context, tx store.Store) error {
	return mutateCollection(ctx, tx, op.Collection, func(c *schema.Collection) (*schema.Collection, error) {
		return schema.RemoveFieldByID(c, op.Field.ID)
	})
}

// RenameField renames a field. Reverts by renaming back.
type RenameField struct {
	Collection resolve.Ref
	From, To   string
}

func (op RenameField) Apply(ctx context.Context, tx store.Store) error {
	return mutateCollection(ctx, tx, op.Collection, func(c *schema.Collection) (*schema.Collection, error) {
		return schema.RenameField(c, op.From, op.To)
	})
}

func (op RenameField) Revert(ctx context.Context, tx store.Store) error {
	return mutateCollection(ctx, tx, op.Collection, func(c *schema.Collection) (*schema.Collection, error) {
		return schema.RenameField(c, op.To, op.From)
	})
}

// AddIndex adds an index. Reverts by removing it by exact name.
type AddIndex struct {
	Collection resolve.Ref
	Index      *schema.Index
}

func (op AddIndex) Apply(ctx context.Context, tx store.Store) error {
	return mutateCollection(ctx, tx, op.Collection, func(c *schema.Collection) (*schema.Collection, error) {
		return schema.AddIndex(c, op.Index)
	})
}

func (op AddIndex) Revert(ctx context.Context, tx store.Store) error {
	return mutateCollection(ctx, tx, op.Collection, func(c *schema.Collection) (*schema.Collection, error) {
		return schema.RemoveIndexByPredicate(c, func(idx *schema.Index) bool {
			return idx.Name == op.Index.Name
		})
	})
}

// ConvertField replaces the field named From with Repl. The declared
// Original is what the reversal restores; it must match the field's
// declaration at the time the op was authored.
type ConvertField struct {
	Collection resolve.Ref
	From       string
	Repl       *schema.Field
	Original   *schema.Field
}

func (op ConvertField) Apply(ctx context.Context, tx store.Store) error {
	return mutateCollection(ctx, tx, op.Collection, func(c *schema.Collection) (*schema.Collection, error) {
		out, _, err := schema.ConvertField(c, op.From, op.Repl)
		return out, err
	})
}

func (op ConvertField) Revert(ctx context.Context, tx store.Store) error {
	if op.Original == nil {
		return sherr.New(sherr.ErrMissingDown, "convert op declares no original field to restore").
			WithField(op.From)
	}
	return mutateCollection(ctx, tx, op.Collection, func(c *schema.Collection) (*schema.Collection, error) {
		return schema.RestoreField(c, op.Original, op.Repl.ID)
	})
}

// mutateCollection resolves the op's target with the resolver's
// no-fallback discipline, applies fn, and saves the result.
func mutateCollection(ctx context.Context, tx store.Store, ref resolve.Ref, fn func(*schema.Collection) (*schema.Collection, error)) error {
	r := resolve.New(tx)
	var c *schema.Collection
	var err error
	switch {
	case ref.ID != "" && ref.Name != "":
		return sherr.New(sherr.ErrDefinition, "op target declares both an identifier and a name").
			With("ref", ref.String())
	case ref.ID != "":
		c, err = r.CollectionByID(ctx, ref.ID)
	case ref.Name != "":
		c, err = r.CollectionByName(ctx, ref.Name)
	default:
		return sherr.New(sherr.ErrDefinition, "op has no target collection reference")
	}
	if err != nil {
		return err
	}
	next, err := fn(c)
	if err != nil {
		return err
	}
	return tx.SaveCollection(ctx, next)
}
