// Package store defines the persisted store handle changesets run
// against: collection lookup and persistence plus the applied-changeset
// ledger. Two implementations ship: a database-backed store (sqlite or
// postgres) and an in-memory store for tests and dry runs.
package store

import (
	"context"
	"time"

	"github.com/shoaldb/shoal/internal/compile"
	"github.com/shoaldb/shoal/internal/schema"
	"github.com/shoaldb/shoal/internal/sherr"
)

// LedgerEntry records one applied changeset. Created when the forward
// transformation succeeds, deleted when the backward one does. The ledger
// is the single source of truth for "did this apply".
type LedgerEntry struct {
	Version   int64
	Name      string
	AppliedAt time.Time
}

// Store is the handle passed into every changeset invocation. All
// operations are synchronous and, inside a transaction, atomic with the
// enclosing changeset.
type Store interface {
	FindCollectionByID(ctx context.Context, id string) (*schema.Collection, error)
	FindCollectionByName(ctx context.Context, name string) (*schema.Collection, error)
	SaveCollection(ctx context.Context, c *schema.Collection) error
	DeleteCollection(ctx context.Context, id string) error
	Collections(ctx context.Context) ([]*schema.Collection, error)

	AppliedVersions(ctx context.Context) ([]LedgerEntry, error)
	RecordApplied(ctx context.Context, entry LedgerEntry) error
	RecordReverted(ctx context.Context, version int64) error
}

// TxStore is a Store that can scope work to a single atomic unit. The
// runner wraps every changeset in one transaction: either all of its
// schema mutations and the ledger write land, or none do.
type TxStore interface {
	Store
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error
}

// validateSave runs the shared save-time invariants for both store
// implementations: the collection compiles, its identifier is immutable,
// surviving fields evolve without narrowing, and its name is unique among
// live collections.
func validateSave(c *schema.Collection, old *schema.Collection, byName *schema.Collection) error {
	if _, err := compile.Collection(c); err != nil {
		return err
	}
	if old != nil {
		for _, f := range c.Fields {
			prev := old.FieldByID(f.ID)
			if prev == nil {
				continue
			}
			if err := compile.CheckEvolution(prev, f); err != nil {
				return err
			}
		}
	}
	if byName != nil && byName.ID != c.ID {
		return sherr.New(sherr.ErrConstraint, "collection name already in use").
			WithCollection(c.Name).
			With("existing_id", byName.ID)
	}
	return nil
}

// checkDeleteRefs refuses to delete a collection that another live
// collection's relation field still targets. Dropping the referent would
// break referential integrity across changeset boundaries.
func checkDeleteRefs(id string, all []*schema.Collection) error {
	for _, c := range all {
		if c.ID == id {
			continue
		}
		for _, f := range c.Fields {
			if f.Type == schema.TypeRelation && f.Options.CollectionID == id {
				return sherr.New(sherr.ErrConstraint, "collection is still referenced by a relation field").
					With("target", id).
					WithCollection(c.Name).
					WithField(f.Name)
			}
		}
	}
	return nil
}
