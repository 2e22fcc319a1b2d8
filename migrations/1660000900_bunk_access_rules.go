package migrations

import (
	"context"

	"github.com/shoaldb/shoal/internal/migrate"
	"github.com/shoaldb/shoal/internal/store"
)

// Opens bunks up for listing and viewing by staff. Rule expressions are
// stored verbatim; evaluating them is the access-control layer's job. A
// nil rule means locked down, which is what the revert restores.
func init() {
	listRule := `@request.auth.collection = "staff"`
	viewRule := `@request.auth.collection = "staff"`

	register(migrate.Changeset{
		Version: 1660000900,
		Name:    "bunk_access_rules",
		Up: func(ctx context.Context, tx store.Store) error {
			c, err := tx.FindCollectionByID(ctx, BunksID)
			if err != nil {
				return err
			}
			c.ListRule = &listRule
			c.ViewRule = &viewRule
			return tx.SaveCollection(ctx, c)
		},
		Down: func(ctx context.Context, tx store.Store) error {
			c, err := tx.FindCollectionByID(ctx, BunksID)
			if err != nil {
				return err
			}
			c.ListRule = nil
			c.ViewRule = nil
			return tx.SaveCollection(ctx, c)
		},
	})
}
