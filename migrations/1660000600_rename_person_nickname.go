package migrations

import (
	"context"

	"github.com/shoaldb/shoal/internal/migrate"
	"github.com/shoaldb/shoal/internal/schema"
	"github.com/shoaldb/shoal/internal/store"
)

// Renames persons.nickname to display_name. The index on the old name
// has to be rewritten inside the same changeset; leaving it pointing at
// a gone name would fail the dangling-index check.
func init() {
	register(migrate.Changeset{
		Version: 1660000600,
		Name:    "rename_person_nickname",
		Up: func(ctx context.Context, tx store.Store) error {
			c, err := tx.FindCollectionByName(ctx, "persons")
			if err != nil {
				return err
			}
			c, err = schema.RemoveIndexMatching(c, "nickname")
			if err != nil {
				return err
			}
			c, err = schema.RenameField(c, "nickname", "display_name")
			if err != nil {
				return err
			}
			c, err = schema.AddIndex(c, &schema.Index{
				Name:    "idx_persons_display_name",
				Columns: []string{"display_name"},
			})
			if err != nil {
				return err
			}
			return tx.SaveCollection(ctx, c)
		},
		Down: func(ctx context.Context, tx store.Store) error {
			c, err := tx.FindCollectionByName(ctx, "persons")
			if err != nil {
				return err
			}
			c, err = schema.RemoveIndexMatching(c, "display_name")
			if err != nil {
				return err
			}
			c, err = schema.RenameField(c, "display_name", "nickname")
			if err != nil {
				return err
			}
			c, err = schema.AddIndex(c, &schema.Index{
				Name:    "idx_persons_nickname",
				Columns: []string{"nickname"},
			})
			if err != nil {
				return err
			}
			return tx.SaveCollection(ctx, c)
		},
	})
}
