package migrations

import (
	"context"

	"github.com/shoaldb/shoal/internal/migrate"
	"github.com/shoaldb/shoal/internal/schema"
	"github.com/shoaldb/shoal/internal/store"
)

// Removes the display name from persons. Removal goes through the stable
// identifier assigned at creation, not the current name: the field has
// been renamed since, and identifier removal does not care. The index on
// it is dropped in the same changeset.
func init() {
	max64 := 64.0
	removed := &schema.Field{
		ID: "f_person_nickname", Name: "display_name", Type: schema.TypeText,
		Options: schema.FieldOptions{Max: &max64},
	}

	register(migrate.Changeset{
		Version: 1660001000,
		Name:    "remove_person_display_name",
		Up: func(ctx context.Context, tx store.Store) error {
			c, err := tx.FindCollectionByName(ctx, "persons")
			if err != nil {
				return err
			}
			c, err = schema.RemoveIndexMatching(c, "display_name")
			if err != nil {
				return err
			}
			c, err = schema.RemoveFieldByID(c, removed.ID)
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
			c, err = schema.AddField(c, removed.Clone())
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
	})
}
