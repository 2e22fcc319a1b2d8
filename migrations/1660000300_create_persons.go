package migrations

import (
	"context"

	"github.com/shoaldb/shoal/internal/migrate"
	"github.com/shoaldb/shoal/internal/schema"
	"github.com/shoaldb/shoal/internal/sherr"
	"github.com/shoaldb/shoal/internal/store"
)

// persons is created organically, without a pre-declared identifier.
// Later changesets reach it by live name, which ties them to this
// changeset's version token ordering.
func init() {
	max64 := 64.0

	register(migrate.Changeset{
		Version: 1660000300,
		Name:    "create_persons",
		Up: func(ctx context.Context, tx store.Store) error {
			persons := schema.NewCollection("persons")
			persons.Fields = []*schema.Field{
				{ID: "f_person_full_name", Name: "full_name", Type: schema.TypeText, Required: true, Presentable: true},
				{
					ID: "f_person_nickname", Name: "nickname", Type: schema.TypeText,
					Options: schema.FieldOptions{Max: &max64},
				},
				{ID: "f_person_birthdate", Name: "birthdate", Type: schema.TypeDate},
				{ID: "f_person_allergies", Name: "allergies", Type: schema.TypeJSON},
			}
			persons.Indexes = []*schema.Index{
				{Name: "idx_persons_nickname", Columns: []string{"nickname"}},
			}
			return tx.SaveCollection(ctx, persons)
		},
		Down: func(ctx context.Context, tx store.Store) error {
			c, err := tx.FindCollectionByName(ctx, "persons")
			if err != nil {
				if sherr.Is(err, sherr.ErrNotFound) {
					return nil
				}
				return err
			}
			return tx.DeleteCollection(ctx, c.ID)
		},
	})
}
