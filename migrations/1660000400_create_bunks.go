package migrations

import (
	"context"

	"github.com/shoaldb/shoal/internal/migrate"
	"github.com/shoaldb/shoal/internal/resolve"
	"github.com/shoaldb/shoal/internal/schema"
	"github.com/shoaldb/shoal/internal/store"
)

func init() {
	min1 := 1.0

	register(migrate.Changeset{
		Version: 1660000400,
		Name:    "create_bunks",
		Up: func(ctx context.Context, tx store.Store) error {
			// Pinned to the groups identifier, so this changeset keeps
			// working no matter what groups is called by the time it runs.
			groupRel, err := resolve.New(tx).Relation(ctx, "group", resolve.ByID(GroupsID))
			if err != nil {
				return err
			}
			groupRel.ID = "f_bunk_group"
			groupRel.Required = true

			bunks := &schema.Collection{
				ID:   BunksID,
				Name: "bunks",
				Fields: []*schema.Field{
					{ID: "f_bunk_label", Name: "label", Type: schema.TypeText, Required: true, Presentable: true},
					{
						ID: "f_bunk_beds", Name: "beds", Type: schema.TypeNumber,
						Options: schema.FieldOptions{Min: &min1, OnlyInt: true},
					},
					groupRel,
				},
				Indexes: []*schema.Index{
					{Name: "idx_bunks_label", Columns: []string{"label"}, Unique: true},
				},
			}
			return tx.SaveCollection(ctx, bunks)
		},
		Down: func(ctx context.Context, tx store.Store) error {
			return tx.DeleteCollection(ctx, BunksID)
		},
	})
}
