package migrations

import (
	"context"

	"github.com/shoaldb/shoal/internal/migrate"
	"github.com/shoaldb/shoal/internal/resolve"
	"github.com/shoaldb/shoal/internal/schema"
	"github.com/shoaldb/shoal/internal/store"
)

// Converts the sessions.group_id scalar into a real relation targeting
// groups. The original declaration is restored on revert; row values
// written under the relation shape are not reconstructed, and backfilling
// the relation from the old scalar is a data-migration concern outside
// this changeset.
func init() {
	originalGroupID := &schema.Field{
		ID: "f_session_group_id", Name: "group_id", Type: schema.TypeNumber,
		Options: schema.FieldOptions{OnlyInt: true},
	}
	const replID = "f_session_group_rel"

	register(migrate.Changeset{
		Version: 1660000700,
		Name:    "convert_session_group",
		Up: func(ctx context.Context, tx store.Store) error {
			rel, err := resolve.New(tx).Relation(ctx, "session_group", resolve.ByID(GroupsID))
			if err != nil {
				return err
			}
			rel.ID = replID

			c, err := tx.FindCollectionByID(ctx, SessionsID)
			if err != nil {
				return err
			}
			c, _, err = schema.ConvertField(c, "group_id", rel)
			if err != nil {
				return err
			}
			return tx.SaveCollection(ctx, c)
		},
		Down: func(ctx context.Context, tx store.Store) error {
			c, err := tx.FindCollectionByID(ctx, SessionsID)
			if err != nil {
				return err
			}
			c, err = schema.RestoreField(c, originalGroupID.Clone(), replID)
			if err != nil {
				return err
			}
			return tx.SaveCollection(ctx, c)
		},
	})
}
