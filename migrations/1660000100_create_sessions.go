package migrations

import (
	"context"

	"github.com/shoaldb/shoal/internal/migrate"
	"github.com/shoaldb/shoal/internal/schema"
	"github.com/shoaldb/shoal/internal/store"
)

func init() {
	min1 := 1.0

	sessions := &schema.Collection{
		ID:   SessionsID,
		Name: "sessions",
		Fields: []*schema.Field{
			{ID: "f_session_title", Name: "title", Type: schema.TypeText, Required: true, Presentable: true},
			{ID: "f_session_starts", Name: "starts_on", Type: schema.TypeDate, Required: true},
			{ID: "f_session_ends", Name: "ends_on", Type: schema.TypeDate, Required: true},
			{
				ID: "f_session_capacity", Name: "capacity", Type: schema.TypeNumber,
				Options: schema.FieldOptions{Min: &min1, OnlyInt: true},
			},
			// Scalar pointer into groups; a later changeset converts this
			// into a proper relation once groups exists.
			{ID: "f_session_group_id", Name: "group_id", Type: schema.TypeNumber, Options: schema.FieldOptions{OnlyInt: true}},
			{ID: "f_session_notes", Name: "notes", Type: schema.TypeJSON},
			{
				ID: "f_session_created", Name: "created", Type: schema.TypeAutodate,
				Options: schema.FieldOptions{OnCreate: true},
			},
		},
		Indexes: []*schema.Index{
			{Name: "idx_sessions_title", Columns: []string{"title"}, Unique: true},
			{Name: "idx_sessions_window", Columns: []string{"starts_on", "ends_on"}},
		},
	}

	register(migrate.Changeset{
		Version: 1660000100,
		Name:    "create_sessions",
		Up: func(ctx context.Context, tx store.Store) error {
			return tx.SaveCollection(ctx, sessions.Clone())
		},
		Down: func(ctx context.Context, tx store.Store) error {
			return tx.DeleteCollection(ctx, SessionsID)
		},
	})
}
