package migrations

import (
	"github.com/shoaldb/shoal/internal/migrate"
	"github.com/shoaldb/shoal/internal/schema"
)

func init() {
	register(migrate.FromDiff(1660000200, "create_groups",
		migrate.CreateCollection{
			Collection: &schema.Collection{
				ID:   GroupsID,
				Name: "groups",
				Fields: []*schema.Field{
					{ID: "f_group_name", Name: "name", Type: schema.TypeText, Required: true, Presentable: true},
					{ID: "f_group_motto", Name: "motto", Type: schema.TypeText},
				},
				Indexes: []*schema.Index{
					{Name: "idx_groups_name", Columns: []string{"name"}, Unique: true},
				},
			},
		},
	))
}
