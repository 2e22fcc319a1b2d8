package migrations

import (
	"github.com/shoaldb/shoal/internal/migrate"
	"github.com/shoaldb/shoal/internal/schema"
)

func init() {
	register(migrate.FromDiff(1660000500, "create_staff",
		migrate.CreateCollection{
			Collection: &schema.Collection{
				ID:   StaffID,
				Name: "staff",
				Fields: []*schema.Field{
					{ID: "f_staff_full_name", Name: "full_name", Type: schema.TypeText, Required: true, Presentable: true},
					{
						ID: "f_staff_email", Name: "email", Type: schema.TypeText, Required: true,
						Options: schema.FieldOptions{Pattern: `^[^@\s]+@[^@\s]+$`},
					},
					{
						ID: "f_staff_roles", Name: "roles", Type: schema.TypeSelect, Required: true,
						Options: schema.FieldOptions{
							Values:    []string{"counselor", "cook", "lifeguard"},
							MaxSelect: 1,
						},
					},
					{
						ID: "f_staff_profile_url", Name: "profile_url", Type: schema.TypeURL,
						Options: schema.FieldOptions{ExceptDomains: []string{"example.com"}},
					},
				},
				Indexes: []*schema.Index{
					{Name: "idx_staff_email", Columns: []string{"email"}, Unique: true},
				},
			},
		},
	))
}
