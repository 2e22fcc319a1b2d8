package migrations

import (
	"github.com/shoaldb/shoal/internal/migrate"
	"github.com/shoaldb/shoal/internal/resolve"
	"github.com/shoaldb/shoal/internal/schema"
)

// Widens the staff roles select: a new permitted value and a higher
// cardinality. The widen replaces the field rather than editing it in
// place: reverting an in-place widen would be a narrowing edit, which the
// store rejects no matter the direction. Replacement keeps the original
// declaration around so the revert restores it under its own identifier.
func init() {
	original := &schema.Field{
		ID: "f_staff_roles", Name: "roles", Type: schema.TypeSelect, Required: true,
		Options: schema.FieldOptions{
			Values:    []string{"counselor", "cook", "lifeguard"},
			MaxSelect: 1,
		},
	}
	widened := &schema.Field{
		ID: "f_staff_roles_v2", Name: "roles", Type: schema.TypeSelect, Required: true,
		Options: schema.FieldOptions{
			Values:    []string{"counselor", "cook", "lifeguard", "nurse"},
			MaxSelect: 2,
		},
	}

	register(migrate.FromDiff(1660000800, "widen_staff_roles",
		migrate.ConvertField{
			Collection: resolve.ByID(StaffID),
			From:       "roles",
			Repl:       widened,
			Original:   original,
		},
	))
}
