// Package migrations holds the business changesets for the camp
// management schema. Each file registers one changeset from init, keyed
// by a creation-time version token, so importing the package populates
// the registry in full.
package migrations

import "github.com/shoaldb/shoal/internal/migrate"

// Registry is the repository of all registered changesets.
var Registry = migrate.NewRegistry()

func register(cs migrate.Changeset) {
	Registry.MustRegister(cs)
}

// Stable identifiers for foundational collections. Declared up front so
// any changeset can reference them without depending on apply order.
const (
	SessionsID = "col_sessions_01"
	GroupsID   = "col_groups_01"
	BunksID    = "col_bunks_01"
	StaffID    = "col_staff_01"
)
