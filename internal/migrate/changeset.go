// Package migrate implements the changeset model, the migration registry,
// and the runner state machine that applies or reverts changesets against
// a persisted schema-version ledger.
package migrate

import (
	"context"
	"sort"
	"sync"

	"github.com/shoaldb/shoal/internal/sherr"
	"github.com/shoaldb/shoal/internal/store"
)

// Changeset is one versioned, reversible schema transformation. Version
// is a numeric token derived from authoring time: monotonically
// increasing and globally unique across the repository of changesets.
//
// Up and Down receive a transaction-scoped store handle; everything they
// do commits or rolls back as one unit together with the ledger write.
type Changeset struct {
	Version int64
	Name    string
	Up      func(ctx context.Context, tx store.Store) error
	Down    func(ctx context.Context, tx store.Store) error
}

// Registry discovers changesets, orders them by version token, and
// exposes the ordered sequence to the runner. Malformed changesets are
// rejected at registration, before any store mutation can happen.
type Registry struct {
	mu        sync.RWMutex
	byVersion map[int64]Changeset
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byVersion: make(map[int64]Changeset)}
}

// Register validates and adds a changeset.
//
// A missing backward transformation is a definition error here, not a
// runtime surprise during rollback. A duplicate version token is caught
// here too: two changesets can never share an ordering slot.
func (r *Registry) Register(cs Changeset) error {
	if cs.Version <= 0 {
		return sherr.New(sherr.ErrDefinition, "changeset version token must be positive").
			With("name", cs.Name)
	}
	if cs.Name == "" {
		return sherr.New(sherr.ErrDefinition, "changeset name is required").
			WithVersion(cs.Version)
	}
	if cs.Up == nil {
		return sherr.New(sherr.ErrDefinition, "changeset has no forward transformation").
			WithVersion(cs.Version).
			With("name", cs.Name)
	}
	if cs.Down == nil {
		return sherr.New(sherr.ErrMissingDown, "changeset has no backward transformation").
			WithVersion(cs.Version).
			With("name", cs.Name).
			WithHelp("every changeset must be revertible; define Down even if it only undoes Up")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byVersion[cs.Version]; ok {
		return sherr.New(sherr.ErrDuplicateVersion, "version token already registered").
			WithVersion(cs.Version).
			With("existing", existing.Name).
			With("name", cs.Name)
	}
	r.byVersion[cs.Version] = cs
	return nil
}

// MustRegister registers a changeset and panics on definition errors.
// Changeset files call this from init, so a malformed definition fails
// the process before any run starts.
func (r *Registry) MustRegister(cs Changeset) {
	if err := r.Register(cs); err != nil {
		panic(err)
	}
}

// Ordered returns all changesets sorted by version token.
func (r *Registry) Ordered() []Changeset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Changeset, 0, len(r.byVersion))
	for _, cs := range r.byVersion {
		out = append(out, cs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

// ByVersion returns the changeset with the given token.
func (r *Registry) ByVersion(version int64) (Changeset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cs, ok := r.byVersion[version]
	return cs, ok
}

// Len returns the number of registered changesets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byVersion)
}
