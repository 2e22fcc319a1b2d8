package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shoaldb/shoal/internal/schema"
	"github.com/shoaldb/shoal/internal/sherr"
)

// MemStore is an in-memory TxStore. It exists so the runner can be tested
// against a fake store with real transactional semantics: a transaction
// snapshots the whole state up front and restores it if the body fails.
type MemStore struct {
	mu          sync.Mutex
	collections map[string]*schema.Collection // keyed by stable identifier
	ledger      []LedgerEntry

	// inTx suppresses locking on the tx-scoped view; the outer
	// transaction already holds the mutex.
	inTx bool
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{collections: make(map[string]*schema.Collection)}
}

func (s *MemStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// FindCollectionByID returns a copy of the collection with the given
// stable identifier.
func (s *MemStore) FindCollectionByID(_ context.Context, id string) (*schema.Collection, error) {
	defer s.lock()()
	c, ok := s.collections[id]
	if !ok {
		return nil, sherr.New(sherr.ErrNotFound, "collection not found").
			With("id", id)
	}
	return c.Clone(), nil
}

// FindCollectionByName returns a copy of the live collection with the
// given name.
func (s *MemStore) FindCollectionByName(_ context.Context, name string) (*schema.Collection, error) {
	defer s.lock()()
	for _, c := range s.collections {
		if c.Name == name {
			return c.Clone(), nil
		}
	}
	return nil, sherr.New(sherr.ErrNotFound, "collection not found").
		WithCollection(name)
}

// SaveCollection validates and upserts a collection by identifier.
func (s *MemStore) SaveCollection(_ context.Context, c *schema.Collection) error {
	defer s.lock()()
	old := s.collections[c.ID]
	var byName *schema.Collection
	for _, existing := range s.collections {
		if existing.Name == c.Name {
			byName = existing
			break
		}
	}
	if err := validateSave(c, old, byName); err != nil {
		return err
	}
	s.collections[c.ID] = c.Clone()
	return nil
}

// DeleteCollection removes a collection. Deleting a collection that a
// live relation field still targets is a constraint error; deleting an
// absent one is a no-op.
func (s *MemStore) DeleteCollection(_ context.Context, id string) error {
	defer s.lock()()
	if _, ok := s.collections[id]; !ok {
		return nil
	}
	if err := checkDeleteRefs(id, s.snapshotLocked()); err != nil {
		return err
	}
	delete(s.collections, id)
	return nil
}

// Collections returns copies of all live collections sorted by name.
func (s *MemStore) Collections(_ context.Context) ([]*schema.Collection, error) {
	defer s.lock()()
	return s.snapshotLocked(), nil
}

func (s *MemStore) snapshotLocked() []*schema.Collection {
	out := make([]*schema.Collection, 0, len(s.collections))
	for _, c := range s.collections {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AppliedVersions returns the ledger in version order.
func (s *MemStore) AppliedVersions(_ context.Context) ([]LedgerEntry, error) {
	defer s.lock()()
	out := append([]LedgerEntry(nil), s.ledger...)
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// RecordApplied appends a ledger entry. A version collision is a
// conflict: the ledger never holds two entries for one token.
func (s *MemStore) RecordApplied(_ context.Context, entry LedgerEntry) error {
	defer s.lock()()
	for _, e := range s.ledger {
		if e.Version == entry.Version {
			return sherr.New(sherr.ErrConflict, "version already recorded in ledger").
				WithVersion(entry.Version)
		}
	}
	if entry.AppliedAt.IsZero() {
		entry.AppliedAt = time.Now().UTC()
	}
	s.ledger = append(s.ledger, entry)
	return nil
}

// RecordReverted deletes the ledger entry for a version.
func (s *MemStore) RecordReverted(_ context.Context, version int64) error {
	defer s.lock()()
	kept := s.ledger[:0]
	for _, e := range s.ledger {
		if e.Version != version {
			kept = append(kept, e)
		}
	}
	s.ledger = kept
	return nil
}

// RunInTransaction executes fn against a view of the store and keeps the
// result only if fn succeeds. On failure every mutation fn made is
// discarded, mirroring the database-backed store's rollback.
func (s *MemStore) RunInTransaction(ctx context.Context, fn func(tx Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	backupCollections := make(map[string]*schema.Collection, len(s.collections))
	for id, c := range s.collections {
		backupCollections[id] = c.Clone()
	}
	backupLedger := append([]LedgerEntry(nil), s.ledger...)

	tx := &MemStore{collections: s.collections, ledger: s.ledger, inTx: true}
	if err := fn(tx); err != nil {
		s.collections = backupCollections
		s.ledger = backupLedger
		return err
	}
	s.collections = tx.collections
	s.ledger = tx.ledger
	return nil
}
