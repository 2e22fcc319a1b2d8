package migrate

import (
	"context"
	"log/slog"
	"time"

	"github.com/shoaldb/shoal/internal/sherr"
	"github.com/shoaldb/shoal/internal/store"
)

// State is the lifecycle state of a changeset against a given store.
type State int

const (
	// StatePending means no ledger entry exists for the changeset.
	StatePending State = iota
	// StateApplied means the ledger records a successful forward run.
	StateApplied
	// StateMissing means the ledger records a version no registered
	// changeset carries; the repository and the store have diverged.
	StateMissing
)

// String returns the display form of the state.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateApplied:
		return "applied"
	case StateMissing:
		return "missing"
	default:
		return "unknown"
	}
}

// Status describes one changeset's standing against the ledger.
type Status struct {
	Version   int64
	Name      string
	State     State
	AppliedAt *time.Time
}

// Runner is the state machine that walks the ordered changeset sequence
// forward or backward. It is the exclusive owner of the ledger:
// a forward success writes an entry, a backward success deletes it, and
// nothing else touches it.
//
// Execution is strictly sequential; a run may stop between changesets
// (context cancellation) but never mid-changeset.
type Runner struct {
	st  store.TxStore
	reg *Registry
	log *slog.Logger
}

// NewRunner creates a runner. Returns nil if st or reg is nil.
func NewRunner(st store.TxStore, reg *Registry) *Runner {
	if st == nil || reg == nil {
		return nil
	}
	return &Runner{st: st, reg: reg, log: slog.Default()}
}

// WithLogger replaces the runner's logger.
func (r *Runner) WithLogger(log *slog.Logger) *Runner {
	r.log = log
	return r
}

// Up applies all pending changesets in version order.
func (r *Runner) Up(ctx context.Context) error {
	return r.UpTo(ctx, 0)
}

// UpTo applies pending changesets up to and including target (0 = all).
//
// Already-applied versions are skipped via ledger membership, which makes
// re-running a fully applied sequence a no-op. A pending changeset older
// than the newest applied one is an out-of-order application attempt and
// is fatal to the run: applying it would violate the ordering discipline
// every later changeset relied on.
func (r *Runner) UpTo(ctx context.Context, target int64) error {
	applied, err := r.st.AppliedVersions(ctx)
	if err != nil {
		return err
	}
	appliedSet := make(map[int64]bool, len(applied))
	var newest int64
	for _, e := range applied {
		appliedSet[e.Version] = true
		if e.Version > newest {
			newest = e.Version
		}
	}

	for _, cs := range r.reg.Ordered() {
		if target != 0 && cs.Version > target {
			break
		}
		if appliedSet[cs.Version] {
			continue
		}
		if cs.Version < newest {
			return sherr.New(sherr.ErrOutOfOrder, "pending changeset is older than the newest applied one").
				WithVersion(cs.Version).
				With("newest_applied", newest).
				WithHelp("renumber the changeset with a fresh version token")
		}
		if err := ctx.Err(); err != nil {
			return sherr.Wrap(sherr.ErrStoreTx, err, "run cancelled between changesets")
		}
		if err := r.applyOne(ctx, cs); err != nil {
			return err
		}
		newest = cs.Version
	}
	return nil
}

// applyOne runs the pending -> applied transition for one changeset:
// the forward transformation and the ledger write commit atomically, or
// the store stays exactly as it was.
func (r *Runner) applyOne(ctx context.Context, cs Changeset) error {
	start := time.Now()
	err := r.st.RunInTransaction(ctx, func(tx store.Store) error {
		if err := cs.Up(ctx, tx); err != nil {
			return err
		}
		return tx.RecordApplied(ctx, store.LedgerEntry{Version: cs.Version, Name: cs.Name})
	})
	if err != nil {
		return sherr.Wrap(codeOf(err), err, "changeset failed to apply").
			WithVersion(cs.Version).
			With("name", cs.Name).
			With("direction", "up")
	}
	r.log.Info("applied changeset",
		"version", cs.Version,
		"name", cs.Name,
		"took", time.Since(start))
	return nil
}

// codeOf keeps the inner failure's taxonomy category on the wrapper so
// callers still branch correctly after the runner adds its context.
func codeOf(err error) sherr.Code {
	if code := sherr.GetErrorCode(err); code != "" {
		return code
	}
	return sherr.ErrStoreTx
}

// Down reverts the newest `steps` applied changesets (newest first).
func (r *Runner) Down(ctx context.Context, steps int) error {
	return r.down(ctx, steps, 0)
}

// DownTo reverts applied changesets newer than target; target itself
// stays applied.
func (r *Runner) DownTo(ctx context.Context, target int64) error {
	return r.down(ctx, 0, target)
}

func (r *Runner) down(ctx context.Context, steps int, target int64) error {
	applied, err := r.st.AppliedVersions(ctx)
	if err != nil {
		return err
	}

	reverted := 0
	for i := len(applied) - 1; i >= 0; i-- {
		entry := applied[i]
		if target != 0 && entry.Version <= target {
			break
		}
		if steps > 0 && reverted >= steps {
			break
		}
		cs, ok := r.reg.ByVersion(entry.Version)
		if !ok {
			return sherr.New(sherr.ErrNotFound, "no changeset registered for applied version").
				WithVersion(entry.Version).
				WithHelp("the changeset repository and the store have diverged")
		}
		if err := ctx.Err(); err != nil {
			return sherr.Wrap(sherr.ErrStoreTx, err, "run cancelled between changesets")
		}
		if err := r.revertOne(ctx, cs); err != nil {
			return err
		}
		reverted++
	}
	return nil
}

// revertOne runs the applied -> pending transition: the backward
// transformation plus the ledger delete, atomically.
func (r *Runner) revertOne(ctx context.Context, cs Changeset) error {
	start := time.Now()
	err := r.st.RunInTransaction(ctx, func(tx store.Store) error {
		if err := cs.Down(ctx, tx); err != nil {
			return err
		}
		return tx.RecordReverted(ctx, cs.Version)
	})
	if err != nil {
		return sherr.Wrap(codeOf(err), err, "changeset failed to revert").
			WithVersion(cs.Version).
			With("name", cs.Name).
			With("direction", "down")
	}
	r.log.Info("reverted changeset",
		"version", cs.Version,
		"name", cs.Name,
		"took", time.Since(start))
	return nil
}

// Status reports every known version: registered changesets plus any
// ledger entries whose changeset is missing from the repository.
func (r *Runner) Status(ctx context.Context) ([]Status, error) {
	applied, err := r.st.AppliedVersions(ctx)
	if err != nil {
		return nil, err
	}
	appliedMap := make(map[int64]store.LedgerEntry, len(applied))
	for _, e := range applied {
		appliedMap[e.Version] = e
	}

	seen := make(map[int64]bool)
	var out []Status
	for _, cs := range r.reg.Ordered() {
		seen[cs.Version] = true
		st := Status{Version: cs.Version, Name: cs.Name, State: StatePending}
		if e, ok := appliedMap[cs.Version]; ok {
			st.State = StateApplied
			t := e.AppliedAt
			st.AppliedAt = &t
		}
		out = append(out, st)
	}
	for _, e := range applied {
		if seen[e.Version] {
			continue
		}
		t := e.AppliedAt
		out = append(out, Status{Version: e.Version, Name: e.Name, State: StateMissing, AppliedAt: &t})
	}
	sortStatuses(out)
	return out, nil
}

func sortStatuses(s []Status) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j].Version < s[j-1].Version; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
