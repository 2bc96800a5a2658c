package versionedstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/emergent-company/branchgraph/pkg/codec"
)

const (
	globalKeyBranch = "branch"
	globalKeyRev    = "rev"
	masterBranch    = "master"
)

// encodeGlobalText/encodeGlobalInt/decodeGlobalText/decodeGlobalInt store the
// cursor's two distinguished global keys as codec-encoded atomic values
// rather than raw strings, per the cursor contract: both `branch` and `rev`
// are encoded values like every other stored attribute, not special-cased.

func encodeGlobalText(s string) (string, error) {
	return codec.Encode(codec.Text(s))
}

func encodeGlobalInt(i int64) (string, error) {
	return codec.Encode(codec.Int(i))
}

func decodeGlobalText(text string) (string, error) {
	v, err := codec.Decode(text)
	if err != nil {
		return "", fmt.Errorf("global value %q: %w", text, ErrEncodingError)
	}
	s, ok := v.AsText()
	if !ok {
		return "", fmt.Errorf("global value %q is not text: %w", text, ErrEncodingError)
	}
	return s, nil
}

func decodeGlobalInt(text string) (int64, error) {
	v, err := codec.Decode(text)
	if err != nil {
		return 0, fmt.Errorf("global value %q: %w", text, ErrEncodingError)
	}
	i, ok := v.AsInt()
	if !ok {
		return 0, fmt.Errorf("global value %q is not an int: %w", text, ErrEncodingError)
	}
	return i, nil
}

// ancestry is the immutable (parent, parent_rev) pair recorded for a branch
// when it is created. Once written it never changes, so it is safe to cache
// for the lifetime of a process and only grow the cache on branch creation.
type ancestry struct {
	parent    string
	parentRev int64
}

// Cursor tracks "where write operations currently land": a branch name and
// a revision number within it. It is the only mutable process-wide state a
// Store client carries; every read or write implicitly targets the
// cursor's current position unless a caller walks history explicitly via
// Compare or Window.
type Cursor struct {
	store *Store

	mu     sync.RWMutex
	branch string
	rev    int64

	ancestorsMu sync.RWMutex
	ancestors   map[string]ancestry
}

// NewCursor loads the persisted (branch, rev) pair from global, defaulting
// to master/0 the first time a store is used, and primes the ancestor
// cache with every branch already on record.
func NewCursor(ctx context.Context, store *Store) (*Cursor, error) {
	c := &Cursor{store: store, ancestors: make(map[string]ancestry)}

	branchText, ok, err := store.GlobalGet(ctx, globalKeyBranch)
	if err != nil {
		return nil, err
	}
	branch := masterBranch
	if ok {
		branch, err = decodeGlobalText(branchText)
		if err != nil {
			return nil, err
		}
	}

	revText, ok, err := store.GlobalGet(ctx, globalKeyRev)
	if err != nil {
		return nil, err
	}
	var rev int64
	if ok {
		rev, err = decodeGlobalInt(revText)
		if err != nil {
			return nil, err
		}
	}

	c.branch = branch
	c.rev = rev

	branches, err := store.AllBranches(ctx)
	if err != nil {
		return nil, err
	}
	c.ancestorsMu.Lock()
	for _, b := range branches {
		c.ancestors[b.Name] = ancestry{parent: b.Parent, parentRev: b.ParentRev}
	}
	c.ancestorsMu.Unlock()

	if _, cached := c.ancestors[masterBranch]; !cached {
		if err := c.ensureMaster(ctx); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Cursor) ensureMaster(ctx context.Context) error {
	have, err := c.store.HaveBranch(ctx, masterBranch)
	if err != nil {
		return err
	}
	if !have {
		if err := c.store.NewBranch(ctx, masterBranch, masterBranch, 0); err != nil {
			return err
		}
	}
	c.ancestorsMu.Lock()
	c.ancestors[masterBranch] = ancestry{parent: masterBranch, parentRev: 0}
	c.ancestorsMu.Unlock()
	return nil
}

// Branch returns the branch the cursor currently writes to.
func (c *Cursor) Branch() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.branch
}

// Rev returns the revision the cursor currently writes to.
func (c *Cursor) Rev() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rev
}

// Position returns (branch, rev) as a single consistent snapshot.
func (c *Cursor) Position() (string, int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.branch, c.rev
}

// Tick persists the cursor one revision forward on its current branch and
// returns the new revision.
func (c *Cursor) Tick(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rev++
	text, err := encodeGlobalInt(c.rev)
	if err != nil {
		c.rev--
		return 0, err
	}
	if err := c.store.GlobalSet(ctx, globalKeyRev, text); err != nil {
		c.rev--
		return 0, err
	}
	return c.rev, nil
}

// SwitchBranch moves the cursor onto branch at rev, modeling the two
// distinct primitive writes §7 names: the branch-name change and the
// rev change. If branch does not yet exist it is created as a child of the
// cursor's current (branch, rev) — the fork point. Switching onto an
// existing branch from a current revision before that branch's own
// parent_rev is rejected with ErrInvalidBranchSwitch: the branch didn't
// exist yet at the cursor's current position, so there's nothing to switch
// onto. Separately, landing the cursor at a rev before the target branch's
// parent_rev is rejected with ErrRevisionBeforeBranchStart: history earlier
// than the branch's start does not belong to it.
func (c *Cursor) SwitchBranch(ctx context.Context, branch string, rev int64) error {
	c.ancestorsMu.RLock()
	anc, known := c.ancestors[branch]
	c.ancestorsMu.RUnlock()

	c.mu.RLock()
	curBranch, curRev := c.branch, c.rev
	c.mu.RUnlock()

	if !known {
		if err := c.store.NewBranch(ctx, branch, curBranch, curRev); err != nil {
			return err
		}
		anc = ancestry{parent: curBranch, parentRev: curRev}
		c.ancestorsMu.Lock()
		c.ancestors[branch] = anc
		c.ancestorsMu.Unlock()
	} else if branch != masterBranch && curRev < anc.parentRev {
		return fmt.Errorf("branch %q starts at rev %d, current rev is %d: %w", branch, anc.parentRev, curRev, ErrInvalidBranchSwitch)
	}

	if branch != masterBranch && rev < anc.parentRev {
		return fmt.Errorf("branch %q starts at rev %d: %w", branch, anc.parentRev, ErrRevisionBeforeBranchStart)
	}

	branchText, err := encodeGlobalText(branch)
	if err != nil {
		return err
	}
	revText, err := encodeGlobalInt(rev)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.branch = branch
	c.rev = rev
	c.mu.Unlock()

	if err := c.store.GlobalSet(ctx, globalKeyBranch, branchText); err != nil {
		return err
	}
	return c.store.GlobalSet(ctx, globalKeyRev, revText)
}

// Ancestors walks from (branch, rev) back through parent branches to
// master, yielding each (branch, rev-ceiling) pair closest-first. The walk
// never touches the database once a branch's ancestry has been cached.
func (c *Cursor) Ancestors(ctx context.Context, branch string, rev int64) ([]BranchPoint, error) {
	var path []BranchPoint
	seen := make(map[string]bool)

	for {
		path = append(path, BranchPoint{Branch: branch, Rev: rev})
		if branch == masterBranch {
			return path, nil
		}
		if seen[branch] {
			return nil, fmt.Errorf("branch %q: %w", branch, ErrStorageError)
		}
		seen[branch] = true

		anc, err := c.ancestryOf(ctx, branch)
		if err != nil {
			return nil, err
		}
		branch, rev = anc.parent, anc.parentRev
	}
}

// ParentOf returns the (parent branch, parent_rev) a branch was forked from.
// master is its own parent at rev 0.
func (c *Cursor) ParentOf(ctx context.Context, branch string) (string, int64, error) {
	anc, err := c.ancestryOf(ctx, branch)
	if err != nil {
		return "", 0, err
	}
	return anc.parent, anc.parentRev, nil
}

func (c *Cursor) ancestryOf(ctx context.Context, branch string) (ancestry, error) {
	c.ancestorsMu.RLock()
	anc, ok := c.ancestors[branch]
	c.ancestorsMu.RUnlock()
	if ok {
		return anc, nil
	}

	parent, parentRev, err := c.store.ParentRev(ctx, branch)
	if err != nil {
		return ancestry{}, err
	}
	anc = ancestry{parent: parent, parentRev: parentRev}

	c.ancestorsMu.Lock()
	c.ancestors[branch] = anc
	c.ancestorsMu.Unlock()
	return anc, nil
}

// BranchPoint names one stop along an ancestor walk: the branch, and the
// highest revision on it that is visible from the point the walk started.
type BranchPoint struct {
	Branch string
	Rev    int64
}
