package versionedstore

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"golang.org/x/sync/semaphore"

	"github.com/emergent-company/branchgraph/pkg/codec"
)

// Session is the handle callers embed: one per opened versioned store,
// backed by one *bun.DB and one in-memory cursor. Reads run concurrently;
// writes are serialized through a single permit so that a revision number
// handed out by Tick is never raced by a second writer incrementing past
// it before the first writer's rows land.
type Session struct {
	db     *bun.DB
	Store  *Store
	Cursor *Cursor
	Lookup *Lookup

	writeSem *semaphore.Weighted
}

// Open loads or initializes process cursor state against db and returns a
// ready-to-use Session. Schema objects (tables, indexes) are expected to
// already exist — see the migrate package.
func Open(ctx context.Context, db *bun.DB) (*Session, error) {
	store := NewStore(db)
	cursor, err := NewCursor(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("open versioned store: %w", err)
	}
	return &Session{
		db:       db,
		Store:    store,
		Cursor:   cursor,
		Lookup:   NewLookup(store, cursor),
		writeSem: semaphore.NewWeighted(1),
	}, nil
}

// Write runs fn holding the session's single write permit, giving fn a
// Store bound to a fresh transaction that commits on a nil return and
// rolls back otherwise. Use this for any operation composed of more than
// one table write (creating a graph, tearing one down, or committing a
// batch of attribute changes) so they land atomically.
func (s *Session) Write(ctx context.Context, fn func(ctx context.Context, tx *Store) error) error {
	if err := s.writeSem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.writeSem.Release(1)

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, s.Store.WithTx(tx))
	})
}

// NewGraph creates a graph of the given kind under the write permit.
func (s *Session) NewGraph(ctx context.Context, name string, kind GraphKind) error {
	return s.Write(ctx, func(ctx context.Context, tx *Store) error {
		return tx.NewGraph(ctx, name, kind)
	})
}

// DelGraph removes a graph and all its versioned records under the write
// permit, so the six deletes it issues are never interleaved with
// another writer's changes to the same graph.
func (s *Session) DelGraph(ctx context.Context, name string) error {
	return s.Write(ctx, func(ctx context.Context, tx *Store) error {
		return tx.DelGraph(ctx, name)
	})
}

// Commit advances the cursor's revision by one, marking a boundary callers
// can later target with Window or Compare. It does not by itself touch
// any graph's rows; it only moves where subsequent writes land.
func (s *Session) Commit(ctx context.Context) (int64, error) {
	if err := s.writeSem.Acquire(ctx, 1); err != nil {
		return 0, err
	}
	defer s.writeSem.Release(1)
	return s.Cursor.Tick(ctx)
}

// SwitchBranch moves the cursor to branch at rev under the write permit.
func (s *Session) SwitchBranch(ctx context.Context, branch string, rev int64) error {
	if err := s.writeSem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.writeSem.Release(1)
	return s.Cursor.SwitchBranch(ctx, branch, rev)
}

// GraphValSet writes a graph-level attribute under the write permit.
func (s *Session) GraphValSet(ctx context.Context, graph, key string, value codec.Value) error {
	if err := s.writeSem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.writeSem.Release(1)
	return s.Lookup.GraphValSet(ctx, graph, key, value)
}

// GraphValDel tombstones a graph-level attribute under the write permit.
func (s *Session) GraphValDel(ctx context.Context, graph, key string) error {
	if err := s.writeSem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.writeSem.Release(1)
	return s.Lookup.GraphValDel(ctx, graph, key)
}

// NodeSet marks a node extant or absent under the write permit.
func (s *Session) NodeSet(ctx context.Context, graph, node string, extant bool) error {
	if err := s.writeSem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.writeSem.Release(1)
	return s.Lookup.NodeSet(ctx, graph, node, extant)
}

// NodeValSet writes a node attribute under the write permit.
func (s *Session) NodeValSet(ctx context.Context, graph, node, key string, value codec.Value) error {
	if err := s.writeSem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.writeSem.Release(1)
	return s.Lookup.NodeValSet(ctx, graph, node, key, value)
}

// NodeValDel tombstones a node attribute under the write permit.
func (s *Session) NodeValDel(ctx context.Context, graph, node, key string) error {
	if err := s.writeSem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.writeSem.Release(1)
	return s.Lookup.NodeValDel(ctx, graph, node, key)
}

// EdgeSet marks a parallel edge extant or absent under the write permit.
func (s *Session) EdgeSet(ctx context.Context, graph, source, target string, idx int32, extant bool) error {
	if err := s.writeSem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.writeSem.Release(1)
	return s.Lookup.EdgeSet(ctx, graph, source, target, idx, extant)
}

// EdgeValSet writes an edge attribute under the write permit.
func (s *Session) EdgeValSet(ctx context.Context, graph, source, target string, idx int32, key string, value codec.Value) error {
	if err := s.writeSem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.writeSem.Release(1)
	return s.Lookup.EdgeValSet(ctx, graph, source, target, idx, key, value)
}

// EdgeValDel tombstones an edge attribute under the write permit.
func (s *Session) EdgeValDel(ctx context.Context, graph, source, target string, idx int32, key string) error {
	if err := s.writeSem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.writeSem.Release(1)
	return s.Lookup.EdgeValDel(ctx, graph, source, target, idx, key)
}

// Close releases nothing on its own — the pooled *bun.DB outlives the
// session — but gives callers a single symmetric lifecycle hook to wire
// into an fx.Lifecycle OnStop.
func (s *Session) Close(context.Context) error {
	return nil
}
