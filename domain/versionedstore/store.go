package versionedstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/emergent-company/branchgraph/pkg/apperror"
	"github.com/emergent-company/branchgraph/pkg/metrics"
	"github.com/emergent-company/branchgraph/pkg/pgutils"
	"github.com/emergent-company/branchgraph/pkg/tracing"
)

// instrument records op's outcome and latency against the metrics package
// once the deferred call fires, given a pointer to the method's named
// return error. Mutating primitives use this; read paths are left to
// tracing spans alone, which already carry per-call cost at lower overhead.
func instrument(op string) func(errp *error) {
	start := time.Now()
	return func(errp *error) {
		metrics.Observe(op, start, *errp)
	}
}

// Store is the sole owner of the database handle. Every method here issues
// exactly the SQL named in statements.go — no ancestor walking, no branch
// resolution, and no codec involvement apart from InitDB encoding the
// cursor's global keys. Callers pass a bun.IDB so the same
// methods work against the pooled *bun.DB or a transaction opened by the
// caller for a multi-step write.
type Store struct {
	db bun.IDB
}

// NewStore wraps a database handle. Pass a *bun.DB for read-only or
// single-statement use, or a *bun.Tx when several writes must be atomic.
func NewStore(db bun.IDB) *Store {
	return &Store{db: db}
}

// WithTx returns a Store bound to tx, for callers composing a multi-table
// write (e.g. NewGraph, DelGraph, or a revision commit touching several
// tables) that must succeed or fail together.
func (s *Store) WithTx(tx bun.Tx) *Store {
	return &Store{db: tx}
}

func wrapStorage(err error, op string) error {
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorageError, err)
}

// --- global ---------------------------------------------------------------

func (s *Store) GlobalGet(ctx context.Context, key string) (string, bool, error) {
	ctx, span := tracing.Start(ctx, "store.global_get")
	defer span.End()

	var value string
	err := s.db.NewRaw(stmtGlobalGet, key).Scan(ctx, &value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapStorage(err, "global_get")
	}
	return value, true, nil
}

func (s *Store) GlobalSet(ctx context.Context, key, value string) (err error) {
	ctx, span := tracing.Start(ctx, "store.global_set")
	defer span.End()
	defer instrument("global_set")(&err)

	_, rawErr := s.db.NewRaw(stmtGlobalIns, key, value).Exec(ctx)
	err = wrapStorage(rawErr, "global_set")
	return err
}

func (s *Store) GlobalDel(ctx context.Context, key string) (err error) {
	ctx, span := tracing.Start(ctx, "store.global_del")
	defer span.End()
	defer instrument("global_del")(&err)

	_, rawErr := s.db.NewRaw(stmtGlobalDel, key).Exec(ctx)
	err = wrapStorage(rawErr, "global_del")
	return err
}

func (s *Store) GlobalItems(ctx context.Context) (map[string]string, error) {
	ctx, span := tracing.Start(ctx, "store.global_items")
	defer span.End()

	var rows []struct {
		Key   string
		Value string
	}
	if err := s.db.NewRaw(stmtGlobalItems).Scan(ctx, &rows); err != nil {
		return nil, wrapStorage(err, "global_items")
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

// --- branches ---------------------------------------------------------------

func (s *Store) HaveBranch(ctx context.Context, name string) (bool, error) {
	ctx, span := tracing.Start(ctx, "store.have_branch")
	defer span.End()

	var count int
	if err := s.db.NewRaw(stmtHaveBranch, name).Scan(ctx, &count); err != nil {
		return false, wrapStorage(err, "have_branch")
	}
	return count > 0, nil
}

func (s *Store) AllBranches(ctx context.Context) ([]Branch, error) {
	ctx, span := tracing.Start(ctx, "store.all_branches")
	defer span.End()

	var branches []Branch
	if err := s.db.NewRaw(stmtAllBranch).Scan(ctx, &branches); err != nil {
		return nil, wrapStorage(err, "all_branches")
	}
	return branches, nil
}

func (s *Store) NewBranch(ctx context.Context, name, parent string, parentRev int64) (err error) {
	ctx, span := tracing.Start(ctx, "store.new_branch")
	defer span.End()
	defer instrument("new_branch")(&err)

	_, rawErr := s.db.NewRaw(stmtNewBranch, name, parent, parentRev).Exec(ctx)
	if pgutils.IsUniqueViolation(rawErr) {
		err = fmt.Errorf("branch %q: %w", name, ErrDuplicateGraph)
		return err
	}
	err = wrapStorage(rawErr, "new_branch")
	return err
}

func (s *Store) ParentRev(ctx context.Context, branch string) (parent string, parentRev int64, err error) {
	ctx, span := tracing.Start(ctx, "store.parent_rev")
	defer span.End()

	err = s.db.NewRaw(stmtParentRev, branch).Scan(ctx, &parent, &parentRev)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, fmt.Errorf("branch %q: %w", branch, apperror.ErrNotFound)
	}
	if err != nil {
		return "", 0, wrapStorage(err, "parent_rev")
	}
	return parent, parentRev, nil
}

// --- graphs ---------------------------------------------------------------

func (s *Store) HaveGraph(ctx context.Context, name string) (bool, error) {
	ctx, span := tracing.Start(ctx, "store.have_graph")
	defer span.End()

	var count int
	if err := s.db.NewRaw(stmtHaveGraph, name).Scan(ctx, &count); err != nil {
		return false, wrapStorage(err, "have_graph")
	}
	return count > 0, nil
}

func (s *Store) NewGraph(ctx context.Context, name string, kind GraphKind) (err error) {
	ctx, span := tracing.Start(ctx, "store.new_graph")
	defer span.End()
	defer instrument("new_graph")(&err)

	_, rawErr := s.db.NewRaw(stmtNewGraph, name, kind).Exec(ctx)
	if pgutils.IsUniqueViolation(rawErr) {
		err = fmt.Errorf("graph %q: %w", name, ErrDuplicateGraph)
		return err
	}
	err = wrapStorage(rawErr, "new_graph")
	return err
}

func (s *Store) GraphKind(ctx context.Context, name string) (GraphKind, error) {
	ctx, span := tracing.Start(ctx, "store.graph_kind")
	defer span.End()

	var kind GraphKind
	err := s.db.NewRaw(stmtGraphKind, name).Scan(ctx, &kind)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("graph %q: %w", name, ErrNoSuchGraph)
	}
	if err != nil {
		return "", wrapStorage(err, "graph_kind")
	}
	return kind, nil
}

// DelGraph removes a graph and every versioned record belonging to it. The
// caller is expected to have opened tx so the six deletes are atomic.
func (s *Store) DelGraph(ctx context.Context, name string) (err error) {
	ctx, span := tracing.Start(ctx, "store.del_graph")
	defer span.End()
	defer instrument("del_graph")(&err)

	stmts := []string{stmtDelGraphVal, stmtDelNodeVal, stmtDelEdgeVal, stmtDelEdges, stmtDelNodes}
	for _, stmt := range stmts {
		if _, rawErr := s.db.NewRaw(stmt, name).Exec(ctx); rawErr != nil {
			err = wrapStorage(rawErr, "del_graph")
			return err
		}
	}
	res, rawErr := s.db.NewRaw(stmtDelGraph, name).Exec(ctx)
	if rawErr != nil {
		err = wrapStorage(rawErr, "del_graph")
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = fmt.Errorf("graph %q: %w", name, ErrNoSuchGraph)
		return err
	}
	return nil
}

// --- graph_val --------------------------------------------------------------

// GraphValLatestKeys returns every key with a record at or before rev on
// branch, without resolving ancestor branches and without dropping
// tombstones — a nil map value means the key is tombstoned at that record.
func (s *Store) GraphValLatestKeys(ctx context.Context, graph, branch string, rev int64) (map[string]*string, error) {
	ctx, span := tracing.Start(ctx, "store.graph_val_keys")
	defer span.End()

	var rows []struct {
		Key   string
		Value *string
	}
	if err := s.db.NewRaw(stmtGraphValLatestKeys, graph, branch, rev, branch).Scan(ctx, &rows); err != nil {
		return nil, wrapStorage(err, "graph_val_keys")
	}
	out := make(map[string]*string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

func (s *Store) GraphValLatestGet(ctx context.Context, graph, key, branch string, rev int64) (value *string, found bool, err error) {
	ctx, span := tracing.Start(ctx, "store.graph_val_get")
	defer span.End()

	err = s.db.NewRaw(stmtGraphValLatestGet, graph, key, branch, rev, branch).Scan(ctx, &value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapStorage(err, "graph_val_get")
	}
	return value, true, nil
}

func (s *Store) GraphValSet(ctx context.Context, graph, key, branch string, rev int64, value *string) (err error) {
	ctx, span := tracing.Start(ctx, "store.graph_val_set")
	defer span.End()
	defer instrument("graph_val_set")(&err)

	_, rawErr := s.db.NewRaw(stmtGraphValUpsert, graph, key, branch, rev, value).Exec(ctx)
	err = wrapStorage(rawErr, "graph_val_set")
	return err
}

// RevValue pairs one revision with the value recorded there (nil for a
// tombstone), for walking a single key's history on one branch.
type RevValue struct {
	Rev   int64
	Value *string
}

func (s *Store) GraphValWindow(ctx context.Context, graph, key, branch string, fromRev, toRev int64) ([]RevValue, error) {
	ctx, span := tracing.Start(ctx, "store.graph_val_window")
	defer span.End()

	var rows []RevValue
	if err := s.db.NewRaw(stmtGraphValWindow, graph, key, branch, fromRev, toRev).Scan(ctx, &rows); err != nil {
		return nil, wrapStorage(err, "graph_val_window")
	}
	return rows, nil
}

// --- nodes ------------------------------------------------------------------

func (s *Store) NodeExtantLatest(ctx context.Context, graph, branch string, rev int64) (map[string]bool, error) {
	ctx, span := tracing.Start(ctx, "store.nodes_extant")
	defer span.End()

	var rows []struct {
		Node   string
		Extant bool
	}
	if err := s.db.NewRaw(stmtNodeExtantLatest, graph, branch, rev, branch).Scan(ctx, &rows); err != nil {
		return nil, wrapStorage(err, "nodes_extant")
	}
	out := make(map[string]bool, len(rows))
	for _, r := range rows {
		out[r.Node] = r.Extant
	}
	return out, nil
}

func (s *Store) NodeExtantOne(ctx context.Context, graph, node, branch string, rev int64) (extant bool, found bool, err error) {
	ctx, span := tracing.Start(ctx, "store.node_exists")
	defer span.End()

	err = s.db.NewRaw(stmtNodeExtantOneLatest, graph, node, branch, rev, branch).Scan(ctx, &extant)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, wrapStorage(err, "node_exists")
	}
	return extant, true, nil
}

func (s *Store) NodeSet(ctx context.Context, graph, node, branch string, rev int64, extant bool) (err error) {
	ctx, span := tracing.Start(ctx, "store.exist_node")
	defer span.End()
	defer instrument("exist_node")(&err)

	_, rawErr := s.db.NewRaw(stmtNodeUpsert, graph, node, branch, rev, extant).Exec(ctx)
	err = wrapStorage(rawErr, "exist_node")
	return err
}

func (s *Store) NodeValLatestKeys(ctx context.Context, graph, node, branch string, rev int64) (map[string]*string, error) {
	ctx, span := tracing.Start(ctx, "store.node_val_keys")
	defer span.End()

	var rows []struct {
		Key   string
		Value *string
	}
	if err := s.db.NewRaw(stmtNodeValLatestKeys, graph, node, branch, rev, branch).Scan(ctx, &rows); err != nil {
		return nil, wrapStorage(err, "node_val_keys")
	}
	out := make(map[string]*string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

func (s *Store) NodeValLatestGet(ctx context.Context, graph, node, key, branch string, rev int64) (value *string, found bool, err error) {
	ctx, span := tracing.Start(ctx, "store.node_val_get")
	defer span.End()

	err = s.db.NewRaw(stmtNodeValLatestGet, graph, node, key, branch, rev, branch).Scan(ctx, &value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapStorage(err, "node_val_get")
	}
	return value, true, nil
}

func (s *Store) NodeValSet(ctx context.Context, graph, node, key, branch string, rev int64, value *string) (err error) {
	ctx, span := tracing.Start(ctx, "store.node_val_set")
	defer span.End()
	defer instrument("node_val_set")(&err)

	_, rawErr := s.db.NewRaw(stmtNodeValUpsert, graph, node, key, branch, rev, value).Exec(ctx)
	err = wrapStorage(rawErr, "node_val_set")
	return err
}

func (s *Store) NodeValWindow(ctx context.Context, graph, node, key, branch string, fromRev, toRev int64) ([]RevValue, error) {
	ctx, span := tracing.Start(ctx, "store.node_val_window")
	defer span.End()

	var rows []RevValue
	if err := s.db.NewRaw(stmtNodeValWindow, graph, node, key, branch, fromRev, toRev).Scan(ctx, &rows); err != nil {
		return nil, wrapStorage(err, "node_val_window")
	}
	return rows, nil
}

// --- edges --------------------------------------------------------------

// EdgeIdxState describes the latest extant flag at one parallel-edge index.
type EdgeIdxState struct {
	Idx    int32
	Extant bool
}

func (s *Store) EdgeExtantLatestIdx(ctx context.Context, graph, source, target, branch string, rev int64) ([]EdgeIdxState, error) {
	ctx, span := tracing.Start(ctx, "store.multi_edges")
	defer span.End()

	var rows []EdgeIdxState
	if err := s.db.NewRaw(stmtEdgeExtantLatestIdx, graph, source, target, branch, rev, branch).Scan(ctx, &rows); err != nil {
		return nil, wrapStorage(err, "multi_edges")
	}
	return rows, nil
}

func (s *Store) EdgeExtantOne(ctx context.Context, graph, source, target string, idx int32, branch string, rev int64) (extant bool, found bool, err error) {
	ctx, span := tracing.Start(ctx, "store.edge_exists")
	defer span.End()

	err = s.db.NewRaw(stmtEdgeExtantOneLatest, graph, source, target, idx, branch, rev, branch).Scan(ctx, &extant)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, wrapStorage(err, "edge_exists")
	}
	return extant, true, nil
}

func (s *Store) EdgeSet(ctx context.Context, graph, source, target string, idx int32, branch string, rev int64, extant bool) (err error) {
	ctx, span := tracing.Start(ctx, "store.exist_edge")
	defer span.End()
	defer instrument("exist_edge")(&err)

	_, rawErr := s.db.NewRaw(stmtEdgeUpsert, graph, source, target, idx, branch, rev, extant).Exec(ctx)
	err = wrapStorage(rawErr, "exist_edge")
	return err
}

// EdgeEndState names one neighbor reached from, or reaching, a node, along
// with which parallel index and whether it is currently extant.
type EdgeEndState struct {
	Node   string
	Idx    int32
	Extant bool
}

func (s *Store) EdgesFromLatest(ctx context.Context, graph, source, branch string, rev int64) ([]EdgeEndState, error) {
	ctx, span := tracing.Start(ctx, "store.targets_of")
	defer span.End()

	var rows []struct {
		Target string
		Idx    int32
		Extant bool
	}
	if err := s.db.NewRaw(stmtEdgesFromLatest, graph, source, branch, rev, branch).Scan(ctx, &rows); err != nil {
		return nil, wrapStorage(err, "targets_of")
	}
	out := make([]EdgeEndState, len(rows))
	for i, r := range rows {
		out[i] = EdgeEndState{Node: r.Target, Idx: r.Idx, Extant: r.Extant}
	}
	return out, nil
}

func (s *Store) EdgesToLatest(ctx context.Context, graph, target, branch string, rev int64) ([]EdgeEndState, error) {
	ctx, span := tracing.Start(ctx, "store.sources_of")
	defer span.End()

	var rows []struct {
		Source string
		Idx    int32
		Extant bool
	}
	if err := s.db.NewRaw(stmtEdgesToLatest, graph, target, branch, rev, branch).Scan(ctx, &rows); err != nil {
		return nil, wrapStorage(err, "sources_of")
	}
	out := make([]EdgeEndState, len(rows))
	for i, r := range rows {
		out[i] = EdgeEndState{Node: r.Source, Idx: r.Idx, Extant: r.Extant}
	}
	return out, nil
}

func (s *Store) EdgeValLatestKeys(ctx context.Context, graph, source, target string, idx int32, branch string, rev int64) (map[string]*string, error) {
	ctx, span := tracing.Start(ctx, "store.edge_val_keys")
	defer span.End()

	var rows []struct {
		Key   string
		Value *string
	}
	if err := s.db.NewRaw(stmtEdgeValLatestKeys, graph, source, target, idx, branch, rev, branch).Scan(ctx, &rows); err != nil {
		return nil, wrapStorage(err, "edge_val_keys")
	}
	out := make(map[string]*string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

func (s *Store) EdgeValLatestGet(ctx context.Context, graph, source, target string, idx int32, key, branch string, rev int64) (value *string, found bool, err error) {
	ctx, span := tracing.Start(ctx, "store.edge_val_get")
	defer span.End()

	err = s.db.NewRaw(stmtEdgeValLatestGet, graph, source, target, idx, key, branch, rev, branch).Scan(ctx, &value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapStorage(err, "edge_val_get")
	}
	return value, true, nil
}

func (s *Store) EdgeValSet(ctx context.Context, graph, source, target string, idx int32, key, branch string, rev int64, value *string) (err error) {
	ctx, span := tracing.Start(ctx, "store.edge_val_set")
	defer span.End()
	defer instrument("edge_val_set")(&err)

	_, rawErr := s.db.NewRaw(stmtEdgeValUpsert, graph, source, target, idx, key, branch, rev, value).Exec(ctx)
	err = wrapStorage(rawErr, "edge_val_set")
	return err
}

func (s *Store) EdgeValWindow(ctx context.Context, graph, source, target string, idx int32, key, branch string, fromRev, toRev int64) ([]RevValue, error) {
	ctx, span := tracing.Start(ctx, "store.edge_val_window")
	defer span.End()

	var rows []RevValue
	if err := s.db.NewRaw(stmtEdgeValWindow, graph, source, target, idx, key, branch, fromRev, toRev).Scan(ctx, &rows); err != nil {
		return nil, wrapStorage(err, "edge_val_window")
	}
	return rows, nil
}

// --- initialization ---------------------------------------------------------

// schemaCheck reports a query against a table migrations should already have
// created as ErrSchemaError rather than the generic ErrStorageError, so
// InitDB against a non-empty, incompatible database (wrong app, stale
// checkout, schema never migrated) fails distinctly from an ordinary
// connectivity or query failure.
func schemaCheck(err error) error {
	if err != nil && pgutils.IsUndefinedTable(err) {
		return fmt.Errorf("%w: %w", ErrSchemaError, err)
	}
	return err
}

// InitDB is idempotent on a fresh, already-migrated database: table and
// index creation is the migrations package's job (§4.12), so this only
// ensures the global branch/rev cursor keys and the master branch row
// exist, tolerating either already being present (a migration that seeds
// them, a prior InitDB call, or both). A database whose migrations never
// ran, or whose tables belong to an unrelated schema, fails fast with
// ErrSchemaError instead of a generic storage error.
func (s *Store) InitDB(ctx context.Context) (err error) {
	ctx, span := tracing.Start(ctx, "store.initdb")
	defer span.End()
	defer instrument("initdb")(&err)

	if _, ok, getErr := s.GlobalGet(ctx, globalKeyBranch); getErr != nil {
		err = schemaCheck(getErr)
		return err
	} else if !ok {
		branchText, encErr := encodeGlobalText(masterBranch)
		if encErr != nil {
			err = encErr
			return err
		}
		if setErr := s.GlobalSet(ctx, globalKeyBranch, branchText); setErr != nil {
			err = setErr
			return err
		}
	}

	if _, ok, getErr := s.GlobalGet(ctx, globalKeyRev); getErr != nil {
		err = schemaCheck(getErr)
		return err
	} else if !ok {
		revText, encErr := encodeGlobalInt(0)
		if encErr != nil {
			err = encErr
			return err
		}
		if setErr := s.GlobalSet(ctx, globalKeyRev, revText); setErr != nil {
			err = setErr
			return err
		}
	}

	have, haveErr := s.HaveBranch(ctx, masterBranch)
	if haveErr != nil {
		err = schemaCheck(haveErr)
		return err
	}
	if !have {
		if newErr := s.NewBranch(ctx, masterBranch, masterBranch, 0); newErr != nil && !errors.Is(newErr, ErrDuplicateGraph) {
			err = newErr
			return err
		}
	}
	return nil
}
