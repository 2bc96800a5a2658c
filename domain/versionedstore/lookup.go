package versionedstore

import (
	"context"
	"fmt"

	"github.com/emergent-company/branchgraph/pkg/codec"
	"github.com/emergent-company/branchgraph/pkg/tracing"
)

// Lookup implements the versioned read path: walk from a (branch, rev)
// position back through ancestor branches, and for each key take the value
// recorded on the first ancestor that has any record of it at all — a NULL
// value there means the key is tombstoned, which still wins over a
// non-NULL value recorded on a more distant ancestor. Store's own queries
// only ever look at one branch at a time; everything about crossing branch
// boundaries happens here.
type Lookup struct {
	store  *Store
	cursor *Cursor
}

func NewLookup(store *Store, cursor *Cursor) *Lookup {
	return &Lookup{store: store, cursor: cursor}
}

// mergeValues folds a sequence of per-branch latest-record maps into one
// first-hit-wins result: a key decided by a closer ancestor is never
// overwritten by a farther one, whether the closer record is a value or a
// tombstone (nil).
func mergeValues[K comparable](layers []map[K]*string) map[K]*string {
	out := make(map[K]*string)
	for _, layer := range layers {
		for k, v := range layer {
			if _, decided := out[k]; !decided {
				out[k] = v
			}
		}
	}
	return out
}

func mergeBools[K comparable](layers []map[K]bool) map[K]bool {
	out := make(map[K]bool)
	decided := make(map[K]bool)
	for _, layer := range layers {
		for k, v := range layer {
			if !decided[k] {
				out[k] = v
				decided[k] = true
			}
		}
	}
	return out
}

// --- graph attributes -------------------------------------------------------

func (l *Lookup) GraphVal(ctx context.Context, graph, key string) (codec.Value, error) {
	ctx, span := tracing.Start(ctx, "lookup.graph_val_get")
	defer span.End()

	branch, rev := l.cursor.Position()
	points, err := l.cursor.Ancestors(ctx, branch, rev)
	if err != nil {
		return codec.Value{}, err
	}

	for _, p := range points {
		value, found, err := l.store.GraphValLatestGet(ctx, graph, key, p.Branch, p.Rev)
		if err != nil {
			return codec.Value{}, err
		}
		if !found {
			continue
		}
		if value == nil {
			return codec.Value{}, fmt.Errorf("graph %q key %q: %w", graph, key, ErrKeyNotSet)
		}
		v, err := codec.Decode(*value)
		if err != nil {
			return codec.Value{}, fmt.Errorf("graph %q key %q: %w: %w", graph, key, ErrEncodingError, err)
		}
		return v, nil
	}
	return codec.Value{}, fmt.Errorf("graph %q key %q: %w", graph, key, ErrKeyNever)
}

func (l *Lookup) GraphValSet(ctx context.Context, graph, key string, value codec.Value) error {
	branch, rev := l.cursor.Position()
	text, err := codec.Encode(value)
	if err != nil {
		return fmt.Errorf("graph %q key %q: %w", graph, key, ErrEncodingError)
	}
	return l.store.GraphValSet(ctx, graph, key, branch, rev, &text)
}

func (l *Lookup) GraphValDel(ctx context.Context, graph, key string) error {
	branch, rev := l.cursor.Position()
	return l.store.GraphValSet(ctx, graph, key, branch, rev, nil)
}

// GraphValKeys returns every graph-attribute key currently set (not
// tombstoned) as of the cursor's position.
func (l *Lookup) GraphValKeys(ctx context.Context, graph string) ([]string, error) {
	ctx, span := tracing.Start(ctx, "lookup.graph_val_keys")
	defer span.End()

	branch, rev := l.cursor.Position()
	points, err := l.cursor.Ancestors(ctx, branch, rev)
	if err != nil {
		return nil, err
	}
	layers := make([]map[string]*string, len(points))
	for i, p := range points {
		layer, err := l.store.GraphValLatestKeys(ctx, graph, p.Branch, p.Rev)
		if err != nil {
			return nil, err
		}
		layers[i] = layer
	}
	merged := mergeValues(layers)

	keys := make([]string, 0, len(merged))
	for k, v := range merged {
		if v != nil {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// --- node existence and attributes ------------------------------------------

func (l *Lookup) NodeExtant(ctx context.Context, graph, node string) (bool, error) {
	ctx, span := tracing.Start(ctx, "lookup.node_exists")
	defer span.End()

	branch, rev := l.cursor.Position()
	points, err := l.cursor.Ancestors(ctx, branch, rev)
	if err != nil {
		return false, err
	}
	for _, p := range points {
		extant, found, err := l.store.NodeExtantOne(ctx, graph, node, p.Branch, p.Rev)
		if err != nil {
			return false, err
		}
		if found {
			return extant, nil
		}
	}
	return false, nil
}

func (l *Lookup) NodeSet(ctx context.Context, graph, node string, extant bool) error {
	branch, rev := l.cursor.Position()
	return l.store.NodeSet(ctx, graph, node, branch, rev, extant)
}

// ExtantNodes returns every node currently extant in graph.
func (l *Lookup) ExtantNodes(ctx context.Context, graph string) ([]string, error) {
	ctx, span := tracing.Start(ctx, "lookup.nodes_extant")
	defer span.End()

	branch, rev := l.cursor.Position()
	points, err := l.cursor.Ancestors(ctx, branch, rev)
	if err != nil {
		return nil, err
	}
	layers := make([]map[string]bool, len(points))
	for i, p := range points {
		layer, err := l.store.NodeExtantLatest(ctx, graph, p.Branch, p.Rev)
		if err != nil {
			return nil, err
		}
		layers[i] = layer
	}
	merged := mergeBools(layers)

	nodes := make([]string, 0, len(merged))
	for n, extant := range merged {
		if extant {
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}

func (l *Lookup) NodeVal(ctx context.Context, graph, node, key string) (codec.Value, error) {
	ctx, span := tracing.Start(ctx, "lookup.node_val_get")
	defer span.End()

	branch, rev := l.cursor.Position()
	points, err := l.cursor.Ancestors(ctx, branch, rev)
	if err != nil {
		return codec.Value{}, err
	}
	for _, p := range points {
		value, found, err := l.store.NodeValLatestGet(ctx, graph, node, key, p.Branch, p.Rev)
		if err != nil {
			return codec.Value{}, err
		}
		if !found {
			continue
		}
		if value == nil {
			return codec.Value{}, fmt.Errorf("node %q key %q: %w", node, key, ErrKeyNotSet)
		}
		v, err := codec.Decode(*value)
		if err != nil {
			return codec.Value{}, fmt.Errorf("node %q key %q: %w: %w", node, key, ErrEncodingError, err)
		}
		return v, nil
	}
	return codec.Value{}, fmt.Errorf("node %q key %q: %w", node, key, ErrKeyNever)
}

func (l *Lookup) NodeValSet(ctx context.Context, graph, node, key string, value codec.Value) error {
	branch, rev := l.cursor.Position()
	text, err := codec.Encode(value)
	if err != nil {
		return fmt.Errorf("node %q key %q: %w", node, key, ErrEncodingError)
	}
	return l.store.NodeValSet(ctx, graph, node, key, branch, rev, &text)
}

func (l *Lookup) NodeValDel(ctx context.Context, graph, node, key string) error {
	branch, rev := l.cursor.Position()
	return l.store.NodeValSet(ctx, graph, node, key, branch, rev, nil)
}

func (l *Lookup) NodeValKeys(ctx context.Context, graph, node string) ([]string, error) {
	ctx, span := tracing.Start(ctx, "lookup.node_val_keys")
	defer span.End()

	branch, rev := l.cursor.Position()
	points, err := l.cursor.Ancestors(ctx, branch, rev)
	if err != nil {
		return nil, err
	}
	layers := make([]map[string]*string, len(points))
	for i, p := range points {
		layer, err := l.store.NodeValLatestKeys(ctx, graph, node, p.Branch, p.Rev)
		if err != nil {
			return nil, err
		}
		layers[i] = layer
	}
	merged := mergeValues(layers)

	keys := make([]string, 0, len(merged))
	for k, v := range merged {
		if v != nil {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// --- edge existence and attributes ------------------------------------------

func (l *Lookup) EdgeExtant(ctx context.Context, graph, source, target string, idx int32) (bool, error) {
	ctx, span := tracing.Start(ctx, "lookup.edge_exists")
	defer span.End()

	branch, rev := l.cursor.Position()
	points, err := l.cursor.Ancestors(ctx, branch, rev)
	if err != nil {
		return false, err
	}
	for _, p := range points {
		extant, found, err := l.store.EdgeExtantOne(ctx, graph, source, target, idx, p.Branch, p.Rev)
		if err != nil {
			return false, err
		}
		if found {
			return extant, nil
		}
	}
	return false, nil
}

func (l *Lookup) EdgeSet(ctx context.Context, graph, source, target string, idx int32, extant bool) error {
	branch, rev := l.cursor.Position()
	return l.store.EdgeSet(ctx, graph, source, target, idx, branch, rev, extant)
}

// ExtantEdgeIdxs returns every parallel-edge index recorded between source
// and target, mapped to whether it is currently extant (tombstoned indices
// map to false), merged first-hit-wins across ancestor branches. Used both to enumerate edges and to allocate a fresh index.
func (l *Lookup) ExtantEdgeIdxs(ctx context.Context, graph, source, target string) (map[int32]bool, error) {
	ctx, span := tracing.Start(ctx, "lookup.multi_edges")
	defer span.End()

	branch, rev := l.cursor.Position()
	points, err := l.cursor.Ancestors(ctx, branch, rev)
	if err != nil {
		return nil, err
	}
	layers := make([]map[int32]bool, len(points))
	for i, p := range points {
		states, err := l.store.EdgeExtantLatestIdx(ctx, graph, source, target, p.Branch, p.Rev)
		if err != nil {
			return nil, err
		}
		layer := make(map[int32]bool, len(states))
		for _, s := range states {
			layer[s.Idx] = s.Extant
		}
		layers[i] = layer
	}
	return mergeBools(layers), nil
}

// NextEdgeIdx returns the smallest non-negative integer not currently
// extant between source and target, for allocating a new parallel edge.
func (l *Lookup) NextEdgeIdx(ctx context.Context, graph, source, target string) (int32, error) {
	idxs, err := l.ExtantEdgeIdxs(ctx, graph, source, target)
	if err != nil {
		return 0, err
	}
	var idx int32
	for idxs[idx] {
		idx++
	}
	return idx, nil
}

// Successors returns every (target, idx) pair currently extant from
// source, merged first-hit-wins across ancestor branches.
func (l *Lookup) Successors(ctx context.Context, graph, source string) ([]EdgeEndState, error) {
	return l.mergedEnds(ctx, "lookup.targets_of", func(ctx context.Context, branch string, rev int64) ([]EdgeEndState, error) {
		return l.store.EdgesFromLatest(ctx, graph, source, branch, rev)
	})
}

// Predecessors returns every (source, idx) pair currently extant into
// target, merged first-hit-wins across ancestor branches.
func (l *Lookup) Predecessors(ctx context.Context, graph, target string) ([]EdgeEndState, error) {
	return l.mergedEnds(ctx, "lookup.sources_of", func(ctx context.Context, branch string, rev int64) ([]EdgeEndState, error) {
		return l.store.EdgesToLatest(ctx, graph, target, branch, rev)
	})
}

type edgeEndKey struct {
	node string
	idx  int32
}

func (l *Lookup) mergedEnds(ctx context.Context, spanName string, fetch func(ctx context.Context, branch string, rev int64) ([]EdgeEndState, error)) ([]EdgeEndState, error) {
	ctx, span := tracing.Start(ctx, spanName)
	defer span.End()

	branch, rev := l.cursor.Position()
	points, err := l.cursor.Ancestors(ctx, branch, rev)
	if err != nil {
		return nil, err
	}
	layers := make([]map[edgeEndKey]bool, len(points))
	for i, p := range points {
		states, err := fetch(ctx, p.Branch, p.Rev)
		if err != nil {
			return nil, err
		}
		layer := make(map[edgeEndKey]bool, len(states))
		for _, s := range states {
			layer[edgeEndKey{node: s.Node, idx: s.Idx}] = s.Extant
		}
		layers[i] = layer
	}
	merged := mergeBools(layers)

	out := make([]EdgeEndState, 0, len(merged))
	for k, extant := range merged {
		if extant {
			out = append(out, EdgeEndState{Node: k.node, Idx: k.idx, Extant: true})
		}
	}
	return out, nil
}

func (l *Lookup) EdgeVal(ctx context.Context, graph, source, target string, idx int32, key string) (codec.Value, error) {
	ctx, span := tracing.Start(ctx, "lookup.edge_val_get")
	defer span.End()

	branch, rev := l.cursor.Position()
	points, err := l.cursor.Ancestors(ctx, branch, rev)
	if err != nil {
		return codec.Value{}, err
	}
	for _, p := range points {
		value, found, err := l.store.EdgeValLatestGet(ctx, graph, source, target, idx, key, p.Branch, p.Rev)
		if err != nil {
			return codec.Value{}, err
		}
		if !found {
			continue
		}
		if value == nil {
			return codec.Value{}, fmt.Errorf("edge %q->%q[%d] key %q: %w", source, target, idx, key, ErrKeyNotSet)
		}
		v, err := codec.Decode(*value)
		if err != nil {
			return codec.Value{}, fmt.Errorf("edge %q->%q[%d] key %q: %w: %w", source, target, idx, key, ErrEncodingError, err)
		}
		return v, nil
	}
	return codec.Value{}, fmt.Errorf("edge %q->%q[%d] key %q: %w", source, target, idx, key, ErrKeyNever)
}

func (l *Lookup) EdgeValSet(ctx context.Context, graph, source, target string, idx int32, key string, value codec.Value) error {
	branch, rev := l.cursor.Position()
	text, err := codec.Encode(value)
	if err != nil {
		return fmt.Errorf("edge %q->%q[%d] key %q: %w", source, target, idx, key, ErrEncodingError)
	}
	return l.store.EdgeValSet(ctx, graph, source, target, idx, key, branch, rev, &text)
}

func (l *Lookup) EdgeValDel(ctx context.Context, graph, source, target string, idx int32, key string) error {
	branch, rev := l.cursor.Position()
	return l.store.EdgeValSet(ctx, graph, source, target, idx, key, branch, rev, nil)
}

func (l *Lookup) EdgeValKeys(ctx context.Context, graph, source, target string, idx int32) ([]string, error) {
	ctx, span := tracing.Start(ctx, "lookup.edge_val_keys")
	defer span.End()

	branch, rev := l.cursor.Position()
	points, err := l.cursor.Ancestors(ctx, branch, rev)
	if err != nil {
		return nil, err
	}
	layers := make([]map[string]*string, len(points))
	for i, p := range points {
		layer, err := l.store.EdgeValLatestKeys(ctx, graph, source, target, idx, p.Branch, p.Rev)
		if err != nil {
			return nil, err
		}
		layers[i] = layer
	}
	merged := mergeValues(layers)

	keys := make([]string, 0, len(merged))
	for k, v := range merged {
		if v != nil {
			keys = append(keys, k)
		}
	}
	return keys, nil
}
