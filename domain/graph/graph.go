package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/emergent-company/branchgraph/pkg/codec"
	"github.com/emergent-company/branchgraph/pkg/tracing"

	vs "github.com/emergent-company/branchgraph/domain/versionedstore"
)

// State is the observable node/edge lifecycle state implied by the closest
// ancestor record at the current cursor position.
type State int

const (
	StateAbsent State = iota
	StatePresent
	StateDeleted
)

func isUnsetError(err error) bool {
	return errors.Is(err, vs.ErrKeyNotSet) || errors.Is(err, vs.ErrKeyNever)
}

// Graph is a handle on one named graph, opened against a session's current
// cursor position. All views it hands out share that session, so moving the
// session's cursor moves every view obtained from this Graph.
type Graph struct {
	session *vs.Session
	name    string
	kind    vs.GraphKind
}

// Open resolves name to its kind and returns a Graph handle, or
// vs.ErrNoSuchGraph if it does not exist.
func Open(ctx context.Context, session *vs.Session, name string) (*Graph, error) {
	kind, err := session.Store.GraphKind(ctx, name)
	if err != nil {
		return nil, err
	}
	return &Graph{session: session, name: name, kind: kind}, nil
}

// Create makes a new graph of the given kind and returns a handle to it.
func Create(ctx context.Context, session *vs.Session, name string, kind vs.GraphKind) (*Graph, error) {
	if err := session.NewGraph(ctx, name, kind); err != nil {
		return nil, err
	}
	return &Graph{session: session, name: name, kind: kind}, nil
}

func (g *Graph) Name() string       { return g.name }
func (g *Graph) Kind() vs.GraphKind { return g.kind }

// Directed reports whether successor/predecessor views are asymmetric for
// this graph's kind.
func (g *Graph) Directed() bool {
	return g.kind == vs.KindDirected || g.kind == vs.KindMultiDirected
}

// MultiEdge reports whether this graph's kind allocates more than one
// parallel edge per (source, target) pair.
func (g *Graph) MultiEdge() bool {
	return g.kind == vs.KindMulti || g.kind == vs.KindMultiDirected
}

// Attrs is the graph's own attribute mapping.
func (g *Graph) Attrs() Mapping { return graphAttrs{g} }

// Nodes is the node-existence view: get/contains report whether a node is
// present, set creates or revives it, delete tombstones it.
func (g *Graph) Nodes() *NodeSet { return &NodeSet{g: g} }

// NodeAttrs returns the attribute mapping for one node. Writes do not check
// that the node exists — attribute writes on an absent node are well-defined
// (absent -> present is "any write") — but a Get surfaces ErrNoSuchNode when
// the node itself is absent or tombstoned at the current cursor, rather than
// the more specific key-level error that would otherwise leak through.
func (g *Graph) NodeAttrs(node string) Mapping { return nodeAttrs{g: g, node: node} }

// Adjacency returns the outgoing view from source: contains/set/delete
// address a single-edge graph's one possible edge to a target; on a
// multi-edge graph they act on the parallel edges as described on Adjacency.
// Callers of a multi-edge graph that need individual parallel edges use
// ParallelEdges instead.
func (g *Graph) Adjacency(source string) *Adjacency { return &Adjacency{g: g, source: source} }

// ParallelEdges returns the full set of parallel edges between source and
// target on a multi-edge graph.
func (g *Graph) ParallelEdges(source, target string) *ParallelEdges {
	return &ParallelEdges{g: g, source: source, target: target}
}

// EdgeAttrs returns the attribute mapping for one specific edge.
func (g *Graph) EdgeAttrs(source, target string, idx int32) Mapping {
	return edgeAttrs{g: g, source: source, target: target, idx: idx}
}

// Predecessors lists nodes with an edge into target. Only meaningful on
// directed variants; on undirected graphs it returns the same set as
// Adjacency would for target, since every edge was written reciprocally.
func (g *Graph) Predecessors(ctx context.Context, target string) ([]string, error) {
	ctx, span := tracing.Start(ctx, "graph.predecessors")
	defer span.End()

	ends, err := g.session.Lookup.Predecessors(ctx, g.name, target)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(ends))
	out := make([]string, 0, len(ends))
	for _, e := range ends {
		if !seen[e.Node] {
			seen[e.Node] = true
			out = append(out, e.Node)
		}
	}
	return out, nil
}

// --- graph attribute mapping -------------------------------------------------

type graphAttrs struct{ g *Graph }

func (m graphAttrs) Get(ctx context.Context, key string) (codec.Value, error) {
	return m.g.session.Lookup.GraphVal(ctx, m.g.name, key)
}

func (m graphAttrs) Set(ctx context.Context, key string, value codec.Value) error {
	return m.g.session.GraphValSet(ctx, m.g.name, key, value)
}

func (m graphAttrs) Delete(ctx context.Context, key string) error {
	return m.g.session.GraphValDel(ctx, m.g.name, key)
}

func (m graphAttrs) Contains(ctx context.Context, key string) (bool, error) {
	return containsViaGet(ctx, m.Get, key)
}

func (m graphAttrs) Keys(ctx context.Context) ([]string, error) {
	return m.g.session.Lookup.GraphValKeys(ctx, m.g.name)
}

func (m graphAttrs) Size(ctx context.Context) (int, error) {
	return sizeViaKeys(ctx, m.Keys)
}

// --- node attribute mapping --------------------------------------------------

type nodeAttrs struct {
	g    *Graph
	node string
}

func (m nodeAttrs) Get(ctx context.Context, key string) (codec.Value, error) {
	extant, err := m.g.session.Lookup.NodeExtant(ctx, m.g.name, m.node)
	if err != nil {
		return codec.Value{}, err
	}
	if !extant {
		return codec.Value{}, fmt.Errorf("node %q: %w", m.node, vs.ErrNoSuchNode)
	}
	return m.g.session.Lookup.NodeVal(ctx, m.g.name, m.node, key)
}

func (m nodeAttrs) Set(ctx context.Context, key string, value codec.Value) error {
	return m.g.session.NodeValSet(ctx, m.g.name, m.node, key, value)
}

func (m nodeAttrs) Delete(ctx context.Context, key string) error {
	return m.g.session.NodeValDel(ctx, m.g.name, m.node, key)
}

func (m nodeAttrs) Contains(ctx context.Context, key string) (bool, error) {
	return containsViaGet(ctx, m.Get, key)
}

func (m nodeAttrs) Keys(ctx context.Context) ([]string, error) {
	return m.g.session.Lookup.NodeValKeys(ctx, m.g.name, m.node)
}

func (m nodeAttrs) Size(ctx context.Context) (int, error) {
	return sizeViaKeys(ctx, m.Keys)
}

// --- edge attribute mapping --------------------------------------------------

type edgeAttrs struct {
	g              *Graph
	source, target string
	idx            int32
}

func (m edgeAttrs) Get(ctx context.Context, key string) (codec.Value, error) {
	extant, err := m.g.session.Lookup.EdgeExtant(ctx, m.g.name, m.source, m.target, m.idx)
	if err != nil {
		return codec.Value{}, err
	}
	if !extant {
		return codec.Value{}, fmt.Errorf("edge %q->%q[%d]: %w", m.source, m.target, m.idx, vs.ErrNoSuchEdge)
	}
	return m.g.session.Lookup.EdgeVal(ctx, m.g.name, m.source, m.target, m.idx, key)
}

func (m edgeAttrs) Set(ctx context.Context, key string, value codec.Value) error {
	if err := m.g.session.EdgeValSet(ctx, m.g.name, m.source, m.target, m.idx, key, value); err != nil {
		return err
	}
	if !m.g.Directed() {
		return m.g.session.EdgeValSet(ctx, m.g.name, m.target, m.source, m.idx, key, value)
	}
	return nil
}

func (m edgeAttrs) Delete(ctx context.Context, key string) error {
	if err := m.g.session.EdgeValDel(ctx, m.g.name, m.source, m.target, m.idx, key); err != nil {
		return err
	}
	if !m.g.Directed() {
		return m.g.session.EdgeValDel(ctx, m.g.name, m.target, m.source, m.idx, key)
	}
	return nil
}

func (m edgeAttrs) Contains(ctx context.Context, key string) (bool, error) {
	return containsViaGet(ctx, m.Get, key)
}

func (m edgeAttrs) Keys(ctx context.Context) ([]string, error) {
	return m.g.session.Lookup.EdgeValKeys(ctx, m.g.name, m.source, m.target, m.idx)
}

func (m edgeAttrs) Size(ctx context.Context) (int, error) {
	return sizeViaKeys(ctx, m.Keys)
}
