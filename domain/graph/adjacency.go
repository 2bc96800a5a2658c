package graph

import (
	"context"

	"github.com/emergent-company/branchgraph/pkg/codec"
)

// Adjacency is the outgoing-edge view from one source node. On a
// single-edge graph it addresses the one possible edge to each target. On a
// multi-edge graph Contains looks at every parallel index, Set reuses an
// extant index (which one, when several are extant, is not defined) or
// allocates a fresh one, and Delete tombstones parallel edge 0 only.
type Adjacency struct {
	g      *Graph
	source string
}

// Contains reports whether an edge from source to target currently exists
// (any parallel index, for multi-edge graphs).
func (a *Adjacency) Contains(ctx context.Context, target string) (bool, error) {
	idxs, err := a.g.session.Lookup.ExtantEdgeIdxs(ctx, a.g.name, a.source, target)
	if err != nil {
		return false, err
	}
	for _, extant := range idxs {
		if extant {
			return true, nil
		}
	}
	return false, nil
}

// Set creates an edge to target, reusing an already-extant parallel edge
// when one exists between source and target, or allocating a fresh index
// (§4.6) when none does. Returns the index written.
func (a *Adjacency) Set(ctx context.Context, target string, attrs map[string]codec.Value) (int32, error) {
	idx, err := a.resolveIdx(ctx, target)
	if err != nil {
		return 0, err
	}
	if err := a.writeEdge(ctx, target, idx, attrs); err != nil {
		return 0, err
	}
	return idx, nil
}

func (a *Adjacency) resolveIdx(ctx context.Context, target string) (int32, error) {
	idxs, err := a.g.session.Lookup.ExtantEdgeIdxs(ctx, a.g.name, a.source, target)
	if err != nil {
		return 0, err
	}
	for idx, extant := range idxs {
		if extant {
			return idx, nil
		}
	}
	if !a.g.MultiEdge() {
		return 0, nil
	}
	return a.g.session.Lookup.NextEdgeIdx(ctx, a.g.name, a.source, target)
}

func (a *Adjacency) writeEdge(ctx context.Context, target string, idx int32, attrs map[string]codec.Value) error {
	if err := a.g.session.EdgeSet(ctx, a.g.name, a.source, target, idx, true); err != nil {
		return err
	}
	if !a.g.Directed() {
		if err := a.g.session.EdgeSet(ctx, a.g.name, target, a.source, idx, true); err != nil {
			return err
		}
	}
	dst := a.g.EdgeAttrs(a.source, target, idx)
	for k, v := range attrs {
		if err := dst.Set(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

// Delete tombstones the edge from source to target at idx 0 (the edge a
// plain Delete without an index affects).
func (a *Adjacency) Delete(ctx context.Context, target string) error {
	return a.g.ParallelEdges(a.source, target).Delete(ctx, 0)
}

// Targets returns every node currently reachable from source by one edge.
func (a *Adjacency) Targets(ctx context.Context) ([]string, error) {
	ends, err := a.g.session.Lookup.Successors(ctx, a.g.name, a.source)
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
