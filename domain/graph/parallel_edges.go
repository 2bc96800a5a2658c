package graph

import "context"

// ParallelEdges is the set of parallel edges between one (source, target)
// pair on a multi-edge graph. On single-edge graphs it has at most one
// member, at idx 0.
type ParallelEdges struct {
	g              *Graph
	source, target string
}

// Idxs returns every currently-extant parallel edge index.
func (p *ParallelEdges) Idxs(ctx context.Context) ([]int32, error) {
	idxs, err := p.g.session.Lookup.ExtantEdgeIdxs(ctx, p.g.name, p.source, p.target)
	if err != nil {
		return nil, err
	}
	out := make([]int32, 0, len(idxs))
	for idx, extant := range idxs {
		if extant {
			out = append(out, idx)
		}
	}
	return out, nil
}

// Add allocates a fresh parallel edge index and marks it extant, returning
// the index written. On a single-edge graph the index is always 0.
func (p *ParallelEdges) Add(ctx context.Context) (int32, error) {
	var idx int32
	if p.g.MultiEdge() {
		next, err := p.g.session.Lookup.NextEdgeIdx(ctx, p.g.name, p.source, p.target)
		if err != nil {
			return 0, err
		}
		idx = next
	}
	if err := p.g.session.EdgeSet(ctx, p.g.name, p.source, p.target, idx, true); err != nil {
		return 0, err
	}
	if !p.g.Directed() {
		if err := p.g.session.EdgeSet(ctx, p.g.name, p.target, p.source, idx, true); err != nil {
			return 0, err
		}
	}
	return idx, nil
}

// Delete tombstones the parallel edge at idx, freeing that index for reuse
// by a later Add.
func (p *ParallelEdges) Delete(ctx context.Context, idx int32) error {
	if err := p.g.session.EdgeSet(ctx, p.g.name, p.source, p.target, idx, false); err != nil {
		return err
	}
	if !p.g.Directed() {
		return p.g.session.EdgeSet(ctx, p.g.name, p.target, p.source, idx, false)
	}
	return nil
}

// Contains reports whether idx is currently extant between source and
// target.
func (p *ParallelEdges) Contains(ctx context.Context, idx int32) (bool, error) {
	return p.g.session.Lookup.EdgeExtant(ctx, p.g.name, p.source, p.target, idx)
}
