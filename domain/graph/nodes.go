package graph

import (
	"context"

	"github.com/emergent-company/branchgraph/pkg/codec"
	"github.com/emergent-company/branchgraph/pkg/tracing"
)

// NodeSet is the node-existence view over a graph: contains(n) answers
// whether n is extant at the cursor's position, set(n, true) creates or
// revives it, set(n, false)/delete(n) tombstones it.
type NodeSet struct{ g *Graph }

// Contains reports whether node is currently extant.
func (n *NodeSet) Contains(ctx context.Context, node string) (bool, error) {
	return n.g.session.Lookup.NodeExtant(ctx, n.g.name, node)
}

// Set marks node extant (absent/deleted -> present) or tombstones it
// (present -> deleted) at the current cursor position.
func (n *NodeSet) Set(ctx context.Context, node string, extant bool) error {
	return n.g.session.NodeSet(ctx, n.g.name, node, extant)
}

// Add marks node extant without touching any attribute it may already carry
// from an earlier, later-tombstoned existence.
func (n *NodeSet) Add(ctx context.Context, node string) error {
	return n.Set(ctx, node, true)
}

// Delete replaces the node's whole attribute container per §4.6: tombstone
// every attribute the node currently carries, then tombstone the node's own
// existence record.
func (n *NodeSet) Delete(ctx context.Context, node string) error {
	ctx, span := tracing.Start(ctx, "graph.node_delete")
	defer span.End()

	attrs := n.g.NodeAttrs(node)
	keys, err := attrs.Keys(ctx)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := attrs.Delete(ctx, k); err != nil {
			return err
		}
	}
	return n.Set(ctx, node, false)
}

// Replace implements §4.6's "nodes[n] = {...}" whole-container assignment:
// clear any existing attributes, mark the node extant, then set the given
// attributes one by one, in Go map iteration order.
func (n *NodeSet) Replace(ctx context.Context, node string, attrs map[string]codec.Value) error {
	if err := n.Delete(ctx, node); err != nil {
		return err
	}
	if err := n.Set(ctx, node, true); err != nil {
		return err
	}
	dst := n.g.NodeAttrs(node)
	for k, v := range attrs {
		if err := dst.Set(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

// All returns every currently-extant node.
func (n *NodeSet) All(ctx context.Context) ([]string, error) {
	return n.g.session.Lookup.ExtantNodes(ctx, n.g.name)
}

// State reports node's observable lifecycle state at the cursor's position:
// absent if no ancestor ever recorded it, present if its closest record says
// extant, deleted if its closest record is a tombstone.
func (n *NodeSet) State(ctx context.Context, node string) (State, error) {
	branch, rev := n.g.session.Cursor.Position()
	points, err := n.g.session.Cursor.Ancestors(ctx, branch, rev)
	if err != nil {
		return StateAbsent, err
	}
	for _, p := range points {
		extant, found, err := n.g.session.Store.NodeExtantOne(ctx, n.g.name, node, p.Branch, p.Rev)
		if err != nil {
			return StateAbsent, err
		}
		if !found {
			continue
		}
		if extant {
			return StatePresent, nil
		}
		return StateDeleted, nil
	}
	return StateAbsent, nil
}
