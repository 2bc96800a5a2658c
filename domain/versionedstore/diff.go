package versionedstore

import (
	"context"

	"github.com/emergent-company/branchgraph/pkg/codec"
	"github.com/emergent-company/branchgraph/pkg/tracing"
)

// ValueChange names one key whose decoded value differs between two
// points in history. Before or After is nil when the key was unset (never
// recorded, or tombstoned) at that point.
type ValueChange struct {
	Key    string
	Before *codec.Value
	After  *codec.Value
}

// Point names one (branch, rev) position to compare against another.
type Point struct {
	Branch string
	Rev    int64
}

func decodeOrNil(text *string) (*codec.Value, error) {
	if text == nil {
		return nil, nil
	}
	v, err := codec.Decode(*text)
	if err != nil {
		return nil, &EncodingErrorWrap{Cause: err}
	}
	return &v, nil
}

// EncodingErrorWrap lets a malformed stored value surface as
// ErrEncodingError without losing the underlying codec failure.
type EncodingErrorWrap struct{ Cause error }

func (e *EncodingErrorWrap) Error() string { return "versionedstore: " + e.Cause.Error() }
func (e *EncodingErrorWrap) Unwrap() error { return ErrEncodingError }

// PreviousPoint resolves the "before" point of a changes-from-previous-
// revision comparison at the cursor's current position: one revision back
// on the current branch, or the branch's own fork point when the current
// rev is exactly where the branch started — looking one revision further
// back on a freshly forked branch would inspect history the branch never
// owned.
func (l *Lookup) PreviousPoint(ctx context.Context) (Point, error) {
	branch, rev := l.cursor.Position()
	parent, parentRev, err := l.cursor.ParentOf(ctx, branch)
	if err != nil {
		return Point{}, err
	}
	if rev == parentRev {
		return Point{Branch: parent, Rev: parentRev}, nil
	}
	return Point{Branch: branch, Rev: rev - 1}, nil
}

// ChangesSinceGraphVal reports every graph-attribute key that changed
// between the cursor's current position and its changes-from-previous-
// revision "before" point (see PreviousPoint).
func (l *Lookup) ChangesSinceGraphVal(ctx context.Context, graph string) ([]ValueChange, error) {
	before, err := l.PreviousPoint(ctx)
	if err != nil {
		return nil, err
	}
	branch, rev := l.cursor.Position()
	return l.CompareGraphVal(ctx, graph, before, Point{Branch: branch, Rev: rev})
}

// ChangesSinceNodeVal is ChangesSinceGraphVal for one node's attributes.
func (l *Lookup) ChangesSinceNodeVal(ctx context.Context, graph, node string) ([]ValueChange, error) {
	before, err := l.PreviousPoint(ctx)
	if err != nil {
		return nil, err
	}
	branch, rev := l.cursor.Position()
	return l.CompareNodeVal(ctx, graph, node, before, Point{Branch: branch, Rev: rev})
}

// ChangesSinceEdgeVal is ChangesSinceGraphVal for one edge's attributes.
func (l *Lookup) ChangesSinceEdgeVal(ctx context.Context, graph, source, target string, idx int32) ([]ValueChange, error) {
	before, err := l.PreviousPoint(ctx)
	if err != nil {
		return nil, err
	}
	branch, rev := l.cursor.Position()
	return l.CompareEdgeVal(ctx, graph, source, target, idx, before, Point{Branch: branch, Rev: rev})
}

// CompareGraphVal reports every graph-attribute key whose latest value
// (within its own branch, no ancestor walk) differs between the two
// named points.
func (l *Lookup) CompareGraphVal(ctx context.Context, graph string, a, b Point) ([]ValueChange, error) {
	ctx, span := tracing.Start(ctx, "lookup.compare_graph_val")
	defer span.End()

	before, err := l.store.GraphValLatestKeys(ctx, graph, a.Branch, a.Rev)
	if err != nil {
		return nil, err
	}
	after, err := l.store.GraphValLatestKeys(ctx, graph, b.Branch, b.Rev)
	if err != nil {
		return nil, err
	}
	return diffValueMaps(before, after)
}

// CompareNodeVal is CompareGraphVal for one node's attributes.
func (l *Lookup) CompareNodeVal(ctx context.Context, graph, node string, a, b Point) ([]ValueChange, error) {
	ctx, span := tracing.Start(ctx, "lookup.compare_node_val")
	defer span.End()

	before, err := l.store.NodeValLatestKeys(ctx, graph, node, a.Branch, a.Rev)
	if err != nil {
		return nil, err
	}
	after, err := l.store.NodeValLatestKeys(ctx, graph, node, b.Branch, b.Rev)
	if err != nil {
		return nil, err
	}
	return diffValueMaps(before, after)
}

// CompareEdgeVal is CompareGraphVal for one edge's attributes.
func (l *Lookup) CompareEdgeVal(ctx context.Context, graph, source, target string, idx int32, a, b Point) ([]ValueChange, error) {
	ctx, span := tracing.Start(ctx, "lookup.compare_edge_val")
	defer span.End()

	before, err := l.store.EdgeValLatestKeys(ctx, graph, source, target, idx, a.Branch, a.Rev)
	if err != nil {
		return nil, err
	}
	after, err := l.store.EdgeValLatestKeys(ctx, graph, source, target, idx, b.Branch, b.Rev)
	if err != nil {
		return nil, err
	}
	return diffValueMaps(before, after)
}

func diffValueMaps(before, after map[string]*string) ([]ValueChange, error) {
	keys := make(map[string]struct{}, len(before)+len(after))
	for k := range before {
		keys[k] = struct{}{}
	}
	for k := range after {
		keys[k] = struct{}{}
	}

	var changes []ValueChange
	for k := range keys {
		bv, aw := before[k], after[k]
		if samePointer(bv, aw) {
			continue
		}
		beforeVal, err := decodeOrNil(bv)
		if err != nil {
			return nil, err
		}
		afterVal, err := decodeOrNil(aw)
		if err != nil {
			return nil, err
		}
		if beforeVal == nil && afterVal == nil {
			continue
		}
		if beforeVal != nil && afterVal != nil && codec.Equal(*beforeVal, *afterVal) {
			continue
		}
		changes = append(changes, ValueChange{Key: k, Before: beforeVal, After: afterVal})
	}
	return changes, nil
}

func samePointer(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// HistoryEntry is one revision of a key's recorded value on a single
// branch. Value is nil for a tombstone.
type HistoryEntry struct {
	Rev   int64
	Value *codec.Value
}

// WindowGraphVal returns every revision recorded for a graph-attribute key
// on branch within [fromRev, toRev], in ascending revision order. Unlike
// Lookup's point reads, Window never walks ancestor branches — it reports
// exactly what was written on the named branch.
func (l *Lookup) WindowGraphVal(ctx context.Context, graph, key, branch string, fromRev, toRev int64) ([]HistoryEntry, error) {
	ctx, span := tracing.Start(ctx, "lookup.window_graph_val")
	defer span.End()

	rows, err := l.store.GraphValWindow(ctx, graph, key, branch, fromRev, toRev)
	if err != nil {
		return nil, err
	}
	return decodeHistory(rows)
}

func (l *Lookup) WindowNodeVal(ctx context.Context, graph, node, key, branch string, fromRev, toRev int64) ([]HistoryEntry, error) {
	ctx, span := tracing.Start(ctx, "lookup.window_node_val")
	defer span.End()

	rows, err := l.store.NodeValWindow(ctx, graph, node, key, branch, fromRev, toRev)
	if err != nil {
		return nil, err
	}
	return decodeHistory(rows)
}

func (l *Lookup) WindowEdgeVal(ctx context.Context, graph, source, target string, idx int32, key, branch string, fromRev, toRev int64) ([]HistoryEntry, error) {
	ctx, span := tracing.Start(ctx, "lookup.window_edge_val")
	defer span.End()

	rows, err := l.store.EdgeValWindow(ctx, graph, source, target, idx, key, branch, fromRev, toRev)
	if err != nil {
		return nil, err
	}
	return decodeHistory(rows)
}

func decodeHistory(rows []RevValue) ([]HistoryEntry, error) {
	out := make([]HistoryEntry, len(rows))
	for i, r := range rows {
		v, err := decodeOrNil(r.Value)
		if err != nil {
			return nil, err
		}
		out[i] = HistoryEntry{Rev: r.Rev, Value: v}
	}
	return out, nil
}
