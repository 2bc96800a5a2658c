package graph_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emergent-company/branchgraph/domain/graph"
	vs "github.com/emergent-company/branchgraph/domain/versionedstore"
	"github.com/emergent-company/branchgraph/internal/testutil"
	"github.com/emergent-company/branchgraph/pkg/codec"
)

func newTestSession(t *testing.T) (*vs.Session, func()) {
	t.Helper()
	ctx := context.Background()

	db, err := testutil.SetupTestDB(ctx, "graph")
	if err != nil {
		t.Skipf("skipping: postgres unavailable: %v", err)
	}

	session, err := vs.Open(ctx, db.DB)
	require.NoError(t, err)

	return session, db.Close
}

func TestCreateSetReadGraphAttrs(t *testing.T) {
	session, cleanup := newTestSession(t)
	defer cleanup()
	ctx := context.Background()

	g, err := graph.Create(ctx, session, "g", vs.KindPlain)
	require.NoError(t, err)

	require.NoError(t, g.Attrs().Set(ctx, "title", codec.Text("hello")))

	v, err := g.Attrs().Get(ctx, "title")
	require.NoError(t, err)
	title, _ := v.AsText()
	require.Equal(t, "hello", title)

	keys, err := g.Attrs().Keys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"title"}, keys)
}

func TestNodeTombstoneThenRestore(t *testing.T) {
	session, cleanup := newTestSession(t)
	defer cleanup()
	ctx := context.Background()

	g, err := graph.Create(ctx, session, "g", vs.KindPlain)
	require.NoError(t, err)
	require.NoError(t, g.Nodes().Add(ctx, "n"))

	require.NoError(t, g.NodeAttrs("n").Set(ctx, "hp", codec.Int(10)))
	rev1, err := session.Commit(ctx)
	require.NoError(t, err)

	require.NoError(t, g.NodeAttrs("n").Delete(ctx, "hp"))
	rev2, err := session.Commit(ctx)
	require.NoError(t, err)
	_ = rev2

	require.NoError(t, g.NodeAttrs("n").Set(ctx, "hp", codec.Int(7)))
	rev3, err := session.Commit(ctx)
	require.NoError(t, err)
	_ = rev3

	v, err := g.NodeAttrs("n").Get(ctx, "hp")
	require.NoError(t, err)
	hp, _ := v.AsInt()
	require.Equal(t, int64(7), hp)

	require.NoError(t, session.SwitchBranch(ctx, "check", session.Cursor.Rev()))
	require.NoError(t, session.SwitchBranch(ctx, "master", rev1))
	_, err = g.NodeAttrs("n").Get(ctx, "hp")
	require.ErrorIs(t, err, vs.ErrKeyNotSet)
}

func TestUndirectedEdgeReciprocity(t *testing.T) {
	session, cleanup := newTestSession(t)
	defer cleanup()
	ctx := context.Background()

	g, err := graph.Create(ctx, session, "g", vs.KindPlain)
	require.NoError(t, err)

	idx, err := g.Adjacency("1").Set(ctx, "2", map[string]codec.Value{"weight": codec.Int(5)})
	require.NoError(t, err)
	require.Equal(t, int32(0), idx)

	ok, err := g.ParallelEdges("2", "1").Contains(ctx, 0)
	require.NoError(t, err)
	require.True(t, ok)

	v, err := g.EdgeAttrs("2", "1", 0).Get(ctx, "weight")
	require.NoError(t, err)
	w, _ := v.AsInt()
	require.Equal(t, int64(5), w)
}

func TestMultiEdgeIndexAllocationThroughParallelEdges(t *testing.T) {
	session, cleanup := newTestSession(t)
	defer cleanup()
	ctx := context.Background()

	g, err := graph.Create(ctx, session, "g", vs.KindMulti)
	require.NoError(t, err)

	pe := g.ParallelEdges("u", "v")
	idx0, err := pe.Add(ctx)
	require.NoError(t, err)
	idx1, err := pe.Add(ctx)
	require.NoError(t, err)
	idx2, err := pe.Add(ctx)
	require.NoError(t, err)
	require.Equal(t, []int32{0, 1, 2}, []int32{idx0, idx1, idx2})

	require.NoError(t, pe.Delete(ctx, 1))
	idxs, err := pe.Idxs(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []int32{0, 2}, idxs)

	reuse, err := pe.Add(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(1), reuse)
}

func TestDirectedAdjacencyAndPredecessors(t *testing.T) {
	session, cleanup := newTestSession(t)
	defer cleanup()
	ctx := context.Background()

	g, err := graph.Create(ctx, session, "g", vs.KindDirected)
	require.NoError(t, err)

	_, err = g.Adjacency("a").Set(ctx, "b", nil)
	require.NoError(t, err)

	targets, err := g.Adjacency("a").Targets(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, targets)

	preds, err := g.Predecessors(ctx, "b")
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, preds)

	ok, err := g.ParallelEdges("b", "a").Contains(ctx, 0)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNodeStateMachine(t *testing.T) {
	session, cleanup := newTestSession(t)
	defer cleanup()
	ctx := context.Background()

	g, err := graph.Create(ctx, session, "g", vs.KindPlain)
	require.NoError(t, err)

	state, err := g.Nodes().State(ctx, "n")
	require.NoError(t, err)
	require.Equal(t, graph.StateAbsent, state)

	require.NoError(t, g.Nodes().Add(ctx, "n"))
	state, err = g.Nodes().State(ctx, "n")
	require.NoError(t, err)
	require.Equal(t, graph.StatePresent, state)

	require.NoError(t, g.Nodes().Delete(ctx, "n"))
	state, err = g.Nodes().State(ctx, "n")
	require.NoError(t, err)
	require.Equal(t, graph.StateDeleted, state)
}

func TestNodeAttrGetOnAbsentOrTombstonedNodeFailsWithNoSuchNode(t *testing.T) {
	session, cleanup := newTestSession(t)
	defer cleanup()
	ctx := context.Background()

	g, err := graph.Create(ctx, session, "g", vs.KindPlain)
	require.NoError(t, err)

	_, err = g.NodeAttrs("ghost").Get(ctx, "hp")
	require.ErrorIs(t, err, vs.ErrNoSuchNode)

	require.NoError(t, g.Nodes().Add(ctx, "n"))
	require.NoError(t, g.Nodes().Delete(ctx, "n"))

	_, err = g.NodeAttrs("n").Get(ctx, "hp")
	require.ErrorIs(t, err, vs.ErrNoSuchNode)
}

func TestEdgeAttrGetOnAbsentEdgeFailsWithNoSuchEdge(t *testing.T) {
	session, cleanup := newTestSession(t)
	defer cleanup()
	ctx := context.Background()

	g, err := graph.Create(ctx, session, "g", vs.KindDirected)
	require.NoError(t, err)
	require.NoError(t, g.Nodes().Add(ctx, "a"))
	require.NoError(t, g.Nodes().Add(ctx, "b"))

	_, err = g.EdgeAttrs("a", "b", 0).Get(ctx, "weight")
	require.ErrorIs(t, err, vs.ErrNoSuchEdge)
}
