package versionedstore_test

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emergent-company/branchgraph/pkg/codec"

	vs "github.com/emergent-company/branchgraph/domain/versionedstore"
)

func setupGraph(t *testing.T, session *vs.Session, ctx context.Context, name string, kind vs.GraphKind) {
	t.Helper()
	require.NoError(t, session.NewGraph(ctx, name, kind))
}

func TestNodeValSetGetTombstone(t *testing.T) {
	session, cleanup := newTestSession(t)
	defer cleanup()
	ctx := context.Background()
	setupGraph(t, session, ctx, "g", vs.KindDirected)

	require.NoError(t, session.NodeSet(ctx, "g", "alice", true))
	require.NoError(t, session.NodeValSet(ctx, "g", "alice", "role", codec.Text("admin")))

	v, err := session.Lookup.NodeVal(ctx, "g", "alice", "role")
	require.NoError(t, err)
	role, ok := v.AsText()
	require.True(t, ok)
	require.Equal(t, "admin", role)

	_, err = session.Lookup.NodeVal(ctx, "g", "alice", "missing")
	require.ErrorIs(t, err, vs.ErrKeyNever)

	require.NoError(t, session.NodeValDel(ctx, "g", "alice", "role"))
	_, err = session.Lookup.NodeVal(ctx, "g", "alice", "role")
	require.ErrorIs(t, err, vs.ErrKeyNotSet)
}

func TestNodeValKeysExcludesTombstones(t *testing.T) {
	session, cleanup := newTestSession(t)
	defer cleanup()
	ctx := context.Background()
	setupGraph(t, session, ctx, "g", vs.KindDirected)

	require.NoError(t, session.NodeSet(ctx, "g", "n1", true))
	require.NoError(t, session.NodeValSet(ctx, "g", "n1", "a", codec.Int(1)))
	require.NoError(t, session.NodeValSet(ctx, "g", "n1", "b", codec.Int(2)))
	require.NoError(t, session.NodeValDel(ctx, "g", "n1", "b"))

	keys, err := session.Lookup.NodeValKeys(ctx, "g", "n1")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a"}, keys)
}

func TestMultiEdgeIdxAllocation(t *testing.T) {
	session, cleanup := newTestSession(t)
	defer cleanup()
	ctx := context.Background()
	setupGraph(t, session, ctx, "g", vs.KindMultiDirected)

	idx0, err := session.Lookup.NextEdgeIdx(ctx, "g", "a", "b")
	require.NoError(t, err)
	require.Equal(t, int32(0), idx0)
	require.NoError(t, session.EdgeSet(ctx, "g", "a", "b", idx0, true))

	idx1, err := session.Lookup.NextEdgeIdx(ctx, "g", "a", "b")
	require.NoError(t, err)
	require.Equal(t, int32(1), idx1)
	require.NoError(t, session.EdgeSet(ctx, "g", "a", "b", idx1, true))

	// Freeing idx0 should make it the next allocation again.
	require.NoError(t, session.EdgeSet(ctx, "g", "a", "b", idx0, false))
	idxReuse, err := session.Lookup.NextEdgeIdx(ctx, "g", "a", "b")
	require.NoError(t, err)
	require.Equal(t, int32(0), idxReuse)
}

func TestSuccessorsAndPredecessors(t *testing.T) {
	session, cleanup := newTestSession(t)
	defer cleanup()
	ctx := context.Background()
	setupGraph(t, session, ctx, "g", vs.KindDirected)

	require.NoError(t, session.EdgeSet(ctx, "g", "a", "b", 0, true))
	require.NoError(t, session.EdgeSet(ctx, "g", "a", "c", 0, true))

	succ, err := session.Lookup.Successors(ctx, "g", "a")
	require.NoError(t, err)
	var targets []string
	for _, s := range succ {
		targets = append(targets, s.Node)
	}
	sort.Strings(targets)
	require.Equal(t, []string{"b", "c"}, targets)

	pred, err := session.Lookup.Predecessors(ctx, "g", "b")
	require.NoError(t, err)
	require.Len(t, pred, 1)
	require.Equal(t, "a", pred[0].Node)
}

func TestBranchSwitchAncestorShadowing(t *testing.T) {
	session, cleanup := newTestSession(t)
	defer cleanup()
	ctx := context.Background()
	setupGraph(t, session, ctx, "g", vs.KindDirected)

	require.NoError(t, session.NodeSet(ctx, "g", "n1", true))
	require.NoError(t, session.NodeValSet(ctx, "g", "n1", "color", codec.Text("red")))
	rev0, err := session.Commit(ctx)
	require.NoError(t, err)

	require.NoError(t, session.SwitchBranch(ctx, "feature", rev0))
	require.NoError(t, session.NodeValSet(ctx, "g", "n1", "color", codec.Text("blue")))

	v, err := session.Lookup.NodeVal(ctx, "g", "n1", "color")
	require.NoError(t, err)
	color, _ := v.AsText()
	require.Equal(t, "blue", color)

	require.NoError(t, session.SwitchBranch(ctx, "master", rev0))
	v, err = session.Lookup.NodeVal(ctx, "g", "n1", "color")
	require.NoError(t, err)
	color, _ = v.AsText()
	require.Equal(t, "red", color)
}

func TestSwitchBranchRejectsRevBeforeParent(t *testing.T) {
	session, cleanup := newTestSession(t)
	defer cleanup()
	ctx := context.Background()

	_, err := session.Commit(ctx)
	require.NoError(t, err)
	rev, err := session.Commit(ctx)
	require.NoError(t, err)

	require.NoError(t, session.SwitchBranch(ctx, "feature", rev))
	require.NoError(t, session.SwitchBranch(ctx, "master", rev))

	err = session.SwitchBranch(ctx, "feature", 0)
	require.ErrorIs(t, err, vs.ErrRevisionBeforeBranchStart)
}

func TestSwitchBranchRejectsSwitchFromBeforeFork(t *testing.T) {
	session, cleanup := newTestSession(t)
	defer cleanup()
	ctx := context.Background()

	_, err := session.Commit(ctx)
	require.NoError(t, err)
	forkRev, err := session.Commit(ctx)
	require.NoError(t, err)

	// "feature" forks off master at forkRev.
	require.NoError(t, session.SwitchBranch(ctx, "feature", forkRev))
	require.NoError(t, session.SwitchBranch(ctx, "master", 0))

	// Current position is now master at rev 0, before feature's fork point.
	err = session.SwitchBranch(ctx, "feature", forkRev)
	require.ErrorIs(t, err, vs.ErrInvalidBranchSwitch)
}

func TestCompareNodeVal(t *testing.T) {
	session, cleanup := newTestSession(t)
	defer cleanup()
	ctx := context.Background()
	setupGraph(t, session, ctx, "g", vs.KindDirected)

	require.NoError(t, session.NodeValSet(ctx, "g", "n1", "k", codec.Int(1)))
	before := vs.Point{Branch: "master", Rev: session.Cursor.Rev()}
	rev, err := session.Commit(ctx)
	require.NoError(t, err)
	require.NoError(t, session.NodeValSet(ctx, "g", "n1", "k", codec.Int(2)))
	after := vs.Point{Branch: "master", Rev: rev}

	changes, err := session.Lookup.CompareNodeVal(ctx, "g", "n1", before, after)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.Equal(t, "k", changes[0].Key)
	beforeInt, _ := changes[0].Before.AsInt()
	afterInt, _ := changes[0].After.AsInt()
	require.Equal(t, int64(1), beforeInt)
	require.Equal(t, int64(2), afterInt)
}

func TestChangesSinceNodeValOrdinaryRevision(t *testing.T) {
	session, cleanup := newTestSession(t)
	defer cleanup()
	ctx := context.Background()
	setupGraph(t, session, ctx, "g", vs.KindDirected)

	require.NoError(t, session.NodeValSet(ctx, "g", "n1", "k", codec.Int(1)))
	_, err := session.Commit(ctx)
	require.NoError(t, err)
	require.NoError(t, session.NodeValSet(ctx, "g", "n1", "k", codec.Int(2)))

	changes, err := session.Lookup.ChangesSinceNodeVal(ctx, "g", "n1")
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.Equal(t, "k", changes[0].Key)
	beforeInt, _ := changes[0].Before.AsInt()
	afterInt, _ := changes[0].After.AsInt()
	require.Equal(t, int64(1), beforeInt)
	require.Equal(t, int64(2), afterInt)
}

func TestChangesSinceNodeValAtBranchFork(t *testing.T) {
	session, cleanup := newTestSession(t)
	defer cleanup()
	ctx := context.Background()
	setupGraph(t, session, ctx, "g", vs.KindDirected)

	require.NoError(t, session.NodeValSet(ctx, "g", "n1", "k", codec.Int(1)))
	forkRev, err := session.Commit(ctx)
	require.NoError(t, err)

	// "feature" forks off master right at forkRev, so its first revision has
	// no predecessor of its own — the "before" point must cross onto master
	// at forkRev rather than looking at feature rev-1, which doesn't exist.
	require.NoError(t, session.SwitchBranch(ctx, "feature", forkRev))
	require.NoError(t, session.NodeValSet(ctx, "g", "n1", "k", codec.Int(2)))

	before, err := session.Lookup.PreviousPoint(ctx)
	require.NoError(t, err)
	require.Equal(t, vs.Point{Branch: "master", Rev: forkRev}, before)

	changes, err := session.Lookup.ChangesSinceNodeVal(ctx, "g", "n1")
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.Equal(t, "k", changes[0].Key)
	beforeInt, _ := changes[0].Before.AsInt()
	afterInt, _ := changes[0].After.AsInt()
	require.Equal(t, int64(1), beforeInt)
	require.Equal(t, int64(2), afterInt)
}

func TestWindowNodeVal(t *testing.T) {
	session, cleanup := newTestSession(t)
	defer cleanup()
	ctx := context.Background()
	setupGraph(t, session, ctx, "g", vs.KindDirected)

	firstRev := session.Cursor.Rev()
	require.NoError(t, session.NodeValSet(ctx, "g", "n1", "k", codec.Int(1)))
	_, err := session.Commit(ctx)
	require.NoError(t, err)
	secondRev := session.Cursor.Rev()
	require.NoError(t, session.NodeValSet(ctx, "g", "n1", "k", codec.Int(2)))
	finalRev, err := session.Commit(ctx)
	require.NoError(t, err)

	history, err := session.Lookup.WindowNodeVal(ctx, "g", "n1", "k", "master", 0, finalRev)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, firstRev, history[0].Rev)
	v0, _ := history[0].Value.AsInt()
	require.Equal(t, int64(1), v0)
	require.Equal(t, secondRev, history[1].Rev)
	v1, _ := history[1].Value.AsInt()
	require.Equal(t, int64(2), v1)
}
