package versionedstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	vs "github.com/emergent-company/branchgraph/domain/versionedstore"
	"github.com/emergent-company/branchgraph/internal/testutil"
)

func newTestSession(t *testing.T) (*vs.Session, func()) {
	t.Helper()
	ctx := context.Background()

	db, err := testutil.SetupTestDB(ctx, "versionedstore")
	if err != nil {
		t.Skipf("skipping: postgres unavailable: %v", err)
	}

	session, err := vs.Open(ctx, db.DB)
	require.NoError(t, err)

	return session, db.Close
}

func TestStoreGraphLifecycle(t *testing.T) {
	session, cleanup := newTestSession(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, session.NewGraph(ctx, "g1", vs.KindDirected))

	have, err := session.Store.HaveGraph(ctx, "g1")
	require.NoError(t, err)
	require.True(t, have)

	kind, err := session.Store.GraphKind(ctx, "g1")
	require.NoError(t, err)
	require.Equal(t, vs.KindDirected, kind)

	err = session.NewGraph(ctx, "g1", vs.KindPlain)
	require.ErrorIs(t, err, vs.ErrDuplicateGraph)

	require.NoError(t, session.DelGraph(ctx, "g1"))

	have, err = session.Store.HaveGraph(ctx, "g1")
	require.NoError(t, err)
	require.False(t, have)

	err = session.DelGraph(ctx, "g1")
	require.ErrorIs(t, err, vs.ErrNoSuchGraph)
}

func TestGlobalRoundTrip(t *testing.T) {
	session, cleanup := newTestSession(t)
	defer cleanup()
	ctx := context.Background()

	_, ok, err := session.Store.GlobalGet(ctx, "nonexistent")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, session.Store.GlobalSet(ctx, "nonexistent", "v1"))
	value, ok, err := session.Store.GlobalGet(ctx, "nonexistent")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v1", value)

	require.NoError(t, session.Store.GlobalSet(ctx, "nonexistent", "v2"))
	value, _, err = session.Store.GlobalGet(ctx, "nonexistent")
	require.NoError(t, err)
	require.Equal(t, "v2", value)
}

func TestCursorDefaultsToMasterZero(t *testing.T) {
	session, cleanup := newTestSession(t)
	defer cleanup()

	branch, rev := session.Cursor.Position()
	require.Equal(t, "master", branch)
	require.Equal(t, int64(0), rev)
}
