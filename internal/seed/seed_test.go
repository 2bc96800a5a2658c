package seed_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	vs "github.com/emergent-company/branchgraph/domain/versionedstore"
	"github.com/emergent-company/branchgraph/internal/seed"
	"github.com/emergent-company/branchgraph/internal/testutil"
)

const manifestYAML = `
graphs:
  - name: org
    kind: directed
    attrs:
      title: Org chart
    nodes:
      - name: alice
        attrs:
          role: lead
      - name: bob
    edges:
      - source: alice
        target: bob
        attrs:
          kind: manages
`

func TestApplyManifest(t *testing.T) {
	ctx := context.Background()
	db, err := testutil.SetupTestDB(ctx, "seed")
	if err != nil {
		t.Skipf("skipping: postgres unavailable: %v", err)
	}
	defer db.Close()

	session, err := vs.Open(ctx, db.DB)
	require.NoError(t, err)

	var m seed.Manifest
	require.NoError(t, yaml.Unmarshal([]byte(manifestYAML), &m))

	require.NoError(t, seed.Apply(ctx, session, &m))

	have, err := session.Store.HaveGraph(ctx, "org")
	require.NoError(t, err)
	require.True(t, have)

	extant, err := session.Lookup.NodeExtant(ctx, "org", "alice")
	require.NoError(t, err)
	require.True(t, extant)

	v, err := session.Lookup.NodeVal(ctx, "org", "alice", "role")
	require.NoError(t, err)
	role, _ := v.AsText()
	require.Equal(t, "lead", role)

	ok, err := session.Lookup.EdgeExtant(ctx, "org", "alice", "bob", 0)
	require.NoError(t, err)
	require.True(t, ok)

	// Re-applying must not fail on the already-created graph.
	require.NoError(t, seed.Apply(ctx, session, &m))
}
