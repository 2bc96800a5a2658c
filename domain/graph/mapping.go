// Package graph is the mapping-style surface over a versioned graph: graph
// attributes, nodes, node attributes, adjacency, parallel edges, and edge
// attributes, all reading through versionedstore.Lookup and writing through
// versionedstore.Session at whatever (branch, rev) its cursor currently
// holds.
package graph

import (
	"context"

	"github.com/emergent-company/branchgraph/pkg/codec"
)

// Mapping is the capability every container view below implements: get,
// set, delete, contains, keys, size, uniformly, regardless of whether the
// backing identity is a graph, a node, or an edge endpoint.
type Mapping interface {
	Get(ctx context.Context, key string) (codec.Value, error)
	Set(ctx context.Context, key string, value codec.Value) error
	Delete(ctx context.Context, key string) error
	Contains(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context) ([]string, error)
	Size(ctx context.Context) (int, error)
}

func containsViaGet(ctx context.Context, get func(ctx context.Context, key string) (codec.Value, error), key string) (bool, error) {
	_, err := get(ctx, key)
	if err == nil {
		return true, nil
	}
	if isUnsetError(err) {
		return false, nil
	}
	return false, err
}

func sizeViaKeys(ctx context.Context, keys func(ctx context.Context) ([]string, error)) (int, error) {
	ks, err := keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(ks), nil
}
