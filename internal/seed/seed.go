// Package seed applies a declarative YAML manifest of graphs, nodes, and
// edges through the graph surface, so a fresh environment can be brought up
// with known data without hand-written Go.
package seed

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/emergent-company/branchgraph/domain/graph"
	vs "github.com/emergent-company/branchgraph/domain/versionedstore"
	"github.com/emergent-company/branchgraph/pkg/codec"
)

// Manifest describes the graphs a seed run should ensure exist, and their
// initial nodes and edges. Every graph is seeded at whatever (branch, rev)
// the session's cursor currently holds — callers wanting a fixed point
// switch the session there first.
type Manifest struct {
	Graphs []GraphSpec `yaml:"graphs"`
}

type GraphSpec struct {
	Name  string         `yaml:"name"`
	Kind  string         `yaml:"kind"`
	Attrs map[string]any `yaml:"attrs"`
	Nodes []NodeSpec     `yaml:"nodes"`
	Edges []EdgeSpec     `yaml:"edges"`
}

type NodeSpec struct {
	Name  string         `yaml:"name"`
	Attrs map[string]any `yaml:"attrs"`
}

type EdgeSpec struct {
	Source string         `yaml:"source"`
	Target string         `yaml:"target"`
	Attrs  map[string]any `yaml:"attrs"`
}

// Load parses a manifest from path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed manifest %q: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse seed manifest %q: %w", path, err)
	}
	return &m, nil
}

// Apply creates every graph in m that does not already exist (an existing
// graph is opened instead, not recreated) and writes the manifest's graph
// attributes, nodes and edges into it, whether it was created or opened.
func Apply(ctx context.Context, session *vs.Session, m *Manifest) error {
	for _, gs := range m.Graphs {
		g, err := openOrCreate(ctx, session, gs.Name, vs.GraphKind(gs.Kind))
		if err != nil {
			return fmt.Errorf("seed graph %q: %w", gs.Name, err)
		}
		if err := applyGraph(ctx, g, gs); err != nil {
			return fmt.Errorf("seed graph %q: %w", gs.Name, err)
		}
	}
	return nil
}

func openOrCreate(ctx context.Context, session *vs.Session, name string, kind vs.GraphKind) (*graph.Graph, error) {
	g, err := graph.Open(ctx, session, name)
	if err == nil {
		return g, nil
	}
	return graph.Create(ctx, session, name, kind)
}

func applyGraph(ctx context.Context, g *graph.Graph, gs GraphSpec) error {
	for k, v := range gs.Attrs {
		val, err := fromYAML(v)
		if err != nil {
			return err
		}
		if err := g.Attrs().Set(ctx, k, val); err != nil {
			return fmt.Errorf("attr %q: %w", k, err)
		}
	}
	for _, ns := range gs.Nodes {
		if err := g.Nodes().Add(ctx, ns.Name); err != nil {
			return fmt.Errorf("node %q: %w", ns.Name, err)
		}
		attrs := g.NodeAttrs(ns.Name)
		for k, v := range ns.Attrs {
			val, err := fromYAML(v)
			if err != nil {
				return err
			}
			if err := attrs.Set(ctx, k, val); err != nil {
				return fmt.Errorf("node %q attr %q: %w", ns.Name, k, err)
			}
		}
	}
	for _, es := range gs.Edges {
		attrs := make(map[string]codec.Value, len(es.Attrs))
		for k, v := range es.Attrs {
			val, err := fromYAML(v)
			if err != nil {
				return err
			}
			attrs[k] = val
		}
		if _, err := g.Adjacency(es.Source).Set(ctx, es.Target, attrs); err != nil {
			return fmt.Errorf("edge %q->%q: %w", es.Source, es.Target, err)
		}
	}
	return nil
}

// fromYAML converts a YAML-decoded scalar/sequence/mapping into a codec
// value. Sequences decode as lists (YAML has no tuple concept); mappings
// with non-string keys, and any other unsupported type, are rejected with an
// error.
func fromYAML(v any) (codec.Value, error) {
	switch t := v.(type) {
	case nil:
		return codec.Null(), nil
	case bool:
		return codec.Bool(t), nil
	case int:
		return codec.Int(int64(t)), nil
	case int64:
		return codec.Int(t), nil
	case float64:
		return codec.Float(t), nil
	case string:
		return codec.Text(t), nil
	case []any:
		items := make([]codec.Value, len(t))
		for i, e := range t {
			item, err := fromYAML(e)
			if err != nil {
				return codec.Value{}, err
			}
			items[i] = item
		}
		return codec.ListOf(items), nil
	case map[string]any:
		m := codec.NewMap()
		for k, e := range t {
			item, err := fromYAML(e)
			if err != nil {
				return codec.Value{}, err
			}
			if err := m.Set(codec.Text(k), item); err != nil {
				return codec.Value{}, err
			}
		}
		return m, nil
	default:
		return codec.Value{}, fmt.Errorf("seed manifest: unsupported YAML value type %T", v)
	}
}
