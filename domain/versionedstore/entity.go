package versionedstore

import "github.com/uptrace/bun"

// GraphKind enumerates the four graph variants a caller may create.
type GraphKind string

const (
	KindPlain          GraphKind = "plain"
	KindDirected       GraphKind = "directed"
	KindMulti          GraphKind = "multi"
	KindMultiDirected  GraphKind = "multi_directed"
)

// Global holds the two distinguished cursor keys (branch, rev) plus any
// other process-visible key a caller chooses to store alongside them.
type Global struct {
	bun.BaseModel `bun:"table:global,alias:g"`

	Key   string `bun:"key,pk"`
	Value string `bun:"value"`
}

// Branch is a named, immutable (parent, parent_rev) ancestry record.
// master is its own parent at parent_rev 0, a self-referential sentinel.
type Branch struct {
	bun.BaseModel `bun:"table:branches,alias:br"`

	Name      string `bun:"name,pk"`
	Parent    string `bun:"parent,notnull"`
	ParentRev int64  `bun:"parent_rev,notnull"`
}

// Graph is a named graph of a fixed kind. Store.DelGraph deletes its rows in
// the five versioned tables below before deleting the graph itself.
type Graph struct {
	bun.BaseModel `bun:"table:graphs,alias:gr"`

	Name string    `bun:"name,pk"`
	Kind GraphKind `bun:"kind,notnull"`
}

// GraphVal is one versioned graph-attribute record. Value is NULL when the
// key is tombstoned at (Branch, Rev).
type GraphVal struct {
	bun.BaseModel `bun:"table:graph_val,alias:gv"`

	Graph  string  `bun:"graph,pk"`
	Key    string  `bun:"key,pk"`
	Branch string  `bun:"branch,pk"`
	Rev    int64   `bun:"rev,pk"`
	Value  *string `bun:"value"`
}

// Node is one versioned node-existence record.
type Node struct {
	bun.BaseModel `bun:"table:nodes,alias:n"`

	Graph  string `bun:"graph,pk"`
	Node   string `bun:"node,pk"`
	Branch string `bun:"branch,pk"`
	Rev    int64  `bun:"rev,pk"`
	Extant bool   `bun:"extant,notnull"`
}

// NodeVal is one versioned node-attribute record.
type NodeVal struct {
	bun.BaseModel `bun:"table:node_val,alias:nv"`

	Graph  string  `bun:"graph,pk"`
	Node   string  `bun:"node,pk"`
	Key    string  `bun:"key,pk"`
	Branch string  `bun:"branch,pk"`
	Rev    int64   `bun:"rev,pk"`
	Value  *string `bun:"value"`
}

// Edge is one versioned edge-existence record. Idx is always 0 on
// single-edge graph kinds; multi-edge kinds allocate the smallest
// non-negative free integer per (Graph, Source, Target).
type Edge struct {
	bun.BaseModel `bun:"table:edges,alias:e"`

	Graph  string `bun:"graph,pk"`
	Source string `bun:"source,pk"`
	Target string `bun:"target,pk"`
	Idx    int32  `bun:"idx,pk"`
	Branch string `bun:"branch,pk"`
	Rev    int64  `bun:"rev,pk"`
	Extant bool   `bun:"extant,notnull"`
}

// EdgeVal is one versioned edge-attribute record.
type EdgeVal struct {
	bun.BaseModel `bun:"table:edge_val,alias:ev"`

	Graph  string  `bun:"graph,pk"`
	Source string  `bun:"source,pk"`
	Target string  `bun:"target,pk"`
	Idx    int32   `bun:"idx,pk"`
	Key    string  `bun:"key,pk"`
	Branch string  `bun:"branch,pk"`
	Rev    int64   `bun:"rev,pk"`
	Value  *string `bun:"value"`
}
