package graph

import "go.uber.org/fx"

// Module provides the graph surface's dependencies. There is no
// HTTP/handler layer here — Graph is a library type embedders construct
// directly via Open/Create against a *versionedstore.Session — so the only
// thing worth an fx entry is documenting that this package participates in
// the graph: a binary assembling versionedstore.Module alongside this one
// gets everything it needs to call graph.Open/graph.Create.
var Module = fx.Options()
