package versionedstore

// Named, parameterized SQL for every Store primitive. Placeholders are
// positional ? markers; bun rewrites them to the Postgres $n form when the
// statement runs through db.NewRaw. Every "latest" query is a join against a
// derived table computing MAX(rev) grouped by the non-rev key columns,
// filtered to rev <= the target revision within one named branch — it never
// walks ancestor branches and never hides tombstoned (NULL-value) rows; that
// is the Versioned lookup layer's job, not the Store's.
const (
	stmtGlobalGet = `SELECT value FROM global WHERE key = ?;`
	stmtGlobalIns = `INSERT INTO global (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value;`
	stmtGlobalDel   = `DELETE FROM global WHERE key = ?;`
	stmtGlobalItems = `SELECT key, value FROM global;`

	stmtHaveBranch = `SELECT COUNT(*) FROM branches WHERE name = ?;`
	stmtAllBranch  = `SELECT name, parent, parent_rev FROM branches;`
	stmtNewBranch  = `INSERT INTO branches (name, parent, parent_rev) VALUES (?, ?, ?);`
	stmtParentRev  = `SELECT parent, parent_rev FROM branches WHERE name = ?;`

	stmtHaveGraph = `SELECT COUNT(*) FROM graphs WHERE name = ?;`
	stmtNewGraph  = `INSERT INTO graphs (name, kind) VALUES (?, ?);`
	stmtGraphKind = `SELECT kind FROM graphs WHERE name = ?;`
	stmtDelGraph  = `DELETE FROM graphs WHERE name = ?;`

	stmtDelGraphVal = `DELETE FROM graph_val WHERE graph = ?;`
	stmtDelNodes    = `DELETE FROM nodes WHERE graph = ?;`
	stmtDelNodeVal  = `DELETE FROM node_val WHERE graph = ?;`
	stmtDelEdges    = `DELETE FROM edges WHERE graph = ?;`
	stmtDelEdgeVal  = `DELETE FROM edge_val WHERE graph = ?;`

	stmtGraphValLatestKeys = `
		SELECT graph_val.key, graph_val.value
		FROM graph_val JOIN (
			SELECT graph, key, MAX(rev) AS rev FROM graph_val
			WHERE graph = ? AND branch = ? AND rev <= ?
			GROUP BY graph, key
		) AS hirev
		ON graph_val.graph = hirev.graph AND graph_val.key = hirev.key
		AND graph_val.branch = ? AND graph_val.rev = hirev.rev;`

	stmtGraphValLatestGet = `
		SELECT graph_val.value
		FROM graph_val JOIN (
			SELECT graph, key, MAX(rev) AS rev FROM graph_val
			WHERE graph = ? AND key = ? AND branch = ? AND rev <= ?
			GROUP BY graph, key
		) AS hirev
		ON graph_val.graph = hirev.graph AND graph_val.key = hirev.key
		AND graph_val.branch = ? AND graph_val.rev = hirev.rev;`

	stmtGraphValUpsert = `INSERT INTO graph_val (graph, key, branch, rev, value) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (graph, key, branch, rev) DO UPDATE SET value = EXCLUDED.value;`

	stmtNodeExtantLatest = `
		SELECT nodes.node, nodes.extant
		FROM nodes JOIN (
			SELECT graph, node, MAX(rev) AS rev FROM nodes
			WHERE graph = ? AND branch = ? AND rev <= ?
			GROUP BY graph, node
		) AS hirev
		ON nodes.graph = hirev.graph AND nodes.node = hirev.node
		AND nodes.branch = ? AND nodes.rev = hirev.rev;`

	stmtNodeExtantOneLatest = `
		SELECT nodes.extant
		FROM nodes JOIN (
			SELECT graph, node, MAX(rev) AS rev FROM nodes
			WHERE graph = ? AND node = ? AND branch = ? AND rev <= ?
			GROUP BY graph, node
		) AS hirev
		ON nodes.graph = hirev.graph AND nodes.node = hirev.node
		AND nodes.branch = ? AND nodes.rev = hirev.rev;`

	stmtNodeUpsert = `INSERT INTO nodes (graph, node, branch, rev, extant) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (graph, node, branch, rev) DO UPDATE SET extant = EXCLUDED.extant;`

	stmtNodeValLatestKeys = `
		SELECT node_val.key, node_val.value
		FROM node_val JOIN (
			SELECT graph, node, key, MAX(rev) AS rev FROM node_val
			WHERE graph = ? AND node = ? AND branch = ? AND rev <= ?
			GROUP BY graph, node, key
		) AS hirev
		ON node_val.graph = hirev.graph AND node_val.node = hirev.node AND node_val.key = hirev.key
		AND node_val.branch = ? AND node_val.rev = hirev.rev;`

	stmtNodeValLatestGet = `
		SELECT node_val.value
		FROM node_val JOIN (
			SELECT graph, node, key, MAX(rev) AS rev FROM node_val
			WHERE graph = ? AND node = ? AND key = ? AND branch = ? AND rev <= ?
			GROUP BY graph, node, key
		) AS hirev
		ON node_val.graph = hirev.graph AND node_val.node = hirev.node AND node_val.key = hirev.key
		AND node_val.branch = ? AND node_val.rev = hirev.rev;`

	stmtNodeValUpsert = `INSERT INTO node_val (graph, node, key, branch, rev, value) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (graph, node, key, branch, rev) DO UPDATE SET value = EXCLUDED.value;`

	stmtEdgeExtantLatestIdx = `
		SELECT edges.idx, edges.extant
		FROM edges JOIN (
			SELECT graph, source, target, idx, MAX(rev) AS rev FROM edges
			WHERE graph = ? AND source = ? AND target = ? AND branch = ? AND rev <= ?
			GROUP BY graph, source, target, idx
		) AS hirev
		ON edges.graph = hirev.graph AND edges.source = hirev.source AND edges.target = hirev.target
		AND edges.idx = hirev.idx AND edges.branch = ? AND edges.rev = hirev.rev;`

	stmtEdgeExtantOneLatest = `
		SELECT edges.extant
		FROM edges JOIN (
			SELECT graph, source, target, idx, MAX(rev) AS rev FROM edges
			WHERE graph = ? AND source = ? AND target = ? AND idx = ? AND branch = ? AND rev <= ?
			GROUP BY graph, source, target, idx
		) AS hirev
		ON edges.graph = hirev.graph AND edges.source = hirev.source AND edges.target = hirev.target
		AND edges.idx = hirev.idx AND edges.branch = ? AND edges.rev = hirev.rev;`

	stmtEdgesFromLatest = `
		SELECT edges.target, edges.idx, edges.extant
		FROM edges JOIN (
			SELECT graph, source, target, idx, MAX(rev) AS rev FROM edges
			WHERE graph = ? AND source = ? AND branch = ? AND rev <= ?
			GROUP BY graph, source, target, idx
		) AS hirev
		ON edges.graph = hirev.graph AND edges.source = hirev.source AND edges.target = hirev.target
		AND edges.idx = hirev.idx AND edges.branch = ? AND edges.rev = hirev.rev;`

	stmtEdgesToLatest = `
		SELECT edges.source, edges.idx, edges.extant
		FROM edges JOIN (
			SELECT graph, source, target, idx, MAX(rev) AS rev FROM edges
			WHERE graph = ? AND target = ? AND branch = ? AND rev <= ?
			GROUP BY graph, source, target, idx
		) AS hirev
		ON edges.graph = hirev.graph AND edges.source = hirev.source AND edges.target = hirev.target
		AND edges.idx = hirev.idx AND edges.branch = ? AND edges.rev = hirev.rev;`

	stmtEdgeUpsert = `INSERT INTO edges (graph, source, target, idx, branch, rev, extant) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (graph, source, target, idx, branch, rev) DO UPDATE SET extant = EXCLUDED.extant;`

	stmtEdgeValLatestKeys = `
		SELECT edge_val.key, edge_val.value
		FROM edge_val JOIN (
			SELECT graph, source, target, idx, key, MAX(rev) AS rev FROM edge_val
			WHERE graph = ? AND source = ? AND target = ? AND idx = ? AND branch = ? AND rev <= ?
			GROUP BY graph, source, target, idx, key
		) AS hirev
		ON edge_val.graph = hirev.graph AND edge_val.source = hirev.source AND edge_val.target = hirev.target
		AND edge_val.idx = hirev.idx AND edge_val.key = hirev.key
		AND edge_val.branch = ? AND edge_val.rev = hirev.rev;`

	stmtEdgeValLatestGet = `
		SELECT edge_val.value
		FROM edge_val JOIN (
			SELECT graph, source, target, idx, key, MAX(rev) AS rev FROM edge_val
			WHERE graph = ? AND source = ? AND target = ? AND idx = ? AND key = ? AND branch = ? AND rev <= ?
			GROUP BY graph, source, target, idx, key
		) AS hirev
		ON edge_val.graph = hirev.graph AND edge_val.source = hirev.source AND edge_val.target = hirev.target
		AND edge_val.idx = hirev.idx AND edge_val.key = hirev.key
		AND edge_val.branch = ? AND edge_val.rev = hirev.rev;`

	stmtEdgeValUpsert = `INSERT INTO edge_val (graph, source, target, idx, key, branch, rev, value) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (graph, source, target, idx, key, branch, rev) DO UPDATE SET value = EXCLUDED.value;`

	stmtGraphValWindow = `SELECT rev, value FROM graph_val
		WHERE graph = ? AND key = ? AND branch = ? AND rev >= ? AND rev <= ? ORDER BY rev;`
	stmtNodeValWindow = `SELECT rev, value FROM node_val
		WHERE graph = ? AND node = ? AND key = ? AND branch = ? AND rev >= ? AND rev <= ? ORDER BY rev;`
	stmtEdgeValWindow = `SELECT rev, value FROM edge_val
		WHERE graph = ? AND source = ? AND target = ? AND idx = ? AND key = ? AND branch = ? AND rev >= ? AND rev <= ? ORDER BY rev;`
)
