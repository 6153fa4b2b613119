/*
Package types defines the core data structures shared across gembsctl:
the asset/task graph's node types, the running-ledger entry format, and
the tagged-union configuration value used by the config store.

Assets and tasks are kept acyclic by construction: an asset carries at
most one creator task index, and a task carries only input/output asset
index lists. There are no back-pointers from assets to tasks beyond the
creator field, so the graph package can maintain topological order with
a simple arena-of-indices representation rather than general graph
traversal.

Value is a tagged union rather than an interface{} or a map[string]any:
every retrieval is a typed getter (AsString, AsMemSize, ...) that
reports a tag mismatch via its second return value instead of a panic.
*/
package types
