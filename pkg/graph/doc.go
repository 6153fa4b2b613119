/*
Package graph is the asset/task dependency graph: an arena of indexed
assets and tasks, the status engine that derives each task's
Waiting/Ready/Running/Complete state from filesystem reality, and
the required-task selector that walks backward from a target asset set
to the minimal ordered task list needed to produce it.

Assets and tasks only ever reference each other by integer index, and
a child always has a strictly higher index than its parents - the
topology invariant CheckTopology verifies. That ordering is what lets
calcModTimeAnces and the selector's dependency walk both run as a
single linear or depth-first pass instead of a general graph
algorithm.

A Graph is built once per controller invocation (from the config
store's sample/contig metadata, outside this package's scope) and then
rescanned - Scan - before every scheduling pass, since sibling
processes may have changed files on disk since the last look.
*/
package graph
