/*
Package jobs turns a scheduled task into an external process
invocation: tool path from the runtime config, argv assembled from the
task's pre-split tokens plus config-derived flags, and input/output
asset paths appended positionally. It has no genomics knowledge of its
own - Non-goals exclude real tool semantics - so every command kind is
just a table lookup plus plumbing.
*/
package jobs
