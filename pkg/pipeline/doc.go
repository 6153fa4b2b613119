/*
Package pipeline runs a chain of external processes connected by pipes,
the way a single gemBS task invokes a command sequence (for example
piping a mapper's SAM output into a sort stage).

Run spawns every stage, links each stage's stdout to the next stage's
stdin, and reaps all children in reverse order so a stalled downstream
stage can still be killed and collected. Observing the cooperative
signal word at each reap poll means a SIGINT lands within one poll
interval, not at the next blocking syscall.

On any failure - non-zero exit, signal, or spawn error - every path in
Spec.ExpectedOutputs is unlinked before the error is returned, so a
caller never has to distinguish "never ran" from "partially wrote
then crashed".
*/
package pipeline
