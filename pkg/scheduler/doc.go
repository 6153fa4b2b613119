/*
Package scheduler drives a pool of goroutine workers against the asset/
task graph until every asset a caller asked for is Present. Each pass
reacquires the primary lock to rescan the graph and the running-task
ledger, picks the Ready task with the largest core request that still
fits the available core/memory budget, and hands it to an idle worker
through the job construction table (pkg/jobs) and the pipeline executor
(pkg/pipeline).

A task already claimed by another cooperating controller is detected
two ways: the status engine marks its output assets Incomplete and its
own status Running (so it is never re-selected), and ledger.Dispatch
itself rejects a duplicate registration as a last-resort guard. That
window exists because the symlink lock is not reentrant: a pass
acquires it once to rescan and select, releases it, then reacquires it
inside ledger.Dispatch to register the winner, so two processes can
briefly pick the same task before one loses the registration race.

Run returns ErrNoTasks once every targeted asset is Present (the normal
end of a successful run) or ErrNoTasksReady when work remains but
nothing can progress, and ErrAborted/ErrSecondSignal when a signal cut
the run short.
*/
package scheduler
