/*
Package ledger tracks which tasks are currently running anywhere among
cooperating gembsctl invocations, so a second process sharing the same
working directory never dispatches a task that's already in flight.

The file is a plain JSON array rewritten atomically (write to a temp
file, then rename) under the primary lock. An absent file and an empty
array are equivalent; Save removes the file rather than leaving an
empty array on disk, so "no tasks running" has exactly one
representation on the filesystem.
*/
package ledger
