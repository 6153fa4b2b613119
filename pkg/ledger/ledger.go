package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/heathsc/gembsctl/pkg/lock"
	"github.com/heathsc/gembsctl/pkg/log"
	"github.com/heathsc/gembsctl/pkg/types"
)

// Load reads the ledger file. An absent file, or an empty JSON array,
// is treated as "no running tasks" and returns an empty, non-nil slice.
func Load(path string) ([]types.RunningEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []types.RunningEntry{}, nil
		}
		return nil, fmt.Errorf("ledger: reading %s: %w", path, err)
	}
	if len(data) == 0 {
		return []types.RunningEntry{}, nil
	}
	var entries []types.RunningEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("ledger: decoding %s: %w", path, err)
	}
	return entries, nil
}

// Save atomically rewrites the ledger file. An empty entry set removes
// the file entirely rather than leaving an empty array on disk.
func Save(path string, entries []types.RunningEntry) error {
	if len(entries) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("ledger: removing empty %s: %w", path, err)
		}
		return nil
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("ledger: encoding entries: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ledger: creating directory for %s: %w", path, err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("ledger: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("ledger: renaming %s to %s: %w", tmp, path, err)
	}
	return nil
}

// RunningIDs returns the set of task ids currently recorded in the
// ledger, for the status engine to consult.
func RunningIDs(entries []types.RunningEntry) map[string]struct{} {
	ids := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		ids[e.ID] = struct{}{}
	}
	return ids
}

// Job is the handle returned by Dispatch; Close removes the ledger
// entry and must run regardless of how the job's goroutine exits.
type Job struct {
	lockTarget string
	path       string
	id         string
}

// ErrTaskTaken is returned by Dispatch when id is already present in
// the ledger. It guards the small TOCTOU window between a scheduler
// picking a task and appending it here: a concurrent controller that
// picked the same task loses the race and must re-select rather than
// run the task twice.
type ErrTaskTaken struct {
	ID string
}

func (e *ErrTaskTaken) Error() string {
	return fmt.Sprintf("ledger: task %q is already running", e.ID)
}

// Dispatch registers a task as running: it acquires lockTarget's lock,
// checks that id is not already present, appends an entry, rewrites
// the ledger atomically, and releases the lock before returning. The
// scheduler calls this exactly once per dispatched task.
func Dispatch(lockTarget, ledgerPath, id, owner string, start time.Time) (*Job, error) {
	l, err := lock.WaitFor(lockTarget)
	if err != nil {
		return nil, err
	}
	defer l.Close()

	entries, err := Load(ledgerPath)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.ID == id {
			return nil, &ErrTaskTaken{ID: id}
		}
	}
	entries = append(entries, types.RunningEntry{ID: id, Owner: owner, StartTime: start.Unix()})
	if err := Save(ledgerPath, entries); err != nil {
		return nil, err
	}
	return &Job{lockTarget: lockTarget, path: ledgerPath, id: id}, nil
}

// Close removes this job's ledger entry under the primary lock. It is
// safe to call more than once; failures are logged, not propagated,
// since the ledger is best-effort cross-process coordination, not a
// source of truth the scheduler itself depends on to make progress.
func (j *Job) Close() {
	if j == nil {
		return
	}
	lg := log.WithComponent("ledger")
	l, err := lock.WaitFor(j.lockTarget)
	if err != nil {
		lg.Warn().Err(err).Str("task_id", j.id).Msg("failed to acquire lock to release ledger entry")
		return
	}
	defer l.Close()

	entries, err := Load(j.path)
	if err != nil {
		lg.Warn().Err(err).Msg("failed to load ledger for removal")
		return
	}
	filtered := entries[:0]
	for _, e := range entries {
		if e.ID != j.id {
			filtered = append(filtered, e)
		}
	}
	if err := Save(j.path, filtered); err != nil {
		lg.Warn().Err(err).Str("task_id", j.id).Msg("failed to rewrite ledger on removal")
	}
}
