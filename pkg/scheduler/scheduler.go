package scheduler

import (
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/heathsc/gembsctl/pkg/config"
	"github.com/heathsc/gembsctl/pkg/graph"
	"github.com/heathsc/gembsctl/pkg/jobs"
	"github.com/heathsc/gembsctl/pkg/ledger"
	"github.com/heathsc/gembsctl/pkg/lock"
	"github.com/heathsc/gembsctl/pkg/log"
	"github.com/heathsc/gembsctl/pkg/metrics"
	"github.com/heathsc/gembsctl/pkg/pipeline"
	"github.com/heathsc/gembsctl/pkg/runtimeconfig"
	"github.com/heathsc/gembsctl/pkg/signal"
	"github.com/heathsc/gembsctl/pkg/types"
)

// reapPollInterval bounds how long the main loop can block in a single
// wait before re-checking the signal word, keeping shutdown latency
// low even with no completions to reap.
const reapPollInterval = time.Second

// ErrNoTasks is returned by Run when nothing remains to schedule for
// AssetTargets - every target is Present, whether it already was or
// the tasks this run dispatched produced it - a successful terminal
// state.
var ErrNoTasks = errors.New("scheduler: no tasks to run")

// ErrNoTasksReady is returned by Run when AssetTargets still has
// pending work but no task is Ready and no other controller has
// anything in flight - a successful run that made no progress because
// there was nothing it could start.
var ErrNoTasksReady = errors.New("scheduler: no tasks ready to run")

// ErrAborted is returned by Run when a signal stopped the scheduler
// before every required task completed.
var ErrAborted = errors.New("scheduler: stopped by signal before completion")

// ErrSecondSignal is returned by Run when a second signal arrives
// while it is draining in-flight tasks after the first.
var ErrSecondSignal = errors.New("scheduler: aborted by second signal during shutdown drain")

// errNoSlots and errWaitingForTasks are internal transient states: the
// main loop absorbs them into a short sleep-and-retry rather than
// surfacing them to the caller.
var (
	errNoSlots         = errors.New("scheduler: no execution slots available")
	errWaitingForTasks = errors.New("scheduler: waiting for tasks running elsewhere")
)

// Options configures a Scheduler run.
type Options struct {
	Graph *graph.Graph
	Store *config.Store
	RC    *runtimeconfig.RuntimeConfig

	// StatePath is the primary project state file; its sibling lock
	// link is what serializes graph rescans and ledger updates across
	// cooperating controller instances.
	StatePath  string
	LedgerPath string

	// Owner identifies this controller instance in ledger entries.
	// Defaults to lock.Identity() when empty.
	Owner string

	// AssetTargets are the asset indices the scheduler is trying to
	// bring to Present.
	AssetTargets []int
	// Commands restricts which command kinds may be scheduled.
	Commands     map[types.CommandKind]bool
	IgnoreTimes  bool
	IgnoreStatus bool

	// Workers is the worker pool size; defaults to RC.Workers or
	// runtimeconfig.DefaultWorkers.
	Workers int
	// TotalCores and TotalMemory are the scheduling budget; zero means
	// "autodetect" (TotalMemory's autodetection can itself still come
	// back zero, meaning "don't limit on memory").
	TotalCores  int
	TotalMemory int64
}

// runningTask tracks the resource reservation and ledger handle for a
// task currently executing on one of this scheduler's workers.
type runningTask struct {
	cores int
	mem   int64
	job   *ledger.Job
}

// Scheduler is the worker-pool coordinator.
type Scheduler struct {
	opts    Options
	builder *jobs.Builder
	p       *pool

	running      map[int]*runningTask
	runningCores int
	runningMem   int64

	// failed records the first task error reaped from a worker; it
	// aborts the dispatch loop on its next iteration.
	failed error
}

// New returns a Scheduler ready to Run, applying defaults for any
// unset Options field.
func New(opts Options) *Scheduler {
	if opts.Workers <= 0 {
		if opts.RC != nil && opts.RC.Workers > 0 {
			opts.Workers = opts.RC.Workers
		} else {
			opts.Workers = runtimeconfig.DefaultWorkers
		}
	}
	if opts.TotalCores <= 0 {
		opts.TotalCores = DetectTotalCores()
	}
	if opts.TotalMemory <= 0 {
		opts.TotalMemory = DetectTotalMemory()
	}
	if opts.Owner == "" {
		opts.Owner = lock.Identity()
	}
	return &Scheduler{
		opts:    opts,
		builder: jobs.NewBuilder(opts.RC),
		running: make(map[int]*runningTask),
	}
}

// Run drives the dispatch loop to completion. It returns ErrNoTasks
// once no required task is left (including after it has run every
// required task itself) and ErrNoTasksReady when work remains but
// nothing can start; both are successful terminal states. Any other
// error means a task failed, a signal interrupted the run, or a second
// signal cut short the shutdown drain.
func (s *Scheduler) Run() error {
	lg := log.WithComponent("scheduler")
	s.p = newPool(s.opts.Workers)

	var abort bool
	var runErr error
	var success error

loop:
	for {
		if signal.Get() != 0 {
			lg.Info().Msg("signal observed, stopping dispatch and draining running tasks")
			break loop
		}
		if s.failed != nil {
			abort, runErr = true, s.failed
			break loop
		}

		widx, ok := s.p.popAvail()
		if !ok {
			s.awaitOutcome(reapPollInterval)
			continue
		}

		taskIdx, derr := s.refreshAndPick()
		switch {
		case derr == nil:
			timer := metrics.NewTimer()
			if err := s.dispatch(widx, taskIdx); err != nil {
				s.p.pushAvail(widx)
				var taken *ledger.ErrTaskTaken
				if errors.As(err, &taken) {
					lg.Debug().Str("task_id", taken.ID).Msg("task claimed by another controller first, re-selecting")
					continue
				}
				abort, runErr = true, err
				break loop
			}
			timer.ObserveDuration(metrics.SchedulingLatency)
		case errors.Is(derr, ErrNoTasks):
			// Nothing left in the required set at all: a successful,
			// empty run.
			s.p.pushAvail(widx)
			success = ErrNoTasks
			break loop
		case errors.Is(derr, ErrNoTasksReady):
			// Work remains but nothing is Ready and no cooperating
			// controller has anything in flight either: nothing would
			// ever change, so this terminates rather than retrying
			// forever.
			s.p.pushAvail(widx)
			success = ErrNoTasksReady
			break loop
		case errors.Is(derr, errNoSlots), errors.Is(derr, errWaitingForTasks):
			// Transient: our own budget will free up, or another
			// controller's in-flight work will change asset state.
			// Retry after a short wait.
			s.p.pushAvail(widx)
			if len(s.running) == 0 {
				// Nothing of ours is in flight either, so there is
				// nothing to reap while we wait: sleep instead of
				// blocking forever on an outcome channel no one will
				// ever write to.
				time.Sleep(reapPollInterval)
			} else {
				s.awaitOutcome(reapPollInterval)
			}
		default:
			s.p.pushAvail(widx)
			abort, runErr = true, derr
			break loop
		}
	}

	return s.drain(abort, runErr, success)
}

// dispatch builds the pipeline spec for taskIdx, registers it in the
// running ledger, reserves its resource budget, and hands it to the
// worker at widx.
func (s *Scheduler) dispatch(widx, taskIdx int) error {
	g := s.opts.Graph
	t := g.Tasks[taskIdx]

	spec, err := s.builder.Build(g, s.opts.Store, taskIdx)
	if err != nil {
		return err
	}
	j, err := ledger.Dispatch(s.opts.StatePath, s.opts.LedgerPath, t.ID, s.opts.Owner, time.Now())
	if err != nil {
		return err
	}

	cores := taskCores(t.Resources.Cores)
	mem := t.Resources.Memory
	s.running[taskIdx] = &runningTask{cores: cores, mem: mem, job: j}
	s.runningCores += cores
	s.runningMem += mem

	// runID distinguishes this particular dispatch instance in the logs
	// from any other run of the same stable task ID (e.g. a re-run after
	// a stale-output rebuild), since task IDs are reused across runs but
	// log correlation needs a per-instance handle.
	runID := uuid.New().String()

	metrics.TasksScheduled.Inc()
	lg := log.WithComponent("scheduler")
	lg.Info().Str("task_id", t.ID).Str("run_id", runID).Str("command", string(t.Command)).Msg("dispatching task")
	s.p.dispatch(widx, &job{taskIdx: taskIdx, taskID: t.ID, runID: runID, command: t.Command, spec: spec})
	return nil
}

// refreshAndPick reacquires the primary lock to load the latest
// ledger, rescan the graph, and select the best-fitting Ready task
// under the current resource budget.
func (s *Scheduler) refreshAndPick() (int, error) {
	lockTimer := metrics.NewTimer()
	l, err := lock.WaitFor(s.opts.StatePath)
	lockTimer.ObserveDuration(metrics.LockWaitDuration)
	if err != nil {
		return -1, err
	}
	defer l.Close()

	entries, err := ledger.Load(s.opts.LedgerPath)
	if err != nil {
		return -1, err
	}
	runningIDs := ledger.RunningIDs(entries)

	s.opts.Graph.Scan(runningIDs, s.opts.IgnoreTimes)

	pending := graph.PendingTasks(s.opts.Graph, s.opts.AssetTargets, s.opts.Commands)
	ready := graph.RequiredTasks(s.opts.Graph, s.opts.AssetTargets, graph.SelectOptions{
		Commands:     s.opts.Commands,
		IgnoreStatus: s.opts.IgnoreStatus,
	})

	availCores := s.opts.TotalCores - s.runningCores
	availMem := int64(-1)
	if s.opts.TotalMemory > 0 {
		availMem = s.opts.TotalMemory - s.runningMem
	}

	return decideTask(s.opts.Graph, pending, ready, len(entries), availCores, availMem)
}

// decideTask applies the selection decision table to an already-scanned
// graph: pending is every not-yet-complete in-scope task, ready is the
// subset currently Ready or Running, and ledgerEntries is the total
// number of tasks any cooperating controller currently has running
// (not just ones in this target's scope) - a coarse-grained check of
// whether the ledger file is non-empty at all.
func decideTask(g *graph.Graph, pending, ready []int, ledgerEntries int, availCores int, availMem int64) (int, error) {
	if len(pending) == 0 {
		return -1, ErrNoTasks
	}
	if len(ready) == 0 {
		if ledgerEntries > 0 {
			return -1, errWaitingForTasks
		}
		return -1, ErrNoTasksReady
	}
	idx, ok := choose(g, ready, availCores, availMem)
	if !ok {
		return -1, errNoSlots
	}
	return idx, nil
}

// choose picks the Ready candidate with the largest core request that
// still fits availCores/availMem, breaking ties by lowest index (the
// order candidates already arrive in). A negative availMem means "no
// memory limit in effect".
func choose(g *graph.Graph, candidates []int, availCores int, availMem int64) (int, bool) {
	best, bestCores := -1, -1
	for _, idx := range candidates {
		t := g.Tasks[idx]
		if t.Status != types.TaskReady {
			continue
		}
		cores := taskCores(t.Resources.Cores)
		if cores > availCores {
			continue
		}
		if availMem >= 0 && t.Resources.Memory > availMem {
			continue
		}
		if cores > bestCores {
			best, bestCores = idx, cores
		}
	}
	if best < 0 {
		return -1, false
	}
	return best, true
}

// awaitOutcome blocks for up to timeout waiting for a worker to
// report a completion, applying it if one arrives.
func (s *Scheduler) awaitOutcome(timeout time.Duration) bool {
	select {
	case oc := <-s.p.outcomes:
		s.complete(oc)
		return true
	case <-time.After(timeout):
		return false
	}
}

// complete releases a finished task's ledger entry and resource
// reservation, frees its worker, and records metrics.
func (s *Scheduler) complete(oc outcome) {
	if rt, ok := s.running[oc.taskIdx]; ok {
		rt.job.Close()
		s.runningCores -= rt.cores
		s.runningMem -= rt.mem
		delete(s.running, oc.taskIdx)
	}
	s.p.pushAvail(oc.workerIdx)

	metrics.TaskRunDuration.WithLabelValues(string(oc.command)).Observe(oc.duration.Seconds())

	lg := log.WithComponent("scheduler")
	if oc.err != nil {
		metrics.TasksFailed.Inc()
		var pf *pipeline.Failure
		if errors.As(oc.err, &pf) {
			metrics.PipelineFailuresTotal.WithLabelValues(strconv.Itoa(pf.Stage)).Inc()
		}
		if s.failed == nil {
			s.failed = oc.err
		}
		lg.Error().Err(oc.err).Str("task_id", oc.taskID).Str("run_id", oc.runID).Msg("task failed")
	} else {
		lg.Info().Str("task_id", oc.taskID).Str("run_id", oc.runID).Dur("duration", oc.duration).Msg("task complete")
	}
}

// drain waits for any still-running tasks to finish (unless a second
// signal arrives first, in which case it abandons the wait and lets
// the pipelines' own signal handling tear them down), then shuts down
// the worker pool and resolves the run's final error.
func (s *Scheduler) drain(abort bool, runErr, success error) error {
	lg := log.WithComponent("scheduler")
	if abort {
		lg.Error().Err(runErr).Msg("scheduler stopping after error, waiting for in-flight tasks")
	} else if len(s.running) > 0 {
		lg.Info().Int("count", len(s.running)).Int("busy_workers", s.p.outstanding()).Msg("waiting for in-flight tasks to finish")
	}

	baseline := signal.Count()
	for len(s.running) > 0 {
		if signal.Get() != 0 && signal.Count() > baseline {
			lg.Warn().Msg("second signal received during drain, abandoning wait")
			s.p.shutdown()
			if runErr != nil {
				return runErr
			}
			return ErrSecondSignal
		}
		s.awaitOutcome(reapPollInterval)
	}

	s.p.shutdown()

	if abort {
		return runErr
	}
	if s.failed != nil {
		// A task reaped during the drain failed after the dispatch loop
		// had already decided its exit.
		return s.failed
	}
	if signal.Get() != 0 {
		return ErrAborted
	}
	return success
}
