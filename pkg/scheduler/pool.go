package scheduler

import (
	"time"

	"github.com/heathsc/gembsctl/pkg/pipeline"
	"github.com/heathsc/gembsctl/pkg/types"
)

// job is one unit of work handed to a pool worker. A nil *job sent on
// a worker's channel is the shutdown sentinel.
type job struct {
	taskIdx int
	taskID  string
	runID   string
	command types.CommandKind
	spec    *pipeline.Spec
}

// outcome is what a worker reports back after running (or failing to
// run) a job.
type outcome struct {
	workerIdx int
	taskIdx   int
	taskID    string
	runID     string
	command   types.CommandKind
	err       error
	duration  time.Duration
}

// pool is a fixed set of goroutines, each with its own inbound job
// channel, sharing one multi-producer outcome channel. Mirrors
// worker_thread/schedule_jobs' per-worker mpsc::Sender<Option<QPipe>>
// plus a shared completion channel, translated to Go channels.
type pool struct {
	inbound  []chan *job
	outcomes chan outcome
	avail    []int
}

func newPool(n int) *pool {
	p := &pool{
		inbound:  make([]chan *job, n),
		outcomes: make(chan outcome, n),
		avail:    make([]int, n),
	}
	for i := 0; i < n; i++ {
		p.inbound[i] = make(chan *job, 1)
		p.avail[i] = i
		go p.run(i)
	}
	return p
}

func (p *pool) run(idx int) {
	for j := range p.inbound[idx] {
		if j == nil {
			return
		}
		start := time.Now()
		_, err := pipeline.Run(j.spec)
		p.outcomes <- outcome{
			workerIdx: idx,
			taskIdx:   j.taskIdx,
			taskID:    j.taskID,
			runID:     j.runID,
			command:   j.command,
			err:       err,
			duration:  time.Since(start),
		}
	}
}

// popAvail returns an idle worker index, if one exists.
func (p *pool) popAvail() (int, bool) {
	if len(p.avail) == 0 {
		return 0, false
	}
	n := len(p.avail) - 1
	idx := p.avail[n]
	p.avail = p.avail[:n]
	return idx, true
}

func (p *pool) pushAvail(idx int) {
	p.avail = append(p.avail, idx)
}

func (p *pool) dispatch(idx int, j *job) {
	p.inbound[idx] <- j
}

// outstanding reports how many workers are currently busy.
func (p *pool) outstanding() int {
	return len(p.inbound) - len(p.avail)
}

// shutdown sends the nil sentinel to every worker. Safe to call once;
// a worker still mid-job simply finishes its current run before
// seeing the sentinel.
func (p *pool) shutdown() {
	for _, ch := range p.inbound {
		ch <- nil
	}
}
