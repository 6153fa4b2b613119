package metrics

import (
	"time"

	"github.com/heathsc/gembsctl/pkg/graph"
	"github.com/heathsc/gembsctl/pkg/ledger"
	"github.com/heathsc/gembsctl/pkg/types"
)

// Collector periodically refreshes gauge metrics from the asset/task
// graph and the running-task ledger, mirroring the dependency-graph
// shape a live scheduler run would otherwise update inline.
type Collector struct {
	g          *graph.Graph
	ledgerPath string
	stopCh     chan struct{}
}

// NewCollector returns a Collector reading asset/task state from g and
// ledger size from ledgerPath.
func NewCollector(g *graph.Graph, ledgerPath string) *Collector {
	return &Collector{
		g:          g,
		ledgerPath: ledgerPath,
		stopCh:     make(chan struct{}),
	}
}

// Start begins periodic collection on a 15s tick.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts periodic collection.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectAssetMetrics()
	c.collectTaskMetrics()
	c.collectLedgerMetrics()
}

func (c *Collector) collectAssetMetrics() {
	counts := make(map[types.AssetStatus]int)
	for _, a := range c.g.Assets {
		counts[a.Status]++
	}
	for _, status := range []types.AssetStatus{
		types.AssetPresent, types.AssetMissing, types.AssetOutdated,
		types.AssetIncomplete, types.AssetDeleted,
	} {
		AssetsTotal.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}

func (c *Collector) collectTaskMetrics() {
	counts := make(map[types.TaskStatus]int)
	for _, t := range c.g.Tasks {
		counts[t.Status]++
	}
	for _, status := range []types.TaskStatus{
		types.TaskWaiting, types.TaskReady, types.TaskRunning, types.TaskComplete,
	} {
		TasksTotal.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}

func (c *Collector) collectLedgerMetrics() {
	entries, err := ledger.Load(c.ledgerPath)
	if err != nil {
		return
	}
	RunningLedgerSize.Set(float64(len(entries)))
}
