/*
Package metrics exposes gembsctl's Prometheus metrics: asset and task
counts by status, scheduling latency and throughput, lock contention,
and pipeline failures. All metrics are registered at package init and
served by Handler() at whatever path the caller mounts it on (no HTTP
server is started here - that belongs to cmd/gembsctl).

A Collector periodically refreshes the gauge metrics (asset/task
counts, ledger size) from a graph.Graph and the running-task ledger;
counters and histograms are updated inline by the scheduler as events
happen (pipeline failures are counted when the scheduler reaps them).
*/
package metrics
