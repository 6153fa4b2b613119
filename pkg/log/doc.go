/*
Package log provides structured logging for gembsctl using zerolog.

A single global Logger is configured once via Init and then specialized
per component with With* helpers, so every log line carries enough
context (component, task, asset) to reconstruct a scheduling decision
after the fact without threading a logger through every call site.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})
	log.Info("gembsctl starting")

	schedLog := log.WithComponent("scheduler")
	schedLog.Info().Msg("dispatching task")

	taskLog := log.WithTaskID("map_sample1")
	taskLog.Error().Err(err).Msg("pipeline failed")

JSON output is intended for production; console output (with
timestamps rendered human-readable) is easier to read during
interactive prepare/run invocations.
*/
package log
