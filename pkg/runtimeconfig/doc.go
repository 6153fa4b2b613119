/*
Package runtimeconfig loads gembsctl's operator-facing settings file,
conventionally <workdir>/.gemBS/gembsctl.yaml: worker pool size, lock
poll/timeout overrides, and tool-path overrides consumed by pkg/jobs.
An absent file is not an error - every field falls back to its
documented default (8 workers, 250ms poll, 300s timeout).
*/
package runtimeconfig
