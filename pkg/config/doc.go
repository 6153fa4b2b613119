/*
Package config implements the project's single on-disk state file: a
msgpack-encoded, optionally gzipped blob behind a two-byte format
header, holding typed configuration values, per-sample metadata, the
contig list and contig-pool membership.

Load/Save operate on the blob directly; LoadLocked/SaveLocked wrap
them with the primary file lock so concurrent gembsctl invocations
never observe a half-written file. A missing file is a fresh project,
not an error - Load returns an empty Store; a corrupt one is fatal -
Load returns *ErrStateDecode and the caller must refuse to proceed.
*/
package config
