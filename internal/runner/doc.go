// Package runner orchestrates one batch tick: telemetry ingest and
// validation fan out on a worker pool, then every stage that touches
// persisted local state runs sequentially on the orchestrating goroutine.
// An advisory file lock guards against overlapping invocations. One
// entity's failure never aborts another's processing.
package runner
