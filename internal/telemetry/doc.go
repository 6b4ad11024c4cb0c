// Package telemetry ingests the external feed processor's per-entity status
// snapshots. Snapshots are fetched in parallel on a worker pool bounded by
// the entity count; any fetch or decode failure marks the entity's telemetry
// absent rather than aborting the batch. The status cascade skips its
// telemetry-dependent rules for absent entities.
package telemetry
