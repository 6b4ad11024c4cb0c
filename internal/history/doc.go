// Package history is the bounded per-entity event log: one JSON document
// per entity holding an ordered (oldest first) sequence of status
// snapshots. Append prunes before it writes, first by retention age, then
// oldest-first by count, so a document never exceeds the entity's limits.
// The orchestrating tick is the only writer.
package history
