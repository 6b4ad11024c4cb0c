// Package responsetime maintains the per-entity rolling elapsed-time
// baseline: a running sum and count persisted as one JSON file per entity.
// The average read from the record on file feeds the latency-outlier rule;
// an exclusion window suppresses the write while the read still proceeds.
package responsetime
