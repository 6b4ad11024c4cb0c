// Package output reads and writes status.json, the process-wide snapshot
// produced once per tick. The previous tick's document is the system's
// cross-tick continuity mechanism: it seeds stale-but-present titles,
// snippets, feature counts, and the previous status codes that drive the
// feed-emission decision.
package output
