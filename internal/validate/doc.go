// Package validate runs the three sequenced accessibility checks per
// entity: item resolution against the content platform, a probe of the
// backing service, and per-layer count probes. Later checks reuse earlier
// byproducts (the resolved service URL, the raw service response), and
// every failure is a value on the result, never an abort: stale values from
// the previous run are reused rather than blanked.
package validate
