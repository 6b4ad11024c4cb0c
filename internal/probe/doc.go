// Package probe is the HTTP probe used for every outbound check: service
// endpoints, layer count queries, and feed-processor telemetry. A probe
// retries transient failures with exponential backoff and reports the retry
// count it actually consumed; the count feeds the status cascade's
// excessive-retry rule. Retry state is scoped to a single request, never
// shared across probes.
package probe
