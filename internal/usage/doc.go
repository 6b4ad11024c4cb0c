// Package usage classifies an entity's request-traffic trend. The last full
// hour's request count is compared against the truncated mean of the six
// hours before it; the percent change maps to a trending code against the
// entity's configured bounds.
package usage
