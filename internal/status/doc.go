// Package status derives the per-entity health code and decides when the
// public feed needs regenerating.
//
// engine.go provides the pure Evaluate(Input) function: an ordered,
// last-write-wins rule cascade over validation outcomes, processor
// telemetry, retry counts, and response-time deviation. Healthy entities
// walk the graded-symptom rules 001 through 101 in fixed order; any
// validation failure short-circuits into the disjoint structural-outage
// branch (102/201/500/501). Evaluation order is load-bearing: later rules
// are meant to take precedence.
//
// feed.go provides ShouldUpdate, which compares the operator-facing catalog
// comments of the previous and current codes so the feed only regenerates
// when the public message actually changes.
package status
