package status

import (
	"github.com/livefeeds/feedwatch/internal/catalog"
	"github.com/livefeeds/feedwatch/internal/telemetry"
)

// Status codes emitted by the cascade. The catalog carries the operator
// messaging for each; the engine only deals in the codes themselves.
const (
	CodeNormal = catalog.Normal // "000"

	// Graded symptoms on a fully valid entity, in evaluation order.
	CodeFeedStale            = "001" // no service update within the expected cadence
	CodeRunOverdue           = "002" // processor has not attempted a run recently enough
	CodeNoDataPersistent     = "003" // repeated "no data update" outcomes
	CodeAltFailurePersistent = "004" // repeated alternate-failure outcomes
	CodeFailurePersistent    = "005" // repeated basic-failure outcomes
	CodeProcessorCritical    = "006" // processor reports a critical condition
	CodeExcessiveRetries     = "100" // probe needed more retries than budgeted
	CodeSlowResponse         = "101" // latency outlier against the rolling baseline

	// Structural outages, mutually exclusive with the rules above.
	CodeItemInaccessible = "102" // service up, item unresolvable
	CodeLayersInvalid    = "201" // service up, one or more layers failing
	CodeServiceDown      = "500" // item resolvable, service unreachable
	CodeTotalOutage      = "501" // nothing reachable
)

// Thresholds are the per-entity factors the cascade evaluates against.
type Thresholds struct {
	// UpdateIntervalFactor scales the processor's average update interval
	// into the rule-001 staleness threshold (minutes).
	UpdateIntervalFactor float64

	// FeedIntervalFactor scales the processor's average feed interval into
	// the rule-002 run-recency threshold (minutes).
	FeedIntervalFactor float64

	// ElapsedTimeFactor scales the rolling elapsed-time average into the
	// rule-101 latency threshold (seconds).
	ElapsedTimeFactor float64

	// ConsecutiveFailures gates rules 003-005.
	ConsecutiveFailures int

	// RetryCount is the probe retry budget gating rule 100.
	RetryCount int
}

// Input is everything the cascade needs for one entity on one tick.
type Input struct {
	// PlatformReachable is the outer platform-reachability flag. It is true
	// in every current deployment; it exists so the total-outage branch is
	// expressible.
	PlatformReachable bool

	ItemValid    bool
	ServiceValid bool
	LayersValid  bool

	// Telemetry is the processor snapshot, nil when absent. Rules 001-006
	// are skipped entirely for absent telemetry.
	Telemetry *telemetry.Snapshot

	// RetryCount is the number of retries the service probe consumed.
	RetryCount int

	// Elapsed is this tick's total elapsed time in seconds.
	Elapsed float64

	// ElapsedAverage is the rolling baseline from the response-time store.
	ElapsedAverage float64

	// Now is the tick timestamp in epoch seconds.
	Now int64

	Thresholds Thresholds
}

// Evaluate runs the cascade and returns the final status code.
//
// The healthy-path rules run in fixed sequence with each match overwriting
// the previous one, so the last applicable rule wins. The failure branch is
// disjoint: once any validation boolean is false, none of the graded rules
// are considered.
func Evaluate(in Input) string {
	if in.ItemValid && in.ServiceValid && in.LayersValid {
		return evaluateHealthy(in)
	}
	return evaluateFailure(in)
}

func evaluateHealthy(in Input) string {
	code := CodeNormal

	if t := in.Telemetry; t != nil {
		// 001: elapsed minutes since the last service update exceed the
		// entity's own historical update cadence.
		lastUpdateMins := float64(in.Now-t.LastUpdateTimestamp) / 60
		if lastUpdateMins > in.Thresholds.UpdateIntervalFactor*t.AvgUpdateIntervalMins {
			code = CodeFeedStale
		}

		// 002: elapsed minutes since the last run of any outcome exceed the
		// average feed interval.
		lastRunMins := float64(in.Now-t.LastRunTimestamp) / 60
		if lastRunMins > in.Thresholds.FeedIntervalFactor*t.AvgFeedIntervalMins {
			code = CodeRunOverdue
		}

		// 003-005: a persistent processor signal only counts once the
		// consecutive-failure run exceeds the entity's threshold.
		if t.LastStatus.Code == telemetry.ProcessorNoDataUpdate &&
			t.ConsecutiveFailures > in.Thresholds.ConsecutiveFailures {
			code = CodeNoDataPersistent
		}
		if t.LastStatus.Code == telemetry.ProcessorAltFailure &&
			t.ConsecutiveFailures > in.Thresholds.ConsecutiveFailures {
			code = CodeAltFailurePersistent
		}
		if t.LastStatus.Code == telemetry.ProcessorFailure &&
			t.ConsecutiveFailures > in.Thresholds.ConsecutiveFailures {
			code = CodeFailurePersistent
		}

		// 006: critical is unconditional.
		if t.LastStatus.Code == telemetry.ProcessorCritical {
			code = CodeProcessorCritical
		}
	}

	// 100: the probe burned through more retries than the entity budgets.
	if in.RetryCount > in.Thresholds.RetryCount {
		code = CodeExcessiveRetries
	}

	// 101: this tick's latency is an outlier against the rolling baseline.
	if in.Elapsed > in.Thresholds.ElapsedTimeFactor*in.ElapsedAverage {
		code = CodeSlowResponse
	}

	return code
}

func evaluateFailure(in Input) string {
	if !in.PlatformReachable && !in.ItemValid && !in.ServiceValid {
		return CodeTotalOutage
	}

	if in.ServiceValid {
		code := CodeNormal
		if !in.ItemValid {
			code = CodeItemInaccessible
		}
		// 201 follows and may overwrite 102 within this branch.
		if !in.LayersValid {
			code = CodeLayersInvalid
		}
		return code
	}

	if in.ItemValid {
		return CodeServiceDown
	}
	return CodeTotalOutage
}
