package usage

import "math"

// Trending codes.
const (
	TrendSteady = 0
	TrendUp     = 1
	TrendDown   = -1
)

// trailingHours is the number of hours averaged to form the baseline,
// excluding the last full hour being classified.
const trailingHours = 6

// Stats is the per-entity usage trend snapshot carried into status.json and
// the event history.
type Stats struct {
	TrendingCode  int     `json:"trendingCode"`
	PercentChange float64 `json:"percentChange"`

	// UsageCounts holds [last full hour count, trailing-hours average].
	UsageCounts [2]int `json:"usageCounts"`
}

// Zero is the degraded all-zero record used when usage data is unavailable.
func Zero() Stats {
	return Stats{}
}

// Trend classifies the last full hour's count against the trailing average.
// A percent change inside [lower, upper] is steady; above upper is up;
// below lower is down.
func Trend(lastHour, trailingAvg int, lower, upper float64) Stats {
	var pct float64
	increase := lastHour - trailingAvg
	if trailingAvg > 0 {
		pct = float64(increase) / float64(trailingAvg) * 100
	}

	code := TrendSteady
	switch {
	case pct > upper:
		code = TrendUp
	case pct < lower:
		code = TrendDown
	}

	return Stats{
		TrendingCode:  code,
		PercentChange: pct,
		UsageCounts:   [2]int{lastHour, trailingAvg},
	}
}

// FromCounts derives a trend from an hourly [timestamp, count] series, newest
// last. The final element is the current partial hour and is skipped; the one
// before it is the last full hour. The baseline is the truncated mean of the
// six hours ending with the last full hour. Series too short to form a
// baseline yield the zero record.
func FromCounts(num [][2]float64, lower, upper float64) Stats {
	if len(num) < trailingHours+1 {
		return Zero()
	}

	lastHour := int(num[len(num)-2][1])

	var sum int
	for _, hr := range num[len(num)-1-trailingHours : len(num)-1] {
		sum += int(hr[1])
	}
	avg := int(math.Trunc(float64(sum) / trailingHours))

	return Trend(lastHour, avg, lower, upper)
}
