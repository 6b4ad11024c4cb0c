package metricsfile

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Sample is one entity's contribution to the textfile.
type Sample struct {
	ID           string
	StatusCode   string
	Elapsed      float64
	RetryCount   int
	FeatureCount int
}

// Write renders the tick's samples to path in Prometheus text exposition
// format. Status codes are exposed as their numeric value ("006" -> 6).
func Write(path string, at time.Time, samples []Sample) error {
	var buf bytes.Buffer

	families := []*dto.MetricFamily{
		gaugeFamily("feedwatch_tick_timestamp_seconds",
			"Epoch time the tick's status document was prepared.",
			[]*dto.Metric{gauge(nil, float64(at.Unix()))}),
		entityFamily("feedwatch_status_code",
			"Derived status code per monitored entity.",
			samples, func(s Sample) float64 { return codeValue(s.StatusCode) }),
		entityFamily("feedwatch_elapsed_seconds",
			"Combined service and layer probe latency per entity.",
			samples, func(s Sample) float64 { return s.Elapsed }),
		entityFamily("feedwatch_retry_count",
			"Probe retries consumed this tick per entity.",
			samples, func(s Sample) float64 { return float64(s.RetryCount) }),
		entityFamily("feedwatch_feature_count",
			"Feature count across non-excluded layers per entity.",
			samples, func(s Sample) float64 { return float64(s.FeatureCount) }),
	}

	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return fmt.Errorf("metricsfile: encode %s: %w", mf.GetName(), err)
		}
	}

	tmp := fmt.Sprintf("%s.%d.tmp", path, time.Now().UnixNano())
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("metricsfile: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("metricsfile: replace %s: %w", path, err)
	}
	return nil
}

func entityFamily(name, help string, samples []Sample, value func(Sample) float64) *dto.MetricFamily {
	metrics := make([]*dto.Metric, 0, len(samples))
	for _, s := range samples {
		metrics = append(metrics, gauge(labels("id", s.ID), value(s)))
	}
	return gaugeFamily(name, help, metrics)
}

func gaugeFamily(name, help string, metrics []*dto.Metric) *dto.MetricFamily {
	typ := dto.MetricType_GAUGE
	return &dto.MetricFamily{
		Name:   &name,
		Help:   &help,
		Type:   &typ,
		Metric: metrics,
	}
}

func gauge(lp []*dto.LabelPair, v float64) *dto.Metric {
	return &dto.Metric{
		Label: lp,
		Gauge: &dto.Gauge{Value: &v},
	}
}

func labels(pairs ...string) []*dto.LabelPair {
	out := make([]*dto.LabelPair, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		name, value := pairs[i], pairs[i+1]
		out = append(out, &dto.LabelPair{Name: &name, Value: &value})
	}
	return out
}

// codeValue parses a 3-digit code to its numeric value; unparseable codes
// map to -1 so dashboards can surface them.
func codeValue(code string) float64 {
	v, err := strconv.ParseFloat(code, 64)
	if err != nil {
		return -1
	}
	return v
}
