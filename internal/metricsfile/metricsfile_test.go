package metricsfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func writeAndParse(t *testing.T, samples []Sample) map[string]*dto.MetricFamily {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feedwatch.prom")

	if err := Write(path, baseTime, samples); err != nil {
		t.Fatalf("Write: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(f)
	if err != nil {
		t.Fatalf("output is not valid exposition text: %v", err)
	}
	return families
}

// metricValue finds the gauge for the given entity id within a family.
func metricValue(t *testing.T, mf *dto.MetricFamily, id string) float64 {
	t.Helper()
	for _, m := range mf.Metric {
		for _, lp := range m.Label {
			if lp.GetName() == "id" && lp.GetValue() == id {
				return m.Gauge.GetValue()
			}
		}
	}
	t.Fatalf("%s: no metric for id %q", mf.GetName(), id)
	return 0
}

func TestWrite_ExposesPerEntityGauges(t *testing.T) {
	families := writeAndParse(t, []Sample{
		{ID: "feed-a", StatusCode: "006", Elapsed: 1.5, RetryCount: 2, FeatureCount: 150},
		{ID: "feed-b", StatusCode: "000", Elapsed: 0.4, RetryCount: 0, FeatureCount: 42},
	})

	codes := families["feedwatch_status_code"]
	if codes == nil {
		t.Fatal("feedwatch_status_code family missing")
	}
	if got := metricValue(t, codes, "feed-a"); got != 6 {
		t.Errorf("status code feed-a = %v, want 6", got)
	}
	if got := metricValue(t, codes, "feed-b"); got != 0 {
		t.Errorf("status code feed-b = %v, want 0", got)
	}

	if got := metricValue(t, families["feedwatch_elapsed_seconds"], "feed-a"); got != 1.5 {
		t.Errorf("elapsed feed-a = %v, want 1.5", got)
	}
	if got := metricValue(t, families["feedwatch_retry_count"], "feed-a"); got != 2 {
		t.Errorf("retries feed-a = %v, want 2", got)
	}
	if got := metricValue(t, families["feedwatch_feature_count"], "feed-b"); got != 42 {
		t.Errorf("features feed-b = %v, want 42", got)
	}
}

func TestWrite_TickTimestamp(t *testing.T) {
	families := writeAndParse(t, []Sample{{ID: "feed-a", StatusCode: "000"}})

	ts := families["feedwatch_tick_timestamp_seconds"]
	if ts == nil || len(ts.Metric) != 1 {
		t.Fatal("feedwatch_tick_timestamp_seconds missing")
	}
	if got := ts.Metric[0].Gauge.GetValue(); got != float64(baseTime.Unix()) {
		t.Errorf("timestamp = %v, want %v", got, float64(baseTime.Unix()))
	}
}

func TestWrite_UnparseableCodeMapsToSentinel(t *testing.T) {
	families := writeAndParse(t, []Sample{{ID: "feed-a", StatusCode: "n/a"}})

	if got := metricValue(t, families["feedwatch_status_code"], "feed-a"); got != -1 {
		t.Errorf("status code = %v, want -1 sentinel", got)
	}
}

func TestWrite_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feedwatch.prom")

	if err := Write(path, baseTime, []Sample{{ID: "feed-a", StatusCode: "000"}}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file %s left behind", e.Name())
		}
	}
}
