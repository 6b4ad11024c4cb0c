package validate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/livefeeds/feedwatch/internal/config"
	"github.com/livefeeds/feedwatch/internal/output"
	"github.com/livefeeds/feedwatch/internal/platform"
	"github.com/livefeeds/feedwatch/internal/probe"
	"github.com/livefeeds/feedwatch/internal/usage"
)

// Layer probes use fixed factors independent of the entity's service
// thresholds, matching the count endpoint's lighter weight.
const (
	layerRetries = 5
	layerTimeout = 5 * time.Second
)

// ItemResult is the outcome of the item accessibility check. On failure the
// display fields hold the previous run's values, falling back to the
// configured seeds. Stale but present beats blank.
type ItemResult struct {
	Valid      bool
	Item       *platform.Item
	Title      string
	Snippet    string
	ServiceURL string
}

// LayerProbe is the outcome for a single layer's count endpoint.
type LayerProbe struct {
	LayerID      int
	Name         string
	Success      bool
	Excluded     bool
	FeatureCount int
	Elapsed      float64
	Message      string
}

// LayersResult aggregates the per-layer probes.
type LayersResult struct {
	// AllValid is the AND over all probe outcomes. Zero enumerable layers
	// means invalid.
	AllValid bool

	Probes []LayerProbe

	// FeatureCount is the sum over non-excluded layers, or the previous
	// run's count when the layers could not be counted.
	FeatureCount int

	// Diagnostic carries the enumeration error when the layer list itself
	// could not be determined.
	Diagnostic string
}

// Result is the full validation outcome for one entity on one tick.
type Result struct {
	Item    ItemResult
	Service probe.Outcome
	Layers  LayersResult
	Usage   usage.Stats

	// ElapsedTotal is the tick's combined latency sample: the mean of the
	// service probe elapsed and the average layer probe elapsed.
	ElapsedTotal float64
}

// Pipeline runs the validation checks against the platform and services.
type Pipeline struct {
	platform platform.Client
	checker  *probe.Checker
	token    string
}

// NewPipeline returns a Pipeline. token is attached to probes of
// subscription-gated services; it may be empty.
func NewPipeline(pc platform.Client, checker *probe.Checker, token string) *Pipeline {
	return &Pipeline{platform: pc, checker: checker, token: token}
}

// Run executes the three checks in sequence for one entity. prev is the
// entity's record from the previous tick's output document, nil on the
// first ever tick.
func (p *Pipeline) Run(ctx context.Context, ent config.Entity, prev *output.ItemStatus) Result {
	var res Result

	res.Item = p.checkItem(ctx, ent, prev)
	res.Service = p.checkService(ctx, ent, res.Item)
	res.Layers = p.checkLayers(ctx, ent, res.Item, res.Service, prev)
	res.Usage = p.checkUsage(ctx, ent, res.Item)

	serviceElapsed := res.Service.Elapsed
	if !res.Service.Success {
		serviceElapsed = 0
	}
	res.ElapsedTotal = (serviceElapsed + averageLayerElapsed(res.Layers.Probes)) / 2

	return res
}

// checkItem resolves the entity against the content platform. The platform
// is authoritative for title, snippet, and service URL when reachable; on
// failure the previous run's values survive.
func (p *Pipeline) checkItem(ctx context.Context, ent config.Entity, prev *output.ItemStatus) ItemResult {
	res := ItemResult{
		Title:      ent.Title,
		Snippet:    ent.Snippet,
		ServiceURL: ent.ServiceURL,
	}
	if prev != nil {
		if prev.Title != "" {
			res.Title = prev.Title
		}
		if prev.Snippet != "" {
			res.Snippet = prev.Snippet
		}
	}

	it, err := p.platform.Item(ctx, ent.ID)
	if err != nil {
		slog.Warn("validate: item inaccessible", "entity", ent.ID, "err", err)
		return res
	}

	res.Valid = true
	res.Item = it
	res.Title = it.Title
	res.Snippet = it.Snippet
	if it.URL != "" {
		res.ServiceURL = it.URL
	}
	return res
}

// checkService probes the resolved (or configured) service endpoint with the
// entity's retry and timeout factors.
func (p *Pipeline) checkService(ctx context.Context, ent config.Entity, item ItemResult) probe.Outcome {
	opts := probe.Options{
		TryJSON: true,
		Retries: ent.RetryCount,
		Timeout: ent.Timeout,
	}
	if item.Valid && item.Item.RequiresToken() {
		opts.Token = p.token
	}

	out := p.checker.Check(ctx, item.ServiceURL, nil, opts)
	if !out.Success {
		slog.Warn("validate: service unreachable",
			"entity", ent.ID, "url", item.ServiceURL, "err", out.ErrMessage)
	}
	return out
}

// serviceLayersPayload is the service response shape layer enumeration
// falls back to when the platform item is unavailable.
type serviceLayersPayload struct {
	Layers []platform.Layer `json:"layers"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// checkLayers enumerates and probes the service's layers. Enumeration goes
// through the platform item when valid, otherwise re-parses the raw service
// response; an error payload there marks the layers wholly invalid without
// per-layer probing.
func (p *Pipeline) checkLayers(ctx context.Context, ent config.Entity, item ItemResult, service probe.Outcome, prev *output.ItemStatus) LayersResult {
	prevCount := 0
	if prev != nil {
		prevCount = prev.FeatureCount
	}

	var layers []platform.Layer
	switch {
	case item.Valid:
		var err error
		layers, err = p.platform.Layers(ctx, item.Item)
		if err != nil {
			slog.Warn("validate: layer enumeration failed", "entity", ent.ID, "err", err)
			return LayersResult{FeatureCount: prevCount, Diagnostic: err.Error()}
		}

	case service.Success:
		var payload serviceLayersPayload
		if err := json.Unmarshal(service.Body, &payload); err != nil {
			slog.Warn("validate: service response unparseable", "entity", ent.ID, "err", err)
			return LayersResult{FeatureCount: prevCount, Diagnostic: err.Error()}
		}
		if payload.Error != nil {
			slog.Warn("validate: service reports error", "entity", ent.ID, "message", payload.Error.Message)
			return LayersResult{FeatureCount: prevCount, Diagnostic: payload.Error.Message}
		}
		layers = payload.Layers

	default:
		return LayersResult{
			FeatureCount: prevCount,
			Diagnostic:   "item and service are both inaccessible",
		}
	}

	if len(layers) == 0 {
		return LayersResult{FeatureCount: prevCount, Diagnostic: "service exposes no layers"}
	}

	excluded := make(map[int]bool, len(ent.ExcludedLayers))
	for _, id := range ent.ExcludedLayers {
		excluded[id] = true
	}

	requiresToken := item.Valid && item.Item.RequiresToken()

	res := LayersResult{AllValid: true}
	for _, layer := range layers {
		lp := p.probeLayer(ctx, item.ServiceURL, layer, requiresToken)
		lp.Excluded = excluded[layer.ID]

		if !lp.Success {
			res.AllValid = false
		} else if !lp.Excluded {
			res.FeatureCount += lp.FeatureCount
		}
		res.Probes = append(res.Probes, lp)
	}
	return res
}

// probeLayer queries a single layer's count endpoint.
func (p *Pipeline) probeLayer(ctx context.Context, serviceURL string, layer platform.Layer, addToken bool) LayerProbe {
	lp := LayerProbe{LayerID: layer.ID, Name: layer.Name}

	target := serviceURL + "/" + strconv.Itoa(layer.ID) + "/query"
	params := url.Values{
		"where":           {"1=1"},
		"returnGeometry":  {"false"},
		"returnCountOnly": {"true"},
	}
	opts := probe.Options{
		TryJSON: true,
		Retries: layerRetries,
		Timeout: layerTimeout,
	}
	if addToken {
		opts.Token = p.token
	}

	out := p.checker.Check(ctx, target, params, opts)
	lp.Elapsed = out.Elapsed
	if !out.Success {
		lp.Message = out.ErrMessage
		return lp
	}

	var count struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(out.Body, &count); err != nil {
		lp.Message = "decode count: " + err.Error()
		return lp
	}

	lp.Success = true
	lp.FeatureCount = count.Count
	return lp
}

// checkUsage pulls the item's usage series and classifies its trend.
// Unavailable usage degrades to the zero record.
func (p *Pipeline) checkUsage(ctx context.Context, ent config.Entity, item ItemResult) usage.Stats {
	if !item.Valid {
		return usage.Zero()
	}
	series, err := p.platform.Usage(ctx, ent.ID, ent.UsageDateRange)
	if err != nil {
		slog.Warn("validate: usage unavailable", "entity", ent.ID, "err", err)
		return usage.Zero()
	}
	return usage.FromCounts(series.HourlyCounts(), ent.UsageLowerBound, ent.UsageUpperBound)
}

func averageLayerElapsed(probes []LayerProbe) float64 {
	var total float64
	var n int
	for _, lp := range probes {
		if lp.Success {
			total += lp.Elapsed
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}
