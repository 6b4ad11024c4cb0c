package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/livefeeds/feedwatch/internal/catalog"
	"github.com/livefeeds/feedwatch/internal/config"
	"github.com/livefeeds/feedwatch/internal/history"
	"github.com/livefeeds/feedwatch/internal/metricsfile"
	"github.com/livefeeds/feedwatch/internal/notify"
	"github.com/livefeeds/feedwatch/internal/output"
	"github.com/livefeeds/feedwatch/internal/platform"
	"github.com/livefeeds/feedwatch/internal/probe"
	"github.com/livefeeds/feedwatch/internal/responsetime"
	"github.com/livefeeds/feedwatch/internal/rss"
	"github.com/livefeeds/feedwatch/internal/status"
	"github.com/livefeeds/feedwatch/internal/telemetry"
	"github.com/livefeeds/feedwatch/internal/timewin"
	"github.com/livefeeds/feedwatch/internal/validate"
)

// buildTimeLayout matches the feed's last-build timestamp format.
const buildTimeLayout = "Mon, 02 Jan 2006 15:04:05 +0000"

const defaultPlatformURL = "https://www.arcgis.com"

// Runner owns everything a tick needs. It is built once and survives
// config hot-reloads in daemon mode.
type Runner struct {
	mu       sync.Mutex
	cfg      *config.Config
	pipeline *validate.Pipeline
	fetcher  *telemetry.Fetcher
	windows  map[string]*timewin.Windows

	cat      catalog.Catalog
	comments catalog.Comments
	checker  *probe.Checker
	rt       *responsetime.Store
	events   *history.Store
	renderer *rss.Renderer
	notifier *notify.Notifier

	now func() time.Time // injectable for deterministic tests
}

// New validates the required inputs and builds a Runner. A missing status
// code catalog or comments file is fatal here, before any entity work.
func New(cfg *config.Config) (*Runner, error) {
	cat, err := catalog.Load(cfg.StatusCodesFile)
	if err != nil {
		return nil, err
	}
	comments, err := catalog.LoadComments(cfg.CommentsFile)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("runner: ensure data directory: %w", err)
	}
	if err := os.MkdirAll(cfg.RSS.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("runner: ensure rss directory: %w", err)
	}

	rt, err := responsetime.NewStore(filepath.Join(cfg.DataDir, "ResponseTimeData"))
	if err != nil {
		return nil, err
	}
	events, err := history.NewStore(filepath.Join(cfg.DataDir, "event_history"))
	if err != nil {
		return nil, err
	}
	renderer, err := rss.NewRenderer(cfg.RSS.TemplateFile, cfg.RSS.ItemTemplateFile)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		cat:      cat,
		comments: comments,
		checker:  probe.NewChecker(),
		rt:       rt,
		events:   events,
		renderer: renderer,
		notifier: notify.New(cfg.Webhooks),
		now:      time.Now,
	}
	if err := r.applyConfig(cfg); err != nil {
		return nil, err
	}
	return r, nil
}

// UpdateConfig swaps in a hot-reloaded configuration between ticks.
func (r *Runner) UpdateConfig(cfg *config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.applyConfig(cfg); err != nil {
		slog.Error("runner: rejecting reloaded config", "err", err)
	}
}

// applyConfig rebuilds the config-derived collaborators. Callers hold mu
// except during construction.
func (r *Runner) applyConfig(cfg *config.Config) error {
	windows := make(map[string]*timewin.Windows, len(cfg.Entities))
	for _, ent := range cfg.Entities {
		w, err := timewin.Parse(ent.Exclude)
		if err != nil {
			return fmt.Errorf("runner: entity %q: %w", ent.ID, err)
		}
		windows[ent.ID] = w
	}

	base := cfg.Platform.BaseURL
	if base == "" {
		base = defaultPlatformURL
	}
	token := cfg.Platform.Token()

	r.cfg = cfg
	r.windows = windows
	r.pipeline = validate.NewPipeline(platform.NewRESTClient(base, token), r.checker, token)
	r.fetcher = telemetry.NewFetcher(cfg.Telemetry.BaseURL, r.checker,
		cfg.Telemetry.Retries, cfg.Telemetry.Timeout)
	return nil
}

// Tick runs one full evaluation pass over the configured fleet.
func (r *Runner) Tick(ctx context.Context) error {
	r.mu.Lock()
	cfg := r.cfg
	pipeline := r.pipeline
	fetcher := r.fetcher
	windows := r.windows
	r.mu.Unlock()

	lock := flock.New(filepath.Join(cfg.DataDir, "feedwatch.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("runner: acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("runner: another invocation holds the lock")
	}
	defer lock.Unlock()

	ts := r.now()
	statusPath := filepath.Join(cfg.DataDir, "status.json")

	prev, err := output.Load(statusPath)
	if err != nil {
		slog.Warn("runner: previous status unreadable, starting cold", "err", err)
		prev = nil
	}

	ids := make([]string, len(cfg.Entities))
	for i, ent := range cfg.Entities {
		ids[i] = ent.ID
	}

	slog.Info("runner: tick starting", "entities", len(ids))
	snaps := fetcher.FetchAll(ctx, ids)

	// Fan out the latency-bound validation work; one goroutine per entity,
	// results land in fixed slots so no further synchronization is needed.
	results := make([]validate.Result, len(cfg.Entities))
	var wg sync.WaitGroup
	for i, ent := range cfg.Entities {
		wg.Add(1)
		go func(i int, ent config.Entity) {
			defer wg.Done()
			var prevItem *output.ItemStatus
			if it, ok := prev.Find(ent.ID); ok {
				prevItem = &it
			}
			results[i] = pipeline.Run(ctx, ent, prevItem)
		}(i, ent)
	}
	wg.Wait()

	// Everything below touches persisted local state and runs sequentially
	// on this goroutine.
	items := make([]output.ItemStatus, 0, len(cfg.Entities))
	samples := make([]metricsfile.Sample, 0, len(cfg.Entities))
	for i, ent := range cfg.Entities {
		item := r.processEntity(ctx, ent, results[i], snaps[ent.ID], prev, windows[ent.ID], ts)
		items = append(items, item)
		samples = append(samples, metricsfile.Sample{
			ID:           ent.ID,
			StatusCode:   item.Status.Code,
			Elapsed:      results[i].ElapsedTotal,
			RetryCount:   results[i].Service.RetryCount,
			FeatureCount: item.FeatureCount,
		})
	}

	doc := &output.Document{StatusPreparedOn: ts.Unix(), Items: items}
	if err := output.Save(statusPath, doc); err != nil {
		return err
	}

	if cfg.Metrics.File != "" {
		if err := metricsfile.Write(cfg.Metrics.File, ts, samples); err != nil {
			slog.Error("runner: metrics export failed", "err", err)
		}
	}

	slog.Info("runner: tick complete", "entities", len(items))
	return nil
}

// processEntity runs the per-entity stateful stages: response-time update,
// status derivation, history append, feed regeneration, and notification.
// Errors are entity-scoped: logged, never propagated.
func (r *Runner) processEntity(ctx context.Context, ent config.Entity, res validate.Result,
	snap *telemetry.Snapshot, prev *output.Document, win *timewin.Windows, ts time.Time) output.ItemStatus {

	excluded := win.Excludes(ts)
	avg, err := r.rt.Observe(ent.ID, res.ElapsedTotal, excluded)
	if err != nil {
		slog.Warn("runner: response time update failed", "entity", ent.ID, "err", err)
	}

	code := status.Evaluate(status.Input{
		PlatformReachable: true,
		ItemValid:         res.Item.Valid,
		ServiceValid:      res.Service.Success,
		LayersValid:       res.Layers.AllValid,
		Telemetry:         snap,
		RetryCount:        res.Service.RetryCount,
		Elapsed:           res.ElapsedTotal,
		ElapsedAverage:    avg,
		Now:               ts.Unix(),
		Thresholds: status.Thresholds{
			UpdateIntervalFactor: ent.UpdateIntervalFactor,
			FeedIntervalFactor:   ent.FeedIntervalFactor,
			ElapsedTimeFactor:    ent.ElapsedTimeFactor,
			ConsecutiveFailures:  ent.ConsecutiveFailuresThreshold,
			RetryCount:           ent.RetryCount,
		},
	})

	slog.Info("runner: entity evaluated",
		"entity", ent.ID,
		"title", res.Item.Title,
		"item_valid", res.Item.Valid,
		"service_valid", res.Service.Success,
		"layers_valid", res.Layers.AllValid,
		"telemetry", snap != nil,
		"retries", res.Service.RetryCount,
		"elapsed", res.ElapsedTotal,
		"elapsed_avg", avg,
		"status", code,
	)

	var lastUpdate int64
	var updateRate float64
	if snap != nil {
		lastUpdate = snap.LastUpdateTimestamp
		updateRate = snap.AvgUpdateIntervalMins
	}

	adminComments := r.comments.For(ent.ID)

	item := output.ItemStatus{
		ID:             ent.ID,
		Title:          res.Item.Title,
		Snippet:        res.Item.Snippet,
		Comments:       adminComments,
		LastUpdateTime: lastUpdate,
		UpdateRate:     updateRate,
		FeatureCount:   res.Layers.FeatureCount,
		Usage:          res.Usage,
		Status:         catalog.Ref{Code: code},
	}

	rec := history.EventRecord{
		PubDate:       ts.UTC().Format(buildTimeLayout),
		PubEventDate:  ts.Unix(),
		Title:         res.Item.Title,
		Snippet:       res.Item.Snippet,
		Comments:      adminComments,
		LastBuildTime: ts.UTC().Format(buildTimeLayout),
		UpdateRate:    updateRate,
		FeatureCount:  res.Layers.FeatureCount,
		Usage:         res.Usage,
		Status:        r.cat.Resolve(code),
	}
	lim := history.Limits{MaxEvents: ent.MaxEvents, RetentionDays: ent.RetentionDays}
	if err := r.events.Append(ent.ID, rec, lim); err != nil {
		slog.Error("runner: history append failed", "entity", ent.ID, "err", err)
	}

	r.emitFeed(ctx, ent, res, prev, code, ts)
	return item
}

// emitFeed regenerates the entity's public feed when the status message
// changed (or the feed has never been written) and notifies webhooks on a
// real message change.
func (r *Runner) emitFeed(ctx context.Context, ent config.Entity, res validate.Result,
	prev *output.Document, code string, ts time.Time) {

	r.mu.Lock()
	rssDir := r.cfg.RSS.Dir
	r.mu.Unlock()

	feedPath := filepath.Join(rssDir, ent.ID+"."+ent.RSSExtension)
	_, statErr := os.Stat(feedPath)
	feedMissing := os.IsNotExist(statErr)

	needsUpdate := status.ShouldUpdate(prev, ent.ID, code, r.cat)
	if !needsUpdate && !feedMissing {
		slog.Debug("runner: public message unchanged, feed kept", "entity", ent.ID)
		return
	}

	doc, err := r.events.Load(ent.ID)
	if err != nil {
		slog.Error("runner: history unreadable for feed", "entity", ent.ID, "err", err)
		return
	}
	if err := r.renderer.WriteFeed(feedPath, res.Item.Title, res.Item.ServiceURL, doc, ent.RSSCommentsHeader); err != nil {
		slog.Error("runner: feed write failed", "entity", ent.ID, "err", err)
		return
	}
	slog.Info("runner: feed updated", "entity", ent.ID, "path", feedPath)

	// Only a genuine message change notifies; the first-ever feed does not.
	if _, hadPrev := prev.Find(ent.ID); hadPrev && needsUpdate {
		comment, _ := r.cat.Comment(code)
		r.notifier.StatusChanged(ctx, notify.Event{
			EntityID: ent.ID,
			Title:    res.Item.Title,
			Code:     code,
			Comment:  comment,
			At:       ts,
		})
	}
}
