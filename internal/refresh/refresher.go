package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/matijazezelj/peerscope/internal/alert"
	"github.com/matijazezelj/peerscope/internal/config"
	"github.com/matijazezelj/peerscope/internal/inventory"
	"github.com/matijazezelj/peerscope/internal/metrics"
	"github.com/matijazezelj/peerscope/internal/source"
	"github.com/matijazezelj/peerscope/internal/topology"
	"github.com/matijazezelj/peerscope/pkg/models"
)

// Refresh sources.
const (
	SourceFile   = "file"
	SourceInline = "inline"
	SourceAll    = "all"
)

// Refresh statuses recorded in the inventory.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrNoSources is returned when an "all" refresh has nothing configured.
var ErrNoSources = errors.New("no snapshot sources configured")

// Request describes a refresh to execute.
type Request struct {
	Source string // "file", "inline" or "all"
	Paths  []string

	// Snapshot is the inventory for inline refreshes.
	Snapshot *models.Snapshot
}

// Result is returned after a refresh completes.
type Result struct {
	RefreshID int64
	Networks  int
	Peerings  int
	Summary   topology.Summary
	Events    int
	Warnings  []string
	Error     error
}

// SyncFunc mirrors a freshly built topology to an external graph store.
type SyncFunc func(ctx context.Context, t models.Topology) error

// Refresher loads snapshots, replaces the stored inventory, rebuilds the
// topology and raises alerts for it.
type Refresher struct {
	store   inventory.Store
	loader  source.Loader
	builder *topology.Builder
	cfg     *config.Config
	logger  *slog.Logger

	alerter   alert.Alerter
	metrics   *metrics.Metrics
	sync      SyncFunc
	listeners []func(models.Topology)

	applyMu sync.Mutex
	mu      sync.Mutex
	running map[int64]context.CancelFunc
}

// New creates a Refresher reading snapshot files.
func New(store inventory.Store, builder *topology.Builder, cfg *config.Config, logger *slog.Logger) *Refresher {
	if builder == nil {
		builder = topology.NewBuilder(topology.Options{})
	}
	return &Refresher{
		store:   store,
		loader:  source.NewFileLoader(),
		builder: builder,
		cfg:     cfg,
		logger:  logger,
		running: make(map[int64]context.CancelFunc),
	}
}

// SetAlerter sets the backend that receives topology events.
func (r *Refresher) SetAlerter(a alert.Alerter) { r.alerter = a }

// SetMetrics sets the metrics sink.
func (r *Refresher) SetMetrics(m *metrics.Metrics) { r.metrics = m }

// SetSync sets a function run after every successful refresh. Its failures
// are logged and never fail the refresh.
func (r *Refresher) SetSync(fn SyncFunc) { r.sync = fn }

// OnTopology registers a callback receiving every freshly built topology.
func (r *Refresher) OnTopology(fn func(models.Topology)) {
	r.listeners = append(r.listeners, fn)
}

// RunSync executes a refresh synchronously and returns the result.
func (r *Refresher) RunSync(ctx context.Context, req Request) Result {
	req, err := r.resolve(req)
	if err != nil {
		return Result{Error: err}
	}

	started := time.Now()
	id, err := r.store.RecordRefresh(ctx, inventory.Refresh{
		Source:     req.Source,
		SourcePath: describe(req),
		StartedAt:  started,
		Status:     StatusRunning,
	})
	if err != nil {
		return Result{Error: fmt.Errorf("recording refresh: %w", err)}
	}
	return r.execute(ctx, id, req, started)
}

// RunAsync launches a refresh in a goroutine and returns its ID immediately.
func (r *Refresher) RunAsync(ctx context.Context, req Request) (int64, error) {
	req, err := r.resolve(req)
	if err != nil {
		return 0, err
	}

	started := time.Now()
	id, err := r.store.RecordRefresh(ctx, inventory.Refresh{
		Source:     req.Source,
		SourcePath: describe(req),
		StartedAt:  started,
		Status:     StatusRunning,
	})
	if err != nil {
		return 0, fmt.Errorf("recording refresh: %w", err)
	}

	asyncCtx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.running[id] = cancel
	r.mu.Unlock()

	go func() {
		defer cancel()
		defer func() {
			r.mu.Lock()
			delete(r.running, id)
			r.mu.Unlock()
		}()

		res := r.execute(asyncCtx, id, req, started)
		if res.Error != nil {
			r.logger.Error("async refresh failed", "refreshID", id, "error", res.Error)
			return
		}
		r.logger.Info("async refresh completed", "refreshID", id, "networks", res.Networks, "peerings", res.Peerings)
	}()

	return id, nil
}

// RunAllConfigured refreshes from every configured source as one snapshot.
func (r *Refresher) RunAllConfigured(ctx context.Context) Result {
	return r.RunSync(ctx, Request{Source: SourceAll})
}

// IsRunning returns true if an async refresh is in progress.
func (r *Refresher) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.running) > 0
}

// Cancel stops all in-flight async refreshes.
func (r *Refresher) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cancel := range r.running {
		cancel()
	}
}

// resolve expands "all" into the configured paths and checks the request shape.
func (r *Refresher) resolve(req Request) (Request, error) {
	switch req.Source {
	case SourceAll:
		var paths []string
		if r.cfg != nil {
			for _, f := range r.cfg.Sources.Files {
				paths = append(paths, f.Path)
			}
		}
		if len(paths) == 0 {
			return req, ErrNoSources
		}
		req.Paths = paths
	case SourceFile:
		if len(req.Paths) == 0 {
			return req, errors.New("file refresh requires at least one path")
		}
	case SourceInline:
		if req.Snapshot == nil {
			return req, errors.New("inline refresh requires a snapshot")
		}
	default:
		return req, fmt.Errorf("unknown refresh source: %s", req.Source)
	}
	return req, nil
}

func (r *Refresher) execute(ctx context.Context, id int64, req Request, started time.Time) Result {
	res, err := r.run(ctx, req)
	res.RefreshID = id
	if err != nil {
		res.Error = err
		if uerr := r.store.UpdateRefresh(ctx, id, StatusFailed, 0, 0); uerr != nil {
			r.logger.Warn("failed to update refresh record", "refreshID", id, "error", uerr)
		}
		r.metrics.ObserveRefresh(StatusFailed, time.Since(started))
		return res
	}

	if uerr := r.store.UpdateRefresh(ctx, id, StatusCompleted, res.Networks, res.Peerings); uerr != nil {
		r.logger.Warn("failed to update refresh record", "refreshID", id, "error", uerr)
	}
	r.metrics.ObserveRefresh(StatusCompleted, time.Since(started))
	return res
}

func (r *Refresher) run(ctx context.Context, req Request) (Result, error) {
	loaded, err := r.collect(ctx, req)
	if err != nil {
		return Result{}, err
	}
	for _, w := range loaded.Warnings {
		r.logger.Warn("snapshot warning", "warning", w)
	}

	r.applyMu.Lock()
	defer r.applyMu.Unlock()

	stored, peerings := r.identify(loaded.Snapshot.Networks)
	if err := r.store.ReplaceSnapshot(ctx, stored, loaded.Snapshot.Subscriptions); err != nil {
		return Result{}, fmt.Errorf("storing snapshot: %w", err)
	}

	topo := r.builder.Build(loaded.Snapshot.Networks, loaded.Snapshot.Subscriptions)
	summary := topology.Summarize(topo)
	r.metrics.SetTopology(summary)
	for _, fn := range r.listeners {
		fn(topo)
	}

	if r.sync != nil {
		if err := r.sync(ctx, topo); err != nil {
			r.logger.Warn("topology sync failed", "error", err)
		}
	}

	events := r.dispatch(ctx, topo, req.Source)

	r.logger.Info("refresh applied",
		"networks", len(stored), "peerings", peerings,
		"synthesized", summary.Synthesized, "conflicts", summary.Conflicts, "events", events)

	return Result{
		Networks: len(stored),
		Peerings: peerings,
		Summary:  summary,
		Events:   events,
		Warnings: loaded.Warnings,
	}, nil
}

func (r *Refresher) collect(ctx context.Context, req Request) (*source.LoadResult, error) {
	if req.Source == SourceInline {
		snap := *req.Snapshot
		res := &source.LoadResult{}
		res.Merge(&source.LoadResult{Snapshot: snap, Warnings: source.Validate(snap)})
		return res, nil
	}

	merged := &source.LoadResult{}
	for _, path := range req.Paths {
		if !r.loader.Supported(path) {
			return nil, fmt.Errorf("path %q is not a supported snapshot source", path)
		}
		res, err := r.loader.Load(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
		merged.Merge(res)
	}
	return merged, nil
}

// identify attaches parsed identities to each network and counts peerings.
func (r *Refresher) identify(networks []models.NetworkResource) ([]models.StoredNetwork, int) {
	parser := r.builder.Parser()
	now := time.Now()
	stored := make([]models.StoredNetwork, 0, len(networks))
	peerings := 0
	for _, n := range networks {
		ident := parser.Parse(n.ID)
		stored = append(stored, models.StoredNetwork{
			NetworkResource: n,
			Kind:            ident.Kind,
			Name:            ident.DisplayName,
			ResourceGroup:   ident.ResourceGroup,
			SubscriptionID:  ident.SubscriptionID,
			LastSeen:        now,
		})
		peerings += len(n.Peerings)
	}
	return stored, peerings
}

func (r *Refresher) dispatch(ctx context.Context, topo models.Topology, src string) int {
	if r.alerter == nil {
		return 0
	}
	events := alert.Evaluate(topo, "refresh:"+src, time.Now())
	for _, ev := range events {
		if err := r.alerter.Send(ctx, ev); err != nil {
			r.logger.Warn("failed to send alert", "type", ev.EventType, "network", ev.Network.ID, "error", err)
			continue
		}
		r.metrics.IncAlert(ev.EventType)
	}
	return len(events)
}

func describe(req Request) string {
	if req.Source == SourceInline {
		return "request-body"
	}
	return strings.Join(req.Paths, ", ")
}
