package refresh

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matijazezelj/peerscope/internal/alert"
	"github.com/matijazezelj/peerscope/internal/config"
	"github.com/matijazezelj/peerscope/internal/inventory"
	"github.com/matijazezelj/peerscope/internal/topology"
	"github.com/matijazezelj/peerscope/pkg/models"
)

const (
	hubVNet   = "/subscriptions/s1/resourceGroups/rg-net/providers/Microsoft.Network/virtualNetworks/hub"
	spokeVNet = "/subscriptions/s1/resourceGroups/rg-app/providers/Microsoft.Network/virtualNetworks/spoke"
	goneVNet  = "/subscriptions/s2/resourceGroups/rg-old/providers/Microsoft.Network/virtualNetworks/gone"
)

const hubSnapshot = `{
  "subscriptions": [{"subscription_id": "s1", "name": "Prod"}],
  "networks": [
    {"id": "` + hubVNet + `", "peerings": [
      {"remote_network": "` + spokeVNet + `", "state": "Connected"},
      {"remote_network": "` + goneVNet + `", "state": "Disconnected"}
    ]}
  ]
}`

const spokeSnapshot = `
networks:
  - id: ` + spokeVNet + `
    peerings:
      - remote_network: ` + hubVNet + `
        state: Connected
`

type recordingAlerter struct {
	mu     sync.Mutex
	events []alert.Event
	err    error
}

func (a *recordingAlerter) Name() string { return "recording" }

func (a *recordingAlerter) Send(_ context.Context, ev alert.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
	return a.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) inventory.Store {
	t.Helper()
	store, err := inventory.NewSQLiteStore(filepath.Join(t.TempDir(), "peerscope.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestRefresher(t *testing.T, paths ...string) (*Refresher, inventory.Store) {
	t.Helper()
	store := newTestStore(t)
	cfg := &config.Config{}
	for _, p := range paths {
		cfg.Sources.Files = append(cfg.Sources.Files, config.FileSource{Path: p})
	}
	return New(store, topology.NewBuilder(topology.Options{}), cfg, testLogger()), store
}

func TestRunSync_FileSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "hub.json", hubSnapshot)
	r, store := newTestRefresher(t)

	var seen models.Topology
	r.OnTopology(func(topo models.Topology) { seen = topo })

	res := r.RunSync(context.Background(), Request{Source: SourceFile, Paths: []string{path}})
	if res.Error != nil {
		t.Fatal(res.Error)
	}
	if res.RefreshID == 0 {
		t.Error("expected refresh id")
	}
	if res.Networks != 1 || res.Peerings != 2 {
		t.Errorf("networks=%d peerings=%d, want 1 and 2", res.Networks, res.Peerings)
	}
	// spoke and gone are synthesized
	if res.Summary.Synthesized != 2 {
		t.Errorf("synthesized = %d, want 2", res.Summary.Synthesized)
	}
	if len(seen.Nodes) != 3 {
		t.Errorf("listener saw %d nodes, want 3", len(seen.Nodes))
	}

	got, err := store.GetNetwork(context.Background(), hubVNet)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("hub not stored")
	}
	if got.Kind != models.KindVirtualNetwork || got.Name != "hub" || got.ResourceGroup != "rg-net" || got.SubscriptionID != "s1" {
		t.Errorf("identity not stored: %+v", got)
	}

	refreshes, err := store.ListRefreshes(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(refreshes) != 1 || refreshes[0].Status != StatusCompleted {
		t.Fatalf("refreshes = %+v", refreshes)
	}
	if refreshes[0].Networks != 1 || refreshes[0].Peerings != 2 {
		t.Errorf("refresh counts = %+v", refreshes[0])
	}
}

func TestRunSync_ReplacesPreviousSnapshot(t *testing.T) {
	dir := t.TempDir()
	hub := writeFile(t, dir, "hub.json", hubSnapshot)
	spoke := writeFile(t, dir, "spoke.yaml", spokeSnapshot)
	r, store := newTestRefresher(t)
	ctx := context.Background()

	if res := r.RunSync(ctx, Request{Source: SourceFile, Paths: []string{hub}}); res.Error != nil {
		t.Fatal(res.Error)
	}
	if res := r.RunSync(ctx, Request{Source: SourceFile, Paths: []string{spoke}}); res.Error != nil {
		t.Fatal(res.Error)
	}

	nets, err := store.ListNetworks(ctx, inventory.NetworkFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(nets) != 1 || nets[0].ID != spokeVNet {
		t.Errorf("networks after second refresh = %+v", nets)
	}
}

func TestRunAllConfigured_MergesSources(t *testing.T) {
	dir := t.TempDir()
	hub := writeFile(t, dir, "hub.json", hubSnapshot)
	spoke := writeFile(t, dir, "spoke.yaml", spokeSnapshot)
	r, store := newTestRefresher(t, hub, spoke)

	res := r.RunAllConfigured(context.Background())
	if res.Error != nil {
		t.Fatal(res.Error)
	}
	if res.Networks != 2 || res.Peerings != 3 {
		t.Errorf("networks=%d peerings=%d, want 2 and 3", res.Networks, res.Peerings)
	}
	// hub<->spoke is one link, hub->gone the other
	if res.Summary.Links != 2 {
		t.Errorf("links = %d, want 2", res.Summary.Links)
	}

	snap, err := store.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Subscriptions) != 1 || snap.Subscriptions[0].Name != "Prod" {
		t.Errorf("subscriptions = %+v", snap.Subscriptions)
	}
}

func TestRunAllConfigured_NoSources(t *testing.T) {
	r, store := newTestRefresher(t)
	res := r.RunAllConfigured(context.Background())
	if !errors.Is(res.Error, ErrNoSources) {
		t.Fatalf("error = %v, want ErrNoSources", res.Error)
	}
	refreshes, _ := store.ListRefreshes(context.Background(), 10)
	if len(refreshes) != 0 {
		t.Errorf("no refresh should be recorded, got %d", len(refreshes))
	}
}

func TestRunSync_InvalidRequests(t *testing.T) {
	r, _ := newTestRefresher(t)
	tests := []struct {
		name string
		req  Request
	}{
		{"unknown source", Request{Source: "s3"}},
		{"file without paths", Request{Source: SourceFile}},
		{"inline without snapshot", Request{Source: SourceInline}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if res := r.RunSync(context.Background(), tt.req); res.Error == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRunSync_LoadFailureMarksRefreshFailed(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.json", "{not json")
	r, store := newTestRefresher(t)

	res := r.RunSync(context.Background(), Request{Source: SourceFile, Paths: []string{bad}})
	if res.Error == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(res.Error.Error(), "parsing") {
		t.Errorf("error = %v", res.Error)
	}

	refreshes, err := store.ListRefreshes(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(refreshes) != 1 || refreshes[0].Status != StatusFailed {
		t.Errorf("refreshes = %+v", refreshes)
	}
}

func TestRunSync_UnsupportedPath(t *testing.T) {
	dir := t.TempDir()
	txt := writeFile(t, dir, "notes.txt", "hello")
	r, _ := newTestRefresher(t)

	res := r.RunSync(context.Background(), Request{Source: SourceFile, Paths: []string{txt}})
	if res.Error == nil || !strings.Contains(res.Error.Error(), "not a supported") {
		t.Errorf("error = %v", res.Error)
	}
}

func TestRunSync_Inline(t *testing.T) {
	r, store := newTestRefresher(t)
	snap := models.Snapshot{
		Networks: []models.NetworkResource{
			{ID: spokeVNet, Peerings: []models.PeeringRecord{{RemoteNetwork: hubVNet, State: models.StateConnected}}},
			{ID: spokeVNet, Peerings: []models.PeeringRecord{}},
		},
	}

	res := r.RunSync(context.Background(), Request{Source: SourceInline, Snapshot: &snap})
	if res.Error != nil {
		t.Fatal(res.Error)
	}
	if res.Networks != 1 {
		t.Errorf("networks = %d, want duplicate dropped", res.Networks)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "duplicate network") {
		t.Errorf("warnings = %v", res.Warnings)
	}

	refreshes, _ := store.ListRefreshes(context.Background(), 10)
	if len(refreshes) != 1 || refreshes[0].Source != SourceInline || refreshes[0].SourcePath != "request-body" {
		t.Errorf("refreshes = %+v", refreshes)
	}
}

func TestRunSync_SendsAlerts(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "hub.json", hubSnapshot)
	r, _ := newTestRefresher(t)
	rec := &recordingAlerter{}
	r.SetAlerter(rec)

	res := r.RunSync(context.Background(), Request{Source: SourceFile, Paths: []string{path}})
	if res.Error != nil {
		t.Fatal(res.Error)
	}

	counts := map[string]int{}
	for _, ev := range rec.events {
		counts[ev.EventType]++
		if ev.Source != "refresh:file" {
			t.Errorf("source = %q", ev.Source)
		}
	}
	if counts[alert.EventMissingNetwork] != 2 {
		t.Errorf("missing_network = %d, want 2", counts[alert.EventMissingNetwork])
	}
	if counts[alert.EventPeeringDisconnected] != 1 {
		t.Errorf("peering_disconnected = %d, want 1", counts[alert.EventPeeringDisconnected])
	}
	if res.Events != len(rec.events) {
		t.Errorf("result events = %d, sent %d", res.Events, len(rec.events))
	}
}

func TestRunSync_AlertFailureDoesNotFailRefresh(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "hub.json", hubSnapshot)
	r, _ := newTestRefresher(t)
	r.SetAlerter(&recordingAlerter{err: errors.New("webhook down")})

	if res := r.RunSync(context.Background(), Request{Source: SourceFile, Paths: []string{path}}); res.Error != nil {
		t.Fatalf("alert failure should not fail refresh: %v", res.Error)
	}
}

func TestRunSync_SyncFailureIsLogged(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "hub.json", hubSnapshot)
	r, _ := newTestRefresher(t)

	var synced int
	r.SetSync(func(_ context.Context, topo models.Topology) error {
		synced = len(topo.Nodes)
		return errors.New("memgraph unavailable")
	})

	if res := r.RunSync(context.Background(), Request{Source: SourceFile, Paths: []string{path}}); res.Error != nil {
		t.Fatal(res.Error)
	}
	if synced != 3 {
		t.Errorf("sync saw %d nodes, want 3", synced)
	}
}

func TestRunAsync(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "hub.json", hubSnapshot)
	r, store := newTestRefresher(t)

	done := make(chan struct{})
	r.OnTopology(func(models.Topology) { close(done) })

	id, err := r.RunAsync(context.Background(), Request{Source: SourceFile, Paths: []string{path}})
	if err != nil {
		t.Fatal(err)
	}
	if id == 0 {
		t.Fatal("expected refresh id")
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("async refresh did not finish")
	}

	deadline := time.Now().Add(5 * time.Second)
	for r.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("refresh still marked running")
		}
		time.Sleep(10 * time.Millisecond)
	}

	refreshes, err := store.ListRefreshes(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(refreshes) != 1 || refreshes[0].ID != id || refreshes[0].Status != StatusCompleted {
		t.Errorf("refreshes = %+v", refreshes)
	}
}

func TestRunAsync_RejectsInvalidRequest(t *testing.T) {
	r, _ := newTestRefresher(t)
	if _, err := r.RunAsync(context.Background(), Request{Source: SourceAll}); !errors.Is(err, ErrNoSources) {
		t.Errorf("error = %v", err)
	}
	if r.IsRunning() {
		t.Error("nothing should be running")
	}
}
