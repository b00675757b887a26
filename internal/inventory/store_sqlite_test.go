package inventory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/matijazezelj/peerscope/pkg/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "peerscope.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func makeNetwork(id string, kind models.ResourceKind, sub, rg string, peers ...string) models.StoredNetwork {
	n := models.StoredNetwork{
		NetworkResource: models.NetworkResource{ID: id, Peerings: []models.PeeringRecord{}},
		Kind:            kind,
		Name:            id,
		ResourceGroup:   rg,
		SubscriptionID:  sub,
	}
	for _, p := range peers {
		n.Peerings = append(n.Peerings, models.PeeringRecord{
			Name:          id + "-to-" + p,
			RemoteNetwork: p,
			State:         models.StateConnected,
		})
	}
	return n
}

func TestReplaceSnapshotAndGetNetwork(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	nets := []models.StoredNetwork{
		makeNetwork("a", models.KindVirtualNetwork, "sub1", "rg1", "b", "c"),
		makeNetwork("b", models.KindVirtualHub, "sub1", "rg2", "a"),
	}
	subs := []models.Subscription{{SubscriptionID: "sub1", Name: "Production"}}
	if err := store.ReplaceSnapshot(ctx, nets, subs); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetNetwork(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected network a")
	}
	if got.Kind != models.KindVirtualNetwork {
		t.Errorf("Kind = %q", got.Kind)
	}
	if got.ResourceGroup != "rg1" || got.SubscriptionID != "sub1" {
		t.Errorf("identity = %q/%q", got.ResourceGroup, got.SubscriptionID)
	}
	if len(got.Peerings) != 2 {
		t.Fatalf("peerings = %d, want 2", len(got.Peerings))
	}
	if got.Peerings[0].RemoteNetwork != "b" || got.Peerings[1].RemoteNetwork != "c" {
		t.Errorf("peering order = %v", got.Peerings)
	}
	if got.LastSeen.IsZero() || got.FirstSeen.IsZero() {
		t.Error("timestamps should be set")
	}
}

func TestGetNetworkNotFound(t *testing.T) {
	store := newTestStore(t)
	got, err := store.GetNetwork(context.Background(), "missing")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestReplaceSnapshotPrunesAndKeepsFirstSeen(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := makeNetwork("a", models.KindVirtualNetwork, "", "", "b")
	a.LastSeen = first
	b := makeNetwork("b", models.KindVirtualNetwork, "", "", "a")
	b.LastSeen = first
	if err := store.ReplaceSnapshot(ctx, []models.StoredNetwork{a, b}, nil); err != nil {
		t.Fatal(err)
	}

	later := first.Add(time.Hour)
	a2 := makeNetwork("a", models.KindVirtualNetwork, "", "")
	a2.LastSeen = later
	if err := store.ReplaceSnapshot(ctx, []models.StoredNetwork{a2}, nil); err != nil {
		t.Fatal(err)
	}

	count, err := store.NetworkCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("NetworkCount = %d, want 1", count)
	}
	peerings, err := store.PeeringCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if peerings != 0 {
		t.Errorf("PeeringCount = %d, want 0", peerings)
	}

	got, err := store.GetNetwork(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if !got.FirstSeen.Equal(first) {
		t.Errorf("FirstSeen = %v, want %v", got.FirstSeen, first)
	}
	if !got.LastSeen.Equal(later) {
		t.Errorf("LastSeen = %v, want %v", got.LastSeen, later)
	}
}

func TestReplaceSnapshotDuplicateIDKeepsFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	nets := []models.StoredNetwork{
		makeNetwork("a", models.KindVirtualNetwork, "", "", "b"),
		makeNetwork("a", models.KindVirtualHub, "", "", "c", "d"),
	}
	if err := store.ReplaceSnapshot(ctx, nets, nil); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetNetwork(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != models.KindVirtualNetwork || len(got.Peerings) != 1 {
		t.Errorf("got kind %q with %d peerings, want first occurrence", got.Kind, len(got.Peerings))
	}
}

func TestListNetworksOrderAndFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	nets := []models.StoredNetwork{
		makeNetwork("z", models.KindVirtualNetwork, "sub1", "RG-One"),
		makeNetwork("m", models.KindVirtualHub, "sub2", "rg-two"),
		makeNetwork("a", models.KindVirtualNetwork, "sub2", "rg-one"),
	}
	if err := store.ReplaceSnapshot(ctx, nets, nil); err != nil {
		t.Fatal(err)
	}

	all, err := store.ListNetworks(ctx, NetworkFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].ID != "z" || all[1].ID != "m" || all[2].ID != "a" {
		t.Errorf("expected snapshot order z,m,a, got %v", ids(all))
	}

	vnets, err := store.ListNetworks(ctx, NetworkFilter{Kind: "vnet"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vnets) != 2 {
		t.Errorf("vnets = %v", ids(vnets))
	}

	sub2, err := store.ListNetworks(ctx, NetworkFilter{SubscriptionID: "sub2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(sub2) != 2 {
		t.Errorf("sub2 = %v", ids(sub2))
	}

	rg, err := store.ListNetworks(ctx, NetworkFilter{ResourceGroup: "rg-one"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rg) != 2 {
		t.Errorf("resource group match should ignore case, got %v", ids(rg))
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	nets := []models.StoredNetwork{
		makeNetwork("a", models.KindVirtualNetwork, "sub1", "rg", "b"),
		makeNetwork("b", models.KindVirtualNetwork, "sub1", "rg"),
	}
	subs := []models.Subscription{
		{SubscriptionID: "sub2", Name: "Second"},
		{SubscriptionID: "sub1", Name: "First"},
		{SubscriptionID: "sub1", Name: "Shadowed"},
	}
	if err := store.ReplaceSnapshot(ctx, nets, subs); err != nil {
		t.Fatal(err)
	}

	snap, err := store.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Networks) != 2 {
		t.Fatalf("networks = %d", len(snap.Networks))
	}
	if snap.Networks[1].Peerings == nil {
		t.Error("empty peerings should be a non-nil slice")
	}
	if len(snap.Subscriptions) != 2 {
		t.Fatalf("subscriptions = %v", snap.Subscriptions)
	}
	if snap.Subscriptions[0].SubscriptionID != "sub2" || snap.Subscriptions[1].Name != "First" {
		t.Errorf("subscriptions = %v", snap.Subscriptions)
	}
}

func TestSnapshotEmpty(t *testing.T) {
	store := newTestStore(t)
	snap, err := store.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if snap.Networks == nil || len(snap.Networks) != 0 {
		t.Errorf("networks = %v", snap.Networks)
	}
	if snap.Subscriptions == nil || len(snap.Subscriptions) != 0 {
		t.Errorf("subscriptions = %v", snap.Subscriptions)
	}
}

func TestCountsByKindAndState(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := makeNetwork("a", models.KindVirtualNetwork, "", "", "b")
	b := makeNetwork("b", models.KindVirtualHub, "", "", "a")
	b.Peerings[0].State = models.StateInitiated
	if err := store.ReplaceSnapshot(ctx, []models.StoredNetwork{a, b}, nil); err != nil {
		t.Fatal(err)
	}

	kinds, err := store.NetworkCountByKind(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if kinds["vnet"] != 1 || kinds["vhub"] != 1 {
		t.Errorf("kinds = %v", kinds)
	}

	states, err := store.PeeringCountByState(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if states["Connected"] != 1 || states["Initiated"] != 1 {
		t.Errorf("states = %v", states)
	}
}

func TestRecordAndListRefreshes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.RecordRefresh(ctx, Refresh{
		Source:     "file",
		SourcePath: "/tmp/snapshot.json",
		StartedAt:  time.Now(),
		Status:     "running",
	})
	if err != nil {
		t.Fatal(err)
	}
	if id == 0 {
		t.Error("expected non-zero refresh id")
	}

	if err := store.UpdateRefresh(ctx, id, "completed", 4, 6); err != nil {
		t.Fatal(err)
	}

	refreshes, err := store.ListRefreshes(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(refreshes) != 1 {
		t.Fatalf("refreshes = %d, want 1", len(refreshes))
	}
	r := refreshes[0]
	if r.Status != "completed" || r.Networks != 4 || r.Peerings != 6 {
		t.Errorf("refresh = %+v", r)
	}
	if r.FinishedAt == nil {
		t.Error("FinishedAt should be set")
	}
}

func TestBackup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.ReplaceSnapshot(ctx, []models.StoredNetwork{makeNetwork("a", models.KindVirtualNetwork, "", "")}, nil); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(t.TempDir(), "backup", "copy.db")
	if err := store.Backup(ctx, dest); err != nil {
		t.Fatal(err)
	}

	copyStore, err := NewSQLiteStore(dest)
	if err != nil {
		t.Fatal(err)
	}
	defer copyStore.Close() //nolint:errcheck // test cleanup
	count, err := copyStore.NetworkCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("backup NetworkCount = %d, want 1", count)
	}
}

func ids(nets []models.StoredNetwork) []string {
	out := make([]string, len(nets))
	for i, n := range nets {
		out[i] = n.ID
	}
	return out
}
