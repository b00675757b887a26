package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/matijazezelj/peerscope/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonSnapshot = `{
  "subscriptions": [{"subscription_id": "sub-1", "name": "Production"}],
  "networks": [
    {"id": "/subscriptions/sub-1/resourceGroups/rg/providers/Microsoft.Network/virtualNetworks/a",
     "peerings": [{"name": "a-to-b", "remote_network": "b", "state": "Connected"}]},
    {"id": "b", "peerings": []}
  ]
}`

const yamlSnapshot = `
subscriptions:
  - subscription_id: sub-2
    name: Staging
networks:
  - id: c
    peerings:
      - remote_network: d
        state: Initiated
  - id: d
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDecodeJSON(t *testing.T) {
	snap, err := DecodeJSON([]byte(jsonSnapshot))
	require.NoError(t, err)
	require.Len(t, snap.Networks, 2)
	assert.Equal(t, "Production", snap.Subscriptions[0].Name)
	assert.Equal(t, models.PeeringRecord{Name: "a-to-b", RemoteNetwork: "b", State: models.StateConnected}, snap.Networks[0].Peerings[0])
	assert.NotNil(t, snap.Networks[1].Peerings)
}

func TestDecodeJSON_BareArray(t *testing.T) {
	snap, err := DecodeJSON([]byte(` [{"id": "x"}]`))
	require.NoError(t, err)
	require.Len(t, snap.Networks, 1)
	assert.Equal(t, "x", snap.Networks[0].ID)
	assert.NotNil(t, snap.Networks[0].Peerings)
	assert.NotNil(t, snap.Subscriptions)
}

func TestDecodeJSON_Invalid(t *testing.T) {
	_, err := DecodeJSON([]byte(`{"networks": [`))
	assert.Error(t, err)
}

func TestDecodeYAML(t *testing.T) {
	snap, err := DecodeYAML([]byte(yamlSnapshot))
	require.NoError(t, err)
	require.Len(t, snap.Networks, 2)
	assert.Equal(t, models.StateInitiated, snap.Networks[0].Peerings[0].State)
	assert.Empty(t, snap.Networks[1].Peerings)
	assert.NotNil(t, snap.Networks[1].Peerings)
	assert.Equal(t, "sub-2", snap.Subscriptions[0].SubscriptionID)
}

func TestValidate(t *testing.T) {
	warnings := Validate(models.Snapshot{Networks: []models.NetworkResource{
		{ID: ""},
		{ID: "a", Peerings: []models.PeeringRecord{
			{RemoteNetwork: "", State: models.StateConnected},
			{RemoteNetwork: "b", State: "Provisioning"},
			{RemoteNetwork: "c", State: models.StateUpdating},
		}},
	}})
	require.Len(t, warnings, 3)
	assert.Contains(t, warnings[0], "empty id")
	assert.Contains(t, warnings[1], "empty remote_network")
	assert.Contains(t, warnings[2], `"Provisioning"`)
}

func TestFileLoader_LoadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "inventory.json", jsonSnapshot)

	l := NewFileLoader()
	assert.Equal(t, "file", l.Name())
	assert.True(t, l.Supported(path))

	res, err := l.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, res.Snapshot.Networks, 2)
	assert.Empty(t, res.Warnings)
}

func TestFileLoader_Supported(t *testing.T) {
	dir := t.TempDir()
	l := NewFileLoader()

	assert.True(t, l.Supported(dir))
	assert.True(t, l.Supported(writeFile(t, dir, "a.YML", "networks: []")))
	assert.False(t, l.Supported(writeFile(t, dir, "notes.txt", "hi")))
	assert.False(t, l.Supported(filepath.Join(dir, "missing.json")))
}

func TestFileLoader_LoadDirectoryMergesInOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.yaml", yamlSnapshot)
	writeFile(t, dir, "a.json", jsonSnapshot)
	writeFile(t, dir, "c.json", `{"networks": [{"id": "b", "peerings": [{"remote_network": "z", "state": "Connected"}]}]}`)
	writeFile(t, dir, "ignored.txt", "not a snapshot")

	res, err := NewFileLoader().Load(context.Background(), dir)
	require.NoError(t, err)

	ids := make([]string, len(res.Snapshot.Networks))
	for i, n := range res.Snapshot.Networks {
		ids[i] = n.ID
	}
	assert.Equal(t, []string{
		"/subscriptions/sub-1/resourceGroups/rg/providers/Microsoft.Network/virtualNetworks/a",
		"b", "c", "d",
	}, ids)
	assert.Empty(t, res.Snapshot.Networks[1].Peerings, "first occurrence of b wins")
	assert.Len(t, res.Snapshot.Subscriptions, 2)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "duplicate network b")
}

func TestFileLoader_EmptyDirectory(t *testing.T) {
	res, err := NewFileLoader().Load(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, res.Snapshot.Networks)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "no snapshot files")
}

func TestFileLoader_Errors(t *testing.T) {
	dir := t.TempDir()
	l := NewFileLoader()

	_, err := l.Load(context.Background(), filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := writeFile(t, dir, "bad.json", `{"networks": 5}`)
	_, err = l.Load(context.Background(), bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing")
}

func TestFileLoader_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", jsonSnapshot)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFileLoader().Load(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadResultMerge(t *testing.T) {
	r := &LoadResult{Snapshot: models.Snapshot{
		Subscriptions: []models.Subscription{{SubscriptionID: "s", Name: "First"}},
		Networks:      []models.NetworkResource{{ID: "a"}},
	}}
	r.Merge(&LoadResult{
		Snapshot: models.Snapshot{
			Subscriptions: []models.Subscription{{SubscriptionID: "s", Name: "Second"}, {SubscriptionID: "t", Name: "T"}},
			Networks:      []models.NetworkResource{{ID: "a"}, {ID: "b"}},
		},
		Warnings: []string{"upstream"},
	})

	assert.Len(t, r.Snapshot.Networks, 2)
	assert.Equal(t, "First", r.Snapshot.Subscriptions[0].Name)
	assert.Len(t, r.Snapshot.Subscriptions, 2)
	assert.Equal(t, []string{"upstream", "duplicate network a ignored"}, r.Warnings)
}

func TestSafeResolvePath(t *testing.T) {
	dir := t.TempDir()
	target := writeFile(t, dir, "real.json", "{}")
	link := filepath.Join(dir, "link.json")
	require.NoError(t, os.Symlink(target, link))

	got, err := SafeResolvePath(filepath.Join(dir, "sub", "..", "link.json"))
	require.NoError(t, err)
	want, err := filepath.EvalSymlinks(target)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = SafeResolvePath(filepath.Join(dir, "nope"))
	assert.Error(t, err)
}

func TestEncode_RoundTrip(t *testing.T) {
	snap := models.Snapshot{
		Subscriptions: []models.Subscription{{SubscriptionID: "s1", Name: "Prod"}},
		Networks: []models.NetworkResource{
			{ID: "/subscriptions/s1/x/virtualNetworks/a", Peerings: []models.PeeringRecord{
				{Name: "a-to-b", RemoteNetwork: "/subscriptions/s1/x/virtualNetworks/b", State: models.StateConnected},
			}},
			{ID: "/subscriptions/s1/x/virtualNetworks/b"},
		},
	}

	for _, format := range []string{"json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			data, err := Encode(snap, format)
			require.NoError(t, err)

			var got models.Snapshot
			if format == "json" {
				got, err = DecodeJSON(data)
			} else {
				got, err = DecodeYAML(data)
			}
			require.NoError(t, err)
			assert.Equal(t, normalize(snap), got)
		})
	}
}

func TestEncode_UnsupportedFormat(t *testing.T) {
	_, err := Encode(models.Snapshot{}, "toml")
	assert.Error(t, err)
}
