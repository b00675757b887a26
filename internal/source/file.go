package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/matijazezelj/peerscope/pkg/models"
	"gopkg.in/yaml.v3"
)

// maxSnapshotSize caps a single snapshot file.
const maxSnapshotSize = 64 << 20

var knownStates = map[models.PeeringState]bool{
	models.StateConnected:    true,
	models.StateDisconnected: true,
	models.StateUpdating:     true,
	models.StateInitiated:    true,
}

// FileLoader reads JSON or YAML snapshot files, or every such file in a directory.
type FileLoader struct{}

// NewFileLoader creates a FileLoader.
func NewFileLoader() *FileLoader {
	return &FileLoader{}
}

// Name returns "file".
func (l *FileLoader) Name() string {
	return "file"
}

// Supported reports whether path is a snapshot file or a directory.
func (l *FileLoader) Supported(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		return true
	}
	return formatOf(path) != ""
}

// Load reads the snapshot at path. Directories are read non-recursively in
// lexical order and merged.
func (l *FileLoader) Load(ctx context.Context, path string) (*LoadResult, error) {
	resolved, err := SafeResolvePath(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return loadFile(resolved)
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", path, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && formatOf(e.Name()) != "" {
			files = append(files, filepath.Join(resolved, e.Name()))
		}
	}
	sort.Strings(files)

	result := &LoadResult{}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := loadFile(f)
		if err != nil {
			return nil, err
		}
		result.Merge(r)
	}
	if len(files) == 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("no snapshot files in %s", path))
	}
	return result, nil
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	default:
		return ""
	}
}

func loadFile(path string) (*LoadResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > maxSnapshotSize {
		return nil, fmt.Errorf("snapshot %s exceeds %d bytes", path, maxSnapshotSize)
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path resolved by caller
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var snap models.Snapshot
	switch formatOf(path) {
	case "json":
		snap, err = DecodeJSON(data)
	case "yaml":
		snap, err = DecodeYAML(data)
	default:
		err = fmt.Errorf("unsupported file type")
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return &LoadResult{Snapshot: snap, Warnings: Validate(snap)}, nil
}

// DecodeJSON parses a JSON snapshot. A bare array is read as the network list.
func DecodeJSON(data []byte) (models.Snapshot, error) {
	var snap models.Snapshot
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err := json.Unmarshal(trimmed, &snap.Networks)
		return normalize(snap), err
	}
	err := json.Unmarshal(trimmed, &snap)
	return normalize(snap), err
}

// DecodeYAML parses a YAML snapshot.
func DecodeYAML(data []byte) (models.Snapshot, error) {
	var snap models.Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return models.Snapshot{}, err
	}
	return normalize(snap), nil
}

func normalize(snap models.Snapshot) models.Snapshot {
	if snap.Subscriptions == nil {
		snap.Subscriptions = []models.Subscription{}
	}
	if snap.Networks == nil {
		snap.Networks = []models.NetworkResource{}
	}
	for i := range snap.Networks {
		if snap.Networks[i].Peerings == nil {
			snap.Networks[i].Peerings = []models.PeeringRecord{}
		}
	}
	return snap
}

// Validate reports non-fatal problems in a snapshot. It never rejects input:
// the topology builder degrades malformed entries on its own.
func Validate(snap models.Snapshot) []string {
	var warnings []string
	for i, n := range snap.Networks {
		if n.ID == "" {
			warnings = append(warnings, fmt.Sprintf("network %d has an empty id, skipped", i))
			continue
		}
		for j, p := range n.Peerings {
			if p.RemoteNetwork == "" {
				warnings = append(warnings, fmt.Sprintf("network %s peering %d has an empty remote_network, skipped", n.ID, j))
			}
			if !knownStates[p.State] {
				warnings = append(warnings, fmt.Sprintf("network %s peering %d has unknown state %q", n.ID, j, p.State))
			}
		}
	}
	return warnings
}
