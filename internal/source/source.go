package source

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/matijazezelj/peerscope/pkg/models"
)

// SafeResolvePath resolves a user-provided path to an absolute path,
// following symlinks and cleaning ".." components.
func SafeResolvePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("evaluating symlinks: %w", err)
	}

	return resolved, nil
}

// Loader reads a network inventory snapshot from a source.
type Loader interface {
	// Name returns the loader identifier (e.g., "json", "yaml").
	Name() string

	// Load reads the source at the given path.
	Load(ctx context.Context, path string) (*LoadResult, error)

	// Supported returns true if this loader can handle the given path.
	Supported(path string) bool
}

// LoadResult contains the output of a load operation.
type LoadResult struct {
	Snapshot models.Snapshot
	Warnings []string
}

// Merge appends other to r. Networks already present keep their first
// occurrence; later duplicates are dropped with a warning. Subscriptions are
// deduplicated the same way.
func (r *LoadResult) Merge(other *LoadResult) {
	r.Warnings = append(r.Warnings, other.Warnings...)

	seenNets := make(map[string]bool, len(r.Snapshot.Networks))
	for _, n := range r.Snapshot.Networks {
		seenNets[n.ID] = true
	}
	for _, n := range other.Snapshot.Networks {
		if seenNets[n.ID] {
			r.Warnings = append(r.Warnings, fmt.Sprintf("duplicate network %s ignored", n.ID))
			continue
		}
		seenNets[n.ID] = true
		r.Snapshot.Networks = append(r.Snapshot.Networks, n)
	}

	seenSubs := make(map[string]bool, len(r.Snapshot.Subscriptions))
	for _, s := range r.Snapshot.Subscriptions {
		seenSubs[s.SubscriptionID] = true
	}
	for _, s := range other.Snapshot.Subscriptions {
		if seenSubs[s.SubscriptionID] {
			continue
		}
		seenSubs[s.SubscriptionID] = true
		r.Snapshot.Subscriptions = append(r.Snapshot.Subscriptions, s)
	}
}
