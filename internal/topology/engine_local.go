package topology

import (
	"context"
	"fmt"

	"github.com/matijazezelj/peerscope/internal/inventory"
	"github.com/matijazezelj/peerscope/pkg/models"
)

// LocalEngine implements Engine by building the topology in memory from the store.
type LocalEngine struct {
	store   inventory.Store
	builder *Builder
}

// NewLocalEngine creates an Engine over store. A nil builder uses defaults.
func NewLocalEngine(store inventory.Store, builder *Builder) *LocalEngine {
	if builder == nil {
		builder = NewBuilder(Options{})
	}
	return &LocalEngine{store: store, builder: builder}
}

// Topology loads the stored snapshot and builds it.
func (e *LocalEngine) Topology(ctx context.Context) (models.Topology, error) {
	snap, err := e.store.Snapshot(ctx)
	if err != nil {
		return models.Topology{}, fmt.Errorf("loading snapshot: %w", err)
	}
	return e.builder.Build(snap.Networks, snap.Subscriptions), nil
}

// Focus builds the topology and walks the component of target.
func (e *LocalEngine) Focus(ctx context.Context, target string) (models.FocusResult, error) {
	t, err := e.Topology(ctx)
	if err != nil {
		return models.FocusResult{}, err
	}
	return Focus(&t, target)
}

// Neighbors returns the nodes directly linked to id, in topology order.
func (e *LocalEngine) Neighbors(ctx context.Context, id string) ([]models.GraphNode, error) {
	t, err := e.Topology(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := t.Node(id); !ok {
		return nil, ErrNodeNotFound
	}
	return neighborsOf(&t, id), nil
}

// Close is a no-op for the local engine.
func (e *LocalEngine) Close() error {
	return nil
}

func neighborsOf(t *models.Topology, id string) []models.GraphNode {
	adjacent := make(map[string]bool)
	for _, l := range t.Links {
		if l.Touches(id) {
			adjacent[l.Other(id)] = true
		}
	}
	return pickNodes(t, adjacent)
}

// pickNodes returns the nodes of t whose ids are in ids, in topology order.
func pickNodes(t *models.Topology, ids map[string]bool) []models.GraphNode {
	nodes := []models.GraphNode{}
	for _, n := range t.Nodes {
		if ids[n.ID] {
			nodes = append(nodes, n)
		}
	}
	return nodes
}
