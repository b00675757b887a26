package inventory

import (
	"context"
	"time"

	"github.com/matijazezelj/peerscope/pkg/models"
)

// Store defines the interface for persisting the network inventory.
// It holds the snapshot produced by the most recent refresh.
type Store interface {
	// Init initializes the store (creates tables, indexes, etc.).
	Init(ctx context.Context) error

	// Close closes the store connection.
	Close() error

	// ReplaceSnapshot atomically swaps the stored networks and subscriptions.
	ReplaceSnapshot(ctx context.Context, networks []models.StoredNetwork, subs []models.Subscription) error

	// GetNetwork retrieves a network and its peerings by ID.
	GetNetwork(ctx context.Context, id string) (*models.StoredNetwork, error)

	// ListNetworks returns networks matching the filter in snapshot order.
	ListNetworks(ctx context.Context, filter NetworkFilter) ([]models.StoredNetwork, error)

	// ListSubscriptions returns the subscription lookup table.
	ListSubscriptions(ctx context.Context) ([]models.Subscription, error)

	// Snapshot returns the stored networks and subscriptions as build input.
	Snapshot(ctx context.Context) (*models.Snapshot, error)

	// NetworkCount returns the total number of networks.
	NetworkCount(ctx context.Context) (int, error)

	// PeeringCount returns the total number of directed peering records.
	PeeringCount(ctx context.Context) (int, error)

	// RecordRefresh records a refresh operation.
	RecordRefresh(ctx context.Context, r Refresh) (int64, error)

	// UpdateRefresh updates a refresh record.
	UpdateRefresh(ctx context.Context, id int64, status string, networks, peerings int) error

	// ListRefreshes returns recent refresh records.
	ListRefreshes(ctx context.Context, limit int) ([]Refresh, error)
}

// NetworkFilter specifies criteria for listing networks.
type NetworkFilter struct {
	Kind           string
	SubscriptionID string
	ResourceGroup  string
}

// Refresh represents a refresh operation record.
type Refresh struct {
	ID         int64      `json:"id"`
	Source     string     `json:"source"`
	SourcePath string     `json:"source_path"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Networks   int        `json:"networks"`
	Peerings   int        `json:"peerings"`
	Status     string     `json:"status"`
}
