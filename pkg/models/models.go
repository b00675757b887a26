package models

import "time"

// PeeringState is the lifecycle state reported for a peering.
type PeeringState string

// Peering states reported by the network provider.
const (
	StateConnected    PeeringState = "Connected"
	StateDisconnected PeeringState = "Disconnected"
	StateUpdating     PeeringState = "Updating"
	StateInitiated    PeeringState = "Initiated"
)

// ResourceKind classifies a network resource by its identifier.
type ResourceKind string

// Resource kinds recognized by the identifier parser.
const (
	KindVirtualNetwork ResourceKind = "vnet"
	KindVirtualHub     ResourceKind = "vhub"
	KindUnknown        ResourceKind = "unknown"
)

// PeeringRecord is one directed peering declared by a network.
type PeeringRecord struct {
	Name          string       `json:"name,omitempty" yaml:"name,omitempty"`
	RemoteNetwork string       `json:"remote_network" yaml:"remote_network"`
	State         PeeringState `json:"state" yaml:"state"`
}

// NetworkResource is a virtual network or virtual hub with its peerings.
type NetworkResource struct {
	ID       string          `json:"id" yaml:"id"`
	Peerings []PeeringRecord `json:"peerings" yaml:"peerings"`
}

// Subscription maps a subscription id to its display name.
type Subscription struct {
	SubscriptionID string `json:"subscription_id" yaml:"subscription_id"`
	Name           string `json:"name" yaml:"name"`
}

// Snapshot is the full input of one build cycle.
type Snapshot struct {
	Subscriptions []Subscription    `json:"subscriptions" yaml:"subscriptions"`
	Networks      []NetworkResource `json:"networks" yaml:"networks"`
}

// StoredNetwork is a network as persisted by the inventory, with its parsed identity.
type StoredNetwork struct {
	NetworkResource
	Kind           ResourceKind `json:"kind"`
	Name           string       `json:"name"`
	ResourceGroup  string       `json:"resource_group"`
	SubscriptionID string       `json:"subscription_id"`
	LastSeen       time.Time    `json:"last_seen"`
	FirstSeen      time.Time    `json:"first_seen"`
}
