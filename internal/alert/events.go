package alert

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/matijazezelj/peerscope/internal/topology"
	"github.com/matijazezelj/peerscope/pkg/models"
)

// Evaluate derives alert events from a built topology: one per missing
// peering target, one per disconnected peering and one per state conflict.
// Events follow topology order and each carries a fresh random ID.
func Evaluate(t models.Topology, source string, now time.Time) []Event {
	var events []Event
	nodes := make(map[string]models.GraphNode, len(t.Nodes))
	for _, n := range t.Nodes {
		nodes[n.ID] = n
	}
	impacts := make(map[string]*Impact)
	impactOf := func(id string) *Impact {
		if imp, ok := impacts[id]; ok {
			return imp
		}
		fr, err := topology.Focus(&t, id)
		if err != nil {
			return nil
		}
		imp := &Impact{ComponentSize: len(fr.Nodes), Networks: make([]string, 0, len(fr.Nodes))}
		for _, n := range fr.Nodes {
			imp.Networks = append(imp.Networks, displayName(n))
			impacts[n.ID] = imp
		}
		return imp
	}

	for _, n := range t.Nodes {
		if !n.Synthesized {
			continue
		}
		events = append(events, Event{
			ID:        uuid.NewString(),
			Source:    source,
			EventType: EventMissingNetwork,
			Severity:  "warning",
			Network:   refFor(n),
			Impact:    impactOf(n.ID),
			Message:   fmt.Sprintf("peering target %s is not in the inventory", displayName(n)),
			Timestamp: now,
		})
	}

	for _, l := range t.Links {
		src, dst := nodes[l.Source], nodes[l.Target]
		peer := refFor(dst)

		if l.State == models.StateDisconnected {
			events = append(events, Event{
				ID:        uuid.NewString(),
				Source:    source,
				EventType: EventPeeringDisconnected,
				Severity:  "warning",
				Network:   refFor(src),
				Peer:      &peer,
				Impact:    impactOf(l.Source),
				Message:   fmt.Sprintf("peering %s to %s is disconnected", displayName(src), displayName(dst)),
				Timestamp: now,
			})
		}
		if l.Conflict {
			events = append(events, Event{
				ID:        uuid.NewString(),
				Source:    source,
				EventType: EventStateConflict,
				Severity:  "info",
				Network:   refFor(src),
				Peer:      &peer,
				Impact:    impactOf(l.Source),
				Message: fmt.Sprintf("peering %s to %s reports %s but the reciprocal reports %s",
					displayName(src), displayName(dst), l.State, l.ReciprocalState),
				Timestamp: now,
			})
		}
	}
	return events
}

func refFor(n models.GraphNode) NetworkRef {
	return NetworkRef{
		ID:           n.ID,
		Name:         n.Name,
		Kind:         string(n.Kind),
		Subscription: n.Detail.SubscriptionName,
	}
}

func displayName(n models.GraphNode) string {
	if n.Name != "" {
		return n.Name
	}
	return n.ID
}
