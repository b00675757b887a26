package topology

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/matijazezelj/peerscope/pkg/models"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const syncBatchSize = 500

// SyncToMemgraph replaces the Memgraph contents with t: one :Network node per
// topology node and one :PEERS relationship per canonical link.
func SyncToMemgraph(ctx context.Context, driver neo4j.DriverWithContext, t models.Topology, logger *slog.Logger) error {
	session := newBoltSessionFactory(driver)(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx) //nolint:errcheck // best-effort cleanup
	return syncTopology(ctx, session, t, logger)
}

func syncTopology(ctx context.Context, session sessionRunner, t models.Topology, logger *slog.Logger) error {
	logger.Info("clearing memgraph data")
	if _, err := session.Run(ctx, "MATCH (n) DETACH DELETE n", nil); err != nil {
		return fmt.Errorf("clearing memgraph: %w", err)
	}

	for _, cypher := range []string{
		"CREATE INDEX ON :Network(id)",
		"CREATE INDEX ON :Network(kind)",
	} {
		if _, err := session.Run(ctx, cypher, nil); err != nil {
			logger.Warn("creating index (may already exist)", "error", err)
		}
	}

	logger.Info("syncing networks to memgraph", "count", len(t.Nodes))
	for i := 0; i < len(t.Nodes); i += syncBatchSize {
		end := min(i+syncBatchSize, len(t.Nodes))
		params := make([]map[string]any, 0, end-i)
		for _, n := range t.Nodes[i:end] {
			params = append(params, nodeToParams(n))
		}

		_, err := session.Run(ctx, `
			UNWIND $nodes AS n
			CREATE (:Network {
				id: n.id, name: n.name, kind: n.kind,
				resource_group: n.resourceGroup, subscription_id: n.subscriptionId,
				synthesized: n.synthesized
			})
		`, map[string]any{"nodes": params})
		if err != nil {
			return fmt.Errorf("syncing network batch %d-%d: %w", i, end, err)
		}
	}

	logger.Info("syncing peerings to memgraph", "count", len(t.Links))
	for i := 0; i < len(t.Links); i += syncBatchSize {
		end := min(i+syncBatchSize, len(t.Links))
		params := make([]map[string]any, 0, end-i)
		for _, l := range t.Links[i:end] {
			params = append(params, linkToParams(l))
		}

		_, err := session.Run(ctx, `
			UNWIND $links AS l
			MATCH (a:Network {id: l.source})
			MATCH (b:Network {id: l.target})
			CREATE (a)-[:PEERS {state: l.state, conflict: l.conflict}]->(b)
		`, map[string]any{"links": params})
		if err != nil {
			return fmt.Errorf("syncing peering batch %d-%d: %w", i, end, err)
		}
	}

	logger.Info("memgraph sync complete", "networks", len(t.Nodes), "peerings", len(t.Links))
	return nil
}

func nodeToParams(n models.GraphNode) map[string]any {
	return map[string]any{
		"id":             n.ID,
		"name":           n.Name,
		"kind":           string(n.Kind),
		"resourceGroup":  n.Detail.ResourceGroup,
		"subscriptionId": n.Detail.SubscriptionID,
		"synthesized":    n.Synthesized,
	}
}

func linkToParams(l models.GraphEdge) map[string]any {
	return map[string]any{
		"source":   l.Source,
		"target":   l.Target,
		"state":    string(l.State),
		"conflict": l.Conflict,
	}
}
