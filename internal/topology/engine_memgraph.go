package topology

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/matijazezelj/peerscope/pkg/models"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// MemgraphEngine implements Engine using Memgraph via the Bolt protocol for
// reachability. Node and link presentation always comes from the local
// builder; Memgraph only decides which ids belong to a component.
type MemgraphEngine struct {
	driver     neo4j.DriverWithContext
	newSession sessionFactory
	fallback   *LocalEngine
	logger     *slog.Logger

	// stale is set while the mirror is known to lag the stored snapshot.
	stale atomic.Bool
}

// NewMemgraphEngine creates an Engine backed by Memgraph.
// Query failures fall back to the provided LocalEngine.
func NewMemgraphEngine(uri, username, password string, fallback *LocalEngine, logger *slog.Logger) (*MemgraphEngine, error) {
	auth := neo4j.NoAuth()
	if username != "" {
		auth = neo4j.BasicAuth(username, password, "")
	}

	driver, err := neo4j.NewDriverWithContext(uri, auth)
	if err != nil {
		return nil, fmt.Errorf("creating memgraph driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(context.Background())
		return nil, fmt.Errorf("memgraph connectivity check failed: %w", err)
	}

	logger.Info("memgraph engine initialized", "uri", uri)
	return &MemgraphEngine{
		driver:     driver,
		newSession: newBoltSessionFactory(driver),
		fallback:   fallback,
		logger:     logger,
	}, nil
}

// Driver returns the underlying driver for syncing.
func (e *MemgraphEngine) Driver() neo4j.DriverWithContext {
	return e.driver
}

// SetMirrorCurrent records whether the last sync brought the mirror in line
// with the stored snapshot. While it has not, every query uses the local engine.
func (e *MemgraphEngine) SetMirrorCurrent(current bool) {
	e.stale.Store(!current)
}

// Close closes the Memgraph driver connection.
func (e *MemgraphEngine) Close() error {
	if e.driver == nil {
		return nil
	}
	return e.driver.Close(context.Background())
}

// Topology is always built locally.
func (e *MemgraphEngine) Topology(ctx context.Context) (models.Topology, error) {
	return e.fallback.Topology(ctx)
}

// Focus asks Memgraph for the component of target and projects it onto the
// locally built topology. A stale mirror, an empty answer, an answer that is
// not the local component of target, or any query error falls back to the
// local walk, which also reports ErrNodeNotFound.
func (e *MemgraphEngine) Focus(ctx context.Context, target string) (models.FocusResult, error) {
	if target == "" || e.stale.Load() {
		return e.fallback.Focus(ctx, target)
	}

	ids, err := e.queryIDs(ctx, `
		MATCH (root:Network {id: $id})-[:PEERS*0..]-(n:Network)
		RETURN DISTINCT n.id AS id
	`, target)
	if err != nil {
		e.logger.Warn("memgraph focus failed, falling back", "target", target, "error", err)
		return e.fallback.Focus(ctx, target)
	}
	if len(ids) == 0 {
		return e.fallback.Focus(ctx, target)
	}

	t, err := e.fallback.Topology(ctx)
	if err != nil {
		return models.FocusResult{}, err
	}
	if _, ok := t.Node(target); !ok {
		return models.FocusResult{}, ErrNodeNotFound
	}
	fr, ok := project(&t, target, ids)
	if !ok {
		e.logger.Warn("memgraph component disagrees with local topology, falling back", "target", target)
		return e.fallback.Focus(ctx, target)
	}
	return fr, nil
}

// Neighbors returns the nodes sharing a PEERS relationship with id.
func (e *MemgraphEngine) Neighbors(ctx context.Context, id string) ([]models.GraphNode, error) {
	if e.stale.Load() {
		return e.fallback.Neighbors(ctx, id)
	}
	ids, err := e.queryIDs(ctx, `
		MATCH (n:Network {id: $id})-[:PEERS]-(m:Network)
		RETURN DISTINCT m.id AS id
	`, id)
	if err != nil {
		e.logger.Warn("memgraph neighbors failed, falling back", "id", id, "error", err)
		return e.fallback.Neighbors(ctx, id)
	}

	t, err := e.fallback.Topology(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := t.Node(id); !ok {
		return nil, ErrNodeNotFound
	}
	return pickNodes(&t, ids), nil
}

func (e *MemgraphEngine) queryIDs(ctx context.Context, cypher, id string) (map[string]bool, error) {
	session := e.newSession(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx) //nolint:errcheck // best-effort cleanup

	result, err := session.Run(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}

	ids := make(map[string]bool)
	for result.Next(ctx) {
		if v := getRecordString(result.Record(), "id"); v != "" {
			ids[v] = true
		}
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// project restricts t to the nodes in ids and the links between them. It
// reports false unless ids is exactly the connected component of target in t:
// every id known locally, no link leaving the set, every id reachable.
func project(t *models.Topology, target string, ids map[string]bool) (models.FocusResult, bool) {
	ids[target] = true
	result := models.FocusResult{
		Target: target,
		Nodes:  pickNodes(t, ids),
		Links:  []models.GraphEdge{},
	}
	if len(result.Nodes) != len(ids) {
		return models.FocusResult{}, false
	}

	adjacent := make(map[string][]string)
	for _, l := range t.Links {
		src, dst := ids[l.Source], ids[l.Target]
		if src != dst {
			return models.FocusResult{}, false
		}
		if src {
			result.Links = append(result.Links, l)
			adjacent[l.Source] = append(adjacent[l.Source], l.Target)
			adjacent[l.Target] = append(adjacent[l.Target], l.Source)
		}
	}

	seen := map[string]bool{target: true}
	queue := []string{target}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range adjacent[id] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return result, len(seen) == len(ids)
}

func getRecordString(record *neo4j.Record, key string) string {
	if record == nil {
		return ""
	}
	v, ok := record.Get(key)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
