package topology

import (
	"errors"

	"github.com/matijazezelj/peerscope/pkg/models"
)

// ErrNodeNotFound is returned when a focus target is not part of the topology.
var ErrNodeNotFound = errors.New("node not found")

// adjacency indexes a topology's links by endpoint.
type adjacency map[string][]int

func buildAdjacency(t *models.Topology) adjacency {
	adj := make(adjacency, len(t.Nodes))
	for i, e := range t.Links {
		adj[e.Source] = append(adj[e.Source], i)
		if e.Target != e.Source {
			adj[e.Target] = append(adj[e.Target], i)
		}
	}
	return adj
}

type hop struct {
	node string
	from string
}

// Traverse collects the subgraph reachable from target.
//
// The walk never steps from a node straight back to the node it was reached
// from, and previous plays that role for target itself. Nodes in visited are
// included when adjacent but never expanded. Every node is expanded at most
// once, so the walk terminates on any cyclic mesh.
//
// An empty target returns the whole topology unchanged. A target that is not
// in the topology yields an empty result.
func Traverse(t *models.Topology, target, previous string, visited []string) models.FocusResult {
	if target == "" {
		return models.FocusResult{
			Nodes: append([]models.GraphNode{}, t.Nodes...),
			Links: append([]models.GraphEdge{}, t.Links...),
		}
	}

	result := models.FocusResult{
		Target: target,
		Nodes:  []models.GraphNode{},
		Links:  []models.GraphEdge{},
	}
	if _, ok := t.Node(target); !ok {
		return result
	}

	adj := buildAdjacency(t)
	expanded := make(map[string]bool, len(visited)+1)
	for _, v := range visited {
		expanded[v] = true
	}
	expanded[target] = true

	inNodes := map[string]bool{target: true}
	inLinks := make(map[int]bool)
	queue := []hop{{node: target, from: previous}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, li := range adj[cur.node] {
			inLinks[li] = true
			other := t.Links[li].Other(cur.node)
			if other == cur.from {
				continue
			}
			inNodes[other] = true
			if expanded[other] {
				continue
			}
			expanded[other] = true
			queue = append(queue, hop{node: other, from: cur.node})
		}
	}

	for _, n := range t.Nodes {
		if inNodes[n.ID] {
			result.Nodes = append(result.Nodes, n)
		}
	}
	for i, e := range t.Links {
		if inLinks[i] {
			result.Links = append(result.Links, e)
		}
	}
	return result
}

// Focus returns the connected component of target.
func Focus(t *models.Topology, target string) (models.FocusResult, error) {
	if target == "" {
		return Traverse(t, "", "", nil), nil
	}
	if _, ok := t.Node(target); !ok {
		return models.FocusResult{}, ErrNodeNotFound
	}
	return Traverse(t, target, "", nil), nil
}

// ApplyDeemphasis returns a copy of full in which every node outside focus is
// muted: its label is hidden and its opacity reduced, with hover emphasis
// restoring both. Node identities and links are never changed.
func ApplyDeemphasis(full models.Topology, focus models.FocusResult) models.Topology {
	keep := make(map[string]bool, len(focus.Nodes)+1)
	for _, n := range focus.Nodes {
		keep[n.ID] = true
	}
	if focus.Target != "" {
		keep[focus.Target] = true
	}

	out := models.Topology{
		Nodes:      make([]models.GraphNode, len(full.Nodes)),
		Links:      append([]models.GraphEdge{}, full.Links...),
		Categories: append([]models.Category{}, full.Categories...),
	}
	for i, n := range full.Nodes {
		if !keep[n.ID] {
			n = mute(n)
		}
		out.Nodes[i] = n
	}
	return out
}

func mute(n models.GraphNode) models.GraphNode {
	n.Label = models.Label{Show: false}
	n.ItemStyle = &models.ItemStyle{Opacity: 0.5}
	n.Emphasis = &models.Emphasis{
		ItemStyle: models.ItemStyle{Opacity: 1},
		Label:     models.Label{Show: true},
	}
	return n
}
