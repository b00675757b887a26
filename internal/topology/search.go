package topology

import (
	"fmt"
	"strings"

	"github.com/matijazezelj/peerscope/pkg/models"
)

// SearchOption is one selectable node in a network search box. Label is the
// display name, qualified with resource group and subscription when another
// node shares the name, or the full id when that is still ambiguous.
type SearchOption struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Label string `json:"label"`
}

// SearchOptions lists nodes in topology order. A non-empty query keeps only
// nodes whose display name contains it, ignoring case.
func SearchOptions(t models.Topology, query string) []SearchOption {
	labels := searchLabels(t.Nodes)
	q := strings.ToLower(strings.TrimSpace(query))
	opts := make([]SearchOption, 0, len(t.Nodes))
	for i, n := range t.Nodes {
		if q != "" && !strings.Contains(strings.ToLower(n.Name), q) {
			continue
		}
		opts = append(opts, SearchOption{ID: n.ID, Name: n.Name, Label: labels[i]})
	}
	return opts
}

// searchLabels computes labels over all nodes so that filtering does not
// change them.
func searchLabels(nodes []models.GraphNode) []string {
	names := make(map[string]int, len(nodes))
	for _, n := range nodes {
		names[n.Name]++
	}

	labels := make([]string, len(nodes))
	for i, n := range nodes {
		switch {
		case n.Name == "":
			labels[i] = n.ID
		case names[n.Name] == 1:
			labels[i] = n.Name
		case n.Detail.ResourceGroup == "":
			labels[i] = n.ID
		default:
			sub := n.Detail.SubscriptionName
			if sub == "" || sub == UnknownSubscription {
				sub = n.Detail.SubscriptionID
			}
			labels[i] = fmt.Sprintf("%s (%s, %s)", n.Name, n.Detail.ResourceGroup, sub)
		}
	}

	seen := make(map[string]int, len(labels))
	for _, l := range labels {
		seen[l]++
	}
	for i, l := range labels {
		if seen[l] > 1 {
			labels[i] = nodes[i].ID
		}
	}
	return labels
}
