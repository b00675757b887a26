package topology

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/matijazezelj/peerscope/pkg/models"
)

// ExportJSON returns the topology as indented JSON.
func ExportJSON(t models.Topology) (string, error) {
	if t.Nodes == nil {
		t.Nodes = []models.GraphNode{}
	}
	if t.Links == nil {
		t.Links = []models.GraphEdge{}
	}
	if t.Categories == nil {
		t.Categories = []models.Category{}
	}

	b, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ExportDOT returns the topology as an undirected Graphviz graph.
func ExportDOT(t models.Topology) string {
	var b strings.Builder
	b.WriteString("graph peerings {\n")
	b.WriteString("  layout=neato;\n")
	b.WriteString("  node [shape=box, style=filled];\n\n")

	for _, n := range t.Nodes {
		label := fmt.Sprintf("%s\\n(%s)", nodeLabel(n), n.Detail.SubscriptionName)
		b.WriteString(fmt.Sprintf("  %q [label=%q, fillcolor=%q];\n", n.ID, label, nodeColor(n)))
	}

	b.WriteString("\n")

	for _, e := range t.Links {
		b.WriteString(fmt.Sprintf("  %q -- %q [label=%q, color=%q, style=%q];\n",
			e.Source, e.Target, e.State, e.LineStyle.Color, dotStyle(e.LineStyle.Type)))
	}

	b.WriteString("}\n")
	return b.String()
}

// ExportMermaid returns the topology as a Mermaid flowchart.
func ExportMermaid(t models.Topology) string {
	var b strings.Builder
	b.WriteString("graph LR\n")

	for _, n := range t.Nodes {
		b.WriteString(fmt.Sprintf("  %s[\"%s (%s)\"]\n", mermaidSafeID(n.ID), nodeLabel(n), n.Kind))
	}

	for _, e := range t.Links {
		arrow := "---"
		if e.LineStyle.Type == "dotted" || e.LineStyle.Type == "dashed" {
			arrow = "-.-"
		}
		b.WriteString(fmt.Sprintf("  %s %s|%s| %s\n", mermaidSafeID(e.Source), arrow, e.State, mermaidSafeID(e.Target)))
	}

	return b.String()
}

func nodeLabel(n models.GraphNode) string {
	name := n.Name
	if name == "" {
		name = n.ID
	}
	if n.Synthesized {
		name += " [missing]"
	}
	return name
}

func nodeColor(n models.GraphNode) string {
	if n.Synthesized {
		return "#F1948A"
	}
	switch n.Kind {
	case models.KindVirtualNetwork:
		return "#85C1E9"
	case models.KindVirtualHub:
		return "#F9E79F"
	default:
		return "#D5D8DC"
	}
}

func dotStyle(lineStyle string) string {
	switch lineStyle {
	case "dotted", "dashed", "solid":
		return lineStyle
	default:
		return "solid"
	}
}

func mermaidSafeID(id string) string {
	r := strings.NewReplacer(":", "_", ".", "_", "-", "_", "/", "_", " ", "_")
	return r.Replace(strings.TrimPrefix(id, "/"))
}
