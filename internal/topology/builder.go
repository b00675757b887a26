package topology

import (
	"github.com/matijazezelj/peerscope/pkg/models"
)

// Presentation defaults.
const (
	DefaultSizeFactor         = 3
	DefaultDenseLinkThreshold = 75

	MissingSymbol = "image:///warning.png"

	linkWidth      = 3
	denseLinkWidth = 2
	linkOpacity    = 0.3
)

// Options configures a Builder. Zero values select the defaults.
type Options struct {
	Grammar            []KindRule
	Styles             *StyleTable
	SizeFactor         int
	DenseLinkThreshold int
	ConflictPolicy     ConflictPolicy
}

// Builder turns network resources into a renderable topology.
// A Builder holds only immutable configuration and is safe for concurrent use.
type Builder struct {
	parser    *Parser
	styles    StyleTable
	factor    int
	threshold int
	policy    ConflictPolicy
}

// NewBuilder creates a Builder from opts.
func NewBuilder(opts Options) *Builder {
	b := &Builder{
		parser:    NewParser(opts.Grammar),
		factor:    opts.SizeFactor,
		threshold: opts.DenseLinkThreshold,
		policy:    opts.ConflictPolicy,
	}
	if opts.Styles != nil {
		b.styles = *opts.Styles
	} else {
		b.styles = DefaultStyleTable()
	}
	if b.factor <= 0 {
		b.factor = DefaultSizeFactor
	}
	if b.threshold <= 0 {
		b.threshold = DefaultDenseLinkThreshold
	}
	if b.policy == "" {
		b.policy = ConflictKeepFirst
	}
	return b
}

// Parser returns the identifier parser used by the builder.
func (b *Builder) Parser() *Parser {
	return b.parser
}

// Build produces the full topology for one resource list. Malformed
// identifiers and unknown states degrade the affected node or edge only.
// Resources and peering targets with an empty id are left out: an empty id
// cannot be focused.
func (b *Builder) Build(resources []models.NetworkResource, subscriptions []models.Subscription) models.Topology {
	subs := NewSubscriptionIndex(subscriptions)
	topo := models.Topology{
		Nodes:      []models.GraphNode{},
		Links:      []models.GraphEdge{},
		Categories: []models.Category{},
	}
	if len(resources) == 0 {
		return topo
	}

	present := make(map[string]bool, len(resources))
	identities := make(map[string]Identity)
	identify := func(id string) Identity {
		if ident, ok := identities[id]; ok {
			return ident
		}
		ident := b.parser.Parse(id)
		identities[id] = ident
		return ident
	}

	totalLinks := 0
	for _, r := range resources {
		if r.ID == "" {
			continue
		}
		for _, p := range r.Peerings {
			if p.RemoteNetwork != "" {
				totalLinks++
			}
		}
		if present[r.ID] {
			continue
		}
		present[r.ID] = true

		ident := identify(r.ID)
		node := models.GraphNode{
			ID:         r.ID,
			Name:       ident.DisplayName,
			Kind:       ident.Kind,
			Value:      len(r.Peerings),
			Category:   r.ID,
			SymbolSize: len(r.Peerings)*b.factor + b.factor,
			Label:      models.Label{Show: true},
			Detail:     subs.Detail(ident),
		}
		if ident.rule != nil {
			node.Symbol = ident.rule.Symbol
			node.SymbolSize += ident.rule.SizeBonus
		}
		topo.Nodes = append(topo.Nodes, node)
		topo.Categories = append(topo.Categories, models.Category{Name: r.ID})
	}

	synthesized := make(map[string]bool)
	for _, r := range resources {
		if r.ID == "" {
			continue
		}
		for _, p := range r.Peerings {
			if p.RemoteNetwork == "" || present[p.RemoteNetwork] || synthesized[p.RemoteNetwork] {
				continue
			}
			synthesized[p.RemoteNetwork] = true

			ident := identify(p.RemoteNetwork)
			topo.Nodes = append(topo.Nodes, models.GraphNode{
				ID:          p.RemoteNetwork,
				Name:        ident.DisplayName,
				Kind:        ident.Kind,
				Value:       1,
				Category:    models.ErrorCategory,
				SymbolSize:  b.factor + b.factor,
				Symbol:      MissingSymbol,
				Label:       models.Label{Show: true},
				Detail:      subs.Detail(ident),
				Synthesized: true,
			})
		}
	}
	topo.Categories = append(topo.Categories, models.Category{Name: models.ErrorCategory})

	width := linkWidth
	if totalLinks > b.threshold {
		width = denseLinkWidth
	}

	candidates := make([]models.GraphEdge, 0, totalLinks)
	for _, r := range resources {
		if r.ID == "" {
			continue
		}
		src := subs.Detail(identify(r.ID))
		for _, p := range r.Peerings {
			if p.RemoteNetwork == "" {
				continue
			}
			style := b.styles.Resolve(p.State)
			candidates = append(candidates, models.GraphEdge{
				Source: r.ID,
				Target: p.RemoteNetwork,
				State:  p.State,
				LineStyle: models.LineStyle{
					Color:   style.Color,
					Type:    style.LineStyle,
					Width:   width,
					Opacity: linkOpacity,
				},
				Detail: models.EdgeDetail{
					Source: src,
					Target: subs.Detail(identify(p.RemoteNetwork)),
					State:  p.State,
				},
			})
		}
	}
	topo.Links = Dedupe(candidates, b.policy)

	return topo
}

// BuildGraph builds a topology with default options.
func BuildGraph(resources []models.NetworkResource, subscriptions []models.Subscription) models.Topology {
	return NewBuilder(Options{}).Build(resources, subscriptions)
}

// Summary counts the notable parts of a topology.
type Summary struct {
	Networks    int `json:"networks"`
	Synthesized int `json:"synthesized"`
	Links       int `json:"links"`
	Conflicts   int `json:"conflicts"`
	Isolated    int `json:"isolated"`
}

// Summarize computes counts over a built topology.
func Summarize(t models.Topology) Summary {
	var s Summary
	degree := make(map[string]int, len(t.Nodes))
	for _, e := range t.Links {
		degree[e.Source]++
		degree[e.Target]++
		if e.Conflict {
			s.Conflicts++
		}
	}
	for _, n := range t.Nodes {
		if n.Synthesized {
			s.Synthesized++
		} else {
			s.Networks++
		}
		if degree[n.ID] == 0 {
			s.Isolated++
		}
	}
	s.Links = len(t.Links)
	return s
}
