package topology

import (
	"strings"

	"github.com/matijazezelj/peerscope/pkg/models"
)

// UnknownSubscription is the subscription name used when a lookup misses.
const UnknownSubscription = "Unknown"

const (
	resourceGroupMarker = "/resourcegroups/"
	subscriptionMarker  = "/subscriptions/"
)

// KindRule maps an identifier path marker to a resource kind.
type KindRule struct {
	Marker    string
	Kind      models.ResourceKind
	Symbol    string
	SizeBonus int
}

// DefaultGrammar recognizes virtual networks and virtual hubs.
var DefaultGrammar = []KindRule{
	{Marker: "/Microsoft.Network/virtualNetworks/", Kind: models.KindVirtualNetwork},
	{Marker: "/Microsoft.Network/virtualHubs/", Kind: models.KindVirtualHub, Symbol: "image:///vhub.png", SizeBonus: 4},
}

// Identity is the parsed form of a resource identifier.
type Identity struct {
	Kind           models.ResourceKind
	DisplayName    string
	ResourceGroup  string
	SubscriptionID string

	rule *KindRule
}

// Parser extracts identities from resource identifiers using an ordered grammar.
// Markers match case-insensitively; extracted values keep the original casing.
type Parser struct {
	rules []KindRule
}

// NewParser returns a parser for the given grammar. A nil grammar uses DefaultGrammar.
func NewParser(rules []KindRule) *Parser {
	if rules == nil {
		rules = DefaultGrammar
	}
	cp := make([]KindRule, len(rules))
	copy(cp, rules)
	for i := range cp {
		cp[i].Marker = strings.ToLower(cp[i].Marker)
	}
	return &Parser{rules: cp}
}

// Parse never fails: an identifier without a known marker yields KindUnknown
// and an empty display name.
func (p *Parser) Parse(id string) Identity {
	lower := strings.ToLower(id)
	ident := Identity{
		Kind:           models.KindUnknown,
		ResourceGroup:  segmentAfter(id, lower, resourceGroupMarker),
		SubscriptionID: segmentAfter(id, lower, subscriptionMarker),
	}

	for i := range p.rules {
		r := &p.rules[i]
		idx := strings.Index(lower, r.Marker)
		if idx < 0 {
			continue
		}
		ident.Kind = r.Kind
		ident.DisplayName = id[idx+len(r.Marker):]
		ident.rule = r
		break
	}
	return ident
}

// segmentAfter returns the path segment following marker, up to the next slash.
// A marker that is not followed by a terminating slash yields "".
func segmentAfter(id, lower, marker string) string {
	idx := strings.Index(lower, marker)
	if idx < 0 {
		return ""
	}
	rest := id[idx+len(marker):]
	end := strings.IndexByte(rest, '/')
	if end <= 0 {
		return ""
	}
	return rest[:end]
}

// SubscriptionIndex resolves subscription ids to display names.
type SubscriptionIndex map[string]string

// NewSubscriptionIndex indexes a subscription table. The first entry wins on duplicates.
func NewSubscriptionIndex(subs []models.Subscription) SubscriptionIndex {
	idx := make(SubscriptionIndex, len(subs))
	for _, s := range subs {
		if _, ok := idx[s.SubscriptionID]; !ok {
			idx[s.SubscriptionID] = s.Name
		}
	}
	return idx
}

// Name returns the subscription name, or UnknownSubscription on a miss.
func (s SubscriptionIndex) Name(id string) string {
	if name, ok := s[id]; ok && name != "" {
		return name
	}
	return UnknownSubscription
}

// Detail combines an identity with the resolved subscription name.
func (s SubscriptionIndex) Detail(ident Identity) models.NodeDetail {
	return models.NodeDetail{
		DisplayName:      ident.DisplayName,
		ResourceGroup:    ident.ResourceGroup,
		SubscriptionID:   ident.SubscriptionID,
		SubscriptionName: s.Name(ident.SubscriptionID),
	}
}
