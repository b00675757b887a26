package models

// ErrorCategory is the category assigned to synthesized nodes.
const ErrorCategory = "error"

// Label controls label visibility on a rendered node.
type Label struct {
	Show bool `json:"show"`
}

// ItemStyle carries display-only styling for a node.
type ItemStyle struct {
	Opacity float64 `json:"opacity"`
}

// Emphasis is the styling a renderer applies while a node is hovered.
type Emphasis struct {
	ItemStyle ItemStyle `json:"itemStyle"`
	Label     Label     `json:"label"`
}

// NodeDetail is the parsed identity of a network shown alongside a node.
type NodeDetail struct {
	DisplayName      string `json:"displayName"`
	ResourceGroup    string `json:"resourceGroup"`
	SubscriptionID   string `json:"subscriptionId"`
	SubscriptionName string `json:"subscriptionName"`
}

// GraphNode is one network in the rendered topology.
type GraphNode struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Kind        ResourceKind `json:"kind"`
	Value       int          `json:"value"`
	Category    string       `json:"category"`
	SymbolSize  int          `json:"symbolSize"`
	Symbol      string       `json:"symbol,omitempty"`
	Label       Label        `json:"label"`
	ItemStyle   *ItemStyle   `json:"itemStyle,omitempty"`
	Emphasis    *Emphasis    `json:"emphasis,omitempty"`
	Detail      NodeDetail   `json:"detail"`
	Synthesized bool         `json:"synthesized"`
}

// Muted reports whether the node carries de-emphasis styling.
func (n GraphNode) Muted() bool {
	return n.ItemStyle != nil
}

// LineStyle is the rendered style of a link.
type LineStyle struct {
	Color   string  `json:"color"`
	Type    string  `json:"type"`
	Width   int     `json:"width"`
	Opacity float64 `json:"opacity"`
}

// EdgeDetail holds both endpoints' parsed identity and the peering state.
type EdgeDetail struct {
	Source NodeDetail   `json:"source"`
	Target NodeDetail   `json:"target"`
	State  PeeringState `json:"state"`
}

// GraphEdge is one canonical peering between two networks.
type GraphEdge struct {
	Source          string       `json:"source"`
	Target          string       `json:"target"`
	State           PeeringState `json:"state"`
	LineStyle       LineStyle    `json:"lineStyle"`
	Detail          EdgeDetail   `json:"detail"`
	Conflict        bool         `json:"conflict,omitempty"`
	ReciprocalState PeeringState `json:"reciprocalState,omitempty"`
}

// Touches reports whether id is one of the edge's endpoints.
func (e GraphEdge) Touches(id string) bool {
	return e.Source == id || e.Target == id
}

// Other returns the endpoint opposite to id.
func (e GraphEdge) Other(id string) string {
	if e.Source == id {
		return e.Target
	}
	return e.Source
}

// Category groups nodes for the renderer legend.
type Category struct {
	Name string `json:"name"`
}

// Topology is the graph description handed to the renderer.
type Topology struct {
	Nodes      []GraphNode `json:"nodes"`
	Links      []GraphEdge `json:"links"`
	Categories []Category  `json:"categories"`
}

// Node returns the node with the given id.
func (t *Topology) Node(id string) (GraphNode, bool) {
	for _, n := range t.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return GraphNode{}, false
}

// FocusResult is the subgraph reachable from a focus target.
type FocusResult struct {
	Target string      `json:"target"`
	Nodes  []GraphNode `json:"nodes"`
	Links  []GraphEdge `json:"links"`
}

// Contains reports whether the node id is part of the result.
func (f *FocusResult) Contains(id string) bool {
	for _, n := range f.Nodes {
		if n.ID == id {
			return true
		}
	}
	return false
}
