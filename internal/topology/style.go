package topology

import "github.com/matijazezelj/peerscope/pkg/models"

// Style is the color and line pattern used to draw a peering.
type Style struct {
	Color     string `json:"color" mapstructure:"color"`
	LineStyle string `json:"line_style" mapstructure:"line_style"`
}

// FallbackStyle is used for states missing from a style table.
var FallbackStyle = Style{Color: "#9E9E9E", LineStyle: "dashed"}

// StyleTable maps peering states to styles. It is immutable once built.
type StyleTable struct {
	styles   map[models.PeeringState]Style
	fallback Style
}

// DefaultStyles returns the standard state palette.
func DefaultStyles() map[models.PeeringState]Style {
	return map[models.PeeringState]Style{
		models.StateConnected:    {Color: "#00FF00", LineStyle: "solid"},
		models.StateDisconnected: {Color: "#FF0000", LineStyle: "dotted"},
		models.StateUpdating:     {Color: "#FFA500", LineStyle: "solid"},
		models.StateInitiated:    {Color: "#3385FF", LineStyle: "solid"},
	}
}

// NewStyleTable copies styles into a new table. A zero fallback uses FallbackStyle.
func NewStyleTable(styles map[models.PeeringState]Style, fallback Style) StyleTable {
	cp := make(map[models.PeeringState]Style, len(styles))
	for k, v := range styles {
		cp[k] = v
	}
	if fallback == (Style{}) {
		fallback = FallbackStyle
	}
	return StyleTable{styles: cp, fallback: fallback}
}

// DefaultStyleTable returns the standard palette with FallbackStyle.
func DefaultStyleTable() StyleTable {
	return NewStyleTable(DefaultStyles(), FallbackStyle)
}

// Lookup returns the style for state and whether the state is known.
func (t StyleTable) Lookup(state models.PeeringState) (Style, bool) {
	s, ok := t.styles[state]
	return s, ok
}

// Resolve returns the style for state, or the fallback for unknown states.
func (t StyleTable) Resolve(state models.PeeringState) Style {
	if s, ok := t.styles[state]; ok {
		return s
	}
	if t.fallback == (Style{}) {
		return FallbackStyle
	}
	return t.fallback
}
