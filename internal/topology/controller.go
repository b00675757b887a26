package topology

import (
	"sync"

	"github.com/matijazezelj/peerscope/pkg/models"
)

// Controller tracks the focus selection over the most recently built topology.
// Every accessor returns fresh values; callers never share state with it.
type Controller struct {
	mu     sync.RWMutex
	full   models.Topology
	target string
	focus  *models.FocusResult
}

// NewController creates a Controller over full with no focus.
func NewController(full models.Topology) *Controller {
	return &Controller{full: full}
}

// Load replaces the underlying topology. An active focus is recomputed
// against the new topology, or cleared when its target no longer exists.
func (c *Controller) Load(full models.Topology) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.full = full
	if c.target == "" {
		return
	}
	if _, ok := full.Node(c.target); !ok {
		c.target = ""
		c.focus = nil
		return
	}
	fr := Traverse(&c.full, c.target, "", nil)
	c.focus = &fr
}

// SetFocus isolates the component of target. An empty target resets the view.
// The previous focus is discarded in either case.
func (c *Controller) SetFocus(target string) (models.Topology, error) {
	if target == "" {
		return c.Reset(), nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	fr, err := Focus(&c.full, target)
	if err != nil {
		return models.Topology{}, err
	}
	c.target = target
	c.focus = &fr
	return ApplyDeemphasis(c.full, fr), nil
}

// Reset clears the focus and returns the unmodified topology.
func (c *Controller) Reset() models.Topology {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.target = ""
	c.focus = nil
	return cloneTopology(c.full)
}

// View returns the topology with the current de-emphasis overlay applied.
func (c *Controller) View() models.Topology {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.focus == nil {
		return cloneTopology(c.full)
	}
	return ApplyDeemphasis(c.full, *c.focus)
}

// Preview returns the topology de-emphasised around target without changing
// the current selection. ErrNodeNotFound is returned for an unknown target;
// an empty target yields the plain topology.
func (c *Controller) Preview(target string) (models.Topology, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if target == "" {
		return cloneTopology(c.full), nil
	}
	fr, err := Focus(&c.full, target)
	if err != nil {
		return models.Topology{}, err
	}
	return ApplyDeemphasis(c.full, fr), nil
}

// Full returns the topology without any overlay.
func (c *Controller) Full() models.Topology {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneTopology(c.full)
}

// Focused returns the current focus result, or false when nothing is focused.
func (c *Controller) Focused() (models.FocusResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.focus == nil {
		return models.FocusResult{}, false
	}
	fr := *c.focus
	fr.Nodes = append([]models.GraphNode{}, fr.Nodes...)
	fr.Links = append([]models.GraphEdge{}, fr.Links...)
	return fr, true
}

// Target returns the focused node id, or "" when unfocused.
func (c *Controller) Target() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.target
}

func cloneTopology(t models.Topology) models.Topology {
	return models.Topology{
		Nodes:      append([]models.GraphNode{}, t.Nodes...),
		Links:      append([]models.GraphEdge{}, t.Links...),
		Categories: append([]models.Category{}, t.Categories...),
	}
}
