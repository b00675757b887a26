package topology

import (
	"sync"
	"testing"

	"github.com/matijazezelj/peerscope/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mutedIDs(t models.Topology) []string {
	var out []string
	for _, n := range t.Nodes {
		if n.Muted() {
			out = append(out, n.ID)
		}
	}
	return out
}

func TestController_SetFocusAndReset(t *testing.T) {
	full := BuildGraph(append(chain("A", "B"), chain("X", "Y")...), nil)
	c := NewController(full)

	view, err := c.SetFocus("A")
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "Y"}, mutedIDs(view))
	assert.Equal(t, "A", c.Target())

	fr, ok := c.Focused()
	require.True(t, ok)
	assert.Equal(t, []string{"A", "B"}, nodeIDs(fr.Nodes))

	view, err = c.SetFocus("X")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, mutedIDs(view), "new focus supersedes the old one")

	reset := c.Reset()
	assert.Equal(t, full, reset)
	assert.Empty(t, c.Target())
	_, ok = c.Focused()
	assert.False(t, ok)
}

func TestController_EmptyTargetResets(t *testing.T) {
	full := BuildGraph(chain("A", "B"), nil)
	c := NewController(full)
	_, err := c.SetFocus("A")
	require.NoError(t, err)

	view, err := c.SetFocus("")
	require.NoError(t, err)
	assert.Equal(t, full, view)
	assert.Equal(t, full, c.View())
}

func TestController_UnknownTargetKeepsState(t *testing.T) {
	full := BuildGraph(append(chain("A", "B"), network("C")), nil)
	c := NewController(full)
	_, err := c.SetFocus("A")
	require.NoError(t, err)

	_, err = c.SetFocus("missing")
	assert.ErrorIs(t, err, ErrNodeNotFound)
	assert.Equal(t, "A", c.Target())
	assert.Equal(t, []string{"C"}, mutedIDs(c.View()))
}

func TestController_LoadRecomputesFocus(t *testing.T) {
	c := NewController(BuildGraph(append(chain("A", "B"), network("C")), nil))
	_, err := c.SetFocus("A")
	require.NoError(t, err)

	c.Load(BuildGraph(append(chain("A", "B", "C"), network("D")), nil))
	assert.Equal(t, []string{"D"}, mutedIDs(c.View()))

	c.Load(BuildGraph(chain("X", "Y"), nil))
	assert.Empty(t, c.Target())
	assert.Empty(t, mutedIDs(c.View()))
}

func TestController_PreviewLeavesSelection(t *testing.T) {
	full := BuildGraph(append(chain("A", "B"), network("C")), nil)
	c := NewController(full)
	_, err := c.SetFocus("C")
	require.NoError(t, err)

	view, err := c.Preview("A")
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, mutedIDs(view))
	assert.Equal(t, "C", c.Target())
	assert.Equal(t, []string{"A", "B"}, mutedIDs(c.View()))

	_, err = c.Preview("missing")
	assert.ErrorIs(t, err, ErrNodeNotFound)

	plain, err := c.Preview("")
	require.NoError(t, err)
	assert.Empty(t, mutedIDs(plain))
	assert.Equal(t, full, c.Full())
}

func TestController_ViewIsACopy(t *testing.T) {
	full := BuildGraph(chain("A", "B"), nil)
	c := NewController(full)

	view := c.View()
	view.Nodes[0].Name = "changed"
	assert.NotEqual(t, "changed", c.View().Nodes[0].Name)
}

func TestController_ConcurrentAccess(t *testing.T) {
	c := NewController(BuildGraph(chain("A", "B", "C", "D"), nil))
	targets := []string{"A", "B", "", "D"}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = c.SetFocus(targets[i%len(targets)])
				return
			}
			_ = c.View()
		}(i)
	}
	wg.Wait()
}
