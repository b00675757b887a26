package topology

import (
	"fmt"

	"github.com/matijazezelj/peerscope/pkg/models"
)

// ConflictPolicy decides which state a canonical edge keeps when the two
// directed records of a peering disagree.
type ConflictPolicy string

// Supported conflict policies.
const (
	// ConflictKeepFirst keeps the state of the first record seen.
	ConflictKeepFirst ConflictPolicy = "keep_first"
	// ConflictPreferEstablished replaces an Initiated state with the
	// reciprocal record's state when that one has progressed further.
	ConflictPreferEstablished ConflictPolicy = "prefer_established"
)

// ParseConflictPolicy validates a policy name. Empty selects ConflictKeepFirst.
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch ConflictPolicy(s) {
	case "", ConflictKeepFirst:
		return ConflictKeepFirst, nil
	case ConflictPreferEstablished:
		return ConflictPreferEstablished, nil
	default:
		return "", fmt.Errorf("invalid conflict policy %q (use: keep_first, prefer_established)", s)
	}
}

type pairKey struct{ a, b string }

func keyFor(x, y string) pairKey {
	if x > y {
		x, y = y, x
	}
	return pairKey{a: x, b: y}
}

// Dedupe collapses directed edge candidates into one canonical edge per
// unordered pair of endpoints. The first candidate seen fixes the edge's
// orientation and position; later candidates for the same pair are dropped
// after their state is compared with the kept one. Disagreeing states mark
// the kept edge as conflicting.
func Dedupe(candidates []models.GraphEdge, policy ConflictPolicy) []models.GraphEdge {
	out := make([]models.GraphEdge, 0, len(candidates))
	index := make(map[pairKey]int, len(candidates))

	for _, c := range candidates {
		k := keyFor(c.Source, c.Target)
		i, seen := index[k]
		if !seen {
			index[k] = len(out)
			out = append(out, c)
			continue
		}
		reconcile(&out[i], c, policy)
	}
	return out
}

func reconcile(kept *models.GraphEdge, dropped models.GraphEdge, policy ConflictPolicy) {
	if dropped.State == kept.State {
		return
	}
	kept.Conflict = true
	kept.ReciprocalState = dropped.State

	if policy != ConflictPreferEstablished {
		return
	}
	if kept.State == models.StateInitiated && dropped.State != models.StateInitiated {
		kept.ReciprocalState = kept.State
		kept.State = dropped.State
		kept.Detail.State = dropped.State
		kept.LineStyle.Color = dropped.LineStyle.Color
		kept.LineStyle.Type = dropped.LineStyle.Type
	}
}
