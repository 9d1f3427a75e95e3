// Package traversal implements WarpGraph's read-only graph algorithms:
// BFS/DFS, ancestor/descendant walks, topological sort, and weighted
// shortest-path search (uniform-cost, Dijkstra, A*, bidirectional A*)
// over a materialized state.State (§4.8 of the spec this package
// implements).
package traversal

import (
	"errors"

	"github.com/orneryd/warpgraph/internal/state"
)

// Direction selects which edge orientation a traversal follows.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
	Both
)

// Errors specific to traversal operations.
var (
	ErrHasCycle      = errors.New("traversal: cycle reachable from start")
	ErrNoPath        = errors.New("traversal: no path between nodes")
	ErrInvalidWeight = errors.New("traversal: weight must be finite and non-negative")
)

// View is a read-only adjacency index built once from a materialized
// State. Building it is O(alive edges); every traversal in this package
// takes a View rather than a *state.State so repeated traversals over the
// same snapshot don't re-scan it.
type View struct {
	out map[string][]string
	in  map[string][]string
}

// NewView indexes every alive edge in s by both endpoints.
func NewView(s *state.State) *View {
	v := &View{out: make(map[string][]string), in: make(map[string][]string)}
	for _, key := range s.AliveEdges() {
		v.out[key.From] = append(v.out[key.From], key.To)
		v.in[key.To] = append(v.in[key.To], key.From)
	}
	return v
}

// Neighbors returns the node IDs reachable from node in the given
// direction. Both returns the union, with duplicates when a pair of
// nodes is connected by edges in both directions.
func (v *View) Neighbors(node string, dir Direction) []string {
	switch dir {
	case Outgoing:
		return v.out[node]
	case Incoming:
		return v.in[node]
	default:
		out := make([]string, 0, len(v.out[node])+len(v.in[node]))
		out = append(out, v.out[node]...)
		out = append(out, v.in[node]...)
		return out
	}
}
