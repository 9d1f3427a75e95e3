// Package state defines WarpGraph's materialized graph state: the
// OR-Set + LWW CRDT structure the reducer folds patches into, its
// canonical serialization, and its content hash (§3, §4.4 of the spec).
package state

import (
	"github.com/orneryd/warpgraph/internal/eventid"
	"github.com/orneryd/warpgraph/internal/ops"
)

// NodeState tracks one node's alive-set bookkeeping: the greatest add and
// tombstone event IDs observed, and a generation counter incremented each
// time the node transitions from dead back to alive.
type NodeState struct {
	MaxAdd     eventid.EventID
	HasAdd     bool
	MaxTomb    eventid.EventID
	HasTomb    bool
	Generation uint64
}

// Alive reports whether some add event exceeds every tombstone for this
// node, per the OR-Set semantics in §3/§8 law 6.
func (n NodeState) Alive() bool {
	if !n.HasAdd {
		return false
	}
	if !n.HasTomb {
		return true
	}
	return eventid.Less(n.MaxTomb, n.MaxAdd)
}

// EdgeState is NodeState's twin for edges, keyed externally by EdgeKey.
type EdgeState struct {
	MaxAdd     eventid.EventID
	HasAdd     bool
	MaxTomb    eventid.EventID
	HasTomb    bool
	Generation uint64
}

// Alive mirrors NodeState.Alive for edges.
func (e EdgeState) Alive() bool {
	if !e.HasAdd {
		return false
	}
	if !e.HasTomb {
		return true
	}
	return eventid.Less(e.MaxTomb, e.MaxAdd)
}

// PropEntry is one LWW property value, tagged with the event that set it.
type PropEntry struct {
	EventID eventid.EventID
	Value   ops.Value
}

// State is the fully materialized graph. All maps are owned by the
// reducer that produced this value; callers should treat a State as
// immutable once returned from reduce.
type State struct {
	Nodes     map[string]*NodeState
	Edges     map[ops.EdgeKey]*EdgeState
	NodeProps map[string]map[string]PropEntry       // nodeId -> key -> entry
	EdgeProps map[ops.EdgeKey]map[string]PropEntry  // edgeKey -> key -> entry
}

// Empty returns a new, empty State — the default base state when no
// checkpoint is usable.
func Empty() *State {
	return &State{
		Nodes:     make(map[string]*NodeState),
		Edges:     make(map[ops.EdgeKey]*EdgeState),
		NodeProps: make(map[string]map[string]PropEntry),
		EdgeProps: make(map[ops.EdgeKey]map[string]PropEntry),
	}
}

// HasNode reports whether id is currently alive.
func (s *State) HasNode(id string) bool {
	ns, ok := s.Nodes[id]
	return ok && ns.Alive()
}

// HasEdge reports whether the (from,to,label) edge is currently alive.
func (s *State) HasEdge(from, to, label string) bool {
	es, ok := s.Edges[ops.EdgeKey{From: from, To: to, Label: label}]
	return ok && es.Alive()
}

// NodeProperties returns the currently-visible properties of a node. A
// property whose scope is not alive is never reported (§3 invariant), so
// this returns an empty map for a dead or unknown node even if historical
// entries remain in NodeProps for bookkeeping.
func (s *State) NodeProperties(id string) map[string]ops.Value {
	out := make(map[string]ops.Value)
	if !s.HasNode(id) {
		return out
	}
	for k, e := range s.NodeProps[id] {
		out[k] = e.Value
	}
	return out
}

// EdgeProperties returns the currently-visible properties of an edge.
func (s *State) EdgeProperties(from, to, label string) map[string]ops.Value {
	out := make(map[string]ops.Value)
	key := ops.EdgeKey{From: from, To: to, Label: label}
	if !s.HasEdge(from, to, label) {
		return out
	}
	for k, e := range s.EdgeProps[key] {
		out[k] = e.Value
	}
	return out
}

// AliveNodes returns every currently-alive node ID, unsorted.
func (s *State) AliveNodes() []string {
	var out []string
	for id, ns := range s.Nodes {
		if ns.Alive() {
			out = append(out, id)
		}
	}
	return out
}

// AliveEdges returns every currently-alive edge key, unsorted.
func (s *State) AliveEdges() []ops.EdgeKey {
	var out []ops.EdgeKey
	for k, es := range s.Edges {
		if es.Alive() {
			out = append(out, k)
		}
	}
	return out
}
