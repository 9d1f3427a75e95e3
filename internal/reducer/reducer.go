// Package reducer implements the CRDT fold: turning a set of patches from
// one or more writer chains into a single materialized State (§4.3 of the
// spec this package implements).
//
// Reduce's defining property is determinism: the result depends only on
// the set of patches given to it, never their arrival order. Every op is
// assigned a derived EventID — (patch.Lamport, patch.Writer, index-in-
// patch) — and the whole set is sorted by the total order in package
// eventid before folding begins. Arrival order therefore never leaks into
// the result.
package reducer

import (
	"fmt"
	"sort"

	"github.com/orneryd/warpgraph/internal/eventid"
	"github.com/orneryd/warpgraph/internal/ops"
	"github.com/orneryd/warpgraph/internal/state"
)

// derivedOp pairs an operation with the EventID derived from its patch.
type derivedOp struct {
	id eventid.EventID
	op ops.Op
}

// Reduce folds patches onto base and returns a new State; base is left
// untouched. Passing the same base to multiple concurrent Reduce calls is
// safe.
//
// Callers that maintain a running materialization (the sync protocol's
// incremental path) must only ever grow the patch set with operations
// whose derived EventIDs exceed every EventID already folded into base —
// Reduce does not re-validate that precondition, since it has no way to
// recover the EventIDs already folded into an opaque base State.
func Reduce(base *state.State, patches []ops.Patch) (*state.State, error) {
	out := clone(base)

	var flat []derivedOp
	for _, p := range patches {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("reducer: %w", err)
		}
		for i, op := range p.Ops {
			id := eventid.EventID{Lamport: p.Lamport, Writer: p.Writer, Seq: uint32(i)}
			flat = append(flat, derivedOp{id: id, op: op})
		}
	}

	sort.Slice(flat, func(i, j int) bool {
		return eventid.Less(flat[i].id, flat[j].id)
	})

	for _, d := range flat {
		if err := fold(out, d.id, d.op); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func fold(s *state.State, id eventid.EventID, op ops.Op) error {
	switch op.Tag {
	case ops.TagNodeAdd:
		foldNodeAdd(s, op.NodeID, id)
	case ops.TagNodeRemove:
		foldNodeRemove(s, op.NodeID, id)
	case ops.TagEdgeAdd:
		foldEdgeAdd(s, op.Edge, id)
	case ops.TagEdgeRemove:
		foldEdgeRemove(s, op.Edge, id)
	case ops.TagPropSet:
		foldPropSet(s, op, id)
	case ops.TagEdgePropSet:
		foldEdgePropSet(s, op, id)
	default:
		return fmt.Errorf("reducer: %w: %q", ops.ErrUnknownOp, op.Tag)
	}
	return nil
}

func foldNodeAdd(s *state.State, id string, ev eventid.EventID) {
	ns, ok := s.Nodes[id]
	if !ok {
		ns = &state.NodeState{}
		s.Nodes[id] = ns
	}
	wasAlive := ns.Alive()
	if !ns.HasAdd || eventid.Less(ns.MaxAdd, ev) {
		ns.MaxAdd = ev
		ns.HasAdd = true
	}
	if !wasAlive && ns.Alive() && ns.HasTomb {
		ns.Generation++
		delete(s.NodeProps, id)
	}
}

func foldNodeRemove(s *state.State, id string, ev eventid.EventID) {
	ns, ok := s.Nodes[id]
	if !ok {
		ns = &state.NodeState{}
		s.Nodes[id] = ns
	}
	if !ns.HasTomb || eventid.Less(ns.MaxTomb, ev) {
		ns.MaxTomb = ev
		ns.HasTomb = true
	}
}

func foldEdgeAdd(s *state.State, key ops.EdgeKey, ev eventid.EventID) {
	es, ok := s.Edges[key]
	if !ok {
		es = &state.EdgeState{}
		s.Edges[key] = es
	}
	wasAlive := es.Alive()
	if !es.HasAdd || eventid.Less(es.MaxAdd, ev) {
		es.MaxAdd = ev
		es.HasAdd = true
	}
	if !wasAlive && es.Alive() && es.HasTomb {
		es.Generation++
		delete(s.EdgeProps, key)
	}
}

func foldEdgeRemove(s *state.State, key ops.EdgeKey, ev eventid.EventID) {
	es, ok := s.Edges[key]
	if !ok {
		es = &state.EdgeState{}
		s.Edges[key] = es
	}
	if !es.HasTomb || eventid.Less(es.MaxTomb, ev) {
		es.MaxTomb = ev
		es.HasTomb = true
	}
}

func foldPropSet(s *state.State, op ops.Op, ev eventid.EventID) {
	switch op.Scope.Kind {
	case ops.ScopeNode:
		bucket, ok := s.NodeProps[op.Scope.Node]
		if !ok {
			bucket = make(map[string]state.PropEntry)
			s.NodeProps[op.Scope.Node] = bucket
		}
		applyLWW(bucket, op.Key, op.Value, ev)
	case ops.ScopeEdge:
		key := ops.EdgeKey{From: op.Scope.From, To: op.Scope.To, Label: op.Scope.Label}
		bucket, ok := s.EdgeProps[key]
		if !ok {
			bucket = make(map[string]state.PropEntry)
			s.EdgeProps[key] = bucket
		}
		applyLWW(bucket, op.Key, op.Value, ev)
	}
}

func foldEdgePropSet(s *state.State, op ops.Op, ev eventid.EventID) {
	bucket, ok := s.EdgeProps[op.Edge]
	if !ok {
		bucket = make(map[string]state.PropEntry)
		s.EdgeProps[op.Edge] = bucket
	}
	applyLWW(bucket, op.Key, op.Value, ev)
}

func applyLWW(bucket map[string]state.PropEntry, key string, value ops.Value, ev eventid.EventID) {
	existing, ok := bucket[key]
	if !ok || eventid.Less(existing.EventID, ev) {
		bucket[key] = state.PropEntry{EventID: ev, Value: value}
	}
}

func clone(base *state.State) *state.State {
	if base == nil {
		return state.Empty()
	}
	out := state.Empty()
	for id, ns := range base.Nodes {
		cp := *ns
		out.Nodes[id] = &cp
	}
	for k, es := range base.Edges {
		cp := *es
		out.Edges[k] = &cp
	}
	for id, props := range base.NodeProps {
		bucket := make(map[string]state.PropEntry, len(props))
		for k, v := range props {
			bucket[k] = v
		}
		out.NodeProps[id] = bucket
	}
	for k, props := range base.EdgeProps {
		bucket := make(map[string]state.PropEntry, len(props))
		for kk, v := range props {
			bucket[kk] = v
		}
		out.EdgeProps[k] = bucket
	}
	return out
}
