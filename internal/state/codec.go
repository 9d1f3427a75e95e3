package state

import (
	"encoding/hex"
	"fmt"
	"sort"

	"golang.org/x/crypto/blake2b"

	"github.com/orneryd/warpgraph/internal/codec"
	"github.com/orneryd/warpgraph/internal/eventid"
	"github.com/orneryd/warpgraph/internal/ops"
	"github.com/orneryd/warpgraph/internal/writerid"
)

// wireEvent is eventid.EventID flattened to plain fields so the canonical
// codec encodes it the same way on every platform.
type wireEvent struct {
	Lamport uint64
	Writer  string
	Seq     uint32
}

func toWire(e eventid.EventID) wireEvent {
	return wireEvent{Lamport: e.Lamport, Writer: string(e.Writer), Seq: e.Seq}
}

func fromWire(w wireEvent) eventid.EventID {
	return eventid.EventID{Lamport: w.Lamport, Writer: writerid.ID(w.Writer), Seq: w.Seq}
}

type wireNode struct {
	ID         string
	MaxAdd     wireEvent
	HasAdd     bool
	MaxTomb    wireEvent
	HasTomb    bool
	Generation uint64
}

type wireEdge struct {
	From, To, Label string
	MaxAdd          wireEvent
	HasAdd          bool
	MaxTomb         wireEvent
	HasTomb         bool
	Generation      uint64
}

type wireNodeProp struct {
	NodeID  string
	Key     string
	EventID wireEvent
	Value   ops.Value
}

type wireEdgeProp struct {
	From, To, Label string
	Key             string
	EventID         wireEvent
	Value           ops.Value
}

// wireState is the canonical, order-independent serialization of State: a
// sorted node-ID list with (max-add-event, max-tomb-event, generation),
// a sorted edge list with the same triple, and sorted (scope,key)
// property entries with (eventId, value) — per the checkpoint blob layout
// this package's reducer/checkpoint packages share.
type wireState struct {
	Nodes     []wireNode
	Edges     []wireEdge
	NodeProps []wireNodeProp
	EdgeProps []wireEdgeProp
}

func toWireState(s *State) wireState {
	w := wireState{}
	for id, ns := range s.Nodes {
		w.Nodes = append(w.Nodes, wireNode{
			ID: id, MaxAdd: toWire(ns.MaxAdd), HasAdd: ns.HasAdd,
			MaxTomb: toWire(ns.MaxTomb), HasTomb: ns.HasTomb, Generation: ns.Generation,
		})
	}
	sort.Slice(w.Nodes, func(i, j int) bool { return w.Nodes[i].ID < w.Nodes[j].ID })

	for k, es := range s.Edges {
		w.Edges = append(w.Edges, wireEdge{
			From: k.From, To: k.To, Label: k.Label,
			MaxAdd: toWire(es.MaxAdd), HasAdd: es.HasAdd,
			MaxTomb: toWire(es.MaxTomb), HasTomb: es.HasTomb, Generation: es.Generation,
		})
	}
	sort.Slice(w.Edges, func(i, j int) bool { return edgeLess(w.Edges[i], w.Edges[j]) })

	for id, props := range s.NodeProps {
		for k, e := range props {
			w.NodeProps = append(w.NodeProps, wireNodeProp{NodeID: id, Key: k, EventID: toWire(e.EventID), Value: e.Value})
		}
	}
	sort.Slice(w.NodeProps, func(i, j int) bool {
		a, b := w.NodeProps[i], w.NodeProps[j]
		if a.NodeID != b.NodeID {
			return a.NodeID < b.NodeID
		}
		return a.Key < b.Key
	})

	for k, props := range s.EdgeProps {
		for key, e := range props {
			w.EdgeProps = append(w.EdgeProps, wireEdgeProp{From: k.From, To: k.To, Label: k.Label, Key: key, EventID: toWire(e.EventID), Value: e.Value})
		}
	}
	sort.Slice(w.EdgeProps, func(i, j int) bool {
		a, b := w.EdgeProps[i], w.EdgeProps[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		if a.Label != b.Label {
			return a.Label < b.Label
		}
		return a.Key < b.Key
	})
	return w
}

func edgeLess(a, b wireEdge) bool {
	if a.From != b.From {
		return a.From < b.From
	}
	if a.To != b.To {
		return a.To < b.To
	}
	return a.Label < b.Label
}

func fromWireState(w wireState) *State {
	s := Empty()
	for _, n := range w.Nodes {
		s.Nodes[n.ID] = &NodeState{
			MaxAdd: fromWire(n.MaxAdd), HasAdd: n.HasAdd,
			MaxTomb: fromWire(n.MaxTomb), HasTomb: n.HasTomb, Generation: n.Generation,
		}
	}
	for _, e := range w.Edges {
		key := ops.EdgeKey{From: e.From, To: e.To, Label: e.Label}
		s.Edges[key] = &EdgeState{
			MaxAdd: fromWire(e.MaxAdd), HasAdd: e.HasAdd,
			MaxTomb: fromWire(e.MaxTomb), HasTomb: e.HasTomb, Generation: e.Generation,
		}
	}
	for _, p := range w.NodeProps {
		bucket, ok := s.NodeProps[p.NodeID]
		if !ok {
			bucket = make(map[string]PropEntry)
			s.NodeProps[p.NodeID] = bucket
		}
		bucket[p.Key] = PropEntry{EventID: fromWire(p.EventID), Value: p.Value}
	}
	for _, p := range w.EdgeProps {
		key := ops.EdgeKey{From: p.From, To: p.To, Label: p.Label}
		bucket, ok := s.EdgeProps[key]
		if !ok {
			bucket = make(map[string]PropEntry)
			s.EdgeProps[key] = bucket
		}
		bucket[p.Key] = PropEntry{EventID: fromWire(p.EventID), Value: p.Value}
	}
	return s
}

// Encode serializes s into WarpGraph's canonical byte form. The result is
// identical for two States holding the same logical content regardless of
// the Go map iteration order that produced them.
func Encode(s *State) ([]byte, error) {
	b, err := codec.Encode(toWireState(s))
	if err != nil {
		return nil, fmt.Errorf("state: encode: %w", err)
	}
	return b, nil
}

// Decode reconstructs a State from bytes produced by Encode.
func Decode(data []byte) (*State, error) {
	var w wireState
	if err := codec.Decode(data, &w); err != nil {
		return nil, fmt.Errorf("state: decode: %w", err)
	}
	return fromWireState(w), nil
}

// Hash returns the blake2b-256 digest of s's canonical encoding, hex
// encoded. Two States with identical logical content always hash
// identically.
func Hash(s *State) (string, error) {
	b, err := Encode(s)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
