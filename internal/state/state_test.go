package state_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/orneryd/warpgraph/internal/eventid"
	"github.com/orneryd/warpgraph/internal/ops"
	"github.com/orneryd/warpgraph/internal/state"
)

func ev(lamport uint64, seq uint32) eventid.EventID {
	return eventid.EventID{Lamport: lamport, Writer: "w_0000000000000000000000000a", Seq: seq}
}

func TestNodeAliveRequiresAdd(t *testing.T) {
	ns := state.NodeState{}
	assert.False(t, ns.Alive())
}

func TestNodeAliveAfterAddNoTomb(t *testing.T) {
	ns := state.NodeState{HasAdd: true, MaxAdd: ev(1, 0)}
	assert.True(t, ns.Alive())
}

func TestNodeDeadWhenTombExceedsAdd(t *testing.T) {
	ns := state.NodeState{HasAdd: true, MaxAdd: ev(1, 0), HasTomb: true, MaxTomb: ev(2, 0)}
	assert.False(t, ns.Alive())
}

func TestNodeAliveWhenAddExceedsTomb(t *testing.T) {
	ns := state.NodeState{HasAdd: true, MaxAdd: ev(3, 0), HasTomb: true, MaxTomb: ev(2, 0)}
	assert.True(t, ns.Alive())
}

func TestStatePropertiesHiddenWhenDead(t *testing.T) {
	s := state.Empty()
	s.Nodes["n1"] = &state.NodeState{HasAdd: true, MaxAdd: ev(1, 0), HasTomb: true, MaxTomb: ev(2, 0)}
	s.NodeProps["n1"] = map[string]state.PropEntry{"k": {EventID: ev(1, 1), Value: ops.StringValue("v")}}

	assert.False(t, s.HasNode("n1"))
	assert.Empty(t, s.NodeProperties("n1"))
}

func TestStateAliveNodesAndEdges(t *testing.T) {
	s := state.Empty()
	s.Nodes["alive"] = &state.NodeState{HasAdd: true, MaxAdd: ev(1, 0)}
	s.Nodes["dead"] = &state.NodeState{HasAdd: true, MaxAdd: ev(1, 0), HasTomb: true, MaxTomb: ev(2, 0)}
	key := ops.EdgeKey{From: "a", To: "b", Label: "knows"}
	s.Edges[key] = &state.EdgeState{HasAdd: true, MaxAdd: ev(1, 0)}

	assert.ElementsMatch(t, []string{"alive"}, s.AliveNodes())
	assert.True(t, s.HasEdge("a", "b", "knows"))
	assert.Len(t, s.AliveEdges(), 1)
}
