package state_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/warpgraph/internal/ops"
	"github.com/orneryd/warpgraph/internal/state"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s := state.Empty()
	s.Nodes["n1"] = &state.NodeState{HasAdd: true, MaxAdd: ev(1, 0)}
	s.Nodes["n2"] = &state.NodeState{HasAdd: true, MaxAdd: ev(1, 1), HasTomb: true, MaxTomb: ev(2, 0)}
	key := ops.EdgeKey{From: "n1", To: "n2", Label: "knows"}
	s.Edges[key] = &state.EdgeState{HasAdd: true, MaxAdd: ev(1, 2), Generation: 1}
	s.NodeProps["n1"] = map[string]state.PropEntry{"k": {EventID: ev(1, 3), Value: ops.StringValue("v")}}
	s.EdgeProps[key] = map[string]state.PropEntry{"w": {EventID: ev(1, 4), Value: ops.NumberValue(2)}}

	b, err := state.Encode(s)
	require.NoError(t, err)

	back, err := state.Decode(b)
	require.NoError(t, err)

	assert.True(t, back.HasNode("n1"))
	assert.False(t, back.HasNode("n2"))
	assert.True(t, back.HasEdge("n1", "n2", "knows"))
	assert.Equal(t, "v", back.NodeProperties("n1")["k"].Str)
	assert.Equal(t, 2.0, back.EdgeProperties("n1", "n2", "knows")["w"].Num)
}

func TestHashIsOrderIndependent(t *testing.T) {
	build := func(order []string) *state.State {
		s := state.Empty()
		for _, id := range order {
			s.Nodes[id] = &state.NodeState{HasAdd: true, MaxAdd: ev(1, 0)}
		}
		return s
	}

	a, err := state.Hash(build([]string{"n1", "n2", "n3"}))
	require.NoError(t, err)
	b, err := state.Hash(build([]string{"n3", "n1", "n2"}))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestHashChangesWithContent(t *testing.T) {
	s1 := state.Empty()
	s1.Nodes["n1"] = &state.NodeState{HasAdd: true, MaxAdd: ev(1, 0)}
	h1, err := state.Hash(s1)
	require.NoError(t, err)

	s2 := state.Empty()
	s2.Nodes["n1"] = &state.NodeState{HasAdd: true, MaxAdd: ev(1, 0)}
	s2.Nodes["n2"] = &state.NodeState{HasAdd: true, MaxAdd: ev(1, 1)}
	h2, err := state.Hash(s2)
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}
