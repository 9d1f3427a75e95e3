package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/warpgraph/internal/ops"
	"github.com/orneryd/warpgraph/internal/query"
	"github.com/orneryd/warpgraph/internal/state"
)

func sampleState() *state.State {
	s := state.Empty()
	s.Nodes["user:alice"] = &state.NodeState{HasAdd: true}
	s.Nodes["user:bob"] = &state.NodeState{HasAdd: true}
	s.Nodes["group:admins"] = &state.NodeState{HasAdd: true}
	s.NodeProps["user:alice"] = map[string]state.PropEntry{"role": {Value: ops.StringValue("admin")}}
	s.NodeProps["user:bob"] = map[string]state.PropEntry{"role": {Value: ops.StringValue("member")}}
	s.Edges[ops.EdgeKey{From: "user:alice", To: "group:admins", Label: "member_of"}] = &state.EdgeState{HasAdd: true}
	return s
}

func TestMatchFiltersByGlob(t *testing.T) {
	s := sampleState()
	result := query.New().Match("user:*").Run(s)
	var ids []string
	for _, row := range result.Nodes {
		ids = append(ids, row.NodeID)
	}
	assert.ElementsMatch(t, []string{"user:alice", "user:bob"}, ids)
}

func TestWhereFiltersByProperty(t *testing.T) {
	s := sampleState()
	result := query.New().Match("user:*").Where(map[string]ops.Value{"role": ops.StringValue("admin")}).Run(s)
	require.Len(t, result.Nodes, 1)
	assert.Equal(t, "user:alice", result.Nodes[0].NodeID)
}

func TestOutgoingNavigatesEdges(t *testing.T) {
	s := sampleState()
	result := query.New().Match("user:alice").Outgoing("member_of").Run(s)
	require.Len(t, result.Nodes, 1)
	assert.Equal(t, "group:admins", result.Nodes[0].NodeID)
}

func TestIncomingNavigatesEdges(t *testing.T) {
	s := sampleState()
	result := query.New().Match("group:admins").Incoming("member_of").Run(s)
	require.Len(t, result.Nodes, 1)
	assert.Equal(t, "user:alice", result.Nodes[0].NodeID)
}

func TestSelectProjectsFields(t *testing.T) {
	s := sampleState()
	result := query.New().Match("user:alice").Select("role").Run(s)
	require.Len(t, result.Nodes, 1)
	assert.Equal(t, "admin", result.Nodes[0].Projection["role"].Str)
}

func TestRunWithNoMatchReturnsEveryAliveNode(t *testing.T) {
	s := sampleState()
	result := query.New().Run(s)
	assert.Len(t, result.Nodes, 3)
}
