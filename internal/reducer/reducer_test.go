package reducer_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/warpgraph/internal/ops"
	"github.com/orneryd/warpgraph/internal/reducer"
)

func TestReduceBasicAliveNode(t *testing.T) {
	p := ops.Patch{Writer: "alice", Lamport: 1, Ops: []ops.Op{ops.NodeAdd("n1")}}
	s, err := reducer.Reduce(nil, []ops.Patch{p})
	require.NoError(t, err)
	assert.True(t, s.HasNode("n1"))
}

func TestReduceNodeRemoveShadowsAdd(t *testing.T) {
	p := ops.Patch{Writer: "alice", Lamport: 1, Ops: []ops.Op{
		ops.NodeAdd("n1"),
	}}
	p2 := ops.Patch{Writer: "alice", Lamport: 2, Ops: []ops.Op{
		ops.NodeRemove("n1"),
	}}
	s, err := reducer.Reduce(nil, []ops.Patch{p, p2})
	require.NoError(t, err)
	assert.False(t, s.HasNode("n1"))
}

func TestReduceIsPermutationInvariant(t *testing.T) {
	patches := []ops.Patch{
		{Writer: "alice", Lamport: 1, Ops: []ops.Op{ops.NodeAdd("n1"), ops.NodeAdd("n2")}},
		{Writer: "bob", Lamport: 1, Ops: []ops.Op{ops.NodeAdd("n3")}},
		{Writer: "alice", Lamport: 2, Ops: []ops.Op{ops.EdgeAdd("n1", "n2", "knows")}},
		{Writer: "bob", Lamport: 2, Ops: []ops.Op{ops.NodeRemove("n1")}},
		{Writer: "alice", Lamport: 3, Ops: []ops.Op{ops.PropSet(ops.NodeScope("n2"), "color", ops.StringValue("blue"))}},
	}

	baseline, err := reducer.Reduce(nil, patches)
	require.NoError(t, err)

	for trial := 0; trial < 20; trial++ {
		shuffled := append([]ops.Patch(nil), patches...)
		rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got, err := reducer.Reduce(nil, shuffled)
		require.NoError(t, err)

		assert.Equal(t, baseline.HasNode("n1"), got.HasNode("n1"))
		assert.Equal(t, baseline.HasNode("n2"), got.HasNode("n2"))
		assert.Equal(t, baseline.HasNode("n3"), got.HasNode("n3"))
		assert.Equal(t, baseline.HasEdge("n1", "n2", "knows"), got.HasEdge("n1", "n2", "knows"))
		assert.Equal(t, baseline.NodeProperties("n2"), got.NodeProperties("n2"))
	}
}

func TestReduceIsIncremental(t *testing.T) {
	a := []ops.Patch{
		{Writer: "alice", Lamport: 1, Ops: []ops.Op{ops.NodeAdd("n1")}},
	}
	b := []ops.Patch{
		{Writer: "alice", Lamport: 2, Ops: []ops.Op{ops.NodeAdd("n2")}},
		{Writer: "bob", Lamport: 1, Ops: []ops.Op{ops.EdgeAdd("n1", "n2", "knows")}},
	}

	fromScratch, err := reducer.Reduce(nil, append(append([]ops.Patch(nil), a...), b...))
	require.NoError(t, err)

	partial, err := reducer.Reduce(nil, a)
	require.NoError(t, err)
	incremental, err := reducer.Reduce(partial, b)
	require.NoError(t, err)

	assert.Equal(t, fromScratch.AliveNodes(), incremental.AliveNodes())
	assert.True(t, incremental.HasEdge("n1", "n2", "knows"))
	assert.Equal(t, fromScratch.HasEdge("n1", "n2", "knows"), incremental.HasEdge("n1", "n2", "knows"))
}

func TestReduceORSetConcurrentAddWinsOverOlderRemove(t *testing.T) {
	// bob's remove (lamport 1) is shadowed by alice's later add (lamport 2).
	patches := []ops.Patch{
		{Writer: "bob", Lamport: 1, Ops: []ops.Op{ops.NodeRemove("n1")}},
		{Writer: "alice", Lamport: 2, Ops: []ops.Op{ops.NodeAdd("n1")}},
	}
	s, err := reducer.Reduce(nil, patches)
	require.NoError(t, err)
	assert.True(t, s.HasNode("n1"))
}

func TestReduceCleanSlateOnEdgeReAdd(t *testing.T) {
	patches := []ops.Patch{
		{Writer: "alice", Lamport: 1, Ops: []ops.Op{
			ops.EdgeAdd("a", "b", "knows"),
		}},
		{Writer: "alice", Lamport: 2, Ops: []ops.Op{
			ops.EdgePropSet("a", "b", "knows", "weight", ops.NumberValue(1)),
		}},
		{Writer: "alice", Lamport: 3, Ops: []ops.Op{
			ops.EdgeRemove("a", "b", "knows"),
		}},
		{Writer: "alice", Lamport: 4, Ops: []ops.Op{
			ops.EdgeAdd("a", "b", "knows"),
		}},
		{Writer: "alice", Lamport: 5, Ops: []ops.Op{
			ops.EdgePropSet("a", "b", "knows", "weight", ops.NumberValue(2)),
		}},
	}
	s, err := reducer.Reduce(nil, patches)
	require.NoError(t, err)

	require.True(t, s.HasEdge("a", "b", "knows"))
	props := s.EdgeProperties("a", "b", "knows")
	require.Contains(t, props, "weight")
	assert.Equal(t, 2.0, props["weight"].Num)

	es := s.Edges[ops.EdgeKey{From: "a", To: "b", Label: "knows"}]
	assert.Equal(t, uint64(1), es.Generation)
}

func TestReduceCleanSlateOnNodeReAdd(t *testing.T) {
	patches := []ops.Patch{
		{Writer: "alice", Lamport: 1, Ops: []ops.Op{ops.NodeAdd("n1")}},
		{Writer: "alice", Lamport: 2, Ops: []ops.Op{ops.PropSet(ops.NodeScope("n1"), "k", ops.StringValue("first"))}},
		{Writer: "alice", Lamport: 3, Ops: []ops.Op{ops.NodeRemove("n1")}},
		{Writer: "alice", Lamport: 4, Ops: []ops.Op{ops.NodeAdd("n1")}},
	}
	s, err := reducer.Reduce(nil, patches)
	require.NoError(t, err)

	require.True(t, s.HasNode("n1"))
	assert.Empty(t, s.NodeProperties("n1"))
}

func TestReduceLWWPropertyTakesLaterEvent(t *testing.T) {
	patches := []ops.Patch{
		{Writer: "alice", Lamport: 1, Ops: []ops.Op{ops.NodeAdd("n1")}},
		{Writer: "bob", Lamport: 2, Ops: []ops.Op{ops.PropSet(ops.NodeScope("n1"), "k", ops.StringValue("b"))}},
		{Writer: "alice", Lamport: 2, Ops: []ops.Op{ops.PropSet(ops.NodeScope("n1"), "k", ops.StringValue("a"))}},
	}
	s, err := reducer.Reduce(nil, patches)
	require.NoError(t, err)
	// same lamport: writer "bob" > "alice" lexicographically, so bob's write
	// is the later event and wins.
	assert.Equal(t, "b", s.NodeProperties("n1")["k"].Str)
}

func TestReduceRejectsUnknownOp(t *testing.T) {
	patches := []ops.Patch{
		{Writer: "alice", Lamport: 1, Ops: []ops.Op{{Tag: "zz", NodeID: "n1"}}},
	}
	_, err := reducer.Reduce(nil, patches)
	assert.Error(t, err)
}
