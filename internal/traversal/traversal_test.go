package traversal_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/warpgraph/internal/ops"
	"github.com/orneryd/warpgraph/internal/state"
	"github.com/orneryd/warpgraph/internal/traversal"
)

func chainState(n int) *state.State {
	s := state.Empty()
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("n%d", i)
		s.Nodes[id] = &state.NodeState{HasAdd: true}
	}
	for i := 0; i < n-1; i++ {
		key := ops.EdgeKey{From: fmt.Sprintf("n%d", i), To: fmt.Sprintf("n%d", i+1), Label: "next"}
		s.Edges[key] = &state.EdgeState{HasAdd: true}
	}
	return s
}

func collect(seq func(yield func(traversal.Step) bool)) []string {
	var out []string
	seq(func(s traversal.Step) bool {
		out = append(out, s.NodeID)
		return true
	})
	return out
}

func TestBFSVisitsEveryReachableNode(t *testing.T) {
	s := chainState(5)
	v := traversal.NewView(s)
	ids := collect(traversal.BFS(context.Background(), v, "n0", traversal.Outgoing))
	assert.ElementsMatch(t, []string{"n0", "n1", "n2", "n3", "n4"}, ids)
}

func TestDFSVisitsEveryReachableNode(t *testing.T) {
	s := chainState(4)
	v := traversal.NewView(s)
	ids := collect(traversal.DFS(context.Background(), v, "n0", traversal.Outgoing))
	assert.ElementsMatch(t, []string{"n0", "n1", "n2", "n3"}, ids)
}

func TestDescendantsExcludesSelf(t *testing.T) {
	s := chainState(3)
	v := traversal.NewView(s)
	ids := collect(traversal.Descendants(context.Background(), v, "n0"))
	assert.ElementsMatch(t, []string{"n1", "n2"}, ids)
}

func TestAncestorsRespectsOrientation(t *testing.T) {
	s := chainState(3)
	v := traversal.NewView(s)
	ids := collect(traversal.Ancestors(context.Background(), v, "n2"))
	assert.ElementsMatch(t, []string{"n0", "n1"}, ids)
}

func TestTopologicalSortOrdersChain(t *testing.T) {
	s := chainState(4)
	v := traversal.NewView(s)
	order, err := traversal.TopologicalSort(context.Background(), v, "n0")
	require.NoError(t, err)

	pos := make(map[string]int)
	for i, id := range order {
		pos[id] = i
	}
	assert.Less(t, pos["n0"], pos["n1"])
	assert.Less(t, pos["n1"], pos["n2"])
	assert.Less(t, pos["n2"], pos["n3"])
}

func TestTopologicalSortDetectsCycle(t *testing.T) {
	s := chainState(3)
	s.Edges[ops.EdgeKey{From: "n2", To: "n0", Label: "back"}] = &state.EdgeState{HasAdd: true}
	v := traversal.NewView(s)
	_, err := traversal.TopologicalSort(context.Background(), v, "n0")
	assert.ErrorIs(t, err, traversal.ErrHasCycle)
}

func TestShortestPathFindsLengthInHops(t *testing.T) {
	s := chainState(5)
	v := traversal.NewView(s)
	path, length, err := traversal.ShortestPath(context.Background(), v, "n0", "n3", traversal.Outgoing)
	require.NoError(t, err)
	assert.Equal(t, 3, length)
	assert.Equal(t, []string{"n0", "n1", "n2", "n3"}, path)
}

func TestShortestPathNoPath(t *testing.T) {
	s := state.Empty()
	s.Nodes["a"] = &state.NodeState{HasAdd: true}
	s.Nodes["b"] = &state.NodeState{HasAdd: true}
	v := traversal.NewView(s)
	_, _, err := traversal.ShortestPath(context.Background(), v, "a", "b", traversal.Outgoing)
	assert.ErrorIs(t, err, traversal.ErrNoPath)
}

func unitWeight(ctx context.Context, from, to string) (float64, error) { return 1, nil }
func zeroHeuristic(ctx context.Context, node string) (float64, error)  { return 0, nil }

func TestWeightedShortestPathMatchesUnweightedOnUnitWeights(t *testing.T) {
	s := chainState(6)
	v := traversal.NewView(s)
	result, err := traversal.WeightedShortestPath(context.Background(), v, "n0", "n5", traversal.Outgoing, unitWeight)
	require.NoError(t, err)
	assert.Equal(t, 5.0, result.TotalCost)
	assert.Equal(t, []string{"n0", "n1", "n2", "n3", "n4", "n5"}, result.Path)
}

func TestWeightedShortestPathRejectsNegativeWeight(t *testing.T) {
	s := chainState(2)
	v := traversal.NewView(s)
	neg := func(ctx context.Context, from, to string) (float64, error) { return -1, nil }
	_, err := traversal.WeightedShortestPath(context.Background(), v, "n0", "n1", traversal.Outgoing, neg)
	assert.ErrorIs(t, err, traversal.ErrInvalidWeight)
}

// branchingGraph builds a small DAG with two routes from "a" to "z" of
// different cost, so Dijkstra/A* optimality can be checked against a
// brute-force enumeration.
func branchingGraph() (*state.State, map[string]map[string]float64) {
	s := state.Empty()
	for _, id := range []string{"a", "b", "c", "d", "z"} {
		s.Nodes[id] = &state.NodeState{HasAdd: true}
	}
	edges := map[string]map[string]float64{
		"a": {"b": 1, "c": 5},
		"b": {"d": 1},
		"c": {"z": 1},
		"d": {"z": 1},
	}
	for from, tos := range edges {
		for to := range tos {
			s.Edges[ops.EdgeKey{From: from, To: to, Label: "e"}] = &state.EdgeState{HasAdd: true}
		}
	}
	return s, edges
}

func weightFromTable(edges map[string]map[string]float64) traversal.WeightProvider {
	return func(ctx context.Context, from, to string) (float64, error) {
		return edges[from][to], nil
	}
}

func TestDijkstraOptimality(t *testing.T) {
	s, edges := branchingGraph()
	v := traversal.NewView(s)
	result, err := traversal.WeightedShortestPath(context.Background(), v, "a", "z", traversal.Outgoing, weightFromTable(edges))
	require.NoError(t, err)
	// a->b->d->z costs 3; a->c->z costs 6. Brute force picks the former.
	assert.Equal(t, 3.0, result.TotalCost)
}

func TestAStarOptimalityMatchesDijkstraUnderAdmissibleHeuristic(t *testing.T) {
	s, edges := branchingGraph()
	v := traversal.NewView(s)
	dijkstra, err := traversal.WeightedShortestPath(context.Background(), v, "a", "z", traversal.Outgoing, weightFromTable(edges))
	require.NoError(t, err)

	astar, err := traversal.AStarSearch(context.Background(), v, "a", "z", traversal.Outgoing, weightFromTable(edges), zeroHeuristic)
	require.NoError(t, err)

	assert.Equal(t, dijkstra.TotalCost, astar.TotalCost)
}

func TestBidirectionalAStarMatchesDijkstraCost(t *testing.T) {
	s, edges := branchingGraph()
	v := traversal.NewView(s)
	dijkstra, err := traversal.WeightedShortestPath(context.Background(), v, "a", "z", traversal.Outgoing, weightFromTable(edges))
	require.NoError(t, err)

	bidi, err := traversal.BidirectionalAStar(context.Background(), v, "a", "z", traversal.Outgoing, weightFromTable(edges), zeroHeuristic, zeroHeuristic)
	require.NoError(t, err)

	assert.Equal(t, dijkstra.TotalCost, bidi.TotalCost)
}

// TestLagrangianWeightsChainAgreeAcrossAlgorithms mirrors a chain of 8
// nodes where each edge's cost is a Lagrangian combination of per-node
// metrics (cpu + 1.5*mem); all three weighted algorithms must report the
// same total cost.
func TestLagrangianWeightsChainAgreeAcrossAlgorithms(t *testing.T) {
	s := chainState(8)
	v := traversal.NewView(s)

	metrics := map[string]struct{ cpu, mem float64 }{}
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("n%d", i)
		metrics[id] = struct{ cpu, mem float64 }{cpu: float64(i + 1), mem: float64(i) * 0.5}
	}
	lagrangian := func(ctx context.Context, from, to string) (float64, error) {
		m := metrics[to]
		return m.cpu + 1.5*m.mem, nil
	}
	depthHeuristic := func(ctx context.Context, node string) (float64, error) {
		// Admissible: remaining hops to n7 is a lower bound on remaining cost
		// since every edge costs at least 1.
		var idx int
		fmt.Sscanf(node, "n%d", &idx)
		return float64(7 - idx), nil
	}

	dijkstra, err := traversal.WeightedShortestPath(context.Background(), v, "n0", "n7", traversal.Outgoing, lagrangian)
	require.NoError(t, err)

	astar, err := traversal.AStarSearch(context.Background(), v, "n0", "n7", traversal.Outgoing, lagrangian, depthHeuristic)
	require.NoError(t, err)

	bidi, err := traversal.BidirectionalAStar(context.Background(), v, "n0", "n7", traversal.Outgoing, lagrangian, depthHeuristic, depthHeuristic)
	require.NoError(t, err)

	assert.Equal(t, dijkstra.TotalCost, astar.TotalCost)
	assert.Equal(t, dijkstra.TotalCost, bidi.TotalCost)
}
