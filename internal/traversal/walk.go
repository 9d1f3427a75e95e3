package traversal

import (
	"context"
	"iter"
)

// Step is one node visited by a traversal, paired with its distance from
// the start in hops.
type Step struct {
	NodeID string
	Depth  int
}

// BFS yields every node reachable from start in breadth-first order.
// Each call produces a fresh traversal, so a BFS sequence is restartable
// by simply calling BFS again.
func BFS(ctx context.Context, v *View, start string, dir Direction) iter.Seq[Step] {
	return func(yield func(Step) bool) {
		visited := map[string]bool{start: true}
		queue := []Step{{NodeID: start, Depth: 0}}
		for len(queue) > 0 {
			if ctx.Err() != nil {
				return
			}
			cur := queue[0]
			queue = queue[1:]
			if !yield(cur) {
				return
			}
			for _, next := range v.Neighbors(cur.NodeID, dir) {
				if visited[next] {
					continue
				}
				visited[next] = true
				queue = append(queue, Step{NodeID: next, Depth: cur.Depth + 1})
			}
		}
	}
}

// DFS yields every node reachable from start in depth-first order.
func DFS(ctx context.Context, v *View, start string, dir Direction) iter.Seq[Step] {
	return func(yield func(Step) bool) {
		visited := map[string]bool{start: true}
		stack := []Step{{NodeID: start, Depth: 0}}
		for len(stack) > 0 {
			if ctx.Err() != nil {
				return
			}
			n := len(stack) - 1
			cur := stack[n]
			stack = stack[:n]
			if !yield(cur) {
				return
			}
			neighbors := v.Neighbors(cur.NodeID, dir)
			for i := len(neighbors) - 1; i >= 0; i-- {
				next := neighbors[i]
				if visited[next] {
					continue
				}
				visited[next] = true
				stack = append(stack, Step{NodeID: next, Depth: cur.Depth + 1})
			}
		}
	}
}

// Ancestors yields every node that can reach node via an outgoing edge,
// i.e. BFS over incoming edges, excluding node itself.
func Ancestors(ctx context.Context, v *View, node string) iter.Seq[Step] {
	return func(yield func(Step) bool) {
		for step := range BFS(ctx, v, node, Incoming) {
			if step.NodeID == node {
				continue
			}
			if !yield(step) {
				return
			}
		}
	}
}

// Descendants yields every node reachable from node via outgoing edges,
// excluding node itself.
func Descendants(ctx context.Context, v *View, node string) iter.Seq[Step] {
	return func(yield func(Step) bool) {
		for step := range BFS(ctx, v, node, Outgoing) {
			if step.NodeID == node {
				continue
			}
			if !yield(step) {
				return
			}
		}
	}
}

// TopologicalSort orders every node reachable from start using Kahn's
// algorithm, restricted to the subgraph start can reach. It fails with
// ErrHasCycle if any cycle is reachable from start.
func TopologicalSort(ctx context.Context, v *View, start string) ([]string, error) {
	reachable := map[string]bool{}
	for step := range BFS(ctx, v, start, Outgoing) {
		reachable[step.NodeID] = true
	}

	indegree := make(map[string]int, len(reachable))
	for node := range reachable {
		indegree[node] = 0
	}
	for node := range reachable {
		for _, next := range v.Neighbors(node, Outgoing) {
			if reachable[next] {
				indegree[next]++
			}
		}
	}

	var queue []string
	for node, d := range indegree {
		if d == 0 {
			queue = append(queue, node)
		}
	}

	var order []string
	for len(queue) > 0 {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		n := len(queue) - 1
		node := queue[n]
		queue = queue[:n]
		order = append(order, node)
		for _, next := range v.Neighbors(node, Outgoing) {
			if !reachable[next] {
				continue
			}
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(reachable) {
		return nil, ErrHasCycle
	}
	return order, nil
}

// ShortestPath runs uniform-cost (unweighted) BFS from from to to and
// reconstructs the path. It returns ErrNoPath if to is unreachable.
func ShortestPath(ctx context.Context, v *View, from, to string, dir Direction) ([]string, int, error) {
	if from == to {
		return []string{from}, 0, nil
	}
	visited := map[string]bool{from: true}
	prev := map[string]string{}
	queue := []string{from}

	for len(queue) > 0 {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		cur := queue[0]
		queue = queue[1:]
		for _, next := range v.Neighbors(cur, dir) {
			if visited[next] {
				continue
			}
			visited[next] = true
			prev[next] = cur
			if next == to {
				path := reconstructPath(prev, from, to)
				return path, len(path) - 1, nil
			}
			queue = append(queue, next)
		}
	}
	return nil, 0, ErrNoPath
}

func reconstructPath(prev map[string]string, from, to string) []string {
	path := []string{to}
	cur := to
	for cur != from {
		cur = prev[cur]
		path = append(path, cur)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
