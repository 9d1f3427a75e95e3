package traversal

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/orneryd/warpgraph/internal/minheap"
)

// WeightProvider resolves the cost of traversing one edge. It may
// suspend (e.g. to read a property from external storage); values must
// be finite and non-negative.
type WeightProvider func(ctx context.Context, from, to string) (float64, error)

// HeuristicProvider estimates the remaining cost from node to a fixed
// target. For A* optimality the estimate must never exceed the true
// remaining cost (admissibility); this package does not verify that.
type HeuristicProvider func(ctx context.Context, node string) (float64, error)

// PathResult is the outcome of a weighted search.
type PathResult struct {
	Path          []string
	TotalCost     float64
	NodesExplored int
}

// memoWeight wraps provider so each (from,to) pair is resolved at most
// once per search call. The memo lives only for that call: separate
// searches over the same snapshot resolve each pair again.
func memoWeight(wp WeightProvider) WeightProvider {
	type key struct{ from, to string }
	cache := make(map[key]float64)
	var mu sync.Mutex
	return func(ctx context.Context, from, to string) (float64, error) {
		k := key{from, to}
		mu.Lock()
		if v, ok := cache[k]; ok {
			mu.Unlock()
			return v, nil
		}
		mu.Unlock()

		v, err := wp(ctx, from, to)
		if err != nil {
			return 0, err
		}
		mu.Lock()
		cache[k] = v
		mu.Unlock()
		return v, nil
	}
}

func memoHeuristic(hp HeuristicProvider) HeuristicProvider {
	cache := make(map[string]float64)
	var mu sync.Mutex
	return func(ctx context.Context, node string) (float64, error) {
		mu.Lock()
		if v, ok := cache[node]; ok {
			mu.Unlock()
			return v, nil
		}
		mu.Unlock()

		v, err := hp(ctx, node)
		if err != nil {
			return 0, err
		}
		mu.Lock()
		cache[node] = v
		mu.Unlock()
		return v, nil
	}
}

func peekPriority(h *minheap.Heap[string]) float64 {
	if p, ok := h.Peek(); ok {
		return p
	}
	return math.Inf(1)
}

func checkWeight(w float64) error {
	if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
		return ErrInvalidWeight
	}
	return nil
}

// WeightedShortestPath runs Dijkstra's algorithm from from to to. Ties in
// cumulative cost break on lexicographically smaller node ID.
func WeightedShortestPath(ctx context.Context, v *View, from, to string, dir Direction, weight WeightProvider) (PathResult, error) {
	weight = memoWeight(weight)

	g := map[string]float64{from: 0}
	prev := map[string]string{}
	visited := map[string]bool{}

	pq := minheap.New[string]()
	pq.Push(from, 0, from)

	explored := 0
	for pq.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return PathResult{}, err
		}
		entry := pq.Pop()
		cur := entry.Value
		if visited[cur] {
			continue
		}
		visited[cur] = true
		explored++

		if cur == to {
			return PathResult{Path: reconstructPath(prev, from, to), TotalCost: g[cur], NodesExplored: explored}, nil
		}

		for _, next := range v.Neighbors(cur, dir) {
			if visited[next] {
				continue
			}
			w, err := weight(ctx, cur, next)
			if err != nil {
				return PathResult{}, fmt.Errorf("traversal: weight(%s,%s): %w", cur, next, err)
			}
			if err := checkWeight(w); err != nil {
				return PathResult{}, err
			}
			tentative := g[cur] + w
			if prevG, ok := g[next]; !ok || tentative < prevG {
				g[next] = tentative
				prev[next] = cur
				pq.Push(next, tentative, next)
			}
		}
	}
	return PathResult{}, ErrNoPath
}

// AStarSearch runs A* from from to to using weight for edge costs and
// heuristic for the remaining-cost estimate.
func AStarSearch(ctx context.Context, v *View, from, to string, dir Direction, weight WeightProvider, heuristic HeuristicProvider) (PathResult, error) {
	weight = memoWeight(weight)
	heuristic = memoHeuristic(heuristic)

	g := map[string]float64{from: 0}
	prev := map[string]string{}
	visited := map[string]bool{}

	h0, err := heuristic(ctx, from)
	if err != nil {
		return PathResult{}, err
	}
	pq := minheap.New[string]()
	pq.Push(from, h0, from)

	explored := 0
	for pq.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return PathResult{}, err
		}
		entry := pq.Pop()
		cur := entry.Value
		if visited[cur] {
			continue
		}
		visited[cur] = true
		explored++

		if cur == to {
			return PathResult{Path: reconstructPath(prev, from, to), TotalCost: g[cur], NodesExplored: explored}, nil
		}

		for _, next := range v.Neighbors(cur, dir) {
			if visited[next] {
				continue
			}
			w, err := weight(ctx, cur, next)
			if err != nil {
				return PathResult{}, fmt.Errorf("traversal: weight(%s,%s): %w", cur, next, err)
			}
			if err := checkWeight(w); err != nil {
				return PathResult{}, err
			}
			tentative := g[cur] + w
			if prevG, ok := g[next]; !ok || tentative < prevG {
				g[next] = tentative
				prev[next] = cur
				hEst, err := heuristic(ctx, next)
				if err != nil {
					return PathResult{}, err
				}
				pq.Push(next, tentative+hEst, next)
			}
		}
	}
	return PathResult{}, ErrNoPath
}

// BidirectionalAStar runs simultaneous forward and backward A* frontiers,
// meeting in the middle. It terminates as soon as some meeting node's
// combined g_forward+g_backward is no greater than the minimum priority
// remaining in either open set.
func BidirectionalAStar(ctx context.Context, v *View, from, to string, dir Direction, weight WeightProvider, forwardHeuristic, backwardHeuristic HeuristicProvider) (PathResult, error) {
	weight = memoWeight(weight)
	forwardHeuristic = memoHeuristic(forwardHeuristic)
	backwardHeuristic = memoHeuristic(backwardHeuristic)

	backDir := dir
	switch dir {
	case Outgoing:
		backDir = Incoming
	case Incoming:
		backDir = Outgoing
	}

	gF := map[string]float64{from: 0}
	gB := map[string]float64{to: 0}
	prevF := map[string]string{}
	prevB := map[string]string{}
	doneF := map[string]bool{}
	doneB := map[string]bool{}

	hf0, err := forwardHeuristic(ctx, from)
	if err != nil {
		return PathResult{}, err
	}
	hb0, err := backwardHeuristic(ctx, to)
	if err != nil {
		return PathResult{}, err
	}
	pqF := minheap.New[string]()
	pqF.Push(from, hf0, from)
	pqB := minheap.New[string]()
	pqB.Push(to, hb0, to)

	explored := 0
	best := math.Inf(1)
	var meet string
	haveMeet := false

	for pqF.Len() > 0 && pqB.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return PathResult{}, err
		}

		if haveMeet && best <= math.Min(peekPriority(pqF), peekPriority(pqB)) {
			break
		}

		// Expand whichever frontier currently has the lower top priority.
		expandForward := peekPriority(pqF) <= peekPriority(pqB)

		if expandForward {
			entry := pqF.Pop()
			cur := entry.Value
			if doneF[cur] {
				continue
			}
			doneF[cur] = true
			explored++
			if g, ok := gB[cur]; ok {
				total := gF[cur] + g
				if total < best {
					best = total
					meet = cur
					haveMeet = true
				}
			}
			for _, next := range v.Neighbors(cur, dir) {
				if doneF[next] {
					continue
				}
				w, err := weight(ctx, cur, next)
				if err != nil {
					return PathResult{}, fmt.Errorf("traversal: weight(%s,%s): %w", cur, next, err)
				}
				if err := checkWeight(w); err != nil {
					return PathResult{}, err
				}
				tentative := gF[cur] + w
				if prevG, ok := gF[next]; !ok || tentative < prevG {
					gF[next] = tentative
					prevF[next] = cur
					hEst, err := forwardHeuristic(ctx, next)
					if err != nil {
						return PathResult{}, err
					}
					pqF.Push(next, tentative+hEst, next)
				}
			}
		} else {
			entry := pqB.Pop()
			cur := entry.Value
			if doneB[cur] {
				continue
			}
			doneB[cur] = true
			explored++
			if g, ok := gF[cur]; ok {
				total := g + gB[cur]
				if total < best {
					best = total
					meet = cur
					haveMeet = true
				}
			}
			for _, next := range v.Neighbors(cur, backDir) {
				if doneB[next] {
					continue
				}
				w, err := weight(ctx, next, cur)
				if err != nil {
					return PathResult{}, fmt.Errorf("traversal: weight(%s,%s): %w", next, cur, err)
				}
				if err := checkWeight(w); err != nil {
					return PathResult{}, err
				}
				tentative := gB[cur] + w
				if prevG, ok := gB[next]; !ok || tentative < prevG {
					gB[next] = tentative
					prevB[next] = cur
					hEst, err := backwardHeuristic(ctx, next)
					if err != nil {
						return PathResult{}, err
					}
					pqB.Push(next, tentative+hEst, next)
				}
			}
		}
	}

	if !haveMeet {
		return PathResult{}, ErrNoPath
	}

	path := reconstructBidirectionalPath(prevF, prevB, from, to, meet)
	return PathResult{Path: path, TotalCost: best, NodesExplored: explored}, nil
}

func reconstructBidirectionalPath(prevF, prevB map[string]string, from, to, meet string) []string {
	var forwardHalf []string
	cur := meet
	for cur != from {
		forwardHalf = append([]string{cur}, forwardHalf...)
		cur = prevF[cur]
	}
	forwardHalf = append([]string{from}, forwardHalf...)

	var backwardHalf []string
	cur = meet
	for cur != to {
		cur = prevB[cur]
		backwardHalf = append(backwardHalf, cur)
	}

	return append(forwardHalf, backwardHalf...)
}
