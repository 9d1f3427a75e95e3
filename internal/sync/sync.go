// Package sync implements WarpGraph's read path: discover every writer's
// chain head, resolve the newest usable checkpoint, walk each writer's
// chain concurrently from its head back to the checkpoint frontier (or to
// genesis, if no checkpoint is usable), and fold the result through the
// reducer into one materialized State (§4.6 of the spec this package
// implements).
//
// Each writer's chain walk runs in its own goroutine; results are
// collected over a channel and joined with a sync.WaitGroup, the same
// concurrency shape NornicDB's storage layer uses for concurrent append
// batches — no errgroup, since nothing in this module's dependency graph
// imports it.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/orneryd/warpgraph/internal/checkpoint"
	"github.com/orneryd/warpgraph/internal/codec"
	"github.com/orneryd/warpgraph/internal/objectstore"
	"github.com/orneryd/warpgraph/internal/ops"
	"github.com/orneryd/warpgraph/internal/reducer"
	"github.com/orneryd/warpgraph/internal/refs"
	"github.com/orneryd/warpgraph/internal/state"
	"github.com/orneryd/warpgraph/internal/writerid"
)

// CorruptPatch is a fatal error: a commit on a writer's chain decoded to
// something other than a well-formed patch. Materialize has no safe
// recovery from this — the whole operation fails.
type CorruptPatch struct {
	CommitID objectstore.ObjectID
	Cause    error
}

func (e *CorruptPatch) Error() string {
	return fmt.Sprintf("sync: corrupt patch at commit %s: %v", e.CommitID, e.Cause)
}

func (e *CorruptPatch) Unwrap() error { return e.Cause }

// Result is the outcome of one Materialize call.
type Result struct {
	State    *state.State
	Frontier map[writerid.ID]objectstore.ObjectID
}

// Materialize runs the full sync protocol and returns a freshly reduced
// snapshot, which callers are free to cache (e.g. by the seek cache's
// (checkpoint, frontier) key).
func Materialize(ctx context.Context, store objectstore.Store, layout refs.Layout) (*Result, error) {
	heads, err := discoverHeads(ctx, store, layout)
	if err != nil {
		return nil, err
	}

	base := state.Empty()
	frontier := make(map[writerid.ID]objectstore.ObjectID)

	cp, _, err := checkpoint.SelectUsable(ctx, store, layout, heads)
	switch {
	case err == nil:
		base = cp.State
		frontier = cp.Frontier
	case errors.Is(err, checkpoint.ErrNoUsableCheckpoint):
		// No usable checkpoint: walk every writer from genesis.
	default:
		return nil, err
	}

	patches, err := walkAllChains(ctx, store, heads, frontier)
	if err != nil {
		return nil, err
	}

	reduced, err := reducer.Reduce(base, patches)
	if err != nil {
		return nil, fmt.Errorf("sync: reduce: %w", err)
	}

	newFrontier := make(map[writerid.ID]objectstore.ObjectID, len(heads))
	for w, h := range heads {
		newFrontier[w] = h
	}
	return &Result{State: reduced, Frontier: newFrontier}, nil
}

// discoverHeads lists every writer ref under layout's writers namespace
// and returns the current chain head per writer.
func discoverHeads(ctx context.Context, store objectstore.Store, layout refs.Layout) (map[writerid.ID]objectstore.ObjectID, error) {
	entries, err := store.ListRefs(ctx, layout.WritersPrefix())
	if err != nil {
		return nil, fmt.Errorf("sync: discover writers: %w", err)
	}
	heads := make(map[writerid.ID]objectstore.ObjectID, len(entries))
	for _, e := range entries {
		w, ok, err := layout.WriterFromRef(e.Name)
		if err != nil {
			return nil, fmt.Errorf("sync: %w", err)
		}
		if !ok {
			continue
		}
		heads[w] = e.ObjectID
	}
	return heads, nil
}

// chainResult is one writer's walk outcome, sent over walkAllChains's
// result channel.
type chainResult struct {
	patches []ops.Patch
	err     error
}

// walkAllChains walks every writer's chain concurrently from its head
// back to (exclusive of) its frontier entry, decoding each commit along
// the way into a Patch.
func walkAllChains(ctx context.Context, store objectstore.Store, heads, frontier map[writerid.ID]objectstore.ObjectID) ([]ops.Patch, error) {
	results := make(chan chainResult, len(heads))
	var wg sync.WaitGroup

	for w, head := range heads {
		stopAt := frontier[w]
		wg.Add(1)
		go func(head, stopAt objectstore.ObjectID) {
			defer wg.Done()
			patches, err := walkChain(ctx, store, head, stopAt)
			results <- chainResult{patches: patches, err: err}
		}(head, stopAt)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var all []ops.Patch
	var firstErr error
	for r := range results {
		if r.err != nil && firstErr == nil {
			firstErr = r.err
			continue
		}
		if firstErr == nil {
			all = append(all, r.patches...)
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return all, nil
}

// walkChain follows a writer's commit chain from head through parents,
// stopping at (and excluding) stopAt, decoding every other commit's
// payload as a Patch.
func walkChain(ctx context.Context, store objectstore.Store, head, stopAt objectstore.ObjectID) ([]ops.Patch, error) {
	var patches []ops.Patch
	cur := head
	for cur != "" && cur != stopAt {
		raw, err := store.ShowCommit(ctx, cur)
		if err != nil {
			return nil, fmt.Errorf("sync: read commit %s: %w", cur, err)
		}
		var p ops.Patch
		if err := codec.Decode(raw, &p); err != nil {
			return nil, &CorruptPatch{CommitID: cur, Cause: err}
		}
		if err := p.Validate(); err != nil {
			return nil, &CorruptPatch{CommitID: cur, Cause: err}
		}
		patches = append(patches, p)

		info, err := store.CommitInfo(ctx, cur)
		if err != nil {
			return nil, fmt.Errorf("sync: commit info %s: %w", cur, err)
		}
		if len(info.Parents) == 0 {
			break
		}
		cur = info.Parents[0]
	}
	return patches, nil
}
