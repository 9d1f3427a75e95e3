// Package warpgraph is WarpGraph's public facade: the single importable
// entry point tying the codec, patch builder, reducer, checkpoint
// service, sync protocol, seek cache, traversal engine, and query builder
// into one handle per graph (§4.7 of the spec this package implements).
package warpgraph

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/orneryd/warpgraph/internal/checkpoint"
	"github.com/orneryd/warpgraph/internal/codec"
	"github.com/orneryd/warpgraph/internal/objectstore"
	"github.com/orneryd/warpgraph/internal/ops"
	"github.com/orneryd/warpgraph/internal/patch"
	"github.com/orneryd/warpgraph/internal/query"
	"github.com/orneryd/warpgraph/internal/refs"
	"github.com/orneryd/warpgraph/internal/seekcache"
	"github.com/orneryd/warpgraph/internal/state"
	warpsync "github.com/orneryd/warpgraph/internal/sync"
	"github.com/orneryd/warpgraph/internal/traversal"
	"github.com/orneryd/warpgraph/internal/writerid"
)

// Direction re-exports the traversal package's edge orientation so callers
// never need to import internal/traversal directly.
type Direction = traversal.Direction

const (
	Outgoing = traversal.Outgoing
	Incoming = traversal.Incoming
	Both     = traversal.Both
)

// Options configures an Open call. The zero value is valid: a canonical
// writer ID is generated in memory and AutoMaterialize is off, so reads
// serve the snapshot of the last explicit Materialize (empty before the
// first one).
type Options struct {
	// WriterID pins the local writer identity. Empty generates a fresh
	// canonical ID (not persisted — callers that need persistence across
	// process restarts should resolve an ID via writerid.LoadOrCreate
	// themselves and pass it here).
	WriterID writerid.ID
	// RefsRoot overrides the ref namespace root; empty uses refs.DefaultRoot.
	RefsRoot string
	// AutoMaterialize checks every writer's current chain head before each
	// read and re-runs the sync protocol whenever the cached snapshot's
	// frontier no longer matches (a new commit from any writer, including
	// this handle's own, has landed since the last Materialize). The head
	// check itself is a single ref listing, not a chain walk, so it stays
	// cheap even when the cached snapshot is still current. Leave it off to
	// control materialize timing explicitly.
	AutoMaterialize bool
	// SeekCacheSize and SeekCacheTTL size the materialize result cache;
	// zero values fall back to seekcache.New's defaults (TTL 0 disables
	// expiration).
	SeekCacheSize int
	SeekCacheTTL  time.Duration

	// Logger receives WarpGraph's operational log lines. Defaults to a
	// stderr logger with the prefix "warpgraph: " when nil.
	Logger *log.Logger
}

// Graph is one handle on a graph's state in an object store. A Graph is
// safe for concurrent use by multiple goroutines.
type Graph struct {
	store  objectstore.Store
	layout refs.Layout
	writer writerid.ID
	logger *log.Logger

	autoMaterialize bool
	cache           *seekcache.Cache

	mu       sync.Mutex
	snapshot *state.State
	frontier map[writerid.ID]objectstore.ObjectID
	lamport  uint64
}

// Open resolves a writer identity, builds the ref layout for graphName,
// and returns a handle ready to accept patches and reads. It performs no
// I/O beyond what Options.WriterID resolution requires.
func Open(store objectstore.Store, graphName string, opts Options) (*Graph, error) {
	if graphName == "" {
		return nil, fmt.Errorf("warpgraph: graph name must not be empty")
	}

	w := opts.WriterID
	if w == "" {
		generated, err := writerid.Generate()
		if err != nil {
			return nil, fmt.Errorf("warpgraph: generate writer id: %w", err)
		}
		w = generated
	} else if err := writerid.Validate(w); err != nil {
		return nil, fmt.Errorf("warpgraph: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "warpgraph: ", log.LstdFlags)
	}

	g := &Graph{
		store:           store,
		layout:          refs.New(opts.RefsRoot, graphName),
		writer:          w,
		logger:          logger,
		autoMaterialize: opts.AutoMaterialize,
		cache:           seekcache.New(opts.SeekCacheSize, opts.SeekCacheTTL),
		snapshot:        state.Empty(),
		frontier:        make(map[writerid.ID]objectstore.ObjectID),
	}
	return g, nil
}

// WriterID returns the handle's own writer identity.
func (g *Graph) WriterID() writerid.ID { return g.writer }

// CreatePatch returns a fresh patch builder bound to this writer's
// current chain head. The caller must call Commit to persist it.
func (g *Graph) CreatePatch(ctx context.Context) (*patch.Builder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	head, ok, err := g.store.ReadRef(ctx, g.layout.WriterRef(g.writer))
	if err != nil {
		return nil, fmt.Errorf("warpgraph: read head: %w", err)
	}
	local := g.lamport
	if !ok {
		head = ""
	} else {
		// Resume the clock from this writer's chain head, which an earlier
		// handle or a direct Builder.Commit may have written.
		raw, err := g.store.ShowCommit(ctx, head)
		if err != nil {
			return nil, fmt.Errorf("warpgraph: read head commit: %w", err)
		}
		var p ops.Patch
		if err := codec.Decode(raw, &p); err == nil && p.Lamport > local {
			local = p.Lamport
		}
	}
	return patch.NewBuilder(g.store, g.layout, g.writer, head, local, g.lamport), nil
}

// Patch builds and commits a single patch in one call: fn accumulates
// operations on the builder it receives, and Patch commits the result.
func (g *Graph) Patch(ctx context.Context, fn func(b *patch.Builder)) (objectstore.ObjectID, error) {
	b, err := g.CreatePatch(ctx)
	if err != nil {
		return "", err
	}
	fn(b)
	commitID, lamport, err := b.Commit(ctx)
	if err != nil {
		return "", err
	}
	g.mu.Lock()
	if lamport > g.lamport {
		g.lamport = lamport
	}
	g.mu.Unlock()
	return commitID, nil
}

// Materialize runs the sync protocol (§4.6) and caches the resulting
// snapshot and frontier on the handle. Subsequent reads use the cached
// snapshot until the next Materialize call or, with
// Options.AutoMaterialize, until a read finds that a writer head changed.
//
// Before walking any chain, it checks the seek cache for a prior result
// keyed by the currently observed writer heads: if every writer's head is
// unchanged since a previous Materialize, the walk is skipped entirely.
func (g *Graph) Materialize(ctx context.Context) error {
	heads, err := g.currentHeads(ctx)
	if err != nil {
		return err
	}
	return g.materializeForHeads(ctx, heads)
}

func (g *Graph) materializeForHeads(ctx context.Context, heads map[string]string) error {
	key := seekcache.Key("", heads)

	if cached, ok := g.cache.Get(key); ok {
		result := cached.(*warpsync.Result)
		g.mu.Lock()
		g.snapshot = result.State
		g.frontier = result.Frontier
		g.mu.Unlock()
		g.logger.Printf("materialize: seek-cache hit for %d writer(s)", len(heads))
		return nil
	}

	result, err := warpsync.Materialize(ctx, g.store, g.layout)
	if err != nil {
		return err
	}
	g.cache.Put(key, result)

	g.mu.Lock()
	g.snapshot = result.State
	g.frontier = result.Frontier
	g.mu.Unlock()
	g.logger.Printf("materialized %d writer(s)", len(result.Frontier))
	return nil
}

// currentHeads reads every writer's current chain head without walking
// any chain, for the seek cache's key.
func (g *Graph) currentHeads(ctx context.Context) (map[string]string, error) {
	entries, err := g.store.ListRefs(ctx, g.layout.WritersPrefix())
	if err != nil {
		return nil, fmt.Errorf("warpgraph: list writer heads: %w", err)
	}
	heads := make(map[string]string, len(entries))
	for _, e := range entries {
		w, ok, err := g.layout.WriterFromRef(e.Name)
		if err != nil {
			return nil, fmt.Errorf("warpgraph: %w", err)
		}
		if ok {
			heads[string(w)] = string(e.ObjectID)
		}
	}
	return heads, nil
}

// ensureMaterialized guarantees a snapshot exists, and, when
// Options.AutoMaterialize is set, that it still reflects every writer's
// current chain head. It re-checks the heads on every call rather than
// only before the first read, since a stale-forever cache would silently
// hide other writers' later commits.
func (g *Graph) ensureMaterialized(ctx context.Context) error {
	g.mu.Lock()
	autoMaterialize := g.autoMaterialize
	frontier := g.frontier
	g.mu.Unlock()

	if !autoMaterialize {
		return nil
	}
	if len(frontier) == 0 {
		return g.Materialize(ctx)
	}

	heads, err := g.currentHeads(ctx)
	if err != nil {
		return err
	}
	if frontierMatchesHeads(frontier, heads) {
		return nil
	}
	return g.materializeForHeads(ctx, heads)
}

// frontierMatchesHeads reports whether every writer head in heads matches
// the cached frontier exactly, with no writer added, removed, or advanced.
func frontierMatchesHeads(frontier map[writerid.ID]objectstore.ObjectID, heads map[string]string) bool {
	if len(frontier) != len(heads) {
		return false
	}
	for w, head := range frontier {
		if heads[string(w)] != string(head) {
			return false
		}
	}
	return true
}

func (g *Graph) current() *state.State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshot
}

// GetNodes returns every currently-alive node ID in the cached snapshot.
func (g *Graph) GetNodes(ctx context.Context) ([]string, error) {
	if err := g.ensureMaterialized(ctx); err != nil {
		return nil, err
	}
	return g.current().AliveNodes(), nil
}

// GetEdges returns every currently-alive edge key in the cached snapshot.
func (g *Graph) GetEdges(ctx context.Context) ([]ops.EdgeKey, error) {
	if err := g.ensureMaterialized(ctx); err != nil {
		return nil, err
	}
	return g.current().AliveEdges(), nil
}

// GetNodeProps returns a node's currently-visible properties.
func (g *Graph) GetNodeProps(ctx context.Context, id string) (map[string]ops.Value, error) {
	if err := g.ensureMaterialized(ctx); err != nil {
		return nil, err
	}
	return g.current().NodeProperties(id), nil
}

// GetEdgeProps returns an edge's currently-visible properties.
func (g *Graph) GetEdgeProps(ctx context.Context, from, to, label string) (map[string]ops.Value, error) {
	if err := g.ensureMaterialized(ctx); err != nil {
		return nil, err
	}
	return g.current().EdgeProperties(from, to, label), nil
}

// HasNode reports whether id is alive in the cached snapshot.
func (g *Graph) HasNode(ctx context.Context, id string) (bool, error) {
	if err := g.ensureMaterialized(ctx); err != nil {
		return false, err
	}
	return g.current().HasNode(id), nil
}

// HasEdge reports whether the (from,to,label) edge is alive in the
// cached snapshot.
func (g *Graph) HasEdge(ctx context.Context, from, to, label string) (bool, error) {
	if err := g.ensureMaterialized(ctx); err != nil {
		return false, err
	}
	return g.current().HasEdge(from, to, label), nil
}

// DiscoverWriters enumerates every writer ID currently present under this
// graph's writers namespace, independent of the cached snapshot.
func (g *Graph) DiscoverWriters(ctx context.Context) ([]writerid.ID, error) {
	entries, err := g.store.ListRefs(ctx, g.layout.WritersPrefix())
	if err != nil {
		return nil, fmt.Errorf("warpgraph: discover writers: %w", err)
	}
	writers := make([]writerid.ID, 0, len(entries))
	for _, e := range entries {
		w, ok, err := g.layout.WriterFromRef(e.Name)
		if err != nil {
			return nil, fmt.Errorf("warpgraph: %w", err)
		}
		if ok {
			writers = append(writers, w)
		}
	}
	return writers, nil
}

// Query is a query.Builder bound to one Graph's materialized snapshot, so
// Run needs no arguments and every stage method stays chainable.
type Query struct {
	b        *query.Builder
	snapshot *state.State
}

func (q *Query) Match(pattern string) *Query {
	q.b = q.b.Match(pattern)
	return q
}

func (q *Query) Where(filter map[string]ops.Value) *Query {
	q.b = q.b.Where(filter)
	return q
}

func (q *Query) Outgoing(label string) *Query {
	q.b = q.b.Outgoing(label)
	return q
}

func (q *Query) Incoming(label string) *Query {
	q.b = q.b.Incoming(label)
	return q
}

func (q *Query) Select(fields ...string) *Query {
	q.b = q.b.Select(fields...)
	return q
}

// Run drives the bound query pipeline against the snapshot it was
// created from.
func (q *Query) Run() query.Result {
	return q.b.Run(q.snapshot)
}

// Query returns a fresh query builder bound to this handle's cached
// snapshot. Callers compose Match/Where/Outgoing/Incoming/Select stages
// on it and call Run.
func (g *Graph) Query(ctx context.Context) (*Query, error) {
	if err := g.ensureMaterialized(ctx); err != nil {
		return nil, err
	}
	return &Query{b: query.New(), snapshot: g.current()}, nil
}

// View returns a traversal view over the cached snapshot, for callers
// that want BFS/DFS/shortest-path operations directly.
func (g *Graph) View(ctx context.Context) (*traversal.View, error) {
	if err := g.ensureMaterialized(ctx); err != nil {
		return nil, err
	}
	return traversal.NewView(g.current()), nil
}

// Checkpoint publishes a checkpoint at the given sequence number from the
// handle's currently cached snapshot and frontier. seq must exceed every
// previously published checkpoint's sequence number.
func (g *Graph) Checkpoint(ctx context.Context, seq uint64) (objectstore.ObjectID, error) {
	g.mu.Lock()
	snapshot := g.snapshot
	frontier := g.frontier
	g.mu.Unlock()
	return checkpoint.Save(ctx, g.store, g.layout, seq, snapshot, frontier)
}

// Close releases the underlying object store. A Graph should not be used
// after Close returns.
func (g *Graph) Close() error {
	return g.store.Close()
}
