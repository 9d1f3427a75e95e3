// Package patch implements WarpGraph's fluent patch builder.
//
// A Builder accumulates operations via chained calls and serializes them
// into a single commit on Commit(). It is single-use: once Commit()
// succeeds (or is attempted), a further Commit fails with
// ErrPatchFinalized, Err reports it, and further accumulator calls are
// ignored.
package patch

import (
	"context"
	"errors"
	"fmt"

	"github.com/orneryd/warpgraph/internal/codec"
	"github.com/orneryd/warpgraph/internal/eventid"
	"github.com/orneryd/warpgraph/internal/objectstore"
	"github.com/orneryd/warpgraph/internal/ops"
	"github.com/orneryd/warpgraph/internal/refs"
	"github.com/orneryd/warpgraph/internal/writerid"
)

// ErrPatchFinalized is returned by Commit and Err once Commit has run.
// Accumulator methods (AddNode, SetProperty, ...) called after that do
// not add operations.
var ErrPatchFinalized = errors.New("patch: builder already committed")

// ConflictRetryLimit bounds how many times Commit retries a ref
// compare-and-swap conflict before surfacing it to the caller. A conflict
// on a single-handle commit implies the in-memory head cache went stale,
// not a concurrent local writer (§7 of the spec), so a small bounded retry
// with re-read is the correct local recovery.
const ConflictRetryLimit = 5

// HeadReader resolves a writer's current chain head, used to re-read on
// conflict without requiring the builder to hold a store reference beyond
// what it already has.
type HeadReader interface {
	ReadRef(ctx context.Context, name string) (objectstore.ObjectID, bool, error)
}

// Builder fluently accumulates a patch's operations. Ordering of chained
// calls is preserved; each op receives a monotonically increasing Seq.
//
// Builder is not safe for concurrent use — each WarpGraph handle owns at
// most one in-flight builder at a time, per the spec's single-writer
// scheduling model.
type Builder struct {
	store     objectstore.Store
	layout    refs.Layout
	writer    writerid.ID
	localLamport uint64
	maxObserved  uint64
	parentHead   objectstore.ObjectID

	ops       []ops.Op
	finalized bool
}

// NewBuilder returns a Builder bound to the writer's current chain head.
// localLamport and maxObserved seed the writer-local logical clock (§3);
// the facade is responsible for tracking these across calls to Open and
// prior commits.
func NewBuilder(store objectstore.Store, layout refs.Layout, writer writerid.ID, parentHead objectstore.ObjectID, localLamport, maxObserved uint64) *Builder {
	return &Builder{
		store:        store,
		layout:       layout,
		writer:       writer,
		parentHead:   parentHead,
		localLamport: localLamport,
		maxObserved:  maxObserved,
	}
}

func (b *Builder) append(op ops.Op) *Builder {
	if b.finalized {
		return b
	}
	b.ops = append(b.ops, op)
	return b
}

// AddNode appends a NodeAdd operation.
func (b *Builder) AddNode(id string) *Builder { return b.append(ops.NodeAdd(id)) }

// RemoveNode appends a NodeRemove operation.
func (b *Builder) RemoveNode(id string) *Builder { return b.append(ops.NodeRemove(id)) }

// AddEdge appends an EdgeAdd operation.
func (b *Builder) AddEdge(from, to, label string) *Builder {
	return b.append(ops.EdgeAdd(from, to, label))
}

// RemoveEdge appends an EdgeRemove operation.
func (b *Builder) RemoveEdge(from, to, label string) *Builder {
	return b.append(ops.EdgeRemove(from, to, label))
}

// SetProperty appends a PropSet operation scoped to a node or edge.
func (b *Builder) SetProperty(scope ops.Scope, key string, value ops.Value) *Builder {
	return b.append(ops.PropSet(scope, key, value))
}

// SetEdgeProperty appends an EdgePropSet (pe) operation on an edge.
func (b *Builder) SetEdgeProperty(from, to, label, key string, value ops.Value) *Builder {
	return b.append(ops.EdgePropSet(from, to, label, key, value))
}

// Err reports the first error encountered while building, currently only
// ErrPatchFinalized after a prior Commit.
func (b *Builder) Err() error {
	if b.finalized {
		return ErrPatchFinalized
	}
	return nil
}

// Commit assigns the writer's new lamport value, serializes the patch
// envelope, writes it as a commit whose parent is the current chain head,
// advances the writer's ref, and returns the commit's object ID.
//
// Commit is the builder's sole suspension point (Design Notes): any
// asynchronous preparation happens here, not in the fluent accumulator
// calls above.
func (b *Builder) Commit(ctx context.Context) (objectstore.ObjectID, uint64, error) {
	if b.finalized {
		return "", 0, ErrPatchFinalized
	}
	b.finalized = true

	for i := range b.ops {
		if err := ops.Validate(b.ops[i]); err != nil {
			return "", 0, fmt.Errorf("patch: %w", err)
		}
	}

	lamport := eventid.NextLamport(b.localLamport, b.maxObserved)
	p := ops.Patch{
		SchemaVersion: ops.CurrentSchemaVersion,
		Writer:        b.writer,
		Lamport:       lamport,
		Ops:           append([]ops.Op(nil), b.ops...),
	}

	payload, err := codec.Encode(p)
	if err != nil {
		return "", 0, fmt.Errorf("patch: encode: %w", err)
	}

	ref := b.layout.WriterRef(b.writer)
	parent := b.parentHead

	var commitID objectstore.ObjectID
	for attempt := 0; attempt < ConflictRetryLimit; attempt++ {
		var parents []objectstore.ObjectID
		if parent != "" {
			parents = []objectstore.ObjectID{parent}
		}
		commitID, err = b.store.Commit(ctx, payload, parents, string(b.writer))
		if err != nil {
			return "", 0, fmt.Errorf("patch: commit: %w", err)
		}

		err = b.store.UpdateRef(ctx, ref, parent, commitID)
		if err == nil {
			return commitID, lamport, nil
		}
		if !errors.Is(err, objectstore.ErrConflict) {
			return "", 0, fmt.Errorf("patch: update ref: %w", err)
		}

		// Conflict on a single handle implies a stale cached head; re-read
		// and retry (§7).
		current, ok, readErr := b.store.ReadRef(ctx, ref)
		if readErr != nil {
			return "", 0, fmt.Errorf("patch: re-read head after conflict: %w", readErr)
		}
		if ok {
			parent = current
		} else {
			parent = ""
		}
	}
	return "", 0, fmt.Errorf("patch: ref update conflicted %d times: %w", ConflictRetryLimit, objectstore.ErrConflict)
}
