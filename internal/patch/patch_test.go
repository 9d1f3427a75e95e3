package patch_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/warpgraph/internal/codec"
	"github.com/orneryd/warpgraph/internal/objectstore"
	"github.com/orneryd/warpgraph/internal/ops"
	"github.com/orneryd/warpgraph/internal/patch"
	"github.com/orneryd/warpgraph/internal/refs"
)

func TestBuilderCommitsOpsInOrder(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemoryStore()
	defer store.Close()
	layout := refs.New("", "g")

	b := patch.NewBuilder(store, layout, "alice", "", 0, 0)
	b.AddNode("n1").AddNode("n2").SetProperty(ops.NodeScope("n1"), "k", ops.StringValue("v"))

	commitID, lamport, err := b.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), lamport)

	raw, err := store.ShowCommit(ctx, commitID)
	require.NoError(t, err)

	var decoded ops.Patch
	require.NoError(t, codec.Decode(raw, &decoded))
	require.Len(t, decoded.Ops, 3)
	assert.Equal(t, ops.TagNodeAdd, decoded.Ops[0].Tag)
	assert.Equal(t, "n1", decoded.Ops[0].NodeID)
	assert.Equal(t, "n2", decoded.Ops[1].NodeID)
	assert.Equal(t, ops.TagPropSet, decoded.Ops[2].Tag)
}

func TestBuilderAdvancesWriterRef(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemoryStore()
	defer store.Close()
	layout := refs.New("", "g")

	b1 := patch.NewBuilder(store, layout, "alice", "", 0, 0)
	b1.AddNode("n1")
	c1, _, err := b1.Commit(ctx)
	require.NoError(t, err)

	head, ok, err := store.ReadRef(ctx, layout.WriterRef("alice"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, c1, head)

	b2 := patch.NewBuilder(store, layout, "alice", c1, 1, 0)
	b2.AddNode("n2")
	c2, lamport2, err := b2.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), lamport2)

	info, err := store.CommitInfo(ctx, c2)
	require.NoError(t, err)
	assert.Equal(t, []objectstore.ObjectID{c1}, info.Parents)
}

func TestBuilderSingleUse(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemoryStore()
	defer store.Close()
	layout := refs.New("", "g")

	b := patch.NewBuilder(store, layout, "alice", "", 0, 0)
	b.AddNode("n1")
	_, _, err := b.Commit(ctx)
	require.NoError(t, err)

	_, _, err = b.Commit(ctx)
	assert.ErrorIs(t, err, patch.ErrPatchFinalized)
}

func TestBuilderRetriesOnStaleParent(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemoryStore()
	defer store.Close()
	layout := refs.New("", "g")

	// Simulate another in-process commit moving the head after this
	// builder captured its parent, but before Commit runs.
	other := patch.NewBuilder(store, layout, "alice", "", 0, 0)
	other.AddNode("n0")
	newHead, _, err := other.Commit(ctx)
	require.NoError(t, err)

	stale := patch.NewBuilder(store, layout, "alice", "", 0, 0)
	stale.AddNode("n1")
	committed, _, err := stale.Commit(ctx)
	require.NoError(t, err)

	info, err := store.CommitInfo(ctx, committed)
	require.NoError(t, err)
	assert.Equal(t, []objectstore.ObjectID{newHead}, info.Parents)
}
