// Package checkpoint implements WarpGraph's checkpoint service: periodic
// published snapshots of materialized state plus the writer frontier they
// were computed against, so sync can skip re-walking a writer's entire
// chain from the beginning (§4.5 of the spec this package implements).
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/orneryd/warpgraph/internal/codec"
	"github.com/orneryd/warpgraph/internal/objectstore"
	"github.com/orneryd/warpgraph/internal/refs"
	"github.com/orneryd/warpgraph/internal/state"
	"github.com/orneryd/warpgraph/internal/writerid"
)

// ErrNoUsableCheckpoint is returned by SelectUsable when every published
// checkpoint's frontier is not an ancestor-or-equal of the corresponding
// writer's current head — callers fall back to a full chain walk from
// empty state.
var ErrNoUsableCheckpoint = errors.New("checkpoint: no usable checkpoint")

// CurrentSchemaVersion is the checkpoint blob schema version this build
// writes, mirroring ops.CurrentSchemaVersion for the patch blob format.
const CurrentSchemaVersion uint = 1

// wireCheckpoint is the canonical, order-independent on-disk form: {v, f,
// s, h} per the checkpoint blob format.
type wireCheckpoint struct {
	SchemaVersion uint
	Frontier      []wireFrontierEntry
	StateBlob     []byte
	StateHash     string
}

type wireFrontierEntry struct {
	Writer string
	Head   string
}

// Checkpoint is a decoded checkpoint: the schema version, the frontier
// (each writer's chain head at the moment this checkpoint was published),
// the materialized state that frontier reduces to, and the state hash it
// was published with.
type Checkpoint struct {
	SchemaVersion uint
	Frontier      map[writerid.ID]objectstore.ObjectID
	State         *state.State
	StateHash     string
}

// Save encodes snapshot and frontier into a checkpoint blob, writes it as
// a store blob, and publishes it at sequence number seq under layout's
// checkpoints namespace. seq must not already be published.
func Save(ctx context.Context, store objectstore.Store, layout refs.Layout, seq uint64, snapshot *state.State, frontier map[writerid.ID]objectstore.ObjectID) (objectstore.ObjectID, error) {
	stateBlob, err := state.Encode(snapshot)
	if err != nil {
		return "", fmt.Errorf("checkpoint: encode state: %w", err)
	}
	stateHash, err := state.Hash(snapshot)
	if err != nil {
		return "", fmt.Errorf("checkpoint: hash state: %w", err)
	}

	wc := wireCheckpoint{SchemaVersion: CurrentSchemaVersion, StateBlob: stateBlob, StateHash: stateHash}
	for w, head := range frontier {
		wc.Frontier = append(wc.Frontier, wireFrontierEntry{Writer: string(w), Head: string(head)})
	}
	sort.Slice(wc.Frontier, func(i, j int) bool { return wc.Frontier[i].Writer < wc.Frontier[j].Writer })

	payload, err := codec.Encode(wc)
	if err != nil {
		return "", fmt.Errorf("checkpoint: encode: %w", err)
	}

	objID, err := store.WriteBlob(ctx, payload)
	if err != nil {
		return "", fmt.Errorf("checkpoint: write blob: %w", err)
	}

	ref := layout.CheckpointRef(seq)
	if err := store.UpdateRef(ctx, ref, "", objID); err != nil {
		return "", fmt.Errorf("checkpoint: publish ref %s: %w", ref, err)
	}
	return objID, nil
}

// Load reads and decodes the checkpoint blob at objID, verifying StateHash
// against the decoded state blob so a truncated or corrupted blob is caught
// without needing a full downstream re-decode-and-rehash by the caller.
func Load(ctx context.Context, store objectstore.Store, objID objectstore.ObjectID) (*Checkpoint, error) {
	raw, err := store.ReadBlob(ctx, objID)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read blob: %w", err)
	}
	var wc wireCheckpoint
	if err := codec.Decode(raw, &wc); err != nil {
		return nil, fmt.Errorf("checkpoint: decode: %w", err)
	}
	snapshot, err := state.Decode(wc.StateBlob)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: decode state: %w", err)
	}
	gotHash, err := state.Hash(snapshot)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: hash state: %w", err)
	}
	if wc.StateHash != "" && gotHash != wc.StateHash {
		return nil, fmt.Errorf("checkpoint: state hash mismatch: blob corrupt or truncated (want %s, got %s)", wc.StateHash, gotHash)
	}
	frontier := make(map[writerid.ID]objectstore.ObjectID, len(wc.Frontier))
	for _, e := range wc.Frontier {
		frontier[writerid.ID(e.Writer)] = objectstore.ObjectID(e.Head)
	}
	return &Checkpoint{SchemaVersion: wc.SchemaVersion, Frontier: frontier, State: snapshot, StateHash: wc.StateHash}, nil
}

// seqFromRef parses the trailing sequence number off a checkpoint ref
// name, as produced by refs.Layout.CheckpointRef.
func seqFromRef(layout refs.Layout, name string) (uint64, bool) {
	prefix := layout.CheckpointsPrefix()
	if !strings.HasPrefix(name, prefix) {
		return 0, false
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(name, prefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// isAncestorOrEqual reports whether ancestor is head itself or reachable
// by walking head's commit parents.
func isAncestorOrEqual(ctx context.Context, store objectstore.Store, ancestor, head objectstore.ObjectID) (bool, error) {
	if ancestor == "" || ancestor == head {
		return true, nil
	}
	visited := make(map[objectstore.ObjectID]bool)
	queue := []objectstore.ObjectID{head}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		if cur == ancestor {
			return true, nil
		}
		info, err := store.CommitInfo(ctx, cur)
		if err != nil {
			if errors.Is(err, objectstore.ErrNotFound) {
				continue
			}
			return false, err
		}
		queue = append(queue, info.Parents...)
	}
	return false, nil
}

// SelectUsable finds the highest-sequence published checkpoint whose
// frontier is an ancestor-or-equal of every writer's entry in
// currentHeads, and returns its decoded content along with the object ID
// it was loaded from. A checkpoint naming a writer absent from
// currentHeads is skipped as unusable, since its frontier cannot be
// verified against a head that no longer exists.
func SelectUsable(ctx context.Context, store objectstore.Store, layout refs.Layout, currentHeads map[writerid.ID]objectstore.ObjectID) (*Checkpoint, objectstore.ObjectID, error) {
	refNames, err := store.ListRefs(ctx, layout.CheckpointsPrefix())
	if err != nil {
		return nil, "", fmt.Errorf("checkpoint: list checkpoints: %w", err)
	}

	type candidate struct {
		seq   uint64
		objID objectstore.ObjectID
	}
	var candidates []candidate
	for _, entry := range refNames {
		seq, ok := seqFromRef(layout, entry.Name)
		if !ok {
			continue
		}
		candidates = append(candidates, candidate{seq: seq, objID: entry.ObjectID})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].seq > candidates[j].seq })

	for _, c := range candidates {
		cp, err := Load(ctx, store, c.objID)
		if err != nil {
			return nil, "", err
		}

		usable := true
		for w, frontierHead := range cp.Frontier {
			head, ok := currentHeads[w]
			if !ok {
				usable = false
				break
			}
			ok2, err := isAncestorOrEqual(ctx, store, frontierHead, head)
			if err != nil {
				return nil, "", fmt.Errorf("checkpoint: ancestor check: %w", err)
			}
			if !ok2 {
				usable = false
				break
			}
		}
		if usable {
			return cp, c.objID, nil
		}
	}
	return nil, "", ErrNoUsableCheckpoint
}
