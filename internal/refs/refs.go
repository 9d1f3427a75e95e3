// Package refs computes the ref paths WarpGraph reads and writes in the
// object store, under a configurable root prefix.
//
// Layout (root defaults to "warp"):
//
//	<root>/<graphName>/writers/<writerId>      writer chain head
//	<root>/<graphName>/checkpoints/<n>         published checkpoints
//	<root>/<graphName>/seek-cache/<key>        optional seek-cache entries
package refs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/orneryd/warpgraph/internal/writerid"
)

// DefaultRoot is the ref namespace root used when none is configured.
const DefaultRoot = "warp"

// Layout computes ref paths for one graph under a root prefix.
type Layout struct {
	Root      string
	GraphName string
}

// New returns a Layout, defaulting root to DefaultRoot when empty.
func New(root, graphName string) Layout {
	if root == "" {
		root = DefaultRoot
	}
	return Layout{Root: root, GraphName: graphName}
}

func (l Layout) graphPrefix() string {
	return fmt.Sprintf("%s/%s", l.Root, l.GraphName)
}

// WritersPrefix is the namespace under which every writer's chain head ref
// lives.
func (l Layout) WritersPrefix() string {
	return l.graphPrefix() + "/writers/"
}

// WriterRef is the ref name holding writer w's current chain head.
func (l Layout) WriterRef(w writerid.ID) string {
	return l.WritersPrefix() + string(w)
}

// CheckpointsPrefix is the namespace under which published checkpoints
// live.
func (l Layout) CheckpointsPrefix() string {
	return l.graphPrefix() + "/checkpoints/"
}

// CheckpointRef is the ref name for the n-th published checkpoint.
func (l Layout) CheckpointRef(n uint64) string {
	return l.CheckpointsPrefix() + strconv.FormatUint(n, 10)
}

// SeekCachePrefix is the namespace under which seek-cache entries live.
func (l Layout) SeekCachePrefix() string {
	return l.graphPrefix() + "/seek-cache/"
}

// SeekCacheRef is the ref name for a seek-cache entry keyed by key.
func (l Layout) SeekCacheRef(key string) string {
	return l.SeekCachePrefix() + key
}

// WriterFromRef extracts the writer ID from a ref name under
// WritersPrefix, validating it along the way. It returns false if name is
// not under this layout's writers namespace.
func (l Layout) WriterFromRef(name string) (writerid.ID, bool, error) {
	prefix := l.WritersPrefix()
	if !strings.HasPrefix(name, prefix) {
		return "", false, nil
	}
	id := writerid.ID(strings.TrimPrefix(name, prefix))
	if err := writerid.Validate(id); err != nil {
		return "", true, fmt.Errorf("refs: ref %q does not decode to a valid writer id: %w", name, err)
	}
	return id, true, nil
}
