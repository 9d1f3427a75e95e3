// Package query implements WarpGraph's query builder: a pull-based
// pipeline of match/where/outgoing/incoming/select stages over a
// materialized state.State (§4.9 of the spec this package implements).
package query

import (
	"iter"
	"regexp"
	"strings"

	"github.com/orneryd/warpgraph/internal/ops"
	"github.com/orneryd/warpgraph/internal/state"
)

// Row is one result flowing through the pipeline: a node ID plus whatever
// projected fields a select stage has attached.
type Row struct {
	NodeID     string
	Projection map[string]ops.Value
}

// stage transforms a sequence of rows into another sequence of rows. Each
// stage pulls from the previous stage lazily — nothing runs until Run
// drives the final iterator.
type stage func(s *state.State, in iter.Seq[Row]) iter.Seq[Row]

// Builder composes stages; Run executes the full pipeline against a
// state.
type Builder struct {
	stages []stage
}

// New returns an empty Builder. Call Match first, or Run immediately to
// enumerate every alive node.
func New() *Builder {
	return &Builder{}
}

// Match filters nodes by a glob pattern on their ID: '*' matches any
// run of characters (including '/'), '?' matches exactly one, and every
// other character matches itself.
func (b *Builder) Match(pattern string) *Builder {
	expr := regexp.QuoteMeta(pattern)
	expr = strings.ReplaceAll(expr, `\*`, `.*`)
	expr = strings.ReplaceAll(expr, `\?`, `.`)
	re := regexp.MustCompile(`^(?s:` + expr + `)$`)
	b.stages = append(b.stages, func(s *state.State, in iter.Seq[Row]) iter.Seq[Row] {
		return func(yield func(Row) bool) {
			for row := range in {
				if re.MatchString(row.NodeID) && !yield(row) {
					return
				}
			}
		}
	})
	return b
}

// Where narrows the sequence to nodes whose properties satisfy every
// required equality in filter.
func (b *Builder) Where(filter map[string]ops.Value) *Builder {
	b.stages = append(b.stages, func(s *state.State, in iter.Seq[Row]) iter.Seq[Row] {
		return func(yield func(Row) bool) {
			for row := range in {
				props := s.NodeProperties(row.NodeID)
				if matchesFilter(props, filter) && !yield(row) {
					return
				}
			}
		}
	})
	return b
}

func matchesFilter(props map[string]ops.Value, filter map[string]ops.Value) bool {
	for k, want := range filter {
		got, ok := props[k]
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b ops.Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ops.ValueString:
		return a.Str == b.Str
	case ops.ValueNumber:
		return a.Num == b.Num
	case ops.ValueBool:
		return a.Bool == b.Bool
	case ops.ValueNull:
		return true
	case ops.ValueBytes:
		return string(a.Bytes) == string(b.Bytes)
	case ops.ValueRef:
		return a.RefObj == b.RefObj
	default:
		return false
	}
}

// Outgoing replaces each row with the set of nodes reachable by an
// outgoing edge carrying the given label (any label if empty).
func (b *Builder) Outgoing(label string) *Builder {
	b.stages = append(b.stages, navigateStage(label, true))
	return b
}

// Incoming replaces each row with the set of nodes reachable by an
// incoming edge carrying the given label (any label if empty).
func (b *Builder) Incoming(label string) *Builder {
	b.stages = append(b.stages, navigateStage(label, false))
	return b
}

func navigateStage(label string, outgoing bool) stage {
	return func(s *state.State, in iter.Seq[Row]) iter.Seq[Row] {
		return func(yield func(Row) bool) {
			for row := range in {
				for _, key := range s.AliveEdges() {
					var from, to string
					if outgoing {
						from, to = key.From, key.To
					} else {
						from, to = key.To, key.From
					}
					if from != row.NodeID {
						continue
					}
					if label != "" && key.Label != label {
						continue
					}
					if !yield(Row{NodeID: to}) {
						return
					}
				}
			}
		}
	}
}

// Select attaches a projection of the named properties to each row,
// fetched from the current materialized state.
func (b *Builder) Select(fields ...string) *Builder {
	b.stages = append(b.stages, func(s *state.State, in iter.Seq[Row]) iter.Seq[Row] {
		return func(yield func(Row) bool) {
			for row := range in {
				props := s.NodeProperties(row.NodeID)
				projected := make(map[string]ops.Value, len(fields))
				for _, f := range fields {
					if v, ok := props[f]; ok {
						projected[f] = v
					}
				}
				row.Projection = projected
				if !yield(row) {
					return
				}
			}
		}
	})
	return b
}

// Result is what Run returns: the matched nodes, each with any
// projection Select attached.
type Result struct {
	Nodes []Row
}

// Run drives the full pipeline against s and collects every row. Each
// stage consumes the previous stage's lazy sequence; nothing is computed
// eagerly until this call.
func (b *Builder) Run(s *state.State) Result {
	seq := func(yield func(Row) bool) {
		for _, id := range s.AliveNodes() {
			if !yield(Row{NodeID: id}) {
				return
			}
		}
	}

	for _, st := range b.stages {
		next := st
		prev := seq
		seq = func(yield func(Row) bool) {
			next(s, prev)(yield)
		}
	}

	var out Result
	for row := range seq {
		out.Nodes = append(out.Nodes, row)
	}
	return out
}
