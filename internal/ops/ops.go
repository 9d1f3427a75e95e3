// Package ops defines WarpGraph's tagged operation variants and the patch
// envelope that bundles them into one commit.
//
// Operations use a sum-type-by-tag encoding (field Tag plus only the
// fields that tag uses) rather than one interface per variant, so an
// unknown tag fails loudly at the decode boundary (UnknownOp) instead of
// silently at the reducer — see Design Notes in the spec this implements.
package ops

import (
	"errors"
	"fmt"

	"github.com/orneryd/warpgraph/internal/writerid"
)

// Tag identifies an operation variant. Wire values match the spec's
// patch blob format (§6): na, nr, ea, er, ps, pe.
type Tag string

const (
	TagNodeAdd      Tag = "na"
	TagNodeRemove   Tag = "nr"
	TagEdgeAdd      Tag = "ea"
	TagEdgeRemove   Tag = "er"
	TagPropSet      Tag = "ps"
	TagEdgePropSet  Tag = "pe"
)

// ErrUnknownOp is returned when a patch contains a tag this build does not
// recognize. It is fatal for materialize per §4.6.
var ErrUnknownOp = errors.New("ops: unknown operation tag")

// ScopeKind distinguishes a node-scoped from an edge-scoped property.
type ScopeKind string

const (
	ScopeNode ScopeKind = "node"
	ScopeEdge ScopeKind = "edge"
)

// Scope names the entity a PropSet operation targets.
type Scope struct {
	Kind  ScopeKind
	Node  string // valid when Kind == ScopeNode
	From  string // valid when Kind == ScopeEdge
	To    string
	Label string
}

// NodeScope builds a node-targeted Scope.
func NodeScope(id string) Scope { return Scope{Kind: ScopeNode, Node: id} }

// EdgeScope builds an edge-targeted Scope.
func EdgeScope(from, to, label string) Scope {
	return Scope{Kind: ScopeEdge, From: from, To: to, Label: label}
}

// ValueKind tags the dynamic type carried by a Value.
type ValueKind string

const (
	ValueString ValueKind = "string"
	ValueNumber ValueKind = "number"
	ValueBool   ValueKind = "bool"
	ValueNull   ValueKind = "null"
	ValueBytes  ValueKind = "bytes"
	ValueRef    ValueKind = "ref" // content-addressed reference to an external blob
)

// Value is an inline primitive or a content-addressed reference, per §3.
type Value struct {
	Kind   ValueKind
	Str    string
	Num    float64
	Bool   bool
	Bytes  []byte
	RefObj string // object ID, valid when Kind == ValueRef
}

func StringValue(s string) Value  { return Value{Kind: ValueString, Str: s} }
func NumberValue(n float64) Value { return Value{Kind: ValueNumber, Num: n} }
func BoolValue(b bool) Value      { return Value{Kind: ValueBool, Bool: b} }
func NullValue() Value            { return Value{Kind: ValueNull} }
func BytesValue(b []byte) Value   { return Value{Kind: ValueBytes, Bytes: b} }
func RefValue(objectID string) Value {
	return Value{Kind: ValueRef, RefObj: objectID}
}

// EdgeKey identifies an edge by its (from, to, label) triple.
type EdgeKey struct {
	From  string
	To    string
	Label string
}

func (k EdgeKey) String() string {
	return fmt.Sprintf("%s->%s[%s]", k.From, k.To, k.Label)
}

// Op is one tagged operation within a patch. Exactly the fields relevant
// to Tag are populated; others are zero.
type Op struct {
	Tag Tag

	NodeID string // na, nr

	Edge EdgeKey // ea, er, pe

	Scope Scope // ps
	Key   string
	Value Value
}

func NodeAdd(id string) Op    { return Op{Tag: TagNodeAdd, NodeID: id} }
func NodeRemove(id string) Op { return Op{Tag: TagNodeRemove, NodeID: id} }

func EdgeAdd(from, to, label string) Op {
	return Op{Tag: TagEdgeAdd, Edge: EdgeKey{From: from, To: to, Label: label}}
}

func EdgeRemove(from, to, label string) Op {
	return Op{Tag: TagEdgeRemove, Edge: EdgeKey{From: from, To: to, Label: label}}
}

func PropSet(scope Scope, key string, value Value) Op {
	return Op{Tag: TagPropSet, Scope: scope, Key: key, Value: value}
}

func EdgePropSet(from, to, label, key string, value Value) Op {
	return Op{
		Tag:   TagEdgePropSet,
		Edge:  EdgeKey{From: from, To: to, Label: label},
		Key:   key,
		Value: value,
	}
}

// Validate checks that op carries a known tag and the fields that tag
// requires are present.
func Validate(op Op) error {
	switch op.Tag {
	case TagNodeAdd, TagNodeRemove:
		if op.NodeID == "" {
			return fmt.Errorf("ops: %s requires a node id", op.Tag)
		}
	case TagEdgeAdd, TagEdgeRemove:
		if op.Edge.From == "" || op.Edge.To == "" {
			return fmt.Errorf("ops: %s requires from/to", op.Tag)
		}
	case TagPropSet:
		if op.Scope.Kind == "" || op.Key == "" {
			return fmt.Errorf("ops: %s requires a scope and key", op.Tag)
		}
	case TagEdgePropSet:
		if op.Edge.From == "" || op.Edge.To == "" || op.Key == "" {
			return fmt.Errorf("ops: %s requires from/to/key", op.Tag)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOp, op.Tag)
	}
	return nil
}

// Patch is an atomic, CRDT-encoded batch of operations committed by one
// writer, per §3.
type Patch struct {
	SchemaVersion uint
	Writer        writerid.ID
	Lamport       uint64
	Ops           []Op
}

// CurrentSchemaVersion is the patch blob schema version this build writes.
const CurrentSchemaVersion uint = 1

// Validate checks every op in the patch and that the envelope itself is
// well-formed.
func (p Patch) Validate() error {
	if p.Writer == "" {
		return errors.New("ops: patch has no writer")
	}
	for i, op := range p.Ops {
		if err := Validate(op); err != nil {
			return fmt.Errorf("ops: op %d: %w", i, err)
		}
	}
	return nil
}
