package state

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/orneryd/warpgraph/internal/ops"
)

// DebugDump is a human-readable snapshot of a State's alive-set, meant
// for operator inspection, never for round-tripping — use Encode/Decode
// for that.
type DebugDump struct {
	Nodes []DebugNode `yaml:"nodes"`
	Edges []DebugEdge `yaml:"edges"`
}

// DebugNode is one alive node with its visible properties.
type DebugNode struct {
	ID         string         `yaml:"id"`
	Generation uint64         `yaml:"generation"`
	Props      map[string]any `yaml:"props,omitempty"`
}

// DebugEdge is one alive edge with its visible properties.
type DebugEdge struct {
	From       string         `yaml:"from"`
	To         string         `yaml:"to"`
	Label      string         `yaml:"label"`
	Generation uint64         `yaml:"generation"`
	Props      map[string]any `yaml:"props,omitempty"`
}

// Dump builds a DebugDump of every currently-alive node and edge in s.
func Dump(s *State) DebugDump {
	var d DebugDump
	for id, ns := range s.Nodes {
		if !ns.Alive() {
			continue
		}
		d.Nodes = append(d.Nodes, DebugNode{
			ID:         id,
			Generation: ns.Generation,
			Props:      plainProps(s.NodeProperties(id)),
		})
	}
	for key, es := range s.Edges {
		if !es.Alive() {
			continue
		}
		d.Edges = append(d.Edges, DebugEdge{
			From:       key.From,
			To:         key.To,
			Label:      key.Label,
			Generation: es.Generation,
			Props:      plainProps(s.EdgeProperties(key.From, key.To, key.Label)),
		})
	}
	return d
}

// DumpYAML renders s's debug dump as YAML.
func DumpYAML(s *State) ([]byte, error) {
	b, err := yaml.Marshal(Dump(s))
	if err != nil {
		return nil, fmt.Errorf("state: dump yaml: %w", err)
	}
	return b, nil
}

func plainProps(props map[string]ops.Value) map[string]any {
	if len(props) == 0 {
		return nil
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = plainValue(v)
	}
	return out
}

func plainValue(v ops.Value) any {
	switch v.Kind {
	case ops.ValueString:
		return v.Str
	case ops.ValueNumber:
		return v.Num
	case ops.ValueBool:
		return v.Bool
	case ops.ValueBytes:
		return v.Bytes
	case ops.ValueRef:
		return v.RefObj
	default:
		return nil
	}
}
