package sdfgraph

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/soypat/sdfgraph/catalog"
)

// Mode is the render mode of a graph, either [Mode2D] or [Mode3D].
type Mode string

const (
	Mode2D Mode = "2d"
	Mode3D Mode = "3d"
)

// ParseMode parses "2d" or "3d".
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		return "", fmt.Errorf("invalid render mode %q, want \"2d\" or \"3d\"", s)
	}
	return m, nil
}

// Valid reports whether m is one of the defined modes.
func (m Mode) Valid() bool { return m == Mode2D || m == Mode3D }

// Is3D reports whether the graph's ambient coordinate is a vec3.
func (m Mode) Is3D() bool { return m == Mode3D }

func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid render mode %q", string(m))
	}
	return []byte(m), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	got, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = got
	return nil
}

// Instance is one placed node in a graph.
type Instance struct {
	ID     string `json:"id"`
	NodeID string `json:"nodeId"`
	// Params maps parameter ids to values. Keys not declared by the node's
	// definition are ignored and missing keys take the definition's default.
	Params  map[string]catalog.Value `json:"params,omitempty"`
	Enabled bool                     `json:"enabled"`
	Label   string                   `json:"label,omitempty"`
	// Color is an optional material color, see [ParseColor].
	Color string `json:"color,omitempty"`
}

// UnmarshalJSON decodes an instance. Instances missing the "enabled" field are enabled.
func (inst *Instance) UnmarshalJSON(b []byte) error {
	type plain Instance
	aux := plain{Enabled: true}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*inst = Instance(aux)
	return nil
}

// Value returns the instance's value for param or the definition default if unset.
func (inst *Instance) Value(p *catalog.Param) catalog.Value {
	if v, ok := inst.Params[p.ID]; ok {
		return v
	}
	return p.Default
}

// Connection is a data-flow edge: the output of From feeds input Slot of To.
type Connection struct {
	From string `json:"from"`
	To   string `json:"to"`
	Slot int    `json:"slot"`
}

// Graph is the user document compiled into a shader. The last instance is the root.
// An empty graph is valid and compiles to a shader that renders nothing.
type Graph struct {
	Instances   []Instance   `json:"instances"`
	Connections []Connection `json:"connections"`
	Mode        Mode         `json:"mode"`
}

// Root returns the designated output instance of the graph.
func (g *Graph) Root() (*Instance, bool) {
	if len(g.Instances) == 0 {
		return nil, false
	}
	return &g.Instances[len(g.Instances)-1], true
}

// Instance returns the instance with the given id.
func (g *Graph) Instance(id string) (*Instance, bool) {
	idx := g.indexOf(id)
	if idx < 0 {
		return nil, false
	}
	return &g.Instances[idx], true
}

func (g *Graph) indexOf(id string) int {
	for i := range g.Instances {
		if g.Instances[i].ID == id {
			return i
		}
	}
	return -1
}

// InputsOf returns the connections feeding instance id sorted by slot.
func (g *Graph) InputsOf(id string) []Connection {
	var conns []Connection
	for _, c := range g.Connections {
		if c.To == id {
			conns = append(conns, c)
		}
	}
	slices.SortStableFunc(conns, func(a, b Connection) int { return a.Slot - b.Slot })
	return conns
}

// Clone returns a deep copy of the graph that shares no memory with g.
func (g Graph) Clone() Graph {
	clone := Graph{
		Instances:   make([]Instance, len(g.Instances)),
		Connections: slices.Clone(g.Connections),
		Mode:        g.Mode,
	}
	for i, inst := range g.Instances {
		inst.Params = maps.Clone(inst.Params)
		clone.Instances[i] = inst
	}
	return clone
}
