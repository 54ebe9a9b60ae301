package sdfgraph

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/soypat/sdfgraph/catalog"
)

// Scene holds a user-edited [Graph] and exposes the mutation API used by editors
// and programmatic loaders. Every mutation validates its arguments first and leaves
// the scene untouched on error.
//
// A Scene is not safe for concurrent use. Take a [Scene.Snapshot] before handing
// the graph to a compilation running on another goroutine.
type Scene struct {
	reg     *catalog.Registry
	g       Graph
	version uint64
	nextID  int
}

// NewScene returns an empty scene in the given render mode. Scenes with an invalid
// mode default to [Mode2D].
func NewScene(reg *catalog.Registry, mode Mode) *Scene {
	if !mode.Valid() {
		mode = Mode2D
	}
	return &Scene{reg: reg, g: Graph{Mode: mode}, version: 1}
}

// LoadScene creates a scene from a graph produced by a preset loader. The graph is
// copied. Validation problems are returned alongside the scene, which is still usable:
// the compiler reports the same problems and yields an inert shader.
func LoadScene(reg *catalog.Registry, g Graph) (*Scene, []error) {
	s := &Scene{reg: reg, g: g.Clone(), version: 1}
	if !s.g.Mode.Valid() {
		s.g.Mode = Mode2D
	}
	s.nextID = len(s.g.Instances)
	return s, Validate(reg, &s.g)
}

// Registry returns the registry the scene validates against.
func (s *Scene) Registry() *catalog.Registry { return s.reg }

// Version returns a stamp that increases with every structural mutation, that is,
// every change that alters the generated shader source.
func (s *Scene) Version() uint64 { return s.version }

// Mode returns the scene's render mode.
func (s *Scene) Mode() Mode { return s.g.Mode }

// Snapshot returns a deep copy of the scene's graph.
func (s *Scene) Snapshot() Graph { return s.g.Clone() }

// Instances returns the scene's instances. The slice is owned by the scene and must not be modified;
// it is meant for the per-frame uniform push.
func (s *Scene) Instances() []Instance { return s.g.Instances }

func (s *Scene) touch() { s.version++ }

// SetMode changes the render mode.
func (s *Scene) SetMode(m Mode) error {
	if !m.Valid() {
		return fmt.Errorf("invalid render mode %q", string(m))
	} else if m != s.g.Mode {
		s.g.Mode = m
		s.touch()
	}
	return nil
}

// AddNode appends a new enabled instance of nodeID with default parameter values and
// returns its generated id. The new instance becomes the graph's root.
func (s *Scene) AddNode(nodeID string) (string, error) {
	def, ok := s.reg.Get(nodeID)
	if !ok {
		return "", fmt.Errorf("node %q is not registered", nodeID)
	}
	prefix := strings.ReplaceAll(nodeID, "-", "_")
	var id string
	for {
		s.nextID++
		id = prefix + strconv.Itoa(s.nextID)
		if s.g.indexOf(id) < 0 {
			break
		}
	}
	params := make(map[string]catalog.Value, len(def.Params))
	for _, p := range def.Params {
		params[p.ID] = p.Default
	}
	s.g.Instances = append(s.g.Instances, Instance{
		ID:      id,
		NodeID:  nodeID,
		Params:  params,
		Enabled: true,
	})
	s.touch()
	return id, nil
}

// RemoveNode deletes an instance and every connection touching it.
func (s *Scene) RemoveNode(id string) error {
	idx := s.g.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("instance %q not found", id)
	}
	s.g.Instances = slices.Delete(s.g.Instances, idx, idx+1)
	s.g.Connections = slices.DeleteFunc(s.g.Connections, func(c Connection) bool {
		return c.From == id || c.To == id
	})
	s.touch()
	return nil
}

// MoveNode moves an instance to a new position in the instance list. Moving an instance
// to the last position makes it the graph's root.
func (s *Scene) MoveNode(id string, newIndex int) error {
	idx := s.g.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("instance %q not found", id)
	} else if newIndex < 0 || newIndex >= len(s.g.Instances) {
		return fmt.Errorf("index %d out of range", newIndex)
	}
	if idx == newIndex {
		return nil
	}
	inst := s.g.Instances[idx]
	s.g.Instances = slices.Delete(s.g.Instances, idx, idx+1)
	s.g.Instances = slices.Insert(s.g.Instances, newIndex, inst)
	s.touch()
	return nil
}

// Connect feeds the output of from into input slot of to. An existing connection into
// the same slot is replaced. Connections that would exceed the target's input count,
// feed a leaf or close a cycle are rejected.
func (s *Scene) Connect(from, to string, slot int) error {
	if _, ok := s.g.Instance(from); !ok {
		return fmt.Errorf("instance %q not found", from)
	}
	target, ok := s.g.Instance(to)
	if !ok {
		return fmt.Errorf("instance %q not found", to)
	}
	def, ok := s.reg.Get(target.NodeID)
	if !ok {
		return fmt.Errorf("instance %q references unregistered node %q", to, target.NodeID)
	}
	if def.Category.IsLeaf() {
		return fmt.Errorf("%s %q takes no inputs", def.Category, to)
	} else if slot < 0 || slot >= def.Inputs {
		return fmt.Errorf("slot %d out of range, %q declares %d inputs", slot, def.ID, def.Inputs)
	} else if from == to || reaches(&s.g, from, to) {
		return errors.New("connection would create a cycle")
	}
	for i := range s.g.Connections {
		c := &s.g.Connections[i]
		if c.To == to && c.Slot == slot {
			if c.From != from {
				c.From = from
				s.touch()
			}
			return nil
		}
	}
	s.g.Connections = append(s.g.Connections, Connection{From: from, To: to, Slot: slot})
	s.touch()
	return nil
}

// Disconnect removes the connection into slot of to. It reports whether a connection was removed.
func (s *Scene) Disconnect(to string, slot int) bool {
	n := len(s.g.Connections)
	s.g.Connections = slices.DeleteFunc(s.g.Connections, func(c Connection) bool {
		return c.To == to && c.Slot == slot
	})
	if len(s.g.Connections) == n {
		return false
	}
	s.touch()
	return true
}

// SetParam sets a parameter value. It only changes uniform values, so the scene version is kept.
func (s *Scene) SetParam(id, param string, v catalog.Value) error {
	inst, ok := s.g.Instance(id)
	if !ok {
		return fmt.Errorf("instance %q not found", id)
	}
	def, ok := s.reg.Get(inst.NodeID)
	if !ok {
		return fmt.Errorf("instance %q references unregistered node %q", id, inst.NodeID)
	}
	if _, ok := def.Param(param); !ok {
		return fmt.Errorf("node %q has no parameter %q", def.ID, param)
	}
	if inst.Params == nil {
		inst.Params = make(map[string]catalog.Value, len(def.Params))
	}
	inst.Params[param] = v
	return nil
}

// SetEnabled toggles an instance. Disabled shapes and operations render nothing and
// disabled transforms pass their input through unchanged.
func (s *Scene) SetEnabled(id string, enabled bool) error {
	inst, ok := s.g.Instance(id)
	if !ok {
		return fmt.Errorf("instance %q not found", id)
	}
	if inst.Enabled != enabled {
		inst.Enabled = enabled
		s.touch()
	}
	return nil
}

// SetLabel sets an instance's display label.
func (s *Scene) SetLabel(id, label string) error {
	inst, ok := s.g.Instance(id)
	if !ok {
		return fmt.Errorf("instance %q not found", id)
	}
	inst.Label = label
	return nil
}

// SetColor sets an instance's material color. An empty string clears it.
func (s *Scene) SetColor(id, color string) error {
	inst, ok := s.g.Instance(id)
	if !ok {
		return fmt.Errorf("instance %q not found", id)
	}
	if color != "" {
		if _, err := ParseColor(color); err != nil {
			return err
		}
	}
	if inst.Color != color {
		inst.Color = color
		s.touch()
	}
	return nil
}
