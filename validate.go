package sdfgraph

import (
	"fmt"

	"github.com/soypat/sdfgraph/catalog"
)

// ErrKind classifies a [GraphError].
type ErrKind uint8

const (
	errKindUndefined ErrKind = iota
	// ErrKindUnknownNode is an instance referencing an unregistered node id.
	ErrKindUnknownNode
	// ErrKindMissingInstance is a connection referencing a non-existent instance.
	ErrKindMissingInstance
	// ErrKindSlotRange is a connection into a slot the target's definition does not declare.
	ErrKindSlotRange
	// ErrKindDuplicateID is two instances sharing an id.
	ErrKindDuplicateID
	// ErrKindDuplicateSlot is two connections into the same input slot.
	ErrKindDuplicateSlot
	// ErrKindCycle is a set of connections forming a cycle.
	ErrKindCycle
	// ErrKindInputToLeaf is a connection into a shape or field, which take no inputs.
	ErrKindInputToLeaf
	// ErrKindMode is an invalid render mode.
	ErrKindMode
	// ErrKindSpace is a node evaluated in a coordinate space it cannot work in.
	ErrKindSpace
	// ErrKindInternal is an unexpected failure during shader emission.
	ErrKindInternal
	// ErrKindTooLarge is a graph whose emitted expression exceeds the compiler's budget,
	// typically from shared inputs reached through many paths.
	ErrKindTooLarge
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindUnknownNode:
		return "unknown node"
	case ErrKindMissingInstance:
		return "missing instance"
	case ErrKindSlotRange:
		return "slot out of range"
	case ErrKindDuplicateID:
		return "duplicate id"
	case ErrKindDuplicateSlot:
		return "duplicate slot"
	case ErrKindCycle:
		return "cycle"
	case ErrKindInputToLeaf:
		return "input to leaf"
	case ErrKindMode:
		return "render mode"
	case ErrKindSpace:
		return "space mismatch"
	case ErrKindInternal:
		return "internal"
	case ErrKindTooLarge:
		return "too large"
	}
	return fmt.Sprintf("errkind(%d)", uint8(k))
}

// GraphError is a structured problem found in a [Graph] during validation or compilation.
type GraphError struct {
	Kind ErrKind
	// Instance is the id of the offending instance, if any.
	Instance string
	Msg      string
}

func (e *GraphError) Error() string {
	if e.Instance == "" {
		return e.Kind.String() + ": " + e.Msg
	}
	return e.Kind.String() + " at " + e.Instance + ": " + e.Msg
}

func graphErrorf(kind ErrKind, instance, format string, args ...any) *GraphError {
	return &GraphError{Kind: kind, Instance: instance, Msg: fmt.Sprintf(format, args...)}
}

// NewGraphError returns a [GraphError]. It is used by the compiler to report emission problems.
func NewGraphError(kind ErrKind, instance, format string, args ...any) *GraphError {
	return graphErrorf(kind, instance, format, args...)
}

// Validate checks g against the definitions in reg and returns every problem found
// as a [*GraphError]. Validation does not rely on instance ordering: cycles are found
// by walking the connections.
func Validate(reg *catalog.Registry, g *Graph) []error {
	var errs []error
	if !g.Mode.Valid() {
		errs = append(errs, graphErrorf(ErrKindMode, "", "invalid render mode %q", string(g.Mode)))
	}
	defs := make(map[string]*catalog.Definition, len(g.Instances))
	for i := range g.Instances {
		inst := &g.Instances[i]
		if _, dup := defs[inst.ID]; dup {
			errs = append(errs, graphErrorf(ErrKindDuplicateID, inst.ID, "instance id used more than once"))
			continue
		}
		def, ok := reg.Get(inst.NodeID)
		if !ok {
			errs = append(errs, graphErrorf(ErrKindUnknownNode, inst.ID, "node %q is not registered", inst.NodeID))
		}
		defs[inst.ID] = def // nil def marks an unknown node that still exists.
	}
	type slotKey struct {
		to   string
		slot int
	}
	slotsUsed := make(map[slotKey]bool, len(g.Connections))
	for _, c := range g.Connections {
		_, fromOK := defs[c.From]
		toDef, toOK := defs[c.To]
		if !fromOK {
			errs = append(errs, graphErrorf(ErrKindMissingInstance, c.To, "connection from non-existent instance %q", c.From))
		}
		if !toOK {
			errs = append(errs, graphErrorf(ErrKindMissingInstance, c.From, "connection to non-existent instance %q", c.To))
		}
		if !fromOK || !toOK || toDef == nil {
			continue
		}
		switch {
		case toDef.Category.IsLeaf():
			errs = append(errs, graphErrorf(ErrKindInputToLeaf, c.To, "%s %q takes no inputs", toDef.Category, toDef.ID))
		case c.Slot < 0 || c.Slot >= toDef.Inputs:
			errs = append(errs, graphErrorf(ErrKindSlotRange, c.To, "slot %d out of range, %q declares %d inputs", c.Slot, toDef.ID, toDef.Inputs))
		}
		key := slotKey{to: c.To, slot: c.Slot}
		if slotsUsed[key] {
			errs = append(errs, graphErrorf(ErrKindDuplicateSlot, c.To, "slot %d connected more than once", c.Slot))
		}
		slotsUsed[key] = true
	}
	errs = append(errs, findCycles(g)...)
	return errs
}

// findCycles runs a colored depth first search over the input edges of every instance.
func findCycles(g *Graph) []error {
	const (
		white = iota // Not visited.
		grey         // On the current DFS path.
		black        // Fully explored.
	)
	inputs := make(map[string][]string, len(g.Instances))
	for _, c := range g.Connections {
		inputs[c.To] = append(inputs[c.To], c.From)
	}
	color := make(map[string]uint8, len(g.Instances))
	var errs []error
	var visit func(id string)
	visit = func(id string) {
		color[id] = grey
		for _, child := range inputs[id] {
			switch color[child] {
			case grey:
				errs = append(errs, graphErrorf(ErrKindCycle, id, "input %q is also an ancestor", child))
			case white:
				visit(child)
			}
		}
		color[id] = black
	}
	for i := range g.Instances {
		if color[g.Instances[i].ID] == white {
			visit(g.Instances[i].ID)
		}
	}
	return errs
}

// reaches reports whether target is reachable from start by following inputs.
func reaches(g *Graph, start, target string) bool {
	seen := make(map[string]bool)
	stack := []string{start}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == target {
			return true
		} else if seen[id] {
			continue
		}
		seen[id] = true
		for _, c := range g.Connections {
			if c.To == id {
				stack = append(stack, c.From)
			}
		}
	}
	return false
}
