package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"sync/atomic"
)

// Category classifies how the shader compiler treats a node kind.
type Category uint8

const (
	categoryUndefined Category = iota
	// CategoryShape2D nodes are leaves evaluated in 2D space.
	CategoryShape2D
	// CategoryShape3D nodes are leaves evaluated in 3D space.
	CategoryShape3D
	// CategoryOperation nodes combine the distances of their inputs.
	CategoryOperation
	// CategoryDomainTransform nodes modify the coordinate passed to their single input.
	CategoryDomainTransform
	// CategoryField nodes are procedural leaves such as gyroids and ripples.
	CategoryField
)

func (c Category) String() string {
	switch c {
	case CategoryShape2D:
		return "shape-2d"
	case CategoryShape3D:
		return "shape-3d"
	case CategoryOperation:
		return "operation"
	case CategoryDomainTransform:
		return "domain-transform"
	case CategoryField:
		return "field"
	}
	return fmt.Sprintf("category(%d)", uint8(c))
}

// IsLeaf reports whether nodes of the category never evaluate inputs.
func (c Category) IsLeaf() bool {
	return c == CategoryShape2D || c == CategoryShape3D || c == CategoryField
}

// Space is the coordinate space a definition's function operates in.
type Space uint8

const (
	spaceUndefined Space = iota
	Space2D
	Space3D
	// SpaceBoth definitions provide a GLSL overload per space.
	SpaceBoth
)

func (s Space) String() string {
	switch s {
	case Space2D:
		return "2d"
	case Space3D:
		return "3d"
	case SpaceBoth:
		return "both"
	}
	return fmt.Sprintf("space(%d)", uint8(s))
}

// Cost is a coarse hint of how expensive a node's function is to evaluate per pixel.
type Cost uint8

const (
	CostLow Cost = iota
	CostMedium
	CostHigh
)

// Param is a tunable input of a [Definition]. Its value is fed
// to the node's GLSL function as a uniform, in declaration order.
type Param struct {
	ID      string
	Type    ParamType
	Min     float32
	Max     float32
	Step    float32
	Default Value
}

// Definition describes one kind of node: its category, parameters and the
// GLSL function implementing it.
//
// The GLSL function's first argument is the coordinate (vec2 or vec3) for
// leaves and transforms, or one float per input for operations. Parameters follow
// in the order of Params.
type Definition struct {
	ID       string
	Name     string
	Category Category
	Space    Space
	Params   []Param
	// Inputs is the number of input slots. Only operations and transforms declare inputs.
	Inputs int
	// Targets lists the parameter ids that modulation rules may target.
	Targets []string
	Cost    Cost
	// Source is the GLSL function definition. For SpaceBoth definitions Source is the 2D overload.
	Source []byte
	// Source3D is the 3D overload of a SpaceBoth definition. It must share Source's function name.
	Source3D []byte

	fnName string
}

// FuncName returns the GLSL function name parsed from the definition's source during registration.
func (def *Definition) FuncName() string { return def.fnName }

// Param returns the parameter with the given id.
func (def *Definition) Param(id string) (*Param, bool) {
	for i := range def.Params {
		if def.Params[i].ID == id {
			return &def.Params[i], true
		}
	}
	return nil, false
}

// SourceFor returns the GLSL source that evaluates in the requested space.
// If the definition does not natively support the space its primary source is returned with ok=false.
func (def *Definition) SourceFor(is3D bool) (src []byte, ok bool) {
	switch def.Space {
	case SpaceBoth:
		if is3D && len(def.Source3D) > 0 {
			return def.Source3D, true
		}
		return def.Source, true // Operations are space agnostic.
	case Space3D:
		return def.Source, is3D
	default:
		return def.Source, !is3D
	}
}

// Is3D reports whether the primary source of the definition takes a vec3 coordinate.
func (def *Definition) Is3D() bool { return def.Space == Space3D }

// ErrSealed is returned by [Registry.Register] once the registry has been queried.
var ErrSealed = errors.New("catalog: registration after first query")

// Registry holds the node definitions available to graphs. Definitions are
// registered at start-up and the registry seals itself on first query. A
// sealed registry is read-only and may be shared between goroutines.
type Registry struct {
	defs   []*Definition
	index  map[string]*Definition
	sealed atomic.Bool
}

// NewRegistry returns an empty registry ready for registration.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]*Definition)}
}

// Register validates and appends definitions. Either all definitions are
// registered or none are.
func (r *Registry) Register(defs ...Definition) error {
	if r.sealed.Load() {
		return ErrSealed
	}
	if r.index == nil {
		r.index = make(map[string]*Definition)
	}
	var errs []error
	added := make([]*Definition, 0, len(defs))
	seen := make(map[string]bool, len(defs))
	for i := range defs {
		def := defs[i] // Copy so callers can't mutate registered state.
		err := def.validate()
		if err == nil && (r.index[def.ID] != nil || seen[def.ID]) {
			err = fmt.Errorf("catalog: duplicate definition id %q", def.ID)
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		seen[def.ID] = true
		def.Params = append([]Param(nil), def.Params...)
		def.Targets = append([]string(nil), def.Targets...)
		added = append(added, &def)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	for _, def := range added {
		r.defs = append(r.defs, def)
		r.index[def.ID] = def
	}
	return nil
}

// Get returns the definition registered under id. The returned definition must not be modified.
func (r *Registry) Get(id string) (*Definition, bool) {
	r.sealed.Store(true)
	def, ok := r.index[id]
	return def, ok
}

// ByCategory returns all definitions of category c in registration order.
func (r *Registry) ByCategory(c Category) []*Definition {
	r.sealed.Store(true)
	var defs []*Definition
	for _, def := range r.defs {
		if def.Category == c {
			defs = append(defs, def)
		}
	}
	return defs
}

// All returns every definition in registration order.
func (r *Registry) All() []*Definition {
	r.sealed.Store(true)
	return append([]*Definition(nil), r.defs...)
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int { return len(r.defs) }

func (def *Definition) validate() error {
	if def.ID == "" {
		return errors.New("catalog: empty definition id")
	}
	switch def.Category {
	case CategoryShape2D, CategoryShape3D, CategoryField:
		if def.Inputs != 0 {
			return fmt.Errorf("catalog: %s %q cannot declare inputs", def.Category, def.ID)
		}
	case CategoryOperation:
		if def.Inputs < 1 {
			return fmt.Errorf("catalog: operation %q needs at least one input", def.ID)
		}
	case CategoryDomainTransform:
		if def.Inputs != 1 {
			return fmt.Errorf("catalog: domain transform %q must declare exactly one input", def.ID)
		}
	default:
		return fmt.Errorf("catalog: %q has undefined category", def.ID)
	}
	switch def.Space {
	case Space2D, Space3D, SpaceBoth:
	default:
		return fmt.Errorf("catalog: %q has undefined space", def.ID)
	}
	if def.Category == CategoryShape2D && def.Space != Space2D {
		return fmt.Errorf("catalog: 2D shape %q must be in 2D space", def.ID)
	} else if def.Category == CategoryShape3D && def.Space != Space3D {
		return fmt.Errorf("catalog: 3D shape %q must be in 3D space", def.ID)
	}
	for i, p := range def.Params {
		if p.ID == "" {
			return fmt.Errorf("catalog: %q param %d has empty id", def.ID, i)
		} else if !p.Type.valid() {
			return fmt.Errorf("catalog: %q param %q has invalid type", def.ID, p.ID)
		}
		for _, prev := range def.Params[:i] {
			if prev.ID == p.ID {
				return fmt.Errorf("catalog: %q duplicate param id %q", def.ID, p.ID)
			}
		}
	}
	for _, target := range def.Targets {
		if _, ok := def.Param(target); !ok {
			return fmt.Errorf("catalog: %q modulation target %q is not a parameter", def.ID, target)
		}
	}
	name, err := parseFuncName(def.Source)
	if err != nil {
		return fmt.Errorf("catalog: %q source: %w", def.ID, err)
	}
	def.fnName = name
	if def.Space == SpaceBoth && def.Category != CategoryOperation {
		name3, err := parseFuncName(def.Source3D)
		if err != nil {
			return fmt.Errorf("catalog: %q 3D source: %w", def.ID, err)
		} else if name3 != name {
			return fmt.Errorf("catalog: %q 3D overload named %q, want %q", def.ID, name3, name)
		}
	}
	return nil
}

// parseFuncName extracts the function name from a GLSL function definition
// of the form "<type> <name>(<args>) { ... }".
func parseFuncName(src []byte) (string, error) {
	src = bytes.TrimSpace(src)
	fnNameEnd := bytes.IndexByte(src, '(')
	fnNameStart := bytes.IndexByte(src, ' ')
	if fnNameEnd < 0 || fnNameStart < 0 || fnNameStart > fnNameEnd {
		return "", errors.New("unable to parse function name")
	}
	name := bytes.TrimSpace(src[fnNameStart:fnNameEnd])
	if len(name) == 0 {
		return "", errors.New("empty function name")
	} else if bytes.IndexByte(src, '{') < fnNameEnd || bytes.LastIndexByte(src, '}') < 0 {
		return "", errors.New("missing function body")
	}
	return string(name), nil
}
