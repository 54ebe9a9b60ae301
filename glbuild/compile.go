package glbuild

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/soypat/geometry/ms3"
	"github.com/soypat/sdfgraph"
	"github.com/soypat/sdfgraph/catalog"
)

//go:embed visualizer_main.glsl
var visualizerMain []byte

// DefaultMaxEmittedNodes is the default number of node emissions allowed per compilation.
// Shared inputs are emitted once per path that reaches them.
const DefaultMaxEmittedNodes = 4096

// DefaultStubDistance is the distance returned by graphs that render nothing.
const DefaultStubDistance = 1e20

// Uniform is a GLSL uniform declared by a compiled shader. Each instance parameter
// reachable from the root maps to exactly one uniform.
type Uniform struct {
	// Name is the uniform's identifier in the GLSL source, see [UniformName].
	Name     string
	Instance string
	Param    string
	GLSLType string
	Type     catalog.ParamType
	Default  catalog.Value
}

// Material is a colored leaf of a compiled graph. Material id i+1 in the
// second component of map's result corresponds to Materials[i].
type Material struct {
	Instance string
	Color    ms3.Vec
}

// CompiledShader is the result of compiling a graph. Source is always a complete
// fragment program: on failure it is the stub program and Errors is non-empty.
type CompiledShader struct {
	Mode   sdfgraph.Mode
	Source string
	// Functions holds each emitted GLSL function once, in order of first use.
	Functions []string
	// MapBody is the body of the generated map function.
	MapBody   string
	Uniforms  []Uniform
	Materials []Material
	Errors    []error
	Warnings  []string
}

// Err returns the compilation errors joined or nil if compilation succeeded.
func (cs *CompiledShader) Err() error { return errors.Join(cs.Errors...) }

// OK reports whether compilation produced no errors.
func (cs *CompiledShader) OK() bool { return len(cs.Errors) == 0 }

// Uniform returns the uniform bound to an instance's parameter.
func (cs *CompiledShader) Uniform(instance, param string) (Uniform, bool) {
	for _, u := range cs.Uniforms {
		if u.Instance == instance && u.Param == param {
			return u, true
		}
	}
	return Uniform{}, false
}

// Programmer implements graph to GLSL compilation. A Programmer reuses its
// buffers between calls and is not safe for concurrent use.
type Programmer struct {
	version string
	stub    float32
	scratch []byte
	// names maps function name hashes to body hashes for checking duplicates.
	names     map[uint64]uint64
	funcs     []string
	uniforms  []Uniform
	owners    map[string]string // uniform name to instance+param key.
	seen      map[string]bool   // instances whose uniforms have been registered.
	materials []Material
	matIDs    map[string]int
	matHits   []materialHit
	warnings  []string
	onStack   map[string]bool
	insts     map[string]*sdfgraph.Instance
	defs      map[string]*catalog.Definition
	inputs    map[string][]sdfgraph.Connection
	is3D      bool
	maxNodes  int
	emitted   int
}

type materialHit struct {
	id   int
	expr string
}

// NewDefaultProgrammer returns a Programmer emitting GLSL 330 core fragment programs.
func NewDefaultProgrammer() *Programmer {
	return &Programmer{
		version:  VersionStr,
		stub:     DefaultStubDistance,
		scratch:  make([]byte, 0, 1024),
		names:    make(map[uint64]uint64),
		owners:   make(map[string]string),
		seen:     make(map[string]bool),
		matIDs:   make(map[string]int),
		onStack:  make(map[string]bool),
		insts:    make(map[string]*sdfgraph.Instance),
		defs:     make(map[string]*catalog.Definition),
		inputs:   make(map[string][]sdfgraph.Connection),
		maxNodes: DefaultMaxEmittedNodes,
	}
}

// SetVersion sets the version directive of generated programs, i.e: "330 core" or "#version 410".
func (p *Programmer) SetVersion(version string) {
	version = strings.TrimSpace(version)
	if !strings.HasPrefix(version, "#version") {
		version = "#version " + version
	}
	p.version = version + "\n"
}

// SetStubDistance sets the distance emitted for empty graphs, disabled nodes and missing inputs.
func (p *Programmer) SetStubDistance(d float32) { p.stub = d }

// SetMaxEmittedNodes bounds how many node expressions a single compilation may emit.
// Graphs exceeding it compile to the stub program with an [sdfgraph.ErrKindTooLarge] error.
// n <= 0 restores [DefaultMaxEmittedNodes].
func (p *Programmer) SetMaxEmittedNodes(n int) {
	if n <= 0 {
		n = DefaultMaxEmittedNodes
	}
	p.maxNodes = n
}

// Compile is shorthand for NewDefaultProgrammer().Compile(reg, g).
func Compile(reg *catalog.Registry, g *sdfgraph.Graph) CompiledShader {
	return NewDefaultProgrammer().Compile(reg, g)
}

// Compile validates g and emits its fragment program. The graph's last instance
// is the root. Compile never returns partial source: any error yields the stub
// program with [CompiledShader.Errors] set.
func (p *Programmer) Compile(reg *catalog.Registry, g *sdfgraph.Graph) (cs CompiledShader) {
	if reg == nil || g == nil {
		p.reset(&sdfgraph.Graph{})
		return p.stubShader(sdfgraph.Mode2D, []error{sdfgraph.NewGraphError(sdfgraph.ErrKindInternal, "", "nil registry or graph")})
	}
	p.reset(g)
	mode := g.Mode
	if !mode.Valid() {
		mode = sdfgraph.Mode2D
	}
	defer func() {
		if r := recover(); r != nil {
			cs = p.stubShader(mode, []error{sdfgraph.NewGraphError(sdfgraph.ErrKindInternal, "", "emission panicked: %v", r)})
		}
	}()
	if errs := sdfgraph.Validate(reg, g); len(errs) > 0 {
		return p.stubShader(mode, errs)
	}
	root, ok := g.Root()
	if !ok {
		return p.stubShader(mode, nil)
	}
	p.index(reg, g)
	expr, err := p.appendNode(p.scratch[:0], root.ID, []byte("p"))
	p.scratch = expr
	if err != nil {
		return p.stubShader(mode, []error{err})
	}
	cs = CompiledShader{
		Mode:      mode,
		MapBody:   p.mapBody(expr),
		Functions: slices.Clone(p.funcs),
		Uniforms:  slices.Clone(p.uniforms),
		Materials: slices.Clone(p.materials),
		Warnings:  slices.Clone(p.warnings),
	}
	cs.Source = string(p.appendSource(make([]byte, 0, 4096), &cs))
	return cs
}

func (p *Programmer) reset(g *sdfgraph.Graph) {
	clear(p.names)
	clear(p.owners)
	clear(p.seen)
	clear(p.matIDs)
	clear(p.onStack)
	clear(p.insts)
	clear(p.defs)
	clear(p.inputs)
	p.funcs = p.funcs[:0]
	p.uniforms = p.uniforms[:0]
	p.materials = p.materials[:0]
	p.matHits = p.matHits[:0]
	p.warnings = p.warnings[:0]
	p.emitted = 0
	if p.maxNodes <= 0 {
		p.maxNodes = DefaultMaxEmittedNodes
	}
	p.is3D = g.Mode.Is3D()
}

func (p *Programmer) index(reg *catalog.Registry, g *sdfgraph.Graph) {
	for i := range g.Instances {
		inst := &g.Instances[i]
		def, _ := reg.Get(inst.NodeID)
		p.insts[inst.ID] = inst
		p.defs[inst.ID] = def
	}
	for _, c := range g.Connections {
		p.inputs[c.To] = append(p.inputs[c.To], c)
	}
}

// stubShader returns a program whose map returns the stub distance.
func (p *Programmer) stubShader(mode sdfgraph.Mode, errs []error) CompiledShader {
	p.is3D = mode.Is3D()
	body := p.appendStub([]byte("return "))
	cs := CompiledShader{
		Mode:     mode,
		MapBody:  string(append(body, ';')),
		Errors:   errs,
		Warnings: slices.Clone(p.warnings),
	}
	cs.Source = string(p.appendSource(make([]byte, 0, 1024), &cs))
	return cs
}

func (p *Programmer) warnf(format string, args ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf(format, args...))
}

func (p *Programmer) appendStub(dst []byte) []byte {
	return AppendDistanceLiteral(dst, p.stub)
}

func (p *Programmer) input(id string, slot int) (sdfgraph.Connection, bool) {
	for _, c := range p.inputs[id] {
		if c.Slot == slot {
			return c, true
		}
	}
	return sdfgraph.Connection{}, false
}

func (p *Programmer) spaceName() string {
	if p.is3D {
		return "3D"
	}
	return "2D"
}

// appendNode appends the distance expression of instance id evaluated at coord.
func (p *Programmer) appendNode(dst []byte, id string, coord []byte) ([]byte, error) {
	if p.onStack[id] {
		return dst, sdfgraph.NewGraphError(sdfgraph.ErrKindCycle, id, "instance reached again while being emitted")
	}
	p.emitted++
	if p.emitted > p.maxNodes {
		return dst, sdfgraph.NewGraphError(sdfgraph.ErrKindTooLarge, id, "graph expands to more than %d node expressions", p.maxNodes)
	}
	inst, def := p.insts[id], p.defs[id]
	if inst == nil || def == nil {
		return dst, sdfgraph.NewGraphError(sdfgraph.ErrKindMissingInstance, id, "instance not found during emission")
	}
	p.onStack[id] = true
	defer delete(p.onStack, id)
	switch def.Category {
	case catalog.CategoryDomainTransform:
		return p.appendTransform(dst, inst, def, coord)
	case catalog.CategoryOperation:
		return p.appendOperation(dst, inst, def, coord)
	case catalog.CategoryShape2D, catalog.CategoryShape3D, catalog.CategoryField:
		return p.appendLeaf(dst, inst, def, coord)
	}
	return dst, sdfgraph.NewGraphError(sdfgraph.ErrKindInternal, id, "unhandled category %s", def.Category)
}

func (p *Programmer) appendTransform(dst []byte, inst *sdfgraph.Instance, def *catalog.Definition, coord []byte) ([]byte, error) {
	child, ok := p.input(inst.ID, 0)
	if !ok {
		p.warnf("transform %q has no input and renders nothing", inst.ID)
		return p.appendStub(dst), nil
	}
	if !inst.Enabled {
		return p.appendNode(dst, child.From, coord)
	}
	src, native := def.SourceFor(p.is3D)
	if !native {
		return dst, sdfgraph.NewGraphError(sdfgraph.ErrKindSpace, inst.ID, "%s transform %q cannot transform a %s coordinate", def.Space, def.ID, p.spaceName())
	}
	if err := p.addFunction(def.FuncName(), src); err != nil {
		return dst, err
	}
	// coord may alias dst so the new coordinate gets its own buffer.
	newCoord := make([]byte, 0, len(coord)+len(def.FuncName())+16*len(def.Params)+2)
	newCoord = append(newCoord, def.FuncName()...)
	newCoord = append(newCoord, '(')
	newCoord = append(newCoord, coord...)
	newCoord = p.appendUniformArgs(newCoord, inst, def)
	newCoord = append(newCoord, ')')
	return p.appendNode(dst, child.From, newCoord)
}

func (p *Programmer) appendOperation(dst []byte, inst *sdfgraph.Instance, def *catalog.Definition, coord []byte) (_ []byte, err error) {
	if !inst.Enabled {
		return p.appendStub(dst), nil
	}
	if err := p.addFunction(def.FuncName(), def.Source); err != nil {
		return dst, err
	}
	dst = append(dst, def.FuncName()...)
	dst = append(dst, '(')
	for slot := 0; slot < def.Inputs; slot++ {
		if slot > 0 {
			dst = append(dst, ',')
		}
		conn, ok := p.input(inst.ID, slot)
		if !ok {
			p.warnf("%s %q has nothing connected to slot %d", def.ID, inst.ID, slot)
			dst = p.appendStub(dst)
			continue
		}
		dst, err = p.appendNode(dst, conn.From, coord)
		if err != nil {
			return dst, err
		}
	}
	dst = p.appendUniformArgs(dst, inst, def)
	return append(dst, ')'), nil
}

func (p *Programmer) appendLeaf(dst []byte, inst *sdfgraph.Instance, def *catalog.Definition, coord []byte) ([]byte, error) {
	if !inst.Enabled {
		return p.appendStub(dst), nil
	}
	src, native := def.SourceFor(p.is3D)
	if err := p.addFunction(def.FuncName(), src); err != nil {
		return dst, err
	}
	start := len(dst)
	dst = append(dst, def.FuncName()...)
	dst = append(dst, '(')
	switch {
	case native:
		dst = append(dst, coord...)
	case p.is3D:
		dst = append(dst, coord...)
		dst = append(dst, ".xy"...) // Evaluate 2D shape on the z=0 plane's projection.
	default:
		p.warnf("3D node %q evaluated on the z=0 slice of a 2D graph", inst.ID)
		dst = append(dst, "vec3("...)
		dst = append(dst, coord...)
		dst = append(dst, ",0.0)"...)
	}
	dst = p.appendUniformArgs(dst, inst, def)
	dst = append(dst, ')')
	if inst.Color != "" {
		p.addMaterialHit(inst, dst[start:])
	}
	return dst, nil
}

// appendUniformArgs appends ",u_<instance>_<param>" for every parameter of def.
func (p *Programmer) appendUniformArgs(dst []byte, inst *sdfgraph.Instance, def *catalog.Definition) []byte {
	first := !p.seen[inst.ID]
	p.seen[inst.ID] = true
	if first {
		for _, key := range slices.Sorted(maps.Keys(inst.Params)) {
			if _, ok := def.Param(key); !ok {
				p.warnf("instance %q sets undeclared parameter %q, ignored", inst.ID, key)
			}
		}
	}
	for i := range def.Params {
		param := &def.Params[i]
		name := p.uniformName(inst.ID, param.ID)
		if first {
			p.uniforms = append(p.uniforms, Uniform{
				Name:     name,
				Instance: inst.ID,
				Param:    param.ID,
				GLSLType: param.Type.GLSLType(),
				Type:     param.Type,
				Default:  param.Default,
			})
		}
		dst = append(dst, ',')
		dst = append(dst, name...)
	}
	return dst
}

// uniformName returns the uniform name for an instance parameter, falling
// back to a hashed name when two distinct pairs map to the same identifier.
func (p *Programmer) uniformName(instance, param string) string {
	key := instance + "\x00" + param
	name := UniformName(instance, param)
	if owner, taken := p.owners[name]; taken && owner != key {
		name = "u_h" + strconv.FormatUint(hash([]byte(key), 0), 32)
	}
	p.owners[name] = key
	return name
}

func (p *Programmer) addMaterialHit(inst *sdfgraph.Instance, expr []byte) {
	id, ok := p.matIDs[inst.ID]
	if !ok {
		color, err := sdfgraph.ParseColor(inst.Color)
		if err != nil {
			p.warnf("instance %q color ignored: %v", inst.ID, err)
			return
		}
		p.materials = append(p.materials, Material{Instance: inst.ID, Color: color})
		id = len(p.materials)
		p.matIDs[inst.ID] = id
	}
	p.matHits = append(p.matHits, materialHit{id: id, expr: string(expr)})
}

// addFunction adds a GLSL function to the program unless an identical function
// was already added. Distinct bodies sharing a name are an error.
func (p *Programmer) addFunction(name string, src []byte) error {
	src = bytes.TrimSpace(src)
	nameHash := hash([]byte(name), 0)
	bodyHash := hash(src, nameHash) // Body hash mixes name as well.
	gotBodyHash, nameConflict := p.names[nameHash]
	if nameConflict {
		if gotBodyHash == bodyHash {
			return nil // Already written and identical, skip.
		}
		return sdfgraph.NewGraphError(sdfgraph.ErrKindInternal, "", "distinct GLSL functions share the name %q", name)
	}
	p.names[nameHash] = bodyHash
	p.funcs = append(p.funcs, string(src))
	return nil
}

func (p *Programmer) mapBody(expr []byte) string {
	if len(p.matHits) == 0 {
		return "return " + string(expr) + ";"
	}
	var b []byte
	b = append(b, "float d = "...)
	b = append(b, expr...)
	b = append(b, ";\n\tfloat md = "...)
	b = p.appendStub(b)
	b = append(b, ";\n\tfloat m = 0.0;\n\tfloat t;\n"...)
	for _, hit := range p.matHits {
		b = append(b, "\tt = "...)
		b = append(b, hit.expr...)
		b = append(b, ";\n\tif (t < md) { md = t; m = "...)
		b = strconv.AppendInt(b, int64(hit.id), 10)
		b = append(b, ".0; }\n"...)
	}
	b = append(b, "\treturn vec2(d, m);"...)
	return string(b)
}

func (p *Programmer) appendSource(b []byte, cs *CompiledShader) []byte {
	coordType := "vec2"
	b = append(b, p.version...)
	if p.is3D {
		coordType = "vec3"
		b = append(b, "#define SDFGRAPH_3D\n"...)
	}
	hasMaterials := len(cs.Materials) > 0
	if hasMaterials {
		b = append(b, "#define SDFGRAPH_MATERIALS\n"...)
	}
	b = append(b, "\nuniform float time;\nuniform vec2 resolution;\n"...)
	for _, u := range cs.Uniforms {
		b = AppendUniformDecl(b, u.GLSLType, u.Name)
	}
	b = append(b, '\n')
	for _, fn := range cs.Functions {
		b = append(b, fn...)
		b = append(b, "\n\n"...)
	}
	retType := "float"
	if hasMaterials {
		retType = "vec2"
		colors := make([]ms3.Vec, len(cs.Materials))
		for i, m := range cs.Materials {
			colors[i] = m.Color
		}
		b = append(b, "const "...)
		b = AppendVec3SliceDecl(b, "materialColor", colors)
		b = append(b, '\n')
	}
	b = append(b, retType...)
	b = append(b, " map("...)
	b = append(b, coordType...)
	b = append(b, " p) {\n\t"...)
	b = append(b, cs.MapBody...)
	b = append(b, "\n}\n\nfloat mapDist("...)
	b = append(b, coordType...)
	if hasMaterials {
		b = append(b, " p) { return map(p).x; }\n"...)
	} else {
		b = append(b, " p) { return map(p); }\n"...)
	}
	b = append(b, visualizerMain...)
	return b
}
