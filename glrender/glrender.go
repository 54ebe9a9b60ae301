// Package glrender keeps a GPU program in sync with compiled graph shaders and
// pushes modulated parameter uniforms to it every frame.
package glrender

import (
	"errors"
	"log/slog"

	"github.com/soypat/sdfgraph"
	"github.com/soypat/sdfgraph/catalog"
	"github.com/soypat/sdfgraph/glbuild"
	"github.com/soypat/sdfgraph/modulation"
)

// DefaultVertexSource draws a full screen quad whose vertices are fed through aPos.
const DefaultVertexSource = `#version 330 core
in vec2 aPos;
void main() {
	gl_Position = vec4(aPos, 0.0, 1.0);
}
`

var errNoCGO = errors.New("glrender: GL backend requires cgo")

// Device compiles programs and draws full screen passes with them.
type Device interface {
	// CompileProgram compiles and links a program. On error no program is created.
	CompileProgram(vertex, fragment string) (Program, error)
	// Draw renders a full screen quad with p bound.
	Draw(p Program, width, height int) error
}

// Program is a linked GPU program.
type Program interface {
	ID() uint32
	// UniformLocation returns the location of an active uniform. Uniforms
	// optimized away by the driver are reported as not found.
	UniformLocation(name string) (int32, bool)
	Bind()
	// Uniform sets the value at loc using the first typ.Components() components of v.
	// The program must be bound.
	Uniform(loc int32, typ catalog.ParamType, v catalog.Value)
	Delete()
}

// Config configures a [Runtime]. The zero value is ready to use.
type Config struct {
	// VertexSource is the vertex stage paired with every fragment program.
	// If empty [DefaultVertexSource] is used.
	VertexSource string
	// Logger receives runtime diagnostics. If nil the package [Logger] is used.
	Logger *slog.Logger
}

type boundUniform struct {
	glbuild.Uniform
	loc int32
}

// Runtime owns the active GPU program. The active program is only ever
// replaced by a fully linked one so a failed edit keeps the previous visuals.
//
// Runtime methods must be called from the goroutine owning the GPU context.
type Runtime struct {
	dev    Device
	vertex string
	log    *slog.Logger

	prog     Program
	source   string // fragment source of prog.
	failed   string // last fragment source that failed to compile or link.
	links    int
	applied  uint64 // stamp of the last applied AsyncCompiler result.
	uniforms []boundUniform
	timeLoc  int32
	resLoc   int32
	hasTime  bool
	hasRes   bool

	matrix  *modulation.Matrix
	instIdx map[string]int
}

// NewRuntime returns a runtime rendering through dev. No program is active until
// the first successful [Runtime.UpdateShader].
func NewRuntime(dev Device, cfg Config) (*Runtime, error) {
	if dev == nil {
		return nil, errors.New("glrender: nil device")
	}
	if cfg.VertexSource == "" {
		cfg.VertexSource = DefaultVertexSource
	}
	if cfg.Logger == nil {
		cfg.Logger = Logger()
	}
	return &Runtime{
		dev:     dev,
		vertex:  cfg.VertexSource,
		log:     cfg.Logger,
		instIdx: make(map[string]int),
	}, nil
}

// UpdateShader makes cs the active program and reports whether a new program was linked.
// Sources byte-identical to the active program or to the last failed attempt are skipped.
// On compile or link failure the full source is logged and the previous program stays active.
func (r *Runtime) UpdateShader(cs *glbuild.CompiledShader) bool {
	if r.prog != nil && cs.Source == r.source {
		r.log.Debug("shader unchanged, skipping link")
		return false
	} else if r.failed != "" && cs.Source == r.failed {
		r.log.Debug("shader matches last failed source, skipping link")
		return false
	}
	for _, err := range cs.Errors {
		r.log.Warn("graph compiled to inert shader", slog.String("err", err.Error()))
	}
	prog, err := r.dev.CompileProgram(r.vertex, cs.Source)
	if err != nil {
		r.failed = cs.Source
		r.log.Error("shader compile failed, keeping previous program",
			slog.String("err", err.Error()),
			slog.String("source", cs.Source),
		)
		return false
	}
	uniforms := make([]boundUniform, 0, len(cs.Uniforms))
	for _, u := range cs.Uniforms {
		loc, ok := prog.UniformLocation(u.Name)
		if !ok {
			continue // Unused uniforms may be optimized away.
		}
		uniforms = append(uniforms, boundUniform{Uniform: u, loc: loc})
	}
	if r.prog != nil {
		r.prog.Delete()
	}
	r.prog = prog
	r.source = cs.Source
	r.failed = ""
	r.uniforms = uniforms
	r.timeLoc, r.hasTime = prog.UniformLocation("time")
	r.resLoc, r.hasRes = prog.UniformLocation("resolution")
	r.links++
	r.log.Info("shader program swapped", slog.Uint64("program", uint64(prog.ID())), slog.Int("uniforms", len(uniforms)))
	return true
}

// Apply installs an [AsyncCompiler] result. Results whose stamp is older than
// latest, the stamp of the most recent graph mutation, are discarded, as are results
// older than one already applied. Apply reports whether a new program was linked.
func (r *Runtime) Apply(res Result, latest uint64) bool {
	if res.Stamp < latest || res.Stamp < r.applied {
		r.log.Debug("discarding stale compile result", slog.Uint64("stamp", res.Stamp), slog.Uint64("latest", latest))
		return false
	}
	r.applied = res.Stamp
	return r.UpdateShader(&res.Shader)
}

// SetRules replaces the modulation rules applied during [Runtime.Render].
// Malformed rules are reported but the remaining rules are installed.
func (r *Runtime) SetRules(rules []modulation.Rule) error {
	m, err := modulation.NewMatrix(rules)
	r.matrix = m
	return err
}

// Render binds the active program, uploads time, resolution and every instance parameter
// with modulation applied and draws. Instances or uniforms absent from the active program
// are skipped. Render with no active program does nothing.
func (r *Runtime) Render(width, height int, time float32, instances []sdfgraph.Instance, sources map[string]float32) error {
	if r.prog == nil {
		return nil
	}
	r.prog.Bind()
	if r.hasTime {
		r.prog.Uniform(r.timeLoc, catalog.ParamFloat, catalog.Scalar(time))
	}
	if r.hasRes {
		r.prog.Uniform(r.resLoc, catalog.ParamVec2, catalog.Value{float32(width), float32(height)})
	}
	clear(r.instIdx)
	for i := range instances {
		r.instIdx[instances[i].ID] = i
	}
	for i := range r.uniforms {
		u := &r.uniforms[i]
		idx, ok := r.instIdx[u.Instance]
		if !ok {
			continue
		}
		base := u.Default
		if v, ok := instances[idx].Params[u.Param]; ok {
			base = v
		}
		v := r.matrix.ApplyValue(u.Instance, u.Param, base, u.Type.Components(), sources)
		r.prog.Uniform(u.loc, u.Type, v)
	}
	return r.dev.Draw(r.prog, width, height)
}

// Links returns the number of programs successfully linked.
func (r *Runtime) Links() int { return r.links }

// ProgramID returns the active program's ID or 0 if there is none.
func (r *Runtime) ProgramID() uint32 {
	if r.prog == nil {
		return 0
	}
	return r.prog.ID()
}

// Source returns the fragment source of the active program.
func (r *Runtime) Source() string { return r.source }

// Close deletes the active program.
func (r *Runtime) Close() {
	if r.prog != nil {
		r.prog.Delete()
		r.prog = nil
		r.source = ""
		r.uniforms = nil
	}
}
