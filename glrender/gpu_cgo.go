//go:build !tinygo && cgo

package glrender

import (
	"strings"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/soypat/glgl/v4.6-core/glgl"
	"github.com/soypat/sdfgraph/catalog"
)

// quad is two triangles covering clip space.
var quad = []float32{
	-1.0, -1.0,
	1.0, -1.0,
	-1.0, 1.0,
	-1.0, 1.0,
	1.0, -1.0,
	1.0, 1.0,
}

type glDevice struct {
	vao, vbo uint32
}

// NewGLDevice returns a [Device] drawing with OpenGL. A GL context must be
// current on the calling goroutine, i.e: created with glgl.InitWithCurrentWindow33.
func NewGLDevice() (Device, error) {
	d := &glDevice{}
	gl.GenVertexArrays(1, &d.vao)
	gl.BindVertexArray(d.vao)
	gl.GenBuffers(1, &d.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, d.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, 4*len(quad), gl.Ptr(quad), gl.STATIC_DRAW)
	if err := glgl.Err(); err != nil {
		d.release()
		return nil, err
	}
	return d, nil
}

func (d *glDevice) release() {
	gl.DeleteBuffers(1, &d.vbo)
	gl.DeleteVertexArrays(1, &d.vao)
}

func (d *glDevice) CompileProgram(vertex, fragment string) (Program, error) {
	prog, err := glgl.CompileProgram(glgl.ShaderSource{
		Vertex:   nulTerminated(vertex),
		Fragment: nulTerminated(fragment),
	})
	if err != nil {
		return nil, err
	}
	// Bind the quad to the program's vertex input.
	gl.BindVertexArray(d.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, d.vbo)
	posAttrib, err := prog.AttribLocation("aPos\x00")
	if err != nil {
		prog.Delete()
		return nil, err
	}
	gl.EnableVertexAttribArray(posAttrib)
	gl.VertexAttribPointer(posAttrib, 2, gl.FLOAT, false, 0, gl.PtrOffset(0))
	return &glProgram{prog: prog}, nil
}

func (d *glDevice) Draw(p Program, width, height int) error {
	gl.Viewport(0, 0, int32(width), int32(height))
	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)
	p.Bind()
	gl.BindVertexArray(d.vao)
	gl.DrawArrays(gl.TRIANGLES, 0, int32(len(quad)/2))
	return glgl.Err()
}

func nulTerminated(s string) string {
	if strings.HasSuffix(s, "\x00") {
		return s
	}
	return s + "\x00"
}

type glProgram struct {
	prog glgl.Program
}

func (p *glProgram) ID() uint32 { return p.prog.ID() }
func (p *glProgram) Bind()      { p.prog.Bind() }
func (p *glProgram) Delete()    { p.prog.Delete() }

func (p *glProgram) UniformLocation(name string) (int32, bool) {
	loc, err := p.prog.UniformLocation(nulTerminated(name))
	if err != nil || loc < 0 {
		return -1, false
	}
	return loc, true
}

func (p *glProgram) Uniform(loc int32, typ catalog.ParamType, v catalog.Value) {
	switch typ {
	case catalog.ParamInt, catalog.ParamBool:
		gl.Uniform1i(loc, v.Int())
	case catalog.ParamVec2:
		gl.Uniform2f(loc, v[0], v[1])
	case catalog.ParamVec3:
		gl.Uniform3f(loc, v[0], v[1], v[2])
	case catalog.ParamColor:
		gl.Uniform4f(loc, v[0], v[1], v[2], v[3])
	default:
		gl.Uniform1f(loc, v[0])
	}
}
