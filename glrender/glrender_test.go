package glrender_test

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/soypat/sdfgraph"
	"github.com/soypat/sdfgraph/catalog"
	"github.com/soypat/sdfgraph/glbuild"
	"github.com/soypat/sdfgraph/glrender"
	"github.com/soypat/sdfgraph/modulation"
)

// fakeDevice records compilations and uniform uploads. Fragment sources
// containing "#error" fail to compile.
type fakeDevice struct {
	compiles int
	nextID   uint32
	draws    int
	deleted  []uint32
	progs    map[uint32]*fakeProgram
}

type fakeProgram struct {
	dev    *fakeDevice
	id     uint32
	locs   map[string]int32
	values map[int32]catalog.Value
	bound  bool
}

func (d *fakeDevice) CompileProgram(vertex, fragment string) (glrender.Program, error) {
	d.compiles++
	if strings.Contains(fragment, "#error") {
		return nil, errors.New("0:1: error: forced failure")
	}
	d.nextID++
	p := &fakeProgram{dev: d, id: d.nextID, locs: make(map[string]int32), values: make(map[int32]catalog.Value)}
	if d.progs == nil {
		d.progs = make(map[uint32]*fakeProgram)
	}
	d.progs[p.id] = p
	// Every declared uniform is active.
	for _, line := range strings.Split(fragment, "\n") {
		if rest, ok := strings.CutPrefix(line, "uniform "); ok {
			fields := strings.Fields(strings.TrimSuffix(rest, ";"))
			p.locs[fields[len(fields)-1]] = int32(len(p.locs))
		}
	}
	return p, nil
}

func (d *fakeDevice) Draw(p glrender.Program, width, height int) error {
	d.draws++
	return nil
}

func (p *fakeProgram) ID() uint32 { return p.id }
func (p *fakeProgram) Bind()      { p.bound = true }
func (p *fakeProgram) Delete()    { p.dev.deleted = append(p.dev.deleted, p.id) }
func (p *fakeProgram) UniformLocation(name string) (int32, bool) {
	loc, ok := p.locs[name]
	return loc, ok
}
func (p *fakeProgram) Uniform(loc int32, typ catalog.ParamType, v catalog.Value) {
	p.values[loc] = v
}

func (p *fakeProgram) value(t *testing.T, name string) catalog.Value {
	t.Helper()
	loc, ok := p.locs[name]
	if !ok {
		t.Fatalf("uniform %q not in program", name)
	}
	v, ok := p.values[loc]
	if !ok {
		t.Fatalf("uniform %q never set", name)
	}
	return v
}

func circleGraph(radius float32) sdfgraph.Graph {
	return sdfgraph.Graph{
		Mode: sdfgraph.Mode2D,
		Instances: []sdfgraph.Instance{{
			ID: "c", NodeID: "circle", Enabled: true,
			Params: map[string]catalog.Value{"radius": catalog.Scalar(radius)},
		}},
	}
}

func newRuntime(t *testing.T, dev glrender.Device) (*glrender.Runtime, *bytes.Buffer) {
	t.Helper()
	var logbuf bytes.Buffer
	rt, err := glrender.NewRuntime(dev, glrender.Config{
		Logger: slog.New(slog.NewTextHandler(&logbuf, &slog.HandlerOptions{Level: slog.LevelDebug})),
	})
	if err != nil {
		t.Fatal(err)
	}
	return rt, &logbuf
}

func TestUpdateShaderSkipsIdenticalSource(t *testing.T) {
	reg := catalog.NewDefault()
	dev := &fakeDevice{}
	rt, _ := newRuntime(t, dev)
	g := circleGraph(0.5)
	cs := glbuild.Compile(reg, &g)
	if !rt.UpdateShader(&cs) {
		t.Fatal("first update should link")
	}
	id := rt.ProgramID()
	again := glbuild.Compile(reg, &g)
	if rt.UpdateShader(&again) {
		t.Error("identical source relinked")
	}
	if rt.Links() != 1 || dev.compiles != 1 || rt.ProgramID() != id {
		t.Errorf("links=%d compiles=%d id=%d->%d", rt.Links(), dev.compiles, id, rt.ProgramID())
	}
	// Parameter changes do not alter the source.
	g.Instances[0].Params["radius"] = catalog.Scalar(0.1)
	cs = glbuild.Compile(reg, &g)
	if rt.UpdateShader(&cs) {
		t.Error("parameter change relinked")
	}
}

func TestUpdateShaderKeepsProgramOnFailure(t *testing.T) {
	reg := catalog.NewDefault()
	dev := &fakeDevice{}
	rt, logbuf := newRuntime(t, dev)
	g := circleGraph(0.5)
	good := glbuild.Compile(reg, &g)
	rt.UpdateShader(&good)
	id := rt.ProgramID()

	bad := good
	bad.Source = good.Source + "\n#error broken\n"
	if rt.UpdateShader(&bad) {
		t.Fatal("failed compile reported success")
	}
	if rt.ProgramID() != id || rt.Source() != good.Source {
		t.Error("previous program not kept after failure")
	}
	if !strings.Contains(logbuf.String(), "forced failure") || !strings.Contains(logbuf.String(), "sdCircle") {
		t.Errorf("failure log should contain error and full source:\n%s", logbuf.String())
	}
	// Same broken source is not retried.
	compiles := dev.compiles
	rt.UpdateShader(&bad)
	if dev.compiles != compiles {
		t.Error("last failed source was recompiled")
	}
	// Recovery swaps in the new program and deletes the old one.
	g.Instances = append(g.Instances, sdfgraph.Instance{ID: "h", NodeID: "hexagon", Enabled: true})
	next := glbuild.Compile(reg, &g)
	if !rt.UpdateShader(&next) {
		t.Fatal("expected link after structural change")
	}
	if rt.Links() != 2 || len(dev.deleted) != 1 || dev.deleted[0] != id {
		t.Errorf("links=%d deleted=%v", rt.Links(), dev.deleted)
	}
}

func TestRenderModulatedUniforms(t *testing.T) {
	reg := catalog.NewDefault()
	dev := &fakeDevice{}
	rt, _ := newRuntime(t, dev)
	g := sdfgraph.Graph{
		Mode: sdfgraph.Mode2D,
		Instances: []sdfgraph.Instance{
			{ID: "c", NodeID: "circle", Enabled: true, Params: map[string]catalog.Value{"radius": catalog.Scalar(0.5)}},
			{ID: "t", NodeID: "translate", Enabled: true}, // Offset left at default.
		},
		Connections: []sdfgraph.Connection{{From: "c", To: "t", Slot: 0}},
	}
	cs := glbuild.Compile(reg, &g)
	if err := cs.Err(); err != nil {
		t.Fatal(err)
	}
	rt.UpdateShader(&cs)
	err := rt.SetRules([]modulation.Rule{
		{Source: "lfo", Target: "c.radius", Amount: 0.5, Min: 0, Max: 1},
		{Source: "lfo", Target: "t.offset.x", Amount: 1, Min: -1, Max: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	sources := map[string]float32{"lfo": 0.5}
	if err := rt.Render(640, 480, 1.5, g.Instances, sources); err != nil {
		t.Fatal(err)
	}
	prog := lastProgram(t, rt, dev)
	if got := prog.value(t, "u_c_radius"); got[0] != 0.75 {
		t.Errorf("radius uniform %v, want 0.75", got)
	}
	if got := prog.value(t, "u_t_offset"); got != (catalog.Value{0.5, 0, 0, 0}) {
		t.Errorf("offset uniform %v", got)
	}
	if got := prog.value(t, "time"); got[0] != 1.5 {
		t.Errorf("time %v", got)
	}
	if got := prog.value(t, "resolution"); got[0] != 640 || got[1] != 480 {
		t.Errorf("resolution %v", got)
	}
	// Instances missing from the frame data are skipped silently.
	if err := rt.Render(10, 10, 0, g.Instances[:1], nil); err != nil {
		t.Fatal(err)
	}
	if dev.draws != 2 {
		t.Errorf("draws=%d", dev.draws)
	}
}

// lastProgram returns the fake program currently active in rt.
func lastProgram(t *testing.T, rt *glrender.Runtime, dev *fakeDevice) *fakeProgram {
	t.Helper()
	p, ok := dev.progs[rt.ProgramID()]
	if !ok {
		t.Fatal("active program not created by device")
	}
	return p
}

func TestApplyDiscardsStale(t *testing.T) {
	reg := catalog.NewDefault()
	dev := &fakeDevice{}
	rt, _ := newRuntime(t, dev)
	g1 := circleGraph(0.5)
	g2 := circleGraph(0.5)
	g2.Instances[0].NodeID = "hexagon"
	stale := glrender.Result{Stamp: 1, Shader: glbuild.Compile(reg, &g1)}
	fresh := glrender.Result{Stamp: 2, Shader: glbuild.Compile(reg, &g2)}
	if rt.Apply(stale, 2) {
		t.Error("stale result applied")
	}
	if !rt.Apply(fresh, 2) {
		t.Fatal("fresh result not applied")
	}
	if rt.Apply(stale, 1) {
		t.Error("result older than the applied one was installed")
	}
	if !strings.Contains(rt.Source(), "sdHexagon") {
		t.Error("active program is not the fresh one")
	}
}

func TestAsyncCompiler(t *testing.T) {
	reg := catalog.NewDefault()
	ac := glrender.NewAsyncCompiler(reg)
	defer ac.Close()
	var latest uint64
	for i := 1; i <= 5; i++ {
		latest = uint64(i)
		ac.Submit(latest, circleGraph(float32(i)))
	}
	timeout := time.After(5 * time.Second)
	for {
		select {
		case res := <-ac.Results():
			if res.Stamp > latest {
				t.Fatalf("result stamp %d from the future", res.Stamp)
			}
			if err := res.Shader.Err(); err != nil {
				t.Fatal(err)
			}
			if res.Stamp == latest {
				return
			}
		case <-timeout:
			t.Fatal("timed out waiting for latest result")
		}
	}
}

func TestAsyncCompilerClose(t *testing.T) {
	ac := glrender.NewAsyncCompiler(catalog.NewDefault())
	ac.Close()
	ac.Close()
	ac.Submit(1, circleGraph(1)) // Must not panic or block.
}
