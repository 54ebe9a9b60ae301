package sdfgraph_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/soypat/sdfgraph"
	"github.com/soypat/sdfgraph/catalog"
)

func hasKind(errs []error, kind sdfgraph.ErrKind) bool {
	for _, err := range errs {
		var gerr *sdfgraph.GraphError
		if errors.As(err, &gerr) && gerr.Kind == kind {
			return true
		}
	}
	return false
}

func TestValidate(t *testing.T) {
	reg := catalog.NewDefault()
	tests := []struct {
		name string
		g    sdfgraph.Graph
		want sdfgraph.ErrKind // zero means no error expected.
	}{
		{
			name: "empty",
			g:    sdfgraph.Graph{Mode: sdfgraph.Mode2D},
		},
		{
			name: "valid union",
			g: sdfgraph.Graph{Mode: sdfgraph.Mode2D,
				Instances: []sdfgraph.Instance{
					{ID: "a", NodeID: "circle"}, {ID: "b", NodeID: "box2d"}, {ID: "u", NodeID: "union"},
				},
				Connections: []sdfgraph.Connection{{From: "a", To: "u", Slot: 0}, {From: "b", To: "u", Slot: 1}},
			},
		},
		{
			name: "bad mode",
			g:    sdfgraph.Graph{Mode: "4d"},
			want: sdfgraph.ErrKindMode,
		},
		{
			name: "unknown node",
			g: sdfgraph.Graph{Mode: sdfgraph.Mode2D,
				Instances: []sdfgraph.Instance{{ID: "a", NodeID: "teapot"}},
			},
			want: sdfgraph.ErrKindUnknownNode,
		},
		{
			name: "missing instance",
			g: sdfgraph.Graph{Mode: sdfgraph.Mode2D,
				Instances:   []sdfgraph.Instance{{ID: "u", NodeID: "union"}},
				Connections: []sdfgraph.Connection{{From: "ghost", To: "u", Slot: 0}},
			},
			want: sdfgraph.ErrKindMissingInstance,
		},
		{
			name: "slot range",
			g: sdfgraph.Graph{Mode: sdfgraph.Mode2D,
				Instances:   []sdfgraph.Instance{{ID: "a", NodeID: "circle"}, {ID: "u", NodeID: "union"}},
				Connections: []sdfgraph.Connection{{From: "a", To: "u", Slot: 2}},
			},
			want: sdfgraph.ErrKindSlotRange,
		},
		{
			name: "input to leaf",
			g: sdfgraph.Graph{Mode: sdfgraph.Mode2D,
				Instances:   []sdfgraph.Instance{{ID: "a", NodeID: "circle"}, {ID: "b", NodeID: "circle"}},
				Connections: []sdfgraph.Connection{{From: "a", To: "b", Slot: 0}},
			},
			want: sdfgraph.ErrKindInputToLeaf,
		},
		{
			name: "duplicate id",
			g: sdfgraph.Graph{Mode: sdfgraph.Mode2D,
				Instances: []sdfgraph.Instance{{ID: "a", NodeID: "circle"}, {ID: "a", NodeID: "circle"}},
			},
			want: sdfgraph.ErrKindDuplicateID,
		},
		{
			name: "duplicate slot",
			g: sdfgraph.Graph{Mode: sdfgraph.Mode2D,
				Instances: []sdfgraph.Instance{{ID: "a", NodeID: "circle"}, {ID: "b", NodeID: "circle"}, {ID: "u", NodeID: "union"}},
				Connections: []sdfgraph.Connection{
					{From: "a", To: "u", Slot: 0}, {From: "b", To: "u", Slot: 0},
				},
			},
			want: sdfgraph.ErrKindDuplicateSlot,
		},
		{
			name: "self cycle",
			g: sdfgraph.Graph{Mode: sdfgraph.Mode2D,
				Instances:   []sdfgraph.Instance{{ID: "t", NodeID: "translate"}},
				Connections: []sdfgraph.Connection{{From: "t", To: "t", Slot: 0}},
			},
			want: sdfgraph.ErrKindCycle,
		},
		{
			name: "indirect cycle against instance order",
			g: sdfgraph.Graph{Mode: sdfgraph.Mode2D,
				Instances: []sdfgraph.Instance{{ID: "t1", NodeID: "translate"}, {ID: "t2", NodeID: "rotate"}},
				Connections: []sdfgraph.Connection{
					{From: "t1", To: "t2", Slot: 0}, {From: "t2", To: "t1", Slot: 0},
				},
			},
			want: sdfgraph.ErrKindCycle,
		},
	}
	for _, test := range tests {
		errs := sdfgraph.Validate(reg, &test.g)
		if test.want == 0 {
			if len(errs) > 0 {
				t.Errorf("%s: unexpected errors %v", test.name, errs)
			}
			continue
		}
		if !hasKind(errs, test.want) {
			t.Errorf("%s: want %s error, got %v", test.name, test.want, errs)
		}
	}
}

func TestSceneMutations(t *testing.T) {
	reg := catalog.NewDefault()
	s := sdfgraph.NewScene(reg, sdfgraph.Mode2D)
	v0 := s.Version()
	a, err := s.AddNode("circle")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := s.AddNode("box2d")
	u, _ := s.AddNode("smooth-union")
	if s.Version() <= v0 {
		t.Error("version did not advance on AddNode")
	}
	if _, err := s.AddNode("teapot"); err == nil {
		t.Error("expected error adding unregistered node")
	}
	if err := s.Connect(a, u, 0); err != nil {
		t.Fatal(err)
	}
	if err := s.Connect(b, u, 1); err != nil {
		t.Fatal(err)
	}
	if err := s.Connect(a, u, 2); err == nil {
		t.Error("expected slot range error")
	}
	if err := s.Connect(u, a, 0); err == nil {
		t.Error("expected error connecting into a leaf")
	}
	if err := s.Connect(u, u, 0); err == nil {
		t.Error("expected self connection rejected")
	}

	// Replace slot 1.
	c, _ := s.AddNode("hexagon")
	if err := s.Connect(c, u, 1); err != nil {
		t.Fatal(err)
	}
	g := s.Snapshot()
	inputs := g.InputsOf(u)
	if len(inputs) != 2 || inputs[1].From != c {
		t.Errorf("expected slot 1 replaced by %s, got %+v", c, inputs)
	}
	if errs := sdfgraph.Validate(reg, &g); len(errs) > 0 {
		t.Errorf("scene produced invalid graph: %v", errs)
	}

	// Parameter edits do not bump the version.
	v := s.Version()
	if err := s.SetParam(a, "radius", catalog.Scalar(0.9)); err != nil {
		t.Fatal(err)
	}
	if err := s.SetParam(a, "nope", catalog.Scalar(0.9)); err == nil {
		t.Error("expected error for unknown parameter")
	}
	if s.Version() != v {
		t.Error("SetParam changed structural version")
	}
	// Snapshots are isolated from later edits.
	if got := g.Instances[0].Params["radius"]; got != catalog.Scalar(0.5) {
		t.Errorf("snapshot sees later edit: %v", got)
	}
	if err := s.SetColor(a, "not-a-color"); err == nil {
		t.Error("expected invalid color error")
	}
	if err := s.SetColor(a, "tomato"); err != nil {
		t.Error(err)
	}

	if err := s.RemoveNode(b); err != nil {
		t.Fatal(err)
	}
	g = s.Snapshot()
	for _, conn := range g.Connections {
		if conn.From == b || conn.To == b {
			t.Errorf("dangling connection %+v", conn)
		}
	}
	if !s.Disconnect(u, 0) {
		t.Error("expected disconnect")
	}
	if s.Disconnect(u, 0) {
		t.Error("double disconnect reported success")
	}
}

func TestGraphJSON(t *testing.T) {
	const doc = `{
	"mode": "3d",
	"instances": [
		{"id": "s", "nodeId": "sphere", "params": {"radius": 0.7}},
		{"id": "t", "nodeId": "translate", "params": {"offset": [0.1, 0.2, 0.3]}, "enabled": false}
	],
	"connections": [{"from": "s", "to": "t", "slot": 0}]
}`
	var g sdfgraph.Graph
	err := json.Unmarshal([]byte(doc), &g)
	if err != nil {
		t.Fatal(err)
	}
	if g.Mode != sdfgraph.Mode3D {
		t.Errorf("mode %q", g.Mode)
	}
	if !g.Instances[0].Enabled {
		t.Error("instance without enabled field should default to enabled")
	}
	if g.Instances[1].Enabled {
		t.Error("explicitly disabled instance decoded as enabled")
	}
	root, _ := g.Root()
	if root.ID != "t" {
		t.Errorf("root %q", root.ID)
	}
	if got := g.Instances[1].Params["offset"]; got != (catalog.Value{0.1, 0.2, 0.3}) {
		t.Errorf("offset %v", got)
	}
	if err := json.Unmarshal([]byte(`{"mode":"5d"}`), &g); err == nil {
		t.Error("expected invalid mode error")
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		r, g, b float32
		wantErr bool
	}{
		{in: "#ff0000", r: 1},
		{in: "#0f0", g: 1},
		{in: "white", r: 1, g: 1, b: 1},
		{in: "Black"},
		{in: "#12345", wantErr: true},
		{in: "chartreuseish", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, test := range tests {
		c, err := sdfgraph.ParseColor(test.in)
		if (err != nil) != test.wantErr {
			t.Errorf("%q: err=%v wantErr=%v", test.in, err, test.wantErr)
			continue
		}
		if err == nil && (c.X != test.r || c.Y != test.g || c.Z != test.b) {
			t.Errorf("%q: got %+v", test.in, c)
		}
	}
}

func TestSceneOrderAndLoad(t *testing.T) {
	reg := catalog.NewDefault()
	s := sdfgraph.NewScene(reg, sdfgraph.Mode2D)
	a, _ := s.AddNode("circle")
	b, _ := s.AddNode("hexagon")
	v := s.Version()
	if err := s.MoveNode(a, 1); err != nil {
		t.Fatal(err)
	}
	g := s.Snapshot()
	if root, _ := g.Root(); root.ID != a {
		t.Errorf("moved instance is not root, got %q", root.ID)
	}
	if s.Version() == v {
		t.Error("MoveNode did not bump version")
	}
	if err := s.MoveNode(b, 2); err == nil {
		t.Error("expected index out of range error")
	}
	if err := s.SetMode(sdfgraph.Mode("4d")); err == nil {
		t.Error("expected invalid mode error")
	}
	if err := s.SetMode(sdfgraph.Mode3D); err != nil || s.Mode() != sdfgraph.Mode3D {
		t.Errorf("SetMode: %v mode=%q", err, s.Mode())
	}
	if _, err := sdfgraph.ParseMode("3d"); err != nil {
		t.Error(err)
	}

	bad := sdfgraph.Graph{
		Mode:      sdfgraph.Mode2D,
		Instances: []sdfgraph.Instance{{ID: "x", NodeID: "teapot", Enabled: true}},
	}
	loaded, errs := sdfgraph.LoadScene(reg, bad)
	if loaded == nil || !hasKind(errs, sdfgraph.ErrKindUnknownNode) {
		t.Errorf("LoadScene errs=%v", errs)
	}
	bad.Instances[0].ID = "mutated"
	snap := loaded.Snapshot()
	if _, ok := snap.Instance("x"); !ok {
		t.Error("LoadScene did not copy its graph")
	}
	// Generated ids never collide with loaded ones.
	id, err := loaded.AddNode("circle")
	if err != nil || id == "x" {
		t.Errorf("AddNode after load: %q %v", id, err)
	}
}
