package modsrc

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/tanema/gween/ease"
)

func TestLFOShapes(t *testing.T) {
	const tol = 1e-5
	tests := []struct {
		shape Shape
		t     float32
		want  float32
	}{
		{shape: ShapeSine, t: 0, want: 0.5},
		{shape: ShapeSine, t: 0.25, want: 1},
		{shape: ShapeSine, t: 0.75, want: 0},
		{shape: ShapeTriangle, t: 0, want: 0},
		{shape: ShapeTriangle, t: 0.25, want: 0.5},
		{shape: ShapeTriangle, t: 0.5, want: 1},
		{shape: ShapeSaw, t: 0.25, want: 0.25},
		{shape: ShapeSaw, t: 1.25, want: 0.25},
		{shape: ShapeSquare, t: 0.25, want: 1},
		{shape: ShapeSquare, t: 0.75, want: 0},
	}
	for _, test := range tests {
		lfo := LFO{Name: "l", Shape: test.shape, Rate: 1}
		got := lfo.Value(test.t)
		if math32.Abs(got-test.want) > tol {
			t.Errorf("%s at t=%g: got %g, want %g", test.shape, test.t, got, test.want)
		}
	}
	// Phase offset and rate.
	lfo := LFO{Shape: ShapeSaw, Rate: 2, Phase: 0.5}
	if got := lfo.Value(0.125); math32.Abs(got-0.75) > tol {
		t.Errorf("rate/phase: got %g", got)
	}
	// Readings stay unipolar for negative time.
	for _, shape := range []Shape{ShapeSine, ShapeTriangle, ShapeSaw, ShapeSquare} {
		v := LFO{Shape: shape, Rate: 3}.Value(-1.1)
		if v < 0 || v > 1 {
			t.Errorf("%s: reading %g out of [0,1]", shape, v)
		}
	}
}

func TestParseShape(t *testing.T) {
	for _, shape := range []Shape{ShapeSine, ShapeTriangle, ShapeSaw, ShapeSquare} {
		got, err := ParseShape(shape.String())
		if err != nil || got != shape {
			t.Errorf("%s: got %v, %v", shape, got, err)
		}
	}
	if _, err := ParseShape("noise"); err == nil {
		t.Error("expected unknown shape error")
	}
}

func TestEnvelope(t *testing.T) {
	const tol = 1e-4
	env := &Envelope{Name: "env", AttackTime: 1}
	if env.Update(0.1) != 0 {
		t.Error("untriggered envelope should read 0")
	}
	env.Trigger()
	if got := env.Update(0.5); math32.Abs(got-0.5) > tol {
		t.Errorf("mid attack: got %g", got)
	}
	if got := env.Update(0.6); got != 1 {
		t.Errorf("end of attack: got %g", got)
	}
	if !env.Held() {
		t.Error("triggered envelope not held")
	}
	env.Release() // Zero release time drops immediately.
	if env.Value() != 0 || env.Held() {
		t.Errorf("release: value=%g held=%v", env.Value(), env.Held())
	}

	elastic := &Envelope{AttackTime: 1, AttackEase: ease.OutElastic}
	elastic.Trigger()
	for i := 0; i < 20; i++ {
		v := elastic.Update(0.06)
		if v < 0 || v > 1 {
			t.Fatalf("step %d: reading %g not clamped", i, v)
		}
	}
}

func TestBankSample(t *testing.T) {
	env := &Envelope{Name: "kick", AttackTime: 0}
	bank := Bank{
		LFOs:      []LFO{{Name: "slow", Shape: ShapeSaw, Rate: 0.5}},
		Envelopes: []*Envelope{env},
	}
	bank.SetMacro("macro1", 0.3)
	got, ok := bank.Envelope("kick")
	if !ok || got != env {
		t.Fatal("envelope lookup failed")
	}
	env.Trigger()
	readings := bank.Sample(1, 1.0/60, nil)
	if readings["slow"] != 0.5 || readings["kick"] != 1 || readings["macro1"] != 0.3 {
		t.Errorf("readings %v", readings)
	}
	readings["stale"] = 1
	readings = bank.Sample(0, 1.0/60, readings)
	if _, ok := readings["stale"]; ok {
		t.Error("stale reading kept between frames")
	}
	if len(readings) != 3 {
		t.Errorf("want 3 readings, got %v", readings)
	}
}
