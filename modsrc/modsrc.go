// Package modsrc implements modulation sources: low frequency oscillators,
// eased attack/release envelopes and macro values sampled once per frame
// into the named readings consumed by the modulation package.
package modsrc

import (
	"fmt"
	"strings"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms1"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// Shape is an oscillator waveform.
type Shape uint8

const (
	ShapeSine Shape = iota
	ShapeTriangle
	ShapeSaw
	ShapeSquare
)

func (s Shape) String() string {
	switch s {
	case ShapeSine:
		return "sine"
	case ShapeTriangle:
		return "triangle"
	case ShapeSaw:
		return "saw"
	case ShapeSquare:
		return "square"
	}
	return fmt.Sprintf("shape(%d)", uint8(s))
}

// ParseShape parses a waveform name as returned by [Shape.String].
func ParseShape(s string) (Shape, error) {
	switch strings.ToLower(s) {
	case "sine", "sin":
		return ShapeSine, nil
	case "triangle", "tri":
		return ShapeTriangle, nil
	case "saw", "sawtooth":
		return ShapeSaw, nil
	case "square", "pulse":
		return ShapeSquare, nil
	}
	return 0, fmt.Errorf("unknown LFO shape %q", s)
}

// LFO is a periodic unipolar source with readings in [0,1].
type LFO struct {
	Name  string
	Shape Shape
	// Rate is the frequency in Hz.
	Rate float32
	// Phase offsets the waveform, in cycles.
	Phase float32
}

// Value returns the reading at time t in seconds.
func (l LFO) Value(t float32) float32 {
	ph := t*l.Rate + l.Phase
	ph -= math32.Floor(ph)
	switch l.Shape {
	case ShapeTriangle:
		return 1 - math32.Abs(2*ph-1)
	case ShapeSaw:
		return ph
	case ShapeSquare:
		if ph < 0.5 {
			return 1
		}
		return 0
	}
	return 0.5 + 0.5*math32.Sin(2*math32.Pi*ph)
}

// Envelope is an attack/release source. Trigger ramps the reading to 1 over
// AttackTime seconds and Release ramps it back to 0 over ReleaseTime seconds.
// Readings are clamped to [0,1] so overshooting easings saturate.
type Envelope struct {
	Name        string
	AttackTime  float32
	ReleaseTime float32
	// AttackEase and ReleaseEase shape the ramps. Nil means linear.
	AttackEase  ease.TweenFunc
	ReleaseEase ease.TweenFunc

	value float32
	held  bool
	tween *gween.Tween
}

// Trigger starts the attack ramp from the current reading.
func (e *Envelope) Trigger() {
	e.held = true
	e.ramp(1, e.AttackTime, e.AttackEase)
}

// Release starts the release ramp from the current reading.
func (e *Envelope) Release() {
	e.held = false
	e.ramp(0, e.ReleaseTime, e.ReleaseEase)
}

// Held reports whether the envelope was triggered and not released.
func (e *Envelope) Held() bool { return e.held }

func (e *Envelope) ramp(to, duration float32, fn ease.TweenFunc) {
	if duration <= 0 {
		e.tween = nil
		e.value = to
		return
	}
	if fn == nil {
		fn = ease.Linear
	}
	e.tween = gween.New(e.value, to, duration, fn)
}

// Update advances the envelope by dt seconds and returns the new reading.
func (e *Envelope) Update(dt float32) float32 {
	if e.tween == nil {
		return e.value
	}
	v, finished := e.tween.Update(dt)
	e.value = ms1.Clamp(v, 0, 1)
	if finished {
		e.tween = nil
	}
	return e.value
}

// Value returns the current reading.
func (e *Envelope) Value() float32 { return e.value }

// Bank is the set of sources feeding a modulation matrix.
// A Bank is not safe for concurrent use.
type Bank struct {
	LFOs      []LFO
	Envelopes []*Envelope
	macros    map[string]float32
}

// SetMacro sets a named constant reading, typically driven by a UI control.
func (b *Bank) SetMacro(name string, v float32) {
	if b.macros == nil {
		b.macros = make(map[string]float32)
	}
	b.macros[name] = v
}

// Envelope returns the envelope with the given name.
func (b *Bank) Envelope(name string) (*Envelope, bool) {
	for _, e := range b.Envelopes {
		if e.Name == name {
			return e, true
		}
	}
	return nil, false
}

// Sample fills dst with every source's reading at time t, advancing envelopes
// by dt seconds. If dst is nil a new map is allocated. Readings from a previous
// frame with no source in the bank are removed.
func (b *Bank) Sample(t, dt float32, dst map[string]float32) map[string]float32 {
	if dst == nil {
		dst = make(map[string]float32, len(b.LFOs)+len(b.Envelopes)+len(b.macros))
	} else {
		clear(dst)
	}
	for i := range b.LFOs {
		dst[b.LFOs[i].Name] = b.LFOs[i].Value(t)
	}
	for _, e := range b.Envelopes {
		dst[e.Name] = e.Update(dt)
	}
	for name, v := range b.macros {
		dst[name] = v
	}
	return dst
}
