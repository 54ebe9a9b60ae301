// Package modulation routes named per-frame signals (LFOs, envelopes, macros,
// audio features) onto instance parameters.
package modulation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms1"
)

// Curve is the response curve applied to a source reading.
type Curve uint8

const (
	CurveLinear Curve = iota
	// CurveExponential squares the reading. Squaring discards the sign so
	// readings of equal magnitude produce the same contribution.
	CurveExponential
	// CurveLogarithmic takes the square root of the reading. Negative readings
	// produce NaN, which propagates to the modulated value.
	CurveLogarithmic
)

func (c Curve) String() string {
	switch c {
	case CurveLinear:
		return "linear"
	case CurveExponential:
		return "exponential"
	case CurveLogarithmic:
		return "logarithmic"
	}
	return "curve(" + strconv.Itoa(int(c)) + ")"
}

// ParseCurve parses a curve name as returned by [Curve.String].
func ParseCurve(s string) (Curve, error) {
	switch strings.ToLower(s) {
	case "linear", "":
		return CurveLinear, nil
	case "exponential", "exp":
		return CurveExponential, nil
	case "logarithmic", "log":
		return CurveLogarithmic, nil
	}
	return 0, fmt.Errorf("unknown modulation curve %q", s)
}

func (c Curve) MarshalText() ([]byte, error) {
	if c > CurveLogarithmic {
		return nil, errors.New("invalid curve")
	}
	return []byte(c.String()), nil
}

func (c *Curve) UnmarshalText(b []byte) error {
	got, err := ParseCurve(string(b))
	if err != nil {
		return err
	}
	*c = got
	return nil
}

// Apply returns the curved value of v.
func (c Curve) Apply(v float32) float32 {
	switch c {
	case CurveExponential:
		return v * v
	case CurveLogarithmic:
		return math32.Sqrt(v)
	}
	return v
}

// Rule routes a named source onto a target key. See [ParseTarget] for the target format.
type Rule struct {
	ID     string  `json:"id"`
	Source string  `json:"source"`
	Target string  `json:"target"`
	Amount float32 `json:"amount"`
	Curve  Curve   `json:"curve"`
	// Smoothing in [0,1] attenuates the rule's contribution by (1-Smoothing).
	Smoothing float32 `json:"smoothing"`
	// Bipolar rules remap a unipolar [0,1] source to [-1,1] before the curve.
	Bipolar bool `json:"bipolar"`
	// Min and Max bound the modulated value. They are not optional: a rule
	// decoded without them clamps its target to 0, which [NewMatrix] reports.
	Min float32 `json:"min"`
	Max float32 `json:"max"`
}

// contribution returns the rule's additive contribution given the source readings.
// A source missing from sources reads as zero.
func (r *Rule) contribution(sources map[string]float32) float32 {
	s := sources[r.Source]
	if r.Bipolar {
		s = 2*s - 1
	}
	return r.Curve.Apply(s) * r.Amount * (1 - r.Smoothing)
}

// Evaluate returns base modulated by every rule whose Target equals target.
// Contributions add up and the sum is clamped to the widest range of the
// matching rules. If no rule matches base is returned unchanged.
func Evaluate(base float32, target string, sources map[string]float32, rules []Rule) float32 {
	v := base
	lo, hi := math32.Inf(1), math32.Inf(-1)
	matched := false
	for i := range rules {
		r := &rules[i]
		if r.Target != target {
			continue
		}
		matched = true
		v += r.contribution(sources)
		lo = min(lo, r.Min)
		hi = max(hi, r.Max)
	}
	if !matched {
		return base
	}
	return clamp(v, lo, hi)
}

// clamp limits v to [lo,hi] letting NaN through.
func clamp(v, lo, hi float32) float32 {
	if math32.IsNaN(v) {
		return v
	}
	return ms1.Clamp(v, lo, hi)
}
