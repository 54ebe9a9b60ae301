package modulation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chewxy/math32"
	"github.com/soypat/sdfgraph/catalog"
)

// Target is a parsed rule target key of the form "instance.param" or
// "instance.param.component".
type Target struct {
	Instance string
	Param    string
	// Component is the vector component index in 0..3 or -1 for the whole parameter.
	Component int
}

// TargetKey returns the whole-parameter target key "instance.param".
func TargetKey(instance, param string) string { return instance + "." + param }

// Key returns the target's key in the format accepted by [ParseTarget].
func (t Target) Key() string {
	key := TargetKey(t.Instance, t.Param)
	if t.Component >= 0 {
		key += "." + "xyzw"[t.Component:t.Component+1]
	}
	return key
}

// ParseTarget parses a target key. The optional component suffix is one of
// x,y,z,w or r,g,b,a or 0..3. Instance ids may contain dots, parameter ids may not.
func ParseTarget(key string) (Target, error) {
	i := strings.LastIndexByte(key, '.')
	if i <= 0 || i == len(key)-1 {
		return Target{}, fmt.Errorf("invalid modulation target %q, want \"instance.param\"", key)
	}
	last := key[i+1:]
	if comp, ok := componentIndex(last); ok {
		rest := key[:i]
		j := strings.LastIndexByte(rest, '.')
		if j > 0 && j < len(rest)-1 {
			return Target{Instance: rest[:j], Param: rest[j+1:], Component: comp}, nil
		}
	}
	return Target{Instance: key[:i], Param: last, Component: -1}, nil
}

func componentIndex(s string) (int, bool) {
	if len(s) != 1 {
		return 0, false
	}
	switch s[0] {
	case 'x', 'r', '0':
		return 0, true
	case 'y', 'g', '1':
		return 1, true
	case 'z', 'b', '2':
		return 2, true
	case 'w', 'a', '3':
		return 3, true
	}
	return 0, false
}

type paramKey struct {
	instance, param string
}

type paramRules struct {
	whole []int
	comp  [4][]int
}

// Matrix is a rule set indexed by target for per-frame evaluation without allocations.
// A Matrix is read-only after construction and may be shared between goroutines.
type Matrix struct {
	rules    []Rule
	byTarget map[string][]int
	byParam  map[paramKey]*paramRules
}

// NewMatrix indexes rules. Rules with malformed targets, an inverted clamp range
// or a nonzero amount with an empty [0,0] range are reported in the returned error
// but kept in the matrix, where they still apply to exact key matches in [Matrix.Evaluate].
func NewMatrix(rules []Rule) (*Matrix, error) {
	m := &Matrix{
		rules:    append([]Rule(nil), rules...),
		byTarget: make(map[string][]int),
		byParam:  make(map[paramKey]*paramRules),
	}
	var errs []error
	for i := range m.rules {
		r := &m.rules[i]
		m.byTarget[r.Target] = append(m.byTarget[r.Target], i)
		if r.Min > r.Max {
			errs = append(errs, fmt.Errorf("rule %q: min %g greater than max %g", r.ID, r.Min, r.Max))
		} else if r.Min == 0 && r.Max == 0 && r.Amount != 0 {
			errs = append(errs, fmt.Errorf("rule %q: empty [0,0] range pins %s to 0", r.ID, r.Target))
		}
		tg, err := ParseTarget(r.Target)
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %q: %w", r.ID, err))
			continue
		}
		key := paramKey{instance: tg.Instance, param: tg.Param}
		pr := m.byParam[key]
		if pr == nil {
			pr = new(paramRules)
			m.byParam[key] = pr
		}
		if tg.Component < 0 {
			pr.whole = append(pr.whole, i)
		} else {
			pr.comp[tg.Component] = append(pr.comp[tg.Component], i)
		}
	}
	return m, errors.Join(errs...)
}

// Rules returns the matrix's rules. The returned slice must not be modified.
func (m *Matrix) Rules() []Rule {
	if m == nil {
		return nil
	}
	return m.rules
}

// Evaluate is equivalent to [Evaluate] over the matrix's rules.
func (m *Matrix) Evaluate(base float32, target string, sources map[string]float32) float32 {
	if m == nil {
		return base
	}
	return m.eval(base, m.byTarget[target], sources)
}

// Modulated reports whether any rule targets the parameter or one of its components.
func (m *Matrix) Modulated(instance, param string) bool {
	if m == nil {
		return false
	}
	_, ok := m.byParam[paramKey{instance: instance, param: param}]
	return ok
}

// ApplyValue modulates the first ncomp components of a parameter value. Rules
// targeting the whole parameter apply to every component, then rules targeting
// a single component apply on top of that component's result.
func (m *Matrix) ApplyValue(instance, param string, base catalog.Value, ncomp int, sources map[string]float32) catalog.Value {
	if m == nil {
		return base
	}
	pr := m.byParam[paramKey{instance: instance, param: param}]
	if pr == nil {
		return base
	}
	ncomp = min(max(ncomp, 1), len(base))
	v := base
	for c := 0; c < ncomp; c++ {
		v[c] = m.eval(v[c], pr.whole, sources)
		v[c] = m.eval(v[c], pr.comp[c], sources)
	}
	return v
}

func (m *Matrix) eval(base float32, idx []int, sources map[string]float32) float32 {
	if len(idx) == 0 {
		return base
	}
	v := base
	lo, hi := math32.Inf(1), math32.Inf(-1)
	for _, i := range idx {
		r := &m.rules[i]
		v += r.contribution(sources)
		lo = min(lo, r.Min)
		hi = max(hi, r.Max)
	}
	return clamp(v, lo, hi)
}
