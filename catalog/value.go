package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
)

// ParamType is the semantic type of a [Param]. It determines the GLSL
// uniform type and how values are uploaded.
type ParamType uint8

const (
	paramUndefined ParamType = iota
	ParamFloat
	ParamInt
	// ParamAngle is a float in radians.
	ParamAngle
	ParamVec2
	ParamVec3
	ParamBool
	// ParamColor is an RGBA color with components in [0,1].
	ParamColor
)

func (pt ParamType) valid() bool { return pt > paramUndefined && pt <= ParamColor }

// Components returns the number of Value components the type uses.
func (pt ParamType) Components() int {
	switch pt {
	case ParamVec2:
		return 2
	case ParamVec3:
		return 3
	case ParamColor:
		return 4
	case paramUndefined:
		return 0
	}
	return 1
}

// GLSLType returns the GLSL type name used to declare the parameter's uniform.
func (pt ParamType) GLSLType() string {
	switch pt {
	case ParamFloat, ParamAngle:
		return "float"
	case ParamInt:
		return "int"
	case ParamBool:
		return "bool"
	case ParamVec2:
		return "vec2"
	case ParamVec3:
		return "vec3"
	case ParamColor:
		return "vec4"
	}
	return ""
}

// IsInteger reports whether the type is uploaded as an integer uniform.
func (pt ParamType) IsInteger() bool { return pt == ParamInt || pt == ParamBool }

func (pt ParamType) String() string {
	switch pt {
	case ParamFloat:
		return "float"
	case ParamInt:
		return "int"
	case ParamAngle:
		return "angle"
	case ParamVec2:
		return "vec2"
	case ParamVec3:
		return "vec3"
	case ParamBool:
		return "bool"
	case ParamColor:
		return "color"
	}
	return fmt.Sprintf("paramtype(%d)", uint8(pt))
}

// Value holds a parameter value. Scalar types use only the first component.
type Value [4]float32

// Scalar returns a single component value.
func Scalar(v float32) Value { return Value{v} }

// Bool returns 1 for true and 0 for false.
func Bool(b bool) Value {
	if b {
		return Value{1}
	}
	return Value{}
}

// Vec2 returns a 2 component value.
func Vec2(v ms2.Vec) Value { return Value{v.X, v.Y} }

// Vec3 returns a 3 component value.
func Vec3(v ms3.Vec) Value { return Value{v.X, v.Y, v.Z} }

// RGBA returns a 4 component color value.
func RGBA(r, g, b, a float32) Value { return Value{r, g, b, a} }

// Vec2 returns the first two components as a vector.
func (v Value) Vec2() ms2.Vec { return ms2.Vec{X: v[0], Y: v[1]} }

// Vec3 returns the first three components as a vector.
func (v Value) Vec3() ms3.Vec { return ms3.Vec{X: v[0], Y: v[1], Z: v[2]} }

// Int returns the first component rounded to the nearest integer, as uploaded for int and bool uniforms.
func (v Value) Int() int32 { return int32(math32.Round(v[0])) }

// UnmarshalJSON accepts either a bare number or an array of up to 4 numbers.
func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return errors.New("empty value")
	}
	switch b[0] {
	case '[':
		var arr []float32
		if err := json.Unmarshal(b, &arr); err != nil {
			return err
		} else if len(arr) > len(v) {
			return fmt.Errorf("value has %d components, max is %d", len(arr), len(v))
		}
		*v = Value{}
		copy(v[:], arr)
	case 't', 'f':
		var bv bool
		if err := json.Unmarshal(b, &bv); err != nil {
			return err
		}
		*v = Bool(bv)
	default:
		var f float32
		if err := json.Unmarshal(b, &f); err != nil {
			return err
		}
		*v = Scalar(f)
	}
	return nil
}
