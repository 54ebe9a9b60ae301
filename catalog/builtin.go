package catalog

import (
	"embed"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
)

//go:embed glsl/*.glsl
var glslFS embed.FS

func glsl(name string) []byte {
	src, err := glslFS.ReadFile("glsl/" + name + ".glsl")
	if err != nil {
		panic(err) // Embedded at build time, only fails on a typo.
	}
	return src
}

// NewDefault returns a registry with the [Builtin] definitions registered.
// The returned registry still accepts registrations until first queried.
func NewDefault() *Registry {
	r := NewRegistry()
	err := r.Register(Builtin()...)
	if err != nil {
		panic(err)
	}
	return r
}

func floatParam(id string, min, max, step, def float32) Param {
	return Param{ID: id, Type: ParamFloat, Min: min, Max: max, Step: step, Default: Scalar(def)}
}

func angleParam(id string, def float32) Param {
	return Param{ID: id, Type: ParamAngle, Min: -math32.Pi, Max: math32.Pi, Step: math32.Pi / 180, Default: Scalar(def)}
}

func vec2Param(id string, min, max, step float32, def ms2.Vec) Param {
	return Param{ID: id, Type: ParamVec2, Min: min, Max: max, Step: step, Default: Vec2(def)}
}

func vec3Param(id string, min, max, step float32, def ms3.Vec) Param {
	return Param{ID: id, Type: ParamVec3, Min: min, Max: max, Step: step, Default: Vec3(def)}
}

// Builtin returns the node definitions shipped with the package:
// 2D and 3D shapes, boolean operations, domain transforms and procedural fields.
func Builtin() []Definition {
	return []Definition{
		// 2D shapes.
		{
			ID: "circle", Name: "Circle", Category: CategoryShape2D, Space: Space2D,
			Params:  []Param{floatParam("radius", 0, 2, 0.01, 0.5)},
			Targets: []string{"radius"},
			Source:  glsl("circle"),
		},
		{
			ID: "box2d", Name: "Rectangle", Category: CategoryShape2D, Space: Space2D,
			Params: []Param{
				vec2Param("size", 0, 2, 0.01, ms2.Vec{X: 0.4, Y: 0.3}),
				floatParam("round", 0, 0.5, 0.005, 0),
			},
			Targets: []string{"size", "round"},
			Source:  glsl("box2d"),
		},
		{
			ID: "ring", Name: "Ring", Category: CategoryShape2D, Space: Space2D,
			Params: []Param{
				floatParam("radius", 0, 2, 0.01, 0.5),
				floatParam("width", 0, 0.5, 0.005, 0.05),
			},
			Targets: []string{"radius", "width"},
			Source:  glsl("ring"),
		},
		{
			ID: "hexagon", Name: "Hexagon", Category: CategoryShape2D, Space: Space2D,
			Params:  []Param{floatParam("radius", 0, 2, 0.01, 0.4)},
			Targets: []string{"radius"},
			Source:  glsl("hexagon"),
		},
		{
			ID: "triangle", Name: "Equilateral triangle", Category: CategoryShape2D, Space: Space2D,
			Params:  []Param{floatParam("radius", 0, 2, 0.01, 0.4)},
			Targets: []string{"radius"},
			Source:  glsl("triangle"),
		},

		// 3D shapes.
		{
			ID: "sphere", Name: "Sphere", Category: CategoryShape3D, Space: Space3D,
			Params:  []Param{floatParam("radius", 0, 2, 0.01, 0.5)},
			Targets: []string{"radius"},
			Source:  glsl("sphere"),
		},
		{
			ID: "box", Name: "Box", Category: CategoryShape3D, Space: Space3D,
			Params: []Param{
				vec3Param("size", 0, 2, 0.01, ms3.Vec{X: 0.4, Y: 0.4, Z: 0.4}),
				floatParam("round", 0, 0.5, 0.005, 0),
			},
			Targets: []string{"size", "round"},
			Source:  glsl("box"),
		},
		{
			ID: "torus", Name: "Torus", Category: CategoryShape3D, Space: Space3D,
			Params: []Param{
				floatParam("major", 0, 2, 0.01, 0.5),
				floatParam("minor", 0, 1, 0.005, 0.15),
			},
			Targets: []string{"major", "minor"},
			Source:  glsl("torus"),
		},
		{
			ID: "cylinder", Name: "Cylinder", Category: CategoryShape3D, Space: Space3D,
			Params: []Param{
				floatParam("radius", 0, 2, 0.01, 0.3),
				floatParam("height", 0, 2, 0.01, 0.5),
			},
			Targets: []string{"radius", "height"},
			Source:  glsl("cylinder"),
		},

		// Operations.
		{
			ID: "union", Name: "Union", Category: CategoryOperation, Space: SpaceBoth,
			Inputs: 2, Source: glsl("union"),
		},
		{
			ID: "intersection", Name: "Intersection", Category: CategoryOperation, Space: SpaceBoth,
			Inputs: 2, Source: glsl("intersection"),
		},
		{
			ID: "difference", Name: "Difference", Category: CategoryOperation, Space: SpaceBoth,
			Inputs: 2, Source: glsl("difference"),
		},
		{
			ID: "smooth-union", Name: "Smooth union", Category: CategoryOperation, Space: SpaceBoth,
			Inputs:  2,
			Params:  []Param{floatParam("k", 0, 1, 0.005, 0.1)},
			Targets: []string{"k"},
			Cost:    CostMedium,
			Source:  glsl("smoothunion"),
		},
		{
			ID: "xor", Name: "Xor", Category: CategoryOperation, Space: SpaceBoth,
			Inputs: 2, Source: glsl("xor"),
		},
		{
			ID: "round", Name: "Round", Category: CategoryOperation, Space: SpaceBoth,
			Inputs:  1,
			Params:  []Param{floatParam("radius", 0, 0.5, 0.005, 0.05)},
			Targets: []string{"radius"},
			Source:  glsl("round"),
		},
		{
			ID: "onion", Name: "Onion", Category: CategoryOperation, Space: SpaceBoth,
			Inputs:  1,
			Params:  []Param{floatParam("thickness", 0, 0.5, 0.005, 0.02)},
			Targets: []string{"thickness"},
			Source:  glsl("onion"),
		},

		// Domain transforms.
		{
			ID: "translate", Name: "Translate", Category: CategoryDomainTransform, Space: SpaceBoth,
			Inputs:   1,
			Params:   []Param{vec3Param("offset", -4, 4, 0.01, ms3.Vec{})},
			Targets:  []string{"offset"},
			Source:   glsl("translate2D"),
			Source3D: glsl("translate3D"),
		},
		{
			ID: "rotate", Name: "Rotate", Category: CategoryDomainTransform, Space: SpaceBoth,
			Inputs:   1,
			Params:   []Param{angleParam("angle", 0)},
			Targets:  []string{"angle"},
			Source:   glsl("rotate2D"),
			Source3D: glsl("rotate3D"),
		},
		{
			ID: "repeat", Name: "Repeat", Category: CategoryDomainTransform, Space: SpaceBoth,
			Inputs:   1,
			Params:   []Param{vec3Param("spacing", 0.01, 4, 0.01, ms3.Vec{X: 1, Y: 1, Z: 1})},
			Targets:  []string{"spacing"},
			Cost:     CostMedium,
			Source:   glsl("repeat2D"),
			Source3D: glsl("repeat3D"),
		},
		{
			ID: "mirror", Name: "Mirror", Category: CategoryDomainTransform, Space: SpaceBoth,
			Inputs:   1,
			Params:   []Param{vec3Param("axes", 0, 1, 1, ms3.Vec{X: 1})},
			Source:   glsl("mirror2D"),
			Source3D: glsl("mirror3D"),
		},
		{
			// Scaling the domain does not rescale the returned distance: the result is a bound, not an exact SDF.
			ID: "scale", Name: "Scale", Category: CategoryDomainTransform, Space: SpaceBoth,
			Inputs:   1,
			Params:   []Param{floatParam("factor", 0.01, 8, 0.01, 1)},
			Targets:  []string{"factor"},
			Source:   glsl("scale2D"),
			Source3D: glsl("scale3D"),
		},
		{
			ID: "twist", Name: "Twist", Category: CategoryDomainTransform, Space: Space3D,
			Inputs:  1,
			Params:  []Param{floatParam("rate", -10, 10, 0.01, 1)},
			Targets: []string{"rate"},
			Cost:    CostMedium,
			Source:  glsl("twist"),
		},

		// Procedural fields.
		{
			ID: "gyroid", Name: "Gyroid", Category: CategoryField, Space: Space3D,
			Params: []Param{
				floatParam("scale", 0.1, 40, 0.1, 8),
				floatParam("thickness", 0, 0.5, 0.001, 0.02),
			},
			Targets: []string{"scale", "thickness"},
			Cost:    CostHigh,
			Source:  glsl("gyroid"),
		},
		{
			ID: "ripple", Name: "Ripple", Category: CategoryField, Space: SpaceBoth,
			Params: []Param{
				floatParam("frequency", 0.1, 60, 0.1, 12),
				floatParam("width", 0, 0.5, 0.001, 0.01),
				floatParam("speed", -20, 20, 0.1, 2),
			},
			Targets:  []string{"frequency", "width", "speed"},
			Cost:     CostHigh,
			Source:   glsl("ripple2D"),
			Source3D: glsl("ripple3D"),
		},
	}
}
