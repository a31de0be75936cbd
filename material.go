package glprog

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

// LightKind selects how a light's position is interpreted.
type LightKind uint8

const (
	LightPoint LightKind = iota
	LightDirectional
	LightSpot
)

// Light is a light source. Direction is used by directional and spot lights.
type Light struct {
	Kind      LightKind
	Position  ms3.Vec
	Direction ms3.Vec
	Color     ms3.Vec
	Intensity float32
	// SpotAngle is the full cone angle of spot lights in radians.
	SpotAngle float32
	Shadows   bool
}

// ImageMap describes how a texture contributes to a material. The texture itself
// is bound by the renderer.
type ImageMap struct {
	Enabled       bool
	Premultiplied bool
	Cube          bool
	// Swizzle holds featkey.Swizzle* flags describing the texel format.
	Swizzle uint32
}

// Material holds every parameter of a surface. Fields that do not affect
// program generation only show up in [Uniforms].
type Material struct {
	Diffuse  ms3.Vec
	Specular ms3.Vec
	Emissive ms3.Vec
	Ambient  ms3.Vec
	Opacity  float32
	// Shininess is the Blinn-Phong exponent.
	Shininess float32
	// Roughness is used by the GGX and Ward specular models.
	Roughness     float32
	Lighting      bool
	IBL           bool
	Fresnel       bool
	VertexColors  bool
	SpecularModel uint32
	Tessellation  uint32
	TessLevel     float32
	// PhongBlend mixes flat and Phong tessellated positions.
	PhongBlend float32
	Wireframe  bool
	WireColor  ms3.Vec
	Maps       [NumMaps]ImageMap
}

// DefaultMaterial returns a white lit material.
func DefaultMaterial() Material {
	return Material{
		Diffuse:    ms3.Vec{X: 1, Y: 1, Z: 1},
		Ambient:    ms3.Vec{X: 0.05, Y: 0.05, Z: 0.05},
		Opacity:    1,
		Shininess:  32,
		Roughness:  0.5,
		Lighting:   true,
		TessLevel:  1,
		PhongBlend: 0.75,
	}
}

// Uniform is a named uniform value. Value holds 1 to 4 components.
type Uniform struct {
	Name  string
	Value [4]float32
	N     int
}

// Uniforms appends the uniform values a program generated for m and lights reads.
// Light colors are premultiplied by intensity and spot angles are converted to the
// cosine of the half angle.
func Uniforms(dst []Uniform, m *Material, lights []Light) []Uniform {
	dst = append(dst,
		vec4Uniform("diffuseColor", m.Diffuse, m.Opacity),
		vec4Uniform("specularColor", m.Specular, max(m.Shininess, 1)),
		vec4Uniform("emissiveColor", m.Emissive, clampRoughness(m.Roughness)),
		vec3Uniform("ambientColor", m.Ambient),
	)
	if m.Tessellation != 0 {
		level := max(m.TessLevel, 1)
		dst = append(dst, floatUniform("tessLevelInner", level), floatUniform("tessLevelOuter", level),
			floatUniform("tessPhongBlend", math32.Min(math32.Max(m.PhongBlend, 0), 1)))
	}
	if m.Wireframe {
		dst = append(dst, vec3Uniform("wireColor", m.WireColor))
	}
	if !m.Lighting {
		return dst
	}
	for i := 0; i < len(lights) && i < MaxLights; i++ {
		l := &lights[i]
		pos := l.Position
		w := float32(1)
		if l.Kind == LightDirectional {
			pos, w = ms3.Unit(l.Direction), 0
		}
		suffix := string(rune('0' + i))
		dst = append(dst,
			vec4Uniform("lightPosition"+suffix, pos, w),
			vec3Uniform("lightColor"+suffix, ms3.Scale(l.Intensity, l.Color)),
		)
		if l.Kind == LightSpot {
			dst = append(dst,
				vec3Uniform("lightDirection"+suffix, ms3.Unit(l.Direction)),
				floatUniform("lightSpotCos"+suffix, math32.Cos(l.SpotAngle/2)),
			)
		}
	}
	return dst
}

func clampRoughness(r float32) float32 {
	// Zero roughness makes the GGX and Ward distributions singular.
	return math32.Min(math32.Max(r, 0.02), 1)
}

func floatUniform(name string, v float32) Uniform {
	return Uniform{Name: name, Value: [4]float32{v}, N: 1}
}

func vec3Uniform(name string, v ms3.Vec) Uniform {
	return Uniform{Name: name, Value: [4]float32{v.X, v.Y, v.Z}, N: 3}
}

func vec4Uniform(name string, v ms3.Vec, w float32) Uniform {
	return Uniform{Name: name, Value: [4]float32{v.X, v.Y, v.Z, w}, N: 4}
}
