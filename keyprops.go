package glprog

import (
	"fmt"
	"strconv"

	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glprog/featkey"
)

// MaxLights is the number of lights a material program can be generated for.
// Lights beyond MaxLights are ignored when building keys.
const MaxLights = 4

// MapKind identifies an image map slot of a [Material].
type MapKind uint8

const (
	MapDiffuse MapKind = iota
	MapSpecular
	MapNormal
	MapEmissive
	MapOpacity
	MapEnvironment
	NumMaps
)

var mapNames = [NumMaps]string{"diffuse", "specular", "normal", "emissive", "opacity", "environment"}

func (mk MapKind) String() string {
	if mk >= NumMaps {
		return "MapKind(" + strconv.Itoa(int(mk)) + ")"
	}
	return mapNames[mk]
}

// LightProperties are the key fields of one light slot.
type LightProperties struct {
	Enabled featkey.Property
	Spot    featkey.Property
	Shadows featkey.Property
}

// MapProperties are the key fields of one image map slot.
type MapProperties struct {
	Enabled       featkey.Property
	Premultiplied featkey.Property
	// Cube is set for maps sampled as cube maps along the reflection vector.
	Cube    featkey.Property
	Swizzle featkey.Property
}

// KeyProperties is the property table material keys are built against. Keys built
// against different tables must not be compared.
type KeyProperties struct {
	Lighting      featkey.Property
	IBL           featkey.Property
	LightCount    featkey.Property
	Specular      featkey.Property
	Fresnel       featkey.Property
	VertexColors  featkey.Property
	SpecularModel featkey.Property
	Tessellation  featkey.Property
	Wireframe     featkey.Property
	Lights        [MaxLights]LightProperties
	Maps          [NumMaps]MapProperties

	list []*featkey.Property
	used int
}

// NewKeyProperties returns the default property table with every offset assigned.
// An error means the table does not fit in a [featkey.Key].
func NewKeyProperties() (*KeyProperties, error) {
	kp := &KeyProperties{
		Lighting:      featkey.Bool("lighting"),
		IBL:           featkey.Bool("ibl"),
		LightCount:    featkey.Unsigned("lightCount", 3),
		Specular:      featkey.Bool("specular"),
		Fresnel:       featkey.Bool("fresnel"),
		VertexColors:  featkey.Bool("vertexColors"),
		SpecularModel: featkey.SpecularModel("specularModel"),
		Tessellation:  featkey.Tessellation("tessellation"),
		Wireframe:     featkey.Bool("wireframe"),
	}
	kp.list = append(kp.list, &kp.Lighting, &kp.IBL, &kp.LightCount, &kp.Specular, &kp.Fresnel,
		&kp.VertexColors, &kp.SpecularModel, &kp.Tessellation, &kp.Wireframe)
	for i := range kp.Lights {
		prefix := "light" + strconv.Itoa(i) + "."
		l := &kp.Lights[i]
		l.Enabled = featkey.Bool(prefix + "enabled")
		l.Spot = featkey.Bool(prefix + "spot")
		l.Shadows = featkey.Bool(prefix + "shadows")
		kp.list = append(kp.list, &l.Enabled, &l.Spot, &l.Shadows)
	}
	for i := range kp.Maps {
		prefix := mapNames[i] + "Map."
		m := &kp.Maps[i]
		m.Enabled = featkey.Bool(prefix + "enabled")
		m.Premultiplied = featkey.Bool(prefix + "premultiplied")
		m.Cube = featkey.Bool(prefix + "cube")
		m.Swizzle = featkey.Swizzle(prefix + "swizzle")
		kp.list = append(kp.list, &m.Enabled, &m.Premultiplied, &m.Cube, &m.Swizzle)
	}
	used, err := featkey.Layout(kp.list)
	if err != nil {
		return nil, fmt.Errorf("glprog: laying out key properties: %w", err)
	}
	kp.used = used
	return kp, nil
}

// List returns the properties in layout order, as required by [featkey.Key.String]
// and [featkey.Parse].
func (kp *KeyProperties) List() []*featkey.Property { return kp.list }

// UsedBits returns the number of key bits consumed by the table including padding.
func (kp *KeyProperties) UsedBits() int { return kp.used }

// MaterialKey builds the key of the program that renders m lit by lights.
// The feature set is hashed into the key.
func (kp *KeyProperties) MaterialKey(m *Material, lights []Light, fs featkey.FeatureSet) featkey.Key {
	var k featkey.Key
	k.SetFeatureSet(fs)
	k.SetBool(kp.Lighting, m.Lighting)
	k.SetBool(kp.VertexColors, m.VertexColors)
	k.SetBool(kp.Wireframe, m.Wireframe)
	k.SetUnsigned(kp.Tessellation, m.Tessellation)
	if m.Lighting {
		k.SetBool(kp.IBL, m.IBL)
		k.SetBool(kp.Fresnel, m.Fresnel)
		specular := m.Specular != (ms3.Vec{})
		k.SetBool(kp.Specular, specular)
		if specular {
			k.SetUnsigned(kp.SpecularModel, m.SpecularModel)
		}
		n := min(len(lights), MaxLights)
		k.SetUnsigned(kp.LightCount, uint32(n))
		for i := 0; i < n; i++ {
			lp := &kp.Lights[i]
			k.SetBool(lp.Enabled, true)
			k.SetBool(lp.Spot, lights[i].Kind == LightSpot)
			k.SetBool(lp.Shadows, lights[i].Shadows)
		}
	}
	for i := range m.Maps {
		im := &m.Maps[i]
		if !im.Enabled {
			continue
		}
		mp := &kp.Maps[i]
		k.SetBool(mp.Enabled, true)
		k.SetBool(mp.Premultiplied, im.Premultiplied)
		k.SetBool(mp.Cube, im.Cube)
		k.SetUnsigned(mp.Swizzle, im.Swizzle)
	}
	return k
}
