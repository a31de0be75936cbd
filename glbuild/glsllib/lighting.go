// Package glsllib holds GLSL functions used by generated material programs.
// Functions read the Material constant buffer fields by name.
package glsllib

import (
	_ "embed"

	"github.com/soypat/glprog/featkey"
)

//go:embed specular_blinnphong.glsl
var blinnPhongSrc string

//go:embed specular_ggx.glsl
var ggxSrc string

//go:embed specular_ward.glsl
var wardSrc string

// Specular returns the specular distribution of a featkey specular model. Unknown
// models fall back to Blinn-Phong. GGX and Ward require a PI constant.
//
//	float specularTerm(vec3 N, vec3 V, vec3 L)
func Specular(model uint32) string {
	switch model {
	case featkey.SpecularGGX:
		return ggxSrc
	case featkey.SpecularWard:
		return wardSrc
	}
	return blinnPhongSrc
}

// NeedsPI reports whether the [Specular] source of model reads the PI constant.
func NeedsPI(model uint32) bool {
	return model == featkey.SpecularGGX || model == featkey.SpecularWard
}

//go:embed fresnel.glsl
var fresnelSrc string

// FresnelSchlick is Schlick's approximation of the Fresnel reflectance:
//
//	vec3 fresnelSchlick(vec3 f0, vec3 N, vec3 V)
func FresnelSchlick() string { return fresnelSrc }
