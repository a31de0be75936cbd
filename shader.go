package glprog

import (
	"strconv"
	"strings"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glprog/featkey"
	"github.com/soypat/glprog/glbuild"
	"github.com/soypat/glprog/glbuild/glsllib"
)

// Luminance weights of linear sRGB primaries.
var lumaWeights = ms3.Vec{X: 0.2126, Y: 0.7152, Z: 0.0722}

// GenerateMaterialShader starts a generation pass on pg and writes the program that
// renders materials with the given key. Tessellation and geometry stages are enabled
// when the key asks for tessellation or wireframe rendering.
// The caller compiles the pass with [glbuild.ProgramGenerator.CompileGeneratedShader].
func GenerateMaterialShader(pg *glbuild.ProgramGenerator, kp *KeyProperties, key featkey.Key) error {
	stages := glbuild.FlagsDefault
	tess := key.Unsigned(kp.Tessellation)
	wireframe := key.Bool(kp.Wireframe)
	if tess != featkey.TessNone {
		stages |= glbuild.FlagsTessellation
	}
	if wireframe {
		stages |= glbuild.FlagGeometry
	}
	err := pg.BeginProgram(stages)
	if err != nil {
		return err
	}
	pg.SetupWorldPosition()
	if tess != featkey.TessNone {
		pg.GenerateTessPassThrough(tess)
	}
	if wireframe {
		pg.GenerateGeometryPassThrough(true)
	}
	lighting := key.Bool(kp.Lighting)
	if lighting {
		pg.GenerateWorldNormal()
		pg.GenerateViewVector()
	}

	fs := pg.Fragment()
	fs.AddConstantBufferParam("Material", "diffuseColor", "vec4")
	fs.AddConstantBufferParam("Material", "specularColor", "vec4") // w: shininess
	fs.AddConstantBufferParam("Material", "emissiveColor", "vec4") // w: roughness
	fs.AddConstantBufferParam("Material", "ambientColor", "vec3")
	fs.Append("\tvec4 color = diffuseColor;")
	fs.Append("\tvec3 specColor = specularColor.rgb;")
	fs.Append("\tvec3 emissive = emissiveColor.rgb;")
	if key.Bool(kp.VertexColors) {
		pg.GenerateVertexColor()
		fs.Append("\tcolor *= " + fs.IncomingName(glbuild.VarColor) + ";")
	}
	if lighting {
		fs.Append("\tvec3 N = world_normal;")
	}
	envSampled := false
	for i := range kp.Maps {
		mp := &kp.Maps[i]
		if !key.Bool(mp.Enabled) {
			continue
		}
		mk := MapKind(i)
		cube := key.Bool(mp.Cube)
		if cube && !lighting {
			// Cube maps are sampled along the reflection vector which needs normals.
			continue
		}
		if mk == MapEnvironment {
			envSampled = true
		}
		writeMapSample(pg, mk, cube, key.Bool(mp.Premultiplied), key.Unsigned(mp.Swizzle))
	}

	if lighting {
		err = writeLighting(pg, kp, key, envSampled)
		if err != nil {
			return err
		}
	} else {
		fs.Append("\tcolor.rgb += emissive;")
	}
	if wireframe {
		fs.AddUniform("wireColor", "vec3")
		edge := fs.IncomingName(glbuild.VarEdgeDistance)
		fs.Append("\tfloat edge = min(" + edge + ".x, min(" + edge + ".y, " + edge + ".z));")
		fs.Append("\tcolor.rgb = mix(wireColor, color.rgb, smoothstep(0.0, fwidth(edge)*1.5, edge));")
	}
	fs.Append("\tgl_FragColor = color;")
	return nil
}

func writeMapSample(pg *glbuild.ProgramGenerator, mk MapKind, cube, premultiplied bool, swizzle uint32) {
	fs := pg.Fragment()
	sampler := mk.String() + "Map"
	tex := mk.String() + "Tex"
	var sample string
	if cube {
		fs.AddUniform(sampler, "samplerCube")
		sample = "textureCube(" + sampler + ", reflect(-view_vector, N))"
	} else {
		fs.AddUniform(sampler, "sampler2D")
		uv := pg.GenerateUVCoords(0)
		sample = "texture2D(" + sampler + ", " + fs.IncomingName(uv) + ")"
	}
	fs.Append("\tvec4 " + tex + " = " + swizzleExpr(sample, swizzle) + ";")
	if premultiplied {
		fs.Append("\t" + tex + ".rgb /= max(" + tex + ".a, 0.00001);")
	}
	switch mk {
	case MapDiffuse:
		fs.Append("\tcolor *= " + tex + ";")
	case MapSpecular:
		fs.Append("\tspecColor *= " + tex + ".rgb;")
	case MapNormal:
		fs.Append("\tN = normalize(N + (" + tex + ".xyz*2.0 - 1.0));")
	case MapEmissive:
		fs.Append("\temissive += " + tex + ".rgb;")
	case MapOpacity:
		decl := glbuild.AppendVec3Decl([]byte("\tconst "), "lumaWeights", lumaWeights)
		fs.Append(strings.TrimSuffix(string(decl), "\n"))
		fs.Append("\tcolor.a *= dot(" + tex + ".rgb, lumaWeights);")
	case MapEnvironment:
		fs.Append("\tvec3 envColor = " + tex + ".rgb;")
	}
}

// swizzleExpr rewrites a texel fetch for textures stored in a different channel layout.
func swizzleExpr(sample string, swizzle uint32) string {
	switch {
	case swizzle&(featkey.SwizzleL8toR8|featkey.SwizzleL16toR16) != 0:
		return "vec4(" + sample + ".rrr, 1.0)"
	case swizzle&featkey.SwizzleA8toR8 != 0:
		return "vec4(1.0, 1.0, 1.0, " + sample + ".r)"
	case swizzle&featkey.SwizzleL8A8toRG8 != 0:
		return sample + ".rrrg"
	case swizzle&featkey.SwizzleBGRtoRGB != 0:
		return sample + ".bgra"
	}
	return sample
}

func writeLighting(pg *glbuild.ProgramGenerator, kp *KeyProperties, key featkey.Key, envSampled bool) error {
	fs := pg.Fragment()
	specular := key.Bool(kp.Specular)
	if specular {
		model := key.Unsigned(kp.SpecularModel)
		err := fs.AddFunction("specularTerm", specularFunction(model))
		if err != nil {
			return err
		}
	}
	fs.Append("\tvec3 V = view_vector;")
	if specular && key.Bool(kp.Fresnel) {
		err := fs.AddFunction("fresnelSchlick", glsllib.FresnelSchlick())
		if err != nil {
			return err
		}
		fs.Append("\tspecColor = fresnelSchlick(specColor, N, V);")
	}
	fs.Append("\tvec3 lit = emissive + ambientColor*color.rgb;")
	worldPos := fs.IncomingName(glbuild.VarWorldPos)
	n := min(int(key.Unsigned(kp.LightCount)), MaxLights)
	for i := 0; i < n; i++ {
		lp := &kp.Lights[i]
		if !key.Bool(lp.Enabled) {
			continue
		}
		si := strconv.Itoa(i)
		pos, col, L, att := "lightPosition"+si, "lightColor"+si, "L"+si, "att"+si
		fs.AddUniform(pos, "vec4")
		fs.AddUniform(col, "vec3")
		fs.Appendf("\tvec3 %s = %s.w == 0.0 ? -%s.xyz : normalize(%s.xyz - %s);", L, pos, pos, pos, worldPos)
		fs.Appendf("\tfloat %s = 1.0;", att)
		if key.Bool(lp.Spot) {
			dir, cosCutoff := "lightDirection"+si, "lightSpotCos"+si
			fs.AddUniform(dir, "vec3")
			fs.AddUniform(cosCutoff, "float")
			fs.Appendf("\t%s *= smoothstep(%s, mix(%s, 1.0, 0.1), dot(-%s, %s));", att, cosCutoff, cosCutoff, L, dir)
		}
		if key.Bool(lp.Shadows) {
			// Visibility computed by the shadow pass.
			shadow := "lightShadow" + si
			fs.AddUniform(shadow, "float")
			fs.Appendf("\t%s *= %s;", att, shadow)
		}
		fs.Appendf("\tlit += color.rgb * %s * max(dot(N, %s), 0.0) * %s;", col, L, att)
		if specular {
			fs.Appendf("\tlit += specColor * %s * specularTerm(N, V, %s) * %s;", col, L, att)
		}
	}
	if key.Bool(kp.IBL) {
		if envSampled {
			fs.Append("\tlit += envColor * specColor;")
		} else {
			fs.AddUniform("iblIrradiance", "vec3")
			fs.Append("\tlit += color.rgb * iblIrradiance;")
		}
	}
	fs.Append("\tcolor.rgb = lit;")
	return nil
}

// specularFunction returns the GLSL source of
//
//	float specularTerm(vec3 N, vec3 V, vec3 L)
//
// for the given specular model.
func specularFunction(model uint32) string {
	if !glsllib.NeedsPI(model) {
		return glsllib.Specular(model)
	}
	b := []byte("const ")
	b = glbuild.AppendFloatDecl(b, "PI", math32.Pi)
	b = append(b, glsllib.Specular(model)...)
	return string(b)
}
