// Package glbackend implements [glcache.Backend] on top of a current OpenGL context.
// The GL implementation requires cgo; without it every constructor returns an error.
// The version and extension parsing helpers work in every build.
package glbackend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/naga/glsl"
	"github.com/soypat/glprog/glcache"
)

var errBadVersion = errors.New("glbackend: no shading language version found")

// ParseShadingLanguageVersion parses the string returned by the driver for
// GL_SHADING_LANGUAGE_VERSION, i.e: "4.60 NVIDIA" or "OpenGL ES GLSL ES 3.00".
func ParseShadingLanguageVersion(s string) (glsl.Version, error) {
	es := strings.Contains(s, " ES")
	for i := 0; i+2 < len(s); i++ {
		if !isDigit(s[i]) || s[i+1] != '.' || !isDigit(s[i+2]) {
			continue
		}
		minor := int(s[i+2]-'0') * 10
		if i+3 < len(s) && isDigit(s[i+3]) {
			minor += int(s[i+3] - '0')
		}
		return glsl.Version{Major: s[i] - '0', Minor: uint8(minor), ES: es}, nil
	}
	return glsl.Version{}, fmt.Errorf("%w in %q", errBadVersion, s)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// ContextTypeFor returns the context type that runs shading language version v.
func ContextTypeFor(v glsl.Version) glcache.ContextType {
	num := glcache.VersionNumber(v)
	switch {
	case v.ES && num < 300:
		return glcache.ContextGLES2
	case v.ES && num < 310:
		return glcache.ContextGLES3
	case v.ES:
		return glcache.ContextGLES31Plus
	case num < 130:
		return glcache.ContextGL2
	case num < 400:
		return glcache.ContextGL3
	}
	return glcache.ContextGL4
}

// CapabilitiesFromExtensions derives capabilities from the shading language version
// and the extension names reported by the context. Features that are core in v are
// reported regardless of extensions.
func CapabilitiesFromExtensions(v glsl.Version, extensions []string) glcache.Capabilities {
	has := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		has[strings.TrimSpace(ext)] = true
	}
	hasAny := func(names ...string) bool {
		for _, name := range names {
			if has[name] {
				return true
			}
		}
		return false
	}
	num := glcache.VersionNumber(v)
	core := func(desktop, es int) bool {
		if v.ES {
			return num >= es
		}
		return num >= desktop
	}
	khrBlend := hasAny("GL_KHR_blend_equation_advanced")
	return glcache.Capabilities{
		Version:             v,
		StandardDerivatives: core(110, 300) || hasAny("GL_OES_standard_derivatives"),
		Tessellation:        core(400, 320) || hasAny("GL_ARB_tessellation_shader", "GL_EXT_tessellation_shader", "GL_OES_tessellation_shader"),
		Geometry:            core(150, 320) || hasAny("GL_ARB_geometry_shader4", "GL_EXT_geometry_shader", "GL_OES_geometry_shader"),
		GPUShader5:          core(400, 320) || hasAny("GL_ARB_gpu_shader5", "GL_EXT_gpu_shader5", "GL_OES_gpu_shader5"),
		AdvancedBlendKHR:    khrBlend,
		AdvancedBlend:       khrBlend || hasAny("GL_NV_blend_equation_advanced"),
		ImageLoadStore:      core(420, 310) || hasAny("GL_ARB_shader_image_load_store", "GL_EXT_shader_image_load_store"),
		AtomicCounters:      core(420, 310) || hasAny("GL_ARB_shader_atomic_counters"),
		StorageBuffers:      v.SupportsStorageBuffers() || hasAny("GL_ARB_shader_storage_buffer_object"),
	}
}
