package glcache

import (
	"strings"

	"github.com/gogpu/naga/glsl"
	"github.com/soypat/glprog/glbuild"
)

// Preprocess rewrites generated stage source for the running context. It replaces any
// #version directive with one for the context, enables the extensions the stage may
// need when the context reports them, adds ES precision qualifiers and, for GLSL 1.30
// and ES 3.00 onwards, maps the legacy attribute, varying, texture2D and gl_FragColor
// names to their modern forms.
func (c *Cache) Preprocess(stage glbuild.Stage, src string) string {
	c.scratch = appendPreprocessed(c.scratch[:0], c.ctx, &c.caps, stage, src)
	return string(c.scratch)
}

func appendPreprocessed(b []byte, ct ContextType, caps *Capabilities, stage glbuild.Stage, src string) []byte {
	es := ct.IsES() || caps.Version.ES
	num := VersionNumber(caps.Version)
	b = appendVersionDirective(b, caps.Version, es)
	b = appendExtensions(b, es, num, caps, stage)
	if es {
		b = appendPrecision(b, num, stage)
	}
	if (es && num >= 300) || (!es && num >= 130) {
		b = appendCompatMacros(b, stage)
	}
	return appendStripVersion(b, src)
}

func appendVersionDirective(b []byte, v glsl.Version, es bool) []byte {
	num := VersionNumber(v)
	b = append(b, "#version "...)
	switch {
	case es && num < 300:
		b = append(b, "100"...)
	case num <= 0:
		b = append(b, "110"...)
	case es:
		b = append(b, v.VersionNumber()...)
		b = append(b, " es"...)
	case num >= 150:
		b = append(b, v.VersionNumber()...)
		b = append(b, " core"...)
	default:
		b = append(b, v.VersionNumber()...)
	}
	return append(b, '\n')
}

func appendExtensions(b []byte, es bool, num int, caps *Capabilities, stage glbuild.Stage) []byte {
	const enable = "enable"
	isTess := stage == glbuild.StageTessControl || stage == glbuild.StageTessEval
	if caps.StandardDerivatives && es && num < 300 && stage == glbuild.StageFragment {
		b = glbuild.AppendExtensionDecl(b, "GL_OES_standard_derivatives", enable)
	}
	if caps.Tessellation && isTess {
		if es && num < 320 {
			b = glbuild.AppendExtensionDecl(b, "GL_EXT_tessellation_shader", enable)
		} else if !es && num < 400 {
			b = glbuild.AppendExtensionDecl(b, "GL_ARB_tessellation_shader", enable)
		}
	}
	if caps.Geometry && stage == glbuild.StageGeometry {
		if es && num < 320 {
			b = glbuild.AppendExtensionDecl(b, "GL_EXT_geometry_shader", enable)
		} else if !es && num < 150 {
			b = glbuild.AppendExtensionDecl(b, "GL_ARB_geometry_shader4", enable)
		}
	}
	if caps.GPUShader5 {
		if es && num < 320 {
			b = glbuild.AppendExtensionDecl(b, "GL_EXT_gpu_shader5", enable)
		} else if !es && num < 400 {
			b = glbuild.AppendExtensionDecl(b, "GL_ARB_gpu_shader5", enable)
		}
	}
	if stage == glbuild.StageFragment {
		if caps.AdvancedBlendKHR {
			b = glbuild.AppendExtensionDecl(b, "GL_KHR_blend_equation_advanced", enable)
		} else if caps.AdvancedBlend {
			b = glbuild.AppendExtensionDecl(b, "GL_NV_blend_equation_advanced", enable)
		}
	}
	if !es {
		if caps.ImageLoadStore && num < 420 {
			b = glbuild.AppendExtensionDecl(b, "GL_ARB_shader_image_load_store", enable)
		}
		if caps.AtomicCounters && num < 420 {
			b = glbuild.AppendExtensionDecl(b, "GL_ARB_shader_atomic_counters", enable)
		}
		if caps.StorageBuffers && num < 430 {
			b = glbuild.AppendExtensionDecl(b, "GL_ARB_shader_storage_buffer_object", enable)
		}
	}
	return b
}

func appendPrecision(b []byte, num int, stage glbuild.Stage) []byte {
	if num < 300 && stage == glbuild.StageFragment {
		// ES 1.00 fragment shaders may lack highp support.
		return append(b, "#ifdef GL_FRAGMENT_PRECISION_HIGH\nprecision highp float;\n#else\nprecision mediump float;\n#endif\n"...)
	}
	b = append(b, "precision highp float;\nprecision highp int;\n"...)
	if num >= 300 {
		b = append(b, "precision highp sampler2D;\n"...)
	}
	return b
}

func appendCompatMacros(b []byte, stage glbuild.Stage) []byte {
	switch stage {
	case glbuild.StageVertex:
		b = glbuild.AppendDefineDecl(b, "attribute", "in")
		b = glbuild.AppendDefineDecl(b, "varying", "out")
	case glbuild.StageFragment:
		b = glbuild.AppendDefineDecl(b, "varying", "in")
		b = glbuild.AppendDefineDecl(b, "gl_FragColor", "fragOutput")
	}
	b = glbuild.AppendDefineDecl(b, "texture2D", "texture")
	b = glbuild.AppendDefineDecl(b, "textureCube", "texture")
	if stage == glbuild.StageFragment {
		b = append(b, "out vec4 fragOutput;\n"...)
	}
	return b
}

// appendStripVersion appends src without its #version lines.
func appendStripVersion(b []byte, src string) []byte {
	for len(src) > 0 {
		line, rest, found := strings.Cut(src, "\n")
		if !strings.HasPrefix(strings.TrimSpace(line), "#version") {
			b = append(b, line...)
			if found {
				b = append(b, '\n')
			}
		}
		src = rest
	}
	return b
}
