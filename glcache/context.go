package glcache

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gogpu/naga/glsl"
	"github.com/soypat/glprog/featkey"
	"github.com/soypat/glprog/glbuild"
)

// ContextType is a set of graphics API flavors. A running context usually reports
// a single type while persisted records may be tagged with several.
type ContextType uint8

const (
	ContextGL2 ContextType = 1 << iota
	ContextGLES2
	ContextGL3
	ContextGLES3
	ContextGLES31Plus
	ContextGL4

	contextES = ContextGLES2 | ContextGLES3 | ContextGLES31Plus
)

var contextNames = [...]string{"gl2", "gles2", "gl3", "gles3", "gles31+", "gl4"}

// IsES reports whether any type in the set is an OpenGL ES flavor.
func (ct ContextType) IsES() bool { return ct&contextES != 0 }

// String returns the pipe delimited names of the types in the set.
func (ct ContextType) String() string {
	if ct == 0 {
		return "none"
	}
	var b strings.Builder
	for i, name := range contextNames {
		if ct&(1<<i) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('|')
		}
		b.WriteString(name)
	}
	return b.String()
}

// ParseContextType parses the output of [ContextType.String].
func ParseContextType(s string) (ContextType, error) {
	var ct ContextType
	if s == "none" {
		return 0, nil
	}
	for _, part := range strings.Split(s, "|") {
		part = strings.TrimSpace(part)
		found := false
		for i, name := range contextNames {
			if name == part {
				ct |= 1 << i
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown context type %q", part)
		}
	}
	return ct, nil
}

// accepts reports whether a record tagged with rec may be used by a context of type ct:
// rec must intersect ct and be fully contained in it.
func (ct ContextType) accepts(rec ContextType) bool {
	return rec&ct != 0 && rec&^ct == 0
}

// Capabilities describe what the running context supports. They gate the extension
// directives written during preprocessing.
type Capabilities struct {
	// Version is the highest shading language version the context accepts.
	Version             glsl.Version
	StandardDerivatives bool
	Tessellation        bool
	Geometry            bool
	GPUShader5          bool
	AdvancedBlend       bool
	AdvancedBlendKHR    bool
	ImageLoadStore      bool
	AtomicCounters      bool
	StorageBuffers      bool
}

// Backend is the graphics context collaborator. Methods must be called on the thread
// that owns the context.
type Backend interface {
	ContextType() ContextType
	Capabilities() Capabilities
	// CompileProgram compiles and links the non-empty stage sources into a program.
	// The error should carry the native info log.
	CompileProgram(name string, src glbuild.Sources, flags glbuild.CacheFlags, separable bool) (glbuild.Program, error)
	ReleaseProgram(glbuild.Program)
}

type programKey struct {
	name     string
	features uint32
}

func makeKey(name string, fs featkey.FeatureSet) programKey {
	return programKey{name: name, features: fs.Hash()}
}

// VersionNumber returns the version as an integer, i.e: 330 for GLSL 3.30 and 0 for
// the zero version.
func VersionNumber(v glsl.Version) int {
	num, err := strconv.Atoi(v.VersionNumber())
	if err != nil {
		return 0
	}
	return num
}

// UniformBlocks reports whether the shading language version declares uniform blocks,
// which requires GLSL 1.40 or GLSL ES 3.00.
func (caps Capabilities) UniformBlocks() bool {
	if caps.Version.ES {
		return VersionNumber(caps.Version) >= 300
	}
	return VersionNumber(caps.Version) >= 140
}
