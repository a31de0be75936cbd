//go:build !tinygo && cgo

package glbackend

import (
	"errors"
	"fmt"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/soypat/glgl/v4.6-core/glgl"
	"github.com/soypat/glprog/glbuild"
	"github.com/soypat/glprog/glcache"
)

var shaderTypes = [glbuild.NumStages]uint32{
	glbuild.StageVertex:      gl.VERTEX_SHADER,
	glbuild.StageTessControl: gl.TESS_CONTROL_SHADER,
	glbuild.StageTessEval:    gl.TESS_EVALUATION_SHADER,
	glbuild.StageGeometry:    gl.GEOMETRY_SHADER,
	glbuild.StageFragment:    gl.FRAGMENT_SHADER,
}

// Init1x1GLFW starts a 1x1 sized GLFW window with a current OpenGL 4.6 context so that
// programs can be compiled. It returns a termination function that should be called
// when done.
func Init1x1GLFW() (terminate func(), err error) {
	_, terminate, err = glgl.InitWithCurrentWindow33(glgl.WindowConfig{
		Title:   "glprog",
		Version: [2]int{4, 6},
		Width:   1,
		Height:  1,
	})
	return terminate, err
}

// Backend compiles programs on the OpenGL context current on the calling thread.
type Backend struct {
	ctx  glcache.ContextType
	caps glcache.Capabilities
}

// New queries the current context for its shading language version and extensions.
// gl.Init must have been called on the calling thread.
func New() (*Backend, error) {
	slv := gl.GoStr(gl.GetString(gl.SHADING_LANGUAGE_VERSION))
	v, err := ParseShadingLanguageVersion(slv)
	if err != nil {
		return nil, glErrOrMessage(err.Error())
	}
	var n int32
	gl.GetIntegerv(gl.NUM_EXTENSIONS, &n)
	exts := make([]string, 0, n)
	for i := int32(0); i < n; i++ {
		exts = append(exts, gl.GoStr(gl.GetStringi(gl.EXTENSIONS, uint32(i))))
	}
	if err := glgl.Err(); err != nil {
		return nil, fmt.Errorf("glbackend: querying extensions: %w", err)
	}
	return &Backend{
		ctx:  ContextTypeFor(v),
		caps: CapabilitiesFromExtensions(v, exts),
	}, nil
}

func (b *Backend) ContextType() glcache.ContextType   { return b.ctx }
func (b *Backend) Capabilities() glcache.Capabilities { return b.caps }

// CompileProgram compiles every non-empty stage and links them into a program.
// Separable programs are flagged with GL_PROGRAM_SEPARABLE before linking.
// Compile and link errors hold the driver's info log.
func (b *Backend) CompileProgram(name string, src glbuild.Sources, flags glbuild.CacheFlags, separable bool) (glbuild.Program, error) {
	if src.Enabled() == 0 {
		return glbuild.NoProgram, errors.New("glbackend: no stage sources")
	} else if flags&glbuild.CacheTessellation != 0 && !b.caps.Tessellation {
		return glbuild.NoProgram, errors.New("glbackend: tessellation not supported by context")
	} else if flags&glbuild.CacheGeometry != 0 && !b.caps.Geometry {
		return glbuild.NoProgram, errors.New("glbackend: geometry stage not supported by context")
	}
	var shaders [glbuild.NumStages]uint32
	defer func() {
		for _, id := range shaders {
			if id != 0 {
				gl.DeleteShader(id)
			}
		}
	}()
	for s := range src {
		if src[s] == "" {
			continue
		}
		id, err := compileShader(src[s], shaderTypes[s])
		if err != nil {
			return glbuild.NoProgram, fmt.Errorf("%s stage: %w", glbuild.Stage(s), err)
		}
		shaders[s] = id
	}

	prog := gl.CreateProgram()
	if prog == 0 {
		return glbuild.NoProgram, glErrOrMessage("zero program id set by GL")
	}
	if separable {
		gl.ProgramParameteri(prog, gl.PROGRAM_SEPARABLE, gl.TRUE)
	}
	for _, id := range shaders {
		if id != 0 {
			gl.AttachShader(prog, id)
		}
	}
	gl.LinkProgram(prog)
	for _, id := range shaders {
		if id != 0 {
			gl.DetachShader(prog, id)
		}
	}
	var status int32
	gl.GetProgramiv(prog, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &logLen)
		log := make([]uint8, logLen+1)
		gl.GetProgramInfoLog(prog, logLen, nil, &log[0])
		gl.DeleteProgram(prog)
		return glbuild.NoProgram, fmt.Errorf("linking %q: %s", name, gl.GoStr(&log[0]))
	}
	if err := glgl.Err(); err != nil {
		gl.DeleteProgram(prog)
		return glbuild.NoProgram, fmt.Errorf("linking %q: %w", name, err)
	}
	return glbuild.Program(prog), nil
}

// ReleaseProgram deletes the program.
func (b *Backend) ReleaseProgram(p glbuild.Program) {
	if p.IsValid() {
		gl.DeleteProgram(uint32(p))
	}
}

func compileShader(source string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	if shader == 0 {
		return 0, glErrOrMessage("zero shader id set by GL")
	}
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
		log := make([]uint8, logLen+1)
		gl.GetShaderInfoLog(shader, logLen, nil, &log[0])
		gl.DeleteShader(shader)
		return 0, errors.New(gl.GoStr(&log[0]))
	}
	return shader, nil
}

func glErrOrMessage(defaultMsg string) (err error) {
	err = glgl.Err()
	if err == nil {
		err = errors.New(defaultMsg)
	} else {
		err = fmt.Errorf("%s: %w", defaultMsg, err)
	}
	return err
}
