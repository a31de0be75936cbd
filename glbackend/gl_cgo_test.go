//go:build !tinygo && cgo

package glbackend

import (
	"errors"
	"os"
	"runtime"
	"strings"
	"testing"

	"github.com/soypat/glprog/featkey"
	"github.com/soypat/glprog/glbuild"
	"github.com/soypat/glprog/glcache"
)

var (
	errGLSkipped = errors.New("no OpenGL context available")
	glResult     error
)

// GL calls must be made from the main thread so they run before the tests proper.
func TestMain(m *testing.M) {
	runtime.LockOSThread()
	glResult = testGL()
	runtime.UnlockOSThread()
	os.Exit(m.Run())
}

func testGL() error {
	term, err := Init1x1GLFW()
	if err != nil {
		return errors.Join(errGLSkipped, err)
	}
	defer term()
	backend, err := New()
	if err != nil {
		return err
	}
	cache := glcache.New(backend)
	defer cache.Release()
	pg := glbuild.NewProgramGenerator(cache)
	err = pg.BeginProgram(glbuild.FlagsDefault)
	if err != nil {
		return err
	}
	pg.SetupWorldPosition()
	pg.GenerateWorldNormal()
	pg.Fragment().Append("\tgl_FragColor = vec4(world_normal*0.5 + 0.5, 1.0);")
	prog, err := pg.CompileGeneratedShader("normals", 0, nil, false)
	if err != nil {
		return err
	}
	if !prog.IsValid() {
		return errors.New("valid compile returned no program")
	}

	err = pg.BeginProgram(glbuild.FlagsDefault)
	if err != nil {
		return err
	}
	pg.Fragment().AddIncoming("neverWritten", "vec3")
	pg.Fragment().Append("\tgl_FragColor = vec4(undeclared, 1.0);")
	_, err = pg.CompileGeneratedShader("broken", 0, featkey.FeatureSet{{Name: "broken", Enabled: true}}, false)
	if err == nil {
		return errors.New("expected compile error for undeclared variable")
	} else if !strings.Contains(err.Error(), "fragment stage") {
		return errors.New("compile error does not name stage: " + err.Error())
	}
	return nil
}

func TestGLBackend(t *testing.T) {
	if errors.Is(glResult, errGLSkipped) {
		t.Skip(glResult)
	}
	if glResult != nil {
		t.Fatal(glResult)
	}
}
