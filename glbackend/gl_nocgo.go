//go:build tinygo || !cgo

package glbackend

import (
	"errors"

	"github.com/soypat/glprog/glbuild"
	"github.com/soypat/glprog/glcache"
)

var errNoCGO = errors.New("glbackend: OpenGL requires CGo and is not supported on TinyGo")

// Init1x1GLFW is not supported without CGo.
func Init1x1GLFW() (terminate func(), err error) {
	return nil, errNoCGO
}

// Backend is not usable without CGo.
type Backend struct{}

// New returns an error without CGo.
func New() (*Backend, error) {
	return nil, errNoCGO
}

func (b *Backend) ContextType() glcache.ContextType   { return 0 }
func (b *Backend) Capabilities() glcache.Capabilities { return glcache.Capabilities{} }

func (b *Backend) CompileProgram(name string, src glbuild.Sources, flags glbuild.CacheFlags, separable bool) (glbuild.Program, error) {
	return glbuild.NoProgram, errNoCGO
}

func (b *Backend) ReleaseProgram(glbuild.Program) {}
