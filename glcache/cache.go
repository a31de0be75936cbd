// Package glcache caches compiled GPU programs in memory and, optionally, persists the
// sources used to produce them so that a later run can recompile them up front.
//
// A [Cache] is bound to one graphics context and is not safe for concurrent use.
package glcache

import (
	"errors"
	"fmt"

	"github.com/soypat/glprog/featkey"
	"github.com/soypat/glprog/glbuild"
)

// CacheVersion tags the persisted document. Documents written with a different
// version are discarded as a whole.
const CacheVersion = 1

var errNoProgram = errors.New("backend returned no program")

// Cache maps a program name and feature set to a compiled program.
type Cache struct {
	backend         Backend
	ctx             ContextType
	caps            Capabilities
	programs        map[programKey]glbuild.Program
	compileDisabled bool
	// Persisted state, see persist.go.
	path    string
	records []record
	scratch []byte
}

// New returns an empty cache compiling through backend. The backend's context type
// and capabilities are queried once.
func New(backend Backend) *Cache {
	return &Cache{
		backend:  backend,
		ctx:      backend.ContextType(),
		caps:     backend.Capabilities(),
		programs: make(map[programKey]glbuild.Program),
	}
}

// ContextType returns the context type of the backend.
func (c *Cache) ContextType() ContextType { return c.ctx }

// Capabilities returns the capabilities of the backend.
func (c *Cache) Capabilities() Capabilities { return c.caps }

// Len returns the number of programs in memory.
func (c *Cache) Len() int { return len(c.programs) }

// Program looks up a compiled program. It returns [glbuild.NoProgram] on a miss and
// has no side effects.
func (c *Cache) Program(name string, fs featkey.FeatureSet) glbuild.Program {
	return c.programs[makeKey(name, fs)]
}

// CompileProgram returns the cached program for name and fs, compiling src on a miss.
// It implements [glbuild.ProgramCompiler].
func (c *Cache) CompileProgram(name string, src glbuild.Sources, flags glbuild.CacheFlags, fs featkey.FeatureSet, separable bool) (glbuild.Program, error) {
	if prog := c.Program(name, fs); prog.IsValid() {
		return prog, nil
	}
	return c.ForceCompileProgram(name, src, flags, fs, separable, false)
}

// ForceCompileProgram preprocesses and compiles src regardless of the cache contents
// and stores the result under name and fs. Programs not loaded from disk are added to
// the persisted document when persistence is enabled.
//
// On failure the cache slot is left empty and the error holds the backend error.
// With compilation disabled ForceCompileProgram does nothing and returns no program
// and a nil error.
func (c *Cache) ForceCompileProgram(name string, src glbuild.Sources, flags glbuild.CacheFlags, fs featkey.FeatureSet, separable, fromDisk bool) (glbuild.Program, error) {
	if c.compileDisabled {
		return glbuild.NoProgram, nil
	}
	key := makeKey(name, fs)
	var pre glbuild.Sources
	for s := range src {
		if src[s] != "" {
			pre[s] = c.Preprocess(glbuild.Stage(s), src[s])
		}
	}
	prog, err := c.backend.CompileProgram(name, pre, flags, separable)
	if err == nil && !prog.IsValid() {
		err = errNoProgram
	}
	log := Logger()
	if err != nil {
		log.Error("program compilation failed", "name", name, "features", fs.String(), "flags", flags.String(), "fromDisk", fromDisk, "err", err)
		c.release(key)
		return glbuild.NoProgram, fmt.Errorf("glcache: compiling %q: %w", name, err)
	}
	if old, ok := c.programs[key]; ok && old != prog {
		c.backend.ReleaseProgram(old)
	}
	c.programs[key] = prog
	if fromDisk {
		log.Debug("program loaded from persisted cache", "name", name, "features", fs.String())
		return prog, nil
	}
	if c.path != "" {
		c.putRecord(name, src, flags, fs)
		if err := c.writeDocument(); err != nil {
			log.Warn("writing persisted cache", "path", c.path, "err", err)
		}
	}
	return prog, nil
}

// SetShaderCompilationEnabled enables or disables compilation. With compilation disabled
// lookups still work but misses never produce a program, which lets tooling generate
// and inspect sources without touching a graphics context.
func (c *Cache) SetShaderCompilationEnabled(enabled bool) {
	c.compileDisabled = !enabled
}

// ShaderCompilationEnabled reports whether compilation is enabled.
func (c *Cache) ShaderCompilationEnabled() bool { return !c.compileDisabled }

// Release releases every program through the backend and empties the cache.
// The persisted document is kept.
func (c *Cache) Release() {
	for _, prog := range c.programs {
		c.backend.ReleaseProgram(prog)
	}
	clear(c.programs)
}

func (c *Cache) release(key programKey) {
	if prog, ok := c.programs[key]; ok {
		c.backend.ReleaseProgram(prog)
		delete(c.programs, key)
	}
}
