package glprog

import (
	"fmt"
	"log/slog"

	"github.com/soypat/glprog/featkey"
	"github.com/soypat/glprog/glbuild"
	"github.com/soypat/glprog/glcache"
)

// System hands out material programs to renderable objects. Programs are looked up
// by key first, then by name in the program cache and are generated and compiled
// only on a miss. A System is bound to one graphics context and is not safe for
// concurrent use.
type System struct {
	props *KeyProperties
	cache *glcache.Cache
	gen   *glbuild.ProgramGenerator
	// byKey skips key stringification for programs already handed out.
	byKey map[featkey.Key]glbuild.Program
}

// NewSystem returns a System compiling through backend configured by cfg.
func NewSystem(backend glcache.Backend, cfg Config) (*System, error) {
	props, err := NewKeyProperties()
	if err != nil {
		return nil, err
	}
	cache := glcache.New(backend)
	cache.SetShaderCompilationEnabled(!cfg.DisableCompilation)
	if cfg.CacheFile != "" {
		err = cache.SetShaderCachePersistenceEnabled(cfg.CacheFile)
		if err != nil {
			return nil, err
		}
	}
	gen := glbuild.NewProgramGenerator(cache)
	gen.SetConstantBuffersEnabled(cache.Capabilities().UniformBlocks())
	for name, header := range cfg.StageHeaders {
		stage, ok := parseStage(name)
		if !ok {
			return nil, fmt.Errorf("glprog: unknown stage %q in stage headers", name)
		}
		gen.RegisterStageHeader(stage, header)
	}
	for name, text := range cfg.Includes {
		gen.RegisterInclude(name, text)
	}
	return &System{
		props: props,
		cache: cache,
		gen:   gen,
		byKey: make(map[featkey.Key]glbuild.Program),
	}, nil
}

// GetShader returns the program rendering m lit by lights with feature set fs.
// A failed compilation returns no program and the error. Failures are not
// remembered so the program is generated again on the next request.
func (s *System) GetShader(m *Material, lights []Light, fs featkey.FeatureSet) (glbuild.Program, error) {
	key := s.props.MaterialKey(m, lights, fs)
	if prog, ok := s.byKey[key]; ok {
		return prog, nil
	}
	name := key.String(s.props.List())
	prog := s.cache.Program(name, fs)
	if !prog.IsValid() {
		err := GenerateMaterialShader(s.gen, s.props, key)
		if err != nil {
			return glbuild.NoProgram, err
		}
		s.gen.DefineFeatures(fs)
		prog, err = s.gen.CompileGeneratedShader(name, 0, fs, false)
		if err != nil {
			return glbuild.NoProgram, err
		}
	}
	if prog.IsValid() {
		s.byKey[key] = prog
	}
	return prog, nil
}

// Sources generates the stage sources for m without compiling them.
func (s *System) Sources(m *Material, lights []Light, fs featkey.FeatureSet) (name string, src glbuild.Sources, err error) {
	key := s.props.MaterialKey(m, lights, fs)
	err = GenerateMaterialShader(s.gen, s.props, key)
	if err != nil {
		return "", src, err
	}
	s.gen.DefineFeatures(fs)
	src, _, err = s.gen.BuildSources()
	return key.String(s.props.List()), src, err
}

// KeyProperties returns the property table keys are built against.
func (s *System) KeyProperties() *KeyProperties { return s.props }

// Cache returns the program cache.
func (s *System) Cache() *glcache.Cache { return s.cache }

// Release releases every program. Programs handed out before are invalid afterwards.
func (s *System) Release() {
	s.cache.Release()
	clear(s.byKey)
}

// SetLogger configures logging of the program cache. See [glcache.SetLogger].
func SetLogger(l *slog.Logger) {
	glcache.SetLogger(l)
}

func parseStage(name string) (glbuild.Stage, bool) {
	for s := glbuild.Stage(0); s < glbuild.NumStages; s++ {
		if s.String() == name {
			return s, true
		}
	}
	return 0, false
}
