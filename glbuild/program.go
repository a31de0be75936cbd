package glbuild

import (
	"errors"
	"strings"

	"github.com/soypat/glprog/featkey"
)

var (
	// ErrNoStages is returned when a generation pass is started with no enabled stages.
	ErrNoStages = errors.New("glbuild: program requires at least one enabled stage")
	// ErrNoPass is returned when building outside of a generation pass.
	ErrNoPass = errors.New("glbuild: no generation pass in progress, call BeginProgram")
)

// ProgramCompiler turns generated stage sources into a program. It is implemented by
// glcache.Cache.
type ProgramCompiler interface {
	CompileProgram(name string, src Sources, flags CacheFlags, features featkey.FeatureSet, separable bool) (Program, error)
}

// ProgramGenerator drives a generation pass over the five stage generators.
// It is not safe for concurrent use.
type ProgramGenerator struct {
	compiler ProgramCompiler
	stages   [NumStages]StageGenerator
	enabled  StageFlags
	inPass   bool
	headers  [NumStages]string
	includes map[string]string
	codes    map[string]struct{}
	// passthrough holds stages whose linkage bodies are written at build time.
	passthrough StageFlags
	wireframe   bool
	// flattenBuffers renders constant buffer members as plain uniforms.
	flattenBuffers bool
	scratch        []byte
}

// NewProgramGenerator returns a generator that hands finished passes to compiler.
// compiler may be nil if only [ProgramGenerator.BuildSources] is used.
func NewProgramGenerator(compiler ProgramCompiler) *ProgramGenerator {
	pg := &ProgramGenerator{
		compiler: compiler,
		includes: make(map[string]string),
		codes:    make(map[string]struct{}),
	}
	for s := range pg.stages {
		pg.stages[s].reset(Stage(s))
	}
	return pg
}

// BeginProgram starts a generation pass with the given stages enabled. It resets every
// stage and links each enabled stage's outgoing variables to the incoming variables of
// the next enabled stage. Disabled stages are skipped when linking, so with
// tessellation disabled vertex outputs feed the fragment stage directly.
func (pg *ProgramGenerator) BeginProgram(stages StageFlags) error {
	stages &= flagsAll
	if stages == 0 {
		return ErrNoStages
	}
	for s := range pg.stages {
		pg.stages[s].reset(Stage(s))
	}
	clear(pg.codes)
	pg.passthrough = 0
	pg.wireframe = false
	pg.enabled = stages
	pg.inPass = true

	prev := stageNone
	for s := Stage(0); s < NumStages; s++ {
		if !stages.Has(s) {
			continue
		}
		if prev != stageNone {
			producer, consumer := &pg.stages[prev], &pg.stages[s]
			producer.next = s
			consumer.prev = prev
			consumer.incoming = producer.outgoing
		}
		prev = s
	}
	return nil
}

// EnabledStages returns the stages of the current pass.
func (pg *ProgramGenerator) EnabledStages() StageFlags { return pg.enabled }

// Stage returns the generator of stage s. Generators of disabled stages may be written
// to but are not built.
func (pg *ProgramGenerator) Stage(s Stage) *StageGenerator { return &pg.stages[s] }

func (pg *ProgramGenerator) Vertex() *StageGenerator      { return &pg.stages[StageVertex] }
func (pg *ProgramGenerator) TessControl() *StageGenerator { return &pg.stages[StageTessControl] }
func (pg *ProgramGenerator) TessEval() *StageGenerator    { return &pg.stages[StageTessEval] }
func (pg *ProgramGenerator) Geometry() *StageGenerator    { return &pg.stages[StageGeometry] }
func (pg *ProgramGenerator) Fragment() *StageGenerator    { return &pg.stages[StageFragment] }

// SetConstantBuffersEnabled selects whether constant buffers are declared as uniform
// blocks. When disabled each member is declared as a plain uniform, as required by
// GLSL before 1.40 and GLSL ES before 3.00. Enabled by default.
func (pg *ProgramGenerator) SetConstantBuffersEnabled(enabled bool) {
	pg.flattenBuffers = !enabled
}

// DefineFeatures defines a FEATURE_<NAME> macro in every enabled stage for each
// enabled feature of fs and undefines it for each disabled one, so a stage header
// may define a feature by default. Non alphanumeric characters of feature names
// are replaced by underscores.
func (pg *ProgramGenerator) DefineFeatures(fs featkey.FeatureSet) {
	for s := Stage(0); s < NumStages; s++ {
		if !pg.enabled.Has(s) {
			continue
		}
		sg := &pg.stages[s]
		for _, f := range fs {
			macro := FeatureMacro(f.Name)
			if f.Enabled {
				sg.AddDefine(macro, "1")
			} else {
				sg.AddUndefine(macro)
			}
		}
	}
}

// FeatureMacro returns the preprocessor macro [ProgramGenerator.DefineFeatures]
// uses for the named feature.
func FeatureMacro(name string) string {
	return "FEATURE_" + strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		}
		return '_'
	}, name)
}

// RegisterStageHeader sets boilerplate prepended to every generated source of stage s.
func (pg *ProgramGenerator) RegisterStageHeader(s Stage, header string) {
	pg.headers[s] = header
}

// RegisterInclude registers the text inlined in place of an include of name.
func (pg *ProgramGenerator) RegisterInclude(name, text string) {
	pg.includes[name] = text
}

// HasCode reports whether the named piece of code was generated during this pass.
func (pg *ProgramGenerator) HasCode(name string) bool {
	_, ok := pg.codes[name]
	return ok
}

// SetCode marks the named piece of code as generated. It reports whether the
// code was already marked, in which case the caller should not generate it again.
func (pg *ProgramGenerator) SetCode(name string) (already bool) {
	if _, already = pg.codes[name]; !already {
		pg.codes[name] = struct{}{}
	}
	return already
}

// BuildSources renders every enabled stage and returns the sources along with the
// cache flags implied by the enabled stages. The pass ends after building.
func (pg *ProgramGenerator) BuildSources() (src Sources, flags CacheFlags, err error) {
	if !pg.inPass {
		return src, 0, ErrNoPass
	}
	pg.finalizeLinkage()
	resolve := func(name string) (string, bool) {
		text, ok := pg.includes[name]
		return text, ok
	}
	for s := Stage(0); s < NumStages; s++ {
		if !pg.enabled.Has(s) {
			continue
		}
		pg.scratch = pg.scratch[:0]
		if pg.headers[s] != "" {
			pg.scratch = append(pg.scratch, pg.headers[s]...)
			pg.scratch = appendNewlineIfMissing(pg.scratch)
		}
		pg.stages[s].flattenBuffers = pg.flattenBuffers
		pg.scratch = pg.stages[s].Build(pg.scratch, resolve)
		src[s] = string(pg.scratch)
	}
	if pg.enabled.Has(StageTessControl) || pg.enabled.Has(StageTessEval) {
		flags |= CacheTessellation
	}
	if pg.enabled.Has(StageGeometry) {
		flags |= CacheGeometry
	}
	pg.inPass = false
	return src, flags, nil
}

// CompileGeneratedShader builds the current pass and asks the compiler for a program
// named name. flags are extended with the tessellation and geometry flags of the
// enabled stages. Errors in stage linkage surface as compile errors.
func (pg *ProgramGenerator) CompileGeneratedShader(name string, flags CacheFlags, features featkey.FeatureSet, separable bool) (Program, error) {
	if pg.compiler == nil {
		return NoProgram, errors.New("glbuild: generator has no compiler")
	}
	src, stageFlags, err := pg.BuildSources()
	if err != nil {
		return NoProgram, err
	}
	return pg.compiler.CompileProgram(name, src, flags|stageFlags, features, separable)
}

// finalizeLinkage mirrors pass-through variables into the outputs of the optional
// stages and writes their bodies when requested.
func (pg *ProgramGenerator) finalizeLinkage() {
	tc := &pg.stages[StageTessControl]
	if pg.enabled.Has(StageTessControl) {
		// Per-vertex inputs are re-emitted as per-control-point outputs.
		for _, name := range tc.incoming.Names() {
			typ, _ := tc.incoming.Type(name)
			tc.outgoing.Set(name, typ)
		}
		if pg.passthrough.Has(StageTessControl) {
			pg.writeTessControlBody(tc)
		}
	}
	if te := &pg.stages[StageTessEval]; pg.enabled.Has(StageTessEval) && pg.passthrough.Has(StageTessEval) {
		pg.writeTessEvalBody(te)
	}
	if gs := &pg.stages[StageGeometry]; pg.enabled.Has(StageGeometry) && pg.passthrough.Has(StageGeometry) {
		pg.writeGeometryBody(gs)
	}
}
