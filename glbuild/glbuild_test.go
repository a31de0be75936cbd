package glbuild_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glprog/featkey"
	"github.com/soypat/glprog/glbuild"
)

func TestLinkageVertexFragment(t *testing.T) {
	pg := glbuild.NewProgramGenerator(nil)
	err := pg.BeginProgram(glbuild.FlagsDefault)
	if err != nil {
		t.Fatal(err)
	}
	vs, fs := pg.Vertex(), pg.Fragment()
	if vs.Outgoing() != fs.Incoming() {
		t.Fatal("vertex outgoing and fragment incoming are not the same collection")
	}
	vs.AddOutgoing("varNormal", "vec3")
	if typ, ok := fs.Incoming().Type("varNormal"); !ok || typ != "vec3" {
		t.Errorf("fragment did not see vertex output, got %q %v", typ, ok)
	}
}

func TestLinkageTessellationChain(t *testing.T) {
	pg := glbuild.NewProgramGenerator(nil)
	err := pg.BeginProgram(glbuild.FlagsDefault | glbuild.FlagsTessellation)
	if err != nil {
		t.Fatal(err)
	}
	vs, tc, te, fs := pg.Vertex(), pg.TessControl(), pg.TessEval(), pg.Fragment()
	switch {
	case vs.Outgoing() != tc.Incoming():
		t.Error("vertex->tessControl not linked")
	case tc.Outgoing() != te.Incoming():
		t.Error("tessControl->tessEval not linked")
	case te.Outgoing() != fs.Incoming():
		t.Error("tessEval->fragment not linked")
	case vs.Outgoing() == fs.Incoming():
		t.Error("vertex linked straight to fragment with tessellation enabled")
	}
	if pg.Geometry().Incoming() == te.Outgoing() {
		t.Error("disabled geometry stage linked")
	}
}

func TestBeginProgramNoStages(t *testing.T) {
	pg := glbuild.NewProgramGenerator(nil)
	if err := pg.BeginProgram(glbuild.FlagsDefault); err != nil {
		t.Fatal(err)
	}
	pg.Vertex().AddOutgoing("varColor", "vec4")
	err := pg.BeginProgram(0)
	if !errors.Is(err, glbuild.ErrNoStages) {
		t.Fatalf("want ErrNoStages, got %v", err)
	}
	if pg.Vertex().Outgoing().Len() != 1 || pg.EnabledStages() != glbuild.FlagsDefault {
		t.Error("rejected BeginProgram modified generator state")
	}
}

func TestStageRenderingFullPipeline(t *testing.T) {
	pg := glbuild.NewProgramGenerator(nil)
	all := glbuild.FlagsDefault | glbuild.FlagsTessellation | glbuild.FlagGeometry
	if err := pg.BeginProgram(all); err != nil {
		t.Fatal(err)
	}
	pg.GenerateTessPassThrough(featkey.TessLinear)
	pg.GenerateGeometryPassThrough(false)
	pg.Vertex().AssignOutput("n", "vec3", "vec3(1.0)")
	src, flags, err := pg.BuildSources()
	if err != nil {
		t.Fatal(err)
	}
	if flags != glbuild.CacheTessellation|glbuild.CacheGeometry {
		t.Errorf("unexpected cache flags %q", flags)
	}
	expect := []struct {
		stage glbuild.Stage
		want  []string
	}{
		{glbuild.StageVertex, []string{"varying vec3 n;", "\tn = vec3(1.0);"}},
		{glbuild.StageTessControl, []string{"in vec3 n[];", "out vec3 n_tc[];", "n_tc[gl_InvocationID] = n[gl_InvocationID];", "layout(vertices = 3) out;"}},
		{glbuild.StageTessEval, []string{"in vec3 n_tc[];", "out vec3 n_te;", "n_te = gl_TessCoord.x * n_tc[0]"}},
		{glbuild.StageGeometry, []string{"in vec3 n_te[3];", "out vec3 n;", "n = n_te[i];", "const int vertexCount=3;\n", "EmitVertex();"}},
		{glbuild.StageFragment, []string{"varying vec3 n;"}},
	}
	for _, e := range expect {
		for _, want := range e.want {
			if !strings.Contains(src[e.stage], want) {
				t.Errorf("%s stage missing %q:\n%s", e.stage, want, src[e.stage])
			}
		}
		if !strings.HasSuffix(src[e.stage], "}\n") {
			t.Errorf("%s stage not terminated by main", e.stage)
		}
	}
}

func TestStageRenderingGeometryNoTessellation(t *testing.T) {
	pg := glbuild.NewProgramGenerator(nil)
	if err := pg.BeginProgram(glbuild.FlagsDefault | glbuild.FlagGeometry); err != nil {
		t.Fatal(err)
	}
	pg.GenerateGeometryPassThrough(true)
	pg.GenerateVertexColor()
	src, flags, err := pg.BuildSources()
	if err != nil {
		t.Fatal(err)
	}
	if flags != glbuild.CacheGeometry {
		t.Errorf("unexpected cache flags %q", flags)
	}
	if src[glbuild.StageTessControl] != "" || src[glbuild.StageTessEval] != "" {
		t.Error("disabled stages have source")
	}
	checks := map[glbuild.Stage][]string{
		glbuild.StageVertex:   {"attribute vec4 attr_color;", "varying vec4 varColor_vs;", "\tvarColor_vs = attr_color;"},
		glbuild.StageGeometry: {"in vec4 varColor_vs[];", "out vec3 varEdgeDistance;", "out vec4 varColor;"},
		glbuild.StageFragment: {"varying vec3 varEdgeDistance;", "varying vec4 varColor;"},
	}
	for stage, wants := range checks {
		for _, want := range wants {
			if !strings.Contains(src[stage], want) {
				t.Errorf("%s stage missing %q:\n%s", stage, want, src[stage])
			}
		}
	}
}

func TestHeadersAndIncludes(t *testing.T) {
	pg := glbuild.NewProgramGenerator(nil)
	pg.RegisterStageHeader(glbuild.StageFragment, "// fragment header")
	pg.RegisterInclude("lighting", "float lit() { return 1.0; }")
	if err := pg.BeginProgram(glbuild.FlagsDefault); err != nil {
		t.Fatal(err)
	}
	fs := pg.Fragment()
	fs.AddInclude("lighting")
	fs.AddInclude("lighting")
	fs.AddInclude("missing")
	src, _, err := pg.BuildSources()
	if err != nil {
		t.Fatal(err)
	}
	frag := src[glbuild.StageFragment]
	if !strings.HasPrefix(frag, "// fragment header\n") {
		t.Errorf("header not prepended:\n%s", frag)
	}
	if strings.Count(frag, "float lit()") != 1 {
		t.Errorf("include not inlined exactly once:\n%s", frag)
	}
	if !strings.Contains(frag, "#include \"missing\"\n") {
		t.Errorf("unresolved include not kept:\n%s", frag)
	}
	if strings.Contains(src[glbuild.StageVertex], "fragment header") {
		t.Error("fragment header written to vertex stage")
	}
}

func TestHasCodeIdempotent(t *testing.T) {
	pg := glbuild.NewProgramGenerator(nil)
	if err := pg.BeginProgram(glbuild.FlagsDefault); err != nil {
		t.Fatal(err)
	}
	pg.SetupWorldPosition()
	pg.GenerateViewVector() // Also requests world position.
	pg.SetupWorldPosition()
	pg.GenerateWorldNormal()
	pg.GenerateWorldNormal()
	uv := pg.GenerateUVCoords(0)
	if again := pg.GenerateUVCoords(0); again != uv {
		t.Errorf("uv name changed: %q %q", uv, again)
	}
	if !pg.HasCode(glbuild.CodeViewVector) {
		t.Error("view vector not marked")
	}
	src, _, err := pg.BuildSources()
	if err != nil {
		t.Fatal(err)
	}
	vert, frag := src[glbuild.StageVertex], src[glbuild.StageFragment]
	counts := []struct {
		src, sub string
	}{
		{vert, "vec4 worldPos ="},
		{vert, "uniform mat4 modelMatrix;"},
		{vert, "attribute vec2 attr_uv0;"},
		{frag, "vec3 world_normal ="},
		{frag, "vec3 view_vector ="},
		{frag, "varying vec3 varWorldPos;"},
		{frag, "varying vec2 " + uv + ";"},
	}
	for _, c := range counts {
		if n := strings.Count(c.src, c.sub); n != 1 {
			t.Errorf("want %q once, got %d", c.sub, n)
		}
	}
	if err := pg.BeginProgram(glbuild.FlagsDefault); err != nil {
		t.Fatal(err)
	}
	if pg.HasCode(glbuild.CodeWorldPosition) {
		t.Error("has-code set survived BeginProgram")
	}
}

func TestAddFunctionDeduplication(t *testing.T) {
	pg := glbuild.NewProgramGenerator(nil)
	if err := pg.BeginProgram(glbuild.FlagsDefault); err != nil {
		t.Fatal(err)
	}
	fs := pg.Fragment()
	const fn = "float sq(float x) { return x*x; }"
	if err := fs.AddFunction("sq", fn); err != nil {
		t.Fatal(err)
	}
	if err := fs.AddFunction("sq", fn); err != nil {
		t.Fatal("identical redefinition rejected:", err)
	}
	if err := fs.AddFunction("sq", "float sq(float x) { return x; }"); err == nil {
		t.Fatal("expected error on conflicting definition")
	}
	src, _, err := pg.BuildSources()
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(src[glbuild.StageFragment], fn); n != 1 {
		t.Errorf("want one definition, got %d", n)
	}
}

func TestConstantBuffer(t *testing.T) {
	pg := glbuild.NewProgramGenerator(nil)
	if err := pg.BeginProgram(glbuild.FlagsDefault); err != nil {
		t.Fatal(err)
	}
	fs := pg.Fragment()
	fs.AddConstantBufferParam("Material", "diffuse", "vec4")
	fs.AddConstantBufferParam("Material", "shininess", "float")
	fs.AddConstantBufferParam("Material", "diffuse", "vec3")
	src, _, err := pg.BuildSources()
	if err != nil {
		t.Fatal(err)
	}
	const want = "layout(std140) uniform Material {\n\tvec4 diffuse;\n\tfloat shininess;\n};\n"
	if !strings.Contains(src[glbuild.StageFragment], want) {
		t.Errorf("want block\n%s\ngot\n%s", want, src[glbuild.StageFragment])
	}
}

func TestConstantBufferFlattened(t *testing.T) {
	pg := glbuild.NewProgramGenerator(nil)
	pg.SetConstantBuffersEnabled(false)
	if err := pg.BeginProgram(glbuild.FlagsDefault); err != nil {
		t.Fatal(err)
	}
	fs := pg.Fragment()
	fs.AddConstantBufferParam("Material", "diffuse", "vec4")
	fs.AddConstantBufferParam("Material", "shininess", "float")
	src, _, err := pg.BuildSources()
	if err != nil {
		t.Fatal(err)
	}
	frag := src[glbuild.StageFragment]
	if strings.Contains(frag, "uniform Material") {
		t.Errorf("uniform block declared with constant buffers disabled:\n%s", frag)
	}
	const want = "uniform vec4 diffuse;\nuniform float shininess;\n"
	if !strings.Contains(frag, want) {
		t.Errorf("want plain uniforms\n%s\ngot\n%s", want, frag)
	}

	// The setting survives across passes until changed.
	pg.SetConstantBuffersEnabled(true)
	if err := pg.BeginProgram(glbuild.FlagsDefault); err != nil {
		t.Fatal(err)
	}
	pg.Fragment().AddConstantBufferParam("Material", "diffuse", "vec4")
	src, _, err = pg.BuildSources()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(src[glbuild.StageFragment], "uniform Material {") {
		t.Error("uniform block missing after enabling constant buffers")
	}
}

type fakeCompiler struct {
	calls     int
	name      string
	src       glbuild.Sources
	flags     glbuild.CacheFlags
	separable bool
}

func (fc *fakeCompiler) CompileProgram(name string, src glbuild.Sources, flags glbuild.CacheFlags, fs featkey.FeatureSet, separable bool) (glbuild.Program, error) {
	fc.calls++
	fc.name, fc.src, fc.flags, fc.separable = name, src, flags, separable
	return glbuild.Program(fc.calls), nil
}

func TestCompileGeneratedShader(t *testing.T) {
	var fc fakeCompiler
	pg := glbuild.NewProgramGenerator(&fc)
	if err := pg.BeginProgram(glbuild.FlagsDefault | glbuild.FlagsTessellation); err != nil {
		t.Fatal(err)
	}
	pg.GenerateTessPassThrough(featkey.TessPhong)
	pg.SetupWorldPosition()
	pg.GenerateWorldNormal()
	fset := featkey.FeatureSet{{Name: "shadows", Enabled: true}}
	prog, err := pg.CompileGeneratedShader("material", 0, fset, true)
	if err != nil {
		t.Fatal(err)
	}
	if !prog.IsValid() || fc.calls != 1 {
		t.Fatalf("unexpected program %d after %d calls", prog, fc.calls)
	}
	if fc.name != "material" || !fc.separable {
		t.Errorf("arguments not forwarded: %q %v", fc.name, fc.separable)
	}
	if fc.flags != glbuild.CacheTessellation {
		t.Errorf("want tessellation flag, got %q", fc.flags)
	}
	if fc.src.Enabled() != glbuild.FlagsDefault|glbuild.FlagsTessellation {
		t.Errorf("unexpected enabled sources %s", fc.src.Enabled())
	}
	if !strings.Contains(fc.src[glbuild.StageTessEval], "mix(flatPos, phongPos, tessPhongBlend)") {
		t.Errorf("phong tessellation not generated:\n%s", fc.src[glbuild.StageTessEval])
	}
	_, err = pg.CompileGeneratedShader("material", 0, fset, false)
	if !errors.Is(err, glbuild.ErrNoPass) {
		t.Errorf("want ErrNoPass after pass ended, got %v", err)
	}
}

func TestCacheFlagsRoundTrip(t *testing.T) {
	for _, cf := range []glbuild.CacheFlags{0, glbuild.CacheTessellation, glbuild.CacheGeometry, glbuild.CacheTessellation | glbuild.CacheGeometry} {
		got, err := glbuild.ParseCacheFlags(cf.String())
		if err != nil {
			t.Fatal(err)
		}
		if got != cf {
			t.Errorf("round trip %q: got %q", cf, got)
		}
	}
	if _, err := glbuild.ParseCacheFlags("tessellation|bogus"); err == nil {
		t.Error("expected error for unknown flag")
	}
}

func TestAppendFloat(t *testing.T) {
	tests := []struct {
		v    float32
		want string
	}{
		{0, "0.0"},
		{1, "1.0"},
		{1.5, "1.5"},
		{-0.25, "-0.25"},
		{100, "100.0"},
	}
	for _, test := range tests {
		got := string(glbuild.AppendFloat(nil, '-', '.', test.v))
		if got != test.want {
			t.Errorf("AppendFloat(%v): want %q, got %q", test.v, test.want, got)
		}
	}
	got := string(glbuild.AppendVec3Decl(nil, "luma", ms3.Vec{X: 1, Y: 0.5, Z: -2}))
	if got != "vec3 luma=vec3(1.0,0.5,-2.0);\n" {
		t.Errorf("unexpected vec3 declaration %q", got)
	}
}

func TestLiteralDecls(t *testing.T) {
	var b []byte
	b = glbuild.AppendDefineDecl(b, "USE_FOG", "1")
	b = glbuild.AppendDefineDecl(b, "HAS_UV", "")
	b = glbuild.AppendUndefineDecl(b, "USE_FOG")
	b = glbuild.AppendExtensionDecl(b, "GL_OES_standard_derivatives", "enable")
	b = glbuild.AppendIntDecl(b, "n", -3)
	want := "#define USE_FOG 1\n#define HAS_UV\n#undef USE_FOG\n" +
		"#extension GL_OES_standard_derivatives : enable\n" +
		"int n=-3;\n"
	if string(b) != want {
		t.Errorf("want\n%s\ngot\n%s", want, b)
	}
}

func TestDefineFeatures(t *testing.T) {
	pg := glbuild.NewProgramGenerator(nil)
	pg.RegisterStageHeader(glbuild.StageFragment, "#define FEATURE_SHADOWS 1")
	if err := pg.BeginProgram(glbuild.FlagsDefault); err != nil {
		t.Fatal(err)
	}
	pg.Fragment().AddLayout("layout(early_fragment_tests) in;")
	pg.DefineFeatures(featkey.FeatureSet{
		{Name: "fog", Enabled: true},
		{Name: "shadows", Enabled: false},
	})
	src, _, err := pg.BuildSources()
	if err != nil {
		t.Fatal(err)
	}
	frag := src[glbuild.StageFragment]
	want := "#define FEATURE_SHADOWS 1\n#define FEATURE_FOG 1\n#undef FEATURE_SHADOWS\nlayout(early_fragment_tests) in;\n"
	if !strings.HasPrefix(frag, want) {
		t.Errorf("want prefix\n%s\ngot\n%s", want, frag)
	}
	if !strings.HasPrefix(src[glbuild.StageVertex], "#define FEATURE_FOG 1\n#undef FEATURE_SHADOWS\n") {
		t.Errorf("vertex stage missing feature macros:\n%s", src[glbuild.StageVertex])
	}
	if src[glbuild.StageGeometry] != "" {
		t.Error("disabled stage built")
	}

	// Macros do not outlive the pass.
	if err := pg.BeginProgram(glbuild.FlagsDefault); err != nil {
		t.Fatal(err)
	}
	src, _, err = pg.BuildSources()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(src[glbuild.StageVertex], "FEATURE_") {
		t.Errorf("feature macros kept across passes:\n%s", src[glbuild.StageVertex])
	}
}

func TestFeatureMacro(t *testing.T) {
	for _, test := range []struct{ name, want string }{
		{"fog", "FEATURE_FOG"},
		{"Soft-Shadows2", "FEATURE_SOFT_SHADOWS2"},
		{"", "FEATURE_"},
	} {
		if got := glbuild.FeatureMacro(test.name); got != test.want {
			t.Errorf("FeatureMacro(%q): want %q, got %q", test.name, test.want, got)
		}
	}
}
