package glbuild

import (
	"fmt"
	"strconv"
)

const stageNone Stage = 0xff

// GeometryInputVertices is the vertex count of the primitive geometry stages receive
// after tessellation (triangles).
const GeometryInputVertices = 3

// StageGenerator accumulates the declarations and body of one pipeline stage during
// a generation pass. Its incoming variables are the outgoing variables of the previous
// enabled stage: both names refer to the same [VarMap] after [ProgramGenerator.BeginProgram].
//
// The same logical variable is declared with a different suffix and arity at each
// stage boundary. Use [StageGenerator.IncomingName], [StageGenerator.OutgoingName] and
// [StageGenerator.AssignOutput] to refer to linkage variables inside a stage body.
type StageGenerator struct {
	stage     Stage
	prev      Stage
	next      Stage
	defines   []byte
	layouts   []string
	includes  []string
	uniforms  VarMap
	buffers   []constantBuffer
	incoming  *VarMap
	outgoing  *VarMap
	ownIn     VarMap
	ownOut    VarMap
	functions []stageFunction
	body      []byte
	// flattenBuffers is set by the program generator before building.
	flattenBuffers bool
}

type stageFunction struct {
	name   string
	source string
	hash   uint64
}

// Kind returns the stage this generator writes.
func (sg *StageGenerator) Kind() Stage { return sg.stage }

func (sg *StageGenerator) reset(s Stage) {
	sg.stage = s
	sg.prev = stageNone
	sg.next = stageNone
	sg.defines = sg.defines[:0]
	sg.layouts = sg.layouts[:0]
	sg.includes = sg.includes[:0]
	sg.uniforms.Reset()
	sg.buffers = sg.buffers[:0]
	sg.ownIn.Reset()
	sg.ownOut.Reset()
	sg.incoming = &sg.ownIn
	sg.outgoing = &sg.ownOut
	sg.functions = sg.functions[:0]
	sg.body = sg.body[:0]
}

// Incoming returns the stage's input variables.
func (sg *StageGenerator) Incoming() *VarMap { return sg.incoming }

// Outgoing returns the stage's output variables.
func (sg *StageGenerator) Outgoing() *VarMap { return sg.outgoing }

// Uniforms returns the stage's uniform variables.
func (sg *StageGenerator) Uniforms() *VarMap { return &sg.uniforms }

// AddIncoming declares an input of the stage. For the vertex stage inputs are attributes.
func (sg *StageGenerator) AddIncoming(name, typ string) { sg.incoming.Set(name, typ) }

// AddOutgoing declares an output of the stage. The next enabled stage sees it as an input.
func (sg *StageGenerator) AddOutgoing(name, typ string) { sg.outgoing.Set(name, typ) }

// AddUniform declares a uniform.
func (sg *StageGenerator) AddUniform(name, typ string) { sg.uniforms.Set(name, typ) }

// AddConstantBuffer declares a uniform block. layout is the memory layout qualifier,
// i.e: "std140". Empty layout omits the qualifier.
func (sg *StageGenerator) AddConstantBuffer(name, layout string) {
	if sg.buffer(name) == nil {
		sg.buffers = append(sg.buffers, constantBuffer{name: name, layout: layout})
	}
}

// AddConstantBufferParam adds a member to the uniform block cbName, creating the
// block with std140 layout if it was not declared.
func (sg *StageGenerator) AddConstantBufferParam(cbName, paramName, typ string) {
	cb := sg.buffer(cbName)
	if cb == nil {
		sg.AddConstantBuffer(cbName, "std140")
		cb = &sg.buffers[len(sg.buffers)-1]
	}
	cb.params.Set(paramName, typ)
}

func (sg *StageGenerator) buffer(name string) *constantBuffer {
	for i := range sg.buffers {
		if sg.buffers[i].name == name {
			return &sg.buffers[i]
		}
	}
	return nil
}

// AddInclude adds an include directive. Includes registered with
// [ProgramGenerator.RegisterInclude] are inlined when the stage is built.
func (sg *StageGenerator) AddInclude(name string) {
	sg.includes = appendUnique(sg.includes, name)
}

// AddDefine adds a #define directive written before any declaration. An empty
// value defines name without a replacement.
func (sg *StageGenerator) AddDefine(name, value string) {
	sg.defines = AppendDefineDecl(sg.defines, name, value)
}

// AddUndefine adds an #undef directive written before any declaration, cancelling
// a define of a stage header.
func (sg *StageGenerator) AddUndefine(name string) {
	sg.defines = AppendUndefineDecl(sg.defines, name)
}

// AddLayout adds a layout qualifier declaration such as "layout(vertices = 3) out;".
func (sg *StageGenerator) AddLayout(decl string) {
	sg.layouts = appendUnique(sg.layouts, decl)
}

// AddFunction adds a function definition written before main. Adding the same
// function twice is a no-op. Adding a different function with the same name fails.
func (sg *StageGenerator) AddFunction(name, source string) error {
	h := hash([]byte(source), hash([]byte(name), 0))
	for _, fn := range sg.functions {
		if fn.name != name {
			continue
		}
		if fn.hash == h {
			return nil
		}
		return fmt.Errorf("%s stage: function %q redefined with a different body", sg.stage, name)
	}
	sg.functions = append(sg.functions, stageFunction{name: name, source: source, hash: h})
	return nil
}

// Append appends a line to the body of main.
func (sg *StageGenerator) Append(line string) {
	sg.body = append(sg.body, line...)
	sg.body = append(sg.body, '\n')
}

// AppendPartial appends text to the body of main without a line break.
func (sg *StageGenerator) AppendPartial(text string) {
	sg.body = append(sg.body, text...)
}

// Appendf appends a formatted line to the body of main.
func (sg *StageGenerator) Appendf(format string, args ...any) {
	sg.body = fmt.Appendf(sg.body, format, args...)
	sg.body = append(sg.body, '\n')
}

// IncomingName returns the declared name of the input variable name.
// Array inputs must still be indexed by the caller.
func (sg *StageGenerator) IncomingName(name string) string {
	return name + sg.inSuffix()
}

// OutgoingName returns the declared name of the output variable name.
func (sg *StageGenerator) OutgoingName(name string) string {
	return name + outSuffixOf(sg.stage, sg.next)
}

// AssignOutput appends an assignment of expr to the output name, which is added to
// the outgoing variables with type typ if not yet present.
func (sg *StageGenerator) AssignOutput(name, typ, expr string) {
	sg.AddOutgoing(name, typ)
	sg.body = append(sg.body, '\t')
	sg.body = append(sg.body, sg.OutgoingName(name)...)
	if sg.stage == StageTessControl {
		sg.body = append(sg.body, "[gl_InvocationID]"...)
	}
	sg.body = append(sg.body, " = "...)
	sg.body = append(sg.body, expr...)
	sg.body = append(sg.body, ";\n"...)
}

// Keyword and arity rules per stage boundary.

func (sg *StageGenerator) inKeyword() string {
	switch sg.stage {
	case StageVertex:
		return "attribute"
	case StageFragment:
		return "varying"
	}
	return "in"
}

func (sg *StageGenerator) outKeyword() string {
	if sg.stage == StageVertex {
		return "varying"
	}
	return "out"
}

func (sg *StageGenerator) inSuffix() string {
	if sg.prev == stageNone {
		return ""
	}
	return outSuffixOf(sg.prev, sg.stage)
}

func (sg *StageGenerator) inArity() string {
	switch sg.stage {
	case StageTessControl, StageTessEval:
		return "[]"
	case StageGeometry:
		if sg.prev == StageTessEval {
			return "[" + strconv.Itoa(GeometryInputVertices) + "]"
		}
		return "[]"
	}
	return ""
}

func (sg *StageGenerator) outArity() string {
	if sg.stage == StageTessControl {
		return "[]"
	}
	return ""
}

// outSuffixOf returns the suffix a stage appends to its outputs. Suffixes keep a
// stage's inputs and outputs of the same logical variable from colliding.
func outSuffixOf(s, next Stage) string {
	switch s {
	case StageVertex:
		if next == StageGeometry {
			return "_vs"
		}
	case StageTessControl:
		return "_tc"
	case StageTessEval:
		if next == StageGeometry {
			return "_te"
		}
	}
	return ""
}

// Build appends the stage source to dst. resolveInclude returns the text of a
// registered include; unresolved includes are emitted as #include directives.
func (sg *StageGenerator) Build(dst []byte, resolveInclude func(name string) (string, bool)) []byte {
	dst = append(dst, sg.defines...)
	for _, l := range sg.layouts {
		dst = append(dst, l...)
		dst = append(dst, '\n')
	}
	for _, inc := range sg.includes {
		if resolveInclude != nil {
			if text, ok := resolveInclude(inc); ok {
				dst = append(dst, text...)
				dst = appendNewlineIfMissing(dst)
				continue
			}
		}
		dst = append(dst, "#include \""...)
		dst = append(dst, inc...)
		dst = append(dst, "\"\n"...)
	}
	dst = appendVarMap(dst, "uniform", &sg.uniforms, "", "")
	for i := range sg.buffers {
		if sg.flattenBuffers {
			dst = appendVarMap(dst, "uniform", &sg.buffers[i].params, "", "")
		} else {
			dst = appendConstantBuffer(dst, &sg.buffers[i])
		}
	}
	dst = appendVarMap(dst, sg.inKeyword(), sg.incoming, sg.inSuffix(), sg.inArity())
	dst = appendVarMap(dst, sg.outKeyword(), sg.outgoing, outSuffixOf(sg.stage, sg.next), sg.outArity())
	for _, fn := range sg.functions {
		dst = append(dst, '\n')
		dst = append(dst, fn.source...)
		dst = appendNewlineIfMissing(dst)
	}
	dst = append(dst, "\nvoid main()\n{\n"...)
	dst = append(dst, sg.body...)
	dst = appendNewlineIfMissing(dst)
	dst = append(dst, "}\n"...)
	return dst
}

func appendVarMap(dst []byte, keyword string, m *VarMap, suffix, arity string) []byte {
	for _, name := range m.Names() {
		typ, _ := m.Type(name)
		dst = append(dst, keyword...)
		dst = append(dst, ' ')
		dst = append(dst, typ...)
		dst = append(dst, ' ')
		dst = append(dst, name...)
		dst = append(dst, suffix...)
		dst = append(dst, arity...)
		dst = append(dst, ";\n"...)
	}
	return dst
}

//	layout(<layout>) uniform <name> {
//		<type> <param>;
//	};
func appendConstantBuffer(dst []byte, cb *constantBuffer) []byte {
	if cb.layout != "" {
		dst = append(dst, "layout("...)
		dst = append(dst, cb.layout...)
		dst = append(dst, ") "...)
	}
	dst = append(dst, "uniform "...)
	dst = append(dst, cb.name...)
	dst = append(dst, " {\n"...)
	for _, name := range cb.params.Names() {
		typ, _ := cb.params.Type(name)
		dst = append(dst, '\t')
		dst = append(dst, typ...)
		dst = append(dst, ' ')
		dst = append(dst, name...)
		dst = append(dst, ";\n"...)
	}
	dst = append(dst, "};\n"...)
	return dst
}

func appendNewlineIfMissing(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] != '\n' {
		b = append(b, '\n')
	}
	return b
}

func appendUnique(s []string, v string) []string {
	for _, got := range s {
		if got == v {
			return s
		}
	}
	return append(s, v)
}
