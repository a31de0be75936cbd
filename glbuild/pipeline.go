package glbuild

import (
	"strconv"

	"github.com/soypat/glprog/featkey"
)

// Vertex attribute names used by the generated vertex stage.
const (
	AttrPosition = "attr_pos"
	AttrNormal   = "attr_norm"
	AttrColor    = "attr_color"
	attrUVPrefix = "attr_uv"
)

// Uniform names used by the pipeline helpers.
const (
	UniformModelMatrix    = "modelMatrix"
	UniformNormalMatrix   = "normalMatrix"
	UniformMVP            = "modelViewProjection"
	UniformViewProjection = "viewProjection"
	UniformCameraPosition = "cameraPosition"
	UniformTessInner      = "tessLevelInner"
	UniformTessOuter      = "tessLevelOuter"
	UniformTessPhongBlend = "tessPhongBlend"
)

// Linkage variable names written by the pipeline helpers.
const (
	VarWorldPos     = "varWorldPos"
	VarNormal       = "varNormal"
	VarColor        = "varColor"
	VarEdgeDistance = "varEdgeDistance"
	varUVPrefix     = "varTexCoord"
)

// Names of code generated by the pipeline helpers, see [ProgramGenerator.HasCode].
const (
	CodeWorldPosition = "worldPosition"
	CodeWorldNormal   = "worldNormal"
	CodeViewVector    = "viewVector"
	CodeVertexColor   = "vertexColor"
	codeUVPrefix      = "uvCoords"
	codeTessellation  = "tessPassThrough"
	codeGeometry      = "geometryPassThrough"
)

// SetupWorldPosition makes the world space position available to the fragment stage
// as varWorldPos and writes gl_Position. Repeated calls within a pass are no-ops.
func (pg *ProgramGenerator) SetupWorldPosition() {
	if pg.SetCode(CodeWorldPosition) {
		return
	}
	vs := pg.Vertex()
	vs.AddIncoming(AttrPosition, "vec3")
	vs.AddUniform(UniformModelMatrix, "mat4")
	vs.AddUniform(UniformMVP, "mat4")
	vs.Append("\tvec4 worldPos = " + UniformModelMatrix + " * vec4(" + AttrPosition + ", 1.0);")
	vs.AssignOutput(VarWorldPos, "vec3", "worldPos.xyz")
	vs.Append("\tgl_Position = " + UniformMVP + " * vec4(" + AttrPosition + ", 1.0);")
}

// GenerateWorldNormal declares world_normal in the fragment stage.
func (pg *ProgramGenerator) GenerateWorldNormal() {
	if pg.SetCode(CodeWorldNormal) {
		return
	}
	vs := pg.Vertex()
	vs.AddIncoming(AttrNormal, "vec3")
	vs.AddUniform(UniformNormalMatrix, "mat3")
	vs.AssignOutput(VarNormal, "vec3", "normalize("+UniformNormalMatrix+" * "+AttrNormal+")")
	fs := pg.Fragment()
	fs.AddIncoming(VarNormal, "vec3")
	fs.Append("\tvec3 world_normal = normalize(" + fs.IncomingName(VarNormal) + ");")
}

// GenerateViewVector declares view_vector, the normalized direction from the
// fragment to the camera, in the fragment stage.
func (pg *ProgramGenerator) GenerateViewVector() {
	if pg.SetCode(CodeViewVector) {
		return
	}
	pg.SetupWorldPosition()
	fs := pg.Fragment()
	fs.AddIncoming(VarWorldPos, "vec3")
	fs.AddUniform(UniformCameraPosition, "vec3")
	fs.Append("\tvec3 view_vector = normalize(" + UniformCameraPosition + " - " + fs.IncomingName(VarWorldPos) + ");")
}

// GenerateUVCoords passes texture coordinate set through to the fragment stage and
// returns the name of the fragment input holding them.
func (pg *ProgramGenerator) GenerateUVCoords(set int) string {
	n := strconv.Itoa(set)
	varName := varUVPrefix + n
	if pg.SetCode(codeUVPrefix + n) {
		return varName
	}
	vs := pg.Vertex()
	vs.AddIncoming(attrUVPrefix+n, "vec2")
	vs.AssignOutput(varName, "vec2", attrUVPrefix+n)
	pg.Fragment().AddIncoming(varName, "vec2")
	return varName
}

// GenerateVertexColor passes the per-vertex color to the fragment stage as varColor.
func (pg *ProgramGenerator) GenerateVertexColor() {
	if pg.SetCode(CodeVertexColor) {
		return
	}
	vs := pg.Vertex()
	vs.AddIncoming(AttrColor, "vec4")
	vs.AssignOutput(VarColor, "vec4", AttrColor)
	pg.Fragment().AddIncoming(VarColor, "vec4")
}

// GenerateTessPassThrough requests tessellation control and evaluation bodies that
// forward every vertex output to the stage after tessellation. mode is one of the
// featkey tessellation modes. Phong and N-patch modes project the interpolated
// world position onto the vertex tangent planes when normals are available.
//
// The bodies are written when the pass is built so outputs declared after this call
// are forwarded too.
func (pg *ProgramGenerator) GenerateTessPassThrough(mode uint32) {
	if pg.SetCode(codeTessellation) {
		return
	}
	pg.passthrough |= FlagsTessellation
	tc := pg.TessControl()
	tc.AddLayout("layout(vertices = 3) out;")
	tc.AddUniform(UniformTessInner, "float")
	tc.AddUniform(UniformTessOuter, "float")
	te := pg.TessEval()
	te.AddLayout("layout(triangles, equal_spacing, ccw) in;")
	if mode == featkey.TessPhong || mode == featkey.TessNPatch {
		pg.SetCode("tessPhong")
		te.AddUniform(UniformTessPhongBlend, "float")
		te.AddUniform(UniformViewProjection, "mat4")
	}
}

// GenerateGeometryPassThrough requests a geometry body that re-emits each input
// triangle. With wireframe set it also writes varEdgeDistance, the barycentric
// coordinate of each vertex, for edge detection in the fragment stage.
func (pg *ProgramGenerator) GenerateGeometryPassThrough(wireframe bool) {
	if pg.SetCode(codeGeometry) {
		return
	}
	pg.passthrough |= FlagGeometry
	pg.wireframe = wireframe
	gs := pg.Geometry()
	gs.AddLayout("layout(triangles) in;")
	gs.AddLayout("layout(triangle_strip, max_vertices = 3) out;")
	if wireframe {
		gs.AddOutgoing(VarEdgeDistance, "vec3")
		pg.Fragment().AddIncoming(VarEdgeDistance, "vec3")
	}
}

func (pg *ProgramGenerator) writeTessControlBody(tc *StageGenerator) {
	for _, name := range tc.incoming.Names() {
		tc.Append("\t" + tc.OutgoingName(name) + "[gl_InvocationID] = " + tc.IncomingName(name) + "[gl_InvocationID];")
	}
	tc.Append("\tgl_out[gl_InvocationID].gl_Position = gl_in[gl_InvocationID].gl_Position;")
	tc.Append("\tif (gl_InvocationID == 0) {")
	tc.Append("\t\tgl_TessLevelInner[0] = " + UniformTessInner + ";")
	for i := 0; i < 3; i++ {
		tc.Append("\t\tgl_TessLevelOuter[" + strconv.Itoa(i) + "] = " + UniformTessOuter + ";")
	}
	tc.Append("\t}")
}

func (pg *ProgramGenerator) writeTessEvalBody(te *StageGenerator) {
	// Snapshot names: outputs may share storage with later stages' inputs.
	names := append([]string(nil), te.incoming.Names()...)
	for _, name := range names {
		typ, _ := te.incoming.Type(name)
		te.AddOutgoing(name, typ)
		te.Append("\t" + te.OutgoingName(name) + " = " + interpolate(te.IncomingName(name)) + ";")
	}
	_, hasPos := te.incoming.Type(VarWorldPos)
	_, hasNormal := te.incoming.Type(VarNormal)
	if pg.HasCode("tessPhong") && hasPos && hasNormal {
		pos := te.IncomingName(VarWorldPos)
		nrm := te.IncomingName(VarNormal)
		te.Append("\tvec3 flatPos = " + te.OutgoingName(VarWorldPos) + ";")
		te.Append("\tvec3 phongPos = vec3(0.0);")
		te.Append("\tfor (int i = 0; i < 3; ++i) {")
		te.Append("\t\tvec3 n = normalize(" + nrm + "[i]);")
		te.Append("\t\tphongPos += gl_TessCoord[i] * (flatPos - dot(flatPos - " + pos + "[i], n) * n);")
		te.Append("\t}")
		te.Append("\t" + te.OutgoingName(VarWorldPos) + " = mix(flatPos, phongPos, " + UniformTessPhongBlend + ");")
		te.Append("\tgl_Position = " + UniformViewProjection + " * vec4(" + te.OutgoingName(VarWorldPos) + ", 1.0);")
		return
	}
	te.Append("\tgl_Position = gl_TessCoord.x * gl_in[0].gl_Position + gl_TessCoord.y * gl_in[1].gl_Position + gl_TessCoord.z * gl_in[2].gl_Position;")
}

func (pg *ProgramGenerator) writeGeometryBody(gs *StageGenerator) {
	names := append([]string(nil), gs.incoming.Names()...)
	gs.body = AppendIntDecl(append(gs.body, "\tconst "...), "vertexCount", GeometryInputVertices)
	gs.Append("\tfor (int i = 0; i < vertexCount; ++i) {")
	for _, name := range names {
		typ, _ := gs.incoming.Type(name)
		gs.AddOutgoing(name, typ)
		gs.Append("\t\t" + gs.OutgoingName(name) + " = " + gs.IncomingName(name) + "[i];")
	}
	if pg.wireframe {
		gs.Append("\t\t" + gs.OutgoingName(VarEdgeDistance) + " = vec3(float(i == 0), float(i == 1), float(i == 2));")
	}
	gs.Append("\t\tgl_Position = gl_in[i].gl_Position;")
	gs.Append("\t\tEmitVertex();")
	gs.Append("\t}")
	gs.Append("\tEndPrimitive();")
}

func interpolate(arrayName string) string {
	return "gl_TessCoord.x * " + arrayName + "[0] + gl_TessCoord.y * " + arrayName + "[1] + gl_TessCoord.z * " + arrayName + "[2]"
}
