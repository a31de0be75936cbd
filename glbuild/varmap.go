package glbuild

// VarMap is an insertion ordered map of variable names to GLSL types.
// The first type set for a name wins.
type VarMap struct {
	names []string
	types map[string]string
}

// Set adds name with type typ if name is not present. It reports whether name was added.
func (m *VarMap) Set(name, typ string) bool {
	if _, ok := m.types[name]; ok {
		return false
	}
	if m.types == nil {
		m.types = make(map[string]string)
	}
	m.types[name] = typ
	m.names = append(m.names, name)
	return true
}

// Type returns the type of name.
func (m *VarMap) Type(name string) (typ string, ok bool) {
	typ, ok = m.types[name]
	return typ, ok
}

// Len returns the number of variables.
func (m *VarMap) Len() int { return len(m.names) }

// Names returns the variable names in insertion order. The result must not be modified.
func (m *VarMap) Names() []string { return m.names }

// Reset removes all variables.
func (m *VarMap) Reset() {
	m.names = m.names[:0]
	clear(m.types)
}

type constantBuffer struct {
	name   string
	layout string
	params VarMap
}
