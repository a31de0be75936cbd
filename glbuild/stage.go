package glbuild

import (
	"fmt"
	"strings"
)

// Stage is a programmable pipeline stage.
type Stage uint8

const (
	StageVertex Stage = iota
	StageTessControl
	StageTessEval
	StageGeometry
	StageFragment
	NumStages = 5
)

var stageNames = [NumStages]string{"vertex", "tessControl", "tessEval", "geometry", "fragment"}

func (s Stage) String() string {
	if s >= NumStages {
		return "Stage(" + fmt.Sprint(uint8(s)) + ")"
	}
	return stageNames[s]
}

// Flag returns the StageFlags bit of s.
func (s Stage) Flag() StageFlags { return 1 << s }

// StageFlags is a set of stages.
type StageFlags uint8

const (
	FlagVertex StageFlags = 1 << iota
	FlagTessControl
	FlagTessEval
	FlagGeometry
	FlagFragment

	// FlagsDefault is the vertex and fragment pair every program starts with.
	FlagsDefault = FlagVertex | FlagFragment
	// FlagsTessellation selects both tessellation stages.
	FlagsTessellation = FlagTessControl | FlagTessEval
	flagsAll          = FlagVertex | FlagsTessellation | FlagGeometry | FlagFragment
)

// Has reports whether stage s is in the set.
func (f StageFlags) Has(s Stage) bool { return f&s.Flag() != 0 }

func (f StageFlags) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	for s := Stage(0); s < NumStages; s++ {
		if f.Has(s) {
			parts = append(parts, s.String())
		}
	}
	return strings.Join(parts, "|")
}

// Sources holds the source text of every stage, indexed by [Stage].
// Disabled stages have empty source.
type Sources [NumStages]string

// Enabled returns the set of stages with non-empty source.
func (src *Sources) Enabled() (f StageFlags) {
	for s := range src {
		if src[s] != "" {
			f |= Stage(s).Flag()
		}
	}
	return f
}

// CacheFlags summarize how a program was generated. They select compile and link
// behavior and tag persisted programs.
type CacheFlags uint8

const (
	CacheTessellation CacheFlags = 1 << iota
	CacheGeometry
)

func (cf CacheFlags) String() string {
	var parts []string
	if cf&CacheTessellation != 0 {
		parts = append(parts, "tessellation")
	}
	if cf&CacheGeometry != 0 {
		parts = append(parts, "geometry")
	}
	return strings.Join(parts, "|")
}

// ParseCacheFlags parses the output of [CacheFlags.String].
func ParseCacheFlags(s string) (CacheFlags, error) {
	var cf CacheFlags
	if s == "" {
		return 0, nil
	}
	for _, part := range strings.Split(s, "|") {
		switch strings.TrimSpace(part) {
		case "tessellation":
			cf |= CacheTessellation
		case "geometry":
			cf |= CacheGeometry
		default:
			return 0, fmt.Errorf("unknown cache flag %q", part)
		}
	}
	return cf, nil
}

// Program is an opaque handle to a compiled program. The backend that produced it
// owns the underlying resource. The zero value is no program.
type Program uint32

// NoProgram is the empty program handle.
const NoProgram Program = 0

// IsValid reports whether p refers to a program.
func (p Program) IsValid() bool { return p != NoProgram }
