package featkey

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind distinguishes how a [Property] interprets its bits.
type Kind uint8

const (
	KindBool Kind = iota
	KindUnsigned
	// KindEnum properties hold one of a small set of named values.
	KindEnum
	// KindFlags properties hold a set of independently named bits.
	KindFlags
)

// Property describes a bit field of a [Key]. Properties are built once per
// property table and assigned an offset by [Layout]. After layout they are
// read-only and may be passed by value.
type Property struct {
	Name   string
	Kind   Kind
	Width  uint8
	offset uint16
	placed bool
	// names holds enum value names or flag bit names.
	names []string
}

// Bool returns a 1 bit boolean property.
func Bool(name string) Property {
	return Property{Name: name, Kind: KindBool, Width: 1}
}

// Unsigned returns a property holding an unsigned integer of the given bit width.
// Width must be in range 1..32.
func Unsigned(name string, width int) Property {
	if width < 1 || width > WordBits {
		panic("featkey: unsigned width out of range 1..32")
	}
	return Property{Name: name, Kind: KindUnsigned, Width: uint8(width)}
}

// Enum returns a property that stores the index of one of values.
// The width is the minimum number of bits able to represent every value.
func Enum(name string, values ...string) Property {
	if len(values) < 2 {
		panic("featkey: enum needs at least two values")
	}
	width := 1
	for 1<<width < len(values) {
		width++
	}
	return Property{Name: name, Kind: KindEnum, Width: uint8(width), names: values}
}

// Flags returns a property with one bit per flag name.
func Flags(name string, flags ...string) Property {
	if len(flags) < 1 || len(flags) > WordBits {
		panic("featkey: flags count out of range 1..32")
	}
	return Property{Name: name, Kind: KindFlags, Width: uint8(len(flags)), names: flags}
}

// Tessellation modes.
const (
	TessNone uint32 = iota
	TessLinear
	TessPhong
	TessNPatch
)

// Tessellation returns the tessellation mode property. Values are TessNone..TessNPatch.
func Tessellation(name string) Property {
	return Enum(name, "none", "linear", "phong", "npatch")
}

// Specular models.
const (
	SpecularDefault uint32 = iota
	SpecularGGX
	SpecularWard
)

// SpecularModel returns the specular model property. Values are SpecularDefault..SpecularWard.
func SpecularModel(name string) Property {
	return Enum(name, "default", "ggx", "ward")
}

// Texture swizzle flag bits.
const (
	SwizzleL8toR8 uint32 = 1 << iota
	SwizzleA8toR8
	SwizzleL8A8toRG8
	SwizzleL16toR16
	SwizzleBGRtoRGB
)

// Swizzle returns a texture channel swizzle flag property.
func Swizzle(name string) Property {
	return Flags(name, "l8tor8", "a8tor8", "l8a8torg8", "l16tor16", "bgrtorgb")
}

// Offset returns the bit offset assigned by [Layout].
func (p Property) Offset() int { return int(p.offset) }

// IsPlaced reports whether [Layout] assigned an offset to the property.
func (p Property) IsPlaced() bool { return p.placed }

// Max returns the largest value the property can hold.
func (p Property) Max() uint32 { return p.mask() }

func (p Property) word() int    { return int(p.offset) / WordBits }
func (p Property) shift() uint  { return uint(p.offset) % WordBits }
func (p Property) mask() uint32 { return uint32(1<<p.Width - 1) }
func (p Property) end() int     { return int(p.offset) + int(p.Width) }

// appendValue appends the textual representation of v.
func (p Property) appendValue(b []byte, v uint32) []byte {
	switch p.Kind {
	case KindBool:
		return strconv.AppendBool(b, v != 0)
	case KindEnum:
		if int(v) < len(p.names) {
			return append(b, p.names[v]...)
		}
	case KindFlags:
		first := true
		for i, name := range p.names {
			if v&(1<<i) == 0 {
				continue
			}
			if !first {
				b = append(b, '|')
			}
			first = false
			b = append(b, name...)
		}
		return b
	}
	return strconv.AppendUint(b, uint64(v), 10)
}

var errBadValue = errors.New("bad property value")

func (p Property) parseValue(s string) (uint32, error) {
	switch p.Kind {
	case KindBool:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", p.Name, err)
		}
		if v {
			return 1, nil
		}
		return 0, nil
	case KindEnum:
		for i, name := range p.names {
			if name == s {
				return uint32(i), nil
			}
		}
	case KindFlags:
		var v uint32
	FLAGS:
		for _, f := range strings.Split(s, "|") {
			for i, name := range p.names {
				if name == f {
					v |= 1 << i
					continue FLAGS
				}
			}
			return 0, fmt.Errorf("%s: %w %q", p.Name, errBadValue, f)
		}
		return v, nil
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%s: %w %q", p.Name, errBadValue, s)
	}
	return uint32(v), nil
}
