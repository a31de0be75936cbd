package featkey

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// Key is a fixed size shader permutation key. It is a comparable value with no
// heap references: copy it freely and use it directly as a map key.
//
// Keys must only be compared or hashed against keys built with the same property
// table. This is not checked.
type Key struct {
	words       [KeyWords]uint32
	featureHash uint32
}

// SetBool sets a boolean property. Setting a non-boolean property stores 1 or 0.
func (k *Key) SetBool(p Property, v bool) {
	var u uint32
	if v {
		u = 1
	}
	k.SetUnsigned(p, u)
}

// Bool reports whether any bit of p is set.
func (k Key) Bool(p Property) bool { return k.Unsigned(p) != 0 }

// SetUnsigned stores v in p's bits. Values wider than p are masked to its width,
// so they wrap instead of saturating.
func (k *Key) SetUnsigned(p Property, v uint32) {
	mustPlaced(p)
	w, sh, m := p.word(), p.shift(), p.mask()
	k.words[w] = k.words[w]&^(m<<sh) | (v&m)<<sh
}

// Unsigned returns the value stored in p's bits.
func (k Key) Unsigned(p Property) uint32 {
	mustPlaced(p)
	return k.words[p.word()] >> p.shift() & p.mask()
}

// SetFeatureSet stores the hash of fs in the key.
func (k *Key) SetFeatureSet(fs FeatureSet) { k.featureHash = fs.Hash() }

// FeatureHash returns the stored feature set hash.
func (k Key) FeatureHash() uint32 { return k.featureHash }

// Words returns a copy of the key's bit words.
func (k Key) Words() [KeyWords]uint32 { return k.words }

// Equal reports whether both the bit words and the feature set hash match.
func (k Key) Equal(other Key) bool { return k == other }

// Hash returns a hash of the key that is stable across process runs.
func (k Key) Hash() uint64 {
	h := mix64(uint64(k.featureHash) | 0xfea7<<48)
	for i, w := range k.words {
		h ^= mix64(uint64(i)<<32 | uint64(w))
	}
	return h
}

// String renders the key as name=value pairs joined by ';' in props order.
// Zero valued properties are omitted. A non-zero feature hash is appended as
// features=<hex>. The output is deterministic and can be read back with [Parse].
func (k Key) String(props []*Property) string {
	return string(k.AppendString(nil, props))
}

// AppendString appends the result of [Key.String] to b.
func (k Key) AppendString(b []byte, props []*Property) []byte {
	start := len(b)
	for _, p := range props {
		v := k.Unsigned(*p)
		if v == 0 {
			continue
		}
		if len(b) > start {
			b = append(b, ';')
		}
		b = append(b, p.Name...)
		b = append(b, '=')
		b = p.appendValue(b, v)
	}
	if k.featureHash != 0 {
		if len(b) > start {
			b = append(b, ';')
		}
		b = append(b, featuresField...)
		b = append(b, '=')
		b = strconv.AppendUint(b, uint64(k.featureHash), 16)
	}
	return b
}

const featuresField = "features"

var errUnknownProperty = errors.New("unknown property")

// Parse reads a key produced by [Key.String] with the same props.
func Parse(props []*Property, s string) (Key, error) {
	var k Key
	if s == "" {
		return k, nil
	}
	for _, field := range strings.Split(s, ";") {
		name, value, ok := strings.Cut(field, "=")
		if !ok {
			return Key{}, fmt.Errorf("featkey: malformed field %q", field)
		}
		if name == featuresField {
			h, err := strconv.ParseUint(value, 16, 32)
			if err != nil {
				return Key{}, fmt.Errorf("featkey: bad feature hash: %w", err)
			}
			k.featureHash = uint32(h)
			continue
		}
		p := findProperty(props, name)
		if p == nil {
			return Key{}, fmt.Errorf("featkey: %w %q", errUnknownProperty, name)
		}
		v, err := p.parseValue(value)
		if err != nil {
			return Key{}, fmt.Errorf("featkey: %w", err)
		}
		k.SetUnsigned(*p, v)
	}
	return k, nil
}

func findProperty(props []*Property, name string) *Property {
	for _, p := range props {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func mustPlaced(p Property) {
	if !p.placed {
		panic("featkey: property " + strconv.Quote(p.Name) + " used before Layout")
	}
}

// Feature is a named toggle that takes part in shader generation independently of
// the fixed key layout.
type Feature struct {
	Name    string
	Enabled bool
}

// FeatureSet is an unordered list of features.
type FeatureSet []Feature

// Hash returns an order independent hash of the feature set. Flipping the Enabled
// field of any single feature changes the hash. Two identical entries cancel out.
func (fs FeatureSet) Hash() uint32 {
	var h uint32
	for _, f := range fs {
		h ^= f.hash()
	}
	return h
}

// Enabled reports whether the named feature is present and enabled.
func (fs FeatureSet) Enabled(name string) bool {
	for _, f := range fs {
		if f.Name == name {
			return f.Enabled
		}
	}
	return false
}

func (fs FeatureSet) String() string {
	var sb strings.Builder
	for i, f := range fs {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(f.Name)
		sb.WriteByte('=')
		sb.WriteString(strconv.FormatBool(f.Enabled))
	}
	return sb.String()
}

func (f Feature) hash() uint32 {
	h := fnv.New32a()
	h.Write([]byte(f.Name))
	if f.Enabled {
		h.Write([]byte{0, 1})
	} else {
		h.Write([]byte{0, 0})
	}
	return h.Sum32()
}

func mix64(x uint64) uint64 {
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ x>>31
}
