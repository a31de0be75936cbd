package featkey

import (
	"errors"
	"fmt"
)

const (
	// WordBits is the size of a Key word. Properties never straddle words.
	WordBits = 32
	// KeyWords is the number of words backing a [Key]. It is a hard ceiling on
	// the permutation space: growing it changes every persisted key.
	KeyWords = 7
	// KeyCapacity is the total number of bits available to properties.
	KeyCapacity = KeyWords * WordBits
)

// ErrKeyCapacity is returned by [Layout] when the properties do not fit in a [Key].
var ErrKeyCapacity = errors.New("featkey: properties exceed key capacity")

// Layout assigns non-overlapping bit offsets to props in the given order and returns
// the number of bits consumed, counting padding. A property that would cross a word
// boundary starts at the next word instead. Layout fails if a property was already
// placed or if the key capacity is exceeded; both are configuration errors and callers
// should abort initialization.
func Layout(props []*Property) (usedBits int, err error) {
	cursor := 0
	for i, p := range props {
		if p == nil {
			return 0, fmt.Errorf("featkey: nil property at index %d", i)
		} else if p.placed {
			return 0, fmt.Errorf("featkey: property %q already laid out", p.Name)
		} else if p.Width == 0 || p.Width > WordBits {
			return 0, fmt.Errorf("featkey: property %q has invalid width %d", p.Name, p.Width)
		}
		if cursor%WordBits+int(p.Width) > WordBits {
			cursor += WordBits - cursor%WordBits
		}
		if cursor+int(p.Width) > KeyCapacity {
			return 0, fmt.Errorf("%w: %q needs bits [%d,%d) of %d", ErrKeyCapacity, p.Name, cursor, cursor+int(p.Width), KeyCapacity)
		}
		cursor += int(p.Width)
	}
	// Only commit offsets once the whole table is known to fit.
	cursor = 0
	for _, p := range props {
		if cursor%WordBits+int(p.Width) > WordBits {
			cursor += WordBits - cursor%WordBits
		}
		p.offset = uint16(cursor)
		p.placed = true
		cursor += int(p.Width)
	}
	return cursor, nil
}

// MustLayout is like [Layout] but panics on error.
func MustLayout(props []*Property) int {
	n, err := Layout(props)
	if err != nil {
		panic(err)
	}
	return n
}
