package pod

import (
	"fmt"
	"strings"
)

// Kind identifies one variant of the Pod format. Kinds are what the codec
// reasons about; the numeric type ids written on the wire come from a TypeMap.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindNone
	KindBool
	KindEnum
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindString
	KindBytes
	KindRectangle
	KindFraction
	KindBitmap
	KindArray
	KindStruct
	KindObject
	KindSequence
	KindPointer
	KindFd
	KindProperty
	kindCount
)

var kindNames = [kindCount]string{
	KindUnknown:   "unknown",
	KindNone:      "none",
	KindBool:      "bool",
	KindEnum:      "enum",
	KindInt:       "int",
	KindLong:      "long",
	KindFloat:     "float",
	KindDouble:    "double",
	KindString:    "string",
	KindBytes:     "bytes",
	KindRectangle: "rectangle",
	KindFraction:  "fraction",
	KindBitmap:    "bitmap",
	KindArray:     "array",
	KindStruct:    "struct",
	KindObject:    "object",
	KindSequence:  "sequence",
	KindPointer:   "pointer",
	KindFd:        "fd",
	KindProperty:  "property",
}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind maps a kind name as printed by Kind.String back to the Kind.
func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k := KindNone; k < kindCount; k++ {
		if kindNames[k] == name {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown pod kind %q", name)
}

// IsContainer reports whether pods of this kind hold other pods.
func (k Kind) IsContainer() bool {
	switch k {
	case KindArray, KindStruct, KindObject, KindSequence, KindProperty:
		return true
	}
	return false
}

// fixedSize returns the body width of fixed-width kinds.
func (k Kind) fixedSize() (int, bool) {
	switch k {
	case KindNone:
		return 0, true
	case KindBool, KindEnum, KindInt, KindFloat:
		return 4, true
	case KindLong, KindDouble, KindRectangle, KindFraction, KindFd:
		return 8, true
	case KindPointer:
		return 16, true
	}
	return 0, false
}

// TypeMap assigns the numeric type id written on the wire for every Kind.
// The ids themselves belong to an external registry; the codec only needs
// them to be distinct.
type TypeMap struct {
	ids   [kindCount]uint32
	kinds map[uint32]Kind
}

// DefaultTypes numbers the basic kinds None=1 through Fd=18 and Property=19.
var DefaultTypes = mustTypeMap(nil)

// NewTypeMap returns the default numbering with the given overrides applied.
// Two kinds mapping to the same id is an error.
func NewTypeMap(overrides map[Kind]uint32) (*TypeMap, error) {
	m := &TypeMap{kinds: make(map[uint32]Kind, kindCount)}
	for k := KindNone; k < kindCount; k++ {
		m.ids[k] = uint32(k)
	}
	for k, id := range overrides {
		if k == KindUnknown || k >= kindCount {
			return nil, fmt.Errorf("cannot assign type id to %s", k)
		}
		m.ids[k] = id
	}
	for k := KindNone; k < kindCount; k++ {
		id := m.ids[k]
		if other, ok := m.kinds[id]; ok {
			return nil, fmt.Errorf("type id %d assigned to both %s and %s", id, other, k)
		}
		m.kinds[id] = k
	}
	return m, nil
}

func mustTypeMap(overrides map[Kind]uint32) *TypeMap {
	m, err := NewTypeMap(overrides)
	if err != nil {
		panic(err)
	}
	return m
}

// ID returns the wire type id for k.
func (m *TypeMap) ID(k Kind) uint32 {
	if k >= kindCount {
		return 0
	}
	return m.ids[k]
}

// Kind returns the kind for a wire type id, or KindUnknown.
func (m *TypeMap) Kind(id uint32) Kind {
	if k, ok := m.kinds[id]; ok {
		return k
	}
	return KindUnknown
}
