package pod

import (
	"fmt"
	"strings"
)

// RangeKind tells how the alternative values of a property are to be read.
// It occupies the low 4 bits of the flags word and is exclusive.
type RangeKind uint8

const (
	RangeNone RangeKind = iota
	RangeMinMax
	RangeStep
	RangeEnum
	RangeFlags

	// MaxRangeKind is the largest value the 4-bit range field holds.
	MaxRangeKind RangeKind = 0xf
)

const (
	rangeMask uint32 = 0xf

	flagUnset        uint32 = 1 << 4
	flagOptional     uint32 = 1 << 5
	flagReadOnly     uint32 = 1 << 6
	flagDeprecated   uint32 = 1 << 7
	flagInfo         uint32 = 1 << 8
	flagControllable uint32 = 1 << 9

	knownFlagBits = rangeMask | flagUnset | flagOptional | flagReadOnly |
		flagDeprecated | flagInfo | flagControllable
)

var rangeNames = []string{"none", "min-max", "step", "enum", "flags"}

func (r RangeKind) String() string {
	if int(r) < len(rangeNames) {
		return rangeNames[r]
	}
	return fmt.Sprintf("range(%d)", uint8(r))
}

// ParseRangeKind accepts the names printed by RangeKind.String.
func ParseRangeKind(name string) (RangeKind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return RangeNone, nil
	}
	for i, n := range rangeNames {
		if n == name {
			return RangeKind(i), nil
		}
	}
	return RangeNone, fmt.Errorf("unknown range kind %q", name)
}

// PropFlags is the decomposed property flags word: the range kind plus the
// independent boolean bits. Extra keeps any bits this version does not know
// so that they survive a decode/encode cycle.
type PropFlags struct {
	Range        RangeKind
	Unset        bool
	Optional     bool
	ReadOnly     bool
	Deprecated   bool
	Info         bool
	Controllable bool
	Extra        uint32
}

// Pack encodes the flags into their wire layout.
func (f PropFlags) Pack() uint32 {
	v := uint32(f.Range) & rangeMask
	v |= f.Extra &^ knownFlagBits
	if f.Unset {
		v |= flagUnset
	}
	if f.Optional {
		v |= flagOptional
	}
	if f.ReadOnly {
		v |= flagReadOnly
	}
	if f.Deprecated {
		v |= flagDeprecated
	}
	if f.Info {
		v |= flagInfo
	}
	if f.Controllable {
		v |= flagControllable
	}
	return v
}

// UnpackFlags decodes a wire flags word.
func UnpackFlags(v uint32) PropFlags {
	return PropFlags{
		Range:        RangeKind(v & rangeMask),
		Unset:        v&flagUnset != 0,
		Optional:     v&flagOptional != 0,
		ReadOnly:     v&flagReadOnly != 0,
		Deprecated:   v&flagDeprecated != 0,
		Info:         v&flagInfo != 0,
		Controllable: v&flagControllable != 0,
		Extra:        v &^ knownFlagBits,
	}
}

func (f PropFlags) String() string {
	parts := []string{f.Range.String()}
	for _, b := range []struct {
		set  bool
		name string
	}{
		{f.Unset, "unset"},
		{f.Optional, "optional"},
		{f.ReadOnly, "readonly"},
		{f.Deprecated, "deprecated"},
		{f.Info, "info"},
		{f.Controllable, "controllable"},
	} {
		if b.set {
			parts = append(parts, b.name)
		}
	}
	if f.Extra != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", f.Extra))
	}
	return strings.Join(parts, "|")
}
