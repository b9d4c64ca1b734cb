package pod

import "encoding/binary"

const (
	// HeaderSize is the length of the (size, type) prefix of every pod.
	HeaderSize = 8
	// Alignment is the padding granularity for pods embedded in a struct,
	// object or sequence.
	Alignment = 8
	// MaxDepth bounds container nesting for builders and readers.
	MaxDepth = 16
)

// Options carries the format parameters producer and consumer must agree on.
type Options struct {
	Order    binary.ByteOrder
	Types    *TypeMap
	MaxDepth int
}

// Option configures a Builder or Reader.
type Option func(*Options)

// WithByteOrder selects the byte order of every fixed-width field.
// Little-endian is the default.
func WithByteOrder(order binary.ByteOrder) Option {
	return func(o *Options) {
		if order != nil {
			o.Order = order
		}
	}
}

// WithTypes replaces the default type id numbering.
func WithTypes(types *TypeMap) Option {
	return func(o *Options) {
		if types != nil {
			o.Types = types
		}
	}
}

// WithMaxDepth lowers the nesting limit. Values outside 1..MaxDepth are ignored.
func WithMaxDepth(depth int) Option {
	return func(o *Options) {
		if depth >= 1 && depth <= MaxDepth {
			o.MaxDepth = depth
		}
	}
}

func newOptions(opts []Option) *Options {
	o := &Options{
		Order:    binary.LittleEndian,
		Types:    DefaultTypes,
		MaxDepth: MaxDepth,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
