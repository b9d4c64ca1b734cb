// Package pod implements the Pod binary value format: compact,
// self-describing, length-prefixed records used to pass typed parameter data
// between independent components without a shared schema.
//
// # Wire Format
//
// Every pod starts with an 8-byte header followed by its body:
//
//	[Size(4)][Type(4)][Body(Size)]
//
// Size counts body bytes only. Type is a numeric id from a TypeMap; the
// default numbering is None=1, Bool=2, Enum=3, Int=4, Long=5, Float=6,
// Double=7, String=8, Bytes=9, Rectangle=10, Fraction=11, Bitmap=12,
// Array=13, Struct=14, Object=15, Sequence=16, Pointer=17, Fd=18 and
// Property=19.
//
// All fixed-width fields are little-endian unless WithByteOrder says
// otherwise. Producer and consumer must agree on both the byte order and the
// type numbering.
//
// Bodies:
//   - Bool, Enum, Int, Float: 4 bytes
//   - Long, Double, Fd: 8 bytes
//   - Rectangle: width(4) height(4); Fraction: num(4) denom(4)
//   - Pointer: type(4) reserved(4) reference(8)
//   - String: content followed by exactly one NUL
//   - Bytes, Bitmap: opaque content
//   - Array: child header (Size = stride, Type = element type) then N bodies,
//     which for container elements are container bodies without headers
//   - Struct: a run of pods
//   - Object: type(4) id(4) then a run of Property pods
//   - Property: key(4) flags(4) value header then N bodies, the first being
//     the value and the rest its alternatives
//   - Sequence: unit(4) reserved(4) then a run of controls, each
//     offset(4) type(4) followed by a value pod
//
// # Alignment
//
// Pods inside a struct, object or sequence, and every control, are followed
// by zero padding up to a multiple of 8 bytes. The padding is not part of the
// record's own Size but is part of the enclosing container's Size. Array
// elements and property values are never padded. A top-level pod has no
// trailing padding, so its encoded length is exactly 8 + Size.
//
// # Building
//
//	b := pod.NewBuilder()
//	b.OpenObject(objectType, objectID)
//	b.OpenProperty(key, pod.PropFlags{Range: pod.RangeMinMax})
//	b.AddInt(48000) // value
//	b.AddInt(8000)  // min
//	b.AddInt(96000) // max
//	b.Close()
//	b.Close()
//	buf, err := b.Bytes()
//
// Array elements and property values may themselves be containers. An
// array of structs is opened with OpenArray(KindStruct, stride) and each
// element is an OpenStruct/Close pair whose body must be exactly stride
// bytes; only the array's child header is written for them.
//
// # Depth
//
// Every struct, array, object and sequence adds one level; properties and
// controls do not, so a property's value sits one level below its object.
// A buffer may nest at most MaxDepth such containers. The builder refuses to
// open one more, and a reader refuses to enter one more, with
// ErrDepthExceeded.
//
// The first builder error is sticky: the builder drops its buffer and Bytes
// returns that error.
//
// # Reading
//
//	r := pod.NewReader(buf)
//	p, err := r.First()
//	obj, err := p.EnterObject()
//	it := obj.Properties()
//	for it.Next() {
//	    prop := it.Property()
//	    v, err := prop.Value().AsInt()
//	}
//
// Readers never copy and never look outside the slice they are bound to;
// entering a container binds a new view to exactly its body. Errors are local
// to the call that reports them.
//
// # Thread Safety
//
// A Builder belongs to one goroutine. Finished buffers are immutable and any
// number of Readers may walk one concurrently. Pointer and Fd values are
// carried, never dereferenced, opened or closed.
package pod
