package pod

import (
	"fmt"
	"io"
)

// Reader is a cursor over a run of pods in an immutable buffer. It never
// copies the buffer and never reads outside the slice it was bound to.
// Readers are cheap; any number may walk the same buffer concurrently.
type Reader struct {
	data  []byte
	off   int
	opts  *Options
	depth int
}

// NewReader binds a reader to buf.
func NewReader(buf []byte, opts ...Option) *Reader {
	return &Reader{data: buf, opts: newOptions(opts)}
}

func newChildReader(body []byte, opts *Options, depth int) *Reader {
	return &Reader{data: body, opts: opts, depth: depth}
}

// First rewinds the reader and returns the first pod.
func (r *Reader) First() (Pod, error) {
	r.off = 0
	return r.Next()
}

// Next returns the pod at the cursor and advances past it and its padding.
// It returns io.EOF once the slice is exhausted. On error the cursor does
// not move.
func (r *Reader) Next() (Pod, error) {
	if r.off >= len(r.data) {
		return Pod{}, io.EOF
	}
	p, next, err := readPod(r.data, r.off, r.opts, r.depth)
	if err != nil {
		return Pod{}, err
	}
	r.off = next
	return p, nil
}

// Offset returns the cursor position relative to the start of the slice.
func (r *Reader) Offset() int { return r.off }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.off }

// Depth returns the nesting depth of the pods this reader yields.
func (r *Reader) Depth() int { return r.depth }

// readPod decodes the pod at off and returns the offset of the next one.
// Trailing padding is clamped to the end of data.
func readPod(data []byte, off int, opts *Options, depth int) (Pod, int, error) {
	h, err := ReadHeader(data[off:], opts.Order)
	if err != nil {
		return Pod{}, off, fmt.Errorf("at offset %d: %w", off, err)
	}
	avail := len(data) - off - HeaderSize
	if uint64(h.Size) > uint64(avail) {
		return Pod{}, off, fmt.Errorf("%w: pod at offset %d declares %d body bytes, %d remain", ErrTruncatedBuffer, off, h.Size, avail)
	}
	end := off + HeaderSize + int(h.Size)
	p := Pod{
		hdr:   h,
		kind:  opts.Types.Kind(h.Type),
		body:  data[off+HeaderSize : end : end],
		opts:  opts,
		depth: depth,
	}
	return p, min(end+padding(end), len(data)), nil
}

// Pod is a validated view of one pod inside a buffer. The header has been
// bounds-checked; the accessors check the type and body width before
// touching the body.
type Pod struct {
	hdr   Header
	kind  Kind
	body  []byte
	opts  *Options
	depth int
}

func (p Pod) Header() Header { return p.hdr }
func (p Pod) Size() uint32   { return p.hdr.Size }
func (p Pod) Type() uint32   { return p.hdr.Type }
func (p Pod) Kind() Kind     { return p.kind }

// Body returns the body bytes without copying.
func (p Pod) Body() []byte { return p.body }

// WireSize returns the header plus body length.
func (p Pod) WireSize() int { return p.hdr.WireSize() }

func (p Pod) expect(k Kind) error {
	if p.kind != k {
		return fmt.Errorf("%w: have %s (type %d), want %s", ErrTypeMismatch, p.kind, p.hdr.Type, k)
	}
	return nil
}

// Value decodes a leaf pod into its Value variant.
func (p Pod) Value() (Value, error) {
	if p.kind == KindUnknown {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, p.hdr.Type)
	}
	return decodeValue(p.kind, p.body, p.opts.Order)
}

func (p Pod) leaf(k Kind) (Value, error) {
	if err := p.expect(k); err != nil {
		return nil, err
	}
	return decodeValue(k, p.body, p.opts.Order)
}

func (p Pod) AsBool() (bool, error) {
	v, err := p.leaf(KindBool)
	if err != nil {
		return false, err
	}
	return bool(v.(Bool)), nil
}

func (p Pod) AsEnum() (uint32, error) {
	v, err := p.leaf(KindEnum)
	if err != nil {
		return 0, err
	}
	return uint32(v.(Enum)), nil
}

func (p Pod) AsInt() (int32, error) {
	v, err := p.leaf(KindInt)
	if err != nil {
		return 0, err
	}
	return int32(v.(Int)), nil
}

func (p Pod) AsLong() (int64, error) {
	v, err := p.leaf(KindLong)
	if err != nil {
		return 0, err
	}
	return int64(v.(Long)), nil
}

func (p Pod) AsFloat() (float32, error) {
	v, err := p.leaf(KindFloat)
	if err != nil {
		return 0, err
	}
	return float32(v.(Float)), nil
}

func (p Pod) AsDouble() (float64, error) {
	v, err := p.leaf(KindDouble)
	if err != nil {
		return 0, err
	}
	return float64(v.(Double)), nil
}

func (p Pod) AsString() (string, error) {
	v, err := p.leaf(KindString)
	if err != nil {
		return "", err
	}
	return string(v.(String)), nil
}

// AsBytes returns the body of a bytes pod without copying.
func (p Pod) AsBytes() ([]byte, error) {
	if err := p.expect(KindBytes); err != nil {
		return nil, err
	}
	return p.body, nil
}

// AsBitmap returns the body of a bitmap pod without copying.
func (p Pod) AsBitmap() ([]byte, error) {
	if err := p.expect(KindBitmap); err != nil {
		return nil, err
	}
	return p.body, nil
}

func (p Pod) AsRectangle() (Rectangle, error) {
	v, err := p.leaf(KindRectangle)
	if err != nil {
		return Rectangle{}, err
	}
	return v.(Rectangle), nil
}

func (p Pod) AsFraction() (Fraction, error) {
	v, err := p.leaf(KindFraction)
	if err != nil {
		return Fraction{}, err
	}
	return v.(Fraction), nil
}

func (p Pod) AsPointer() (Pointer, error) {
	v, err := p.leaf(KindPointer)
	if err != nil {
		return Pointer{}, err
	}
	return v.(Pointer), nil
}

func (p Pod) AsFd() (int64, error) {
	v, err := p.leaf(KindFd)
	if err != nil {
		return 0, err
	}
	return int64(v.(Fd)), nil
}

// IsObjectType reports whether p is an object of the given object type.
func (p Pod) IsObjectType(objectType uint32) bool {
	return p.kind == KindObject && len(p.body) >= 8 && p.opts.Order.Uint32(p.body[0:4]) == objectType
}

// IsObjectID reports whether p is an object with the given id.
func (p Pod) IsObjectID(id uint32) bool {
	return p.kind == KindObject && len(p.body) >= 8 && p.opts.Order.Uint32(p.body[4:8]) == id
}

// childDepth returns the depth of the pods inside p.
func (p Pod) childDepth() (int, error) {
	depth := p.depth + 1
	if depth > p.opts.MaxDepth {
		return 0, fmt.Errorf("%w: entering %s at depth %d", ErrDepthExceeded, p.kind, depth)
	}
	return depth, nil
}

// EnterStruct returns a reader bound to exactly the struct's body.
func (p Pod) EnterStruct() (*Reader, error) {
	if err := p.expect(KindStruct); err != nil {
		return nil, err
	}
	depth, err := p.childDepth()
	if err != nil {
		return nil, err
	}
	return newChildReader(p.body, p.opts, depth), nil
}
