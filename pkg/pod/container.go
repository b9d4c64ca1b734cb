package pod

import (
	"errors"
	"fmt"
	"io"
)

// strided is a run of same-typed bodies sharing one header, as found in
// arrays and property values.
type strided struct {
	child Header
	kind  Kind
	data  []byte
	n     int
	opts  *Options
	depth int
}

func newStrided(child Header, data []byte, opts *Options, depth int, what string) (strided, error) {
	s := strided{
		child: child,
		kind:  opts.Types.Kind(child.Type),
		data:  data,
		opts:  opts,
		depth: depth,
	}
	stride := int(child.Size)
	switch {
	case stride == 0 && len(data) != 0:
		return strided{}, fmt.Errorf("%w: %s with zero stride and %d value bytes", ErrAlignmentViolation, what, len(data))
	case stride == 0:
		s.n = 0
	case len(data)%stride != 0:
		return strided{}, fmt.Errorf("%w: %s of %d bytes is not a multiple of stride %d", ErrAlignmentViolation, what, len(data), stride)
	default:
		s.n = len(data) / stride
	}
	return s, nil
}

func (s strided) at(i int) (Pod, error) {
	if i < 0 || i >= s.n {
		return Pod{}, fmt.Errorf("index %d out of range [0,%d)", i, s.n)
	}
	stride := int(s.child.Size)
	start := i * stride
	return Pod{
		hdr:   s.child,
		kind:  s.kind,
		body:  s.data[start : start+stride : start+stride],
		opts:  s.opts,
		depth: s.depth,
	}, nil
}

// ElementIter walks a strided run lazily. It can be restarted with Reset.
type ElementIter struct {
	s     strided
	first int
	i     int
	cur   Pod
}

// Next advances to the next element and reports whether there is one.
func (it *ElementIter) Next() bool {
	if it.i >= it.s.n {
		return false
	}
	it.cur, _ = it.s.at(it.i)
	it.i++
	return true
}

// Pod returns the current element.
func (it *ElementIter) Pod() Pod { return it.cur }

// Reset rewinds the iterator to its first element.
func (it *ElementIter) Reset() {
	it.i = it.first
	it.cur = Pod{}
}

// ArrayView is an array pod: one child header followed by fixed-stride
// element bodies.
type ArrayView struct {
	elems strided
}

// EnterArray validates the array layout and returns a view of its elements.
func (p Pod) EnterArray() (*ArrayView, error) {
	if err := p.expect(KindArray); err != nil {
		return nil, err
	}
	depth, err := p.childDepth()
	if err != nil {
		return nil, err
	}
	child, err := ReadHeader(p.body, p.opts.Order)
	if err != nil {
		return nil, fmt.Errorf("array child header: %w", err)
	}
	elems, err := newStrided(child, p.body[HeaderSize:], p.opts, depth, "array")
	if err != nil {
		return nil, err
	}
	return &ArrayView{elems: elems}, nil
}

func (a *ArrayView) ChildType() uint32 { return a.elems.child.Type }
func (a *ArrayView) ChildKind() Kind   { return a.elems.kind }
func (a *ArrayView) Stride() int       { return int(a.elems.child.Size) }
func (a *ArrayView) Len() int          { return a.elems.n }

// At returns element i.
func (a *ArrayView) At(i int) (Pod, error) { return a.elems.at(i) }

// Elements returns an iterator over all elements in order.
func (a *ArrayView) Elements() *ElementIter {
	return &ElementIter{s: a.elems}
}

// ObjectView is an object pod: an opaque (type, id) pair and its properties.
type ObjectView struct {
	objectType uint32
	id         uint32
	props      []byte
	opts       *Options
	depth      int
}

// EnterObject returns a view of an object's properties.
func (p Pod) EnterObject() (*ObjectView, error) {
	if err := p.expect(KindObject); err != nil {
		return nil, err
	}
	depth, err := p.childDepth()
	if err != nil {
		return nil, err
	}
	if len(p.body) < 8 {
		return nil, fmt.Errorf("%w: object body of %d bytes", ErrTruncatedBuffer, len(p.body))
	}
	return &ObjectView{
		objectType: p.opts.Order.Uint32(p.body[0:4]),
		id:         p.opts.Order.Uint32(p.body[4:8]),
		props:      p.body[8:],
		opts:       p.opts,
		depth:      depth,
	}, nil
}

func (o *ObjectView) Type() uint32 { return o.objectType }
func (o *ObjectView) ID() uint32   { return o.id }

// Properties returns a lazy iterator over the object's properties.
func (o *ObjectView) Properties() *PropertyIter {
	return &PropertyIter{r: newChildReader(o.props, o.opts, o.depth)}
}

// Find returns the first property with the given key.
func (o *ObjectView) Find(key uint32) (Property, error) {
	it := o.Properties()
	for it.Next() {
		if prop := it.Property(); prop.Key == key {
			return prop, nil
		}
	}
	if err := it.Err(); err != nil {
		return Property{}, err
	}
	return Property{}, fmt.Errorf("%w: key %d", ErrNotFound, key)
}

// Property is a decoded key/flags/value record. Values holds the primary
// value followed by its alternatives; how the alternatives are read depends
// on Flags.Range.
type Property struct {
	Key   uint32
	Flags PropFlags

	values strided
}

// AsProperty decodes p as a standalone property record.
func (p Pod) AsProperty() (Property, error) { return decodeProperty(p) }

func decodeProperty(p Pod) (Property, error) {
	if err := p.expect(KindProperty); err != nil {
		return Property{}, err
	}
	if len(p.body) < 16 {
		return Property{}, fmt.Errorf("%w: property body of %d bytes", ErrTruncatedBuffer, len(p.body))
	}
	order := p.opts.Order
	value, err := ReadHeader(p.body[8:], order)
	if err != nil {
		return Property{}, err
	}
	values, err := newStrided(value, p.body[16:], p.opts, p.depth, "property values")
	if err != nil {
		return Property{}, err
	}
	if value.Size == 0 {
		// a zero-size value has no body and cannot carry alternatives
		values.n = 1
	}
	if values.n == 0 {
		return Property{}, fmt.Errorf("%w: property without a value", ErrTruncatedBuffer)
	}
	return Property{
		Key:    order.Uint32(p.body[0:4]),
		Flags:  UnpackFlags(order.Uint32(p.body[4:8])),
		values: values,
	}, nil
}

// Value returns the primary value.
func (p Property) Value() Pod {
	v, _ := p.values.at(0)
	return v
}

// ValueKind returns the kind shared by the value and its alternatives.
func (p Property) ValueKind() Kind { return p.values.kind }

// NumAlternatives returns the number of values after the primary one.
func (p Property) NumAlternatives() int { return p.values.n - 1 }

// Alternative returns alternative i, counting from zero after the primary.
func (p Property) Alternative(i int) (Pod, error) {
	if i < 0 || i >= p.NumAlternatives() {
		return Pod{}, fmt.Errorf("alternative %d out of range [0,%d)", i, p.NumAlternatives())
	}
	return p.values.at(i + 1)
}

// Alternatives iterates the alternatives in order.
func (p Property) Alternatives() *ElementIter {
	return &ElementIter{s: p.values, first: 1, i: 1}
}

// PropertyIter walks the properties of an object.
type PropertyIter struct {
	r    *Reader
	cur  Property
	err  error
	done bool
}

// Next decodes the next property. It returns false at the end of the object
// or on the first malformed record; Err distinguishes the two.
func (it *PropertyIter) Next() bool {
	if it.done {
		return false
	}
	p, err := it.r.Next()
	if err == nil {
		it.cur, err = decodeProperty(p)
	}
	if err != nil {
		it.done = true
		if !isEOF(err) {
			it.err = err
		}
		return false
	}
	return true
}

func (it *PropertyIter) Property() Property { return it.cur }
func (it *PropertyIter) Err() error         { return it.err }

// Reset rewinds to the first property.
func (it *PropertyIter) Reset() {
	it.r.off = 0
	it.cur = Property{}
	it.err = nil
	it.done = false
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}

// SequenceView is a sequence pod: a unit and a run of controls.
type SequenceView struct {
	unit     uint32
	controls []byte
	opts     *Options
	depth    int
}

// Control is a value tagged with a media offset. Type is the control type
// from the external registry, not the value's pod type.
type Control struct {
	Offset uint32
	Type   uint32
	Value  Pod
}

// EnterSequence returns a view of a sequence's controls.
func (p Pod) EnterSequence() (*SequenceView, error) {
	if err := p.expect(KindSequence); err != nil {
		return nil, err
	}
	depth, err := p.childDepth()
	if err != nil {
		return nil, err
	}
	if len(p.body) < 8 {
		return nil, fmt.Errorf("%w: sequence body of %d bytes", ErrTruncatedBuffer, len(p.body))
	}
	return &SequenceView{
		unit:     p.opts.Order.Uint32(p.body[0:4]),
		controls: p.body[8:],
		opts:     p.opts,
		depth:    depth,
	}, nil
}

func (s *SequenceView) Unit() uint32 { return s.unit }

// Controls returns a lazy iterator over the controls in stored order.
func (s *SequenceView) Controls() *ControlIter {
	return &ControlIter{s: s}
}

// Monotonic reports whether control offsets never decrease. Ordering is a
// caller convention; the codec itself accepts any order.
func (s *SequenceView) Monotonic() (bool, error) {
	it := s.Controls()
	var last uint32
	first := true
	for it.Next() {
		c := it.Control()
		if !first && c.Offset < last {
			return false, nil
		}
		last, first = c.Offset, false
	}
	return true, it.Err()
}

// ControlIter walks the controls of a sequence.
type ControlIter struct {
	s   *SequenceView
	off int
	cur Control
	err error
}

// Next decodes the next control. It returns false at the end of the sequence
// or on the first malformed control; Err distinguishes the two.
func (it *ControlIter) Next() bool {
	data := it.s.controls
	if it.err != nil || it.off >= len(data) {
		return false
	}
	if len(data)-it.off < 8 {
		it.err = fmt.Errorf("%w: control at offset %d needs 8 bytes, have %d", ErrTruncatedBuffer, it.off, len(data)-it.off)
		return false
	}
	order := it.s.opts.Order
	offset := order.Uint32(data[it.off:])
	ctype := order.Uint32(data[it.off+4:])

	// the value pod starts right after (offset, type); its header is read
	// against the sequence body so padding stays relative to it
	value, next, err := readPod(data, it.off+8, it.s.opts, it.s.depth)
	if err != nil {
		it.err = fmt.Errorf("control at offset %d: %w", it.off, err)
		return false
	}
	it.cur = Control{Offset: offset, Type: ctype, Value: value}
	it.off = next
	return true
}

func (it *ControlIter) Control() Control { return it.cur }
func (it *ControlIter) Err() error       { return it.err }

// Reset rewinds to the first control.
func (it *ControlIter) Reset() {
	it.off = 0
	it.cur = Control{}
	it.err = nil
}
