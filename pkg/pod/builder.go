package pod

import (
	"fmt"
	"math"
)

// State is the lifecycle position of a Builder.
type State uint8

const (
	// StateEmpty means nothing has been written yet.
	StateEmpty State = iota
	// StateOpen means at least one container is open.
	StateOpen
	// StateClosed means the top-level pod is complete and Bytes may be called.
	StateClosed
	// StateFailed means a previous operation failed and the buffer was discarded.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// frame is one open container on the builder stack. Control frames have no
// header of their own; they end as soon as their single value is complete.
// Bare frames are array elements and property alternatives: their header is
// the parent's, so only the body is written and its size must match the
// parent's stride.
type frame struct {
	kind    Kind
	control bool
	bare    bool
	start   int

	// array elements and property values
	childKind Kind
	childType uint32
	stride    int
	count     int
}

// Builder composes a pod incrementally. Containers are opened, filled and
// closed; on close the placeholder header written at open is patched with the
// final body size. A Builder must not be shared between goroutines.
//
// Any failure is fatal to the build in progress: the partial buffer is
// dropped, every later call returns the same error, and Reset is the only way
// to start over.
type Builder struct {
	opts  *Options
	buf   []byte
	stack []frame
	state State
	err   error
}

// NewBuilder returns an empty builder.
func NewBuilder(opts ...Option) *Builder {
	return &Builder{
		opts:  newOptions(opts),
		stack: make([]frame, 0, MaxDepth),
	}
}

// Reset discards everything written so far, including a failure.
func (b *Builder) Reset() {
	b.buf = nil
	b.stack = b.stack[:0]
	b.state = StateEmpty
	b.err = nil
}

// State returns the builder's lifecycle state.
func (b *Builder) State() State { return b.state }

// Err returns the error that failed the builder, if any.
func (b *Builder) Err() error { return b.err }

// Len returns the number of bytes written so far.
func (b *Builder) Len() int { return len(b.buf) }

// Depth returns the number of open containers. Pending controls and open
// properties do not count; a property belongs to its object's level.
func (b *Builder) Depth() int {
	depth := 0
	for i := range b.stack {
		if f := &b.stack[i]; !f.control && f.kind != KindProperty {
			depth++
		}
	}
	return depth
}

// Bytes returns the finished buffer. It fails unless the top-level pod has
// been completed. The returned slice must not be modified.
func (b *Builder) Bytes() ([]byte, error) {
	switch b.state {
	case StateFailed:
		return nil, b.err
	case StateClosed:
		return b.buf[:len(b.buf):len(b.buf)], nil
	}
	return nil, fmt.Errorf("%w: %d container(s) still open", ErrUnbalanced, len(b.stack))
}

// OpenStruct starts a struct.
func (b *Builder) OpenStruct() error {
	return b.open(KindStruct, nil)
}

// OpenObject starts an object of the given object type and id.
func (b *Builder) OpenObject(objectType, id uint32) error {
	return b.open(KindObject, func() {
		b.putUint32(objectType)
		b.putUint32(id)
	})
}

// OpenSequence starts a sequence of controls measured in unit.
func (b *Builder) OpenSequence(unit uint32) error {
	return b.open(KindSequence, func() {
		b.putUint32(unit)
		b.putUint32(0)
	})
}

// OpenProperty starts a property inside an object. The first value added or
// container opened becomes the primary value; later values are alternatives
// and must share its kind and size.
func (b *Builder) OpenProperty(key uint32, flags PropFlags) error {
	return b.open(KindProperty, func() {
		b.putUint32(key)
		b.putUint32(flags.Pack())
	})
}

// OpenArray starts an array whose elements are of the given kind and size.
// Container elements are opened and closed like any other container; their
// bodies must come out at exactly childSize bytes, a multiple of Alignment.
func (b *Builder) OpenArray(child Kind, childSize uint32) error {
	if b.err != nil {
		return b.err
	}
	if child == KindUnknown || child >= kindCount || child == KindProperty {
		return b.fail(fmt.Errorf("%w: array of %s", ErrInvalidState, child))
	}
	if childSize == 0 {
		return b.fail(fmt.Errorf("%w: zero-size array elements", ErrAlignmentViolation))
	}
	if child.IsContainer() && childSize%Alignment != 0 {
		return b.fail(fmt.Errorf("%w: %s elements of %d bytes are not %d-byte aligned", ErrAlignmentViolation, child, childSize, Alignment))
	}
	if width, ok := child.fixedSize(); ok && uint32(width) != childSize {
		return b.fail(fmt.Errorf("%w: %s elements are %d bytes, not %d", ErrAlignmentViolation, child, width, childSize))
	}
	childType := b.opts.Types.ID(child)
	return b.open(KindArray, func() {
		b.putUint32(childSize)
		b.putUint32(childType)
		top := &b.stack[len(b.stack)-1]
		top.childKind = child
		top.childType = childType
		top.stride = int(childSize)
	})
}

// OpenControl starts a control inside a sequence. The next value added or
// container opened becomes the control's value, and the control ends with it.
func (b *Builder) OpenControl(offset, controlType uint32) error {
	if b.err != nil {
		return b.err
	}
	if err := b.checkParent(kindControl); err != nil {
		return b.fail(err)
	}
	b.stack = append(b.stack, frame{control: true, start: len(b.buf)})
	b.putUint32(offset)
	b.putUint32(controlType)
	return nil
}

// AddControl appends a control with a leaf value to the open sequence.
func (b *Builder) AddControl(offset, controlType uint32, v Value) error {
	if err := b.OpenControl(offset, controlType); err != nil {
		return err
	}
	return b.Add(v)
}

// Close ends the innermost open container and patches its size.
func (b *Builder) Close() error {
	if b.err != nil {
		return b.err
	}
	if len(b.stack) == 0 {
		return b.fail(fmt.Errorf("%w: close with nothing open", ErrUnbalanced))
	}
	top := b.stack[len(b.stack)-1]
	if top.control {
		return b.fail(fmt.Errorf("%w: close while a control has no value", ErrUnbalanced))
	}
	if top.kind == KindProperty && top.count == 0 {
		return b.fail(fmt.Errorf("%w: property closed without a value", ErrInvalidState))
	}

	size := len(b.buf) - top.start
	if !top.bare {
		size -= HeaderSize
	}
	if uint64(size) > math.MaxUint32 {
		return b.fail(fmt.Errorf("%w: %s body of %d bytes", ErrArithmeticOverflow, top.kind, size))
	}
	if !top.bare {
		b.opts.Order.PutUint32(b.buf[top.start:], uint32(size))
	}

	b.stack = b.stack[:len(b.stack)-1]
	if len(b.stack) > 0 {
		parent := &b.stack[len(b.stack)-1]
		switch {
		case parent.control:
		case parent.kind == KindArray || parent.kind == KindProperty:
			if top.bare && size != parent.stride {
				return b.fail(fmt.Errorf("%w: %d-byte %s in %s with stride %d", ErrAlignmentViolation, size, top.kind, parent.kind, parent.stride))
			}
			if parent.count == 0 && parent.kind == KindProperty {
				parent.childKind = top.kind
				parent.childType = b.opts.Types.ID(top.kind)
				parent.stride = size
			}
			parent.count++
		}
	}
	b.childDone()
	return nil
}

// Add appends a leaf value at the current position.
func (b *Builder) Add(v Value) error {
	if b.err != nil {
		return b.err
	}
	if err := checkValue(v); err != nil {
		return b.fail(err)
	}
	if err := b.checkParent(v.Kind()); err != nil {
		return b.fail(err)
	}

	if len(b.stack) > 0 {
		top := &b.stack[len(b.stack)-1]
		switch top.kind {
		case KindArray:
			if err := top.accept(v); err != nil {
				return b.fail(err)
			}
			b.putBody(v)
			top.count++
			return nil
		case KindProperty:
			if top.count == 0 {
				top.childKind = v.Kind()
				top.childType = b.opts.Types.ID(v.Kind())
				top.stride = v.bodySize()
				b.putHeader(Header{Size: uint32(top.stride), Type: top.childType})
			} else if top.stride == 0 {
				return b.fail(fmt.Errorf("%w: alternatives for a zero-size value", ErrAlignmentViolation))
			} else if err := top.accept(v); err != nil {
				return b.fail(err)
			}
			b.putBody(v)
			top.count++
			return nil
		}
	}

	b.putHeader(Header{Size: uint32(v.bodySize()), Type: b.opts.Types.ID(v.Kind())})
	b.putBody(v)
	b.childDone()
	return nil
}

func (b *Builder) AddNone() error                 { return b.Add(None{}) }
func (b *Builder) AddBool(v bool) error           { return b.Add(Bool(v)) }
func (b *Builder) AddEnum(v uint32) error         { return b.Add(Enum(v)) }
func (b *Builder) AddInt(v int32) error           { return b.Add(Int(v)) }
func (b *Builder) AddLong(v int64) error          { return b.Add(Long(v)) }
func (b *Builder) AddFloat(v float32) error       { return b.Add(Float(v)) }
func (b *Builder) AddDouble(v float64) error      { return b.Add(Double(v)) }
func (b *Builder) AddString(v string) error       { return b.Add(String(v)) }
func (b *Builder) AddBytes(v []byte) error        { return b.Add(Bytes(v)) }
func (b *Builder) AddBitmap(v []byte) error       { return b.Add(Bitmap(v)) }
func (b *Builder) AddFd(v int64) error            { return b.Add(Fd(v)) }
func (b *Builder) AddRectangle(w, h uint32) error { return b.Add(Rectangle{Width: w, Height: h}) }
func (b *Builder) AddFraction(n, d uint32) error  { return b.Add(Fraction{Num: n, Denom: d}) }

// AddPointer appends a non-owned reference tagged with the pointee's type id.
func (b *Builder) AddPointer(pointerType uint32, ref uint64) error {
	return b.Add(Pointer{Type: pointerType, Ref: ref})
}

// kindControl marks a control in checkParent; it is never written as a type.
const kindControl = kindCount

// checkParent verifies that a pod of the given kind may start at the current
// position.
func (b *Builder) checkParent(kind Kind) error {
	if b.state == StateClosed {
		return fmt.Errorf("%w: top-level pod already complete", ErrUnbalanced)
	}
	if len(b.stack) == 0 {
		switch {
		case kind == KindProperty:
			return fmt.Errorf("%w: property outside an object", ErrInvalidState)
		case kind == kindControl:
			return fmt.Errorf("%w: control outside a sequence", ErrInvalidState)
		case !kind.IsContainer():
			return fmt.Errorf("%w: %s added before any container was opened", ErrUnbalanced, kind)
		}
		return nil
	}

	top := b.stack[len(b.stack)-1]
	if top.control {
		if kind == KindProperty || kind == kindControl {
			return fmt.Errorf("%w: %s as a control value", ErrInvalidState, kindLabel(kind))
		}
		return nil
	}
	switch top.kind {
	case KindStruct:
		if kind == KindProperty || kind == kindControl {
			return fmt.Errorf("%w: %s inside a struct", ErrInvalidState, kindLabel(kind))
		}
	case KindObject:
		if kind != KindProperty {
			return fmt.Errorf("%w: %s inside an object", ErrInvalidState, kindLabel(kind))
		}
	case KindSequence:
		if kind != kindControl {
			return fmt.Errorf("%w: %s inside a sequence", ErrInvalidState, kindLabel(kind))
		}
	case KindArray, KindProperty:
		if kind == KindProperty || kind == kindControl {
			return fmt.Errorf("%w: %s inside %s", ErrInvalidState, kindLabel(kind), top.kind)
		}
		if kind.IsContainer() && (top.kind == KindArray || top.count > 0) && kind != top.childKind {
			return fmt.Errorf("%w: %s in %s of %s", ErrTypeMismatch, kind, top.kind, top.childKind)
		}
	}
	return nil
}

// elementStride reports whether a container opened now is a bare element of
// the innermost frame, and the body size it must have.
func (b *Builder) elementStride() (int, bool) {
	if len(b.stack) == 0 {
		return 0, false
	}
	top := &b.stack[len(b.stack)-1]
	switch {
	case top.control:
		return 0, false
	case top.kind == KindArray, top.kind == KindProperty && top.count > 0:
		return top.stride, true
	}
	return 0, false
}

func kindLabel(k Kind) string {
	if k == kindControl {
		return "control"
	}
	return k.String()
}

// accept checks an array element or property alternative against the
// frame's established kind and stride.
func (f *frame) accept(v Value) error {
	if v.Kind() != f.childKind {
		return fmt.Errorf("%w: %s value in %s of %s", ErrTypeMismatch, v.Kind(), f.kind, f.childKind)
	}
	if v.bodySize() != f.stride {
		return fmt.Errorf("%w: %d-byte value in %s with stride %d", ErrAlignmentViolation, v.bodySize(), f.kind, f.stride)
	}
	return nil
}

func (b *Builder) open(kind Kind, prefix func()) error {
	if b.err != nil {
		return b.err
	}
	if err := b.checkParent(kind); err != nil {
		return b.fail(err)
	}
	if kind != KindProperty && b.Depth() >= b.opts.MaxDepth {
		return b.fail(fmt.Errorf("%w: opening %s at depth %d", ErrDepthExceeded, kind, b.Depth()+1))
	}

	stride, bare := b.elementStride()
	if bare && (stride == 0 || stride%Alignment != 0) {
		return b.fail(fmt.Errorf("%w: %s element with stride %d", ErrAlignmentViolation, kind, stride))
	}
	b.stack = append(b.stack, frame{kind: kind, bare: bare, start: len(b.buf)})
	if !bare {
		b.putHeader(Header{Type: b.opts.Types.ID(kind)})
	}
	if prefix != nil {
		prefix()
	}
	b.state = StateOpen
	return nil
}

// childDone runs after a pod has been completed at the current level: pending
// controls end, padding is written inside padded containers, and the builder
// closes once the stack is empty.
func (b *Builder) childDone() {
	for len(b.stack) > 0 && b.stack[len(b.stack)-1].control {
		b.stack = b.stack[:len(b.stack)-1]
		b.pad()
	}
	if len(b.stack) == 0 {
		b.state = StateClosed
		return
	}
	switch b.stack[len(b.stack)-1].kind {
	case KindStruct, KindObject, KindSequence:
		b.pad()
	}
}

func (b *Builder) fail(err error) error {
	b.err = err
	b.state = StateFailed
	b.buf = nil
	b.stack = b.stack[:0]
	return err
}

func (b *Builder) pad() {
	for n := padding(len(b.buf)); n > 0; n-- {
		b.buf = append(b.buf, 0)
	}
}

func (b *Builder) putUint32(v uint32) {
	var scratch [4]byte
	b.opts.Order.PutUint32(scratch[:], v)
	b.buf = append(b.buf, scratch[:]...)
}

func (b *Builder) putHeader(h Header) {
	b.putUint32(h.Size)
	b.putUint32(h.Type)
}

func (b *Builder) putBody(v Value) {
	n := len(b.buf)
	size := v.bodySize()
	b.buf = append(b.buf, make([]byte, size)...)
	v.putBody(b.buf[n:n+size], b.opts.Order)
}
