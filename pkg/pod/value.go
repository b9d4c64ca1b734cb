package pod

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Value is a decoded leaf pod. The set of implementations is closed: one
// type per leaf kind.
type Value interface {
	Kind() Kind
	bodySize() int
	putBody(dst []byte, order binary.ByteOrder)
}

// None is the empty pod.
type None struct{}

// Bool is stored as a 4-byte integer, non-zero meaning true.
type Bool bool

// Enum is an unsigned 32-bit id whose meaning is external.
type Enum uint32

type Int int32

type Long int64

// Float is an IEEE-754 single.
type Float float32

type Double float64

// String is stored with one trailing NUL.
type String string

type Bytes []byte

type Bitmap []byte

// Rectangle is a width/height pair.
type Rectangle struct {
	Width  uint32
	Height uint32
}

// Fraction is a numerator/denominator pair.
type Fraction struct {
	Num   uint32
	Denom uint32
}

// Pointer carries a raw reference owned by somebody else together with the
// type id of what it points to. The codec never dereferences it.
type Pointer struct {
	Type uint32
	Ref  uint64
}

// Fd carries an OS handle. The codec never opens or closes it.
type Fd int64

func (None) Kind() Kind      { return KindNone }
func (Bool) Kind() Kind      { return KindBool }
func (Enum) Kind() Kind      { return KindEnum }
func (Int) Kind() Kind       { return KindInt }
func (Long) Kind() Kind      { return KindLong }
func (Float) Kind() Kind     { return KindFloat }
func (Double) Kind() Kind    { return KindDouble }
func (String) Kind() Kind    { return KindString }
func (Bytes) Kind() Kind     { return KindBytes }
func (Bitmap) Kind() Kind    { return KindBitmap }
func (Rectangle) Kind() Kind { return KindRectangle }
func (Fraction) Kind() Kind  { return KindFraction }
func (Pointer) Kind() Kind   { return KindPointer }
func (Fd) Kind() Kind        { return KindFd }

func (None) bodySize() int      { return 0 }
func (Bool) bodySize() int      { return 4 }
func (Enum) bodySize() int      { return 4 }
func (Int) bodySize() int       { return 4 }
func (Long) bodySize() int      { return 8 }
func (Float) bodySize() int     { return 4 }
func (Double) bodySize() int    { return 8 }
func (v String) bodySize() int  { return len(v) + 1 }
func (v Bytes) bodySize() int   { return len(v) }
func (v Bitmap) bodySize() int  { return len(v) }
func (Rectangle) bodySize() int { return 8 }
func (Fraction) bodySize() int  { return 8 }
func (Pointer) bodySize() int   { return 16 }
func (Fd) bodySize() int        { return 8 }

func (None) putBody([]byte, binary.ByteOrder) {}

func (v Bool) putBody(dst []byte, order binary.ByteOrder) {
	var n uint32
	if v {
		n = 1
	}
	order.PutUint32(dst, n)
}

func (v Enum) putBody(dst []byte, order binary.ByteOrder) { order.PutUint32(dst, uint32(v)) }
func (v Int) putBody(dst []byte, order binary.ByteOrder)  { order.PutUint32(dst, uint32(v)) }
func (v Long) putBody(dst []byte, order binary.ByteOrder) { order.PutUint64(dst, uint64(v)) }
func (v Fd) putBody(dst []byte, order binary.ByteOrder)   { order.PutUint64(dst, uint64(v)) }

func (v Float) putBody(dst []byte, order binary.ByteOrder) {
	order.PutUint32(dst, math.Float32bits(float32(v)))
}

func (v Double) putBody(dst []byte, order binary.ByteOrder) {
	order.PutUint64(dst, math.Float64bits(float64(v)))
}

func (v String) putBody(dst []byte, _ binary.ByteOrder) {
	n := copy(dst, v)
	dst[n] = 0
}

func (v Bytes) putBody(dst []byte, _ binary.ByteOrder)  { copy(dst, v) }
func (v Bitmap) putBody(dst []byte, _ binary.ByteOrder) { copy(dst, v) }

func (v Rectangle) putBody(dst []byte, order binary.ByteOrder) {
	order.PutUint32(dst[0:4], v.Width)
	order.PutUint32(dst[4:8], v.Height)
}

func (v Fraction) putBody(dst []byte, order binary.ByteOrder) {
	order.PutUint32(dst[0:4], v.Num)
	order.PutUint32(dst[4:8], v.Denom)
}

func (v Pointer) putBody(dst []byte, order binary.ByteOrder) {
	order.PutUint32(dst[0:4], v.Type)
	order.PutUint32(dst[4:8], 0)
	order.PutUint64(dst[8:16], v.Ref)
}

// checkValue rejects values that cannot be encoded faithfully.
func checkValue(v Value) error {
	if v == nil {
		return fmt.Errorf("%w: nil value", ErrInvalidState)
	}
	if s, ok := v.(String); ok && bytes.IndexByte([]byte(s), 0) >= 0 {
		return fmt.Errorf("%w: string contains NUL at %d", ErrUnterminatedString, bytes.IndexByte([]byte(s), 0))
	}
	if uint64(v.bodySize()) > math.MaxUint32 {
		return fmt.Errorf("%w: %s body of %d bytes", ErrArithmeticOverflow, v.Kind(), v.bodySize())
	}
	return nil
}

// decodeValue decodes a leaf body of the given kind. Bodies longer than a
// fixed width are accepted and the extra bytes ignored.
func decodeValue(kind Kind, body []byte, order binary.ByteOrder) (Value, error) {
	if width, ok := kind.fixedSize(); ok && len(body) < width {
		return nil, fmt.Errorf("%w: %s body needs %d bytes, have %d", ErrTruncatedBuffer, kind, width, len(body))
	}

	switch kind {
	case KindNone:
		return None{}, nil
	case KindBool:
		return Bool(order.Uint32(body) != 0), nil
	case KindEnum:
		return Enum(order.Uint32(body)), nil
	case KindInt:
		return Int(int32(order.Uint32(body))), nil
	case KindLong:
		return Long(int64(order.Uint64(body))), nil
	case KindFloat:
		return Float(math.Float32frombits(order.Uint32(body))), nil
	case KindDouble:
		return Double(math.Float64frombits(order.Uint64(body))), nil
	case KindString:
		s, err := decodeString(body)
		if err != nil {
			return nil, err
		}
		return String(s), nil
	case KindBytes:
		return Bytes(body), nil
	case KindBitmap:
		return Bitmap(body), nil
	case KindRectangle:
		return Rectangle{Width: order.Uint32(body[0:4]), Height: order.Uint32(body[4:8])}, nil
	case KindFraction:
		return Fraction{Num: order.Uint32(body[0:4]), Denom: order.Uint32(body[4:8])}, nil
	case KindPointer:
		return Pointer{Type: order.Uint32(body[0:4]), Ref: order.Uint64(body[8:16])}, nil
	case KindFd:
		return Fd(int64(order.Uint64(body))), nil
	case KindUnknown:
		return nil, ErrUnknownType
	}
	return nil, fmt.Errorf("%w: %s is not a leaf", ErrTypeMismatch, kind)
}

// decodeString returns the string content of a body that must end in exactly
// one NUL.
func decodeString(body []byte) (string, error) {
	if len(body) == 0 || body[len(body)-1] != 0 {
		return "", fmt.Errorf("%w: missing terminator in %d-byte body", ErrUnterminatedString, len(body))
	}
	content := body[:len(body)-1]
	if i := bytes.IndexByte(content, 0); i >= 0 {
		return "", fmt.Errorf("%w: terminator at %d before end of %d-byte body", ErrUnterminatedString, i, len(body))
	}
	return string(content), nil
}
