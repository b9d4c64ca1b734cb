package pod

import (
	"encoding/binary"
	"fmt"
)

// Header is the (size, type) prefix shared by every pod. Size counts body
// bytes only.
type Header struct {
	Size uint32
	Type uint32
}

// WireSize returns the length of the pod including its header, without
// trailing padding.
func (h Header) WireSize() int {
	return HeaderSize + int(h.Size)
}

// PutHeader writes h into the first 8 bytes of dst.
func PutHeader(dst []byte, order binary.ByteOrder, h Header) error {
	if len(dst) < HeaderSize {
		return fmt.Errorf("%w: header needs %d bytes, have %d", ErrTruncatedBuffer, HeaderSize, len(dst))
	}
	order.PutUint32(dst[0:4], h.Size)
	order.PutUint32(dst[4:8], h.Type)
	return nil
}

// ReadHeader decodes the header at the start of src.
func ReadHeader(src []byte, order binary.ByteOrder) (Header, error) {
	if len(src) < HeaderSize {
		return Header{}, fmt.Errorf("%w: header needs %d bytes, have %d", ErrTruncatedBuffer, HeaderSize, len(src))
	}
	return Header{
		Size: order.Uint32(src[0:4]),
		Type: order.Uint32(src[4:8]),
	}, nil
}

// padding returns the number of zero bytes that bring n up to Alignment.
func padding(n int) int {
	return (Alignment - n%Alignment) % Alignment
}
