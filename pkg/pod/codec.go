package pod

import (
	"errors"
	"fmt"
	"io"
)

// Encode returns a standalone pod holding a single leaf value. Its wire
// length is exactly HeaderSize plus the value's body size.
func Encode(v Value, opts ...Option) ([]byte, error) {
	if err := checkValue(v); err != nil {
		return nil, err
	}
	o := newOptions(opts)
	size := v.bodySize()
	buf := make([]byte, HeaderSize+size)
	if err := PutHeader(buf, o.Order, Header{Size: uint32(size), Type: o.Types.ID(v.Kind())}); err != nil {
		return nil, err
	}
	v.putBody(buf[HeaderSize:], o.Order)
	return buf, nil
}

// Decode decodes the first pod of buf as a leaf value.
func Decode(buf []byte, opts ...Option) (Value, error) {
	p, err := NewReader(buf, opts...).First()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty buffer", ErrTruncatedBuffer)
	}
	if err != nil {
		return nil, err
	}
	return p.Value()
}

// Validate walks every pod in buf, descending into every container, and
// returns the first violation found. Pods of unknown type are skipped by
// their declared size.
func Validate(buf []byte, opts ...Option) error {
	r := NewReader(buf, opts...)
	if len(buf) == 0 {
		return fmt.Errorf("%w: empty buffer", ErrTruncatedBuffer)
	}
	return validateRun(r)
}

func validateRun(r *Reader) error {
	for {
		p, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := validatePod(p); err != nil {
			return err
		}
	}
}

func validatePod(p Pod) error {
	switch p.Kind() {
	case KindUnknown:
		return nil
	case KindStruct:
		r, err := p.EnterStruct()
		if err != nil {
			return err
		}
		return validateRun(r)
	case KindArray:
		a, err := p.EnterArray()
		if err != nil {
			return err
		}
		return validateElements(a.Elements())
	case KindObject:
		o, err := p.EnterObject()
		if err != nil {
			return err
		}
		it := o.Properties()
		for it.Next() {
			prop := it.Property()
			if err := validatePod(prop.Value()); err != nil {
				return fmt.Errorf("property %d: %w", prop.Key, err)
			}
			if err := validateElements(prop.Alternatives()); err != nil {
				return fmt.Errorf("property %d: %w", prop.Key, err)
			}
		}
		return it.Err()
	case KindSequence:
		s, err := p.EnterSequence()
		if err != nil {
			return err
		}
		it := s.Controls()
		for it.Next() {
			if err := validatePod(it.Control().Value); err != nil {
				return fmt.Errorf("control at %d: %w", it.Control().Offset, err)
			}
		}
		return it.Err()
	case KindProperty:
		_, err := decodeProperty(p)
		return err
	}
	_, err := p.Value()
	return err
}

func validateElements(it *ElementIter) error {
	for it.Next() {
		if err := validatePod(it.Pod()); err != nil {
			return err
		}
	}
	return nil
}
