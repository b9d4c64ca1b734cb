package inspect

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ssargent/podkit/pkg/pod"
)

// Dump writes an indented, human-readable rendering of p to w.
func Dump(w io.Writer, p pod.Pod) error {
	d := &dumper{w: w}
	d.pod(p, 0)
	return d.err
}

// DumpAll dumps every top-level pod of buf.
func DumpAll(w io.Writer, buf []byte, opts ...pod.Option) error {
	r := pod.NewReader(buf, opts...)
	for {
		p, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("pod at offset %d: %w", r.Offset(), err)
		}
		if err := Dump(w, p); err != nil {
			return err
		}
	}
}

// dumper keeps the first error so the walk reads straight through.
type dumper struct {
	w   io.Writer
	err error
}

func (d *dumper) line(indent int, format string, args ...any) {
	if d.err != nil {
		return
	}
	_, d.err = fmt.Fprintf(d.w, "%s%s\n", strings.Repeat("  ", indent), fmt.Sprintf(format, args...))
}

func (d *dumper) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *dumper) pod(p pod.Pod, indent int) {
	if d.err != nil {
		return
	}
	switch p.Kind() {
	case pod.KindUnknown:
		d.line(indent, "Unknown: type %d, size %d, body %s", p.Type(), p.Size(), hex.EncodeToString(p.Body()))
	case pod.KindStruct:
		d.structure(p, indent)
	case pod.KindArray:
		d.array(p, indent)
	case pod.KindObject:
		d.object(p, indent)
	case pod.KindSequence:
		d.sequence(p, indent)
	case pod.KindProperty:
		prop, err := p.AsProperty()
		if err != nil {
			d.fail(err)
			return
		}
		d.property(prop, indent)
	default:
		d.leaf(p, indent)
	}
}

func (d *dumper) leaf(p pod.Pod, indent int) {
	v, err := p.Value()
	if err != nil {
		d.fail(err)
		return
	}
	var text string
	switch v := v.(type) {
	case pod.None:
		text = ""
	case pod.String:
		text = fmt.Sprintf(" %q", string(v))
	case pod.Bytes:
		text = " " + hex.EncodeToString(v)
	case pod.Bitmap:
		text = " " + hex.EncodeToString(v)
	case pod.Rectangle:
		text = fmt.Sprintf(" %dx%d", v.Width, v.Height)
	case pod.Fraction:
		text = fmt.Sprintf(" %d/%d", v.Num, v.Denom)
	case pod.Pointer:
		text = fmt.Sprintf(" type %d, ref %#x", v.Type, v.Ref)
	default:
		text = fmt.Sprintf(" %v", v)
	}
	d.line(indent, "%s%s", title(p.Kind()), text)
}

func (d *dumper) structure(p pod.Pod, indent int) {
	r, err := p.EnterStruct()
	if err != nil {
		d.fail(err)
		return
	}
	d.line(indent, "Struct: size %d", p.Size())
	for d.err == nil {
		child, err := r.Next()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			d.fail(err)
			return
		}
		d.pod(child, indent+1)
	}
}

func (d *dumper) array(p pod.Pod, indent int) {
	a, err := p.EnterArray()
	if err != nil {
		d.fail(err)
		return
	}
	d.line(indent, "Array: child %s (stride %d), %d element(s)", a.ChildKind(), a.Stride(), a.Len())
	it := a.Elements()
	for it.Next() {
		d.pod(it.Pod(), indent+1)
	}
}

func (d *dumper) object(p pod.Pod, indent int) {
	o, err := p.EnterObject()
	if err != nil {
		d.fail(err)
		return
	}
	d.line(indent, "Object: type %d, id %d", o.Type(), o.ID())
	it := o.Properties()
	for it.Next() && d.err == nil {
		d.property(it.Property(), indent+1)
	}
	if err := it.Err(); err != nil {
		d.fail(err)
	}
}

func (d *dumper) property(prop pod.Property, indent int) {
	d.line(indent, "Prop: key %d (%s), %d alternative(s)", prop.Key, prop.Flags, prop.NumAlternatives())
	d.pod(prop.Value(), indent+1)
	it := prop.Alternatives()
	for it.Next() {
		d.pod(it.Pod(), indent+2)
	}
}

func (d *dumper) sequence(p pod.Pod, indent int) {
	s, err := p.EnterSequence()
	if err != nil {
		d.fail(err)
		return
	}
	d.line(indent, "Sequence: unit %d", s.Unit())
	it := s.Controls()
	for it.Next() && d.err == nil {
		c := it.Control()
		d.line(indent+1, "Control: offset %d, type %d", c.Offset, c.Type)
		d.pod(c.Value, indent+2)
	}
	if err := it.Err(); err != nil {
		d.fail(err)
	}
}

func title(k pod.Kind) string {
	name := k.String()
	return strings.ToUpper(name[:1]) + name[1:]
}
