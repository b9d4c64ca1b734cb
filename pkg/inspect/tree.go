// Package inspect renders pods for humans and for other tools.
//
// Tree converts a pod into a Node document whose shape matches what
// package compose accepts, so a pod can be dumped to YAML, edited and
// rebuilt. Every node is a single-key map from the kind name to its
// payload:
//
//	struct:
//	  - int: 7
//	  - string: hello
//	  - array: {kind: long, size: 8, values: [1, 2, 3]}
//	  - object:
//	      type: 3
//	      id: 7
//	      props:
//	        - {key: 1, kind: int, flags: {range: min-max}, values: [48000, 8000, 192000]}
//	  - sequence:
//	      unit: 0
//	      controls:
//	        - {offset: 0, type: 1, value: {bool: true}}
//
// Byte payloads (bytes, bitmap and the body of unknown pods) are rendered
// as lowercase hex strings.
package inspect

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/ssargent/podkit/pkg/pod"
)

// Node is one pod rendered as {kind: payload}.
type Node map[string]any

// Tree converts p and everything inside it into a Node.
func Tree(p pod.Pod) (Node, error) {
	payload, err := payloadOf(p)
	if err != nil {
		return nil, err
	}
	return Node{p.Kind().String(): payload}, nil
}

// Trees converts every top-level pod of buf.
func Trees(buf []byte, opts ...pod.Option) ([]Node, error) {
	r := pod.NewReader(buf, opts...)
	var nodes []Node
	for {
		p, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nodes, nil
		}
		if err != nil {
			return nil, fmt.Errorf("pod at offset %d: %w", r.Offset(), err)
		}
		n, err := Tree(p)
		if err != nil {
			return nil, fmt.Errorf("pod at offset %d: %w", r.Offset(), err)
		}
		nodes = append(nodes, n)
	}
}

func payloadOf(p pod.Pod) (any, error) {
	switch p.Kind() {
	case pod.KindUnknown:
		return map[string]any{
			"type": p.Type(),
			"size": p.Size(),
			"body": hex.EncodeToString(p.Body()),
		}, nil
	case pod.KindStruct:
		return structPayload(p)
	case pod.KindArray:
		return arrayPayload(p)
	case pod.KindObject:
		return objectPayload(p)
	case pod.KindSequence:
		return sequencePayload(p)
	case pod.KindProperty:
		prop, err := p.AsProperty()
		if err != nil {
			return nil, err
		}
		return propertyPayload(prop)
	}

	v, err := p.Value()
	if err != nil {
		return nil, err
	}
	return leafPayload(v), nil
}

func leafPayload(v pod.Value) any {
	switch v := v.(type) {
	case pod.Bool:
		return bool(v)
	case pod.Enum:
		return uint32(v)
	case pod.Int:
		return int32(v)
	case pod.Long:
		return int64(v)
	case pod.Float:
		return float32(v)
	case pod.Double:
		return float64(v)
	case pod.String:
		return string(v)
	case pod.Bytes:
		return hex.EncodeToString(v)
	case pod.Bitmap:
		return hex.EncodeToString(v)
	case pod.Rectangle:
		return []uint32{v.Width, v.Height}
	case pod.Fraction:
		return []uint32{v.Num, v.Denom}
	case pod.Pointer:
		return map[string]any{"type": v.Type, "ref": v.Ref}
	case pod.Fd:
		return int64(v)
	}
	return nil
}

func structPayload(p pod.Pod) (any, error) {
	r, err := p.EnterStruct()
	if err != nil {
		return nil, err
	}
	fields := []Node{}
	for {
		child, err := r.Next()
		if errors.Is(err, io.EOF) {
			return fields, nil
		}
		if err != nil {
			return nil, err
		}
		n, err := Tree(child)
		if err != nil {
			return nil, err
		}
		fields = append(fields, n)
	}
}

func arrayPayload(p pod.Pod) (any, error) {
	a, err := p.EnterArray()
	if err != nil {
		return nil, err
	}
	values, err := elementPayloads(a.Elements(), a.Len())
	if err != nil {
		return nil, err
	}
	doc := map[string]any{
		"kind":   a.ChildKind().String(),
		"size":   a.Stride(),
		"values": values,
	}
	if a.ChildKind() == pod.KindUnknown {
		doc["type"] = a.ChildType()
	}
	return doc, nil
}

func elementPayloads(it *pod.ElementIter, n int) ([]any, error) {
	values := make([]any, 0, n)
	for it.Next() {
		v, err := payloadOf(it.Pod())
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func objectPayload(p pod.Pod) (any, error) {
	o, err := p.EnterObject()
	if err != nil {
		return nil, err
	}
	props := []any{}
	it := o.Properties()
	for it.Next() {
		prop, err := propertyPayload(it.Property())
		if err != nil {
			return nil, err
		}
		props = append(props, prop)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return map[string]any{
		"type":  o.Type(),
		"id":    o.ID(),
		"props": props,
	}, nil
}

func propertyPayload(prop pod.Property) (map[string]any, error) {
	first, err := payloadOf(prop.Value())
	if err != nil {
		return nil, fmt.Errorf("property %d: %w", prop.Key, err)
	}
	alts, err := elementPayloads(prop.Alternatives(), prop.NumAlternatives())
	if err != nil {
		return nil, fmt.Errorf("property %d: %w", prop.Key, err)
	}
	doc := map[string]any{
		"key":    prop.Key,
		"kind":   prop.ValueKind().String(),
		"values": append([]any{first}, alts...),
	}
	if flags := flagsPayload(prop.Flags); len(flags) > 0 {
		doc["flags"] = flags
	}
	return doc, nil
}

func flagsPayload(f pod.PropFlags) map[string]any {
	doc := map[string]any{}
	switch {
	case f.Range > pod.RangeFlags:
		doc["range"] = uint8(f.Range)
	case f.Range != pod.RangeNone:
		doc["range"] = f.Range.String()
	}
	for name, set := range map[string]bool{
		"unset":        f.Unset,
		"optional":     f.Optional,
		"readonly":     f.ReadOnly,
		"deprecated":   f.Deprecated,
		"info":         f.Info,
		"controllable": f.Controllable,
	} {
		if set {
			doc[name] = true
		}
	}
	if f.Extra != 0 {
		doc["extra"] = f.Extra
	}
	return doc
}

func sequencePayload(p pod.Pod) (any, error) {
	s, err := p.EnterSequence()
	if err != nil {
		return nil, err
	}
	controls := []any{}
	it := s.Controls()
	for it.Next() {
		c := it.Control()
		value, err := Tree(c.Value)
		if err != nil {
			return nil, fmt.Errorf("control at %d: %w", c.Offset, err)
		}
		controls = append(controls, map[string]any{
			"offset": c.Offset,
			"type":   c.Type,
			"value":  value,
		})
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return map[string]any{
		"unit":     s.Unit(),
		"controls": controls,
	}, nil
}
