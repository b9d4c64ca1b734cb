// Package compose builds pods from YAML (or JSON) documents shaped like
// the trees produced by package inspect.
package compose

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/ssargent/podkit/pkg/pod"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

var ErrInvalidDocument = errors.New("invalid pod document")

// Compose parses doc and returns the encoded pod. A document holding a
// single leaf yields a standalone leaf pod.
func Compose(doc []byte, opts ...pod.Option) ([]byte, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(doc, &root); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) != 1 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidDocument)
	}
	return ComposeNode(root.Content[0], opts...)
}

// ComposeAll encodes every document of a multi-document stream into one
// run of top-level pods, each starting on an aligned offset. A document
// whose root is a sequence contributes one pod per item, which accepts the
// list form inspect renders for multi-pod buffers.
func ComposeAll(r io.Reader, opts ...pod.Option) ([]byte, error) {
	dec := yaml.NewDecoder(r)
	var out []byte
	for i := 1; ; i++ {
		var root yaml.Node
		if err := dec.Decode(&root); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("parse document %d: %w", i, err)
		}
		if root.Kind != yaml.DocumentNode || len(root.Content) != 1 {
			continue
		}
		nodes := []*yaml.Node{root.Content[0]}
		if n := root.Content[0]; n.Kind == yaml.SequenceNode {
			nodes = n.Content
		}
		for _, n := range nodes {
			data, err := ComposeNode(n, opts...)
			if err != nil {
				return nil, fmt.Errorf("document %d: %w", i, err)
			}
			for len(out)%pod.Alignment != 0 {
				out = append(out, 0)
			}
			out = append(out, data...)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no pods in input", ErrInvalidDocument)
	}
	return out, nil
}

// ComposeJSON is ComposeAll for JSON input that may carry comments and
// trailing commas.
func ComposeJSON(doc []byte, opts ...pod.Option) ([]byte, error) {
	return ComposeAll(bytes.NewReader(jsonc.ToJSON(doc)), opts...)
}

// ComposeNode encodes an already-parsed node.
func ComposeNode(n *yaml.Node, opts ...pod.Option) ([]byte, error) {
	kind, payload, err := split(n)
	if err != nil {
		return nil, err
	}
	if !kind.IsContainer() {
		v, err := leaf(kind, payload)
		if err != nil {
			return nil, err
		}
		return pod.Encode(v, opts...)
	}

	b := pod.NewBuilder(opts...)
	if err := Build(b, n); err != nil {
		return nil, err
	}
	return b.Bytes()
}

// Build appends the pod described by n to b.
func Build(b *pod.Builder, n *yaml.Node) error {
	kind, payload, err := split(n)
	if err != nil {
		return err
	}
	return buildPayload(b, kind, payload)
}

// buildPayload appends a pod of the given kind from its bare payload, the
// form array elements and property values take.
func buildPayload(b *pod.Builder, kind pod.Kind, payload *yaml.Node) error {
	switch kind {
	case pod.KindStruct:
		return buildStruct(b, payload)
	case pod.KindArray:
		return buildArray(b, payload)
	case pod.KindObject:
		return buildObject(b, payload)
	case pod.KindSequence:
		return buildSequence(b, payload)
	case pod.KindProperty:
		return fmt.Errorf("%w: properties belong in an object's props", ErrInvalidDocument)
	}
	v, err := leaf(kind, payload)
	if err != nil {
		return err
	}
	return b.Add(v)
}

// split reads a {kind: payload} mapping.
func split(n *yaml.Node) (pod.Kind, *yaml.Node, error) {
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return pod.KindUnknown, nil, fmt.Errorf("%w: line %d: expected a single-key map {kind: value}", ErrInvalidDocument, n.Line)
	}
	kind, err := pod.ParseKind(n.Content[0].Value)
	if err != nil {
		return pod.KindUnknown, nil, fmt.Errorf("%w: line %d: %w", ErrInvalidDocument, n.Line, err)
	}
	return kind, n.Content[1], nil
}

// leaf decodes the payload of a scalar kind.
func leaf(kind pod.Kind, n *yaml.Node) (pod.Value, error) {
	var (
		v   pod.Value
		err error
	)
	switch kind {
	case pod.KindNone:
		return pod.None{}, nil
	case pod.KindBool:
		var x bool
		err = n.Decode(&x)
		v = pod.Bool(x)
	case pod.KindEnum:
		var x uint32
		err = n.Decode(&x)
		v = pod.Enum(x)
	case pod.KindInt:
		var x int32
		err = n.Decode(&x)
		v = pod.Int(x)
	case pod.KindLong:
		var x int64
		err = n.Decode(&x)
		v = pod.Long(x)
	case pod.KindFloat:
		var x float32
		err = n.Decode(&x)
		v = pod.Float(x)
	case pod.KindDouble:
		var x float64
		err = n.Decode(&x)
		v = pod.Double(x)
	case pod.KindString:
		var x string
		err = n.Decode(&x)
		v = pod.String(x)
	case pod.KindBytes:
		var x []byte
		x, err = decodeHex(n)
		v = pod.Bytes(x)
	case pod.KindBitmap:
		var x []byte
		x, err = decodeHex(n)
		v = pod.Bitmap(x)
	case pod.KindFd:
		var x int64
		err = n.Decode(&x)
		v = pod.Fd(x)
	case pod.KindRectangle:
		var x [2]uint32
		x, err = decodePair(n)
		v = pod.Rectangle{Width: x[0], Height: x[1]}
	case pod.KindFraction:
		var x [2]uint32
		x, err = decodePair(n)
		v = pod.Fraction{Num: x[0], Denom: x[1]}
	case pod.KindPointer:
		var x struct {
			Type uint32 `yaml:"type"`
			Ref  uint64 `yaml:"ref"`
		}
		err = n.Decode(&x)
		v = pod.Pointer{Type: x.Type, Ref: x.Ref}
	default:
		return nil, fmt.Errorf("%w: line %d: %s is not a leaf kind", ErrInvalidDocument, n.Line, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: line %d: %s: %w", ErrInvalidDocument, n.Line, kind, err)
	}
	return v, nil
}

func decodeHex(n *yaml.Node) ([]byte, error) {
	var s string
	if err := n.Decode(&s); err != nil {
		return nil, err
	}
	return hex.DecodeString(s)
}

func decodePair(n *yaml.Node) ([2]uint32, error) {
	var xs []uint32
	if err := n.Decode(&xs); err != nil {
		return [2]uint32{}, err
	}
	if len(xs) != 2 {
		return [2]uint32{}, fmt.Errorf("expected two numbers, got %d", len(xs))
	}
	return [2]uint32{xs[0], xs[1]}, nil
}

func buildStruct(b *pod.Builder, n *yaml.Node) error {
	if n.Kind != yaml.SequenceNode {
		return fmt.Errorf("%w: line %d: struct expects a list of pods", ErrInvalidDocument, n.Line)
	}
	if err := b.OpenStruct(); err != nil {
		return err
	}
	for _, child := range n.Content {
		if err := Build(b, child); err != nil {
			return err
		}
	}
	return b.Close()
}

type arrayDoc struct {
	Kind   string      `yaml:"kind"`
	Size   uint32      `yaml:"size"`
	Values []yaml.Node `yaml:"values"`
}

func buildArray(b *pod.Builder, n *yaml.Node) error {
	var doc arrayDoc
	if err := n.Decode(&doc); err != nil {
		return fmt.Errorf("%w: line %d: array: %w", ErrInvalidDocument, n.Line, err)
	}
	kind, err := pod.ParseKind(doc.Kind)
	if err != nil {
		return fmt.Errorf("%w: line %d: array: %w", ErrInvalidDocument, n.Line, err)
	}
	if kind.IsContainer() {
		return buildContainerArray(b, n, kind, doc)
	}
	values, err := leaves(kind, doc.Values)
	if err != nil {
		return err
	}
	size := doc.Size
	if size == 0 {
		size, err = elementSize(kind, values)
		if err != nil {
			return fmt.Errorf("%w: line %d: array: %w", ErrInvalidDocument, n.Line, err)
		}
	}
	if err := b.OpenArray(kind, size); err != nil {
		return err
	}
	for _, v := range values {
		if err := b.Add(v); err != nil {
			return err
		}
	}
	return b.Close()
}

// buildContainerArray writes an array whose elements are containers. The
// stride defaults to the body size of the first element.
func buildContainerArray(b *pod.Builder, n *yaml.Node, kind pod.Kind, doc arrayDoc) error {
	size := doc.Size
	if size == 0 {
		if len(doc.Values) == 0 {
			return fmt.Errorf("%w: line %d: array: size is required for an empty array of %s", ErrInvalidDocument, n.Line, kind)
		}
		first := pod.NewBuilder()
		if err := buildPayload(first, kind, &doc.Values[0]); err != nil {
			return err
		}
		data, err := first.Bytes()
		if err != nil {
			return err
		}
		size = uint32(len(data) - pod.HeaderSize)
	}
	if err := b.OpenArray(kind, size); err != nil {
		return err
	}
	for i := range doc.Values {
		if err := buildPayload(b, kind, &doc.Values[i]); err != nil {
			return err
		}
	}
	return b.Close()
}

func leaves(kind pod.Kind, nodes []yaml.Node) ([]pod.Value, error) {
	values := make([]pod.Value, 0, len(nodes))
	for i := range nodes {
		v, err := leaf(kind, &nodes[i])
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// elementSize derives the stride of an array from its first element.
func elementSize(kind pod.Kind, values []pod.Value) (uint32, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("size is required for an empty array of %s", kind)
	}
	buf, err := pod.Encode(values[0])
	if err != nil {
		return 0, err
	}
	return uint32(len(buf) - pod.HeaderSize), nil
}

type objectDoc struct {
	Type  uint32        `yaml:"type"`
	ID    uint32        `yaml:"id"`
	Props []propertyDoc `yaml:"props"`
}

type propertyDoc struct {
	Key    uint32      `yaml:"key"`
	Kind   string      `yaml:"kind"`
	Flags  flagsDoc    `yaml:"flags"`
	Values []yaml.Node `yaml:"values"`
}

type flagsDoc struct {
	Range        yaml.Node `yaml:"range"`
	Unset        bool      `yaml:"unset"`
	Optional     bool      `yaml:"optional"`
	ReadOnly     bool      `yaml:"readonly"`
	Deprecated   bool      `yaml:"deprecated"`
	Info         bool      `yaml:"info"`
	Controllable bool      `yaml:"controllable"`
	Extra        uint32    `yaml:"extra"`
}

func (f flagsDoc) flags() (pod.PropFlags, error) {
	flags := pod.PropFlags{
		Unset:        f.Unset,
		Optional:     f.Optional,
		ReadOnly:     f.ReadOnly,
		Deprecated:   f.Deprecated,
		Info:         f.Info,
		Controllable: f.Controllable,
		Extra:        f.Extra,
	}
	switch f.Range.Kind {
	case 0:
	case yaml.ScalarNode:
		if f.Range.Tag == "!!int" {
			var r uint8
			if err := f.Range.Decode(&r); err != nil {
				return flags, err
			}
			if pod.RangeKind(r) > pod.MaxRangeKind {
				return flags, fmt.Errorf("range %d does not fit in 4 bits", r)
			}
			flags.Range = pod.RangeKind(r)
			break
		}
		r, err := pod.ParseRangeKind(f.Range.Value)
		if err != nil {
			return flags, err
		}
		flags.Range = r
	default:
		return flags, fmt.Errorf("range must be a name or a number")
	}
	return flags, nil
}

func buildObject(b *pod.Builder, n *yaml.Node) error {
	var doc objectDoc
	if err := n.Decode(&doc); err != nil {
		return fmt.Errorf("%w: line %d: object: %w", ErrInvalidDocument, n.Line, err)
	}
	if err := b.OpenObject(doc.Type, doc.ID); err != nil {
		return err
	}
	for _, prop := range doc.Props {
		if err := buildProperty(b, prop); err != nil {
			return fmt.Errorf("property %d: %w", prop.Key, err)
		}
	}
	return b.Close()
}

func buildProperty(b *pod.Builder, doc propertyDoc) error {
	kind, err := pod.ParseKind(doc.Kind)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	flags, err := doc.Flags.flags()
	if err != nil {
		return fmt.Errorf("%w: flags: %w", ErrInvalidDocument, err)
	}
	if kind.IsContainer() {
		if err := b.OpenProperty(doc.Key, flags); err != nil {
			return err
		}
		for i := range doc.Values {
			if err := buildPayload(b, kind, &doc.Values[i]); err != nil {
				return err
			}
		}
		return b.Close()
	}
	values, err := leaves(kind, doc.Values)
	if err != nil {
		return err
	}
	if err := b.OpenProperty(doc.Key, flags); err != nil {
		return err
	}
	for _, v := range values {
		if err := b.Add(v); err != nil {
			return err
		}
	}
	return b.Close()
}

type sequenceDoc struct {
	Unit     uint32 `yaml:"unit"`
	Controls []struct {
		Offset uint32    `yaml:"offset"`
		Type   uint32    `yaml:"type"`
		Value  yaml.Node `yaml:"value"`
	} `yaml:"controls"`
}

func buildSequence(b *pod.Builder, n *yaml.Node) error {
	var doc sequenceDoc
	if err := n.Decode(&doc); err != nil {
		return fmt.Errorf("%w: line %d: sequence: %w", ErrInvalidDocument, n.Line, err)
	}
	if err := b.OpenSequence(doc.Unit); err != nil {
		return err
	}
	for i := range doc.Controls {
		c := &doc.Controls[i]
		if err := b.OpenControl(c.Offset, c.Type); err != nil {
			return err
		}
		if err := Build(b, &c.Value); err != nil {
			return fmt.Errorf("control at %d: %w", c.Offset, err)
		}
	}
	return b.Close()
}
