package compose

import (
	"strings"
	"testing"

	"github.com/ssargent/podkit/pkg/inspect"
	"github.com/ssargent/podkit/pkg/pod"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const formatDoc = `
object:
  type: 3
  id: 7
  props:
    - key: 1
      kind: int
      flags: {range: min-max, controllable: true}
      values: [48000, 8000, 192000]
    - key: 2
      kind: rectangle
      values: [[640, 480]]
    - key: 3
      kind: string
      flags: {range: 9, extra: 4096}
      values: [S16LE]
`

func TestCompose_MatchesBuilder(t *testing.T) {
	got, err := Compose([]byte(`
struct:
  - int: 7
  - string: hi
  - array: {kind: long, values: [1, 2]}
`))
	require.NoError(t, err)

	b := pod.NewBuilder()
	require.NoError(t, b.OpenStruct())
	require.NoError(t, b.AddInt(7))
	require.NoError(t, b.AddString("hi"))
	require.NoError(t, b.OpenArray(pod.KindLong, 8))
	require.NoError(t, b.AddLong(1))
	require.NoError(t, b.AddLong(2))
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	want, err := b.Bytes()
	require.NoError(t, err)

	assert.Equal(t, want, got)
}

func TestCompose_ContainerValues(t *testing.T) {
	got, err := Compose([]byte(`
object:
  type: 1
  id: 2
  props:
    - key: 7
      kind: array
      values: [{kind: int, values: [3, 4]}]
    - key: 8
      kind: struct
      values: [[{int: 1}], [{int: 2}]]
`))
	require.NoError(t, err)

	b := pod.NewBuilder()
	require.NoError(t, b.OpenObject(1, 2))
	require.NoError(t, b.OpenProperty(7, pod.PropFlags{}))
	require.NoError(t, b.OpenArray(pod.KindInt, 4))
	require.NoError(t, b.AddInt(3))
	require.NoError(t, b.AddInt(4))
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	require.NoError(t, b.OpenProperty(8, pod.PropFlags{}))
	for _, v := range []int32{1, 2} {
		require.NoError(t, b.OpenStruct())
		require.NoError(t, b.AddInt(v))
		require.NoError(t, b.Close())
	}
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	want, err := b.Bytes()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	t.Run("array of structs derives its stride", func(t *testing.T) {
		buf, err := Compose([]byte(`array: {kind: struct, values: [[{long: 1}], [{long: 2}]]}`))
		require.NoError(t, err)
		p, err := pod.NewReader(buf).First()
		require.NoError(t, err)
		a, err := p.EnterArray()
		require.NoError(t, err)
		assert.Equal(t, 16, a.Stride())
		assert.Equal(t, 2, a.Len())
	})
}

func TestCompose_Object(t *testing.T) {
	buf, err := Compose([]byte(formatDoc))
	require.NoError(t, err)
	require.NoError(t, pod.Validate(buf))

	p, err := pod.NewReader(buf).First()
	require.NoError(t, err)
	o, err := p.EnterObject()
	require.NoError(t, err)
	assert.Equal(t, uint32(3), o.Type())

	rate, err := o.Find(1)
	require.NoError(t, err)
	assert.Equal(t, pod.RangeMinMax, rate.Flags.Range)
	assert.True(t, rate.Flags.Controllable)
	assert.Equal(t, 2, rate.NumAlternatives())

	format, err := o.Find(3)
	require.NoError(t, err)
	assert.Equal(t, pod.RangeKind(9), format.Flags.Range)
	assert.Equal(t, uint32(4096), format.Flags.Extra)
	s, err := format.Value().AsString()
	require.NoError(t, err)
	assert.Equal(t, "S16LE", s)
}

func TestCompose_Leaf(t *testing.T) {
	got, err := Compose([]byte(`fraction: [30000, 1001]`))
	require.NoError(t, err)

	want, err := pod.Encode(pod.Fraction{Num: 30000, Denom: 1001})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCompose_Sequence(t *testing.T) {
	buf, err := Compose([]byte(`
sequence:
  unit: 1
  controls:
    - {offset: 0, type: 1, value: {bool: true}}
    - {offset: 64, type: 2, value: {struct: [{int: 1}, {double: 0.5}]}}
`))
	require.NoError(t, err)

	p, err := pod.NewReader(buf).First()
	require.NoError(t, err)
	s, err := p.EnterSequence()
	require.NoError(t, err)

	var offsets []uint32
	it := s.Controls()
	for it.Next() {
		offsets = append(offsets, it.Control().Offset)
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []uint32{0, 64}, offsets)
}

func TestCompose_RoundTripThroughInspect(t *testing.T) {
	docs := []string{
		formatDoc,
		`struct: [{none: null}, {bytes: "00ff"}, {bitmap: "0f"}, {fd: 3}, {pointer: {type: 2, ref: 255}}]`,
		`array: {kind: string, size: 4, values: [abc, xyz]}`,
		`struct: [{float: 1.5}, {enum: 4}, {struct: []}]`,
		`sequence: {unit: 0, controls: [{offset: 5, type: 1, value: {long: -1}}, {offset: 2, type: 1, value: {long: 9}}]}`,
		`object: {type: 1, id: 2, props: [{key: 7, kind: array, values: [{kind: int, size: 4, values: [3, 4, 5]}]}]}`,
		`array: {kind: struct, size: 16, values: [[{int: 1}], [{int: 2}]]}`,
	}
	for _, doc := range docs {
		first, err := Compose([]byte(doc))
		require.NoError(t, err, doc)

		nodes, err := inspect.Trees(first)
		require.NoError(t, err)
		require.Len(t, nodes, 1)
		yamlDoc, err := inspect.YAML(nodes[0])
		require.NoError(t, err)

		second, err := Compose(yamlDoc)
		require.NoError(t, err, string(yamlDoc))
		assert.Equal(t, first, second, string(yamlDoc))

		jsonDoc, err := inspect.JSON(nodes[0])
		require.NoError(t, err)
		third, err := Compose(jsonDoc)
		require.NoError(t, err, string(jsonDoc))
		assert.Equal(t, first, third, string(jsonDoc))
	}
}

func TestCompose_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr error
	}{
		{"empty", ``, ErrInvalidDocument},
		{"two keys", `{int: 1, long: 2}`, ErrInvalidDocument},
		{"unknown kind", `quaternion: [1, 2, 3, 4]`, ErrInvalidDocument},
		{"bad pair", `rectangle: [1]`, ErrInvalidDocument},
		{"bad hex", `bytes: xyz`, ErrInvalidDocument},
		{"int overflow", `int: 5000000000`, ErrInvalidDocument},
		{"top-level property", `property: {key: 1}`, ErrInvalidDocument},
		{"struct needs a list", `struct: {int: 1}`, ErrInvalidDocument},
		{"uneven array", `array: {kind: string, values: [ab, abc]}`, pod.ErrAlignmentViolation},
		{"empty array without size", `array: {kind: string, values: []}`, ErrInvalidDocument},
		{"unaligned struct array", `array: {kind: struct, size: 12, values: []}`, pod.ErrAlignmentViolation},
		{"array of properties", `array: {kind: property, size: 16, values: []}`, pod.ErrInvalidState},
		{"struct element too long", `array: {kind: struct, size: 16, values: [[{long: 1}, {long: 2}]]}`, pod.ErrAlignmentViolation},
		{"range too wide", `object: {type: 1, id: 1, props: [{key: 1, kind: int, flags: {range: 20}, values: [1]}]}`, ErrInvalidDocument},
		{"bad range", `object: {type: 1, id: 1, props: [{key: 1, kind: int, flags: {range: wide}, values: [1]}]}`, ErrInvalidDocument},
		{"property without values", `object: {type: 1, id: 1, props: [{key: 1, kind: int}]}`, pod.ErrInvalidState},
		{"string with nul", "string: \"a\\0b\"", pod.ErrUnterminatedString},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compose([]byte(tt.doc))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCompose_DepthLimit(t *testing.T) {
	nested := func(n int) string {
		return strings.Repeat("{struct: [", n) + "{int: 1}" + strings.Repeat("]}", n)
	}

	_, err := Compose([]byte(nested(pod.MaxDepth)))
	assert.NoError(t, err)

	_, err = Compose([]byte(nested(pod.MaxDepth + 1)))
	assert.ErrorIs(t, err, pod.ErrDepthExceeded)
}

func TestComposeAll(t *testing.T) {
	got, err := ComposeAll(strings.NewReader("int: 7\n---\nstruct: [{bool: true}]\n---\n- string: a\n- long: 9\n"))
	require.NoError(t, err)

	r := pod.NewReader(got)
	var kinds []pod.Kind
	for {
		p, err := r.Next()
		if err != nil {
			break
		}
		kinds = append(kinds, p.Kind())
	}
	assert.Equal(t, []pod.Kind{pod.KindInt, pod.KindStruct, pod.KindString, pod.KindLong}, kinds)
	assert.NoError(t, pod.Validate(got))

	// the int pod is 12 bytes, so the struct starts after 4 bytes of padding
	p, err := pod.NewReader(got).First()
	require.NoError(t, err)
	assert.Equal(t, 12, p.WireSize())
	assert.Equal(t, []byte{0, 0, 0, 0}, got[12:16])
}

func TestComposeAll_Errors(t *testing.T) {
	_, err := ComposeAll(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrInvalidDocument)

	_, err = ComposeAll(strings.NewReader("int: 1\n---\nwat: 2\n"))
	assert.ErrorIs(t, err, ErrInvalidDocument)
	assert.Contains(t, err.Error(), "document 2")
}

func TestComposeJSON(t *testing.T) {
	got, err := ComposeJSON([]byte(`{
		// sample rate
		"struct": [
			{"int": 7},
			{"string": "hi"}, // trailing comma below
		],
	}`))
	require.NoError(t, err)

	want, err := Compose([]byte(`struct: [{int: 7}, {string: hi}]`))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
