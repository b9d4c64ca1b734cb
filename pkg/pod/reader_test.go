package pod

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildStruct(t *testing.T, fill func(b *Builder)) []byte {
	t.Helper()
	b := NewBuilder()
	require.NoError(t, b.OpenStruct())
	fill(b)
	require.NoError(t, b.Close())
	buf, err := b.Bytes()
	require.NoError(t, err)
	return buf
}

func TestReader_StructOrdering(t *testing.T) {
	buf := buildStruct(t, func(b *Builder) {
		require.NoError(t, b.AddInt(1))
		require.NoError(t, b.AddBool(true))
		require.NoError(t, b.AddString("ok"))
	})

	root, err := NewReader(buf).First()
	require.NoError(t, err)
	assert.Equal(t, KindStruct, root.Kind())

	r, err := root.EnterStruct()
	require.NoError(t, err)

	p, err := r.Next()
	require.NoError(t, err)
	i, err := p.AsInt()
	require.NoError(t, err)
	assert.Equal(t, int32(1), i)

	p, err = r.Next()
	require.NoError(t, err)
	bv, err := p.AsBool()
	require.NoError(t, err)
	assert.True(t, bv)

	p, err = r.Next()
	require.NoError(t, err)
	s, err := p.AsString()
	require.NoError(t, err)
	assert.Equal(t, "ok", s)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.Zero(t, r.Remaining())
}

func TestReader_TypeMismatchKeepsCursor(t *testing.T) {
	buf := buildStruct(t, func(b *Builder) {
		require.NoError(t, b.AddInt(7))
		require.NoError(t, b.AddDouble(2.5))
	})

	root, err := NewReader(buf).First()
	require.NoError(t, err)
	r, err := root.EnterStruct()
	require.NoError(t, err)

	p, err := r.Next()
	require.NoError(t, err)
	_, err = p.AsString()
	assert.ErrorIs(t, err, ErrTypeMismatch)
	_, err = p.EnterStruct()
	assert.ErrorIs(t, err, ErrTypeMismatch)

	// the failed accessors did not disturb the walk
	p, err = r.Next()
	require.NoError(t, err)
	d, err := p.AsDouble()
	require.NoError(t, err)
	assert.Equal(t, 2.5, d)
}

func TestReader_SkipsUnknownTypes(t *testing.T) {
	buf := buildStruct(t, func(b *Builder) {
		require.NoError(t, b.AddInt(1))
		require.NoError(t, b.AddInt(2))
	})
	// retag the first child with an id outside the type map
	binary.LittleEndian.PutUint32(buf[12:16], 9999)

	root, err := NewReader(buf).First()
	require.NoError(t, err)
	r, err := root.EnterStruct()
	require.NoError(t, err)

	p, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, KindUnknown, p.Kind())
	assert.Equal(t, uint32(9999), p.Type())
	_, err = p.Value()
	assert.ErrorIs(t, err, ErrUnknownType)

	p, err = r.Next()
	require.NoError(t, err)
	v, err := p.AsInt()
	require.NoError(t, err)
	assert.Equal(t, int32(2), v)

	assert.NoError(t, Validate(buf))
}

func TestReader_TruncationSafety(t *testing.T) {
	full, err := Encode(Long(123456789))
	require.NoError(t, err)

	for n := 1; n < len(full); n++ {
		r := NewReader(full[:n])
		_, err := r.Next()
		assert.ErrorIs(t, err, ErrTruncatedBuffer, "length %d", n)
		assert.Equal(t, 0, r.Offset(), "cursor moved at length %d", n)
	}

	t.Run("child overruns struct", func(t *testing.T) {
		buf := buildStruct(t, func(b *Builder) {
			require.NoError(t, b.AddInt(1))
		})
		// child declares more bytes than its parent holds
		binary.LittleEndian.PutUint32(buf[8:12], 64)

		root, err := NewReader(buf).First()
		require.NoError(t, err)
		r, err := root.EnterStruct()
		require.NoError(t, err)
		_, err = r.Next()
		assert.ErrorIs(t, err, ErrTruncatedBuffer)
	})

	t.Run("huge declared size", func(t *testing.T) {
		buf := make([]byte, 16)
		binary.LittleEndian.PutUint32(buf[0:4], 0xFFFFFFFF)
		binary.LittleEndian.PutUint32(buf[4:8], DefaultTypes.ID(KindBytes))
		_, err := NewReader(buf).Next()
		assert.ErrorIs(t, err, ErrTruncatedBuffer)
	})
}

func TestReader_ArrayFidelity(t *testing.T) {
	values := []int32{5, -3, 42, 0, 1 << 30}

	b := NewBuilder()
	require.NoError(t, b.OpenArray(KindInt, 4))
	for _, v := range values {
		require.NoError(t, b.AddInt(v))
	}
	require.NoError(t, b.Close())
	buf, err := b.Bytes()
	require.NoError(t, err)

	root, err := NewReader(buf).First()
	require.NoError(t, err)
	assert.Equal(t, uint32(HeaderSize+len(values)*4), root.Size())

	arr, err := root.EnterArray()
	require.NoError(t, err)
	assert.Equal(t, len(values), arr.Len())
	assert.Equal(t, KindInt, arr.ChildKind())
	assert.Equal(t, 4, arr.Stride())

	var got []int32
	it := arr.Elements()
	for it.Next() {
		v, err := it.Pod().AsInt()
		require.NoError(t, err)
		got = append(got, v)
	}
	assert.Equal(t, values, got)

	// restartable
	it.Reset()
	require.True(t, it.Next())
	first, err := it.Pod().AsInt()
	require.NoError(t, err)
	assert.Equal(t, values[0], first)

	last, err := arr.At(len(values) - 1)
	require.NoError(t, err)
	lv, err := last.AsInt()
	require.NoError(t, err)
	assert.Equal(t, values[len(values)-1], lv)

	_, err = arr.At(len(values))
	assert.Error(t, err)
}

func TestReader_ArrayUnevenDivision(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.OpenArray(KindInt, 4))
	require.NoError(t, b.AddInt(1))
	require.NoError(t, b.AddInt(2))
	require.NoError(t, b.Close())
	buf, err := b.Bytes()
	require.NoError(t, err)

	// claim a 3-byte stride: 8 value bytes do not divide evenly
	binary.LittleEndian.PutUint32(buf[8:12], 3)

	root, err := NewReader(buf).First()
	require.NoError(t, err)
	_, err = root.EnterArray()
	assert.ErrorIs(t, err, ErrAlignmentViolation)
}

func TestReader_ObjectProperties(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.OpenObject(0x40002, 3))
	require.NoError(t, b.OpenProperty(1, PropFlags{Range: RangeMinMax, Controllable: true}))
	require.NoError(t, b.AddInt(48000))
	require.NoError(t, b.AddInt(8000))
	require.NoError(t, b.AddInt(96000))
	require.NoError(t, b.Close())
	require.NoError(t, b.OpenProperty(2, PropFlags{ReadOnly: true}))
	require.NoError(t, b.AddString("S16LE"))
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	buf, err := b.Bytes()
	require.NoError(t, err)

	root, err := NewReader(buf).First()
	require.NoError(t, err)
	assert.True(t, root.IsObjectType(0x40002))
	assert.True(t, root.IsObjectID(3))
	assert.False(t, root.IsObjectID(4))

	obj, err := root.EnterObject()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x40002), obj.Type())
	assert.Equal(t, uint32(3), obj.ID())

	it := obj.Properties()
	require.True(t, it.Next())
	rate := it.Property()
	assert.Equal(t, uint32(1), rate.Key)
	assert.Equal(t, RangeMinMax, rate.Flags.Range)
	assert.True(t, rate.Flags.Controllable)
	assert.False(t, rate.Flags.ReadOnly)
	assert.Equal(t, KindInt, rate.ValueKind())
	v, err := rate.Value().AsInt()
	require.NoError(t, err)
	assert.Equal(t, int32(48000), v)
	require.Equal(t, 2, rate.NumAlternatives())

	var alts []int32
	alt := rate.Alternatives()
	for alt.Next() {
		a, err := alt.Pod().AsInt()
		require.NoError(t, err)
		alts = append(alts, a)
	}
	assert.Equal(t, []int32{8000, 96000}, alts)

	require.True(t, it.Next())
	format := it.Property()
	assert.Equal(t, uint32(2), format.Key)
	assert.Zero(t, format.NumAlternatives())
	s, err := format.Value().AsString()
	require.NoError(t, err)
	assert.Equal(t, "S16LE", s)

	assert.False(t, it.Next())
	assert.NoError(t, it.Err())

	found, err := obj.Find(2)
	require.NoError(t, err)
	assert.True(t, found.Flags.ReadOnly)
	_, err = obj.Find(99)
	assert.ErrorIs(t, err, ErrNotFound)

	it.Reset()
	assert.True(t, it.Next())
}

func TestReader_SequenceOrdering(t *testing.T) {
	const typeA, typeB = 1, 2
	want := []struct {
		offset uint32
		ctype  uint32
		value  int32
	}{
		{0, typeA, 100},
		{10, typeB, 200},
		{25, typeA, 300},
	}

	b := NewBuilder()
	require.NoError(t, b.OpenSequence(7))
	for _, c := range want {
		require.NoError(t, b.AddControl(c.offset, c.ctype, Int(c.value)))
	}
	require.NoError(t, b.Close())
	buf, err := b.Bytes()
	require.NoError(t, err)

	// each control: offset/type 8 + value header 8 + int 4, padded to 24
	assert.Len(t, buf, HeaderSize+8+3*24)

	root, err := NewReader(buf).First()
	require.NoError(t, err)
	seq, err := root.EnterSequence()
	require.NoError(t, err)
	assert.Equal(t, uint32(7), seq.Unit())

	it := seq.Controls()
	for i, w := range want {
		require.True(t, it.Next(), "control %d", i)
		c := it.Control()
		assert.Equal(t, w.offset, c.Offset)
		assert.Equal(t, w.ctype, c.Type)
		v, err := c.Value.AsInt()
		require.NoError(t, err)
		assert.Equal(t, w.value, v)
	}
	assert.False(t, it.Next())
	assert.NoError(t, it.Err())

	mono, err := seq.Monotonic()
	require.NoError(t, err)
	assert.True(t, mono)
}

func TestReader_SequenceNonMonotonic(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.OpenSequence(0))
	require.NoError(t, b.AddControl(30, 1, Bool(true)))
	require.NoError(t, b.AddControl(10, 1, Bool(false)))
	require.NoError(t, b.Close())
	buf, err := b.Bytes()
	require.NoError(t, err)

	root, err := NewReader(buf).First()
	require.NoError(t, err)
	seq, err := root.EnterSequence()
	require.NoError(t, err)

	mono, err := seq.Monotonic()
	require.NoError(t, err)
	assert.False(t, mono)
	assert.NoError(t, Validate(buf))
}

func TestReader_DepthGuard(t *testing.T) {
	b := NewBuilder()
	for i := 0; i < MaxDepth; i++ {
		require.NoError(t, b.OpenStruct())
	}
	for i := 0; i < MaxDepth; i++ {
		require.NoError(t, b.Close())
	}
	buf, err := b.Bytes()
	require.NoError(t, err)
	require.NoError(t, Validate(buf))

	// a reader with a lower limit refuses to descend that far
	err = Validate(buf, WithMaxDepth(4))
	assert.ErrorIs(t, err, ErrDepthExceeded)
}

// nestedStructs hand-encodes n structs, each holding only the next one.
func nestedStructs(t *testing.T, n int) []byte {
	t.Helper()
	buf := make([]byte, n*HeaderSize)
	for i := 0; i < n; i++ {
		h := Header{Size: uint32((n - 1 - i) * HeaderSize), Type: DefaultTypes.ID(KindStruct)}
		require.NoError(t, PutHeader(buf[i*HeaderSize:], binary.LittleEndian, h))
	}
	return buf
}

func TestReader_DepthGuardOnCraftedInput(t *testing.T) {
	assert.NoError(t, Validate(nestedStructs(t, MaxDepth)))

	buf := nestedStructs(t, MaxDepth+1)
	assert.ErrorIs(t, Validate(buf), ErrDepthExceeded)

	// walking by hand stops at the same level
	p, err := NewReader(buf).First()
	require.NoError(t, err)
	for i := 1; i < MaxDepth+1; i++ {
		r, err := p.EnterStruct()
		require.NoError(t, err, "enter level %d", i)
		p, err = r.First()
		require.NoError(t, err)
	}
	_, err = p.EnterStruct()
	assert.ErrorIs(t, err, ErrDepthExceeded)
}

func TestReader_ConcurrentWalks(t *testing.T) {
	buf := buildStruct(t, func(b *Builder) {
		for i := int32(0); i < 64; i++ {
			require.NoError(t, b.AddInt(i))
		}
	})

	errs := make(chan error, 8)
	for w := 0; w < 8; w++ {
		go func() {
			errs <- Validate(buf)
		}()
	}
	for w := 0; w < 8; w++ {
		assert.NoError(t, <-errs)
	}
}
