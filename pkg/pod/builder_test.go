package pod

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_StructLayout(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.OpenStruct())
	require.NoError(t, b.AddInt(1))
	require.NoError(t, b.AddBool(true))
	require.NoError(t, b.AddString("ok"))
	require.NoError(t, b.Close())

	buf, err := b.Bytes()
	require.NoError(t, err)

	// three children, each 8 header + body padded to 16
	assert.Len(t, buf, 56)
	h, err := ReadHeader(buf, binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, uint32(48), h.Size)
	assert.Equal(t, DefaultTypes.ID(KindStruct), h.Type)
	assert.Equal(t, len(buf), HeaderSize+int(h.Size))

	// padding bytes are zero and excluded from the child's own size
	child, err := ReadHeader(buf[8:], binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), child.Size)
	assert.Equal(t, []byte{0, 0, 0, 0}, buf[20:24])
}

func TestBuilder_ArraySize(t *testing.T) {
	testCases := []struct {
		name   string
		kind   Kind
		stride uint32
		values []Value
	}{
		{"ints", KindInt, 4, []Value{Int(1), Int(2), Int(3)}},
		{"longs", KindLong, 8, []Value{Long(-1), Long(1 << 40)}},
		{"rectangles", KindRectangle, 8, []Value{Rectangle{1, 2}, Rectangle{3, 4}}},
		{"fixed strings", KindString, 4, []Value{String("abc"), String("def")}},
		{"empty", KindDouble, 8, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBuilder()
			require.NoError(t, b.OpenArray(tc.kind, tc.stride))
			for _, v := range tc.values {
				require.NoError(t, b.Add(v))
			}
			require.NoError(t, b.Close())

			buf, err := b.Bytes()
			require.NoError(t, err)

			h, err := ReadHeader(buf, binary.LittleEndian)
			require.NoError(t, err)
			assert.Equal(t, uint32(HeaderSize+len(tc.values)*int(tc.stride)), h.Size)
			assert.Len(t, buf, HeaderSize+int(h.Size))
		})
	}
}

func TestBuilder_ArrayElementMismatch(t *testing.T) {
	t.Run("wrong kind", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.OpenArray(KindInt, 4))
		err := b.AddFloat(1)
		assert.ErrorIs(t, err, ErrTypeMismatch)
		assert.Equal(t, StateFailed, b.State())
	})

	t.Run("wrong stride", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.OpenArray(KindString, 4))
		assert.ErrorIs(t, b.AddString("toolong"), ErrAlignmentViolation)
	})

	t.Run("fixed kind with wrong size", func(t *testing.T) {
		b := NewBuilder()
		assert.ErrorIs(t, b.OpenArray(KindLong, 4), ErrAlignmentViolation)
	})

	t.Run("property elements", func(t *testing.T) {
		b := NewBuilder()
		assert.ErrorIs(t, b.OpenArray(KindProperty, 16), ErrInvalidState)
	})

	t.Run("unaligned container stride", func(t *testing.T) {
		b := NewBuilder()
		assert.ErrorIs(t, b.OpenArray(KindStruct, 12), ErrAlignmentViolation)
	})

	t.Run("container of the wrong kind", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.OpenArray(KindStruct, 16))
		assert.ErrorIs(t, b.OpenObject(1, 1), ErrTypeMismatch)
	})

	t.Run("container body longer than the stride", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.OpenArray(KindStruct, 16))
		require.NoError(t, b.OpenStruct())
		require.NoError(t, b.AddString("longer than eight"))
		assert.ErrorIs(t, b.Close(), ErrAlignmentViolation)
		assert.Equal(t, StateFailed, b.State())
	})
}

func TestBuilder_ArrayOfStructs(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.OpenArray(KindStruct, 16))
	for i := int32(0); i < 3; i++ {
		require.NoError(t, b.OpenStruct())
		assert.Equal(t, 2, b.Depth())
		require.NoError(t, b.AddInt(10+i))
		require.NoError(t, b.Close())
	}
	require.NoError(t, b.Close())

	buf, err := b.Bytes()
	require.NoError(t, err)
	require.NoError(t, Validate(buf))
	assert.Len(t, buf, HeaderSize+HeaderSize+3*16)

	root, err := NewReader(buf).First()
	require.NoError(t, err)
	a, err := root.EnterArray()
	require.NoError(t, err)
	assert.Equal(t, KindStruct, a.ChildKind())
	assert.Equal(t, 16, a.Stride())
	require.Equal(t, 3, a.Len())

	for i := 0; i < a.Len(); i++ {
		elem, err := a.At(i)
		require.NoError(t, err)
		r, err := elem.EnterStruct()
		require.NoError(t, err)
		field, err := r.First()
		require.NoError(t, err)
		v, err := field.AsInt()
		require.NoError(t, err)
		assert.Equal(t, int32(10+i), v)
	}
}

func TestBuilder_ContainerPropertyValue(t *testing.T) {
	t.Run("array value", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.OpenObject(1, 2))
		require.NoError(t, b.OpenProperty(7, PropFlags{}))
		assert.Equal(t, 1, b.Depth())
		require.NoError(t, b.OpenArray(KindInt, 4))
		assert.Equal(t, 2, b.Depth())
		for _, ch := range []int32{3, 4, 5} {
			require.NoError(t, b.AddInt(ch))
		}
		require.NoError(t, b.Close())
		require.NoError(t, b.Close())
		require.NoError(t, b.Close())

		buf, err := b.Bytes()
		require.NoError(t, err)
		require.NoError(t, Validate(buf))

		root, err := NewReader(buf).First()
		require.NoError(t, err)
		obj, err := root.EnterObject()
		require.NoError(t, err)
		prop, err := obj.Find(7)
		require.NoError(t, err)
		assert.Equal(t, KindArray, prop.ValueKind())
		assert.Zero(t, prop.NumAlternatives())

		a, err := prop.Value().EnterArray()
		require.NoError(t, err)
		var got []int32
		it := a.Elements()
		for it.Next() {
			v, err := it.Pod().AsInt()
			require.NoError(t, err)
			got = append(got, v)
		}
		assert.Equal(t, []int32{3, 4, 5}, got)
	})

	t.Run("struct value with an alternative", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.OpenObject(1, 2))
		require.NoError(t, b.OpenProperty(8, PropFlags{Range: RangeEnum}))
		for _, v := range []int32{1, 2} {
			require.NoError(t, b.OpenStruct())
			require.NoError(t, b.AddInt(v))
			require.NoError(t, b.Close())
		}
		require.NoError(t, b.Close())
		require.NoError(t, b.Close())

		buf, err := b.Bytes()
		require.NoError(t, err)
		require.NoError(t, Validate(buf))

		root, err := NewReader(buf).First()
		require.NoError(t, err)
		obj, err := root.EnterObject()
		require.NoError(t, err)
		prop, err := obj.Find(8)
		require.NoError(t, err)
		require.Equal(t, 1, prop.NumAlternatives())

		alt, err := prop.Alternative(0)
		require.NoError(t, err)
		r, err := alt.EnterStruct()
		require.NoError(t, err)
		field, err := r.First()
		require.NoError(t, err)
		v, err := field.AsInt()
		require.NoError(t, err)
		assert.Equal(t, int32(2), v)
	})

	t.Run("alternative of another kind", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.OpenObject(1, 2))
		require.NoError(t, b.OpenProperty(8, PropFlags{}))
		require.NoError(t, b.OpenStruct())
		require.NoError(t, b.Close())
		assert.ErrorIs(t, b.OpenArray(KindInt, 4), ErrTypeMismatch)
	})

	t.Run("leaf after a container value", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.OpenObject(1, 2))
		require.NoError(t, b.OpenProperty(8, PropFlags{}))
		require.NoError(t, b.OpenStruct())
		require.NoError(t, b.AddInt(1))
		require.NoError(t, b.Close())
		assert.ErrorIs(t, b.AddInt(2), ErrTypeMismatch)
	})
}

func TestBuilder_PropertyLayout(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.OpenObject(0x40002, 3))
	require.NoError(t, b.OpenProperty(1, PropFlags{Range: RangeMinMax, Controllable: true}))
	require.NoError(t, b.AddInt(48000))
	require.NoError(t, b.AddInt(8000))
	require.NoError(t, b.AddInt(96000))
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	buf, err := b.Bytes()
	require.NoError(t, err)
	assert.Len(t, buf, 56)

	prop, err := ReadHeader(buf[16:], binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, uint32(16+3*4), prop.Size)
	assert.Equal(t, DefaultTypes.ID(KindProperty), prop.Type)
}

func TestBuilder_PropertyAlternativeMismatch(t *testing.T) {
	t.Run("stride", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.OpenObject(1, 1))
		require.NoError(t, b.OpenProperty(1, PropFlags{Range: RangeEnum}))
		require.NoError(t, b.AddString("ab"))
		assert.ErrorIs(t, b.AddString("abc"), ErrAlignmentViolation)
	})

	t.Run("type", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.OpenObject(1, 1))
		require.NoError(t, b.OpenProperty(1, PropFlags{Range: RangeEnum}))
		require.NoError(t, b.AddInt(1))
		assert.ErrorIs(t, b.AddFloat(1), ErrTypeMismatch)
	})

	t.Run("empty property", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.OpenObject(1, 1))
		require.NoError(t, b.OpenProperty(1, PropFlags{}))
		assert.ErrorIs(t, b.Close(), ErrInvalidState)
	})
}

func TestBuilder_DepthGuard(t *testing.T) {
	b := NewBuilder()
	for i := 0; i < MaxDepth; i++ {
		require.NoError(t, b.OpenStruct(), "open at depth %d", i+1)
	}
	assert.Equal(t, MaxDepth, b.Depth())

	err := b.OpenStruct()
	assert.ErrorIs(t, err, ErrDepthExceeded)
	assert.Equal(t, StateFailed, b.State())
	assert.Zero(t, b.Len())

	buf, err := b.Bytes()
	assert.ErrorIs(t, err, ErrDepthExceeded)
	assert.Nil(t, buf)

	// the failure is sticky
	assert.ErrorIs(t, b.AddInt(1), ErrDepthExceeded)
	assert.ErrorIs(t, b.Close(), ErrDepthExceeded)
}

func TestBuilder_MaxDepthOption(t *testing.T) {
	b := NewBuilder(WithMaxDepth(2))
	require.NoError(t, b.OpenStruct())
	require.NoError(t, b.OpenStruct())
	assert.ErrorIs(t, b.OpenObject(1, 1), ErrDepthExceeded)
}

func TestBuilder_PropertiesShareObjectDepth(t *testing.T) {
	b := NewBuilder(WithMaxDepth(2))
	require.NoError(t, b.OpenObject(1, 1))
	require.NoError(t, b.OpenProperty(1, PropFlags{}))
	require.NoError(t, b.OpenStruct())
	assert.Equal(t, 2, b.Depth())
	require.NoError(t, b.AddInt(1))
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	buf, err := b.Bytes()
	require.NoError(t, err)

	// the reader applies the same rule, so the same limit accepts it
	assert.NoError(t, Validate(buf, WithMaxDepth(2)))
	assert.ErrorIs(t, Validate(buf, WithMaxDepth(1)), ErrDepthExceeded)

	b = NewBuilder(WithMaxDepth(2))
	require.NoError(t, b.OpenObject(1, 1))
	require.NoError(t, b.OpenProperty(1, PropFlags{}))
	require.NoError(t, b.OpenStruct())
	assert.ErrorIs(t, b.OpenStruct(), ErrDepthExceeded)
}

func TestBuilder_StateMachine(t *testing.T) {
	t.Run("append before open", func(t *testing.T) {
		b := NewBuilder()
		assert.Equal(t, StateEmpty, b.State())
		assert.ErrorIs(t, b.AddInt(1), ErrUnbalanced)
	})

	t.Run("close before open", func(t *testing.T) {
		b := NewBuilder()
		assert.ErrorIs(t, b.Close(), ErrUnbalanced)
	})

	t.Run("bytes while open", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.OpenStruct())
		assert.Equal(t, StateOpen, b.State())
		_, err := b.Bytes()
		assert.ErrorIs(t, err, ErrUnbalanced)
	})

	t.Run("append after close", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.OpenStruct())
		require.NoError(t, b.Close())
		assert.Equal(t, StateClosed, b.State())
		assert.ErrorIs(t, b.AddInt(1), ErrUnbalanced)
	})

	t.Run("reset after failure", func(t *testing.T) {
		b := NewBuilder()
		require.Error(t, b.Close())
		b.Reset()
		assert.Equal(t, StateEmpty, b.State())
		assert.NoError(t, b.Err())
		require.NoError(t, b.OpenStruct())
		require.NoError(t, b.Close())
		_, err := b.Bytes()
		assert.NoError(t, err)
	})
}

func TestBuilder_PlacementRules(t *testing.T) {
	testCases := []struct {
		name string
		run  func(b *Builder) error
	}{
		{"property outside object", func(b *Builder) error {
			return b.OpenProperty(1, PropFlags{})
		}},
		{"property inside struct", func(b *Builder) error {
			_ = b.OpenStruct()
			return b.OpenProperty(1, PropFlags{})
		}},
		{"leaf inside object", func(b *Builder) error {
			_ = b.OpenObject(1, 1)
			return b.AddInt(1)
		}},
		{"leaf inside sequence", func(b *Builder) error {
			_ = b.OpenSequence(0)
			return b.AddInt(1)
		}},
		{"control inside struct", func(b *Builder) error {
			_ = b.OpenStruct()
			return b.AddControl(0, 1, Int(1))
		}},
		{"property inside array", func(b *Builder) error {
			_ = b.OpenArray(KindInt, 4)
			return b.OpenProperty(1, PropFlags{})
		}},
		{"property inside property", func(b *Builder) error {
			_ = b.OpenObject(1, 1)
			_ = b.OpenProperty(1, PropFlags{})
			return b.OpenProperty(2, PropFlags{})
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBuilder()
			err := tc.run(b)
			assert.ErrorIs(t, err, ErrInvalidState)
			assert.Equal(t, StateFailed, b.State())
		})
	}
}

func TestBuilder_ControlWithContainerValue(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.OpenSequence(1))
	require.NoError(t, b.OpenControl(10, 2))
	require.NoError(t, b.OpenObject(5, 6))
	require.NoError(t, b.OpenProperty(7, PropFlags{}))
	require.NoError(t, b.AddFloat(0.25))
	require.NoError(t, b.Close())
	require.NoError(t, b.Close()) // object, which also ends the control
	require.NoError(t, b.AddControl(20, 3, Bool(true)))
	require.NoError(t, b.Close())

	buf, err := b.Bytes()
	require.NoError(t, err)

	p, err := NewReader(buf).First()
	require.NoError(t, err)
	seq, err := p.EnterSequence()
	require.NoError(t, err)

	it := seq.Controls()
	require.True(t, it.Next())
	c := it.Control()
	assert.Equal(t, uint32(10), c.Offset)
	assert.True(t, c.Value.IsObjectType(5))
	assert.True(t, c.Value.IsObjectID(6))

	require.True(t, it.Next())
	assert.Equal(t, uint32(20), it.Control().Offset)
	assert.False(t, it.Next())
	assert.NoError(t, it.Err())
}

func TestBuilder_CloseWithPendingControl(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.OpenSequence(0))
	require.NoError(t, b.OpenControl(0, 1))
	assert.ErrorIs(t, b.Close(), ErrUnbalanced)
}
