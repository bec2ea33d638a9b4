package serialization

import (
	"bytes"
	"encoding/binary"
	"io"
	"reflect"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type header struct {
	Magic   [4]byte
	Version uint32
	Scale   float32
	Name    string
	Shape   []int
	Packed  bool
	scratch int    // unexported, never encoded
	Cached  []byte `ggml:"-"`
}

type layer struct {
	Weights [2][3]int8
	Bias    [3]int16
	Norm    float64
}

type model struct {
	Header header
	Layers []layer
}

func TestEncodeLayout(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []byte
	}{
		{"int8", int8(-1), []byte{0xff}},
		{"uint16", uint16(0x0102), []byte{0x02, 0x01}},
		{"int32", int32(-2), []byte{0xfe, 0xff, 0xff, 0xff}},
		{"int is 64-bit", 1, []byte{1, 0, 0, 0, 0, 0, 0, 0}},
		{"bool", true, []byte{1}},
		{"float32", float32(1), []byte{0x00, 0x00, 0x80, 0x3f}},
		{"array has no prefix", [3]uint8{1, 2, 3}, []byte{1, 2, 3}},
		{"nested array", [2][2]int8{{1, 2}, {3, 4}}, []byte{1, 2, 3, 4}},
		{"slice has prefix", []int16{5}, []byte{1, 0, 0, 0, 0, 0, 0, 0, 5, 0}},
		{"string", "hi", []byte{2, 0, 0, 0, 0, 0, 0, 0, 'h', 'i'}},
		{"struct in order", struct {
			A uint8
			B uint16
		}{1, 2}, []byte{1, 2, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Marshal(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			size, err := Size(tt.in)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), size)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	in := model{
		Header: header{
			Magic:   [4]byte{'g', 'g', 'm', 'l'},
			Version: 3,
			Scale:   0.125,
			Name:    "tiny",
			Shape:   []int{2, 3},
			Packed:  true,
			scratch: 7,
			Cached:  []byte{9},
		},
		Layers: []layer{
			{Weights: [2][3]int8{{1, -2, 3}, {-4, 5, -6}}, Bias: [3]int16{-300, 0, 300}, Norm: 1e-5},
			{Norm: -2},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, in))

	size, err := Size(in)
	require.NoError(t, err)
	assert.Equal(t, size, buf.Len())

	var out model
	require.NoError(t, Decode(&buf, &out))
	assert.Zero(t, buf.Len(), "decode consumes the whole record")

	want := in
	want.Header.scratch = 0
	want.Header.Cached = nil
	assert.Equal(t, want, out)
}

func TestDecodeConsumesExactlyOneRecord(t *testing.T) {
	var buf bytes.Buffer
	for i := int8(0); i < 3; i++ {
		require.NoError(t, Encode(&buf, [2]int8{i, -i}))
	}
	buf.WriteByte(0x7f)

	for i := int8(0); i < 3; i++ {
		var rec [2]int8
		require.NoError(t, Decode(&buf, &rec))
		assert.Equal(t, [2]int8{i, -i}, rec)
	}
	assert.Equal(t, 1, buf.Len(), "trailing byte is left unread")
}

func TestDecodeEndOfStream(t *testing.T) {
	var rec [4]byte

	err := Decode(bytes.NewReader(nil), &rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.EOF))

	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, reflect.TypeOf(rec), de.Type)
	assert.Zero(t, de.Offset)
}

func TestDecodeTruncated(t *testing.T) {
	tests := []struct {
		name   string
		input  []byte
		target any
		offset int64
	}{
		{"inside array", []byte{1, 2}, new([4]byte), 2},
		{"between fields", []byte{1}, new(struct{ A, B uint8 }), 1},
		{"inside length prefix", []byte{1, 0, 0}, new([]int8), 3},
		{"inside slice body", []byte{2, 0, 0, 0, 0, 0, 0, 0, 1}, new([]int8), 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Decode(bytes.NewReader(tt.input), tt.target)
			require.Error(t, err)
			assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
			assert.False(t, errors.Is(err, io.EOF))

			var de *DecodeError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.offset, de.Offset)
		})
	}
}

func TestDecodeRejectsCorruptValues(t *testing.T) {
	var b bool
	err := Decode(bytes.NewReader([]byte{2}), &b)
	assert.True(t, errors.Is(err, ErrInvalidBool))

	var s []int8
	huge := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x7f}
	err = Decode(bytes.NewReader(huge), &s)
	assert.True(t, errors.Is(err, ErrSequenceTooLong))
}

func TestDecodeLongPrefixWithoutData(t *testing.T) {
	prefix := binary.LittleEndian.AppendUint64(nil, MaxSequenceLen)

	tests := []struct {
		name string
		dst  any
	}{
		{"wide elements", &struct{ S [][1024]float64 }{}},
		{"scalars", &struct{ S []float64 }{}},
		{"strings", &struct{ S []string }{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bytes.NewReader(append(append([]byte{}, prefix...), 1, 2, 3))
			err := Decode(r, tt.dst)
			require.Error(t, err)
			assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))

			var de *DecodeError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, int64(11), de.Offset)
		})
	}
}

func TestDecodeSliceAcrossSteps(t *testing.T) {
	in := make([]int32, 3*decodeStep/4+5)
	for i := range in {
		in[i] = int32(i)
	}
	buf, err := Marshal(in)
	require.NoError(t, err)

	var out []int32
	require.NoError(t, Decode(bytes.NewReader(buf), &out))
	assert.Equal(t, in, out)
}

func TestDecodeRejectsEmptyElementFlood(t *testing.T) {
	type opaque struct{ pad [4096]byte }

	var s []opaque
	prefix := binary.LittleEndian.AppendUint64(nil, MaxSequenceLen)
	err := Decode(bytes.NewReader(prefix), &s)
	assert.True(t, errors.Is(err, ErrSequenceTooLong))
}

func TestDecodeRequiresPointer(t *testing.T) {
	var rec [4]byte
	assert.True(t, errors.Is(Decode(bytes.NewReader(nil), rec), ErrNotPointer))
	assert.True(t, errors.Is(Decode(bytes.NewReader(nil), (*[4]byte)(nil)), ErrNotPointer))
}

func TestCheck(t *testing.T) {
	ok := []any{int8(0), [8][4]int8{}, model{}, "", []string{}, struct{ A uint }{}}
	for _, v := range ok {
		assert.NoError(t, Check(reflect.TypeOf(v)), "%T", v)
	}

	type withMap struct {
		Name  string
		Index map[string]int
	}
	bad := []any{map[string]int{}, new(int), complex64(0), withMap{}, []any{}}
	for _, v := range bad {
		assert.True(t, errors.Is(Check(reflect.TypeOf(v)), ErrUnsupportedType), "%T", v)
	}

	err := Check(reflect.TypeOf(withMap{}))
	assert.Contains(t, err.Error(), "Index")

	_, err = Marshal(withMap{})
	assert.True(t, errors.Is(err, ErrUnsupportedType))
}

type tree struct {
	Value    int32
	Children []tree
}

func TestRecursiveType(t *testing.T) {
	require.NoError(t, Check(reflect.TypeOf(tree{})))

	in := tree{Value: 1, Children: []tree{{Value: 2}, {Value: 3, Children: []tree{{Value: 4}}}}}
	data, err := Marshal(in)
	require.NoError(t, err)

	var out tree
	require.NoError(t, Decode(bytes.NewReader(data), &out))
	assert.Equal(t, int32(4), out.Children[1].Children[0].Value)
}

func TestFixedSize(t *testing.T) {
	n, ok := FixedSize(reflect.TypeOf([8][4]int8{}))
	assert.True(t, ok)
	assert.Equal(t, 32, n)

	n, ok = FixedSize(reflect.TypeOf(layer{}))
	assert.True(t, ok)
	assert.Equal(t, 6+6+8, n)

	_, ok = FixedSize(reflect.TypeOf(header{}))
	assert.False(t, ok, "strings and slices vary in size")

	_, ok = FixedSize(reflect.TypeOf(map[int]int{}))
	assert.False(t, ok)
}
