package tensor

import (
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/ggmlio/internal/ggml"
)

const testArenaSize = 4096

// quietLogger keeps fatal-path tests from writing to stderr.
func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// managedMemory is a caller-owned arena buffer.
type managedMemory [testArenaSize]byte

func TestNewArenaOwned(t *testing.T) {
	a := NewArena(testArenaSize)
	defer a.Close()

	assert.True(t, a.Live())
	assert.False(t, a.External())
	assert.Equal(t, testArenaSize, a.Capacity())
	assert.Zero(t, a.UsedMem())
	assert.NotZero(t, a.Generation())
	assert.NotEqual(t, uuid.Nil, a.ID())
}

func TestNewArenaOverBuffer(t *testing.T) {
	var mem managedMemory
	a := NewArenaOverBuffer(mem[:])

	assert.True(t, a.External())
	assert.LessOrEqual(t, a.Capacity(), testArenaSize)

	x := a.NewTensor1D(I8, 5)
	require.NoError(t, x.SetI32At(0, 9))
	assert.Contains(t, mem[:], byte(9), "tensor storage lives in the caller buffer")

	require.NoError(t, a.Close())
}

func TestNewArenaOverBufferRejectsSharedBuffer(t *testing.T) {
	var mem managedMemory
	a := NewArenaOverBuffer(mem[:])

	assert.Panics(t, func() {
		NewArenaOverBuffer(mem[100:200], WithArenaLogger(quietLogger()))
	})

	require.NoError(t, a.Close())

	// Once the first arena is closed the buffer may back a new one.
	b := NewArenaOverBuffer(mem[:])
	require.NoError(t, b.Close())
}

func TestSharedBufferCheckIgnoresArenaID(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	var first, second managedMemory

	a := NewArenaOverBuffer(first[:], WithArenaID(id))
	defer a.Close()
	b := NewArenaOverBuffer(second[:], WithArenaID(id))
	require.NoError(t, b.Close())

	require.True(t, a.Live())
	assert.Panics(t, func() {
		NewArenaOverBuffer(first[:], WithArenaLogger(quietLogger()))
	}, "closing an arena with the same ID must not release another arena's buffer")
}

func TestNewArenaFatal(t *testing.T) {
	log := quietLogger()
	assert.Panics(t, func() { NewArena(0, WithArenaLogger(log)) })
	assert.Panics(t, func() { NewArenaOverBuffer(nil, WithArenaLogger(log)) })
}

func TestArenaDistinctGenerations(t *testing.T) {
	a := NewArena(testArenaSize)
	b := NewArena(testArenaSize)
	defer a.Close()
	defer b.Close()

	assert.NotEqual(t, a.Generation(), b.Generation())
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestArenaWithID(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	a := NewArena(testArenaSize, WithArenaID(id))
	defer a.Close()

	assert.Equal(t, id, a.ID())
	assert.Contains(t, a.String(), id.String())
}

func TestArenaAllocation(t *testing.T) {
	a := NewArena(testArenaSize)
	defer a.Close()

	t1 := a.NewTensor1D(F32, 5)
	t2 := a.NewTensor2D(I16, 3, 2)
	t3 := a.NewTensor3D(I8, 2, 2, 2)

	assert.Equal(t, D1, t1.Dimension())
	assert.Equal(t, D2, t2.Dimension())
	assert.Equal(t, D3, t3.Dimension())
	assert.Equal(t, 20, t1.ByteSize())
	assert.Equal(t, 12, t2.ByteSize())
	assert.Equal(t, 8, t3.ByteSize())
	assert.Equal(t, [ggml.MaxDims]int{2, 2, 2, 1}, t3.Extents())
	assert.Equal(t, [ggml.MaxDims]uint64{2, 6, 12, 12}, t2.Strides())
	assert.Equal(t, 3, a.Len())

	used := a.UsedMem()
	assert.Greater(t, used, 20+12+8, "metadata is accounted")

	// Usage never shrinks before Close.
	a.NewTensor1D(I8, 1)
	assert.Greater(t, a.UsedMem(), used)
}

func TestArenaScalar(t *testing.T) {
	a := NewArena(testArenaSize)
	defer a.Close()

	s := a.NewScalarF32(2.5)
	assert.Equal(t, Scalar, s.Dimension())
	assert.Equal(t, 1, s.ElementCount())
	v, err := s.GetF32At(0)
	require.NoError(t, err)
	assert.Equal(t, float32(2.5), v)
}

func TestArenaAllocate(t *testing.T) {
	a := NewArena(testArenaSize)
	defer a.Close()

	x := a.Allocate(I32, Rank2(4, 2))
	assert.Equal(t, D2, x.Dimension())
	assert.Equal(t, 32, x.ByteSize())

	s := a.Allocate(I16, ScalarShape())
	assert.Equal(t, Scalar, s.Dimension())
	assert.Equal(t, 2, s.ByteSize())

	a.log = quietLogger()
	assert.Panics(t, func() { a.Allocate(I8, Rank1(Auto)) })
}

func TestArenaAllocationFatal(t *testing.T) {
	a := NewArena(512, WithArenaLogger(quietLogger()))
	defer a.Close()

	assertExhausted(t, func() { a.NewTensor1D(F32, 1024) })
	assert.Panics(t, func() { a.NewTensor1D(Count, 4) }, "count holds no data")
	assert.Panics(t, func() { a.NewTensor(I8) }, "no axes")
	assert.Panics(t, func() { a.NewTensor(I8, 1, 1, 1, 1) }, "too many axes")
}

// assertExhausted checks that f panics with an error wrapping
// ErrArenaExhausted.
func assertExhausted(t *testing.T, f func()) {
	t.Helper()
	defer func() {
		v := recover()
		require.NotNil(t, v, "expected a panic")
		err, ok := v.(error)
		require.True(t, ok, "panic value %v is not an error", v)
		assert.True(t, errors.Is(err, ErrArenaExhausted), "%v", err)
	}()
	f()
}

func TestArenaMisuseIsNotExhaustion(t *testing.T) {
	a := NewArena(testArenaSize, WithArenaLogger(quietLogger()))
	defer a.Close()

	for _, f := range []func(){
		func() { a.NewTensor1D(I8, 0) },
		func() { a.NewTensor1D(Count, 4) },
	} {
		func() {
			defer func() {
				err, ok := recover().(error)
				require.True(t, ok)
				assert.False(t, errors.Is(err, ErrArenaExhausted), "%v", err)
			}()
			f()
		}()
	}
}

func TestArenaClose(t *testing.T) {
	a := NewArena(testArenaSize, WithArenaLogger(quietLogger()))
	x := a.NewTensor1D(I8, 4)
	shared := x.Share()

	require.NoError(t, a.Close())
	require.NoError(t, a.Close(), "second close is a no-op")

	assert.False(t, a.Live())
	assert.Zero(t, a.Generation())
	assert.Zero(t, a.Capacity())
	assert.Zero(t, a.Len())
	assert.False(t, x.Live())
	assert.False(t, shared.Live())

	assert.Panics(t, func() { x.ByteSize() })
	assert.Panics(t, func() { shared.RawBytes() })
	assert.Panics(t, func() { _ = x.WriteBytes([]byte{1}) })
	assert.Panics(t, func() { _, _ = ReadData[int8](x) })
	assert.Panics(t, func() { x.Share() })
	assert.Panics(t, func() { a.NewTensor1D(I8, 1) })

	assert.Contains(t, a.String(), "live=false")
}
