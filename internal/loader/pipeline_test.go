package loader

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/ggmlio/internal/tensor"
)

func TestPipelineRuntimeType(t *testing.T) {
	// A 6-byte block whose size is only known at runtime.
	typ := reflect.ArrayOf(6, reflect.TypeFor[uint8]())
	p, err := NewPipeline(typ, Policy{tensor.I16, tensor.D1})
	require.NoError(t, err)
	assert.Equal(t, typ, p.Type())
	assert.Equal(t, "[6]uint8", p.Name())

	var buf bytes.Buffer
	for i := 0; i < 3; i++ {
		rec := reflect.New(typ).Elem()
		rec.Index(0).SetUint(uint64(i))
		require.NoError(t, p.Encode(&buf, rec))
	}
	require.Equal(t, 18, buf.Len())

	a := newTestArena(t)
	tensors, err := p.ReadAll(a, &buf, []tensor.Extent{tensor.Auto})
	require.NoError(t, err)
	require.Len(t, tensors, 3)

	for i, x := range tensors {
		assert.Equal(t, 3, x.ElementCount())
		assert.Equal(t, 6, x.ByteSize())
		assert.Equal(t, byte(i), x.RawBytes()[0])
	}
}

func TestPipelineDecode(t *testing.T) {
	p, err := NewPipeline(reflect.TypeFor[pair](), Policy{tensor.F32, tensor.D1})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, p.Encode(&buf, reflect.ValueOf(pair{5, 6})))

	v, err := p.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, pair{5, 6}, v.Interface())
}

func TestPipelineRejectsForeignValues(t *testing.T) {
	p, err := NewPipeline(reflect.TypeFor[quad](), Policy{tensor.I8, tensor.D1})
	require.NoError(t, err)

	a := newTestArena(t)
	_, err = p.Materialize(a, reflect.ValueOf(block{}), []tensor.Extent{tensor.Auto})
	assert.Error(t, err)
	assert.Error(t, p.Encode(&bytes.Buffer{}, reflect.Value{}))
	assert.Zero(t, a.Len())
}

func TestPipelineScalarPolicy(t *testing.T) {
	p, err := NewPipeline(reflect.TypeFor[float32](), Policy{tensor.F32, tensor.Scalar})
	require.NoError(t, err)

	a := newTestArena(t)
	x, err := p.Materialize(a, reflect.ValueOf(float32(2.5)), nil)
	require.NoError(t, err)
	assert.Equal(t, tensor.Scalar, x.Dimension())

	v, err := x.GetF32At(0)
	require.NoError(t, err)
	assert.Equal(t, float32(2.5), v)

	_, err = p.Materialize(a, reflect.ValueOf(float32(1)), []tensor.Extent{1})
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestPipelineInvalidDimension(t *testing.T) {
	_, err := NewPipeline(reflect.TypeFor[quad](), Policy{tensor.I8, tensor.Dimension(5)})

	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "dimension", ce.Field)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("f16", "D3")
	require.NoError(t, err)
	assert.Equal(t, Policy{tensor.F16, tensor.D3}, p)
	assert.Equal(t, 3, p.Rank())
	assert.Equal(t, "f16/D3", p.String())
	assert.Equal(t, []tensor.Extent{tensor.Auto, tensor.Auto, tensor.Auto}, p.AutoShape())

	_, err = ParsePolicy("", "D1")
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "datatype", ce.Field)
	assert.True(t, errors.Is(err, tensor.ErrInvalidDataType))
}
