package loader

import (
	"io"
	"reflect"

	"github.com/born-ml/ggmlio/internal/serialization"
	"github.com/born-ml/ggmlio/internal/tensor"
)

// Materializer reads records of type T and turns them into arena tensors.
//
// Example:
//
//	type Block [8][4]int8
//
//	m, err := loader.NewMaterializer[Block]("i8", "D2")
//	if err != nil {
//	    return err
//	}
//	t, err := m.ReadToTensor(arena, r, []tensor.Extent{16, 2})
type Materializer[T any] struct {
	p *Pipeline
}

// NewMaterializer registers T with the given datatype and dimension tokens.
// An empty dimension means D1. Bad tokens and record types that cannot be
// encoded fail here with a *ConfigError rather than at decode time.
func NewMaterializer[T any](datatype, dimension string, opts ...Option) (*Materializer[T], error) {
	policy, err := ParsePolicy(datatype, dimension)
	if err != nil {
		return nil, err
	}
	return NewMaterializerWithPolicy[T](policy, opts...)
}

// NewMaterializerWithPolicy registers T with an already parsed policy.
func NewMaterializerWithPolicy[T any](policy Policy, opts ...Option) (*Materializer[T], error) {
	p, err := NewPipeline(reflect.TypeFor[T](), policy, opts...)
	if err != nil {
		return nil, err
	}
	return &Materializer[T]{p: p}, nil
}

// Policy returns the materialization policy.
func (m *Materializer[T]) Policy() Policy {
	return m.p.Policy()
}

// Pipeline returns the untyped pipeline behind the materializer.
func (m *Materializer[T]) Pipeline() *Pipeline {
	return m.p
}

// Read decodes one record from r. No arena is involved. Consecutive calls
// on one reader consume consecutive records.
func (m *Materializer[T]) Read(r io.Reader) (T, error) {
	var rec T
	if err := serialization.Decode(r, &rec); err != nil {
		var zero T
		return zero, err
	}
	return rec, nil
}

// Write encodes one record to w.
func (m *Materializer[T]) Write(w io.Writer, rec T) error {
	return serialization.Encode(w, rec)
}

// ToTensor materializes rec into a new tensor drawn from a. See
// Pipeline.Materialize for the shape rules.
func (m *Materializer[T]) ToTensor(rec T, a *tensor.Arena, shape []tensor.Extent) (*tensor.Tensor, error) {
	return m.p.Materialize(a, reflect.ValueOf(&rec).Elem(), shape)
}

// ReadToTensor decodes one record from r and materializes it.
func (m *Materializer[T]) ReadToTensor(a *tensor.Arena, r io.Reader, shape []tensor.Extent) (*tensor.Tensor, error) {
	return m.p.ReadToTensor(a, r, shape)
}

// ReadAll materializes every record in r. See Pipeline.ReadAll.
func (m *Materializer[T]) ReadAll(a *tensor.Arena, r io.Reader, shape []tensor.Extent) ([]*tensor.Tensor, error) {
	return m.p.ReadAll(a, r, shape)
}
