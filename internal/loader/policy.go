package loader

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/born-ml/ggmlio/internal/tensor"
)

// Policy is the materialization policy attached to a record type: the
// datatype its bytes are stored as and the dimension of the tensor.
type Policy struct {
	DataType  tensor.DataType
	Dimension tensor.Dimension
}

// ParsePolicy parses datatype and dimension tokens. The datatype token is
// required; an empty dimension means D1. Bad tokens yield a *ConfigError.
func ParsePolicy(datatype, dimension string) (Policy, error) {
	dt, err := tensor.ParseDataType(datatype)
	if err != nil {
		return Policy{}, &ConfigError{Field: "datatype", Value: datatype, Err: err}
	}
	dim, err := tensor.ParseDimension(dimension)
	if err != nil {
		return Policy{}, &ConfigError{Field: "dimension", Value: dimension, Err: err}
	}
	return Policy{DataType: dt, Dimension: dim}, nil
}

// Rank returns the number of extents a shape for this policy must carry.
func (p Policy) Rank() int {
	return p.Dimension.Rank()
}

// Shape pairs the policy's dimension with caller extents. A length that
// differs from Rank yields ErrShapeMismatch.
func (p Policy) Shape(extents []tensor.Extent) (tensor.Shape, error) {
	if len(extents) != p.Rank() {
		return tensor.Shape{}, errors.Wrapf(ErrShapeMismatch, "%s takes %d extents, got %d", p.Dimension, p.Rank(), len(extents))
	}
	return tensor.NewShape(p.Dimension, extents)
}

// AutoShape returns a shape with every extent left to inference.
func (p Policy) AutoShape() []tensor.Extent {
	out := make([]tensor.Extent, p.Rank())
	for i := range out {
		out[i] = tensor.Auto
	}
	return out
}

// String returns the policy as "datatype/dimension".
func (p Policy) String() string {
	return fmt.Sprintf("%s/%s", p.DataType, p.Dimension)
}
