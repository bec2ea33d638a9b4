package tensor

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Dimension is the rank class of a tensor.
type Dimension int

// Supported dimensions.
const (
	Scalar Dimension = iota
	D1
	D2
	D3
)

// Rank returns the number of axes: 0 for Scalar, 1 to 3 otherwise.
func (d Dimension) Rank() int {
	return int(d)
}

// String returns the dimension token.
func (d Dimension) String() string {
	switch d {
	case Scalar:
		return "Scalar"
	case D1:
		return "D1"
	case D2:
		return "D2"
	case D3:
		return "D3"
	default:
		return fmt.Sprintf("Dimension(%d)", int(d))
	}
}

// ParseDimension parses a dimension token. An empty token means D1.
// Scalar is not accepted: records always materialize to at least one axis.
func ParseDimension(token string) (Dimension, error) {
	switch token {
	case "", "D1":
		return D1, nil
	case "D2":
		return D2, nil
	case "D3":
		return D3, nil
	default:
		return 0, errors.Wrapf(ErrInvalidDimension, "%q", token)
	}
}

// Extent is the size of one axis. Auto leaves the axis to be resolved when
// a record is materialized.
type Extent int

// Auto marks an unspecified extent.
const Auto Extent = -1

// IsAuto reports whether the extent is unspecified.
func (e Extent) IsAuto() bool {
	return e < 0
}

// String returns the extent, or "?" when unspecified.
func (e Extent) String() string {
	if e.IsAuto() {
		return "?"
	}
	return fmt.Sprintf("%d", int(e))
}

// Shape is a dimension plus one optional extent per axis.
type Shape struct {
	Dim     Dimension
	Extents []Extent
}

// ScalarShape returns the shape of a single element.
func ScalarShape() Shape {
	return Shape{Dim: Scalar}
}

// Rank1 returns a one-axis shape.
func Rank1(e0 Extent) Shape {
	return Shape{Dim: D1, Extents: []Extent{e0}}
}

// Rank2 returns a two-axis shape.
func Rank2(e0, e1 Extent) Shape {
	return Shape{Dim: D2, Extents: []Extent{e0, e1}}
}

// Rank3 returns a three-axis shape.
func Rank3(e0, e1, e2 Extent) Shape {
	return Shape{Dim: D3, Extents: []Extent{e0, e1, e2}}
}

// NewShape pairs a dimension with caller-supplied extents. The number of
// extents must equal the dimension's rank.
func NewShape(dim Dimension, extents []Extent) (Shape, error) {
	if dim < Scalar || dim > D3 {
		return Shape{}, errors.Wrapf(ErrInvalidDimension, "%d", int(dim))
	}
	if len(extents) != dim.Rank() {
		return Shape{}, errors.Wrapf(ErrShapeMismatch, "%s takes %d extents, got %d", dim, dim.Rank(), len(extents))
	}
	for i, e := range extents {
		if e == 0 {
			return Shape{}, errors.Wrapf(ErrShapeMismatch, "axis %d has zero extent", i)
		}
	}
	return Shape{Dim: dim, Extents: append([]Extent(nil), extents...)}, nil
}

// Resolved reports whether every extent is specified.
func (s Shape) Resolved() bool {
	for _, e := range s.Extents {
		if e.IsAuto() {
			return false
		}
	}
	return true
}

// Resolve fills unspecified extents for a record of byteLen bytes stored as
// elements of dt. Axis 0 spans the whole record (byteLen / dt.Size()); the
// higher axes default to 1.
//
// The higher-axis default does not look at the record's nested structure;
// callers that need a true multi-axis layout pass explicit extents.
func (s Shape) Resolve(byteLen int, dt DataType) (Shape, error) {
	out := Shape{Dim: s.Dim, Extents: make([]Extent, len(s.Extents))}
	for i, e := range s.Extents {
		if !e.IsAuto() {
			out.Extents[i] = e
			continue
		}
		if i > 0 {
			out.Extents[i] = 1
			continue
		}
		size := dt.Size()
		if size == 0 {
			return Shape{}, errors.Wrapf(ErrUnsupportedDataType, "cannot size axis 0 for %s", dt)
		}
		n := byteLen / size
		if n == 0 {
			return Shape{}, errors.Wrapf(ErrShapeMismatch, "record of %d bytes holds no %s element", byteLen, dt)
		}
		out.Extents[0] = Extent(n)
	}
	return out, nil
}

// NumElements returns the product of the extents, or 1 for a scalar.
// Unspecified extents count as 1.
func (s Shape) NumElements() int {
	n := 1
	for _, e := range s.Extents {
		if !e.IsAuto() {
			n *= int(e)
		}
	}
	return n
}

// String returns a compact form such as "D2[16 ?]".
func (s Shape) String() string {
	parts := make([]string, len(s.Extents))
	for i, e := range s.Extents {
		parts[i] = e.String()
	}
	return fmt.Sprintf("%s[%s]", s.Dim, strings.Join(parts, " "))
}
