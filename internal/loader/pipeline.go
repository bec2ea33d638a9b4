package loader

import (
	"io"
	"reflect"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/born-ml/ggmlio/internal/serialization"
	"github.com/born-ml/ggmlio/internal/tensor"
)

// Pipeline decodes records of one Go type and materializes them into arena
// tensors under a fixed Policy. It is the untyped core of Materializer and
// serves callers that only know the record type at runtime.
type Pipeline struct {
	typ    reflect.Type
	policy Policy
	name   string
	log    logrus.FieldLogger
}

// NewPipeline registers record type typ under policy. It fails with a
// *ConfigError when typ cannot be encoded or always encodes to zero bytes.
func NewPipeline(typ reflect.Type, policy Policy, opts ...Option) (*Pipeline, error) {
	if err := serialization.Check(typ); err != nil {
		return nil, &ConfigError{Field: "record", Value: typeName(typ), Err: err}
	}
	if n, fixed := serialization.FixedSize(typ); fixed && n == 0 {
		return nil, &ConfigError{Field: "record", Value: typeName(typ), Err: ErrEmptyRecord}
	}
	if policy.Dimension < tensor.Scalar || policy.Dimension > tensor.D3 {
		return nil, &ConfigError{Field: "dimension", Value: policy.Dimension.String(), Err: tensor.ErrInvalidDimension}
	}

	cfg := newConfig(typeName(typ), opts)
	return &Pipeline{
		typ:    typ,
		policy: policy,
		name:   cfg.name,
		log: cfg.log.WithFields(logrus.Fields{
			"record":   cfg.name,
			"datatype": policy.DataType.String(),
		}),
	}, nil
}

func typeName(typ reflect.Type) string {
	if typ == nil {
		return "<nil>"
	}
	if typ.Name() != "" {
		return typ.Name()
	}
	return typ.String()
}

// Type returns the record type.
func (p *Pipeline) Type() reflect.Type {
	return p.typ
}

// Policy returns the materialization policy.
func (p *Pipeline) Policy() Policy {
	return p.policy
}

// Name returns the record name used in log fields.
func (p *Pipeline) Name() string {
	return p.name
}

// Decode reads one record from r and returns it as a value of the record
// type. Failures are *serialization.DecodeError.
func (p *Pipeline) Decode(r io.Reader) (reflect.Value, error) {
	v := reflect.New(p.typ).Elem()
	if err := serialization.DecodeValue(r, v); err != nil {
		return reflect.Value{}, err
	}
	return v, nil
}

// Encode writes one record to w.
func (p *Pipeline) Encode(w io.Writer, rec reflect.Value) error {
	if err := p.checkValue(rec); err != nil {
		return err
	}
	return serialization.EncodeValue(w, rec)
}

func (p *Pipeline) checkValue(rec reflect.Value) error {
	if !rec.IsValid() {
		return errors.Errorf("loader: %s pipeline given no value", p.typ)
	}
	if rec.Type() != p.typ {
		return errors.Errorf("loader: %s pipeline given %s value", p.typ, rec.Type())
	}
	return nil
}

// Materialize re-encodes rec and copies the bytes into a new tensor drawn
// from a. The shape is checked against the policy's rank before the arena
// is touched; Auto extents are resolved from the encoded length.
//
// A record larger than the resolved tensor fails with a *tensor.BoundsError
// and allocates nothing. An exhausted arena panics.
func (p *Pipeline) Materialize(a *tensor.Arena, rec reflect.Value, shape []tensor.Extent) (*tensor.Tensor, error) {
	s, err := p.policy.Shape(shape)
	if err != nil {
		return nil, err
	}
	if err := p.checkValue(rec); err != nil {
		return nil, err
	}
	return p.materialize(a, rec, s)
}

func (p *Pipeline) materialize(a *tensor.Arena, rec reflect.Value, s tensor.Shape) (*tensor.Tensor, error) {
	dt := p.policy.DataType
	if !dt.Storable() {
		return nil, errors.Wrapf(ErrUnsupportedDataType, "materialize %s as %s", p.name, dt)
	}

	buf, err := serialization.AppendValue(nil, rec)
	if err != nil {
		return nil, err
	}

	resolved, err := s.Resolve(len(buf), dt)
	if err != nil {
		return nil, err
	}
	if limit := resolved.NumElements() * dt.Size(); len(buf) > limit {
		return nil, &tensor.BoundsError{Op: "Materialize", Offset: 0, Len: len(buf), Limit: limit}
	}

	t := a.Allocate(dt, resolved)
	if err := t.WriteBytes(buf); err != nil {
		return nil, err
	}

	p.log.WithFields(logrus.Fields{
		"arena": a.ID().String(),
		"shape": resolved.String(),
		"bytes": len(buf),
	}).Debug("record materialized")

	return t, nil
}

// ReadToTensor decodes one record from r and materializes it. A decode
// failure is returned before the arena is touched.
func (p *Pipeline) ReadToTensor(a *tensor.Arena, r io.Reader, shape []tensor.Extent) (*tensor.Tensor, error) {
	s, err := p.policy.Shape(shape)
	if err != nil {
		return nil, err
	}
	rec, err := p.Decode(r)
	if err != nil {
		return nil, err
	}
	return p.materialize(a, rec, s)
}

// ReadAll materializes records from r until the stream ends. A clean end of
// stream at a record boundary is success. Any other failure is corruption:
// it is returned as a *RecordError together with the tensors materialized
// before it.
func (p *Pipeline) ReadAll(a *tensor.Arena, r io.Reader, shape []tensor.Extent) ([]*tensor.Tensor, error) {
	s, err := p.policy.Shape(shape)
	if err != nil {
		return nil, err
	}

	var out []*tensor.Tensor
	for {
		rec, err := p.Decode(r)
		if errors.Is(err, io.EOF) {
			p.log.WithField("records", len(out)).Debug("end of records")
			return out, nil
		}
		if err == nil {
			var t *tensor.Tensor
			if t, err = p.materialize(a, rec, s); err == nil {
				out = append(out, t)
				continue
			}
		}

		p.log.WithFields(logrus.Fields{
			"index": len(out),
			"error": err.Error(),
		}).Warn("corrupt record")
		return out, &RecordError{Index: len(out), Err: err}
	}
}
