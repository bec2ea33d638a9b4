package serialization

import (
	"encoding/binary"
	"io"
	"math"
	"reflect"
	"sync"

	"github.com/pkg/errors"
)

// Encoding constants.
const (
	// EncodingVersion identifies the wire layout below. It changes whenever
	// an existing record would encode differently.
	EncodingVersion = 1

	// MaxSequenceLen bounds the length prefix of slices and strings. Slice
	// storage grows in steps of decodeStep bytes as elements arrive, so a
	// corrupt prefix costs at most one step before the stream runs dry.
	MaxSequenceLen = 1 << 24

	decodeStep = 64 << 10

	// TagName is the struct tag consulted for field options. `ggml:"-"`
	// excludes a field from the record.
	TagName = "ggml"
)

var order = binary.LittleEndian

type checkResult struct{ err error }

var (
	checkedTypes sync.Map // reflect.Type -> checkResult
	fieldCache   sync.Map // reflect.Type -> []int
)

// wireSize returns the encoded size of a scalar kind, or 0 for kinds that
// are not scalars.
func wireSize(k reflect.Kind) int {
	switch k {
	case reflect.Bool, reflect.Int8, reflect.Uint8:
		return 1
	case reflect.Int16, reflect.Uint16:
		return 2
	case reflect.Int32, reflect.Uint32, reflect.Float32:
		return 4
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint64, reflect.Float64:
		return 8
	default:
		return 0
	}
}

// encodedFields returns the indices of the struct fields that take part in
// the record: exported and not tagged `ggml:"-"`.
func encodedFields(t reflect.Type) []int {
	if v, ok := fieldCache.Load(t); ok {
		return v.([]int)
	}
	idx := make([]int, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Tag.Get(TagName) == "-" {
			continue
		}
		idx = append(idx, i)
	}
	fieldCache.Store(t, idx)
	return idx
}

// Check reports whether values of type t can be encoded. Maps, pointers,
// interfaces, channels, functions and complex numbers cannot.
func Check(t reflect.Type) error {
	if t == nil {
		return errors.Wrap(ErrUnsupportedType, "nil type")
	}
	if v, ok := checkedTypes.Load(t); ok {
		return v.(checkResult).err
	}
	err := checkType(t, t.String(), make(map[reflect.Type]bool))
	checkedTypes.Store(t, checkResult{err})
	return err
}

func checkType(t reflect.Type, path string, visiting map[reflect.Type]bool) error {
	if wireSize(t.Kind()) > 0 {
		return nil
	}
	switch t.Kind() {
	case reflect.String:
		return nil
	case reflect.Array, reflect.Slice:
		return checkType(t.Elem(), path+"[]", visiting)
	case reflect.Struct:
		// A struct can only reach itself again through a slice.
		if visiting[t] {
			return nil
		}
		visiting[t] = true
		defer delete(visiting, t)
		for _, i := range encodedFields(t) {
			f := t.Field(i)
			if err := checkType(f.Type, path+"."+f.Name, visiting); err != nil {
				return err
			}
		}
		return nil
	default:
		return errors.Wrapf(ErrUnsupportedType, "%s has kind %s", path, t.Kind())
	}
}

// FixedSize returns the encoded size shared by every value of type t. The
// second result is false when t contains a slice or string, or cannot be
// encoded at all.
func FixedSize(t reflect.Type) (int, bool) {
	if Check(t) != nil {
		return 0, false
	}
	return fixedSize(t)
}

func fixedSize(t reflect.Type) (int, bool) {
	if ws := wireSize(t.Kind()); ws > 0 {
		return ws, true
	}
	switch t.Kind() {
	case reflect.Array:
		n, ok := fixedSize(t.Elem())
		return n * t.Len(), ok
	case reflect.Struct:
		total := 0
		for _, i := range encodedFields(t) {
			n, ok := fixedSize(t.Field(i).Type)
			if !ok {
				return 0, false
			}
			total += n
		}
		return total, true
	default:
		return 0, false
	}
}

// Size returns the number of bytes v encodes to.
func Size(v any) (int, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return 0, errors.Wrap(ErrUnsupportedType, "nil value")
	}
	if err := Check(rv.Type()); err != nil {
		return 0, err
	}
	return sizeValue(rv), nil
}

func sizeValue(v reflect.Value) int {
	if ws := wireSize(v.Kind()); ws > 0 {
		return ws
	}
	switch v.Kind() {
	case reflect.String:
		return 8 + v.Len()
	case reflect.Slice:
		return 8 + sizeElems(v)
	case reflect.Array:
		return sizeElems(v)
	case reflect.Struct:
		total := 0
		for _, i := range encodedFields(v.Type()) {
			total += sizeValue(v.Field(i))
		}
		return total
	default:
		return 0
	}
}

func sizeElems(v reflect.Value) int {
	if n, ok := fixedSize(v.Type().Elem()); ok {
		return n * v.Len()
	}
	total := 0
	for i := 0; i < v.Len(); i++ {
		total += sizeValue(v.Index(i))
	}
	return total
}

// Marshal returns the encoding of v.
func Marshal(v any) ([]byte, error) {
	return AppendValue(nil, reflect.ValueOf(v))
}

// AppendValue appends the encoding of v to buf.
func AppendValue(buf []byte, v reflect.Value) ([]byte, error) {
	if !v.IsValid() {
		return buf, errors.Wrap(ErrUnsupportedType, "nil value")
	}
	if err := Check(v.Type()); err != nil {
		return buf, err
	}
	return appendValue(buf, v)
}

// Encode writes the encoding of v to w in a single Write call.
func Encode(w io.Writer, v any) error {
	return EncodeValue(w, reflect.ValueOf(v))
}

// EncodeValue writes the encoding of v to w in a single Write call.
func EncodeValue(w io.Writer, v reflect.Value) error {
	buf, err := AppendValue(nil, v)
	if err != nil {
		return err
	}
	if _, err := w.Write(buf); err != nil {
		return errors.Wrap(err, "serialization: write record")
	}
	return nil
}

//nolint:gosec // integer conversions reinterpret bits by design of the wire format
func appendValue(buf []byte, v reflect.Value) ([]byte, error) {
	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil
	case reflect.Int8:
		return append(buf, byte(v.Int())), nil
	case reflect.Int16:
		return order.AppendUint16(buf, uint16(v.Int())), nil
	case reflect.Int32:
		return order.AppendUint32(buf, uint32(v.Int())), nil
	case reflect.Int, reflect.Int64:
		return order.AppendUint64(buf, uint64(v.Int())), nil
	case reflect.Uint8:
		return append(buf, byte(v.Uint())), nil
	case reflect.Uint16:
		return order.AppendUint16(buf, uint16(v.Uint())), nil
	case reflect.Uint32:
		return order.AppendUint32(buf, uint32(v.Uint())), nil
	case reflect.Uint, reflect.Uint64:
		return order.AppendUint64(buf, v.Uint()), nil
	case reflect.Float32:
		return order.AppendUint32(buf, math.Float32bits(float32(v.Float()))), nil
	case reflect.Float64:
		return order.AppendUint64(buf, math.Float64bits(v.Float())), nil
	case reflect.String:
		if v.Len() > MaxSequenceLen {
			return buf, errors.Wrapf(ErrSequenceTooLong, "string of %d bytes", v.Len())
		}
		buf = order.AppendUint64(buf, uint64(v.Len()))
		return append(buf, v.String()...), nil
	case reflect.Slice:
		if v.Len() > MaxSequenceLen {
			return buf, errors.Wrapf(ErrSequenceTooLong, "slice of %d elements", v.Len())
		}
		buf = order.AppendUint64(buf, uint64(v.Len()))
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return append(buf, v.Bytes()...), nil
		}
		return appendElems(buf, v)
	case reflect.Array:
		return appendElems(buf, v)
	case reflect.Struct:
		var err error
		for _, i := range encodedFields(v.Type()) {
			if buf, err = appendValue(buf, v.Field(i)); err != nil {
				return buf, err
			}
		}
		return buf, nil
	default:
		return buf, errors.Wrapf(ErrUnsupportedType, "%s", v.Type())
	}
}

func appendElems(buf []byte, v reflect.Value) ([]byte, error) {
	var err error
	for i := 0; i < v.Len(); i++ {
		if buf, err = appendValue(buf, v.Index(i)); err != nil {
			return buf, err
		}
	}
	return buf, nil
}

// Decode reads one record from r into the value v points to.
//
// Exactly the record's bytes are read from r; nothing is buffered past the
// end of the record, so consecutive calls on one reader consume consecutive
// records. Stream failures are returned as *DecodeError.
func Decode(r io.Reader, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.Wrapf(ErrNotPointer, "%T", v)
	}
	return DecodeValue(r, rv.Elem())
}

// DecodeValue reads one record from r into v, which must be settable.
func DecodeValue(r io.Reader, v reflect.Value) error {
	if !v.IsValid() || !v.CanSet() {
		return errors.Wrap(ErrNotPointer, "value is not settable")
	}
	if err := Check(v.Type()); err != nil {
		return err
	}

	d := decoder{r: r}
	if err := d.value(v); err != nil {
		return &DecodeError{Type: v.Type(), Offset: d.n, Err: err}
	}
	return nil
}

type decoder struct {
	r       io.Reader
	n       int64 // bytes consumed from the current record
	scratch [8]byte
}

// read fills p. A stream that ends after part of the record was consumed
// reports io.ErrUnexpectedEOF; only a record that never started sees io.EOF.
func (d *decoder) read(p []byte) error {
	k, err := io.ReadFull(d.r, p)
	d.n += int64(k)
	if errors.Is(err, io.EOF) && d.n > 0 {
		return io.ErrUnexpectedEOF
	}
	return err
}

func (d *decoder) length() (int, error) {
	b := d.scratch[:8]
	if err := d.read(b); err != nil {
		return 0, err
	}
	n := order.Uint64(b)
	if n > MaxSequenceLen {
		return 0, errors.Wrapf(ErrSequenceTooLong, "length prefix %d", n)
	}
	return int(n), nil
}

func (d *decoder) value(v reflect.Value) error {
	if ws := wireSize(v.Kind()); ws > 0 {
		b := d.scratch[:ws]
		if err := d.read(b); err != nil {
			return err
		}
		return setScalar(v, b)
	}

	switch v.Kind() {
	case reflect.String:
		n, err := d.length()
		if err != nil {
			return err
		}
		b := make([]byte, n)
		if err := d.read(b); err != nil {
			return err
		}
		v.SetString(string(b))
		return nil
	case reflect.Slice:
		n, err := d.length()
		if err != nil {
			return err
		}
		s, err := d.slice(v.Type(), n)
		if err != nil {
			return err
		}
		v.Set(s)
		return nil
	case reflect.Array:
		return d.elems(v)
	case reflect.Struct:
		for _, i := range encodedFields(v.Type()) {
			if err := d.value(v.Field(i)); err != nil {
				return err
			}
		}
		return nil
	default:
		return errors.Wrapf(ErrUnsupportedType, "%s", v.Type())
	}
}

// slice decodes n elements into a new slice of type t, allocating at most
// decodeStep bytes of elements ahead of the decoded data.
func (d *decoder) slice(t reflect.Type, n int) (reflect.Value, error) {
	es := int(t.Elem().Size())
	if enc, fixed := fixedSize(t.Elem()); fixed && enc == 0 && n > 0 && es > 0 && n > MaxSequenceLen/es {
		// Elements that encode to nothing never drain the stream.
		return reflect.Value{}, errors.Wrapf(ErrSequenceTooLong, "%d elements of %s", n, t.Elem())
	}

	step := n
	if es > 0 && step > decodeStep/es {
		step = max(decodeStep/es, 1)
	}

	s := reflect.MakeSlice(t, 0, step)
	for s.Len() < n {
		k := min(step, n-s.Len())
		chunk := reflect.MakeSlice(t, k, k)
		if err := d.elems(chunk); err != nil {
			return reflect.Value{}, err
		}
		s = reflect.AppendSlice(s, chunk)
	}
	return s, nil
}

// elems decodes the elements of an array or slice. Runs of scalars are read
// with a single call.
func (d *decoder) elems(v reflect.Value) error {
	n := v.Len()
	if n == 0 {
		return nil
	}

	ws := wireSize(v.Type().Elem().Kind())
	if ws == 0 {
		for i := 0; i < n; i++ {
			if err := d.value(v.Index(i)); err != nil {
				return err
			}
		}
		return nil
	}

	b := make([]byte, n*ws)
	if err := d.read(b); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := setScalar(v.Index(i), b[i*ws:]); err != nil {
			return err
		}
	}
	return nil
}

//nolint:gosec // integer conversions reinterpret bits by design of the wire format
func setScalar(v reflect.Value, b []byte) error {
	switch v.Kind() {
	case reflect.Bool:
		switch b[0] {
		case 0:
			v.SetBool(false)
		case 1:
			v.SetBool(true)
		default:
			return errors.Wrapf(ErrInvalidBool, "0x%02x", b[0])
		}
	case reflect.Int8:
		v.SetInt(int64(int8(b[0])))
	case reflect.Int16:
		v.SetInt(int64(int16(order.Uint16(b))))
	case reflect.Int32:
		v.SetInt(int64(int32(order.Uint32(b))))
	case reflect.Int64:
		v.SetInt(int64(order.Uint64(b)))
	case reflect.Int:
		x := int64(order.Uint64(b))
		if v.OverflowInt(x) {
			return errors.Wrapf(ErrIntegerOverflow, "%d", x)
		}
		v.SetInt(x)
	case reflect.Uint8:
		v.SetUint(uint64(b[0]))
	case reflect.Uint16:
		v.SetUint(uint64(order.Uint16(b)))
	case reflect.Uint32:
		v.SetUint(uint64(order.Uint32(b)))
	case reflect.Uint64:
		v.SetUint(order.Uint64(b))
	case reflect.Uint:
		x := order.Uint64(b)
		if v.OverflowUint(x) {
			return errors.Wrapf(ErrIntegerOverflow, "%d", x)
		}
		v.SetUint(x)
	case reflect.Float32:
		v.SetFloat(float64(math.Float32frombits(order.Uint32(b))))
	case reflect.Float64:
		v.SetFloat(math.Float64frombits(order.Uint64(b)))
	}
	return nil
}
