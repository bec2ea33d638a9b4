package loader

import (
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/ggmlio/internal/tensor"
)

// ManifestVersion is the manifest schema version understood by LoadManifest.
const ManifestVersion = 1

// Manifest declares the materialization policy of named records:
//
//	version: 1
//	records:
//	  attention.k: {datatype: i8, dimension: D1}
//	  ffn.w1:      {datatype: f32, dimension: D2, shape: [16, 2]}
//	  ffn.w2:      {datatype: f16, dimension: D2, shape: [64, auto]}
//
// An omitted shape leaves every extent to inference.
type Manifest struct {
	Version int                   `yaml:"version"`
	Records map[string]RecordSpec `yaml:"records"`
}

// RecordSpec is one record entry of a Manifest.
type RecordSpec struct {
	DataType  string       `yaml:"datatype"`
	Dimension string       `yaml:"dimension,omitempty"`
	Shape     []ExtentSpec `yaml:"shape,omitempty"`
}

// ExtentSpec is a shape entry: a positive integer or "auto".
type ExtentSpec tensor.Extent

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *ExtentSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return errors.Errorf("line %d: extent must be a scalar", node.Line)
	}
	if node.Value == "auto" || node.Value == "?" {
		*e = ExtentSpec(tensor.Auto)
		return nil
	}
	n, err := strconv.Atoi(node.Value)
	if err != nil || n <= 0 {
		return errors.Errorf("line %d: extent %q is neither a positive integer nor auto", node.Line, node.Value)
	}
	*e = ExtentSpec(n)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (e ExtentSpec) MarshalYAML() (any, error) {
	if tensor.Extent(e).IsAuto() {
		return "auto", nil
	}
	return int(e), nil
}

// LoadManifest parses and validates a manifest. Every record's tokens and
// shape are checked here so that lookups cannot fail on bad configuration.
func LoadManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ConfigError{Field: "manifest", Value: "", Err: errors.New("empty manifest")}
		}
		return nil, &ConfigError{Field: "manifest", Value: "", Err: err}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadManifestFile reads the manifest at path.
func LoadManifestFile(path string) (*Manifest, error) {
	//nolint:gosec // G304: manifest path is supplied by the caller
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "loader: open manifest")
	}
	defer f.Close()
	return LoadManifest(f)
}

// Validate checks the version and every record entry.
func (m *Manifest) Validate() error {
	if m.Version != ManifestVersion {
		return &ConfigError{Field: "version", Value: strconv.Itoa(m.Version), Err: ErrUnsupportedVersion}
	}
	for _, name := range m.Names() {
		if _, _, err := m.Lookup(name); err != nil {
			return errors.Wrapf(err, "record %s", name)
		}
	}
	return nil
}

// Names returns the declared record names in sorted order.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Records))
	for name := range m.Records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the policy and the shape declared for name.
func (m *Manifest) Lookup(name string) (Policy, []tensor.Extent, error) {
	spec, ok := m.Records[name]
	if !ok {
		return Policy{}, nil, errors.Wrapf(ErrUnknownRecord, "%q", name)
	}

	policy, err := ParsePolicy(spec.DataType, spec.Dimension)
	if err != nil {
		return Policy{}, nil, err
	}

	if spec.Shape == nil {
		return policy, policy.AutoShape(), nil
	}
	shape := make([]tensor.Extent, len(spec.Shape))
	for i, e := range spec.Shape {
		shape[i] = tensor.Extent(e)
	}
	if _, err := policy.Shape(shape); err != nil {
		return Policy{}, nil, &ConfigError{Field: "shape", Value: tensor.Shape{Dim: policy.Dimension, Extents: shape}.String(), Err: err}
	}
	return policy, shape, nil
}

// Set declares or replaces a record entry.
func (m *Manifest) Set(name string, policy Policy, shape []tensor.Extent) {
	if m.Records == nil {
		m.Records = make(map[string]RecordSpec)
	}
	spec := RecordSpec{DataType: policy.DataType.String(), Dimension: policy.Dimension.String()}
	for _, e := range shape {
		spec.Shape = append(spec.Shape, ExtentSpec(e))
	}
	m.Records[name] = spec
}

// Write encodes the manifest as YAML.
func (m *Manifest) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return errors.Wrap(err, "loader: encode manifest")
	}
	return errors.Wrap(enc.Close(), "loader: flush manifest")
}

// ManifestMaterializer registers T under the policy the manifest declares
// for name, and returns the declared shape for use with its methods.
func ManifestMaterializer[T any](m *Manifest, name string, opts ...Option) (*Materializer[T], []tensor.Extent, error) {
	policy, shape, err := m.Lookup(name)
	if err != nil {
		return nil, nil, err
	}
	opts = append([]Option{WithName(name)}, opts...)
	mat, err := NewMaterializerWithPolicy[T](policy, opts...)
	if err != nil {
		return nil, nil, err
	}
	return mat, shape, nil
}
