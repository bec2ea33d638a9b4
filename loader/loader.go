// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package loader materializes model parameters read from binary record
// streams into arena-backed tensors.
//
// This package wraps the internal loader implementation and exports a clean
// public API.
//
// Example usage:
//
//	import (
//	    "github.com/born-ml/ggmlio/loader"
//	    "github.com/born-ml/ggmlio/tensor"
//	)
//
//	type Block [8][4]int8
//
//	m, err := loader.NewMaterializer[Block]("i8", "D2")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	f, err := loader.OpenFile("model.bin") // raw, zstd or lz4
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer f.Close()
//
//	stream, err := f.Stream()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	arena := tensor.NewArena(1 << 20)
//	defer arena.Close()
//
//	tensors, err := m.ReadAll(arena, stream, []tensor.Extent{16, 2})
package loader

import (
	"io"
	"reflect"

	"github.com/born-ml/ggmlio/internal/loader"
	"github.com/born-ml/ggmlio/internal/serialization"
	"github.com/born-ml/ggmlio/internal/tensor"
)

// Materializer reads records of type T and turns them into arena tensors.
type Materializer[T any] = loader.Materializer[T]

// Pipeline is the untyped core of Materializer for record types known only
// at runtime.
type Pipeline = loader.Pipeline

// Extent is the size of one tensor axis.
type Extent = tensor.Extent

// Policy is the datatype and dimension a record type materializes as.
type Policy = loader.Policy

// Option configures a Pipeline or Materializer.
type Option = loader.Option

// Manifest declares record policies in YAML.
type Manifest = loader.Manifest

// ConfigError reports a policy rejected at registration time.
type ConfigError = loader.ConfigError

// RecordError reports the record at which ReadAll stopped on corrupt input.
type RecordError = loader.RecordError

// DecodeError reports a failed record decode.
type DecodeError = serialization.DecodeError

// Compression selects the framing of a model stream.
type Compression = serialization.Compression

// Supported framings.
const (
	CompressionNone Compression = serialization.CompressionNone
	CompressionZstd Compression = serialization.CompressionZstd
	CompressionLZ4  Compression = serialization.CompressionLZ4
)

// File is a model file mapped read-only into memory.
type File = serialization.File

// Stream is a decompressed model stream.
type Stream = serialization.Stream

// StreamWriter frames records with the chosen compression.
type StreamWriter = serialization.StreamWriter

// Common errors.
var (
	ErrShapeMismatch       = loader.ErrShapeMismatch
	ErrUnsupportedDataType = loader.ErrUnsupportedDataType
	ErrUnknownRecord       = loader.ErrUnknownRecord
)

// WithLogger sets the logger used for per-record events.
var WithLogger = loader.WithLogger

// WithName sets the record name reported in log fields.
var WithName = loader.WithName

// NewMaterializer registers T with datatype and dimension tokens.
func NewMaterializer[T any](datatype, dimension string, opts ...Option) (*Materializer[T], error) {
	return loader.NewMaterializer[T](datatype, dimension, opts...)
}

// NewMaterializerWithPolicy registers T with an already parsed policy.
func NewMaterializerWithPolicy[T any](policy Policy, opts ...Option) (*Materializer[T], error) {
	return loader.NewMaterializerWithPolicy[T](policy, opts...)
}

// NewPipeline registers a runtime record type.
func NewPipeline(typ reflect.Type, policy Policy, opts ...Option) (*Pipeline, error) {
	return loader.NewPipeline(typ, policy, opts...)
}

// ParsePolicy parses datatype and dimension tokens.
func ParsePolicy(datatype, dimension string) (Policy, error) {
	return loader.ParsePolicy(datatype, dimension)
}

// LoadManifest parses and validates a YAML manifest.
func LoadManifest(r io.Reader) (*Manifest, error) {
	return loader.LoadManifest(r)
}

// LoadManifestFile reads the manifest at path.
func LoadManifestFile(path string) (*Manifest, error) {
	return loader.LoadManifestFile(path)
}

// ManifestMaterializer registers T under the manifest's policy for name.
func ManifestMaterializer[T any](m *Manifest, name string, opts ...Option) (*Materializer[T], []Extent, error) {
	return loader.ManifestMaterializer[T](m, name, opts...)
}

// OpenFile opens and maps a model file.
func OpenFile(path string) (*File, error) {
	return serialization.OpenFile(path)
}

// OpenStream sniffs the framing of r and returns the raw record stream.
func OpenStream(r io.Reader) (*Stream, error) {
	return serialization.OpenStream(r)
}

// NewStreamWriter returns a writer producing the given framing on w.
func NewStreamWriter(w io.Writer, c Compression) (*StreamWriter, error) {
	return serialization.NewStreamWriter(w, c)
}
