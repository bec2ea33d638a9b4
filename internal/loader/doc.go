// Package loader materializes model parameters read from binary record
// streams into arena-backed tensors.
//
// A record type is registered with a policy: the datatype its bytes are
// stored as and the tensor's dimension. Registration parses the tokens and
// validates the Go type once, so configuration mistakes never surface while
// a model is being read:
//
//	type Block [8][4]int8
//
//	m, err := loader.NewMaterializer[Block]("i8", "D2")
//	if err != nil {
//	    log.Fatal(err) // *loader.ConfigError
//	}
//
//	arena := tensor.NewArena(1 << 20)
//	defer arena.Close()
//
//	tensors, err := m.ReadAll(arena, stream, []tensor.Extent{16, 2})
//
// Policies may also be declared in a YAML manifest (see Manifest), and
// Pipeline covers record types only known at runtime.
//
// Materialization copies the record's encoded bytes into the tensor
// verbatim. Extents left as tensor.Auto are inferred: axis 0 spans the whole
// record, higher axes default to 1.
package loader
