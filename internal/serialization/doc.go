// Package serialization implements the fixed binary record encoding used by
// ggmlio model files, plus their optional compressed framing.
//
// Encoding (version 1):
//
//	integers      little-endian, fixed width; int and uint are 64-bit
//	bool          one byte, 0 or 1
//	float32/64    IEEE-754 bits
//	[N]T          N elements, no length prefix
//	[]T, string   u64 length prefix, then elements or bytes
//	struct        exported fields in declaration order, no padding;
//	              fields tagged `ggml:"-"` are skipped
//
// Decode reads exactly the bytes of one record, so a model stream is simply
// records laid end to end:
//
//	stream, err := serialization.OpenStream(r) // raw, zstd or lz4
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//
//	var rec [8][4]int8
//	for {
//	    err := serialization.Decode(stream, &rec)
//	    if errors.Is(err, io.EOF) {
//	        break // clean end of records
//	    }
//	    if err != nil {
//	        return err // truncated or corrupt record
//	    }
//	    ...
//	}
package serialization
