// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package loader_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/ggmlio/loader"
	"github.com/born-ml/ggmlio/tensor"
)

type block [8][4]int8

// TestEndToEnd writes a compressed model file and materializes it back.
func TestEndToEnd(t *testing.T) {
	m, err := loader.NewMaterializer[block]("i8", "D2")
	if err != nil {
		t.Fatalf("NewMaterializer failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "model.bin.zst")
	out, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	w, err := loader.NewStreamWriter(out, loader.CompressionZstd)
	if err != nil {
		t.Fatalf("NewStreamWriter failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		var rec block
		rec[0][0] = int8(i + 1)
		if err := m.Write(w, rec); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close writer failed: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("Close file failed: %v", err)
	}

	f, err := loader.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	defer f.Close()

	stream, err := f.Stream()
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	defer stream.Close()
	if stream.Compression() != loader.CompressionZstd {
		t.Errorf("Compression() = %v, want zstd", stream.Compression())
	}

	arena := tensor.NewArena(1 << 16)
	defer arena.Close()

	tensors, err := m.ReadAll(arena, stream, []tensor.Extent{16, 2})
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(tensors) != 2 {
		t.Fatalf("ReadAll returned %d tensors, want 2", len(tensors))
	}
	for i, x := range tensors {
		if x.ByteSize() != 32 {
			t.Errorf("tensor %d ByteSize() = %d, want 32", i, x.ByteSize())
		}
		if got := x.RawBytes()[0]; got != byte(i+1) {
			t.Errorf("tensor %d first byte = %d, want %d", i, got, i+1)
		}
	}
}
