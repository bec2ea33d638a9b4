package serialization

import (
	"bytes"
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRecords(t *testing.T, c Compression, records [][4]int8) []byte {
	t.Helper()

	var buf bytes.Buffer
	w, err := NewStreamWriter(&buf, c)
	require.NoError(t, err)
	for _, rec := range records {
		require.NoError(t, Encode(w, rec))
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestStreamRoundTrip(t *testing.T) {
	records := make([][4]int8, 64)
	for i := range records {
		records[i] = [4]int8{int8(i), int8(-i), 0, 1}
	}

	for _, c := range []Compression{CompressionNone, CompressionZstd, CompressionLZ4} {
		t.Run(c.String(), func(t *testing.T) {
			data := writeRecords(t, c, records)

			s, err := OpenStream(bytes.NewReader(data))
			require.NoError(t, err)
			defer s.Close()
			assert.Equal(t, c, s.Compression())

			for i := range records {
				var rec [4]int8
				require.NoError(t, Decode(s, &rec), "record %d", i)
				assert.Equal(t, records[i], rec)
			}

			var rec [4]int8
			err = Decode(s, &rec)
			assert.True(t, errors.Is(err, io.EOF), "clean end after the last record")
		})
	}
}

func TestStreamCompresses(t *testing.T) {
	records := make([][4]int8, 1024)
	raw := writeRecords(t, CompressionNone, records)
	require.Len(t, raw, 4096)

	assert.Less(t, len(writeRecords(t, CompressionZstd, records)), len(raw))
	assert.Less(t, len(writeRecords(t, CompressionLZ4, records)), len(raw))
}

func TestOpenStreamShortInput(t *testing.T) {
	s, err := OpenStream(bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, s.Compression())

	var rec [4]int8
	assert.True(t, errors.Is(Decode(s, &rec), io.EOF))

	s, err = OpenStream(bytes.NewReader([]byte{0x28, 0xB5}))
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, s.Compression(), "partial magic is raw data")
}

func TestParseCompression(t *testing.T) {
	for name, want := range map[string]Compression{"": CompressionNone, "none": CompressionNone, "zstd": CompressionZstd, "lz4": CompressionLZ4} {
		got, err := ParseCompression(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseCompression("gzip")
	assert.Error(t, err)

	_, err = NewStreamWriter(io.Discard, Compression(9))
	assert.Error(t, err)
}
