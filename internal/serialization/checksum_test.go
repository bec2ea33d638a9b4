package serialization

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum(t *testing.T) {
	// SHA-256 of "abc".
	const abc = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

	sum, err := SumReader(bytes.NewReader([]byte("abc")))
	require.NoError(t, err)
	assert.Equal(t, abc, sum.String())

	parsed, err := ParseChecksum(abc)
	require.NoError(t, err)
	assert.NoError(t, sum.Verify(parsed))

	other, err := SumReader(bytes.NewReader([]byte("abd")))
	require.NoError(t, err)
	assert.True(t, errors.Is(other.Verify(parsed), ErrChecksumMismatch))
}

func TestParseChecksumRejects(t *testing.T) {
	_, err := ParseChecksum("not hex")
	assert.Error(t, err)

	_, err = ParseChecksum("abcd")
	assert.Error(t, err)
}
