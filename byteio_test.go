package sqbrite

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVarintRoundTrip(t *testing.T) {
	values := []uint64{
		0, 1, 127, 128, 129, 1 << 13, 1<<13 - 1, 1 << 20,
		1 << 27, 1 << 34, 1 << 41, 1 << 48, 1 << 55,
		1<<56 - 1, 1 << 56, 1 << 63, ^uint64(0),
	}

	for _, v := range values {
		encoded := EncodeVarint(nil, v)
		require.LessOrEqual(t, len(encoded), 9, "varint for %d must not exceed 9 bytes", v)

		decoded, n, err := DecodeVarint(encoded)
		require.NoError(t, err)
		require.Equal(t, len(encoded), n)
		require.Equal(t, v, decoded, "round trip mismatch for %d", v)
	}
}

func TestVarintNineByteForm(t *testing.T) {
	encoded := EncodeVarint(nil, ^uint64(0))
	require.Len(t, encoded, 9)
	require.Equal(t, byte(0xff), encoded[8], "ninth byte carries the low 8 bits verbatim")
}

func TestReaderBoundsChecking(t *testing.T) {
	r := reader([]byte{1, 2, 3, 4})

	_, err := r.u32(0)
	require.NoError(t, err)

	_, err = r.u32(1)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrTruncated))
}

func TestSignedSignExtension(t *testing.T) {
	require.Equal(t, int64(-1), signed(0xff, 1))
	require.Equal(t, int64(127), signed(0x7f, 1))
	require.Equal(t, int64(-1), signed(0xffffffff, 4))
	require.Equal(t, int64(1), signed(1, 8))
}
