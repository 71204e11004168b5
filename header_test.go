package sqbrite

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildHeader(t *testing.T, pageSize uint16, pageCount uint32, autoVacuumRoot uint32) []byte {
	t.Helper()
	buf := make([]byte, 100)
	copy(buf[:16], magicHeaderString[:])
	binary.BigEndian.PutUint16(buf[16:18], pageSize)
	buf[18] = 1 // write format
	buf[19] = 1 // read format
	buf[20] = 0 // reserved bytes
	buf[21] = 64
	buf[22] = 32
	buf[23] = 32
	binary.BigEndian.PutUint32(buf[24:28], 1) // file change counter
	binary.BigEndian.PutUint32(buf[28:32], pageCount)
	binary.BigEndian.PutUint32(buf[32:36], 0) // first freelist trunk
	binary.BigEndian.PutUint32(buf[36:40], 0) // freelist page count
	binary.BigEndian.PutUint32(buf[40:44], 1) // schema cookie
	binary.BigEndian.PutUint32(buf[44:48], 4) // schema format
	binary.BigEndian.PutUint32(buf[48:52], 0) // default cache size
	binary.BigEndian.PutUint32(buf[52:56], autoVacuumRoot)
	binary.BigEndian.PutUint32(buf[56:60], uint32(EncodingUTF8))
	binary.BigEndian.PutUint32(buf[60:64], 0) // user version
	binary.BigEndian.PutUint32(buf[64:68], 0) // incremental vacuum
	binary.BigEndian.PutUint32(buf[68:72], 0) // application id
	binary.BigEndian.PutUint32(buf[92:96], 1) // version-valid-for
	return buf
}

func TestParseHeaderValid(t *testing.T) {
	buf := buildHeader(t, 4096, 10, 0)
	h, err := ParseHeader(buf)
	require.NoError(t, err)
	require.Equal(t, uint32(4096), h.PageSize)
	require.Equal(t, uint32(10), h.PageCount)
	require.Equal(t, uint32(4096), h.UsableSize)
	require.False(t, h.AutoVacuum())
}

func TestParseHeaderPageSize1MeansMax(t *testing.T) {
	buf := buildHeader(t, 1, 1, 0)
	h, err := ParseHeader(buf)
	require.NoError(t, err)
	require.Equal(t, uint32(65536), h.PageSize)
}

func TestParseHeaderBadMagic(t *testing.T) {
	buf := buildHeader(t, 4096, 1, 0)
	buf[0] = 'X'
	_, err := ParseHeader(buf)
	require.True(t, errors.Is(err, ErrBadMagic))
}

func TestParseHeaderUnsupportedPageSize(t *testing.T) {
	buf := buildHeader(t, 4095, 1, 0)
	_, err := ParseHeader(buf)
	require.True(t, errors.Is(err, ErrUnsupportedPageSize))
}

func TestParseHeaderAutoVacuum(t *testing.T) {
	buf := buildHeader(t, 4096, 10, 3)
	h, err := ParseHeader(buf)
	require.NoError(t, err)
	require.True(t, h.AutoVacuum())
}

func TestOverflowSplit(t *testing.T) {
	h := &Header{UsableSize: 4096}
	cellPayload, hasOverflow := h.overflowSplit(100)
	require.False(t, hasOverflow)
	require.Equal(t, int64(100), cellPayload)

	cellPayload, hasOverflow = h.overflowSplit(1_000_000)
	require.True(t, hasOverflow)
	require.Less(t, cellPayload, int64(1_000_000))
	require.Greater(t, cellPayload, int64(0))
}
