package sqbrite

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeRecordMixedFields(t *testing.T) {
	// header_length=4, serial types [0 (NULL), 1 (1-byte int), 17 (2-byte text)]
	buf := []byte{4, 0, 1, 17, 5, 'h', 'i'}

	rec, err := DecodeRecord(buf, EncodingUTF8, 0)
	require.NoError(t, err)
	require.Len(t, rec.Fields, 3)

	require.Equal(t, FieldNull, rec.Fields[0].Kind)

	require.Equal(t, FieldInt, rec.Fields[1].Kind)
	require.Equal(t, int64(5), rec.Fields[1].Int)

	require.Equal(t, FieldText, rec.Fields[2].Kind)
	require.Equal(t, "hi", rec.Fields[2].Text)
	require.False(t, rec.Fields[2].ReplacementUsed)
}

func TestDecodeRecordRejectsColumnCountMismatch(t *testing.T) {
	buf := []byte{4, 0, 1, 17, 5, 'h', 'i'}
	_, err := DecodeRecord(buf, EncodingUTF8, 5)
	require.Error(t, err)
}

func TestDecodeRecordNegativeInt(t *testing.T) {
	// serial type 1, single byte 0xff == -1
	buf := []byte{3, 0, 1, 0xff}
	rec, err := DecodeRecord(buf, EncodingUTF8, 0)
	require.NoError(t, err)
	require.Equal(t, int64(-1), rec.Fields[1].Int)
}

func TestDecodeRecordInvalidUTF8IsReplaced(t *testing.T) {
	// serial type 13 -> 0-byte text; use 15 -> length 1, invalid lead byte
	buf := []byte{3, 0, 15, 0xff}
	rec, err := DecodeRecord(buf, EncodingUTF8, 0)
	require.NoError(t, err)
	require.Equal(t, FieldText, rec.Fields[1].Kind)
	require.True(t, rec.Fields[1].ReplacementUsed)
}

func TestSerialTypePayloadLength(t *testing.T) {
	cases := map[SerialType]int64{0: 0, 1: 1, 2: 2, 3: 3, 4: 4, 5: 6, 6: 8, 7: 8, 8: 0, 9: 0, 12: 0, 13: 0, 14: 1, 17: 2}
	for st, want := range cases {
		got, ok := serialTypePayloadLength(st)
		require.True(t, ok, "serial type %d should be recognised", st)
		require.Equal(t, want, got, "serial type %d", st)
	}

	_, ok := serialTypePayloadLength(10)
	require.False(t, ok, "serial type 10 is reserved")
}
