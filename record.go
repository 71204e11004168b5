package sqbrite

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// SerialType is the small integer at the head of each column in a
// record header that encodes both the column's kind and its payload
// size (spec.md §3, "Record").
type SerialType uint64

// FieldKind classifies a decoded column's Go-level representation.
type FieldKind uint8

const (
	FieldNull FieldKind = iota
	FieldInt
	FieldFloat
	FieldText
	FieldBlob
)

// Field is one decoded column of a Record.
type Field struct {
	SerialType SerialType
	Kind       FieldKind
	Int        int64
	Float      float64
	Text       string
	Blob       []byte
	// ReplacementUsed is set when a TEXT field contained code units
	// that could not be decoded under the database's declared text
	// encoding; the offending bytes were replaced rather than aborting
	// the decode, per spec.md §4.7.
	ReplacementUsed bool
}

// serialTypePayloadLength returns the number of payload bytes a serial type
// consumes, per the format's fixed table (spec.md §3). ok is false for
// serial type 10 and 11, which are reserved and never appear in a
// well-formed record.
func serialTypePayloadLength(t SerialType) (int64, bool) {
	switch {
	case t == 0, t == 8, t == 9:
		return 0, true
	case t == 1:
		return 1, true
	case t == 2:
		return 2, true
	case t == 3:
		return 3, true
	case t == 4:
		return 4, true
	case t == 5:
		return 6, true
	case t == 6, t == 7:
		return 8, true
	case t >= 12 && t%2 == 0:
		return (int64(t) - 12) / 2, true
	case t >= 13 && t%2 == 1:
		return (int64(t) - 13) / 2, true
	default:
		return 0, false
	}
}

// Record is a decoded SQLite record: a header of serial types and the
// column values they describe.
type Record struct {
	Fields []Field
	// HeaderLength is the varint-declared length of the record header,
	// including the varint itself.
	HeaderLength int64
	// PayloadLength is the total number of payload bytes the record
	// claims to occupy (header + field bytes).
	PayloadLength int64
}

// decodeRecordHeader reads just the header portion of a record —
// header_length and the serial-type varint sequence it declares —
// without touching any field bytes. The recovery orchestrator needs
// this split so it can compute a candidate's synthesized payload size
// (spec.md §4.10) before deciding whether the field bytes it needs are
// actually available in range.
func decodeRecordHeader(buf []byte) (headerLength int64, serialTypes []SerialType, err error) {
	r := reader(buf)

	hl, consumed, err := r.varint(0)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if hl < 1 || int64(hl) > int64(len(buf)) {
		return 0, nil, fmt.Errorf("%w: header_length=%d, buf=%d bytes", ErrBadHeader, hl, len(buf))
	}

	off := consumed
	for off < int64(hl) {
		st, n, err := r.varint(off)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
		}
		serialTypes = append(serialTypes, SerialType(st))
		off += n
	}
	if off != int64(hl) {
		return 0, nil, fmt.Errorf("%w: serial types overran declared header length", ErrBadHeader)
	}
	return int64(hl), serialTypes, nil
}

// recordPayloadSize sums the serial-type payload table (spec.md §3)
// over serialTypes and adds headerLength, giving the total number of
// bytes a well-formed record occupies. ok is false if any serial type
// is unknown (reserved types 10/11, or garbage).
func recordPayloadSize(headerLength int64, serialTypes []SerialType) (int64, bool) {
	total := headerLength
	for _, st := range serialTypes {
		n, ok := serialTypePayloadLength(st)
		if !ok {
			return 0, false
		}
		total += n
	}
	return total, true
}

// DecodeRecord decodes a record whose raw bytes (header + payload,
// already assembled across any overflow chain) are buf. encoding
// selects how TEXT serial types are interpreted. maxColumns, when
// nonzero, rejects headers that declare more or fewer columns than
// maxColumns — used by the recovery orchestrator to constrain candidate
// decodes to a table's known column count (spec.md §4.10).
func DecodeRecord(buf []byte, encoding TextEncoding, maxColumns int) (*Record, error) {
	headerLength, serialTypes, err := decodeRecordHeader(buf)
	if err != nil {
		return nil, err
	}
	if maxColumns > 0 && len(serialTypes) != maxColumns {
		return nil, fmt.Errorf("%w: got %d columns, want %d", ErrBadHeader, len(serialTypes), maxColumns)
	}

	r := reader(buf)
	fields := make([]Field, len(serialTypes))
	fieldOffset := headerLength
	for i, st := range serialTypes {
		length, ok := serialTypePayloadLength(st)
		if !ok {
			return nil, fmt.Errorf("%w: unknown serial type %d", ErrBadHeader, st)
		}
		fieldBytes, err := r.bytesAt(fieldOffset, length)
		if err != nil {
			return nil, fmt.Errorf("%w: field %d: %v", ErrBadHeader, i, err)
		}
		field, err := decodeField(st, fieldBytes, encoding)
		if err != nil {
			return nil, err
		}
		fields[i] = field
		fieldOffset += length
	}

	return &Record{
		Fields:        fields,
		HeaderLength:  headerLength,
		PayloadLength: fieldOffset,
	}, nil
}

// recordSignature encodes fields into a string that is equal for two
// field slices exactly when every field's kind and value are equal,
// used to test a recovered row against a table's live rows for
// spec.md §4.10's bytewise duplicate-suppression law. Variable-length
// values are length-prefixed so no value's contents can be mistaken
// for a delimiter.
func recordSignature(fields []Field) string {
	var b strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&b, "%d:", f.Kind)
		switch f.Kind {
		case FieldInt:
			fmt.Fprintf(&b, "%d;", f.Int)
		case FieldFloat:
			fmt.Fprintf(&b, "%x;", math.Float64bits(f.Float))
		case FieldText:
			fmt.Fprintf(&b, "%d:%s;", len(f.Text), f.Text)
		case FieldBlob:
			fmt.Fprintf(&b, "%d:%x;", len(f.Blob), f.Blob)
		default:
			b.WriteByte(';')
		}
	}
	return b.String()
}

func decodeField(st SerialType, raw []byte, encoding TextEncoding) (Field, error) {
	switch {
	case st == 0:
		return Field{SerialType: st, Kind: FieldNull}, nil
	case st == 8:
		return Field{SerialType: st, Kind: FieldInt, Int: 0}, nil
	case st == 9:
		return Field{SerialType: st, Kind: FieldInt, Int: 1}, nil
	case st >= 1 && st <= 6:
		u := uint64(0)
		for _, b := range raw {
			u = u<<8 | uint64(b)
		}
		return Field{SerialType: st, Kind: FieldInt, Int: signed(u, len(raw))}, nil
	case st == 7:
		r := reader(raw)
		f, err := r.f64(0)
		if err != nil {
			return Field{}, fmt.Errorf("%w: float field: %v", ErrBadHeader, err)
		}
		return Field{SerialType: st, Kind: FieldFloat, Float: f}, nil
	case st >= 12 && st%2 == 0:
		blob := make([]byte, len(raw))
		copy(blob, raw)
		return Field{SerialType: st, Kind: FieldBlob, Blob: blob}, nil
	case st >= 13 && st%2 == 1:
		text, replaced := decodeText(raw, encoding)
		return Field{SerialType: st, Kind: FieldText, Text: text, ReplacementUsed: replaced}, nil
	default:
		return Field{}, fmt.Errorf("%w: unknown serial type %d", ErrBadHeader, st)
	}
}

// decodeText interprets raw TEXT bytes under the database's declared
// text encoding. Invalid code units are preserved as the Unicode
// replacement character rather than aborting the decode (spec.md
// §4.7); replaced reports whether that happened.
func decodeText(raw []byte, encoding TextEncoding) (text string, replaced bool) {
	switch encoding {
	case EncodingUTF16LE, EncodingUTF16BE:
		var endian unicode.Endianness
		if encoding == EncodingUTF16LE {
			endian = unicode.LittleEndian
		} else {
			endian = unicode.BigEndian
		}
		decoder := unicode.UTF16(endian, unicode.IgnoreBOM).NewDecoder()
		out, err := decoder.Bytes(raw)
		if err != nil {
			// The x/text decoder refuses to proceed past an unpaired
			// surrogate; fall back to decoding what validated and mark
			// the field as damaged rather than failing the record.
			return string(out), true
		}
		return string(out), false
	default:
		if !isValidUTF8(raw) {
			return sanitizeUTF8(raw), true
		}
		return string(raw), false
	}
}

func isValidUTF8(b []byte) bool {
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			i++
		case c&0xE0 == 0xC0:
			if i+1 >= len(b) || b[i+1]&0xC0 != 0x80 {
				return false
			}
			i += 2
		case c&0xF0 == 0xE0:
			if i+2 >= len(b) || b[i+1]&0xC0 != 0x80 || b[i+2]&0xC0 != 0x80 {
				return false
			}
			i += 3
		case c&0xF8 == 0xF0:
			if i+3 >= len(b) || b[i+1]&0xC0 != 0x80 || b[i+2]&0xC0 != 0x80 || b[i+3]&0xC0 != 0x80 {
				return false
			}
			i += 4
		default:
			return false
		}
	}
	return true
}

// sanitizeUTF8 keeps every valid UTF-8 sequence in b and replaces each
// byte that does not start one with U+FFFD.
func sanitizeUTF8(b []byte) string {
	out := make([]rune, 0, len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		out = append(out, r)
		b = b[size:]
	}
	return string(out)
}
