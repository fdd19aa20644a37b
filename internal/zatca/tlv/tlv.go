// Package tlv implements the ZATCA tag-length-value byte format used inside
// the e-invoice QR code: each field is one tag byte, one length byte and the
// UTF-8 value bytes.
package tlv

import (
	"bytes"
	"errors"
	"fmt"
)

// MaxValueLength is the largest value the 1-byte length field can describe.
// ZATCA defines no chunking past this; longer values are a fatal input error.
const MaxValueLength = 255

var (
	// ErrValueTooLong is returned when a value exceeds 255 UTF-8 bytes.
	// Truncating would corrupt the tax authority's validation, so the field
	// is rejected outright.
	ErrValueTooLong = errors.New("tlv: value exceeds 255 bytes")
	// ErrTruncated is returned when decoding runs out of bytes mid-field
	ErrTruncated = errors.New("tlv: truncated field")
)

// Field is a single tag-value pair
type Field struct {
	Tag   byte
	Value string
}

// EncodeField encodes one field as [tag][length][value bytes]
func EncodeField(tag byte, value string) ([]byte, error) {
	raw := []byte(value)
	if len(raw) > MaxValueLength {
		return nil, fmt.Errorf("%w: tag %d has %d bytes", ErrValueTooLong, tag, len(raw))
	}
	out := make([]byte, 0, 2+len(raw))
	out = append(out, tag, byte(len(raw)))
	return append(out, raw...), nil
}

// EncodeSequence concatenates the encoded fields in the given order. Order
// matters: ZATCA mandates ascending tag order in the QR payload.
func EncodeSequence(fields []Field) ([]byte, error) {
	var buf bytes.Buffer
	for _, f := range fields {
		enc, err := EncodeField(f.Tag, f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(enc)
	}
	return buf.Bytes(), nil
}

// Decode parses a TLV byte sequence back into its fields, preserving order
func Decode(data []byte) ([]Field, error) {
	var fields []Field
	for pos := 0; pos < len(data); {
		if pos+2 > len(data) {
			return nil, ErrTruncated
		}
		tag := data[pos]
		length := int(data[pos+1])
		pos += 2
		if pos+length > len(data) {
			return nil, fmt.Errorf("%w: tag %d wants %d bytes", ErrTruncated, tag, length)
		}
		fields = append(fields, Field{Tag: tag, Value: string(data[pos : pos+length])})
		pos += length
	}
	return fields, nil
}
