package tlv

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestEncodeFieldLayout(t *testing.T) {
	got, err := EncodeField(4, "115.00")
	if err != nil {
		t.Fatalf("EncodeField error: %v", err)
	}
	want := append([]byte{4, 6}, []byte("115.00")...)
	if !bytes.Equal(got, want) {
		t.Fatalf("EncodeField = % x, want % x", got, want)
	}
}

func TestEncodeFieldUTF8Length(t *testing.T) {
	// Arabic seller name: the length byte counts UTF-8 bytes, not runes
	name := "شركة الاختبار"
	got, err := EncodeField(1, name)
	if err != nil {
		t.Fatalf("EncodeField error: %v", err)
	}
	if got[0] != 1 {
		t.Fatalf("tag = %d, want 1", got[0])
	}
	if int(got[1]) != len([]byte(name)) {
		t.Fatalf("length byte = %d, want %d", got[1], len([]byte(name)))
	}
	if len(got) != 2+len([]byte(name)) {
		t.Fatalf("total length = %d, want %d", len(got), 2+len([]byte(name)))
	}
}

func TestEncodeFieldRejectsOversizedValue(t *testing.T) {
	_, err := EncodeField(1, strings.Repeat("a", 256))
	if !errors.Is(err, ErrValueTooLong) {
		t.Fatalf("expected ErrValueTooLong, got %v", err)
	}

	// exactly 255 bytes is still fine
	if _, err := EncodeField(1, strings.Repeat("a", 255)); err != nil {
		t.Fatalf("255-byte value rejected: %v", err)
	}
}

func TestSequenceRoundTrip(t *testing.T) {
	fields := []Field{
		{Tag: 1, Value: "شركة الاختبار"},
		{Tag: 2, Value: "300000000000003"},
		{Tag: 3, Value: "2024-01-01T10:00:00Z"},
		{Tag: 4, Value: "115.00"},
		{Tag: 5, Value: "15.00"},
	}

	enc, err := EncodeSequence(fields)
	if err != nil {
		t.Fatalf("EncodeSequence error: %v", err)
	}
	dec, err := Decode(enc)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if len(dec) != len(fields) {
		t.Fatalf("decoded %d fields, want %d", len(dec), len(fields))
	}
	for i := range fields {
		if dec[i] != fields[i] {
			t.Fatalf("field %d = %+v, want %+v", i, dec[i], fields[i])
		}
	}
}

func TestDecodeTruncated(t *testing.T) {
	cases := [][]byte{
		{1},            // tag without length
		{1, 5, 'a'},    // length larger than remaining bytes
		{1, 1, 'a', 2}, // second field tag without length
	}
	for _, data := range cases {
		if _, err := Decode(data); !errors.Is(err, ErrTruncated) {
			t.Fatalf("Decode(% x): expected ErrTruncated, got %v", data, err)
		}
	}
}

func TestDecodeEmptyValue(t *testing.T) {
	dec, err := Decode([]byte{7, 0})
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if len(dec) != 1 || dec[0].Tag != 7 || dec[0].Value != "" {
		t.Fatalf("decoded %+v, want single empty field with tag 7", dec)
	}
}
