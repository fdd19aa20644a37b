package c14n

import (
	"bytes"
	"testing"

	"github.com/beevik/etree"
)

func parse(t *testing.T, xml string) *etree.Document {
	t.Helper()
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xml); err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestCanonicalizeIdempotence(t *testing.T) {
	doc := parse(t, `<a x="1" b="2"><c>text</c></a>`)

	first, err := Canonicalize(doc)
	if err != nil {
		t.Fatalf("Canonicalize error: %v", err)
	}

	again, err := Canonicalize(parse(t, string(first)))
	if err != nil {
		t.Fatalf("Canonicalize of canonical form error: %v", err)
	}
	if !bytes.Equal(first, again) {
		t.Fatalf("canonicalization not idempotent:\n%s\n%s", first, again)
	}
}

func TestCanonicalizeAttributeOrderInvariance(t *testing.T) {
	a, err := Canonicalize(parse(t, `<inv currency="SAR" id="1"><total>10</total></inv>`))
	if err != nil {
		t.Fatalf("Canonicalize error: %v", err)
	}
	b, err := Canonicalize(parse(t, `<inv id="1" currency="SAR"><total>10</total></inv>`))
	if err != nil {
		t.Fatalf("Canonicalize error: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("attribute order changed canonical bytes:\n%s\n%s", a, b)
	}
}

func TestCanonicalizeDistinguishesContent(t *testing.T) {
	a, _ := Canonicalize(parse(t, `<inv><total>10</total></inv>`))
	b, _ := Canonicalize(parse(t, `<inv><total>11</total></inv>`))
	if bytes.Equal(a, b) {
		t.Fatal("different content canonicalized to identical bytes")
	}
}

func TestCanonicalizeEmptyDocument(t *testing.T) {
	if _, err := Canonicalize(etree.NewDocument()); err == nil {
		t.Fatal("expected error for document without root")
	}
}

func TestCanonicalizeExclusiveSubtree(t *testing.T) {
	doc := parse(t, `<root xmlns:x="urn:x"><x:child attr="v">body</x:child></root>`)
	child := doc.Root().ChildElements()[0]

	out, err := CanonicalizeExclusive(child, "")
	if err != nil {
		t.Fatalf("CanonicalizeExclusive error: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("empty canonical output")
	}
}
