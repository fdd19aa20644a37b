// Package c14n produces canonical byte serializations of XML subtrees, the
// step that makes invoice hashes reproducible regardless of attribute order
// or insignificant whitespace in the in-memory tree.
package c14n

import (
	"errors"
	"fmt"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
)

var errNoRoot = errors.New("c14n: document has no root element")

// Canonicalize serializes the document root in XML Canonicalization 1.1
// form, the algorithm ZATCA references for the invoice digest.
func Canonicalize(doc *etree.Document) ([]byte, error) {
	root := doc.Root()
	if root == nil {
		return nil, errNoRoot
	}
	return CanonicalizeElement(root)
}

// CanonicalizeElement serializes a single subtree in C14N 1.1 form
func CanonicalizeElement(el *etree.Element) ([]byte, error) {
	if el == nil {
		return nil, errNoRoot
	}
	out, err := dsig.MakeC14N11Canonicalizer().Canonicalize(el)
	if err != nil {
		return nil, fmt.Errorf("c14n: %w", err)
	}
	return out, nil
}

// CanonicalizeExclusive serializes a subtree in exclusive C14N 1.0 form,
// used for the SignedInfo block inside the XML signature.
func CanonicalizeExclusive(el *etree.Element, prefixList string) ([]byte, error) {
	if el == nil {
		return nil, errNoRoot
	}
	out, err := dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList(prefixList).Canonicalize(el)
	if err != nil {
		return nil, fmt.Errorf("c14n: %w", err)
	}
	return out, nil
}
