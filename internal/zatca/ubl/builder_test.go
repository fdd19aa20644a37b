package ubl

import (
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/sahlsoft/erp-fatoora/internal/domain/invoice"
	"github.com/sahlsoft/erp-fatoora/internal/domain/party"
	"github.com/shopspring/decimal"
)

func testParties(t *testing.T) (*party.Party, *party.Party) {
	t.Helper()
	seller, err := party.NewParty("شركة الاختبار", party.Company, "300000000000003", "1010101010")
	if err != nil {
		t.Fatalf("seller: %v", err)
	}
	seller.SetAddress("King Fahd Road", "Al Olaya", "Riyadh", "12211")
	buyer, err := party.NewParty("مؤسسة المشتري", party.Company, "310000000000003", "")
	if err != nil {
		t.Fatalf("buyer: %v", err)
	}
	buyer.SetAddress("Prince Sultan Road", "Al Salamah", "Jeddah", "23525")
	return seller, buyer
}

func testInvoice(t *testing.T) *invoice.Invoice {
	t.Helper()
	issue := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	inv, err := invoice.NewInvoice("INV-0001", "seller-id", "buyer-id", issue, issue)
	if err != nil {
		t.Fatalf("NewInvoice: %v", err)
	}
	line, err := invoice.NewLineItem("Consulting services",
		decimal.NewFromInt(2), decimal.NewFromInt(100),
		decimal.NewFromInt(10), decimal.Zero, decimal.NewFromInt(15))
	if err != nil {
		t.Fatalf("NewLineItem: %v", err)
	}
	if err := inv.AddLine(line); err != nil {
		t.Fatalf("AddLine: %v", err)
	}
	inv.PreviousHash = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="
	return inv
}

func findText(t *testing.T, doc *etree.Document, path string) string {
	t.Helper()
	el := doc.FindElement(path)
	if el == nil {
		t.Fatalf("element %s not found", path)
	}
	return el.Text()
}

func TestBuildInvoiceXMLMandatoryElements(t *testing.T) {
	seller, buyer := testParties(t)
	doc, err := BuildInvoiceXML(testInvoice(t), seller, buyer)
	if err != nil {
		t.Fatalf("BuildInvoiceXML: %v", err)
	}

	cases := []struct {
		path string
		want string
	}{
		{"//cbc:ProfileID", "reporting:1.0"},
		{"/Invoice/cbc:ID", "INV-0001"},
		{"//cbc:IssueDate", "2024-01-01"},
		{"//cbc:IssueTime", "10:00:00"},
		{"//cbc:InvoiceTypeCode", "388"},
		{"//cbc:DocumentCurrencyCode", "SAR"},
		{"//cbc:TaxCurrencyCode", "SAR"},
		{"//cac:AccountingSupplierParty//cbc:RegistrationName", "شركة الاختبار"},
		{"//cac:AccountingSupplierParty//cbc:CompanyID", "300000000000003"},
		{"//cac:AccountingCustomerParty//cbc:RegistrationName", "مؤسسة المشتري"},
		{"//cac:LegalMonetaryTotal/cbc:LineExtensionAmount", "180.00"},
		{"//cac:LegalMonetaryTotal/cbc:TaxInclusiveAmount", "207.00"},
		{"//cac:LegalMonetaryTotal/cbc:PayableAmount", "207.00"},
		{"//cac:InvoiceLine/cbc:LineExtensionAmount", "180.00"},
		{"//cac:InvoiceLine/cac:Price/cbc:PriceAmount", "90.00"},
	}
	for _, tc := range cases {
		if got := findText(t, doc, tc.path); got != tc.want {
			t.Errorf("%s = %q, want %q", tc.path, got, tc.want)
		}
	}

	typeCode := doc.FindElement("//cbc:InvoiceTypeCode")
	if attr := typeCode.SelectAttrValue("name", ""); attr != "0100000" {
		t.Errorf("InvoiceTypeCode name = %q, want 0100000", attr)
	}
}

func TestBuildInvoiceXMLCounterAndPreviousHash(t *testing.T) {
	seller, buyer := testParties(t)
	inv := testInvoice(t)
	inv.Counter = 42

	doc, err := BuildInvoiceXML(inv, seller, buyer)
	if err != nil {
		t.Fatalf("BuildInvoiceXML: %v", err)
	}

	var icv, pih *etree.Element
	for _, ref := range doc.FindElements("//cac:AdditionalDocumentReference") {
		switch ref.FindElement("cbc:ID").Text() {
		case "ICV":
			icv = ref
		case "PIH":
			pih = ref
		}
	}
	if icv == nil || icv.FindElement("cbc:UUID").Text() != "42" {
		t.Error("ICV reference missing or wrong counter value")
	}
	if pih == nil {
		t.Fatal("PIH reference missing")
	}
	if got := pih.FindElement("cac:Attachment/cbc:EmbeddedDocumentBinaryObject").Text(); got != inv.PreviousHash {
		t.Errorf("PIH attachment = %q, want %q", got, inv.PreviousHash)
	}
}

func TestBuildInvoiceXMLTaxTotals(t *testing.T) {
	seller, buyer := testParties(t)
	inv := testInvoice(t)
	zeroRated, err := invoice.NewLineItem("Exported goods",
		decimal.NewFromInt(1), decimal.NewFromInt(50),
		decimal.Zero, decimal.Zero, decimal.Zero)
	if err != nil {
		t.Fatalf("NewLineItem: %v", err)
	}
	if err := inv.AddLine(zeroRated); err != nil {
		t.Fatalf("AddLine: %v", err)
	}

	doc, err := BuildInvoiceXML(inv, seller, buyer)
	if err != nil {
		t.Fatalf("BuildInvoiceXML: %v", err)
	}

	totals := doc.FindElements("/Invoice/cac:TaxTotal")
	if len(totals) != 2 {
		t.Fatalf("found %d TaxTotal elements, want 2", len(totals))
	}
	if got := totals[0].FindElement("cbc:TaxAmount").Text(); got != "27.00" {
		t.Errorf("grand TaxAmount = %q, want 27.00", got)
	}

	subtotals := totals[1].FindElements("cac:TaxSubtotal")
	if len(subtotals) != 2 {
		t.Fatalf("found %d TaxSubtotal elements, want 2", len(subtotals))
	}
	// breakdown ordered by ascending rate: zero rated first
	if id := subtotals[0].FindElement("cac:TaxCategory/cbc:ID").Text(); id != "Z" {
		t.Errorf("first subtotal category = %q, want Z", id)
	}
	if id := subtotals[1].FindElement("cac:TaxCategory/cbc:ID").Text(); id != "S" {
		t.Errorf("second subtotal category = %q, want S", id)
	}
	if got := subtotals[1].FindElement("cbc:TaxableAmount").Text(); got != "180.00" {
		t.Errorf("standard rate taxable amount = %q, want 180.00", got)
	}
}

func TestBuildInvoiceXMLIsDeterministic(t *testing.T) {
	seller, buyer := testParties(t)
	inv := testInvoice(t)

	first, err := BuildInvoiceXML(inv, seller, buyer)
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	second, err := BuildInvoiceXML(inv, seller, buyer)
	if err != nil {
		t.Fatalf("second build: %v", err)
	}

	a, err := first.WriteToString()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	b, err := second.WriteToString()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if a != b {
		t.Error("identical invoice produced different XML")
	}
}

func TestBuildInvoiceXMLRejectsIncompleteInput(t *testing.T) {
	seller, buyer := testParties(t)
	inv := testInvoice(t)

	if _, err := BuildInvoiceXML(nil, seller, buyer); err == nil {
		t.Error("expected error for nil invoice")
	}
	if _, err := BuildInvoiceXML(inv, nil, buyer); err == nil {
		t.Error("expected error for nil seller")
	}

	unregistered := *seller
	unregistered.VATNumber = ""
	if _, err := BuildInvoiceXML(inv, &unregistered, buyer); err == nil {
		t.Error("expected error for seller without VAT number")
	}

	issue := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	empty, err := invoice.NewInvoice("INV-0002", "seller-id", "buyer-id", issue, issue)
	if err != nil {
		t.Fatalf("NewInvoice: %v", err)
	}
	if _, err := BuildInvoiceXML(empty, seller, buyer); err == nil {
		t.Error("expected error for invoice without lines")
	}
}
