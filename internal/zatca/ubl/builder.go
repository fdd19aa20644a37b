// Package ubl renders invoice data into the UBL 2.1 XML document shape
// ZATCA expects. Element order and namespace prefixes follow the published
// schema exactly: canonicalization is order-sensitive at the byte level, so
// a reordered but semantically equal tree would produce a different hash.
package ubl

import (
	"errors"
	"fmt"
	"sort"

	"github.com/beevik/etree"
	"github.com/sahlsoft/erp-fatoora/internal/domain/invoice"
	"github.com/sahlsoft/erp-fatoora/internal/domain/party"
	"github.com/shopspring/decimal"
)

// UBL namespaces
const (
	NamespaceInvoice = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	NamespaceCAC     = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	NamespaceCBC     = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
	NamespaceExt     = "urn:oasis:names:specification:ubl:schema:xsd:CommonExtensionComponents-2"
)

const profileID = "reporting:1.0"

// BuildInvoiceXML renders the unsigned invoice document. It is a pure data
// transformation: the same invoice always yields a byte-identical tree, and
// no timestamps are generated here.
func BuildInvoiceXML(inv *invoice.Invoice, seller, buyer *party.Party) (*etree.Document, error) {
	if inv == nil {
		return nil, errors.New("ubl: invoice is required")
	}
	if seller == nil || buyer == nil {
		return nil, errors.New("ubl: seller and buyer are required")
	}
	if seller.VATNumber == "" {
		return nil, errors.New("ubl: seller VAT number is required")
	}
	if len(inv.Lines) == 0 {
		return nil, errors.New("ubl: invoice has no line items")
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("Invoice")
	root.CreateAttr("xmlns", NamespaceInvoice)
	root.CreateAttr("xmlns:cac", NamespaceCAC)
	root.CreateAttr("xmlns:cbc", NamespaceCBC)
	root.CreateAttr("xmlns:ext", NamespaceExt)

	text(root, "cbc:ProfileID", profileID)
	text(root, "cbc:ID", inv.Number)
	text(root, "cbc:UUID", inv.UUID)
	text(root, "cbc:IssueDate", inv.IssueInstant().Format("2006-01-02"))
	text(root, "cbc:IssueTime", inv.IssueInstant().Format("15:04:05"))

	typeCode := text(root, "cbc:InvoiceTypeCode", inv.TypeCode)
	typeCode.CreateAttr("name", inv.SubtypeCode)

	if inv.Notes != "" {
		text(root, "cbc:Note", inv.Notes)
	}
	text(root, "cbc:DocumentCurrencyCode", inv.Currency)
	text(root, "cbc:TaxCurrencyCode", inv.Currency)

	icv := root.CreateElement("cac:AdditionalDocumentReference")
	text(icv, "cbc:ID", "ICV")
	text(icv, "cbc:UUID", fmt.Sprintf("%d", inv.Counter))

	if inv.PreviousHash != "" {
		pih := root.CreateElement("cac:AdditionalDocumentReference")
		text(pih, "cbc:ID", "PIH")
		att := pih.CreateElement("cac:Attachment")
		obj := text(att, "cbc:EmbeddedDocumentBinaryObject", inv.PreviousHash)
		obj.CreateAttr("mimeCode", "text/plain")
	}

	buildParty(root, "cac:AccountingSupplierParty", seller)
	buildParty(root, "cac:AccountingCustomerParty", buyer)

	delivery := root.CreateElement("cac:Delivery")
	text(delivery, "cbc:ActualDeliveryDate", inv.SupplyDate.UTC().Format("2006-01-02"))

	payment := root.CreateElement("cac:PaymentMeans")
	text(payment, "cbc:PaymentMeansCode", "10")

	buildTaxTotals(root, inv)
	buildMonetaryTotal(root, inv)

	for idx, line := range inv.Lines {
		buildLine(root, inv.Currency, idx+1, line)
	}

	return doc, nil
}

func buildParty(root *etree.Element, tag string, p *party.Party) {
	wrapper := root.CreateElement(tag)
	el := wrapper.CreateElement("cac:Party")

	if p.CRNumber != "" {
		ident := el.CreateElement("cac:PartyIdentification")
		id := text(ident, "cbc:ID", p.CRNumber)
		id.CreateAttr("schemeID", "CRN")
	}

	addr := el.CreateElement("cac:PostalAddress")
	text(addr, "cbc:StreetName", p.Street)
	text(addr, "cbc:CitySubdivisionName", p.District)
	text(addr, "cbc:CityName", p.City)
	text(addr, "cbc:PostalZone", p.PostalCode)
	country := addr.CreateElement("cac:Country")
	text(country, "cbc:IdentificationCode", "SA")

	if p.VATNumber != "" {
		taxScheme := el.CreateElement("cac:PartyTaxScheme")
		text(taxScheme, "cbc:CompanyID", p.VATNumber)
		scheme := taxScheme.CreateElement("cac:TaxScheme")
		text(scheme, "cbc:ID", "VAT")
	}

	legal := el.CreateElement("cac:PartyLegalEntity")
	text(legal, "cbc:RegistrationName", p.Name)
}

// buildTaxTotals emits the two TaxTotal elements ZATCA requires: the grand
// VAT amount alone, then the per-rate breakdown.
func buildTaxTotals(root *etree.Element, inv *invoice.Invoice) {
	grand := root.CreateElement("cac:TaxTotal")
	amount(grand, "cbc:TaxAmount", inv.Currency, inv.VATTotal)

	breakdown := root.CreateElement("cac:TaxTotal")
	amount(breakdown, "cbc:TaxAmount", inv.Currency, inv.VATTotal)

	for _, group := range groupByRate(inv.Lines) {
		sub := breakdown.CreateElement("cac:TaxSubtotal")
		amount(sub, "cbc:TaxableAmount", inv.Currency, group.taxable)
		amount(sub, "cbc:TaxAmount", inv.Currency, group.tax)
		category := sub.CreateElement("cac:TaxCategory")
		text(category, "cbc:ID", categoryID(group.rate))
		text(category, "cbc:Percent", group.rate.StringFixed(2))
		scheme := category.CreateElement("cac:TaxScheme")
		text(scheme, "cbc:ID", "VAT")
	}
}

func buildMonetaryTotal(root *etree.Element, inv *invoice.Invoice) {
	total := root.CreateElement("cac:LegalMonetaryTotal")
	amount(total, "cbc:LineExtensionAmount", inv.Currency, inv.Subtotal)
	amount(total, "cbc:TaxExclusiveAmount", inv.Currency, inv.Subtotal)
	amount(total, "cbc:TaxInclusiveAmount", inv.Currency, inv.Total)
	amount(total, "cbc:PayableAmount", inv.Currency, inv.Total)
}

func buildLine(root *etree.Element, currency string, number int, line invoice.LineItem) {
	el := root.CreateElement("cac:InvoiceLine")
	text(el, "cbc:ID", fmt.Sprintf("%d", number))
	qty := text(el, "cbc:InvoicedQuantity", line.Quantity.String())
	qty.CreateAttr("unitCode", "PCE")
	amount(el, "cbc:LineExtensionAmount", currency, line.LineTotal)

	taxTotal := el.CreateElement("cac:TaxTotal")
	amount(taxTotal, "cbc:TaxAmount", currency, line.VATAmount)
	amount(taxTotal, "cbc:RoundingAmount", currency, line.TotalWithVAT)

	item := el.CreateElement("cac:Item")
	text(item, "cbc:Name", line.Description)
	category := item.CreateElement("cac:ClassifiedTaxCategory")
	text(category, "cbc:ID", categoryID(line.VATRate))
	text(category, "cbc:Percent", line.VATRate.StringFixed(2))
	scheme := category.CreateElement("cac:TaxScheme")
	text(scheme, "cbc:ID", "VAT")

	price := el.CreateElement("cac:Price")
	amount(price, "cbc:PriceAmount", currency, line.NetUnitPrice)
}

type rateGroup struct {
	rate    decimal.Decimal
	taxable decimal.Decimal
	tax     decimal.Decimal
}

// groupByRate aggregates lines per VAT rate in ascending rate order so the
// breakdown is stable regardless of line order.
func groupByRate(lines []invoice.LineItem) []rateGroup {
	byKey := map[string]*rateGroup{}
	var keys []string
	for _, line := range lines {
		key := line.VATRate.StringFixed(2)
		g, ok := byKey[key]
		if !ok {
			g = &rateGroup{rate: line.VATRate, taxable: decimal.Zero, tax: decimal.Zero}
			byKey[key] = g
			keys = append(keys, key)
		}
		g.taxable = g.taxable.Add(line.LineTotal)
		g.tax = g.tax.Add(line.VATAmount)
	}
	sort.Slice(keys, func(a, b int) bool {
		return byKey[keys[a]].rate.LessThan(byKey[keys[b]].rate)
	})
	groups := make([]rateGroup, 0, len(keys))
	for _, key := range keys {
		groups = append(groups, *byKey[key])
	}
	return groups
}

// categoryID maps a VAT rate to the UNCL5305 tax category: S for standard
// rated lines, Z for zero rated ones.
func categoryID(rate decimal.Decimal) string {
	if rate.IsZero() {
		return "Z"
	}
	return "S"
}

func text(parent *etree.Element, tag, value string) *etree.Element {
	el := parent.CreateElement(tag)
	el.SetText(value)
	return el
}

func amount(parent *etree.Element, tag, currency string, value decimal.Decimal) *etree.Element {
	el := text(parent, tag, value.StringFixed(2))
	el.CreateAttr("currencyID", currency)
	return el
}
