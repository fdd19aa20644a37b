package invoice

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testLine(t *testing.T) LineItem {
	t.Helper()
	line, err := NewLineItem("Consulting services",
		decimal.NewFromInt(2), decimal.NewFromInt(100),
		decimal.NewFromInt(10), decimal.Zero, decimal.NewFromInt(15))
	if err != nil {
		t.Fatalf("NewLineItem: %v", err)
	}
	return line
}

func draftInvoice(t *testing.T) *Invoice {
	t.Helper()
	issue := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	inv, err := NewInvoice("INV-0001", "seller-id", "buyer-id", issue, issue)
	if err != nil {
		t.Fatalf("NewInvoice: %v", err)
	}
	return inv
}

func TestNewLineItemAmounts(t *testing.T) {
	cases := []struct {
		name         string
		qty, price   int64
		disc, margin int64
		vat          int64
		wantNet      string
		wantTotal    string
		wantVAT      string
		wantWithVAT  string
	}{
		{"discounted standard rate", 2, 100, 10, 0, 15, "90.00", "180.00", "27.00", "207.00"},
		{"no discount", 1, 100, 0, 0, 15, "100.00", "100.00", "15.00", "115.00"},
		{"discount and margin", 1, 100, 10, 20, 15, "108.00", "108.00", "16.20", "124.20"},
		{"zero rated", 3, 50, 0, 0, 0, "50.00", "150.00", "0.00", "150.00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			line, err := NewLineItem("item",
				decimal.NewFromInt(tc.qty), decimal.NewFromInt(tc.price),
				decimal.NewFromInt(tc.disc), decimal.NewFromInt(tc.margin),
				decimal.NewFromInt(tc.vat))
			if err != nil {
				t.Fatalf("NewLineItem: %v", err)
			}
			if got := line.NetUnitPrice.StringFixed(2); got != tc.wantNet {
				t.Errorf("net unit price = %s, want %s", got, tc.wantNet)
			}
			if got := line.LineTotal.StringFixed(2); got != tc.wantTotal {
				t.Errorf("line total = %s, want %s", got, tc.wantTotal)
			}
			if got := line.VATAmount.StringFixed(2); got != tc.wantVAT {
				t.Errorf("VAT amount = %s, want %s", got, tc.wantVAT)
			}
			if got := line.TotalWithVAT.StringFixed(2); got != tc.wantWithVAT {
				t.Errorf("total with VAT = %s, want %s", got, tc.wantWithVAT)
			}
		})
	}
}

func TestNewLineItemValidation(t *testing.T) {
	one := decimal.NewFromInt(1)
	cases := []struct {
		name                                        string
		desc                                        string
		qty, price, disc, margin, vat               decimal.Decimal
	}{
		{"empty description", "", one, one, decimal.Zero, decimal.Zero, decimal.Zero},
		{"zero quantity", "item", decimal.Zero, one, decimal.Zero, decimal.Zero, decimal.Zero},
		{"negative price", "item", one, decimal.NewFromInt(-1), decimal.Zero, decimal.Zero, decimal.Zero},
		{"discount above 100", "item", one, one, decimal.NewFromInt(101), decimal.Zero, decimal.Zero},
		{"negative vat", "item", one, one, decimal.Zero, decimal.Zero, decimal.NewFromInt(-1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewLineItem(tc.desc, tc.qty, tc.price, tc.disc, tc.margin, tc.vat); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestRecomputeTotals(t *testing.T) {
	inv := draftInvoice(t)
	if err := inv.AddLine(testLine(t)); err != nil {
		t.Fatalf("AddLine: %v", err)
	}

	if got := inv.Subtotal.StringFixed(2); got != "180.00" {
		t.Errorf("subtotal = %s, want 180.00", got)
	}
	if got := inv.VATTotal.StringFixed(2); got != "27.00" {
		t.Errorf("VAT total = %s, want 27.00", got)
	}
	if got := inv.Total.StringFixed(2); got != "207.00" {
		t.Errorf("total = %s, want 207.00", got)
	}
	if err := inv.ValidateForCertification(); err != nil {
		t.Errorf("ValidateForCertification: %v", err)
	}
}

func TestValidateForCertification(t *testing.T) {
	t.Run("no lines", func(t *testing.T) {
		inv := draftInvoice(t)
		if err := inv.ValidateForCertification(); !errors.Is(err, ErrNoLineItems) {
			t.Fatalf("expected ErrNoLineItems, got %v", err)
		}
	})

	t.Run("tampered total", func(t *testing.T) {
		inv := draftInvoice(t)
		if err := inv.AddLine(testLine(t)); err != nil {
			t.Fatalf("AddLine: %v", err)
		}
		inv.Total = inv.Total.Add(decimal.NewFromFloat(0.01))
		if err := inv.ValidateForCertification(); !errors.Is(err, ErrTotalsMismatch) {
			t.Fatalf("expected ErrTotalsMismatch, got %v", err)
		}
	})
}

func TestTransitions(t *testing.T) {
	cases := []struct {
		from Status
		to   Status
		ok   bool
	}{
		{StatusDraft, StatusIssued, true},
		{StatusDraft, StatusCancelled, true},
		{StatusDraft, StatusPaid, false},
		{StatusIssued, StatusPaid, true},
		{StatusIssued, StatusCancelled, true},
		{StatusIssued, StatusDraft, false},
		{StatusCertified, StatusPaid, true},
		{StatusCertified, StatusCancelled, true},
		{StatusCertified, StatusDraft, false},
		{StatusPaid, StatusCancelled, false},
		{StatusCancelled, StatusDraft, false},
	}
	for _, tc := range cases {
		inv := draftInvoice(t)
		inv.Status = tc.from
		err := inv.Transition(tc.to)
		if tc.ok && err != nil {
			t.Errorf("%s -> %s: unexpected error %v", tc.from, tc.to, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s -> %s: expected ErrInvalidTransition, got %v", tc.from, tc.to, err)
		}
	}
}

func TestTransitionToCertifiedRequiresPipeline(t *testing.T) {
	inv := draftInvoice(t)
	if err := inv.Transition(StatusCertified); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestMarkCertified(t *testing.T) {
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	t.Run("from draft", func(t *testing.T) {
		inv := draftInvoice(t)
		if err := inv.MarkCertified("qr", "hash", "<xml/>", at); err != nil {
			t.Fatalf("MarkCertified: %v", err)
		}
		if inv.Status != StatusCertified {
			t.Errorf("status = %s, want certified", inv.Status)
		}
		if inv.CertifiedAt == nil || !inv.CertifiedAt.Equal(at) {
			t.Error("CertifiedAt not recorded")
		}
	})

	t.Run("idempotent on identical artifacts", func(t *testing.T) {
		inv := draftInvoice(t)
		if err := inv.MarkCertified("qr", "hash", "<xml/>", at); err != nil {
			t.Fatalf("first MarkCertified: %v", err)
		}
		if err := inv.MarkCertified("qr", "hash", "<xml/>", at.Add(time.Hour)); err != nil {
			t.Fatalf("repeated MarkCertified with identical artifacts: %v", err)
		}
	})

	t.Run("rejects differing artifacts", func(t *testing.T) {
		inv := draftInvoice(t)
		if err := inv.MarkCertified("qr", "hash", "<xml/>", at); err != nil {
			t.Fatalf("MarkCertified: %v", err)
		}
		if err := inv.MarkCertified("other-qr", "other-hash", "<xml2/>", at); !errors.Is(err, ErrCertifiedImmutable) {
			t.Fatalf("expected ErrCertifiedImmutable, got %v", err)
		}
	})

	t.Run("not from terminal status", func(t *testing.T) {
		inv := draftInvoice(t)
		inv.Status = StatusCancelled
		if err := inv.MarkCertified("qr", "hash", "<xml/>", at); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
	})
}

func TestIsCertified(t *testing.T) {
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	inv := draftInvoice(t)
	if inv.IsCertified() {
		t.Error("draft reported as certified")
	}

	if err := inv.MarkCertified("qr", "hash", "<xml/>", at); err != nil {
		t.Fatalf("MarkCertified: %v", err)
	}
	if !inv.IsCertified() {
		t.Error("certified invoice not reported as certified")
	}

	// certification artifacts survive later lifecycle transitions
	if err := inv.Transition(StatusPaid); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if !inv.IsCertified() {
		t.Error("paid invoice lost its certified state")
	}

	// a cancelled draft was never certified
	cancelled := draftInvoice(t)
	if err := cancelled.Transition(StatusCancelled); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if cancelled.IsCertified() {
		t.Error("cancelled draft reported as certified")
	}
}

func TestCertifiedInvoiceRejectsLineChanges(t *testing.T) {
	inv := draftInvoice(t)
	if err := inv.AddLine(testLine(t)); err != nil {
		t.Fatalf("AddLine: %v", err)
	}
	if err := inv.MarkCertified("qr", "hash", "<xml/>", time.Now()); err != nil {
		t.Fatalf("MarkCertified: %v", err)
	}
	if err := inv.AddLine(testLine(t)); !errors.Is(err, ErrCertifiedImmutable) {
		t.Fatalf("expected ErrCertifiedImmutable, got %v", err)
	}
}
