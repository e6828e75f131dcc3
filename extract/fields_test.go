package extract

import (
	"log/slog"
	"strings"
	"testing"
)

func TestParseFieldsLabeled(t *testing.T) {
	// WHAT: The canonical labeled document parses every field.
	text := `NOTICE AND CLAIM OF LIEN
Recorded: 08/12/2026
Debtor: Jane Doe
1234 E Main St
Phoenix, AZ 85004
Creditor: Desert Valley Medical
500 N Central Ave
Phoenix, AZ 85012
Amount due: $25,000.00`

	c := DefaultPatterns().ParseFields(text)
	if c == nil {
		t.Fatal("got nil candidate")
	}
	if c.AmountCents != 2_500_000 {
		t.Errorf("amount: got %d, want 2500000", c.AmountCents)
	}
	if c.DebtorName != "Jane Doe" {
		t.Errorf("debtor: got %q", c.DebtorName)
	}
	if c.CreditorName != "Desert Valley Medical" {
		t.Errorf("creditor: got %q", c.CreditorName)
	}
	if c.DebtorAddress != "1234 E Main St, Phoenix, AZ 85004" {
		t.Errorf("debtor address: got %q", c.DebtorAddress)
	}
	if c.CreditorAddress != "500 N Central Ave, Phoenix, AZ 85012" {
		t.Errorf("creditor address: got %q", c.CreditorAddress)
	}
	if c.RecordedDate != "2026-08-12" {
		t.Errorf("date: got %q", c.RecordedDate)
	}
}

func TestParseFieldsNoAmount(t *testing.T) {
	// WHAT: A document without a plausible amount yields no candidate.
	// WHY: Amount is the one field the threshold filter cannot live without.
	c := DefaultPatterns().ParseFields("Debtor: Jane Doe\nrecording fee $30.00")
	if c != nil {
		t.Fatalf("got %+v, want nil", c)
	}
}

func TestFindNameAllCapsFallback(t *testing.T) {
	// WHAT: Without a label, an all-caps line near the top is taken as the
	// debtor, skipping document-heading words.
	text := `NOTICE OF MEDICAL LIEN
MARICOPA COUNTY RECORDER
JOHN Q SMITH
in the sum of $12,000.00`

	c := DefaultPatterns().ParseFields(text)
	if c == nil {
		t.Fatal("got nil candidate")
	}
	if c.DebtorName != "JOHN Q SMITH" {
		t.Errorf("debtor: got %q, want JOHN Q SMITH", c.DebtorName)
	}
}

func TestFindNameTitleCaseFallback(t *testing.T) {
	text := "Notice of Lien\nJane Doe\nin the amount of $5,000.00"
	c := DefaultPatterns().ParseFields(text)
	if c == nil {
		t.Fatal("got nil candidate")
	}
	if c.DebtorName != "Jane Doe" {
		t.Errorf("debtor: got %q, want Jane Doe", c.DebtorName)
	}
}

func TestParseFieldsCapsLongValues(t *testing.T) {
	// WHAT: Extracted fields are truncated before they reach storage.
	// WHY: A garbled OCR line can capture the rest of the document into a
	// single label match.
	text := "Debtor: " + strings.Repeat("A", 100_000) + "\nin the sum of $5,000.00"
	c := DefaultPatterns().ParseFields(text)
	if c == nil {
		t.Fatal("got nil candidate")
	}
	if len(c.DebtorName) != maxFieldLen {
		t.Errorf("debtor length: got %d, want %d", len(c.DebtorName), maxFieldLen)
	}
}

func TestFindAddressesSkipReturnToBlock(t *testing.T) {
	// WHAT: The address scan starts below the located debtor name, so the
	// recorder's "return to" mailing block above it is not mistaken for the
	// debtor's address.
	text := `WHEN RECORDED RETURN TO
500 N Central Ave
Phoenix, AZ 85012
Debtor: Jane Doe
1234 E Main St
Phoenix, AZ 85004
in the sum of $5,000.00`

	c := DefaultPatterns().ParseFields(text)
	if c == nil {
		t.Fatal("got nil candidate")
	}
	if c.DebtorAddress != "1234 E Main St, Phoenix, AZ 85004" {
		t.Errorf("debtor address: got %q, want the block after the name", c.DebtorAddress)
	}
	if c.CreditorAddress != "" {
		t.Errorf("creditor address: got %q, want empty", c.CreditorAddress)
	}
}

func TestToISODate(t *testing.T) {
	cases := []struct{ in, want string }{
		{"08/12/2026", "2026-08-12"},
		{"1/2/2026", "2026-01-02"},
		{"13/01/2026", ""},
		{"12/32/2026", ""},
		{"not a date", ""},
	}
	for _, tc := range cases {
		if got := toISODate(tc.in); got != tc.want {
			t.Errorf("toISODate(%q): got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPatternOverrides(t *testing.T) {
	// WHAT: A source can replace the debtor pattern; broken or unknown
	// overrides leave the defaults untouched.
	logger := slog.Default()

	p := DefaultPatterns().Merge(`{"debtor":"(?im)^obligor\\s*:\\s*(.+)$"}`, logger)
	c := p.ParseFields("Obligor: Jane Doe\nsum of $5,000.00")
	if c == nil || c.DebtorName != "Jane Doe" {
		t.Fatalf("override not applied: %+v", c)
	}

	p = DefaultPatterns().Merge(`{"debtor":"(unclosed"}`, logger)
	c = p.ParseFields("Debtor: Jane Doe\nsum of $5,000.00")
	if c == nil || c.DebtorName != "Jane Doe" {
		t.Fatalf("broken override should keep default: %+v", c)
	}

	p = DefaultPatterns().Merge(`{"nonsense":".*"}`, logger)
	c = p.ParseFields("Debtor: Jane Doe\nsum of $5,000.00")
	if c == nil || c.DebtorName != "Jane Doe" {
		t.Fatalf("unknown override should be ignored: %+v", c)
	}
}
