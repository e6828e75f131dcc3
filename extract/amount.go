package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Amount plausibility bounds, in cents. Figures outside this window are
// almost always fees, dates mistaken for money, or parcel numbers.
const (
	minAmountCents = 100_000         // $1,000.00
	maxAmountCents = 1_000_000_000   // $10,000,000.00
)

// defaultAmountPatterns are tried in order; the first labeled match wins.
// Group 1 must capture the numeric figure.
var defaultAmountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)lien\s+amount\s*(?:of|:)?\s*\$?\s*([\d,]+(?:\.\d{1,2})?)`),
	regexp.MustCompile(`(?i)amount\s+(?:due|claimed|owed)\s*(?:of|:)?\s*\$?\s*([\d,]+(?:\.\d{1,2})?)`),
	regexp.MustCompile(`(?i)(?:in\s+the\s+)?(?:sum|amount)\s+of\s*\$?\s*([\d,]+(?:\.\d{1,2})?)`),
	regexp.MustCompile(`(?i)(?:total|claim|judgment|balance)\s*(?:of|:)?\s*\$?\s*([\d,]+(?:\.\d{1,2})?)`),
}

// dollarFigureRe finds every dollar figure for the largest-figure fallback.
var dollarFigureRe = regexp.MustCompile(`\$\s*([\d,]+(?:\.\d{1,2})?)`)

// parseAmount finds the lien amount in cents, or 0 when nothing plausible
// appears. Labeled figures beat the fallback even when smaller.
func parseAmount(text string, labeled []*regexp.Regexp) int64 {
	for _, re := range labeled {
		if m := re.FindStringSubmatch(text); m != nil {
			if cents := parseCents(m[1]); plausible(cents) {
				return cents
			}
		}
	}

	var best int64
	for _, m := range dollarFigureRe.FindAllStringSubmatch(text, -1) {
		if cents := parseCents(m[1]); plausible(cents) && cents > best {
			best = cents
		}
	}
	return best
}

func plausible(cents int64) bool {
	return cents >= minAmountCents && cents <= maxAmountCents
}

// parseCents converts a figure like "25,000.00" or "25000" to cents.
// Returns 0 on anything unparsable.
func parseCents(figure string) int64 {
	figure = strings.ReplaceAll(strings.TrimSpace(figure), ",", "")
	if figure == "" {
		return 0
	}
	whole, frac := figure, ""
	if i := strings.IndexByte(figure, '.'); i >= 0 {
		whole, frac = figure[:i], figure[i+1:]
	}
	dollars, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || dollars < 0 {
		return 0
	}
	cents := dollars * 100
	switch len(frac) {
	case 0:
	case 1:
		d, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0
		}
		cents += d * 10
	case 2:
		d, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0
		}
		cents += d
	default:
		return 0
	}
	return cents
}
