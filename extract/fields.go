package extract

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Patterns holds the field-parsing regexes. Sources can override any of
// them by name through their patterns_json config.
type Patterns struct {
	Amount   []*regexp.Regexp
	Debtor   *regexp.Regexp
	Creditor *regexp.Regexp
	Date     *regexp.Regexp
}

// Override names accepted in a source's patterns_json.
const (
	patternAmount   = "amount"
	patternDebtor   = "debtor"
	patternCreditor = "creditor"
	patternDate     = "date"
)

// DefaultPatterns returns the built-in field patterns, tuned for county
// recorder lien documents.
func DefaultPatterns() Patterns {
	return Patterns{
		Amount:   defaultAmountPatterns,
		Debtor:   regexp.MustCompile(`(?im)^\s*(?:debtor|patient|name|against)\s*[:\-]\s*(.+)$`),
		Creditor: regexp.MustCompile(`(?im)^\s*(?:creditor|claimant|lienholder|lien\s+claimant|provider|in\s+favor\s+of)\s*[:\-]\s*(.+)$`),
		Date:     regexp.MustCompile(`(?i)record(?:ed|ing)(?:\s+(?:on|date))?\s*[:\s]\s*(\d{1,2}/\d{1,2}/\d{4})`),
	}
}

// Merge applies JSON overrides (name -> regex). Names outside the known
// set and regexes that fail to compile are logged and skipped.
func (p Patterns) Merge(patternsJSON string, logger *slog.Logger) Patterns {
	if patternsJSON == "" || patternsJSON == "{}" {
		return p
	}
	var overrides map[string]string
	if err := json.Unmarshal([]byte(patternsJSON), &overrides); err != nil {
		logger.Warn("extract: invalid patterns_json, using defaults", "error", err)
		return p
	}
	for name, expr := range overrides {
		re, err := regexp.Compile(expr)
		if err != nil {
			logger.Warn("extract: pattern override does not compile",
				"pattern", name, "error", err)
			continue
		}
		switch name {
		case patternAmount:
			p.Amount = []*regexp.Regexp{re}
		case patternDebtor:
			p.Debtor = re
		case patternCreditor:
			p.Creditor = re
		case patternDate:
			p.Date = re
		default:
			logger.Warn("extract: unknown pattern override", "pattern", name)
		}
	}
	return p
}

// docTypeWords disqualify an all-caps line from being read as a person's
// name: they are headings and boilerplate in recorded documents.
var docTypeWords = []string{
	"LIEN", "NOTICE", "CLAIM", "MEDICAL", "HOSPITAL", "HEALTH",
	"RECORDER", "RECORDING", "COUNTY", "STATE", "ARIZONA", "OFFICIAL",
	"DOCUMENT", "PAGE", "UNOFFICIAL", "COPY", "CENTER", "LLC", "INC",
	"CORPORATION", "DEPARTMENT", "WHEN", "RETURN",
}

var (
	allCapsNameRe   = regexp.MustCompile(`^[A-Z][A-Z.'\-]*(?:\s+[A-Z][A-Z.'\-]*){1,3}$`)
	titleCaseNameRe = regexp.MustCompile(`^[A-Z][a-z.'\-]+\s+[A-Z][a-z.'\-]+$`)

	streetAddrRe = regexp.MustCompile(`(?i)^\d+\s+[NSEW]?\.?\s*[\w.\- ]+\b(?:st|street|ave|avenue|rd|road|dr|drive|blvd|boulevard|ln|lane|way|ct|court|pl|place|cir|circle|trl|trail|pkwy|parkway)\b\.?(?:\s|,|$)`)
	cityStateZipRe = regexp.MustCompile(`^[A-Za-z.\- ]+,?\s+[A-Z]{2}\s+\d{5}(?:-\d{4})?$`)

	anyDateRe = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
)

// ParseFields parses a lien candidate out of flat document text. Returns
// nil when no plausible amount is present: a lien record without an amount
// cannot be filtered or synced, so it is not worth keeping.
func (p Patterns) ParseFields(text string) *Candidate {
	amount := parseAmount(text, p.Amount)
	if amount == 0 {
		return nil
	}

	c := &Candidate{AmountCents: amount}
	lines := splitLines(text)

	name, nameIdx := p.findName(text, lines, p.Debtor)
	c.DebtorName = capField(name)
	c.CreditorName = capField(labelMatch(text, p.Creditor))
	start := 0
	if nameIdx >= 0 {
		start = nameIdx + 1
	}
	debtorAddr, creditorAddr := findAddresses(lines, start)
	c.DebtorAddress = capField(debtorAddr)
	c.CreditorAddress = capField(creditorAddr)
	c.RecordedDate = p.findDate(text)
	return c
}

// maxFieldLen bounds every extracted string field before storage. OCR and
// label captures can run away on garbled documents.
const maxFieldLen = 256

func capField(s string) string {
	if len(s) <= maxFieldLen {
		return s
	}
	cut := maxFieldLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// findName tries the label pattern, then an all-caps line near the top,
// then a plain title-case two-word line. The second return is the index of
// the matched line, or -1 when no name was found.
func (p Patterns) findName(text string, lines []string, label *regexp.Regexp) (string, int) {
	if name := labelMatch(text, label); name != "" {
		return name, lineIndexOf(lines, name)
	}

	top := lines
	if len(top) > 15 {
		top = top[:15]
	}
	for i, line := range top {
		if allCapsNameRe.MatchString(line) && !containsDocTypeWord(line) {
			return line, i
		}
	}
	for i, line := range top {
		if titleCaseNameRe.MatchString(line) {
			return line, i
		}
	}
	return "", -1
}

func lineIndexOf(lines []string, name string) int {
	for i, line := range lines {
		if strings.Contains(line, name) {
			return i
		}
	}
	return -1
}

func labelMatch(text string, re *regexp.Regexp) string {
	if re == nil {
		return ""
	}
	if m := re.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func containsDocTypeWord(line string) bool {
	for _, w := range strings.Fields(line) {
		w = strings.Trim(w, ".,:;")
		for _, bad := range docTypeWords {
			if w == bad {
				return true
			}
		}
	}
	return false
}

// findAddresses collects street-address blocks starting at the line after
// the located debtor name (start is 0 when no name line was found). The
// first block is taken as the debtor's, the second as the creditor's,
// matching how recorded liens lay the parties out. Anchoring to the name
// line keeps return-to mailing blocks above it out of the record.
func findAddresses(lines []string, start int) (debtor, creditor string) {
	if start < 0 {
		start = 0
	}
	var blocks []string
	for i := start; i < len(lines); i++ {
		line := lines[i]
		if !streetAddrRe.MatchString(line) {
			continue
		}
		addr := line
		if i+1 < len(lines) && cityStateZipRe.MatchString(lines[i+1]) {
			addr += ", " + lines[i+1]
		}
		blocks = append(blocks, addr)
		if len(blocks) == 2 {
			break
		}
	}
	if len(blocks) > 0 {
		debtor = blocks[0]
	}
	if len(blocks) > 1 {
		creditor = blocks[1]
	}
	return debtor, creditor
}

// findDate prefers an explicitly labeled recording date, falling back to
// the first date anywhere in the document. Output is YYYY-MM-DD.
func (p Patterns) findDate(text string) string {
	if p.Date != nil {
		if m := p.Date.FindStringSubmatch(text); m != nil {
			if iso := toISODate(m[1]); iso != "" {
				return iso
			}
		}
	}
	if m := anyDateRe.FindStringSubmatch(text); m != nil {
		return toISODate(m[0])
	}
	return ""
}

// toISODate converts MM/DD/YYYY to YYYY-MM-DD, rejecting impossible
// month/day values.
func toISODate(mdY string) string {
	m := anyDateRe.FindStringSubmatch(mdY)
	if m == nil {
		return ""
	}
	month, day, year := m[1], m[2], m[3]
	if len(month) == 1 {
		month = "0" + month
	}
	if len(day) == 1 {
		day = "0" + day
	}
	if month > "12" || month == "00" || day > "31" || day == "00" {
		return ""
	}
	return fmt.Sprintf("%s-%s-%s", year, month, day)
}

func splitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(raw))
	for _, line := range raw {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
