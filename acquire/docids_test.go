package acquire

import (
	"bytes"
	"reflect"
	"testing"

	"golang.org/x/net/html"
)

func TestScanDocIDs(t *testing.T) {
	// WHAT: IDs come out of anchor text, anchor targets, and table cells,
	// deduplicated in document order; short and non-numeric runs are noise.
	page := []byte(`<html><body>
<table>
  <tr><td><a href="unofficialdocs.aspx?rec=20260812001234">20260812001234</a></td><td>08/12/2026</td></tr>
  <tr><td>20260812005678</td><td>08/12/2026</td></tr>
  <tr><td>42</td><td>page 2 of 3</td></tr>
</table>
<a href="docs.aspx?rec=20260812009999">view</a>
<script>var junk = 111111112222222233333333;</script>
</body></html>`)

	got := scanDocIDs(page, "")
	want := []string{"20260812001234", "20260812005678", "20260812009999"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestScanDocIDsBounds(t *testing.T) {
	page := []byte(`<table>
<tr><td>1234567</td></tr>
<tr><td>12345678</td></tr>
<tr><td>1234567890123456</td></tr>
<tr><td>12345678901234567</td></tr>
</table>`)
	got := scanDocIDs(page, "")
	want := []string{"12345678", "1234567890123456"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestScanDocIDsSelector(t *testing.T) {
	// WHAT: A results selector scopes the scan to matching subtrees, so
	// plausible-looking numbers elsewhere on the page are ignored. A
	// selector that matches nothing falls back to the whole page.
	page := []byte(`<html><body>
<div class="sidebar"><a href="?rec=99990000111122">99990000111122</a></div>
<table id="results">
  <tr><td>20260812001234</td></tr>
  <tr><td>20260812005678</td></tr>
</table>
</body></html>`)

	got := scanDocIDs(page, "table#results")
	want := []string{"20260812001234", "20260812005678"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("scoped scan got %v, want %v", got, want)
	}

	got = scanDocIDs(page, "div.no-such-class")
	if len(got) != 3 {
		t.Errorf("fallback scan got %v, want all 3 ids", got)
	}
}

func TestSelectorRoots(t *testing.T) {
	page := []byte(`<html><body>
<div class="wrap"><table class="grid" data-kind="results"><tr><td>x</td></tr></table></div>
<table class="grid"><tr><td>y</td></tr></table>
</body></html>`)
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		selector string
		want     int
	}{
		{"table.grid", 2},
		{"div.wrap table.grid", 1},
		{"table[data-kind=results]", 1},
		{"table[data-kind]", 1},
		{"#nope", 0},
	}
	for _, tc := range cases {
		if got := len(selectorRoots(doc, tc.selector)); got != tc.want {
			t.Errorf("selectorRoots(%q) = %d matches, want %d", tc.selector, got, tc.want)
		}
	}
}

func TestFindNextHref(t *testing.T) {
	page := []byte(`<html><body>
<a id="lnkPrev" href="page0.aspx">Prev</a>
<a id="lnkNext" href="page2.aspx">Next</a>
</body></html>`)

	got := findNextHref(page, "a#lnkNext", "aspNetDisabled", "https://recorder.example.gov/search/page1.aspx")
	want := "https://recorder.example.gov/search/page2.aspx"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFindNextHrefDisabled(t *testing.T) {
	// WHAT: The disabled class on the next link means the last page.
	page := []byte(`<a id="lnkNext" class="btn aspNetDisabled" href="page2.aspx">Next</a>`)
	if got := findNextHref(page, "a#lnkNext", "aspNetDisabled", "https://x.test/"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestFindNextHrefByText(t *testing.T) {
	// WHAT: Without a selector, an anchor labeled "Next" is the fallback.
	page := []byte(`<a href="/results?page=2">Next</a>`)
	got := findNextHref(page, "", "", "https://x.test/results?page=1")
	if got != "https://x.test/results?page=2" {
		t.Errorf("got %q", got)
	}
}

func TestFindNextHrefMissing(t *testing.T) {
	page := []byte(`<a id="lnkPrev" href="page0.aspx">Prev</a>`)
	if got := findNextHref(page, "a#lnkNext", "", "https://x.test/"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}
