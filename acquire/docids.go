package acquire

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document-ID shape: county recorder numbers are long digit runs. Anything
// shorter is a page number or a year; anything longer is a barcode.
const (
	minDocIDLen = 8
	maxDocIDLen = 16
)

var docIDRe = regexp.MustCompile(`^\d+$`)

// hrefIDRe pulls a document ID out of a link target like
// "unofficialdocs.aspx?rec=20260812001234".
var hrefIDRe = regexp.MustCompile(`(?i)[?&](?:rec|doc|id|docid)=(\d+)`)

// scanDocIDs walks a results page and collects candidate document IDs from
// anchor text, anchor targets, and table cells, deduplicated in document
// order. A non-empty selector scopes the scan to the matching subtrees;
// when nothing matches, the whole page is scanned so a stale selector
// degrades instead of silently discovering nothing.
func scanDocIDs(page []byte, selector string) []string {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil
	}

	roots := []*html.Node{doc}
	if selector != "" {
		if scoped := selectorRoots(doc, selector); len(scoped) > 0 {
			roots = scoped
		}
	}

	var ids []string
	seen := make(map[string]bool)
	add := func(id string) {
		if len(id) < minDocIDLen || len(id) > maxDocIDLen || !docIDRe.MatchString(id) {
			return
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			case atom.A:
				add(strings.TrimSpace(nodeText(n)))
				if href := attr(n, "href"); href != "" {
					if m := hrefIDRe.FindStringSubmatch(href); m != nil {
						add(m[1])
					}
				}
			case atom.Td, atom.Th:
				add(strings.TrimSpace(nodeText(n)))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, root := range roots {
		walk(root)
	}
	return ids
}

// findNextHref locates the next-page link for direct-strategy paging. The
// selector is limited to the "a#elementid" form; an empty selector matches
// any anchor whose text is "Next". A link carrying disabledClass means the
// last page has been reached.
func findNextHref(page []byte, selector, disabledClass, baseURL string) string {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return ""
	}
	wantID := strings.TrimPrefix(selector, "a#")

	var href string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if href != "" {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			matched := false
			if selector != "" {
				matched = attr(n, "id") == wantID
			} else {
				matched = strings.EqualFold(strings.TrimSpace(nodeText(n)), "next")
			}
			if matched {
				if disabledClass != "" && hasClass(n, disabledClass) {
					return
				}
				href = attr(n, "href")
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if href == "" {
		return ""
	}
	return resolveURL(baseURL, href)
}

func resolveURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return b.ResolveReference(r).String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
