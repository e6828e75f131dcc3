package acquire

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/lienwatch/lienwatch/registry"
)

// navTimeout bounds a single page navigation.
const navTimeout = 45 * time.Second

// RenderAcquirer drives a stealth browser tab through the portal's search
// flow. Recorder sites are ASP.NET postback pages; paging only works with
// a real DOM, so discovery happens in the browser while document files are
// still fetched over HTTP.
type RenderAcquirer struct {
	mgr     *BrowserManager
	fetcher *Fetcher
	logger  *slog.Logger
}

// NewRenderAcquirer creates a RenderAcquirer.
func NewRenderAcquirer(mgr *BrowserManager, fetcher *Fetcher, logger *slog.Logger) *RenderAcquirer {
	if logger == nil {
		logger = slog.Default()
	}
	return &RenderAcquirer{mgr: mgr, fetcher: fetcher, logger: logger}
}

// Discover renders the search page and walks the pagination, collecting
// document IDs from each rendered results page.
func (a *RenderAcquirer) Discover(ctx context.Context, src *registry.Source, from, to string) ([]string, error) {
	log := a.logger.With("component", "acquire", "source", src.Name, "strategy", "render")

	page, err := a.mgr.StealthPage(ctx)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	searchURL := src.SearchURL(from, to)
	if err := navigate(ctx, page, searchURL); err != nil {
		return nil, fmt.Errorf("search page: %w", err)
	}
	sleepDelay(ctx, src.LoadWaitMs)

	var ids []string
	seen := make(map[string]bool)

	maxPages := src.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}
	for pageNr := 1; pageNr <= maxPages; pageNr++ {
		if err := ctx.Err(); err != nil {
			return ids, err
		}

		dom, err := page.Context(ctx).HTML()
		if err != nil {
			return ids, fmt.Errorf("read page %d: %w", pageNr, err)
		}
		for _, id := range scanDocIDs([]byte(dom), src.ResultsSelector) {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
		log.Debug("results page scanned", "page", pageNr, "doc_ids", len(ids))

		if pageNr == maxPages {
			break
		}
		next, ok := nextPageElement(ctx, page, src)
		if !ok {
			break
		}
		sleepDelay(ctx, src.RequestDelayMs)
		if err := next.Click(proto.InputMouseButtonLeft, 1); err != nil {
			log.Warn("next-page click failed, stopping pagination", "page", pageNr, "error", err)
			break
		}
		if err := page.Context(ctx).WaitLoad(); err != nil {
			log.Warn("wait load after paging", "error", err)
		}
		sleepDelay(ctx, src.LoadWaitMs)
	}

	log.Info("discovery complete", "doc_ids", len(ids))
	return ids, nil
}

// FetchDocument resolves one document ID over HTTP; the recorder serves
// files from a plain URL once the ID is known.
func (a *RenderAcquirer) FetchDocument(ctx context.Context, src *registry.Source, docID string) (*Document, error) {
	sleepDelay(ctx, src.RequestDelayMs)
	docURL := src.DocURL(docID)
	body, err := a.fetcher.Get(ctx, docURL)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", docID, err)
	}
	return &Document{DocID: docID, Bytes: body, PageURL: docURL}, nil
}

func navigate(ctx context.Context, page *rod.Page, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, navTimeout)
	defer cancel()
	if err := page.Context(navCtx).Navigate(url); err != nil {
		return err
	}
	return page.Context(navCtx).WaitLoad()
}

// nextPageElement finds the source's next-page control. A missing element
// or one carrying the disabled class means the last page.
func nextPageElement(ctx context.Context, page *rod.Page, src *registry.Source) (*rod.Element, bool) {
	if src.NextPageSelector == "" {
		return nil, false
	}
	el, err := page.Context(ctx).Timeout(5 * time.Second).Element(src.NextPageSelector)
	if err != nil || el == nil {
		return nil, false
	}
	if src.DisabledClass != "" {
		if class, err := el.Attribute("class"); err == nil && class != nil {
			for _, c := range strings.Fields(*class) {
				if c == src.DisabledClass {
					return nil, false
				}
			}
		}
	}
	return el, true
}
