package acquire

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/lienwatch/lienwatch/registry"
)

// FetcherConfig configures the HTTP fetcher shared by both strategies.
type FetcherConfig struct {
	Timeout  time.Duration // HTTP timeout. Default: 30s.
	MaxBytes int64         // Max response body size. Default: 20MB.
	// UserAgent sent with requests.
	UserAgent string
	// AllowPrivateHosts permits loopback and RFC1918 targets; tests need
	// it, production does not.
	AllowPrivateHosts bool

	Logger *slog.Logger
}

func (c *FetcherConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 20 * 1024 * 1024
	}
	if c.UserAgent == "" {
		c.UserAgent = "lienwatch/1.0"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Fetcher performs bounded HTTP GETs with redirect validation.
type Fetcher struct {
	client *http.Client
	cfg    FetcherConfig
}

// NewFetcher creates a Fetcher.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	cfg.defaults()
	f := &Fetcher{cfg: cfg}
	f.client = &http.Client{
		Timeout: cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (%d)", len(via))
			}
			return f.validateURL(req.URL.String())
		},
	}
	return f
}

// Get retrieves a URL, capped at MaxBytes.
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := f.validateURL(rawURL); err != nil {
		return nil, fmt.Errorf("url blocked: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > f.cfg.MaxBytes {
		return nil, fmt.Errorf("fetch %s: body exceeds %d bytes", rawURL, f.cfg.MaxBytes)
	}
	return body, nil
}

// validateURL rejects non-HTTP schemes and, unless allowed, private or
// loopback hosts. Redirects run through it too.
func (f *Fetcher) validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q not allowed", u.Scheme)
	}
	if f.cfg.AllowPrivateHosts {
		return nil
	}
	host := u.Hostname()
	if host == "localhost" {
		return fmt.Errorf("host %q not allowed", host)
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			return fmt.Errorf("ip %s not allowed", ip)
		}
	}
	return nil
}

// DirectAcquirer discovers and fetches over plain HTTP, following the
// source's next-page link up to its page ceiling.
type DirectAcquirer struct {
	fetcher *Fetcher
	logger  *slog.Logger
}

// NewDirectAcquirer creates a DirectAcquirer.
func NewDirectAcquirer(fetcher *Fetcher, logger *slog.Logger) *DirectAcquirer {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectAcquirer{fetcher: fetcher, logger: logger}
}

// Discover pages through the search results collecting document IDs.
func (a *DirectAcquirer) Discover(ctx context.Context, src *registry.Source, from, to string) ([]string, error) {
	log := a.logger.With("component", "acquire", "source", src.Name, "strategy", "direct")

	pageURL := src.SearchURL(from, to)
	var ids []string
	seen := make(map[string]bool)

	maxPages := src.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}
	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return ids, err
		}
		body, err := a.fetcher.Get(ctx, pageURL)
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("search page: %w", err)
			}
			log.Warn("results page fetch failed, stopping pagination", "page", page, "error", err)
			break
		}
		for _, id := range scanDocIDs(body, src.ResultsSelector) {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}

		next := findNextHref(body, src.NextPageSelector, src.DisabledClass, pageURL)
		if next == "" || next == pageURL {
			break
		}
		pageURL = next
		sleepDelay(ctx, src.RequestDelayMs)
	}

	log.Info("discovery complete", "doc_ids", len(ids))
	return ids, nil
}

// FetchDocument resolves one document ID to its bytes.
func (a *DirectAcquirer) FetchDocument(ctx context.Context, src *registry.Source, docID string) (*Document, error) {
	sleepDelay(ctx, src.RequestDelayMs)
	docURL := src.DocURL(docID)
	body, err := a.fetcher.Get(ctx, docURL)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", docID, err)
	}
	return &Document{DocID: docID, Bytes: body, PageURL: docURL}, nil
}

// sleepDelay waits the source's inter-request delay, cut short by context
// cancellation.
func sleepDelay(ctx context.Context, delayMs int64) {
	if delayMs <= 0 {
		return
	}
	t := time.NewTimer(time.Duration(delayMs) * time.Millisecond)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
