// Package acquire turns a source configuration into document bytes. The
// render strategy drives a stealth headless-Chrome tab through the
// portal's search pages; the direct strategy fetches them over plain
// HTTP. Both resolve discovered document IDs to files the same way.
package acquire

import (
	"context"

	"github.com/lienwatch/lienwatch/registry"
)

// Document is one acquired file, ready for extraction.
type Document struct {
	DocID   string
	Bytes   []byte
	PageURL string // the expanded doc URL it was fetched from
}

// Acquirer discovers document IDs for a date window and resolves each ID
// to its document. Dates are in the portal's MM/DD/YYYY form.
type Acquirer interface {
	Discover(ctx context.Context, src *registry.Source, from, to string) ([]string, error)
	FetchDocument(ctx context.Context, src *registry.Source, docID string) (*Document, error)
}

// Dispatcher picks the Acquirer for a source's strategy, falling back to
// direct for anything unknown.
type Dispatcher struct {
	render *RenderAcquirer
	direct *DirectAcquirer
}

// NewDispatcher creates a Dispatcher. The render acquirer may be nil when
// no browser is available; render-strategy sources then fall back to the
// direct acquirer.
func NewDispatcher(render *RenderAcquirer, direct *DirectAcquirer) *Dispatcher {
	return &Dispatcher{render: render, direct: direct}
}

// For returns the Acquirer for the source.
func (d *Dispatcher) For(src *registry.Source) Acquirer {
	if src.Strategy == registry.StrategyRender && d.render != nil {
		return d.render
	}
	return d.direct
}
