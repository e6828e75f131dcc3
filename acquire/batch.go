package acquire

import (
	"context"
	"log/slog"

	"github.com/lienwatch/lienwatch/registry"
)

// Batch is a finite, non-restartable stream of documents for one source
// and date window. Discovery happens up front; document bytes are fetched
// lazily as Next is called.
type Batch struct {
	src    *registry.Source
	acq    Acquirer
	ids    []string
	pos    int
	logger *slog.Logger
}

// Acquire discovers the window's document IDs for the source and returns
// the lazy document stream. The render session, if any, is released before
// Acquire returns; only plain HTTP happens during iteration.
func (d *Dispatcher) Acquire(ctx context.Context, src *registry.Source, from, to string) (*Batch, error) {
	acq := d.For(src)
	ids, err := acq.Discover(ctx, src, from, to)
	if err != nil {
		return nil, err
	}
	return &Batch{
		src:    src,
		acq:    acq,
		ids:    ids,
		logger: slog.Default().With("component", "acquire", "source", src.Name),
	}, nil
}

// Size returns the number of discovered documents.
func (b *Batch) Size() int {
	return len(b.ids)
}

// Next returns the next document, or (nil, nil) when the stream is
// exhausted. A document that fails to fetch is logged and skipped; only
// context cancellation stops the stream early.
func (b *Batch) Next(ctx context.Context) (*Document, error) {
	for b.pos < len(b.ids) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := b.ids[b.pos]
		b.pos++

		doc, err := b.acq.FetchDocument(ctx, b.src, id)
		if err != nil {
			b.logger.Warn("document fetch failed, skipping", "doc_id", id, "error", err)
			continue
		}
		return doc, nil
	}
	return nil, nil
}
