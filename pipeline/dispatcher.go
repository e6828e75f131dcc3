package pipeline

import (
	"context"

	"github.com/lienwatch/lienwatch/acquire"
	"github.com/lienwatch/lienwatch/registry"
)

// dispatcherAcquirer adapts the concrete acquire.Dispatcher to the
// orchestrator's Acquirer interface.
type dispatcherAcquirer struct {
	d *acquire.Dispatcher
}

// NewAcquirer wraps an acquire.Dispatcher for use as the pipeline's
// document source.
func NewAcquirer(d *acquire.Dispatcher) Acquirer {
	return dispatcherAcquirer{d: d}
}

func (a dispatcherAcquirer) Acquire(ctx context.Context, src *registry.Source, from, to string) (DocumentStream, error) {
	batch, err := a.d.Acquire(ctx, src, from, to)
	if err != nil {
		return nil, err
	}
	return batch, nil
}
