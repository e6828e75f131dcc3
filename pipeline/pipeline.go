// Package pipeline orchestrates one discovery-and-sync run: enumerate the
// enabled sources, acquire and extract their documents, persist candidates
// with dedup, and push the qualifying backlog to the external service. At
// most one run is active at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lienwatch/lienwatch/acquire"
	"github.com/lienwatch/lienwatch/audit"
	"github.com/lienwatch/lienwatch/extract"
	"github.com/lienwatch/lienwatch/registry"
	"github.com/lienwatch/lienwatch/store"
)

// DefaultThresholdCents is the minimum claimed amount for downstream sync:
// $10,000.00.
const DefaultThresholdCents = 1_000_000

// ErrAlreadyRunning is returned by Trigger while a run is in flight.
var ErrAlreadyRunning = errors.New("pipeline: a run is already active")

// Sources lists the source configurations a run visits.
type Sources interface {
	ListEnabled(ctx context.Context) ([]*registry.Source, error)
}

// DocumentStream is a finite stream of acquired documents.
type DocumentStream interface {
	Size() int
	Next(ctx context.Context) (*acquire.Document, error)
}

// Acquirer opens the document stream for one source and date window.
// Dates are in the portal's MM/DD/YYYY form.
type Acquirer interface {
	Acquire(ctx context.Context, src *registry.Source, from, to string) (DocumentStream, error)
}

// Extractor parses one document into a lien candidate, nil when the
// document carries nothing usable.
type Extractor interface {
	ExtractDoc(ctx context.Context, patternsJSON, docID string, data []byte) (*extract.Candidate, error)
}

// Syncer pushes pending liens to the external records service.
type Syncer interface {
	Push(ctx context.Context, liens []*store.Lien) (int, error)
}

// Config configures the orchestrator.
type Config struct {
	ThresholdCents int64 // default DefaultThresholdCents
	Logger         *slog.Logger
}

// Pipeline is the single-flight run orchestrator.
type Pipeline struct {
	sources   Sources
	acquirer  Acquirer
	extractor Extractor
	syncer    Syncer
	store     store.Store
	audit     *audit.Logger
	logger    *slog.Logger
	threshold int64

	mu           sync.Mutex
	running      bool
	currentRunID string
	stopFlag     atomic.Bool
	wg           sync.WaitGroup
}

// New creates a Pipeline.
func New(cfg Config, sources Sources, acq Acquirer, ext Extractor, syncer Syncer, s store.Store, auditLog *audit.Logger) *Pipeline {
	if cfg.ThresholdCents <= 0 {
		cfg.ThresholdCents = DefaultThresholdCents
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		sources:   sources,
		acquirer:  acq,
		extractor: ext,
		syncer:    syncer,
		store:     s,
		audit:     auditLog,
		logger:    logger.With("component", "pipeline"),
		threshold: cfg.ThresholdCents,
	}
}

// Status is a snapshot of the orchestrator.
type Status struct {
	Running      bool       `json:"running"`
	CurrentRunID string     `json:"current_run_id,omitempty"`
	LatestRun    *store.Run `json:"latest_run,omitempty"`
}

// Status reports whether a run is active and the most recent run record.
func (p *Pipeline) Status(ctx context.Context) (*Status, error) {
	p.mu.Lock()
	running, runID := p.running, p.currentRunID
	p.mu.Unlock()

	latest, err := p.store.LatestRun(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{Running: running, CurrentRunID: runID, LatestRun: latest}, nil
}

// Stop raises the cooperative stop flag. The active run checks it between
// sources and between documents; there is no forced abort.
func (p *Pipeline) Stop() bool {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	if running {
		p.stopFlag.Store(true)
		p.logger.Info("stop requested")
	}
	return running
}

// Trigger starts a run in the background. An empty date range means the
// previous calendar day. Dates are YYYY-MM-DD. Returns the run ID, or
// ErrAlreadyRunning while another run is active.
func (p *Pipeline) Trigger(ctx context.Context, runType, fromDate, toDate string) (string, error) {
	from, to, err := resolveWindow(fromDate, toDate)
	if err != nil {
		return "", err
	}
	if runType == "" {
		runType = store.RunManual
	}

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return "", ErrAlreadyRunning
	}

	run := &store.Run{RunType: runType}
	if err := p.store.CreateRun(ctx, run); err != nil {
		p.mu.Unlock()
		return "", fmt.Errorf("create run: %w", err)
	}
	p.running = true
	p.currentRunID = run.ID
	p.stopFlag.Store(false)
	p.mu.Unlock()

	p.audit.Info("pipeline", "run started", map[string]any{
		"run_id": run.ID, "run_type": runType, "from": fromDate, "to": toDate,
	})

	// The run detaches from the trigger's request context; only Stop and
	// process shutdown end it early.
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.execute(context.Background(), run, from, to)
	}()

	return run.ID, nil
}

// Wait blocks until the active run, if any, has finished. Used by
// graceful shutdown after Stop.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// execute drives one full run. The guard is always released and the run
// record always finalized, whatever happens inside.
func (p *Pipeline) execute(ctx context.Context, run *store.Run, from, to string) {
	log := p.logger.With("run_id", run.ID)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("run panicked", "panic", r)
			run.Status = store.RunFailed
			run.ErrorMessage = fmt.Sprintf("panic: %v", r)
		}
		if run.Status == "" || run.Status == store.RunRunning {
			run.Status = store.RunCompleted
		}
		if err := p.store.FinishRun(ctx, run); err != nil {
			log.Error("finish run failed", "error", err)
		}

		p.mu.Lock()
		p.running = false
		p.currentRunID = ""
		p.mu.Unlock()

		summary := map[string]any{
			"run_id": run.ID, "status": run.Status,
			"found": run.RecordsFound, "accepted": run.RecordsAccepted,
			"over_threshold": run.RecordsOverThreshold,
			"duration_ms":    time.Since(start).Milliseconds(),
		}
		if run.Status == store.RunFailed {
			p.audit.Error("pipeline", "run failed", summary)
		} else {
			p.audit.Success("pipeline", "run finished", summary)
		}
	}()

	sources, err := p.sources.ListEnabled(ctx)
	if err != nil {
		run.Status = store.RunFailed
		run.ErrorMessage = fmt.Sprintf("list sources: %v", err)
		return
	}
	if len(sources) == 0 {
		log.Warn("no enabled sources")
	}

	for _, src := range sources {
		if p.stopFlag.Load() {
			log.Info("stop flag observed, ending run early")
			break
		}
		p.runSource(ctx, run, src, from, to)
	}

	p.syncPending(ctx, run, log)
}

// runSource executes one source under its own sub-run. Any failure stays
// inside the sub-run; the parent run continues.
func (p *Pipeline) runSource(ctx context.Context, run *store.Run, src *registry.Source, from, to string) {
	log := p.logger.With("run_id", run.ID, "source", src.Name)

	sub := &store.SubRun{RunID: run.ID, SourceID: src.ID, SourceName: src.Name}
	if err := p.store.CreateSubRun(ctx, sub); err != nil {
		log.Error("create sub-run failed", "error", err)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("source panicked", "panic", r)
			sub.Status = store.RunFailed
			sub.ErrorMessage = fmt.Sprintf("panic: %v", r)
		}
		if sub.Status == "" || sub.Status == store.RunRunning {
			sub.Status = store.RunCompleted
		}
		if err := p.store.FinishSubRun(ctx, sub); err != nil {
			log.Error("finish sub-run failed", "error", err)
		}
		run.RecordsFound += sub.RecordsFound
		run.RecordsAccepted += sub.RecordsAccepted
	}()

	batch, err := p.acquirer.Acquire(ctx, src, from, to)
	if err != nil {
		sub.Status = store.RunFailed
		sub.ErrorMessage = err.Error()
		p.audit.Error("pipeline", "source acquisition failed", map[string]any{
			"run_id": run.ID, "source": src.Name, "error": err.Error(),
		})
		return
	}
	sub.RecordsFound = batch.Size()
	log.Info("documents discovered", "count", batch.Size())

	for {
		if p.stopFlag.Load() {
			log.Info("stop flag observed mid-source")
			break
		}
		doc, err := batch.Next(ctx)
		if err != nil {
			sub.Status = store.RunFailed
			sub.ErrorMessage = err.Error()
			return
		}
		if doc == nil {
			break
		}

		candidate, err := p.extractor.ExtractDoc(ctx, src.PatternsJSON, doc.DocID, doc.Bytes)
		if err != nil {
			log.Warn("extraction failed, skipping document", "doc_id", doc.DocID, "error", err)
			continue
		}
		if candidate == nil {
			log.Debug("document yielded no candidate", "doc_id", doc.DocID)
			continue
		}

		lien := &store.Lien{
			DocID:           candidate.DocID,
			RecordedDate:    candidate.RecordedDate,
			DebtorName:      candidate.DebtorName,
			DebtorAddress:   candidate.DebtorAddress,
			AmountCents:     candidate.AmountCents,
			CreditorName:    candidate.CreditorName,
			CreditorAddress: candidate.CreditorAddress,
			DocURL:          doc.PageURL,
		}
		stored, created, err := p.store.CreateOrGetLien(ctx, lien)
		if err != nil {
			log.Error("persist failed", "doc_id", doc.DocID, "error", err)
			continue
		}
		if !created {
			p.audit.Info("pipeline", "duplicate document skipped", map[string]any{
				"run_id": run.ID, "doc_id": doc.DocID,
			})
			continue
		}
		sub.RecordsAccepted++
		if stored.AmountCents >= p.threshold {
			run.RecordsOverThreshold++
		}
	}
}

// syncPending pushes every pending lien at or above the threshold, not
// just this run's: records whose earlier sync failed get another chance.
func (p *Pipeline) syncPending(ctx context.Context, run *store.Run, log *slog.Logger) {
	pending, err := p.store.ListLiensPendingOver(ctx, p.threshold)
	if err != nil {
		log.Error("list pending for sync failed", "error", err)
		run.Status = store.RunFailed
		run.ErrorMessage = fmt.Sprintf("list pending: %v", err)
		return
	}
	if len(pending) == 0 {
		log.Info("nothing to sync")
		return
	}

	synced, err := p.syncer.Push(ctx, pending)
	if err != nil {
		log.Error("sync push failed", "error", err)
		p.audit.Error("syncgw", "sync push failed", map[string]any{
			"run_id": run.ID, "error": err.Error(),
		})
		return
	}
	log.Info("sync complete", "pushed", len(pending), "synced", synced)
	p.audit.Success("syncgw", "sync complete", map[string]any{
		"run_id": run.ID, "pushed": len(pending), "synced": synced,
	})
}

// resolveWindow turns optional YYYY-MM-DD bounds into the portal's
// MM/DD/YYYY form, defaulting to the previous calendar day.
func resolveWindow(fromDate, toDate string) (from, to string, err error) {
	if fromDate == "" && toDate == "" {
		y := time.Now().AddDate(0, 0, -1)
		d := y.Format("01/02/2006")
		return d, d, nil
	}
	if fromDate == "" || toDate == "" {
		return "", "", fmt.Errorf("pipeline: from and to must both be set")
	}
	f, err := time.Parse("2006-01-02", fromDate)
	if err != nil {
		return "", "", fmt.Errorf("pipeline: bad from date %q", fromDate)
	}
	t, err := time.Parse("2006-01-02", toDate)
	if err != nil {
		return "", "", fmt.Errorf("pipeline: bad to date %q", toDate)
	}
	if t.Before(f) {
		return "", "", fmt.Errorf("pipeline: to precedes from")
	}
	return f.Format("01/02/2006"), t.Format("01/02/2006"), nil
}
