// Package extract turns acquired document bytes into structured lien
// candidates. PDF documents go through a two-tier pipeline: structural
// content-stream text first, then page-image OCR when the structural tier
// yields too little to work with. HTML documents are sanitized and
// flattened to markdown before field parsing.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
)

// minStructuralChars is the gate between the structural tier and OCR: a
// scanned-image PDF typically yields almost no content-stream text.
const minStructuralChars = 120

// Candidate is a parsed lien record before persistence. A nil Candidate
// from an extraction means the document carried no recognizable amount.
type Candidate struct {
	DocID           string
	RecordedDate    string // YYYY-MM-DD, may be empty
	DebtorName      string
	DebtorAddress   string
	AmountCents     int64
	CreditorName    string
	CreditorAddress string
	Tier            string // "structural", "ocr" or "html"
}

// Extractor runs the tiered extraction pipeline. The OCR client is
// optional; without it, image-only PDFs produce no candidate.
type Extractor struct {
	ocr      *OCRClient
	logger   *slog.Logger
	patterns Patterns
}

// New creates an Extractor with the built-in field patterns.
func New(ocr *OCRClient, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{ocr: ocr, logger: logger, patterns: DefaultPatterns()}
}

// WithPatterns returns a copy of the extractor using per-source pattern
// overrides (JSON object of name -> regex). Unknown names are ignored;
// invalid regexes fall back to the defaults.
func (e *Extractor) WithPatterns(patternsJSON string) *Extractor {
	cp := *e
	cp.patterns = e.patterns.Merge(patternsJSON, e.logger)
	return &cp
}

// ExtractDoc applies a source's pattern overrides and extracts one
// document. This is the orchestrator's entry point.
func (e *Extractor) ExtractDoc(ctx context.Context, patternsJSON, docID string, data []byte) (*Candidate, error) {
	if patternsJSON == "" || patternsJSON == "{}" {
		return e.Extract(ctx, docID, data)
	}
	return e.WithPatterns(patternsJSON).Extract(ctx, docID, data)
}

var pdfMagic = []byte("%PDF-")

// Extract sniffs the document type and dispatches to the right tier chain.
func (e *Extractor) Extract(ctx context.Context, docID string, data []byte) (*Candidate, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("extract: empty document %s", docID)
	}
	if bytes.HasPrefix(data, pdfMagic) {
		return e.ExtractPDF(ctx, docID, data)
	}
	return e.ExtractHTML(ctx, docID, data)
}

// ExtractPDF runs the structural tier and, when it comes up short, the OCR
// tier. An empty OCR result is tolerated: the document is simply skipped.
func (e *Extractor) ExtractPDF(ctx context.Context, docID string, data []byte) (*Candidate, error) {
	log := e.logger.With("component", "extract", "doc_id", docID)

	text, err := pdfText(data)
	if err != nil {
		log.Warn("structural tier failed", "error", err)
	}
	tier := "structural"

	if len(text) < minStructuralChars {
		if e.ocr == nil {
			log.Debug("structural text too short and no ocr client", "chars", len(text))
			return nil, nil
		}
		ocrText, err := e.ocrPDF(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("extract: ocr tier: %w", err)
		}
		if ocrText == "" {
			log.Debug("ocr produced no text, skipping document")
			return nil, nil
		}
		text = ocrText
		tier = "ocr"
	}

	c := e.patterns.ParseFields(text)
	if c == nil {
		log.Debug("no amount found, skipping document", "tier", tier)
		return nil, nil
	}
	c.DocID = docID
	c.Tier = tier
	return c, nil
}

// ExtractHTML sanitizes the markup, flattens it to markdown, and parses
// fields from the result.
func (e *Extractor) ExtractHTML(_ context.Context, docID string, data []byte) (*Candidate, error) {
	text, err := htmlText(data)
	if err != nil {
		return nil, fmt.Errorf("extract: html tier: %w", err)
	}
	c := e.patterns.ParseFields(text)
	if c == nil {
		return nil, nil
	}
	c.DocID = docID
	c.Tier = "html"
	return c, nil
}
