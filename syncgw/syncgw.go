// Package syncgw pushes accepted liens to the external records service.
// Pushes are idempotent on the document ID: the service answers with the
// same external ID whether the record was just created or already there,
// and only a successful answer moves a lien to the synced status.
package syncgw

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lienwatch/lienwatch/store"
)

// maxBatchSize caps one POST to the external service.
const maxBatchSize = 100

// ErrNoDocURL is returned by RetryOne when the lien has no document URL
// to submit.
var ErrNoDocURL = errors.New("syncgw: lien has no document url")

// Config configures the gateway.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration // default 30s

	Logger *slog.Logger
}

// Gateway talks to the external records service.
type Gateway struct {
	cfg    Config
	client *http.Client
	store  store.Store
	logger *slog.Logger
}

// New creates a Gateway.
func New(cfg Config, s store.Store) *Gateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Gateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		store:  s,
		logger: logger.With("component", "syncgw"),
	}
}

// record is the external service's wire shape for one lien.
type record struct {
	DocID           string `json:"doc_id"`
	RecordedDate    string `json:"recorded_date,omitempty"`
	DebtorName      string `json:"debtor_name"`
	DebtorAddress   string `json:"debtor_address,omitempty"`
	AmountCents     int64  `json:"amount_cents"`
	CreditorName    string `json:"creditor_name,omitempty"`
	CreditorAddress string `json:"creditor_address,omitempty"`
	DocURL          string `json:"doc_url"`
}

type pushRequest struct {
	Records []record `json:"records"`
}

type pushResult struct {
	DocID      string `json:"doc_id"`
	ExternalID string `json:"external_id"`
	Status     string `json:"status"` // "created", "exists" or "error"
	Error      string `json:"error,omitempty"`
}

type pushResponse struct {
	Results []pushResult `json:"results"`
}

// Push submits the liens in sub-batches. A failed batch is logged and
// skipped; the remaining batches still go out. Returns how many liens
// reached the synced status.
func (g *Gateway) Push(ctx context.Context, liens []*store.Lien) (int, error) {
	if len(liens) == 0 {
		return 0, nil
	}
	byDoc := make(map[string]*store.Lien, len(liens))
	for _, l := range liens {
		byDoc[l.DocID] = l
	}

	var synced int
	var batchErrs []error
	for start := 0; start < len(liens); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(liens) {
			end = len(liens)
		}
		batch := liens[start:end]

		results, err := g.postBatch(ctx, batch)
		if err != nil {
			g.logger.Error("batch push failed", "batch_start", start, "size", len(batch), "error", err)
			batchErrs = append(batchErrs, err)
			continue
		}
		for _, res := range results {
			l, ok := byDoc[res.DocID]
			if !ok {
				g.logger.Warn("service answered for unknown doc_id", "doc_id", res.DocID)
				continue
			}
			switch res.Status {
			case "created", "exists":
				if err := g.store.SetLienExternalID(ctx, l.ID, res.ExternalID); err != nil {
					g.logger.Error("mark synced failed", "lien_id", l.ID, "error", err)
					continue
				}
				synced++
			default:
				g.logger.Warn("record rejected", "doc_id", res.DocID, "error", res.Error)
			}
		}
	}

	if synced == 0 && len(batchErrs) > 0 {
		return 0, fmt.Errorf("syncgw: all batches failed: %w", batchErrs[0])
	}
	return synced, nil
}

// RetryOne re-submits a single lien. Already-synced liens are a no-op;
// liens without a document URL cannot be submitted at all.
func (g *Gateway) RetryOne(ctx context.Context, lienID string) (*store.Lien, error) {
	l, err := g.store.GetLien(ctx, lienID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, fmt.Errorf("syncgw: lien %s not found", lienID)
	}
	if l.Status == store.StatusSynced && l.ExternalID != "" {
		return l, nil
	}
	if l.DocURL == "" {
		return nil, ErrNoDocURL
	}

	results, err := g.postBatch(ctx, []*store.Lien{l})
	if err != nil {
		return nil, err
	}
	for _, res := range results {
		if res.DocID != l.DocID {
			continue
		}
		if res.Status == "created" || res.Status == "exists" {
			if err := g.store.SetLienExternalID(ctx, l.ID, res.ExternalID); err != nil {
				return nil, err
			}
			return g.store.GetLien(ctx, l.ID)
		}
		return nil, fmt.Errorf("syncgw: record rejected: %s", res.Error)
	}
	return nil, fmt.Errorf("syncgw: no result for doc %s", l.DocID)
}

func (g *Gateway) postBatch(ctx context.Context, batch []*store.Lien) ([]pushResult, error) {
	recs := make([]record, 0, len(batch))
	for _, l := range batch {
		recs = append(recs, record{
			DocID:           l.DocID,
			RecordedDate:    l.RecordedDate,
			DebtorName:      l.DebtorName,
			DebtorAddress:   l.DebtorAddress,
			AmountCents:     l.AmountCents,
			CreditorName:    l.CreditorName,
			CreditorAddress: l.CreditorAddress,
			DocURL:          l.DocURL,
		})
	}
	body, err := json.Marshal(pushRequest{Records: recs})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/records", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post records: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("records service returned %d", resp.StatusCode)
	}

	var out pushResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Results, nil
}
