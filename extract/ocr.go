package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// OCRClient calls an external OCR service for scanned-image documents.
// The service takes a base64-encoded image and returns recognized text.
type OCRClient struct {
	baseURL string
	client  *http.Client
}

// NewOCRClient creates a client for the OCR service at baseURL.
func NewOCRClient(baseURL string, timeout time.Duration) *OCRClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OCRClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type ocrRequest struct {
	ImageBase64 string `json:"image_base64"`
	Format      string `json:"format"`
}

type ocrResponse struct {
	Text string `json:"text"`
}

// Recognize sends one image to the OCR service. An empty result is not an
// error: blank or illegible pages are common in recorded documents.
func (c *OCRClient) Recognize(ctx context.Context, image []byte, format string) (string, error) {
	body, err := json.Marshal(ocrRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(image),
		Format:      format,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ocr", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ocr service returned %d", resp.StatusCode)
	}

	var out ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("ocr response: %w", err)
	}
	return strings.TrimSpace(out.Text), nil
}

// ocrPDF exports the PDF's embedded page images and runs each through the
// OCR service, concatenating the results in page order. pdfcpu's image
// extraction works on files, so the document takes a round trip through a
// temp directory.
func (e *Extractor) ocrPDF(ctx context.Context, data []byte) (string, error) {
	dir, err := os.MkdirTemp("", "lienwatch-ocr-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	pdfPath := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(pdfPath, data, 0o600); err != nil {
		return "", err
	}

	imgDir := filepath.Join(dir, "img")
	if err := os.MkdirAll(imgDir, 0o700); err != nil {
		return "", err
	}
	if err := api.ExtractImagesFile(pdfPath, imgDir, nil, model.NewDefaultConfiguration()); err != nil {
		return "", fmt.Errorf("extract page images: %w", err)
	}

	entries, err := os.ReadDir(imgDir)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(entries))
	for _, ent := range entries {
		if !ent.IsDir() {
			names = append(names, ent.Name())
		}
	}
	// pdfcpu names exported images <stem>_<page>_<obj>.<ext>; lexical order
	// tracks page order closely enough for field parsing.
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		img, err := os.ReadFile(filepath.Join(imgDir, name))
		if err != nil {
			return "", err
		}
		format := strings.TrimPrefix(filepath.Ext(name), ".")
		text, err := e.ocr.Recognize(ctx, img, format)
		if err != nil {
			return "", err
		}
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}
