// Package papers fetches Deep Dive paper documents and converts them into
// the representations chat providers consume: raw PDF bytes for providers
// with native document ingestion, extracted plain text for the rest.
package papers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// maxPDFBytes bounds a single paper download.
const maxPDFBytes = 64 << 20

// Fetcher downloads paper PDFs over HTTP.
type Fetcher struct {
	httpClient *http.Client
}

// NewFetcher returns a fetcher with a bounded timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Fetcher{httpClient: &http.Client{Timeout: timeout}}
}

// PDFURL rewrites an OpenReview forum URL into its PDF counterpart.
// Non-OpenReview URLs pass through unchanged.
func PDFURL(url string) string {
	if strings.Contains(url, "/forum?") {
		return strings.Replace(url, "/forum?", "/pdf?", 1)
	}
	return url
}

// FetchPDF downloads the paper behind url, following the forum-to-pdf
// rewrite, and returns the raw PDF bytes.
func (f *Fetcher) FetchPDF(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, PDFURL(url), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "application/pdf") {
		return nil, fmt.Errorf("fetch %s: not a PDF (content-type %s)", url, ct)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPDFBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return data, nil
}

// ExtractText pulls plain text out of PDF bytes for providers that consume
// text context instead of documents.
func ExtractText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return "", fmt.Errorf("read extracted text: %w", err)
	}
	text := strings.TrimSpace(buf.String())
	if text == "" {
		return "", fmt.Errorf("no extractable text")
	}
	return text, nil
}

// FetchText downloads a paper and extracts its plain text in one step.
func (f *Fetcher) FetchText(ctx context.Context, url string) (string, error) {
	data, err := f.FetchPDF(ctx, url)
	if err != nil {
		return "", err
	}
	return ExtractText(data)
}
