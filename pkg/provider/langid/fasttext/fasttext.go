// Package fasttext provides a language-identification provider backed by a
// fastText serving sidecar.
//
// The sidecar wraps the lid.176 model behind POST /detect, returning the
// predicted language label and a confidence score. Low-confidence
// predictions fall back to a configured default language instead of failing
// the pipeline — a wrong-but-plausible language keeps the call usable, an
// error would drop the chunk.
package fasttext

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tesparr/dragoman/pkg/provider/langid"
)

const (
	defaultTimeout = 10 * time.Second

	// defaultMinConfidence is the score below which the fallback language is
	// used instead of the prediction.
	defaultMinConfidence = 0.5
)

// Compile-time assertion that Provider implements langid.Provider.
var _ langid.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithFallbackLanguage sets the language returned when text is too short to
// classify or the model's confidence is below the threshold. Defaults to
// empty, which disables the fallback and surfaces low confidence as-is.
func WithFallbackLanguage(lang string) Option {
	return func(p *Provider) { p.fallback = lang }
}

// WithMinConfidence overrides the confidence threshold. Defaults to 0.5.
func WithMinConfidence(c float64) Option {
	return func(p *Provider) { p.minConfidence = c }
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 10 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// Provider implements langid.Provider backed by a fastText HTTP sidecar.
type Provider struct {
	serverURL     string
	fallback      string
	minConfidence float64
	httpClient    *http.Client
}

// New creates a Provider that connects to the fastText sidecar at serverURL
// (e.g., "http://localhost:8081"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("fasttext: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:     serverURL,
		minConfidence: defaultMinConfidence,
		httpClient:    &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Detect implements langid.Provider.
func (p *Provider) Detect(ctx context.Context, text string) (string, error) {
	if len(strings.TrimSpace(text)) < 3 {
		if p.fallback != "" {
			return p.fallback, nil
		}
		return "", errors.New("fasttext: text too short to classify")
	}

	payload, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: strings.ReplaceAll(text, "\n", " ")})
	if err != nil {
		return "", fmt.Errorf("fasttext: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/detect", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("fasttext: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fasttext: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fasttext: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("fasttext: read response body: %w", err)
	}

	var result struct {
		Language   string  `json:"language"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("fasttext: parse JSON response: %w", err)
	}
	if result.Language == "" {
		return "", errors.New("fasttext: empty language in response")
	}

	if result.Confidence < p.minConfidence && p.fallback != "" {
		return p.fallback, nil
	}
	return result.Language, nil
}
