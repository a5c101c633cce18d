// Package nllb provides a translation provider backed by an NLLB serving
// sidecar.
//
// The sidecar hosts a No-Language-Left-Behind model behind POST /translate
// with a small JSON contract: text plus source/target codes in, translated
// text out. One HTTP round trip per chunk matches the orchestrator's
// sequential pipeline.
package nllb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tesparr/dragoman/pkg/provider/translate"
)

const defaultTimeout = 20 * time.Second

// Compile-time assertion that Provider implements translate.Provider.
var _ translate.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithTimeout sets the per-request HTTP timeout. Defaults to 20 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// Provider implements translate.Provider backed by an NLLB HTTP sidecar.
type Provider struct {
	serverURL  string
	httpClient *http.Client
}

// New creates a Provider that connects to the NLLB sidecar at serverURL
// (e.g., "http://localhost:8082"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("nllb: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  serverURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Translate implements translate.Provider.
func (p *Provider) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	payload, err := json.Marshal(struct {
		Text   string `json:"text"`
		Source string `json:"source"`
		Target string `json:"target"`
	}{Text: text, Source: sourceLang, Target: targetLang})
	if err != nil {
		return "", fmt.Errorf("nllb: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/translate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("nllb: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("nllb: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("nllb: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("nllb: read response body: %w", err)
	}

	var result struct {
		Translation string `json:"translation"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("nllb: parse JSON response: %w", err)
	}
	return result.Translation, nil
}
