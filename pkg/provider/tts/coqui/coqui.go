// Package coqui provides a speech-synthesis provider backed by a standard
// Coqui TTS server.
//
// Synthesis is performed via GET /api/tts with URL query parameters, one
// HTTP call per utterance. The server returns a WAV file; the provider
// strips the 44-byte RIFF header and hands back raw PCM for the media
// channel.
//
// Typical usage:
//
//	p, err := coqui.New("http://localhost:5002",
//	    coqui.WithSpeaker("p225"),
//	    coqui.WithTimeout(15*time.Second),
//	)
//	pcm, err := p.Synthesize(ctx, "hello", "en")
package coqui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tesparr/dragoman/pkg/provider/tts"
)

const (
	apiTTSEndpoint = "/api/tts"
	defaultTimeout = 30 * time.Second

	// wavHeaderSize is the length of the canonical RIFF header produced by
	// the Coqui server.
	wavHeaderSize = 44
)

// Compile-time assertion that Provider implements tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithSpeaker sets the speaker id forwarded to multi-speaker models. When
// empty the server's default speaker is used.
func WithSpeaker(id string) Option {
	return func(p *Provider) { p.speaker = id }
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// Provider implements tts.Provider backed by a Coqui TTS HTTP server.
type Provider struct {
	serverURL  string
	speaker    string
	httpClient *http.Client
}

// New creates a Provider that connects to the Coqui server at serverURL
// (e.g., "http://localhost:5002"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: serverURL must not be empty")
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

// Synthesize implements tts.Provider. It performs a single GET /api/tts
// request and returns the PCM payload of the WAV response.
func (p *Provider) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	if text == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("text", text)
	if language != "" {
		params.Set("language_id", language)
	}
	if p.speaker != "" {
		params.Set("speaker_id", p.speaker)
	}

	reqURL := p.serverURL + apiTTSEndpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read response body: %w", err)
	}

	// The server answers with a WAV container; the media channel wants bare
	// PCM. Responses shorter than a header are treated as empty synthesis.
	if len(data) <= wavHeaderSize {
		return nil, nil
	}
	return data[wavHeaderSize:], nil
}
