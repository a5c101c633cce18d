// Package mock provides a mock implementation of the tts.Provider interface
// for testing.
package mock

import (
	"context"
	"sync"

	"github.com/tesparr/dragoman/pkg/provider/tts"
)

// Compile-time assertion that Provider implements tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// SynthesizeCall records a single call to Synthesize.
type SynthesizeCall struct {
	Ctx      context.Context
	Text     string
	Language string
}

// Provider is a mock tts.Provider that returns configurable audio and
// records every call for inspection.
type Provider struct {
	mu sync.Mutex

	// Audio is returned by every Synthesize call unless Err is set.
	Audio []byte
	// Err, when non-nil, is returned by every Synthesize call.
	Err error

	// SynthesizeCalls records every invocation in order.
	SynthesizeCalls []SynthesizeCall
}

// New creates a mock Provider that answers every call with audio.
func New(audio []byte) *Provider {
	return &Provider{Audio: audio}
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Ctx: ctx, Text: text, Language: language})
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Audio, nil
}

// CallCount returns how many times Synthesize was invoked.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.SynthesizeCalls)
}
