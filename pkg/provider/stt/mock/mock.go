// Package mock provides a test double for the stt.Provider interface.
//
// Results are consumed in order from the Results queue; when the queue is
// exhausted the mock returns Text/Err. Every invocation is recorded so tests
// can assert on the exact audio passed in.
package mock

import (
	"context"
	"sync"

	"github.com/tesparr/dragoman/pkg/provider/stt"
)

// Compile-time assertion that Provider satisfies stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Result is one scripted Recognize outcome.
type Result struct {
	Text string
	Err  error
}

// RecognizeCall records a single invocation of Recognize.
type RecognizeCall struct {
	// Ctx is the context passed to Recognize.
	Ctx context.Context
	// Samples is a copy of the audio passed to Recognize.
	Samples []float32
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Results is a queue of scripted outcomes, consumed one per call.
	Results []Result

	// Text and Err are returned once Results is exhausted.
	Text string
	Err  error

	// RecognizeCalls records every call to Recognize in order.
	RecognizeCalls []RecognizeCall
}

// Recognize records the call and returns the next scripted result.
func (p *Provider) Recognize(ctx context.Context, samples []float32) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cp := make([]float32, len(samples))
	copy(cp, samples)
	p.RecognizeCalls = append(p.RecognizeCalls, RecognizeCall{Ctx: ctx, Samples: cp})

	if len(p.Results) > 0 {
		r := p.Results[0]
		p.Results = p.Results[1:]
		return r.Text, r.Err
	}
	return p.Text, p.Err
}

// CallCount returns the number of Recognize invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.RecognizeCalls)
}
