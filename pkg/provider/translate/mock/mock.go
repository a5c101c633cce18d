// Package mock provides a test double for the translate.Provider interface.
//
// Results are consumed in order from the Results queue; when the queue is
// exhausted the mock returns Translation/Err. Every invocation is recorded
// so tests can assert on the exact (text, source, target) triples.
package mock

import (
	"context"
	"sync"

	"github.com/tesparr/dragoman/pkg/provider/translate"
)

// Compile-time assertion that Provider satisfies translate.Provider.
var _ translate.Provider = (*Provider)(nil)

// Result is one scripted Translate outcome.
type Result struct {
	Translation string
	Err         error
}

// TranslateCall records a single invocation of Translate.
type TranslateCall struct {
	// Ctx is the context passed to Translate.
	Ctx context.Context
	// Text is the source text.
	Text string
	// SourceLang and TargetLang are the language codes passed in.
	SourceLang string
	TargetLang string
}

// Provider is a mock implementation of translate.Provider.
type Provider struct {
	mu sync.Mutex

	// Results is a queue of scripted outcomes, consumed one per call.
	Results []Result

	// Translation and Err are returned once Results is exhausted.
	Translation string
	Err         error

	// TranslateCalls records every call to Translate in order.
	TranslateCalls []TranslateCall
}

// Translate records the call and returns the next scripted result.
func (p *Provider) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.TranslateCalls = append(p.TranslateCalls, TranslateCall{
		Ctx:        ctx,
		Text:       text,
		SourceLang: sourceLang,
		TargetLang: targetLang,
	})

	if len(p.Results) > 0 {
		r := p.Results[0]
		p.Results = p.Results[1:]
		return r.Translation, r.Err
	}
	return p.Translation, p.Err
}

// CallCount returns the number of Translate invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranslateCalls)
}
