// Package mock provides a test double for the langid.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/tesparr/dragoman/pkg/provider/langid"
)

// Compile-time assertion that Provider satisfies langid.Provider.
var _ langid.Provider = (*Provider)(nil)

// DetectCall records a single invocation of Detect.
type DetectCall struct {
	// Ctx is the context passed to Detect.
	Ctx context.Context
	// Text is the text passed to Detect.
	Text string
}

// Provider is a mock implementation of langid.Provider.
type Provider struct {
	mu sync.Mutex

	// Language is returned by Detect when Err is nil.
	Language string

	// Err, if non-nil, is returned by Detect.
	Err error

	// DetectCalls records every call to Detect in order.
	DetectCalls []DetectCall
}

// Detect records the call and returns the configured result.
func (p *Provider) Detect(ctx context.Context, text string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.DetectCalls = append(p.DetectCalls, DetectCall{Ctx: ctx, Text: text})
	if p.Err != nil {
		return "", p.Err
	}
	return p.Language, nil
}

// CallCount returns the number of Detect invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.DetectCalls)
}
