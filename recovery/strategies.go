package recovery

import (
	"context"
	"fmt"
	"sync"
)

// StrictStrategy implements a fail-fast recovery strategy.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy {
	return &StrictStrategy{}
}

func (s *StrictStrategy) OnError(ctx context.Context, err error, loc Location) Action {
	return ActionFail
}

// LenientStrategy records every error and lets the caller skip past it.
// It is safe for concurrent use.
type LenientStrategy struct {
	mu     sync.Mutex
	errors []error
}

func NewLenientStrategy() *LenientStrategy {
	return &LenientStrategy{}
}

func (s *LenientStrategy) OnError(ctx context.Context, err error, loc Location) Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, fmt.Errorf("%s: %w", loc, err))
	return ActionWarn
}

// Errors returns a copy of the errors recorded so far.
func (s *LenientStrategy) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]error, len(s.errors))
	copy(out, s.errors)
	return out
}

// SyntaxStrategy patches over token and grammar level problems, such as a
// missing endobj or a stray delimiter, and fails on everything else: broken
// cross-reference data, unreadable objects and page tree damage.
type SyntaxStrategy struct {
	lenient LenientStrategy
}

func NewSyntaxStrategy() *SyntaxStrategy {
	return &SyntaxStrategy{}
}

// Syntax components are the ones that recover inside a single object or
// content stream.
var syntaxComponents = map[string]bool{
	"scanner": true,
	"parser":  true,
	"content": true,
}

func (s *SyntaxStrategy) OnError(ctx context.Context, err error, loc Location) Action {
	if !syntaxComponents[loc.Component] {
		return ActionFail
	}
	return s.lenient.OnError(ctx, err, loc)
}

func (s *SyntaxStrategy) Errors() []error { return s.lenient.Errors() }

// For returns the strategy matching a strict flag. Non-strict loading only
// recovers from syntax errors; whole-file repair needs NewLenientStrategy.
func For(strict bool) Strategy {
	if strict {
		return NewStrictStrategy()
	}
	return NewSyntaxStrategy()
}
