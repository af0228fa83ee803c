package routing

import (
	"context"
	"sync"

	"github.com/directoryhub/onboarding-api/internal/ports/out/routing"
)

// Publisher records completion events in memory.
// It is safe for concurrent use.
type Publisher struct {
	mu     sync.Mutex
	events []routing.CompletionEvent
}

func NewPublisher() *Publisher { return &Publisher{} }

func (p *Publisher) PublishCompletion(ctx context.Context, evt routing.CompletionEvent) error {
	_ = ctx
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

// Events returns the events published so far, oldest first.
func (p *Publisher) Events() []routing.CompletionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]routing.CompletionEvent(nil), p.events...)
}
