package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Publisher is what emitting services depend on.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

type Handler func(ctx context.Context, e Event)

// Bus is an in-process observer registry. Dispatch is synchronous and
// in subscription order; handlers must not block on external calls.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
	log      *zap.Logger
}

func NewBus(log *zap.Logger) *Bus {
	return &Bus{log: log}
}

func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	b.log.Debug("publishing domain event", zap.String("event", e.Name()))
	for _, h := range handlers {
		h(ctx, e)
	}
}
