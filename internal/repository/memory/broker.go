package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketticket/internal/domain"
)

// Broker is an in-process stand-in for the Redis message pub/sub, used when
// the server runs without Redis.
type Broker struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]map[chan domain.Message]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[uuid.UUID]map[chan domain.Message]struct{})}
}

// PublishMessage never blocks. A subscriber whose buffer is full misses the
// message.
func (b *Broker) PublishMessage(_ context.Context, m domain.Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[m.ConversationID] {
		select {
		case ch <- m:
		default:
		}
	}

	return nil
}

func (b *Broker) Subscribe(
	ctx context.Context,
	conversationID uuid.UUID,
	ready func(),
	handler func(ctx context.Context, m domain.Message),
) error {
	ch := make(chan domain.Message, 256)

	b.mu.Lock()
	if b.subs[conversationID] == nil {
		b.subs[conversationID] = make(map[chan domain.Message]struct{})
	}
	b.subs[conversationID][ch] = struct{}{}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.subs[conversationID], ch)
		if len(b.subs[conversationID]) == 0 {
			delete(b.subs, conversationID)
		}
		b.mu.Unlock()
	}()

	if ready != nil {
		ready()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m := <-ch:
			handler(ctx, m)
		}
	}
}
