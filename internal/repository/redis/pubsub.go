package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketticket/internal/domain"
	"github.com/redis/go-redis/v9"
)

// MessageEnvelope is the realtime payload pushed to conversation
// subscribers.
type MessageEnvelope struct {
	New domain.Message `json:"new"`
}

// MessagePubSub fans chat messages out over one Redis channel per
// conversation.
type MessagePubSub struct {
	rdb *redis.Client
}

func NewMessagePubSub(rdb *redis.Client) *MessagePubSub {
	return &MessagePubSub{rdb: rdb}
}

func (p *MessagePubSub) PublishMessage(ctx context.Context, m domain.Message) error {
	const op = "redis.MessagePubSub.PublishMessage"

	b, err := json.Marshal(MessageEnvelope{New: m})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := p.rdb.Publish(ctx, ChannelConversation(m.ConversationID), b).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Subscribe calls handler for every message published to the conversation
// until ctx is done. ready, when not nil, runs once Redis confirms the
// subscription.
func (p *MessagePubSub) Subscribe(
	ctx context.Context,
	conversationID uuid.UUID,
	ready func(),
	handler func(ctx context.Context, m domain.Message),
) error {
	const op = "redis.MessagePubSub.Subscribe"

	sub := p.rdb.Subscribe(ctx, ChannelConversation(conversationID))
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if ready != nil {
		ready()
	}

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env MessageEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err == nil &&
				env.New.ConversationID == conversationID {
				handler(ctx, env.New)
			}
		}
	}
}
