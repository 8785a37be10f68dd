package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketticket/internal/domain"
	"github.com/kirinyoku/ticketticket/internal/moderation"
	"github.com/kirinyoku/ticketticket/internal/mq"
	"github.com/kirinyoku/ticketticket/internal/repository"
	"github.com/kirinyoku/ticketticket/internal/uow"
)

const MaxContentLen = 2000

// Realtime fans new messages out to the subscribers of a conversation.
// redis.MessagePubSub and memory.Broker satisfy it.
type Realtime interface {
	PublishMessage(ctx context.Context, m domain.Message) error
	Subscribe(
		ctx context.Context,
		conversationID uuid.UUID,
		ready func(),
		handler func(ctx context.Context, m domain.Message),
	) error
}

type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type Limiter interface {
	Allow(ctx context.Context, suffix string) (allowed bool, current int64, retryAfter time.Duration, err error)
}

type Service struct {
	store    repository.Store
	realtime Realtime
	pub      Publisher
	limiter  Limiter
	filter   *moderation.Filter
	uow      *uow.UoW
	log      *slog.Logger
}

func New(
	store repository.Store,
	realtime Realtime,
	pub Publisher,
	limiter Limiter,
	filter *moderation.Filter,
	logger *slog.Logger,
) *Service {
	if pub == nil {
		pub = mq.Nop{}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		store:    store,
		realtime: realtime,
		pub:      pub,
		limiter:  limiter,
		filter:   filter,
		uow:      uow.NewUoW(store),
		log:      logger,
	}
}

// ListConversations returns the conversations userID takes part in, most
// recently active first.
func (s *Service) ListConversations(ctx context.Context, userID uuid.UUID) ([]domain.ConversationSummary, error) {
	const op = "service.chat.ListConversations"

	out, err := s.store.ListConversationsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

type Thread struct {
	Conversation *domain.Conversation `json:"conversation"`
	Messages     []domain.Message     `json:"messages"`
}

// Open returns the conversation history in insertion order. Every message
// the viewer did not send is marked read.
func (s *Service) Open(ctx context.Context, viewerID, conversationID uuid.UUID) (*Thread, error) {
	const op = "service.chat.Open"

	var th Thread

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Store, _ func(uow.AfterCommit)) error {
		conv, err := participantOf(ctx, tx, viewerID, conversationID)
		if err != nil {
			return err
		}

		if _, err := tx.MarkMessagesRead(ctx, conversationID, viewerID); err != nil {
			return err
		}

		msgs, err := tx.ListMessages(ctx, conversationID)
		if err != nil {
			return err
		}

		th = Thread{Conversation: conv, Messages: msgs}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &th, nil
}

// Send stores a message from senderID and pushes it to live subscribers
// once committed. Profanity is masked, not rejected.
//
// Returns:
//   - *domain.Message: the stored message.
//   - error: ErrNotParticipant, a *domain.ValidationError for empty or
//     oversized content, a *domain.RateLimitError.
func (s *Service) Send(
	ctx context.Context,
	senderID, conversationID uuid.UUID,
	content string,
) (*domain.Message, error) {
	const op = "service.chat.Send"

	content, err := domain.CleanText("content", content, 1, MaxContentLen)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	content = s.filter.Mask(content)

	if _, err := participantOf(ctx, s.store, senderID, conversationID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.allow(ctx, senderID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	m := &domain.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
	}

	err = s.uow.Do(ctx, func(ctx context.Context, tx repository.Store, after func(uow.AfterCommit)) error {
		if err := tx.CreateMessage(ctx, m); err != nil {
			return err
		}

		snapshot := *m
		after(func(ctx context.Context) {
			if s.realtime != nil {
				if err := s.realtime.PublishMessage(ctx, snapshot); err != nil {
					s.log.WarnContext(ctx, "realtime publish failed",
						slog.String("conversation_id", conversationID.String()),
						slog.Any("err", err),
					)
				}
			}
			if err := s.pub.PublishJSON(ctx, mq.KeyMessageSent, snapshot); err != nil {
				s.log.WarnContext(ctx, "publish failed", slog.String("key", mq.KeyMessageSent), slog.Any("err", err))
			}
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return m, nil
}

// Subscribe streams new messages of a conversation to handler until ctx is
// done. ready runs once the subscription is live.
func (s *Service) Subscribe(
	ctx context.Context,
	viewerID, conversationID uuid.UUID,
	ready func(),
	handler func(ctx context.Context, m domain.Message),
) error {
	const op = "service.chat.Subscribe"

	if _, err := participantOf(ctx, s.store, viewerID, conversationID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if s.realtime == nil {
		return fmt.Errorf("%s: %w", op, ErrRealtimeUnavailable)
	}

	err := s.realtime.Subscribe(ctx, conversationID, ready, handler)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Participant returns the conversation when userID takes part in it.
func (s *Service) Participant(ctx context.Context, userID, conversationID uuid.UUID) (*domain.Conversation, error) {
	const op = "service.chat.Participant"

	conv, err := participantOf(ctx, s.store, userID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return conv, nil
}

func participantOf(
	ctx context.Context,
	repo repository.ConversationRepository,
	userID, conversationID uuid.UUID,
) (*domain.Conversation, error) {
	conv, err := repo.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}

	if !conv.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}

	return conv, nil
}

func (s *Service) allow(ctx context.Context, senderID uuid.UUID) error {
	if s.limiter == nil {
		return nil
	}

	ok, _, retry, err := s.limiter.Allow(ctx, senderID.String())
	if err != nil {
		s.log.WarnContext(ctx, "rate limiter unavailable", slog.Any("err", err))
		return nil
	}

	if !ok {
		return &domain.RateLimitError{RetryAfter: retry}
	}

	return nil
}
