package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketticket/internal/domain"
)

var ErrEmptyDraft = errors.New("nothing to send")

// API is the part of Client a Session needs.
type API interface {
	Open(ctx context.Context, conversationID uuid.UUID) (*Thread, error)
	Send(ctx context.Context, conversationID uuid.UUID, content string) (*domain.Message, error)
	Stream(ctx context.Context, conversationID uuid.UUID, ready func(), fn func(domain.Message)) error
}

// Session ties a Timeline and a Composer to one conversation on the API.
type Session struct {
	api      API
	convID   uuid.UUID
	timeline *Timeline
	draft    *Composer
	log      *slog.Logger
	onChange func()
}

func NewSession(api API, selfID, conversationID uuid.UUID, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		api:      api,
		convID:   conversationID,
		timeline: NewTimeline(selfID, conversationID),
		draft:    &Composer{},
		log:      logger,
	}
}

func (s *Session) Timeline() *Timeline { return s.timeline }

func (s *Session) Draft() *Composer { return s.draft }

// OnChange registers fn to run after every timeline change. Call it before
// Listen.
func (s *Session) OnChange(fn func()) { s.onChange = fn }

func (s *Session) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

// Load fetches the history, which marks the conversation read.
func (s *Session) Load(ctx context.Context) error {
	th, err := s.api.Open(ctx, s.convID)
	if err != nil {
		return fmt.Errorf("chat.Session.Load: %w", err)
	}

	s.timeline.Reset(th.Messages)
	s.changed()
	return nil
}

// Send posts the current draft. The message shows up as pending at once;
// the draft is cleared only when the server accepted it. On failure the
// entry stays on the timeline as failed.
func (s *Session) Send(ctx context.Context) error {
	content := s.draft.Text()
	if strings.TrimSpace(content) == "" {
		return ErrEmptyDraft
	}

	tempID := s.timeline.Begin(content)
	s.changed()

	if err := s.deliver(ctx, tempID, content); err != nil {
		return err
	}

	s.draft.clearIf(content)
	return nil
}

// Retry resends a failed entry.
func (s *Session) Retry(ctx context.Context, tempID string) error {
	content, err := s.timeline.Retry(tempID)
	if err != nil {
		return fmt.Errorf("chat.Session.Retry: %w", err)
	}
	s.changed()

	return s.deliver(ctx, tempID, content)
}

func (s *Session) deliver(ctx context.Context, tempID, content string) error {
	m, err := s.api.Send(ctx, s.convID, content)
	if err != nil {
		_ = s.timeline.Fail(tempID, err)
		s.changed()
		return fmt.Errorf("chat.Session.Send: %w", err)
	}

	if err := s.timeline.Confirm(tempID, *m); err != nil {
		// the entry was discarded while the request was in flight
		s.log.Debug("confirm of a discarded message", "temp_id", tempID, "message_id", m.ID)
		s.timeline.Merge(*m)
	}
	s.changed()
	return nil
}

// Listen merges pushed messages into the timeline until ctx is done.
func (s *Session) Listen(ctx context.Context, ready func()) error {
	return s.api.Stream(ctx, s.convID, ready, func(m domain.Message) {
		if s.timeline.Merge(m) > 0 {
			s.changed()
		}
	})
}

// Follow keeps the stream open until ctx is done, reconnecting after
// retryDelay. Every reconnect fetches the history again so messages pushed
// while disconnected still reach the timeline.
func (s *Session) Follow(ctx context.Context, retryDelay time.Duration) {
	for attempt := 0; ctx.Err() == nil; attempt++ {
		reconnect := attempt > 0

		err := s.Listen(ctx, func() {
			s.log.Debug("stream connected", "reconnect", reconnect)
			if !reconnect {
				return
			}
			if err := s.catchUp(ctx); err != nil {
				s.log.Warn("history reload failed", "error", err)
			}
		})
		if err != nil && ctx.Err() == nil {
			s.log.Warn("stream interrupted", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(retryDelay):
		}
	}
}

// catchUp merges the server history into the timeline. Unlike Load it
// never drops entries that arrived on the stream in the meantime.
func (s *Session) catchUp(ctx context.Context) error {
	th, err := s.api.Open(ctx, s.convID)
	if err != nil {
		return fmt.Errorf("chat.Session.catchUp: %w", err)
	}

	if s.timeline.Merge(th.Messages...) > 0 {
		s.changed()
	}
	return nil
}
