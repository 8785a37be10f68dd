package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketticket/internal/domain"
	"github.com/kirinyoku/ticketticket/internal/repository"
)

func (s *Store) EnsureConversation(
	_ context.Context,
	listingID, hostID, guestID uuid.UUID,
) (*domain.Conversation, bool, error) {
	const op = "memory.Store.EnsureConversation"

	defer s.lock()()

	if _, ok := s.st.listings[listingID]; !ok {
		return nil, false, fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	for _, c := range s.st.conversations {
		if c.ListingID == listingID && c.GuestID == guestID {
			return &c, false, nil
		}
	}

	c := domain.Conversation{
		ID:        uuid.New(),
		ListingID: listingID,
		HostID:    hostID,
		GuestID:   guestID,
		CreatedAt: s.now(),
	}
	s.st.conversations[c.ID] = c

	return &c, true, nil
}

func (s *Store) GetConversation(_ context.Context, id uuid.UUID) (*domain.Conversation, error) {
	const op = "memory.Store.GetConversation"

	defer s.lock()()

	c, ok := s.st.conversations[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return &c, nil
}

func (s *Store) ListConversationsForUser(_ context.Context, userID uuid.UUID) ([]domain.ConversationSummary, error) {
	defer s.lock()()

	type ranked struct {
		summary domain.ConversationSummary
		at      time.Time
		seq     int
	}

	var list []ranked
	for _, c := range s.st.conversations {
		if !c.HasParticipant(userID) {
			continue
		}

		r := ranked{
			summary: domain.ConversationSummary{
				Conversation:  c,
				EventName:     s.st.listings[c.ListingID].EventName,
				CounterpartID: c.Counterpart(userID),
			},
			at:  c.CreatedAt,
			seq: -1,
		}

		for i, m := range s.st.messages {
			if m.ConversationID != c.ID {
				continue
			}
			msg := m
			r.summary.LastMessage = &msg
			r.at, r.seq = m.CreatedAt, i
			if m.SenderID != userID && !m.IsRead {
				r.summary.UnreadCount++
			}
		}

		list = append(list, r)
	}

	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].at.Equal(list[j].at) {
			return list[i].at.After(list[j].at)
		}
		return list[i].seq > list[j].seq
	})

	out := make([]domain.ConversationSummary, 0, len(list))
	for _, r := range list {
		out = append(out, r.summary)
	}

	return out, nil
}

func (s *Store) CreateMessage(_ context.Context, m *domain.Message) error {
	const op = "memory.Store.CreateMessage"

	defer s.lock()()

	if _, ok := s.st.conversations[m.ConversationID]; !ok {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.IsRead = false
	m.CreatedAt = s.now()

	s.st.messages = append(s.st.messages, *m)

	return nil
}

func (s *Store) ListMessages(_ context.Context, conversationID uuid.UUID) ([]domain.Message, error) {
	defer s.lock()()

	out := []domain.Message{}
	for _, m := range s.st.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}

	return out, nil
}

func (s *Store) MarkMessagesRead(_ context.Context, conversationID, viewerID uuid.UUID) (int64, error) {
	defer s.lock()()

	var n int64
	for i := range s.st.messages {
		m := &s.st.messages[i]
		if m.ConversationID == conversationID && m.SenderID != viewerID && !m.IsRead {
			m.IsRead = true
			n++
		}
	}

	return n, nil
}
