package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketticket/internal/domain"
)

func (s *Store) CreateMessage(ctx context.Context, m *domain.Message) error {
	const op = "postgres.Store.CreateMessage"

	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}

	err := s.handle().QueryRow(ctx,
		`INSERT INTO messages (id, conversation_id, sender_id, content)
		 VALUES ($1, $2, $3, $4)
		 RETURNING is_read, created_at`,
		m.ID, m.ConversationID, m.SenderID, m.Content,
	).Scan(&m.IsRead, &m.CreatedAt)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// ListMessages returns the conversation's messages in insertion order.
func (s *Store) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]domain.Message, error) {
	const op = "postgres.Store.ListMessages"

	rows, err := s.handle().Query(ctx,
		`SELECT id, conversation_id, sender_id, content, is_read, created_at
		 FROM messages
		 WHERE conversation_id = $1
		 ORDER BY seq ASC`,
		conversationID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	out := []domain.Message{}
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (s *Store) MarkMessagesRead(ctx context.Context, conversationID, viewerID uuid.UUID) (int64, error) {
	const op = "postgres.Store.MarkMessagesRead"

	tag, err := s.handle().Exec(ctx,
		`UPDATE messages
		 SET is_read = true
		 WHERE conversation_id = $1 AND sender_id <> $2 AND NOT is_read`,
		conversationID, viewerID,
	)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return tag.RowsAffected(), nil
}
