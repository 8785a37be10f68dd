package chat

import (
	"errors"
	"fmt"

	"github.com/kirinyoku/ticketticket/internal/domain"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotParticipant       = fmt.Errorf("%w: not a participant of this conversation", domain.ErrForbidden)
	ErrRealtimeUnavailable  = errors.New("realtime channel unavailable")
)
