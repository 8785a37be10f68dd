// Package chat keeps a client-side view of one conversation consistent
// while messages are sent optimistically and echoed back over the realtime
// stream.
package chat

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketticket/internal/domain"
)

const tempPrefix = "tmp-"

type EntryState string

const (
	StatePending EntryState = "pending"
	StateSent    EntryState = "sent"
	StateFailed  EntryState = "failed"
)

var (
	ErrUnknownEntry = errors.New("no such local message")
	ErrNotFailed    = errors.New("message has not failed")
)

// Entry is one row of the timeline. Key is the server id once the message
// is known to the server and a temporary id before that.
type Entry struct {
	Key     string
	Message domain.Message
	State   EntryState
	Err     error
}

func (e Entry) Local() bool { return strings.HasPrefix(e.Key, tempPrefix) }

// Timeline is an append-only list of messages. Order is insertion order,
// not timestamp order.
type Timeline struct {
	mu      sync.Mutex
	selfID  uuid.UUID
	convID  uuid.UUID
	entries []Entry
	now     func() time.Time
}

func NewTimeline(selfID, conversationID uuid.UUID) *Timeline {
	return &Timeline{selfID: selfID, convID: conversationID, now: time.Now}
}

// Reset replaces the timeline with history loaded from the server. Local
// entries that are still pending or failed are kept at the end.
func (t *Timeline) Reset(history []domain.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	local := make([]Entry, 0)
	for _, e := range t.entries {
		if e.Local() {
			local = append(local, e)
		}
	}

	t.entries = t.entries[:0]
	for _, m := range history {
		t.appendLocked(m)
	}
	t.entries = append(t.entries, local...)
}

// Begin appends a pending entry for content and returns its temporary id.
func (t *Timeline) Begin(content string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := tempPrefix + uuid.NewString()
	t.entries = append(t.entries, Entry{
		Key: key,
		Message: domain.Message{
			ConversationID: t.convID,
			SenderID:       t.selfID,
			Content:        content,
			IsRead:         true,
			CreatedAt:      t.now(),
		},
		State: StatePending,
	})

	return key
}

// Confirm swaps the pending entry for the server record. When the realtime
// echo of msg already landed, the pending entry is dropped instead.
func (t *Timeline) Confirm(tempID string, msg domain.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.findLocked(tempID)
	if i < 0 {
		return ErrUnknownEntry
	}

	if t.findLocked(msg.ID.String()) >= 0 {
		t.entries = append(t.entries[:i], t.entries[i+1:]...)
		return nil
	}

	t.entries[i] = Entry{Key: msg.ID.String(), Message: msg, State: StateSent}
	return nil
}

// Fail marks the entry as failed. It stays visible until retried or
// discarded.
func (t *Timeline) Fail(tempID string, err error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.findLocked(tempID)
	if i < 0 {
		return ErrUnknownEntry
	}

	t.entries[i].State = StateFailed
	t.entries[i].Err = err
	return nil
}

// Retry puts a failed entry back to pending and returns the content to
// resend.
func (t *Timeline) Retry(tempID string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.findLocked(tempID)
	if i < 0 {
		return "", ErrUnknownEntry
	}
	if t.entries[i].State != StateFailed {
		return "", ErrNotFailed
	}

	t.entries[i].State = StatePending
	t.entries[i].Err = nil
	return t.entries[i].Message.Content, nil
}

func (t *Timeline) Discard(tempID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.findLocked(tempID)
	if i < 0 {
		return ErrUnknownEntry
	}

	t.entries = append(t.entries[:i], t.entries[i+1:]...)
	return nil
}

// Merge appends pushed messages whose id is not on the timeline yet and
// reports how many were added.
func (t *Timeline) Merge(msgs ...domain.Message) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	added := 0
	for _, m := range msgs {
		if m.ConversationID != uuid.Nil && t.convID != uuid.Nil && m.ConversationID != t.convID {
			continue
		}
		if t.appendLocked(m) {
			added++
		}
	}
	return added
}

// Entries returns a snapshot in display order.
func (t *Timeline) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Failed returns the temporary ids of failed entries, oldest first.
func (t *Timeline) Failed() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []string
	for _, e := range t.entries {
		if e.State == StateFailed {
			out = append(out, e.Key)
		}
	}
	return out
}

func (t *Timeline) appendLocked(m domain.Message) bool {
	key := m.ID.String()
	if t.findLocked(key) >= 0 {
		return false
	}
	t.entries = append(t.entries, Entry{Key: key, Message: m, State: StateSent})
	return true
}

func (t *Timeline) findLocked(key string) int {
	for i := range t.entries {
		if t.entries[i].Key == key {
			return i
		}
	}
	return -1
}
