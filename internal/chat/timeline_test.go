package chat

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketticket/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serverMessage(conv, sender uuid.UUID, content string) domain.Message {
	return domain.Message{
		ID:             uuid.New(),
		ConversationID: conv,
		SenderID:       sender,
		Content:        content,
		CreatedAt:      time.Now(),
	}
}

func contents(es []Entry) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.Message.Content)
	}
	return out
}

func TestBeginConfirm(t *testing.T) {
	me, conv := uuid.New(), uuid.New()
	tl := NewTimeline(me, conv)

	tmp := tl.Begin("hello")
	es := tl.Entries()
	require.Len(t, es, 1)
	assert.Equal(t, StatePending, es[0].State)
	assert.True(t, es[0].Local())
	assert.Equal(t, me, es[0].Message.SenderID)

	m := serverMessage(conv, me, "hello")
	require.NoError(t, tl.Confirm(tmp, m))

	es = tl.Entries()
	require.Len(t, es, 1)
	assert.Equal(t, StateSent, es[0].State)
	assert.Equal(t, m.ID.String(), es[0].Key)
	assert.False(t, es[0].Local())

	assert.Zero(t, tl.Merge(m), "echo after confirm is ignored")
	assert.Len(t, tl.Entries(), 1)
}

func TestEchoBeforeConfirm(t *testing.T) {
	me, conv := uuid.New(), uuid.New()
	tl := NewTimeline(me, conv)

	tmp := tl.Begin("hello")
	m := serverMessage(conv, me, "hello")

	assert.Equal(t, 1, tl.Merge(m))
	require.NoError(t, tl.Confirm(tmp, m))

	es := tl.Entries()
	require.Len(t, es, 1)
	assert.Equal(t, m.ID.String(), es[0].Key)
}

func TestFailRetryDiscard(t *testing.T) {
	tl := NewTimeline(uuid.New(), uuid.New())
	tmp := tl.Begin("hello")

	boom := errors.New("offline")
	require.NoError(t, tl.Fail(tmp, boom))

	es := tl.Entries()
	require.Len(t, es, 1, "failed messages stay visible")
	assert.Equal(t, StateFailed, es[0].State)
	assert.ErrorIs(t, es[0].Err, boom)
	assert.Equal(t, []string{tmp}, tl.Failed())

	content, err := tl.Retry(tmp)
	require.NoError(t, err)
	assert.Equal(t, "hello", content)
	assert.Equal(t, StatePending, tl.Entries()[0].State)

	_, err = tl.Retry(tmp)
	assert.ErrorIs(t, err, ErrNotFailed)

	require.NoError(t, tl.Discard(tmp))
	assert.Empty(t, tl.Entries())

	assert.ErrorIs(t, tl.Discard(tmp), ErrUnknownEntry)
	assert.ErrorIs(t, tl.Fail(tmp, boom), ErrUnknownEntry)
	assert.ErrorIs(t, tl.Confirm(tmp, domain.Message{}), ErrUnknownEntry)
}

func TestMergeKeepsInsertionOrder(t *testing.T) {
	me, them, conv := uuid.New(), uuid.New(), uuid.New()
	tl := NewTimeline(me, conv)

	later := serverMessage(conv, them, "second")
	earlier := serverMessage(conv, them, "first")
	earlier.CreatedAt = later.CreatedAt.Add(-time.Minute)

	assert.Equal(t, 2, tl.Merge(later, earlier, later))
	assert.Equal(t, []string{"second", "first"}, contents(tl.Entries()))

	other := serverMessage(uuid.New(), them, "elsewhere")
	assert.Zero(t, tl.Merge(other))
}

func TestResetKeepsLocalEntries(t *testing.T) {
	me, conv := uuid.New(), uuid.New()
	tl := NewTimeline(me, conv)

	tmp := tl.Begin("unsent")
	require.NoError(t, tl.Fail(tmp, errors.New("offline")))

	tl.Reset([]domain.Message{
		serverMessage(conv, me, "a"),
		serverMessage(conv, me, "b"),
	})

	assert.Equal(t, []string{"a", "b", "unsent"}, contents(tl.Entries()))
	assert.Equal(t, []string{tmp}, tl.Failed())
}
