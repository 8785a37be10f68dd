package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketticket/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu      sync.Mutex
	me      uuid.UUID
	conv    uuid.UUID
	history []domain.Message
	sendErr error
	sent    []string
	// echo delivers the sent message to the stream before Send returns.
	echo func(domain.Message)
	push chan domain.Message
	// drops is the number of streams that break right after connecting.
	drops   int
	streams int
}

func (f *fakeAPI) Open(context.Context, uuid.UUID) (*Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &Thread{Messages: append([]domain.Message(nil), f.history...)}, nil
}

func (f *fakeAPI) setHistory(ms ...domain.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = ms
}

func (f *fakeAPI) Send(_ context.Context, conv uuid.UUID, content string) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, content)
	m := serverMessage(conv, f.me, content)
	if f.echo != nil {
		f.echo(m)
	}
	return &m, nil
}

func (f *fakeAPI) Stream(ctx context.Context, _ uuid.UUID, ready func(), fn func(domain.Message)) error {
	f.mu.Lock()
	f.streams++
	drop := f.streams <= f.drops
	f.mu.Unlock()

	ready()
	if drop {
		return errors.New("connection reset")
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-f.push:
			fn(m)
		}
	}
}

func TestSessionSendClearsDraftOnSuccess(t *testing.T) {
	me, conv := uuid.New(), uuid.New()
	api := &fakeAPI{me: me, conv: conv}
	s := NewSession(api, me, conv, nil)

	s.Draft().Set("see you there")
	require.NoError(t, s.Send(context.Background()))

	assert.Empty(t, s.Draft().Text())
	es := s.Timeline().Entries()
	require.Len(t, es, 1)
	assert.Equal(t, StateSent, es[0].State)
	assert.Equal(t, []string{"see you there"}, api.sent)
}

func TestSessionSendKeepsDraftOnFailure(t *testing.T) {
	me, conv := uuid.New(), uuid.New()
	api := &fakeAPI{me: me, conv: conv, sendErr: errors.New("offline")}
	s := NewSession(api, me, conv, nil)

	s.Draft().Set("hello")
	err := s.Send(context.Background())
	require.Error(t, err)

	assert.Equal(t, "hello", s.Draft().Text())
	failed := s.Timeline().Failed()
	require.Len(t, failed, 1)

	api.sendErr = nil
	require.NoError(t, s.Retry(context.Background(), failed[0]))

	es := s.Timeline().Entries()
	require.Len(t, es, 1)
	assert.Equal(t, StateSent, es[0].State)
	assert.Equal(t, "hello", es[0].Message.Content)
}

func TestSessionSendRejectsBlankDraft(t *testing.T) {
	s := NewSession(&fakeAPI{}, uuid.New(), uuid.New(), nil)
	s.Draft().Set("   ")
	assert.ErrorIs(t, s.Send(context.Background()), ErrEmptyDraft)
	assert.Empty(t, s.Timeline().Entries())
}

func TestSessionEchoRaceShowsMessageOnce(t *testing.T) {
	me, conv := uuid.New(), uuid.New()
	api := &fakeAPI{me: me, conv: conv}
	s := NewSession(api, me, conv, nil)
	api.echo = func(m domain.Message) { s.Timeline().Merge(m) }

	s.Draft().Set("hello")
	require.NoError(t, s.Send(context.Background()))

	assert.Len(t, s.Timeline().Entries(), 1)
}

func TestSessionLoadAndListen(t *testing.T) {
	me, them, conv := uuid.New(), uuid.New(), uuid.New()
	api := &fakeAPI{
		me:      me,
		conv:    conv,
		history: []domain.Message{serverMessage(conv, them, "hi")},
		push:    make(chan domain.Message),
	}
	s := NewSession(api, me, conv, nil)

	changes := make(chan struct{}, 16)
	s.OnChange(func() { changes <- struct{}{} })

	require.NoError(t, s.Load(context.Background()))
	<-changes

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- s.Listen(ctx, func() { close(ready) }) }()
	<-ready

	pushed := serverMessage(conv, them, "are you there?")
	api.push <- pushed
	<-changes
	api.push <- pushed

	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []string{"hi", "are you there?"}, contents(s.Timeline().Entries()))
}

func TestFollowReloadsHistoryAfterReconnect(t *testing.T) {
	me, host, conv := uuid.New(), uuid.New(), uuid.New()
	first := serverMessage(conv, host, "meet at gate 3?")
	api := &fakeAPI{me: me, conv: conv, history: []domain.Message{first}, drops: 1, push: make(chan domain.Message)}
	s := NewSession(api, me, conv, nil)
	require.NoError(t, s.Load(context.Background()))
	require.Len(t, s.Timeline().Entries(), 1)

	// pushed while the stream was down
	missed := serverMessage(conv, host, "I'm by the merch stand")
	api.setHistory(first, missed)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Follow(ctx, time.Millisecond)
	}()

	require.Eventually(t, func() bool {
		return len(s.Timeline().Entries()) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	es := s.Timeline().Entries()
	assert.Equal(t, first.ID, es[0].Message.ID)
	assert.Equal(t, missed.ID, es[1].Message.ID)
}
