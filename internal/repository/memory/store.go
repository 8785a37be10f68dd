// Package memory is an in-process repository.Store. It enforces the same
// uniqueness rules as the SQL schema and backs the service tests and the
// memory storage driver.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketticket/internal/domain"
	"github.com/kirinyoku/ticketticket/internal/repository"
)

type state struct {
	seq           int64
	users         map[uuid.UUID]domain.User
	listings      map[uuid.UUID]domain.Listing
	order         map[uuid.UUID]int64
	applications  map[uuid.UUID]domain.Application
	conversations map[uuid.UUID]domain.Conversation
	messages      []domain.Message
	reviews       map[uuid.UUID]domain.Review
	events        map[uuid.UUID]domain.Event
}

func newState() *state {
	return &state{
		users:         make(map[uuid.UUID]domain.User),
		listings:      make(map[uuid.UUID]domain.Listing),
		order:         make(map[uuid.UUID]int64),
		applications:  make(map[uuid.UUID]domain.Application),
		conversations: make(map[uuid.UUID]domain.Conversation),
		reviews:       make(map[uuid.UUID]domain.Review),
		events:        make(map[uuid.UUID]domain.Event),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (st *state) clone() *state {
	return &state{
		seq:           st.seq,
		users:         cloneMap(st.users),
		listings:      cloneMap(st.listings),
		order:         cloneMap(st.order),
		applications:  cloneMap(st.applications),
		conversations: cloneMap(st.conversations),
		messages:      append([]domain.Message(nil), st.messages...),
		reviews:       cloneMap(st.reviews),
		events:        cloneMap(st.events),
	}
}

// Store is safe for concurrent use. Transactions serialize on a single
// mutex and roll back by restoring a snapshot.
type Store struct {
	mu   *sync.Mutex
	st   *state
	inTx bool
	now  func() time.Time
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		mu:  &sync.Mutex{},
		st:  newState(),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// lock acquires the store mutex unless the caller already runs inside InTx.
func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	tx := &Store{mu: s.mu, st: s.st, inTx: true, now: s.now}

	if err := fn(ctx, tx); err != nil {
		*s.st = *snapshot
		return err
	}

	return nil
}
