package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketticket/internal/domain"
	"github.com/kirinyoku/ticketticket/internal/repository"
)

func (s *Store) EnsureUser(_ context.Context, u domain.User) (*domain.User, error) {
	defer s.lock()()

	if existing, ok := s.st.users[u.ID]; ok {
		return &existing, nil
	}

	now := s.now()
	stored := domain.User{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.st.users[u.ID] = stored

	return &stored, nil
}

func (s *Store) GetUser(_ context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "memory.Store.GetUser"

	defer s.lock()()

	u, ok := s.st.users[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return &u, nil
}

func (s *Store) UpdateUser(_ context.Context, u *domain.User) error {
	const op = "memory.Store.UpdateUser"

	defer s.lock()()

	stored, ok := s.st.users[u.ID]
	if !ok {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	stored.DisplayName = u.DisplayName
	stored.Bio = u.Bio
	stored.XHandle = u.XHandle
	stored.UpdatedAt = s.now()
	s.st.users[u.ID] = stored

	u.UpdatedAt = stored.UpdatedAt

	return nil
}

func (s *Store) UpdateAvatar(_ context.Context, id uuid.UUID, avatarURL string) error {
	const op = "memory.Store.UpdateAvatar"

	defer s.lock()()

	u, ok := s.st.users[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	u.AvatarURL = avatarURL
	u.UpdatedAt = s.now()
	s.st.users[id] = u

	return nil
}
