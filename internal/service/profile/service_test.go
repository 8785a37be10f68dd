package profile

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketticket/internal/avatar"
	"github.com/kirinyoku/ticketticket/internal/domain"
	"github.com/kirinyoku/ticketticket/internal/moderation"
	"github.com/kirinyoku/ticketticket/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR")

func ptr(s string) *string { return &s }

type failingAvatars struct{}

func (failingAvatars) Save(context.Context, uuid.UUID, []byte) (string, error) {
	return "", avatar.ErrUnsupportedType
}

func newService(t *testing.T, avatars AvatarStore) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return New(store, nil, avatars, moderation.Default(), nil, Config{MaxAvatarBytes: 1024}), store
}

func TestMeCreatesUserOnce(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t, nil)
	id := uuid.New()

	u, err := s.Me(ctx, id, "  Mika  ", "https://cdn.example/mika.png")
	require.NoError(t, err)
	assert.Equal(t, "Mika", u.DisplayName)
	assert.Equal(t, "https://cdn.example/mika.png", u.AvatarURL)

	// a later login with another provider name does not overwrite the profile
	u, err = s.Me(ctx, id, "mika_official", "")
	require.NoError(t, err)
	assert.Equal(t, "Mika", u.DisplayName)

	anon, err := s.Me(ctx, uuid.New(), "", "")
	require.NoError(t, err)
	assert.Equal(t, defaultName, anon.DisplayName)

	long, err := s.Me(ctx, uuid.New(), strings.Repeat("x", 80), "")
	require.NoError(t, err)
	assert.Len(t, long.DisplayName, MaxDisplayNameLen)
}

func TestUpdateMe(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t, nil)
	id := uuid.New()

	_, err := s.UpdateMe(ctx, id, UpdateInput{Bio: ptr("hi")})
	require.ErrorIs(t, err, ErrUserNotFound)

	_, err = s.Me(ctx, id, "Mika", "")
	require.NoError(t, err)

	u, err := s.UpdateMe(ctx, id, UpdateInput{Bio: ptr(" Oshi: Pekora "), XHandle: ptr("@mika_vt")})
	require.NoError(t, err)
	assert.Equal(t, "Mika", u.DisplayName)
	assert.Equal(t, "Oshi: Pekora", u.Bio)
	assert.Equal(t, "mika_vt", u.XHandle)

	tests := []struct {
		name string
		in   UpdateInput
	}{
		{"blank name", UpdateInput{DisplayName: ptr("  ")}},
		{"long name", UpdateInput{DisplayName: ptr(strings.Repeat("名", 51))}},
		{"long bio", UpdateInput{Bio: ptr(strings.Repeat("a", 501))}},
		{"bad handle", UpdateInput{XHandle: ptr("not a handle")}},
		{"profane name", UpdateInput{DisplayName: ptr("fuck off")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.UpdateMe(ctx, id, tt.in)
			require.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestUploadAvatarFallsBackToDataURL(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t, avatar.NewStore("", "/avatars", nil))
	id := uuid.New()

	_, err := s.Me(ctx, id, "Mika", "")
	require.NoError(t, err)

	u, err := s.UploadAvatar(ctx, id, pngHeader)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u.AvatarURL, "data:image/png;base64,"))

	p, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, u.AvatarURL, p.User.AvatarURL)
}

func TestUploadAvatarToDisk(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t, avatar.NewStore(t.TempDir(), "/avatars/", nil))
	id := uuid.New()

	_, err := s.Me(ctx, id, "Mika", "")
	require.NoError(t, err)

	u, err := s.UploadAvatar(ctx, id, pngHeader)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u.AvatarURL, "/avatars/"+id.String()))
	assert.True(t, strings.HasSuffix(u.AvatarURL, ".png"))
}

func TestUploadAvatarRejects(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t, failingAvatars{})
	id := uuid.New()

	_, err := s.Me(ctx, id, "Mika", "")
	require.NoError(t, err)

	_, err = s.UploadAvatar(ctx, id, nil)
	require.ErrorIs(t, err, ErrAvatarEmpty)

	_, err = s.UploadAvatar(ctx, id, bytes.Repeat([]byte{1}, 1025))
	require.ErrorIs(t, err, ErrAvatarTooLarge)

	_, err = s.UploadAvatar(ctx, id, pngHeader)
	require.True(t, errors.Is(err, avatar.ErrUnsupportedType))
}

func TestGetProfileWithStats(t *testing.T) {
	ctx := context.Background()
	s, store := newService(t, nil)
	host := uuid.New()

	_, err := s.Get(ctx, host)
	require.ErrorIs(t, err, ErrUserNotFound)

	_, err = s.Me(ctx, host, "Host", "")
	require.NoError(t, err)

	l := &domain.Listing{
		HostID:          host,
		EventName:       "Live",
		EventDate:       domain.NewDate(2026, 1, 1),
		TicketType:      domain.TicketMainTransfer,
		TicketCountType: domain.CountSolo,
		TotalSlots:      1,
		Status:          domain.ListingClosed,
	}
	require.NoError(t, store.CreateListing(ctx, l))
	for _, rating := range []int{5, 3} {
		require.NoError(t, store.CreateReview(ctx, &domain.Review{
			ReviewerID: uuid.New(),
			RevieweeID: host,
			ListingID:  l.ID,
			Rating:     rating,
		}))
	}

	p, err := s.Get(ctx, host)
	require.NoError(t, err)
	assert.Equal(t, "Host", p.User.DisplayName)
	assert.Equal(t, domain.ReviewStats{Count: 2, Average: 4}, p.Stats)
}
