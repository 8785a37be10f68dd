package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketticket/internal/domain"
)

type ListingRepository interface {
	CreateListing(ctx context.Context, l *domain.Listing) error
	GetListing(ctx context.Context, id uuid.UUID) (*domain.Listing, error)
	ListListings(ctx context.Context, f domain.ListingFilter) ([]domain.Listing, error)
	UpdateListingStatus(ctx context.Context, id uuid.UUID, status domain.ListingStatus) error
	UpdateListingPrice(
		ctx context.Context,
		id uuid.UUID,
		askingPriceJPY, subsidyAmount int,
		direction domain.SubsidyDirection,
	) error
	// DecrementAvailableSlots takes one slot only while one is left.
	// Returns ErrNoSlots when none is left.
	DecrementAvailableSlots(ctx context.Context, id uuid.UUID) (int, error)
	DeleteListing(ctx context.Context, id uuid.UUID) error
}

type ApplicationRepository interface {
	// CreateApplication returns ErrConflict when the guest already holds a
	// non-cancelled application for the listing.
	CreateApplication(ctx context.Context, a *domain.Application) error
	GetApplication(ctx context.Context, id uuid.UUID) (*domain.Application, error)
	FindActiveApplication(ctx context.Context, listingID, guestID uuid.UUID) (*domain.Application, error)
	ListApplicationsByListing(ctx context.Context, listingID uuid.UUID) ([]domain.Application, error)
	ListApplicationsByGuest(ctx context.Context, guestID uuid.UUID) ([]domain.Application, error)
	// UpdateApplicationStatus moves the application only if it still has
	// status from. Returns ErrConflict otherwise.
	UpdateApplicationStatus(ctx context.Context, id uuid.UUID, from, to domain.ApplicationStatus) error
}

type ConversationRepository interface {
	// EnsureConversation returns the single conversation for the listing and
	// guest, creating it when missing. created is false when it existed.
	EnsureConversation(ctx context.Context, listingID, hostID, guestID uuid.UUID) (conv *domain.Conversation, created bool, err error)
	GetConversation(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	ListConversationsForUser(ctx context.Context, userID uuid.UUID) ([]domain.ConversationSummary, error)
}

type MessageRepository interface {
	CreateMessage(ctx context.Context, m *domain.Message) error
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]domain.Message, error)
	// MarkMessagesRead flags every message not sent by viewerID as read.
	MarkMessagesRead(ctx context.Context, conversationID, viewerID uuid.UUID) (int64, error)
}

type ReviewRepository interface {
	// CreateReview returns ErrConflict for a second review of the same
	// person on the same listing.
	CreateReview(ctx context.Context, r *domain.Review) error
	ListReviewsByReviewer(ctx context.Context, reviewerID, listingID uuid.UUID) ([]domain.Review, error)
	ListReviewsForUser(ctx context.Context, revieweeID uuid.UUID) ([]domain.Review, error)
}

type EventRepository interface {
	CreateEvent(ctx context.Context, e *domain.Event) error
	UpdateEvent(ctx context.Context, e *domain.Event) error
	DeleteEvent(ctx context.Context, id uuid.UUID) error
	GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error)
	ListEvents(ctx context.Context) ([]domain.Event, error)
	FindPriceTier(ctx context.Context, eventID uuid.UUID, seatGrade string, countType domain.TicketCountType) (*domain.TicketPriceTier, error)
}

type UserRepository interface {
	// EnsureUser inserts u unless a user with the same id exists, then
	// returns the stored row.
	EnsureUser(ctx context.Context, u domain.User) (*domain.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
	UpdateUser(ctx context.Context, u *domain.User) error
	UpdateAvatar(ctx context.Context, id uuid.UUID, avatarURL string) error
}

// Store is the full persistence contract. InTx runs fn against a Store bound
// to a single transaction.
type Store interface {
	ListingRepository
	ApplicationRepository
	ConversationRepository
	MessageRepository
	ReviewRepository
	EventRepository
	UserRepository

	InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
