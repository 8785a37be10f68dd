package domain

import (
	"time"

	"github.com/google/uuid"
)

type TicketType string

const (
	TicketFindCompanion TicketType = "find_companion"
	TicketMainTransfer  TicketType = "main_ticket_transfer"
	TicketSubTransfer   TicketType = "sub_ticket_transfer"
	TicketExchange      TicketType = "ticket_exchange"
)

func (t TicketType) Valid() bool {
	switch t {
	case TicketFindCompanion, TicketMainTransfer, TicketSubTransfer, TicketExchange:
		return true
	}
	return false
}

type TicketCountType string

const (
	CountSolo TicketCountType = "solo"
	CountDuo  TicketCountType = "duo"
)

func (t TicketCountType) Valid() bool {
	return t == CountSolo || t == CountDuo
}

type ListingStatus string

const (
	ListingOpen    ListingStatus = "open"
	ListingMatched ListingStatus = "matched"
	ListingClosed  ListingStatus = "closed"
)

func (s ListingStatus) Valid() bool {
	return s == ListingOpen || s == ListingMatched || s == ListingClosed
}

type SubsidyDirection string

const (
	SubsidyNone      SubsidyDirection = ""
	SubsidyHostPays  SubsidyDirection = "host_pays"
	SubsidyGuestPays SubsidyDirection = "guest_pays"
)

func (d SubsidyDirection) Valid() bool {
	return d == SubsidyNone || d == SubsidyHostPays || d == SubsidyGuestPays
}

type ApplicationStatus string

const (
	ApplicationPending   ApplicationStatus = "pending"
	ApplicationAccepted  ApplicationStatus = "accepted"
	ApplicationRejected  ApplicationStatus = "rejected"
	ApplicationCancelled ApplicationStatus = "cancelled"
)

type User struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"displayName"`
	AvatarURL   string    `json:"avatarUrl"`
	Bio         string    `json:"bio"`
	XHandle     string    `json:"xHandle"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Listing struct {
	ID                uuid.UUID        `json:"id"`
	HostID            uuid.UUID        `json:"hostId"`
	EventID           *uuid.UUID       `json:"eventId,omitempty"`
	EventName         string           `json:"eventName"`
	EventDate         Date             `json:"eventDate"`
	Venue             string           `json:"venue"`
	MeetingTime       string           `json:"meetingTime"`
	MeetingLocation   string           `json:"meetingLocation"`
	Description       string           `json:"description"`
	TicketType        TicketType       `json:"ticketType"`
	SeatGrade         string           `json:"seatGrade"`
	TicketCountType   TicketCountType  `json:"ticketCountType"`
	OriginalPriceJPY  int              `json:"originalPriceJPY"`
	AskingPriceJPY    int              `json:"askingPriceJPY"`
	TotalSlots        int              `json:"totalSlots"`
	AvailableSlots    int              `json:"availableSlots"`
	Status            ListingStatus    `json:"status"`
	ExchangeEventName string           `json:"exchangeEventName,omitempty"`
	ExchangeSeatGrade string           `json:"exchangeSeatGrade,omitempty"`
	SubsidyAmount     int              `json:"subsidyAmount"`
	SubsidyDirection  SubsidyDirection `json:"subsidyDirection,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

type ListingSort string

const (
	SortEventDate ListingSort = "event_date"
	SortNewest    ListingSort = "newest"
	SortPriceAsc  ListingSort = "price_asc"
	SortPriceDesc ListingSort = "price_desc"
)

type ListingFilter struct {
	Status     ListingStatus
	TicketType TicketType
	EventName  string
	HostID     *uuid.UUID
	DateFrom   *Date
	DateTo     *Date
	Sort       ListingSort
	Limit      int
	Offset     int
}

type Application struct {
	ID        uuid.UUID         `json:"id"`
	ListingID uuid.UUID         `json:"listingId"`
	GuestID   uuid.UUID         `json:"guestId"`
	Status    ApplicationStatus `json:"status"`
	Message   string            `json:"message"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

type Conversation struct {
	ID        uuid.UUID `json:"id"`
	ListingID uuid.UUID `json:"listingId"`
	HostID    uuid.UUID `json:"hostId"`
	GuestID   uuid.UUID `json:"guestId"`
	CreatedAt time.Time `json:"createdAt"`
}

// HasParticipant reports whether userID is the host or the guest.
func (c Conversation) HasParticipant(userID uuid.UUID) bool {
	return c.HostID == userID || c.GuestID == userID
}

// Counterpart returns the other participant.
func (c Conversation) Counterpart(userID uuid.UUID) uuid.UUID {
	if c.HostID == userID {
		return c.GuestID
	}
	return c.HostID
}

type ConversationSummary struct {
	Conversation
	EventName     string    `json:"eventName"`
	CounterpartID uuid.UUID `json:"counterpartId"`
	LastMessage   *Message  `json:"lastMessage,omitempty"`
	UnreadCount   int       `json:"unreadCount"`
}

type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversationId"`
	SenderID       uuid.UUID `json:"senderId"`
	Content        string    `json:"content"`
	IsRead         bool      `json:"isRead"`
	CreatedAt      time.Time `json:"createdAt"`
}

type Review struct {
	ID         uuid.UUID `json:"id"`
	ReviewerID uuid.UUID `json:"reviewerId"`
	RevieweeID uuid.UUID `json:"revieweeId"`
	ListingID  uuid.UUID `json:"listingId"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"createdAt"`
}

type ReviewStats struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}

type Event struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	EventDate   Date              `json:"eventDate"`
	Venue       string            `json:"venue"`
	Description string            `json:"description"`
	PriceTiers  []TicketPriceTier `json:"priceTiers"`
	CreatedAt   time.Time         `json:"createdAt"`
}

type TicketPriceTier struct {
	SeatGrade       string          `json:"seatGrade"`
	TicketCountType TicketCountType `json:"ticketCountType"`
	PriceJPY        int             `json:"priceJPY"`
}
