package httpgin

import (
	"github.com/google/uuid"
	"github.com/kirinyoku/ticketticket/internal/domain"
	"github.com/kirinyoku/ticketticket/internal/service/admin"
	"github.com/kirinyoku/ticketticket/internal/service/listing"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type CreateListingRequest struct {
	EventID           *uuid.UUID              `json:"eventId"`
	EventName         string                  `json:"eventName"`
	EventDate         domain.Date             `json:"eventDate"`
	Venue             string                  `json:"venue"`
	MeetingTime       string                  `json:"meetingTime"`
	MeetingLocation   string                  `json:"meetingLocation"`
	Description       string                  `json:"description"`
	TicketType        domain.TicketType       `json:"ticketType" binding:"required"`
	SeatGrade         string                  `json:"seatGrade"`
	TicketCountType   domain.TicketCountType  `json:"ticketCountType" binding:"required"`
	OriginalPriceJPY  domain.Yen              `json:"originalPriceJPY"`
	AskingPriceJPY    domain.Yen              `json:"askingPriceJPY"`
	TotalSlots        int                     `json:"totalSlots"`
	ExchangeEventName string                  `json:"exchangeEventName"`
	ExchangeSeatGrade string                  `json:"exchangeSeatGrade"`
	SubsidyAmount     domain.Yen              `json:"subsidyAmount"`
	SubsidyDirection  domain.SubsidyDirection `json:"subsidyDirection"`
}

func (r CreateListingRequest) input() listing.CreateInput {
	return listing.CreateInput{
		EventID:           r.EventID,
		EventName:         r.EventName,
		EventDate:         r.EventDate,
		Venue:             r.Venue,
		MeetingTime:       r.MeetingTime,
		MeetingLocation:   r.MeetingLocation,
		Description:       r.Description,
		TicketType:        r.TicketType,
		SeatGrade:         r.SeatGrade,
		TicketCountType:   r.TicketCountType,
		OriginalPriceJPY:  int(r.OriginalPriceJPY),
		AskingPriceJPY:    int(r.AskingPriceJPY),
		TotalSlots:        r.TotalSlots,
		ExchangeEventName: r.ExchangeEventName,
		ExchangeSeatGrade: r.ExchangeSeatGrade,
		SubsidyAmount:     int(r.SubsidyAmount),
		SubsidyDirection:  r.SubsidyDirection,
	}
}

type UpdateStatusRequest struct {
	Status domain.ListingStatus `json:"status" binding:"required"`
}

type UpdatePriceRequest struct {
	AskingPriceJPY   domain.Yen               `json:"askingPriceJPY"`
	SubsidyAmount    domain.Yen               `json:"subsidyAmount"`
	SubsidyDirection *domain.SubsidyDirection `json:"subsidyDirection,omitempty"`
}

type ApplyRequest struct {
	Message string `json:"message"`
}

type SendMessageRequest struct {
	Content string `json:"content"`
}

type SubmitReviewRequest struct {
	ListingID  uuid.UUID `json:"listingId" binding:"required"`
	RevieweeID uuid.UUID `json:"revieweeId" binding:"required"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
}

type UpdateMeRequest struct {
	DisplayName *string `json:"displayName"`
	Bio         *string `json:"bio"`
	XHandle     *string `json:"xHandle"`
}

type PriceTierRequest struct {
	SeatGrade       string                 `json:"seatGrade"`
	TicketCountType domain.TicketCountType `json:"ticketCountType"`
	PriceJPY        domain.Yen             `json:"priceJPY"`
}

type EventRequest struct {
	Name        string             `json:"name"`
	EventDate   domain.Date        `json:"eventDate"`
	Venue       string             `json:"venue"`
	Description string             `json:"description"`
	PriceTiers  []PriceTierRequest `json:"priceTiers"`
}

func (r EventRequest) input() admin.EventInput {
	tiers := make([]domain.TicketPriceTier, 0, len(r.PriceTiers))
	for _, t := range r.PriceTiers {
		tiers = append(tiers, domain.TicketPriceTier{
			SeatGrade:       t.SeatGrade,
			TicketCountType: t.TicketCountType,
			PriceJPY:        int(t.PriceJPY),
		})
	}

	return admin.EventInput{
		Name:        r.Name,
		EventDate:   r.EventDate,
		Venue:       r.Venue,
		Description: r.Description,
		PriceTiers:  tiers,
	}
}

type CaptchaRequest struct {
	Token string `json:"token"`
}

type CaptchaResponse struct {
	Success bool    `json:"success"`
	Score   float64 `json:"score"`
}
