package httpgin

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/ticketticket/internal/domain"
	redisrepo "github.com/kirinyoku/ticketticket/internal/repository/redis"
	"github.com/kirinyoku/ticketticket/internal/service"
	"github.com/kirinyoku/ticketticket/internal/service/listing"
)

// @Summary  List listings
// @Param    status      query  string  false  "open (default), matched, closed or all"
// @Param    ticketType  query  string  false  "ticket type"
// @Param    eventName   query  string  false  "event name substring"
// @Param    hostId      query  string  false  "host uuid"
// @Param    dateFrom    query  string  false  "YYYY-MM-DD"
// @Param    dateTo      query  string  false  "YYYY-MM-DD"
// @Param    sort        query  string  false  "event_date, newest, price_asc or price_desc"
// @Param    limit       query  int     false  "page size"
// @Param    offset      query  int     false  "offset"
// @Success  200  {array}   domain.Listing
// @Failure  400  {object}  ErrorResponse
// @Router   /v1/listings [get]
func handleListListings(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := domain.ListingFilter{
			Status:     domain.ListingStatus(c.Query("status")),
			TicketType: domain.TicketType(c.Query("ticketType")),
			EventName:  strings.TrimSpace(c.Query("eventName")),
			Sort:       domain.ListingSort(c.Query("sort")),
			Limit:      parseIntDefault(c.Query("limit"), 0),
			Offset:     parseIntDefault(c.Query("offset"), 0),
		}

		if s := c.Query("hostId"); s != "" {
			id, err := uuid.Parse(s)
			if err != nil {
				badRequest(c, "invalid hostId")
				return
			}
			f.HostID = &id
		}

		for _, q := range []struct {
			name string
			dst  **domain.Date
		}{{"dateFrom", &f.DateFrom}, {"dateTo", &f.DateTo}} {
			s := c.Query(q.name)
			if s == "" {
				continue
			}
			d, err := domain.ParseDate(s)
			if err != nil {
				badRequest(c, "invalid "+q.name+", expected YYYY-MM-DD")
				return
			}
			*q.dst = &d
		}

		out, err := svcs.Listings.List(c.Request.Context(), f)
		if err != nil {
			respondErr(c, err)
			return
		}

		writeJSONWithCache(c, http.StatusOK, out, "public, max-age=15", true)
	}
}

// @Summary  Get listing
// @Param    id  path  string  true  "Listing ID"
// @Success  200  {object}  domain.Listing
// @Failure  404  {object}  ErrorResponse
// @Router   /v1/listings/{id} [get]
func handleGetListing(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		l, err := svcs.Listings.Get(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}

		writeJSONWithCache(c, http.StatusOK, l, "public, max-age=30", true)
	}
}

// @Summary  Create listing (idempotent)
// @Security BearerAuth
// @Param    req  body  CreateListingRequest  true  "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201  {object}  domain.Listing
// @Failure  400  {object}  ErrorResponse
// @Failure  401  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse "idempotency key in progress"
// @Router   /v1/listings [post]
func handleCreateListing(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateListingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		hostID := callerID(c)
		ctx := c.Request.Context()

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemListing(hostID, idemKey)

			state, payload, err := idem.Begin(ctx, idemStorageKey)
			if err != nil {
				respondErr(c, err)
				return
			}

			switch state {
			case redisrepo.IdemReplay:
				c.Header("Idempotency-Key", idemKey)
				c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
				return
			case redisrepo.IdemInProgress:
				c.Header("Retry-After", "1")
				c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
				return
			}
		}

		l, err := svcs.Listings.Create(ctx, hostID, req.input())
		if err != nil {
			if idemStorageKey != "" {
				_ = idem.Abort(ctx, idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		if idemStorageKey != "" {
			b, _ := json.Marshal(l)
			if err := idem.Complete(ctx, idemStorageKey, string(b)); err != nil {
				_ = c.Error(err)
			}
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, l)
	}
}

// @Summary  Change listing status
// @Security BearerAuth
// @Param    id   path  string               true  "Listing ID"
// @Param    req  body  UpdateStatusRequest  true  "payload"
// @Success  200  {object}  domain.Listing
// @Failure  400  {object}  ErrorResponse
// @Failure  403  {object}  ErrorResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /v1/listings/{id}/status [patch]
func handleUpdateListingStatus(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		var req UpdateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		l, err := svcs.Listings.UpdateStatus(c.Request.Context(), callerID(c), id, req.Status)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, l)
	}
}

// @Summary  Change listing price
// @Security BearerAuth
// @Param    id   path  string              true  "Listing ID"
// @Param    req  body  UpdatePriceRequest  true  "payload"
// @Success  200  {object}  domain.Listing
// @Failure  400  {object}  ErrorResponse
// @Failure  403  {object}  ErrorResponse
// @Router   /v1/listings/{id}/price [patch]
func handleUpdateListingPrice(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		var req UpdatePriceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		l, err := svcs.Listings.UpdatePrice(c.Request.Context(), callerID(c), id, listing.PriceUpdate{
			AskingPriceJPY:   int(req.AskingPriceJPY),
			SubsidyAmount:    int(req.SubsidyAmount),
			SubsidyDirection: req.SubsidyDirection,
		})
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, l)
	}
}

// @Summary  Delete listing
// @Security BearerAuth
// @Param    id  path  string  true  "Listing ID"
// @Success  204
// @Failure  403  {object}  ErrorResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /v1/listings/{id} [delete]
func handleDeleteListing(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		if err := svcs.Listings.Delete(c.Request.Context(), callerID(c), id); err != nil {
			respondErr(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}

// @Summary  Review eligibility for the caller
// @Param    id  path  string  true  "Listing ID"
// @Success  200  {object}  domain.ReviewEligibility
// @Router   /v1/listings/{id}/review-eligibility [get]
func handleReviewEligibility(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		var viewer *uuid.UUID
		if ident, ok := identity(c); ok {
			viewer = &ident.UserID
		}

		res, err := svcs.Reviews.Eligibility(c.Request.Context(), viewer, id)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.Header("Cache-Control", "private, no-store")
		c.JSON(http.StatusOK, res)
	}
}
