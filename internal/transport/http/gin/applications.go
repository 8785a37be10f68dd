package httpgin

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/ticketticket/internal/domain"
	"github.com/kirinyoku/ticketticket/internal/service"
)

// @Summary  Apply to a listing
// @Security BearerAuth
// @Param    id   path  string        true   "Listing ID"
// @Param    req  body  ApplyRequest  false  "payload"
// @Success  201  {object}  domain.Application
// @Failure  400  {object}  ErrorResponse "self application / not open / already applied"
// @Failure  404  {object}  ErrorResponse
// @Failure  429  {object}  ErrorResponse "rate limited"
// @Router   /v1/listings/{id}/applications [post]
func handleApply(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		listingID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		var req ApplyRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err.Error())
				return
			}
		}

		a, err := svcs.Applications.Apply(c.Request.Context(), callerID(c), listingID, req.Message)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, a)
	}
}

// @Summary  List applications of a listing (host only)
// @Security BearerAuth
// @Param    id  path  string  true  "Listing ID"
// @Success  200  {array}   domain.Application
// @Failure  403  {object}  ErrorResponse
// @Router   /v1/listings/{id}/applications [get]
func handleListListingApplications(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		listingID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		out, err := svcs.Applications.ListForListing(c.Request.Context(), callerID(c), listingID)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, out)
	}
}

// @Summary  List my applications
// @Security BearerAuth
// @Success  200  {array}  domain.Application
// @Router   /v1/me/applications [get]
func handleListMyApplications(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := svcs.Applications.ListMine(c.Request.Context(), callerID(c))
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, out)
	}
}

// @Summary  Accept an application (host only)
// @Security BearerAuth
// @Param    id  path  string  true  "Application ID"
// @Success  200  {object}  application.AcceptResult
// @Failure  400  {object}  ErrorResponse "no available slots / invalid transition"
// @Failure  403  {object}  ErrorResponse
// @Router   /v1/applications/{id}/accept [post]
func handleAcceptApplication(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		res, err := svcs.Applications.Accept(c.Request.Context(), callerID(c), id)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, res)
	}
}

// @Summary  Reject an application (host only)
// @Security BearerAuth
// @Param    id  path  string  true  "Application ID"
// @Success  200  {object}  domain.Application
// @Router   /v1/applications/{id}/reject [post]
func handleRejectApplication(svcs *service.Services) gin.HandlerFunc {
	return applicationTransition(svcs.Applications.Reject)
}

// @Summary  Cancel my application
// @Security BearerAuth
// @Param    id  path  string  true  "Application ID"
// @Success  200  {object}  domain.Application
// @Router   /v1/applications/{id}/cancel [post]
func handleCancelApplication(svcs *service.Services) gin.HandlerFunc {
	return applicationTransition(svcs.Applications.Cancel)
}

func applicationTransition(
	fn func(ctx context.Context, callerID, applicationID uuid.UUID) (*domain.Application, error),
) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		a, err := fn(c.Request.Context(), callerID(c), id)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, a)
	}
}
