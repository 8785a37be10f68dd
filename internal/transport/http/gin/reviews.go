package httpgin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/ticketticket/internal/service"
	"github.com/kirinyoku/ticketticket/internal/service/review"
)

// @Summary  Review a counterpart of a listing
// @Security BearerAuth
// @Param    req  body  SubmitReviewRequest  true  "payload"
// @Success  201  {object}  domain.Review
// @Failure  400  {object}  ErrorResponse "invalid rating / not eligible / already reviewed"
// @Failure  404  {object}  ErrorResponse
// @Router   /v1/reviews [post]
func handleSubmitReview(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SubmitReviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		r, err := svcs.Reviews.Submit(c.Request.Context(), callerID(c), review.SubmitInput{
			ListingID:  req.ListingID,
			RevieweeID: req.RevieweeID,
			Rating:     req.Rating,
			Comment:    req.Comment,
		})
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, r)
	}
}

// @Summary  Reviews received by a user, with aggregate stats
// @Param    id  path  string  true  "User ID"
// @Success  200  {object}  review.UserReviews
// @Router   /v1/users/{id}/reviews [get]
func handleListUserReviews(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		out, err := svcs.Reviews.ListForUser(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}

		writeJSONWithCache(c, http.StatusOK, out, "public, max-age=30", true)
	}
}
