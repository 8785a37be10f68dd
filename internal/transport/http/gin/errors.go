package httpgin

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/ticketticket/internal/avatar"
	"github.com/kirinyoku/ticketticket/internal/captcha"
	"github.com/kirinyoku/ticketticket/internal/domain"
	"github.com/kirinyoku/ticketticket/internal/service/admin"
	"github.com/kirinyoku/ticketticket/internal/service/application"
	"github.com/kirinyoku/ticketticket/internal/service/chat"
	"github.com/kirinyoku/ticketticket/internal/service/listing"
	"github.com/kirinyoku/ticketticket/internal/service/profile"
	"github.com/kirinyoku/ticketticket/internal/service/review"
)

// notFound errors answer 404 with their own text.
var notFound = []error{
	listing.ErrListingNotFound,
	application.ErrListingNotFound,
	application.ErrApplicationNotFound,
	chat.ErrConversationNotFound,
	review.ErrListingNotFound,
	admin.ErrEventNotFound,
	profile.ErrUserNotFound,
}

// rejected errors are business-rule conflicts. They answer 400 with their
// own text.
var rejected = []error{
	listing.ErrListingClosed,
	application.ErrSelfApplication,
	application.ErrListingNotOpen,
	application.ErrAlreadyApplied,
	application.ErrNoSlotsAvailable,
	application.ErrConcurrentUpdate,
	review.ErrAlreadyReviewed,
	admin.ErrTierConflict,
	profile.ErrAvatarEmpty,
	avatar.ErrUnsupportedType,
	captcha.ErrMissingToken,
}

// respondErr maps err to a status code and body. Unexpected errors are
// attached to the gin context, so the access log reports them, and the
// client only sees an opaque message.
func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var (
		ve *domain.ValidationError
		rl *domain.RateLimitError
		ne *review.NotEligibleError
	)

	switch {
	case errors.As(err, &ve):
		badRequest(c, ve.Error())
		return
	case errors.As(err, &ne):
		c.JSON(http.StatusBadRequest, gin.H{"error": review.ErrNotEligible.Error(), "reason": ne.Reason})
		return
	case errors.As(err, &rl):
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(rl.RetryAfter.Seconds()))))
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many requests, try again later"})
		return
	case errors.Is(err, domain.ErrInvalidTransition):
		badRequest(c, "this status change is not allowed")
		return
	case errors.Is(err, profile.ErrAvatarTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: profile.ErrAvatarTooLarge.Error()})
		return
	case errors.Is(err, chat.ErrRealtimeUnavailable):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "live updates are unavailable"})
		return
	case errors.Is(err, captcha.ErrUpstream):
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: captcha.ErrUpstream.Error()})
		return
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "you are not allowed to do this"})
		return
	}

	for _, target := range notFound {
		if errors.Is(err, target) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: target.Error()})
			return
		}
	}

	for _, target := range rejected {
		if errors.Is(err, target) {
			badRequest(c, target.Error())
			return
		}
	}

	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}
