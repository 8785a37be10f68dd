package review

import (
	"errors"
	"fmt"

	"github.com/kirinyoku/ticketticket/internal/domain"
)

var (
	ErrListingNotFound = errors.New("listing not found")
	ErrAlreadyReviewed = errors.New("you have already reviewed this user for this listing")
	ErrNotEligible     = errors.New("not eligible to review this user")
)

// NotEligibleError carries the reason code of a refused review.
type NotEligibleError struct {
	Reason domain.ReviewReason
}

func (e *NotEligibleError) Error() string {
	if e.Reason == "" {
		return ErrNotEligible.Error()
	}
	return fmt.Sprintf("%s: %s", ErrNotEligible, e.Reason)
}

func (e *NotEligibleError) Unwrap() error { return ErrNotEligible }
