package application

import (
	"errors"
	"fmt"

	"github.com/kirinyoku/ticketticket/internal/domain"
)

var (
	ErrListingNotFound     = errors.New("listing not found")
	ErrApplicationNotFound = errors.New("application not found")
	ErrSelfApplication     = errors.New("you cannot apply to your own listing")
	ErrListingNotOpen      = errors.New("listing is not open for applications")
	ErrAlreadyApplied      = errors.New("you have already applied to this listing")
	ErrNoSlotsAvailable    = errors.New("no available slots")
	ErrConcurrentUpdate    = errors.New("application was changed by another request")
	ErrNotHost             = fmt.Errorf("%w: only the listing host can do this", domain.ErrForbidden)
	ErrNotApplicant        = fmt.Errorf("%w: only the applicant can do this", domain.ErrForbidden)
)
