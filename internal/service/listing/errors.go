package listing

import (
	"errors"
	"fmt"

	"github.com/kirinyoku/ticketticket/internal/domain"
)

var (
	ErrListingNotFound = errors.New("listing not found")
	ErrNotOwner        = fmt.Errorf("%w: only the host can change this listing", domain.ErrForbidden)
	ErrListingClosed   = errors.New("listing is closed")
)
