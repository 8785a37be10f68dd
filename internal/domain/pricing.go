package domain

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

var (
	ErrPricePending    = errors.New("original price is not set")
	ErrPriceOutOfRange = errors.New("price is out of the allowed range")
)

// halfRoundUp is Math.round(v / 2) for non-negative v.
func halfRoundUp(v int) int {
	return (v + 1) / 2
}

// MaxAllowedPrice returns the asking-price ceiling for a listing. Companion
// listings split the ticket cost two ways, every other type is capped at
// the original price.
func MaxAllowedPrice(originalPriceJPY int, ticketType TicketType) int {
	if originalPriceJPY <= 0 {
		return 0
	}
	if ticketType == TicketFindCompanion {
		return halfRoundUp(originalPriceJPY)
	}
	return originalPriceJPY
}

// ValidateAskingPrice accepts asking prices in (0, MaxAllowedPrice].
//
// Returns:
//   - error: a *ValidationError matching ErrPricePending when no original
//     price is known yet.
//   - error: a *ValidationError matching ErrPriceOutOfRange otherwise.
func ValidateAskingPrice(originalPriceJPY int, ticketType TicketType, askingPriceJPY int) error {
	if originalPriceJPY <= 0 {
		return &ValidationError{
			Field:   "originalPriceJPY",
			Message: "select a seat tier with an administrator-defined price first",
			Reason:  ErrPricePending,
		}
	}

	maxAllowed := MaxAllowedPrice(originalPriceJPY, ticketType)
	if askingPriceJPY <= 0 || askingPriceJPY > maxAllowed {
		return &ValidationError{
			Field:   "askingPriceJPY",
			Message: "must be between 1 and " + strconv.Itoa(maxAllowed) + " JPY",
			Reason:  ErrPriceOutOfRange,
		}
	}

	return nil
}

// MaxSubsidy is the most one side of a ticket exchange may pay the other.
func MaxSubsidy(originalPriceJPY int) int {
	if originalPriceJPY <= 0 {
		return 0
	}
	return halfRoundUp(originalPriceJPY)
}

func ValidateSubsidy(originalPriceJPY, subsidyAmount int) error {
	if originalPriceJPY <= 0 {
		return &ValidationError{
			Field:   "originalPriceJPY",
			Message: "select a seat tier with an administrator-defined price first",
			Reason:  ErrPricePending,
		}
	}

	maxSubsidy := MaxSubsidy(originalPriceJPY)
	if subsidyAmount < 0 || subsidyAmount > maxSubsidy {
		return &ValidationError{
			Field:   "subsidyAmount",
			Message: "must be between 0 and " + strconv.Itoa(maxSubsidy) + " JPY",
			Reason:  ErrPriceOutOfRange,
		}
	}

	return nil
}

// ParseYen parses a whole yen amount. Anything that is not an integer
// yields 0.
func ParseYen(s string) int {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

// Yen is a JSON price field that accepts numbers or numeric strings and
// falls back to 0 for anything else.
type Yen int

func (y *Yen) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*y = Yen(ParseYen(n.String()))
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*y = Yen(ParseYen(s))
		return nil
	}

	*y = 0
	return nil
}
