package admin

import (
	"errors"
)

var (
	ErrEventNotFound = errors.New("event not found")
	ErrTierConflict  = errors.New("duplicate price tier for the same seat grade and ticket count")
)
