package domain

import "errors"

var ErrInvalidTransition = errors.New("invalid status transition")

// CanTransitionTo reports whether a listing may move from s to next.
// Closed is final; matched never goes back to open.
func (s ListingStatus) CanTransitionTo(next ListingStatus) bool {
	switch s {
	case ListingOpen:
		return next == ListingMatched || next == ListingClosed
	case ListingMatched:
		return next == ListingClosed
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s ApplicationStatus) Terminal() bool {
	return s == ApplicationAccepted || s == ApplicationRejected || s == ApplicationCancelled
}

// Active reports whether the application still blocks a new one for the
// same listing and guest.
func (s ApplicationStatus) Active() bool {
	return s != ApplicationCancelled
}

// CanTransitionTo reports whether an application may move from s to next.
// Only pending applications move.
func (s ApplicationStatus) CanTransitionTo(next ApplicationStatus) bool {
	return s == ApplicationPending && next.Terminal()
}
