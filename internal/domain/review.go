package domain

import "github.com/google/uuid"

type ReviewReason string

const (
	ReasonNotLoggedIn            ReviewReason = "not_logged_in"
	ReasonListingNotFound        ReviewReason = "listing_not_found"
	ReasonEventNotPassed         ReviewReason = "event_not_passed"
	ReasonAlreadyReviewed        ReviewReason = "already_reviewed"
	ReasonNoAcceptedGuests       ReviewReason = "no_accepted_guests"
	ReasonAllGuestsReviewed      ReviewReason = "all_guests_reviewed"
	ReasonApplicationNotAccepted ReviewReason = "application_not_accepted"
)

const (
	RoleHost  = "host"
	RoleGuest = "guest"
)

type ReviewEligibility struct {
	CanReview bool         `json:"canReview"`
	Reason    ReviewReason `json:"reason,omitempty"`
	Role      string       `json:"role,omitempty"`
	Targets   []uuid.UUID  `json:"targets,omitempty"`
}

// CanReviewUser reports whether userID is among the reviewable targets.
func (e ReviewEligibility) CanReviewUser(userID uuid.UUID) bool {
	if !e.CanReview {
		return false
	}
	for _, t := range e.Targets {
		if t == userID {
			return true
		}
	}
	return false
}

type ReviewEligibilityInput struct {
	// ViewerID is nil for anonymous callers.
	ViewerID *uuid.UUID
	// Listing is nil when the listing does not exist.
	Listing *Listing
	// Applications holds every application of the listing.
	Applications []Application
	// ViewerReviews holds the reviews the viewer wrote for the listing.
	ViewerReviews []Review
	Today         Date
}

// EvaluateReviewEligibility decides whether the viewer may review someone
// for a listing, and whom. Ineligible results carry a reason code.
func EvaluateReviewEligibility(in ReviewEligibilityInput) ReviewEligibility {
	if in.ViewerID == nil {
		return ReviewEligibility{Reason: ReasonNotLoggedIn}
	}
	if in.Listing == nil {
		return ReviewEligibility{Reason: ReasonListingNotFound}
	}
	if !in.Listing.EventDate.Before(in.Today) {
		return ReviewEligibility{Reason: ReasonEventNotPassed}
	}

	viewer := *in.ViewerID
	reviewed := make(map[uuid.UUID]bool, len(in.ViewerReviews))
	for _, r := range in.ViewerReviews {
		reviewed[r.RevieweeID] = true
	}

	if viewer == in.Listing.HostID {
		var accepted, targets []uuid.UUID
		seen := make(map[uuid.UUID]bool)
		for _, a := range in.Applications {
			if a.Status != ApplicationAccepted || seen[a.GuestID] {
				continue
			}
			seen[a.GuestID] = true
			accepted = append(accepted, a.GuestID)
			if !reviewed[a.GuestID] {
				targets = append(targets, a.GuestID)
			}
		}

		switch {
		case len(accepted) == 0:
			return ReviewEligibility{Reason: ReasonNoAcceptedGuests, Role: RoleHost}
		case len(targets) == 0:
			return ReviewEligibility{Reason: ReasonAllGuestsReviewed, Role: RoleHost}
		}
		return ReviewEligibility{CanReview: true, Role: RoleHost, Targets: targets}
	}

	accepted := false
	for _, a := range in.Applications {
		if a.GuestID == viewer && a.Status == ApplicationAccepted {
			accepted = true
			break
		}
	}
	if !accepted {
		return ReviewEligibility{Reason: ReasonApplicationNotAccepted, Role: RoleGuest}
	}
	if reviewed[in.Listing.HostID] {
		return ReviewEligibility{Reason: ReasonAlreadyReviewed, Role: RoleGuest}
	}

	return ReviewEligibility{CanReview: true, Role: RoleGuest, Targets: []uuid.UUID{in.Listing.HostID}}
}
