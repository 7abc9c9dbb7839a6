// Package service contains the business logic between handlers and repositories.
package service

import (
	"context"
	"fmt"
	"time"

	"foodbridge/internal/models"
	"foodbridge/internal/observability"
	"foodbridge/internal/repository"

	"gorm.io/gorm"
)

// CreateRequestInput carries receiver-supplied fields for a new claim request.
type CreateRequestInput struct {
	FoodListingID       uint       `json:"food_listing_id"`
	Message             string     `json:"message"`
	RequestedAmount     float64    `json:"requested_amount"`
	RequestedUnit       string     `json:"requested_unit"`
	PreferredPickupTime *time.Time `json:"preferred_pickup_time"`
	PickupNote          string     `json:"pickup_note"`
}

// RespondInput carries the donor's accept/reject payload.
type RespondInput struct {
	Status          models.RequestStatus `json:"status"`
	ResponseMessage string               `json:"response_message"`
}

// CompleteInput carries the pickup record filled on completion.
type CompleteInput struct {
	ActualAmount float64 `json:"actual_amount"`
	ActualUnit   string  `json:"actual_unit"`
	PickupNotes  string  `json:"pickup_notes"`
}

// RequestEvents is the notification surface the request service pushes
// lifecycle updates through. Satisfied by notifications.Notifier.
type RequestEvents interface {
	NotifyRequestCreated(ctx context.Context, req *models.Request)
	NotifyRequestUpdated(ctx context.Context, req *models.Request)
}

// RequestService drives the claim-request state machine. All transitions are
// validated here; handlers never mutate status directly.
type RequestService struct {
	db       *gorm.DB
	requests repository.RequestRepository
	listings repository.ListingRepository
	users    repository.UserRepository
	events   RequestEvents
}

// NewRequestService returns a new RequestService.
func NewRequestService(
	db *gorm.DB,
	requests repository.RequestRepository,
	listings repository.ListingRepository,
	users repository.UserRepository,
	events RequestEvents,
) *RequestService {
	return &RequestService{db: db, requests: requests, listings: listings, users: users, events: events}
}

// Create validates the listing and receiver, claims capacity on the listing
// and records the pending request. A listing can carry several pending
// requests at once as long as their amounts fit within its quantity; when two
// receivers race for the last of it, the claim transaction serializes them
// and the loser gets a Conflict.
func (s *RequestService) Create(ctx context.Context, receiverID uint, in CreateRequestInput) (*models.Request, error) {
	receiver, err := s.users.GetByID(ctx, receiverID)
	if err != nil {
		return nil, err
	}
	if receiver.Role != models.RoleReceiver {
		return nil, models.NewForbiddenError("Only receivers can request food listings")
	}
	if in.RequestedAmount <= 0 {
		return nil, models.NewValidationError("Requested amount must be positive")
	}

	var req *models.Request
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		listings := s.listings.WithTx(tx)
		requests := s.requests.WithTx(tx)

		// Row lock serializes concurrent claims on the same listing.
		listing, err := listings.GetByIDForUpdate(ctx, in.FoodListingID)
		if err != nil {
			return err
		}
		if listing.DonorID == receiverID {
			return models.NewValidationError("Cannot request your own listing")
		}

		if !listing.AvailableForRequest(time.Now()) {
			return models.NewValidationError(
				fmt.Sprintf("Listing is not available for requests (status %s)", listing.Status))
		}

		if in.RequestedAmount > listing.QuantityAmount {
			return models.NewValidationError("Requested amount exceeds listed quantity")
		}

		already, err := requests.HasActiveRequest(ctx, listing.ID, receiverID)
		if err != nil {
			return err
		}
		if already {
			return models.NewConflictError("You already have an active request for this listing")
		}

		// Capacity check: other in-flight claims reserve their share of the
		// quantity. Losing here means someone else got there first.
		reserved, err := requests.SumActiveAmount(ctx, listing.ID)
		if err != nil {
			return err
		}
		if in.RequestedAmount > listing.QuantityAmount-reserved {
			observability.ListingClaimConflicts.Inc()
			return models.NewConflictError("Listing was just claimed by another request")
		}

		unit := in.RequestedUnit
		if unit == "" {
			unit = listing.QuantityUnit
		}
		req = &models.Request{
			FoodListingID:       listing.ID,
			DonorID:             listing.DonorID,
			ReceiverID:          receiverID,
			Status:              models.RequestPending,
			Message:             in.Message,
			RequestedAmount:     in.RequestedAmount,
			RequestedUnit:       unit,
			PreferredPickupTime: in.PreferredPickupTime,
			PickupNote:          in.PickupNote,
		}
		if err := requests.Create(ctx, req); err != nil {
			return err
		}

		if listing.Status == models.ListingAvailable {
			// First claim flips the listing to requested. The conditional
			// update is a second guard for stores without row locks.
			if _, err := listings.TryTransitionStatus(ctx, listing.ID, models.ListingAvailable, models.ListingRequested); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.RequestTransitions.WithLabelValues(string(models.RequestPending)).Inc()
	if s.events != nil {
		s.events.NotifyRequestCreated(ctx, req)
	}
	return req, nil
}

// Respond handles the donor accepting or rejecting a pending request.
func (s *RequestService) Respond(ctx context.Context, donorID, requestID uint, in RespondInput) (*models.Request, error) {
	if in.Status != models.RequestAccepted && in.Status != models.RequestRejected {
		return nil, models.NewValidationError("Response status must be accepted or rejected")
	}

	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.DonorID != donorID {
		return nil, models.NewForbiddenError("Only the listing donor can respond to this request")
	}
	if req.Status != models.RequestPending {
		return nil, models.NewInvalidStateError(
			fmt.Sprintf("Cannot respond to a request in status %s", req.Status))
	}

	now := time.Now()
	req.Status = in.Status
	req.ResponseMessage = in.ResponseMessage
	req.RespondedAt = &now

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		requests := s.requests.WithTx(tx)
		listings := s.listings.WithTx(tx)
		if err := requests.Update(ctx, req); err != nil {
			return err
		}
		if in.Status == models.RequestAccepted {
			return listings.SetStatus(ctx, req.FoodListingID, models.ListingClaimed)
		}
		return releaseListing(ctx, requests, listings, req.FoodListingID)
	})
	if err != nil {
		return nil, err
	}

	observability.RequestTransitions.WithLabelValues(string(in.Status)).Inc()
	if s.events != nil {
		s.events.NotifyRequestUpdated(ctx, req)
	}
	return req, nil
}

// Cancel withdraws a request. Either party can cancel while the request is
// still pending or accepted.
func (s *RequestService) Cancel(ctx context.Context, userID, requestID uint, reason string) (*models.Request, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	switch userID {
	case req.ReceiverID, req.DonorID:
	default:
		return nil, models.NewForbiddenError("Only the receiver or donor can cancel this request")
	}
	if req.Status.Terminal() {
		return nil, models.NewInvalidStateError(
			fmt.Sprintf("Cannot cancel a request in status %s", req.Status))
	}

	now := time.Now()
	req.Status = models.RequestCancelled
	req.CancelReason = reason
	req.CancelledBy = userID
	req.CancelledAt = &now

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		requests := s.requests.WithTx(tx)
		listings := s.listings.WithTx(tx)
		if err := requests.Update(ctx, req); err != nil {
			return err
		}
		return releaseListing(ctx, requests, listings, req.FoodListingID)
	})
	if err != nil {
		return nil, err
	}

	observability.RequestTransitions.WithLabelValues(string(models.RequestCancelled)).Inc()
	if s.events != nil {
		s.events.NotifyRequestUpdated(ctx, req)
	}
	return req, nil
}

// Confirm records the receiver's confirmation of an accepted request.
func (s *RequestService) Confirm(ctx context.Context, receiverID, requestID uint) (*models.Request, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.ReceiverID != receiverID {
		return nil, models.NewForbiddenError("Only the receiver can confirm this request")
	}
	if req.Status != models.RequestAccepted {
		return nil, models.NewInvalidStateError(
			fmt.Sprintf("Cannot confirm a request in status %s", req.Status))
	}
	if req.ReceiverConfirmed {
		return req, nil
	}

	now := time.Now()
	req.ReceiverConfirmed = true
	req.ReceiverConfirmedAt = &now
	if err := s.requests.Update(ctx, req); err != nil {
		return nil, err
	}
	if s.events != nil {
		s.events.NotifyRequestUpdated(ctx, req)
	}
	return req, nil
}

// Complete records the pickup. Only the donor can mark an accepted request
// completed; the receiver's part is Confirm.
func (s *RequestService) Complete(ctx context.Context, userID, requestID uint, in CompleteInput) (*models.Request, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if userID != req.DonorID {
		return nil, models.NewForbiddenError("Only the listing donor can complete this request")
	}
	if req.Status != models.RequestAccepted {
		return nil, models.NewInvalidStateError(
			fmt.Sprintf("Cannot complete a request in status %s", req.Status))
	}

	now := time.Now()
	req.Status = models.RequestCompleted
	req.ActualAmount = in.ActualAmount
	if req.ActualAmount == 0 {
		req.ActualAmount = req.RequestedAmount
	}
	req.ActualUnit = in.ActualUnit
	if req.ActualUnit == "" {
		req.ActualUnit = req.RequestedUnit
	}
	req.PickedUpAt = &now
	req.PickupNotes = in.PickupNotes

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		requests := s.requests.WithTx(tx)
		listings := s.listings.WithTx(tx)
		if err := requests.Update(ctx, req); err != nil {
			return err
		}
		// A completed pickup consumes the listing.
		return listings.SetStatus(ctx, req.FoodListingID, models.ListingClaimed)
	})
	if err != nil {
		return nil, err
	}

	observability.RequestTransitions.WithLabelValues(string(models.RequestCompleted)).Inc()
	if s.events != nil {
		s.events.NotifyRequestUpdated(ctx, req)
	}
	return req, nil
}

// GetByID returns a request visible to the given user.
func (s *RequestService) GetByID(ctx context.Context, userID, requestID uint) (*models.Request, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if userID != req.DonorID && userID != req.ReceiverID {
		return nil, models.NewForbiddenError("You are not a party to this request")
	}
	return req, nil
}

// ListForListing returns every request made against one of the donor's
// listings, oldest first.
func (s *RequestService) ListForListing(ctx context.Context, donorID, listingID uint) ([]models.Request, error) {
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.DonorID != donorID {
		return nil, models.NewForbiddenError("Only the listing donor can view its requests")
	}
	return s.requests.ListByListing(ctx, listingID)
}

// ListForUser returns the user's requests scoped by their role: receivers see
// requests they made, donors see requests against their listings.
func (s *RequestService) ListForUser(ctx context.Context, userID uint, limit, offset int) ([]models.Request, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role == models.RoleDonor {
		return s.requests.ListByDonor(ctx, userID, limit, offset)
	}
	return s.requests.ListByReceiver(ctx, userID, limit, offset)
}

// releaseListing recomputes the listing status after a request leaves the
// active set. The listing only goes back to available when no pending or
// accepted request remains; this is the single place that decision is made.
// Runs on transaction-bound repositories so the request transition and the
// listing side effect commit or roll back together.
func releaseListing(ctx context.Context, requests repository.RequestRepository, listings repository.ListingRepository, listingID uint) error {
	active, err := requests.CountActive(ctx, listingID)
	if err != nil {
		return err
	}
	if active > 0 {
		return nil
	}

	// A completed pickup consumed the listing; it never reopens.
	completed, err := requests.HasCompleted(ctx, listingID)
	if err != nil {
		return err
	}
	if completed {
		return nil
	}

	listing, err := listings.GetByID(ctx, listingID)
	if err != nil {
		return err
	}

	// Expired or cancelled listings stay where they are.
	switch listing.Status {
	case models.ListingRequested, models.ListingClaimed:
	default:
		return nil
	}

	to := models.ListingAvailable
	if time.Now().After(listing.ExpiresAt) {
		to = models.ListingExpired
	}
	return listings.SetStatus(ctx, listingID, to)
}
