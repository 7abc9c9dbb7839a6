package service

import (
	"context"
	"fmt"
	"time"

	"foodbridge/internal/middleware"
	"foodbridge/internal/models"
	"foodbridge/internal/repository"
	"foodbridge/internal/validation"
)

// CreateListingInput carries donor-supplied fields for a new listing.
type CreateListingInput struct {
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Category       string    `json:"category"`
	Tags           string    `json:"tags"`
	ImageURL       string    `json:"image_url"`
	QuantityAmount float64   `json:"quantity_amount"`
	QuantityUnit   string    `json:"quantity_unit"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	Address        string    `json:"address"`
	PickupStart    time.Time `json:"pickup_start"`
	PickupEnd      time.Time `json:"pickup_end"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// UpdateListingInput carries the fields a donor may change on an existing
// listing. Pointers distinguish "absent" from zero values. Status is not here
// on purpose; it moves only through the lifecycle engine.
type UpdateListingInput struct {
	Title          *string    `json:"title"`
	Description    *string    `json:"description"`
	Category       *string    `json:"category"`
	Tags           *string    `json:"tags"`
	ImageURL       *string    `json:"image_url"`
	QuantityAmount *float64   `json:"quantity_amount"`
	QuantityUnit   *string    `json:"quantity_unit"`
	Address        *string    `json:"address"`
	PickupStart    *time.Time `json:"pickup_start"`
	PickupEnd      *time.Time `json:"pickup_end"`
	ExpiresAt      *time.Time `json:"expires_at"`
}

// ListingService manages food listings on behalf of donors.
type ListingService struct {
	listings repository.ListingRepository
	requests repository.RequestRepository
	users    repository.UserRepository
}

// NewListingService returns a new ListingService.
func NewListingService(
	listings repository.ListingRepository,
	requests repository.RequestRepository,
	users repository.UserRepository,
) *ListingService {
	return &ListingService{listings: listings, requests: requests, users: users}
}

// Create validates and persists a new listing for the donor.
func (s *ListingService) Create(ctx context.Context, donorID uint, in CreateListingInput) (*models.FoodListing, error) {
	donor, err := s.users.GetByID(ctx, donorID)
	if err != nil {
		return nil, err
	}
	if donor.Role != models.RoleDonor {
		return nil, models.NewForbiddenError("Only donors can create listings")
	}

	if err := validation.ValidateListingInput(in.Title, in.QuantityAmount, in.QuantityUnit, in.PickupStart, in.PickupEnd, in.ExpiresAt); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateCoordinates(in.Latitude, in.Longitude); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	listing := &models.FoodListing{
		DonorID:        donorID,
		Title:          in.Title,
		Description:    in.Description,
		Category:       in.Category,
		Tags:           in.Tags,
		ImageURL:       in.ImageURL,
		QuantityAmount: in.QuantityAmount,
		QuantityUnit:   in.QuantityUnit,
		Latitude:       in.Latitude,
		Longitude:      in.Longitude,
		Address:        in.Address,
		PickupStart:    in.PickupStart,
		PickupEnd:      in.PickupEnd,
		ExpiresAt:      in.ExpiresAt,
		Status:         models.ListingAvailable,
		IsActive:       true,
	}
	if err := s.listings.Create(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

// Update applies the whitelisted fields to the donor's listing.
func (s *ListingService) Update(ctx context.Context, donorID, listingID uint, in UpdateListingInput) (*models.FoodListing, error) {
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.DonorID != donorID {
		return nil, models.NewForbiddenError("Only the listing donor can update it")
	}
	if listing.Status == models.ListingClaimed || listing.Status == models.ListingExpired {
		return nil, models.NewInvalidStateError(
			fmt.Sprintf("Cannot edit a listing in status %s", listing.Status))
	}

	if in.Title != nil {
		listing.Title = *in.Title
	}
	if in.Description != nil {
		listing.Description = *in.Description
	}
	if in.Category != nil {
		listing.Category = *in.Category
	}
	if in.Tags != nil {
		listing.Tags = *in.Tags
	}
	if in.ImageURL != nil {
		listing.ImageURL = *in.ImageURL
	}
	if in.QuantityAmount != nil {
		listing.QuantityAmount = *in.QuantityAmount
	}
	if in.QuantityUnit != nil {
		listing.QuantityUnit = *in.QuantityUnit
	}
	if in.Address != nil {
		listing.Address = *in.Address
	}
	if in.PickupStart != nil {
		listing.PickupStart = *in.PickupStart
	}
	if in.PickupEnd != nil {
		listing.PickupEnd = *in.PickupEnd
	}
	if in.ExpiresAt != nil {
		listing.ExpiresAt = *in.ExpiresAt
	}

	if err := validation.ValidateListingInput(listing.Title, listing.QuantityAmount, listing.QuantityUnit, listing.PickupStart, listing.PickupEnd, listing.ExpiresAt); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	if err := s.listings.Update(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

// Cancel withdraws the donor's listing. Listings with an accepted request
// cannot be cancelled out from under the receiver.
func (s *ListingService) Cancel(ctx context.Context, donorID, listingID uint) (*models.FoodListing, error) {
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.DonorID != donorID {
		return nil, models.NewForbiddenError("Only the listing donor can cancel it")
	}
	if listing.Status == models.ListingClaimed {
		return nil, models.NewInvalidStateError("Cannot cancel a claimed listing; cancel the accepted request first")
	}
	if listing.Status == models.ListingCancelled {
		return listing, nil
	}

	if err := s.listings.SetStatus(ctx, listingID, models.ListingCancelled); err != nil {
		return nil, err
	}
	listing.Status = models.ListingCancelled
	return listing, nil
}

// GetByID returns a listing by ID.
func (s *ListingService) GetByID(ctx context.Context, listingID uint) (*models.FoodListing, error) {
	return s.listings.GetByID(ctx, listingID)
}

// Search runs a filtered listing search.
func (s *ListingService) Search(ctx context.Context, params repository.ListingSearchParams) ([]models.FoodListing, error) {
	return s.listings.Search(ctx, params)
}

// ListByDonor returns the donor's own listings.
func (s *ListingService) ListByDonor(ctx context.Context, donorID uint, limit, offset int) ([]models.FoodListing, error) {
	return s.listings.ListByDonor(ctx, donorID, limit, offset)
}

// StartExpirySweep launches a background loop that expires overdue listings
// until the context is cancelled.
func (s *ListingService) StartExpirySweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ids, err := s.listings.ExpireOverdue(ctx, time.Now())
				if err != nil {
					middleware.Logger.Error("listing expiry sweep failed", "error", err)
					continue
				}
				if len(ids) > 0 {
					middleware.Logger.Info("expired overdue listings", "count", len(ids))
				}
			}
		}
	}()
}
