package server

import (
	"foodbridge/internal/models"
	"foodbridge/internal/repository"
	"foodbridge/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateListing handles POST /api/listings
func (s *Server) CreateListing(c *fiber.Ctx) error {
	var in service.CreateListingInput
	if err := c.BodyParser(&in); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	listing, err := s.listingService.Create(c.Context(), currentUserID(c), in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(listing)
}

// GetListing handles GET /api/listings/:id
func (s *Server) GetListing(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	listing, err := s.listingService.GetByID(c.Context(), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(listing)
}

// SearchListings handles GET /api/listings with optional filters:
// q (title/description), category, status, lat/lng/radius_km, limit, offset.
func (s *Server) SearchListings(c *fiber.Ctx) error {
	p := parsePagination(c, 20)

	params := repository.ListingSearchParams{
		Query:     c.Query("q"),
		Category:  c.Query("category"),
		Latitude:  c.QueryFloat("lat"),
		Longitude: c.QueryFloat("lng"),
		RadiusKm:  c.QueryFloat("radius_km"),
		Limit:     p.Limit,
		Offset:    p.Offset,
	}

	if status := c.Query("status"); status != "" {
		st := models.ListingStatus(status)
		if !st.Valid() {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Unknown listing status"))
		}
		params.Status = st
	} else {
		params.Status = models.ListingAvailable
	}

	listings, err := s.listingService.Search(c.Context(), params)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"listings": listings,
		"count":    len(listings),
	})
}

// GetMyListings handles GET /api/listings/mine/all
func (s *Server) GetMyListings(c *fiber.Ctx) error {
	p := parsePagination(c, 20)
	listings, err := s.listingService.ListByDonor(c.Context(), currentUserID(c), p.Limit, p.Offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"listings": listings,
		"count":    len(listings),
	})
}

// UpdateListing handles PUT /api/listings/:id
func (s *Server) UpdateListing(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var in service.UpdateListingInput
	if err := c.BodyParser(&in); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	listing, err := s.listingService.Update(c.Context(), currentUserID(c), id, in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(listing)
}

// CancelListing handles DELETE /api/listings/:id
func (s *Server) CancelListing(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	listing, err := s.listingService.Cancel(c.Context(), currentUserID(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(listing)
}
