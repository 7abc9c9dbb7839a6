package server

import (
	"foodbridge/internal/models"
	"foodbridge/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateRequest handles POST /api/requests
func (s *Server) CreateRequest(c *fiber.Ctx) error {
	var in service.CreateRequestInput
	if err := c.BodyParser(&in); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if in.FoodListingID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("food_listing_id is required"))
	}

	req, err := s.requestService.Create(c.Context(), currentUserID(c), in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(req)
}

// GetRequest handles GET /api/requests/:id
func (s *Server) GetRequest(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	req, err := s.requestService.GetByID(c.Context(), currentUserID(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(req)
}

// GetMyRequests handles GET /api/requests. Receivers see the requests they
// made; donors see requests against their listings.
func (s *Server) GetMyRequests(c *fiber.Ctx) error {
	p := parsePagination(c, 20)
	reqs, err := s.requestService.ListForUser(c.Context(), currentUserID(c), p.Limit, p.Offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"requests": reqs,
		"count":    len(reqs),
	})
}

// GetListingRequests handles GET /api/listings/:id/requests. Donor-only view
// of every claim made against one of their listings.
func (s *Server) GetListingRequests(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	reqs, err := s.requestService.ListForListing(c.Context(), currentUserID(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"requests": reqs,
		"count":    len(reqs),
	})
}

// UpdateRequestStatus handles PUT /api/requests/:id/status. A single body
// field picks the transition; it dispatches to the same service operations as
// the verb routes.
func (s *Server) UpdateRequestStatus(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var in struct {
		Status       models.RequestStatus `json:"status"`
		Message      string               `json:"message"`
		Reason       string               `json:"reason"`
		ActualAmount float64              `json:"actual_amount"`
		ActualUnit   string               `json:"actual_unit"`
		PickupNotes  string               `json:"pickup_notes"`
	}
	if err := c.BodyParser(&in); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	userID := currentUserID(c)
	var req *models.Request
	switch in.Status {
	case models.RequestAccepted, models.RequestRejected:
		req, err = s.requestService.Respond(c.Context(), userID, id, service.RespondInput{
			Status:          in.Status,
			ResponseMessage: in.Message,
		})
	case models.RequestCancelled:
		reason := in.Reason
		if reason == "" {
			reason = in.Message
		}
		req, err = s.requestService.Cancel(c.Context(), userID, id, reason)
	case models.RequestCompleted:
		req, err = s.requestService.Complete(c.Context(), userID, id, service.CompleteInput{
			ActualAmount: in.ActualAmount,
			ActualUnit:   in.ActualUnit,
			PickupNotes:  in.PickupNotes,
		})
	default:
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Status must be accepted, rejected, cancelled or completed"))
	}
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(req)
}

// RespondToRequest handles PUT /api/requests/:id/respond (donor accept/reject)
func (s *Server) RespondToRequest(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var in service.RespondInput
	if err := c.BodyParser(&in); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	req, err := s.requestService.Respond(c.Context(), currentUserID(c), id, in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(req)
}

// ConfirmRequest handles PUT /api/requests/:id/confirm (receiver confirmation)
func (s *Server) ConfirmRequest(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	req, err := s.requestService.Confirm(c.Context(), currentUserID(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(req)
}

// CompleteRequest handles PUT /api/requests/:id/complete
func (s *Server) CompleteRequest(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var in service.CompleteInput
	if err := c.BodyParser(&in); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	req, err := s.requestService.Complete(c.Context(), currentUserID(c), id, in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(req)
}

// CancelRequest handles PUT /api/requests/:id/cancel
func (s *Server) CancelRequest(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var in struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&in); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	req, err := s.requestService.Cancel(c.Context(), currentUserID(c), id, in.Reason)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(req)
}
