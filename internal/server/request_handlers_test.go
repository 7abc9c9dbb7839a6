package server

import (
	"net/http"
	"testing"
	"time"

	"foodbridge/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postListing(t *testing.T, app *fiber.App, token string) uint {
	t.Helper()
	now := time.Now()
	resp, body := doJSON(t, app, http.MethodPost, "/api/listings", token, map[string]interface{}{
		"title":           "Crates of apples",
		"category":        "produce",
		"quantity_amount": 3,
		"quantity_unit":   "boxes",
		"latitude":        52.0,
		"longitude":       5.0,
		"pickup_start":    now.Add(-time.Hour).Format(time.RFC3339),
		"pickup_end":      now.Add(8 * time.Hour).Format(time.RFC3339),
		"expires_at":      now.Add(24 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "create listing failed: %v", body)
	id, _ := body["id"].(float64)
	require.NotZero(t, id)
	return uint(id)
}

func TestRequestLifecycleOverHTTP(t *testing.T) {
	_, app, _ := newTestServer(t)

	donorToken, _ := signupUser(t, app, "donor", "donor")
	receiverToken, _ := signupUser(t, app, "receiver", "receiver")

	listingID := postListing(t, app, donorToken)

	// Receiver claims part of the listing.
	resp, body := doJSON(t, app, http.MethodPost, "/api/requests", receiverToken, map[string]interface{}{
		"food_listing_id":  listingID,
		"message":          "I can pick up this evening",
		"requested_amount": 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "create request failed: %v", body)
	assert.Equal(t, "pending", body["status"])
	requestID := uint(body["id"].(float64))

	// The listing flips to requested.
	resp, body = doJSON(t, app, http.MethodGet, idPath("/api/listings", listingID), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "requested", body["status"])

	// Donor sees it in their inbox.
	resp, body = doJSON(t, app, http.MethodGet, "/api/requests", donorToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])

	// Receiver cannot accept their own request.
	resp, body = doJSON(t, app, http.MethodPut, idPath("/api/requests", requestID)+"/respond", receiverToken, map[string]string{
		"status": "accepted",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, models.CodeForbidden, errorCode(body))

	// Donor accepts.
	resp, body = doJSON(t, app, http.MethodPut, idPath("/api/requests", requestID)+"/respond", donorToken, map[string]string{
		"status":           "accepted",
		"response_message": "See you at six",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "accepted", body["status"])

	// Receiver confirms the pickup plan.
	resp, body = doJSON(t, app, http.MethodPut, idPath("/api/requests", requestID)+"/confirm", receiverToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["receiver_confirmed"])

	// Donor records the handover.
	resp, body = doJSON(t, app, http.MethodPut, idPath("/api/requests", requestID)+"/complete", donorToken, map[string]interface{}{
		"actual_amount": 1,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", body["status"])

	// A completed pickup keeps the listing claimed.
	resp, body = doJSON(t, app, http.MethodGet, idPath("/api/listings", listingID), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "claimed", body["status"])
}

func TestRequestStatusRouteOverHTTP(t *testing.T) {
	_, app, _ := newTestServer(t)

	donorToken, _ := signupUser(t, app, "donor", "donor")
	receiverToken, _ := signupUser(t, app, "receiver", "receiver")

	listingID := postListing(t, app, donorToken)

	resp, body := doJSON(t, app, http.MethodPost, "/api/requests", receiverToken, map[string]interface{}{
		"food_listing_id":  listingID,
		"requested_amount": 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	requestID := uint(body["id"].(float64))

	t.Run("unknown status value is 400", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPut, idPath("/api/requests", requestID)+"/status", donorToken, map[string]string{
			"status": "approved",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, models.CodeValidation, errorCode(body))
	})

	t.Run("accept through the status route", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPut, idPath("/api/requests", requestID)+"/status", donorToken, map[string]string{
			"status":  "accepted",
			"message": "Come by after five",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "accepted", body["status"])
	})

	t.Run("complete through the status route", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPut, idPath("/api/requests", requestID)+"/status", donorToken, map[string]interface{}{
			"status":        "completed",
			"actual_amount": 1,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "completed", body["status"])
	})

	t.Run("terminal state refuses further transitions", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPut, idPath("/api/requests", requestID)+"/status", receiverToken, map[string]string{
			"status": "cancelled",
		})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, models.CodeInvalidState, errorCode(body))
	})
}

func TestRequestConflictOverHTTP(t *testing.T) {
	_, app, _ := newTestServer(t)

	donorToken, _ := signupUser(t, app, "donor", "donor")
	r1Token, _ := signupUser(t, app, "recv1", "receiver")
	r2Token, _ := signupUser(t, app, "recv2", "receiver")

	listingID := postListing(t, app, donorToken)

	// Both receivers want everything; only the first fits.
	resp, _ := doJSON(t, app, http.MethodPost, "/api/requests", r1Token, map[string]interface{}{
		"food_listing_id":  listingID,
		"requested_amount": 3,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodPost, "/api/requests", r2Token, map[string]interface{}{
		"food_listing_id":  listingID,
		"requested_amount": 3,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, models.CodeConflict, errorCode(body))
}

func TestRequestAccessControlOverHTTP(t *testing.T) {
	_, app, _ := newTestServer(t)

	donorToken, _ := signupUser(t, app, "donor", "donor")
	receiverToken, _ := signupUser(t, app, "receiver", "receiver")
	strangerToken, _ := signupUser(t, app, "stranger", "receiver")

	listingID := postListing(t, app, donorToken)

	resp, body := doJSON(t, app, http.MethodPost, "/api/requests", receiverToken, map[string]interface{}{
		"food_listing_id":  listingID,
		"requested_amount": 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	requestID := uint(body["id"].(float64))

	t.Run("third party cannot read the request", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodGet, idPath("/api/requests", requestID), strangerToken, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, models.CodeForbidden, errorCode(body))
	})

	t.Run("missing request is 404", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodGet, "/api/requests/99999", receiverToken, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, models.CodeNotFound, errorCode(body))
	})

	t.Run("missing listing id is 400", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPost, "/api/requests", receiverToken, map[string]interface{}{
			"requested_amount": 1,
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, models.CodeValidation, errorCode(body))
	})

	t.Run("donor lists the claims on their listing", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodGet, idPath("/api/listings", listingID)+"/requests", donorToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(1), body["count"])
	})

	t.Run("non-donor cannot list a listing's claims", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodGet, idPath("/api/listings", listingID)+"/requests", strangerToken, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, models.CodeForbidden, errorCode(body))
	})
}

func TestRequestUnavailableListingOverHTTP(t *testing.T) {
	_, app, _ := newTestServer(t)

	donorToken, _ := signupUser(t, app, "donor", "donor")
	receiverToken, _ := signupUser(t, app, "receiver", "receiver")

	listingID := postListing(t, app, donorToken)
	resp, _ := doJSON(t, app, http.MethodDelete, idPath("/api/listings", listingID), donorToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// A cancelled listing yields a 400, not the 409 reserved for lost races.
	resp, body := doJSON(t, app, http.MethodPost, "/api/requests", receiverToken, map[string]interface{}{
		"food_listing_id":  listingID,
		"requested_amount": 1,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, models.CodeValidation, errorCode(body))
}
