package server

import (
	"net/http"
	"testing"

	"foodbridge/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListingEndpoints(t *testing.T) {
	_, app, _ := newTestServer(t)

	donorToken, _ := signupUser(t, app, "donor", "donor")
	receiverToken, _ := signupUser(t, app, "receiver", "receiver")

	listingID := postListing(t, app, donorToken)

	t.Run("public browse without auth", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodGet, "/api/listings", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(1), body["count"])
	})

	t.Run("public get by id", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodGet, idPath("/api/listings", listingID), "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Crates of apples", body["title"])
		donor, _ := body["donor"].(map[string]interface{})
		if assert.NotNil(t, donor) {
			assert.Nil(t, donor["password"])
		}
	})

	t.Run("unknown id is 404", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodGet, "/api/listings/99999", "", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, models.CodeNotFound, errorCode(body))
	})

	t.Run("non-numeric id is 400", func(t *testing.T) {
		resp, _ := doJSON(t, app, http.MethodGet, "/api/listings/abc", "", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("receiver cannot create", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPost, "/api/listings", receiverToken, map[string]interface{}{
			"title":           "Not my role",
			"quantity_amount": 1,
			"quantity_unit":   "items",
		})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, models.CodeForbidden, errorCode(body))
	})

	t.Run("create requires auth", func(t *testing.T) {
		resp, _ := doJSON(t, app, http.MethodPost, "/api/listings", "", map[string]interface{}{
			"title": "anonymous",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("donor lists their own", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodGet, "/api/listings/mine/all", donorToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(1), body["count"])
	})

	t.Run("update whitelisted field", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPut, idPath("/api/listings", listingID), donorToken, map[string]interface{}{
			"title": "Crates of pears",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Crates of pears", body["title"])
	})

	t.Run("status not writable through update", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPut, idPath("/api/listings", listingID), donorToken, map[string]interface{}{
			"status": "claimed",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "available", body["status"])
	})

	t.Run("other user cannot update", func(t *testing.T) {
		otherToken, _ := signupUser(t, app, "donor2", "donor")
		resp, body := doJSON(t, app, http.MethodPut, idPath("/api/listings", listingID), otherToken, map[string]interface{}{
			"title": "mine now",
		})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, models.CodeForbidden, errorCode(body))
	})

	t.Run("cancel via delete", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodDelete, idPath("/api/listings", listingID), donorToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "cancelled", body["status"])

		// Cancelled listings drop out of the default search.
		resp, body = doJSON(t, app, http.MethodGet, "/api/listings", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(0), body["count"])
	})
}

func TestSearchFiltersOverHTTP(t *testing.T) {
	_, app, _ := newTestServer(t)
	donorToken, _ := signupUser(t, app, "donor", "donor")
	postListing(t, app, donorToken)

	t.Run("query filter", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodGet, "/api/listings?q=apples", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(1), body["count"])

		resp, body = doJSON(t, app, http.MethodGet, "/api/listings?q=bananas", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(0), body["count"])
	})

	t.Run("invalid status filter rejected", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodGet, "/api/listings?status=bogus", "", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, models.CodeValidation, errorCode(body))
	})

	t.Run("radius filter", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodGet, "/api/listings?lat=52.0&lng=5.0&radius_km=5", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(1), body["count"])

		resp, body = doJSON(t, app, http.MethodGet, "/api/listings?lat=48.8&lng=2.3&radius_km=5", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(0), body["count"])
	})
}
