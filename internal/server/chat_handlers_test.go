package server

import (
	"net/http"
	"strings"
	"testing"

	"foodbridge/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatEndpoints(t *testing.T) {
	_, app, _ := newTestServer(t)

	donorToken, donorID := signupUser(t, app, "donor", "donor")
	receiverToken, _ := signupUser(t, app, "receiver", "receiver")
	strangerToken, _ := signupUser(t, app, "stranger", "receiver")

	listingID := postListing(t, app, donorToken)

	// Receiver opens the conversation about the listing.
	resp, body := doJSON(t, app, http.MethodPost, "/api/chats", receiverToken, map[string]interface{}{
		"food_listing_id": listingID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "chat create failed: %v", body)
	chatID := uint(body["id"].(float64))
	assert.Equal(t, float64(donorID), body["donor_id"])

	t.Run("find-or-create converges", func(t *testing.T) {
		resp, again := doJSON(t, app, http.MethodPost, "/api/chats", receiverToken, map[string]interface{}{
			"food_listing_id": listingID,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, float64(chatID), again["id"])
	})

	t.Run("send and list messages", func(t *testing.T) {
		resp, msg := doJSON(t, app, http.MethodPost, idPath("/api/chats", chatID)+"/messages", receiverToken, map[string]string{
			"content": "Hi, is the food still available?",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode, "send failed: %v", msg)
		assert.Equal(t, "Hi, is the food still available?", msg["content"])

		resp, body := doJSON(t, app, http.MethodGet, idPath("/api/chats", chatID)+"/messages", donorToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(1), body["count"])
	})

	t.Run("oversized message rejected", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPost, idPath("/api/chats", chatID)+"/messages", receiverToken, map[string]string{
			"content": strings.Repeat("a", models.MaxMessageContentLen+1),
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, models.CodeValidation, errorCode(body))
	})

	t.Run("unread then mark read", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodGet, "/api/chats", donorToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		chats := body["chats"].([]interface{})
		require.Len(t, chats, 1)
		first := chats[0].(map[string]interface{})
		assert.Equal(t, float64(1), first["unread_count"])

		resp, _ = doJSON(t, app, http.MethodPut, idPath("/api/chats", chatID)+"/read", donorToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, body = doJSON(t, app, http.MethodGet, "/api/chats", donorToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		first = body["chats"].([]interface{})[0].(map[string]interface{})
		assert.Equal(t, float64(0), first["unread_count"])
	})

	t.Run("outsider cannot read or post", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodGet, idPath("/api/chats", chatID), strangerToken, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, models.CodeForbidden, errorCode(body))

		resp, body = doJSON(t, app, http.MethodPost, idPath("/api/chats", chatID)+"/messages", strangerToken, map[string]string{
			"content": "let me in",
		})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, models.CodeForbidden, errorCode(body))
	})

	t.Run("donor must name the receiver", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPost, "/api/chats", donorToken, map[string]interface{}{
			"food_listing_id": listingID,
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, models.CodeValidation, errorCode(body))
	})
}
