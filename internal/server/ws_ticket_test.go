package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueWSTicket(t *testing.T) {
	s, app, mr := newTestServer(t)
	token, userID := signupUser(t, app, "alice", "receiver")

	resp, body := doJSON(t, app, http.MethodPost, "/api/ws/ticket", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ticket, _ := body["ticket"].(string)
	require.NotEmpty(t, ticket)
	assert.Equal(t, float64(30), body["expires_in"])

	// The ticket resolves to the caller in Redis with a short TTL.
	stored, err := s.redis.Get(context.Background(), "ws_ticket:"+ticket).Result()
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprint(userID), stored)
	assert.True(t, mr.TTL("ws_ticket:"+ticket) > 0)
}

func TestAuthRequiredWSTicket(t *testing.T) {
	s, _, _ := newTestServer(t)

	app := fiber.New()
	app.Get("/api/ws/test", s.AuthRequired(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"userID": c.Locals("userID")})
	})
	app.Get("/api/other", s.AuthRequired(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"userID": c.Locals("userID")})
	})

	ctx := context.Background()
	setTicket := func(ticket, userID string) {
		require.NoError(t, s.redis.Set(ctx, "ws_ticket:"+ticket, userID, time.Minute).Err())
	}

	t.Run("valid ticket authenticates and is consumed", func(t *testing.T) {
		setTicket("ticket-1", "123")

		req := httptest.NewRequest(http.MethodGet, "/api/ws/test?ticket=ticket-1", nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]interface{}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, float64(123), body["userID"])
		_ = resp.Body.Close()

		exists, err := s.redis.Exists(ctx, "ws_ticket:ticket-1").Result()
		require.NoError(t, err)
		assert.Equal(t, int64(0), exists, "ticket must be single-use")
	})

	t.Run("replayed ticket rejected", func(t *testing.T) {
		setTicket("ticket-2", "123")

		req := httptest.NewRequest(http.MethodGet, "/api/ws/test?ticket=ticket-2", nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()

		req = httptest.NewRequest(http.MethodGet, "/api/ws/test?ticket=ticket-2", nil)
		resp, err = app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("unknown ticket on ws path rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/ws/test?ticket=bogus", nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("query token refused on ws path", func(t *testing.T) {
		token, err := s.generateToken(7, "alice")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/ws/test?token="+token, nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("query token allowed elsewhere", func(t *testing.T) {
		token, err := s.generateToken(7, "alice")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/other?token="+token, nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	})
}
