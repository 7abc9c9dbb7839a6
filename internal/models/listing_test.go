package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAvailableForRequest(t *testing.T) {
	now := time.Now()
	open := FoodListing{
		Status:      ListingAvailable,
		IsActive:    true,
		PickupStart: now.Add(-time.Hour),
		PickupEnd:   now.Add(6 * time.Hour),
		ExpiresAt:   now.Add(24 * time.Hour),
	}

	t.Run("open window accepts claims", func(t *testing.T) {
		assert.True(t, open.AvailableForRequest(now))
	})

	t.Run("requested listing still accepts claims", func(t *testing.T) {
		l := open
		l.Status = ListingRequested
		assert.True(t, l.AvailableForRequest(now))
	})

	t.Run("claimed, expired and cancelled do not", func(t *testing.T) {
		for _, status := range []ListingStatus{ListingClaimed, ListingExpired, ListingCancelled} {
			l := open
			l.Status = status
			assert.False(t, l.AvailableForRequest(now), string(status))
		}
	})

	t.Run("inactive listing does not", func(t *testing.T) {
		l := open
		l.IsActive = false
		assert.False(t, l.AvailableForRequest(now))
	})

	t.Run("window not yet open", func(t *testing.T) {
		l := open
		l.PickupStart = now.Add(time.Hour)
		assert.False(t, l.AvailableForRequest(now))
	})

	t.Run("window closed", func(t *testing.T) {
		l := open
		l.PickupEnd = now.Add(-time.Minute)
		assert.False(t, l.AvailableForRequest(now))
	})

	t.Run("expired", func(t *testing.T) {
		l := open
		l.ExpiresAt = now.Add(-time.Minute)
		assert.False(t, l.AvailableForRequest(now))
	})
}
