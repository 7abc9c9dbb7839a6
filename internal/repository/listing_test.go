package repository

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"foodbridge/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.FoodListing{},
		&models.Request{},
		&models.Chat{},
		&models.Message{},
		&models.ChatParticipant{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}
	return db
}

var seedSeq atomic.Uint64

func seedListing(t *testing.T, db *gorm.DB, status models.ListingStatus) *models.FoodListing {
	t.Helper()
	n := seedSeq.Add(1)
	donor := &models.User{
		Username: fmt.Sprintf("donor-%s-%d", status, n),
		Email:    fmt.Sprintf("%s-%d@example.com", status, n),
		Password: "x",
		Role:     models.RoleDonor,
	}
	require.NoError(t, db.Create(donor).Error)

	now := time.Now()
	l := &models.FoodListing{
		DonorID:        donor.ID,
		Title:          "Crate of oranges",
		QuantityAmount: 2,
		QuantityUnit:   "crates",
		PickupStart:    now,
		PickupEnd:      now.Add(6 * time.Hour),
		ExpiresAt:      now.Add(12 * time.Hour),
		Status:         status,
		IsActive:       true,
	}
	require.NoError(t, db.Create(l).Error)
	return l
}

func TestTryTransitionStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewListingRepository(db)
	ctx := context.Background()

	listing := seedListing(t, db, models.ListingAvailable)

	t.Run("moves matching row", func(t *testing.T) {
		ok, err := repo.TryTransitionStatus(ctx, listing.ID, models.ListingAvailable, models.ListingRequested)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("reports lost race without error", func(t *testing.T) {
		ok, err := repo.TryTransitionStatus(ctx, listing.ID, models.ListingAvailable, models.ListingRequested)
		require.NoError(t, err)
		assert.False(t, ok, "row no longer matches the from status")
	})

	t.Run("inactive rows never transition", func(t *testing.T) {
		other := seedListing(t, db, models.ListingAvailable)
		require.NoError(t, db.Model(other).Update("is_active", false).Error)

		ok, err := repo.TryTransitionStatus(ctx, other.ID, models.ListingAvailable, models.ListingRequested)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestSetStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewListingRepository(db)
	ctx := context.Background()

	listing := seedListing(t, db, models.ListingRequested)

	require.NoError(t, repo.SetStatus(ctx, listing.ID, models.ListingClaimed))

	var reloaded models.FoodListing
	require.NoError(t, db.First(&reloaded, listing.ID).Error)
	assert.Equal(t, models.ListingClaimed, reloaded.Status)

	err := repo.SetStatus(ctx, 99999, models.ListingClaimed)
	assert.Error(t, err)
}

func TestHaversineKm(t *testing.T) {
	// Amsterdam Centraal to Utrecht Centraal is roughly 35 km.
	d := HaversineKm(52.3791, 4.9003, 52.0894, 5.1101)
	assert.InDelta(t, 35, d, 3)

	assert.Zero(t, HaversineKm(52.0, 5.0, 52.0, 5.0))
}

func TestSumActiveAmount(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRequestRepository(db)
	ctx := context.Background()

	listing := seedListing(t, db, models.ListingRequested)

	mkRequest := func(receiverID uint, status models.RequestStatus, amount float64) {
		require.NoError(t, db.Create(&models.Request{
			FoodListingID:   listing.ID,
			DonorID:         listing.DonorID,
			ReceiverID:      receiverID,
			Status:          status,
			RequestedAmount: amount,
			RequestedUnit:   "crates",
		}).Error)
	}

	t.Run("empty listing has zero reserved", func(t *testing.T) {
		sum, err := repo.SumActiveAmount(ctx, listing.ID)
		require.NoError(t, err)
		assert.Zero(t, sum)
	})

	mkRequest(101, models.RequestPending, 1)
	mkRequest(102, models.RequestAccepted, 0.5)
	mkRequest(103, models.RequestRejected, 2)
	mkRequest(104, models.RequestCancelled, 2)

	t.Run("only pending and accepted count", func(t *testing.T) {
		sum, err := repo.SumActiveAmount(ctx, listing.ID)
		require.NoError(t, err)
		assert.Equal(t, 1.5, sum)
	})

	t.Run("active counters agree", func(t *testing.T) {
		n, err := repo.CountActive(ctx, listing.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		has, err := repo.HasActiveRequest(ctx, listing.ID, 101)
		require.NoError(t, err)
		assert.True(t, has)

		has, err = repo.HasActiveRequest(ctx, listing.ID, 103)
		require.NoError(t, err)
		assert.False(t, has, "rejected requests are not active")
	})
}
