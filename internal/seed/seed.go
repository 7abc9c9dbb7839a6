// Package seed populates a development database with plausible fake data.
package seed

import (
	"fmt"
	"log"
	"time"

	"foodbridge/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const defaultPassword = "Devpassword123!"

var categories = []string{"produce", "bakery", "dairy", "prepared", "pantry", "frozen"}

var units = []string{"servings", "kg", "items", "boxes"}

// Run inserts donors, receivers, listings and a few requests. Idempotent
// enough for development: it skips entirely when users already exist.
func Run(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Println("seed: users already present, skipping")
		return nil
	}

	gofakeit.Seed(0)

	hash, err := bcrypt.GenerateFromPassword([]byte(defaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	var donors, receivers []models.User
	for i := 0; i < 5; i++ {
		donors = append(donors, models.User{
			Username:  fmt.Sprintf("donor_%s", gofakeit.Username()),
			Email:     gofakeit.Email(),
			Password:  string(hash),
			Role:      models.RoleDonor,
			Bio:       gofakeit.Sentence(8),
			Phone:     gofakeit.Phone(),
			Latitude:  gofakeit.Latitude(),
			Longitude: gofakeit.Longitude(),
		})
	}
	for i := 0; i < 8; i++ {
		receivers = append(receivers, models.User{
			Username:  fmt.Sprintf("receiver_%s", gofakeit.Username()),
			Email:     gofakeit.Email(),
			Password:  string(hash),
			Role:      models.RoleReceiver,
			Bio:       gofakeit.Sentence(6),
			Phone:     gofakeit.Phone(),
			Latitude:  gofakeit.Latitude(),
			Longitude: gofakeit.Longitude(),
		})
	}
	if err := db.Create(&donors).Error; err != nil {
		return err
	}
	if err := db.Create(&receivers).Error; err != nil {
		return err
	}

	now := time.Now()
	var listings []models.FoodListing
	for _, donor := range donors {
		for i := 0; i < 4; i++ {
			start := now.Add(time.Duration(gofakeit.Number(1, 12)) * time.Hour)
			listings = append(listings, models.FoodListing{
				DonorID:        donor.ID,
				Title:          gofakeit.Dinner(),
				Description:    gofakeit.Sentence(12),
				Category:       categories[gofakeit.Number(0, len(categories)-1)],
				Tags:           gofakeit.Adjective() + "," + gofakeit.Adjective(),
				QuantityAmount: float64(gofakeit.Number(1, 10)),
				QuantityUnit:   units[gofakeit.Number(0, len(units)-1)],
				Latitude:       donor.Latitude,
				Longitude:      donor.Longitude,
				Address:        gofakeit.Address().Address,
				PickupStart:    start,
				PickupEnd:      start.Add(6 * time.Hour),
				ExpiresAt:      start.Add(24 * time.Hour),
				Status:         models.ListingAvailable,
				IsActive:       true,
			})
		}
	}
	if err := db.Create(&listings).Error; err != nil {
		return err
	}

	// A handful of pending requests to make the lifecycle visible.
	var requests []models.Request
	for i := 0; i < 6 && i < len(listings); i++ {
		receiver := receivers[gofakeit.Number(0, len(receivers)-1)]
		listing := listings[i]
		requests = append(requests, models.Request{
			FoodListingID:   listing.ID,
			DonorID:         listing.DonorID,
			ReceiverID:      receiver.ID,
			Status:          models.RequestPending,
			Message:         gofakeit.Sentence(10),
			RequestedAmount: 1,
			RequestedUnit:   listing.QuantityUnit,
		})
	}
	if err := db.Create(&requests).Error; err != nil {
		return err
	}
	for _, req := range requests {
		if err := db.Model(&models.FoodListing{}).
			Where("id = ? AND status = ?", req.FoodListingID, models.ListingAvailable).
			Update("status", models.ListingRequested).Error; err != nil {
			return err
		}
	}

	log.Printf("seed: created %d donors, %d receivers, %d listings, %d requests (password %q)",
		len(donors), len(receivers), len(listings), len(requests), defaultPassword)
	return nil
}
