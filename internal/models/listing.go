package models

import (
	"time"

	"gorm.io/gorm"
)

// ListingStatus is the lifecycle status of a food listing.
type ListingStatus string

const (
	// ListingAvailable means the listing is open for new requests.
	ListingAvailable ListingStatus = "available"
	// ListingRequested means at least one claim request is in flight.
	ListingRequested ListingStatus = "requested"
	// ListingClaimed means a request was accepted; the food is spoken for.
	ListingClaimed ListingStatus = "claimed"
	// ListingExpired means the pickup window or expiry passed unclaimed.
	ListingExpired ListingStatus = "expired"
	// ListingCancelled means the donor withdrew the listing.
	ListingCancelled ListingStatus = "cancelled"
)

// Valid reports whether the status is one of the known values.
func (s ListingStatus) Valid() bool {
	switch s {
	case ListingAvailable, ListingRequested, ListingClaimed, ListingExpired, ListingCancelled:
		return true
	}
	return false
}

// Quantity is an amount with its unit (e.g. 3 "servings").
type Quantity struct {
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
}

// FoodListing represents a donor's posted surplus-food item.
type FoodListing struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	DonorID     uint          `gorm:"not null;index" json:"donor_id"`
	Donor       *User         `gorm:"foreignKey:DonorID" json:"donor,omitempty"`
	Title       string        `gorm:"not null" json:"title"`
	Description string        `gorm:"type:text" json:"description"`
	Category    string        `gorm:"index" json:"category"`
	Tags        string        `json:"tags"` // comma-separated
	ImageURL    string        `json:"image_url"`

	QuantityAmount float64 `gorm:"not null" json:"quantity_amount"`
	QuantityUnit   string  `gorm:"not null" json:"quantity_unit"`

	Latitude  float64 `gorm:"index:idx_listings_location" json:"latitude"`
	Longitude float64 `gorm:"index:idx_listings_location" json:"longitude"`
	Address   string  `json:"address"`

	PickupStart time.Time `json:"pickup_start"`
	PickupEnd   time.Time `json:"pickup_end"`
	ExpiresAt   time.Time `gorm:"index" json:"expires_at"`

	Status   ListingStatus `gorm:"type:varchar(20);default:'available';index" json:"status"`
	IsActive bool          `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// AvailableForRequest reports whether the listing can accept a new claim at
// the given time. A requested listing still accepts claims while capacity
// remains (the capacity check is the caller's); a listing whose pickup window
// has not opened, has passed, or whose expiry passed is not requestable even
// if the status row still says available.
func (l *FoodListing) AvailableForRequest(now time.Time) bool {
	if !l.IsActive {
		return false
	}
	if l.Status != ListingAvailable && l.Status != ListingRequested {
		return false
	}
	if now.After(l.ExpiresAt) {
		return false
	}
	if now.Before(l.PickupStart) || now.After(l.PickupEnd) {
		return false
	}
	return true
}
