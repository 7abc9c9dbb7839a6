// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// UserRole is a closed set of roles a user can hold.
type UserRole string

const (
	// RoleDonor marks users who post surplus food listings.
	RoleDonor UserRole = "donor"
	// RoleReceiver marks users who browse and claim listings.
	RoleReceiver UserRole = "receiver"
)

// Valid reports whether the role is one of the known values.
func (r UserRole) Valid() bool {
	return r == RoleDonor || r == RoleReceiver
}

// User represents a FoodBridge account (donor or receiver).
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"unique;not null" json:"username"`
	Email     string         `gorm:"unique;not null" json:"email"`
	Password  string         `gorm:"not null" json:"-"`
	Role      UserRole       `gorm:"type:varchar(20);default:'receiver'" json:"role"`
	Bio       string         `json:"bio"`
	Avatar    string         `json:"avatar"`
	Phone     string         `json:"phone"`
	Latitude  float64        `gorm:"index:idx_users_location" json:"latitude"`
	Longitude float64        `gorm:"index:idx_users_location" json:"longitude"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Listings  []FoodListing  `gorm:"foreignKey:DonorID" json:"listings,omitempty"`
}

// PublicProfile returns the subset of user fields safe to denormalize into
// realtime payloads.
func (u *User) PublicProfile() map[string]interface{} {
	return map[string]interface{}{
		"id":       u.ID,
		"username": u.Username,
		"avatar":   u.Avatar,
		"role":     u.Role,
	}
}
