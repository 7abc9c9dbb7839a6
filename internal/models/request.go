package models

import (
	"time"

	"gorm.io/gorm"
)

// RequestStatus is the lifecycle status of a claim request.
type RequestStatus string

const (
	// RequestPending is the initial state of every request.
	RequestPending RequestStatus = "pending"
	// RequestAccepted means the donor approved the claim.
	RequestAccepted RequestStatus = "accepted"
	// RequestRejected is terminal; the donor declined.
	RequestRejected RequestStatus = "rejected"
	// RequestCancelled is terminal; either party withdrew.
	RequestCancelled RequestStatus = "cancelled"
	// RequestCompleted is terminal; pickup happened.
	RequestCompleted RequestStatus = "completed"
)

// Valid reports whether the status is one of the known values.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestAccepted, RequestRejected, RequestCancelled, RequestCompleted:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s RequestStatus) Terminal() bool {
	return s == RequestRejected || s == RequestCancelled || s == RequestCompleted
}

// Active reports whether the request still holds a claim on its listing.
func (s RequestStatus) Active() bool {
	return s == RequestPending || s == RequestAccepted
}

// Request represents a receiver's claim attempt against a listing.
type Request struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	FoodListingID uint         `gorm:"not null;index:idx_requests_listing_receiver" json:"food_listing_id"`
	FoodListing   *FoodListing `gorm:"foreignKey:FoodListingID" json:"food_listing,omitempty"`
	DonorID       uint         `gorm:"not null;index" json:"donor_id"`
	Donor         *User        `gorm:"foreignKey:DonorID" json:"donor,omitempty"`
	ReceiverID    uint         `gorm:"not null;index:idx_requests_listing_receiver" json:"receiver_id"`
	Receiver      *User        `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`

	Status  RequestStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	Message string        `gorm:"type:text" json:"message"`

	RequestedAmount float64 `json:"requested_amount"`
	RequestedUnit   string  `json:"requested_unit"`

	PreferredPickupTime *time.Time `json:"preferred_pickup_time,omitempty"`
	PickupNote          string     `json:"pickup_note"`

	// Donor response to accept/reject.
	ResponseMessage string     `gorm:"type:text" json:"response_message"`
	RespondedAt     *time.Time `json:"responded_at,omitempty"`

	// Receiver confirmation after acceptance.
	ReceiverConfirmed   bool       `gorm:"default:false" json:"receiver_confirmed"`
	ReceiverConfirmedAt *time.Time `json:"receiver_confirmed_at,omitempty"`

	// Actual pickup record, filled on completion.
	ActualAmount  float64    `json:"actual_amount"`
	ActualUnit    string     `json:"actual_unit"`
	PickedUpAt    *time.Time `json:"picked_up_at,omitempty"`
	PickupNotes   string     `gorm:"type:text" json:"pickup_notes"`

	// Cancellation record.
	CancelReason string     `json:"cancel_reason"`
	CancelledBy  uint       `json:"cancelled_by,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// RequestedQuantity returns the requested quantity as a value pair.
func (r *Request) RequestedQuantity() Quantity {
	return Quantity{Amount: r.RequestedAmount, Unit: r.RequestedUnit}
}
