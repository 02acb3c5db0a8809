package models

import (
	"gorm.io/gorm"
)

// Notification event types
const (
	NotificationNegotiationOffer    = "negotiation_offer"
	NotificationNegotiationCounter  = "negotiation_counter"
	NotificationNegotiationAccepted = "negotiation_accepted"
	NotificationNegotiationDeclined = "negotiation_declined"
	NotificationBookingConfirmed    = "booking_confirmed"
	NotificationBookingCancelled    = "booking_cancelled"
	NotificationRideRequestPosted   = "ride_request_posted"
	NotificationBroadcast           = "broadcast"
)

// Notification is one entry in a user's append-only in-app notification log.
type Notification struct {
	gorm.Model
	UserID      uint   `json:"userId" gorm:"not null;index"`
	Type        string `json:"type" gorm:"not null"`
	Title       string `json:"title" gorm:"not null"`
	Body        string `json:"body" gorm:"not null"`
	ReferenceID *uint  `json:"referenceId,omitempty"` // negotiation, booking or ride request id
	IsRead      bool   `json:"isRead" gorm:"not null;default:false;index"`
	User        *User  `json:"-" gorm:"foreignKey:UserID"`
}

// TableName specifies the table name
func (Notification) TableName() string {
	return "notifications"
}
