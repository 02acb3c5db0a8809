package models

import (
	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking is the contact handoff created when a price is agreed, either directly at
// the driver's listed route price or through an accepted negotiation.
type Booking struct {
	gorm.Model
	CustomerID    *uint         `json:"customerId,omitempty"`
	CustomerName  string        `json:"customerName" gorm:"not null"`
	CustomerPhone string        `json:"customerPhone" gorm:"not null"`
	DriverID      uint          `json:"driverId" gorm:"not null;index"`
	FromLocation  string        `json:"fromLocation" gorm:"not null"`
	ToLocation    string        `json:"toLocation" gorm:"not null"`
	Price         float64       `json:"price" gorm:"not null"`
	Rating        *float64      `json:"rating,omitempty"`
	NegotiationID *uint         `json:"negotiationId,omitempty"`
	Status        BookingStatus `json:"status" gorm:"not null;default:'confirmed'"`
	Driver        *User         `json:"driver,omitempty" gorm:"foreignKey:DriverID"`
	Customer      *User         `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
}

// TableName specifies the table name
func (Booking) TableName() string {
	return "bookings"
}
