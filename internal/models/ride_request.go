package models

import (
	"gorm.io/gorm"
)

// RideRequest status constants
const (
	RideRequestStatusOpen    = "open"
	RideRequestStatusMatched = "matched"
	RideRequestStatusClosed  = "closed"
	RideRequestStatusExpired = "expired"
)

// RideRequest is the fallback when matching finds no priced driver: the customer
// posts the route and an offered price, and visible drivers respond by opening a
// negotiation against it.
type RideRequest struct {
	gorm.Model
	CustomerID    *uint   `json:"customerId,omitempty"`
	CustomerName  string  `json:"customerName" gorm:"not null"`
	CustomerPhone string  `json:"customerPhone" gorm:"not null"`
	FromLocation  string  `json:"fromLocation" gorm:"not null"`
	ToLocation    string  `json:"toLocation" gorm:"not null"`
	RouteKey      string  `json:"routeKey" gorm:"not null;index"`
	OfferedPrice  float64 `json:"offeredPrice" gorm:"not null"`
	Note          string  `json:"note,omitempty"`
	Status        string  `json:"status" gorm:"not null;default:'open';index"`
	Customer      *User   `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
}

// TableName specifies the table name
func (RideRequest) TableName() string {
	return "ride_requests"
}
