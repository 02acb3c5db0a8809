package models

import (
	"gorm.io/gorm"
)

// RoutePrice is a driver-set price for one directed location pair. The route key is
// the canonical form the matcher looks up; reverse lookups are the matcher's job.
type RoutePrice struct {
	gorm.Model
	DriverID     uint    `json:"driverId" gorm:"not null;index;uniqueIndex:idx_driver_route"`
	FromLocation string  `json:"fromLocation" gorm:"not null"`
	ToLocation   string  `json:"toLocation" gorm:"not null"`
	RouteKey     string  `json:"routeKey" gorm:"not null;index;uniqueIndex:idx_driver_route"`
	Price        float64 `json:"price" gorm:"not null"`
	IsActive     bool    `json:"isActive" gorm:"not null;default:true"`
	Driver       *User   `json:"driver,omitempty" gorm:"foreignKey:DriverID"`
}

// TableName specifies the table name
func (RoutePrice) TableName() string {
	return "route_prices"
}
