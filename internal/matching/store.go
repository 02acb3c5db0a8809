package matching

import (
	"context"
	"fmt"

	"github.com/sieless/Taxi-Tao-sub001/internal/models"
	"gorm.io/gorm"
)

// GormDirectory lists eligible drivers straight from the users table.
type GormDirectory struct {
	db *gorm.DB
}

func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

func (d *GormDirectory) EligibleDrivers(ctx context.Context) ([]DriverProfile, error) {
	var users []models.User
	err := d.db.WithContext(ctx).
		Where("user_type = ? AND active = ? AND subscription_status = ? AND is_visible_to_public = ?",
			models.UserTypeDriver, true, models.SubscriptionActive, true).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("query eligible drivers: %w", err)
	}

	profiles := make([]DriverProfile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, DriverProfile{
			ID:              u.ID,
			Name:            u.Username,
			Rating:          u.Rating,
			TotalRides:      u.TotalRides,
			VehicleMake:     u.VehicleMake,
			VehicleModel:    u.VehicleModel,
			VehiclePlate:    u.VehiclePlate,
			ProfilePhotoURL: u.ProfilePhotoURL,
		})
	}
	return profiles, nil
}

// GormPricing reads a driver's active route quotes from the route_prices table.
type GormPricing struct {
	db *gorm.DB
}

func NewGormPricing(db *gorm.DB) *GormPricing {
	return &GormPricing{db: db}
}

func (p *GormPricing) DriverPricing(ctx context.Context, driverID uint) (map[string]RouteQuote, error) {
	var rows []models.RoutePrice
	err := p.db.WithContext(ctx).
		Where("driver_id = ? AND is_active = ?", driverID, true).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query route prices: %w", err)
	}

	quotes := make(map[string]RouteQuote, len(rows))
	for _, r := range rows {
		quotes[r.RouteKey] = RouteQuote{
			FromLocation: r.FromLocation,
			ToLocation:   r.ToLocation,
			Price:        r.Price,
			UpdatedAt:    r.UpdatedAt,
		}
	}
	return quotes, nil
}
