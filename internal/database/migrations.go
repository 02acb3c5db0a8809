package database

import (
	"github.com/sieless/Taxi-Tao-sub001/internal/models"
	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	// Create tables if they don't exist
	err := db.AutoMigrate(
		&models.User{},
		&models.RoutePrice{},
		&models.Negotiation{},
		&models.Booking{},
		&models.RideRequest{},
		&models.Notification{},
		&models.NotificationPreference{},
		&models.OTP{},
	)
	if err != nil {
		return err
	}

	// Update users table
	if db.Migrator().HasTable(&models.User{}) {
		columns := []string{
			"ADD COLUMN IF NOT EXISTS vehicle_plate text DEFAULT ''",
			"ADD COLUMN IF NOT EXISTS vehicle_make text DEFAULT ''",
			"ADD COLUMN IF NOT EXISTS vehicle_model text DEFAULT ''",
			"ADD COLUMN IF NOT EXISTS vehicle_color text DEFAULT ''",
			"ADD COLUMN IF NOT EXISTS user_type text DEFAULT 'customer'",
			"ADD COLUMN IF NOT EXISTS subscription_status text DEFAULT 'trial'",
			"ADD COLUMN IF NOT EXISTS is_visible_to_public boolean DEFAULT false",
			"ADD COLUMN IF NOT EXISTS rating_count integer DEFAULT 0",
		}

		for _, column := range columns {
			if err := db.Exec("ALTER TABLE users " + column).Error; err != nil {
				return err
			}
		}

		// Update constraint
		db.Exec(`ALTER TABLE users DROP CONSTRAINT IF EXISTS users_user_type_check`)
		db.Exec(`ALTER TABLE users ADD CONSTRAINT users_user_type_check CHECK (user_type IN ('customer', 'driver', 'admin'))`)
	}

	// Negotiations predate the version column; backfill before the versioned writes rely on it
	if db.Migrator().HasTable(&models.Negotiation{}) {
		if err := db.Exec(`ALTER TABLE negotiations ADD COLUMN IF NOT EXISTS version integer DEFAULT 0`).Error; err != nil {
			return err
		}
		if err := db.Exec(`UPDATE negotiations SET version = 0 WHERE version IS NULL`).Error; err != nil {
			return err
		}
		db.Exec(`ALTER TABLE negotiations DROP CONSTRAINT IF EXISTS negotiations_status_check`)
		db.Exec(`ALTER TABLE negotiations ADD CONSTRAINT negotiations_status_check CHECK (status IN ('pending', 'accepted', 'declined', 'expired'))`)
	}

	// Route prices are unique per driver and normalized route
	if db.Migrator().HasTable(&models.RoutePrice{}) {
		db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_driver_route ON route_prices (driver_id, route_key) WHERE deleted_at IS NULL`)
	}

	return nil
}
