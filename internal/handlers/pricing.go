package handlers

import (
	"log"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sieless/Taxi-Tao-sub001/internal/matching"
	"github.com/sieless/Taxi-Tao-sub001/internal/models"
	"github.com/sieless/Taxi-Tao-sub001/internal/services"
	"gorm.io/gorm"
)

// SetRoutePrice creates or updates a driver's price for a route. The route key is
// normalized from the endpoints, so "Machakos  Town" and "machakos town" land on
// the same row.
func SetRoutePrice(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID := c.GetUint("userId")
		userType := c.GetString("userType")

		if userType != string(models.UserTypeDriver) {
			c.JSON(403, gin.H{"error": "Only drivers can set route prices"})
			return
		}

		var input struct {
			FromLocation string  `json:"fromLocation" binding:"required"`
			ToLocation   string  `json:"toLocation" binding:"required"`
			Price        float64 `json:"price" binding:"required"`
		}

		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		if input.Price <= 0 {
			c.JSON(400, gin.H{"error": "Price must be positive"})
			return
		}

		routeKey := matching.RouteKey(input.FromLocation, input.ToLocation)
		if routeKey == "" {
			c.JSON(400, gin.H{"error": "Both locations are required"})
			return
		}

		var routePrice models.RoutePrice
		result := db.Where("driver_id = ? AND route_key = ?", driverID, routeKey).First(&routePrice)

		if result.Error == gorm.ErrRecordNotFound {
			routePrice = models.RoutePrice{
				DriverID:     driverID,
				RouteKey:     routeKey,
				FromLocation: input.FromLocation,
				ToLocation:   input.ToLocation,
				Price:        input.Price,
				IsActive:     true,
			}
			if err := db.Create(&routePrice).Error; err != nil {
				c.JSON(500, gin.H{"error": "Failed to create route price"})
				return
			}
		} else if result.Error != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch route price"})
			return
		} else {
			routePrice.FromLocation = input.FromLocation
			routePrice.ToLocation = input.ToLocation
			routePrice.Price = input.Price
			routePrice.IsActive = true

			if err := db.Save(&routePrice).Error; err != nil {
				c.JSON(500, gin.H{"error": "Failed to update route price"})
				return
			}
		}

		// Cached recommendations are stale the moment a price changes
		if err := services.InvalidateRecommendations(c.Request.Context()); err != nil {
			log.Printf("Failed to invalidate recommendation cache: %v", err)
		}

		c.JSON(200, routePrice)
	}
}

// GetMyRoutePrices lists the authenticated driver's route prices
func GetMyRoutePrices(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID := c.GetUint("userId")
		userType := c.GetString("userType")

		if userType != string(models.UserTypeDriver) {
			c.JSON(403, gin.H{"error": "Only drivers can view their route prices"})
			return
		}

		var prices []models.RoutePrice
		if err := db.Where("driver_id = ? AND is_active = ?", driverID, true).
			Order("route_key asc").
			Find(&prices).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch route prices"})
			return
		}

		c.JSON(200, prices)
	}
}

// DeleteRoutePrice deactivates one of the driver's route prices
func DeleteRoutePrice(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID := c.GetUint("userId")
		userType := c.GetString("userType")

		if userType != string(models.UserTypeDriver) {
			c.JSON(403, gin.H{"error": "Only drivers can delete route prices"})
			return
		}

		priceID, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid route price ID"})
			return
		}

		var routePrice models.RoutePrice
		if err := db.Where("id = ? AND driver_id = ?", priceID, driverID).First(&routePrice).Error; err != nil {
			c.JSON(404, gin.H{"error": "Route price not found"})
			return
		}

		routePrice.IsActive = false
		if err := db.Save(&routePrice).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to delete route price"})
			return
		}

		if err := services.InvalidateRecommendations(c.Request.Context()); err != nil {
			log.Printf("Failed to invalidate recommendation cache: %v", err)
		}

		c.JSON(200, gin.H{"message": "Route price removed"})
	}
}

// GetDriverRoutePrices lists a driver's public route prices by driver ID
func GetDriverRoutePrices(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid driver ID"})
			return
		}

		var driver models.User
		if err := db.First(&driver, driverID).Error; err != nil {
			c.JSON(404, gin.H{"error": "Driver not found"})
			return
		}
		if !driver.IsEligibleDriver() {
			c.JSON(404, gin.H{"error": "Driver not available"})
			return
		}

		var prices []models.RoutePrice
		if err := db.Where("driver_id = ? AND is_active = ?", driverID, true).
			Order("route_key asc").
			Find(&prices).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch route prices"})
			return
		}

		c.JSON(200, prices)
	}
}
