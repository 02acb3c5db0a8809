package handlers

import (
	"log"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sieless/Taxi-Tao-sub001/internal/models"
	"github.com/sieless/Taxi-Tao-sub001/internal/services"
	"gorm.io/gorm"
)

// ListDrivers returns every driver account with eligibility fields, for the admin
// directory screen.
func ListDrivers(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := db.Where("user_type = ?", models.UserTypeDriver)

		if status := c.Query("subscriptionStatus"); status != "" {
			query = query.Where("subscription_status = ?", status)
		}
		if c.Query("visible") == "true" {
			query = query.Where("is_visible_to_public = ?", true)
		}

		var drivers []models.User
		if err := query.Order("created_at DESC").Find(&drivers).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch drivers"})
			return
		}

		out := make([]gin.H, 0, len(drivers))
		for i := range drivers {
			out = append(out, profileResponse(&drivers[i]))
		}

		c.JSON(200, out)
	}
}

// SetDriverSubscription updates a driver's subscription state. Moving a driver off
// "active" removes them from matching immediately.
func SetDriverSubscription(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid driver ID"})
			return
		}

		var input struct {
			SubscriptionStatus string `json:"subscriptionStatus" binding:"required,oneof=active trial inactive"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		var driver models.User
		if err := db.Where("id = ? AND user_type = ?", driverID, models.UserTypeDriver).First(&driver).Error; err != nil {
			c.JSON(404, gin.H{"error": "Driver not found"})
			return
		}

		driver.SubscriptionStatus = input.SubscriptionStatus
		if err := db.Save(&driver).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to update subscription"})
			return
		}

		if err := services.InvalidateRecommendations(c.Request.Context()); err != nil {
			log.Printf("Failed to invalidate recommendation cache: %v", err)
		}

		c.JSON(200, profileResponse(&driver))
	}
}

// SetDriverVisibility toggles whether a driver surfaces in public matching.
func SetDriverVisibility(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid driver ID"})
			return
		}

		var input struct {
			IsVisibleToPublic *bool `json:"isVisibleToPublic" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		var driver models.User
		if err := db.Where("id = ? AND user_type = ?", driverID, models.UserTypeDriver).First(&driver).Error; err != nil {
			c.JSON(404, gin.H{"error": "Driver not found"})
			return
		}

		driver.IsVisibleToPublic = *input.IsVisibleToPublic
		if err := db.Save(&driver).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to update visibility"})
			return
		}

		if err := services.InvalidateRecommendations(c.Request.Context()); err != nil {
			log.Printf("Failed to invalidate recommendation cache: %v", err)
		}

		c.JSON(200, profileResponse(&driver))
	}
}

// SetDriverActive force-toggles a driver's availability, overriding the driver's
// own setting. Used when suspending an account.
func SetDriverActive(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid driver ID"})
			return
		}

		var input struct {
			Active *bool `json:"active" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		var driver models.User
		if err := db.Where("id = ? AND user_type = ?", driverID, models.UserTypeDriver).First(&driver).Error; err != nil {
			c.JSON(404, gin.H{"error": "Driver not found"})
			return
		}

		driver.Active = *input.Active
		if err := db.Save(&driver).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to update driver"})
			return
		}

		if err := services.InvalidateRecommendations(c.Request.Context()); err != nil {
			log.Printf("Failed to invalidate recommendation cache: %v", err)
		}

		c.JSON(200, profileResponse(&driver))
	}
}

// GetPlatformOverview returns headline counts for the admin dashboard.
func GetPlatformOverview(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			totalDrivers      int64
			eligibleDrivers   int64
			totalCustomers    int64
			openNegotiations  int64
			totalBookings     int64
			completedBookings int64
			openRideRequests  int64
			activeRoutePrices int64
		)

		db.Model(&models.User{}).Where("user_type = ?", models.UserTypeDriver).Count(&totalDrivers)
		db.Model(&models.User{}).
			Where("user_type = ? AND active = ? AND subscription_status = ? AND is_visible_to_public = ?",
				models.UserTypeDriver, true, models.SubscriptionActive, true).
			Count(&eligibleDrivers)
		db.Model(&models.User{}).Where("user_type = ?", models.UserTypeCustomer).Count(&totalCustomers)
		db.Model(&models.Negotiation{}).Where("status = ?", models.NegotiationStatusPending).Count(&openNegotiations)
		db.Model(&models.Booking{}).Count(&totalBookings)
		db.Model(&models.Booking{}).Where("status = ?", models.BookingStatusCompleted).Count(&completedBookings)
		db.Model(&models.RideRequest{}).Where("status = ?", models.RideRequestStatusOpen).Count(&openRideRequests)
		db.Model(&models.RoutePrice{}).Where("is_active = ?", true).Count(&activeRoutePrices)

		c.JSON(200, gin.H{
			"totalDrivers":      totalDrivers,
			"eligibleDrivers":   eligibleDrivers,
			"totalCustomers":    totalCustomers,
			"openNegotiations":  openNegotiations,
			"totalBookings":     totalBookings,
			"completedBookings": completedBookings,
			"openRideRequests":  openRideRequests,
			"activeRoutePrices": activeRoutePrices,
		})
	}
}
