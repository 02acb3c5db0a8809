package handlers

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/sieless/Taxi-Tao-sub001/internal/models"
	"github.com/sieless/Taxi-Tao-sub001/internal/services"
	"gorm.io/gorm"
)

// GetNotificationPreferences retrieves user's notification preferences
func GetNotificationPreferences(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")

		var preferences models.NotificationPreference
		if err := db.Where("user_id = ?", userID).First(&preferences).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				// Create default preferences if not found
				defaultPrefs := models.DefaultPreferences(userID)
				if err := db.Create(defaultPrefs).Error; err != nil {
					c.JSON(500, gin.H{"error": "Failed to create default preferences"})
					return
				}
				c.JSON(200, defaultPrefs)
				return
			}
			c.JSON(500, gin.H{"error": "Failed to fetch preferences"})
			return
		}

		c.JSON(200, preferences)
	}
}

// UpdateNotificationPreferences updates user's notification preferences
func UpdateNotificationPreferences(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")

		var input struct {
			PushEnabled         *bool `json:"pushEnabled"`
			NegotiationAlerts   *bool `json:"negotiationAlerts"`
			BookingAlerts       *bool `json:"bookingAlerts"`
			RideRequestAlerts   *bool `json:"rideRequestAlerts"`
			PromotionalMessages *bool `json:"promotionalMessages"`
			EmailEnabled        *bool `json:"emailEnabled"`
			SMSEnabled          *bool `json:"smsEnabled"`
		}

		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		// Get existing preferences or create default
		var preferences models.NotificationPreference
		err := db.Where("user_id = ?", userID).First(&preferences).Error
		if err == gorm.ErrRecordNotFound {
			preferences = *models.DefaultPreferences(userID)
			if err := db.Create(&preferences).Error; err != nil {
				c.JSON(500, gin.H{"error": "Failed to create preferences"})
				return
			}
		} else if err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch preferences"})
			return
		}

		// Track changes for topic subscription
		oldRideRequestAlerts := preferences.RideRequestAlerts

		// Update only provided fields
		if input.PushEnabled != nil {
			preferences.PushEnabled = *input.PushEnabled
		}
		if input.NegotiationAlerts != nil {
			preferences.NegotiationAlerts = *input.NegotiationAlerts
		}
		if input.BookingAlerts != nil {
			preferences.BookingAlerts = *input.BookingAlerts
		}
		if input.RideRequestAlerts != nil {
			preferences.RideRequestAlerts = *input.RideRequestAlerts
		}
		if input.PromotionalMessages != nil {
			preferences.PromotionalMessages = *input.PromotionalMessages
		}
		if input.EmailEnabled != nil {
			preferences.EmailEnabled = *input.EmailEnabled
		}
		if input.SMSEnabled != nil {
			preferences.SMSEnabled = *input.SMSEnabled
		}

		// Save preferences
		if err := db.Save(&preferences).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to update preferences"})
			return
		}

		// Drivers opt in and out of the ride request topic as the toggle changes
		if input.RideRequestAlerts != nil && oldRideRequestAlerts != preferences.RideRequestAlerts {
			var user models.User
			if err := db.First(&user, userID).Error; err == nil &&
				user.UserType == models.UserTypeDriver && user.FCMToken != "" {
				ctx := context.Background()
				tokens := []string{user.FCMToken}

				if preferences.RideRequestAlerts && preferences.PushEnabled {
					if err := services.SubscribeToTopic(ctx, tokens, "drivers-ride-requests"); err != nil {
						log.Printf("Failed to subscribe driver %d to ride request topic: %v", userID, err)
					}
				} else {
					if err := services.UnsubscribeFromTopic(ctx, tokens, "drivers-ride-requests"); err != nil {
						log.Printf("Failed to unsubscribe driver %d from ride request topic: %v", userID, err)
					}
				}
			}
		}

		c.JSON(200, gin.H{
			"message":     "Preferences updated successfully",
			"preferences": preferences,
		})
	}
}
