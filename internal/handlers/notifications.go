package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sieless/Taxi-Tao-sub001/internal/models"
	"github.com/sieless/Taxi-Tao-sub001/internal/services"
	"gorm.io/gorm"
)

// GetMyNotifications pages through the authenticated user's notification log,
// newest first.
func GetMyNotifications(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")

		limit := 50
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
				limit = n
			}
		}

		query := db.Where("user_id = ?", userID)
		if c.Query("unread") == "true" {
			query = query.Where("is_read = ?", false)
		}

		var notifications []models.Notification
		if err := query.Order("created_at DESC").Limit(limit).Find(&notifications).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch notifications"})
			return
		}

		var unreadCount int64
		db.Model(&models.Notification{}).
			Where("user_id = ? AND is_read = ?", userID, false).
			Count(&unreadCount)

		c.JSON(200, gin.H{
			"notifications": notifications,
			"unreadCount":   unreadCount,
		})
	}
}

// MarkNotificationsRead marks the given notifications, or all of the user's, as read.
func MarkNotificationsRead(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")

		var input struct {
			IDs []uint `json:"ids"`
		}
		_ = c.ShouldBindJSON(&input)

		query := db.Model(&models.Notification{}).Where("user_id = ?", userID)
		if len(input.IDs) > 0 {
			query = query.Where("id IN ?", input.IDs)
		}

		if err := query.Update("is_read", true).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to mark notifications as read"})
			return
		}

		c.JSON(200, gin.H{"message": "Notifications marked as read"})
	}
}

// RegisterFCMToken registers or updates a user's FCM token
func RegisterFCMToken(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")

		var input struct {
			FCMToken string `json:"fcmToken" binding:"required"`
		}

		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		// Update user's FCM token
		if err := db.Model(&models.User{}).Where("id = ?", userID).Update("fcm_token", input.FCMToken).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to register FCM token"})
			return
		}

		// Get user type to subscribe to appropriate topic
		var user models.User
		if err := db.First(&user, userID).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to get user information"})
			return
		}

		topic := "customers"
		if user.UserType == models.UserTypeDriver {
			topic = "drivers"
		}

		ctx := context.Background()
		if err := services.SubscribeToTopic(ctx, []string{input.FCMToken}, topic); err != nil {
			// Token registration already succeeded; report the partial failure
			c.JSON(200, gin.H{
				"message": "FCM token registered successfully, but topic subscription failed",
				"warning": err.Error(),
			})
			return
		}

		c.JSON(200, gin.H{
			"message": "FCM token registered and subscribed to topic",
			"topic":   topic,
		})
	}
}

// RemoveFCMToken removes a user's FCM token
func RemoveFCMToken(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")

		// Clear user's FCM token
		if err := db.Model(&models.User{}).Where("id = ?", userID).Update("fcm_token", "").Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to remove FCM token"})
			return
		}

		c.JSON(200, gin.H{
			"message": "FCM token removed successfully",
		})
	}
}

// SendBroadcastNotificationHandler sends a broadcast notification to all users or a
// specific user type. Admin only.
func SendBroadcastNotificationHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Title    string                 `json:"title" binding:"required"`
			Body     string                 `json:"body" binding:"required"`
			UserType string                 `json:"userType"` // "all", "drivers", "customers"
			ImageURL string                 `json:"imageUrl"`
			Data     map[string]interface{} `json:"data"`
		}

		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		// Default to all users
		if input.UserType == "" {
			input.UserType = "all"
		}

		// Get tokens based on user type
		var users []models.User
		query := db.Where("fcm_token != ?", "")

		if input.UserType == "drivers" {
			query = query.Where("user_type = ?", models.UserTypeDriver)
		} else if input.UserType == "customers" {
			query = query.Where("user_type = ?", models.UserTypeCustomer)
		}

		if err := query.Find(&users).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch user tokens"})
			return
		}

		if len(users) == 0 {
			c.JSON(400, gin.H{"error": "No users with FCM tokens found"})
			return
		}

		// Extract tokens, honoring promotional opt-outs
		tokens := make([]string, 0, len(users))
		for _, u := range users {
			prefs := loadPreferences(db, u.ID)
			if !prefs.PushEnabled || !prefs.PromotionalMessages {
				continue
			}
			tokens = append(tokens, u.FCMToken)
			recordNotification(db, u.ID, models.NotificationBroadcast, input.Title, input.Body, 0)
		}

		if len(tokens) == 0 {
			c.JSON(400, gin.H{"error": "All matching users have opted out of broadcasts"})
			return
		}

		response, err := services.SendBroadcastNotification(context.Background(), tokens, input.Title, input.Body, input.ImageURL, input.Data)
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to send broadcast notification", "details": err.Error()})
			return
		}

		c.JSON(200, gin.H{
			"message":      "Broadcast notification sent successfully",
			"successCount": response.SuccessCount,
			"failureCount": response.FailureCount,
			"totalTokens":  len(tokens),
		})
	}
}

// TestNotification sends a test notification to the current user
func TestNotification(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")

		// Get user's FCM token
		var user models.User
		if err := db.First(&user, userID).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to get user information"})
			return
		}

		if user.FCMToken == "" {
			c.JSON(400, gin.H{"error": "No FCM token registered for this user"})
			return
		}

		// Send test notification
		ctx := context.Background()
		payload := services.NotificationPayload{
			Title: "Test Notification",
			Body:  "This is a test notification from Taxi Tao",
			Data: map[string]interface{}{
				"type":   "test",
				"userId": userID,
			},
		}

		if err := services.SendNotificationToToken(ctx, user.FCMToken, payload); err != nil {
			c.JSON(500, gin.H{"error": "Failed to send test notification", "details": err.Error()})
			return
		}

		c.JSON(200, gin.H{
			"message": "Test notification sent successfully",
		})
	}
}
