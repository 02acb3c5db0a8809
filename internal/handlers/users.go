package handlers

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/sieless/Taxi-Tao-sub001/internal/models"
	"github.com/sieless/Taxi-Tao-sub001/internal/services"
	"gorm.io/gorm"
)

func profileResponse(user *models.User) gin.H {
	return gin.H{
		"id":                 user.ID,
		"email":              user.Email,
		"username":           user.Username,
		"phoneNumber":        user.PhoneNumber,
		"userType":           user.UserType,
		"rating":             user.Rating,
		"totalRides":         user.TotalRides,
		"vehicleMake":        user.VehicleMake,
		"vehicleModel":       user.VehicleModel,
		"vehiclePlate":       user.VehiclePlate,
		"vehicleColor":       user.VehicleColor,
		"profilePhotoUrl":    user.ProfilePhotoURL,
		"active":             user.Active,
		"subscriptionStatus": user.SubscriptionStatus,
		"isVisibleToPublic":  user.IsVisibleToPublic,
	}
}

// GetProfile retrieves the user's profile
func GetProfile(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		var user models.User
		if err := db.First(&user, userId).Error; err != nil {
			c.JSON(404, gin.H{"error": "User not found"})
			return
		}

		c.JSON(200, profileResponse(&user))
	}
}

// UpdateProfile updates the user's profile information
func UpdateProfile(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		var input struct {
			Username     *string `json:"username"`
			PhoneNumber  *string `json:"phoneNumber"`
			VehicleMake  *string `json:"vehicleMake"`
			VehicleModel *string `json:"vehicleModel"`
			VehiclePlate *string `json:"vehiclePlate"`
			VehicleColor *string `json:"vehicleColor"`
			Active       *bool   `json:"active"`
		}

		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		var user models.User
		if err := db.First(&user, userId).Error; err != nil {
			c.JSON(404, gin.H{"error": "User not found"})
			return
		}

		// Update fields individually to handle empty strings properly
		if input.Username != nil {
			user.Username = *input.Username
		}
		if input.PhoneNumber != nil {
			user.PhoneNumber = *input.PhoneNumber
		}
		if input.VehicleMake != nil {
			user.VehicleMake = *input.VehicleMake
		}
		if input.VehicleModel != nil {
			user.VehicleModel = *input.VehicleModel
		}
		if input.VehiclePlate != nil {
			user.VehiclePlate = *input.VehiclePlate
		}
		if input.VehicleColor != nil {
			user.VehicleColor = *input.VehicleColor
		}
		if input.Active != nil && user.UserType == models.UserTypeDriver {
			user.Active = *input.Active
		}

		// Use Save() instead of Updates() to persist all fields including empty strings
		if err := db.Save(&user).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to update profile"})
			return
		}

		// An availability toggle changes which drivers matching may return
		if input.Active != nil {
			if err := services.InvalidateRecommendations(c.Request.Context()); err != nil {
				log.Printf("Failed to invalidate recommendation cache: %v", err)
			}
		}

		// Reload user from database to ensure we return the actual saved data
		if err := db.First(&user, userId).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to reload user data"})
			return
		}

		c.JSON(200, profileResponse(&user))
	}
}

// UploadProfilePhoto stores a driver's profile photo and records its URL
func UploadProfilePhoto(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		file, err := c.FormFile("photo")
		if err != nil {
			c.JSON(400, gin.H{"error": "Photo file is required"})
			return
		}

		if file.Size > 5*1024*1024 {
			c.JSON(400, gin.H{"error": "Photo must be under 5MB"})
			return
		}

		var user models.User
		if err := db.First(&user, userId).Error; err != nil {
			c.JSON(404, gin.H{"error": "User not found"})
			return
		}

		path, err := services.UploadImage(file, "profiles")
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to upload photo"})
			return
		}

		photoURL := services.GetImageURL(path)
		if err := db.Model(&models.User{}).Where("id = ?", userId).
			Update("profile_photo_url", photoURL).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to save photo URL"})
			return
		}

		if user.ProfilePhotoURL != "" {
			if err := services.DeleteImage(user.ProfilePhotoURL); err != nil {
				log.Printf("Failed to delete old profile photo for user %d: %v", userId, err)
			}
		}

		c.JSON(200, gin.H{"profilePhotoUrl": photoURL})
	}
}

// GetDriverProfile returns a driver's public profile by id. Public endpoint.
func GetDriverProfile(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var driver models.User
		if err := db.First(&driver, c.Param("id")).Error; err != nil {
			c.JSON(404, gin.H{"error": "Driver not found"})
			return
		}
		if !driver.IsEligibleDriver() {
			c.JSON(404, gin.H{"error": "Driver not available"})
			return
		}

		online, err := services.IsDriverOnline(c.Request.Context(), driver.ID)
		if err != nil {
			log.Printf("Failed to check presence for driver %d: %v", driver.ID, err)
		}

		c.JSON(200, gin.H{
			"id":              driver.ID,
			"username":        driver.Username,
			"rating":          driver.Rating,
			"totalRides":      driver.TotalRides,
			"vehicleMake":     driver.VehicleMake,
			"vehicleModel":    driver.VehicleModel,
			"vehiclePlate":    driver.VehiclePlate,
			"vehicleColor":    driver.VehicleColor,
			"profilePhotoUrl": driver.ProfilePhotoURL,
			"online":          online,
		})
	}
}
