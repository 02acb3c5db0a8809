package handlers

import (
	"log"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sieless/Taxi-Tao-sub001/internal/matching"
	"github.com/sieless/Taxi-Tao-sub001/internal/models"
	"github.com/sieless/Taxi-Tao-sub001/internal/services"
	"github.com/sieless/Taxi-Tao-sub001/pkg/utils"
	"gorm.io/gorm"
)

// CreateBooking books a driver directly at their listed route price, skipping
// negotiation. Public endpoint: guests book with just a name and phone number.
func CreateBooking(db *gorm.DB, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			CustomerName  string `json:"customerName" binding:"required"`
			CustomerPhone string `json:"customerPhone" binding:"required"`
			DriverID      uint   `json:"driverId" binding:"required"`
			FromLocation  string `json:"fromLocation" binding:"required"`
			ToLocation    string `json:"toLocation" binding:"required"`
		}

		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		var driver models.User
		if err := db.First(&driver, input.DriverID).Error; err != nil {
			c.JSON(404, gin.H{"error": "Driver not found"})
			return
		}
		if !driver.IsEligibleDriver() {
			c.JSON(404, gin.H{"error": "Driver not available"})
			return
		}

		// Direct bookings only work at a listed price
		routeKey := matching.RouteKey(input.FromLocation, input.ToLocation)
		var routePrice models.RoutePrice
		if err := db.Where("driver_id = ? AND route_key = ? AND is_active = ?",
			input.DriverID, routeKey, true).First(&routePrice).Error; err != nil {
			c.JSON(404, gin.H{"error": "Driver has no listed price for this route. Make an offer instead."})
			return
		}

		var customerID *uint
		if userID, exists := c.Get("userId"); exists {
			id := userID.(uint)
			customerID = &id
		}

		booking := models.Booking{
			CustomerID:    customerID,
			CustomerName:  input.CustomerName,
			CustomerPhone: input.CustomerPhone,
			DriverID:      input.DriverID,
			FromLocation:  input.FromLocation,
			ToLocation:    input.ToLocation,
			Price:         routePrice.Price,
			Status:        models.BookingStatusConfirmed,
		}

		if err := db.Create(&booking).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to create booking"})
			return
		}

		notifyBookingConfirmed(c, db, hub, &driver, &booking)

		c.JSON(201, booking)
	}
}

func notifyBookingConfirmed(c *gin.Context, db *gorm.DB, hub *services.Hub, driver *models.User, booking *models.Booking) {
	ctx := c.Request.Context()

	confirmed := services.BookingConfirmed{
		BookingID:    booking.ID,
		DriverID:     driver.ID,
		FromLocation: booking.FromLocation,
		ToLocation:   booking.ToLocation,
		Price:        booking.Price,
	}
	hub.SendBookingConfirmed(driver.ID, confirmed)
	if booking.CustomerID != nil {
		hub.SendBookingConfirmed(*booking.CustomerID, confirmed)
	}

	prefs := loadPreferences(db, driver.ID)
	if prefs.PushEnabled && prefs.BookingAlerts && driver.FCMToken != "" {
		if err := services.SendBookingConfirmedNotification(ctx, driver.FCMToken, booking.ID,
			booking.FromLocation, booking.ToLocation, booking.Price); err != nil {
			log.Printf("Failed to send booking push to driver %d: %v", driver.ID, err)
		}
	}

	if err := utils.SendBookingConfirmedSMS(booking.CustomerPhone, driver.PhoneNumber,
		driver.Username, driver.VehiclePlate, booking.FromLocation, booking.ToLocation, booking.Price); err != nil {
		log.Printf("Failed to send booking SMS: %v", err)
	}

	if booking.CustomerID != nil {
		var customer models.User
		if err := db.First(&customer, *booking.CustomerID).Error; err == nil && customer.Email != "" {
			customerPrefs := loadPreferences(db, customer.ID)
			if customerPrefs.EmailEnabled && customerPrefs.BookingAlerts {
				if err := utils.SendBookingConfirmedEmail(customer.Email, driver.Username, driver.VehiclePlate,
					booking.FromLocation, booking.ToLocation, booking.Price); err != nil {
					log.Printf("Failed to send booking email to customer %d: %v", customer.ID, err)
				}
			}
		}
	}

	recordNotification(db, driver.ID, models.NotificationBookingConfirmed,
		"New Booking", booking.CustomerName+" booked "+booking.FromLocation+" to "+booking.ToLocation, booking.ID)

	if err := services.PublishBookingUpdate(ctx, booking.ID, string(booking.Status), map[string]interface{}{
		"driverId": driver.ID,
		"price":    booking.Price,
	}); err != nil {
		log.Printf("Failed to publish booking update: %v", err)
	}
}

// GetDriverBookings lists the authenticated driver's bookings, newest first.
func GetDriverBookings(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID := c.GetUint("userId")
		userType := c.GetString("userType")

		if userType != string(models.UserTypeDriver) {
			c.JSON(403, gin.H{"error": "Only drivers can view driver bookings"})
			return
		}

		var bookings []models.Booking
		if err := db.Where("driver_id = ?", driverID).
			Order("created_at DESC").
			Find(&bookings).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch bookings"})
			return
		}

		c.JSON(200, bookings)
	}
}

// GetMyBookings lists the authenticated customer's bookings, newest first.
func GetMyBookings(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		customerID := c.GetUint("userId")

		var bookings []models.Booking
		if err := db.Preload("Driver").
			Where("customer_id = ?", customerID).
			Order("created_at DESC").
			Find(&bookings).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch bookings"})
			return
		}

		c.JSON(200, bookings)
	}
}

// CancelBooking cancels a confirmed booking. Either party may cancel; guests prove
// ownership with the phone used at creation.
func CancelBooking(db *gorm.DB, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid booking ID"})
			return
		}

		var input struct {
			Reason        string `json:"reason"`
			CustomerPhone string `json:"customerPhone"`
		}
		_ = c.ShouldBindJSON(&input)

		var booking models.Booking
		if err := db.First(&booking, bookingID).Error; err != nil {
			c.JSON(404, gin.H{"error": "Booking not found"})
			return
		}

		if booking.Status != models.BookingStatusConfirmed {
			c.JSON(409, gin.H{"error": "Only confirmed bookings can be cancelled"})
			return
		}

		var cancelledByDriver bool
		if userID, exists := c.Get("userId"); exists {
			id := userID.(uint)
			switch {
			case id == booking.DriverID:
				cancelledByDriver = true
			case booking.CustomerID != nil && *booking.CustomerID == id:
			default:
				c.JSON(403, gin.H{"error": "Not a party to this booking"})
				return
			}
		} else if booking.CustomerID != nil || input.CustomerPhone != booking.CustomerPhone {
			c.JSON(403, gin.H{"error": "Not a party to this booking"})
			return
		}

		booking.Status = models.BookingStatusCancelled
		if err := db.Save(&booking).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to cancel booking"})
			return
		}

		cancelled := services.BookingCancelled{BookingID: booking.ID, Reason: input.Reason}
		if cancelledByDriver {
			if booking.CustomerID != nil {
				hub.SendBookingCancelled(*booking.CustomerID, cancelled)
				recordNotification(db, *booking.CustomerID, models.NotificationBookingCancelled,
					"Booking Cancelled", "The driver cancelled your booking", booking.ID)

				var customer models.User
				if err := db.First(&customer, *booking.CustomerID).Error; err == nil {
					prefs := loadPreferences(db, customer.ID)
					if prefs.PushEnabled && prefs.BookingAlerts && customer.FCMToken != "" {
						if err := services.SendBookingCancelledNotification(c.Request.Context(),
							customer.FCMToken, booking.ID, input.Reason); err != nil {
							log.Printf("Failed to send cancellation push to customer %d: %v", customer.ID, err)
						}
					}
				}
			}
			if err := utils.SendBookingCancelledSMS(booking.CustomerPhone); err != nil {
				log.Printf("Failed to send cancellation SMS: %v", err)
			}
			if booking.CustomerID != nil {
				var customer models.User
				if err := db.First(&customer, *booking.CustomerID).Error; err == nil && customer.Email != "" {
					customerPrefs := loadPreferences(db, customer.ID)
					if customerPrefs.EmailEnabled && customerPrefs.BookingAlerts {
						if err := utils.SendBookingCancelledEmail(customer.Email); err != nil {
							log.Printf("Failed to send cancellation email to customer %d: %v", customer.ID, err)
						}
					}
				}
			}
		} else {
			hub.SendBookingCancelled(booking.DriverID, cancelled)
			recordNotification(db, booking.DriverID, models.NotificationBookingCancelled,
				"Booking Cancelled", "The customer cancelled a booking", booking.ID)

			var driver models.User
			if err := db.First(&driver, booking.DriverID).Error; err == nil {
				prefs := loadPreferences(db, driver.ID)
				if prefs.PushEnabled && prefs.BookingAlerts && driver.FCMToken != "" {
					if err := services.SendBookingCancelledNotification(c.Request.Context(),
						driver.FCMToken, booking.ID, input.Reason); err != nil {
						log.Printf("Failed to send cancellation push to driver %d: %v", driver.ID, err)
					}
				}
			}
		}

		if err := services.PublishBookingUpdate(c.Request.Context(), booking.ID, string(booking.Status), map[string]interface{}{
			"reason": input.Reason,
		}); err != nil {
			log.Printf("Failed to publish booking cancellation: %v", err)
		}

		c.JSON(200, booking)
	}
}

// CompleteBooking marks a trip finished and rolls the outcome into the driver's
// ride count.
func CompleteBooking(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID := c.GetUint("userId")
		userType := c.GetString("userType")

		if userType != string(models.UserTypeDriver) {
			c.JSON(403, gin.H{"error": "Only drivers can complete bookings"})
			return
		}

		bookingID, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid booking ID"})
			return
		}

		var booking models.Booking
		if err := db.Where("id = ? AND driver_id = ?", bookingID, driverID).First(&booking).Error; err != nil {
			c.JSON(404, gin.H{"error": "Booking not found"})
			return
		}

		if booking.Status != models.BookingStatusConfirmed {
			c.JSON(409, gin.H{"error": "Only confirmed bookings can be completed"})
			return
		}

		booking.Status = models.BookingStatusCompleted
		if err := db.Save(&booking).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to complete booking"})
			return
		}

		if err := db.Model(&models.User{}).Where("id = ?", driverID).
			UpdateColumn("total_rides", gorm.Expr("total_rides + 1")).Error; err != nil {
			log.Printf("Failed to bump ride count for driver %d: %v", driverID, err)
		}

		c.JSON(200, booking)
	}
}

// foldRating folds one new rating into an aggregate built from count prior ratings.
func foldRating(current float64, count int, rating float64) float64 {
	return (current*float64(count) + rating) / float64(count+1)
}

// RateBooking lets the customer rate a completed trip, once. The rating is stored
// on the booking and folded into the driver's aggregate as an incremental average
// over rated trips.
func RateBooking(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid booking ID"})
			return
		}

		var input struct {
			Rating        float64 `json:"rating" binding:"required"`
			CustomerPhone string  `json:"customerPhone"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		if input.Rating < 1 || input.Rating > 5 {
			c.JSON(400, gin.H{"error": "Rating must be between 1 and 5"})
			return
		}

		var booking models.Booking
		if err := db.First(&booking, bookingID).Error; err != nil {
			c.JSON(404, gin.H{"error": "Booking not found"})
			return
		}

		if booking.Status != models.BookingStatusCompleted {
			c.JSON(409, gin.H{"error": "Only completed bookings can be rated"})
			return
		}

		if userID, exists := c.Get("userId"); exists {
			id := userID.(uint)
			if booking.CustomerID == nil || *booking.CustomerID != id {
				c.JSON(403, gin.H{"error": "Not a party to this booking"})
				return
			}
		} else if booking.CustomerID != nil || input.CustomerPhone != booking.CustomerPhone {
			c.JSON(403, gin.H{"error": "Not a party to this booking"})
			return
		}

		if booking.Rating != nil {
			c.JSON(409, gin.H{"error": "Booking has already been rated"})
			return
		}

		var driver models.User
		if err := db.First(&driver, booking.DriverID).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to load driver"})
			return
		}

		if err := db.Model(&booking).UpdateColumn("rating", input.Rating).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to record rating"})
			return
		}

		newRating := foldRating(driver.Rating, driver.RatingCount, input.Rating)
		if err := db.Model(&models.User{}).Where("id = ?", driver.ID).
			UpdateColumns(map[string]interface{}{
				"rating":       newRating,
				"rating_count": gorm.Expr("rating_count + 1"),
			}).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to update rating"})
			return
		}

		c.JSON(200, gin.H{"message": "Rating recorded", "driverRating": newRating})
	}
}
