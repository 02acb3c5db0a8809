package handlers

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sieless/Taxi-Tao-sub001/internal/matching"
	"github.com/sieless/Taxi-Tao-sub001/internal/models"
	"github.com/sieless/Taxi-Tao-sub001/internal/negotiation"
	"github.com/sieless/Taxi-Tao-sub001/internal/services"
	"gorm.io/gorm"
)

// CreateRideRequest posts an open ride request: the fallback when matching finds no
// priced driver for a route. Public endpoint; guests post with name and phone.
func CreateRideRequest(db *gorm.DB, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			CustomerName  string  `json:"customerName" binding:"required"`
			CustomerPhone string  `json:"customerPhone" binding:"required"`
			FromLocation  string  `json:"fromLocation" binding:"required"`
			ToLocation    string  `json:"toLocation" binding:"required"`
			OfferedPrice  float64 `json:"offeredPrice" binding:"required"`
			Note          string  `json:"note"`
		}

		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		if input.OfferedPrice <= 0 {
			c.JSON(400, gin.H{"error": "Offered price must be positive"})
			return
		}

		var customerID *uint
		if userID, exists := c.Get("userId"); exists {
			id := userID.(uint)
			customerID = &id
		}

		request := models.RideRequest{
			CustomerID:    customerID,
			CustomerName:  input.CustomerName,
			CustomerPhone: input.CustomerPhone,
			FromLocation:  input.FromLocation,
			ToLocation:    input.ToLocation,
			RouteKey:      matching.RouteKey(input.FromLocation, input.ToLocation),
			OfferedPrice:  input.OfferedPrice,
			Note:          input.Note,
			Status:        models.RideRequestStatusOpen,
		}

		if err := db.Create(&request).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to create ride request"})
			return
		}

		announceRideRequest(c, db, hub, &request)

		c.JSON(201, request)
	}
}

// announceRideRequest fans the new request out to every eligible driver.
func announceRideRequest(c *gin.Context, db *gorm.DB, hub *services.Hub, request *models.RideRequest) {
	ctx := c.Request.Context()

	hub.SendRideRequestPosted(services.RideRequestPosted{
		RideRequestID: request.ID,
		FromLocation:  request.FromLocation,
		ToLocation:    request.ToLocation,
		OfferedPrice:  request.OfferedPrice,
	})

	var drivers []models.User
	if err := db.Where("user_type = ? AND active = ? AND subscription_status = ? AND is_visible_to_public = ?",
		models.UserTypeDriver, true, models.SubscriptionActive, true).
		Find(&drivers).Error; err != nil {
		log.Printf("Failed to load drivers for ride request fan-out: %v", err)
		return
	}

	var tokens []string
	for _, d := range drivers {
		prefs := loadPreferences(db, d.ID)
		if !prefs.RideRequestAlerts {
			continue
		}
		if prefs.PushEnabled && d.FCMToken != "" {
			tokens = append(tokens, d.FCMToken)
		}
		recordNotification(db, d.ID, models.NotificationRideRequestPosted,
			"New Ride Request", request.FromLocation+" to "+request.ToLocation, request.ID)
	}

	if len(tokens) > 0 {
		if _, err := services.SendRideRequestPostedNotification(ctx, tokens, request.ID,
			request.FromLocation, request.ToLocation, request.OfferedPrice); err != nil {
			log.Printf("Failed to send ride request pushes: %v", err)
		}
	}

	// Drivers subscribed to the ride-request topic get it even if their token
	// never made it into the users table
	if err := services.SendTopicNotification(ctx, "drivers-ride-requests", services.NotificationPayload{
		Title: "New Ride Request",
		Body:  fmt.Sprintf("%s to %s for KES %.0f", request.FromLocation, request.ToLocation, request.OfferedPrice),
		Data: map[string]interface{}{
			"type":          "ride_request_posted",
			"rideRequestId": request.ID,
		},
	}); err != nil {
		log.Printf("Failed to send ride request topic notification: %v", err)
	}
}

// expireStaleRideRequests closes open requests past the staleness window. Applied
// on the read paths; there is no background sweeper.
func expireStaleRideRequests(db *gorm.DB) {
	cutoff := time.Now().Add(-negotiationTTL())
	if err := db.Model(&models.RideRequest{}).
		Where("status = ? AND created_at < ?", models.RideRequestStatusOpen, cutoff).
		Update("status", models.RideRequestStatusExpired).Error; err != nil {
		log.Printf("Failed to expire stale ride requests: %v", err)
	}
}

// GetOpenRideRequests lists open ride requests for drivers to browse.
func GetOpenRideRequests(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userType := c.GetString("userType")
		if userType != string(models.UserTypeDriver) {
			c.JSON(403, gin.H{"error": "Only drivers can browse ride requests"})
			return
		}

		expireStaleRideRequests(db)

		query := db.Where("status = ?", models.RideRequestStatusOpen)
		if from := c.Query("from"); from != "" {
			if to := c.Query("to"); to != "" {
				query = query.Where("route_key = ?", matching.RouteKey(from, to))
			}
		}

		var requests []models.RideRequest
		if err := query.Order("created_at DESC").Find(&requests).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch ride requests"})
			return
		}

		c.JSON(200, requests)
	}
}

// GetMyRideRequests lists the authenticated customer's ride requests.
func GetMyRideRequests(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		customerID := c.GetUint("userId")

		var requests []models.RideRequest
		if err := db.Where("customer_id = ?", customerID).
			Order("created_at DESC").
			Find(&requests).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch ride requests"})
			return
		}

		c.JSON(200, requests)
	}
}

// RespondToRideRequest lets a driver answer an open request by opening a negotiation
// against it. The request's offered price seeds the thread; a different price from
// the driver lands as an immediate counter.
func RespondToRideRequest(db *gorm.DB, hub *services.Hub) gin.HandlerFunc {
	engine := negotiation.NewEngine(negotiation.NewGormStore(db))

	return func(c *gin.Context) {
		driverID := c.GetUint("userId")
		userType := c.GetString("userType")

		if userType != string(models.UserTypeDriver) {
			c.JSON(403, gin.H{"error": "Only drivers can respond to ride requests"})
			return
		}

		requestID, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid ride request ID"})
			return
		}

		var input struct {
			Price float64 `json:"price"`
		}
		_ = c.ShouldBindJSON(&input)

		expireStaleRideRequests(db)

		var request models.RideRequest
		if err := db.First(&request, requestID).Error; err != nil {
			c.JSON(404, gin.H{"error": "Ride request not found"})
			return
		}

		if request.Status != models.RideRequestStatusOpen {
			c.JSON(409, gin.H{"error": "Ride request is no longer open"})
			return
		}

		var driver models.User
		if err := db.First(&driver, driverID).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to load driver"})
			return
		}
		if !driver.IsEligibleDriver() {
			c.JSON(403, gin.H{"error": "Driver profile is not eligible to respond"})
			return
		}

		requestRef := request.ID
		negotiationID, err := engine.Create(c.Request.Context(), negotiation.CreateCommand{
			BookingRequestID: &requestRef,
			CustomerID:       request.CustomerID,
			CustomerName:     request.CustomerName,
			CustomerPhone:    request.CustomerPhone,
			DriverID:         driverID,
			FromLocation:     request.FromLocation,
			ToLocation:       request.ToLocation,
			OriginalPrice:    request.OfferedPrice,
			ProposedPrice:    request.OfferedPrice,
		})
		if err != nil {
			respondNegotiationError(c, err)
			return
		}

		if input.Price > 0 && input.Price != request.OfferedPrice {
			if err := engine.Counter(c.Request.Context(), negotiationID, models.SenderDriver, input.Price); err != nil {
				respondNegotiationError(c, err)
				return
			}
		}

		n, err := engine.Get(c.Request.Context(), negotiationID)
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to load negotiation"})
			return
		}

		// Tell the customer a driver picked their request up
		if request.CustomerID != nil {
			hub.SendNegotiationCounter(*request.CustomerID, services.NegotiationCounter{
				NegotiationID: n.ID,
				Sender:        string(models.SenderDriver),
				Price:         n.CurrentOffer,
			})
			recordNotification(db, *request.CustomerID, models.NotificationNegotiationCounter,
				"Driver Responded", driver.Username+" responded to your ride request", n.ID)
		}

		if err := services.PublishNegotiationUpdate(c.Request.Context(), n.ID, "offer", map[string]interface{}{
			"rideRequestId": request.ID,
			"driverId":      driverID,
		}); err != nil {
			log.Printf("Failed to publish ride request response: %v", err)
		}

		c.JSON(201, n)
	}
}

// CancelRideRequest closes an open request. The owner cancels; guests prove
// ownership with the phone used at creation.
func CancelRideRequest(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid ride request ID"})
			return
		}

		var input struct {
			CustomerPhone string `json:"customerPhone"`
		}
		_ = c.ShouldBindJSON(&input)

		var request models.RideRequest
		if err := db.First(&request, requestID).Error; err != nil {
			c.JSON(404, gin.H{"error": "Ride request not found"})
			return
		}

		if request.Status != models.RideRequestStatusOpen {
			c.JSON(409, gin.H{"error": "Ride request is no longer open"})
			return
		}

		if userID, exists := c.Get("userId"); exists {
			id := userID.(uint)
			if request.CustomerID == nil || *request.CustomerID != id {
				c.JSON(403, gin.H{"error": "Not your ride request"})
				return
			}
		} else if request.CustomerID != nil || input.CustomerPhone != request.CustomerPhone {
			c.JSON(403, gin.H{"error": "Not your ride request"})
			return
		}

		request.Status = models.RideRequestStatusClosed
		if err := db.Save(&request).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to cancel ride request"})
			return
		}

		c.JSON(200, request)
	}
}
