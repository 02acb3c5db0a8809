package handlers

import (
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sieless/Taxi-Tao-sub001/internal/matching"
	"github.com/sieless/Taxi-Tao-sub001/internal/models"
	"github.com/sieless/Taxi-Tao-sub001/internal/negotiation"
	"github.com/sieless/Taxi-Tao-sub001/internal/services"
	"github.com/sieless/Taxi-Tao-sub001/pkg/utils"
	"gorm.io/gorm"
)

// negotiationTTL is how long a pending negotiation stays actionable after its last
// message. Expiry is applied lazily when the record is read; nothing runs on a timer.
func negotiationTTL() time.Duration {
	if v := os.Getenv("NEGOTIATION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
		log.Printf("Invalid NEGOTIATION_TTL %q, using default", v)
	}
	return 24 * time.Hour
}

// applyExpiry expires a stale pending negotiation and returns the fresh record.
// A concurrent expiry by another reader is fine; we just re-fetch.
func applyExpiry(c *gin.Context, engine *negotiation.Engine, n *models.Negotiation) *models.Negotiation {
	if n.Status != models.NegotiationStatusPending {
		return n
	}
	if time.Since(n.UpdatedAt) <= negotiationTTL() {
		return n
	}

	err := engine.Expire(c.Request.Context(), n.ID)
	if err != nil && !errors.Is(err, negotiation.ErrConflict) && !errors.Is(err, negotiation.ErrInvalidTransition) {
		log.Printf("Failed to expire negotiation %d: %v", n.ID, err)
		return n
	}
	fresh, err := engine.Get(c.Request.Context(), n.ID)
	if err != nil {
		return n
	}
	return fresh
}

func respondNegotiationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, negotiation.ErrValidation):
		c.JSON(400, gin.H{"error": err.Error()})
	case errors.Is(err, negotiation.ErrNotFound):
		c.JSON(404, gin.H{"error": "Negotiation not found"})
	case errors.Is(err, negotiation.ErrInvalidTransition):
		c.JSON(409, gin.H{"error": "Negotiation is already closed"})
	case errors.Is(err, negotiation.ErrConflict):
		c.JSON(409, gin.H{"error": "Negotiation was updated by the other party, please refresh"})
	default:
		c.JSON(500, gin.H{"error": "Failed to update negotiation"})
	}
}

// resolveSender decides which side of the negotiation the caller is on. Registered
// users are matched by id; guests prove ownership with the phone used at creation.
func resolveSender(c *gin.Context, n *models.Negotiation, guestPhone string) (models.NegotiationSender, bool) {
	if userID, exists := c.Get("userId"); exists {
		id := userID.(uint)
		if id == n.DriverID {
			return models.SenderDriver, true
		}
		if n.CustomerID != nil && *n.CustomerID == id {
			return models.SenderCustomer, true
		}
		return "", false
	}

	if n.CustomerID == nil && guestPhone != "" && guestPhone == n.CustomerPhone {
		return models.SenderCustomer, true
	}
	return "", false
}

// CreateNegotiation opens a price negotiation against a driver. Public endpoint:
// guest customers negotiate with just a name and phone number.
func CreateNegotiation(db *gorm.DB, hub *services.Hub) gin.HandlerFunc {
	engine := negotiation.NewEngine(negotiation.NewGormStore(db))

	return func(c *gin.Context) {
		var input struct {
			CustomerName  string  `json:"customerName" binding:"required"`
			CustomerPhone string  `json:"customerPhone" binding:"required"`
			DriverID      uint    `json:"driverId" binding:"required"`
			FromLocation  string  `json:"fromLocation" binding:"required"`
			ToLocation    string  `json:"toLocation" binding:"required"`
			ProposedPrice float64 `json:"proposedPrice" binding:"required"`
			RideRequestID *uint   `json:"rideRequestId"`
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

		// The driver's listed price anchors the negotiation when one exists
		var originalPrice float64
		routeKey := matching.RouteKey(input.FromLocation, input.ToLocation)
		var routePrice models.RoutePrice
		if err := db.Where("driver_id = ? AND route_key = ? AND is_active = ?",
			input.DriverID, routeKey, true).First(&routePrice).Error; err == nil {
			originalPrice = routePrice.Price
		} else {
			originalPrice = input.ProposedPrice
		}

		// Registered customers get linked; guests stay NULL
		var customerID *uint
		if userID, exists := c.Get("userId"); exists {
			id := userID.(uint)
			customerID = &id
		}

		negotiationID, err := engine.Create(c.Request.Context(), negotiation.CreateCommand{
			BookingRequestID: input.RideRequestID,
			CustomerID:       customerID,
			CustomerName:     input.CustomerName,
			CustomerPhone:    input.CustomerPhone,
			DriverID:         input.DriverID,
			FromLocation:     input.FromLocation,
			ToLocation:       input.ToLocation,
			OriginalPrice:    originalPrice,
			ProposedPrice:    input.ProposedPrice,
		})
		if err != nil {
			respondNegotiationError(c, err)
			return
		}

		n, err := engine.Get(c.Request.Context(), negotiationID)
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to load negotiation"})
			return
		}

		notifyDriverOfOffer(c, db, hub, &driver, n)

		c.JSON(201, n)
	}
}

// notifyDriverOfOffer fans a new offer out to the driver: websocket, push, SMS,
// in-app log, and the cross-instance pub/sub channel. Delivery failures are logged
// and swallowed; the negotiation itself is already durable.
func notifyDriverOfOffer(c *gin.Context, db *gorm.DB, hub *services.Hub, driver *models.User, n *models.Negotiation) {
	ctx := c.Request.Context()

	hub.SendNegotiationOffer(driver.ID, services.NegotiationOffer{
		NegotiationID: n.ID,
		CustomerName:  n.CustomerName,
		FromLocation:  n.FromLocation,
		ToLocation:    n.ToLocation,
		OfferedPrice:  n.CurrentOffer,
		ListedPrice:   n.OriginalPrice,
	})

	prefs := loadPreferences(db, driver.ID)

	if prefs.PushEnabled && prefs.NegotiationAlerts && driver.FCMToken != "" {
		if err := services.SendNegotiationOfferNotification(ctx, driver.FCMToken, n.ID,
			n.CustomerName, n.FromLocation, n.ToLocation, n.CurrentOffer); err != nil {
			log.Printf("Failed to send offer push to driver %d: %v", driver.ID, err)
		}
	}

	if prefs.SMSEnabled && prefs.NegotiationAlerts && driver.PhoneNumber != "" {
		if err := utils.SendNegotiationOfferSMS(driver.PhoneNumber, n.CustomerName,
			n.FromLocation, n.ToLocation, n.CurrentOffer); err != nil {
			log.Printf("Failed to send offer SMS to driver %d: %v", driver.ID, err)
		}
	}

	if prefs.EmailEnabled && prefs.NegotiationAlerts && driver.Email != "" {
		if err := utils.SendNegotiationOfferEmail(driver.Email, n.CustomerName,
			n.FromLocation, n.ToLocation, n.CurrentOffer); err != nil {
			log.Printf("Failed to send offer email to driver %d: %v", driver.ID, err)
		}
	}

	recordNotification(db, driver.ID, models.NotificationNegotiationOffer,
		"New Price Offer",
		n.CustomerName+" made an offer for "+n.FromLocation+" to "+n.ToLocation,
		n.ID)

	if err := services.PublishNegotiationUpdate(ctx, n.ID, "offer", map[string]interface{}{
		"driverId": driver.ID,
		"price":    n.CurrentOffer,
	}); err != nil {
		log.Printf("Failed to publish negotiation offer: %v", err)
	}
}

func loadPreferences(db *gorm.DB, userID uint) *models.NotificationPreference {
	var prefs models.NotificationPreference
	if err := db.Where("user_id = ?", userID).First(&prefs).Error; err != nil {
		return models.DefaultPreferences(userID)
	}
	return &prefs
}

func recordNotification(db *gorm.DB, userID uint, notifType, title, body string, referenceID uint) {
	var ref *uint
	if referenceID != 0 {
		id := referenceID
		ref = &id
	}
	notification := models.Notification{
		UserID:      userID,
		Type:        notifType,
		Title:       title,
		Body:        body,
		ReferenceID: ref,
	}
	if err := db.Create(&notification).Error; err != nil {
		log.Printf("Failed to record notification for user %d: %v", userID, err)
	}
}

// GetNegotiation returns one negotiation. Public: guests poll this with the id they
// got at creation. Stale pending negotiations are expired on read.
func GetNegotiation(db *gorm.DB) gin.HandlerFunc {
	engine := negotiation.NewEngine(negotiation.NewGormStore(db))

	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid negotiation ID"})
			return
		}

		n, err := engine.Get(c.Request.Context(), uint(id))
		if err != nil {
			respondNegotiationError(c, err)
			return
		}

		n = applyExpiry(c, engine, n)

		c.JSON(200, n)
	}
}

// CounterNegotiation appends a counter-offer from either party.
func CounterNegotiation(db *gorm.DB, hub *services.Hub) gin.HandlerFunc {
	engine := negotiation.NewEngine(negotiation.NewGormStore(db))

	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid negotiation ID"})
			return
		}

		var input struct {
			Price         float64 `json:"price" binding:"required"`
			CustomerPhone string  `json:"customerPhone"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		n, err := engine.Get(c.Request.Context(), uint(id))
		if err != nil {
			respondNegotiationError(c, err)
			return
		}
		n = applyExpiry(c, engine, n)

		sender, ok := resolveSender(c, n, input.CustomerPhone)
		if !ok {
			c.JSON(403, gin.H{"error": "Not a party to this negotiation"})
			return
		}

		if err := engine.Counter(c.Request.Context(), n.ID, sender, input.Price); err != nil {
			respondNegotiationError(c, err)
			return
		}

		updated, err := engine.Get(c.Request.Context(), n.ID)
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to load negotiation"})
			return
		}

		notifyCounter(c, db, hub, updated, sender, input.Price)

		c.JSON(200, updated)
	}
}

func notifyCounter(c *gin.Context, db *gorm.DB, hub *services.Hub, n *models.Negotiation, sender models.NegotiationSender, price float64) {
	ctx := c.Request.Context()

	// The counter goes to the party that did not send it
	var targetID uint
	if sender == models.SenderCustomer {
		targetID = n.DriverID
	} else if n.CustomerID != nil {
		targetID = *n.CustomerID
	}

	if targetID != 0 {
		hub.SendNegotiationCounter(targetID, services.NegotiationCounter{
			NegotiationID: n.ID,
			Sender:        string(sender),
			Price:         price,
		})

		var target models.User
		if err := db.First(&target, targetID).Error; err == nil {
			prefs := loadPreferences(db, targetID)
			if prefs.PushEnabled && prefs.NegotiationAlerts && target.FCMToken != "" {
				if err := services.SendNegotiationCounterNotification(ctx, target.FCMToken, n.ID, string(sender), price); err != nil {
					log.Printf("Failed to send counter push to user %d: %v", targetID, err)
				}
			}
		}

		recordNotification(db, targetID, models.NotificationNegotiationCounter,
			"Counter Offer", "The other party countered your offer", n.ID)
	}

	if err := services.PublishNegotiationUpdate(ctx, n.ID, "counter", map[string]interface{}{
		"sender": string(sender),
		"price":  price,
	}); err != nil {
		log.Printf("Failed to publish negotiation counter: %v", err)
	}
}

// AcceptNegotiation locks in the current offer and creates the booking handoff.
func AcceptNegotiation(db *gorm.DB, hub *services.Hub) gin.HandlerFunc {
	engine := negotiation.NewEngine(negotiation.NewGormStore(db))

	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid negotiation ID"})
			return
		}

		var input struct {
			CustomerPhone string `json:"customerPhone"`
		}
		// Body is optional for authenticated parties
		_ = c.ShouldBindJSON(&input)

		n, err := engine.Get(c.Request.Context(), uint(id))
		if err != nil {
			respondNegotiationError(c, err)
			return
		}
		n = applyExpiry(c, engine, n)

		sender, ok := resolveSender(c, n, input.CustomerPhone)
		if !ok {
			c.JSON(403, gin.H{"error": "Not a party to this negotiation"})
			return
		}

		if err := engine.Accept(c.Request.Context(), n.ID, sender); err != nil {
			respondNegotiationError(c, err)
			return
		}

		accepted, err := engine.Get(c.Request.Context(), n.ID)
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to load negotiation"})
			return
		}

		booking, err := createBookingFromNegotiation(db, accepted)
		if err != nil {
			log.Printf("Failed to create booking for negotiation %d: %v", accepted.ID, err)
			c.JSON(500, gin.H{"error": "Price agreed but booking creation failed"})
			return
		}

		notifyAccepted(c, db, hub, accepted, booking)

		c.JSON(200, gin.H{
			"negotiation": accepted,
			"booking":     booking,
		})
	}
}

func createBookingFromNegotiation(db *gorm.DB, n *models.Negotiation) (*models.Booking, error) {
	negotiationID := n.ID
	booking := models.Booking{
		CustomerID:    n.CustomerID,
		CustomerName:  n.CustomerName,
		CustomerPhone: n.CustomerPhone,
		DriverID:      n.DriverID,
		FromLocation:  n.FromLocation,
		ToLocation:    n.ToLocation,
		Price:         n.CurrentOffer,
		NegotiationID: &negotiationID,
		Status:        models.BookingStatusConfirmed,
	}
	if err := db.Create(&booking).Error; err != nil {
		return nil, err
	}

	// Close out the originating ride request if the negotiation came from one
	if n.BookingRequestID != nil {
		if err := db.Model(&models.RideRequest{}).
			Where("id = ? AND status = ?", *n.BookingRequestID, models.RideRequestStatusOpen).
			Update("status", models.RideRequestStatusMatched).Error; err != nil {
			log.Printf("Failed to close ride request %d: %v", *n.BookingRequestID, err)
		}
	}

	return &booking, nil
}

func notifyAccepted(c *gin.Context, db *gorm.DB, hub *services.Hub, n *models.Negotiation, booking *models.Booking) {
	ctx := c.Request.Context()

	var driver models.User
	if err := db.First(&driver, n.DriverID).Error; err != nil {
		log.Printf("Failed to load driver %d for accept fan-out: %v", n.DriverID, err)
		return
	}

	confirmed := services.BookingConfirmed{
		BookingID:    booking.ID,
		DriverID:     driver.ID,
		FromLocation: booking.FromLocation,
		ToLocation:   booking.ToLocation,
		Price:        booking.Price,
	}
	hub.SendBookingConfirmed(driver.ID, confirmed)
	if n.CustomerID != nil {
		hub.SendBookingConfirmed(*n.CustomerID, confirmed)
	}

	driverPrefs := loadPreferences(db, driver.ID)
	if driverPrefs.PushEnabled && driverPrefs.BookingAlerts && driver.FCMToken != "" {
		if err := services.SendNegotiationAcceptedNotification(ctx, driver.FCMToken, n.ID, booking.Price); err != nil {
			log.Printf("Failed to send accept push to driver %d: %v", driver.ID, err)
		}
	}

	if driverPrefs.SMSEnabled && driverPrefs.BookingAlerts && driver.PhoneNumber != "" {
		if err := utils.SendNegotiationAcceptedDriverSMS(driver.PhoneNumber, n.CustomerName, n.CustomerPhone, booking.Price); err != nil {
			log.Printf("Failed to send accept SMS to driver %d: %v", driver.ID, err)
		}
	}

	// The customer always gets the confirmation SMS; for guests it is the only
	// record of the agreed price and the booking reference
	if err := utils.SendNegotiationAcceptedSMS(n.CustomerPhone, driver.Username, driver.VehiclePlate, booking.Price); err != nil {
		log.Printf("Failed to send accept SMS to customer: %v", err)
	}

	if n.CustomerID != nil {
		var customer models.User
		if err := db.First(&customer, *n.CustomerID).Error; err == nil && customer.Email != "" {
			customerPrefs := loadPreferences(db, customer.ID)
			if customerPrefs.EmailEnabled && customerPrefs.BookingAlerts {
				if err := utils.SendBookingConfirmedEmail(customer.Email, driver.Username, driver.VehiclePlate,
					booking.FromLocation, booking.ToLocation, booking.Price); err != nil {
					log.Printf("Failed to send confirmation email to customer %d: %v", customer.ID, err)
				}
			}
		}
	}

	recordNotification(db, driver.ID, models.NotificationNegotiationAccepted,
		"Offer Accepted", "Price agreed for "+booking.FromLocation+" to "+booking.ToLocation, n.ID)
	if n.CustomerID != nil {
		recordNotification(db, *n.CustomerID, models.NotificationBookingConfirmed,
			"Booking Confirmed", "Your trip "+booking.FromLocation+" to "+booking.ToLocation+" is confirmed", booking.ID)
	}

	if err := services.PublishBookingUpdate(ctx, booking.ID, string(booking.Status), map[string]interface{}{
		"negotiationId": n.ID,
		"price":         booking.Price,
	}); err != nil {
		log.Printf("Failed to publish booking update: %v", err)
	}
}

// DeclineNegotiation closes a pending negotiation without agreement.
func DeclineNegotiation(db *gorm.DB, hub *services.Hub) gin.HandlerFunc {
	engine := negotiation.NewEngine(negotiation.NewGormStore(db))

	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid negotiation ID"})
			return
		}

		var input struct {
			Reason        string `json:"reason"`
			CustomerPhone string `json:"customerPhone"`
		}
		_ = c.ShouldBindJSON(&input)

		n, err := engine.Get(c.Request.Context(), uint(id))
		if err != nil {
			respondNegotiationError(c, err)
			return
		}
		n = applyExpiry(c, engine, n)

		sender, ok := resolveSender(c, n, input.CustomerPhone)
		if !ok {
			c.JSON(403, gin.H{"error": "Not a party to this negotiation"})
			return
		}

		if err := engine.Decline(c.Request.Context(), n.ID, sender, input.Reason); err != nil {
			respondNegotiationError(c, err)
			return
		}

		declined, err := engine.Get(c.Request.Context(), n.ID)
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to load negotiation"})
			return
		}

		notifyDeclined(c, db, hub, declined, sender, input.Reason)

		c.JSON(200, declined)
	}
}

func notifyDeclined(c *gin.Context, db *gorm.DB, hub *services.Hub, n *models.Negotiation, sender models.NegotiationSender, reason string) {
	ctx := c.Request.Context()

	closed := services.NegotiationClosed{
		NegotiationID: n.ID,
		Status:        string(n.Status),
		Reason:        reason,
	}

	if sender == models.SenderCustomer {
		hub.SendNegotiationClosed(n.DriverID, closed)
		recordNotification(db, n.DriverID, models.NotificationNegotiationDeclined,
			"Offer Withdrawn", "The customer closed the negotiation", n.ID)
	} else {
		if n.CustomerID != nil {
			hub.SendNegotiationClosed(*n.CustomerID, closed)
			recordNotification(db, *n.CustomerID, models.NotificationNegotiationDeclined,
				"Offer Declined", "The driver declined your offer", n.ID)

			var customer models.User
			if err := db.First(&customer, *n.CustomerID).Error; err == nil {
				prefs := loadPreferences(db, customer.ID)
				if prefs.PushEnabled && prefs.NegotiationAlerts && customer.FCMToken != "" {
					if err := services.SendNegotiationDeclinedNotification(ctx, customer.FCMToken, n.ID, reason); err != nil {
						log.Printf("Failed to send decline push to customer %d: %v", customer.ID, err)
					}
				}
			}
		}
		if err := utils.SendNegotiationDeclinedSMS(n.CustomerPhone, reason); err != nil {
			log.Printf("Failed to send decline SMS: %v", err)
		}
	}

	if err := services.PublishNegotiationUpdate(ctx, n.ID, "declined", map[string]interface{}{
		"sender": string(sender),
		"reason": reason,
	}); err != nil {
		log.Printf("Failed to publish negotiation decline: %v", err)
	}
}

// GetDriverNegotiations lists the authenticated driver's negotiations.
func GetDriverNegotiations(db *gorm.DB) gin.HandlerFunc {
	store := negotiation.NewGormStore(db)
	engine := negotiation.NewEngine(store)

	return func(c *gin.Context) {
		driverID := c.GetUint("userId")
		userType := c.GetString("userType")

		if userType != string(models.UserTypeDriver) {
			c.JSON(403, gin.H{"error": "Only drivers can view driver negotiations"})
			return
		}

		list, err := store.ListForDriver(c.Request.Context(), driverID)
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch negotiations"})
			return
		}

		for i := range list {
			list[i] = *applyExpiry(c, engine, &list[i])
		}

		c.JSON(200, list)
	}
}

// GetMyNegotiations lists the authenticated customer's negotiations.
func GetMyNegotiations(db *gorm.DB) gin.HandlerFunc {
	store := negotiation.NewGormStore(db)
	engine := negotiation.NewEngine(store)

	return func(c *gin.Context) {
		customerID := c.GetUint("userId")

		list, err := store.ListForCustomer(c.Request.Context(), customerID)
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch negotiations"})
			return
		}

		for i := range list {
			list[i] = *applyExpiry(c, engine, &list[i])
		}

		c.JSON(200, list)
	}
}
