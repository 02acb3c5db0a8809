package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

var (
	// FirebaseApp is the Firebase app instance
	FirebaseApp *firebase.App
	// MessagingClient is the Firebase Cloud Messaging client
	MessagingClient *messaging.Client
)

// InitFirebase initializes Firebase Admin SDK
func InitFirebase() error {
	ctx := context.Background()

	// Check if Firebase is configured
	serviceAccountPath := os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH")
	if serviceAccountPath == "" {
		log.Println("Warning: FIREBASE_SERVICE_ACCOUNT_PATH not set. Push notifications will be disabled.")
		return nil
	}

	// Initialize Firebase app
	opt := option.WithCredentialsFile(serviceAccountPath)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return fmt.Errorf("error initializing firebase app: %v", err)
	}

	// Initialize messaging client
	client, err := app.Messaging(ctx)
	if err != nil {
		return fmt.Errorf("error getting messaging client: %v", err)
	}

	FirebaseApp = app
	MessagingClient = client

	log.Println("Firebase Cloud Messaging initialized successfully")
	return nil
}

// NotificationPayload represents the notification data
type NotificationPayload struct {
	Title      string                 `json:"title"`
	Body       string                 `json:"body"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Image      string                 `json:"image,omitempty"`
	ChannelID  string                 `json:"channelId,omitempty"`  // Android notification channel
	Sound      string                 `json:"sound,omitempty"`      // Custom sound file name
	Icon       string                 `json:"icon,omitempty"`       // Android small icon
	Color      string                 `json:"color,omitempty"`      // Android notification color
	Priority   string                 `json:"priority,omitempty"`   // high, normal, low
	BadgeCount *int                   `json:"badgeCount,omitempty"` // iOS badge count
	Tag        string                 `json:"tag,omitempty"`        // Android notification tag
}

// getAndroidConfig returns Android-specific notification configuration
func getAndroidConfig(payload NotificationPayload) *messaging.AndroidConfig {
	channelID := payload.ChannelID
	if channelID == "" {
		channelID = "taxitao_default"
	}

	sound := payload.Sound
	if sound == "" {
		sound = "default"
	}

	icon := payload.Icon
	if icon == "" {
		icon = "ic_stat_logo"
	}

	color := payload.Color
	if color == "" {
		color = "#F5A623" // Taxi Tao brand color
	}

	priority := messaging.PriorityHigh
	if payload.Priority == "normal" {
		priority = messaging.PriorityDefault
	}

	return &messaging.AndroidConfig{
		Priority: "high",
		Notification: &messaging.AndroidNotification{
			Sound:                 sound,
			ChannelID:             channelID,
			Priority:              priority,
			DefaultSound:          sound == "default",
			Icon:                  icon,
			Color:                 color,
			Tag:                   payload.Tag,
			DefaultVibrateTimings: true,
		},
	}
}

// getAPNSConfig returns iOS-specific notification configuration
func getAPNSConfig(payload NotificationPayload) *messaging.APNSConfig {
	sound := payload.Sound
	if sound == "" {
		sound = "default"
	}

	badge := 1
	if payload.BadgeCount != nil {
		badge = *payload.BadgeCount
	}

	return &messaging.APNSConfig{
		Payload: &messaging.APNSPayload{
			Aps: &messaging.Aps{
				Sound:            sound,
				Badge:            &badge,
				MutableContent:   true,
				ContentAvailable: true,
			},
		},
	}
}

func stringifyData(data map[string]interface{}) map[string]string {
	dataStrings := make(map[string]string)
	for key, value := range data {
		// FCM data payloads only carry strings
		switch v := value.(type) {
		case string:
			dataStrings[key] = v
		case int, int64, uint, float64, bool:
			dataStrings[key] = fmt.Sprintf("%v", v)
		default:
			jsonData, err := json.Marshal(v)
			if err != nil {
				log.Printf("Error marshaling data for key %s: %v", key, err)
				continue
			}
			dataStrings[key] = string(jsonData)
		}
	}
	return dataStrings
}

// SendNotificationToToken sends a notification to a specific FCM token
func SendNotificationToToken(ctx context.Context, token string, payload NotificationPayload) error {
	if MessagingClient == nil {
		log.Println("Warning: Firebase not initialized. Skipping notification.")
		return nil
	}

	message := &messaging.Message{
		Notification: &messaging.Notification{
			Title: payload.Title,
			Body:  payload.Body,
		},
		Data:  stringifyData(payload.Data),
		Token: token,
	}

	if payload.Image != "" {
		message.Notification.ImageURL = payload.Image
	}

	message.Android = getAndroidConfig(payload)
	message.APNS = getAPNSConfig(payload)

	response, err := MessagingClient.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("error sending message: %v", err)
	}

	log.Printf("Successfully sent notification to token: %s, response: %s", token, response)
	return nil
}

// SendNotificationToMultipleTokens sends a notification to multiple FCM tokens
func SendNotificationToMultipleTokens(ctx context.Context, tokens []string, payload NotificationPayload) (*messaging.BatchResponse, error) {
	if MessagingClient == nil {
		log.Println("Warning: Firebase not initialized. Skipping notifications.")
		return nil, nil
	}

	if len(tokens) == 0 {
		return nil, fmt.Errorf("no tokens provided")
	}

	message := &messaging.MulticastMessage{
		Notification: &messaging.Notification{
			Title: payload.Title,
			Body:  payload.Body,
		},
		Data:   stringifyData(payload.Data),
		Tokens: tokens,
	}

	if payload.Image != "" {
		message.Notification.ImageURL = payload.Image
	}

	message.Android = getAndroidConfig(payload)
	message.APNS = getAPNSConfig(payload)

	response, err := MessagingClient.SendEachForMulticast(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("error sending multicast message: %v", err)
	}

	log.Printf("Successfully sent %d messages, %d failures", response.SuccessCount, response.FailureCount)

	if response.FailureCount > 0 {
		for idx, resp := range response.Responses {
			if !resp.Success {
				log.Printf("Failed to send to token %s: %v", tokens[idx], resp.Error)
			}
		}
	}

	return response, nil
}

// SendNegotiationOfferNotification notifies a driver that a customer has opened
// a price negotiation on one of their routes
func SendNegotiationOfferNotification(ctx context.Context, driverToken string, negotiationID uint, customerName, fromLocation, toLocation string, offeredPrice float64) error {
	payload := NotificationPayload{
		Title: "New Price Offer",
		Body:  fmt.Sprintf("%s offered KES %.0f for %s to %s", customerName, offeredPrice, fromLocation, toLocation),
		Data: map[string]interface{}{
			"type":           "negotiation_offer",
			"negotiationId":  negotiationID,
			"customerName":   customerName,
			"fromLocation":   fromLocation,
			"toLocation":     toLocation,
			"offeredPrice":   offeredPrice,
			"notificationId": fmt.Sprintf("negotiation_offer_%d", negotiationID),
		},
	}

	return SendNotificationToToken(ctx, driverToken, payload)
}

// SendNegotiationCounterNotification notifies the other party of a counter-offer
func SendNegotiationCounterNotification(ctx context.Context, token string, negotiationID uint, sender string, price float64) error {
	payload := NotificationPayload{
		Title: "Counter Offer",
		Body:  fmt.Sprintf("The %s countered with KES %.0f", sender, price),
		Data: map[string]interface{}{
			"type":           "negotiation_counter",
			"negotiationId":  negotiationID,
			"sender":         sender,
			"price":          price,
			"notificationId": fmt.Sprintf("negotiation_counter_%d_%d", negotiationID, time.Now().Unix()),
		},
	}

	return SendNotificationToToken(ctx, token, payload)
}

// SendNegotiationAcceptedNotification notifies a party that the price was agreed
func SendNegotiationAcceptedNotification(ctx context.Context, token string, negotiationID uint, agreedPrice float64) error {
	payload := NotificationPayload{
		Title: "Offer Accepted!",
		Body:  fmt.Sprintf("Price agreed at KES %.0f. Your booking is confirmed.", agreedPrice),
		Data: map[string]interface{}{
			"type":           "negotiation_accepted",
			"negotiationId":  negotiationID,
			"agreedPrice":    agreedPrice,
			"notificationId": fmt.Sprintf("negotiation_accepted_%d", negotiationID),
		},
	}

	return SendNotificationToToken(ctx, token, payload)
}

// SendNegotiationDeclinedNotification notifies a party that the offer was declined
func SendNegotiationDeclinedNotification(ctx context.Context, token string, negotiationID uint, reason string) error {
	body := "Your offer was declined."
	if reason != "" {
		body = fmt.Sprintf("Your offer was declined: %s", reason)
	}
	payload := NotificationPayload{
		Title: "Offer Declined",
		Body:  body,
		Data: map[string]interface{}{
			"type":           "negotiation_declined",
			"negotiationId":  negotiationID,
			"reason":         reason,
			"notificationId": fmt.Sprintf("negotiation_declined_%d", negotiationID),
		},
	}

	return SendNotificationToToken(ctx, token, payload)
}

// SendBookingConfirmedNotification notifies a party that a booking was created
func SendBookingConfirmedNotification(ctx context.Context, token string, bookingID uint, fromLocation, toLocation string, price float64) error {
	payload := NotificationPayload{
		Title: "Booking Confirmed",
		Body:  fmt.Sprintf("Trip %s to %s confirmed at KES %.0f", fromLocation, toLocation, price),
		Data: map[string]interface{}{
			"type":           "booking_confirmed",
			"bookingId":      bookingID,
			"fromLocation":   fromLocation,
			"toLocation":     toLocation,
			"price":          price,
			"notificationId": fmt.Sprintf("booking_confirmed_%d", bookingID),
		},
	}

	return SendNotificationToToken(ctx, token, payload)
}

// SendBookingCancelledNotification notifies the other party of a cancellation
func SendBookingCancelledNotification(ctx context.Context, token string, bookingID uint, reason string) error {
	body := "A booking was cancelled."
	if reason != "" {
		body = fmt.Sprintf("A booking was cancelled: %s", reason)
	}
	payload := NotificationPayload{
		Title: "Booking Cancelled",
		Body:  body,
		Data: map[string]interface{}{
			"type":           "booking_cancelled",
			"bookingId":      bookingID,
			"reason":         reason,
			"notificationId": fmt.Sprintf("booking_cancelled_%d", bookingID),
		},
	}

	return SendNotificationToToken(ctx, token, payload)
}

// SendRideRequestPostedNotification announces an open ride request to drivers
func SendRideRequestPostedNotification(ctx context.Context, driverTokens []string, requestID uint, fromLocation, toLocation string, offeredPrice float64) (*messaging.BatchResponse, error) {
	payload := NotificationPayload{
		Title: "New Ride Request",
		Body:  fmt.Sprintf("A customer wants %s to %s for KES %.0f", fromLocation, toLocation, offeredPrice),
		Data: map[string]interface{}{
			"type":           "ride_request_posted",
			"rideRequestId":  requestID,
			"fromLocation":   fromLocation,
			"toLocation":     toLocation,
			"offeredPrice":   offeredPrice,
			"notificationId": fmt.Sprintf("ride_request_%d", requestID),
		},
	}

	return SendNotificationToMultipleTokens(ctx, driverTokens, payload)
}

// SendBroadcastNotification sends a broadcast notification to all users
func SendBroadcastNotification(ctx context.Context, tokens []string, title, body, imageURL string, data map[string]interface{}) (*messaging.BatchResponse, error) {
	if data == nil {
		data = make(map[string]interface{})
	}
	data["type"] = "broadcast"
	data["notificationId"] = fmt.Sprintf("broadcast_%d", time.Now().Unix())

	payload := NotificationPayload{
		Title: title,
		Body:  body,
		Image: imageURL,
		Data:  data,
	}

	return SendNotificationToMultipleTokens(ctx, tokens, payload)
}

// SubscribeToTopic subscribes tokens to a topic for targeted messaging
func SubscribeToTopic(ctx context.Context, tokens []string, topic string) error {
	if MessagingClient == nil {
		log.Println("Warning: Firebase not initialized. Skipping topic subscription.")
		return nil
	}

	response, err := MessagingClient.SubscribeToTopic(ctx, tokens, topic)
	if err != nil {
		return fmt.Errorf("error subscribing to topic: %v", err)
	}

	log.Printf("Successfully subscribed %d tokens to topic %s, %d failures", response.SuccessCount, topic, response.FailureCount)
	return nil
}

// UnsubscribeFromTopic unsubscribes tokens from a topic
func UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) error {
	if MessagingClient == nil {
		log.Println("Warning: Firebase not initialized. Skipping topic unsubscription.")
		return nil
	}

	response, err := MessagingClient.UnsubscribeFromTopic(ctx, tokens, topic)
	if err != nil {
		return fmt.Errorf("error unsubscribing from topic: %v", err)
	}

	log.Printf("Successfully unsubscribed %d tokens from topic %s, %d failures", response.SuccessCount, topic, response.FailureCount)
	return nil
}

// SendTopicNotification sends a notification to a topic
func SendTopicNotification(ctx context.Context, topic string, payload NotificationPayload) error {
	if MessagingClient == nil {
		log.Println("Warning: Firebase not initialized. Skipping topic notification.")
		return nil
	}

	message := &messaging.Message{
		Notification: &messaging.Notification{
			Title: payload.Title,
			Body:  payload.Body,
		},
		Data:  stringifyData(payload.Data),
		Topic: topic,
	}

	if payload.Image != "" {
		message.Notification.ImageURL = payload.Image
	}

	message.Android = getAndroidConfig(payload)
	message.APNS = getAPNSConfig(payload)

	response, err := MessagingClient.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("error sending topic message: %v", err)
	}

	log.Printf("Successfully sent notification to topic %s, response: %s", topic, response)
	return nil
}
