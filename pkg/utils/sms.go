package utils

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
)

var (
	username = os.Getenv("AT_USERNAME")
	apiKey   = os.Getenv("AT_API_KEY")
)

func sendSMS(message string, recipients []string) error {
	log.Printf("Attempting to send SMS. Username: %s, APIKey length: %d", username, len(apiKey))

	if username == "" {
		return fmt.Errorf("africa's talking username not set")
	}

	if apiKey == "" {
		return fmt.Errorf("africa's talking API key not set")
	}

	baseURL := "https://api.africastalking.com/version1/messaging"
	log.Printf("Sending SMS to recipients: %v", recipients)

	// Prepare the form data
	data := url.Values{}
	data.Set("username", username)
	data.Set("to", strings.Join(recipients, ","))
	data.Set("message", message)

	// Create the request
	req, err := http.NewRequest("POST", baseURL, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}

	// Set headers
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("apiKey", apiKey)
	req.Header.Set("Accept", "application/json")

	// Send the request
	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %v", err)
	}
	defer resp.Body.Close()

	// Check response status
	log.Printf("Received response with status code: %d", resp.StatusCode)
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to send SMS: status code %d", resp.StatusCode)
	}

	log.Printf("Successfully sent SMS to recipients")
	return nil
}

// SendNegotiationOfferSMS alerts a driver that a customer opened a price negotiation.
// Guests have no app account, so SMS is the driver's reliable fallback channel.
func SendNegotiationOfferSMS(driverPhone, customerName, fromLocation, toLocation string, offeredPrice float64) error {
	msg := fmt.Sprintf("%s offered KES %.0f for your route %s to %s. Log in to Taxi Tao to respond.",
		customerName, offeredPrice, fromLocation, toLocation)

	return sendSMS(msg, []string{driverPhone})
}

// SendNegotiationAcceptedSMS confirms the agreed price to the customer's phone.
// This is the only channel guest customers can be reached on.
func SendNegotiationAcceptedSMS(customerPhone, driverName, carPlate string, agreedPrice float64) error {
	msg := fmt.Sprintf("Price agreed at KES %.0f with driver %s (Car: %s). Your Taxi Tao booking is confirmed.",
		agreedPrice, driverName, carPlate)

	return sendSMS(msg, []string{customerPhone})
}

// SendNegotiationAcceptedDriverSMS confirms the agreed fare to the driver and hands
// over the customer's contact so the trip can be arranged.
func SendNegotiationAcceptedDriverSMS(driverPhone, customerName, customerPhone string, agreedPrice float64) error {
	msg := fmt.Sprintf("Price agreed at KES %.0f with %s (%s). The booking is confirmed on Taxi Tao.",
		agreedPrice, customerName, customerPhone)

	return sendSMS(msg, []string{driverPhone})
}

// SendNegotiationDeclinedSMS tells the customer the driver declined their offer.
func SendNegotiationDeclinedSMS(customerPhone, reason string) error {
	msg := "Your offer was declined by the driver. Please try another driver on Taxi Tao."
	if reason != "" {
		msg = fmt.Sprintf("Your offer was declined by the driver: %s. Please try another driver on Taxi Tao.", reason)
	}
	return sendSMS(msg, []string{customerPhone})
}

// SendBookingConfirmedSMS notifies both parties of a direct booking.
func SendBookingConfirmedSMS(customerPhone, driverPhone, driverName, carPlate, fromLocation, toLocation string, price float64) error {
	customerMsg := fmt.Sprintf("Your trip %s to %s is booked with %s (Car: %s) at KES %.0f.",
		fromLocation, toLocation, driverName, carPlate, price)
	driverMsg := fmt.Sprintf("New booking: %s to %s at KES %.0f. Log in to Taxi Tao for details.",
		fromLocation, toLocation, price)

	if err := sendSMS(customerMsg, []string{customerPhone}); err != nil {
		return fmt.Errorf("failed to send SMS to customer: %v", err)
	}
	if err := sendSMS(driverMsg, []string{driverPhone}); err != nil {
		return fmt.Errorf("failed to send SMS to driver: %v", err)
	}

	return nil
}

// SendBookingCancelledSMS notifies the other party of a cancellation.
func SendBookingCancelledSMS(phone string) error {
	msg := "Your Taxi Tao booking has been cancelled. Please check the app for details."
	return sendSMS(msg, []string{phone})
}

// SendPasswordResetSMS sends the password reset code.
func SendPasswordResetSMS(phone, otp string) error {
	msg := fmt.Sprintf("Your Taxi Tao password reset code is %s. It expires in 15 minutes.", otp)
	return sendSMS(msg, []string{phone})
}
