package utils

import (
	"fmt"
	"log"
	"net/smtp"
	"os"
	"strings"
)

var (
	emailFrom     = os.Getenv("EMAIL_FROM")
	emailPassword = os.Getenv("EMAIL_PASSWORD")
	smtpHost      = os.Getenv("SMTP_HOST")
	smtpPort      = os.Getenv("SMTP_PORT")
	companyName   = "Taxi Tao"
	baseURL       = os.Getenv("BASE_URL")
)

// Common header template for all emails
const emailHeader = `
<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; margin: 0; padding: 0;">
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		<div style="text-align: center; margin-bottom: 30px; background-color: #f9f9f9; padding: 20px;">
			<h2 style="color: #F5A623; margin: 0;">Taxi Tao</h2>
		</div>
`

// Common footer template for all emails
const emailFooter = `
		<div style="text-align: center; margin-top: 20px; font-size: 12px; color: #666; border-top: 1px solid #eee; padding-top: 20px;">
			<p>This is an automated message, please do not reply to this email.</p>
			<p>© 2026 Taxi Tao. All rights reserved.</p>
		</div>
	</div>
</body>
</html>
`

func sendEmail(to []string, subject, body string) error {
	if emailFrom == "" || emailPassword == "" || smtpHost == "" || smtpPort == "" {
		return fmt.Errorf("email configuration not set")
	}

	// Headers
	headers := make(map[string]string)
	headers["From"] = fmt.Sprintf("%s <%s>", companyName, emailFrom)
	headers["To"] = strings.Join(to, ",")
	headers["Subject"] = subject
	headers["MIME-Version"] = "1.0"
	headers["Content-Type"] = "text/html; charset=UTF-8"
	headers["X-Mailer"] = "TaxiTao-Mailer"
	headers["List-Unsubscribe"] = fmt.Sprintf("<%s>", emailFrom)

	// Build message
	message := ""
	for key, value := range headers {
		message += fmt.Sprintf("%s: %s\r\n", key, value)
	}
	message += "\r\n" + body

	// Authentication
	auth := smtp.PlainAuth("", emailFrom, emailPassword, smtpHost)

	// Send email
	err := smtp.SendMail(smtpHost+":"+smtpPort, auth, emailFrom, to, []byte(message))
	if err != nil {
		log.Printf("Failed to send email: %v", err)
		return err
	}

	log.Printf("Successfully sent email to recipients: %v", to)
	return nil
}

func SendNegotiationOfferEmail(driverEmail, customerName, fromLocation, toLocation string, offeredPrice float64) error {
	subject := "New Price Offer - Taxi Tao"
	body := fmt.Sprintf(emailHeader+`
				<div style="background-color: #f9f9f9; padding: 20px; border-radius: 5px;">
					<h1 style="color: #2c3e50; text-align: center;">New Price Offer</h1>
					<p>Hello,</p>
					<p><strong>%s</strong> offered <strong>KES %.0f</strong> for your route <strong>%s</strong> to <strong>%s</strong>.</p>
					<p>Please log in to your Taxi Tao account to accept, decline, or counter this offer.</p>
					<div style="text-align: center; margin: 30px 0;">
						<a href="%s/login" style="background-color: #F5A623; color: white; padding: 12px 25px; text-decoration: none; border-radius: 5px;">Respond to Offer</a>
					</div>
					<p>Best regards,<br>The Taxi Tao Team</p>
				</div>`+emailFooter,
		customerName, offeredPrice, fromLocation, toLocation, baseURL)

	return sendEmail([]string{driverEmail}, subject, body)
}

func SendBookingConfirmedEmail(email, driverName, carPlate, fromLocation, toLocation string, price float64) error {
	subject := "Booking Confirmed - Taxi Tao"
	body := fmt.Sprintf(emailHeader+`
				<div style="background-color: #f9f9f9; padding: 20px; border-radius: 5px;">
					<h1 style="color: #2c3e50; text-align: center;">Booking Confirmed</h1>
					<p>Hello,</p>
					<p>Your trip from <strong>%s</strong> to <strong>%s</strong> is confirmed with driver <strong>%s</strong> (Car: <strong>%s</strong>) at <strong>KES %.0f</strong>.</p>
					<div style="text-align: center; margin: 30px 0;">
						<a href="%s/bookings" style="background-color: #F5A623; color: white; padding: 12px 25px; text-decoration: none; border-radius: 5px;">View Booking</a>
					</div>
					<p>Best regards,<br>The Taxi Tao Team</p>
				</div>`+emailFooter,
		fromLocation, toLocation, driverName, carPlate, price, baseURL)

	return sendEmail([]string{email}, subject, body)
}

func SendBookingCancelledEmail(email string) error {
	subject := "Booking Cancelled - Taxi Tao"
	body := fmt.Sprintf(emailHeader+`
				<div style="background-color: #f9f9f9; padding: 20px; border-radius: 5px;">
					<h1 style="color: #2c3e50; text-align: center;">Booking Cancelled</h1>
					<p>Hello,</p>
					<p>Your booking has been cancelled.</p>
					<p>You can search for another driver on Taxi Tao at any time.</p>
					<div style="text-align: center; margin: 30px 0;">
						<a href="%s" style="background-color: #F5A623; color: white; padding: 12px 25px; text-decoration: none; border-radius: 5px;">Find Another Driver</a>
					</div>
					<p>Best regards,<br>The Taxi Tao Team</p>
				</div>`+emailFooter,
		baseURL)
	return sendEmail([]string{email}, subject, body)
}

func SendPasswordResetEmail(email, otp string) error {
	subject := "Password Reset Code - Taxi Tao"
	body := fmt.Sprintf(emailHeader+`
				<div style="background-color: #f9f9f9; padding: 20px; border-radius: 5px;">
					<h1 style="color: #2c3e50; text-align: center;">Password Reset</h1>
					<p>Hello,</p>
					<p>Use the code below to reset your Taxi Tao password. It expires in 15 minutes.</p>
					<div style="text-align: center; margin: 30px 0;">
						<span style="font-size: 32px; letter-spacing: 8px; font-weight: bold; color: #2c3e50;">%s</span>
					</div>
					<p>If you did not request this, you can safely ignore this email.</p>
					<p>Best regards,<br>The Taxi Tao Team</p>
				</div>`+emailFooter,
		otp)
	return sendEmail([]string{email}, subject, body)
}

func SendVerificationEmail(email, otp string) error {
	subject := "Verify Your Email - Taxi Tao"
	body := fmt.Sprintf(emailHeader+`
				<div style="background-color: #f9f9f9; padding: 20px; border-radius: 5px;">
					<h1 style="color: #2c3e50; text-align: center;">Verify Your Email</h1>
					<p>Hello,</p>
					<p>Use the code below to verify your email address. It expires in 15 minutes.</p>
					<div style="text-align: center; margin: 30px 0;">
						<span style="font-size: 32px; letter-spacing: 8px; font-weight: bold; color: #2c3e50;">%s</span>
					</div>
					<p>Best regards,<br>The Taxi Tao Team</p>
				</div>`+emailFooter,
		otp)
	return sendEmail([]string{email}, subject, body)
}
