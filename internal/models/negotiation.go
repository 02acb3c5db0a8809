package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type NegotiationStatus string

const (
	NegotiationStatusPending  NegotiationStatus = "pending"
	NegotiationStatusAccepted NegotiationStatus = "accepted"
	NegotiationStatusDeclined NegotiationStatus = "declined"
	NegotiationStatusExpired  NegotiationStatus = "expired"
)

// Terminal reports whether the status permits no further transitions.
func (s NegotiationStatus) Terminal() bool {
	return s == NegotiationStatusAccepted || s == NegotiationStatusDeclined || s == NegotiationStatusExpired
}

type NegotiationSender string

const (
	SenderCustomer NegotiationSender = "customer"
	SenderDriver   NegotiationSender = "driver"
	SenderSystem   NegotiationSender = "system"
)

type NegotiationMessageType string

const (
	MessageTypeOffer   NegotiationMessageType = "offer"
	MessageTypeCounter NegotiationMessageType = "counter"
	MessageTypeAccept  NegotiationMessageType = "accept"
	MessageTypeDecline NegotiationMessageType = "decline"
	MessageTypeExpire  NegotiationMessageType = "expire"
)

// NegotiationMessage is one entry in a negotiation's append-only message thread.
type NegotiationMessage struct {
	Sender    NegotiationSender      `json:"sender"`
	Type      NegotiationMessageType `json:"type"`
	Price     *float64               `json:"price,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// NegotiationMessages is stored as a single JSONB column.
type NegotiationMessages []NegotiationMessage

func (m NegotiationMessages) Value() (driver.Value, error) {
	if m == nil {
		m = NegotiationMessages{}
	}
	return json.Marshal(m)
}

func (m *NegotiationMessages) Scan(value interface{}) error {
	if value == nil {
		*m = NegotiationMessages{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported type for negotiation messages: %T", value)
	}
}

// Negotiation is one price-discussion session between a customer and a driver.
// CustomerID is NULL for guest customers; the contact fields are always populated.
type Negotiation struct {
	gorm.Model
	BookingRequestID *uint               `json:"bookingRequestId,omitempty"`
	CustomerID       *uint               `json:"customerId,omitempty"`
	CustomerName     string              `json:"customerName" gorm:"not null"`
	CustomerPhone    string              `json:"customerPhone" gorm:"not null"`
	DriverID         uint                `json:"driverId" gorm:"not null;index"`
	FromLocation     string              `json:"fromLocation" gorm:"not null"`
	ToLocation       string              `json:"toLocation" gorm:"not null"`
	OriginalPrice    float64             `json:"originalPrice" gorm:"not null"`
	CurrentOffer     float64             `json:"currentOffer" gorm:"not null"`
	Status           NegotiationStatus   `json:"status" gorm:"not null;default:'pending';index"`
	Messages         NegotiationMessages `json:"messages" gorm:"type:jsonb;not null;default:'[]'"`
	Version          int                 `json:"-" gorm:"not null;default:0"`
	Driver           *User               `json:"driver,omitempty" gorm:"foreignKey:DriverID"`
	Customer         *User               `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
}

// TableName specifies the table name
func (Negotiation) TableName() string {
	return "negotiations"
}

// LastOffer returns the price carried by the most recent offer or counter message.
func (n *Negotiation) LastOffer() (float64, bool) {
	for i := len(n.Messages) - 1; i >= 0; i-- {
		msg := n.Messages[i]
		if msg.Type == MessageTypeOffer || msg.Type == MessageTypeCounter {
			if msg.Price != nil {
				return *msg.Price, true
			}
		}
	}
	return 0, false
}
