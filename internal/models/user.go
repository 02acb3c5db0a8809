package models

import (
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserType string

const (
	UserTypeCustomer UserType = "customer"
	UserTypeDriver   UserType = "driver"
	UserTypeAdmin    UserType = "admin"
)

// Subscription states for drivers. Only "active" drivers surface in matching.
const (
	SubscriptionActive   = "active"
	SubscriptionTrial    = "trial"
	SubscriptionInactive = "inactive"
)

type User struct {
	gorm.Model
	Username     string   `json:"username" gorm:"column:username;unique;not null"`
	Email        string   `json:"email" gorm:"column:email;unique;not null"`
	Password     string   `json:"-" gorm:"-:migration"` // Temporary field for password handling
	PasswordHash string   `json:"-" gorm:"column:password_hash;not null"`
	PhoneNumber  string   `json:"phoneNumber" gorm:"column:phone_number"`
	UserType     UserType `json:"userType" gorm:"column:user_type;not null;default:'customer'"`
	IsVerified   bool     `json:"isVerified" gorm:"column:is_verified;not null;default:false"`
	FCMToken     string   `json:"-" gorm:"column:fcm_token"`

	// Driver profile. Zero values for customers and admins.
	Rating             float64 `json:"rating" gorm:"not null;default:0"`
	RatingCount        int     `json:"ratingCount" gorm:"not null;default:0"`
	TotalRides         int     `json:"totalRides" gorm:"not null;default:0"`
	VehicleMake        string  `json:"vehicleMake"`
	VehicleModel       string  `json:"vehicleModel"`
	VehiclePlate       string  `json:"vehiclePlate"`
	VehicleColor       string  `json:"vehicleColor"`
	ProfilePhotoURL    string  `json:"profilePhotoUrl"`
	Active             bool    `json:"active" gorm:"not null;default:true"`
	SubscriptionStatus string  `json:"subscriptionStatus" gorm:"not null;default:'trial'"`
	IsVisibleToPublic  bool    `json:"isVisibleToPublic" gorm:"not null;default:false"`
}

// TableName specifies the table name
func (User) TableName() string {
	return "users"
}

func (u *User) HashPassword() error {
	if u.Password == "" {
		return nil
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}

// IsEligibleDriver reports whether the driver may appear in public matching results.
func (u *User) IsEligibleDriver() bool {
	return u.UserType == UserTypeDriver &&
		u.Active &&
		u.SubscriptionStatus == SubscriptionActive &&
		u.IsVisibleToPublic
}
