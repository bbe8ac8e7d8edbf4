package models

import (
	"strings"
	"time"

	"identity-service/internal/encryption"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is the authorization level of an account.
type Role string

const (
	RoleSuperAdmin Role = "superAdmin"
	RoleAdmin      Role = "admin"
	RoleUser       Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleUser:
		return true
	}
	return false
}

const (
	MessagingEveryone  = "Everyone"
	MessagingFollowers = "Followers"
	MessagingNoOne     = "No One"
)

// Account is the persisted identity record.
//
// OTP and OTPExpires are either both nil or both set.
type Account struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"_id"`

	FirstName  string  `bson:"firstName" json:"firstName"`
	LastName   string  `bson:"lastName" json:"lastName"`
	ProfileURL *string `bson:"profileUrl" json:"profileUrl"`
	Bio        *string `bson:"bio" json:"bio"`
	Email      string  `bson:"email" json:"email"`
	Role       Role    `bson:"role" json:"role"`

	Phone       string `bson:"phone" json:"phone"`
	PhoneCode   string `bson:"phoneCode" json:"phoneCode"`
	CountryCode string `bson:"countryCode" json:"countryCode"`

	// SealedPhone is the stored ciphertext of Phone as last read or written.
	// Stores reuse it while Phone is unchanged.
	SealedPhone *encryption.EncryptedData `bson:"-" json:"-"`

	// Password holds the bcrypt digest, never the plaintext.
	Password string `bson:"password" json:"-"`

	OTP             *int       `bson:"otp" json:"-"`
	OTPExpires      *time.Time `bson:"otpExpires" json:"-"`
	IsOtpVerified   bool       `bson:"isOtpVerified" json:"isOtpVerified"`
	IsEmailVerified bool       `bson:"isEmailVerified" json:"isEmailVerified"`

	Interests            []string `bson:"intrests" json:"intrests"`
	ReligiousPreferences string   `bson:"religiousPreferences,omitempty" json:"religiousPreferences,omitempty"`
	Followers            int      `bson:"followers" json:"followers"`
	MessagingAccess      string   `bson:"messagingAccess" json:"messagingAccess"`
	AllowToFollow        bool     `bson:"allowToFollow" json:"allowToFollow"`
	ProfileVisibility    bool     `bson:"profileVisibility" json:"profileVisibility"`
	RemainAnonymous      bool     `bson:"remainAnonymous" json:"remainAnonymous"`
	IsActive             bool     `bson:"isActive" json:"isActive"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// NewAccount returns an account carrying the schema defaults: role user,
// open messaging, visible profile, active, nothing verified.
func NewAccount(now time.Time) *Account {
	return &Account{
		Role:              RoleUser,
		MessagingAccess:   MessagingEveryone,
		AllowToFollow:     true,
		ProfileVisibility: true,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// IDHex returns the account id in its wire form.
func (a *Account) IDHex() string {
	return a.ID.Hex()
}

// Username is the display name carried in token payloads.
func (a *Account) Username() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// IsVerified reports whether both verification flags are set, the only
// state in which login is allowed.
func (a *Account) IsVerified() bool {
	return a.IsEmailVerified && a.IsOtpVerified
}

// HasPendingOTP reports whether a one-time code is attached.
func (a *Account) HasPendingOTP() bool {
	return a.OTP != nil || a.OTPExpires != nil
}

// CanResetPassword reports whether the account sits in the state left by a
// successful OTP verification: both flags set and no code attached.
func (a *Account) CanResetPassword() bool {
	return a.IsVerified() && !a.HasPendingOTP()
}

// OTPExpired reports whether an attached code has passed its expiry.
func (a *Account) OTPExpired(now time.Time) bool {
	return a.OTPExpires != nil && now.After(*a.OTPExpires)
}

// AttachOTP sets a fresh code and expiry and demotes both verification
// flags until the code is consumed.
func (a *Account) AttachOTP(code int, expires time.Time) {
	a.OTP = &code
	a.OTPExpires = &expires
	a.IsEmailVerified = false
	a.IsOtpVerified = false
}

// ConsumeOTP clears the code and marks the account verified.
func (a *Account) ConsumeOTP() {
	a.OTP = nil
	a.OTPExpires = nil
	a.IsOtpVerified = true
	a.IsEmailVerified = true
}

// Clone returns a deep copy of a.
func (a *Account) Clone() *Account {
	c := *a
	if a.ProfileURL != nil {
		v := *a.ProfileURL
		c.ProfileURL = &v
	}
	if a.Bio != nil {
		v := *a.Bio
		c.Bio = &v
	}
	if a.OTP != nil {
		v := *a.OTP
		c.OTP = &v
	}
	if a.OTPExpires != nil {
		v := *a.OTPExpires
		c.OTPExpires = &v
	}
	if a.Interests != nil {
		c.Interests = append([]string(nil), a.Interests...)
	}
	return &c
}
