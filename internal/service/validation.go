package service

import (
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"unicode/utf8"

	"identity-service/internal/models"
	"identity-service/internal/util"
)

// RegisterInput is the self-service signup payload.
type RegisterInput struct {
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	ProfileURL  *string `json:"profileUrl,omitempty"`
	Bio         *string `json:"bio,omitempty"`
	Email       string  `json:"email"`
	Role        string  `json:"role,omitempty"`
	Phone       string  `json:"phone"`
	PhoneCode   string  `json:"phoneCode"`
	CountryCode string  `json:"countryCode"`
	Password    string  `json:"password"`

	Interests            []string `json:"intrests,omitempty"`
	ReligiousPreferences string   `json:"religiousPreferences,omitempty"`
	MessagingAccess      string   `json:"messagingAccess,omitempty"`
	AllowToFollow        *bool    `json:"allowToFollow,omitempty"`
	ProfileVisibility    *bool    `json:"profileVisibility,omitempty"`
	RemainAnonymous      *bool    `json:"remainAnonymous,omitempty"`
}

const passwordSpecials = "@$!%*?&"

func (in *RegisterInput) normalize() {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = util.NormalizeEmail(in.Email)
	in.Role = strings.TrimSpace(in.Role)
	in.Phone = strings.TrimSpace(in.Phone)
	in.PhoneCode = strings.TrimSpace(in.PhoneCode)
	in.CountryCode = strings.TrimSpace(in.CountryCode)
	if in.ProfileURL != nil {
		v := strings.TrimSpace(*in.ProfileURL)
		in.ProfileURL = &v
	}
}

func validateRegister(in *RegisterInput) error {
	if err := validateName("FirstName", in.FirstName); err != nil {
		return err
	}
	if err := validateName("LastName", in.LastName); err != nil {
		return err
	}
	if in.ProfileURL != nil && *in.ProfileURL != "" && !isURL(*in.ProfileURL) {
		return invalid("Profile URL must be a valid URL.")
	}
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	if in.Role != "" && !models.Role(in.Role).Valid() {
		return invalid(`Role must be one of "superAdmin", "admin" or "user"`)
	}
	if in.Phone == "" {
		return invalid("Phone is required")
	}
	if in.PhoneCode == "" {
		return invalid("Phone code is required")
	}
	if in.CountryCode == "" {
		return invalid("Country code is required")
	}
	switch in.MessagingAccess {
	case "", models.MessagingEveryone, models.MessagingFollowers, models.MessagingNoOne:
	default:
		return invalid("Messaging access must be one of \"Everyone\", \"Followers\" or \"No One\"")
	}
	return validatePassword(in.Password)
}

func validateName(field, v string) error {
	n := utf8.RuneCountInString(v)
	switch {
	case n == 0:
		return invalid(field + " is required")
	case n < 3:
		return invalid(field + " should have a minimum length of 3")
	case n > 30:
		return invalid(field + " should have a maximum length of 30")
	case util.ContainsSuspicious(v):
		return invalid(field + " contains invalid characters")
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return invalid("Email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return invalid("Email must be a valid email address")
	}
	return nil
}

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

// validatePassword requires 8 to 72 characters drawn from letters, digits
// and @$!%*?&, with at least one of each class.
func validatePassword(pw string) error {
	const msg = "Password must have at least 8 characters, including uppercase, lowercase, number, and special character"
	if pw == "" {
		return invalid("Password is required")
	}
	if len(pw) < 8 {
		return invalid(msg)
	}
	if len(pw) > maxPasswordBytes {
		return invalid("Password must be at most 72 characters")
	}
	var upper, lower, digit, special bool
	for _, c := range pw {
		switch {
		case c >= 'A' && c <= 'Z':
			upper = true
		case c >= 'a' && c <= 'z':
			lower = true
		case c >= '0' && c <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, c):
			special = true
		default:
			return invalid(msg)
		}
	}
	if !upper || !lower || !digit || !special {
		return invalid(msg)
	}
	return nil
}

func isURL(s string) bool {
	u, err := url.ParseRequestURI(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
