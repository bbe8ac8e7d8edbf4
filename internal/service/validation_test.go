package service

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		pw string
		ok bool
	}{
		{"Abc12345!", true},
		{"Zz9@Zz9@", true},
		{"", false},
		{"Ab1!", false},
		{"abc12345!", false},
		{"ABC12345!", false},
		{"Abcdefgh!", false},
		{"Abc123456", false},
		{"Abc12345#", false},
		{"Abc 12345!", false},
		{"Abc1!" + strings.Repeat("a", 67), true},
		{"Abc1!" + strings.Repeat("a", 68), false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("len%d_%.12s", len(tt.pw), tt.pw), func(t *testing.T) {
			err := validatePassword(tt.pw)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidInput)
			}
		})
	}
}

func TestValidateRegister(t *testing.T) {
	badURL := "not a url"
	goodURL := "https://example.com/me.png"

	tests := []struct {
		name   string
		mutate func(in *RegisterInput)
		msg    string
	}{
		{"valid", func(in *RegisterInput) {}, ""},
		{"valid profile url", func(in *RegisterInput) { in.ProfileURL = &goodURL }, ""},
		{"short first name", func(in *RegisterInput) { in.FirstName = "Al" }, "FirstName should have a minimum length of 3"},
		{"long last name", func(in *RegisterInput) { in.LastName = strings.Repeat("x", 31) }, "LastName should have a maximum length of 30"},
		{"markup in name", func(in *RegisterInput) { in.FirstName = "<script>" }, "FirstName contains invalid characters"},
		{"bad url", func(in *RegisterInput) { in.ProfileURL = &badURL }, "Profile URL must be a valid URL."},
		{"missing email", func(in *RegisterInput) { in.Email = "" }, "Email is required"},
		{"bad email", func(in *RegisterInput) { in.Email = "a@x" }, "Email must be a valid email address"},
		{"display name email", func(in *RegisterInput) { in.Email = "Ada <a@x.com>" }, "Email must be a valid email address"},
		{"unknown role", func(in *RegisterInput) { in.Role = "root" }, "Role must be one of"},
		{"missing phone", func(in *RegisterInput) { in.Phone = "" }, "Phone is required"},
		{"missing phone code", func(in *RegisterInput) { in.PhoneCode = "" }, "Phone code is required"},
		{"missing country code", func(in *RegisterInput) { in.CountryCode = "" }, "Country code is required"},
		{"bad messaging access", func(in *RegisterInput) { in.MessagingAccess = "Friends" }, "Messaging access"},
		{"weak password", func(in *RegisterInput) { in.Password = "password" }, "Password must have at least 8 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := registerInput("a@x.com")
			tt.mutate(&in)
			in.normalize()
			err := validateRegister(&in)
			if tt.msg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
