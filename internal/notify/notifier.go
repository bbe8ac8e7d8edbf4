package notify

import (
	"context"
	"errors"
	"fmt"
)

var ErrDeliveryFailed = errors.New("email delivery failed")

// Notifier hands a plain-text email to a delivery channel.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Purpose selects the email template for an OTP.
type Purpose string

const (
	PurposeVerification  Purpose = "verification"
	PurposePasswordReset Purpose = "password_reset"
)

// OTPMessage renders the subject and body carrying code for purpose.
func OTPMessage(purpose Purpose, code string) (subject, body string) {
	switch purpose {
	case PurposePasswordReset:
		return "Reset password", fmt.Sprintf(
			"Dear user,\nTo reset your password, use this code: %s\nIf you did not request any password resets, then ignore this email.", code)
	default:
		return "Email Verification", fmt.Sprintf(
			"Dear user,\nTo verify your email, use this OTP: %s\nIf you did not create or reset an account, then ignore this email.", code)
	}
}
