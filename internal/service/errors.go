package service

import (
	"errors"

	"identity-service/internal/notify"
	"identity-service/internal/repository"
)

var (
	ErrAlreadyExists      = errors.New("email already in use")
	ErrNotFound           = errors.New("account not found")
	ErrInvalidCredential  = errors.New("invalid email or password")
	ErrExpired            = errors.New("otp has expired")
	ErrUnverified         = errors.New("account is not verified")
	ErrPreconditionFailed = errors.New("verification step not completed")
	ErrInvalidInput       = errors.New("invalid input")
	ErrForbidden          = errors.New("permission denied")
	ErrOTPIssueInProgress = errors.New("otp issuance already in progress")

	ErrStoreUnavailable = repository.ErrStoreUnavailable
	ErrDeliveryFailed   = notify.ErrDeliveryFailed
)

// storeError maps repository errors onto service errors, leaving anything
// unknown wrapped as is.
func storeError(err error) error {
	switch {
	case errors.Is(err, repository.ErrAccountNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrDuplicateEmail):
		return ErrAlreadyExists
	}
	return err
}
