package service

import (
	"context"
	"time"

	"identity-service/internal/notify"
	"identity-service/internal/repository"
	"identity-service/internal/util"

	"go.uber.org/zap"
)

// ServiceFactory wires the services over shared collaborators. Every
// accessor returns the same instance on each call.
type ServiceFactory struct {
	accountRepo repository.AccountRepository
	hasher      PasswordHasher
	tokens      TokenIssuer
	otpIssuer   *OTPIssuer

	allowRoleOnSignup bool

	verifier    *CredentialVerifier
	authService *AuthService
	userService *UserService
}

type ServiceOptions struct {
	Notifier          notify.Notifier
	Locker            IssueLocker
	OTP               OTPSettings
	AllowRoleOnSignup bool
}

type OTPSettings struct {
	TTL         time.Duration
	SendTimeout time.Duration
}

func NewServiceFactory(
	accountRepo repository.AccountRepository,
	hasher PasswordHasher,
	tokens TokenIssuer,
	opts ServiceOptions,
) *ServiceFactory {
	return &ServiceFactory{
		accountRepo:       accountRepo,
		hasher:            hasher,
		tokens:            tokens,
		otpIssuer:         NewOTPIssuer(accountRepo, opts.Notifier, opts.Locker, opts.OTP.TTL, opts.OTP.SendTimeout),
		allowRoleOnSignup: opts.AllowRoleOnSignup,
	}
}

func (f *ServiceFactory) CredentialVerifier() *CredentialVerifier {
	if f.verifier == nil {
		f.verifier = NewCredentialVerifier(f.accountRepo, f.hasher, f.tokens)
	}
	return f.verifier
}

func (f *ServiceFactory) OTPIssuer() *OTPIssuer {
	return f.otpIssuer
}

func (f *ServiceFactory) AuthService() *AuthService {
	if f.authService == nil {
		f.authService = NewAuthService(
			f.accountRepo,
			f.hasher,
			f.CredentialVerifier(),
			f.otpIssuer,
			f.tokens,
			f.allowRoleOnSignup,
		)
	}
	return f.authService
}

func (f *ServiceFactory) UserService() *UserService {
	if f.userService == nil {
		f.userService = NewUserService(f.accountRepo, f.hasher)
	}
	return f.userService
}

// Cleanup waits for queued OTP emails until ctx expires. Emails issued
// after Cleanup starts are sent synchronously.
func (f *ServiceFactory) Cleanup(ctx context.Context) {
	if err := f.otpIssuer.Shutdown(ctx); err != nil {
		util.Warn("Pending OTP emails abandoned on shutdown", zap.Error(err))
	}
}
