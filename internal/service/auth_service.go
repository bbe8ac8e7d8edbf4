package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"identity-service/internal/models"
	"identity-service/internal/notify"
	"identity-service/internal/repository"
	"identity-service/internal/token"
	"identity-service/internal/util"
)

// AuthService runs the registration, login and credential rotation flows.
type AuthService struct {
	repo              repository.AccountRepository
	hasher            PasswordHasher
	verifier          *CredentialVerifier
	otpIssuer         *OTPIssuer
	tokens            TokenIssuer
	allowRoleOnSignup bool
	now               func() time.Time
}

type RegisterResult struct {
	Account    *models.Account
	OTPExpires time.Time
}

type LoginResult struct {
	Tokens token.TokenPair `json:"tokens"`
	Role   models.Role     `json:"role"`
	User   *models.Account `json:"user"`
}

func NewAuthService(
	repo repository.AccountRepository,
	hasher PasswordHasher,
	verifier *CredentialVerifier,
	otpIssuer *OTPIssuer,
	tokens TokenIssuer,
	allowRoleOnSignup bool,
) *AuthService {
	return &AuthService{
		repo:              repo,
		hasher:            hasher,
		verifier:          verifier,
		otpIssuer:         otpIssuer,
		tokens:            tokens,
		allowRoleOnSignup: allowRoleOnSignup,
		now:               time.Now,
	}
}

// Register creates an unverified account with a verification code attached
// and emails the code.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	in.normalize()
	if err := validateRegister(&in); err != nil {
		return nil, err
	}

	if _, err := s.repo.FindByEmail(ctx, in.Email); err == nil {
		return nil, ErrAlreadyExists
	} else if !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, err
	}

	account, err := s.buildAccount(in)
	if err != nil {
		return nil, err
	}

	code, expires, err := s.otpIssuer.Attach(account)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, account); err != nil {
		return nil, storeError(err)
	}

	s.otpIssuer.Dispatch(account.Email, notify.PurposeVerification, code)

	util.Info("Account registered",
		zap.String("account_id", account.IDHex()),
		zap.String("role", string(account.Role)))

	return &RegisterResult{Account: account, OTPExpires: expires}, nil
}

func (s *AuthService) buildAccount(in RegisterInput) (*models.Account, error) {
	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	account := models.NewAccount(s.now().UTC())
	account.FirstName = in.FirstName
	account.LastName = in.LastName
	account.Email = in.Email
	account.Phone = in.Phone
	account.PhoneCode = in.PhoneCode
	account.CountryCode = in.CountryCode
	account.Password = digest
	if in.ProfileURL != nil && *in.ProfileURL != "" {
		account.ProfileURL = in.ProfileURL
	}
	if in.Bio != nil {
		bio := util.SanitizeInput(*in.Bio)
		account.Bio = &bio
	}
	if s.allowRoleOnSignup && in.Role != "" {
		account.Role = models.Role(in.Role)
	}

	account.Interests = in.Interests
	account.ReligiousPreferences = strings.TrimSpace(in.ReligiousPreferences)
	if in.MessagingAccess != "" {
		account.MessagingAccess = in.MessagingAccess
	}
	if in.AllowToFollow != nil {
		account.AllowToFollow = *in.AllowToFollow
	}
	if in.ProfileVisibility != nil {
		account.ProfileVisibility = *in.ProfileVisibility
	}
	if in.RemainAnonymous != nil {
		account.RemainAnonymous = *in.RemainAnonymous
	}
	return account, nil
}

// Login checks verification before the password, so an unverified account
// is refused whatever password is presented.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	account, err := s.repo.FindByEmail(ctx, util.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrInvalidCredential
		}
		return nil, err
	}

	if !account.IsVerified() {
		return nil, ErrUnverified
	}

	if !s.verifier.VerifyPassword(account, password) {
		util.Warn("Login rejected", zap.String("account_id", account.IDHex()))
		return nil, ErrInvalidCredential
	}

	tokens, err := s.tokens.Issue(payloadFor(account))
	if err != nil {
		return nil, err
	}

	util.Info("Login succeeded", zap.String("account_id", account.IDHex()))
	return &LoginResult{Tokens: tokens, Role: account.Role, User: account}, nil
}

func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) VerifyResult {
	return s.verifier.VerifyOTP(ctx, email, code)
}

// ResendOTP issues a new verification code, demoting the account until it
// is verified again.
func (s *AuthService) ResendOTP(ctx context.Context, email string) (time.Time, error) {
	_, expires, err := s.otpIssuer.Issue(ctx, util.NormalizeEmail(email), notify.PurposeVerification)
	if err != nil {
		return time.Time{}, err
	}
	return expires, nil
}

// ForgotPassword issues a password reset code.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (time.Time, error) {
	_, expires, err := s.otpIssuer.Issue(ctx, util.NormalizeEmail(email), notify.PurposePasswordReset)
	if err != nil {
		return time.Time{}, err
	}
	return expires, nil
}

// ResetPassword only succeeds while the account is in the state a completed
// OTP verification leaves behind: both flags set and no code attached.
func (s *AuthService) ResetPassword(ctx context.Context, email, newPassword string) error {
	account, err := s.repo.FindByEmail(ctx, util.NormalizeEmail(email))
	if err != nil {
		return storeError(err)
	}

	if !account.CanResetPassword() {
		return ErrPreconditionFailed
	}

	if err := validatePassword(newPassword); err != nil {
		return err
	}

	if err := s.setPassword(ctx, account, newPassword); err != nil {
		return err
	}

	util.Info("Password reset", zap.String("account_id", account.IDHex()))
	return nil
}

// ChangePassword rotates the password of an authenticated account.
func (s *AuthService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	if accountID == "" {
		return ErrNotFound
	}
	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		return storeError(err)
	}

	if !s.verifier.VerifyPassword(account, currentPassword) {
		return fmt.Errorf("%w: incorrect current password", ErrInvalidCredential)
	}

	if err := validatePassword(newPassword); err != nil {
		return err
	}

	if err := s.setPassword(ctx, account, newPassword); err != nil {
		return err
	}

	util.Info("Password changed", zap.String("account_id", account.IDHex()))
	return nil
}

func (s *AuthService) setPassword(ctx context.Context, account *models.Account, plaintext string) error {
	digest, err := s.hasher.Hash(plaintext)
	if err != nil {
		return err
	}
	account.Password = digest
	if err := s.repo.Save(ctx, account); err != nil {
		return storeError(err)
	}
	return nil
}

// RefreshTokens exchanges a valid refresh token for a new pair, reloading
// the account so role changes take effect.
func (s *AuthService) RefreshTokens(ctx context.Context, refreshToken string) (token.TokenPair, error) {
	payload, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return token.TokenPair{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	account, err := s.repo.FindByID(ctx, payload.ID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return token.TokenPair{}, ErrInvalidCredential
		}
		return token.TokenPair{}, err
	}

	return s.tokens.Issue(payloadFor(account))
}

// Authenticate resolves an access token to its payload.
func (s *AuthService) Authenticate(accessToken string) (*token.Payload, error) {
	payload, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	return payload, nil
}

func (s *AuthService) CheckRole(ctx context.Context, accountID string, roles ...models.Role) (bool, error) {
	return s.verifier.CheckRole(ctx, accountID, roles...)
}
