package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"identity-service/internal/models"
	"identity-service/internal/repository"
	"identity-service/internal/token"
	"identity-service/internal/util"
)

// PasswordHasher is satisfied by *hashing.Hasher.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Compare(plaintext, digest string) bool
}

// TokenIssuer is satisfied by *token.Issuer.
type TokenIssuer interface {
	Issue(p token.Payload) (token.TokenPair, error)
	VerifyAccess(tokenString string) (*token.Payload, error)
	VerifyRefresh(tokenString string) (*token.Payload, error)
}

type VerifyReason string

const (
	ReasonNoSuchAccount VerifyReason = "no_such_account"
	ReasonExpired       VerifyReason = "expired"
	ReasonMismatch      VerifyReason = "mismatch"
	ReasonFailed        VerifyReason = "failed"
)

var verifyMessages = map[VerifyReason]string{
	ReasonNoSuchAccount: "User not exist on this email",
	ReasonExpired:       "OTP has expired",
	ReasonMismatch:      "Invalid OTP",
	ReasonFailed:        "Failed to verify OTP",
}

// VerifyResult is the outcome of an OTP check. Failures carry a Reason and
// a user-facing Message; success carries the issued tokens.
type VerifyResult struct {
	Success   bool
	Reason    VerifyReason
	Message   string
	Tokens    *token.TokenPair
	AccountID string
	Email     string
	Role      models.Role
}

// Err returns the error kind matching a failed result, or nil on success.
func (r VerifyResult) Err() error {
	if r.Success {
		return nil
	}
	switch r.Reason {
	case ReasonNoSuchAccount:
		return ErrNotFound
	case ReasonExpired:
		return ErrExpired
	case ReasonMismatch:
		return ErrInvalidCredential
	}
	return ErrStoreUnavailable
}

func failed(reason VerifyReason) VerifyResult {
	return VerifyResult{Reason: reason, Message: verifyMessages[reason]}
}

// CredentialVerifier answers whether presented credentials are valid.
type CredentialVerifier struct {
	repo   repository.AccountRepository
	hasher PasswordHasher
	tokens TokenIssuer
	now    func() time.Time
}

func NewCredentialVerifier(repo repository.AccountRepository, hasher PasswordHasher, tokens TokenIssuer) *CredentialVerifier {
	return &CredentialVerifier{
		repo:   repo,
		hasher: hasher,
		tokens: tokens,
		now:    time.Now,
	}
}

// VerifyOTP consumes the code attached to the account for email. It never
// returns an error; every failure is reported in the result.
func (v *CredentialVerifier) VerifyOTP(ctx context.Context, email, code string) VerifyResult {
	email = util.NormalizeEmail(email)

	account, err := v.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return failed(ReasonNoSuchAccount)
		}
		util.Error("OTP verification lookup failed", zap.Error(err))
		return failed(ReasonFailed)
	}

	now := v.now().UTC()
	if account.OTPExpired(now) {
		return failed(ReasonExpired)
	}

	presented, err := strconv.Atoi(strings.TrimSpace(code))
	if err != nil || account.OTP == nil || *account.OTP != presented {
		return failed(ReasonMismatch)
	}

	consumed, err := v.repo.ConsumeOTP(ctx, account.IDHex(), presented, now)
	if err != nil {
		util.Error("OTP consumption failed",
			zap.String("account_id", account.IDHex()),
			zap.Error(err))
		return failed(ReasonFailed)
	}
	if !consumed {
		// Another request consumed or replaced the code first.
		return failed(ReasonMismatch)
	}

	tokens, err := v.tokens.Issue(payloadFor(account))
	if err != nil {
		util.Error("Token issuance failed after OTP verification",
			zap.String("account_id", account.IDHex()),
			zap.Error(err))
		return failed(ReasonFailed)
	}

	util.Info("OTP verified", zap.String("account_id", account.IDHex()))

	return VerifyResult{
		Success:   true,
		Tokens:    &tokens,
		AccountID: account.IDHex(),
		Email:     account.Email,
		Role:      account.Role,
	}
}

// VerifyPassword compares plaintext against the stored digest.
func (v *CredentialVerifier) VerifyPassword(account *models.Account, plaintext string) bool {
	if account == nil || account.Password == "" {
		return false
	}
	return v.hasher.Compare(plaintext, account.Password)
}

// CheckRole reports whether the account holds one of roles.
func (v *CredentialVerifier) CheckRole(ctx context.Context, accountID string, roles ...models.Role) (bool, error) {
	account, err := v.repo.FindByID(ctx, accountID)
	if err != nil {
		return false, storeError(err)
	}
	for _, r := range roles {
		if account.Role == r {
			return true, nil
		}
	}
	return false, nil
}

func payloadFor(a *models.Account) token.Payload {
	return token.Payload{
		ID:       a.IDHex(),
		Role:     string(a.Role),
		Email:    a.Email,
		Username: a.Username(),
	}
}
