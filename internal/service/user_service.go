package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"identity-service/internal/models"
	"identity-service/internal/repository"
	"identity-service/internal/util"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

// UserService is the administrative side of account management.
type UserService struct {
	repo   repository.AccountRepository
	hasher PasswordHasher
	now    func() time.Time
}

// UserPage is one page of the account listing.
type UserPage struct {
	Users []*models.Account `json:"users"`
	Total int64             `json:"total"`
	Pages int64             `json:"pages"`
	Page  int64             `json:"page"`
	Limit int64             `json:"limit"`
}

func NewUserService(repo repository.AccountRepository, hasher PasswordHasher) *UserService {
	return &UserService{repo: repo, hasher: hasher, now: time.Now}
}

// CreateUser stores an account on behalf of an administrator. No OTP is
// issued; the account starts unverified and verifies through resend-otp.
// Only a superAdmin may create another superAdmin.
func (s *UserService) CreateUser(ctx context.Context, actorRole models.Role, in RegisterInput) (*models.Account, error) {
	in.normalize()
	if err := validateRegister(&in); err != nil {
		return nil, err
	}

	role := models.RoleUser
	if in.Role != "" {
		role = models.Role(in.Role)
	}
	if role == models.RoleSuperAdmin && actorRole != models.RoleSuperAdmin {
		return nil, ErrForbidden
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	account := models.NewAccount(s.now().UTC())
	account.FirstName = in.FirstName
	account.LastName = in.LastName
	account.Email = in.Email
	account.Role = role
	account.Phone = in.Phone
	account.PhoneCode = in.PhoneCode
	account.CountryCode = in.CountryCode
	account.Password = digest
	if in.ProfileURL != nil && *in.ProfileURL != "" {
		account.ProfileURL = in.ProfileURL
	}

	if err := s.repo.Create(ctx, account); err != nil {
		return nil, storeError(err)
	}

	util.Info("Account created by administrator",
		zap.String("account_id", account.IDHex()),
		zap.String("role", string(role)))
	return account, nil
}

func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*models.Account, error) {
	account, err := s.repo.FindByEmail(ctx, util.NormalizeEmail(email))
	if err != nil {
		return nil, storeError(err)
	}
	return account, nil
}

func (s *UserService) GetUserByID(ctx context.Context, id string) (*models.Account, error) {
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	return account, nil
}

// GetProfile returns the account behind an authenticated request.
func (s *UserService) GetProfile(ctx context.Context, accountID string) (*models.Account, error) {
	return s.GetUserByID(ctx, accountID)
}

// ListUsers pages through accounts, newest first. Page and limit fall back
// to 1 and 10; limit is capped at 100.
func (s *UserService) ListUsers(ctx context.Context, page, limit int64) (*UserPage, error) {
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	var (
		users []*models.Account
		total int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = s.repo.Count(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		users, err = s.repo.List(gctx, (page-1)*limit, limit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &UserPage{
		Users: users,
		Total: total,
		Pages: (total + limit - 1) / limit,
		Page:  page,
		Limit: limit,
	}, nil
}
